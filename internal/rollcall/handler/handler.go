// Package handler wires the roll-call endpoints to the session controller.
// Session transitions are teacher/admin operations; check-in is the one
// student-facing endpoint and always acts as the authenticated caller.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"presente/internal/rollcall/models"
	rollsvc "presente/internal/rollcall/service"
	id "presente/pkg/domain"
	"presente/pkg/platform/httputil"
	"presente/pkg/requestcontext"
)

// Service defines the roll-call operations the handler exposes.
type Service interface {
	OpenSession(ctx context.Context, groupID id.GroupID, topic string, period id.Period) (*models.Session, error)
	CheckIn(ctx context.Context, groupID id.GroupID, studentID id.StudentID, coords *rollsvc.Coordinates) (*models.AttendanceRecord, error)
	ToggleCheckIn(ctx context.Context, groupID id.GroupID, studentID id.StudentID, dateOverride string) (*models.AttendanceRecord, error)
	CloseSession(ctx context.Context, groupID id.GroupID) (*models.Session, error)
	CancelSession(ctx context.Context, groupID id.GroupID) error
}

// Handler wires roll-call endpoints to the session controller.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a roll-call handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts roll-call endpoints on the router. Transitions and the
// manual toggle go through the privileged guard; check-in through the
// student guard.
func (h *Handler) Register(r chi.Router, privileged, student func(http.Handler) http.Handler) {
	r.With(privileged).Post("/groups/{groupID}/session", h.HandleOpen)
	r.With(privileged).Delete("/groups/{groupID}/session", h.HandleCancel)
	r.With(privileged).Post("/groups/{groupID}/session/close", h.HandleClose)
	r.With(student).Post("/groups/{groupID}/session/check-in", h.HandleCheckIn)
	r.With(privileged).Post("/groups/{groupID}/session/toggle", h.HandleToggle)
}

func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	groupID, err := id.ParseGroupID(chi.URLParam(r, "groupID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[OpenSessionRequest](w, r, h.logger)
	if !ok {
		return
	}
	period := req.ParsedPeriod()
	if period.IsZero() {
		period = id.PeriodFromTime(requestcontext.Now(r.Context()))
	}
	session, err := h.service.OpenSession(r.Context(), groupID, req.Topic, period)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromSession(session))
}

func (h *Handler) HandleCheckIn(w http.ResponseWriter, r *http.Request) {
	groupID, err := id.ParseGroupID(chi.URLParam(r, "groupID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[CheckInRequest](w, r, h.logger)
	if !ok {
		return
	}
	var coords *rollsvc.Coordinates
	if lat, lon, sent := req.Coordinates(); sent {
		coords = &rollsvc.Coordinates{Lat: lat, Lon: lon}
	}
	studentID := id.StudentID(requestcontext.UserID(r.Context()))
	record, err := h.service.CheckIn(r.Context(), groupID, studentID, coords)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromRecord(record))
}

func (h *Handler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	groupID, err := id.ParseGroupID(chi.URLParam(r, "groupID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[ToggleRequest](w, r, h.logger)
	if !ok {
		return
	}
	record, err := h.service.ToggleCheckIn(r.Context(), groupID, req.ParsedStudentID(), req.Date)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecord(record))
}

func (h *Handler) HandleClose(w http.ResponseWriter, r *http.Request) {
	groupID, err := id.ParseGroupID(chi.URLParam(r, "groupID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	session, err := h.service.CloseSession(r.Context(), groupID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSession(session))
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	groupID, err := id.ParseGroupID(chi.URLParam(r, "groupID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.CancelSession(r.Context(), groupID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
