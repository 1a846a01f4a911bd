// Package handler exposes the read-side roster and report endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"presente/internal/roster/service"
	id "presente/pkg/domain"
	"presente/pkg/platform/httputil"
	"presente/pkg/requestcontext"
)

// Service defines the read operations the handler exposes.
type Service interface {
	Roster(ctx context.Context, groupID id.GroupID, period id.Period) (*service.RosterView, error)
	TaughtGroups(ctx context.Context, teacherID id.TeacherID, period id.Period) ([]service.TaughtGroup, error)
	SessionHistory(ctx context.Context, groupID id.GroupID) ([]service.SessionSummary, error)
	Report(ctx context.Context, sessionID id.SessionID) (*service.SessionReport, error)
}

// Handler wires roster endpoints to the query engine.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a roster handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts roster endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/groups/{groupID}/roster", h.HandleRoster)
	r.Get("/groups/{groupID}/sessions", h.HandleSessionHistory)
	r.Get("/teachers/me/groups", h.HandleTaughtGroups)
	r.Get("/sessions/{sessionID}/report", h.HandleReport)
}

func (h *Handler) HandleRoster(w http.ResponseWriter, r *http.Request) {
	groupID, err := id.ParseGroupID(chi.URLParam(r, "groupID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var period id.Period
	if raw := r.URL.Query().Get("period"); raw != "" {
		period, err = id.ParsePeriod(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	view, err := h.service.Roster(r.Context(), groupID, period)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) HandleSessionHistory(w http.ResponseWriter, r *http.Request) {
	groupID, err := id.ParseGroupID(chi.URLParam(r, "groupID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	sessions, err := h.service.SessionHistory(r.Context(), groupID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sessions)
}

func (h *Handler) HandleTaughtGroups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	teacherID := id.TeacherID(requestcontext.UserID(ctx))

	period := id.PeriodFromTime(requestcontext.Now(ctx))
	if raw := r.URL.Query().Get("period"); raw != "" {
		parsed, err := id.ParsePeriod(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		period = parsed
	}
	groups, err := h.service.TaughtGroups(ctx, teacherID, period)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, groups)
}

func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	report, err := h.service.Report(r.Context(), sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}
