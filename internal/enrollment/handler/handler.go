// Package handler wires enrollment endpoints to the enrollment manager.
// Batch assignment and transfer are privileged operations; the router guards
// them with the role middleware.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"presente/internal/enrollment/models"
	id "presente/pkg/domain"
	"presente/pkg/platform/httputil"
	"presente/pkg/requestcontext"
)

// Service defines the enrollment operations the handler exposes.
type Service interface {
	AssignGroupsToStudent(ctx context.Context, studentID id.StudentID, groupIDs []id.GroupID, period id.Period) (*models.AssignmentResult, error)
	AssignGroupsToTeacher(ctx context.Context, teacherID id.TeacherID, groupIDs []id.GroupID, period id.Period) (*models.AssignmentResult, error)
	TransferStudent(ctx context.Context, fromGroupID, toGroupID id.GroupID, studentID id.StudentID, period id.Period) error
}

// Handler wires enrollment endpoints to the enrollment manager.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an enrollment handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts enrollment endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/students/{studentID}/groups", h.HandleAssignStudent)
	r.Post("/teachers/{teacherID}/groups", h.HandleAssignTeacher)
	r.Post("/students/{studentID}/transfer", h.HandleTransfer)
}

// resolvePeriod falls back to the period derived from the request clock when
// the caller did not name one. Deriving here keeps the service signatures
// explicit.
func resolvePeriod(ctx context.Context, explicit id.Period) id.Period {
	if !explicit.IsZero() {
		return explicit
	}
	return id.PeriodFromTime(requestcontext.Now(ctx))
}

func (h *Handler) HandleAssignStudent(w http.ResponseWriter, r *http.Request) {
	studentID, err := id.ParseStudentID(chi.URLParam(r, "studentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[AssignGroupsRequest](w, r, h.logger)
	if !ok {
		return
	}
	period := resolvePeriod(r.Context(), req.ParsedPeriod())
	result, err := h.service.AssignGroupsToStudent(r.Context(), studentID, req.ParsedGroupIDs(), period)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromAssignment(result, period))
}

func (h *Handler) HandleAssignTeacher(w http.ResponseWriter, r *http.Request) {
	teacherID, err := id.ParseTeacherID(chi.URLParam(r, "teacherID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[AssignGroupsRequest](w, r, h.logger)
	if !ok {
		return
	}
	period := resolvePeriod(r.Context(), req.ParsedPeriod())
	result, err := h.service.AssignGroupsToTeacher(r.Context(), teacherID, req.ParsedGroupIDs(), period)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromAssignment(result, period))
}

func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	studentID, err := id.ParseStudentID(chi.URLParam(r, "studentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[TransferRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := h.service.TransferStudent(r.Context(), req.ParsedFrom(), req.ParsedTo(), studentID, req.ParsedPeriod()); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
