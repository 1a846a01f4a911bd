// Package handler wires catalog endpoints to the catalog service. All routes
// are admin-scoped except the read side, which teachers can also use when
// setting up their groups.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"presente/internal/catalog/models"
	id "presente/pkg/domain"
	"presente/pkg/platform/httputil"
)

// Service defines the catalog operations the handler exposes.
type Service interface {
	CreateSubject(ctx context.Context, name, code string) (*models.Subject, error)
	GetSubject(ctx context.Context, subjectID id.SubjectID) (*models.Subject, error)
	ListSubjects(ctx context.Context) ([]*models.Subject, error)
	DeactivateSubject(ctx context.Context, subjectID id.SubjectID) (*models.Subject, error)
	CreateGroup(ctx context.Context, subjectID id.SubjectID, name, code string) (*models.Group, error)
	GetGroup(ctx context.Context, groupID id.GroupID) (*models.Group, error)
	ListGroupsBySubject(ctx context.Context, subjectID id.SubjectID) ([]*models.Group, error)
	AddScheduleToGroup(ctx context.Context, groupID id.GroupID, weekday int, start, end string) (*models.Schedule, error)
	RemoveScheduleFromGroup(ctx context.Context, groupID id.GroupID, scheduleID id.ScheduleID) error
	ListSchedules(ctx context.Context, groupID id.GroupID) ([]*models.Schedule, error)
	RegisterStudent(ctx context.Context, studentID id.StudentID, phoneUUID string) (*models.Student, error)
	RegisterTeacher(ctx context.Context, teacherID id.TeacherID) (*models.Teacher, error)
}

// Handler wires catalog endpoints to the catalog service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a catalog handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts catalog endpoints on the router. Mutations go through the
// admin guard; the read side is open to any authenticated caller.
func (h *Handler) Register(r chi.Router, admin func(http.Handler) http.Handler) {
	r.With(admin).Post("/subjects", h.HandleCreateSubject)
	r.Get("/subjects", h.HandleListSubjects)
	r.Get("/subjects/{subjectID}", h.HandleGetSubject)
	r.With(admin).Delete("/subjects/{subjectID}", h.HandleDeactivateSubject)
	r.With(admin).Post("/subjects/{subjectID}/groups", h.HandleCreateGroup)
	r.Get("/subjects/{subjectID}/groups", h.HandleListGroups)
	r.Get("/groups/{groupID}", h.HandleGetGroup)
	r.With(admin).Post("/groups/{groupID}/schedules", h.HandleAddSchedule)
	r.Get("/groups/{groupID}/schedules", h.HandleListSchedules)
	r.With(admin).Delete("/groups/{groupID}/schedules/{scheduleID}", h.HandleRemoveSchedule)
	r.With(admin).Post("/students", h.HandleRegisterStudent)
	r.With(admin).Post("/teachers", h.HandleRegisterTeacher)
}

func (h *Handler) HandleCreateSubject(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[CreateSubjectRequest](w, r, h.logger)
	if !ok {
		return
	}
	subject, err := h.service.CreateSubject(r.Context(), req.Name, req.Code)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromSubject(subject))
}

func (h *Handler) HandleListSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.service.ListSubjects(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSubjects(subjects))
}

func (h *Handler) HandleGetSubject(w http.ResponseWriter, r *http.Request) {
	subjectID, err := id.ParseSubjectID(chi.URLParam(r, "subjectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	subject, err := h.service.GetSubject(r.Context(), subjectID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSubject(subject))
}

func (h *Handler) HandleDeactivateSubject(w http.ResponseWriter, r *http.Request) {
	subjectID, err := id.ParseSubjectID(chi.URLParam(r, "subjectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	subject, err := h.service.DeactivateSubject(r.Context(), subjectID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSubject(subject))
}

func (h *Handler) HandleCreateGroup(w http.ResponseWriter, r *http.Request) {
	subjectID, err := id.ParseSubjectID(chi.URLParam(r, "subjectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[CreateGroupRequest](w, r, h.logger)
	if !ok {
		return
	}
	group, err := h.service.CreateGroup(r.Context(), subjectID, req.Name, req.Code)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromGroup(group))
}

func (h *Handler) HandleListGroups(w http.ResponseWriter, r *http.Request) {
	subjectID, err := id.ParseSubjectID(chi.URLParam(r, "subjectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	groups, err := h.service.ListGroupsBySubject(r.Context(), subjectID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromGroups(groups))
}

func (h *Handler) HandleGetGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := id.ParseGroupID(chi.URLParam(r, "groupID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	group, err := h.service.GetGroup(r.Context(), groupID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromGroup(group))
}

func (h *Handler) HandleAddSchedule(w http.ResponseWriter, r *http.Request) {
	groupID, err := id.ParseGroupID(chi.URLParam(r, "groupID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[AddScheduleRequest](w, r, h.logger)
	if !ok {
		return
	}
	schedule, err := h.service.AddScheduleToGroup(r.Context(), groupID, req.Weekday, req.Start, req.End)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromSchedule(schedule))
}

func (h *Handler) HandleListSchedules(w http.ResponseWriter, r *http.Request) {
	groupID, err := id.ParseGroupID(chi.URLParam(r, "groupID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	schedules, err := h.service.ListSchedules(r.Context(), groupID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSchedules(schedules))
}

func (h *Handler) HandleRemoveSchedule(w http.ResponseWriter, r *http.Request) {
	groupID, err := id.ParseGroupID(chi.URLParam(r, "groupID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	scheduleID, err := id.ParseScheduleID(chi.URLParam(r, "scheduleID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.RemoveScheduleFromGroup(r.Context(), groupID, scheduleID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleRegisterStudent(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[RegisterStudentRequest](w, r, h.logger)
	if !ok {
		return
	}
	student, err := h.service.RegisterStudent(r.Context(), req.ParsedStudentID(), req.PhoneUUID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromStudent(student))
}

func (h *Handler) HandleRegisterTeacher(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[RegisterTeacherRequest](w, r, h.logger)
	if !ok {
		return
	}
	teacher, err := h.service.RegisterTeacher(r.Context(), req.ParsedTeacherID())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromTeacher(teacher))
}
