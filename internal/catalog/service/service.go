// Package service orchestrates the catalog: subjects, groups, schedule
// windows, period bindings, and the student/teacher registry that the
// enrollment and roll-call features build on.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"presente/internal/catalog/models"
	id "presente/pkg/domain"
	dErrors "presente/pkg/domain-errors"
	"presente/pkg/platform/sentinel"
	"presente/pkg/platform/tx"
	"presente/pkg/requestcontext"
)

// Store is the persistence surface the catalog service needs. The memory and
// postgres stores both satisfy it.
type Store interface {
	CreateSubject(ctx context.Context, subject *models.Subject) error
	FindSubjectByID(ctx context.Context, subjectID id.SubjectID) (*models.Subject, error)
	ListSubjects(ctx context.Context) ([]*models.Subject, error)
	UpdateSubject(ctx context.Context, subject *models.Subject) error

	CreateGroup(ctx context.Context, group *models.Group) error
	FindGroupByID(ctx context.Context, groupID id.GroupID) (*models.Group, error)
	ListGroupsBySubject(ctx context.Context, subjectID id.SubjectID) ([]*models.Group, error)

	EnsureSchedule(ctx context.Context, schedule *models.Schedule) (*models.Schedule, error)
	LinkSchedule(ctx context.Context, groupID id.GroupID, scheduleID id.ScheduleID) error
	UnlinkSchedule(ctx context.Context, groupID id.GroupID, scheduleID id.ScheduleID) error
	ListSchedulesByGroup(ctx context.Context, groupID id.GroupID) ([]*models.Schedule, error)

	CreateStudent(ctx context.Context, student *models.Student) error
	FindStudentByID(ctx context.Context, studentID id.StudentID) (*models.Student, error)
	CreateTeacher(ctx context.Context, teacher *models.Teacher) error
	FindTeacherByID(ctx context.Context, teacherID id.TeacherID) (*models.Teacher, error)
}

// Service manages catalog entities.
type Service struct {
	store  Store
	logger *slog.Logger
	tx     tx.Runner
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithTx(runner tx.Runner) Option {
	return func(s *Service) { s.tx = runner }
}

// New constructs a Service.
func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, tx: tx.NewMemoryRunner()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreateSubject(ctx context.Context, name, code string) (*models.Subject, error) {
	subject, err := models.NewSubject(id.SubjectID(uuid.New()), name, code, requestcontext.Now(ctx))
	if err != nil {
		return nil, demoteInvariant(err)
	}
	if err := s.store.CreateSubject(ctx, subject); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "subject name and code must be unique")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create subject")
	}
	return subject, nil
}

func (s *Service) GetSubject(ctx context.Context, subjectID id.SubjectID) (*models.Subject, error) {
	subject, err := s.store.FindSubjectByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "subject not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load subject")
	}
	return subject, nil
}

func (s *Service) ListSubjects(ctx context.Context) ([]*models.Subject, error) {
	subjects, err := s.store.ListSubjects(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list subjects")
	}
	return subjects, nil
}

// DeactivateSubject hides the subject from new-group creation. Existing
// groups and their sessions are untouched.
func (s *Service) DeactivateSubject(ctx context.Context, subjectID id.SubjectID) (*models.Subject, error) {
	var subject *models.Subject
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		found, err := s.store.FindSubjectByID(txCtx, subjectID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "subject not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load subject")
		}
		if err := found.Deactivate(requestcontext.Now(txCtx)); err != nil {
			if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
				return dErrors.New(dErrors.CodeConflict, "subject is already inactive")
			}
			return err
		}
		if err := s.store.UpdateSubject(txCtx, found); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update subject")
		}
		subject = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return subject, nil
}

func (s *Service) CreateGroup(ctx context.Context, subjectID id.SubjectID, name, code string) (*models.Group, error) {
	subject, err := s.GetSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if !subject.IsActive() {
		return nil, dErrors.New(dErrors.CodeConflict, "subject is inactive")
	}

	group, err := models.NewGroup(id.GroupID(uuid.New()), subjectID, name, code, requestcontext.Now(ctx))
	if err != nil {
		return nil, demoteInvariant(err)
	}
	if err := s.store.CreateGroup(ctx, group); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "group code must be unique")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create group")
	}
	return group, nil
}

func (s *Service) GetGroup(ctx context.Context, groupID id.GroupID) (*models.Group, error) {
	group, err := s.store.FindGroupByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "group not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load group")
	}
	return group, nil
}

func (s *Service) ListGroupsBySubject(ctx context.Context, subjectID id.SubjectID) ([]*models.Group, error) {
	if _, err := s.GetSubject(ctx, subjectID); err != nil {
		return nil, err
	}
	groups, err := s.store.ListGroupsBySubject(ctx, subjectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list groups")
	}
	return groups, nil
}

// AddScheduleToGroup attaches a weekly window to the group. Identical
// (weekday, start, end) tuples are deduplicated: the group links to the
// existing row, and linking the same window twice is a no-op.
func (s *Service) AddScheduleToGroup(ctx context.Context, groupID id.GroupID, weekday int, start, end string) (*models.Schedule, error) {
	if _, err := s.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	candidate, err := models.NewSchedule(id.ScheduleID(uuid.New()), weekday, start, end)
	if err != nil {
		return nil, demoteInvariant(err)
	}

	var schedule *models.Schedule
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		stored, err := s.store.EnsureSchedule(txCtx, candidate)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to ensure schedule")
		}
		if err := s.store.LinkSchedule(txCtx, groupID, stored.ID); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				schedule = stored
				return nil
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to link schedule")
		}
		schedule = stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	return schedule, nil
}

func (s *Service) RemoveScheduleFromGroup(ctx context.Context, groupID id.GroupID, scheduleID id.ScheduleID) error {
	if err := s.store.UnlinkSchedule(ctx, groupID, scheduleID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "schedule is not attached to group")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to unlink schedule")
	}
	return nil
}

func (s *Service) ListSchedules(ctx context.Context, groupID id.GroupID) ([]*models.Schedule, error) {
	if _, err := s.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	schedules, err := s.store.ListSchedulesByGroup(ctx, groupID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list schedules")
	}
	return schedules, nil
}

// RegisterStudent mirrors an identity-provider student account into the
// catalog. The ID comes from the provider, not from us.
func (s *Service) RegisterStudent(ctx context.Context, studentID id.StudentID, phoneUUID string) (*models.Student, error) {
	student, err := models.NewStudent(studentID, phoneUUID, requestcontext.Now(ctx))
	if err != nil {
		return nil, demoteInvariant(err)
	}
	if err := s.store.CreateStudent(ctx, student); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "student is already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register student")
	}
	return student, nil
}

func (s *Service) RegisterTeacher(ctx context.Context, teacherID id.TeacherID) (*models.Teacher, error) {
	teacher, err := models.NewTeacher(teacherID, requestcontext.Now(ctx))
	if err != nil {
		return nil, demoteInvariant(err)
	}
	if err := s.store.CreateTeacher(ctx, teacher); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "teacher is already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register teacher")
	}
	return teacher, nil
}

// demoteInvariant converts constructor invariant violations into validation
// errors for the API response.
func demoteInvariant(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeValidation, err.Error())
	}
	return err
}
