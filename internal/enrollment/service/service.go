// Package service implements the enrollment manager: batch assignment of
// students and teachers to groups for an academic period, and student
// transfers between groups of one subject.
//
// The one-group-per-subject-per-period rule is enforced here, not in the
// database: batch items that would break it are classified as omissions and
// the rest of the batch proceeds.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	catalogmodels "presente/internal/catalog/models"
	enrollmetrics "presente/internal/enrollment/metrics"
	"presente/internal/enrollment/models"
	id "presente/pkg/domain"
	dErrors "presente/pkg/domain-errors"
	"presente/pkg/platform/audit"
	"presente/pkg/platform/sentinel"
	"presente/pkg/platform/tx"
	"presente/pkg/requestcontext"
)

// EnrollmentStore is the persistence surface for enrollment rows.
type EnrollmentStore interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Delete(ctx context.Context, studentID id.StudentID, groupPeriodID id.GroupPeriodID) error
	Exists(ctx context.Context, studentID id.StudentID, groupPeriodID id.GroupPeriodID) (bool, error)
	ListByStudentAndPeriod(ctx context.Context, studentID id.StudentID, period id.Period) ([]*models.Enrollment, error)
	ListStudentsByGroupPeriod(ctx context.Context, groupPeriodID id.GroupPeriodID) ([]id.StudentID, error)
}

// Catalog is the slice of the catalog store the enrollment manager reads and
// the group-period rows it upserts.
type Catalog interface {
	FindGroupByID(ctx context.Context, groupID id.GroupID) (*catalogmodels.Group, error)
	FindSubjectByID(ctx context.Context, subjectID id.SubjectID) (*catalogmodels.Subject, error)
	FindStudentByID(ctx context.Context, studentID id.StudentID) (*catalogmodels.Student, error)
	FindTeacherByID(ctx context.Context, teacherID id.TeacherID) (*catalogmodels.Teacher, error)
	UpsertGroupPeriod(ctx context.Context, groupPeriod *catalogmodels.GroupPeriod) (*catalogmodels.GroupPeriod, error)
	FindGroupPeriod(ctx context.Context, groupID id.GroupID, period id.Period) (*catalogmodels.GroupPeriod, error)
}

// Service is the enrollment manager.
type Service struct {
	enrollments EnrollmentStore
	catalog     Catalog
	logger      *slog.Logger
	publisher   audit.Publisher
	emitter     *audit.Emitter
	metrics     *enrollmetrics.Metrics
	tx          tx.Runner
	tracer      trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

func WithMetrics(m *enrollmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTx(runner tx.Runner) Option {
	return func(s *Service) { s.tx = runner }
}

// New constructs the enrollment manager.
func New(enrollments EnrollmentStore, catalog Catalog, opts ...Option) *Service {
	s := &Service{
		enrollments: enrollments,
		catalog:     catalog,
		tx:          tx.NewMemoryRunner(),
		tracer:      otel.Tracer("presente/enrollment"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.emitter = audit.NewEmitter(s.logger, s.publisher)
	return s
}

// AssignGroupsToStudent classifies every requested group as registered or
// omitted, then persists all registrations in one atomic unit. Input order is
// significant: when two requested groups share a subject, the first one wins.
func (s *Service) AssignGroupsToStudent(ctx context.Context, studentID id.StudentID, groupIDs []id.GroupID, period id.Period) (*models.AssignmentResult, error) {
	ctx, span := s.tracer.Start(ctx, "enrollment.AssignGroupsToStudent",
		trace.WithAttributes(
			attribute.String("student_id", studentID.String()),
			attribute.Int("batch_size", len(groupIDs)),
		))
	defer span.End()

	if len(groupIDs) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "group list cannot be empty")
	}
	if err := requirePeriod(period); err != nil {
		return nil, err
	}
	if _, err := s.catalog.FindStudentByID(ctx, studentID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "student %s not found", studentID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load student")
	}

	existing, err := s.enrollments.ListByStudentAndPeriod(ctx, studentID, period)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load existing enrollments")
	}
	// Subjects the student already holds an enrollment in for this period.
	takenSubjects := make(map[id.SubjectID]string)
	enrolledGroups := make(map[id.GroupID]struct{})
	for _, enrollment := range existing {
		enrolledGroups[enrollment.GroupID] = struct{}{}
		group, err := s.catalog.FindGroupByID(ctx, enrollment.GroupID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve enrolled group")
		}
		takenSubjects[group.SubjectID] = group.Code
	}

	result := &models.AssignmentResult{Registered: []id.GroupID{}, Omitted: []models.Omission{}}
	var accepted []*catalogmodels.Group
	batchSubjects := make(map[id.SubjectID]string)

	for _, groupID := range groupIDs {
		group, err := s.catalog.FindGroupByID(ctx, groupID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				result.Omitted = append(result.Omitted, models.Omission{
					GroupID: groupID,
					Reason:  models.SkipGroupNotFound,
					Detail:  fmt.Sprintf("group %s does not exist", groupID),
				})
				s.countOmission(models.SkipGroupNotFound)
				continue
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load group")
		}
		if _, ok := enrolledGroups[groupID]; ok {
			result.Omitted = append(result.Omitted, models.Omission{
				GroupID: groupID,
				Reason:  models.SkipAlreadyAssigned,
				Detail:  fmt.Sprintf("student is already enrolled in group %s", group.Code),
			})
			s.countOmission(models.SkipAlreadyAssigned)
			continue
		}
		if winner, ok := batchSubjects[group.SubjectID]; ok {
			result.Omitted = append(result.Omitted, models.Omission{
				GroupID: groupID,
				Reason:  models.SkipSubjectConflict,
				Detail:  fmt.Sprintf("another group of the same subject (%s) appears earlier in the batch", winner),
			})
			s.countOmission(models.SkipSubjectConflict)
			continue
		}
		if holder, ok := takenSubjects[group.SubjectID]; ok {
			result.Omitted = append(result.Omitted, models.Omission{
				GroupID: groupID,
				Reason:  models.SkipSubjectConflict,
				Detail:  fmt.Sprintf("student already holds an enrollment in group %s of the same subject", holder),
			})
			s.countOmission(models.SkipSubjectConflict)
			continue
		}
		batchSubjects[group.SubjectID] = group.Code
		accepted = append(accepted, group)
		result.Registered = append(result.Registered, groupID)
	}

	if len(accepted) > 0 {
		err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
			now := requestcontext.Now(txCtx)
			for _, group := range accepted {
				groupPeriod, err := s.ensureGroupPeriod(txCtx, group.ID, period)
				if err != nil {
					return err
				}
				enrollment, err := models.NewEnrollment(studentID, group.ID, groupPeriod.ID, period, now)
				if err != nil {
					return err
				}
				if err := s.enrollments.Create(txCtx, enrollment); err != nil {
					return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create enrollment")
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	s.emitter.Emit(ctx, audit.Event{
		Action:    audit.ActionStudentsAssigned,
		StudentID: studentID.String(),
		Period:    string(period),
	})
	if s.metrics != nil {
		s.metrics.IncrementStudentsAssigned(len(result.Registered))
	}
	return result, nil
}

// AssignGroupsToTeacher is the teacher-side batch. The conflict rule is
// per-group exclusivity: a group period that already names a different
// teacher is omitted. No subject-conflict concept applies to teachers.
func (s *Service) AssignGroupsToTeacher(ctx context.Context, teacherID id.TeacherID, groupIDs []id.GroupID, period id.Period) (*models.AssignmentResult, error) {
	ctx, span := s.tracer.Start(ctx, "enrollment.AssignGroupsToTeacher",
		trace.WithAttributes(
			attribute.String("teacher_id", teacherID.String()),
			attribute.Int("batch_size", len(groupIDs)),
		))
	defer span.End()

	if len(groupIDs) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "group list cannot be empty")
	}
	if err := requirePeriod(period); err != nil {
		return nil, err
	}
	if _, err := s.catalog.FindTeacherByID(ctx, teacherID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "teacher %s not found", teacherID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load teacher")
	}

	result := &models.AssignmentResult{Registered: []id.GroupID{}, Omitted: []models.Omission{}}
	var accepted []id.GroupID

	for _, groupID := range groupIDs {
		group, err := s.catalog.FindGroupByID(ctx, groupID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				result.Omitted = append(result.Omitted, models.Omission{
					GroupID: groupID,
					Reason:  models.SkipGroupNotFound,
					Detail:  fmt.Sprintf("group %s does not exist", groupID),
				})
				s.countOmission(models.SkipGroupNotFound)
				continue
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load group")
		}

		groupPeriod, err := s.catalog.FindGroupPeriod(ctx, groupID, period)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load group period")
		}
		if groupPeriod != nil && groupPeriod.HasTeacher() {
			if groupPeriod.TaughtBy(teacherID) {
				result.Omitted = append(result.Omitted, models.Omission{
					GroupID: groupID,
					Reason:  models.SkipAlreadyAssigned,
					Detail:  fmt.Sprintf("teacher already runs group %s this period", group.Code),
				})
				s.countOmission(models.SkipAlreadyAssigned)
				continue
			}
			result.Omitted = append(result.Omitted, models.Omission{
				GroupID: groupID,
				Reason:  models.SkipTeacherTaken,
				Detail:  fmt.Sprintf("group %s already has a teacher for period %s", group.Code, period),
			})
			s.countOmission(models.SkipTeacherTaken)
			continue
		}
		accepted = append(accepted, groupID)
		result.Registered = append(result.Registered, groupID)
	}

	if len(accepted) > 0 {
		err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
			now := requestcontext.Now(txCtx)
			for _, groupID := range accepted {
				_, err := s.catalog.UpsertGroupPeriod(txCtx, &catalogmodels.GroupPeriod{
					ID:        id.GroupPeriodID(uuid.New()),
					GroupID:   groupID,
					Period:    period,
					TeacherID: &teacherID,
					CreatedAt: now,
					UpdatedAt: now,
				})
				if err != nil {
					return dErrors.Wrap(err, dErrors.CodeInternal, "failed to bind teacher to group period")
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	s.emitter.Emit(ctx, audit.Event{
		Action:  audit.ActionTeacherAssigned,
		ActorID: teacherID.String(),
		Period:  string(period),
	})
	if s.metrics != nil {
		s.metrics.IncrementTeachersAssigned(len(result.Registered))
	}
	return result, nil
}

// TransferStudent moves one enrollment between two groups of the same
// subject. The period is always explicit and the source enrollment is always
// removed; there is no period-less variant.
func (s *Service) TransferStudent(ctx context.Context, fromGroupID, toGroupID id.GroupID, studentID id.StudentID, period id.Period) error {
	ctx, span := s.tracer.Start(ctx, "enrollment.TransferStudent",
		trace.WithAttributes(attribute.String("student_id", studentID.String())))
	defer span.End()

	if err := requirePeriod(period); err != nil {
		return err
	}
	if fromGroupID == toGroupID {
		return dErrors.New(dErrors.CodeValidation, "source and target group are the same")
	}

	fromGroup, err := s.loadGroup(ctx, fromGroupID, "source")
	if err != nil {
		return err
	}
	toGroup, err := s.loadGroup(ctx, toGroupID, "target")
	if err != nil {
		return err
	}
	if fromGroup.SubjectID != toGroup.SubjectID {
		return dErrors.Newf(dErrors.CodeValidation,
			"groups %s and %s belong to different subjects; cross-subject transfer is not allowed",
			fromGroup.Code, toGroup.Code)
	}

	fromPeriod, err := s.catalog.FindGroupPeriod(ctx, fromGroupID, period)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeNotFound, "group %s has no binding for period %s", fromGroup.Code, period)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load source group period")
	}
	toPeriod, err := s.catalog.FindGroupPeriod(ctx, toGroupID, period)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeNotFound, "group %s has no binding for period %s", toGroup.Code, period)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load target group period")
	}

	enrolled, err := s.enrollments.Exists(ctx, studentID, fromPeriod.ID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check source enrollment")
	}
	if !enrolled {
		return dErrors.Newf(dErrors.CodeNotFound, "student %s is not enrolled in group %s for period %s", studentID, fromGroup.Code, period)
	}

	// The one-group-per-subject check excludes the enrollment being moved.
	others, err := s.enrollments.ListByStudentAndPeriod(ctx, studentID, period)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load existing enrollments")
	}
	for _, other := range others {
		if other.GroupID == fromGroupID {
			continue
		}
		if other.GroupID == toGroupID {
			return dErrors.Newf(dErrors.CodeConflict, "student is already enrolled in group %s", toGroup.Code)
		}
		otherGroup, err := s.catalog.FindGroupByID(ctx, other.GroupID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve enrolled group")
		}
		if otherGroup.SubjectID == toGroup.SubjectID {
			return dErrors.Newf(dErrors.CodeConflict,
				"student already holds an enrollment in group %s of the same subject", otherGroup.Code)
		}
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.enrollments.Delete(txCtx, studentID, fromPeriod.ID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove source enrollment")
		}
		enrollment, err := models.NewEnrollment(studentID, toGroupID, toPeriod.ID, period, requestcontext.Now(txCtx))
		if err != nil {
			return err
		}
		if err := s.enrollments.Create(txCtx, enrollment); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.Newf(dErrors.CodeConflict, "student is already enrolled in group %s", toGroup.Code)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create target enrollment")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.emitter.Emit(ctx, audit.Event{
		Action:    audit.ActionStudentMoved,
		StudentID: studentID.String(),
		GroupID:   toGroupID.String(),
		Period:    string(period),
	})
	if s.metrics != nil {
		s.metrics.IncrementTransfers()
	}
	return nil
}

// Roster returns the students enrolled in the group for the period.
func (s *Service) Roster(ctx context.Context, groupID id.GroupID, period id.Period) ([]id.StudentID, error) {
	groupPeriod, err := s.catalog.FindGroupPeriod(ctx, groupID, period)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return []id.StudentID{}, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load group period")
	}
	students, err := s.enrollments.ListStudentsByGroupPeriod(ctx, groupPeriod.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list enrolled students")
	}
	return students, nil
}

// IsEnrolled reports whether the student holds an enrollment in the group for
// the period. The roll-call controller uses this as its membership gate.
func (s *Service) IsEnrolled(ctx context.Context, studentID id.StudentID, groupID id.GroupID, period id.Period) (bool, error) {
	groupPeriod, err := s.catalog.FindGroupPeriod(ctx, groupID, period)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load group period")
	}
	enrolled, err := s.enrollments.Exists(ctx, studentID, groupPeriod.ID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check enrollment")
	}
	return enrolled, nil
}

func (s *Service) ensureGroupPeriod(ctx context.Context, groupID id.GroupID, period id.Period) (*catalogmodels.GroupPeriod, error) {
	groupPeriod, err := s.catalog.FindGroupPeriod(ctx, groupID, period)
	if err == nil {
		return groupPeriod, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load group period")
	}
	now := requestcontext.Now(ctx)
	created, err := s.catalog.UpsertGroupPeriod(ctx, &catalogmodels.GroupPeriod{
		ID:        id.GroupPeriodID(uuid.New()),
		GroupID:   groupID,
		Period:    period,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create group period")
	}
	return created, nil
}

func (s *Service) loadGroup(ctx context.Context, groupID id.GroupID, side string) (*catalogmodels.Group, error) {
	group, err := s.catalog.FindGroupByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "%s group %s not found", side, groupID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load group")
	}
	return group, nil
}

func (s *Service) countOmission(reason models.SkipReason) {
	if s.metrics != nil {
		s.metrics.IncrementOmission(string(reason))
	}
}

func requirePeriod(period id.Period) error {
	if _, err := id.ParsePeriod(string(period)); err != nil {
		return err
	}
	return nil
}
