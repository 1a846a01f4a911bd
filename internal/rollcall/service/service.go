// Package service implements the roll-call session controller. A group's
// session-open flag is the state machine: Closed -> Open on OpenSession,
// Open -> Closed on Close (with reconciliation) or Cancel (hard discard).
// Every transition goes through the store's compare-and-set so Open, Close,
// and Cancel are mutually exclusive per group, and an optional Redis lease
// keeps replicas from racing the database.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	catalogmodels "presente/internal/catalog/models"
	rollmetrics "presente/internal/rollcall/metrics"
	"presente/internal/rollcall/models"
	id "presente/pkg/domain"
	dErrors "presente/pkg/domain-errors"
	"presente/pkg/platform/audit"
	"presente/pkg/platform/sentinel"
	"presente/pkg/platform/tx"
	"presente/pkg/requestcontext"
)

// SessionStore is the persistence surface for sessions and records.
type SessionStore interface {
	CreateSession(ctx context.Context, session *models.Session) error
	FindSessionByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	FindSessionByGroupAndDate(ctx context.Context, groupID id.GroupID, date string) (*models.Session, error)
	DeleteSession(ctx context.Context, sessionID id.SessionID) error
	CreateRecord(ctx context.Context, record *models.AttendanceRecord) error
	BulkCreateRecords(ctx context.Context, records []*models.AttendanceRecord) error
	FindRecord(ctx context.Context, studentID id.StudentID, sessionID id.SessionID) (*models.AttendanceRecord, error)
	UpdateRecord(ctx context.Context, record *models.AttendanceRecord) error
	ListRecordsBySession(ctx context.Context, sessionID id.SessionID) ([]*models.AttendanceRecord, error)
}

// Catalog is the slice of the catalog store the controller reads, plus the
// session-flag compare-and-set it transitions through.
type Catalog interface {
	FindGroupByID(ctx context.Context, groupID id.GroupID) (*catalogmodels.Group, error)
	ListSchedulesByGroup(ctx context.Context, groupID id.GroupID) ([]*catalogmodels.Schedule, error)
	ClaimSessionTransition(ctx context.Context, groupID id.GroupID, from, to bool) error
	FindStudentByID(ctx context.Context, studentID id.StudentID) (*catalogmodels.Student, error)
	FindGroupPeriod(ctx context.Context, groupID id.GroupID, period id.Period) (*catalogmodels.GroupPeriod, error)
}

// Enrollment is the membership gate: who may check in, and who the
// reconciliation pass counts as the roster.
type Enrollment interface {
	IsEnrolled(ctx context.Context, studentID id.StudentID, groupID id.GroupID, period id.Period) (bool, error)
	Roster(ctx context.Context, groupID id.GroupID, period id.Period) ([]id.StudentID, error)
}

// Lease serializes transitions per group across replicas. Optional; the
// database compare-and-set is the correctness backstop.
type Lease interface {
	Acquire(ctx context.Context, groupID id.GroupID) (bool, error)
	Release(ctx context.Context, groupID id.GroupID) error
}

// GeoChecker is the optional campus gate in front of CheckIn.
type GeoChecker interface {
	IsWithinCampus(lat, lon float64) bool
}

// Coordinates is an optional client location attached to a check-in.
type Coordinates struct {
	Lat float64
	Lon float64
}

// Service is the roll-call session controller.
type Service struct {
	sessions   SessionStore
	catalog    Catalog
	enrollment Enrollment
	lease      Lease
	geo        GeoChecker
	logger     *slog.Logger
	publisher  audit.Publisher
	emitter    *audit.Emitter
	metrics    *rollmetrics.Metrics
	tx         tx.Runner
	tracer     trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

func WithMetrics(m *rollmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTx(runner tx.Runner) Option {
	return func(s *Service) { s.tx = runner }
}

func WithLease(lease Lease) Option {
	return func(s *Service) { s.lease = lease }
}

func WithGeoChecker(geo GeoChecker) Option {
	return func(s *Service) { s.geo = geo }
}

// New constructs the roll-call controller.
func New(sessions SessionStore, catalog Catalog, enrollment Enrollment, opts ...Option) *Service {
	s := &Service{
		sessions:   sessions,
		catalog:    catalog,
		enrollment: enrollment,
		tx:         tx.NewMemoryRunner(),
		tracer:     otel.Tracer("presente/rollcall"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.emitter = audit.NewEmitter(s.logger, s.publisher)
	return s
}

// OpenSession transitions the group to Open and creates the day's session.
// The request clock must fall inside at least one of the group's schedule
// windows.
func (s *Service) OpenSession(ctx context.Context, groupID id.GroupID, topic string, period id.Period) (*models.Session, error) {
	ctx, span := s.tracer.Start(ctx, "rollcall.OpenSession",
		trace.WithAttributes(attribute.String("group_id", groupID.String())))
	defer span.End()

	group, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeTransition(ctx, groupID, period); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	schedules, err := s.catalog.ListSchedulesByGroup(ctx, groupID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load schedules")
	}
	if !catalogmodels.AnyScheduleMatches(schedules, now) {
		return nil, dErrors.Newf(dErrors.CodeValidation,
			"group %s has no scheduled window covering the current time", group.Code)
	}

	session, err := models.NewSession(id.SessionID(uuid.New()), groupID, topic, period, now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	release, err := s.acquireLease(ctx, groupID)
	if err != nil {
		return nil, err
	}
	defer release()

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.catalog.ClaimSessionTransition(txCtx, groupID, false, true); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.Newf(dErrors.CodeConflict, "group %s already has an open roll call", group.Code)
			}
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.Newf(dErrors.CodeNotFound, "group %s not found", groupID)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to claim session transition")
		}
		if err := s.sessions.CreateSession(txCtx, session); err != nil {
			// Compensate the flag claim for stores without rollback.
			_ = s.catalog.ClaimSessionTransition(txCtx, groupID, true, false)
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.Newf(dErrors.CodeConflict,
					"group %s already held a roll call on %s", group.Code, session.Date)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create session")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitter.Emit(ctx, audit.Event{
		Action:    audit.ActionSessionOpened,
		GroupID:   groupID.String(),
		SessionID: session.ID.String(),
		Period:    string(period),
	})
	if s.metrics != nil {
		s.metrics.SessionsOpened.Inc()
	}
	return session, nil
}

// CheckIn records the calling student as present in today's open session.
// At most one record exists per (student, session); the store's uniqueness
// guarantee makes racing duplicates yield exactly one winner.
func (s *Service) CheckIn(ctx context.Context, groupID id.GroupID, studentID id.StudentID, coords *Coordinates) (*models.AttendanceRecord, error) {
	ctx, span := s.tracer.Start(ctx, "rollcall.CheckIn",
		trace.WithAttributes(
			attribute.String("group_id", groupID.String()),
			attribute.String("student_id", studentID.String()),
		))
	defer span.End()

	if s.geo != nil && coords != nil && !s.geo.IsWithinCampus(coords.Lat, coords.Lon) {
		return nil, dErrors.New(dErrors.CodeValidation, "check-in location is outside campus")
	}

	group, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.SessionOpen {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "group %s has no open roll call", group.Code)
	}

	now := requestcontext.Now(ctx)
	session, err := s.sessions.FindSessionByGroupAndDate(ctx, groupID, models.DateKey(now))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "group %s has no open roll call today", group.Code)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve session")
	}

	enrolled, err := s.enrollment.IsEnrolled(ctx, studentID, groupID, session.Period)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, dErrors.Newf(dErrors.CodeForbidden,
			"student %s is not enrolled in group %s this period", studentID, group.Code)
	}

	record := models.NewCheckIn(session.ID, studentID, now)
	if err := s.sessions.CreateRecord(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			if s.metrics != nil {
				s.metrics.DuplicateCheckIns.Inc()
			}
			return nil, dErrors.Newf(dErrors.CodeConflict,
				"student %s already checked in to this roll call", studentID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create attendance record")
	}

	s.emitter.Emit(ctx, audit.Event{
		Action:    audit.ActionCheckedIn,
		GroupID:   groupID.String(),
		SessionID: session.ID.String(),
		StudentID: studentID.String(),
		Period:    string(session.Period),
	})
	if s.metrics != nil {
		s.metrics.CheckIns.Inc()
	}
	return record, nil
}

// ToggleCheckIn is the privileged correction path: it flips an existing
// record's present flag. Existence checks run student, group, session,
// record, in that order, so the error names the first missing entity.
func (s *Service) ToggleCheckIn(ctx context.Context, groupID id.GroupID, studentID id.StudentID, dateOverride string) (*models.AttendanceRecord, error) {
	ctx, span := s.tracer.Start(ctx, "rollcall.ToggleCheckIn")
	defer span.End()

	if _, err := s.catalog.FindStudentByID(ctx, studentID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "student %s not found", studentID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load student")
	}
	group, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	date := dateOverride
	if date == "" {
		date = models.DateKey(now)
	} else if _, err := time.Parse(models.DateLayout, date); err != nil {
		return nil, dErrors.Newf(dErrors.CodeValidation, "date %q must look like %s", date, models.DateLayout)
	}

	session, err := s.sessions.FindSessionByGroupAndDate(ctx, groupID, date)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "group %s has no roll call on %s", group.Code, date)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve session")
	}

	record, err := s.sessions.FindRecord(ctx, studentID, session.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound,
				"student %s has no attendance record for the %s roll call", studentID, date)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attendance record")
	}

	record.Toggle(now)
	if err := s.sessions.UpdateRecord(ctx, record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update attendance record")
	}

	s.emitter.Emit(ctx, audit.Event{
		Action:    audit.ActionCheckInToggled,
		GroupID:   groupID.String(),
		SessionID: session.ID.String(),
		StudentID: studentID.String(),
	})
	return record, nil
}

// CloseSession finalizes today's roll call: it flips the group back to
// Closed and writes an absent record for every enrolled student who never
// checked in. After Close, every roster member has exactly one record.
func (s *Service) CloseSession(ctx context.Context, groupID id.GroupID) (*models.Session, error) {
	ctx, span := s.tracer.Start(ctx, "rollcall.CloseSession",
		trace.WithAttributes(attribute.String("group_id", groupID.String())))
	defer span.End()
	start := time.Now()

	group, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	session, err := s.sessions.FindSessionByGroupAndDate(ctx, groupID, models.DateKey(now))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "group %s has no roll call to close today", group.Code)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve session")
	}
	if err := s.authorizeTransition(ctx, groupID, session.Period); err != nil {
		return nil, err
	}

	release, err := s.acquireLease(ctx, groupID)
	if err != nil {
		return nil, err
	}
	defer release()

	var present, absent int
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.catalog.ClaimSessionTransition(txCtx, groupID, true, false); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.Newf(dErrors.CodeNotFound, "group %s has no open roll call", group.Code)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to claim session transition")
		}

		roster, err := s.enrollment.Roster(txCtx, groupID, session.Period)
		if err != nil {
			return err
		}
		records, err := s.sessions.ListRecordsBySession(txCtx, session.ID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list attendance records")
		}
		checkedIn := make(map[id.StudentID]struct{}, len(records))
		for _, record := range records {
			checkedIn[record.StudentID] = struct{}{}
		}

		var absences []*models.AttendanceRecord
		for _, studentID := range roster {
			if _, ok := checkedIn[studentID]; ok {
				continue
			}
			absences = append(absences, models.NewAbsence(session.ID, studentID, now))
		}
		if len(absences) > 0 {
			if err := s.sessions.BulkCreateRecords(txCtx, absences); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record absences")
			}
		}
		present = len(records)
		absent = len(absences)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitter.Emit(ctx, audit.Event{
		Action:    audit.ActionSessionClosed,
		GroupID:   groupID.String(),
		SessionID: session.ID.String(),
		Period:    string(session.Period),
		Present:   present,
		Absent:    absent,
	})
	if s.metrics != nil {
		s.metrics.SessionsClosed.Inc()
		s.metrics.AbsencesRecorded.Add(float64(absent))
		s.metrics.ObserveClose(start)
	}
	return session, nil
}

// CancelSession discards today's roll call entirely: the session row and all
// its records are hard-deleted and the group returns to Closed. Used for
// false starts.
func (s *Service) CancelSession(ctx context.Context, groupID id.GroupID) error {
	ctx, span := s.tracer.Start(ctx, "rollcall.CancelSession",
		trace.WithAttributes(attribute.String("group_id", groupID.String())))
	defer span.End()

	group, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return err
	}

	now := requestcontext.Now(ctx)
	session, err := s.sessions.FindSessionByGroupAndDate(ctx, groupID, models.DateKey(now))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeNotFound, "group %s has no roll call to cancel today", group.Code)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve session")
	}
	if err := s.authorizeTransition(ctx, groupID, session.Period); err != nil {
		return err
	}

	release, err := s.acquireLease(ctx, groupID)
	if err != nil {
		return err
	}
	defer release()

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.catalog.ClaimSessionTransition(txCtx, groupID, true, false); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.Newf(dErrors.CodeNotFound, "group %s has no open roll call", group.Code)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to claim session transition")
		}
		if err := s.sessions.DeleteSession(txCtx, session.ID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete session")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.emitter.Emit(ctx, audit.Event{
		Action:    audit.ActionSessionCancelled,
		GroupID:   groupID.String(),
		SessionID: session.ID.String(),
		Period:    string(session.Period),
	})
	if s.metrics != nil {
		s.metrics.SessionsCancelled.Inc()
	}
	return nil
}

// authorizeTransition is the capability gate for open/close/cancel: admins
// always pass, teachers only for groups they run in the period.
func (s *Service) authorizeTransition(ctx context.Context, groupID id.GroupID, period id.Period) error {
	role := requestcontext.Role(ctx)
	switch role {
	case id.RoleAdmin:
		return nil
	case id.RoleTeacher:
		groupPeriod, err := s.catalog.FindGroupPeriod(ctx, groupID, period)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeForbidden, "caller does not teach this group in the period")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load group period")
		}
		teacherID := id.TeacherID(requestcontext.UserID(ctx))
		if !groupPeriod.TaughtBy(teacherID) {
			return dErrors.New(dErrors.CodeForbidden, "caller does not teach this group in the period")
		}
		return nil
	default:
		return dErrors.New(dErrors.CodeForbidden, "session transitions require a teacher or admin")
	}
}

func (s *Service) acquireLease(ctx context.Context, groupID id.GroupID) (func(), error) {
	if s.lease == nil {
		return func() {}, nil
	}
	ok, err := s.lease.Acquire(ctx, groupID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire session lease")
	}
	if !ok {
		return nil, dErrors.New(dErrors.CodeConflict, "another session transition is in progress for this group")
	}
	return func() {
		if err := s.lease.Release(ctx, groupID); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "session lease release failed", "group_id", groupID, "error", err)
		}
	}, nil
}

func (s *Service) loadGroup(ctx context.Context, groupID id.GroupID) (*catalogmodels.Group, error) {
	group, err := s.catalog.FindGroupByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "group %s not found", groupID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load group")
	}
	return group, nil
}
