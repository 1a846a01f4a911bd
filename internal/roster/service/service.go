// Package service implements the read-side roster queries. It joins the
// catalog, enrollment, and roll-call stores into denormalized views the API
// and the export pipeline consume; it never writes.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	catalogmodels "presente/internal/catalog/models"
	rollmodels "presente/internal/rollcall/models"
	id "presente/pkg/domain"
	dErrors "presente/pkg/domain-errors"
	"presente/pkg/platform/sentinel"
)

// Catalog is the catalog read surface the roster engine joins over.
type Catalog interface {
	FindGroupByID(ctx context.Context, groupID id.GroupID) (*catalogmodels.Group, error)
	ListSchedulesByGroup(ctx context.Context, groupID id.GroupID) ([]*catalogmodels.Schedule, error)
	FindGroupPeriod(ctx context.Context, groupID id.GroupID, period id.Period) (*catalogmodels.GroupPeriod, error)
	ListGroupPeriodsByGroup(ctx context.Context, groupID id.GroupID) ([]*catalogmodels.GroupPeriod, error)
	ListGroupPeriodsByTeacher(ctx context.Context, teacherID id.TeacherID, period id.Period) ([]*catalogmodels.GroupPeriod, error)
	FindStudentByID(ctx context.Context, studentID id.StudentID) (*catalogmodels.Student, error)
}

// Enrollments lists the members of one group period.
type Enrollments interface {
	ListStudentsByGroupPeriod(ctx context.Context, groupPeriodID id.GroupPeriodID) ([]id.StudentID, error)
}

// Sessions is the roll-call read surface for the session report.
type Sessions interface {
	FindSessionByID(ctx context.Context, sessionID id.SessionID) (*rollmodels.Session, error)
	ListSessionsByGroup(ctx context.Context, groupID id.GroupID) ([]*rollmodels.Session, error)
	ListRecordsBySession(ctx context.Context, sessionID id.SessionID) ([]*rollmodels.AttendanceRecord, error)
}

// ScheduleWindow is one weekly window, denormalized into every roster row.
type ScheduleWindow struct {
	Weekday int    `json:"weekday"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

// RosterRow is one enrolled student in one period of the group.
type RosterRow struct {
	StudentID id.StudentID     `json:"student_id"`
	PhoneUUID string           `json:"phone_uuid,omitempty"`
	Period    id.Period        `json:"period"`
	Schedules []ScheduleWindow `json:"schedules"`
}

// RosterView is the group header plus its rows. Rows is empty when nobody
// is enrolled.
type RosterView struct {
	GroupID   id.GroupID       `json:"group_id"`
	GroupCode string           `json:"group_code"`
	GroupName string           `json:"group_name"`
	SubjectID id.SubjectID     `json:"subject_id"`
	Schedules []ScheduleWindow `json:"schedules"`
	Rows      []RosterRow      `json:"rows"`
}

// TaughtGroup is one group a teacher is bound to for a period.
type TaughtGroup struct {
	GroupID   id.GroupID       `json:"group_id"`
	GroupCode string           `json:"group_code"`
	GroupName string           `json:"group_name"`
	SubjectID id.SubjectID     `json:"subject_id"`
	Period    id.Period        `json:"period"`
	Schedules []ScheduleWindow `json:"schedules"`
}

// SessionSummary is one roll call in a group's history.
type SessionSummary struct {
	SessionID id.SessionID `json:"session_id"`
	Date      string       `json:"date"`
	Topic     string       `json:"topic"`
	Period    id.Period    `json:"period"`
}

// ReportEntry is one student's outcome in a closed or running session.
type ReportEntry struct {
	StudentID  id.StudentID `json:"student_id"`
	PhoneUUID  string       `json:"phone_uuid,omitempty"`
	Present    bool         `json:"present"`
	RecordedAt time.Time    `json:"recorded_at"`
}

// SessionReport is the roster+attendance join the export service renders.
type SessionReport struct {
	SessionID id.SessionID  `json:"session_id"`
	GroupID   id.GroupID    `json:"group_id"`
	GroupCode string        `json:"group_code"`
	Date      string        `json:"date"`
	Topic     string        `json:"topic"`
	Period    id.Period     `json:"period"`
	Present   int           `json:"present"`
	Absent    int           `json:"absent"`
	Entries   []ReportEntry `json:"entries"`
}

// Service is the roster query engine.
type Service struct {
	catalog     Catalog
	enrollments Enrollments
	sessions    Sessions
	logger      *slog.Logger
	tracer      trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// New constructs the roster engine.
func New(catalog Catalog, enrollments Enrollments, sessions Sessions, opts ...Option) *Service {
	s := &Service{
		catalog:     catalog,
		enrollments: enrollments,
		sessions:    sessions,
		tracer:      otel.Tracer("presente/roster"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Roster returns the group's enrolled students with their periods and the
// group's schedule windows. A zero period means all periods. Empty rosters
// and schedule-less groups come back as empty slices; only a missing group
// is an error.
func (s *Service) Roster(ctx context.Context, groupID id.GroupID, period id.Period) (*RosterView, error) {
	ctx, span := s.tracer.Start(ctx, "roster.Roster",
		trace.WithAttributes(attribute.String("group_id", groupID.String())))
	defer span.End()

	group, err := s.catalog.FindGroupByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "group %s not found", groupID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load group")
	}

	schedules, err := s.catalog.ListSchedulesByGroup(ctx, groupID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load schedules")
	}
	windows := make([]ScheduleWindow, 0, len(schedules))
	for _, schedule := range schedules {
		windows = append(windows, ScheduleWindow{Weekday: schedule.Weekday, Start: schedule.Start, End: schedule.End})
	}

	groupPeriods, err := s.resolveGroupPeriods(ctx, groupID, period)
	if err != nil {
		return nil, err
	}

	view := &RosterView{
		GroupID:   group.ID,
		GroupCode: group.Code,
		GroupName: group.Name,
		SubjectID: group.SubjectID,
		Schedules: windows,
		Rows:      []RosterRow{},
	}
	for _, groupPeriod := range groupPeriods {
		studentIDs, err := s.enrollments.ListStudentsByGroupPeriod(ctx, groupPeriod.ID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list enrollments")
		}
		for _, studentID := range studentIDs {
			row := RosterRow{StudentID: studentID, Period: groupPeriod.Period, Schedules: windows}
			if student, err := s.catalog.FindStudentByID(ctx, studentID); err == nil {
				row.PhoneUUID = student.PhoneUUID
			}
			view.Rows = append(view.Rows, row)
		}
	}
	return view, nil
}

// resolveGroupPeriods narrows to one (group, period) binding or fans out to
// all of them. A period with no binding yet is an empty roster, not an error.
func (s *Service) resolveGroupPeriods(ctx context.Context, groupID id.GroupID, period id.Period) ([]*catalogmodels.GroupPeriod, error) {
	if period.IsZero() {
		groupPeriods, err := s.catalog.ListGroupPeriodsByGroup(ctx, groupID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list group periods")
		}
		return groupPeriods, nil
	}
	groupPeriod, err := s.catalog.FindGroupPeriod(ctx, groupID, period)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load group period")
	}
	return []*catalogmodels.GroupPeriod{groupPeriod}, nil
}

// TaughtGroups returns the groups a teacher is bound to for one period, with
// their schedule windows. A teacher with no bindings gets an empty list.
func (s *Service) TaughtGroups(ctx context.Context, teacherID id.TeacherID, period id.Period) ([]TaughtGroup, error) {
	ctx, span := s.tracer.Start(ctx, "roster.TaughtGroups",
		trace.WithAttributes(attribute.String("teacher_id", teacherID.String())))
	defer span.End()

	groupPeriods, err := s.catalog.ListGroupPeriodsByTeacher(ctx, teacherID, period)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list taught groups")
	}

	out := make([]TaughtGroup, 0, len(groupPeriods))
	for _, groupPeriod := range groupPeriods {
		group, err := s.catalog.FindGroupByID(ctx, groupPeriod.GroupID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load group")
		}
		schedules, err := s.catalog.ListSchedulesByGroup(ctx, group.ID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load schedules")
		}
		windows := make([]ScheduleWindow, 0, len(schedules))
		for _, schedule := range schedules {
			windows = append(windows, ScheduleWindow{Weekday: schedule.Weekday, Start: schedule.Start, End: schedule.End})
		}
		out = append(out, TaughtGroup{
			GroupID:   group.ID,
			GroupCode: group.Code,
			GroupName: group.Name,
			SubjectID: group.SubjectID,
			Period:    groupPeriod.Period,
			Schedules: windows,
		})
	}
	return out, nil
}

// SessionHistory lists the group's past roll calls, oldest first. A group
// that never held one gets an empty list; only a missing group is an error.
func (s *Service) SessionHistory(ctx context.Context, groupID id.GroupID) ([]SessionSummary, error) {
	ctx, span := s.tracer.Start(ctx, "roster.SessionHistory",
		trace.WithAttributes(attribute.String("group_id", groupID.String())))
	defer span.End()

	if _, err := s.catalog.FindGroupByID(ctx, groupID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "group %s not found", groupID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load group")
	}
	sessions, err := s.sessions.ListSessionsByGroup(ctx, groupID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list sessions")
	}

	out := make([]SessionSummary, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, SessionSummary{
			SessionID: session.ID,
			Date:      session.Date,
			Topic:     session.Topic,
			Period:    session.Period,
		})
	}
	return out, nil
}

// Report builds the roster+attendance join for one session, in the shape the
// export and notification services consume.
func (s *Service) Report(ctx context.Context, sessionID id.SessionID) (*SessionReport, error) {
	ctx, span := s.tracer.Start(ctx, "roster.Report",
		trace.WithAttributes(attribute.String("session_id", sessionID.String())))
	defer span.End()

	session, err := s.sessions.FindSessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "session %s not found", sessionID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}
	group, err := s.catalog.FindGroupByID(ctx, session.GroupID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load group")
	}
	records, err := s.sessions.ListRecordsBySession(ctx, sessionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list attendance records")
	}

	report := &SessionReport{
		SessionID: session.ID,
		GroupID:   session.GroupID,
		GroupCode: group.Code,
		Date:      session.Date,
		Topic:     session.Topic,
		Period:    session.Period,
		Entries:   make([]ReportEntry, 0, len(records)),
	}
	for _, record := range records {
		entry := ReportEntry{StudentID: record.StudentID, Present: record.Present, RecordedAt: record.RecordedAt}
		if student, err := s.catalog.FindStudentByID(ctx, record.StudentID); err == nil {
			entry.PhoneUUID = student.PhoneUUID
		}
		if record.Present {
			report.Present++
		} else {
			report.Absent++
		}
		report.Entries = append(report.Entries, entry)
	}
	return report, nil
}
