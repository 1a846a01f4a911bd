package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogsvc "presente/internal/catalog/service"
	catalogstore "presente/internal/catalog/store"
	enrollsvc "presente/internal/enrollment/service"
	enrollstore "presente/internal/enrollment/store"
	rollmodels "presente/internal/rollcall/models"
	rollstore "presente/internal/rollcall/store"
	id "presente/pkg/domain"
	dErrors "presente/pkg/domain-errors"
	"presente/pkg/requestcontext"
)

type fixture struct {
	svc      *Service
	sessions *rollstore.InMemoryStore
	ctx      context.Context

	group    id.GroupID
	teacher  id.TeacherID
	studentA id.StudentID
	studentB id.StudentID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog := catalogstore.NewMemory()
	catSvc := catalogsvc.New(catalog)
	ctx := requestcontext.WithTime(context.Background(), time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC))

	math, err := catSvc.CreateSubject(ctx, "Mathematics", "MAT-1")
	require.NoError(t, err)
	group, err := catSvc.CreateGroup(ctx, math.ID, "Group A", "GRP-A")
	require.NoError(t, err)
	_, err = catSvc.AddScheduleToGroup(ctx, group.ID, 1, "08:00", "10:00")
	require.NoError(t, err)

	studentA := id.StudentID(uuid.New())
	_, err = catSvc.RegisterStudent(ctx, studentA, "phone-a")
	require.NoError(t, err)
	studentB := id.StudentID(uuid.New())
	_, err = catSvc.RegisterStudent(ctx, studentB, "")
	require.NoError(t, err)

	teacher := id.TeacherID(uuid.New())
	_, err = catSvc.RegisterTeacher(ctx, teacher)
	require.NoError(t, err)

	enrollStore := enrollstore.NewMemory()
	enrollment := enrollsvc.New(enrollStore, catalog)
	result, err := enrollment.AssignGroupsToTeacher(ctx, teacher, []id.GroupID{group.ID}, id.Period("2025-1"))
	require.NoError(t, err)
	require.Empty(t, result.Omitted)
	for _, studentID := range []id.StudentID{studentA, studentB} {
		result, err := enrollment.AssignGroupsToStudent(ctx, studentID, []id.GroupID{group.ID}, id.Period("2025-1"))
		require.NoError(t, err)
		require.Empty(t, result.Omitted)
	}

	sessions := rollstore.NewMemory()
	return &fixture{
		svc:      New(catalog, enrollStore, sessions),
		sessions: sessions,
		ctx:      ctx,
		group:    group.ID,
		teacher:  teacher,
		studentA: studentA,
		studentB: studentB,
	}
}

func TestRoster(t *testing.T) {
	t.Run("joins members with schedule windows", func(t *testing.T) {
		f := newFixture(t)
		view, err := f.svc.Roster(f.ctx, f.group, id.Period("2025-1"))
		require.NoError(t, err)

		assert.Equal(t, "GRP-A", view.GroupCode)
		require.Len(t, view.Schedules, 1)
		assert.Equal(t, ScheduleWindow{Weekday: 1, Start: "08:00", End: "10:00"}, view.Schedules[0])
		require.Len(t, view.Rows, 2)
		for _, row := range view.Rows {
			assert.Equal(t, id.Period("2025-1"), row.Period)
			assert.Equal(t, view.Schedules, row.Schedules)
		}
	})

	t.Run("carries the student phone binding when one exists", func(t *testing.T) {
		f := newFixture(t)
		view, err := f.svc.Roster(f.ctx, f.group, id.Period("2025-1"))
		require.NoError(t, err)

		phones := make(map[id.StudentID]string, len(view.Rows))
		for _, row := range view.Rows {
			phones[row.StudentID] = row.PhoneUUID
		}
		assert.Equal(t, "phone-a", phones[f.studentA])
		assert.Empty(t, phones[f.studentB])
	})

	t.Run("zero period fans out to every bound period", func(t *testing.T) {
		f := newFixture(t)
		view, err := f.svc.Roster(f.ctx, f.group, id.Period(""))
		require.NoError(t, err)
		assert.Len(t, view.Rows, 2)
	})

	t.Run("empty roster is not an error", func(t *testing.T) {
		f := newFixture(t)
		view, err := f.svc.Roster(f.ctx, f.group, id.Period("2026-1"))
		require.NoError(t, err)
		assert.Empty(t, view.Rows)
	})

	t.Run("schedule-less group is not an error", func(t *testing.T) {
		catalog := catalogstore.NewMemory()
		catSvc := catalogsvc.New(catalog)
		ctx := requestcontext.WithTime(context.Background(), time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC))
		math, err := catSvc.CreateSubject(ctx, "Mathematics", "MAT-1")
		require.NoError(t, err)
		group, err := catSvc.CreateGroup(ctx, math.ID, "Group B", "GRP-B")
		require.NoError(t, err)

		svc := New(catalog, enrollstore.NewMemory(), rollstore.NewMemory())
		view, err := svc.Roster(ctx, group.ID, id.Period(""))
		require.NoError(t, err)
		assert.Empty(t, view.Schedules)
		assert.Empty(t, view.Rows)
	})

	t.Run("unknown group is not found", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Roster(f.ctx, id.GroupID(uuid.New()), id.Period(""))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestTaughtGroups(t *testing.T) {
	t.Run("lists the teacher's groups with their windows", func(t *testing.T) {
		f := newFixture(t)
		groups, err := f.svc.TaughtGroups(f.ctx, f.teacher, id.Period("2025-1"))
		require.NoError(t, err)

		require.Len(t, groups, 1)
		assert.Equal(t, f.group, groups[0].GroupID)
		assert.Equal(t, "GRP-A", groups[0].GroupCode)
		assert.Equal(t, id.Period("2025-1"), groups[0].Period)
		require.Len(t, groups[0].Schedules, 1)
		assert.Equal(t, ScheduleWindow{Weekday: 1, Start: "08:00", End: "10:00"}, groups[0].Schedules[0])
	})

	t.Run("scopes to the requested period", func(t *testing.T) {
		f := newFixture(t)
		groups, err := f.svc.TaughtGroups(f.ctx, f.teacher, id.Period("2026-1"))
		require.NoError(t, err)
		assert.Empty(t, groups)
	})

	t.Run("teacher with no bindings gets an empty list", func(t *testing.T) {
		f := newFixture(t)
		groups, err := f.svc.TaughtGroups(f.ctx, id.TeacherID(uuid.New()), id.Period("2025-1"))
		require.NoError(t, err)
		assert.Empty(t, groups)
	})
}

func TestSessionHistory(t *testing.T) {
	t.Run("lists the group's roll calls date-ordered", func(t *testing.T) {
		f := newFixture(t)
		now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
		later, err := rollmodels.NewSession(id.SessionID(uuid.New()), f.group, "integrals", id.Period("2025-1"), now)
		require.NoError(t, err)
		earlier, err := rollmodels.NewSession(id.SessionID(uuid.New()), f.group, "limits", id.Period("2025-1"), now.AddDate(0, 0, -7))
		require.NoError(t, err)
		require.NoError(t, f.sessions.CreateSession(f.ctx, later))
		require.NoError(t, f.sessions.CreateSession(f.ctx, earlier))

		history, err := f.svc.SessionHistory(f.ctx, f.group)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "limits", history[0].Topic)
		assert.Equal(t, "integrals", history[1].Topic)
	})

	t.Run("group without roll calls gets an empty list", func(t *testing.T) {
		f := newFixture(t)
		history, err := f.svc.SessionHistory(f.ctx, f.group)
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("unknown group is not found", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.SessionHistory(f.ctx, id.GroupID(uuid.New()))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestReport(t *testing.T) {
	t.Run("joins the session with its records", func(t *testing.T) {
		f := newFixture(t)
		now := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
		session, err := rollmodels.NewSession(id.SessionID(uuid.New()), f.group, "derivatives", id.Period("2025-1"), now)
		require.NoError(t, err)
		require.NoError(t, f.sessions.CreateSession(f.ctx, session))
		require.NoError(t, f.sessions.CreateRecord(f.ctx, rollmodels.NewCheckIn(session.ID, f.studentA, now.Add(5*time.Minute))))
		require.NoError(t, f.sessions.CreateRecord(f.ctx, rollmodels.NewAbsence(session.ID, f.studentB, now.Add(30*time.Minute))))

		report, err := f.svc.Report(f.ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, "GRP-A", report.GroupCode)
		assert.Equal(t, "derivatives", report.Topic)
		assert.Equal(t, 1, report.Present)
		assert.Equal(t, 1, report.Absent)
		assert.Len(t, report.Entries, 2)
	})

	t.Run("unknown session is not found", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Report(f.ctx, id.SessionID(uuid.New()))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
