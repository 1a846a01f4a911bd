package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogsvc "presente/internal/catalog/service"
	catalogstore "presente/internal/catalog/store"
	enrollsvc "presente/internal/enrollment/service"
	enrollstore "presente/internal/enrollment/store"
	"presente/internal/rollcall/models"
	"presente/internal/rollcall/store"
	id "presente/pkg/domain"
	dErrors "presente/pkg/domain-errors"
	"presente/pkg/requestcontext"
)

const testPeriod = id.Period("2025-1")

// monday is a known Monday; the fixture group's only schedule window is
// Monday 08:00-10:00.
var monday = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	sessions *store.InMemoryStore

	group    id.GroupID
	teacher  id.TeacherID
	studentA id.StudentID
	studentB id.StudentID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog := catalogstore.NewMemory()
	catSvc := catalogsvc.New(catalog)
	seedCtx := requestcontext.WithTime(context.Background(), monday.Add(9*time.Hour))

	math, err := catSvc.CreateSubject(seedCtx, "Mathematics", "MAT-1")
	require.NoError(t, err)
	group, err := catSvc.CreateGroup(seedCtx, math.ID, "Group A", "GRP-A")
	require.NoError(t, err)
	_, err = catSvc.AddScheduleToGroup(seedCtx, group.ID, 1, "08:00", "10:00")
	require.NoError(t, err)

	teacherID := id.TeacherID(uuid.New())
	_, err = catSvc.RegisterTeacher(seedCtx, teacherID)
	require.NoError(t, err)
	studentA := id.StudentID(uuid.New())
	_, err = catSvc.RegisterStudent(seedCtx, studentA, "")
	require.NoError(t, err)
	studentB := id.StudentID(uuid.New())
	_, err = catSvc.RegisterStudent(seedCtx, studentB, "")
	require.NoError(t, err)

	enrollment := enrollsvc.New(enrollstore.NewMemory(), catalog)
	_, err = enrollment.AssignGroupsToTeacher(seedCtx, teacherID, []id.GroupID{group.ID}, testPeriod)
	require.NoError(t, err)
	for _, studentID := range []id.StudentID{studentA, studentB} {
		result, err := enrollment.AssignGroupsToStudent(seedCtx, studentID, []id.GroupID{group.ID}, testPeriod)
		require.NoError(t, err)
		require.Empty(t, result.Omitted)
	}

	sessions := store.NewMemory()
	return &fixture{
		svc:      New(sessions, catalog, enrollment),
		sessions: sessions,
		group:    group.ID,
		teacher:  teacherID,
		studentA: studentA,
		studentB: studentB,
	}
}

// teacherAt pins the clock to Monday hh:mm and authenticates the fixture
// teacher.
func (f *fixture) teacherAt(hh, mm int) context.Context {
	ctx := requestcontext.WithTime(context.Background(), monday.Add(time.Duration(hh)*time.Hour+time.Duration(mm)*time.Minute))
	ctx = requestcontext.WithRole(ctx, id.RoleTeacher)
	return requestcontext.WithUserID(ctx, uuid.UUID(f.teacher))
}

func (f *fixture) studentAt(studentID id.StudentID, hh, mm int) context.Context {
	ctx := requestcontext.WithTime(context.Background(), monday.Add(time.Duration(hh)*time.Hour+time.Duration(mm)*time.Minute))
	ctx = requestcontext.WithRole(ctx, id.RoleStudent)
	return requestcontext.WithUserID(ctx, uuid.UUID(studentID))
}

func (f *fixture) open(t *testing.T) *models.Session {
	t.Helper()
	session, err := f.svc.OpenSession(f.teacherAt(9, 0), f.group, "limits and continuity", testPeriod)
	require.NoError(t, err)
	return session
}

func TestOpenSession(t *testing.T) {
	t.Run("opens inside the scheduled window", func(t *testing.T) {
		f := newFixture(t)
		session := f.open(t)
		assert.Equal(t, "2025-03-03", session.Date)
		assert.Equal(t, testPeriod, session.Period)
		assert.Equal(t, "limits and continuity", session.Topic)
	})

	t.Run("rejects a clock outside every window", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.OpenSession(f.teacherAt(11, 0), f.group, "late start", testPeriod)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects the right time on the wrong weekday", func(t *testing.T) {
		f := newFixture(t)
		tuesday := requestcontext.WithTime(context.Background(), monday.AddDate(0, 0, 1).Add(9*time.Hour))
		tuesday = requestcontext.WithRole(tuesday, id.RoleTeacher)
		tuesday = requestcontext.WithUserID(tuesday, uuid.UUID(f.teacher))
		_, err := f.svc.OpenSession(tuesday, f.group, "wrong day", testPeriod)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("second open while live conflicts", func(t *testing.T) {
		f := newFixture(t)
		f.open(t)
		_, err := f.svc.OpenSession(f.teacherAt(9, 10), f.group, "again", testPeriod)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("reopening the same date after close conflicts", func(t *testing.T) {
		f := newFixture(t)
		f.open(t)
		_, err := f.svc.CloseSession(f.teacherAt(9, 30), f.group)
		require.NoError(t, err)

		_, err = f.svc.OpenSession(f.teacherAt(9, 40), f.group, "second run", testPeriod)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("requires a teacher of the group or an admin", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.OpenSession(f.studentAt(f.studentA, 9, 0), f.group, "nope", testPeriod)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

		stranger := requestcontext.WithTime(context.Background(), monday.Add(9*time.Hour))
		stranger = requestcontext.WithRole(stranger, id.RoleTeacher)
		stranger = requestcontext.WithUserID(stranger, uuid.New())
		_, err = f.svc.OpenSession(stranger, f.group, "nope", testPeriod)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

		admin := requestcontext.WithTime(context.Background(), monday.Add(9*time.Hour))
		admin = requestcontext.WithRole(admin, id.RoleAdmin)
		_, err = f.svc.OpenSession(admin, f.group, "coordinator cover", testPeriod)
		require.NoError(t, err)
	})

	t.Run("unknown group", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.OpenSession(f.teacherAt(9, 0), id.GroupID(uuid.New()), "ghost", testPeriod)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestCheckIn(t *testing.T) {
	t.Run("records the student as present", func(t *testing.T) {
		f := newFixture(t)
		session := f.open(t)

		record, err := f.svc.CheckIn(f.studentAt(f.studentA, 9, 5), f.group, f.studentA, nil)
		require.NoError(t, err)
		assert.True(t, record.Present)
		assert.Equal(t, session.ID, record.SessionID)
	})

	t.Run("second check-in conflicts and leaves one row", func(t *testing.T) {
		f := newFixture(t)
		session := f.open(t)

		_, err := f.svc.CheckIn(f.studentAt(f.studentA, 9, 5), f.group, f.studentA, nil)
		require.NoError(t, err)
		_, err = f.svc.CheckIn(f.studentAt(f.studentA, 9, 6), f.group, f.studentA, nil)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

		records, err := f.sessions.ListRecordsBySession(context.Background(), session.ID)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("racing check-ins yield exactly one winner", func(t *testing.T) {
		f := newFixture(t)
		session := f.open(t)
		ctx := f.studentAt(f.studentA, 9, 5)

		var wg sync.WaitGroup
		results := make(chan error, 20)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.svc.CheckIn(ctx, f.group, f.studentA, nil)
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		var wins, conflicts int
		for err := range results {
			if err == nil {
				wins++
				continue
			}
			require.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
			conflicts++
		}
		assert.Equal(t, 1, wins)
		assert.Equal(t, 19, conflicts)

		records, err := f.sessions.ListRecordsBySession(context.Background(), session.ID)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("unenrolled student is forbidden", func(t *testing.T) {
		f := newFixture(t)
		f.open(t)

		outsider := id.StudentID(uuid.New())
		_, err := f.svc.CheckIn(f.studentAt(outsider, 9, 5), f.group, outsider, nil)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("no open session", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.CheckIn(f.studentAt(f.studentA, 9, 5), f.group, f.studentA, nil)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

type denyGeo struct{}

func (denyGeo) IsWithinCampus(_, _ float64) bool { return false }

func TestCheckInGeofence(t *testing.T) {
	f := newFixture(t)
	f.svc.geo = denyGeo{}
	f.open(t)

	_, err := f.svc.CheckIn(f.studentAt(f.studentA, 9, 5), f.group, f.studentA, &Coordinates{Lat: 0, Lon: 0})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	// A check-in without coordinates passes the gate.
	_, err = f.svc.CheckIn(f.studentAt(f.studentA, 9, 6), f.group, f.studentA, nil)
	require.NoError(t, err)
}

func TestCloseSession(t *testing.T) {
	t.Run("writes an absent row per missing roster member", func(t *testing.T) {
		f := newFixture(t)
		session := f.open(t)

		_, err := f.svc.CheckIn(f.studentAt(f.studentA, 9, 5), f.group, f.studentA, nil)
		require.NoError(t, err)

		closed, err := f.svc.CloseSession(f.teacherAt(9, 30), f.group)
		require.NoError(t, err)
		assert.Equal(t, session.ID, closed.ID)

		records, err := f.sessions.ListRecordsBySession(context.Background(), session.ID)
		require.NoError(t, err)
		require.Len(t, records, 2)
		byStudent := make(map[id.StudentID]bool, len(records))
		for _, record := range records {
			byStudent[record.StudentID] = record.Present
		}
		assert.True(t, byStudent[f.studentA])
		assert.False(t, byStudent[f.studentB])
	})

	t.Run("close without an open session is not found", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.CloseSession(f.teacherAt(9, 30), f.group)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("double close is not found", func(t *testing.T) {
		f := newFixture(t)
		f.open(t)
		_, err := f.svc.CloseSession(f.teacherAt(9, 30), f.group)
		require.NoError(t, err)
		_, err = f.svc.CloseSession(f.teacherAt(9, 31), f.group)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestCancelSession(t *testing.T) {
	t.Run("discards the session and its records", func(t *testing.T) {
		f := newFixture(t)
		session := f.open(t)
		_, err := f.svc.CheckIn(f.studentAt(f.studentA, 9, 5), f.group, f.studentA, nil)
		require.NoError(t, err)

		require.NoError(t, f.svc.CancelSession(f.teacherAt(9, 10), f.group))

		_, err = f.sessions.FindSessionByID(context.Background(), session.ID)
		require.Error(t, err)
		records, err := f.sessions.ListRecordsBySession(context.Background(), session.ID)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("close after cancel is not found", func(t *testing.T) {
		f := newFixture(t)
		f.open(t)
		require.NoError(t, f.svc.CancelSession(f.teacherAt(9, 10), f.group))

		_, err := f.svc.CloseSession(f.teacherAt(9, 30), f.group)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("a cancelled date can be reopened", func(t *testing.T) {
		f := newFixture(t)
		f.open(t)
		require.NoError(t, f.svc.CancelSession(f.teacherAt(9, 10), f.group))

		_, err := f.svc.OpenSession(f.teacherAt(9, 15), f.group, "take two", testPeriod)
		require.NoError(t, err)
	})

	t.Run("cancel without an open session is not found", func(t *testing.T) {
		f := newFixture(t)
		err := f.svc.CancelSession(f.teacherAt(9, 10), f.group)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestToggleCheckIn(t *testing.T) {
	t.Run("flips present to absent and back", func(t *testing.T) {
		f := newFixture(t)
		f.open(t)
		_, err := f.svc.CheckIn(f.studentAt(f.studentA, 9, 5), f.group, f.studentA, nil)
		require.NoError(t, err)

		record, err := f.svc.ToggleCheckIn(f.teacherAt(9, 20), f.group, f.studentA, "")
		require.NoError(t, err)
		assert.False(t, record.Present)

		record, err = f.svc.ToggleCheckIn(f.teacherAt(9, 21), f.group, f.studentA, "")
		require.NoError(t, err)
		assert.True(t, record.Present)
	})

	t.Run("corrects a reconciled absence on a past date", func(t *testing.T) {
		f := newFixture(t)
		f.open(t)
		_, err := f.svc.CloseSession(f.teacherAt(9, 30), f.group)
		require.NoError(t, err)

		record, err := f.svc.ToggleCheckIn(f.teacherAt(14, 0), f.group, f.studentB, "2025-03-03")
		require.NoError(t, err)
		assert.True(t, record.Present)
	})

	t.Run("reports the first missing entity", func(t *testing.T) {
		f := newFixture(t)
		f.open(t)

		_, err := f.svc.ToggleCheckIn(f.teacherAt(9, 20), f.group, id.StudentID(uuid.New()), "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "student")

		_, err = f.svc.ToggleCheckIn(f.teacherAt(9, 20), id.GroupID(uuid.New()), f.studentA, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "group")

		_, err = f.svc.ToggleCheckIn(f.teacherAt(9, 20), f.group, f.studentA, "2025-02-24")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "roll call")

		f2 := newFixture(t)
		f2.open(t)
		_, err = f2.svc.ToggleCheckIn(f2.teacherAt(9, 20), f2.group, f2.studentA, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "attendance record")
	})

	t.Run("rejects a malformed date override", func(t *testing.T) {
		f := newFixture(t)
		f.open(t)
		_, err := f.svc.ToggleCheckIn(f.teacherAt(9, 20), f.group, f.studentA, "03/03/2025")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

type blockedLease struct{}

func (blockedLease) Acquire(_ context.Context, _ id.GroupID) (bool, error) { return false, nil }
func (blockedLease) Release(_ context.Context, _ id.GroupID) error { return nil }

func TestSessionLeaseBlocksTransitions(t *testing.T) {
	f := newFixture(t)
	f.svc.lease = blockedLease{}

	_, err := f.svc.OpenSession(f.teacherAt(9, 0), f.group, "held", testPeriod)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

// TestMondayLecture walks the full roll-call lifecycle: open inside the
// Monday 08:00-10:00 window, one self check-in, close with reconciliation.
func TestMondayLecture(t *testing.T) {
	f := newFixture(t)

	session, err := f.svc.OpenSession(f.teacherAt(9, 0), f.group, "derivatives", testPeriod)
	require.NoError(t, err)

	_, err = f.svc.CheckIn(f.studentAt(f.studentA, 9, 5), f.group, f.studentA, nil)
	require.NoError(t, err)

	_, err = f.svc.CloseSession(f.teacherAt(9, 30), f.group)
	require.NoError(t, err)

	records, err := f.sessions.ListRecordsBySession(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, records, 2, "every roster member has exactly one record")

	byStudent := make(map[id.StudentID]bool, len(records))
	for _, record := range records {
		byStudent[record.StudentID] = record.Present
	}
	assert.True(t, byStudent[f.studentA], "checked-in student is present")
	assert.False(t, byStudent[f.studentB], "silent student is absent")
}
