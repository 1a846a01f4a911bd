package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"presente/internal/rollcall/models"
	id "presente/pkg/domain"
	"presente/pkg/platform/sentinel"
)

type RollcallMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestRollcallMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(RollcallMemoryStoreSuite))
}

func (s *RollcallMemoryStoreSuite) SetupTest() {
	s.store = NewMemory()
	s.ctx = context.Background()
}

func (s *RollcallMemoryStoreSuite) newSession(groupID id.GroupID, date string) *models.Session {
	return &models.Session{
		ID:       id.SessionID(uuid.New()),
		GroupID:  groupID,
		Date:     date,
		Topic:    "integrals",
		Period:   id.Period("2025-1"),
		OpenedAt: time.Now(),
	}
}

func (s *RollcallMemoryStoreSuite) TestSessionRoundTrip() {
	groupID := id.GroupID(uuid.New())
	session := s.newSession(groupID, "2025-03-03")
	s.Require().NoError(s.store.CreateSession(s.ctx, session))

	got, err := s.store.FindSessionByID(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(session.Topic, got.Topic)

	got, err = s.store.FindSessionByGroupAndDate(s.ctx, groupID, "2025-03-03")
	s.Require().NoError(err)
	s.Equal(session.ID, got.ID)
}

func (s *RollcallMemoryStoreSuite) TestOneSessionPerGroupAndDate() {
	groupID := id.GroupID(uuid.New())
	s.Require().NoError(s.store.CreateSession(s.ctx, s.newSession(groupID, "2025-03-03")))

	err := s.store.CreateSession(s.ctx, s.newSession(groupID, "2025-03-03"))
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	s.NoError(s.store.CreateSession(s.ctx, s.newSession(groupID, "2025-03-10")))
}

func (s *RollcallMemoryStoreSuite) TestDeleteSessionCascadesRecords() {
	groupID := id.GroupID(uuid.New())
	session := s.newSession(groupID, "2025-03-03")
	s.Require().NoError(s.store.CreateSession(s.ctx, session))
	studentID := id.StudentID(uuid.New())
	s.Require().NoError(s.store.CreateRecord(s.ctx, models.NewCheckIn(session.ID, studentID, time.Now())))

	s.Require().NoError(s.store.DeleteSession(s.ctx, session.ID))

	_, err := s.store.FindSessionByGroupAndDate(s.ctx, groupID, "2025-03-03")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FindRecord(s.ctx, studentID, session.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	// The freed (group, date) slot is reusable.
	s.NoError(s.store.CreateSession(s.ctx, s.newSession(groupID, "2025-03-03")))
}

func (s *RollcallMemoryStoreSuite) TestRecordUniquePerStudentAndSession() {
	session := s.newSession(id.GroupID(uuid.New()), "2025-03-03")
	s.Require().NoError(s.store.CreateSession(s.ctx, session))
	studentID := id.StudentID(uuid.New())

	s.Require().NoError(s.store.CreateRecord(s.ctx, models.NewCheckIn(session.ID, studentID, time.Now())))
	err := s.store.CreateRecord(s.ctx, models.NewCheckIn(session.ID, studentID, time.Now()))
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *RollcallMemoryStoreSuite) TestRacingRecordsOneWinner() {
	session := s.newSession(id.GroupID(uuid.New()), "2025-03-03")
	s.Require().NoError(s.store.CreateSession(s.ctx, session))
	studentID := id.StudentID(uuid.New())

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.store.CreateRecord(s.ctx, models.NewCheckIn(session.ID, studentID, time.Now()))
		}()
	}
	wg.Wait()
	close(errs)

	var wins int
	for err := range errs {
		if err == nil {
			wins++
		} else {
			s.Require().ErrorIs(err, sentinel.ErrConflict)
		}
	}
	s.Equal(1, wins)
}

func (s *RollcallMemoryStoreSuite) TestBulkCreateAllOrNothing() {
	session := s.newSession(id.GroupID(uuid.New()), "2025-03-03")
	s.Require().NoError(s.store.CreateSession(s.ctx, session))
	existing := id.StudentID(uuid.New())
	s.Require().NoError(s.store.CreateRecord(s.ctx, models.NewCheckIn(session.ID, existing, time.Now())))

	fresh := id.StudentID(uuid.New())
	err := s.store.BulkCreateRecords(s.ctx, []*models.AttendanceRecord{
		models.NewAbsence(session.ID, fresh, time.Now()),
		models.NewAbsence(session.ID, existing, time.Now()),
	})
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	// The fresh row must not have slipped in.
	_, err = s.store.FindRecord(s.ctx, fresh, session.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RollcallMemoryStoreSuite) TestUpdateRecord() {
	session := s.newSession(id.GroupID(uuid.New()), "2025-03-03")
	s.Require().NoError(s.store.CreateSession(s.ctx, session))
	studentID := id.StudentID(uuid.New())
	record := models.NewCheckIn(session.ID, studentID, time.Now())
	s.Require().NoError(s.store.CreateRecord(s.ctx, record))

	record.Toggle(time.Now())
	s.Require().NoError(s.store.UpdateRecord(s.ctx, record))

	got, err := s.store.FindRecord(s.ctx, studentID, session.ID)
	s.Require().NoError(err)
	s.False(got.Present)

	missing := models.NewCheckIn(session.ID, id.StudentID(uuid.New()), time.Now())
	s.Require().ErrorIs(s.store.UpdateRecord(s.ctx, missing), sentinel.ErrNotFound)
}

func (s *RollcallMemoryStoreSuite) TestListSessionsByGroupSortedByDate() {
	groupID := id.GroupID(uuid.New())
	s.Require().NoError(s.store.CreateSession(s.ctx, s.newSession(groupID, "2025-03-10")))
	s.Require().NoError(s.store.CreateSession(s.ctx, s.newSession(groupID, "2025-03-03")))
	s.Require().NoError(s.store.CreateSession(s.ctx, s.newSession(id.GroupID(uuid.New()), "2025-03-01")))

	sessions, err := s.store.ListSessionsByGroup(s.ctx, groupID)
	s.Require().NoError(err)
	s.Require().Len(sessions, 2)
	s.Equal("2025-03-03", sessions[0].Date)
	s.Equal("2025-03-10", sessions[1].Date)
}
