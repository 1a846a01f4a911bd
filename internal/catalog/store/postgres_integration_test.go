//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"presente/internal/catalog/models"
	"presente/internal/catalog/store"
	id "presente/pkg/domain"
	"presente/pkg/platform/sentinel"
	"presente/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx,
		"attendance_records", "sessions", "enrollments", "group_periods",
		"group_schedules", "schedules", "groups", "subjects", "students", "teachers",
	)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) mustSubject(code string) *models.Subject {
	subject, err := models.NewSubject(id.SubjectID(uuid.New()), "Subject "+code, code, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateSubject(context.Background(), subject))
	return subject
}

func (s *PostgresStoreSuite) mustGroup(subjectID id.SubjectID, code string) *models.Group {
	group, err := models.NewGroup(id.GroupID(uuid.New()), subjectID, "Group "+code, code, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateGroup(context.Background(), group))
	return group
}

func (s *PostgresStoreSuite) TestSubjectRoundTrip() {
	ctx := context.Background()
	subject := s.mustSubject("MAT-1")

	got, err := s.store.FindSubjectByID(ctx, subject.ID)
	s.Require().NoError(err)
	s.Equal(subject.Code, got.Code)
	s.True(got.Active)
}

func (s *PostgresStoreSuite) TestSubjectCodeUnique() {
	ctx := context.Background()
	s.mustSubject("MAT-1")

	dup, err := models.NewSubject(id.SubjectID(uuid.New()), "Duplicate", "MAT-1", time.Now())
	s.Require().NoError(err)
	s.Require().ErrorIs(s.store.CreateSubject(ctx, dup), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestConcurrentSessionTransitionOneWinner() {
	ctx := context.Background()
	subject := s.mustSubject("MAT-1")
	group := s.mustGroup(subject.ID, "MAT-1-A")

	const goroutines = 50
	var wg sync.WaitGroup
	var wins, invalid atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.ClaimSessionTransition(ctx, group.ID, false, true)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, sentinel.ErrInvalidState):
				invalid.Add(1)
			default:
				s.T().Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	s.Equal(int32(goroutines-1), invalid.Load())
}

func (s *PostgresStoreSuite) TestEnsureScheduleDeduplicates() {
	ctx := context.Background()

	first, err := models.NewSchedule(id.ScheduleID(uuid.New()), 1, "08:00", "10:00")
	s.Require().NoError(err)
	created, err := s.store.EnsureSchedule(ctx, first)
	s.Require().NoError(err)

	second, err := models.NewSchedule(id.ScheduleID(uuid.New()), 1, "08:00", "10:00")
	s.Require().NoError(err)
	reused, err := s.store.EnsureSchedule(ctx, second)
	s.Require().NoError(err)

	s.Equal(created.ID, reused.ID)
}

func (s *PostgresStoreSuite) TestUpsertGroupPeriodKeepsStableRow() {
	ctx := context.Background()
	subject := s.mustSubject("MAT-1")
	group := s.mustGroup(subject.ID, "MAT-1-A")
	period := id.Period("2025-1")

	now := time.Now()
	first, err := s.store.UpsertGroupPeriod(ctx, &models.GroupPeriod{
		ID: id.GroupPeriodID(uuid.New()), GroupID: group.ID, Period: period,
		CreatedAt: now, UpdatedAt: now,
	})
	s.Require().NoError(err)

	teacherID := id.TeacherID(uuid.New())
	teacher, err := models.NewTeacher(teacherID, now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateTeacher(ctx, teacher))

	second, err := s.store.UpsertGroupPeriod(ctx, &models.GroupPeriod{
		ID: id.GroupPeriodID(uuid.New()), GroupID: group.ID, Period: period,
		TeacherID: &teacherID, CreatedAt: now, UpdatedAt: now,
	})
	s.Require().NoError(err)

	s.Equal(first.ID, second.ID)
	s.Require().NotNil(second.TeacherID)
	s.Equal(teacherID, *second.TeacherID)

	all, err := s.store.ListGroupPeriodsByGroup(ctx, group.ID)
	s.Require().NoError(err)
	s.Len(all, 1)
}

func (s *PostgresStoreSuite) TestScheduleLinkLifecycle() {
	ctx := context.Background()
	subject := s.mustSubject("MAT-1")
	group := s.mustGroup(subject.ID, "MAT-1-A")

	schedule, err := models.NewSchedule(id.ScheduleID(uuid.New()), 1, "08:00", "10:00")
	s.Require().NoError(err)
	created, err := s.store.EnsureSchedule(ctx, schedule)
	s.Require().NoError(err)

	s.Require().NoError(s.store.LinkSchedule(ctx, group.ID, created.ID))
	s.Require().ErrorIs(s.store.LinkSchedule(ctx, group.ID, created.ID), sentinel.ErrAlreadyUsed)

	linked, err := s.store.ListSchedulesByGroup(ctx, group.ID)
	s.Require().NoError(err)
	s.Len(linked, 1)

	s.Require().NoError(s.store.UnlinkSchedule(ctx, group.ID, created.ID))
	s.Require().ErrorIs(s.store.UnlinkSchedule(ctx, group.ID, created.ID), sentinel.ErrNotFound)
}
