package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"presente/internal/catalog/models"
	id "presente/pkg/domain"
	"presente/pkg/platform/sentinel"
)

type CatalogMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	now   time.Time
}

func (s *CatalogMemoryStoreSuite) SetupTest() {
	s.store = NewMemory()
	s.ctx = context.Background()
	s.now = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
}

func TestCatalogMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(CatalogMemoryStoreSuite))
}

func (s *CatalogMemoryStoreSuite) mustSubject(code string) *models.Subject {
	subject, err := models.NewSubject(id.SubjectID(uuid.New()), "Subject "+code, code, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateSubject(s.ctx, subject))
	return subject
}

func (s *CatalogMemoryStoreSuite) mustGroup(subjectID id.SubjectID, code string) *models.Group {
	group, err := models.NewGroup(id.GroupID(uuid.New()), subjectID, "Group "+code, code, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateGroup(s.ctx, group))
	return group
}

func (s *CatalogMemoryStoreSuite) TestSubjectRoundTrip() {
	subject := s.mustSubject("MATH-101")

	found, err := s.store.FindSubjectByID(s.ctx, subject.ID)
	s.Require().NoError(err)
	s.Equal(subject.Code, found.Code)
	s.True(found.Active)
}

func (s *CatalogMemoryStoreSuite) TestSubjectCodeIsUnique() {
	s.mustSubject("MATH-101")

	duplicate, err := models.NewSubject(id.SubjectID(uuid.New()), "Other name", "MATH-101", s.now)
	s.Require().NoError(err)
	err = s.store.CreateSubject(s.ctx, duplicate)
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *CatalogMemoryStoreSuite) TestSubjectNameIsUnique() {
	subject := s.mustSubject("MATH-101")

	duplicate, err := models.NewSubject(id.SubjectID(uuid.New()), subject.Name, "MATH-102", s.now)
	s.Require().NoError(err)
	err = s.store.CreateSubject(s.ctx, duplicate)
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *CatalogMemoryStoreSuite) TestFindSubjectMissing() {
	_, err := s.store.FindSubjectByID(s.ctx, id.SubjectID(uuid.New()))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *CatalogMemoryStoreSuite) TestGroupRequiresExistingSubject() {
	group, err := models.NewGroup(id.GroupID(uuid.New()), id.SubjectID(uuid.New()), "Orphan", "ORPHAN-A", s.now)
	s.Require().NoError(err)
	err = s.store.CreateGroup(s.ctx, group)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *CatalogMemoryStoreSuite) TestGroupCodeIsUnique() {
	subject := s.mustSubject("MATH-101")
	s.mustGroup(subject.ID, "MATH-101-A")

	duplicate, err := models.NewGroup(id.GroupID(uuid.New()), subject.ID, "Another", "MATH-101-A", s.now)
	s.Require().NoError(err)
	err = s.store.CreateGroup(s.ctx, duplicate)
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *CatalogMemoryStoreSuite) TestListGroupsBySubjectSortsByCode() {
	subject := s.mustSubject("MATH-101")
	other := s.mustSubject("PHYS-101")
	s.mustGroup(subject.ID, "MATH-101-B")
	s.mustGroup(subject.ID, "MATH-101-A")
	s.mustGroup(other.ID, "PHYS-101-A")

	groups, err := s.store.ListGroupsBySubject(s.ctx, subject.ID)
	s.Require().NoError(err)
	s.Require().Len(groups, 2)
	s.Equal("MATH-101-A", groups[0].Code)
	s.Equal("MATH-101-B", groups[1].Code)
}

func (s *CatalogMemoryStoreSuite) TestClaimSessionTransition() {
	subject := s.mustSubject("MATH-101")
	group := s.mustGroup(subject.ID, "MATH-101-A")

	s.Require().NoError(s.store.ClaimSessionTransition(s.ctx, group.ID, false, true))

	found, err := s.store.FindGroupByID(s.ctx, group.ID)
	s.Require().NoError(err)
	s.True(found.SessionOpen)

	err = s.store.ClaimSessionTransition(s.ctx, group.ID, false, true)
	s.Require().ErrorIs(err, sentinel.ErrInvalidState)

	err = s.store.ClaimSessionTransition(s.ctx, id.GroupID(uuid.New()), false, true)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *CatalogMemoryStoreSuite) TestClaimSessionTransitionSingleWinner() {
	subject := s.mustSubject("MATH-101")
	group := s.mustGroup(subject.ID, "MATH-101-A")

	const attempts = 50
	var wg sync.WaitGroup
	wins := make(chan struct{}, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.store.ClaimSessionTransition(s.ctx, group.ID, false, true); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for range wins {
		won++
	}
	s.Equal(1, won, "exactly one opener may win the claim")
}

func (s *CatalogMemoryStoreSuite) TestEnsureScheduleDeduplicates() {
	first, err := models.NewSchedule(id.ScheduleID(uuid.New()), 1, "08:00", "10:00")
	s.Require().NoError(err)
	stored, err := s.store.EnsureSchedule(s.ctx, first)
	s.Require().NoError(err)
	s.Equal(first.ID, stored.ID)

	second, err := models.NewSchedule(id.ScheduleID(uuid.New()), 1, "08:00", "10:00")
	s.Require().NoError(err)
	reused, err := s.store.EnsureSchedule(s.ctx, second)
	s.Require().NoError(err)
	s.Equal(first.ID, reused.ID, "identical tuple reuses the existing row")
}

func (s *CatalogMemoryStoreSuite) TestScheduleLinking() {
	subject := s.mustSubject("MATH-101")
	group := s.mustGroup(subject.ID, "MATH-101-A")
	schedule, err := models.NewSchedule(id.ScheduleID(uuid.New()), 1, "08:00", "10:00")
	s.Require().NoError(err)
	_, err = s.store.EnsureSchedule(s.ctx, schedule)
	s.Require().NoError(err)

	s.Require().NoError(s.store.LinkSchedule(s.ctx, group.ID, schedule.ID))

	err = s.store.LinkSchedule(s.ctx, group.ID, schedule.ID)
	s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)

	listed, err := s.store.ListSchedulesByGroup(s.ctx, group.ID)
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal(schedule.ID, listed[0].ID)

	s.Require().NoError(s.store.UnlinkSchedule(s.ctx, group.ID, schedule.ID))
	err = s.store.UnlinkSchedule(s.ctx, group.ID, schedule.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *CatalogMemoryStoreSuite) TestUpsertGroupPeriodIsIdempotentPerPeriod() {
	subject := s.mustSubject("MATH-101")
	group := s.mustGroup(subject.ID, "MATH-101-A")
	period := id.Period("2025-1")

	first := &models.GroupPeriod{
		ID: id.GroupPeriodID(uuid.New()), GroupID: group.ID, Period: period,
		CreatedAt: s.now, UpdatedAt: s.now,
	}
	created, err := s.store.UpsertGroupPeriod(s.ctx, first)
	s.Require().NoError(err)
	s.False(created.HasTeacher())

	teacherID := id.TeacherID(uuid.New())
	second := &models.GroupPeriod{
		ID: id.GroupPeriodID(uuid.New()), GroupID: group.ID, Period: period,
		TeacherID: &teacherID, CreatedAt: s.now, UpdatedAt: s.now.Add(time.Hour),
	}
	updated, err := s.store.UpsertGroupPeriod(s.ctx, second)
	s.Require().NoError(err)
	s.Equal(created.ID, updated.ID, "row identity is stable across upserts")
	s.True(updated.TaughtBy(teacherID))

	found, err := s.store.FindGroupPeriod(s.ctx, group.ID, period)
	s.Require().NoError(err)
	s.True(found.TaughtBy(teacherID))
}

func (s *CatalogMemoryStoreSuite) TestListGroupPeriodsByTeacherFiltersPeriod() {
	subject := s.mustSubject("MATH-101")
	groupA := s.mustGroup(subject.ID, "MATH-101-A")
	groupB := s.mustGroup(subject.ID, "MATH-101-B")
	teacherID := id.TeacherID(uuid.New())

	for _, binding := range []struct {
		group  *models.Group
		period id.Period
	}{
		{groupA, "2025-1"},
		{groupB, "2025-2"},
	} {
		_, err := s.store.UpsertGroupPeriod(s.ctx, &models.GroupPeriod{
			ID: id.GroupPeriodID(uuid.New()), GroupID: binding.group.ID, Period: binding.period,
			TeacherID: &teacherID, CreatedAt: s.now, UpdatedAt: s.now,
		})
		s.Require().NoError(err)
	}

	listed, err := s.store.ListGroupPeriodsByTeacher(s.ctx, teacherID, "2025-1")
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal(groupA.ID, listed[0].GroupID)
}

func (s *CatalogMemoryStoreSuite) TestStudentPhoneIsUnique() {
	first, err := models.NewStudent(id.StudentID(uuid.New()), "phone-1", s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateStudent(s.ctx, first))

	second, err := models.NewStudent(id.StudentID(uuid.New()), "phone-1", s.now)
	s.Require().NoError(err)
	err = s.store.CreateStudent(s.ctx, second)
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *CatalogMemoryStoreSuite) TestTeacherRoundTrip() {
	teacher, err := models.NewTeacher(id.TeacherID(uuid.New()), s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateTeacher(s.ctx, teacher))

	found, err := s.store.FindTeacherByID(s.ctx, teacher.ID)
	s.Require().NoError(err)
	s.True(found.Active)

	_, err = s.store.FindTeacherByID(s.ctx, id.TeacherID(uuid.New()))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
