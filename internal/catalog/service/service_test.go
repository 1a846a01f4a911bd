package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presente/internal/catalog/store"
	id "presente/pkg/domain"
	dErrors "presente/pkg/domain-errors"
	"presente/pkg/requestcontext"
)

func newTestService() (*Service, context.Context) {
	svc := New(store.NewMemory())
	ctx := requestcontext.WithTime(context.Background(), time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC))
	return svc, ctx
}

func TestCreateSubject(t *testing.T) {
	svc, ctx := newTestService()

	subject, err := svc.CreateSubject(ctx, "  Mathematics  ", "MATH-101")
	require.NoError(t, err)
	assert.Equal(t, "Mathematics", subject.Name)
	assert.True(t, subject.Active)

	t.Run("duplicate code conflicts", func(t *testing.T) {
		_, err := svc.CreateSubject(ctx, "Other", "MATH-101")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("duplicate name conflicts", func(t *testing.T) {
		_, err := svc.CreateSubject(ctx, "Mathematics", "MATH-102")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("empty name is a validation error", func(t *testing.T) {
		_, err := svc.CreateSubject(ctx, "   ", "EMPTY-1")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestDeactivateSubject(t *testing.T) {
	svc, ctx := newTestService()
	subject, err := svc.CreateSubject(ctx, "Mathematics", "MATH-101")
	require.NoError(t, err)

	deactivated, err := svc.DeactivateSubject(ctx, subject.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.Active)

	t.Run("second deactivation conflicts", func(t *testing.T) {
		_, err := svc.DeactivateSubject(ctx, subject.ID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("unknown subject is not found", func(t *testing.T) {
		_, err := svc.DeactivateSubject(ctx, id.SubjectID(uuid.New()))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("inactive subject rejects new groups", func(t *testing.T) {
		_, err := svc.CreateGroup(ctx, subject.ID, "Section A", "MATH-101-A")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func TestCreateGroup(t *testing.T) {
	svc, ctx := newTestService()
	subject, err := svc.CreateSubject(ctx, "Mathematics", "MATH-101")
	require.NoError(t, err)

	group, err := svc.CreateGroup(ctx, subject.ID, "Section A", "MATH-101-A")
	require.NoError(t, err)
	assert.Equal(t, subject.ID, group.SubjectID)
	assert.False(t, group.SessionOpen)

	t.Run("duplicate group code conflicts", func(t *testing.T) {
		_, err := svc.CreateGroup(ctx, subject.ID, "Section A again", "MATH-101-A")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("unknown subject is not found", func(t *testing.T) {
		_, err := svc.CreateGroup(ctx, id.SubjectID(uuid.New()), "Orphan", "ORPHAN-A")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestAddScheduleToGroup(t *testing.T) {
	svc, ctx := newTestService()
	subject, err := svc.CreateSubject(ctx, "Mathematics", "MATH-101")
	require.NoError(t, err)
	group, err := svc.CreateGroup(ctx, subject.ID, "Section A", "MATH-101-A")
	require.NoError(t, err)

	first, err := svc.AddScheduleToGroup(ctx, group.ID, 1, "08:00", "10:00")
	require.NoError(t, err)

	t.Run("identical window on same group is a no-op", func(t *testing.T) {
		again, err := svc.AddScheduleToGroup(ctx, group.ID, 1, "08:00", "10:00")
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)

		schedules, err := svc.ListSchedules(ctx, group.ID)
		require.NoError(t, err)
		assert.Len(t, schedules, 1)
	})

	t.Run("identical window on another group reuses the row", func(t *testing.T) {
		other, err := svc.CreateGroup(ctx, subject.ID, "Section B", "MATH-101-B")
		require.NoError(t, err)
		shared, err := svc.AddScheduleToGroup(ctx, other.ID, 1, "08:00", "10:00")
		require.NoError(t, err)
		assert.Equal(t, first.ID, shared.ID)
	})

	t.Run("invalid window is a validation error", func(t *testing.T) {
		_, err := svc.AddScheduleToGroup(ctx, group.ID, 1, "10:00", "08:00")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = svc.AddScheduleToGroup(ctx, group.ID, 9, "08:00", "10:00")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("remove then list", func(t *testing.T) {
		require.NoError(t, svc.RemoveScheduleFromGroup(ctx, group.ID, first.ID))
		schedules, err := svc.ListSchedules(ctx, group.ID)
		require.NoError(t, err)
		assert.Empty(t, schedules)

		err = svc.RemoveScheduleFromGroup(ctx, group.ID, first.ID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestRegisterMembers(t *testing.T) {
	svc, ctx := newTestService()

	studentID := id.StudentID(uuid.New())
	student, err := svc.RegisterStudent(ctx, studentID, "phone-1")
	require.NoError(t, err)
	assert.True(t, student.Active)

	_, err = svc.RegisterStudent(ctx, studentID, "phone-2")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

	teacherID := id.TeacherID(uuid.New())
	teacher, err := svc.RegisterTeacher(ctx, teacherID)
	require.NoError(t, err)
	assert.True(t, teacher.Active)

	_, err = svc.RegisterTeacher(ctx, teacherID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}
