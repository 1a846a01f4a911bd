package models

import (
	"time"

	id "presente/pkg/domain"
)

// GroupPeriod binds a group to one academic period, optionally naming the
// teacher running it. At most one row exists per (group, period); edits
// upsert in place rather than duplicating.
type GroupPeriod struct {
	ID        id.GroupPeriodID `json:"id"`
	GroupID   id.GroupID       `json:"group_id"`
	Period    id.Period        `json:"period"`
	TeacherID *id.TeacherID    `json:"teacher_id,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// HasTeacher reports whether a teacher is bound for the period.
func (gp *GroupPeriod) HasTeacher() bool {
	return gp.TeacherID != nil && !gp.TeacherID.IsNil()
}

// TaughtBy reports whether the bound teacher is exactly teacherID.
func (gp *GroupPeriod) TaughtBy(teacherID id.TeacherID) bool {
	return gp.HasTeacher() && *gp.TeacherID == teacherID
}
