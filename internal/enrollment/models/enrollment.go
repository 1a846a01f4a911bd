// Package models holds the enrollment domain types. An enrollment binds a
// student to one group for one academic period; the one-group-per-subject
// rule is enforced by the service, not the database.
package models

import (
	"time"

	id "presente/pkg/domain"
	dErrors "presente/pkg/domain-errors"
)

// Enrollment is the (student, group, period) join row. GroupPeriodID points
// at the binding the enrollment hangs off; GroupID and Period are carried
// denormalized so roster reads never need a second lookup.
type Enrollment struct {
	StudentID     id.StudentID     `json:"student_id"`
	GroupID       id.GroupID       `json:"group_id"`
	GroupPeriodID id.GroupPeriodID `json:"group_period_id"`
	Period        id.Period        `json:"period"`
	CreatedAt     time.Time        `json:"created_at"`
}

func NewEnrollment(studentID id.StudentID, groupID id.GroupID, groupPeriodID id.GroupPeriodID, period id.Period, now time.Time) (*Enrollment, error) {
	if studentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "enrollment requires a student")
	}
	if groupID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "enrollment requires a group")
	}
	if groupPeriodID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "enrollment requires a group period")
	}
	if period.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "enrollment requires a period")
	}
	return &Enrollment{
		StudentID:     studentID,
		GroupID:       groupID,
		GroupPeriodID: groupPeriodID,
		Period:        period,
		CreatedAt:     now,
	}, nil
}
