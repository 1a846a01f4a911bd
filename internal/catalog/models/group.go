package models

import (
	"strings"
	"time"

	id "presente/pkg/domain"
	dErrors "presente/pkg/domain-errors"
)

// Group is one section of a subject. Its SessionOpen flag is the roll-call
// state machine: false is Closed, true is Open, and every transition goes
// through the store's compare-and-set so Open/Close/Cancel are mutually
// exclusive per group.
//
// Invariants:
//   - Code is non-empty and unique across groups
//   - A group belongs to exactly one subject, fixed at creation
//   - SessionOpen only changes through ClaimSessionTransition
type Group struct {
	ID          id.GroupID   `json:"id"`
	SubjectID   id.SubjectID `json:"subject_id"`
	Name        string       `json:"name"`
	Code        string       `json:"code"`
	SessionOpen bool         `json:"session_open"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func NewGroup(groupID id.GroupID, subjectID id.SubjectID, name, code string, now time.Time) (*Group, error) {
	name = strings.TrimSpace(name)
	code = strings.TrimSpace(code)
	if subjectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "group requires a subject")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "group name cannot be empty")
	}
	if code == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "group code cannot be empty")
	}
	return &Group{
		ID:        groupID,
		SubjectID: subjectID,
		Name:      name,
		Code:      code,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
