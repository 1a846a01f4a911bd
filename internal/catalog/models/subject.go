package models

import (
	"strings"
	"time"

	id "presente/pkg/domain"
	dErrors "presente/pkg/domain-errors"
)

// Subject is a course of study. Groups hang off subjects; the
// one-group-per-subject-per-period enrollment rule is keyed by subject.
//
// Invariants:
//   - Name and Code are non-empty and unique across subjects
//   - ID is immutable after creation
//   - Deactivation hides the subject from new-group creation but never
//     cascades to existing groups
type Subject struct {
	ID        id.SubjectID `json:"id"`
	Name      string       `json:"name"`
	Code      string       `json:"code"`
	Active    bool         `json:"active"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func NewSubject(subjectID id.SubjectID, name, code string, now time.Time) (*Subject, error) {
	name = strings.TrimSpace(name)
	code = strings.TrimSpace(code)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "subject name cannot be empty")
	}
	if code == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "subject code cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "subject name must be 128 characters or less")
	}
	return &Subject{
		ID:        subjectID,
		Name:      name,
		Code:      code,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *Subject) IsActive() bool { return s.Active }

// Deactivate hides the subject from new-group creation.
func (s *Subject) Deactivate(now time.Time) error {
	if !s.Active {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "subject %s is already inactive", s.Code)
	}
	s.Active = false
	s.UpdatedAt = now
	return nil
}
