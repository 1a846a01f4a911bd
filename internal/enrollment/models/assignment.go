package models

import id "presente/pkg/domain"

// SkipReason classifies why a batch item was omitted rather than failed.
// Omissions are outcomes, not errors: the batch keeps processing.
type SkipReason string

const (
	SkipAlreadyAssigned SkipReason = "already_assigned"
	SkipSubjectConflict SkipReason = "subject_conflict"
	SkipGroupNotFound   SkipReason = "group_not_found"
	SkipTeacherTaken    SkipReason = "group_already_has_teacher"
)

// Omission names one skipped group and why, with a human-readable detail
// naming the conflicting entity.
type Omission struct {
	GroupID id.GroupID `json:"group_id"`
	Reason  SkipReason `json:"reason"`
	Detail  string     `json:"detail,omitempty"`
}

// AssignmentResult is the per-item outcome of a batch assignment. Registered
// preserves input order.
type AssignmentResult struct {
	Registered []id.GroupID `json:"registered"`
	Omitted    []Omission   `json:"omitted"`
}
