package domain

import (
	dErrors "presente/pkg/domain-errors"
)

// Role is the caller's role as asserted by the identity provider. Dispatch on
// roles is always an exhaustive switch; adding a role is a compile-visible
// change, not a new magic string.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleTeacher Role = "TEACHER"
	RoleAdmin   Role = "ADMIN"
)

// ParseRole validates a role token from an identity assertion.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return Role(s), nil
	default:
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown role %q", s)
	}
}

func (r Role) String() string { return string(r) }

// Privileged reports whether the role may drive session transitions and
// manual corrections. Catalog mutations additionally require RoleAdmin.
func (r Role) Privileged() bool {
	return r == RoleTeacher || r == RoleAdmin
}
