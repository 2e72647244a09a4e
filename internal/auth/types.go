package auth

import (
	"errors"
	"regexp"
	"slices"
)

// subjectPattern defines the valid format for token subjects:
// alphanumeric, dots, hyphens, underscores, 1-64 characters.
var subjectPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// IsValidSubject checks if a subject meets format requirements.
func IsValidSubject(subject string) bool {
	return subjectPattern.MatchString(subject)
}

// Role represents an authorisation tier.
type Role string

const (
	// RoleViewer can observe but not switch anything.
	RoleViewer Role = "viewer"

	// RoleOperator can switch plugs and probe devices.
	RoleOperator Role = "operator"

	// RoleAdmin can additionally force directory refreshes.
	RoleAdmin Role = "admin"
)

// ValidRoles is the set of roles a token may carry.
var ValidRoles = []Role{RoleViewer, RoleOperator, RoleAdmin}

// IsValidRole returns true if r is one of ValidRoles.
func IsValidRole(r Role) bool {
	return slices.Contains(ValidRoles, r)
}

// Sentinel errors for token handling.
var (
	ErrTokenInvalid   = errors.New("invalid token")
	ErrInvalidSubject = errors.New("invalid token subject")
	ErrInvalidRole    = errors.New("invalid role")
	ErrSecretTooShort = errors.New("jwt secret too short")
)
