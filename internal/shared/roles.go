// Package shared holds cross-cutting identity primitives used by the account
// and authorization layers.
package shared

import "fmt"

// Role is a closed enumeration of account roles.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole validates a raw role value against the known set.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("shared: unknown role %q", raw)
	}
}

// Valid reports whether the role is a member of the known set.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}
