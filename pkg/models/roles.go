package models

import (
	"fmt"
	"slices"
	"strings"
)

// Role represents the access level attached to a session.
type Role string

const (
	RoleGuest Role = "guest" // no session, only the sign-in surface is reachable
	RoleUser  Role = "user"  // registered end user, receives age-group filtered content
	RoleAdmin Role = "admin" // portal administrator, not backed by the credential store
)

// RoleHierarchy defines the privilege level of each role.
// Higher numbers represent higher privileges.
var RoleHierarchy = map[Role]int{
	RoleGuest: 0,
	RoleUser:  20,
	RoleAdmin: 70,
}

// ListRoles returns a slice of all existing roles from the RoleHierarchy with the lowest permission role first and the highest last.
func ListRoles() []string {
	roles := make([]Role, 0, len(RoleHierarchy))
	for r := range RoleHierarchy {
		roles = append(roles, r)
	}

	slices.SortFunc(roles, func(a, b Role) int {
		return RoleHierarchy[a] - RoleHierarchy[b]
	})

	result := make([]string, 0, len(roles))
	for _, r := range roles {
		result = append(result, r.String())
	}
	return result
}

// IsValid checks if the Role is one of the predefined valid roles.
func (r Role) IsValid() bool {
	_, exists := RoleHierarchy[r]
	return exists
}

// CanHoldSession reports whether a session record may carry this role.
// Guests never own a session.
func (r Role) CanHoldSession() bool {
	return r == RoleUser || r == RoleAdmin
}

// String implements the fmt.Stringer interface, providing a string representation of the Role.
func (r Role) String() string {
	return string(r)
}

// UnmarshalText and MarshalText methods
func (r *Role) UnmarshalText(text []byte) error {
	s := Role(text)
	if !s.IsValid() {
		return fmt.Errorf("invalid role %q, expected one of %s", text, strings.Join(ListRoles(), ", "))
	}
	*r = s
	return nil
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r Role) AtLeast(min Role) bool {
	if r.IsValid() && min.IsValid() {
		return RoleHierarchy[r] >= RoleHierarchy[min]
	}
	return false
}
