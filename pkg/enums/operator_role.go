package enums

import "fmt"

// OperatorRole is the role claim carried by back-office access tokens.
type OperatorRole string

const (
	OperatorRoleAdmin    OperatorRole = "admin"
	OperatorRoleOperator OperatorRole = "operator"
	OperatorRoleViewer   OperatorRole = "viewer"
)

var validOperatorRoles = []OperatorRole{
	OperatorRoleAdmin,
	OperatorRoleOperator,
	OperatorRoleViewer,
}

// String implements fmt.Stringer.
func (r OperatorRole) String() string {
	return string(r)
}

// IsValid reports whether the role is recognized.
func (r OperatorRole) IsValid() bool {
	for _, candidate := range validOperatorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// CanTriggerSync reports whether the role may run pricing jobs or edit
// overlays.
func (r OperatorRole) CanTriggerSync() bool {
	return r == OperatorRoleAdmin || r == OperatorRoleOperator
}

// ParseOperatorRole converts a raw string into an OperatorRole.
func ParseOperatorRole(value string) (OperatorRole, error) {
	for _, candidate := range validOperatorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid operator role %q", value)
}
