package enums

import "fmt"

// IdentityKind distinguishes buyers from staff ordering on a buyer's behalf.
type IdentityKind string

const (
	IdentityKindCustomer IdentityKind = "customer"
	IdentityKindEmployee IdentityKind = "employee"
)

var validIdentityKinds = []IdentityKind{
	IdentityKindCustomer,
	IdentityKindEmployee,
}

// String implements fmt.Stringer.
func (k IdentityKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known IdentityKind.
func (k IdentityKind) IsValid() bool {
	for _, candidate := range validIdentityKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseIdentityKind converts raw input into an IdentityKind.
func ParseIdentityKind(value string) (IdentityKind, error) {
	for _, candidate := range validIdentityKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid identity kind %q", value)
}
