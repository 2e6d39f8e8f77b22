package enums

import "fmt"

// ActivationType is the value sent to the grant-offer activation hook to tell
// the receiving automation which flow triggered the registration.
type ActivationType string

const (
	ActivationTypeWebinar ActivationType = "webinar"
	ActivationTypeBundle  ActivationType = "bundle"
)

var validActivationTypes = []ActivationType{
	ActivationTypeWebinar,
	ActivationTypeBundle,
}

// String implements fmt.Stringer.
func (a ActivationType) String() string {
	return string(a)
}

// IsValid reports whether the value is a recognized activation type.
func (a ActivationType) IsValid() bool {
	for _, candidate := range validActivationTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseActivationType converts raw input into ActivationType.
func ParseActivationType(value string) (ActivationType, error) {
	for _, candidate := range validActivationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid activation type %q", value)
}
