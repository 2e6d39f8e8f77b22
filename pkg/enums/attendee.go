package enums

import "fmt"

// AttendeeKind maps to the attendee_kind enum in Postgres. It distinguishes
// which scope an attendee registered against.
type AttendeeKind string

const (
	AttendeeKindRegular  AttendeeKind = "regular"
	AttendeeKindOnDemand AttendeeKind = "on_demand"
	AttendeeKindBundle   AttendeeKind = "bundle"
)

var validAttendeeKinds = []AttendeeKind{
	AttendeeKindRegular,
	AttendeeKindOnDemand,
	AttendeeKindBundle,
}

// String implements fmt.Stringer.
func (k AttendeeKind) String() string {
	return string(k)
}

// IsValid reports whether the value matches the canonical attendee_kind enum.
func (k AttendeeKind) IsValid() bool {
	for _, candidate := range validAttendeeKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseAttendeeKind converts raw input into AttendeeKind.
func ParseAttendeeKind(value string) (AttendeeKind, error) {
	for _, candidate := range validAttendeeKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid attendee kind %q", value)
}
