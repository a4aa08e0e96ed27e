// Package outcome defines the discriminated result shared by the recording and
// verification services. Infrastructure failures travel separately as errors.
package outcome

import "fmt"

// Outcome classifies how a request ended.
type Outcome int

const (
	Ok Outcome = iota
	AlreadyRecorded
	NotFound
	InvalidInput
)

func (o Outcome) String() string {
	switch o {
	case Ok:
		return "ok"
	case AlreadyRecorded:
		return "already_recorded"
	case NotFound:
		return "not_found"
	case InvalidInput:
		return "invalid_input"
	}
	return "unknown"
}

// MarshalText lets outcomes appear by name in JSON bodies.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (o *Outcome) UnmarshalText(b []byte) error {
	for _, v := range []Outcome{Ok, AlreadyRecorded, NotFound, InvalidInput} {
		if v.String() == string(b) {
			*o = v
			return nil
		}
	}
	return fmt.Errorf("outcome: unknown value %q", b)
}
