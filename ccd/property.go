package ccd

import (
	"fmt"

	"github.com/pkg/errors"
)

// State is the state of a property, as shown to clients
type State int

const (
	// Idle means the property is not in use
	Idle State = iota
	// OK means the last operation on the property succeeded
	OK
	// Busy means an operation is in progress
	Busy
	// Alert means the last operation failed
	Alert
)

var stateNames = [...]string{"Idle", "Ok", "Busy", "Alert"}

func (s State) String() string {
	if int(s) < len(stateNames) && s >= 0 {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText renders the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name
func (s *State) UnmarshalText(b []byte) error {
	for i, n := range stateNames {
		if n == string(b) {
			*s = State(i)
			return nil
		}
	}
	return errors.Errorf("unknown state %q", b)
}

// Perm is the client permission on a property
type Perm int

const (
	// ReadOnly properties may only be read by clients
	ReadOnly Perm = iota
	// WriteOnly properties may only be written by clients
	WriteOnly
	// ReadWrite properties may be read and written
	ReadWrite
)

// MarshalText renders the permission the way INDI clients expect
func (p Perm) MarshalText() ([]byte, error) {
	switch p {
	case ReadOnly:
		return []byte("ro"), nil
	case WriteOnly:
		return []byte("wo"), nil
	}
	return []byte("rw"), nil
}

// UnmarshalText parses ro, wo or rw
func (p *Perm) UnmarshalText(b []byte) error {
	switch string(b) {
	case "ro":
		*p = ReadOnly
	case "wo":
		*p = WriteOnly
	case "rw":
		*p = ReadWrite
	default:
		return errors.Errorf("unknown permission %q", b)
	}
	return nil
}

// MainControlTab is the group most driver properties are placed in
const MainControlTab = "Main Control"

var (
	// ErrReadOnly is returned when a client writes a read only vector
	ErrReadOnly = errors.New("property is read only")

	// ErrUnknownMember is returned when a write names a member the vector does not have
	ErrUnknownMember = errors.New("unknown property member")

	// ErrOutOfRange is returned when a write is outside [Min, Max]
	ErrOutOfRange = errors.New("value out of range")
)

// Number is one member of a number vector
type Number struct {
	Name   string  `json:"name"`
	Label  string  `json:"label"`
	Format string  `json:"format"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Step   float64 `json:"step"`
	Value  float64 `json:"value"`
}

// NumberVector is a named group of numbers
type NumberVector struct {
	Device  string   `json:"device"`
	Name    string   `json:"name"`
	Label   string   `json:"label"`
	Group   string   `json:"group"`
	Perm    Perm     `json:"perm"`
	Timeout float64  `json:"timeout"`
	State   State    `json:"state"`
	Numbers []Number `json:"numbers"`
}

// Find returns the member with the given name, or nil
func (nv *NumberVector) Find(name string) *Number {
	for i := range nv.Numbers {
		if nv.Numbers[i].Name == name {
			return &nv.Numbers[i]
		}
	}
	return nil
}

// Update applies client values to the vector.  Every value is checked
// before any is applied; on error the vector is unchanged.
func (nv *NumberVector) Update(values map[string]float64) error {
	for name, v := range values {
		n := nv.Find(name)
		if n == nil {
			return errors.Wrapf(ErrUnknownMember, "%s.%s", nv.Name, name)
		}
		if v < n.Min || v > n.Max {
			return errors.Wrapf(ErrOutOfRange, "%s.%s=%g not in [%g, %g]", nv.Name, name, v, n.Min, n.Max)
		}
	}
	for name, v := range values {
		nv.Find(name).Value = v
	}
	return nil
}

// Copy returns a deep copy of the vector
func (nv *NumberVector) Copy() NumberVector {
	out := *nv
	out.Numbers = append([]Number(nil), nv.Numbers...)
	return out
}
