package notification

import (
	"errors"
	"fmt"
)

// ErrMalformed is returned when a notification lacks the fields needed to render it.
var ErrMalformed = errors.New("malformed notification")

// Kind distinguishes the two notification variants.
type Kind string

const (
	KindState Kind = "state" // non-parametric: a discrete named state
	KindValue Kind = "value" // parametric: carries a value
)

// Notification is a device state change received from the event bus.
// The concrete type is one of StateNotification or ValueNotification.
type Notification interface {
	DeviceURI() string
	Kind() Kind
	isNotification()
}

// StateNotification reports that a device entered a named state.
type StateNotification struct {
	Device string
	State  string
}

func (n StateNotification) DeviceURI() string { return n.Device }
func (n StateNotification) Kind() Kind        { return KindState }
func (StateNotification) isNotification()     {}

// ValueNotification reports a measured or parametric value for a device.
type ValueNotification struct {
	Device string
	Value  string
	Unit   string
}

func (n ValueNotification) DeviceURI() string { return n.Device }
func (n ValueNotification) Kind() Kind        { return KindValue }
func (ValueNotification) isNotification()     {}

// Render returns the human-readable message shown on the remote display.
//
// Value notifications have no rendering yet and produce an empty message
// with a nil error. A malformed state notification produces an empty
// message and an error wrapping ErrMalformed.
func Render(n Notification) (string, error) {
	switch v := n.(type) {
	case StateNotification:
		if v.Device == "" || v.State == "" {
			return "", fmt.Errorf("%w: state notification needs device and state (device=%q state=%q)",
				ErrMalformed, v.Device, v.State)
		}
		return fmt.Sprintf("The %s is now in %s state.", v.Device, v.State), nil
	case *StateNotification:
		if v == nil {
			return "", fmt.Errorf("%w: nil state notification", ErrMalformed)
		}
		return Render(*v)
	case ValueNotification, *ValueNotification:
		return "", nil
	case nil:
		return "", fmt.Errorf("%w: nil notification", ErrMalformed)
	default:
		return "", fmt.Errorf("%w: unsupported type %T", ErrMalformed, n)
	}
}
