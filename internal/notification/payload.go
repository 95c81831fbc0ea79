package notification

import "fmt"

// Payload is the wire form of a notification accepted by the control surfaces.
// Exactly one of State or Value must be set.
type Payload struct {
	DeviceURI string `json:"device_uri"`
	State     string `json:"state,omitempty"`
	Value     string `json:"value,omitempty"`
	Unit      string `json:"unit,omitempty"`
}

// Notification builds the typed variant described by the payload.
func (p Payload) Notification() (Notification, error) {
	if p.DeviceURI == "" {
		return nil, fmt.Errorf("device_uri is required")
	}

	switch {
	case p.State != "" && p.Value != "":
		return nil, fmt.Errorf("state and value are mutually exclusive")
	case p.State != "":
		return StateNotification{Device: p.DeviceURI, State: p.State}, nil
	case p.Value != "":
		return ValueNotification{Device: p.DeviceURI, Value: p.Value, Unit: p.Unit}, nil
	default:
		return nil, fmt.Errorf("one of state or value is required")
	}
}
