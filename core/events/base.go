package events

import "time"

// Kind identifies a session event. Kinds are namespaced by the channel the
// event originates from: "downlink." for events decoded off the backend event
// stream, "uplink." for audio channel lifecycle.
type Kind string

// Event is the common surface of everything flowing through the session's
// event dispatch: decoded downlink payloads and uplink lifecycle signals
// alike.
type Event interface {
	Kind() Kind
	Timestamp() time.Time
}

// Base carries the kind and arrival time shared by every session event.
// Concrete events embed it and add their payload fields.
type Base struct {
	kind      Kind
	timestamp time.Time
}

// NewBase stamps a new event with its kind and the current time.
func NewBase(kind Kind) Base {
	return Base{kind: kind, timestamp: time.Now()}
}

func (b Base) Kind() Kind {
	return b.kind
}

func (b Base) Timestamp() time.Time {
	return b.timestamp
}
