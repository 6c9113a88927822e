package events

import "time"

// Kind discriminates event types for consumers that only hold the
// interface, such as the server's wire encoding.
type Kind string

// Event is the common surface of everything the session emits or accepts.
// Concrete events embed Base and add their payload fields.
type Event interface {
	Kind() Kind
	Timestamp() time.Time
}

// Base carries the kind tag and creation time shared by all events.
type Base struct {
	kind Kind
	at   time.Time
}

func newBase(kind Kind) Base {
	return Base{kind: kind, at: time.Now()}
}

func (b Base) Kind() Kind { return b.kind }

// Timestamp is when the event was created, not when it was delivered.
func (b Base) Timestamp() time.Time { return b.at }
