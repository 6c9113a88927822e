package events

// KindError identifies a user-visible failure.
const KindError Kind = "session.error"

// Error reports a failure with enough context to render a specific status
// message. Recoverable failures leave the session running; unrecoverable ones
// accompany a transition to the error state.
type Error struct {
	Base
	Cause       string
	Message     string
	Recoverable bool
}

func NewError(cause, message string, recoverable bool) Error {
	return Error{Base: newBase(KindError), Cause: cause, Message: message, Recoverable: recoverable}
}
