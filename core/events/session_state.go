package events

const (
	// KindSessionState identifies an advisory session state change.
	KindSessionState Kind = "session.state"
	// KindSessionStatus identifies a human-readable session status message.
	KindSessionStatus Kind = "session.status"
)

// SessionState broadcasts the session's advisory state for UI feedback. It is
// a derived projection of the coordinator's and relay's status, never an
// input to correctness.
type SessionState struct {
	Base
	State string
}

func NewSessionState(state string) SessionState {
	return SessionState{Base: newBase(KindSessionState), State: state}
}

// SessionStatus carries a status message, e.g. the connect greeting.
type SessionStatus struct {
	Base
	Message string
}

func NewSessionStatus(message string) SessionStatus {
	return SessionStatus{Base: newBase(KindSessionStatus), Message: message}
}
