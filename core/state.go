package session

import "sync"

// State describes what the session is currently doing. It is advisory:
// inputs are accepted in every state except after Close.
type State string

const (
	// StateIdle means no turn is in progress.
	StateIdle State = "idle"
	// StateListening means the session is running and awaiting input.
	StateListening State = "listening"
	// StateProcessing means a turn was submitted and the model is responding.
	StateProcessing State = "processing"
	// StateSpeaking means synthesized audio is being delivered.
	StateSpeaking State = "speaking"
	// StateError means the session hit a terminal failure and needs a reset.
	StateError State = "error"
)

type stateMachine struct {
	mu       sync.Mutex
	current  State
	onChange func(State)
}

func newStateMachine(onChange func(State)) *stateMachine {
	return &stateMachine{current: StateIdle, onChange: onChange}
}

func (m *stateMachine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Set moves the machine to the given state. Once in StateError, only
// Reset can leave it.
func (m *stateMachine) Set(s State) {
	m.mu.Lock()
	if m.current == s || m.current == StateError {
		m.mu.Unlock()
		return
	}
	m.current = s
	onChange := m.onChange
	m.mu.Unlock()

	if onChange != nil {
		onChange(s)
	}
}

// Reset returns the machine to StateIdle regardless of the current state.
func (m *stateMachine) Reset() {
	m.mu.Lock()
	if m.current == StateIdle {
		m.mu.Unlock()
		return
	}
	m.current = StateIdle
	onChange := m.onChange
	m.mu.Unlock()

	if onChange != nil {
		onChange(StateIdle)
	}
}
