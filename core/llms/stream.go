package llms

import "context"

// LiveClient opens long-lived bidirectional streaming sessions with a
// generative backend. The session coordinator calls Connect once per
// (re)connection attempt.
type LiveClient interface {
	Connect(ctx context.Context) (LiveStream, error)
}

// LiveStream is one open streaming exchange with the generative backend.
//
// Events must be consumed by exactly one reader. Send methods are safe to
// call concurrently with event consumption but not with each other.
type LiveStream interface {
	// SendTurn submits user content as a new turn.
	SendTurn(ctx context.Context, turn Turn) error
	// SendFrame submits a video frame as realtime context for the
	// conversation. Frames do not open a turn.
	SendFrame(ctx context.Context, data []byte, mime string) error
	// SendToolResult injects a completed tool call result back into the
	// stream as a turn continuation.
	SendToolResult(ctx context.Context, result ToolResult) error
	// Events yields backend events until the stream ends. A yielded error is
	// terminal for this stream; the caller decides whether to reconnect.
	Events(ctx context.Context) func(func(Event, error) bool)
	// Close tears the stream down. Safe to call more than once.
	Close() error
}

// Event is a backend stream event. Concrete types: [TextDelta],
// [ToolCallRequest], [ToolCallResultAck], [TurnComplete], [Interrupted].
type Event interface {
	isEvent()
}

// TextDelta is an incremental chunk of response text.
type TextDelta struct {
	Text string
}

// ToolCallRequest asks the host to execute a function call. The backend may
// emit several requests before expecting any result.
type ToolCallRequest struct {
	ID        string
	Name      string
	Arguments string
}

// ToolCallResultAck confirms the backend consumed a tool result.
type ToolCallResultAck struct {
	ID string
}

// TurnComplete marks the end of the backend's output for the current turn.
type TurnComplete struct{}

// Interrupted signals that the backend abandoned in-flight generation, e.g.
// because new input preempted it.
type Interrupted struct{}

func (TextDelta) isEvent()         {}
func (ToolCallRequest) isEvent()   {}
func (ToolCallResultAck) isEvent() {}
func (TurnComplete) isEvent()      {}
func (Interrupted) isEvent()       {}
