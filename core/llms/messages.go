package llms

import "time"

// Turn is one unit of user input submitted to the backend. A turn carries
// text and, optionally, the most recent video frame as visual context.
type Turn struct {
	ID   string
	Text string

	// Frame is the retained video frame accompanying the turn, if any.
	Frame     []byte
	FrameMIME string

	Timestamp time.Time
}

// ToolResult is the host-side outcome of one [ToolCallRequest], correlated by
// call ID. Exactly one result is produced per request, even on timeout.
type ToolResult struct {
	ID       string
	Name     string
	Response string
	// IsError marks results that describe a failure or timeout rather than a
	// provider payload. The conversation continues either way.
	IsError bool
}

// ToolDeclaration describes one callable function exposed to the backend.
type ToolDeclaration struct {
	Name        string
	Description string
	// Parameters is the JSON schema of the function's arguments.
	Parameters map[string]any
}
