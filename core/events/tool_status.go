package events

// KindToolStatus identifies a tool call status update.
const KindToolStatus Kind = "tool.status"

// ToolStatus reports the state of one tool call so client-facing widgets can
// update independently of whether the model narrates the result.
type ToolStatus struct {
	Base
	CallID  string
	Tool    string
	Status  string
	Summary string
}

func NewToolStatus(callID, tool, status, summary string) ToolStatus {
	return ToolStatus{Base: newBase(KindToolStatus), CallID: callID, Tool: tool, Status: status, Summary: summary}
}
