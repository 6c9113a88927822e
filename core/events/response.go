package events

const (
	// KindTextDelta identifies an incremental model response chunk.
	KindTextDelta Kind = "response.text_delta"
	// KindTurnComplete identifies the end of a model turn.
	KindTurnComplete Kind = "response.turn_complete"
)

// TextDelta carries one incremental chunk of the model's response text,
// destined for the display channel.
type TextDelta struct {
	Base
	Chunk string
}

func NewTextDelta(chunk string) TextDelta {
	return TextDelta{Base: newBase(KindTextDelta), Chunk: chunk}
}

// TurnComplete marks the end of the model's response for the current turn.
type TurnComplete struct {
	Base
}

func NewTurnComplete() TurnComplete {
	return TurnComplete{Base: newBase(KindTurnComplete)}
}
