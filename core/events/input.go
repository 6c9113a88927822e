package events

const (
	// KindTextSubmitted identifies typed text from the client's input box.
	KindTextSubmitted Kind = "input.text"
	// KindTranscriptSubmitted identifies a finalized speech transcript.
	KindTranscriptSubmitted Kind = "input.transcript"
	// KindFrameSubmitted identifies a periodic video frame.
	KindFrameSubmitted Kind = "input.frame"
	// KindFrameFeedStopped identifies the client stopping its video feed.
	KindFrameFeedStopped Kind = "input.frame_feed_stopped"
)

// InputEvent is implemented by events the connection layer submits into the
// session's input queue.
type InputEvent interface {
	Event
	isInput()
}

// TextSubmitted carries a typed text message. Never dropped.
type TextSubmitted struct {
	Base
	Text string
}

func NewTextSubmitted(text string) TextSubmitted {
	return TextSubmitted{Base: newBase(KindTextSubmitted), Text: text}
}

func (TextSubmitted) isInput() {}

// TranscriptSubmitted carries a finalized speech transcript. Never dropped.
type TranscriptSubmitted struct {
	Base
	Text string
}

func NewTranscriptSubmitted(text string) TranscriptSubmitted {
	return TranscriptSubmitted{Base: newBase(KindTranscriptSubmitted), Text: text}
}

func (TranscriptSubmitted) isInput() {}

// FrameSubmitted carries one video frame. Frames are presence information:
// the queue retains at most the most recent un-consumed frame and silently
// drops older ones.
type FrameSubmitted struct {
	Base
	Data []byte
	MIME string
}

func NewFrameSubmitted(data []byte, mime string) FrameSubmitted {
	return FrameSubmitted{Base: newBase(KindFrameSubmitted), Data: data, MIME: mime}
}

func (FrameSubmitted) isInput() {}

// FrameFeedStopped signals that the client stopped its video feed and any
// retained frame should be discarded.
type FrameFeedStopped struct {
	Base
}

func NewFrameFeedStopped() FrameFeedStopped {
	return FrameFeedStopped{Base: newBase(KindFrameFeedStopped)}
}

func (FrameFeedStopped) isInput() {}
