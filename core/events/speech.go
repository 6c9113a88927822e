package events

const (
	// KindAudioFrame identifies a synthesized audio frame.
	KindAudioFrame Kind = "speech.audio_frame"
	// KindUtteranceEnded identifies the end of one synthesized utterance.
	KindUtteranceEnded Kind = "speech.utterance_ended"
)

// AudioFrame carries one synthesized audio chunk. Within an utterance ID,
// frames are delivered with strictly increasing sequence numbers; frames
// from a superseded utterance are never delivered after the first frame of
// the utterance that interrupted it.
type AudioFrame struct {
	Base
	UtteranceID string
	Sequence    int64
	Data        []byte
}

func NewAudioFrame(utteranceID string, sequence int64, data []byte) AudioFrame {
	return AudioFrame{Base: newBase(KindAudioFrame), UtteranceID: utteranceID, Sequence: sequence, Data: data}
}

// UtteranceEnded marks that no further frames will be delivered for an
// utterance, whether it completed or was interrupted.
type UtteranceEnded struct {
	Base
	UtteranceID string
	Interrupted bool
}

func NewUtteranceEnded(utteranceID string, interrupted bool) UtteranceEnded {
	return UtteranceEnded{Base: newBase(KindUtteranceEnded), UtteranceID: utteranceID, Interrupted: interrupted}
}
