package texttospeech

import "context"

// Client opens one speech generator per utterance. The context covers
// connection establishment; generation itself is bounded by the generator's
// own lifecycle calls.
type Client interface {
	NewSpeechGenerator(ctx context.Context, opts ...TextToSpeechOption) (SpeechGenerator, error)
}

type TextToSpeechOptions struct {
	// SpeechAudioCallback is called for each audio chunk the synthesis
	// backend produces.
	SpeechAudioCallback func(audio []byte)
	// SpeechMarkCallback is called once per mark, after the speech for the
	// text sent up to that mark has been generated.
	SpeechMarkCallback func(segment string)
	// SpeechEndedCallback is called once all requested speech has been
	// generated.
	SpeechEndedCallback func()
	// ErrorCallback is called when the synthesis backend fails. The generator
	// is unusable afterwards.
	ErrorCallback func(error)
}

type TextToSpeechOption func(*TextToSpeechOptions)

func WithSpeechAudioCallback(callback func(audio []byte)) TextToSpeechOption {
	return func(o *TextToSpeechOptions) { o.SpeechAudioCallback = callback }
}

func WithSpeechMarkCallback(callback func(segment string)) TextToSpeechOption {
	return func(o *TextToSpeechOptions) { o.SpeechMarkCallback = callback }
}

func WithSpeechEndedCallback(callback func()) TextToSpeechOption {
	return func(o *TextToSpeechOptions) { o.SpeechEndedCallback = callback }
}

func WithErrorCallback(callback func(error)) TextToSpeechOption {
	return func(o *TextToSpeechOptions) { o.ErrorCallback = callback }
}

// SpeechGenerator synthesizes one utterance from streamed text.
type SpeechGenerator interface {
	// SendText sends text for synthesis. Speech is generated in the order
	// text is sent.
	//
	// SendText errors if EndOfText, Cancel or Close has been called.
	SendText(text string) error
	// Mark marks the current point in the text. The mark callback fires after
	// the speech for text sent up to the mark has been generated.
	//
	// Mark errors if EndOfText, Cancel or Close has been called.
	Mark() error
	// EndOfText signals that no more text will be sent. The generator closes
	// itself once all remaining speech has been generated.
	//
	// Repeated calls are ignored.
	EndOfText() error
	// Cancel abandons further generation and closes the generator. Audio
	// already produced may still be in flight; suppression is the caller's
	// concern.
	//
	// Repeated calls are ignored.
	Cancel() error
	// Close immediately closes the generator. No more audio is produced after
	// this call returns.
	//
	// Repeated calls are ignored.
	Close() error
}
