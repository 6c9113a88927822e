package session

import (
	"time"

	"github.com/ada-assistant/ada-core/core/events"
	"github.com/ada-assistant/ada-core/core/llms"
	"github.com/ada-assistant/ada-core/core/texttospeech"
	"github.com/ada-assistant/ada-core/core/tools"
)

const (
	defaultMaxReconnects = 2
	defaultBaseBackoff   = 500 * time.Millisecond
)

type Option func(*Session)

// WithModelClient sets the generative backend. Required.
func WithModelClient(client llms.LiveClient) Option {
	return func(s *Session) { s.client = client }
}

// WithSpeechSynthesis enables audio output through the given client. Without
// it the session is text-only.
func WithSpeechSynthesis(client texttospeech.Client) Option {
	return func(s *Session) { s.speechClient = client }
}

// WithToolRegistry exposes the registry's tools to the backend and enables
// tool call dispatch.
func WithToolRegistry(registry *tools.Registry) Option {
	return func(s *Session) { s.registry = registry }
}

// WithInputQueueDepth sets the queued-input threshold above which the
// backpressure callback asks the producer to pause; draining below half the
// depth asks it to resume. Submission itself never blocks.
func WithInputQueueDepth(depth int) Option {
	return func(s *Session) { s.queueDepth = depth }
}

// WithDeltaBufferSize bounds the display buffer; beyond it the oldest
// undelivered chunk is shed.
func WithDeltaBufferSize(capacity int) Option {
	return func(s *Session) { s.deltaCapacity = capacity }
}

// WithSegmentMaxChars sets the pending-text length at which a speech segment
// is flushed even without a sentence boundary.
func WithSegmentMaxChars(limit int) Option {
	return func(s *Session) { s.segmentLimit = limit }
}

// WithReconnectPolicy sets how many reconnect attempts follow a dropped
// model stream and the initial backoff, which doubles per attempt.
func WithReconnectPolicy(maxRetries int, baseBackoff time.Duration) Option {
	return func(s *Session) {
		if maxRetries >= 0 {
			s.maxRetries = maxRetries
		}
		if baseBackoff > 0 {
			s.baseBackoff = baseBackoff
		}
	}
}

// WithLateToolResults controls whether a tool result that completes after a
// newer turn started is still injected into the stream. Defaults to true.
func WithLateToolResults(inject bool) Option {
	return func(s *Session) { s.lateToolResults = inject }
}

type runCallbacks struct {
	onTextDelta    func(events.TextDelta)
	onTurnComplete func(events.TurnComplete)
	onAudioFrame   func(events.AudioFrame)
	onUtteranceEnd func(events.UtteranceEnded)
	onToolStatus   func(events.ToolStatus)
	onStateChange  func(events.SessionState)
	onStatus       func(events.SessionStatus)
	onError        func(events.Error)
	onBackpressure func(paused bool, queued int)
}

func newRunCallbacks() runCallbacks {
	return runCallbacks{
		onTextDelta:    func(events.TextDelta) {},
		onTurnComplete: func(events.TurnComplete) {},
		onAudioFrame:   func(events.AudioFrame) {},
		onUtteranceEnd: func(events.UtteranceEnded) {},
		onToolStatus:   func(events.ToolStatus) {},
		onStateChange:  func(events.SessionState) {},
		onStatus:       func(events.SessionStatus) {},
		onError:        func(events.Error) {},
		onBackpressure: func(bool, int) {},
	}
}

// RunOption registers a delivery callback for Run. Callbacks are invoked
// from session goroutines and must not block.
type RunOption func(*runCallbacks)

func WithTextDeltaCallback(callback func(events.TextDelta)) RunOption {
	return func(cb *runCallbacks) {
		if callback != nil {
			cb.onTextDelta = callback
		}
	}
}

func WithTurnCompleteCallback(callback func(events.TurnComplete)) RunOption {
	return func(cb *runCallbacks) {
		if callback != nil {
			cb.onTurnComplete = callback
		}
	}
}

func WithAudioFrameCallback(callback func(events.AudioFrame)) RunOption {
	return func(cb *runCallbacks) {
		if callback != nil {
			cb.onAudioFrame = callback
		}
	}
}

func WithUtteranceEndedCallback(callback func(events.UtteranceEnded)) RunOption {
	return func(cb *runCallbacks) {
		if callback != nil {
			cb.onUtteranceEnd = callback
		}
	}
}

func WithToolStatusCallback(callback func(events.ToolStatus)) RunOption {
	return func(cb *runCallbacks) {
		if callback != nil {
			cb.onToolStatus = callback
		}
	}
}

func WithStateChangeCallback(callback func(events.SessionState)) RunOption {
	return func(cb *runCallbacks) {
		if callback != nil {
			cb.onStateChange = callback
		}
	}
}

func WithStatusCallback(callback func(events.SessionStatus)) RunOption {
	return func(cb *runCallbacks) {
		if callback != nil {
			cb.onStatus = callback
		}
	}
}

func WithErrorCallback(callback func(events.Error)) RunOption {
	return func(cb *runCallbacks) {
		if callback != nil {
			cb.onError = callback
		}
	}
}

// WithBackpressureCallback reports input queue pressure. The callback fires
// with paused=true when the queue crosses its depth and paused=false once it
// drains; the producer is expected to stop and restart upstream reads
// accordingly.
func WithBackpressureCallback(callback func(paused bool, queued int)) RunOption {
	return func(cb *runCallbacks) {
		if callback != nil {
			cb.onBackpressure = callback
		}
	}
}
