// Package session implements a per-connection conversational engine: it
// multiplexes client inputs into a live generative model stream, dispatches
// model-requested tool calls with bounded concurrency, and relays response
// text to a speech synthesis backend with interruption support.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ada-assistant/ada-core/core/events"
	"github.com/ada-assistant/ada-core/core/llms"
	"github.com/ada-assistant/ada-core/core/texttospeech"
	"github.com/ada-assistant/ada-core/core/tools"
)

var (
	ErrModelClientRequired = errors.New("a model client is required")
	ErrAlreadyRunning      = errors.New("session is already running")
	ErrSessionClosed       = errors.New("session is closed")
)

const statusConnected = "ADA is connected and ready"

// Session is one client connection's conversation. Create it with New,
// drive it with Run, and feed it through the Submit methods. All methods
// are safe for concurrent use.
type Session struct {
	ID string

	client       llms.LiveClient
	speechClient texttospeech.Client
	registry     *tools.Registry

	queueDepth      int
	deltaCapacity   int
	segmentLimit    int
	maxRetries      int
	baseBackoff     time.Duration
	lateToolResults bool

	cb         runCallbacks
	state      *stateMachine
	inputs     *inputQueue
	deltas     *deltaBuffer
	relay      *speechRelay
	dispatcher *tools.Dispatcher
	history    *history

	running   atomic.Bool
	closed    atomic.Bool
	cancelMu  sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func New(opts ...Option) (*Session, error) {
	s := &Session{
		ID:              uuid.NewString(),
		maxRetries:      defaultMaxReconnects,
		baseBackoff:     defaultBaseBackoff,
		lateToolResults: true,
		cb:              newRunCallbacks(),
		history:         &history{},
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		return nil, ErrModelClientRequired
	}

	s.state = newStateMachine(func(state State) {
		s.cb.onStateChange(events.NewSessionState(string(state)))
	})
	s.inputs = newInputQueue(s.queueDepth, func(paused bool, queued int) {
		s.cb.onBackpressure(paused, queued)
	})
	s.deltas = newDeltaBuffer(s.deltaCapacity)
	s.relay = newSpeechRelay(s.speechClient, s.segmentLimit, relayCallbacks{
		onFrame:        func(frame events.AudioFrame) { s.cb.onAudioFrame(frame) },
		onUtteranceEnd: func(ended events.UtteranceEnded) { s.cb.onUtteranceEnd(ended) },
		onError: func(err error) {
			s.cb.onError(events.NewError("speech_synthesis", err.Error(), true))
		},
		onSpeaking: func(string) { s.state.Set(StateSpeaking) },
		onIdle:     func() { s.state.Set(StateIdle) },
	})

	if s.registry != nil {
		s.dispatcher = tools.NewDispatcher(s.registry, tools.WithStatusCallback(func(update tools.StatusUpdate) {
			s.cb.onToolStatus(events.NewToolStatus(update.CallID, update.Tool, string(update.Status), update.Summary))
		}))
	}

	return s, nil
}

// Run connects to the model and blocks until the context ends, Close is
// called, or reconnection is exhausted. It may be called once per session,
// and a session that was already closed refuses to start.
func (s *Session) Run(ctx context.Context, opts ...RunOption) error {
	if s == nil {
		return nil
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(s.done)

	// The closed check and the cancel handoff share a lock with Close, so a
	// session closed first never starts and a session that did start is
	// always cancelled.
	s.cancelMu.Lock()
	if s.closed.Load() {
		s.cancelMu.Unlock()
		return ErrSessionClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.cancelMu.Unlock()
	defer cancel()

	for _, opt := range opts {
		opt(&s.cb)
	}

	// Display delivery is decoupled from stream consumption; a slow client
	// sheds old deltas instead of stalling the model.
	var display sync.WaitGroup
	display.Add(1)
	go func() {
		defer display.Done()
		for chunk := range s.deltas.Chunks {
			s.cb.onTextDelta(events.NewTextDelta(chunk))
		}
	}()

	s.state.Set(StateListening)
	s.cb.onStatus(events.NewSessionStatus(statusConnected))

	err := newCoordinator(s).run(ctx)

	if s.dispatcher != nil {
		s.dispatcher.AwaitCompletion()
	}
	s.relay.Close()
	s.deltas.Close()
	display.Wait()

	if err != nil && ctx.Err() == nil {
		s.state.Set(StateError)
		s.cb.onError(events.NewError("model_stream", err.Error(), false))
		return err
	}
	return nil
}

// SubmitText enqueues a typed text message. Never blocks, never dropped.
func (s *Session) SubmitText(text string) {
	if s == nil || s.closed.Load() || strings.TrimSpace(text) == "" {
		return
	}
	s.inputs.Submit(events.NewTextSubmitted(text))
}

// SubmitTranscript enqueues a finalized speech transcript. Never blocks,
// never dropped.
func (s *Session) SubmitTranscript(text string) {
	if s == nil || s.closed.Load() || strings.TrimSpace(text) == "" {
		return
	}
	s.inputs.Submit(events.NewTranscriptSubmitted(text))
}

// SubmitFrame enqueues a video frame. A fresher frame replaces a queued
// unconsumed one.
func (s *Session) SubmitFrame(data []byte, mime string) {
	if s == nil || s.closed.Load() || len(data) == 0 {
		return
	}
	s.inputs.Submit(events.NewFrameSubmitted(data, mime))
}

// StopFrameFeed discards any retained frame after the client stops its
// video feed.
func (s *Session) StopFrameFeed() {
	if s == nil || s.closed.Load() {
		return
	}
	s.inputs.Submit(events.NewFrameFeedStopped())
}

// Interrupt cuts off the current synthesized utterance, if any.
func (s *Session) Interrupt() {
	if s == nil {
		return
	}
	s.relay.Interrupt()
}

// PauseSpeech holds back audio frames without cancelling synthesis.
func (s *Session) PauseSpeech() {
	if s == nil {
		return
	}
	s.relay.Pause()
}

// ResumeSpeech releases frames held since PauseSpeech.
func (s *Session) ResumeSpeech() {
	if s == nil {
		return
	}
	s.relay.Resume()
}

// State returns the session's advisory state.
func (s *Session) State() State {
	if s == nil {
		return StateIdle
	}
	return s.state.Current()
}

// Conversation returns a deep copy of the turns recorded so far.
func (s *Session) Conversation() []TurnRecord {
	if s == nil {
		return nil
	}
	return s.history.Snapshot()
}

// Close tears the session down and waits for Run to return. Safe to call
// more than once.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		s.cancelMu.Lock()
		s.closed.Store(true)
		cancel := s.cancel
		s.cancelMu.Unlock()

		s.inputs.Close()
		if cancel != nil {
			cancel()
		}
		if s.running.Load() {
			<-s.done
		}
	})
	return nil
}
