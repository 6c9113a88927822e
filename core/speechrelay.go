package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ada-assistant/ada-core/core/events"
	"github.com/ada-assistant/ada-core/core/texttospeech"
)

const defaultSegmentLimit = 200

type relayCallbacks struct {
	onFrame        func(events.AudioFrame)
	onUtteranceEnd func(events.UtteranceEnded)
	onError        func(error)
	onSpeaking     func(utteranceID string)
	onIdle         func()
}

// speechRelay turns the model's text deltas into one synthesized utterance
// per model turn. Text is forwarded in sentence-sized segments, audio frames
// come back through callbacks, and an interruption guarantees that no frame
// of the superseded utterance is delivered after the first frame of its
// successor.
type speechRelay struct {
	client       texttospeech.Client
	segmentLimit int

	mu      sync.Mutex
	current *utterance
	paused  bool
	held    []events.AudioFrame

	cb relayCallbacks
}

type utterance struct {
	id         string
	gen        texttospeech.SpeechGenerator
	pending    strings.Builder
	finishing  bool
	seq        int64
	started    bool
	superseded bool
	failed     bool
	errOnce    sync.Once
	endOnce    sync.Once
}

func newSpeechRelay(client texttospeech.Client, segmentLimit int, cb relayCallbacks) *speechRelay {
	if segmentLimit <= 0 {
		segmentLimit = defaultSegmentLimit
	}
	return &speechRelay{client: client, segmentLimit: segmentLimit, cb: cb}
}

// SendText appends a text delta to the current utterance, opening one if
// needed. The context bounds generator connection establishment. Segments
// are flushed to the generator at sentence boundaries or once the pending
// text exceeds the segment limit.
func (r *speechRelay) SendText(ctx context.Context, chunk string) {
	if r == nil || r.client == nil || chunk == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		u, err := r.openUtteranceLocked(ctx)
		if err != nil {
			r.cb.onError(fmt.Errorf("opening speech generator: %w", err))
			return
		}
		r.current = u
	}

	u := r.current
	if u.failed || u.finishing {
		return
	}

	u.pending.WriteString(chunk)
	r.flushSegmentsLocked(u, false)
}

// FinishUtterance signals that the turn's text is complete. The utterance
// ends once the generator has produced all remaining speech.
func (r *speechRelay) FinishUtterance() {
	if r == nil {
		return
	}

	r.mu.Lock()
	u := r.current
	if u == nil || u.finishing {
		r.mu.Unlock()
		return
	}
	u.finishing = true

	if u.failed {
		r.current = nil
		r.endLocked(u, false)
		r.mu.Unlock()
		return
	}

	r.flushSegmentsLocked(u, true)
	failed := u.failed
	r.mu.Unlock()
	if failed {
		return
	}

	// EndOfText may fire the ended callback synchronously when nothing is
	// pending, so it must run outside the lock.
	if err := u.gen.EndOfText(); err != nil {
		r.mu.Lock()
		r.failLocked(u, fmt.Errorf("ending utterance %s: %w", u.id, err))
		r.mu.Unlock()
	}
}

// Interrupt abandons the current utterance. Frames already synthesized are
// suppressed; the utterance-ended event reports the interruption.
func (r *speechRelay) Interrupt() {
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.interruptLocked()
}

func (r *speechRelay) interruptLocked() {
	u := r.current
	if u == nil {
		return
	}
	u.superseded = true
	r.current = nil
	r.dropHeldLocked(u.id)

	if err := u.gen.Cancel(); err != nil {
		logger.Warn("cancelling speech generator", "utterance", u.id, "error", err)
	}
	r.endLocked(u, true)
}

// Pause holds back audio frame delivery without cancelling synthesis.
func (r *speechRelay) Pause() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.paused = true
	r.mu.Unlock()
}

// Resume releases frames held back since Pause, in order. The lock is held
// through delivery so a frame synthesized mid-resume cannot overtake the
// held ones and regress sequence numbers.
func (r *speechRelay) Resume() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	held := r.held
	r.held = nil
	r.paused = false
	for _, frame := range held {
		r.cb.onFrame(frame)
	}
}

// Speaking reports whether an utterance has delivered audio and not yet
// ended.
func (r *speechRelay) Speaking() bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil && r.current.started
}

// Active reports whether any utterance is open.
func (r *speechRelay) Active() bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil
}

// Close interrupts any open utterance and holds no further state.
func (r *speechRelay) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interruptLocked()
	r.held = nil
}

func (r *speechRelay) openUtteranceLocked(ctx context.Context) (*utterance, error) {
	u := &utterance{id: uuid.NewString()}
	gen, err := r.client.NewSpeechGenerator(ctx,
		texttospeech.WithSpeechAudioCallback(func(audio []byte) {
			r.deliver(u, audio)
		}),
		texttospeech.WithSpeechEndedCallback(func() {
			r.finished(u)
		}),
		texttospeech.WithErrorCallback(func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.failLocked(u, fmt.Errorf("synthesizing utterance %s: %w", u.id, err))
		}),
	)
	if err != nil {
		return nil, err
	}
	u.gen = gen
	return u, nil
}

// flushSegmentsLocked forwards complete sentences from the pending text to
// the generator, or everything when final is set or the limit is exceeded.
func (r *speechRelay) flushSegmentsLocked(u *utterance, final bool) {
	text := u.pending.String()
	if text == "" {
		return
	}

	cut := 0
	if final || len(text) >= r.segmentLimit {
		cut = len(text)
	} else if idx := lastSentenceEnd(text); idx >= 0 {
		cut = idx + 1
	}
	if cut == 0 {
		return
	}

	segment := text[:cut]
	u.pending.Reset()
	u.pending.WriteString(text[cut:])

	if err := u.gen.SendText(segment); err != nil {
		r.failLocked(u, fmt.Errorf("sending text for utterance %s: %w", u.id, err))
		return
	}
	if err := u.gen.Mark(); err != nil {
		r.failLocked(u, fmt.Errorf("marking utterance %s: %w", u.id, err))
	}
}

// lastSentenceEnd returns the index of the last sentence-terminating rune
// that is followed by whitespace or end of text, or -1.
func lastSentenceEnd(text string) int {
	for i := len(text) - 1; i >= 0; i-- {
		switch text[i] {
		case '.', '?', '!':
			if i == len(text)-1 || text[i+1] == ' ' || text[i+1] == '\n' {
				return i
			}
		}
	}
	return -1
}

// deliver hands one audio chunk downstream. The relay lock is held through
// the callback so delivery is serialized across utterances: once an
// interruption marks an utterance superseded, none of its frames can follow
// the first frame of its successor.
func (r *speechRelay) deliver(u *utterance, audio []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u.superseded {
		return
	}
	first := !u.started
	u.started = true
	frame := events.NewAudioFrame(u.id, u.seq, audio)
	u.seq++

	if r.paused {
		r.held = append(r.held, frame)
		return
	}
	if first && r.cb.onSpeaking != nil {
		r.cb.onSpeaking(u.id)
	}
	r.cb.onFrame(frame)
}

func (r *speechRelay) finished(u *utterance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.superseded {
		return
	}
	if r.current == u {
		r.current = nil
	}
	r.endLocked(u, false)
	if r.cb.onIdle != nil {
		r.cb.onIdle()
	}
}

// failLocked reports at most one error per utterance, then finishes it so
// downstream consumers are not left waiting. The utterance stays current
// until the turn ends so later deltas do not open a fresh generator; display
// text is unaffected either way.
func (r *speechRelay) failLocked(u *utterance, err error) {
	u.failed = true
	u.errOnce.Do(func() {
		logger.Error("speech synthesis failed", "utterance", u.id, "error", err)
		if r.cb.onError != nil {
			r.cb.onError(err)
		}
	})
	if closeErr := u.gen.Close(); closeErr != nil {
		logger.Warn("closing failed speech generator", "utterance", u.id, "error", closeErr)
	}
	if u.finishing && r.current == u {
		r.current = nil
	}
	r.endLocked(u, false)
}

func (r *speechRelay) endLocked(u *utterance, interrupted bool) {
	u.endOnce.Do(func() {
		if r.cb.onUtteranceEnd != nil {
			r.cb.onUtteranceEnd(events.NewUtteranceEnded(u.id, interrupted))
		}
	})
}

func (r *speechRelay) dropHeldLocked(utteranceID string) {
	if len(r.held) == 0 {
		return
	}
	kept := r.held[:0]
	for _, frame := range r.held {
		if frame.UtteranceID != utteranceID {
			kept = append(kept, frame)
		}
	}
	r.held = kept
}
