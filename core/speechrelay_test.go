package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ada-assistant/ada-core/core/events"
	"github.com/ada-assistant/ada-core/core/texttospeech"
)

type stubSpeechClient struct {
	mu         sync.Mutex
	generators []*stubSpeechGenerator
	newErr     error
}

func (c *stubSpeechClient) NewSpeechGenerator(_ context.Context, opts ...texttospeech.TextToSpeechOption) (texttospeech.SpeechGenerator, error) {
	if c.newErr != nil {
		return nil, c.newErr
	}
	options := texttospeech.TextToSpeechOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	g := &stubSpeechGenerator{options: options}
	c.mu.Lock()
	c.generators = append(c.generators, g)
	c.mu.Unlock()
	return g, nil
}

func (c *stubSpeechClient) generator(i int) *stubSpeechGenerator {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i >= len(c.generators) {
		return nil
	}
	return c.generators[i]
}

type stubSpeechGenerator struct {
	mu        sync.Mutex
	options   texttospeech.TextToSpeechOptions
	segments  []string
	marks     int
	ended     bool
	cancelled bool
	closed    bool
	sendErr   error
}

func (g *stubSpeechGenerator) SendText(text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sendErr != nil {
		return g.sendErr
	}
	g.segments = append(g.segments, text)
	return nil
}

func (g *stubSpeechGenerator) Mark() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.marks++
	return nil
}

func (g *stubSpeechGenerator) EndOfText() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ended = true
	return nil
}

func (g *stubSpeechGenerator) Cancel() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelled = true
	return nil
}

func (g *stubSpeechGenerator) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return nil
}

func (g *stubSpeechGenerator) emitAudio(data []byte) {
	g.options.SpeechAudioCallback(data)
}

func (g *stubSpeechGenerator) finish() {
	g.options.SpeechEndedCallback()
}

func (g *stubSpeechGenerator) fail(err error) {
	g.options.ErrorCallback(err)
}

func (g *stubSpeechGenerator) sentSegments() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.segments...)
}

type relayRecorder struct {
	mu         sync.Mutex
	frames     []events.AudioFrame
	ended      []events.UtteranceEnded
	errs       []error
	speakingID string
}

func (rec *relayRecorder) callbacks() relayCallbacks {
	return relayCallbacks{
		onFrame: func(frame events.AudioFrame) {
			rec.mu.Lock()
			defer rec.mu.Unlock()
			rec.frames = append(rec.frames, frame)
		},
		onUtteranceEnd: func(ended events.UtteranceEnded) {
			rec.mu.Lock()
			defer rec.mu.Unlock()
			rec.ended = append(rec.ended, ended)
		},
		onError: func(err error) {
			rec.mu.Lock()
			defer rec.mu.Unlock()
			rec.errs = append(rec.errs, err)
		},
		onSpeaking: func(utteranceID string) {
			rec.mu.Lock()
			defer rec.mu.Unlock()
			rec.speakingID = utteranceID
		},
	}
}

func (rec *relayRecorder) frameCount() int {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return len(rec.frames)
}

func TestSpeechRelayFlushesAtSentenceBoundaries(t *testing.T) {
	client := &stubSpeechClient{}
	r := newSpeechRelay(client, 200, (&relayRecorder{}).callbacks())

	r.SendText(context.Background(), "Hello wor")
	r.SendText(context.Background(), "ld. And then")

	g := client.generator(0)
	if g == nil {
		t.Fatal("expected a generator to be opened on the first delta")
	}
	segments := g.sentSegments()
	if len(segments) != 1 || segments[0] != "Hello world." {
		t.Fatalf("expected the complete sentence to be flushed, got %v", segments)
	}

	r.FinishUtterance()
	segments = g.sentSegments()
	if len(segments) != 2 || segments[1] != " And then" {
		t.Fatalf("expected the remainder on finish, got %v", segments)
	}
	if !g.ended {
		t.Fatal("expected EndOfText on finish")
	}
}

func TestSpeechRelayFlushesWhenPendingTextExceedsLimit(t *testing.T) {
	client := &stubSpeechClient{}
	r := newSpeechRelay(client, 10, (&relayRecorder{}).callbacks())

	r.SendText(context.Background(), "no boundary here")

	segments := client.generator(0).sentSegments()
	if len(segments) != 1 || segments[0] != "no boundary here" {
		t.Fatalf("expected an over-limit flush without a boundary, got %v", segments)
	}
}

func TestSpeechRelaySequencesFramesPerUtterance(t *testing.T) {
	client := &stubSpeechClient{}
	rec := &relayRecorder{}
	r := newSpeechRelay(client, 200, rec.callbacks())

	r.SendText(context.Background(), "Sequenced frames.")
	g := client.generator(0)
	g.emitAudio([]byte("a"))
	g.emitAudio([]byte("b"))
	g.emitAudio([]byte("c"))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(rec.frames))
	}
	id := rec.frames[0].UtteranceID
	for i, frame := range rec.frames {
		if frame.UtteranceID != id {
			t.Fatalf("expected a single utterance id, got %q and %q", id, frame.UtteranceID)
		}
		if frame.Sequence != int64(i) {
			t.Fatalf("expected sequence %d, got %d", i, frame.Sequence)
		}
	}
	if rec.speakingID != id {
		t.Fatalf("expected speaking notification for %q, got %q", id, rec.speakingID)
	}
}

func TestSpeechRelayInterruptSuppressesSupersededFrames(t *testing.T) {
	client := &stubSpeechClient{}
	rec := &relayRecorder{}
	r := newSpeechRelay(client, 200, rec.callbacks())

	r.SendText(context.Background(), "First answer.")
	first := client.generator(0)
	first.emitAudio([]byte("first-0"))

	r.Interrupt()
	if !first.cancelled {
		t.Fatal("expected the superseded generator to be cancelled")
	}

	r.SendText(context.Background(), "Second answer.")
	second := client.generator(1)
	if second == nil {
		t.Fatal("expected a fresh generator after the interruption")
	}
	second.emitAudio([]byte("second-0"))

	// Late audio from the cancelled generator must be dropped.
	first.emitAudio([]byte("first-late"))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.frames) != 2 {
		t.Fatalf("expected exactly 2 delivered frames, got %d", len(rec.frames))
	}
	if rec.frames[0].UtteranceID == rec.frames[1].UtteranceID {
		t.Fatal("expected frames from two distinct utterances")
	}
	if rec.frames[1].Sequence != 0 {
		t.Fatalf("expected the new utterance to restart at sequence 0, got %d", rec.frames[1].Sequence)
	}

	if len(rec.ended) != 1 || !rec.ended[0].Interrupted {
		t.Fatalf("expected one interrupted utterance-ended event, got %#v", rec.ended)
	}
}

func TestSpeechRelayReportsOneErrorPerUtterance(t *testing.T) {
	client := &stubSpeechClient{}
	rec := &relayRecorder{}
	r := newSpeechRelay(client, 200, rec.callbacks())

	r.SendText(context.Background(), "Doomed utterance.")
	g := client.generator(0)
	g.fail(errors.New("synthesis backend unavailable"))
	g.fail(errors.New("still unavailable"))

	// Display text keeps flowing; the relay just swallows it.
	r.SendText(context.Background(), "More text after the failure.")
	r.FinishUtterance()

	rec.mu.Lock()
	errCount := len(rec.errs)
	endCount := len(rec.ended)
	rec.mu.Unlock()

	if errCount != 1 {
		t.Fatalf("expected exactly one error report, got %d", errCount)
	}
	if endCount != 1 {
		t.Fatalf("expected the failed utterance to end exactly once, got %d", endCount)
	}
	if !g.closed {
		t.Fatal("expected the failed generator to be closed")
	}

	// The next turn gets a fresh generator.
	r.SendText(context.Background(), "Recovered.")
	if client.generator(1) == nil {
		t.Fatal("expected a fresh generator for the next utterance")
	}
}

func TestSpeechRelayPauseHoldsFramesUntilResume(t *testing.T) {
	client := &stubSpeechClient{}
	rec := &relayRecorder{}
	r := newSpeechRelay(client, 200, rec.callbacks())

	r.SendText(context.Background(), "Pausable.")
	g := client.generator(0)
	g.emitAudio([]byte("before"))

	r.Pause()
	g.emitAudio([]byte("held-1"))
	g.emitAudio([]byte("held-2"))
	if got := rec.frameCount(); got != 1 {
		t.Fatalf("expected held frames while paused, got %d delivered", got)
	}

	r.Resume()
	if got := rec.frameCount(); got != 3 {
		t.Fatalf("expected held frames to flush on resume, got %d", got)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for i, frame := range rec.frames {
		if frame.Sequence != int64(i) {
			t.Fatalf("expected resumed frames in order, got sequence %d at %d", frame.Sequence, i)
		}
	}
}

func TestSpeechRelayResumeKeepsSequenceOrderUnderConcurrentDelivery(t *testing.T) {
	client := &stubSpeechClient{}
	rec := &relayRecorder{}
	r := newSpeechRelay(client, 200, rec.callbacks())

	r.SendText(context.Background(), "Contended playback.")
	g := client.generator(0)

	// A generator that keeps producing while playback is paused and resumed
	// must never let a live frame overtake the held ones.
	stop := make(chan struct{})
	var producing sync.WaitGroup
	producing.Add(1)
	go func() {
		defer producing.Done()
		for {
			select {
			case <-stop:
				return
			default:
				g.emitAudio([]byte("chunk"))
			}
		}
	}()

	for i := 0; i < 25; i++ {
		r.Pause()
		r.Resume()
	}
	close(stop)
	producing.Wait()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for i := 1; i < len(rec.frames); i++ {
		if rec.frames[i].Sequence != rec.frames[i-1].Sequence+1 {
			t.Fatalf("frame %d out of order: sequence %d after %d",
				i, rec.frames[i].Sequence, rec.frames[i-1].Sequence)
		}
	}
}

func TestSpeechRelayWithoutClientIgnoresText(t *testing.T) {
	r := newSpeechRelay(nil, 200, (&relayRecorder{}).callbacks())

	r.SendText(context.Background(), "Text-only session.")
	r.FinishUtterance()

	if r.Active() {
		t.Fatal("expected no utterance without a synthesis client")
	}
}
