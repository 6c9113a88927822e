package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ada-assistant/ada-core/core/events"
	"github.com/ada-assistant/ada-core/core/llms"
	"github.com/ada-assistant/ada-core/core/tools"
)

// coordinator owns the model stream: it feeds queued inputs and completed
// tool results upstream, fans stream events out to the display buffer, the
// speech relay and the tool dispatcher, and reconnects with backoff when the
// stream drops.
type coordinator struct {
	client     llms.LiveClient
	inputs     *inputQueue
	deltas     *deltaBuffer
	relay      *speechRelay
	dispatcher *tools.Dispatcher
	history    *history
	state      *stateMachine
	cb         *runCallbacks

	maxRetries      int
	baseBackoff     time.Duration
	lateToolResults bool

	toolResults chan tools.Result

	// sendMu serializes stream sends; the stream contract allows sends
	// concurrent with event consumption but not with each other.
	sendMu sync.Mutex

	mu            sync.Mutex
	currentTurnID string
	turnText      strings.Builder
	turnCalls     []tools.Result
	pendingCalls  map[string]string
	unsentResults []tools.Result
}

func newCoordinator(s *Session) *coordinator {
	return &coordinator{
		client:          s.client,
		inputs:          s.inputs,
		deltas:          s.deltas,
		relay:           s.relay,
		dispatcher:      s.dispatcher,
		history:         s.history,
		state:           s.state,
		cb:              &s.cb,
		maxRetries:      s.maxRetries,
		baseBackoff:     s.baseBackoff,
		lateToolResults: s.lateToolResults,
		toolResults:     make(chan tools.Result, 16),
		pendingCalls:    map[string]string{},
	}
}

// run drives the stream until the context ends or reconnection is
// exhausted. The returned error is terminal for the session.
func (c *coordinator) run(ctx context.Context) error {
	stream, err := c.connect(ctx)
	if err != nil {
		return err
	}

	for {
		consumeErr := c.consume(ctx, stream)
		stream.Close()

		if ctx.Err() != nil || consumeErr == nil {
			return nil
		}

		// The stream broke mid-turn. Whatever speech text is already
		// buffered becomes the turn's final utterance, and the client hears
		// about the drop before the reconnect attempt.
		c.relay.FinishUtterance()
		c.cb.onError(events.NewError("model_stream", consumeErr.Error(), true))
		logger.Warn("model stream dropped, reconnecting", "error", consumeErr)

		stream, err = c.connect(ctx)
		if err != nil {
			return err
		}
	}
}

// connect tries once immediately, then up to maxRetries more times with
// exponential backoff.
func (c *coordinator) connect(ctx context.Context) (llms.LiveStream, error) {
	ctx, span := tracer.Start(ctx, "connect model stream")
	defer span.End()

	backoff := c.baseBackoff
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}

		stream, err := c.client.Connect(ctx)
		if err == nil {
			span.SetAttributes(attribute.Int("connect.attempts", attempt+1))
			return stream, nil
		}
		lastErr = err
		logger.Warn("model connect failed", "attempt", attempt+1, "error", err)
	}

	return nil, fmt.Errorf("connecting to model after %d attempts: %w", c.maxRetries+1, lastErr)
}

// consume runs one stream to completion. It returns nil on an orderly end
// and the stream error otherwise.
func (c *coordinator) consume(ctx context.Context, stream llms.LiveStream) error {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Unblock the event reader when the stream context ends.
	go func() {
		<-streamCtx.Done()
		stream.Close()
	}()

	var feeders sync.WaitGroup
	feeders.Add(2)
	go func() {
		defer feeders.Done()
		c.feedInputs(streamCtx, stream)
	}()
	go func() {
		defer feeders.Done()
		c.feedToolResults(streamCtx, stream)
	}()

	var streamErr error
	for event, err := range stream.Events(streamCtx) {
		if err != nil {
			streamErr = err
			break
		}
		c.handle(ctx, event)
	}

	cancel()
	feeders.Wait()
	return streamErr
}

func (c *coordinator) feedInputs(ctx context.Context, stream llms.LiveStream) {
	for {
		event, ok := c.inputs.next(ctx)
		if !ok {
			return
		}
		if err := c.forwardInput(ctx, stream, event); err != nil {
			if ctx.Err() == nil {
				logger.Warn("forwarding input", "kind", event.Kind(), "error", err)
			}
			// Keep the event for the next stream.
			c.inputs.requeue(event)
			return
		}
	}
}

func (c *coordinator) forwardInput(ctx context.Context, stream llms.LiveStream, event events.InputEvent) error {
	switch e := event.(type) {
	case events.TextSubmitted:
		return c.beginTurn(ctx, stream, e.Text)
	case events.TranscriptSubmitted:
		return c.beginTurn(ctx, stream, e.Text)
	case events.FrameSubmitted:
		c.sendMu.Lock()
		defer c.sendMu.Unlock()
		return stream.SendFrame(ctx, e.Data, e.MIME)
	case events.FrameFeedStopped:
		// The queue already discarded the retained frame.
		return nil
	default:
		return fmt.Errorf("unhandled input event %q", event.Kind())
	}
}

func (c *coordinator) beginTurn(ctx context.Context, stream llms.LiveStream, text string) error {
	// New user input preempts playback of the previous answer.
	c.relay.Interrupt()
	c.state.Set(StateProcessing)

	turn := llms.Turn{ID: uuid.NewString(), Text: text, Timestamp: time.Now()}

	c.mu.Lock()
	c.currentTurnID = turn.ID
	c.turnText.Reset()
	c.turnCalls = nil
	c.mu.Unlock()

	c.history.appendUserTurn(turn.ID, text)

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return stream.SendTurn(ctx, turn)
}

func (c *coordinator) feedToolResults(ctx context.Context, stream llms.LiveStream) {
	// Results whose send failed on the previous stream go out first.
	c.mu.Lock()
	backlog := c.unsentResults
	c.unsentResults = nil
	c.mu.Unlock()

	for _, result := range backlog {
		if !c.injectResult(ctx, stream, result) {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case result := <-c.toolResults:
			if !c.admitResult(result) {
				continue
			}
			if !c.injectResult(ctx, stream, result) {
				return
			}
		}
	}
}

// injectResult sends one admitted result upstream. A failed send keeps the
// result for the next stream, mirroring how unsent inputs are requeued, so
// the model still sees exactly one result per dispatched call.
func (c *coordinator) injectResult(ctx context.Context, stream llms.LiveStream, result tools.Result) bool {
	c.sendMu.Lock()
	err := stream.SendToolResult(ctx, llms.ToolResult{
		ID:       result.ID,
		Name:     result.Name,
		Response: result.Response,
		IsError:  result.IsError(),
	})
	c.sendMu.Unlock()
	if err == nil {
		return true
	}

	if ctx.Err() == nil {
		logger.Warn("injecting tool result", "tool", result.Name, "call_id", result.ID, "error", err)
	}
	c.mu.Lock()
	c.unsentResults = append(c.unsentResults, result)
	c.mu.Unlock()
	return false
}

// admitResult records the result for history and applies the late-result
// policy: results landing after a newer turn started are dropped unless
// configured otherwise.
func (c *coordinator) admitResult(result tools.Result) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	turnID, tracked := c.pendingCalls[result.ID]
	delete(c.pendingCalls, result.ID)
	c.turnCalls = append(c.turnCalls, result)

	if c.lateToolResults {
		return true
	}
	if tracked && turnID != c.currentTurnID {
		logger.Info("dropping late tool result", "tool", result.Name, "call_id", result.ID)
		return false
	}
	return true
}

func (c *coordinator) handle(ctx context.Context, event llms.Event) {
	switch e := event.(type) {
	case llms.TextDelta:
		c.mu.Lock()
		c.turnText.WriteString(e.Text)
		c.mu.Unlock()
		c.deltas.Add(e.Text)
		c.relay.SendText(ctx, e.Text)
	case llms.ToolCallRequest:
		c.dispatchToolCall(ctx, e)
	case llms.ToolCallResultAck:
		logger.Debug("tool result acknowledged", "call_id", e.ID)
	case llms.TurnComplete:
		c.relay.FinishUtterance()
		c.completeTurn()
	case llms.Interrupted:
		c.relay.Interrupt()
	}
}

func (c *coordinator) dispatchToolCall(ctx context.Context, req llms.ToolCallRequest) {
	deliver := func(result tools.Result) {
		select {
		case c.toolResults <- result:
		case <-ctx.Done():
		}
	}

	if c.dispatcher == nil {
		deliver(tools.Result{
			ID:       req.ID,
			Name:     req.Name,
			Status:   tools.StatusFailed,
			Response: `{"error":"no tools configured"}`,
			Summary:  "no tools configured",
		})
		return
	}

	c.mu.Lock()
	c.pendingCalls[req.ID] = c.currentTurnID
	c.mu.Unlock()

	c.dispatcher.Dispatch(ctx, tools.Request{ID: req.ID, Name: req.Name, Arguments: req.Arguments}, deliver)
}

func (c *coordinator) completeTurn() {
	c.mu.Lock()
	text := c.turnText.String()
	calls := c.turnCalls
	c.turnText.Reset()
	c.turnCalls = nil
	c.mu.Unlock()

	if text != "" || len(calls) > 0 {
		c.history.appendAssistantTurn(text, calls)
	}

	c.cb.onTurnComplete(events.NewTurnComplete())
	if !c.relay.Active() {
		c.state.Set(StateIdle)
	}
}
