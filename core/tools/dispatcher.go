package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// CallStatus is the lifecycle state of one tool call.
type CallStatus string

const (
	StatusPending   CallStatus = "pending"
	StatusRunning   CallStatus = "running"
	StatusSucceeded CallStatus = "succeeded"
	StatusFailed    CallStatus = "failed"
	StatusTimedOut  CallStatus = "timed_out"
)

// Request is one backend-issued tool call, correlated by ID.
type Request struct {
	ID        string
	Name      string
	Arguments string
}

// Result is the single outcome produced for a request. Every request gets
// exactly one result, timeout included.
type Result struct {
	ID       string
	Name     string
	Status   CallStatus
	Response string
	// Summary is a short human-readable line for client widgets.
	Summary string
}

func (r Result) IsError() bool {
	return r.Status != StatusSucceeded
}

// StatusUpdate mirrors a call's lifecycle onto the status channel so client
// widgets update independently of whether the model narrates the result.
type StatusUpdate struct {
	CallID  string
	Tool    string
	Status  CallStatus
	Summary string
}

// Dispatcher validates and executes tool calls under per-tool concurrency
// caps and deadlines.
type Dispatcher struct {
	registry *Registry
	onStatus func(StatusUpdate)

	wg sync.WaitGroup
}

type DispatcherOption func(*Dispatcher)

// WithStatusCallback registers the status-channel sink. The callback must not
// block; it is invoked from dispatch goroutines.
func WithStatusCallback(callback func(StatusUpdate)) DispatcherOption {
	return func(d *Dispatcher) {
		if callback != nil {
			d.onStatus = callback
		}
	}
}

func NewDispatcher(registry *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		onStatus: func(StatusUpdate) {},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch validates the request and, if it passes, executes it in the
// background. deliver is called exactly once with the outcome; validation
// failures are delivered synchronously without invoking the handler.
// Cancelling ctx abandons in-flight work.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request, deliver func(Result)) {
	tool, ok := d.registry.Lookup(req.Name)
	if !ok {
		err := &ValidationError{Tool: req.Name, Err: fmt.Errorf("%w: %s", ErrUnknownTool, req.Name)}
		d.deliverFailure(req, err, deliver)
		return
	}

	if err := tool.validate(json.RawMessage(req.Arguments)); err != nil {
		d.deliverFailure(req, err, deliver)
		return
	}

	d.emit(req, StatusPending, "")
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.execute(ctx, tool, req, deliver)
	}()
}

func (d *Dispatcher) execute(ctx context.Context, tool Tool, req Request, deliver func(Result)) {
	ctx, span := tracer.Start(ctx, "execute tool")
	defer span.End()
	span.SetAttributes(
		attribute.String("tool.name", req.Name),
		attribute.String("tool.call_id", req.ID),
	)

	if err := tool.sem.Acquire(ctx, 1); err != nil {
		// Session ended while queued; still produce the one correlated result.
		deliver(d.finalize(req, StatusFailed, "", fmt.Errorf("tool call abandoned: %w", err), span))
		return
	}
	defer tool.sem.Release(1)

	d.emit(req, StatusRunning, "")

	callCtx, cancel := context.WithTimeout(ctx, tool.timeout)
	defer cancel()

	started := time.Now()
	response, err := tool.run(callCtx, json.RawMessage(req.Arguments))
	span.SetAttributes(attribute.Int64("tool.duration_ms", time.Since(started).Milliseconds()))

	switch {
	case err != nil && (errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded):
		deliver(d.finalize(req, StatusTimedOut, "", fmt.Errorf("tool %q timed out after %s", req.Name, tool.timeout), span))
	case err != nil:
		deliver(d.finalize(req, StatusFailed, "", err, span))
	default:
		deliver(d.finalize(req, StatusSucceeded, response, nil, span))
	}
}

func (d *Dispatcher) deliverFailure(req Request, err error, deliver func(Result)) {
	logger.Warn("rejected tool call", "tool", req.Name, "call_id", req.ID, "error", err)

	result := Result{
		ID:       req.ID,
		Name:     req.Name,
		Status:   StatusFailed,
		Response: err.Error(),
		Summary:  summarize(err.Error()),
	}
	d.emit(req, result.Status, result.Summary)
	deliver(result)
}

func (d *Dispatcher) finalize(req Request, status CallStatus, response string, err error, span trace.Span) Result {
	result := Result{ID: req.ID, Name: req.Name, Status: status, Response: response}
	if err != nil {
		result.Response = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	result.Summary = summarize(result.Response)

	d.emit(req, status, result.Summary)
	return result
}

func (d *Dispatcher) emit(req Request, status CallStatus, summary string) {
	d.onStatus(StatusUpdate{CallID: req.ID, Tool: req.Name, Status: status, Summary: summary})
}

// AwaitCompletion blocks until all dispatched calls have delivered.
func (d *Dispatcher) AwaitCompletion() {
	d.wg.Wait()
}

const summaryLimit = 140

func summarize(s string) string {
	if len(s) <= summaryLimit {
		return s
	}
	return s[:summaryLimit] + "…"
}
