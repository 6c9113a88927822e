package tools

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type sleeperParams struct {
	Millis int `json:"millis"`
}

func waitForCondition(t *testing.T, timeout time.Duration, description string, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", description)
}

func TestDispatcherCapsConcurrencyPerTool(t *testing.T) {
	var running atomic.Int32
	var peak atomic.Int32

	tool := New("slow", "sleeps briefly",
		func(ctx context.Context, _ sleeperParams) (string, error) {
			now := running.Add(1)
			defer running.Add(-1)
			for {
				observed := peak.Load()
				if now <= observed || peak.CompareAndSwap(observed, now) {
					break
				}
			}
			select {
			case <-time.After(50 * time.Millisecond):
			case <-ctx.Done():
			}
			return `{}`, nil
		},
		WithMaxInFlight(3),
	)
	registry, err := NewRegistry(tool)
	if err != nil {
		t.Fatalf("unexpected registry error: %v", err)
	}

	d := NewDispatcher(registry)

	var delivered atomic.Int32
	for i := 0; i < 10; i++ {
		d.Dispatch(context.Background(), Request{ID: "call", Name: "slow", Arguments: `{}`}, func(Result) {
			delivered.Add(1)
		})
	}
	d.AwaitCompletion()

	if got := delivered.Load(); got != 10 {
		t.Fatalf("expected 10 delivered results, got %d", got)
	}
	if got := peak.Load(); got > 3 {
		t.Fatalf("expected at most 3 concurrent executions, observed %d", got)
	}
}

func TestDispatcherTimesOutSlowCallsWithExactlyOneResult(t *testing.T) {
	tool := New("hang", "never returns on its own",
		func(ctx context.Context, _ sleeperParams) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
		WithTimeout(50*time.Millisecond),
	)
	registry, err := NewRegistry(tool)
	if err != nil {
		t.Fatalf("unexpected registry error: %v", err)
	}

	var mu sync.Mutex
	var results []Result
	d := NewDispatcher(registry)
	d.Dispatch(context.Background(), Request{ID: "call-1", Name: "hang", Arguments: `{}`}, func(result Result) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, result)
	})
	d.AwaitCompletion()

	mu.Lock()
	defer mu.Unlock()
	if len(results) != 1 {
		t.Fatalf("expected exactly one result, got %d", len(results))
	}
	if results[0].Status != StatusTimedOut {
		t.Fatalf("expected a timed_out result, got %q", results[0].Status)
	}
	if !results[0].IsError() {
		t.Fatal("expected the timeout to surface as an error result")
	}
}

func TestDispatcherRejectsMalformedArgumentsWithoutRunningTheHandler(t *testing.T) {
	var handlerRan atomic.Bool
	tool := New("strict", "validates input",
		func(_ context.Context, _ sleeperParams) (string, error) {
			handlerRan.Store(true)
			return `{}`, nil
		})
	registry, err := NewRegistry(tool)
	if err != nil {
		t.Fatalf("unexpected registry error: %v", err)
	}

	var result Result
	delivered := false
	d := NewDispatcher(registry)
	d.Dispatch(context.Background(), Request{ID: "call-1", Name: "strict", Arguments: `{"unknown_field":true}`}, func(r Result) {
		result = r
		delivered = true
	})

	// Validation failures deliver synchronously.
	if !delivered {
		t.Fatal("expected an immediate result for malformed arguments")
	}
	if result.Status != StatusFailed {
		t.Fatalf("expected a failed result, got %q", result.Status)
	}
	if handlerRan.Load() {
		t.Fatal("expected the handler to be skipped for malformed arguments")
	}
}

func TestDispatcherRejectsUnknownTools(t *testing.T) {
	registry, err := NewRegistry(New("known", "exists",
		func(_ context.Context, _ sleeperParams) (string, error) { return `{}`, nil }))
	if err != nil {
		t.Fatalf("unexpected registry error: %v", err)
	}

	var result Result
	d := NewDispatcher(registry)
	d.Dispatch(context.Background(), Request{ID: "call-1", Name: "missing", Arguments: `{}`}, func(r Result) {
		result = r
	})

	if result.Status != StatusFailed {
		t.Fatalf("expected a failed result for an unknown tool, got %q", result.Status)
	}
}

func TestDispatcherEmitsStatusLifecycle(t *testing.T) {
	registry, err := NewRegistry(New("quick", "returns immediately",
		func(_ context.Context, _ sleeperParams) (string, error) { return `{"ok":true}`, nil }))
	if err != nil {
		t.Fatalf("unexpected registry error: %v", err)
	}

	var mu sync.Mutex
	var statuses []CallStatus
	d := NewDispatcher(registry, WithStatusCallback(func(update StatusUpdate) {
		mu.Lock()
		defer mu.Unlock()
		statuses = append(statuses, update.Status)
	}))

	d.Dispatch(context.Background(), Request{ID: "call-1", Name: "quick", Arguments: `{}`}, func(Result) {})
	d.AwaitCompletion()

	mu.Lock()
	defer mu.Unlock()
	want := []CallStatus{StatusPending, StatusRunning, StatusSucceeded}
	if len(statuses) != len(want) {
		t.Fatalf("expected statuses %v, got %v", want, statuses)
	}
	for i, status := range want {
		if statuses[i] != status {
			t.Fatalf("expected statuses %v, got %v", want, statuses)
		}
	}
}

func TestDispatcherAbandonsQueuedCallsWhenContextEnds(t *testing.T) {
	release := make(chan struct{})
	tool := New("single", "occupies the only slot",
		func(ctx context.Context, _ sleeperParams) (string, error) {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return `{}`, nil
		},
		WithMaxInFlight(1),
		WithTimeout(time.Second),
	)
	registry, err := NewRegistry(tool)
	if err != nil {
		t.Fatalf("unexpected registry error: %v", err)
	}

	var firstRunning atomic.Bool
	d := NewDispatcher(registry, WithStatusCallback(func(update StatusUpdate) {
		if update.CallID == "running" && update.Status == StatusRunning {
			firstRunning.Store(true)
		}
	}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var delivered atomic.Int32
	var queuedResult atomic.Value
	d.Dispatch(ctx, Request{ID: "running", Name: "single", Arguments: `{}`}, func(Result) {
		delivered.Add(1)
	})
	waitForCondition(t, time.Second, "first call to occupy the slot", firstRunning.Load)

	d.Dispatch(ctx, Request{ID: "queued", Name: "single", Arguments: `{}`}, func(result Result) {
		delivered.Add(1)
		queuedResult.Store(result)
	})

	cancel()
	close(release)
	d.AwaitCompletion()

	if got := delivered.Load(); got != 2 {
		t.Fatalf("expected both calls to deliver a result, got %d", got)
	}
	result, ok := queuedResult.Load().(Result)
	if !ok {
		t.Fatal("expected a result for the queued call")
	}
	if !result.IsError() {
		t.Fatal("expected the abandoned queued call to report an error result")
	}
	if errors.Is(ctx.Err(), context.Canceled) == false {
		t.Fatal("expected the context to be cancelled")
	}
}
