package session

import (
	"context"
	"sync"

	"github.com/ada-assistant/ada-core/core/events"
)

const defaultQueueDepth = 16

// inputQueue serializes inputs from concurrent producers into a single
// arrival-ordered stream. Submissions never block the caller; a pending
// video frame is replaced in place when a fresher one arrives.
//
// The queue itself is unbounded. Crossing the depth fires the backpressure
// callback with paused=true so the producer stops accepting upstream input;
// draining back to half the depth fires it again with paused=false. The half
// threshold keeps a queue hovering at the boundary from flapping.
type inputQueue struct {
	mu       sync.Mutex
	queue    []events.InputEvent
	depth    int
	closed   bool
	overflow bool

	onBackpressure func(paused bool, queued int)

	updateSignal chan struct{}
}

func newInputQueue(depth int, onBackpressure func(paused bool, queued int)) *inputQueue {
	if depth <= 0 {
		depth = defaultQueueDepth
	}
	return &inputQueue{
		depth:          depth,
		onBackpressure: onBackpressure,
		updateSignal:   make(chan struct{}, 1),
	}
}

// Submit enqueues an input event without blocking. Frames coalesce: if an
// unconsumed frame is already queued it is removed and the new frame is
// appended at the tail, so ordering relative to other inputs is preserved
// for the frame that is actually delivered.
func (q *inputQueue) Submit(event events.InputEvent) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}

	switch event.(type) {
	case events.FrameSubmitted:
		q.dropQueuedFrameLocked()
		q.queue = append(q.queue, event)
	case events.FrameFeedStopped:
		q.dropQueuedFrameLocked()
		q.queue = append(q.queue, event)
	default:
		q.queue = append(q.queue, event)
	}

	queued := len(q.queue)
	var notify func(bool, int)
	if q.onBackpressure != nil && !q.overflow && queued > q.depth {
		q.overflow = true
		notify = q.onBackpressure
	}
	q.mu.Unlock()

	if notify != nil {
		notify(true, queued)
	}
	q.signal()
}

func (q *inputQueue) dropQueuedFrameLocked() {
	for i, queued := range q.queue {
		if _, ok := queued.(events.FrameSubmitted); ok {
			q.queue = append(q.queue[:i], q.queue[i+1:]...)
			return
		}
	}
}

// next blocks until an event is available, the queue is closed and
// drained, or the context ends.
func (q *inputQueue) next(ctx context.Context) (events.InputEvent, bool) {
	for {
		q.mu.Lock()
		if len(q.queue) > 0 {
			event := q.queue[0]
			q.queue = q.queue[1:]
			queued := len(q.queue)
			var notify func(bool, int)
			if q.overflow && queued <= q.depth/2 {
				q.overflow = false
				notify = q.onBackpressure
			}
			q.mu.Unlock()
			if notify != nil {
				notify(false, queued)
			}
			return event, true
		}
		if q.closed {
			q.mu.Unlock()
			return nil, false
		}
		q.mu.Unlock()

		select {
		case <-q.updateSignal:
		case <-ctx.Done():
			return nil, false
		}
	}
}

// requeue puts an event back at the head of the queue, used when a send
// failed and the event should survive a reconnect.
func (q *inputQueue) requeue(event events.InputEvent) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.queue = append([]events.InputEvent{event}, q.queue...)
	queued := len(q.queue)
	var notify func(bool, int)
	if q.onBackpressure != nil && !q.overflow && queued > q.depth {
		q.overflow = true
		notify = q.onBackpressure
	}
	q.mu.Unlock()
	if notify != nil {
		notify(true, queued)
	}
	q.signal()
}

func (q *inputQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *inputQueue) signal() {
	select {
	case q.updateSignal <- struct{}{}:
	default:
	}
}
