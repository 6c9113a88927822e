package session

import "sync"

const defaultDeltaCapacity = 256

// deltaBuffer decouples model text ingestion from display delivery. It is
// bounded: when the consumer falls behind, the oldest undelivered chunk is
// shed so the producer never stalls the receive loop.
type deltaBuffer struct {
	mu       sync.Mutex
	chunks   []string
	capacity int
	shed     int64
	closed   bool

	updateSignal chan struct{}
}

func newDeltaBuffer(capacity int) *deltaBuffer {
	if capacity <= 0 {
		capacity = defaultDeltaCapacity
	}
	return &deltaBuffer{
		capacity:     capacity,
		updateSignal: make(chan struct{}, 1),
	}
}

func (b *deltaBuffer) Add(chunk string) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if len(b.chunks) >= b.capacity {
		b.chunks = b.chunks[1:]
		b.shed++
	}
	b.chunks = append(b.chunks, chunk)
	b.mu.Unlock()

	select {
	case b.updateSignal <- struct{}{}:
	default:
	}
}

// Chunks yields buffered chunks in order, blocking for more until Close.
func (b *deltaBuffer) Chunks(yield func(string) bool) {
	for {
		b.mu.Lock()
		pending := b.chunks
		b.chunks = nil
		closed := b.closed
		b.mu.Unlock()

		for _, chunk := range pending {
			if !yield(chunk) {
				return
			}
		}

		if closed {
			return
		}
		<-b.updateSignal
	}
}

// Shed reports how many chunks were dropped because the consumer lagged.
func (b *deltaBuffer) Shed() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shed
}

func (b *deltaBuffer) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	select {
	case b.updateSignal <- struct{}{}:
	default:
	}
}
