package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	audit "credify/pkg/platform/audit"
)

const defaultCapacity = 10000

// RingBuffer is a bounded, thread-safe audit sink used when no broker is
// configured. When full, the oldest events are dropped.
type RingBuffer struct {
	mu       sync.Mutex
	events   []audit.Event
	head     int // next write position
	count    int
	capacity int
	dropped  int64
}

func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &RingBuffer{
		events:   make([]audit.Event, capacity),
		capacity: capacity,
	}
}

// Emit implements audit.Emitter.
func (b *RingBuffer) Emit(_ context.Context, event audit.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == b.capacity {
		b.count--
		b.dropped++
	}
	b.events[b.head] = event
	b.head = (b.head + 1) % b.capacity
	b.count++
	return nil
}

// Recent returns up to limit events, newest first.
func (b *RingBuffer) Recent(limit int) []audit.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if limit <= 0 || limit > b.count {
		limit = b.count
	}
	out := make([]audit.Event, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (b.head - i + b.capacity) % b.capacity
		out = append(out, b.events[idx])
	}
	return out
}

// ListByAction returns retained events with the given action, oldest first.
func (b *RingBuffer) ListByAction(action audit.AuditEvent) []audit.Event {
	recent := b.Recent(0)
	var out []audit.Event
	for i := len(recent) - 1; i >= 0; i-- {
		if recent[i].Action == string(action) {
			out = append(out, recent[i])
		}
	}
	return out
}

func (b *RingBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
