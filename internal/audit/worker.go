package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	audit "credify/pkg/platform/audit"
)

var ErrQueueFull = errors.New("audit queue full")

const drainTimeout = 5 * time.Second

// Queue is a bounded audit.Emitter. Emit never blocks; when the buffer is
// full the event is dropped and counted.
type Queue struct {
	inbox   chan audit.Event
	dropped atomic.Int64
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 1024
	}
	return &Queue{inbox: make(chan audit.Event, size)}
}

func (q *Queue) Emit(_ context.Context, event audit.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case q.inbox <- event:
		return nil
	default:
		q.dropped.Add(1)
		return ErrQueueFull
	}
}

func (q *Queue) Dropped() int64 { return q.dropped.Load() }

// Worker consumes queued events and writes them to sink.
type Worker struct {
	sink   audit.Emitter
	queue  *Queue
	logger *slog.Logger
}

func NewWorker(sink audit.Emitter, queue *Queue, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{sink: sink, queue: queue, logger: logger}
}

// Run delivers events until ctx is cancelled, then flushes what is already
// queued within a short grace period. Sink failures are logged.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return nil
		case event := <-w.queue.inbox:
			w.deliver(context.WithoutCancel(ctx), event)
		}
	}
}

func (w *Worker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case event := <-w.queue.inbox:
			w.deliver(ctx, event)
		default:
			return
		}
	}
}

func (w *Worker) deliver(ctx context.Context, event audit.Event) {
	if err := w.sink.Emit(ctx, event); err != nil {
		w.logger.WarnContext(ctx, "audit sink failed",
			"action", event.Action,
			"event_id", event.ID,
			"error", err,
		)
	}
}
