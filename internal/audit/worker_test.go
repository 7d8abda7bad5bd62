package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "credify/pkg/platform/audit"
	auditmemory "credify/pkg/platform/audit/store/memory"
)

type failingSink struct{}

func (failingSink) Emit(context.Context, audit.Event) error { return errors.New("broker down") }

func TestFanoutReachesEverySink(t *testing.T) {
	first := auditmemory.NewRingBuffer(4)
	second := auditmemory.NewRingBuffer(4)
	fan := Fanout{first, failingSink{}, second}

	err := fan.Emit(context.Background(), audit.Event{Action: string(audit.EventIssuerCreated)})
	assert.ErrorContains(t, err, "broker down")
	assert.Len(t, first.Recent(0), 1)
	assert.Len(t, second.Recent(0), 1)
}

func TestQueueDropsWhenFull(t *testing.T) {
	q := NewQueue(1)
	require.NoError(t, q.Emit(context.Background(), audit.Event{Action: "a"}))
	assert.ErrorIs(t, q.Emit(context.Background(), audit.Event{Action: "b"}), ErrQueueFull)
	assert.Equal(t, int64(1), q.Dropped())
}

func TestWorkerDeliversAndDrainsOnShutdown(t *testing.T) {
	q := NewQueue(16)
	sink := auditmemory.NewRingBuffer(16)
	w := NewWorker(Fanout{sink, failingSink{}}, q, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, q.Emit(ctx, audit.Event{Action: string(audit.EventOTPIssued)}))
	assert.Eventually(t, func() bool { return len(sink.Recent(0)) == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	// Events queued after shutdown are picked up by a fresh worker's drain.
	require.NoError(t, q.Emit(context.Background(), audit.Event{Action: string(audit.EventOTPVerified)}))
	stopped, stop := context.WithCancel(context.Background())
	stop()
	require.NoError(t, NewWorker(sink, q, nil).Run(stopped))

	events := sink.Recent(0)
	require.Len(t, events, 2)
	assert.Equal(t, string(audit.EventOTPVerified), events[0].Action)
	assert.NotEmpty(t, events[0].ID)
	assert.False(t, events[0].Timestamp.IsZero())
}
