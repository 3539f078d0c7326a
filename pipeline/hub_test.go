package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHub_PublishSubscribe(t *testing.T) {
	hub := NewHub(zap.NewNop())
	defer hub.Close()

	ch, cancel := hub.Subscribe("run-1")
	defer cancel()

	hub.Publish(Event{Type: EventStageStart, RunID: "run-1", Stage: StageScriptWriter})

	select {
	case ev := <-ch:
		assert.Equal(t, EventStageStart, ev.Type)
		assert.Equal(t, StageScriptWriter, ev.Stage)
	case <-time.After(time.Second):
		t.Fatal("expected event")
	}
}

func TestHub_IsolatesRuns(t *testing.T) {
	hub := NewHub(zap.NewNop())
	defer hub.Close()

	ch, cancel := hub.Subscribe("run-1")
	defer cancel()

	hub.Publish(Event{Type: EventStageStart, RunID: "run-2"})

	select {
	case <-ch:
		t.Fatal("should not receive another run's event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_MultipleSubscribers(t *testing.T) {
	hub := NewHub(zap.NewNop())
	defer hub.Close()

	ch1, cancel1 := hub.Subscribe("run-1")
	defer cancel1()
	ch2, cancel2 := hub.Subscribe("run-1")
	defer cancel2()

	hub.Publish(Event{Type: EventRunComplete, RunID: "run-1", Verdict: "pass"})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			assert.Equal(t, "pass", ev.Verdict)
		case <-time.After(time.Second):
			t.Fatal("expected event on every subscriber")
		}
	}
}

func TestHub_CancelStopsDelivery(t *testing.T) {
	hub := NewHub(zap.NewNop())
	defer hub.Close()

	ch, cancel := hub.Subscribe("run-1")
	cancel()

	// Channel is closed after cancel; publish must not panic.
	hub.Publish(Event{Type: EventStageStart, RunID: "run-1"})

	_, open := <-ch
	assert.False(t, open)

	// Second cancel is a no-op.
	cancel()
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub(zap.NewNop())
	defer hub.Close()

	_, cancel := hub.Subscribe("run-1")
	defer cancel()

	// Fill the buffer and keep publishing; Publish must never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.Publish(Event{Type: EventStageStart, RunID: "run-1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(zap.NewNop())

	ch, cancel := hub.Subscribe("run-1")
	hub.Close()

	_, open := <-ch
	assert.False(t, open, "close drains subscriptions")

	// Cancel after Close is safe.
	cancel()

	// Subscribe after Close returns a closed channel.
	ch2, cancel2 := hub.Subscribe("run-2")
	_, open = <-ch2
	require.False(t, open)
	cancel2()
}
