package processing

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	customlog "github.com/open-teleop/vrteleop/pkg/log"
)

func testLogger() customlog.Logger {
	return customlog.NewLogrusLoggerWithOutput("error", io.Discard)
}

func TestPoolDeliversEvents(t *testing.T) {
	pool := NewPool("test", 2, 16, testLogger())

	var mu sync.Mutex
	var kinds []string
	pool.SetHandler(func(ev Event) error {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, ev.Kind)
		return nil
	})
	pool.Start()

	for i := 0; i < 5; i++ {
		if !pool.Submit(Event{Kind: EventVelocity, Timestamp: time.Now()}) {
			t.Fatalf("Submit %d rejected", i)
		}
	}
	pool.Stop()

	if len(kinds) != 5 {
		t.Errorf("Expected 5 handled events, got %d", len(kinds))
	}
	m := pool.GetMetrics()
	if m.ProcessedCount != 5 || m.QueuedCount != 5 {
		t.Errorf("Unexpected metrics: %+v", &m)
	}
}

func TestPoolRejectsWhenNotRunning(t *testing.T) {
	pool := NewPool("idle", 1, 4, testLogger())
	if pool.Submit(Event{Kind: EventVelocity}) {
		t.Errorf("Submit should fail before Start")
	}

	pool.Start()
	pool.Stop()
	if pool.Submit(Event{Kind: EventVelocity}) {
		t.Errorf("Submit should fail after Stop")
	}
}

func TestPoolDropsWhenFull(t *testing.T) {
	pool := NewPool("full", 1, 1, testLogger())

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	pool.SetHandler(func(ev Event) error {
		started <- struct{}{}
		<-release
		return nil
	})
	pool.Start()

	// first event occupies the worker, second fills the queue
	pool.Submit(Event{Kind: "a"})
	<-started
	if !pool.Submit(Event{Kind: "b"}) {
		t.Fatalf("Second event should fit in the queue")
	}
	if pool.Submit(Event{Kind: "c"}) {
		t.Errorf("Third event should be dropped")
	}

	close(release)
	pool.Stop()

	if got := pool.GetMetrics().DroppedCount; got != 1 {
		t.Errorf("Expected 1 dropped event, got %d", got)
	}
}

func TestFanoutHandlerContinuesAfterFailure(t *testing.T) {
	h := NewFanoutHandler(testLogger())

	var delivered int
	h.Add("broken", SinkFunc(func(ev Event) error { return errors.New("broker down") }))
	h.Add("counter", SinkFunc(func(ev Event) error {
		delivered++
		return nil
	}))

	err := h.Handle(Event{Kind: EventActionResult})
	if err == nil {
		t.Fatalf("Expected joined error from failing sink")
	}
	if delivered != 1 {
		t.Errorf("Second sink should still receive the event, delivered=%d", delivered)
	}
	if h.Len() != 2 {
		t.Errorf("Expected 2 sinks, got %d", h.Len())
	}
}
