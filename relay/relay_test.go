package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/flowscript/orchestrator/events"
)

type noopLogger struct{}

func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Debug(string, ...interface{}) {}

type published struct {
	channel string
	message string
}

type fakeBroker struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (b *fakeBroker) Publish(ctx context.Context, channel, message string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, published{channel: channel, message: message})
	return b.err
}

func (b *fakeBroker) all() []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]published(nil), b.sent...)
}

func waitForPublishes(t *testing.T, b *fakeBroker, want int) []published {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := b.all(); len(got) >= want {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d publishes, have %d", want, len(b.all()))
	return nil
}

func TestPublisherMirrorsEvents(t *testing.T) {
	broker := &fakeBroker{}
	pub := NewPublisher(broker, "", noopLogger{})
	em := events.NewEmitter("wf-1", "exec-1", noopLogger{})

	pub.Attach(context.Background(), em)

	em.Emit(events.Event{Type: events.WorkflowStarted})
	em.Emit(events.Event{Type: events.NodeExecuting, Data: map[string]interface{}{"nodeId": "setData:0"}})
	em.Emit(events.Event{Type: events.WorkflowCompleted})
	em.Close()

	sent := waitForPublishes(t, broker, 3)
	if len(sent) != 3 {
		t.Fatalf("want 3 publishes, got %d", len(sent))
	}

	for _, p := range sent {
		if p.channel != "workflow:events:exec-1" {
			t.Errorf("wrong channel %q", p.channel)
		}
	}

	var ev events.Event
	if err := json.Unmarshal([]byte(sent[1].message), &ev); err != nil {
		t.Fatalf("payload is not an event: %v", err)
	}
	if ev.Type != events.NodeExecuting || ev.ExecutionID != "exec-1" {
		t.Errorf("payload mangled: %+v", ev)
	}
	if ev.Data["nodeId"] != "setData:0" {
		t.Errorf("event data mangled: %v", ev.Data)
	}
}

func TestPublisherChannelPrefix(t *testing.T) {
	pub := NewPublisher(&fakeBroker{}, "fs:ev", noopLogger{})
	if got := pub.Channel("abc"); got != "fs:ev:abc" {
		t.Errorf("custom prefix: got %q", got)
	}
	pub = NewPublisher(&fakeBroker{}, "", noopLogger{})
	if got := pub.Channel("abc"); got != "workflow:events:abc" {
		t.Errorf("default prefix: got %q", got)
	}
}

func TestPublisherSurvivesBrokerErrors(t *testing.T) {
	broker := &fakeBroker{err: errors.New("redis down")}
	pub := NewPublisher(broker, "", noopLogger{})
	em := events.NewEmitter("wf-1", "exec-err", noopLogger{})

	pub.Attach(context.Background(), em)
	em.Emit(events.Event{Type: events.WorkflowStarted})
	em.Emit(events.Event{Type: events.WorkflowCompleted})
	em.Close()

	// Both publishes are attempted despite the failures.
	waitForPublishes(t, broker, 2)
}

func TestPublisherStopsOnContextCancel(t *testing.T) {
	broker := &fakeBroker{}
	pub := NewPublisher(broker, "", noopLogger{})
	em := events.NewEmitter("wf-1", "exec-cancel", noopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	pub.Attach(ctx, em)
	cancel()
	time.Sleep(20 * time.Millisecond)

	em.Emit(events.Event{Type: events.WorkflowStarted})
	time.Sleep(20 * time.Millisecond)

	if got := broker.all(); len(got) != 0 {
		t.Errorf("pump kept publishing after cancel: %v", got)
	}
	em.Close()
}
