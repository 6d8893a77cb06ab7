package nodes

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestDelayCompletes(t *testing.T) {
	ec := testEC(t, map[string]interface{}{"duration": 20}, nil)

	start := time.Now()
	edge, data := edgeOf(t, &delayNode{}, ec)
	if edge != "success" {
		t.Fatalf("edge = %s", edge)
	}
	if data["duration"] != int64(20) {
		t.Errorf("duration = %#v", data["duration"])
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("returned after %v, want at least 20ms", elapsed)
	}
}

func TestDelayCancelled(t *testing.T) {
	ec := testEC(t, map[string]interface{}{"duration": 5000}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := (&delayNode{}).Execute(ctx, ec)
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected context error")
		}
	case <-time.After(time.Second):
		t.Fatal("delay did not react to cancellation")
	}
}

func TestDelayRequiresDuration(t *testing.T) {
	ec := testEC(t, map[string]interface{}{}, nil)
	if _, err := (&delayNode{}).Execute(context.Background(), ec); err == nil {
		t.Fatal("expected error without duration")
	}
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *recordingLogger) record(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, level+":"+msg)
}

func (l *recordingLogger) Info(msg string, _ ...interface{})  { l.record("info", msg) }
func (l *recordingLogger) Error(msg string, _ ...interface{}) { l.record("error", msg) }
func (l *recordingLogger) Warn(msg string, _ ...interface{})  { l.record("warn", msg) }
func (l *recordingLogger) Debug(msg string, _ ...interface{}) { l.record("debug", msg) }

func TestLogLevels(t *testing.T) {
	logger := &recordingLogger{}
	node := &logNode{logger: logger}

	for _, level := range []string{"debug", "info", "warn", "error", ""} {
		ec := testEC(t, map[string]interface{}{"message": "hello", "level": level}, nil)
		edge, data := edgeOf(t, node, ec)
		if edge != "success" || data["message"] != "hello" {
			t.Fatalf("level %q: edge = %s, payload = %#v", level, edge, data)
		}
	}

	want := []string{"debug:hello", "info:hello", "warn:hello", "error:hello", "info:hello"}
	if len(logger.entries) != len(want) {
		t.Fatalf("entries = %v", logger.entries)
	}
	for i := range want {
		if logger.entries[i] != want[i] {
			t.Errorf("entry %d = %s, want %s", i, logger.entries[i], want[i])
		}
	}
}

func TestLogRequiresMessage(t *testing.T) {
	node := &logNode{logger: &recordingLogger{}}
	ec := testEC(t, map[string]interface{}{}, nil)
	if _, err := node.Execute(context.Background(), ec); err == nil {
		t.Fatal("expected error without message")
	}
}
