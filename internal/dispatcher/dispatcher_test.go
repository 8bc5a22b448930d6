package dispatcher

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	logger := &testLogger{}

	d, err := New(logger)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}

	return d, logger
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	called := false
	d.Register(CommandFilterChange, func(e Event) (any, error) {
		called = true
		if len(e.Args) != 1 || e.Args[0] != "24" {
			t.Errorf("unexpected args: %v", e.Args)
		}
		return "result", nil
	})

	result, err := d.Dispatch(Event{Command: CommandFilterChange, Args: []string{"24"}})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !called {
		t.Error("handler was not called")
	}
	if result != "result" {
		t.Errorf("expected 'result', got %v", result)
	}
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Dispatch(Event{Command: "layer.explode"})

	if err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestDispatcher_StampsEvents(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got time.Time
	d.Register(CommandLayerToggle, func(e Event) (any, error) {
		got = e.Timestamp
		return nil, nil
	})

	if _, err := d.Dispatch(Event{Command: CommandLayerToggle}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.IsZero() {
		t.Error("expected dispatch to set a timestamp")
	}

	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := d.Dispatch(Event{Command: CommandLayerToggle, Timestamp: fixed}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(fixed) {
		t.Errorf("expected caller timestamp to be kept, got %v", got)
	}
}

func TestDispatcher_HandlerErrorPropagates(t *testing.T) {
	d, _ := newTestDispatcher(t)

	boom := errors.New("boom")
	d.Register(CommandFilterChange, func(e Event) (any, error) {
		return nil, boom
	})

	_, err := d.Dispatch(Event{Command: CommandFilterChange})
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

func TestDispatcher_HasHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register(CommandFilterChange, func(e Event) (any, error) { return nil, nil })

	if !d.HasHandler(CommandFilterChange) {
		t.Error("expected HasHandler to return true")
	}
	if d.HasHandler(CommandLayerToggle) {
		t.Error("expected HasHandler to return false")
	}
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(CommandFilterChange, func(e Event) (any, error) {
		return "ok", nil
	}, Logged())

	if _, err := d.Dispatch(Event{Command: CommandFilterChange, Args: []string{"1"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.messages) != 2 {
		t.Fatalf("expected 2 log messages, got %d: %v", len(logger.messages), logger.messages)
	}
	if !strings.HasPrefix(logger.messages[0], "DEBUG: handling event") {
		t.Errorf("unexpected first message: %s", logger.messages[0])
	}
	if !strings.HasPrefix(logger.messages[1], "DEBUG: event complete") {
		t.Errorf("unexpected second message: %s", logger.messages[1])
	}
}

func TestDispatcher_LoggedHandlerError(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(CommandLayerToggle, func(e Event) (any, error) {
		return nil, errors.New("unknown category")
	}, Logged())

	_, _ = d.Dispatch(Event{Command: CommandLayerToggle})

	logger.mu.Lock()
	defer logger.mu.Unlock()
	found := false
	for _, m := range logger.messages {
		if strings.HasPrefix(m, "ERROR: event failed") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an error log, got %v", logger.messages)
	}
}

func TestDispatcher_UnloggedHandlerIsQuiet(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(CommandFilterChange, func(e Event) (any, error) { return nil, nil })
	_, _ = d.Dispatch(Event{Command: CommandFilterChange})

	if len(logger.messages) != 0 {
		t.Errorf("expected no log messages, got %v", logger.messages)
	}
}
