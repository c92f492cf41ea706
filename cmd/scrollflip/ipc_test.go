package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// startTestIPC runs the IPC server on a temp socket and a minimal responder
// that answers snapshot requests. Returns the socket path and the event
// channel for assertions.
func startTestIPC(t *testing.T, snap StateSnapshot) (string, chan Event) {
	t.Helper()

	dir := t.TempDir()
	socketPath := filepath.Join(dir, "scrollflip.sock")

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan Event, 16)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := runIPCServer(ctx, socketPath, events, slog.Default()); err != nil {
			t.Errorf("ipc server: %v", err)
		}
	}()

	// Snapshot responder standing in for the daemon loop.
	respCtx, respCancel := context.WithCancel(context.Background())
	go func() {
		for {
			select {
			case <-respCtx.Done():
				return
			case ev := <-events:
				if req, ok := ev.(RequestStateSnapshot); ok {
					req.Reply <- snap
				} else {
					// Put control events back for the test to inspect.
					events <- ev
				}
			}
		}
	}()

	t.Cleanup(func() {
		respCancel()
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Errorf("timeout waiting for ipc server to stop")
		}
	})

	// Wait for the socket to exist before letting the test dial.
	waitUntil(t, time.Second, func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	}, "ipc socket never appeared")

	return socketPath, events
}

// TestIPC_SendControlEvent tests the reset round trip over the socket
func TestIPC_SendControlEvent(t *testing.T) {
	socketPath, events := startTestIPC(t, StateSnapshot{})

	if err := SendIPCEvent(socketPath, ResetClassifier{}); err != nil {
		t.Fatalf("send reset: %v", err)
	}

	waitUntil(t, time.Second, func() bool { return len(events) > 0 },
		"control event never queued")

	if _, ok := (<-events).(ResetClassifier); !ok {
		t.Errorf("expected ResetClassifier on the event stream")
	}
}

// TestIPC_SetEnabledCarriesPayload tests that event data survives the wire
func TestIPC_SetEnabledCarriesPayload(t *testing.T) {
	socketPath, events := startTestIPC(t, StateSnapshot{})

	if err := SendIPCEvent(socketPath, SetEnabled{Enabled: false}); err != nil {
		t.Fatalf("send set_enabled: %v", err)
	}

	waitUntil(t, time.Second, func() bool { return len(events) > 0 },
		"control event never queued")

	ev, ok := (<-events).(SetEnabled)
	if !ok || ev.Enabled {
		t.Errorf("expected SetEnabled(false), got %+v", ev)
	}
}

// TestIPC_StatusQuery tests the snapshot query round trip
func TestIPC_StatusQuery(t *testing.T) {
	want := StateSnapshot{
		Classification: "trackpad",
		Enabled:        true,
		HistoryLen:     7,
		SamplesTotal:   42,
		InvertedTotal:  9,
	}
	socketPath, _ := startTestIPC(t, want)

	got, err := QueryIPCStatus(socketPath)
	if err != nil {
		t.Fatalf("status query: %v", err)
	}
	if got.Classification != want.Classification || got.SamplesTotal != want.SamplesTotal ||
		got.HistoryLen != want.HistoryLen || got.InvertedTotal != want.InvertedTotal {
		t.Errorf("snapshot mismatch: got %+v want %+v", got, want)
	}
}

// TestIPC_MalformedRequestRejected tests the error response path
func TestIPC_MalformedRequestRejected(t *testing.T) {
	socketPath, _ := startTestIPC(t, StateSnapshot{})

	err := SendIPCEvent(socketPath, Tick{})
	if err == nil {
		t.Errorf("expected error for non-marshalable event")
	}
}

// TestUnmarshalEvent tests the control event envelope decoding
func TestUnmarshalEvent(t *testing.T) {
	ev, err := UnmarshalEvent([]byte(`{"type":"reset"}`))
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, ok := ev.(ResetClassifier); !ok {
		t.Errorf("expected ResetClassifier, got %T", ev)
	}

	ev, err = UnmarshalEvent([]byte(`{"type":"set_enabled","data":{"enabled":true}}`))
	if err != nil {
		t.Fatalf("set_enabled: %v", err)
	}
	if e, ok := ev.(SetEnabled); !ok || !e.Enabled {
		t.Errorf("expected SetEnabled(true), got %+v", ev)
	}

	ev, err = UnmarshalEvent([]byte(`{"type":"toggle"}`))
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if _, ok := ev.(ToggleEnabled); !ok {
		t.Errorf("expected ToggleEnabled, got %T", ev)
	}

	if _, err := UnmarshalEvent([]byte(`{"type":"make-coffee"}`)); err == nil {
		t.Errorf("expected error for unknown type")
	}
	if _, err := UnmarshalEvent([]byte(`not json`)); err == nil {
		t.Errorf("expected error for malformed envelope")
	}
}
