package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"
)

// ============================================================================
// IPC Server - Unix Domain Socket Interface
// ============================================================================
// The IPC server allows external clients to send control events to the daemon
// via a Unix domain socket. This enables:
//   - Remote control via scrollflip-ctl (reset, enable/disable, toggle)
//   - Status queries for scripting and debugging
//
// Protocol: Line-delimited JSON
//   - Client sends: {"type": "event_name", "data": {...}}
//   - Server responds: {"status": "ok", "data": {...}?} or
//     {"status": "error", "error": "msg"}
//
// Control events travel the same serial event stream as device input, so the
// reset request is synchronized with sample processing by construction.
// ============================================================================

// IPCResponse represents the response sent back to IPC clients
type IPCResponse struct {
	Status string          `json:"status"`          // "ok" or "error"
	Error  string          `json:"error,omitempty"` // error message if status == "error"
	Data   json.RawMessage `json:"data,omitempty"`  // payload for queries (status)
}

// ipcSnapshotTimeout bounds how long a status query may wait on the daemon.
const ipcSnapshotTimeout = 1 * time.Second

// runIPCServer starts the Unix domain socket server.
// It runs until ctx is canceled, at which point it closes the listener and exits.
func runIPCServer(ctx context.Context, socketPath string, events chan<- Event, logger *slog.Logger) error {
	// Remove existing socket file if it exists
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	if err := os.Chmod(socketPath, 0666); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	logger.Info("IPC listening", "socket", socketPath)

	// Close the listener on shutdown. This unblocks Accept().
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("IPC listener closed (shutdown)")
				return nil
			}

			if errors.Is(err, net.ErrClosed) || strings.Contains(err.Error(), "use of closed network connection") {
				logger.Debug("IPC listener closed")
				return nil
			}

			logger.Error("IPC accept error", "error", err)
			continue
		}

		go handleIPCConnection(conn, events, logger)
	}
}

// handleIPCConnection handles a single IPC connection
func handleIPCConnection(conn net.Conn, events chan<- Event, logger *slog.Logger) {
	defer conn.Close()

	logger.Debug("IPC connection", "remote_addr", conn.RemoteAddr())

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)

	respond := func(resp IPCResponse) {
		if err := encoder.Encode(resp); err != nil {
			logger.Error("IPC failed to send response", "error", err)
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		logger.Debug("IPC received", "line", line)

		// Status is a query, not a control event: it round-trips a
		// snapshot request through the daemon loop.
		var env EventEnvelope
		if err := json.Unmarshal([]byte(line), &env); err != nil {
			respond(IPCResponse{Status: "error", Error: fmt.Sprintf("parse event: %v", err)})
			continue
		}
		if env.Type == "status" {
			respond(queryStatus(events, logger))
			continue
		}

		ev, err := UnmarshalEvent([]byte(line))
		if err != nil {
			respond(IPCResponse{Status: "error", Error: fmt.Sprintf("parse event: %v", err)})
			continue
		}

		select {
		case events <- ev:
			respond(IPCResponse{Status: "ok"})
		default:
			respond(IPCResponse{Status: "error", Error: "event queue full"})
		}
	}

	logger.Debug("IPC connection closed")
}

// queryStatus requests a state snapshot from the daemon and packages it as an
// IPC response.
func queryStatus(events chan<- Event, logger *slog.Logger) IPCResponse {
	reply := make(chan StateSnapshot, 1)

	select {
	case events <- RequestStateSnapshot{Reply: reply}:
	default:
		return IPCResponse{Status: "error", Error: "event queue full"}
	}

	select {
	case snap := <-reply:
		data, err := json.Marshal(snap)
		if err != nil {
			logger.Error("IPC snapshot marshal failed", "error", err)
			return IPCResponse{Status: "error", Error: "snapshot marshal failed"}
		}
		return IPCResponse{Status: "ok", Data: data}

	case <-time.After(ipcSnapshotTimeout):
		return IPCResponse{Status: "error", Error: "snapshot timed out"}
	}
}

// ============================================================================
// IPC Client Utility Functions
// ============================================================================

// SendIPCEvent sends a control event to the daemon via IPC and returns the response.
func SendIPCEvent(socketPath string, ev Event) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := MarshalEvent(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, err := fmt.Fprintf(conn, "%s\n", strings.TrimSpace(string(data))); err != nil {
		return fmt.Errorf("send event: %w", err)
	}

	decoder := json.NewDecoder(conn)
	var resp IPCResponse
	if err := decoder.Decode(&resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if resp.Status != "ok" {
		return fmt.Errorf("ipc error: %s", resp.Error)
	}

	return nil
}

// QueryIPCStatus requests the daemon's state snapshot over IPC.
func QueryIPCStatus(socketPath string) (StateSnapshot, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return StateSnapshot{}, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	if _, err := fmt.Fprintln(conn, `{"type":"status"}`); err != nil {
		return StateSnapshot{}, fmt.Errorf("send status query: %w", err)
	}

	decoder := json.NewDecoder(conn)
	var resp IPCResponse
	if err := decoder.Decode(&resp); err != nil {
		return StateSnapshot{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != "ok" {
		return StateSnapshot{}, fmt.Errorf("ipc error: %s", resp.Error)
	}

	var snap StateSnapshot
	if err := json.Unmarshal(resp.Data, &snap); err != nil {
		return StateSnapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}
