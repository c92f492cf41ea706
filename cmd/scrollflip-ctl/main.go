package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"
)

// ============================================================================
// scrollflip-ctl - Command-line IPC Client
// ============================================================================
// This tool sends control events to the scrollflip daemon via IPC.
//
// Usage:
//   scrollflip-ctl reset
//   scrollflip-ctl enable
//   scrollflip-ctl disable
//   scrollflip-ctl toggle
//   scrollflip-ctl status
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/scrollflip.sock)
// ============================================================================

// EventEnvelope wraps control events for JSON (duplicated from the daemon
// package for a standalone binary)
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// IPCResponse represents the daemon's response
type IPCResponse struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// StateSnapshot mirrors the daemon's status payload
type StateSnapshot struct {
	Classification string    `json:"classification"`
	Enabled        bool      `json:"enabled"`
	HistoryLen     int       `json:"history_len"`
	SamplesTotal   uint64    `json:"samples_total"`
	InvertedTotal  uint64    `json:"inverted_total"`
	LastSampleAt   time.Time `json:"last_sample_at"`
}

func main() {
	socketPath := "/tmp/scrollflip.sock"

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// Check for -socket flag
	if args[0] == "-socket" || args[0] == "--socket" {
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: -socket requires an argument\n")
			os.Exit(1)
		}
		socketPath = args[1]
		args = args[2:]
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	var env EventEnvelope

	switch args[0] {
	case "reset":
		env.Type = "reset"

	case "enable", "on":
		env.Type = "set_enabled"
		env.Data = json.RawMessage(`{"enabled":true}`)

	case "disable", "off":
		env.Type = "set_enabled"
		env.Data = json.RawMessage(`{"enabled":false}`)

	case "toggle":
		env.Type = "toggle"

	case "status":
		if err := queryStatus(socketPath); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return

	case "help", "-h", "--help":
		printUsage()
		os.Exit(0)

	default:
		fmt.Fprintf(os.Stderr, "error: unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}

	if err := sendEvent(socketPath, env); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("ok")
}

func roundTrip(socketPath string, env EventEnvelope) (IPCResponse, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return IPCResponse{}, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := json.Marshal(env)
	if err != nil {
		return IPCResponse{}, fmt.Errorf("marshal event: %w", err)
	}

	// Send event (line-delimited JSON)
	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return IPCResponse{}, fmt.Errorf("send event: %w", err)
	}

	var response IPCResponse
	decoder := json.NewDecoder(conn)
	if err := decoder.Decode(&response); err != nil {
		return IPCResponse{}, fmt.Errorf("decode response: %w", err)
	}

	if response.Status == "error" {
		return IPCResponse{}, fmt.Errorf("daemon error: %s", response.Error)
	}

	return response, nil
}

func sendEvent(socketPath string, env EventEnvelope) error {
	_, err := roundTrip(socketPath, env)
	return err
}

func queryStatus(socketPath string) error {
	resp, err := roundTrip(socketPath, EventEnvelope{Type: "status"})
	if err != nil {
		return err
	}

	var snap StateSnapshot
	if err := json.Unmarshal(resp.Data, &snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	fmt.Printf("classification: %s\n", snap.Classification)
	fmt.Printf("inversion:      %s\n", onOff(snap.Enabled))
	fmt.Printf("history:        %d samples\n", snap.HistoryLen)
	fmt.Printf("samples total:  %d\n", snap.SamplesTotal)
	fmt.Printf("inverted total: %d\n", snap.InvertedTotal)
	if !snap.LastSampleAt.IsZero() {
		fmt.Printf("last sample:    %s\n", snap.LastSampleAt.Format(time.RFC3339Nano))
	}
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `scrollflip-ctl - Control the scrollflip daemon via IPC

Usage:
  scrollflip-ctl [options] <command>

Options:
  -socket PATH    Unix domain socket path (default: /tmp/scrollflip.sock)

Commands:
  reset             Clear classifier state (back to unknown, empty history)
  enable, on        Turn wheel inversion on
  disable, off      Turn wheel inversion off
  toggle            Toggle wheel inversion
  status            Print daemon state snapshot
  help, -h, --help  Show this help message

Examples:
  scrollflip-ctl toggle
  scrollflip-ctl status
  scrollflip-ctl -socket /var/run/scrollflip.sock reset
`)
}
