package main

import (
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================================
// Event Types - Tagged variants over the input stream
// ============================================================================
// Events represent everything the daemon reacts to: input frames from the
// grabbed devices, control requests from IPC/hotkeys, and time ticks. The
// central daemon loop consumes these and applies policy via Dispatch.
// ============================================================================

// Event is the input to the dispatcher.
type Event interface {
	eventMarker()
}

// TimedEvent attaches an arrival timestamp to a payload event. The daemon
// assigns timestamps at the loop boundary so payload types stay clean.
type TimedEvent struct {
	Event Event
	At    time.Time
}

func (TimedEvent) eventMarker() {}

// Tick is emitted by the daemon loop at a fixed cadence and drives the
// periodic state broadcast.
type Tick struct {
	Now time.Time
}

func (Tick) eventMarker() {}

// ScrollSampleEvent is one scroll frame extracted from a grabbed device.
type ScrollSampleEvent struct {
	Scroll ScrollEvent `json:"scroll"`
}

func (ScrollSampleEvent) eventMarker() {}

// KeyPressEvent is a non-modifier key press with the modifier set held at the
// moment it was observed. Raw carries the original device event so unmatched
// presses can be forwarded untouched.
type KeyPressEvent struct {
	Code uint16
	Mods ModMask
	Raw  inputEvent
}

func (KeyPressEvent) eventMarker() {}

// OtherInputEvent wraps raw device events the daemon forwards untouched
// (pointer motion, button clicks, key releases on non-hotkey devices).
type OtherInputEvent struct {
	Raw inputEvent
}

func (OtherInputEvent) eventMarker() {}

// ResetClassifier requests a hard classifier reset: clear history, back to
// the unknown classification, no timing gap required.
type ResetClassifier struct{}

func (ResetClassifier) eventMarker() {}

// SetEnabled switches inversion on or off. While disabled, events are still
// classified (so the session statistics stay warm) but never modified.
type SetEnabled struct {
	Enabled bool `json:"enabled"`
}

func (SetEnabled) eventMarker() {}

// ToggleEnabled flips the inversion on/off state.
type ToggleEnabled struct{}

func (ToggleEnabled) eventMarker() {}

// RequestStateSnapshot asks the dispatcher for a coherent state snapshot,
// delivered via the effects layer on Reply.
type RequestStateSnapshot struct {
	Reply chan StateSnapshot
}

func (RequestStateSnapshot) eventMarker() {}

// StateSnapshot is a coherent copy of the externally visible daemon state.
type StateSnapshot struct {
	Classification string    `json:"classification"`
	Enabled        bool      `json:"enabled"`
	HistoryLen     int       `json:"history_len"`
	SamplesTotal   uint64    `json:"samples_total"`
	InvertedTotal  uint64    `json:"inverted_total"`
	LastSampleAt   time.Time `json:"last_sample_at"`
}

// ============================================================================
// State broadcasts (consumed by the websocket hub)
// ============================================================================

// StateBroadcast is a dispatcher-emitted, externally consumable state change.
type StateBroadcast interface {
	broadcastMarker()
}

// BroadcastClassificationChanged is emitted whenever the classifier's verdict
// changes, including resets back to unknown.
type BroadcastClassificationChanged struct {
	Classification string
	At             time.Time
}

func (BroadcastClassificationChanged) broadcastMarker() {}

// BroadcastSampleStats is a periodic statistics update (coalesced by the
// websocket broadcaster; bursty by nature).
type BroadcastSampleStats struct {
	SamplesTotal  uint64
	InvertedTotal uint64
	At            time.Time
}

func (BroadcastSampleStats) broadcastMarker() {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================
// EventEnvelope wraps events with a type discriminator for the IPC wire
// protocol. Only control events cross the IPC boundary; input frames never
// leave the process.
// ============================================================================

// EventEnvelope wraps an event with a type discriminator for JSON marshaling
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalEvent deserializes a JSON event envelope into a concrete Event
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "reset":
		return ResetClassifier{}, nil

	case "set_enabled":
		var e SetEnabled
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal SetEnabled: %w", err)
		}
		return e, nil

	case "toggle":
		return ToggleEnabled{}, nil

	default:
		return nil, fmt.Errorf("unknown event type: %s", env.Type)
	}
}

// MarshalEvent serializes a control Event into a JSON event envelope
func MarshalEvent(ev Event) ([]byte, error) {
	var env EventEnvelope

	switch e := ev.(type) {
	case ResetClassifier:
		env.Type = "reset"

	case SetEnabled:
		env.Type = "set_enabled"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal SetEnabled: %w", err)
		}
		env.Data = data

	case ToggleEnabled:
		env.Type = "toggle"

	default:
		return nil, fmt.Errorf("event type %T is not IPC-marshalable", ev)
	}

	return json.Marshal(env)
}
