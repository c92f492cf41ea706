package main

import (
	"fmt"
	"time"
)

// This file implements the dispatcher building blocks:
//
//   - Commands: side effects requested by the dispatcher (forward an event,
//     run a hotkey action, publish a snapshot)
//   - Dispatch(): computes next state + commands + broadcasts, without
//     performing I/O
//
// The dispatcher must not block and must not perform I/O: the grabbed devices
// deliver events serially and the whole decision path has to complete in
// bounded, small time. The daemon loop executes Commands and owns all side
// effects.

// ==============================
// Commands (side effects)
// ==============================

// Command represents an external side effect to be executed by the daemon
// loop, primarily writes to the virtual output device.
type Command interface {
	commandMarker()
	String() string
}

// CmdForwardScroll re-emits a scroll frame on the virtual device. Modified is
// true when the inversion transform was applied.
type CmdForwardScroll struct {
	Scroll   ScrollEvent
	Modified bool
}

func (CmdForwardScroll) commandMarker() {}
func (c CmdForwardScroll) String() string {
	return fmt.Sprintf("CmdForwardScroll(line_y=%d pixel_y=%d modified=%v)",
		c.Scroll.LineDeltaY, c.Scroll.PixelDeltaY, c.Modified)
}

// CmdForwardRaw re-emits an untouched device event on the virtual device.
type CmdForwardRaw struct {
	Raw inputEvent
}

func (CmdForwardRaw) commandMarker() {}
func (c CmdForwardRaw) String() string {
	return fmt.Sprintf("CmdForwardRaw(type=%#x code=%#x value=%d)", c.Raw.Type, c.Raw.Code, c.Raw.Value)
}

// CmdRunAction executes a matched hotkey action.
type CmdRunAction struct {
	Action HotkeyAction
}

func (CmdRunAction) commandMarker() {}
func (c CmdRunAction) String() string {
	return fmt.Sprintf("CmdRunAction(%s)", c.Action.Kind)
}

// CmdPublishSnapshot delivers a state snapshot to the requester. The channel
// send lives in the effects layer to keep the dispatcher pure.
type CmdPublishSnapshot struct {
	Snapshot StateSnapshot
	Reply    chan StateSnapshot
}

func (CmdPublishSnapshot) commandMarker() {}
func (CmdPublishSnapshot) String() string { return "CmdPublishSnapshot()" }

// ==============================
// Daemon state
// ==============================

// DispatchStats are the externally visible counters.
type DispatchStats struct {
	SamplesTotal  uint64
	InvertedTotal uint64
	LastSampleAt  time.Time
}

// DaemonState is the daemon-owned state container. The classifier is an
// owned instance created at startup; nothing global. Exactly one writer: the
// daemon goroutine, which serializes input frames, IPC control events and
// hotkey effects onto the same stream.
type DaemonState struct {
	Classifier *Classifier
	Enabled    bool
	Stats      DispatchStats

	// lastBroadcastClass tracks what the websocket clients last heard so
	// classification broadcasts fire only on change.
	lastBroadcastClass Classification
	hasBroadcastClass  bool

	// statsAnnounced tracks the counters included in the last stats
	// broadcast.
	statsAnnounced DispatchStats
}

// NewDaemonState builds the initial state with an owned classifier.
func NewDaemonState(cfg ClassifierConfig, enabled bool) *DaemonState {
	return &DaemonState{
		Classifier: NewClassifier(cfg),
		Enabled:    enabled,
	}
}

// Snapshot returns a coherent copy of the externally visible state.
func (s *DaemonState) Snapshot() StateSnapshot {
	return StateSnapshot{
		Classification: s.Classifier.Current().String(),
		Enabled:        s.Enabled,
		HistoryLen:     s.Classifier.HistoryLen(),
		SamplesTotal:   s.Stats.SamplesTotal,
		InvertedTotal:  s.Stats.InvertedTotal,
		LastSampleAt:   s.Stats.LastSampleAt,
	}
}

// ==============================
// Dispatcher
// ==============================

// DispatchResult is the output of Dispatch(): next state plus commands to
// execute and state broadcasts for the websocket hub.
type DispatchResult struct {
	State      *DaemonState
	Commands   []Command
	Broadcasts []StateBroadcast
}

// Dispatch is the pure dispatcher:
//
// Rules:
//   - Must not perform I/O and must not block.
//   - Must not mutate anything outside the returned state.
//
// The daemon loop executes Commands and hands Broadcasts to the websocket
// broadcaster.
func Dispatch(s *DaemonState, e Event, hotkeys *HotkeyTable) DispatchResult {
	if s == nil {
		s = NewDaemonState(DefaultClassifierConfig(), true)
	}

	var cmds []Command
	var bcasts []StateBroadcast

	switch ev := e.(type) {
	case TimedEvent:
		// Unwrap; the payload carries its own timestamps where needed.
		return Dispatch(s, ev.Event, hotkeys)

	case ScrollSampleEvent:
		sc := ev.Scroll

		// Empty frames carry nothing to classify or invert.
		if sc.IsZero() {
			cmds = append(cmds, CmdForwardScroll{Scroll: sc})
			break
		}

		class := s.Classifier.Classify(sc.Sample())
		s.Stats.SamplesTotal++
		s.Stats.LastSampleAt = sc.At

		if s.Enabled && class == ClassWheel {
			s.Stats.InvertedTotal++
			cmds = append(cmds, CmdForwardScroll{Scroll: sc.Invert(), Modified: true})
		} else {
			cmds = append(cmds, CmdForwardScroll{Scroll: sc})
		}

		if !s.hasBroadcastClass || s.lastBroadcastClass != class {
			s.lastBroadcastClass = class
			s.hasBroadcastClass = true
			bcasts = append(bcasts, BroadcastClassificationChanged{
				Classification: class.String(),
				At:             sc.At,
			})
		}

	case KeyPressEvent:
		if action, ok := hotkeys.Lookup(ev.Mods, ev.Code); ok {
			// Matched chords are suppressed: the press never reaches
			// the virtual device.
			cmds = append(cmds, CmdRunAction{Action: action})
			break
		}
		cmds = append(cmds, CmdForwardRaw{Raw: ev.Raw})

	case OtherInputEvent:
		cmds = append(cmds, CmdForwardRaw{Raw: ev.Raw})

	case ResetClassifier:
		s.Classifier.Reset()
		if !s.hasBroadcastClass || s.lastBroadcastClass != ClassUnknown {
			s.lastBroadcastClass = ClassUnknown
			s.hasBroadcastClass = true
			bcasts = append(bcasts, BroadcastClassificationChanged{
				Classification: ClassUnknown.String(),
				At:             time.Now(),
			})
		}

	case SetEnabled:
		s.Enabled = ev.Enabled

	case ToggleEnabled:
		s.Enabled = !s.Enabled

	case RequestStateSnapshot:
		cmds = append(cmds, CmdPublishSnapshot{Snapshot: s.Snapshot(), Reply: ev.Reply})

	case Tick:
		// Periodic stats broadcast, only when the counters moved.
		if s.Stats != s.statsAnnounced {
			s.statsAnnounced = s.Stats
			bcasts = append(bcasts, BroadcastSampleStats{
				SamplesTotal:  s.Stats.SamplesTotal,
				InvertedTotal: s.Stats.InvertedTotal,
				At:            ev.Now,
			})
		}

	default:
		// Unknown event type: no-op.
	}

	return DispatchResult{
		State:      s,
		Commands:   cmds,
		Broadcasts: bcasts,
	}
}
