package main

import (
	"testing"
	"time"
)

func newTestState(enabled bool) *DaemonState {
	return NewDaemonState(DefaultClassifierConfig(), enabled)
}

func scrollAt(offsetMS int, lineY int32, continuous bool) ScrollSampleEvent {
	return ScrollSampleEvent{Scroll: ScrollEvent{
		At:         classifierEpoch.Add(time.Duration(offsetMS) * time.Millisecond),
		LineDeltaY: lineY,
		Continuous: continuous,
	}}
}

func continuousScrollAt(offsetMS int, pixelY int32) ScrollSampleEvent {
	return ScrollSampleEvent{Scroll: ScrollEvent{
		At:          classifierEpoch.Add(time.Duration(offsetMS) * time.Millisecond),
		PixelDeltaY: pixelY,
		Continuous:  true,
	}}
}

// singleForward extracts the one CmdForwardScroll a scroll dispatch must emit.
func singleForward(t *testing.T, dr DispatchResult) CmdForwardScroll {
	t.Helper()
	if len(dr.Commands) != 1 {
		t.Fatalf("expected exactly one command, got %d: %v", len(dr.Commands), dr.Commands)
	}
	fwd, ok := dr.Commands[0].(CmdForwardScroll)
	if !ok {
		t.Fatalf("expected CmdForwardScroll, got %T", dr.Commands[0])
	}
	return fwd
}

// TestDispatch_WheelScrollInverted tests the core behavior: a wheel-classified
// detent is forwarded with negated deltas
func TestDispatch_WheelScrollInverted(t *testing.T) {
	s := newTestState(true)

	dr := Dispatch(s, scrollAt(0, -1, false), nil)
	fwd := singleForward(t, dr)

	if !fwd.Modified {
		t.Errorf("expected modified forward for wheel scroll")
	}
	if fwd.Scroll.LineDeltaY != 1 {
		t.Errorf("expected inverted delta +1, got %d", fwd.Scroll.LineDeltaY)
	}
	if s.Stats.SamplesTotal != 1 || s.Stats.InvertedTotal != 1 {
		t.Errorf("expected counters 1/1, got %d/%d", s.Stats.SamplesTotal, s.Stats.InvertedTotal)
	}
}

// TestDispatch_TrackpadScrollUntouched tests that continuous input passes
// through byte-identical
func TestDispatch_TrackpadScrollUntouched(t *testing.T) {
	s := newTestState(true)

	ev := continuousScrollAt(0, -12)
	dr := Dispatch(s, ev, nil)
	fwd := singleForward(t, dr)

	if fwd.Modified {
		t.Errorf("expected unmodified forward for trackpad scroll")
	}
	if fwd.Scroll != ev.Scroll {
		t.Errorf("expected event forwarded untouched, got %+v", fwd.Scroll)
	}
	if s.Stats.InvertedTotal != 0 {
		t.Errorf("expected no inversions, got %d", s.Stats.InvertedTotal)
	}
}

// TestDispatch_DisabledStillClassifies tests that disabling inversion keeps
// the classifier warm but never modifies events
func TestDispatch_DisabledStillClassifies(t *testing.T) {
	s := newTestState(false)

	dr := Dispatch(s, scrollAt(0, 1, false), nil)
	fwd := singleForward(t, dr)

	if fwd.Modified || fwd.Scroll.LineDeltaY != 1 {
		t.Errorf("expected untouched forward while disabled, got %+v", fwd)
	}
	if s.Classifier.Current() != ClassWheel {
		t.Errorf("expected classification to advance while disabled, got %s", s.Classifier.Current())
	}
	if s.Stats.SamplesTotal != 1 {
		t.Errorf("expected sample counted while disabled, got %d", s.Stats.SamplesTotal)
	}
}

// TestDispatch_ZeroScrollForwardedWithoutClassification tests the empty-frame
// edge case
func TestDispatch_ZeroScrollForwardedWithoutClassification(t *testing.T) {
	s := newTestState(true)

	dr := Dispatch(s, ScrollSampleEvent{Scroll: ScrollEvent{At: classifierEpoch}}, nil)
	fwd := singleForward(t, dr)

	if fwd.Modified {
		t.Errorf("expected zero frame unmodified")
	}
	if s.Stats.SamplesTotal != 0 {
		t.Errorf("expected zero frame not counted, got %d", s.Stats.SamplesTotal)
	}
	if s.Classifier.Current() != ClassUnknown {
		t.Errorf("expected classifier untouched by zero frame, got %s", s.Classifier.Current())
	}
	if len(dr.Broadcasts) != 0 {
		t.Errorf("expected no broadcasts for zero frame, got %v", dr.Broadcasts)
	}
}

// TestDispatch_ClassificationChangeBroadcastOnce tests that the classification
// broadcast fires on change, not per sample
func TestDispatch_ClassificationChangeBroadcastOnce(t *testing.T) {
	s := newTestState(true)

	dr := Dispatch(s, scrollAt(0, 1, false), nil)
	if len(dr.Broadcasts) != 1 {
		t.Fatalf("expected one broadcast on first classification, got %d", len(dr.Broadcasts))
	}
	bc, ok := dr.Broadcasts[0].(BroadcastClassificationChanged)
	if !ok || bc.Classification != "wheel" {
		t.Fatalf("expected wheel classification broadcast, got %+v", dr.Broadcasts[0])
	}

	// Second detent, same class: silence.
	dr = Dispatch(s, scrollAt(50, 1, false), nil)
	if len(dr.Broadcasts) != 0 {
		t.Errorf("expected no broadcast without a class change, got %v", dr.Broadcasts)
	}

	// Switch to a trackpad: one broadcast.
	dr = Dispatch(s, continuousScrollAt(90, 4), nil)
	if len(dr.Broadcasts) != 1 {
		t.Fatalf("expected one broadcast on class change, got %d", len(dr.Broadcasts))
	}
	if bc := dr.Broadcasts[0].(BroadcastClassificationChanged); bc.Classification != "trackpad" {
		t.Errorf("expected trackpad broadcast, got %s", bc.Classification)
	}
}

// TestDispatch_MixedSession is a scenario test: wheel detents, then a fast
// trackpad fling, then back to the wheel after a pause
func TestDispatch_MixedSession(t *testing.T) {
	s := newTestState(true)

	// Phase 1: three slow detents, all inverted.
	for i := 0; i < 3; i++ {
		fwd := singleForward(t, Dispatch(s, scrollAt(i*60, 1, false), nil))
		if !fwd.Modified {
			t.Fatalf("detent %d: expected inversion", i)
		}
	}

	// Phase 2: trackpad fling right after (40ms gap), untouched.
	base := 3 * 60
	for i := 0; i < 8; i++ {
		fwd := singleForward(t, Dispatch(s, continuousScrollAt(base+40+i*8, 6), nil))
		if fwd.Modified {
			t.Fatalf("fling sample %d: expected passthrough", i)
		}
	}

	// Phase 3: pause, then the wheel again; inversion resumes immediately.
	base += 40 + 8*8 + 250
	fwd := singleForward(t, Dispatch(s, scrollAt(base, -2, false), nil))
	if !fwd.Modified || fwd.Scroll.LineDeltaY != 2 {
		t.Errorf("expected inversion after idle gap, got %+v", fwd)
	}
}

// TestDispatch_DenseDiscreteBurstNotInverted tests that a discrete burst fast
// enough to classify as trackpad stops being inverted mid-stream
func TestDispatch_DenseDiscreteBurstNotInverted(t *testing.T) {
	s := newTestState(true)

	// Events 5ms apart: density crosses the trackpad threshold partway in.
	var lastFwd CmdForwardScroll
	for i := 0; i < 12; i++ {
		lastFwd = singleForward(t, Dispatch(s, scrollAt(i*5, 1, false), nil))
	}
	if s.Classifier.Current() != ClassTrackpad {
		t.Fatalf("expected trackpad after dense burst, got %s", s.Classifier.Current())
	}
	if lastFwd.Modified {
		t.Errorf("expected tail of dense burst forwarded unmodified")
	}
}

// TestDispatch_IsolatedSmallDeltaInverted tests that one small delta after
// silence defaults to wheel and gets negated
func TestDispatch_IsolatedSmallDeltaInverted(t *testing.T) {
	s := newTestState(true)

	ev := ScrollSampleEvent{Scroll: ScrollEvent{At: classifierEpoch, PixelDeltaY: 4, LineDeltaY: 1}}
	fwd := singleForward(t, Dispatch(s, ev, nil))
	if !fwd.Modified {
		t.Fatalf("expected isolated delta inverted")
	}
	if fwd.Scroll.PixelDeltaY != -4 || fwd.Scroll.LineDeltaY != -1 {
		t.Errorf("expected negated deltas, got %+v", fwd.Scroll)
	}
}

// TestDispatch_HotkeyMatchedSuppressed tests that a matched chord becomes an
// action command and never a raw forward
func TestDispatch_HotkeyMatchedSuppressed(t *testing.T) {
	table, err := NewHotkeyTable([]HotkeyBinding{
		{Key: 67, Mods: []string{"ctrl"}, Action: "toggle"}, // KEY_F9
	})
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	s := newTestState(true)

	press := KeyPressEvent{Code: 67, Mods: ModCtrl, Raw: inputEvent{Type: EV_KEY, Code: 67, Value: evValuePress}}
	dr := Dispatch(s, press, table)
	if len(dr.Commands) != 1 {
		t.Fatalf("expected one command, got %v", dr.Commands)
	}
	run, ok := dr.Commands[0].(CmdRunAction)
	if !ok {
		t.Fatalf("expected CmdRunAction, got %T", dr.Commands[0])
	}
	if run.Action.Kind != ActionToggle {
		t.Errorf("expected toggle action, got %s", run.Action.Kind)
	}
}

// TestDispatch_HotkeyUnmatchedForwarded tests that non-chord presses pass
// through raw
func TestDispatch_HotkeyUnmatchedForwarded(t *testing.T) {
	table, err := NewHotkeyTable([]HotkeyBinding{
		{Key: 67, Mods: []string{"ctrl"}, Action: "toggle"},
	})
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	s := newTestState(true)

	// Same key, wrong modifiers.
	raw := inputEvent{Type: EV_KEY, Code: 67, Value: evValuePress}
	dr := Dispatch(s, KeyPressEvent{Code: 67, Mods: ModShift, Raw: raw}, table)
	if len(dr.Commands) != 1 {
		t.Fatalf("expected one command, got %v", dr.Commands)
	}
	fwd, ok := dr.Commands[0].(CmdForwardRaw)
	if !ok {
		t.Fatalf("expected CmdForwardRaw, got %T", dr.Commands[0])
	}
	if fwd.Raw != raw {
		t.Errorf("expected original raw event forwarded, got %+v", fwd.Raw)
	}
}

// TestDispatch_ResetClassifier tests the hard reset control event
func TestDispatch_ResetClassifier(t *testing.T) {
	s := newTestState(true)

	Dispatch(s, scrollAt(0, 1, false), nil)
	if s.Classifier.Current() != ClassWheel {
		t.Fatalf("setup: expected wheel, got %s", s.Classifier.Current())
	}

	dr := Dispatch(s, ResetClassifier{}, nil)
	if s.Classifier.Current() != ClassUnknown {
		t.Errorf("expected unknown after reset, got %s", s.Classifier.Current())
	}
	if s.Classifier.HistoryLen() != 0 {
		t.Errorf("expected empty history after reset, got %d", s.Classifier.HistoryLen())
	}
	if len(dr.Broadcasts) != 1 {
		t.Fatalf("expected reset to broadcast, got %d broadcasts", len(dr.Broadcasts))
	}
	if bc := dr.Broadcasts[0].(BroadcastClassificationChanged); bc.Classification != "unknown" {
		t.Errorf("expected unknown broadcast, got %s", bc.Classification)
	}
}

// TestDispatch_EnableDisableToggle tests the inversion on/off control events
func TestDispatch_EnableDisableToggle(t *testing.T) {
	s := newTestState(true)

	Dispatch(s, SetEnabled{Enabled: false}, nil)
	if s.Enabled {
		t.Errorf("expected disabled after SetEnabled(false)")
	}

	Dispatch(s, ToggleEnabled{}, nil)
	if !s.Enabled {
		t.Errorf("expected enabled after toggle")
	}

	Dispatch(s, ToggleEnabled{}, nil)
	if s.Enabled {
		t.Errorf("expected disabled after second toggle")
	}
}

// TestDispatch_SnapshotRequest tests that a snapshot request yields a publish
// command carrying the current state
func TestDispatch_SnapshotRequest(t *testing.T) {
	s := newTestState(true)
	Dispatch(s, scrollAt(0, 1, false), nil)

	reply := make(chan StateSnapshot, 1)
	dr := Dispatch(s, RequestStateSnapshot{Reply: reply}, nil)
	if len(dr.Commands) != 1 {
		t.Fatalf("expected one command, got %v", dr.Commands)
	}
	pub, ok := dr.Commands[0].(CmdPublishSnapshot)
	if !ok {
		t.Fatalf("expected CmdPublishSnapshot, got %T", dr.Commands[0])
	}
	if pub.Snapshot.Classification != "wheel" {
		t.Errorf("expected wheel in snapshot, got %s", pub.Snapshot.Classification)
	}
	if pub.Snapshot.SamplesTotal != 1 || pub.Snapshot.InvertedTotal != 1 {
		t.Errorf("expected counters 1/1 in snapshot, got %d/%d",
			pub.Snapshot.SamplesTotal, pub.Snapshot.InvertedTotal)
	}
	if pub.Reply != reply {
		t.Errorf("expected reply channel passed through")
	}
}

// TestDispatch_TickBroadcastsOnlyOnChange tests the periodic stats broadcast
func TestDispatch_TickBroadcastsOnlyOnChange(t *testing.T) {
	s := newTestState(true)

	// No samples yet: tick stays silent.
	dr := Dispatch(s, Tick{Now: classifierEpoch}, nil)
	if len(dr.Broadcasts) != 0 {
		t.Fatalf("expected silent tick with no activity, got %v", dr.Broadcasts)
	}

	Dispatch(s, scrollAt(0, 1, false), nil)

	dr = Dispatch(s, Tick{Now: classifierEpoch.Add(time.Second)}, nil)
	if len(dr.Broadcasts) != 1 {
		t.Fatalf("expected stats broadcast after activity, got %d", len(dr.Broadcasts))
	}
	stats, ok := dr.Broadcasts[0].(BroadcastSampleStats)
	if !ok || stats.SamplesTotal != 1 || stats.InvertedTotal != 1 {
		t.Fatalf("expected stats 1/1, got %+v", dr.Broadcasts[0])
	}

	// Nothing new since: silent again.
	dr = Dispatch(s, Tick{Now: classifierEpoch.Add(2 * time.Second)}, nil)
	if len(dr.Broadcasts) != 0 {
		t.Errorf("expected silent tick without new samples, got %v", dr.Broadcasts)
	}
}

// TestDispatch_TimedEventUnwraps tests that the loop-boundary wrapper is
// transparent
func TestDispatch_TimedEventUnwraps(t *testing.T) {
	s := newTestState(true)

	dr := Dispatch(s, TimedEvent{Event: scrollAt(0, 1, false), At: time.Now()}, nil)
	fwd := singleForward(t, dr)
	if !fwd.Modified {
		t.Errorf("expected wrapped wheel scroll inverted, got %+v", fwd)
	}
}
