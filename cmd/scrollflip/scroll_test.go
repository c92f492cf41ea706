package main

import (
	"testing"
	"time"
)

// TestScrollEvent_InvertNegatesAllAxes tests the inversion transform
func TestScrollEvent_InvertNegatesAllAxes(t *testing.T) {
	e := ScrollEvent{
		LineDeltaX:  1,
		LineDeltaY:  -2,
		LineDeltaZ:  3,
		PixelDeltaX: -40,
		PixelDeltaY: 50,
		PixelDeltaZ: -60,
	}

	inv := e.Invert()
	if inv.LineDeltaX != -1 || inv.LineDeltaY != 2 || inv.LineDeltaZ != -3 {
		t.Errorf("line deltas not negated: %+v", inv)
	}
	if inv.PixelDeltaX != 40 || inv.PixelDeltaY != -50 || inv.PixelDeltaZ != 60 {
		t.Errorf("pixel deltas not negated: %+v", inv)
	}
}

// TestScrollEvent_InvertIsSelfInverse tests that double inversion is identity
func TestScrollEvent_InvertIsSelfInverse(t *testing.T) {
	e := ScrollEvent{
		At:          time.Now(),
		LineDeltaY:  -3,
		PixelDeltaX: 17,
		PixelDeltaZ: -5,
		Continuous:  true,
	}

	if got := e.Invert().Invert(); got != e {
		t.Errorf("double inversion changed the event: %+v -> %+v", e, got)
	}
}

// TestScrollEvent_InvertPreservesMetadata tests that non-delta fields survive
func TestScrollEvent_InvertPreservesMetadata(t *testing.T) {
	at := time.Now()
	e := ScrollEvent{At: at, Continuous: true, LineDeltaY: 1}

	inv := e.Invert()
	if !inv.At.Equal(at) {
		t.Errorf("timestamp changed: %v -> %v", at, inv.At)
	}
	if !inv.Continuous {
		t.Errorf("continuous flag changed")
	}
}

// TestScrollEvent_SamplePixelDeltas tests projection when hi-res axes exist
func TestScrollEvent_SamplePixelDeltas(t *testing.T) {
	e := ScrollEvent{PixelDeltaX: -8, PixelDeltaY: 12, Continuous: true}

	s := e.Sample()
	if s.PixelDeltaX != -8 || s.PixelDeltaY != 12 {
		t.Errorf("expected pixel deltas passed through, got %+v", s)
	}
	if !s.Continuous {
		t.Errorf("expected continuous flag carried over")
	}
}

// TestScrollEvent_SampleLineFallback tests detent scaling for line-only wheels
func TestScrollEvent_SampleLineFallback(t *testing.T) {
	e := ScrollEvent{LineDeltaY: -2, LineDeltaX: 1}

	s := e.Sample()
	if s.PixelDeltaY != -2*wheelDetentHiRes {
		t.Errorf("expected Y fallback %d, got %d", -2*wheelDetentHiRes, s.PixelDeltaY)
	}
	if s.PixelDeltaX != 1*wheelDetentHiRes {
		t.Errorf("expected X fallback %d, got %d", wheelDetentHiRes, s.PixelDeltaX)
	}
}

// TestScrollEvent_IsZero tests the empty-frame check
func TestScrollEvent_IsZero(t *testing.T) {
	if !(ScrollEvent{At: time.Now(), Continuous: true}).IsZero() {
		t.Errorf("expected zero-delta event to be zero")
	}
	if (ScrollEvent{LineDeltaZ: 1}).IsZero() {
		t.Errorf("expected dial delta to make event non-zero")
	}
	if (ScrollEvent{PixelDeltaZ: -1}).IsZero() {
		t.Errorf("expected hi-res Z delta to make event non-zero")
	}
}
