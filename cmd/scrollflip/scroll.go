package main

import "time"

// ScrollEvent is one scroll event as extracted from the input layer, carrying
// every delta axis the inversion transform may rewrite.
//
// Line deltas are whole-detent units (REL_WHEEL/REL_HWHEEL/REL_DIAL); pixel
// deltas are the fine-grained hi-res units. Axes the hardware did not report
// stay zero.
type ScrollEvent struct {
	At time.Time

	LineDeltaX int32
	LineDeltaY int32
	LineDeltaZ int32

	PixelDeltaX int32
	PixelDeltaY int32
	PixelDeltaZ int32

	// Continuous is true when the source device reports pixel-granularity
	// continuous scrolling (see OpenTapDevice and the frame assembler).
	Continuous bool
}

// Invert negates the six delta fields. Self-inverse: applying it twice yields
// the original event. Zero axes stay zero, so absent axes are a no-op.
//
// Invert has no awareness of classification; the decision to call it belongs
// to the dispatcher, gated on the wheel-like verdict.
func (e ScrollEvent) Invert() ScrollEvent {
	e.LineDeltaX = -e.LineDeltaX
	e.LineDeltaY = -e.LineDeltaY
	e.LineDeltaZ = -e.LineDeltaZ
	e.PixelDeltaX = -e.PixelDeltaX
	e.PixelDeltaY = -e.PixelDeltaY
	e.PixelDeltaZ = -e.PixelDeltaZ
	return e
}

// Sample projects the event onto the classifier's view: timing, pixel delta
// magnitudes and the continuous flag. Line-only wheels report no pixel
// deltas; fall back to detent units scaled to the hi-res granularity so the
// small-delta heuristic sees comparable magnitudes.
func (e ScrollEvent) Sample() Sample {
	dx, dy := e.PixelDeltaX, e.PixelDeltaY
	if dx == 0 && dy == 0 {
		dx = e.LineDeltaX * wheelDetentHiRes
		dy = e.LineDeltaY * wheelDetentHiRes
	}
	return Sample{
		At:          e.At,
		PixelDeltaX: dx,
		PixelDeltaY: dy,
		Continuous:  e.Continuous,
	}
}

// IsZero reports whether no axis carries a delta. Such frames are forwarded
// untouched and never reach the classifier.
func (e ScrollEvent) IsZero() bool {
	return e.LineDeltaX == 0 && e.LineDeltaY == 0 && e.LineDeltaZ == 0 &&
		e.PixelDeltaX == 0 && e.PixelDeltaY == 0 && e.PixelDeltaZ == 0
}
