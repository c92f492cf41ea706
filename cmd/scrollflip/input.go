package main

import (
	"bytes"
	"encoding/binary"
	"time"
)

// inputEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// parseInputEvent decodes one raw input_event from buf.
func parseInputEvent(buf []byte) (inputEvent, bool) {
	var ev inputEvent
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &ev); err != nil {
		return inputEvent{}, false
	}
	return ev, true
}

// ============================================================================
// Frame assembly
// ============================================================================
// evdev delivers events in frames delimited by SYN_REPORT. The assembler is
// the single place raw field codes are interpreted: it extracts scroll axes
// into a typed ScrollEvent, tracks modifier state for hotkey chords, and
// passes everything else through untouched. The core never sees raw codes.
//
// Frame handling:
//   - frames containing scroll axes emit the non-scroll events raw, then one
//     ScrollSampleEvent; the frame's SYN_REPORT is swallowed because the
//     output device writes its own when the (possibly inverted) scroll frame
//     is re-emitted.
//   - frames without scroll axes pass through verbatim, SYN included.
// ============================================================================

type frameAssembler struct {
	// continuousSource marks a device that reports pixel-granular deltas
	// without detent semantics (probed at open time, see OpenTapDevice).
	continuousSource bool

	mods ModMask

	pending   []Event
	scroll    ScrollEvent
	sawScroll bool
	nonDetent bool
}

func newFrameAssembler(continuousSource bool) *frameAssembler {
	return &frameAssembler{continuousSource: continuousSource}
}

// push consumes one raw device event and returns zero or more daemon events
// in delivery order. now is the arrival timestamp (monotonic via Go's clock;
// evdev's own realtime stamps are not trusted for gap measurement).
func (a *frameAssembler) push(ev inputEvent, now time.Time) []Event {
	switch ev.Type {
	case EV_REL:
		switch ev.Code {
		case REL_WHEEL:
			a.scroll.LineDeltaY += ev.Value
			a.sawScroll = true
			return nil
		case REL_HWHEEL:
			a.scroll.LineDeltaX += ev.Value
			a.sawScroll = true
			return nil
		case REL_DIAL:
			a.scroll.LineDeltaZ += ev.Value
			a.sawScroll = true
			return nil
		case REL_WHEEL_HI_RES:
			a.scroll.PixelDeltaY += ev.Value
			a.sawScroll = true
			if ev.Value%wheelDetentHiRes != 0 {
				a.nonDetent = true
			}
			return nil
		case REL_HWHEEL_HI_RES:
			a.scroll.PixelDeltaX += ev.Value
			a.sawScroll = true
			if ev.Value%wheelDetentHiRes != 0 {
				a.nonDetent = true
			}
			return nil
		}
		// Pointer motion and other relative axes pass through.
		a.pending = append(a.pending, OtherInputEvent{Raw: ev})
		return nil

	case EV_KEY:
		if bit := modifierBit(ev.Code); bit != 0 {
			switch ev.Value {
			case evValuePress:
				a.mods |= bit
			case evValueRelease:
				a.mods &^= bit
			}
			a.pending = append(a.pending, OtherInputEvent{Raw: ev})
			return nil
		}
		if ev.Value == evValuePress {
			// Candidate hotkey press; the dispatcher decides whether
			// to suppress or forward it.
			a.pending = append(a.pending, KeyPressEvent{Code: ev.Code, Mods: a.mods, Raw: ev})
			return nil
		}
		a.pending = append(a.pending, OtherInputEvent{Raw: ev})
		return nil

	case EV_SYN:
		if ev.Code != SYN_REPORT {
			a.pending = append(a.pending, OtherInputEvent{Raw: ev})
			return nil
		}
		return a.flush(ev, now)

	default:
		a.pending = append(a.pending, OtherInputEvent{Raw: ev})
		return nil
	}
}

// flush closes the current frame at a SYN_REPORT boundary.
func (a *frameAssembler) flush(syn inputEvent, now time.Time) []Event {
	out := a.pending
	a.pending = nil

	if a.sawScroll {
		sc := a.scroll
		sc.At = now
		sc.Continuous = a.continuousSource || a.nonDetent
		out = append(out, ScrollSampleEvent{Scroll: sc})
	} else {
		out = append(out, OtherInputEvent{Raw: syn})
	}

	a.scroll = ScrollEvent{}
	a.sawScroll = false
	a.nonDetent = false
	return out
}
