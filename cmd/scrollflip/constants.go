package main

// Linux input event types and codes (from <linux/input-event-codes.h>)
const (
	EV_SYN = 0x00
	EV_KEY = 0x01
	EV_REL = 0x02
	EV_MSC = 0x04

	SYN_REPORT = 0x00

	// Relative axes we rewrite. The HI_RES axes carry pixel-granularity
	// deltas (1/120th of a detent per unit on wheel hardware, arbitrary
	// fine-grained values on touchpad-style devices).
	REL_HWHEEL        = 0x06
	REL_DIAL          = 0x07
	REL_WHEEL         = 0x08
	REL_WHEEL_HI_RES  = 0x0b
	REL_HWHEEL_HI_RES = 0x0c

	// Modifier keys tracked for hotkey chords
	KEY_LEFTCTRL   = 29
	KEY_LEFTSHIFT  = 42
	KEY_RIGHTSHIFT = 54
	KEY_LEFTALT    = 56
	KEY_RIGHTCTRL  = 97
	KEY_RIGHTALT   = 100
	KEY_LEFTMETA   = 125
	KEY_RIGHTMETA  = 126
)

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

// One wheel detent on hi-res hardware is reported as 120 units.
const wheelDetentHiRes = 120

// Classifier configuration defaults.
//
// These are policy knobs, not correctness requirements; the YAML config can
// override every one of them.
const (
	defaultMaxHistory      = 32   // sample history capacity
	defaultIdleResetMS     = 100  // inter-event gap that forces a session reset (ms)
	defaultRateWindowMS    = 100  // trailing window for density/ratio signals (ms)
	defaultTrackpadRateMin = 6    // events per window for the density signal
	defaultSmallDeltaLimit = 15   // per-axis magnitude below which a delta is "small"
	defaultSmallRatioReq   = 0.60 // minimum small-delta ratio for the borderline rule
)

// Daemon defaults
const (
	defaultSnapshotHz = 2 // periodic state broadcast cadence (Hz)
)
