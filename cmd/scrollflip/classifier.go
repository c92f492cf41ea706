package main

import "time"

// Classification is the classifier's verdict for the current scroll session.
//
// These are behavioral classifications derived from event statistics, not
// literal hardware identities: a wheel mouse driven very fast can legitimately
// classify as trackpad-like for a while, and that is the safer failure mode
// (a missed inversion is less visible than inverting an inertial fling).
type Classification int

const (
	// ClassUnknown is the initial state. It is never re-entered except via
	// an idle gap or an explicit reset.
	ClassUnknown Classification = iota
	ClassTrackpad
	ClassWheel
)

func (c Classification) String() string {
	switch c {
	case ClassTrackpad:
		return "trackpad"
	case ClassWheel:
		return "wheel"
	default:
		return "unknown"
	}
}

// Sample is one observed scroll event's timing and delta magnitudes, as seen
// by the classifier. Immutable once constructed.
type Sample struct {
	At          time.Time
	PixelDeltaX int32
	PixelDeltaY int32

	// Continuous is the hardware-reported pixel-granularity scrolling
	// indicator. A strong trackpad signal.
	Continuous bool
}

// ClassifierConfig contains all tunable parameters for the classifier.
//
// The thresholds are empirically tuned policy, not guaranteed semantics.
type ClassifierConfig struct {
	MaxHistory      int           // history buffer capacity
	IdleReset       time.Duration // inter-event gap that forces a session reset
	RateWindow      time.Duration // trailing window for density/ratio signals
	TrackpadRateMin int           // events-per-window threshold for the density signal
	SmallDeltaLimit int32         // per-axis magnitude below which a delta counts as "small"
	SmallRatioReq   float64       // minimum small-delta ratio for the borderline upgrade rule
}

// DefaultClassifierConfig returns the stock thresholds.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		MaxHistory:      defaultMaxHistory,
		IdleReset:       defaultIdleResetMS * time.Millisecond,
		RateWindow:      defaultRateWindowMS * time.Millisecond,
		TrackpadRateMin: defaultTrackpadRateMin,
		SmallDeltaLimit: defaultSmallDeltaLimit,
		SmallRatioReq:   defaultSmallRatioReq,
	}
}

// Classifier decides, per scroll sample, whether the physical source behaves
// like a trackpad (continuous, gesture/momentum-driven) or a wheel mouse
// (discrete, line-based).
//
// It is an owned value with exactly one legitimate writer: the daemon
// goroutine calls Classify once per sample, strictly in temporal order, and
// Reset only on the same stream. No internal locking; no operation blocks,
// suspends or performs I/O.
type Classifier struct {
	cfg     ClassifierConfig
	history sampleHistory

	lastAt  time.Time
	hasLast bool
	current Classification
}

// NewClassifier creates a classifier in the Unknown state.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = defaultMaxHistory
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = defaultRateWindowMS * time.Millisecond
	}
	if cfg.TrackpadRateMin <= 0 {
		cfg.TrackpadRateMin = defaultTrackpadRateMin
	}
	if cfg.SmallDeltaLimit <= 0 {
		cfg.SmallDeltaLimit = defaultSmallDeltaLimit
	}
	if cfg.SmallRatioReq <= 0 {
		cfg.SmallRatioReq = defaultSmallRatioReq
	}
	return &Classifier{
		cfg:     cfg,
		history: newSampleHistory(cfg.MaxHistory),
	}
}

// Classify consumes one sample and returns the classification now in effect.
//
// Signal precedence is strictly ordered and short-circuiting:
// continuous flag > density > borderline ratio > default-to-wheel.
func (c *Classifier) Classify(s Sample) Classification {
	// Idle/session reset. A gap of IdleReset or more means the previous
	// session's statistics no longer describe the device in hand.
	// Negative gaps (clock anomaly, out-of-order delivery) clamp to zero
	// rather than triggering a spurious reset.
	if c.hasLast {
		gap := s.At.Sub(c.lastAt)
		if gap < 0 {
			gap = 0
		}
		if c.cfg.IdleReset > 0 && gap >= c.cfg.IdleReset {
			c.current = ClassUnknown
			c.history.clear()
		}
	}
	c.lastAt = s.At
	c.hasLast = true

	c.history.append(s, c.cfg.MaxHistory)

	// Hard signal: hardware says continuous scrolling.
	if s.Continuous {
		c.transition(ClassTrackpad)
		return c.current
	}

	w := c.history.windowSince(s.At.Add(-c.cfg.RateWindow))
	r := rate(w)

	// Density signal: trackpads emit far more events per window than any
	// wheel detent train.
	if r >= c.cfg.TrackpadRateMin {
		c.transition(ClassTrackpad)
		return c.current
	}

	// Borderline signal: very gentle trackpad motion produces many tiny
	// deltas without clearing the plain rate threshold.
	if len(w) > 0 {
		ratio := smallRatio(w, c.cfg.SmallDeltaLimit)
		if ratio >= c.cfg.SmallRatioReq && r >= c.cfg.TrackpadRateMin-2 {
			c.transition(ClassTrackpad)
			return c.current
		}
	}

	// No trackpad evidence accumulated: assume wheel.
	c.transition(ClassWheel)
	return c.current
}

// transition moves to next. Entering the wheel state discards the buffered
// samples so trackpad-era statistics never bias a wheel session. Upgrades
// into the trackpad state keep the window: the rate and ratio signals are
// computed over exactly those samples, and dropping them would immediately
// starve the signal that produced the upgrade.
func (c *Classifier) transition(next Classification) {
	if c.current == next {
		return
	}
	c.current = next
	if next == ClassWheel {
		c.history.clear()
	}
}

// Reset restores the initial state without requiring a timing gap. It must be
// serialized with Classify on the same goroutine.
func (c *Classifier) Reset() {
	c.current = ClassUnknown
	c.history.clear()
	c.lastAt = time.Time{}
	c.hasLast = false
}

// Current returns the classification currently in effect. It only changes as
// a result of Classify or Reset, never spontaneously.
func (c *Classifier) Current() Classification {
	return c.current
}

// HistoryLen reports the number of buffered samples. Exposed for state
// snapshots and tests.
func (c *Classifier) HistoryLen() int {
	return c.history.len()
}

// rate is the event count over a window slice: an events-per-RateWindow
// density signal.
func rate(w []Sample) int {
	return len(w)
}

// smallRatio is the fraction of window entries whose deltas are both below
// limit in magnitude. Callers must only evaluate it on non-empty windows.
func smallRatio(w []Sample, limit int32) float64 {
	small := 0
	for _, s := range w {
		dx := s.PixelDeltaX
		if dx < 0 {
			dx = -dx
		}
		dy := s.PixelDeltaY
		if dy < 0 {
			dy = -dy
		}
		if dx < limit && dy < limit {
			small++
		}
	}
	return float64(small) / float64(len(w))
}
