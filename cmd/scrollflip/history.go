package main

import "time"

// sampleHistory is a fixed-capacity, time-ordered buffer of recent scroll
// samples with FIFO eviction. Entries are never mutated after insertion.
//
// All operations are total: eviction is a normal, silent event and never an
// error. The buffer is owned by a single Classifier and is not safe for
// concurrent use (the daemon invokes the classifier from one goroutine only).
type sampleHistory struct {
	samples []Sample
}

func newSampleHistory(capacity int) sampleHistory {
	if capacity <= 0 {
		capacity = defaultMaxHistory
	}
	return sampleHistory{
		samples: make([]Sample, 0, capacity),
	}
}

// append inserts s at the tail. If the buffer would exceed max entries, the
// head (oldest sample) is evicted first.
func (h *sampleHistory) append(s Sample, max int) {
	if max <= 0 {
		max = defaultMaxHistory
	}
	if len(h.samples) >= max {
		// Shift in place so the backing array never grows past capacity.
		n := copy(h.samples, h.samples[len(h.samples)-max+1:])
		h.samples = h.samples[:n]
	}
	h.samples = append(h.samples, s)
}

// windowSince returns the contiguous tail slice of entries observed at or
// after cutoff, preserving order. The returned slice aliases the buffer and
// must not be retained across the next append.
func (h *sampleHistory) windowSince(cutoff time.Time) []Sample {
	// History is time-ordered non-decreasing, so scan backwards for the
	// first entry older than the cutoff.
	i := len(h.samples)
	for i > 0 && !h.samples[i-1].At.Before(cutoff) {
		i--
	}
	return h.samples[i:]
}

// clear empties the buffer, keeping the backing array for reuse.
func (h *sampleHistory) clear() {
	h.samples = h.samples[:0]
}

func (h *sampleHistory) len() int {
	return len(h.samples)
}
