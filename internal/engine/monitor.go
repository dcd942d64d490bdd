package engine

// HistoryLen is the number of jailing rates legitimacy remembers.
const HistoryLen = 4

// legitimacyTracker derives legitimacy from recent jailing rates.
type legitimacyTracker struct {
	initial float64
	rates   [HistoryLen]float64 // most recent first
}

// update shifts in the rate of the tick just finished and returns the new
// legitimacy l0 * (1 - r1 - r2^2 - r3^3), floored at 0. The newest rate r0
// only starts to count on the following tick.
func (t *legitimacyTracker) update(rate float64) float64 {
	copy(t.rates[1:], t.rates[:HistoryLen-1])
	t.rates[0] = rate

	r1, r2, r3 := t.rates[1], t.rates[2], t.rates[3]
	l := t.initial * (1 - r1 - r2*r2 - r3*r3*r3)
	if l < 0 {
		return 0
	}
	return l
}

// history returns a copy of the rate window, most recent first.
func (t *legitimacyTracker) history() []float64 {
	out := make([]float64, HistoryLen)
	copy(out, t.rates[:])
	return out
}

// hysteresis is a latch over a count: it trips when the count rises above
// threshold and resets only once it falls below.
type hysteresis struct {
	threshold int
	on        bool
}

// observe feeds one sample and reports whether the latch tripped or reset.
func (h *hysteresis) observe(count int) (tripped, reset bool) {
	switch {
	case !h.on && count > h.threshold:
		h.on = true
		return true, false
	case h.on && count < h.threshold:
		h.on = false
		return false, true
	}
	return false, false
}
