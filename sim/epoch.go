package sim

// Epoch identifies a half-open integration interval [T0, T1) together with a
// monotonically increasing id. The id selects the parity of the double
// buffers holding event lanes and local spikes for the interval.
//
// The resident epoch after Reset has ID -1 and a degenerate interval at time
// zero, so that the first integration interval computed by nextEpoch carries
// ID 0 and covers [0, interval).
type Epoch struct {
	ID int64
	T0 TimeType
	T1 TimeType
}

// AdvanceTo moves the epoch to the next interval ending at t.
func (e *Epoch) AdvanceTo(t TimeType) {
	e.T0 = e.T1
	e.T1 = t
	e.ID++
}

// Empty reports whether the interval contains no time at all.
func (e Epoch) Empty() bool {
	return e.T0 == e.T1
}

// Reset rewinds the epoch to the canonical pre-run state.
func (e *Epoch) Reset() {
	*e = Epoch{ID: -1}
}

// nextEpoch returns the epoch following e, extending at most interval beyond
// e.T1 and clamped to tfinal. If the clamp leaves T1 unchanged the returned
// epoch is empty, which signals termination to the run loop.
func nextEpoch(e Epoch, interval, tfinal TimeType) Epoch {
	next := e
	next.AdvanceTo(min(e.T1+interval, tfinal))
	return next
}
