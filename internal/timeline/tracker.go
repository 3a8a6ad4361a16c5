package timeline

import "math"

// Tracker records, per input source, the earliest timestamp at which a new
// action may start. The zero value is not usable; call NewTracker.
type Tracker struct {
	busyUntil map[string]uint64
}

// NewTracker creates an empty tracker. Every source is available from 0.
func NewTracker() *Tracker {
	return &Tracker{busyUntil: make(map[string]uint64)}
}

// IsAvailable reports whether source may start an action at ts.
func (t *Tracker) IsAvailable(source string, ts uint64) bool {
	return ts >= t.busyUntil[source]
}

// Reserve marks source busy from ts for duration milliseconds. Zero-length
// actions still hold the source for 1ms so two of them cannot share a
// timestamp. The end saturates at math.MaxUint64, keeping the source busy
// for good rather than wrapping around.
func (t *Tracker) Reserve(source string, ts, duration uint64) {
	d := max(duration, 1)
	if ts > math.MaxUint64-d {
		t.busyUntil[source] = math.MaxUint64
		return
	}
	t.busyUntil[source] = ts + d
}

// BusyUntil returns the earliest free timestamp for source.
func (t *Tracker) BusyUntil(source string) uint64 {
	return t.busyUntil[source]
}
