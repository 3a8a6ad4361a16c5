// Package timeline compiles parsed script events into an ordered, conflict
// free timeline ready for playback.
package timeline

import (
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"

	"autokey/internal/script"
)

// OrderError reports an event whose timestamp is earlier than an event
// accepted before it. It is only returned when strict ordering is enabled.
type OrderError struct {
	Line      int // 0 when the event did not come from a script line
	Event     script.Event
	Timestamp uint64
	Previous  uint64
}

func (e *OrderError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: timestamp %dms is before previous event at %dms", e.Line, e.Timestamp, e.Previous)
	}
	return fmt.Sprintf("timestamp %dms is before previous event at %dms", e.Timestamp, e.Previous)
}

// Timeline is an immutable, ordered sequence of accepted events.
type Timeline struct {
	events []script.Event
}

// NewTimeline wraps events without any availability checks.
func NewTimeline(events []script.Event) *Timeline {
	return &Timeline{events: slices.Clone(events)}
}

// Len returns the number of events.
func (t *Timeline) Len() int { return len(t.events) }

// At returns the i-th event.
func (t *Timeline) At(i int) script.Event { return t.events[i] }

// Events returns a copy of the events in acceptance order.
func (t *Timeline) Events() []script.Event { return slices.Clone(t.events) }

// Stats summarises one compilation.
type Stats struct {
	LinesRead  int `json:"lines_read"`
	Candidates int `json:"candidates"`
	Accepted   int `json:"accepted"`
	Dropped    int `json:"dropped"`
	Malformed  int `json:"malformed"`
	OutOfOrder int `json:"out_of_order"`
}

// Builder accepts events in file order, dropping those whose input source is
// still busy. It never reorders.
type Builder struct {
	tracker *Tracker
	strict  bool
	events  []script.Event
	latest  uint64
	stats   Stats
}

// NewBuilder creates a builder that owns tracker for its lifetime.
func NewBuilder(tracker *Tracker, strictOrder bool) *Builder {
	return &Builder{tracker: tracker, strict: strictOrder}
}

// Add offers one event to the timeline. It returns false when the event was
// dropped because its source was busy, or rejected with an *OrderError in
// strict mode.
func (b *Builder) Add(ev script.Event) (bool, error) {
	b.stats.Candidates++
	ts := ev.Timestamp()

	source, tracked := script.SourceKey(ev)
	if tracked && !b.tracker.IsAvailable(source, ts) {
		b.stats.Dropped++
		log.Debug().
			Str("component", "timeline").
			Str("source", source).
			Uint64("ts", ts).
			Uint64("busy_until", b.tracker.BusyUntil(source)).
			Msg("Timeline: conflict drop")
		return false, nil
	}

	if ts < b.latest {
		b.stats.OutOfOrder++
		if b.strict {
			return false, &OrderError{Event: ev, Timestamp: ts, Previous: b.latest}
		}
		log.Warn().
			Str("component", "timeline").
			Uint64("ts", ts).
			Uint64("previous", b.latest).
			Msg("Timeline: event is earlier than the one before it, playing it immediately")
	}

	b.events = append(b.events, ev)
	b.stats.Accepted++
	b.latest = max(b.latest, ts)
	if tracked {
		b.tracker.Reserve(source, ts, script.Duration(ev))
	}
	return true, nil
}

// Stats returns the counters collected so far.
func (b *Builder) Stats() Stats { return b.stats }

// Timeline returns the accepted events.
func (b *Builder) Timeline() *Timeline {
	return &Timeline{events: slices.Clone(b.events)}
}
