// Package playback replays a compiled timeline against an input injector,
// dispatching each event at its offset from playback start.
package playback

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"autokey/internal/input"
	"autokey/internal/script"
	"autokey/internal/timeline"
)

// DispatchError reports an event the injector failed to perform.
type DispatchError struct {
	Index int
	Event script.Event
	Err   error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("event %d (%v): %v", e.Index, e.Event, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Progress is reported to the observer after every dispatch.
type Progress struct {
	Index  int
	Total  int
	Event  script.Event
	Offset time.Duration // time since playback start when dispatch began
	Err    *DispatchError
}

// Report summarises one playback run.
type Report struct {
	Total      int
	Dispatched int
	Failed     []*DispatchError
	Cancelled  bool
	Elapsed    time.Duration
}

// FirstError returns the earliest failed dispatch, or nil.
func (r *Report) FirstError() *DispatchError {
	if len(r.Failed) == 0 {
		return nil
	}
	return r.Failed[0]
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithAbortOnError stops playback at the first failed dispatch.
func WithAbortOnError(abort bool) Option {
	return func(s *Scheduler) { s.abortOnError = abort }
}

// WithObserver registers a callback run after each dispatch on the playback
// goroutine. It must not block.
func WithObserver(fn func(Progress)) Option {
	return func(s *Scheduler) { s.observer = fn }
}

// Scheduler plays timelines one event at a time on the calling goroutine.
type Scheduler struct {
	inj          input.Injector
	clock        Clock
	abortOnError bool
	observer     func(Progress)
}

// New creates a scheduler driving inj.
func New(inj input.Injector, opts ...Option) *Scheduler {
	s := &Scheduler{inj: inj, clock: SystemClock()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Play dispatches every event of tl at start+timestamp, where start is taken
// once when Play is called. Events whose time has passed run immediately.
// Cancelling ctx stops playback between dispatches; held buttons and keys
// are released before Play returns. The returned error is ctx.Err() on
// cancellation, or the first *DispatchError when aborting on error.
func (s *Scheduler) Play(ctx context.Context, tl *timeline.Timeline) (*Report, error) {
	rep := &Report{Total: tl.Len()}
	start := s.clock.Now()
	held := newHeldInputs()

	var runErr error
	for i := 0; i < tl.Len(); i++ {
		ev := tl.At(i)
		target := start.Add(millis(ev.Timestamp()))
		if !s.clock.SleepUntil(ctx, target) {
			rep.Cancelled = true
			runErr = ctx.Err()
			break
		}

		offset := s.clock.Now().Sub(start)
		log.Debug().
			Str("component", "playback").
			Int("index", i).
			Stringer("event", eventStringer{ev}).
			Dur("late", offset-millis(ev.Timestamp())).
			Msg("Playback: dispatch")

		var dErr *DispatchError
		if err := s.dispatch(ev, held); err != nil {
			dErr = &DispatchError{Index: i, Event: ev, Err: err}
			rep.Failed = append(rep.Failed, dErr)
			log.Warn().Str("component", "playback").Err(dErr).Msg("Playback: dispatch failed")
		} else {
			rep.Dispatched++
		}

		if s.observer != nil {
			s.observer(Progress{Index: i, Total: rep.Total, Event: ev, Offset: offset, Err: dErr})
		}
		if dErr != nil && s.abortOnError {
			runErr = dErr
			break
		}
	}

	s.releaseHeld(held)
	rep.Elapsed = s.clock.Now().Sub(start)
	return rep, runErr
}

func (s *Scheduler) dispatch(ev script.Event, held *heldInputs) error {
	switch e := ev.(type) {
	case script.MouseEvent:
		return s.dispatchMouse(e, held)
	case script.KeyboardEvent:
		return s.dispatchKey(e, held)
	case script.SleepEvent:
		s.clock.Sleep(millis(e.DurationMs))
		return nil
	}
	return fmt.Errorf("unsupported event type %T", ev)
}

func (s *Scheduler) dispatchMouse(e script.MouseEvent, held *heldInputs) error {
	if e.Action == script.MouseMove {
		return s.moveTo(e.Position)
	}

	button, err := input.ParseButton(string(e.Button))
	if err != nil {
		return err
	}
	if err := s.moveTo(e.Position); err != nil {
		return err
	}

	switch e.Action {
	case script.MouseDown:
		if err := s.inj.PressMouseButton(button); err != nil {
			return err
		}
		held.buttons[button] = true
		return nil
	case script.MouseUp:
		delete(held.buttons, button)
		return s.inj.ReleaseMouseButton(button)
	case script.MouseClick:
		if err := s.inj.PressMouseButton(button); err != nil {
			return err
		}
		s.clock.Sleep(millis(e.DurationMs))
		return s.inj.ReleaseMouseButton(button)
	}
	return fmt.Errorf("unsupported mouse action %q", e.Action)
}

func (s *Scheduler) dispatchKey(e script.KeyboardEvent, held *heldInputs) error {
	switch e.Direction {
	case script.KeyDown:
		if err := s.inj.PressKey(e.Key); err != nil {
			return err
		}
		held.keys[e.Key] = true
		return nil
	case script.KeyUp:
		delete(held.keys, e.Key)
		return s.inj.ReleaseKey(e.Key)
	case script.KeyPress:
		if err := s.inj.PressKey(e.Key); err != nil {
			return err
		}
		s.clock.Sleep(millis(e.DurationMs))
		return s.inj.ReleaseKey(e.Key)
	}
	return fmt.Errorf("unsupported key direction %q", e.Direction)
}

// moveTo positions the cursor; ratio positions are resolved against the
// current screen size.
func (s *Scheduler) moveTo(pos script.Position) error {
	var w, h int
	switch pos.Kind {
	case script.PositionNone:
		return nil
	case script.PositionRatio:
		var err error
		if w, h, err = s.inj.ScreenSize(); err != nil {
			return fmt.Errorf("screen size: %w", err)
		}
	}
	x, y, _ := pos.Resolve(w, h)
	return s.inj.SetCursorPosition(x, y)
}

// heldInputs tracks buttons and keys pressed by "down" events that have not
// been released yet.
type heldInputs struct {
	buttons map[input.Button]bool
	keys    map[string]bool
}

func newHeldInputs() *heldInputs {
	return &heldInputs{buttons: map[input.Button]bool{}, keys: map[string]bool{}}
}

func (s *Scheduler) releaseHeld(held *heldInputs) {
	for _, b := range slices.Sorted(maps.Keys(held.buttons)) {
		log.Warn().Str("component", "playback").Stringer("button", b).Msg("Playback: releasing held mouse button")
		if err := s.inj.ReleaseMouseButton(b); err != nil {
			log.Error().Str("component", "playback").Err(err).Msg("Playback: release failed")
		}
	}
	for _, k := range slices.Sorted(maps.Keys(held.keys)) {
		log.Warn().Str("component", "playback").Str("key", k).Msg("Playback: releasing held key")
		if err := s.inj.ReleaseKey(k); err != nil {
			log.Error().Str("component", "playback").Err(err).Msg("Playback: release failed")
		}
	}
}

// millis converts ms to a Duration, saturating instead of overflowing so a
// huge timestamp is never scheduled in the past.
func millis(ms uint64) time.Duration {
	if ms > script.MaxMillis {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ms) * time.Millisecond
}

type eventStringer struct{ ev script.Event }

func (e eventStringer) String() string { return fmt.Sprint(e.ev) }
