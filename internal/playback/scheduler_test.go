package playback

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"
	"time"

	"autokey/internal/input"
	"autokey/internal/script"
	"autokey/internal/timeline"
)

// fakeClock advances virtual time instead of sleeping
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time        { return c.now }
func (c *fakeClock) Sleep(d time.Duration) { c.now = c.now.Add(d) }

func (c *fakeClock) SleepUntil(ctx context.Context, t time.Time) bool {
	if ctx.Err() != nil {
		return false
	}
	if t.After(c.now) {
		c.now = t
	}
	return true
}

// recordingInjector records each call with the virtual time it happened at
type recordingInjector struct {
	clock *fakeClock
	start time.Time
	calls []string
}

func newRecordingInjector(c *fakeClock) *recordingInjector {
	return &recordingInjector{clock: c, start: c.now}
}

func (r *recordingInjector) record(format string, args ...any) {
	ms := r.clock.now.Sub(r.start).Milliseconds()
	r.calls = append(r.calls, fmt.Sprintf("%d:", ms)+fmt.Sprintf(format, args...))
}

func (r *recordingInjector) SetCursorPosition(x, y int) error {
	r.record("move(%d,%d)", x, y)
	return nil
}

func (r *recordingInjector) PressMouseButton(b input.Button) error {
	r.record("press(%s)", b)
	return nil
}

func (r *recordingInjector) ReleaseMouseButton(b input.Button) error {
	r.record("release(%s)", b)
	return nil
}

func (r *recordingInjector) PressKey(key string) error {
	if _, err := input.KeyCode(key); err != nil {
		return err
	}
	r.record("keydown(%s)", key)
	return nil
}

func (r *recordingInjector) ReleaseKey(key string) error {
	if _, err := input.KeyCode(key); err != nil {
		return err
	}
	r.record("keyup(%s)", key)
	return nil
}

func (r *recordingInjector) ScreenSize() (int, int, error) {
	return 1001, 501, nil
}

func compile(t *testing.T, src string) *timeline.Timeline {
	t.Helper()
	res, err := timeline.CompileString(src, timeline.Options{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return res.Timeline
}

// TestPlayEndToEnd tests dispatch order and timing of a small script
func TestPlayEndToEnd(t *testing.T) {
	clock := newFakeClock()
	inj := newRecordingInjector(clock)
	tl := compile(t, "left down 0\nleft up 100\nright click 500 20\n")
	if tl.Len() != 3 {
		t.Fatalf("Expected 3 events, got %d", tl.Len())
	}

	rep, err := New(inj, WithClock(clock)).Play(context.Background(), tl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"0:press(left)", "100:release(left)", "500:press(right)", "520:release(right)"}
	if !reflect.DeepEqual(inj.calls, want) {
		t.Errorf("Expected calls %v, got %v", want, inj.calls)
	}
	if rep.Dispatched != 3 || len(rep.Failed) != 0 || rep.Cancelled {
		t.Errorf("Unexpected report %+v", rep)
	}
	if rep.Elapsed != 520*time.Millisecond {
		t.Errorf("Expected elapsed 520ms, got %v", rep.Elapsed)
	}
}

// TestPlayNeverEarly tests that no dispatch happens before its target time
func TestPlayNeverEarly(t *testing.T) {
	clock := newFakeClock()
	start := clock.now
	inj := newRecordingInjector(clock)
	tl := compile(t, "key a 10\nkey b 250 5\nsleep 300 10\nmove 400 at 5 6\n")

	var offsets []time.Duration
	observer := func(p Progress) {
		if p.Offset < time.Duration(p.Event.Timestamp())*time.Millisecond {
			t.Errorf("event %d dispatched at %v before %dms", p.Index, p.Offset, p.Event.Timestamp())
		}
		offsets = append(offsets, clock.now.Sub(start))
	}

	if _, err := New(inj, WithClock(clock), WithObserver(observer)).Play(context.Background(), tl); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(offsets) != 4 {
		t.Errorf("Expected 4 progress reports, got %d", len(offsets))
	}
	want := []string{"10:keydown(a)", "10:keyup(a)", "250:keydown(b)", "255:keyup(b)", "400:move(5,6)"}
	if !reflect.DeepEqual(inj.calls, want) {
		t.Errorf("Expected calls %v, got %v", want, inj.calls)
	}
}

// TestPlayLateEventsNotSkipped tests that events past their time still run
func TestPlayLateEventsNotSkipped(t *testing.T) {
	clock := newFakeClock()
	inj := newRecordingInjector(clock)
	tl := compile(t, "sleep 0 1000\nkey a 500\n")

	if _, err := New(inj, WithClock(clock)).Play(context.Background(), tl); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"1000:keydown(a)", "1000:keyup(a)"}
	if !reflect.DeepEqual(inj.calls, want) {
		t.Errorf("Expected calls %v, got %v", want, inj.calls)
	}
}

// TestPlayRatioPosition tests that ratio positions use the screen size
func TestPlayRatioPosition(t *testing.T) {
	clock := newFakeClock()
	inj := newRecordingInjector(clock)
	tl := compile(t, "click 0 5 rel 0.5 0.5\n")

	if _, err := New(inj, WithClock(clock)).Play(context.Background(), tl); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"0:move(500,250)", "0:press(left)", "5:release(left)"}
	if !reflect.DeepEqual(inj.calls, want) {
		t.Errorf("Expected calls %v, got %v", want, inj.calls)
	}
}

// TestPlayDispatchErrorContinues tests that failures do not stop playback by default
func TestPlayDispatchErrorContinues(t *testing.T) {
	clock := newFakeClock()
	inj := newRecordingInjector(clock)
	tl := compile(t, "key a 0\nkey hyper 10\nkey b 20\n")

	rep, err := New(inj, WithClock(clock)).Play(context.Background(), tl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Dispatched != 2 || len(rep.Failed) != 1 {
		t.Fatalf("Expected 2 dispatched / 1 failed, got %d / %d", rep.Dispatched, len(rep.Failed))
	}
	first := rep.FirstError()
	if first.Index != 1 || !errors.Is(first, input.ErrUnknownKey) {
		t.Errorf("Expected unknown key at index 1, got %v", first)
	}
	if first.Event.(script.KeyboardEvent).Key != "hyper" {
		t.Errorf("Expected offending event to be tagged, got %v", first.Event)
	}
}

// TestPlayAbortOnError tests the abort policy
func TestPlayAbortOnError(t *testing.T) {
	clock := newFakeClock()
	inj := newRecordingInjector(clock)
	tl := compile(t, "key shift down 0\nkey hyper 10\nkey b 20\n")

	rep, err := New(inj, WithClock(clock), WithAbortOnError(true)).Play(context.Background(), tl)
	var de *DispatchError
	if !errors.As(err, &de) || de.Index != 1 {
		t.Fatalf("Expected DispatchError at index 1, got %v", err)
	}
	if rep.Dispatched != 1 {
		t.Errorf("Expected 1 dispatched, got %d", rep.Dispatched)
	}
	want := []string{"0:keydown(shift)", "10:keyup(shift)"}
	if !reflect.DeepEqual(inj.calls, want) {
		t.Errorf("Expected held shift to be released, got %v", inj.calls)
	}
}

// TestPlayCancelReleasesHeld tests cooperative cancellation between dispatches
func TestPlayCancelReleasesHeld(t *testing.T) {
	clock := newFakeClock()
	inj := newRecordingInjector(clock)
	tl := compile(t, "left down 0\nright click 50 30\nleft up 100\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	observer := func(p Progress) {
		if p.Index == 1 {
			cancel()
		}
	}

	rep, err := New(inj, WithClock(clock), WithObserver(observer)).Play(ctx, tl)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if !rep.Cancelled || rep.Dispatched != 2 {
		t.Errorf("Unexpected report %+v", rep)
	}
	want := []string{"0:press(left)", "50:press(right)", "80:release(right)", "80:release(left)"}
	if !reflect.DeepEqual(inj.calls, want) {
		t.Errorf("Expected calls %v, got %v", want, inj.calls)
	}
}

// TestPlayEmptyTimeline tests that an empty timeline is a no-op
func TestPlayEmptyTimeline(t *testing.T) {
	clock := newFakeClock()
	inj := newRecordingInjector(clock)
	rep, err := New(inj, WithClock(clock)).Play(context.Background(), timeline.NewTimeline(nil))
	if err != nil || rep.Total != 0 || len(inj.calls) != 0 {
		t.Errorf("Expected empty run, got %+v, %v, %v", rep, err, inj.calls)
	}
}

// TestPlayLargeTimestampNotEarly tests that the largest timestamp is waited
// for rather than wrapping into the past
func TestPlayLargeTimestampNotEarly(t *testing.T) {
	clock := newFakeClock()
	inj := newRecordingInjector(clock)
	tl := timeline.NewTimeline([]script.Event{
		script.MouseEvent{Button: script.ButtonLeft, Action: script.MouseDown, TimestampMs: 0},
		script.MouseEvent{Button: script.ButtonLeft, Action: script.MouseUp, TimestampMs: script.MaxMillis},
	})

	if _, err := New(inj, WithClock(clock)).Play(context.Background(), tl); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"0:press(left)", fmt.Sprintf("%d:release(left)", script.MaxMillis)}
	if !reflect.DeepEqual(inj.calls, want) {
		t.Errorf("Expected calls %v, got %v", want, inj.calls)
	}
}

// TestMillisSaturates tests the millisecond conversion at its limits
func TestMillisSaturates(t *testing.T) {
	tests := []struct {
		ms   uint64
		want time.Duration
	}{
		{0, 0},
		{1500, 1500 * time.Millisecond},
		{script.MaxMillis, time.Duration(script.MaxMillis) * time.Millisecond},
		{script.MaxMillis + 1, time.Duration(math.MaxInt64)},
		{math.MaxUint64, time.Duration(math.MaxInt64)},
	}
	for _, tt := range tests {
		if got := millis(tt.ms); got != tt.want {
			t.Errorf("millis(%d): expected %v, got %v", tt.ms, tt.want, got)
		}
	}
}
