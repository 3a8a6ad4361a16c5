package timeline

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"autokey/internal/script"
)

// RecordingSpacingMs separates recorded entries that carry no timestamp.
const RecordingSpacingMs = 10

// recordedEvent is one entry of a JSON input recording.
type recordedEvent struct {
	Type     string   `json:"type"` // "mouse", "keyboard", "sleep"
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
	Relative bool     `json:"relative,omitempty"` // x/y are 0..1 screen fractions
	Button   string   `json:"button,omitempty"`
	Action   string   `json:"action,omitempty"` // down, up, click (default), move
	Key      string   `json:"key,omitempty"`
	IsKeyUp  bool     `json:"is_keyup,omitempty"`
	Press    bool     `json:"press,omitempty"`
	Duration *uint64  `json:"duration,omitempty"`
	Ts       *uint64  `json:"ts,omitempty"`
}

// LoadRecording decodes a JSON array of recorded input into events. Entries
// without "ts" are placed RecordingSpacingMs after the previous one.
func LoadRecording(r io.Reader) ([]script.Event, error) {
	var entries []recordedEvent
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode recording: %w", err)
	}

	events := make([]script.Event, 0, len(entries))
	var next uint64
	for i, entry := range entries {
		ts := next
		if entry.Ts != nil {
			ts = *entry.Ts
		}
		if ts > script.MaxMillis {
			return nil, fmt.Errorf("recording entry %d: ts %d exceeds the maximum of %d ms", i, ts, script.MaxMillis)
		}
		if entry.Duration != nil && *entry.Duration > script.MaxMillis {
			return nil, fmt.Errorf("recording entry %d: duration %d exceeds the maximum of %d ms", i, *entry.Duration, script.MaxMillis)
		}
		next = ts + RecordingSpacingMs

		ev, err := entry.toEvent(ts)
		if err != nil {
			return nil, fmt.Errorf("recording entry %d: %w", i, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func (e recordedEvent) toEvent(ts uint64) (script.Event, error) {
	switch strings.ToLower(e.Type) {
	case "mouse":
		return e.mouseEvent(ts)
	case "keyboard":
		if e.Key == "" {
			return nil, fmt.Errorf("keyboard entry without key")
		}
		ev := script.KeyboardEvent{Key: strings.ToLower(e.Key), Direction: script.KeyDown, TimestampMs: ts}
		switch {
		case e.Press:
			ev.Direction = script.KeyPress
			if e.Duration != nil {
				ev.DurationMs = *e.Duration
			}
		case e.IsKeyUp:
			ev.Direction = script.KeyUp
		}
		return ev, nil
	case "sleep":
		ev := script.SleepEvent{DurationMs: script.DefaultSleepDurationMs, TimestampMs: ts}
		if e.Duration != nil {
			ev.DurationMs = *e.Duration
		}
		return ev, nil
	}
	return nil, fmt.Errorf("unknown type %q", e.Type)
}

func (e recordedEvent) mouseEvent(ts uint64) (script.Event, error) {
	ev := script.MouseEvent{Button: script.ButtonLeft, Action: script.MouseClick, TimestampMs: ts}
	if e.Button != "" {
		switch b := script.Button(strings.ToLower(e.Button)); b {
		case script.ButtonLeft, script.ButtonRight, script.ButtonMiddle:
			ev.Button = b
		default:
			return nil, fmt.Errorf("unknown button %q", e.Button)
		}
	}
	if e.Action != "" {
		switch a := script.MouseAction(strings.ToLower(e.Action)); a {
		case script.MouseDown, script.MouseUp, script.MouseClick, script.MouseMove:
			ev.Action = a
		default:
			return nil, fmt.Errorf("unknown mouse action %q", e.Action)
		}
	}

	if (e.X == nil) != (e.Y == nil) {
		return nil, fmt.Errorf("mouse entry needs both x and y")
	}
	if e.X != nil {
		if e.Relative {
			if *e.X < 0 || *e.X > 1 || *e.Y < 0 || *e.Y > 1 {
				return nil, fmt.Errorf("relative position %v,%v outside [0,1]", *e.X, *e.Y)
			}
			ev.Position = script.Ratio(*e.X, *e.Y)
		} else {
			ev.Position = script.Pixels(int(*e.X), int(*e.Y))
		}
	}
	if ev.Action == script.MouseMove && ev.Position.Kind == script.PositionNone {
		return nil, fmt.Errorf("move entry without position")
	}

	if ev.Action == script.MouseClick {
		ev.DurationMs = script.DefaultClickDurationMs
		if e.Duration != nil {
			ev.DurationMs = *e.Duration
		}
	}
	return ev, nil
}
