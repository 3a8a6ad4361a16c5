// Package script defines the timed input event model and the line parser for
// autokey scripts.
package script

import "fmt"

// Event is one timed action of a script. It is implemented by MouseEvent,
// KeyboardEvent and SleepEvent only.
type Event interface {
	// Timestamp is the offset in milliseconds from playback start.
	Timestamp() uint64
	isEvent()
}

// Button identifies a mouse button
type Button string

const (
	ButtonLeft   Button = "left"
	ButtonRight  Button = "right"
	ButtonMiddle Button = "middle"
)

// MouseAction is what a mouse event does with its button
type MouseAction string

const (
	MouseDown  MouseAction = "down"
	MouseUp    MouseAction = "up"
	MouseClick MouseAction = "click"
	MouseMove  MouseAction = "move"
)

// KeyDirection is what a keyboard event does with its key
type KeyDirection string

const (
	KeyDown  KeyDirection = "down"
	KeyUp    KeyDirection = "up"
	KeyPress KeyDirection = "press"
)

const (
	// DefaultClickDurationMs is used when a click line carries no duration.
	DefaultClickDurationMs = 10

	// DefaultSleepDurationMs is used when a sleep line carries no duration.
	DefaultSleepDurationMs = 1000
)

// PositionKind tags how a Position is interpreted
type PositionKind int

const (
	// PositionNone leaves the cursor where it is.
	PositionNone PositionKind = iota
	// PositionPixels is an absolute screen coordinate.
	PositionPixels
	// PositionRatio is a fraction of the screen size, resolved at dispatch time.
	PositionRatio
)

// Position is where a mouse action happens.
type Position struct {
	Kind   PositionKind
	PixelX int
	PixelY int
	RatioX float64
	RatioY float64
}

// Pixels returns an absolute pixel position.
func Pixels(x, y int) Position {
	return Position{Kind: PositionPixels, PixelX: x, PixelY: y}
}

// Ratio returns a screen-relative position; x and y are expected in [0,1].
func Ratio(x, y float64) Position {
	return Position{Kind: PositionRatio, RatioX: x, RatioY: y}
}

// Resolve converts the position to pixels for a screen of the given size.
// ok is false for PositionNone.
func (p Position) Resolve(width, height int) (x, y int, ok bool) {
	switch p.Kind {
	case PositionPixels:
		return p.PixelX, p.PixelY, true
	case PositionRatio:
		return int(p.RatioX * float64(width-1)), int(p.RatioY * float64(height-1)), true
	}
	return 0, 0, false
}

func (p Position) String() string {
	switch p.Kind {
	case PositionPixels:
		return fmt.Sprintf("at %d,%d", p.PixelX, p.PixelY)
	case PositionRatio:
		return fmt.Sprintf("rel %.3f,%.3f", p.RatioX, p.RatioY)
	}
	return "here"
}

// MouseEvent presses, releases, clicks or moves the mouse.
type MouseEvent struct {
	Button      Button
	Action      MouseAction
	Position    Position
	DurationMs  uint64
	TimestampMs uint64
}

// KeyboardEvent presses or releases one key.
type KeyboardEvent struct {
	Key         string
	Direction   KeyDirection
	DurationMs  uint64
	TimestampMs uint64
}

// SleepEvent blocks playback without injecting anything.
type SleepEvent struct {
	DurationMs  uint64
	TimestampMs uint64
}

func (e MouseEvent) Timestamp() uint64    { return e.TimestampMs }
func (e KeyboardEvent) Timestamp() uint64 { return e.TimestampMs }
func (e SleepEvent) Timestamp() uint64    { return e.TimestampMs }

func (MouseEvent) isEvent()    {}
func (KeyboardEvent) isEvent() {}
func (SleepEvent) isEvent()    {}

func (e MouseEvent) String() string {
	if e.Action == MouseMove {
		return fmt.Sprintf("move %s @%dms", e.Position, e.TimestampMs)
	}
	return fmt.Sprintf("%s %s %s @%dms (%dms)", e.Button, e.Action, e.Position, e.TimestampMs, e.DurationMs)
}

func (e KeyboardEvent) String() string {
	return fmt.Sprintf("key %s %s @%dms", e.Key, e.Direction, e.TimestampMs)
}

func (e SleepEvent) String() string {
	return fmt.Sprintf("sleep %dms @%dms", e.DurationMs, e.TimestampMs)
}

// SourceKey returns the input source an event occupies. Sleep events occupy
// none and report ok=false.
func SourceKey(ev Event) (key string, ok bool) {
	switch e := ev.(type) {
	case MouseEvent:
		if e.Action == MouseMove {
			return "cursor", true
		}
		return "mouse:" + string(e.Button), true
	case KeyboardEvent:
		return "key:" + e.Key, true
	}
	return "", false
}

// Duration returns how long an event holds its source, in milliseconds.
func Duration(ev Event) uint64 {
	switch e := ev.(type) {
	case MouseEvent:
		return e.DurationMs
	case KeyboardEvent:
		return e.DurationMs
	case SleepEvent:
		return e.DurationMs
	}
	return 0
}
