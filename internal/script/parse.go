package script

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Script line forms:
//
//	<button>_click <duration_ms> <timestamp_ms>     right_click 50 1200
//	<action>_click ...                              same as <action>
//	click [button] <timestamp_ms> [duration_ms]     click right 500 20
//	down|up [button] <timestamp_ms>                 down left 0
//	<button> [down|up|click] <timestamp_ms> ...     left down 0
//	move <timestamp_ms> at|rel <x> <y>
//	key <id> [down|up|press] <timestamp_ms> [duration_ms]
//	sleep <timestamp_ms> [duration_ms]
//
// Any mouse line may end with a position clause: "at <x> <y>" in pixels or
// "rel <x> <y>" as a 0..1 fraction of the screen. Blank lines and lines
// starting with '#' are ignored.

// MaxMillis is the largest timestamp or duration a script may use. Larger
// values cannot be represented as a time.Duration.
const MaxMillis = uint64(math.MaxInt64 / int64(time.Millisecond))

// ParseLine parses one script line. It returns (nil, nil) for blank and
// comment lines and a *MalformedLineError for anything it cannot read.
func ParseLine(lineNo int, line string) (Event, error) {
	content := strings.TrimRight(line, "\r\n")
	trimmed := strings.TrimSpace(content)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return nil, nil
	}

	p := &lineParser{
		lineNo:  lineNo,
		content: content,
		tokens:  splitFields(trimmed),
	}
	head := strings.ToLower(p.next())

	switch head {
	case "key":
		return p.keyboard()
	case "sleep":
		return p.sleep()
	case "move":
		return p.move()
	}

	// "<button>_click" carries duration first. On an action the suffix is
	// dropped: "down_click" reads as "down".
	if base, ok := strings.CutSuffix(head, "_click"); ok {
		if b, ok := parseButton(base); ok {
			return p.buttonClick(b)
		}
		if _, ok := parseAction(base); !ok {
			return nil, p.fail("unknown button or action %q", base)
		}
		head = base
	}
	if a, ok := parseAction(head); ok {
		button := ButtonLeft
		if b, ok := parseButton(p.peek()); ok {
			p.next()
			button = b
		}
		return p.mouse(button, a)
	}
	if b, ok := parseButton(head); ok {
		action := MouseClick
		if a, ok := parseAction(p.peek()); ok {
			p.next()
			action = a
		}
		return p.mouse(b, action)
	}

	return nil, p.fail("unknown action %q", head)
}

// splitFields splits on any run of whitespace or commas.
func splitFields(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == ','
	})
}

func parseButton(tok string) (Button, bool) {
	switch b := Button(strings.ToLower(tok)); b {
	case ButtonLeft, ButtonRight, ButtonMiddle:
		return b, true
	}
	return "", false
}

func parseAction(tok string) (MouseAction, bool) {
	switch a := MouseAction(strings.ToLower(tok)); a {
	case MouseDown, MouseUp, MouseClick:
		return a, true
	}
	return "", false
}

func parseDirection(tok string) (KeyDirection, bool) {
	switch d := KeyDirection(strings.ToLower(tok)); d {
	case KeyDown, KeyUp, KeyPress:
		return d, true
	}
	return "", false
}

type lineParser struct {
	lineNo  int
	content string
	tokens  []string
	pos     int
}

func (p *lineParser) peek() string {
	if p.pos >= len(p.tokens) {
		return ""
	}
	return p.tokens[p.pos]
}

func (p *lineParser) next() string {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *lineParser) fail(format string, args ...any) *MalformedLineError {
	return &MalformedLineError{
		Line:    p.lineNo,
		Content: p.content,
		Reason:  fmt.Sprintf(format, args...),
	}
}

// peekNumeric reports whether the next token looks like a number, signed or not.
func (p *lineParser) peekNumeric() bool {
	tok := p.peek()
	if tok == "" {
		return false
	}
	c := tok[0]
	return c == '-' || c == '+' || (c >= '0' && c <= '9')
}

func (p *lineParser) number(field string) (uint64, error) {
	tok := p.next()
	if tok == "" {
		return 0, p.fail("missing %s", field)
	}
	n, err := strconv.ParseUint(tok, 10, 64)
	if err != nil {
		e := p.fail("%s must be a non-negative integer, got %q", field, tok)
		e.Err = err
		return 0, e
	}
	if n > MaxMillis {
		return 0, p.fail("%s %d exceeds the maximum of %d ms", field, n, MaxMillis)
	}
	return n, nil
}

func (p *lineParser) end() error {
	if p.pos < len(p.tokens) {
		return p.fail("unexpected token %q", p.tokens[p.pos])
	}
	return nil
}

// position reads an optional trailing "at x y" or "rel x y" clause.
func (p *lineParser) position() (Position, error) {
	switch strings.ToLower(p.peek()) {
	case "at":
		p.next()
		xs, ys := p.next(), p.next()
		x, errX := strconv.Atoi(xs)
		y, errY := strconv.Atoi(ys)
		if errX != nil || errY != nil {
			return Position{}, p.fail("pixel position needs two integers, got %q %q", xs, ys)
		}
		return Pixels(x, y), nil
	case "rel":
		p.next()
		xs, ys := p.next(), p.next()
		x, errX := strconv.ParseFloat(xs, 64)
		y, errY := strconv.ParseFloat(ys, 64)
		if errX != nil || errY != nil || !validRatio(x) || !validRatio(y) {
			return Position{}, p.fail("ratio position needs two numbers in [0,1], got %q %q", xs, ys)
		}
		return Ratio(x, y), nil
	}
	return Position{}, nil
}

func validRatio(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

func (p *lineParser) mouse(button Button, action MouseAction) (Event, error) {
	ts, err := p.number("timestamp")
	if err != nil {
		return nil, err
	}
	var dur uint64
	if action == MouseClick {
		dur = DefaultClickDurationMs
		if p.peekNumeric() {
			if dur, err = p.number("duration"); err != nil {
				return nil, err
			}
		}
	}
	return p.finishMouse(MouseEvent{Button: button, Action: action, DurationMs: dur, TimestampMs: ts})
}

// buttonClick handles "<button>_click <duration> <timestamp>". A single
// number is the timestamp.
func (p *lineParser) buttonClick(button Button) (Event, error) {
	first, err := p.number("timestamp")
	if err != nil {
		return nil, err
	}
	ev := MouseEvent{Button: button, Action: MouseClick, DurationMs: DefaultClickDurationMs, TimestampMs: first}
	if p.peekNumeric() {
		ts, err := p.number("timestamp")
		if err != nil {
			return nil, err
		}
		ev.DurationMs, ev.TimestampMs = first, ts
	}
	return p.finishMouse(ev)
}

func (p *lineParser) move() (Event, error) {
	ts, err := p.number("timestamp")
	if err != nil {
		return nil, err
	}
	ev := MouseEvent{Button: ButtonLeft, Action: MouseMove, TimestampMs: ts}
	if ev.Position, err = p.position(); err != nil {
		return nil, err
	}
	if ev.Position.Kind == PositionNone {
		return nil, p.fail("move needs a position")
	}
	if err := p.end(); err != nil {
		return nil, err
	}
	return ev, nil
}

func (p *lineParser) finishMouse(ev MouseEvent) (Event, error) {
	var err error
	if ev.Position, err = p.position(); err != nil {
		return nil, err
	}
	if err := p.end(); err != nil {
		return nil, err
	}
	return ev, nil
}

func (p *lineParser) keyboard() (Event, error) {
	key := strings.ToLower(p.next())
	if key == "" {
		return nil, p.fail("missing key")
	}
	dir := KeyPress
	if d, ok := parseDirection(p.peek()); ok {
		p.next()
		dir = d
	}
	ts, err := p.number("timestamp")
	if err != nil {
		return nil, err
	}
	ev := KeyboardEvent{Key: key, Direction: dir, TimestampMs: ts}
	if dir == KeyPress && p.peekNumeric() {
		if ev.DurationMs, err = p.number("duration"); err != nil {
			return nil, err
		}
	}
	if err := p.end(); err != nil {
		return nil, err
	}
	return ev, nil
}

func (p *lineParser) sleep() (Event, error) {
	ts, err := p.number("timestamp")
	if err != nil {
		return nil, err
	}
	ev := SleepEvent{DurationMs: DefaultSleepDurationMs, TimestampMs: ts}
	if p.peekNumeric() {
		if ev.DurationMs, err = p.number("duration"); err != nil {
			return nil, err
		}
	}
	if err := p.end(); err != nil {
		return nil, err
	}
	return ev, nil
}
