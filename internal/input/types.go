// Package input provides cross-platform input injection backends.
package input

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedPlatform is returned when injection is not available on this OS
	ErrUnsupportedPlatform = errors.New("input injection not supported on this platform")

	// ErrInvalidButton is returned for a mouse button the backend cannot press
	ErrInvalidButton = errors.New("invalid mouse button")

	// ErrUnknownKey is returned for a key identifier with no key code
	ErrUnknownKey = errors.New("unknown key")
)

// Button is a mouse button number (1=left, 2=right, 3=middle)
type Button int

const (
	ButtonLeft   Button = 1
	ButtonRight  Button = 2
	ButtonMiddle Button = 3
)

func (b Button) String() string {
	switch b {
	case ButtonLeft:
		return "left"
	case ButtonRight:
		return "right"
	case ButtonMiddle:
		return "middle"
	}
	return fmt.Sprintf("button(%d)", int(b))
}

// ParseButton maps a button name to its number
func ParseButton(name string) (Button, error) {
	switch strings.ToLower(name) {
	case "left":
		return ButtonLeft, nil
	case "right":
		return ButtonRight, nil
	case "middle":
		return ButtonMiddle, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidButton, name)
}

// Injector defines the primitives playback drives. Positions are absolute
// screen pixels.
type Injector interface {
	SetCursorPosition(x, y int) error
	PressMouseButton(button Button) error
	ReleaseMouseButton(button Button) error
	PressKey(key string) error
	ReleaseKey(key string) error
	ScreenSize() (width, height int, err error)
}
