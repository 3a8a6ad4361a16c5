package input

import (
	"github.com/rs/zerolog/log"
)

// LogInjector logs every call instead of touching the OS. It still rejects
// unknown keys so a dry run surfaces the same dispatch errors a real run would.
type LogInjector struct {
	width  int
	height int
}

// NewLogInjector creates a dry-run injector reporting the given screen size
func NewLogInjector(width, height int) *LogInjector {
	if width <= 0 || height <= 0 {
		width, height = 1920, 1080
	}
	return &LogInjector{width: width, height: height}
}

// SetCursorPosition logs a cursor move
func (l *LogInjector) SetCursorPosition(x, y int) error {
	log.Info().Str("component", "input").Int("x", x).Int("y", y).Msg("Input: move cursor")
	return nil
}

// PressMouseButton logs a button press
func (l *LogInjector) PressMouseButton(button Button) error {
	return l.button(button, true)
}

// ReleaseMouseButton logs a button release
func (l *LogInjector) ReleaseMouseButton(button Button) error {
	return l.button(button, false)
}

func (l *LogInjector) button(button Button, pressed bool) error {
	if button < ButtonLeft || button > ButtonMiddle {
		return ErrInvalidButton
	}
	log.Info().Str("component", "input").Stringer("button", button).Bool("pressed", pressed).Msg("Input: mouse button")
	return nil
}

// PressKey logs a key press
func (l *LogInjector) PressKey(key string) error {
	return l.key(key, true)
}

// ReleaseKey logs a key release
func (l *LogInjector) ReleaseKey(key string) error {
	return l.key(key, false)
}

func (l *LogInjector) key(key string, pressed bool) error {
	code, err := KeyCode(key)
	if err != nil {
		return err
	}
	log.Info().Str("component", "input").Str("key", key).Uint16("vk", code).Bool("pressed", pressed).Msg("Input: key")
	return nil
}

// ScreenSize returns the configured screen size
func (l *LogInjector) ScreenSize() (int, int, error) {
	return l.width, l.height, nil
}
