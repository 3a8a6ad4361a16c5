//go:build !darwin && !windows

package input

import (
	"errors"
	"testing"
)

// TestStubInjector tests that every primitive reports ErrUnsupportedPlatform
func TestStubInjector(t *testing.T) {
	var inj Injector = NewInjector()

	calls := map[string]func() error{
		"SetCursorPosition":  func() error { return inj.SetCursorPosition(10, 10) },
		"PressMouseButton":   func() error { return inj.PressMouseButton(ButtonLeft) },
		"ReleaseMouseButton": func() error { return inj.ReleaseMouseButton(ButtonLeft) },
		"PressKey":           func() error { return inj.PressKey("a") },
		"ReleaseKey":         func() error { return inj.ReleaseKey("a") },
		"ScreenSize": func() error {
			_, _, err := inj.ScreenSize()
			return err
		},
	}
	for name, call := range calls {
		if err := call(); !errors.Is(err, ErrUnsupportedPlatform) {
			t.Errorf("%s: expected ErrUnsupportedPlatform, got %v", name, err)
		}
	}
}
