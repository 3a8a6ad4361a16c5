//go:build !darwin && !windows

package input

// Stub implementation for platforms without an injection backend

// platformInjector is the stub input injector
type platformInjector struct{}

// NewInjector creates a new stub injector
func NewInjector() Injector {
	return &platformInjector{}
}

// SetCursorPosition moves the cursor (stub)
func (i *platformInjector) SetCursorPosition(x, y int) error {
	return ErrUnsupportedPlatform
}

// PressMouseButton presses a mouse button (stub)
func (i *platformInjector) PressMouseButton(button Button) error {
	return ErrUnsupportedPlatform
}

// ReleaseMouseButton releases a mouse button (stub)
func (i *platformInjector) ReleaseMouseButton(button Button) error {
	return ErrUnsupportedPlatform
}

// PressKey presses a key (stub)
func (i *platformInjector) PressKey(key string) error {
	return ErrUnsupportedPlatform
}

// ReleaseKey releases a key (stub)
func (i *platformInjector) ReleaseKey(key string) error {
	return ErrUnsupportedPlatform
}

// ScreenSize reports the screen size (stub)
func (i *platformInjector) ScreenSize() (int, int, error) {
	return 0, 0, ErrUnsupportedPlatform
}

// IsElevated reports whether the process runs with administrative rights (stub)
func IsElevated() bool {
	return false
}
