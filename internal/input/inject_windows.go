//go:build windows

package input

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Windows implementation of input injection using SendInput

var (
	user32               = windows.NewLazySystemDLL("user32.dll")
	procSendInput        = user32.NewProc("SendInput")
	procSetCursorPos     = user32.NewProc("SetCursorPos")
	procGetSystemMetrics = user32.NewProc("GetSystemMetrics")
)

const (
	inputMouse    = 0
	inputKeyboard = 1

	mouseeventfLeftDown   = 0x0002
	mouseeventfLeftUp     = 0x0004
	mouseeventfRightDown  = 0x0008
	mouseeventfRightUp    = 0x0010
	mouseeventfMiddleDown = 0x0020
	mouseeventfMiddleUp   = 0x0040

	keyeventfKeyUp = 0x0002

	smCxScreen = 0
	smCyScreen = 1
)

type mouseInput struct {
	Type uint32
	Mi   struct {
		Dx          int32
		Dy          int32
		MouseData   uint32
		DwFlags     uint32
		Time        uint32
		DwExtraInfo uintptr
	}
}

// keyboardInput is padded to the size of the INPUT union's largest member
type keyboardInput struct {
	Type uint32
	Ki   struct {
		WVk         uint16
		WScan       uint16
		DwFlags     uint32
		Time        uint32
		DwExtraInfo uintptr
	}
	_ [8]byte
}

// platformInjector is the Windows input injector
type platformInjector struct{}

// NewInjector creates a new input injector for Windows
func NewInjector() Injector {
	return &platformInjector{}
}

// SetCursorPosition moves the cursor to an absolute screen position
func (i *platformInjector) SetCursorPosition(x, y int) error {
	ret, _, err := procSetCursorPos.Call(uintptr(int32(x)), uintptr(int32(y)))
	if ret == 0 {
		return fmt.Errorf("SetCursorPos: %w", err)
	}
	return nil
}

// PressMouseButton injects a button-down event
func (i *platformInjector) PressMouseButton(button Button) error {
	return i.sendButton(button, true)
}

// ReleaseMouseButton injects a button-up event
func (i *platformInjector) ReleaseMouseButton(button Button) error {
	return i.sendButton(button, false)
}

func (i *platformInjector) sendButton(button Button, pressed bool) error {
	var flags uint32
	switch button {
	case ButtonLeft:
		flags = pick(pressed, mouseeventfLeftDown, mouseeventfLeftUp)
	case ButtonRight:
		flags = pick(pressed, mouseeventfRightDown, mouseeventfRightUp)
	case ButtonMiddle:
		flags = pick(pressed, mouseeventfMiddleDown, mouseeventfMiddleUp)
	default:
		return fmt.Errorf("%w: %d", ErrInvalidButton, button)
	}

	var in mouseInput
	in.Type = inputMouse
	in.Mi.DwFlags = flags
	return sendInput(unsafe.Pointer(&in), unsafe.Sizeof(in))
}

// PressKey injects a key-down event
func (i *platformInjector) PressKey(key string) error {
	return i.sendKey(key, true)
}

// ReleaseKey injects a key-up event
func (i *platformInjector) ReleaseKey(key string) error {
	return i.sendKey(key, false)
}

func (i *platformInjector) sendKey(key string, pressed bool) error {
	code, err := KeyCode(key)
	if err != nil {
		return err
	}

	var in keyboardInput
	in.Type = inputKeyboard
	in.Ki.WVk = code
	if !pressed {
		in.Ki.DwFlags = keyeventfKeyUp
	}
	return sendInput(unsafe.Pointer(&in), unsafe.Sizeof(in))
}

// ScreenSize returns the primary screen size in pixels
func (i *platformInjector) ScreenSize() (int, int, error) {
	w, _, _ := procGetSystemMetrics.Call(smCxScreen)
	h, _, _ := procGetSystemMetrics.Call(smCyScreen)
	if w == 0 || h == 0 {
		return 0, 0, fmt.Errorf("GetSystemMetrics returned %dx%d", w, h)
	}
	return int(w), int(h), nil
}

func sendInput(in unsafe.Pointer, size uintptr) error {
	n, _, err := procSendInput.Call(1, uintptr(in), size)
	if n != 1 {
		return fmt.Errorf("SendInput: %w", err)
	}
	return nil
}

func pick(cond bool, a, b uint32) uint32 {
	if cond {
		return a
	}
	return b
}

// IsElevated checks if the current process has administrative privileges.
// SendInput cannot reach windows of elevated processes without it.
func IsElevated() bool {
	var token windows.Token
	h, _ := windows.GetCurrentProcess()
	if err := windows.OpenProcessToken(h, windows.TOKEN_QUERY, &token); err != nil {
		return false
	}
	defer token.Close()

	var sid *windows.SID
	err := windows.AllocateAndInitializeSid(
		&windows.SECURITY_NT_AUTHORITY,
		2,
		windows.SECURITY_BUILTIN_DOMAIN_RID,
		windows.DOMAIN_ALIAS_RID_ADMINS,
		0, 0, 0, 0, 0, 0,
		&sid,
	)
	if err != nil {
		return false
	}
	defer windows.FreeSid(sid)

	member, err := token.IsMember(sid)
	if err != nil {
		return false
	}
	return member
}
