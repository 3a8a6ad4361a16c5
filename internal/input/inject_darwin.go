//go:build darwin

package input

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation -framework ApplicationServices

#include <CoreGraphics/CoreGraphics.h>
#include <CoreFoundation/CoreFoundation.h>
#include <ApplicationServices/ApplicationServices.h>

bool hasAccessibilityPermissions() {
    return AXIsProcessTrusted();
}

CGPoint getCurrentMousePosition() {
    CGEventRef event = CGEventCreate(NULL);
    CGPoint cursor = CGEventGetLocation(event);
    CFRelease(event);
    return cursor;
}

void setCursorPosition(CGFloat x, CGFloat y) {
    CGEventRef event = CGEventCreateMouseEvent(NULL, kCGEventMouseMoved, CGPointMake(x, y), kCGMouseButtonLeft);
    CGEventPost(kCGHIDEventTap, event);
    CFRelease(event);
}

int injectMouseButton(int button, bool pressed) {
    CGMouseButton cgButton;
    CGEventType eventType;

    switch (button) {
        case 1:
            cgButton = kCGMouseButtonLeft;
            eventType = pressed ? kCGEventLeftMouseDown : kCGEventLeftMouseUp;
            break;
        case 2:
            cgButton = kCGMouseButtonRight;
            eventType = pressed ? kCGEventRightMouseDown : kCGEventRightMouseUp;
            break;
        case 3:
            cgButton = kCGMouseButtonCenter;
            eventType = pressed ? kCGEventOtherMouseDown : kCGEventOtherMouseUp;
            break;
        default:
            return -1;
    }

    // Button events land where the cursor currently is
    CGPoint currentPos = getCurrentMousePosition();
    CGEventRef event = CGEventCreateMouseEvent(NULL, eventType, currentPos, cgButton);
    CGEventPost(kCGHIDEventTap, event);
    CFRelease(event);
    return 0;
}

void injectKey(CGKeyCode keyCode, bool pressed) {
    CGEventRef event = CGEventCreateKeyboardEvent(NULL, keyCode, pressed);
    CGEventPost(kCGHIDEventTap, event);
    CFRelease(event);
}

size_t mainDisplayWidth() {
    return CGDisplayPixelsWide(CGMainDisplayID());
}

size_t mainDisplayHeight() {
    return CGDisplayPixelsHigh(CGMainDisplayID());
}
*/
import "C"
import (
	"fmt"
)

// macOS implementation of input injection using CoreGraphics

// Windows VK code to macOS CGKeyCode
// Reference: https://developer.apple.com/documentation/coregraphics/cgkeycode
var macKeyCodes = map[uint16]uint16{
	0x41: 0x00, 0x42: 0x0B, 0x43: 0x08, 0x44: 0x02, 0x45: 0x0E, 0x46: 0x03, // A-F
	0x47: 0x05, 0x48: 0x04, 0x49: 0x22, 0x4A: 0x26, 0x4B: 0x28, 0x4C: 0x25, // G-L
	0x4D: 0x2E, 0x4E: 0x2D, 0x4F: 0x1F, 0x50: 0x23, 0x51: 0x0C, 0x52: 0x0F, // M-R
	0x53: 0x01, 0x54: 0x11, 0x55: 0x20, 0x56: 0x09, 0x57: 0x0D, 0x58: 0x07, // S-X
	0x59: 0x10, 0x5A: 0x06, // Y-Z

	0x30: 0x1D, 0x31: 0x12, 0x32: 0x13, 0x33: 0x14, 0x34: 0x15, // 0-4
	0x35: 0x17, 0x36: 0x16, 0x37: 0x1A, 0x38: 0x1C, 0x39: 0x19, // 5-9

	0x70: 0x7A, 0x71: 0x78, 0x72: 0x63, 0x73: 0x76, 0x74: 0x60, 0x75: 0x61, // F1-F6
	0x76: 0x62, 0x77: 0x64, 0x78: 0x65, 0x79: 0x6D, 0x7A: 0x67, 0x7B: 0x6F, // F7-F12

	0x08: 0x33, // backspace -> delete
	0x09: 0x30, // tab
	0x0D: 0x24, // return
	0x10: 0x38, // shift
	0x11: 0x3B, // control
	0x12: 0x3A, // alt -> option
	0x14: 0x39, // caps lock
	0x1B: 0x35, // escape
	0x20: 0x31, // space

	0x25: 0x7B, 0x26: 0x7E, 0x27: 0x7C, 0x28: 0x7D, // arrows

	0x21: 0x74, // page up
	0x22: 0x79, // page down
	0x23: 0x77, // end
	0x24: 0x73, // home
	0x2D: 0x72, // insert -> help
	0x2E: 0x75, // forward delete

	0x5B: 0x37, 0x5C: 0x36, // command
	0xA0: 0x38, 0xA1: 0x3C, // shift
	0xA2: 0x3B, 0xA3: 0x3E, // control
	0xA4: 0x3A, 0xA5: 0x3D, // option

	0xBA: 0x29, 0xBB: 0x18, 0xBC: 0x2B, 0xBD: 0x1B, 0xBE: 0x2F, 0xBF: 0x2C,
	0xC0: 0x32, 0xDB: 0x21, 0xDC: 0x2A, 0xDD: 0x1E, 0xDE: 0x27,

	0x60: 0x52, 0x61: 0x53, 0x62: 0x54, 0x63: 0x55, 0x64: 0x56, // numpad 0-4
	0x65: 0x57, 0x66: 0x58, 0x67: 0x59, 0x68: 0x5B, 0x69: 0x5C, // numpad 5-9
	0x6A: 0x43, 0x6B: 0x45, 0x6D: 0x4E, 0x6E: 0x41, 0x6F: 0x4B,
}

var virtualKeys = make(map[uint16]uint16, len(macKeyCodes))

func init() {
	for vk, mac := range macKeyCodes {
		// generic modifiers have the lower code and win over left/right
		if prev, ok := virtualKeys[mac]; !ok || vk < prev {
			virtualKeys[mac] = vk
		}
	}
}

// VirtualKey translates a macOS CGKeyCode back to a virtual-key code
func VirtualKey(macCode uint16) (uint16, bool) {
	vk, ok := virtualKeys[macCode]
	return vk, ok
}

// platformInjector is the macOS input injector
type platformInjector struct{}

// NewInjector creates a new input injector for macOS
func NewInjector() Injector {
	return &platformInjector{}
}

// SetCursorPosition moves the cursor to an absolute screen position
func (i *platformInjector) SetCursorPosition(x, y int) error {
	C.setCursorPosition(C.CGFloat(x), C.CGFloat(y))
	return nil
}

// PressMouseButton injects a button-down event at the cursor
func (i *platformInjector) PressMouseButton(button Button) error {
	return i.button(button, true)
}

// ReleaseMouseButton injects a button-up event at the cursor
func (i *platformInjector) ReleaseMouseButton(button Button) error {
	return i.button(button, false)
}

func (i *platformInjector) button(button Button, pressed bool) error {
	if C.injectMouseButton(C.int(button), C.bool(pressed)) != 0 {
		return fmt.Errorf("%w: %d", ErrInvalidButton, button)
	}
	return nil
}

// PressKey injects a key-down event
func (i *platformInjector) PressKey(key string) error {
	return i.key(key, true)
}

// ReleaseKey injects a key-up event
func (i *platformInjector) ReleaseKey(key string) error {
	return i.key(key, false)
}

func (i *platformInjector) key(key string, pressed bool) error {
	vk, err := KeyCode(key)
	if err != nil {
		return err
	}
	macKeyCode, ok := macKeyCodes[vk]
	if !ok {
		return fmt.Errorf("%w: %q has no macOS key code", ErrUnknownKey, key)
	}
	C.injectKey(C.CGKeyCode(macKeyCode), C.bool(pressed))
	return nil
}

// ScreenSize returns the main display size in pixels
func (i *platformInjector) ScreenSize() (int, int, error) {
	return int(C.mainDisplayWidth()), int(C.mainDisplayHeight()), nil
}

// IsElevated reports whether the process may post synthetic events
// (Accessibility permission).
func IsElevated() bool {
	return bool(C.hasAccessibilityPermissions())
}
