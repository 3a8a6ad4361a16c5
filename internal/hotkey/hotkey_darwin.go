//go:build darwin

package hotkey

/*
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation -framework ApplicationServices
#include <CoreGraphics/CoreGraphics.h>
#include <CoreFoundation/CoreFoundation.h>
#include <stdint.h>

// Forward declaration of the callback
CGEventRef eventCallback(CGEventTapProxy proxy, CGEventType type, CGEventRef event, void *refcon);

// Creates a listen-only keyboard tap. Returns NULL when accessibility
// permission is missing.
static inline CFMachPortRef createKeyboardTap(uintptr_t refcon) {
    CGEventMask mask = CGEventMaskBit(kCGEventKeyDown) |
                       CGEventMaskBit(kCGEventKeyUp) |
                       CGEventMaskBit(kCGEventFlagsChanged);
    return CGEventTapCreate(
        kCGSessionEventTap,
        kCGHeadInsertEventTap,
        kCGEventTapOptionListenOnly,
        mask,
        eventCallback,
        (void*)refcon
    );
}

static inline void runEventTap(CFMachPortRef tap) {
    CFRunLoopSourceRef source = CFMachPortCreateRunLoopSource(kCFAllocatorDefault, tap, 0);
    CFRunLoopAddSource(CFRunLoopGetCurrent(), source, kCFRunLoopCommonModes);
    CGEventTapEnable(tap, true);
    CFRunLoopRun();
}
*/
import "C"
import (
	"errors"
	"os"
	"runtime"
	"runtime/cgo"
	"unsafe"

	"github.com/rs/zerolog/log"

	"autokey/internal/input"
)

var selfPID = int64(os.Getpid())

//export eventCallback
func eventCallback(proxy C.CGEventTapProxy, eventType C.CGEventType, event C.CGEventRef, refcon unsafe.Pointer) C.CGEventRef {
	h := cgo.Handle(uintptr(refcon))
	m := h.Value().(*Manager)

	// A script that types the stop combo must not cancel itself.
	if int64(C.CGEventGetIntegerValueField(event, C.kCGEventSourceUnixProcessID)) == selfPID {
		return event
	}

	macCode := uint16(C.CGEventGetIntegerValueField(event, C.kCGKeyboardEventKeycode))
	vk, ok := input.VirtualKey(macCode)
	if !ok {
		return event
	}

	switch eventType {
	case C.kCGEventKeyDown, C.kCGEventKeyUp:
		m.UpdateState(vk, eventType == C.kCGEventKeyDown)

	case C.kCGEventFlagsChanged:
		flags := C.CGEventGetFlags(event)
		var mask C.CGEventFlags
		switch canonical(vk) {
		case 0x5B:
			mask = C.kCGEventFlagMaskCommand
		case 0x10:
			mask = C.kCGEventFlagMaskShift
		case 0x12:
			mask = C.kCGEventFlagMaskAlternate
		case 0x11:
			mask = C.kCGEventFlagMaskControl
		default:
			return event
		}
		m.UpdateState(vk, flags&mask != 0)
	}

	return event
}

func (m *Manager) startPlatform() error {
	handle := cgo.NewHandle(m)
	ready := make(chan error, 1)

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		tap := C.createKeyboardTap(C.uintptr_t(handle))
		if tap == 0 {
			handle.Delete()
			ready <- errors.New("create event tap: accessibility permission missing")
			return
		}
		ready <- nil

		log.Info().Str("component", "hotkey").Msg("Hotkey: macOS event tap started")
		C.runEventTap(tap)
	}()

	return <-ready
}
