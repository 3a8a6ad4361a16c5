package input

import (
	"fmt"
	"strings"
)

// Key identifiers map to Windows virtual-key codes; other platforms
// translate from there.
// Reference: https://docs.microsoft.com/en-us/windows/win32/inputdev/virtual-key-codes
var keyCodes = map[string]uint16{
	"backspace":   0x08,
	"tab":         0x09,
	"enter":       0x0D,
	"return":      0x0D,
	"shift":       0x10,
	"ctrl":        0x11,
	"control":     0x11,
	"alt":         0x12,
	"option":      0x12,
	"pause":       0x13,
	"capslock":    0x14,
	"esc":         0x1B,
	"escape":      0x1B,
	"space":       0x20,
	"pageup":      0x21,
	"pagedown":    0x22,
	"end":         0x23,
	"home":        0x24,
	"left":        0x25,
	"up":          0x26,
	"right":       0x27,
	"down":        0x28,
	"printscreen": 0x2C,
	"insert":      0x2D,
	"delete":      0x2E,
	"win":         0x5B,
	"cmd":         0x5B,
	"rwin":        0x5C,
	"rcmd":        0x5C,
	"scrolllock":  0x91,
	"lshift":      0xA0,
	"rshift":      0xA1,
	"lctrl":       0xA2,
	"rctrl":       0xA3,
	"lalt":        0xA4,
	"ralt":        0xA5,

	";":  0xBA,
	"=":  0xBB,
	",":  0xBC,
	"-":  0xBD,
	".":  0xBE,
	"/":  0xBF,
	"`":  0xC0,
	"[":  0xDB,
	"\\": 0xDC,
	"]":  0xDD,
	"'":  0xDE,

	"num*": 0x6A,
	"num+": 0x6B,
	"num-": 0x6D,
	"num.": 0x6E,
	"num/": 0x6F,
}

func init() {
	for c := 'a'; c <= 'z'; c++ {
		keyCodes[string(c)] = uint16(c - 'a' + 0x41)
	}
	for d := 0; d <= 9; d++ {
		keyCodes[fmt.Sprint(d)] = uint16(0x30 + d)
		keyCodes[fmt.Sprintf("num%d", d)] = uint16(0x60 + d)
	}
	for f := 1; f <= 12; f++ {
		keyCodes[fmt.Sprintf("f%d", f)] = uint16(0x6F + f)
	}
}

// KeyCode returns the virtual-key code for a key identifier. A "vk:0x41"
// style identifier passes a raw code through.
func KeyCode(key string) (uint16, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if code, ok := keyCodes[key]; ok {
		return code, nil
	}
	if raw, ok := strings.CutPrefix(key, "vk:"); ok {
		var code uint16
		if _, err := fmt.Sscanf(raw, "0x%x", &code); err == nil && code != 0 {
			return code, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKey, key)
}

// KeyName returns the canonical identifier for a virtual-key code, or "" if
// there is none.
func KeyName(code uint16) string {
	switch {
	case code >= 0x41 && code <= 0x5A:
		return string(rune('a' + code - 0x41))
	case code >= 0x30 && code <= 0x39:
		return string(rune('0' + code - 0x30))
	case code >= 0x70 && code <= 0x7B:
		return fmt.Sprintf("f%d", code-0x6F)
	}
	best := ""
	for name, c := range keyCodes {
		// shortest name wins so "esc" beats "escape"; ties break alphabetically
		if c == code && (best == "" || len(name) < len(best) || (len(name) == len(best) && name < best)) {
			best = name
		}
	}
	return best
}
