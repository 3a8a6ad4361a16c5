package input

import (
	"errors"
	"testing"
)

// TestKeyCode tests key identifier lookup
func TestKeyCode(t *testing.T) {
	tests := []struct {
		key  string
		want uint16
	}{
		{"a", 0x41},
		{"Z", 0x5A},
		{"7", 0x37},
		{"f1", 0x70},
		{"F12", 0x7B},
		{"enter", 0x0D},
		{"return", 0x0D},
		{"esc", 0x1B},
		{"num5", 0x65},
		{"vk:0x41", 0x41},
	}

	for _, tt := range tests {
		got, err := KeyCode(tt.key)
		if err != nil {
			t.Errorf("KeyCode(%q): unexpected error: %v", tt.key, err)
			continue
		}
		if got != tt.want {
			t.Errorf("KeyCode(%q): expected 0x%X, got 0x%X", tt.key, tt.want, got)
		}
	}
}

// TestKeyCodeUnknown tests that unknown keys report ErrUnknownKey
func TestKeyCodeUnknown(t *testing.T) {
	for _, key := range []string{"", "f13", "hyper", "vk:", "vk:zz"} {
		if _, err := KeyCode(key); !errors.Is(err, ErrUnknownKey) {
			t.Errorf("KeyCode(%q): expected ErrUnknownKey, got %v", key, err)
		}
	}
}

// TestKeyName tests reverse lookup
func TestKeyName(t *testing.T) {
	tests := map[uint16]string{
		0x41: "a",
		0x39: "9",
		0x75: "f6",
		0x1B: "esc",
		0x11: "ctrl",
		0x12: "alt",
		0xFF: "",
	}
	for code, want := range tests {
		if got := KeyName(code); got != want {
			t.Errorf("KeyName(0x%X): expected %q, got %q", code, want, got)
		}
	}
}

// TestParseButton tests mouse button names
func TestParseButton(t *testing.T) {
	if b, err := ParseButton("Right"); err != nil || b != ButtonRight {
		t.Errorf("Expected right button, got %v, %v", b, err)
	}
	if _, err := ParseButton("x1"); !errors.Is(err, ErrInvalidButton) {
		t.Errorf("Expected ErrInvalidButton, got %v", err)
	}
}

// TestLogInjector tests the dry-run injector
func TestLogInjector(t *testing.T) {
	inj := NewLogInjector(0, 0)
	w, h, err := inj.ScreenSize()
	if err != nil || w != 1920 || h != 1080 {
		t.Errorf("Expected default 1920x1080, got %dx%d (%v)", w, h, err)
	}
	if err := inj.PressMouseButton(ButtonMiddle); err != nil {
		t.Errorf("Expected middle press to succeed, got %v", err)
	}
	if err := inj.PressMouseButton(Button(4)); !errors.Is(err, ErrInvalidButton) {
		t.Errorf("Expected ErrInvalidButton, got %v", err)
	}
	if err := inj.ReleaseKey("nope"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("Expected ErrUnknownKey, got %v", err)
	}
	if err := inj.PressKey("shift"); err != nil {
		t.Errorf("Expected shift press to succeed, got %v", err)
	}
}
