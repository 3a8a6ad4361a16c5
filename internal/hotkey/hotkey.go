// Package hotkey provides global system-wide hotkey monitoring, used to stop
// playback from the keyboard.
package hotkey

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"autokey/internal/input"
)

// Manager handles global hotkey registration and matching
type Manager struct {
	mu      sync.Mutex
	hotkeys []*registeredHotkey
	down    map[uint16]bool // virtual-key codes currently held
}

type registeredHotkey struct {
	codes    []uint16 // e.g. ctrl, alt, esc
	original string
	callback func()
	fired    bool // set until one of the keys is released
}

// NewManager creates a new hotkey manager
func NewManager() *Manager {
	return &Manager{
		down: make(map[uint16]bool),
	}
}

// ParseCombo parses a hotkey string such as "Ctrl+Alt+Esc" into virtual-key
// codes. Left and right modifiers collapse to the generic key.
func ParseCombo(combo string) ([]uint16, error) {
	if strings.TrimSpace(combo) == "" {
		return nil, errors.New("empty hotkey")
	}
	var codes []uint16
	for _, part := range strings.Split(combo, "+") {
		code, err := input.KeyCode(part)
		if err != nil {
			return nil, fmt.Errorf("hotkey %q: %w", combo, err)
		}
		codes = append(codes, canonical(code))
	}
	return codes, nil
}

// Register registers a hotkey string (e.g. "Ctrl+Alt+Esc") and a callback.
// An empty string registers nothing.
func (m *Manager) Register(combo string, callback func()) error {
	if combo == "" {
		return nil
	}
	codes, err := ParseCombo(combo)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotkeys = append(m.hotkeys, &registeredHotkey{
		codes:    codes,
		original: combo,
		callback: callback,
	})
	return nil
}

// Clear removes all registered hotkeys
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotkeys = nil
}

// UpdateState records a key transition and runs the callback of every hotkey
// that just became fully pressed. Key auto-repeat does not fire it again.
func (m *Manager) UpdateState(code uint16, isDown bool) {
	code = canonical(code)

	m.mu.Lock()
	defer m.mu.Unlock()

	if !isDown {
		delete(m.down, code)
		for _, hk := range m.hotkeys {
			if hk.fired && hk.uses(code) {
				hk.fired = false
			}
		}
		return
	}

	m.down[code] = true
	for _, hk := range m.hotkeys {
		if hk.fired || !hk.matches(m.down) {
			continue
		}
		hk.fired = true
		log.Info().Str("component", "hotkey").Str("hotkey", hk.original).Msg("Hotkey: triggered")
		go hk.callback()
	}
}

func (hk *registeredHotkey) matches(down map[uint16]bool) bool {
	for _, c := range hk.codes {
		if !down[c] {
			return false
		}
	}
	return true
}

func (hk *registeredHotkey) uses(code uint16) bool {
	for _, c := range hk.codes {
		if c == code {
			return true
		}
	}
	return false
}

func canonical(code uint16) uint16 {
	switch code {
	case 0xA0, 0xA1:
		return 0x10 // shift
	case 0xA2, 0xA3:
		return 0x11 // ctrl
	case 0xA4, 0xA5:
		return 0x12 // alt
	case 0x5C:
		return 0x5B // win / cmd
	}
	return code
}

// Start initiates the platform-specific global hooks.
// This is implemented in platform-specific files (hotkey_windows.go, hotkey_darwin.go).
func (m *Manager) Start() error {
	return m.startPlatform()
}
