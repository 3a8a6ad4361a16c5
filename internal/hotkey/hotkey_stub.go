//go:build !windows && !darwin

package hotkey

import "github.com/rs/zerolog/log"

func (m *Manager) startPlatform() error {
	log.Warn().Str("component", "hotkey").Msg("Hotkey: global hooks not supported on this platform")
	return nil
}
