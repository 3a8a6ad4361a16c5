//go:build !windows

package autostart

import (
	"os"
	"path/filepath"
	"runtime"
)

// Enable starts e at login
func Enable(e Entry) error {
	path, text, err := entryFile()
	if err != nil {
		return err
	}
	data, err := render(text, e)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(data), 0644)
}

// Disable removes the login entry
func Disable() error {
	path, _, err := entryFile()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IsEnabled checks if auto-start is enabled
func IsEnabled() bool {
	path, _, err := entryFile()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// entryFile returns the LaunchAgent plist on macOS and the XDG autostart
// desktop file elsewhere
func entryFile() (string, string, error) {
	if runtime.GOOS == "darwin" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		return filepath.Join(home, "Library", "LaunchAgents", label+".plist"), macLaunchAgentPlist, nil
	}

	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "autostart", "autokey.desktop"), xdgDesktopEntry, nil
}
