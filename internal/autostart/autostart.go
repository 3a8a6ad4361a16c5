// Package autostart registers "autokey serve" to run at login.
package autostart

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

const label = "com.autokey.serve"

const macLaunchAgentPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
{{- range .Args}}
        <string>{{.}}</string>
{{- end}}
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <false/>
</dict>
</plist>
`

const xdgDesktopEntry = `[Desktop Entry]
Type=Application
Name=autokey
Comment=Scheduled mouse and keyboard playback
Exec={{.CommandLine}}
X-GNOME-Autostart-enabled=true
`

// Entry is the command started at login
type Entry struct {
	ExecutablePath string
	Args           []string
}

// NewEntry returns an entry that runs the current executable with args
func NewEntry(args ...string) (Entry, error) {
	execPath, err := os.Executable()
	if err != nil {
		return Entry{}, fmt.Errorf("failed to get executable path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
		execPath = resolved
	}
	return Entry{ExecutablePath: execPath, Args: args}, nil
}

// Label identifies the entry to the OS
func (e Entry) Label() string {
	return label
}

// CommandLine joins the executable and its arguments, quoting where needed
func (e Entry) CommandLine() string {
	parts := make([]string, 0, len(e.Args)+1)
	for _, p := range append([]string{e.ExecutablePath}, e.Args...) {
		if strings.ContainsAny(p, " \t\"") {
			p = `"` + strings.ReplaceAll(p, `"`, `\"`) + `"`
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, " ")
}

func render(text string, e Entry) (string, error) {
	tmpl, err := template.New("autostart").Parse(text)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, e); err != nil {
		return "", err
	}
	return b.String(), nil
}
