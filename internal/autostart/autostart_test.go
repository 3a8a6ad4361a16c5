package autostart

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestCommandLineQuotes(t *testing.T) {
	e := Entry{ExecutablePath: "/opt/auto key/autokey", Args: []string{"serve", "--config", "/tmp/c.json"}}
	want := `"/opt/auto key/autokey" serve --config /tmp/c.json`
	if got := e.CommandLine(); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestRenderPlist(t *testing.T) {
	e := Entry{ExecutablePath: "/usr/local/bin/autokey", Args: []string{"serve"}}
	out, err := render(macLaunchAgentPlist, e)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{
		"<string>com.autokey.serve</string>",
		"<string>/usr/local/bin/autokey</string>",
		"<string>serve</string>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected plist to contain %q:\n%s", want, out)
		}
	}
}

func TestEnableDisableXDG(t *testing.T) {
	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		t.Skip("XDG autostart only")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	if IsEnabled() {
		t.Fatal("Expected autostart disabled in a fresh config dir")
	}
	if err := Enable(Entry{ExecutablePath: "/usr/bin/autokey", Args: []string{"serve"}}); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "autostart", "autokey.desktop"))
	if err != nil {
		t.Fatalf("read desktop file: %v", err)
	}
	if !strings.Contains(string(data), "Exec=/usr/bin/autokey serve\n") {
		t.Errorf("Expected Exec line, got:\n%s", data)
	}
	if !IsEnabled() {
		t.Error("Expected autostart enabled")
	}

	if err := Disable(); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if IsEnabled() {
		t.Error("Expected autostart disabled")
	}
	if err := Disable(); err != nil {
		t.Errorf("Expected second Disable to be a no-op, got %v", err)
	}
}
