// Package config provides configuration management for autokey.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	// Playback controls how scripts are compiled and replayed
	Playback PlaybackConfig `json:"playback" mapstructure:"playback"`

	// General contains general application settings
	General GeneralConfig `json:"general" mapstructure:"general"`

	// Schedules are scripts replayed on a cron schedule by "autokey serve"
	Schedules []Schedule `json:"schedules" mapstructure:"schedules"`
}

// PlaybackConfig contains compile and playback settings
type PlaybackConfig struct {
	// OnMalformed is "skip" (drop bad lines and continue) or "abort"
	OnMalformed string `json:"on_malformed" mapstructure:"on_malformed"`

	// AbortOnError stops playback at the first failed injection
	AbortOnError bool `json:"abort_on_error" mapstructure:"abort_on_error"`

	// StrictOrder rejects lines whose timestamp goes backwards
	StrictOrder bool `json:"strict_order" mapstructure:"strict_order"`

	// DryRun logs injections instead of performing them
	DryRun bool `json:"dry_run" mapstructure:"dry_run"`

	// StartDelayMs waits before playback starts, to let the user focus the target window
	StartDelayMs int `json:"start_delay_ms" mapstructure:"start_delay_ms"`

	// StopHotkey cancels a running playback (e.g. "Ctrl+Alt+Esc")
	StopHotkey string `json:"stop_hotkey,omitempty" mapstructure:"stop_hotkey"`

	// ScreenWidth and ScreenHeight size the dry-run screen used for ratio positions
	ScreenWidth  int `json:"screen_width,omitempty" mapstructure:"screen_width"`
	ScreenHeight int `json:"screen_height,omitempty" mapstructure:"screen_height"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	// LogLevel is a zerolog level name
	LogLevel string `json:"log_level" mapstructure:"log_level"`

	// LogConsole selects human-readable log output instead of JSON
	LogConsole bool `json:"log_console" mapstructure:"log_console"`

	// APIEnabled enables the HTTP control server in "autokey serve"
	APIEnabled bool `json:"api_enabled" mapstructure:"api_enabled"`

	// APIHost is the interface the control server listens on
	APIHost string `json:"api_host" mapstructure:"api_host"`

	// APIPort is the port for the control server
	APIPort int `json:"api_port" mapstructure:"api_port"`

	// APIToken is an optional bearer token for API requests
	APIToken string `json:"api_token,omitempty" mapstructure:"api_token"`

	// Tray shows a system tray icon in "autokey serve"
	Tray bool `json:"tray" mapstructure:"tray"`
}

// Schedule replays a script file whenever its cron expression fires
type Schedule struct {
	Name      string `json:"name" mapstructure:"name"`
	Cron      string `json:"cron" mapstructure:"cron"`
	Script    string `json:"script" mapstructure:"script"`
	Recording bool   `json:"recording,omitempty" mapstructure:"recording"`
}

// DefaultConfig returns a new Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Playback: PlaybackConfig{
			OnMalformed:  "skip",
			StopHotkey:   "Ctrl+Alt+Esc",
			ScreenWidth:  1920,
			ScreenHeight: 1080,
		},
		General: GeneralConfig{
			LogLevel:   "info",
			LogConsole: true,
			APIEnabled: true,
			APIHost:    "127.0.0.1",
			APIPort:    18181,
		},
		Schedules: []Schedule{},
	}
}

// Manager handles loading and saving configuration
type Manager struct {
	mu         sync.Mutex
	configPath string
	v          *viper.Viper
	config     *Config
	onChanged  func()
}

// NewManager creates a new configuration manager. An empty path selects the
// per-user default location.
func NewManager(path string) (*Manager, error) {
	if path == "" {
		var err error
		if path, err = getConfigPath(); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("AUTOKEY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())

	return &Manager{
		configPath: path,
		v:          v,
		config:     DefaultConfig(),
	}, nil
}

// setDefaults registers every key so environment variables and bound flags
// are seen by Unmarshal even when the file does not mention them.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("playback.on_malformed", d.Playback.OnMalformed)
	v.SetDefault("playback.abort_on_error", d.Playback.AbortOnError)
	v.SetDefault("playback.strict_order", d.Playback.StrictOrder)
	v.SetDefault("playback.dry_run", d.Playback.DryRun)
	v.SetDefault("playback.start_delay_ms", d.Playback.StartDelayMs)
	v.SetDefault("playback.stop_hotkey", d.Playback.StopHotkey)
	v.SetDefault("playback.screen_width", d.Playback.ScreenWidth)
	v.SetDefault("playback.screen_height", d.Playback.ScreenHeight)
	v.SetDefault("general.log_level", d.General.LogLevel)
	v.SetDefault("general.log_console", d.General.LogConsole)
	v.SetDefault("general.api_enabled", d.General.APIEnabled)
	v.SetDefault("general.api_host", d.General.APIHost)
	v.SetDefault("general.api_port", d.General.APIPort)
	v.SetDefault("general.api_token", d.General.APIToken)
	v.SetDefault("general.tray", d.General.Tray)
	v.SetDefault("schedules", d.Schedules)
}

// getConfigPath returns the path to the configuration file
func getConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "autokey")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, "autokey")
	default:
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(dir, "autokey")
	}

	return filepath.Join(configDir, "config.json"), nil
}

// BindFlag lets a command-line flag override the config key when set
func (m *Manager) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("bind %s: no such flag", key)
	}
	return m.v.BindPFlag(key, flag)
}

// Load reads the configuration from disk, then applies AUTOKEY_* environment
// variables and bound flags. A missing file leaves the defaults in place.
func (m *Manager) Load() error {
	m.mu.Lock()
	err := m.load()
	m.mu.Unlock()
	if err != nil {
		return err
	}
	m.notify()
	return nil
}

func (m *Manager) load() error {
	if err := m.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return fmt.Errorf("read config %s: %w", m.configPath, err)
		}
		log.Debug().Str("component", "config").Str("path", m.configPath).Msg("Config: no config file, using defaults")
	}

	cfg := &Config{}
	if err := m.v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("decode config %s: %w", m.configPath, err)
	}
	if cfg.Schedules == nil {
		cfg.Schedules = []Schedule{}
	}
	m.config = cfg
	return nil
}

// Watch reloads the file whenever it changes on disk and then runs the
// change callback. A reload that fails keeps the previous configuration.
func (m *Manager) Watch() {
	m.v.OnConfigChange(func(e fsnotify.Event) {
		log.Info().Str("component", "config").Str("path", e.Name).Str("op", e.Op.String()).Msg("Config: file changed, reloading")
		if err := m.Load(); err != nil {
			log.Warn().Str("component", "config").Err(err).Msg("Config: reload failed")
		}
	})
	m.v.WatchConfig()
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return err
	}

	log.Info().Str("component", "config").Str("path", m.configPath).Int("bytes", len(data)).Msg("Config: saving configuration")
	return os.WriteFile(m.configPath, data, 0644)
}

// Get returns the current configuration
func (m *Manager) Get() *Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Set replaces the current configuration
func (m *Manager) Set(config *Config) {
	m.mu.Lock()
	m.config = config
	m.mu.Unlock()
	m.notify()
}

// RegisterChangeCallback registers a function to be called when config changes
func (m *Manager) RegisterChangeCallback(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = fn
}

func (m *Manager) notify() {
	m.mu.Lock()
	fn := m.onChanged
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Path returns the config file location
func (m *Manager) Path() string {
	return m.configPath
}

// GetSchedule returns a schedule by name
func (m *Manager) GetSchedule(name string) *Schedule {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.config.Schedules {
		if m.config.Schedules[i].Name == name {
			return &m.config.Schedules[i]
		}
	}
	return nil
}
