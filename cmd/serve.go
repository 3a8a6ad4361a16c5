package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"autokey/internal/api"
	"autokey/internal/config"
	"autokey/internal/hotkey"
	"autokey/internal/playback"
	"autokey/internal/protocol"
	"autokey/internal/runner"
	"autokey/internal/schedule"
	"autokey/internal/tray"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control server, cron schedules and tray icon",
	Long: `Run in the background: the HTTP control server (general.api_enabled),
the configured cron schedules and, with general.tray, a system tray menu.
Only one script plays at a time. The stop hotkey cancels the active run.
Edits to the config file are picked up without a restart.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runService(cmd.Context())
	},
}

func runService(parent context.Context) error {
	cfg := cfgMgr.Get()
	log.Info().Str("component", "service").Str("version", version).Msg("Service: starting")

	inj, err := newInjector(cfg.Playback)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	r := runner.New(ctx, inj, playback.WithAbortOnError(cfg.Playback.AbortOnError))

	var apiServer *api.Server
	if cfg.General.APIEnabled {
		apiServer = api.NewServer(cfgMgr, r)
		go func() {
			if err := apiServer.Start(); err != nil {
				log.Error().Str("component", "service").Err(err).Msg("Service: API server error")
			}
		}()
	}

	schedules := &scheduleSet{
		starter: r,
		baseDir: filepath.Dir(cfgMgr.Path()),
	}

	// Tray instance
	var t *tray.Tray
	stopItem := -1
	if cfg.General.Tray {
		t = tray.New("autokey", "autokey - idle", cancel)

		// Note: the menu reflects the schedules present at startup
		for _, sch := range cfg.Schedules {
			name := sch.Name
			t.AddMenuItem(fmt.Sprintf("Play %s", name), func() { schedules.run(name) })
		}
		if len(cfg.Schedules) > 0 {
			t.AddSeparator()
		}
		stopItem = t.AddMenuItem("Stop playback", func() { r.Stop() })
		t.SetItemEnabled(stopItem, false)
		t.AddSeparator()
		t.AddMenuItem("Quit", t.Stop)
	}

	r.SetOnMessage(func(msg protocol.Message) {
		if apiServer != nil {
			apiServer.Broadcast(msg)
		}
		if t != nil {
			updateTray(t, stopItem, msg)
		}
	})

	// Hotkey manager
	hkMgr := hotkey.NewManager()
	if err := hkMgr.Start(); err != nil {
		log.Warn().Str("component", "service").Err(err).Msg("Service: hotkey engine failed to start")
	}

	// Refresh hotkeys and schedules on config change
	refresh := func() {
		cfg := cfgMgr.Get()
		hkMgr.Clear()
		if err := hkMgr.Register(cfg.Playback.StopHotkey, func() { r.Stop() }); err != nil {
			log.Warn().Str("component", "service").Err(err).Msg("Service: failed to register stop hotkey")
		}
		schedules.reload(cfg)
	}
	refresh()
	cfgMgr.RegisterChangeCallback(refresh)
	cfgMgr.Watch()

	log.Info().Str("component", "service").Msg("Service: running, press Ctrl+C to stop")
	if t != nil {
		go func() {
			<-ctx.Done()
			t.Stop()
		}()
		t.Run()
	} else {
		<-ctx.Done()
	}

	log.Info().Str("component", "service").Msg("Service: shutting down")
	schedules.stop()
	r.Stop()
	if apiServer != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Str("component", "service").Err(err).Msg("Service: API shutdown")
		}
	}
	return nil
}

func updateTray(t *tray.Tray, stopItem int, msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeRunStarted:
		source := "?"
		if p, ok := msg.Payload.(protocol.RunStartedPayload); ok {
			source = p.Source
		}
		t.SetStatus(fmt.Sprintf("autokey - playing (%s)", source))
		t.SetItemEnabled(stopItem, true)
	case protocol.TypeRunFinished:
		t.SetStatus("autokey - idle")
		t.SetItemEnabled(stopItem, false)
	}
}

// scheduleSet swaps the cron scheduler when the config changes
type scheduleSet struct {
	mu      sync.Mutex
	current *schedule.Scheduler
	starter schedule.Starter
	baseDir string
}

// reload replaces the running schedules. An invalid config keeps the
// previous ones.
func (s *scheduleSet) reload(cfg *config.Config) {
	opts, err := compileOptions(cfg.Playback)
	if err != nil {
		log.Error().Str("component", "service").Err(err).Msg("Service: invalid playback config, keeping schedules")
		return
	}
	next, err := schedule.New(s.starter, s.baseDir, cfg.Schedules, opts)
	if err != nil {
		log.Error().Str("component", "service").Err(err).Msg("Service: invalid schedules, keeping previous ones")
		return
	}

	s.mu.Lock()
	prev := s.current
	s.current = next
	s.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}
	next.Start()
}

func (s *scheduleSet) run(name string) {
	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()
	if cur == nil {
		return
	}

	id, err := cur.Run(name)
	switch {
	case errors.Is(err, runner.ErrBusy):
		log.Warn().Str("component", "service").Str("schedule", name).Msg("Service: another run is active")
	case err != nil:
		log.Error().Str("component", "service").Str("schedule", name).Err(err).Msg("Service: failed to start schedule")
	default:
		log.Info().Str("component", "service").Str("schedule", name).Str("run_id", id).Msg("Service: started from tray")
	}
}

func (s *scheduleSet) stop() {
	s.mu.Lock()
	cur := s.current
	s.current = nil
	s.mu.Unlock()
	if cur != nil {
		cur.Stop()
	}
}

func init() {
	f := serveCmd.Flags()
	f.Bool("dry-run", false, "log injections instead of performing them")
	f.Int("port", 18181, "control server port")
	f.Bool("tray", false, "show a system tray icon")
	bindConfig(f, "dry-run", "playback.dry_run")
	bindConfig(f, "port", "general.api_port")
	bindConfig(f, "tray", "general.tray")

	rootCmd.AddCommand(serveCmd)
}
