package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"autokey/internal/config"
	"autokey/internal/hotkey"
	"autokey/internal/input"
	"autokey/internal/playback"
	"autokey/internal/timeline"
)

var playRecording bool

var playCmd = &cobra.Command{
	Use:   "play <script>",
	Short: "Compile a script and play it back",
	Long: `Compile a script and replay it against the local mouse and keyboard.
Ctrl+C or the stop hotkey (playback.stop_hotkey) cancels playback; any
button or key the script left held is released before exiting.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := cfgMgr.Get()

		opts, err := compileOptions(cfg.Playback)
		if err != nil {
			return err
		}
		res, err := timeline.CompileFile(args[0], playRecording, opts)
		if err != nil {
			return err
		}
		printStats(os.Stdout, res)
		for _, e := range res.Errors {
			fmt.Printf("  skipped %v\n", e)
		}

		inj, err := newInjector(cfg.Playback)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if !cfg.Playback.DryRun && cfg.Playback.StopHotkey != "" {
			hk := hotkey.NewManager()
			if err := hk.Register(cfg.Playback.StopHotkey, func() {
				log.Info().Str("component", "cli").Msg("CLI: stop hotkey pressed")
				stop()
			}); err != nil {
				return err
			}
			if err := hk.Start(); err != nil {
				log.Warn().Str("component", "cli").Err(err).Msg("CLI: stop hotkey unavailable, use Ctrl+C")
			}
		}

		if d := time.Duration(cfg.Playback.StartDelayMs) * time.Millisecond; d > 0 {
			fmt.Printf("Starting in %v...\n", d)
			select {
			case <-time.After(d):
			case <-ctx.Done():
				fmt.Println("Cancelled before start")
				return nil
			}
		}

		sched := playback.New(inj, playback.WithAbortOnError(cfg.Playback.AbortOnError))
		rep, err := sched.Play(ctx, res.Timeline)

		fmt.Printf("Dispatched %d/%d events in %v", rep.Dispatched, rep.Total, rep.Elapsed.Round(time.Millisecond))
		if n := len(rep.Failed); n > 0 {
			fmt.Printf(", %d failed", n)
		}
		fmt.Println()
		if first := rep.FirstError(); first != nil {
			fmt.Printf("First dispatch error at event %d: %v\n", first.Index, first.Err)
		}

		if rep.Cancelled {
			fmt.Println("Playback cancelled")
			return nil
		}
		return err
	},
}

// newInjector returns the dry-run logger or the platform injector. The
// platform injector fails fast where injection is not implemented.
func newInjector(cfg config.PlaybackConfig) (input.Injector, error) {
	if cfg.DryRun {
		return input.NewLogInjector(cfg.ScreenWidth, cfg.ScreenHeight), nil
	}

	inj := input.NewInjector()
	if _, _, err := inj.ScreenSize(); errors.Is(err, input.ErrUnsupportedPlatform) {
		return nil, fmt.Errorf("%w (use --dry-run)", err)
	}
	if !input.IsElevated() {
		log.Warn().Str("component", "cli").Msg("CLI: not elevated; the OS may block injected input (run as administrator on Windows, grant Accessibility on macOS)")
	}
	return inj, nil
}

func init() {
	f := playCmd.Flags()
	f.BoolVar(&playRecording, "recording", false, "treat the file as a JSON recording")
	f.Bool("dry-run", false, "log injections instead of performing them")
	f.Bool("abort-on-error", false, "stop at the first failed injection")
	f.String("on-malformed", "skip", "what to do with a bad line: skip or abort")
	f.Bool("strict-order", false, "reject lines whose timestamp goes backwards")
	f.Int("start-delay", 0, "milliseconds to wait before playing")
	bindConfig(f, "dry-run", "playback.dry_run")
	bindConfig(f, "abort-on-error", "playback.abort_on_error")
	bindConfig(f, "on-malformed", "playback.on_malformed")
	bindConfig(f, "strict-order", "playback.strict_order")
	bindConfig(f, "start-delay", "playback.start_delay_ms")

	rootCmd.AddCommand(playCmd)
}
