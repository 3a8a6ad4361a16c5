// autokey - timed mouse and keyboard playback
// Compiles line-oriented action scripts into timelines and replays them.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"autokey/internal/config"
	"autokey/internal/logger"
	"autokey/internal/timeline"
)

var version = "0.1.0"

// configKeyAnnotation marks a flag as an override for a config key
const configKeyAnnotation = "autokey_config_key"

var (
	cfgFile    string
	jsonOutput bool
	cfgMgr     *config.Manager
)

var rootCmd = &cobra.Command{
	Use:   "autokey",
	Short: "Compile and replay timed mouse and keyboard scripts",
	Long: `autokey turns a script of timed mouse and keyboard actions into a
validated timeline and replays it with millisecond pacing.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfgMgr, err = config.NewManager(cfgFile)
		if err != nil {
			return fmt.Errorf("init config: %w", err)
		}

		var bindErr error
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if keys, ok := f.Annotations[configKeyAnnotation]; ok && bindErr == nil {
				bindErr = cfgMgr.BindFlag(keys[0], f)
			}
		})
		if bindErr != nil {
			return bindErr
		}

		if err := cfgMgr.Load(); err != nil {
			return err
		}
		cfg := cfgMgr.Get()
		logger.Init(cfg.General.LogLevel, cfg.General.LogConsole)
		log.Debug().Str("component", "cli").Str("config", cfgMgr.Path()).Msg("CLI: configuration loaded")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("autokey version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is the per-user config directory)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	bindConfig(rootCmd.PersistentFlags(), "log-level", "general.log_level")

	rootCmd.AddCommand(versionCmd)
}

// bindConfig lets flag override key once the config manager exists
func bindConfig(flags *pflag.FlagSet, flag, key string) {
	if err := flags.SetAnnotation(flag, configKeyAnnotation, []string{key}); err != nil {
		panic(err)
	}
}

// compileOptions turns playback config into compiler options
func compileOptions(cfg config.PlaybackConfig) (timeline.Options, error) {
	policy, err := timeline.ParsePolicy(cfg.OnMalformed)
	if err != nil {
		return timeline.Options{}, err
	}
	return timeline.Options{OnMalformed: policy, StrictOrder: cfg.StrictOrder}, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
