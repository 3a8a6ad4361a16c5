package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"autokey/internal/autostart"
)

var autostartCmd = &cobra.Command{
	Use:   "autostart",
	Short: "Start \"autokey serve\" at login",
}

var autostartEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Run \"autokey serve\" at login with the current config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := autostart.NewEntry("serve", "--config", cfgMgr.Path())
		if err != nil {
			return err
		}
		if err := autostart.Enable(e); err != nil {
			return fmt.Errorf("enable autostart: %w", err)
		}
		fmt.Printf("Autostart enabled: %s\n", e.CommandLine())
		return nil
	},
}

var autostartDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Remove the login entry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := autostart.Disable(); err != nil {
			return fmt.Errorf("disable autostart: %w", err)
		}
		fmt.Println("Autostart disabled")
		return nil
	},
}

var autostartStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether autostart is enabled",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if autostart.IsEnabled() {
			fmt.Println("Autostart: enabled")
		} else {
			fmt.Println("Autostart: disabled")
		}
	},
}

func init() {
	autostartCmd.AddCommand(autostartEnableCmd, autostartDisableCmd, autostartStatusCmd)
	rootCmd.AddCommand(autostartCmd)
}
