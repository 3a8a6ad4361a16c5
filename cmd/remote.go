package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"autokey/internal/client"
	"autokey/internal/protocol"
)

var (
	remoteAddr      string
	remoteRecording bool
	remoteFollow    bool
)

// setupRemoteClient builds a client for --addr, defaulting to the local
// server described by the config file
func setupRemoteClient() *client.Client {
	cfg := cfgMgr.Get()
	addr := remoteAddr
	if addr == "" {
		addr = fmt.Sprintf("http://127.0.0.1:%d", cfg.General.APIPort)
	}
	return client.New(addr, cfg.General.APIToken)
}

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Control a running \"autokey serve\"",
}

var remotePlayCmd = &cobra.Command{
	Use:   "play <script>",
	Short: "Send a script to the server and play it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		c := setupRemoteClient()

		// Subscribe before starting so a short run's events are not missed.
		var stream *client.Stream
		if remoteFollow {
			if stream, err = c.Subscribe(cmd.Context()); err != nil {
				return err
			}
			defer stream.Close()
		}

		resp, err := c.Play(cmd.Context(), protocol.CompileRequest{
			Script:    string(data),
			Recording: remoteRecording,
		})
		if errors.Is(err, client.ErrBusy) {
			return fmt.Errorf("%w; run \"autokey remote stop\" first", err)
		}
		if err != nil {
			return err
		}

		st := resp.Stats
		fmt.Printf("Started run %s (lines read: %d, accepted: %d, dropped: %d)\n", resp.RunID, st.LinesRead, st.Accepted, st.Dropped)
		if stream == nil {
			return nil
		}
		return follow(cmd, stream, resp.RunID)
	},
}

var remoteStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Cancel the server's active run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stopped, err := setupRemoteClient().Stop(cmd.Context())
		if err != nil {
			return err
		}
		if stopped {
			fmt.Println("Playback stopped")
		} else {
			fmt.Println("Nothing was playing")
		}
		return nil
	},
}

var remoteStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active and last runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := setupRemoteClient().Status(cmd.Context())
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		if st.ActiveRun != "" {
			fmt.Fprintf(w, "Active:\t%s\t(%s)\n", st.ActiveRun, st.Source)
		} else {
			fmt.Fprintln(w, "Active:\tnone")
		}
		if last := st.Last; last != nil {
			fmt.Fprintf(w, "Last:\t%s\t(%s) dispatched %d, failed %d, cancelled %v, %dms\n",
				last.RunID, last.Source, last.Dispatched, last.Failed, last.Cancelled, last.ElapsedMs)
			if last.Error != "" {
				fmt.Fprintf(w, "\terror: %s\n", last.Error)
			}
		}
		return w.Flush()
	},
}

var remoteWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream run events from the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stream, err := setupRemoteClient().Subscribe(cmd.Context())
		if err != nil {
			return err
		}
		defer stream.Close()
		return follow(cmd, stream, "")
	},
}

// follow prints run events until Ctrl+C, or until runID finishes when set
func follow(cmd *cobra.Command, stream *client.Stream, runID string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	err := stream.Each(ctx, func(msg protocol.Message) bool {
		if runID != "" && msg.RunID != runID {
			return true
		}
		payload, _ := json.Marshal(msg.Payload)
		fmt.Printf("%-14s %s %s\n", msg.Type, msg.RunID, payload)
		return runID == "" || msg.Type != protocol.TypeRunFinished
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func init() {
	remoteCmd.PersistentFlags().StringVar(&remoteAddr, "addr", "", "server URL (default http://127.0.0.1:<api_port>)")
	remoteCmd.PersistentFlags().String("token", "", "API token (default general.api_token)")
	bindConfig(remoteCmd.PersistentFlags(), "token", "general.api_token")

	remotePlayCmd.Flags().BoolVar(&remoteRecording, "recording", false, "treat the file as a JSON recording")
	remotePlayCmd.Flags().BoolVarP(&remoteFollow, "follow", "f", false, "stream progress until the run finishes")
	remoteStatusCmd.Flags().BoolVar(&jsonOutput, "json", false, "output results as JSON")

	remoteCmd.AddCommand(remotePlayCmd, remoteStopCmd, remoteStatusCmd, remoteWatchCmd)
	rootCmd.AddCommand(remoteCmd)
}
