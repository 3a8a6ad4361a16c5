package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"autokey/internal/protocol"
	"autokey/internal/timeline"
)

var (
	compileRecording  bool
	compileListEvents bool
)

var compileCmd = &cobra.Command{
	Use:   "compile <script>",
	Short: "Compile a script and report what would be played",
	Long: `Parse and build a script without playing it. Prints how many lines were
read, accepted and dropped, and every malformed line. Exits non-zero when
on_malformed is "abort" and a bad line is found.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := compileOptions(cfgMgr.Get().Playback)
		if err != nil {
			return err
		}
		res, err := timeline.CompileFile(args[0], compileRecording, opts)
		if err != nil {
			return err
		}

		if jsonOutput {
			out := protocol.CompileResponse{Stats: res.Stats, Events: []string{}}
			for _, ev := range res.Timeline.Events() {
				out.Events = append(out.Events, fmt.Sprint(ev))
			}
			for _, e := range res.Errors {
				out.Errors = append(out.Errors, e.Error())
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		printStats(os.Stdout, res)
		for _, e := range res.Errors {
			fmt.Printf("  skipped %v\n", e)
		}
		if compileListEvents {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "#\tAT\tEVENT")
			for i, ev := range res.Timeline.Events() {
				fmt.Fprintf(w, "%d\t%dms\t%v\n", i, ev.Timestamp(), ev)
			}
			w.Flush()
		}
		return nil
	},
}

// printStats prints the compile summary shared by compile and play
func printStats(w io.Writer, res *timeline.Result) {
	st := res.Stats
	fmt.Fprintf(w, "Lines read: %d, accepted: %d, dropped: %d", st.LinesRead, st.Accepted, st.Dropped)
	if st.Malformed > 0 {
		fmt.Fprintf(w, ", malformed: %d", st.Malformed)
	}
	if st.OutOfOrder > 0 {
		fmt.Fprintf(w, ", out of order: %d", st.OutOfOrder)
	}
	fmt.Fprintln(w)
}

func init() {
	f := compileCmd.Flags()
	f.BoolVar(&compileRecording, "recording", false, "treat the file as a JSON recording")
	f.BoolVar(&compileListEvents, "events", false, "list the accepted events")
	f.BoolVar(&jsonOutput, "json", false, "output results as JSON")
	f.String("on-malformed", "skip", "what to do with a bad line: skip or abort")
	f.Bool("strict-order", false, "reject lines whose timestamp goes backwards")
	bindConfig(f, "on-malformed", "playback.on_malformed")
	bindConfig(f, "strict-order", "playback.strict_order")

	rootCmd.AddCommand(compileCmd)
}
