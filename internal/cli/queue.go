package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var queueJSON bool

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect or clear the offline queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued events, oldest first",
	Args:  cobra.NoArgs,
	RunE:  withEnvironment(runQueueList),
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Discard every queued event",
	Args:  cobra.NoArgs,
	RunE: withEnvironment(func(cmd *cobra.Command, args []string, env *environment) error {
		n := env.tracker.ClearQueue(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d queued event(s)\n", n)
		return nil
	}),
}

func init() {
	queueListCmd.Flags().BoolVar(&queueJSON, "json", false, "print entries as JSON")
	queueCmd.AddCommand(queueListCmd, queueClearCmd)
	rootCmd.AddCommand(queueCmd)
}

func runQueueList(cmd *cobra.Command, args []string, env *environment) error {
	entries := env.tracker.Pending(cmd.Context())
	out := cmd.OutOrStdout()

	if queueJSON {
		return writeJSON(out, entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(out, "Queue is empty")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EVENT ID\tNAME\tTYPE\tRETRIES\tNEXT ATTEMPT")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			e.Event.ID, e.Event.Name, e.Event.Type, e.RetryCount, e.NextAttemptAt.Local().Format(time.RFC3339))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "%d event(s)\n", len(entries))
	return nil
}
