package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Replay the offline queue once",
	Long: `Run one replay pass over the offline queue. Entries still backing off are
left for a later pass; nothing is sent without consent.`,
	Args: cobra.NoArgs,
	RunE: withEnvironment(runFlush),
}

func init() {
	rootCmd.AddCommand(flushCmd)
}

func runFlush(cmd *cobra.Command, args []string, env *environment) error {
	report := env.tracker.Drain(cmd.Context())
	out := cmd.OutOrStdout()

	if report.Skipped {
		fmt.Fprintf(out, "Skipped: %s\n", report.Reason)
		return nil
	}

	fmt.Fprintf(out, "Attempted: %d\n", report.Attempted)
	fmt.Fprintf(out, "Delivered: %d\n", report.Delivered)
	fmt.Fprintf(out, "Rejected: %d\n", report.Rejected)
	fmt.Fprintf(out, "Retrying: %d\n", report.Retried)
	fmt.Fprintf(out, "Dropped: %d\n", report.Dropped)
	if report.Deferred > 0 {
		fmt.Fprintf(out, "Backing off: %d\n", report.Deferred)
	}
	fmt.Fprintf(out, "Remaining: %d\n", len(env.tracker.Pending(cmd.Context())))

	return nil
}
