package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline status",
	Long:  `Show consent, the live session, captured attribution and the offline queue of the data directory.`,
	RunE:  withEnvironment(runStatus),
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print status as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string, env *environment) error {
	stats := env.tracker.Stats(cmd.Context())
	out := cmd.OutOrStdout()

	if statusJSON {
		return writeJSON(out, stats)
	}

	fmt.Fprintf(out, "Collector: %s\n", env.cfg.Collector.URL)
	fmt.Fprintf(out, "Storage: %s (%s)\n", env.cfg.Storage.Driver, env.cfg.StoragePath())
	fmt.Fprintf(out, "Consent: %s\n", grantedLabel(stats.Consent))

	if stats.SessionID != "" {
		fmt.Fprintf(out, "Session: %s (idle %s)\n", stats.SessionID, formatDuration(time.Since(stats.SessionLastSeen)))
	} else {
		fmt.Fprintln(out, "Session: none")
	}

	if stats.Attribution.IsZero() {
		fmt.Fprintln(out, "Attribution: none")
	} else {
		fmt.Fprintln(out, "Attribution:")
		for _, key := range []string{"utm_source", "utm_medium", "utm_campaign", "utm_content", "utm_term"} {
			if v := stats.Attribution.Fields()[key]; v != "" {
				fmt.Fprintf(out, "  %s: %s\n", key, v)
			}
		}
	}

	fmt.Fprintf(out, "Queue: %d/%d (max retries %d)\n", stats.Queued, stats.QueueCapacity, stats.MaxRetries)
	if !stats.Durable {
		fmt.Fprintln(out, "Warning: queue is not persisted")
	}

	return nil
}

func grantedLabel(granted bool) string {
	if granted {
		return "granted"
	}
	return "not granted"
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
