package cli

import (
	"fmt"
	"strconv"

	"github.com/harun/beacon/pkg/dispatch"
	"github.com/harun/beacon/pkg/event"
	"github.com/spf13/cobra"
)

var (
	trackType     string
	trackPage     string
	trackURL      string
	trackReferrer string
	trackMeta     map[string]string
)

var trackCmd = &cobra.Command{
	Use:   "track <name>",
	Short: "Send one event through the pipeline",
	Long: `Send one event through the full pipeline: consent, session, attribution,
validation and dispatch. A transient failure leaves the event in the offline queue.`,
	Args: cobra.ExactArgs(1),
	RunE: withEnvironment(runTrack),
}

func init() {
	trackCmd.Flags().StringVar(&trackType, "type", "", "event type (pageview, click, conversion, error, engagement, performance, custom)")
	trackCmd.Flags().StringVar(&trackPage, "page", "", "page path")
	trackCmd.Flags().StringVar(&trackURL, "url", "", "page URL")
	trackCmd.Flags().StringVar(&trackReferrer, "referrer", "", "referrer URL")
	trackCmd.Flags().StringToStringVar(&trackMeta, "meta", nil, "metadata key=value pairs")
	rootCmd.AddCommand(trackCmd)
}

func runTrack(cmd *cobra.Command, args []string, env *environment) error {
	raw := event.RawEvent{
		Name:     args[0],
		Type:     event.Type(trackType),
		Page:     trackPage,
		URL:      trackURL,
		Referrer: trackReferrer,
		Metadata: parseMetadata(trackMeta),
	}

	res := env.tracker.Send(cmd.Context(), raw)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Result: %s\n", res.Kind)
	if res.EventID != "" {
		fmt.Fprintf(out, "Event ID: %s\n", res.EventID)
	}
	if res.Reason != "" {
		fmt.Fprintf(out, "Reason: %s\n", res.Reason)
	}

	switch res.Kind {
	case dispatch.Invalid:
		return res.Err
	case dispatch.Rejected:
		return fmt.Errorf("collector rejected event: %s", res.Reason)
	}
	return nil
}

// parseMetadata keeps numbers and booleans typed so they reach the collector as JSON scalars
func parseMetadata(pairs map[string]string) map[string]interface{} {
	md := make(map[string]interface{}, len(pairs))
	for k, v := range pairs {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			md[k] = n
			continue
		}
		if b, err := strconv.ParseBool(v); err == nil {
			md[k] = b
			continue
		}
		md[k] = v
	}
	return md
}
