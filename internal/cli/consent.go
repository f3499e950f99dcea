package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var consentCmd = &cobra.Command{
	Use:   "consent",
	Short: "Show or change tracking consent",
	Long: `Show or change the consent flag of the data directory. A running pipeline
over the same directory notices the change and resumes or pauses sending.`,
}

var consentGrantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Grant tracking consent and replay the offline queue",
	Args:  cobra.NoArgs,
	RunE: withEnvironment(func(cmd *cobra.Command, args []string, env *environment) error {
		env.tracker.GrantConsent(cmd.Context())
		fmt.Fprintln(cmd.OutOrStdout(), "Consent: granted")
		return env.tracker.Flush(cmd.Context())
	}),
}

var consentRevokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Revoke tracking consent; queued events are kept but not sent",
	Args:  cobra.NoArgs,
	RunE: withEnvironment(func(cmd *cobra.Command, args []string, env *environment) error {
		env.tracker.RevokeConsent(cmd.Context())
		fmt.Fprintln(cmd.OutOrStdout(), "Consent: not granted")
		return nil
	}),
}

var consentShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the consent flag",
	Args:  cobra.NoArgs,
	RunE: withEnvironment(func(cmd *cobra.Command, args []string, env *environment) error {
		fmt.Fprintf(cmd.OutOrStdout(), "Consent: %s\n", grantedLabel(env.tracker.HasConsent(cmd.Context())))
		return nil
	}),
}

func init() {
	consentCmd.AddCommand(consentGrantCmd, consentRevokeCmd, consentShowCmd)
	rootCmd.AddCommand(consentCmd)
}
