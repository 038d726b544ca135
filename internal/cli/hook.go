package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/lazypower/tabpulse/internal/hooks"
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Forward browser agent events to the daemon",
	Long: "Each subcommand reads the agent's JSON payload on stdin and forwards it to the daemon. " +
		"Hooks always exit 0 so a stopped daemon never breaks the agent.",
}

var hookShort = map[string]string{
	hooks.EventSync:      "Replace the daemon's tab list (array of tabs)",
	hooks.EventCreated:   "Report a new tab",
	hooks.EventUpdated:   "Report a changed tab",
	hooks.EventActivated: "Report a tab activation",
	hooks.EventRemoved:   "Report a closed tab",
	hooks.EventPlan:      "Plan a quick action and print the tab ids to act on",
	hooks.EventCompleted: "Report a completed bulk action",
}

func init() {
	for _, event := range hooks.Events {
		hookCmd.AddCommand(&cobra.Command{
			Use:   event,
			Short: hookShort[event],
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				if daemonURL != "" {
					os.Setenv("TABPULSE_URL", daemonURL)
				}
				hooks.Handle(event, os.Stdin)
			},
		})
	}
}
