package cli

import (
	"github.com/spf13/cobra"
)

var appVersion string

// Execute builds the command tree and runs it.
func Execute(version string) error {
	appVersion = version
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedbackd",
		Short: "Customer feedback service with PIN-protected moderation",
		Long: `feedbackd serves the public review API, the admin moderation endpoints and
the realtime review notifier. Configuration comes from the environment and an
optional .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSeedCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("feedbackd " + appVersion)
		},
	}
}
