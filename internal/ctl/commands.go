// Package ctl implements gigchatctl, the command line client of a running
// gigchat profile.
package ctl

import (
	"time"

	"github.com/spf13/cobra"
)

// New returns the gigchatctl command tree.
func New() *cobra.Command {
	return newCommand(&Options{})
}

func newCommand(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gigchatctl",
		Short: "Control a running gigchat client.",
		Long: `Control a running gigchat client over its local socket.

Commands other than login and logout need gigchat running for the profile,
either with the terminal UI or with --headless.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVarP(&o.Profile, "profile", "p", "", "profile name (overrides config default)")
	cmd.PersistentFlags().BoolVar(&o.JSON, "json", false, "output as JSON")
	cmd.PersistentFlags().DurationVar(&o.Timeout, "timeout", 10*time.Second, "deadline for each request")

	AddCommands(cmd, o)
	return cmd
}

// AddCommands registers every subcommand on topLevel.
func AddCommands(topLevel *cobra.Command, o *Options) {
	addLogin(topLevel, o)
	addLogout(topLevel, o)
	addStatus(topLevel, o)
	addConversations(topLevel, o)
	addOpen(topLevel, o)
	addTimeline(topLevel, o)
	addSend(topLevel, o)
	addMessageActions(topLevel, o)
	addWatch(topLevel, o)
}
