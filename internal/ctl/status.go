package ctl

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/gigboard/gigchat/internal/api"
)

func addStatus(topLevel *cobra.Command, o *Options) {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the profile, the active conversation and the outbox.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.call(func(ctx context.Context, c *api.Client) error {
				resp, err := c.GetStatus(ctx, &api.StatusRequest{})
				if err != nil {
					return err
				}
				if o.JSON {
					return o.printJSON(resp)
				}
				printStatus(o.writer(), resp)
				return nil
			})
		},
	}
	topLevel.AddCommand(cmd)
}

func addConversations(topLevel *cobra.Command, o *Options) {
	var limit int
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"convs", "ls"},
		Short:   "List recent conversations.",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.call(func(ctx context.Context, c *api.Client) error {
				resp, err := c.ListConversations(ctx, &api.ConversationsRequest{Limit: limit})
				if err != nil {
					return err
				}
				if o.JSON {
					return o.printJSON(resp)
				}
				printConversations(o.writer(), resp.Conversations)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of conversations")
	topLevel.AddCommand(cmd)
}
