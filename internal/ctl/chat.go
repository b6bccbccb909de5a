package ctl

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gigboard/gigchat/internal/api"
)

func addOpen(topLevel *cobra.Command, o *Options) {
	cmd := &cobra.Command{
		Use:   "open <user-id>",
		Short: "Switch the running client to a conversation.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.call(func(ctx context.Context, c *api.Client) error {
				resp, err := c.OpenConversation(ctx, &api.OpenRequest{Peer: args[0]})
				if err != nil {
					return err
				}
				if o.JSON {
					return o.printJSON(resp)
				}
				_, _ = fmt.Fprintf(o.writer(), "chatting with %s\n", resp.Peer)
				return nil
			})
		},
	}
	topLevel.AddCommand(cmd)
}

func addTimeline(topLevel *cobra.Command, o *Options) {
	var (
		peer  string
		limit int
	)
	cmd := &cobra.Command{
		Use:     "timeline",
		Aliases: []string{"tl"},
		Short:   "Print a conversation grouped by day, newest first.",
		Example: `
gigchatctl timeline
gigchatctl timeline --with 64f1c2 --limit 20
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.call(func(ctx context.Context, c *api.Client) error {
				resp, err := c.GetTimeline(ctx, &api.TimelineRequest{Peer: peer, Limit: limit})
				if err != nil {
					return err
				}
				if o.JSON {
					return o.printJSON(resp)
				}
				printTimeline(o.writer(), resp)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&peer, "with", "", "conversation peer (default: the open conversation)")
	cmd.Flags().IntVar(&limit, "limit", 0, "only the newest n messages")
	topLevel.AddCommand(cmd)
}

func addSend(topLevel *cobra.Command, o *Options) {
	var peer string
	cmd := &cobra.Command{
		Use:   "send <text>...",
		Short: "Send a text message.",
		Example: `
gigchatctl send "The draft is ready for review"
gigchatctl send --with 64f1c2 see you tomorrow
`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			return o.call(func(ctx context.Context, c *api.Client) error {
				resp, err := c.SendText(ctx, &api.SendRequest{Peer: peer, Text: text})
				if err != nil {
					return err
				}
				if o.JSON {
					return o.printJSON(resp)
				}
				if resp.Error != "" {
					_, _ = bad.Fprintf(o.writer(), "not sent (%s): retry with `gigchatctl retry %s`\n", resp.Error, resp.ID)
					return nil
				}
				_, _ = fmt.Fprintf(o.writer(), "%s %s\n", resp.Status, faint.Sprint(resp.ID))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&peer, "with", "", "conversation peer (default: the open conversation)")
	topLevel.AddCommand(cmd)
}

// messageAction is one of the per-message commands.
type messageAction struct {
	use, short, done string
	call             func(*api.Client, context.Context, *api.MessageRequest) (*api.MessageResponse, error)
}

func addMessageActions(topLevel *cobra.Command, o *Options) {
	actions := []messageAction{
		{"delete", "Delete one of your messages.", "deleted", (*api.Client).DeleteMessage},
		{"retry", "Re-send a failed message.", "retrying", (*api.Client).RetryMessage},
		{"discard", "Drop a failed message.", "discarded", (*api.Client).DiscardMessage},
	}
	for _, a := range actions {
		var peer string
		cmd := &cobra.Command{
			Use:   a.use + " <message-id>",
			Short: a.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return o.call(func(ctx context.Context, c *api.Client) error {
					resp, err := a.call(c, ctx, &api.MessageRequest{Peer: peer, MessageID: args[0]})
					if err != nil {
						return err
					}
					if o.JSON {
						return o.printJSON(resp)
					}
					_, _ = fmt.Fprintf(o.writer(), "%s %s\n", a.done, resp.MessageID)
					return nil
				})
			},
		}
		cmd.Flags().StringVar(&peer, "with", "", "conversation peer (default: the open conversation)")
		topLevel.AddCommand(cmd)
	}
}
