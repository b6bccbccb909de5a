package ctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gigboard/gigchat/internal/api"
)

func addWatch(topLevel *cobra.Command, o *Options) {
	var prefix string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream client events until interrupted.",
		Example: `
gigchatctl watch
gigchatctl watch --kind notice. --json
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, name, err := o.dial()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			stream, err := c.WatchEvents(ctx, &api.WatchRequest{Prefix: prefix})
			if err != nil {
				return o.HandleError(explain(name, err))
			}
			return o.HandleError(explain(name, o.drain(stream)))
		},
	}
	cmd.Flags().StringVar(&prefix, "kind", "", "only events whose kind starts with this prefix, e.g. notice. or conn.")
	topLevel.AddCommand(cmd)
}

type eventSource interface {
	Recv() (*api.Event, error)
}

// drain prints events until the stream ends. An interrupt is a clean exit.
func (o *Options) drain(stream eventSource) error {
	w := o.writer()
	for {
		ev, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled {
				return nil
			}
			return err
		}
		if o.JSON {
			b, err := json.Marshal(ev)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(w, string(b))
			continue
		}
		printEvent(w, ev)
	}
}
