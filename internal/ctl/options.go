package ctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gigboard/gigchat/internal/api"
	"github.com/gigboard/gigchat/internal/session"
)

// Options are the flags shared by every command.
type Options struct {
	Profile string
	JSON    bool
	Timeout time.Duration

	out io.Writer
}

func (o *Options) profile() (string, error) {
	name := session.Resolve(o.Profile)
	if err := session.ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}

func (o *Options) writer() io.Writer {
	if o.out != nil {
		return o.out
	}
	return color.Output
}

// dial connects to the profile's running client.
func (o *Options) dial() (*api.Client, string, error) {
	name, err := o.profile()
	if err != nil {
		return nil, "", err
	}
	c, err := api.NewClient(session.SocketPath(name))
	if err != nil {
		return nil, "", fmt.Errorf("connect to profile %q: %w", name, err)
	}
	return c, name, nil
}

// call runs fn against the running client with the request timeout.
func (o *Options) call(fn func(ctx context.Context, c *api.Client) error) error {
	c, name, err := o.dial()
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), o.Timeout)
	defer cancel()
	return o.HandleError(explain(name, fn(ctx, c)))
}

// HandleError prints err as a JSON object in JSON mode and swallows it;
// otherwise it is returned for cobra to report.
func (o *Options) HandleError(err error) error {
	if !o.JSON || err == nil {
		return err
	}
	b, merr := json.Marshal(map[string]string{"error": err.Error()})
	if merr != nil {
		return merr
	}
	_, _ = fmt.Fprintln(o.writer(), string(b))
	return nil
}

func (o *Options) printJSON(v any) error {
	enc := json.NewEncoder(o.writer())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// explain turns gRPC errors into messages that name the fix.
func explain(profile string, err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unavailable:
		if !isTransportFailure(st.Message()) {
			return fmt.Errorf("%s", st.Message())
		}
		return fmt.Errorf("gigchat is not running for profile %q (start it with `gigchat --profile %s`)", profile, profile)
	case codes.DeadlineExceeded:
		return fmt.Errorf("gigchat did not answer in time")
	default:
		return fmt.Errorf("%s", st.Message())
	}
}

// isTransportFailure separates "no server on the socket" from Unavailable
// answers of a running server, such as a dropped conversation connection.
func isTransportFailure(msg string) bool {
	for _, s := range []string{"connection error", "dial unix", "no such file", "connection refused"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
