package api

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client is a control API client for a running gigchat.
type Client struct {
	conn *grpc.ClientConn
}

// NewClient dials the profile's Unix domain socket.
func NewClient(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("dial gigchat: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func invoke[Resp any](ctx context.Context, c *Client, method string, req any) (*Resp, error) {
	out := new(Resp)
	if err := c.conn.Invoke(ctx, fullMethod(method), req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetStatus(ctx context.Context, req *StatusRequest) (*StatusResponse, error) {
	return invoke[StatusResponse](ctx, c, "GetStatus", req)
}

func (c *Client) OpenConversation(ctx context.Context, req *OpenRequest) (*OpenResponse, error) {
	return invoke[OpenResponse](ctx, c, "OpenConversation", req)
}

func (c *Client) GetTimeline(ctx context.Context, req *TimelineRequest) (*TimelineResponse, error) {
	return invoke[TimelineResponse](ctx, c, "GetTimeline", req)
}

func (c *Client) SendText(ctx context.Context, req *SendRequest) (*SendResponse, error) {
	return invoke[SendResponse](ctx, c, "SendText", req)
}

func (c *Client) DeleteMessage(ctx context.Context, req *MessageRequest) (*MessageResponse, error) {
	return invoke[MessageResponse](ctx, c, "DeleteMessage", req)
}

func (c *Client) RetryMessage(ctx context.Context, req *MessageRequest) (*MessageResponse, error) {
	return invoke[MessageResponse](ctx, c, "RetryMessage", req)
}

func (c *Client) DiscardMessage(ctx context.Context, req *MessageRequest) (*MessageResponse, error) {
	return invoke[MessageResponse](ctx, c, "DiscardMessage", req)
}

func (c *Client) ListConversations(ctx context.Context, req *ConversationsRequest) (*ConversationsResponse, error) {
	return invoke[ConversationsResponse](ctx, c, "ListConversations", req)
}

// EventStream receives watched events.
type EventStream struct {
	stream grpc.ClientStream
}

// Recv blocks for the next event.
func (s *EventStream) Recv() (*Event, error) {
	ev := new(Event)
	if err := s.stream.RecvMsg(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// WatchEvents opens an event stream. Cancel ctx to end it.
func (c *Client) WatchEvents(ctx context.Context, req *WatchRequest) (*EventStream, error) {
	stream, err := c.conn.NewStream(ctx, &conversationServiceDesc.Streams[0], fullMethod("WatchEvents"))
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &EventStream{stream: stream}, nil
}
