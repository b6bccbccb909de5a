package api

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/gigboard/gigchat/internal/bus"
	"github.com/gigboard/gigchat/internal/chat"
	"github.com/gigboard/gigchat/internal/conversation"
	"github.com/gigboard/gigchat/internal/session"
	"github.com/gigboard/gigchat/internal/status"
	"github.com/gigboard/gigchat/internal/store"
	"github.com/gigboard/gigchat/internal/timeline"
	"github.com/gigboard/gigchat/internal/transport"
)

const (
	defaultConversationLimit = 50
	watchBuffer              = 64
)

// Host is the conversation host the service drives. *conversation.Host implements it.
type Host interface {
	Open(ctx context.Context, peer string) (*conversation.View, error)
	Active() (*conversation.View, bool)
}

// Journal is the local journal read by the service. *store.DB implements it.
type Journal interface {
	CountOutbox() (store.OutboxCounts, error)
	ListConversations(limit int) ([]store.Conversation, error)
}

// ConversationService implements the control API of a running client.
type ConversationService struct {
	session   session.Session
	startedAt time.Time
	host      Host
	journal   Journal
	bus       *bus.Bus
	logger    *zap.Logger
}

// NewConversationService creates the control API service. journal may be nil.
func NewConversationService(s session.Session, host Host, journal Journal, b *bus.Bus, logger *zap.Logger) *ConversationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationService{
		session:   s,
		startedAt: time.Now(),
		host:      host,
		journal:   journal,
		bus:       b,
		logger:    logger,
	}
}

func (s *ConversationService) GetStatus(ctx context.Context, _ *StatusRequest) (*StatusResponse, error) {
	resp := &StatusResponse{
		Profile:  s.session.Profile,
		UserID:   s.session.UserID,
		Conn:     string(status.Idle),
		UptimeMs: time.Since(s.startedAt).Milliseconds(),
	}
	if v, ok := s.host.Active(); ok {
		snap, err := v.Snapshot(ctx)
		if err != nil {
			return nil, toStatus(err)
		}
		resp.Peer = snap.Peer
		resp.Conn = string(snap.Conn)
		resp.History = snap.History.String()
		resp.PeerTyping = snap.PeerTyping
		resp.Messages = len(snap.Messages)
	}
	if s.journal != nil {
		if c, err := s.journal.CountOutbox(); err == nil {
			resp.Outbox = OutboxCounts{Pending: c.Pending, Confirmed: c.Confirmed, Failed: c.Failed, Discarded: c.Discarded}
		} else {
			s.logger.Warn("count outbox failed", zap.Error(err))
		}
	}
	return resp, nil
}

func (s *ConversationService) OpenConversation(ctx context.Context, req *OpenRequest) (*OpenResponse, error) {
	v, err := s.host.Open(ctx, req.Peer)
	if err != nil {
		return nil, toStatus(err)
	}
	return &OpenResponse{Peer: v.Peer()}, nil
}

func (s *ConversationService) GetTimeline(ctx context.Context, req *TimelineRequest) (*TimelineResponse, error) {
	v, err := s.view(ctx, req.Peer)
	if err != nil {
		return nil, err
	}
	snap, err := v.Snapshot(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	msgs := snap.Messages
	if req.Limit > 0 && len(msgs) > req.Limit {
		msgs = msgs[:req.Limit]
	}

	resp := &TimelineResponse{Peer: snap.Peer, History: snap.History.String(), Buckets: []Bucket{}}
	for _, b := range timeline.GroupByDay(msgs, time.Now(), time.Local) {
		out := Bucket{Label: b.Label, Messages: make([]Message, 0, len(b.Messages))}
		for _, m := range b.Messages {
			out.Messages = append(out.Messages, toWire(m, s.session.UserID))
		}
		resp.Buckets = append(resp.Buckets, out)
	}
	return resp, nil
}

func (s *ConversationService) SendText(ctx context.Context, req *SendRequest) (*SendResponse, error) {
	v, err := s.view(ctx, req.Peer)
	if err != nil {
		return nil, err
	}
	id, err := v.Send(ctx, req.Text)
	if id == "" {
		return nil, toStatus(err)
	}
	resp := &SendResponse{ID: id, Status: string(chat.Pending)}
	if err != nil {
		resp.Status = string(chat.Failed)
		resp.Error = err.Error()
	}
	return resp, nil
}

func (s *ConversationService) DeleteMessage(ctx context.Context, req *MessageRequest) (*MessageResponse, error) {
	return s.messageAction(ctx, req, (*conversation.View).Delete)
}

func (s *ConversationService) RetryMessage(ctx context.Context, req *MessageRequest) (*MessageResponse, error) {
	return s.messageAction(ctx, req, (*conversation.View).Retry)
}

func (s *ConversationService) DiscardMessage(ctx context.Context, req *MessageRequest) (*MessageResponse, error) {
	return s.messageAction(ctx, req, (*conversation.View).Discard)
}

func (s *ConversationService) ListConversations(_ context.Context, req *ConversationsRequest) (*ConversationsResponse, error) {
	if s.journal == nil {
		return nil, grpcstatus.Errorf(codes.Unavailable, "journal not available")
	}
	limit := defaultConversationLimit
	if req.Limit > 0 {
		limit = req.Limit
	}
	convs, err := s.journal.ListConversations(limit)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "list conversations: %v", err)
	}
	resp := &ConversationsResponse{Conversations: make([]Conversation, 0, len(convs))}
	for _, c := range convs {
		resp.Conversations = append(resp.Conversations, Conversation{
			PeerID:        c.PeerID,
			LastOpenedAt:  millis(c.LastOpenedAt),
			LastMessageAt: millis(c.LastMessageAt),
			Preview:       c.LastMessagePreview,
		})
	}
	return resp, nil
}

// WatchEvents streams bus events until the client goes away.
func (s *ConversationService) WatchEvents(req *WatchRequest, stream grpc.ServerStream) error {
	events, unsub := s.bus.Subscribe(req.Prefix, watchBuffer)
	defer unsub()

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := stream.SendMsg(eventToWire(ev)); err != nil {
				return err
			}
		}
	}
}

func (s *ConversationService) messageAction(ctx context.Context, req *MessageRequest, fn func(*conversation.View, context.Context, string) error) (*MessageResponse, error) {
	if req.MessageID == "" {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "message id is required")
	}
	v, err := s.view(ctx, req.Peer)
	if err != nil {
		return nil, err
	}
	if err := fn(v, ctx, req.MessageID); err != nil {
		return nil, toStatus(err)
	}
	return &MessageResponse{MessageID: req.MessageID}, nil
}

// view resolves the target conversation. An empty peer means the active one;
// any other peer is opened, replacing the active conversation.
func (s *ConversationService) view(ctx context.Context, peer string) (*conversation.View, error) {
	if peer == "" {
		v, ok := s.host.Active()
		if !ok {
			return nil, grpcstatus.Errorf(codes.FailedPrecondition, "no conversation open")
		}
		return v, nil
	}
	v, err := s.host.Open(ctx, peer)
	if err != nil {
		return nil, toStatus(err)
	}
	return v, nil
}

func eventToWire(ev bus.Event) *Event {
	out := &Event{ID: uuid.NewString(), Kind: ev.Kind, Time: ev.Timestamp}
	switch p := ev.Payload.(type) {
	case bus.Notice:
		out.Peer, out.Text = p.Peer, p.Text
	case status.StatusChange:
		out.Peer, out.Conn = p.Peer, string(p.To)
	case conversation.Lifecycle:
		out.Peer, out.Text = p.Peer, p.Event
		if p.Reason != "" {
			out.Text += ": " + p.Reason
		}
	case conversation.PeerTyping:
		typing := p.Typing
		out.Peer, out.Typing = p.Peer, &typing
	case conversation.TimelineChanged:
		n := len(p.Messages)
		out.Peer, out.Messages = p.Peer, &n
	case string:
		out.Peer = p
	}
	return out
}

func toStatus(err error) error {
	var te *chat.TransitionError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrMessageTooLong), errors.Is(err, conversation.ErrInvalidPeer):
		return grpcstatus.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, conversation.ErrNotOwnMessage):
		return grpcstatus.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, timeline.ErrNotFound):
		return grpcstatus.Error(codes.NotFound, err.Error())
	case errors.As(err, &te), errors.Is(err, conversation.ErrNoConversation):
		return grpcstatus.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, transport.ErrNotConnected), errors.Is(err, transport.ErrClosed), errors.Is(err, conversation.ErrNotMounted):
		return grpcstatus.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return grpcstatus.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return grpcstatus.Error(codes.Canceled, err.Error())
	default:
		return grpcstatus.Error(codes.Internal, err.Error())
	}
}

func millis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
