package conversation

import (
	"context"
	"time"

	"github.com/atotto/clipboard"
	"go.uber.org/zap"

	"github.com/gigboard/gigchat/internal/bus"
	"github.com/gigboard/gigchat/internal/chat"
	"github.com/gigboard/gigchat/internal/session"
	"github.com/gigboard/gigchat/internal/status"
	"github.com/gigboard/gigchat/internal/transport"
)

// Channel is the real-time connection of one view. *transport.Manager
// implements it.
type Channel interface {
	Subscribe(event string, h transport.Handler) transport.Unsubscribe
	Emit(ctx context.Context, event string, payload any) error
	State() status.State
	Close() error
}

// Connector opens the channel for a conversation with peer.
type Connector func(ctx context.Context, peer, token string) (Channel, error)

// HistoryLoader fetches stored messages newest first. *history.Client implements it.
type HistoryLoader interface {
	Load(ctx context.Context, selfID, otherID, token string) ([]chat.Message, error)
}

// Journal persists outgoing sends and conversation activity. *store.DB implements it.
type Journal interface {
	JournalSend(clientMsgID, peerID, body string) error
	MarkOutboxConfirmed(clientMsgID, serverMsgID string) error
	MarkOutboxFailed(clientMsgID, errMsg string) error
	MarkOutboxRetried(clientMsgID string) error
	MarkOutboxDiscarded(clientMsgID string) error
	TouchConversation(peerID string, t time.Time) error
	RecordMessage(peerID, preview string, t time.Time) error
}

// Clipboard receives copied message text.
type Clipboard interface {
	WriteAll(text string) error
}

// SystemClipboard writes to the OS clipboard.
type SystemClipboard struct{}

func (SystemClipboard) WriteAll(text string) error {
	return clipboard.WriteAll(text)
}

// Settings are the tunables of a view. Zero fields take the defaults.
type Settings struct {
	ReconcileWindow time.Duration
	SendAckTimeout  time.Duration
	TypingDebounce  time.Duration
	PeerTypingTTL   time.Duration
	EmitTimeout     time.Duration
}

const (
	DefaultSendAckTimeout = 15 * time.Second
	DefaultTypingDebounce = 500 * time.Millisecond
	DefaultPeerTypingTTL  = 3 * time.Second
	DefaultEmitTimeout    = 5 * time.Second
)

func (s *Settings) defaults() {
	if s.SendAckTimeout <= 0 {
		s.SendAckTimeout = DefaultSendAckTimeout
	}
	if s.TypingDebounce <= 0 {
		s.TypingDebounce = DefaultTypingDebounce
	}
	if s.PeerTypingTTL <= 0 {
		s.PeerTypingTTL = DefaultPeerTypingTTL
	}
	if s.EmitTimeout <= 0 {
		s.EmitTimeout = DefaultEmitTimeout
	}
}

// Deps are the collaborators shared by every view of a profile.
type Deps struct {
	Session   session.Session
	Connect   Connector
	History   HistoryLoader
	Journal   Journal
	Clipboard Clipboard
	Bus       *bus.Bus
	Logger    *zap.Logger
	Settings  Settings
	Now       func() time.Time
}

func (d *Deps) defaults() {
	d.Settings.defaults()
	if d.Journal == nil {
		d.Journal = nopJournal{}
	}
	if d.Clipboard == nil {
		d.Clipboard = SystemClipboard{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
}

type nopJournal struct{}

func (nopJournal) JournalSend(string, string, string) error { return nil }
func (nopJournal) MarkOutboxConfirmed(string, string) error { return nil }
func (nopJournal) MarkOutboxFailed(string, string) error { return nil }
func (nopJournal) MarkOutboxRetried(string) error { return nil }
func (nopJournal) MarkOutboxDiscarded(string) error { return nil }
func (nopJournal) TouchConversation(string, time.Time) error { return nil }
func (nopJournal) RecordMessage(string, string, time.Time) error { return nil }
