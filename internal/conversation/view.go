// Package conversation implements the per-peer conversation view: it owns the
// connection, the timeline and every outbound action for one peer.
//
// All view state is owned by a single loop goroutine. Transport callbacks,
// timers, history completion and user actions are posted to it as closures
// and run one at a time, so the timeline needs no locking.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gigboard/gigchat/internal/bus"
	"github.com/gigboard/gigchat/internal/chat"
	"github.com/gigboard/gigchat/internal/status"
	"github.com/gigboard/gigchat/internal/timeline"
	"github.com/gigboard/gigchat/internal/transport"
)

const queueSize = 256

var (
	ErrAlreadyMounted = errors.New("view already mounted")
	ErrNotMounted     = errors.New("view not mounted")
	ErrInvalidPeer    = errors.New("invalid peer")
)

// HistoryState tracks the one-shot history load of a view.
type HistoryState int

const (
	HistoryLoading HistoryState = iota
	HistoryLoaded
	HistoryFailed
)

func (s HistoryState) String() string {
	switch s {
	case HistoryLoading:
		return "loading"
	case HistoryLoaded:
		return "loaded"
	case HistoryFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time copy of a view.
type Snapshot struct {
	Peer       string
	Messages   []chat.Message // newest first
	History    HistoryState
	Conn       status.State
	PeerTyping bool
}

// TimelineChanged is the payload of bus.KindTimelineChanged.
type TimelineChanged struct {
	Peer     string
	Messages []chat.Message
}

// PeerTyping is the payload of bus.KindPeerTyping.
type PeerTyping struct {
	Peer   string
	Typing bool
}

// View is the conversation with one peer.
type View struct {
	deps  Deps
	peer  string
	self  string
	log   *zap.Logger
	store *timeline.Store
	queue chan func()

	mu        sync.Mutex
	mounted   bool
	unmounted bool
	ctx       context.Context
	cancel    context.CancelFunc
	loopDone  chan struct{}
	ch        Channel
	unsubs    []transport.Unsubscribe

	// Owned by the loop goroutine.
	history         HistoryState
	ackTimers       map[string]*time.Timer
	typingTimer     *time.Timer
	typingGen       int
	peerTyping      bool
	peerTypingTimer *time.Timer
	peerTypingGen   int
}

// NewView creates an unmounted view of the conversation with peer.
func NewView(deps Deps, peer string) (*View, error) {
	deps.defaults()
	peer = strings.TrimSpace(peer)
	if peer == "" || peer == deps.Session.UserID {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPeer, peer)
	}
	if deps.Connect == nil || deps.History == nil {
		return nil, errors.New("conversation: connector and history loader are required")
	}
	return &View{
		deps:      deps,
		peer:      peer,
		self:      deps.Session.UserID,
		log:       deps.Logger.With(zap.String("peer", peer)),
		store:     timeline.New(deps.Settings.ReconcileWindow),
		queue:     make(chan func(), queueSize),
		ackTimers: make(map[string]*time.Timer),
	}, nil
}

// Peer returns the other participant.
func (v *View) Peer() string {
	return v.peer
}

// Mount opens the connection, registers the event handlers once and starts
// the history load. A view mounts at most once.
func (v *View) Mount(ctx context.Context) error {
	v.mu.Lock()
	if v.mounted {
		v.mu.Unlock()
		return ErrAlreadyMounted
	}
	v.mounted = true
	v.ctx, v.cancel = context.WithCancel(ctx)
	v.loopDone = make(chan struct{})
	loopCtx := v.ctx
	v.mu.Unlock()

	go v.loop(loopCtx)

	ch, err := v.deps.Connect(loopCtx, v.peer, v.deps.Session.Token)
	if err != nil {
		v.notice(bus.KindNoticeError, "Could not connect: %v", err)
		v.mu.Lock()
		v.unmounted = true
		v.mu.Unlock()
		v.cancel()
		<-v.loopDone
		return fmt.Errorf("mount %s: %w", v.peer, err)
	}

	v.mu.Lock()
	if v.unmounted {
		v.mu.Unlock()
		_ = ch.Close()
		return ErrNotMounted
	}
	v.ch = ch
	v.unsubs = []transport.Unsubscribe{
		ch.Subscribe(chat.EventReceiveMessage, v.handle(v.onReceive)),
		ch.Subscribe(chat.EventDeleteMessage, v.handle(v.onRemoteDelete)),
		ch.Subscribe(chat.EventTyping, v.handle(v.onPeerTyping)),
		ch.Subscribe(chat.EventDisconnect, v.handle(v.onDisconnect)),
		ch.Subscribe(chat.EventConnectError, v.handle(v.onConnectError)),
		ch.Subscribe(chat.EventConnect, v.handle(v.onReconnect)),
	}
	v.mu.Unlock()

	go v.loadHistory(loopCtx)

	v.deps.Bus.Emit(bus.KindViewMounted, v.peer)
	v.log.Info("conversation mounted")
	return nil
}

// Unmount detaches every handler, cancels the history request, closes the
// connection and stops the timers and the loop. It is safe to call more than once.
func (v *View) Unmount() error {
	v.mu.Lock()
	if !v.mounted || v.unmounted {
		v.mu.Unlock()
		return nil
	}
	v.unmounted = true
	unsubs, ch := v.unsubs, v.ch
	v.unsubs, v.ch = nil, nil
	v.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	v.cancel()

	var err error
	if ch != nil {
		err = ch.Close()
	}
	<-v.loopDone
	v.stopTimers()

	v.deps.Bus.Emit(bus.KindViewUnmounted, v.peer)
	v.log.Info("conversation unmounted")
	return err
}

// Snapshot returns a copy of the current view state.
func (v *View) Snapshot(ctx context.Context) (Snapshot, error) {
	var s Snapshot
	err := v.call(ctx, func() {
		s = Snapshot{
			Peer:       v.peer,
			Messages:   v.store.Messages(),
			History:    v.history,
			Conn:       v.connState(),
			PeerTyping: v.peerTyping,
		}
	})
	return s, err
}

// Message returns one timeline entry.
func (v *View) Message(ctx context.Context, id string) (chat.Message, bool, error) {
	var (
		m  chat.Message
		ok bool
	)
	err := v.call(ctx, func() { m, ok = v.store.Get(id) })
	return m, ok, err
}

func (v *View) loop(ctx context.Context) {
	defer close(v.loopDone)
	for {
		select {
		case fn := <-v.queue:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// post queues fn on the loop. It reports false once the view is unmounted.
func (v *View) post(fn func()) bool {
	v.mu.Lock()
	live := v.mounted && !v.unmounted
	ctx := v.ctx
	v.mu.Unlock()
	if !live {
		return false
	}
	select {
	case v.queue <- fn:
		return true
	case <-ctx.Done():
		return false
	}
}

// call runs fn on the loop and waits for it.
func (v *View) call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !v.post(func() {
		defer close(done)
		fn()
	}) {
		return ErrNotMounted
	}
	v.mu.Lock()
	loopDone := v.loopDone
	v.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-loopDone:
		select {
		case <-done:
			return nil
		default:
			return ErrNotMounted
		}
	}
}

func (v *View) handle(fn func(json.RawMessage)) transport.Handler {
	return func(data json.RawMessage) {
		v.post(func() { fn(data) })
	}
}

func (v *View) channel() Channel {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ch
}

func (v *View) connState() status.State {
	if ch := v.channel(); ch != nil {
		return ch.State()
	}
	return status.Closed
}

// emit sends one event with the view's emit timeout.
func (v *View) emit(event string, payload any) error {
	ch := v.channel()
	if ch == nil {
		return ErrNotMounted
	}
	v.mu.Lock()
	ctx := v.ctx
	v.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, v.deps.Settings.EmitTimeout)
	defer cancel()
	return ch.Emit(ctx, event, payload)
}

func (v *View) loadHistory(ctx context.Context) {
	msgs, err := v.deps.History.Load(ctx, v.self, v.peer, v.deps.Session.Token)
	v.post(func() {
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			v.history = HistoryFailed
			v.log.Warn("history load failed", zap.Error(err))
			v.notice(bus.KindNoticeError, "Could not load messages: %v", err)
			v.publishTimeline()
			return
		}
		n := v.store.LoadHistory(msgs)
		v.history = HistoryLoaded
		v.log.Info("history applied", zap.Int("messages", n))
		v.publishTimeline()
	})
}

func (v *View) onReceive(data json.RawMessage) {
	m, err := chat.DecodeReceive(data)
	if err != nil {
		v.log.Warn("dropping malformed message", zap.Error(err))
		return
	}
	if m.Conversation() != chat.Key(v.self, v.peer) {
		v.log.Debug("ignoring message for another conversation", zap.String("id", m.ID))
		return
	}

	out := v.store.Receive(m, v.self)
	switch out.Kind {
	case timeline.Duplicate:
		return
	case timeline.Suppressed:
		if out.OrphanEcho {
			v.deleteOrphan(out.ID)
		}
		return
	case timeline.Reconciled:
		v.stopAckTimer(out.PrevID)
		v.journalErr("confirm send", v.deps.Journal.MarkOutboxConfirmed(out.PrevID, out.ID))
	case timeline.Inserted:
		if m.SenderID == v.peer {
			v.setPeerTyping(false)
		}
	}
	v.journalErr("record message", v.deps.Journal.RecordMessage(v.peer, m.Content, m.CreatedAt))
	v.publishTimeline()
}

func (v *View) onDisconnect(data json.RawMessage) {
	v.log.Warn("disconnected", zap.String("reason", reason(data)))
	v.deps.Bus.Emit(bus.KindConnLifecycle, Lifecycle{Peer: v.peer, Event: chat.EventDisconnect, Reason: reason(data)})
	v.notice(bus.KindNoticeWarn, "Connection lost, reconnecting…")
}

func (v *View) onConnectError(data json.RawMessage) {
	v.deps.Bus.Emit(bus.KindConnLifecycle, Lifecycle{Peer: v.peer, Event: chat.EventConnectError, Reason: reason(data)})
	v.notice(bus.KindNoticeWarn, "Reconnect failed: %s", reason(data))
}

func (v *View) onReconnect(json.RawMessage) {
	v.deps.Bus.Emit(bus.KindConnLifecycle, Lifecycle{Peer: v.peer, Event: chat.EventConnect})
	v.notice(bus.KindNoticeInfo, "Reconnected")
}

// Lifecycle is the payload of bus.KindConnLifecycle.
type Lifecycle struct {
	Peer   string
	Event  string
	Reason string
}

func reason(data json.RawMessage) string {
	var p chat.LifecyclePayload
	if len(data) == 0 || json.Unmarshal(data, &p) != nil {
		return ""
	}
	return p.Reason
}

func (v *View) publishTimeline() {
	v.deps.Bus.Emit(bus.KindTimelineChanged, TimelineChanged{Peer: v.peer, Messages: v.store.Messages()})
}

func (v *View) notice(kind, format string, args ...any) {
	v.deps.Bus.Emit(kind, bus.Notice{Peer: v.peer, Text: fmt.Sprintf(format, args...)})
}

func (v *View) journalErr(op string, err error) {
	if err != nil {
		v.log.Warn("journal write failed", zap.String("op", op), zap.Error(err))
	}
}

// stopTimers runs after the loop has exited.
func (v *View) stopTimers() {
	for id, t := range v.ackTimers {
		t.Stop()
		delete(v.ackTimers, id)
	}
	if v.typingTimer != nil {
		v.typingTimer.Stop()
	}
	if v.peerTypingTimer != nil {
		v.peerTypingTimer.Stop()
	}
}
