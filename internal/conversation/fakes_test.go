package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gigboard/gigchat/internal/bus"
	"github.com/gigboard/gigchat/internal/chat"
	"github.com/gigboard/gigchat/internal/session"
	"github.com/gigboard/gigchat/internal/status"
	"github.com/gigboard/gigchat/internal/transport"
)

const (
	me   = "u-me"
	peer = "u-peer"
)

type emission struct {
	event   string
	payload any
	err     error
}

type fakeChannel struct {
	mu       sync.Mutex
	handlers map[string]map[int]transport.Handler
	next     int
	emits    []emission
	fail     map[string]error
	closed   bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		handlers: make(map[string]map[int]transport.Handler),
		fail:     make(map[string]error),
	}
}

func (c *fakeChannel) Subscribe(event string, h transport.Handler) transport.Unsubscribe {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handlers[event] == nil {
		c.handlers[event] = make(map[int]transport.Handler)
	}
	id := c.next
	c.next++
	c.handlers[event][id] = h
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers[event], id)
	}
}

func (c *fakeChannel) Emit(ctx context.Context, event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return transport.ErrClosed
	}
	err := c.fail[event]
	c.emits = append(c.emits, emission{event: event, payload: payload, err: err})
	return err
}

func (c *fakeChannel) State() status.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return status.Closed
	}
	return status.Connected
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeChannel) setFail(event string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.fail, event)
		return
	}
	c.fail[event] = err
}

// fire delivers an inbound event the way the transport reader does.
func (c *fakeChannel) fire(t *testing.T, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	c.mu.Lock()
	var hs []transport.Handler
	for _, h := range c.handlers[event] {
		hs = append(hs, h)
	}
	c.mu.Unlock()
	for _, h := range hs {
		h(data)
	}
}

func (c *fakeChannel) handlerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, hs := range c.handlers {
		n += len(hs)
	}
	return n
}

// sent returns the successful emissions of event.
func (c *fakeChannel) sent(event string) []emission {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []emission
	for _, e := range c.emits {
		if e.event == event && e.err == nil {
			out = append(out, e)
		}
	}
	return out
}

func (c *fakeChannel) emitCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.emits)
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeHistory struct {
	msgs []chat.Message
	err  error
}

func (h fakeHistory) Load(ctx context.Context, selfID, otherID, token string) ([]chat.Message, error) {
	if h.err != nil {
		return nil, h.err
	}
	return h.msgs, nil
}

// gatedHistory holds its result until release is closed, ignoring
// cancellation the way a slow server would.
type gatedHistory struct {
	msgs    []chat.Message
	started chan struct{}
	release chan struct{}
	// ctxErr receives the request context's error when Load returns.
	ctxErr chan error
}

func newGatedHistory(msgs ...chat.Message) *gatedHistory {
	return &gatedHistory{
		msgs:    msgs,
		started: make(chan struct{}),
		release: make(chan struct{}),
		ctxErr:  make(chan error, 1),
	}
}

func (h *gatedHistory) Load(ctx context.Context, selfID, otherID, token string) ([]chat.Message, error) {
	close(h.started)
	<-h.release
	h.ctxErr <- ctx.Err()
	return h.msgs, nil
}

type fakeJournal struct {
	mu        sync.Mutex
	sent      []string
	confirmed map[string]string
	failed    []string
	retried   []string
	discarded []string
	touched   []string
	recorded  []string
}

func newFakeJournal() *fakeJournal {
	return &fakeJournal{confirmed: make(map[string]string)}
}

func (j *fakeJournal) JournalSend(id, peerID, body string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.sent = append(j.sent, id)
	return nil
}

func (j *fakeJournal) MarkOutboxConfirmed(id, serverID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.confirmed[id] = serverID
	return nil
}

func (j *fakeJournal) MarkOutboxFailed(id, errMsg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.failed = append(j.failed, id)
	return nil
}

func (j *fakeJournal) MarkOutboxRetried(id string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.retried = append(j.retried, id)
	return nil
}

func (j *fakeJournal) MarkOutboxDiscarded(id string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.discarded = append(j.discarded, id)
	return nil
}

func (j *fakeJournal) TouchConversation(peerID string, t time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.touched = append(j.touched, peerID)
	return nil
}

func (j *fakeJournal) RecordMessage(peerID, preview string, t time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.recorded = append(j.recorded, preview)
	return nil
}

type fakeClipboard struct {
	mu   sync.Mutex
	text string
	err  error
}

func (c *fakeClipboard) WriteAll(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.text = text
	return nil
}

type harness struct {
	v       *View
	ch      *fakeChannel
	journal *fakeJournal
	clip    *fakeClipboard
	notices <-chan bus.Event
}

func testDeps(history HistoryLoader, connect Connector) Deps {
	return Deps{
		Session: session.Session{UserID: me, Token: "tok"},
		Connect: connect,
		History: history,
		Bus:     bus.New(),
		Settings: Settings{
			SendAckTimeout: time.Hour,
			TypingDebounce: 20 * time.Millisecond,
			PeerTypingTTL:  time.Hour,
			EmitTimeout:    time.Second,
		},
	}
}

// mount returns a mounted view whose history has finished loading.
func mount(t *testing.T, history HistoryLoader, tweak func(*Deps)) *harness {
	t.Helper()
	h := mountLoading(t, history, tweak)
	eventually(t, func() bool { return h.snapshot(t).History != HistoryLoading })
	return h
}

// mountLoading returns a mounted view without waiting for its history.
func mountLoading(t *testing.T, history HistoryLoader, tweak func(*Deps)) *harness {
	t.Helper()
	h := &harness{ch: newFakeChannel(), journal: newFakeJournal(), clip: &fakeClipboard{}}
	deps := testDeps(history, func(ctx context.Context, p, token string) (Channel, error) {
		return h.ch, nil
	})
	deps.Journal = h.journal
	deps.Clipboard = h.clip
	if tweak != nil {
		tweak(&deps)
	}
	notices, unsub := deps.Bus.Subscribe("notice.", 64)
	t.Cleanup(unsub)
	h.notices = notices

	v, err := NewView(deps, peer)
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Mount(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = v.Unmount() })
	h.v = v
	return h
}

func (h *harness) snapshot(t *testing.T) Snapshot {
	t.Helper()
	s, err := h.v.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func (h *harness) waitNotice(t *testing.T, kind, substr string) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-h.notices:
			if !ok {
				t.Fatalf("notice channel closed waiting for %s %q", kind, substr)
			}
			n, _ := ev.Payload.(bus.Notice)
			if ev.Kind == kind && strings.Contains(n.Text, substr) {
				return
			}
		case <-timeout:
			t.Fatalf("no %s notice containing %q", kind, substr)
		}
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func received(id, sender, body string, at time.Time) chat.ReceiveMessagePayload {
	receiver := peer
	if sender == peer {
		receiver = me
	}
	return chat.ReceiveMessagePayload{
		MessageID: id, SenderID: sender, ReceiverID: receiver,
		Message: body, CreatedAt: at, MessageType: chat.TypeText,
	}
}

func confirmed(id, sender, body string, at time.Time) chat.Message {
	p := received(id, sender, body, at)
	return chat.Message{
		ID: p.MessageID, SenderID: p.SenderID, ReceiverID: p.ReceiverID,
		Content: p.Message, MessageType: p.MessageType, CreatedAt: at, Status: chat.Confirmed,
	}
}

func ids(msgs []chat.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

var errBoom = errors.New("boom")
