package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gigboard/gigchat/internal/bus"
	"github.com/gigboard/gigchat/internal/chat"
	"github.com/gigboard/gigchat/internal/transport"
)

func TestNewViewRejectsInvalidPeer(t *testing.T) {
	deps := testDeps(fakeHistory{}, func(context.Context, string, string) (Channel, error) { return newFakeChannel(), nil })
	for _, p := range []string{"", "   ", me} {
		if _, err := NewView(deps, p); !errors.Is(err, ErrInvalidPeer) {
			t.Errorf("NewView(%q) err = %v, want ErrInvalidPeer", p, err)
		}
	}
}

func TestMountTwice(t *testing.T) {
	h := mount(t, fakeHistory{}, nil)
	if err := h.v.Mount(context.Background()); !errors.Is(err, ErrAlreadyMounted) {
		t.Fatalf("second Mount err = %v, want ErrAlreadyMounted", err)
	}
	if got := h.ch.handlerCount(); got != 6 {
		t.Errorf("handlers = %d, want 6 after repeated mount", got)
	}
}

func TestMountConnectFailure(t *testing.T) {
	deps := testDeps(fakeHistory{}, func(context.Context, string, string) (Channel, error) {
		return nil, errBoom
	})
	notices, unsub := deps.Bus.Subscribe("notice.", 8)
	defer unsub()
	v, err := NewView(deps, peer)
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Mount(context.Background()); !errors.Is(err, errBoom) {
		t.Fatalf("Mount err = %v, want boom", err)
	}
	select {
	case ev := <-notices:
		if ev.Kind != bus.KindNoticeError {
			t.Errorf("notice kind = %s", ev.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("no notice for failed connect")
	}
	if _, err := v.Snapshot(context.Background()); !errors.Is(err, ErrNotMounted) {
		t.Errorf("Snapshot err = %v, want ErrNotMounted", err)
	}
}

func TestHistoryLoads(t *testing.T) {
	now := time.Now()
	h := mount(t, fakeHistory{msgs: []chat.Message{
		confirmed("m2", peer, "second", now.Add(-time.Minute)),
		confirmed("m1", me, "first", now.Add(-2*time.Minute)),
	}}, nil)

	s := h.snapshot(t)
	if s.History != HistoryLoaded {
		t.Fatalf("history = %s, want loaded", s.History)
	}
	if got := strings.Join(ids(s.Messages), ","); got != "m2,m1" {
		t.Errorf("ids = %s, want m2,m1", got)
	}
}

func TestHistoryFailureNotice(t *testing.T) {
	h := mount(t, fakeHistory{err: errBoom}, nil)
	if s := h.snapshot(t); s.History != HistoryFailed {
		t.Fatalf("history = %s, want failed", s.History)
	}
	h.waitNotice(t, bus.KindNoticeError, "Could not load messages")

	// The conversation stays usable.
	if _, err := h.v.Send(context.Background(), "still here"); err != nil {
		t.Fatalf("Send after history failure: %v", err)
	}
}

func TestSendRejectsInvalidContentBeforeEmit(t *testing.T) {
	h := mount(t, fakeHistory{}, nil)
	ctx := context.Background()

	if _, err := h.v.Send(ctx, strings.Repeat("a", chat.MaxContentLength+1)); !errors.Is(err, chat.ErrMessageTooLong) {
		t.Fatalf("err = %v, want ErrMessageTooLong", err)
	}
	h.waitNotice(t, bus.KindNoticeWarn, "2001/2000")
	if _, err := h.v.Send(ctx, "  \n "); !errors.Is(err, chat.ErrEmptyMessage) {
		t.Fatalf("err = %v, want ErrEmptyMessage", err)
	}
	if n := h.ch.emitCount(); n != 0 {
		t.Fatalf("emits = %d, want none for rejected content", n)
	}
	if n := len(h.snapshot(t).Messages); n != 0 {
		t.Fatalf("timeline has %d entries, want 0", n)
	}

	if _, err := h.v.Send(ctx, strings.Repeat("é", chat.MaxContentLength)); err != nil {
		t.Fatalf("Send at limit: %v", err)
	}
	if _, err := h.v.Send(ctx, strings.Repeat("b", chat.MaxContentLength)+"\n"); err != nil {
		t.Fatalf("Send at limit with trailing newline: %v", err)
	}
	sent := h.ch.sent(chat.EventSendMessage)
	if len(sent) != 2 {
		t.Fatalf("send-message emits = %d, want 2", len(sent))
	}
	if p := sent[1].payload.(chat.SendMessagePayload); p.Message != strings.Repeat("b", chat.MaxContentLength) {
		t.Errorf("sent %d characters, want the trimmed text", len(p.Message))
	}
}

func TestSendThenEchoConfirms(t *testing.T) {
	h := mount(t, fakeHistory{msgs: []chat.Message{
		confirmed("m1", peer, "hi", time.Now().Add(-time.Hour)),
	}}, nil)
	ctx := context.Background()

	id, err := h.v.Send(ctx, " hello ")
	if err != nil {
		t.Fatal(err)
	}
	s := h.snapshot(t)
	if len(s.Messages) != 2 || s.Messages[0].ID != id || s.Messages[0].Status != chat.Pending {
		t.Fatalf("timeline = %+v, want pending %s first", s.Messages, id)
	}
	if s.Messages[0].Content != "hello" {
		t.Errorf("content = %q, want trimmed", s.Messages[0].Content)
	}
	sent := h.ch.sent(chat.EventSendMessage)
	if len(sent) != 1 {
		t.Fatalf("send-message emits = %d", len(sent))
	}
	if p := sent[0].payload.(chat.SendMessagePayload); p.ReceiverID != peer || p.Message != "hello" {
		t.Errorf("payload = %+v", p)
	}

	h.ch.fire(t, chat.EventReceiveMessage, received("srv-1", me, "hello", time.Now()))
	s = h.snapshot(t)
	if len(s.Messages) != 2 {
		t.Fatalf("len = %d, want 2 (%v)", len(s.Messages), ids(s.Messages))
	}
	if got := s.Messages[0]; got.ID != "srv-1" || got.Status != chat.Confirmed {
		t.Errorf("entry = %+v, want confirmed srv-1", got)
	}

	h.journal.mu.Lock()
	defer h.journal.mu.Unlock()
	if h.journal.confirmed[id] != "srv-1" {
		t.Errorf("journal confirmed = %v", h.journal.confirmed)
	}
}

func TestReceiveFromPeer(t *testing.T) {
	h := mount(t, fakeHistory{}, nil)
	now := time.Now()

	h.ch.fire(t, chat.EventReceiveMessage, received("p1", peer, "yo", now))
	h.ch.fire(t, chat.EventReceiveMessage, received("p1", peer, "yo", now))
	h.ch.fire(t, chat.EventReceiveMessage, chat.ReceiveMessagePayload{
		MessageID: "x1", SenderID: "u-other", ReceiverID: me, Message: "wrong room", CreatedAt: now,
	})
	h.ch.fire(t, chat.EventReceiveMessage, map[string]string{"message": "no sender"})

	s := h.snapshot(t)
	if got := strings.Join(ids(s.Messages), ","); got != "p1" {
		t.Errorf("ids = %s, want p1", got)
	}
}

func TestRemoteDelete(t *testing.T) {
	now := time.Now()
	h := mount(t, fakeHistory{msgs: []chat.Message{
		confirmed("m2", peer, "b", now.Add(-time.Minute)),
		confirmed("m1", me, "a", now.Add(-2*time.Minute)),
	}}, nil)

	h.ch.fire(t, chat.EventDeleteMessage, chat.DeleteMessagePayload{MessageID: "m2"})
	h.ch.fire(t, chat.EventDeleteMessage, chat.DeleteMessagePayload{MessageID: "nope"})
	s := h.snapshot(t)
	if got := strings.Join(ids(s.Messages), ","); got != "m1" {
		t.Fatalf("ids = %s, want m1", got)
	}

	// A late copy of a deleted message is not resurrected.
	h.ch.fire(t, chat.EventReceiveMessage, received("m2", peer, "b", now.Add(-time.Minute)))
	if n := len(h.snapshot(t).Messages); n != 1 {
		t.Errorf("len = %d, want 1", n)
	}
}

func TestRemoteDeleteBeforeHistoryArrives(t *testing.T) {
	now := time.Now()
	history := newGatedHistory(
		confirmed("x2", me, "kept", now.Add(-time.Minute)),
		confirmed("x1", peer, "gone", now.Add(-2*time.Minute)),
	)
	h := mountLoading(t, history, nil)
	<-history.started

	h.ch.fire(t, chat.EventDeleteMessage, chat.DeleteMessagePayload{MessageID: "x1"})
	if s := h.snapshot(t); s.History != HistoryLoading || len(s.Messages) != 0 {
		t.Fatalf("before history: state %s, %d messages", s.History, len(s.Messages))
	}

	close(history.release)
	eventually(t, func() bool { return h.snapshot(t).History == HistoryLoaded })
	if got := strings.Join(ids(h.snapshot(t).Messages), ","); got != "x2" {
		t.Errorf("ids = %q, want x2 only", got)
	}
}

func TestDeleteConfirmed(t *testing.T) {
	now := time.Now()
	h := mount(t, fakeHistory{msgs: []chat.Message{
		confirmed("m2", peer, "b", now.Add(-time.Minute)),
		confirmed("m1", me, "a", now.Add(-2*time.Minute)),
	}}, nil)
	ctx := context.Background()

	if err := h.v.Delete(ctx, "m1"); err != nil {
		t.Fatal(err)
	}
	sent := h.ch.sent(chat.EventDeleteMessage)
	if len(sent) != 1 || sent[0].payload.(chat.DeleteMessagePayload).MessageID != "m1" {
		t.Fatalf("delete emits = %+v", sent)
	}
	if got := strings.Join(ids(h.snapshot(t).Messages), ","); got != "m2" {
		t.Errorf("ids = %s, want m2", got)
	}
	h.waitNotice(t, bus.KindNoticeInfo, "Message deleted")

	if err := h.v.Delete(ctx, "m2"); !errors.Is(err, ErrNotOwnMessage) {
		t.Errorf("deleting peer message err = %v, want ErrNotOwnMessage", err)
	}
	if err := h.v.Delete(ctx, "missing"); err != nil {
		t.Errorf("deleting absent id err = %v, want nil", err)
	}
	if n := len(h.ch.sent(chat.EventDeleteMessage)); n != 1 {
		t.Errorf("delete emits = %d, want 1", n)
	}
}

func TestDeleteRollsBackOnEmitFailure(t *testing.T) {
	now := time.Now()
	h := mount(t, fakeHistory{msgs: []chat.Message{
		confirmed("m3", peer, "c", now.Add(-time.Minute)),
		confirmed("m2", me, "b", now.Add(-2*time.Minute)),
		confirmed("m1", peer, "a", now.Add(-3*time.Minute)),
	}}, nil)
	h.ch.setFail(chat.EventDeleteMessage, transport.ErrNotConnected)

	err := h.v.Delete(context.Background(), "m2")
	if !errors.Is(err, transport.ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
	s := h.snapshot(t)
	if got := strings.Join(ids(s.Messages), ","); got != "m3,m2,m1" {
		t.Fatalf("ids = %s, want m2 restored in place", got)
	}
	if s.Messages[1].Status != chat.Confirmed {
		t.Errorf("status = %s, want confirmed", s.Messages[1].Status)
	}
	h.waitNotice(t, bus.KindNoticeError, "Could not delete message")
}

func TestDeletePendingDeletesEchoOnServer(t *testing.T) {
	h := mount(t, fakeHistory{}, nil)
	ctx := context.Background()

	id, err := h.v.Send(ctx, "oops")
	if err != nil {
		t.Fatal(err)
	}
	if err := h.v.Delete(ctx, id); err != nil {
		t.Fatal(err)
	}
	if n := len(h.ch.sent(chat.EventDeleteMessage)); n != 0 {
		t.Fatalf("pending delete emitted %d delete events", n)
	}

	h.ch.fire(t, chat.EventReceiveMessage, received("srv-9", me, "oops", time.Now()))
	if n := len(h.snapshot(t).Messages); n != 0 {
		t.Fatalf("echo of deleted message shown (%d entries)", n)
	}
	sent := h.ch.sent(chat.EventDeleteMessage)
	if len(sent) != 1 || sent[0].payload.(chat.DeleteMessagePayload).MessageID != "srv-9" {
		t.Errorf("delete emits = %+v, want srv-9", sent)
	}
}

func TestDisconnectKeepsComposerUsable(t *testing.T) {
	h := mount(t, fakeHistory{}, nil)
	ctx := context.Background()
	lifecycle, unsub := h.v.deps.Bus.Subscribe(bus.KindConnLifecycle, 4)
	defer unsub()

	h.ch.fire(t, chat.EventDisconnect, chat.LifecyclePayload{Reason: "transport close"})
	h.waitNotice(t, bus.KindNoticeWarn, "Connection lost")
	select {
	case ev := <-lifecycle:
		if l := ev.Payload.(Lifecycle); l.Event != chat.EventDisconnect || l.Reason != "transport close" {
			t.Errorf("lifecycle = %+v", l)
		}
	case <-time.After(time.Second):
		t.Fatal("no lifecycle event")
	}

	h.ch.setFail(chat.EventSendMessage, transport.ErrNotConnected)
	id, err := h.v.Send(ctx, "are you there?")
	if id == "" || !errors.Is(err, transport.ErrNotConnected) {
		t.Fatalf("Send = (%q, %v), want failed entry", id, err)
	}
	if m, _, _ := h.v.Message(ctx, id); m.Status != chat.Failed {
		t.Fatalf("status = %s, want failed", m.Status)
	}
	h.waitNotice(t, bus.KindNoticeWarn, "Message not delivered")

	h.ch.fire(t, chat.EventConnect, struct{}{})
	h.waitNotice(t, bus.KindNoticeInfo, "Reconnected")
	h.ch.setFail(chat.EventSendMessage, nil)
	if err := h.v.Retry(ctx, id); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if m, _, _ := h.v.Message(ctx, id); m.Status != chat.Pending {
		t.Errorf("status after retry = %s, want pending", m.Status)
	}
}

func TestAckTimeoutFailsThenDiscard(t *testing.T) {
	h := mount(t, fakeHistory{}, func(d *Deps) { d.Settings.SendAckTimeout = 20 * time.Millisecond })
	ctx := context.Background()

	id, err := h.v.Send(ctx, "lost")
	if err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool {
		m, _, _ := h.v.Message(ctx, id)
		return m.Status == chat.Failed
	})

	var te *chat.TransitionError
	if err := h.v.Discard(ctx, "missing"); err == nil {
		t.Error("discarding an absent id should fail")
	}
	if err := h.v.Discard(ctx, id); err != nil {
		t.Fatal(err)
	}
	if n := len(h.snapshot(t).Messages); n != 0 {
		t.Fatalf("len = %d after discard", n)
	}

	// Confirmed messages cannot be discarded.
	h.ch.fire(t, chat.EventReceiveMessage, received("srv-2", me, "other", time.Now()))
	if err := h.v.Discard(ctx, "srv-2"); !errors.As(err, &te) {
		t.Errorf("err = %v, want TransitionError", err)
	}

	h.journal.mu.Lock()
	defer h.journal.mu.Unlock()
	if len(h.journal.failed) != 1 || len(h.journal.discarded) != 1 {
		t.Errorf("journal failed=%v discarded=%v", h.journal.failed, h.journal.discarded)
	}
}

func TestEchoAfterAckTimeoutStillConfirms(t *testing.T) {
	h := mount(t, fakeHistory{}, func(d *Deps) { d.Settings.SendAckTimeout = 10 * time.Millisecond })
	ctx := context.Background()

	id, _ := h.v.Send(ctx, "slow")
	eventually(t, func() bool {
		m, _, _ := h.v.Message(ctx, id)
		return m.Status == chat.Failed
	})
	h.ch.fire(t, chat.EventReceiveMessage, received("srv-1", me, "slow", time.Now()))
	s := h.snapshot(t)
	if len(s.Messages) != 1 || s.Messages[0].ID != "srv-1" || s.Messages[0].Status != chat.Confirmed {
		t.Errorf("timeline = %+v", s.Messages)
	}
}

func TestTypingDebounce(t *testing.T) {
	h := mount(t, fakeHistory{}, nil)

	for _, text := range []string{"h", "he", "hel", "hell"} {
		h.v.ContentChanged(text)
	}
	eventually(t, func() bool { return len(h.ch.sent(chat.EventTyping)) == 1 })
	time.Sleep(60 * time.Millisecond)
	sent := h.ch.sent(chat.EventTyping)
	if len(sent) != 1 {
		t.Fatalf("typing emits = %d, want 1", len(sent))
	}
	if p := sent[0].payload.(chat.TypingPayload); p.ReceiverID != peer {
		t.Errorf("payload = %+v", p)
	}

	// Clearing the composer cancels a pending typing event.
	h.v.ContentChanged("x")
	h.v.ContentChanged("")
	time.Sleep(60 * time.Millisecond)
	if n := len(h.ch.sent(chat.EventTyping)); n != 1 {
		t.Errorf("typing emits = %d after clear, want 1", n)
	}
}

func TestPeerTyping(t *testing.T) {
	h := mount(t, fakeHistory{}, func(d *Deps) { d.Settings.PeerTypingTTL = 200 * time.Millisecond })

	h.ch.fire(t, chat.EventTyping, chat.TypingPayload{SenderID: "u-other"})
	if h.snapshot(t).PeerTyping {
		t.Fatal("typing from another user shown")
	}
	h.ch.fire(t, chat.EventTyping, chat.TypingPayload{SenderID: peer})
	if !h.snapshot(t).PeerTyping {
		t.Fatal("peer typing not shown")
	}
	h.ch.fire(t, chat.EventReceiveMessage, received("p1", peer, "done", time.Now()))
	if h.snapshot(t).PeerTyping {
		t.Fatal("typing indicator survived the peer's message")
	}

	h.ch.fire(t, chat.EventTyping, chat.TypingPayload{SenderID: peer})
	eventually(t, func() bool { return !h.snapshot(t).PeerTyping })
}

func TestUnmountDetachesEverything(t *testing.T) {
	h := mount(t, fakeHistory{}, nil)

	if err := h.v.Unmount(); err != nil {
		t.Fatal(err)
	}
	if n := h.ch.handlerCount(); n != 0 {
		t.Fatalf("handlers after unmount = %d, want 0", n)
	}
	if !h.ch.isClosed() {
		t.Fatal("channel not closed")
	}
	h.ch.fire(t, chat.EventReceiveMessage, received("p1", peer, "late", time.Now()))
	if _, err := h.v.Snapshot(context.Background()); !errors.Is(err, ErrNotMounted) {
		t.Errorf("Snapshot err = %v, want ErrNotMounted", err)
	}
	if _, err := h.v.Send(context.Background(), "hi"); !errors.Is(err, ErrNotMounted) {
		t.Errorf("Send err = %v, want ErrNotMounted", err)
	}
	if err := h.v.Unmount(); err != nil {
		t.Errorf("second Unmount: %v", err)
	}
	h.v.ContentChanged("ignored")
}

func TestUnmountDropsHistoryInFlight(t *testing.T) {
	history := newGatedHistory(confirmed("m1", peer, "late", time.Now()))
	h := mountLoading(t, history, nil)
	<-history.started

	timeline, unsub := h.v.deps.Bus.Subscribe("timeline.", 8)
	defer unsub()

	if err := h.v.Unmount(); err != nil {
		t.Fatal(err)
	}
	close(history.release)

	select {
	case err := <-history.ctxErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("history request context err = %v, want canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("history load never returned")
	}
	select {
	case ev := <-timeline:
		t.Fatalf("late history produced %s", ev.Kind)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWith(t *testing.T) {
	ch := newFakeChannel()
	deps := testDeps(fakeHistory{}, func(context.Context, string, string) (Channel, error) { return ch, nil })

	var seen string
	err := With(context.Background(), deps, peer, func(v *View) error {
		seen = v.Peer()
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if seen != peer {
		t.Errorf("peer = %q", seen)
	}
	if !ch.isClosed() || ch.handlerCount() != 0 {
		t.Error("view not unmounted after With")
	}
}
