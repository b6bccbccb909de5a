package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gigboard/gigchat/internal/bus"
	"github.com/gigboard/gigchat/internal/chat"
	"github.com/gigboard/gigchat/internal/timeline"
)

// Send validates content and appends it to the timeline as pending before
// emitting it. Invalid content is rejected without touching the connection.
// The returned id is the provisional client id; a non-nil error alongside a
// non-empty id means the message is in the timeline but marked failed.
func (v *View) Send(ctx context.Context, content string) (string, error) {
	if err := chat.ValidateContent(content); err != nil {
		v.notice(bus.KindNoticeWarn, "%s", validationText(err, content))
		return "", err
	}
	var (
		id      string
		sendErr error
	)
	if err := v.call(ctx, func() { id, sendErr = v.send(content) }); err != nil {
		return "", err
	}
	return id, sendErr
}

// Retry re-emits a failed message with a fresh client timestamp.
func (v *View) Retry(ctx context.Context, id string) error {
	var retryErr error
	if err := v.call(ctx, func() { retryErr = v.retry(id) }); err != nil {
		return err
	}
	return retryErr
}

// Discard drops a failed message from the timeline.
func (v *View) Discard(ctx context.Context, id string) error {
	var discardErr error
	if err := v.call(ctx, func() { discardErr = v.discard(id) }); err != nil {
		return err
	}
	return discardErr
}

func (v *View) send(content string) (string, error) {
	id := newClientID()
	m := chat.Message{
		ID:          id,
		SenderID:    v.self,
		ReceiverID:  v.peer,
		Content:     chat.NormalizeContent(content),
		MessageType: chat.TypeText,
		CreatedAt:   v.deps.Now(),
	}
	if err := v.store.InsertPending(m); err != nil {
		return "", err
	}
	v.journalErr("journal send", v.deps.Journal.JournalSend(id, v.peer, m.Content))
	v.publishTimeline()

	return id, v.dispatch(m)
}

func (v *View) retry(id string) error {
	if _, ok := v.store.Get(id); !ok {
		return fmt.Errorf("retry %s: %w", id, timeline.ErrNotFound)
	}
	if err := v.store.SetStatus(id, chat.Pending, v.deps.Now()); err != nil {
		return err
	}
	m, _ := v.store.Get(id)
	v.journalErr("retry send", v.deps.Journal.MarkOutboxRetried(id))
	v.publishTimeline()
	return v.dispatch(m)
}

func (v *View) discard(id string) error {
	m, ok := v.store.Get(id)
	if !ok {
		return fmt.Errorf("discard %s: %w", id, timeline.ErrNotFound)
	}
	if m.Status != chat.Failed {
		return &chat.TransitionError{ID: id, From: m.Status, To: chat.Deleted}
	}
	v.store.Remove(id)
	v.journalErr("discard send", v.deps.Journal.MarkOutboxDiscarded(id))
	v.publishTimeline()
	return nil
}

// dispatch emits a pending message and arms its acknowledgement timer.
// An emit error fails the message at once.
func (v *View) dispatch(m chat.Message) error {
	err := v.emit(chat.EventSendMessage, chat.SendMessagePayload{ReceiverID: v.peer, Message: m.Content})
	if err != nil {
		v.log.Warn("send failed", zap.String("id", m.ID), zap.Error(err))
		v.fail(m.ID, err.Error())
		return fmt.Errorf("send: %w", err)
	}
	v.stopAckTimer(m.ID)
	v.ackTimers[m.ID] = time.AfterFunc(v.deps.Settings.SendAckTimeout, func() {
		v.post(func() { v.onAckTimeout(m.ID) })
	})
	return nil
}

func (v *View) onAckTimeout(id string) {
	delete(v.ackTimers, id)
	m, ok := v.store.Get(id)
	if !ok || m.Status != chat.Pending {
		return
	}
	v.log.Warn("send not acknowledged", zap.String("id", id), zap.Duration("timeout", v.deps.Settings.SendAckTimeout))
	v.fail(id, "not acknowledged")
}

func (v *View) fail(id, reason string) {
	if err := v.store.SetStatus(id, chat.Failed, time.Time{}); err != nil {
		v.log.Debug("cannot fail message", zap.String("id", id), zap.Error(err))
		return
	}
	v.journalErr("fail send", v.deps.Journal.MarkOutboxFailed(id, reason))
	v.notice(bus.KindNoticeWarn, "Message not delivered (%s). Retry or discard it.", reason)
	v.publishTimeline()
}

func (v *View) stopAckTimer(id string) {
	if t, ok := v.ackTimers[id]; ok {
		t.Stop()
		delete(v.ackTimers, id)
	}
}

func newClientID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

func validationText(err error, content string) string {
	switch {
	case errors.Is(err, chat.ErrMessageTooLong):
		return fmt.Sprintf("Message is too long (%d/%d characters)", utf8.RuneCountInString(chat.NormalizeContent(content)), chat.MaxContentLength)
	case errors.Is(err, chat.ErrEmptyMessage):
		return "Message is empty"
	default:
		return err.Error()
	}
}
