package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/gigboard/gigchat/internal/bus"
	"github.com/gigboard/gigchat/internal/chat"
)

// ErrNotOwnMessage is returned when deleting a message the user did not send.
var ErrNotOwnMessage = errors.New("only your own messages can be deleted")

// Delete removes one of the user's messages. The entry disappears at once;
// for confirmed messages a delete-message event follows and a failed emit
// puts the entry back where it was. Deleting an absent id does nothing.
func (v *View) Delete(ctx context.Context, id string) error {
	var delErr error
	if err := v.call(ctx, func() { delErr = v.deleteLocal(id) }); err != nil {
		return err
	}
	return delErr
}

func (v *View) deleteLocal(id string) error {
	m, ok := v.store.Get(id)
	if !ok {
		return nil
	}
	if !m.IsOwn(v.self) {
		v.notice(bus.KindNoticeWarn, "%s", "You can only delete your own messages")
		return ErrNotOwnMessage
	}

	prev := m.Status
	removed, idx, _ := v.store.Remove(id)
	v.stopAckTimer(id)
	v.publishTimeline()

	if prev != chat.Confirmed {
		// Never reached the server under this id; the echo, if any, is
		// swallowed by the timeline and deleted then.
		v.journalErr("discard send", v.deps.Journal.MarkOutboxDiscarded(id))
		v.notice(bus.KindNoticeInfo, "Message deleted")
		return nil
	}

	if err := v.emit(chat.EventDeleteMessage, chat.DeleteMessagePayload{MessageID: id}); err != nil {
		v.log.Warn("delete failed", zap.String("id", id), zap.Error(err))
		if rerr := v.store.Restore(removed, idx, prev); rerr != nil {
			v.log.Error("rollback failed", zap.String("id", id), zap.Error(rerr))
		}
		v.publishTimeline()
		v.notice(bus.KindNoticeError, "Could not delete message: %v", err)
		return fmt.Errorf("delete %s: %w", id, err)
	}
	v.notice(bus.KindNoticeInfo, "Message deleted")
	return nil
}

// deleteOrphan removes the server copy of a message deleted before its echo arrived.
func (v *View) deleteOrphan(serverID string) {
	if err := v.emit(chat.EventDeleteMessage, chat.DeleteMessagePayload{MessageID: serverID}); err != nil {
		v.log.Warn("orphan delete failed", zap.String("id", serverID), zap.Error(err))
		return
	}
	v.log.Info("deleted orphaned echo", zap.String("id", serverID))
}

func (v *View) onRemoteDelete(data json.RawMessage) {
	var p chat.DeleteMessagePayload
	if err := json.Unmarshal(data, &p); err != nil || p.MessageID == "" {
		v.log.Warn("dropping malformed delete", zap.ByteString("data", data))
		return
	}
	if _, _, ok := v.store.Remove(p.MessageID); !ok {
		// History may still be in flight and carry the id.
		v.store.Forget(p.MessageID)
		return
	}
	v.stopAckTimer(p.MessageID)
	v.publishTimeline()
}
