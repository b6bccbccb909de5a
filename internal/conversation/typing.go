package conversation

import (
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gigboard/gigchat/internal/bus"
	"github.com/gigboard/gigchat/internal/chat"
)

// ContentChanged reports composer edits. Once the text has been stable for
// the typing debounce, a typing event is emitted. Errors are ignored.
func (v *View) ContentChanged(text string) {
	v.post(func() { v.onContentChanged(text) })
}

func (v *View) onContentChanged(text string) {
	if v.typingTimer != nil {
		v.typingTimer.Stop()
		v.typingTimer = nil
	}
	v.typingGen++
	if strings.TrimSpace(text) == "" {
		return
	}
	gen := v.typingGen
	v.typingTimer = time.AfterFunc(v.deps.Settings.TypingDebounce, func() {
		v.post(func() { v.emitTyping(gen) })
	})
}

func (v *View) emitTyping(gen int) {
	if gen != v.typingGen {
		return
	}
	v.typingTimer = nil
	if err := v.emit(chat.EventTyping, chat.TypingPayload{ReceiverID: v.peer}); err != nil {
		v.log.Debug("typing not sent", zap.Error(err))
	}
}

func (v *View) onPeerTyping(data json.RawMessage) {
	var p chat.TypingPayload
	if err := json.Unmarshal(data, &p); err != nil || p.SenderID != v.peer {
		return
	}
	v.setPeerTyping(true)
}

// setPeerTyping shows or clears the peer's typing indicator. A shown
// indicator clears itself after the peer typing TTL.
func (v *View) setPeerTyping(typing bool) {
	if v.peerTypingTimer != nil {
		v.peerTypingTimer.Stop()
		v.peerTypingTimer = nil
	}
	v.peerTypingGen++
	if typing {
		gen := v.peerTypingGen
		v.peerTypingTimer = time.AfterFunc(v.deps.Settings.PeerTypingTTL, func() {
			v.post(func() {
				if gen == v.peerTypingGen {
					v.setPeerTyping(false)
				}
			})
		})
	}
	if v.peerTyping == typing {
		return
	}
	v.peerTyping = typing
	v.deps.Bus.Emit(bus.KindPeerTyping, PeerTyping{Peer: v.peer, Typing: typing})
}
