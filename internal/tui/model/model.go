// Package model holds the TUI's view of the active conversation, built from
// bus events so the widgets never query the conversation loop directly.
package model

import (
	"sync"

	"github.com/gigboard/gigchat/internal/bus"
	"github.com/gigboard/gigchat/internal/chat"
	"github.com/gigboard/gigchat/internal/conversation"
	"github.com/gigboard/gigchat/internal/status"
	"github.com/gigboard/gigchat/internal/tui/ui"
)

// State is a copy of the model for rendering.
type State struct {
	Peer       string
	Messages   []chat.Message // newest first
	Conn       status.State
	Typing     bool
	Loading    bool // history not applied yet
}

const (
	seenTimeline uint8 = 1 << iota
	seenConn
	seenTyping
)

// Model caches the active conversation and signals UI refreshes.
type Model struct {
	mu    sync.RWMutex
	state State
	seen  uint8

	Flash *ui.FlashModel
}

// New creates an empty model with no active conversation.
func New() *Model {
	return &Model{
		state: State{Conn: status.Idle},
		Flash: ui.NewFlashModel(),
	}
}

// Begin switches the model to peer before its view is mounted, so events
// published while it mounts are not lost.
func (m *Model) Begin(peer string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = State{Peer: peer, Conn: status.Idle, Loading: true}
	m.seen = 0
}

// Seed fills the fields no event has reported since Begin from snap. Events
// always carry the latest value, so they win over the snapshot.
func (m *Model) Seed(snap conversation.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if snap.Peer != m.state.Peer {
		return
	}
	if m.seen&seenTimeline == 0 {
		m.state.Messages = snap.Messages
		m.state.Loading = snap.History == conversation.HistoryLoading
	}
	if m.seen&seenConn == 0 {
		m.state.Conn = snap.Conn
	}
	if m.seen&seenTyping == 0 {
		m.state.Typing = snap.PeerTyping
	}
}

// Clear drops the active conversation.
func (m *Model) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = State{Conn: status.Idle}
	m.seen = 0
}

// State returns a copy of the current state.
func (m *Model) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.state
	s.Messages = append([]chat.Message(nil), m.state.Messages...)
	return s
}

// Apply folds one bus event into the model and reports whether the screen
// needs a redraw. Events of other conversations only surface as notices.
func (m *Model) Apply(ev bus.Event) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch p := ev.Payload.(type) {
	case bus.Notice:
		if p.Peer != "" && p.Peer != m.state.Peer {
			return false
		}
		switch ev.Kind {
		case bus.KindNoticeError:
			m.Flash.Error(p.Text)
		case bus.KindNoticeWarn:
			m.Flash.Warn(p.Text)
		default:
			m.Flash.Info(p.Text)
		}
		return true
	case conversation.TimelineChanged:
		if p.Peer != m.state.Peer {
			return false
		}
		m.state.Messages = p.Messages
		m.state.Loading = false
		m.seen |= seenTimeline
		return true
	case conversation.PeerTyping:
		if p.Peer != m.state.Peer {
			return false
		}
		m.state.Typing = p.Typing
		m.seen |= seenTyping
		return true
	case status.StatusChange:
		if p.Peer != m.state.Peer {
			return false
		}
		m.state.Conn = p.To
		m.seen |= seenConn
		return true
	}
	return false
}
