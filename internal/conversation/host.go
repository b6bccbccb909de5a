package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var ErrNoConversation = errors.New("no conversation open")

// Host keeps at most one mounted view. Opening a conversation unmounts the
// previous one first.
type Host struct {
	deps Deps
	base context.Context

	mu     sync.Mutex
	active *View
	menu   *Menu
}

// NewHost creates a host whose views live until base is cancelled or Close is called.
func NewHost(base context.Context, deps Deps) *Host {
	deps.defaults()
	return &Host{deps: deps, base: base}
}

// Open switches to the conversation with peer. Opening the active peer
// again returns the mounted view.
func (h *Host) Open(ctx context.Context, peer string) (*View, error) {
	peer = strings.TrimSpace(peer)
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.active != nil && h.active.Peer() == peer {
		return h.active, nil
	}
	v, err := NewView(h.deps, peer)
	if err != nil {
		return nil, err
	}
	if h.active != nil {
		if err := h.active.Unmount(); err != nil {
			h.deps.Logger.Warn("unmount failed", zap.String("peer", h.active.Peer()), zap.Error(err))
		}
		h.active, h.menu = nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := v.Mount(h.base); err != nil {
		return nil, err
	}
	if err := h.deps.Journal.TouchConversation(v.Peer(), h.deps.Now()); err != nil {
		h.deps.Logger.Warn("journal write failed", zap.String("op", "touch conversation"), zap.Error(err))
	}
	h.active, h.menu = v, NewMenu(v)
	return v, nil
}

// Active returns the mounted view.
func (h *Host) Active() (*View, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active, h.active != nil
}

// Menu returns the context menu of the mounted view.
func (h *Host) Menu() (*Menu, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.menu, h.menu != nil
}

// View returns the mounted view if it is the conversation with peer.
func (h *Host) View(peer string) (*View, error) {
	peer = strings.TrimSpace(peer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.active == nil || h.active.Peer() != peer {
		return nil, ErrNoConversation
	}
	return h.active, nil
}

// Close unmounts the active view.
func (h *Host) Close() error {
	h.mu.Lock()
	v := h.active
	h.active, h.menu = nil, nil
	h.mu.Unlock()
	if v == nil {
		return nil
	}
	return v.Unmount()
}
