package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gigboard/gigchat/internal/bus"
	"github.com/gigboard/gigchat/internal/chat"
)

// Menu geometry in terminal cells.
const (
	MenuWidth  = 20
	MenuHeight = 6
)

// Action is one entry of the message context menu.
type Action string

const (
	ActionCopy    Action = "copy"
	ActionDelete  Action = "delete"
	ActionRetry   Action = "retry"
	ActionDiscard Action = "discard"
)

var ErrMenuClosed = errors.New("no message menu is open")

// Position is a screen cell.
type Position struct {
	X, Y int
}

// Rect is a screen rectangle.
type Rect struct {
	X, Y, W, H int
}

// Contains reports whether p lies inside r.
func (r Rect) Contains(p Position) bool {
	return p.X >= r.X && p.X < r.X+r.W && p.Y >= r.Y && p.Y < r.Y+r.H
}

// Menu is the per-message context menu of a view. At most one is open.
type Menu struct {
	view *View
	clip Clipboard

	mu        sync.Mutex
	open      bool
	messageID string
	rect      Rect
	actions   []Action
}

// NewMenu creates a closed menu bound to v.
func NewMenu(v *View) *Menu {
	return &Menu{view: v, clip: v.deps.Clipboard}
}

// Open shows the menu for messageID anchored at at, replacing any menu
// already open. It returns the actions that apply to the message.
func (m *Menu) Open(ctx context.Context, messageID string, at Position) ([]Action, error) {
	msg, ok, err := m.view.Message(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !ok {
		m.Close()
		return nil, fmt.Errorf("open menu: %s not in timeline", messageID)
	}
	actions := actionsFor(msg, m.view.self)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = true
	m.messageID = messageID
	m.rect = Rect{X: at.X, Y: at.Y, W: MenuWidth, H: MenuHeight}
	m.actions = actions
	return actions, nil
}

// Close hides the menu.
func (m *Menu) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	m.messageID = ""
	m.rect = Rect{}
	m.actions = nil
}

// Current returns the message the menu is open for.
func (m *Menu) Current() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messageID, m.open
}

// Contains reports whether p falls inside the open menu.
func (m *Menu) Contains(p Position) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open && m.rect.Contains(p)
}

// Interact handles a click at p. A click outside the open menu closes it
// and reports true.
func (m *Menu) Interact(p Position) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open || m.rect.Contains(p) {
		return false
	}
	m.open = false
	m.messageID = ""
	m.rect = Rect{}
	m.actions = nil
	return true
}

// Copy puts the text of messageID on the clipboard and closes the menu.
func (m *Menu) Copy(ctx context.Context, messageID string) error {
	defer m.Close()
	msg, ok, err := m.view.Message(ctx, messageID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("copy: %s not in timeline", messageID)
	}
	if err := m.clip.WriteAll(msg.Content); err != nil {
		m.view.notice(bus.KindNoticeError, "Copy failed: %v", err)
		return fmt.Errorf("copy: %w", err)
	}
	m.view.notice(bus.KindNoticeInfo, "Copied to clipboard")
	return nil
}

// Delete routes to the view's deletion and closes the menu.
func (m *Menu) Delete(ctx context.Context, messageID string) error {
	defer m.Close()
	return m.view.Delete(ctx, messageID)
}

// Retry re-sends a failed message and closes the menu.
func (m *Menu) Retry(ctx context.Context, messageID string) error {
	defer m.Close()
	return m.view.Retry(ctx, messageID)
}

// Discard drops a failed message and closes the menu.
func (m *Menu) Discard(ctx context.Context, messageID string) error {
	defer m.Close()
	return m.view.Discard(ctx, messageID)
}

// Run performs action on the message the menu is open for.
func (m *Menu) Run(ctx context.Context, action Action) error {
	id, open := m.Current()
	if !open {
		return ErrMenuClosed
	}
	switch action {
	case ActionCopy:
		return m.Copy(ctx, id)
	case ActionDelete:
		return m.Delete(ctx, id)
	case ActionRetry:
		return m.Retry(ctx, id)
	case ActionDiscard:
		return m.Discard(ctx, id)
	default:
		m.Close()
		return fmt.Errorf("unknown action %q", action)
	}
}

func actionsFor(msg chat.Message, self string) []Action {
	actions := []Action{ActionCopy}
	if !msg.IsOwn(self) {
		return actions
	}
	if msg.Status == chat.Failed {
		return append(actions, ActionRetry, ActionDiscard)
	}
	return append(actions, ActionDelete)
}
