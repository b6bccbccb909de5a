package views

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/gigboard/gigchat/internal/conversation"
	"github.com/gigboard/gigchat/internal/tui/ui"
)

var actionLabels = map[conversation.Action]string{
	conversation.ActionCopy:    "Copy text",
	conversation.ActionDelete:  "Delete",
	conversation.ActionRetry:   "Retry",
	conversation.ActionDiscard: "Discard",
}

// MessageMenu is the floating list of actions for one message.
type MessageMenu struct {
	*tview.List
	onSelect func(conversation.Action)
	onClose  func()
}

// NewMessageMenu creates an empty message menu.
func NewMessageMenu(theme *ui.Theme) *MessageMenu {
	list := tview.NewList().
		ShowSecondaryText(false).
		SetHighlightFullLine(true).
		SetSelectedTextColor(theme.TableCursorFg).
		SetSelectedBackgroundColor(theme.TableCursorBg)
	list.SetBorder(true)
	list.SetBorderColor(theme.BorderFocusColor)
	list.SetBackgroundColor(theme.BgColor)
	list.SetMainTextColor(theme.PeerColor)

	mm := &MessageMenu{List: list}
	list.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() == tcell.KeyEscape && mm.onClose != nil {
			mm.onClose()
			return nil
		}
		return ev
	})
	return mm
}

// SetOnSelect sets the callback for a chosen action.
func (mm *MessageMenu) SetOnSelect(fn func(conversation.Action)) {
	mm.onSelect = fn
}

// SetOnClose sets the callback for Esc.
func (mm *MessageMenu) SetOnClose(fn func()) {
	mm.onClose = fn
}

// Show fills the menu with actions.
func (mm *MessageMenu) Show(actions []conversation.Action) {
	mm.Clear()
	for _, a := range actions {
		mm.AddItem(actionLabels[a], "", 0, func() {
			if mm.onSelect != nil {
				mm.onSelect(a)
			}
		})
	}
	mm.SetCurrentItem(0)
}
