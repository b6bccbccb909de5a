package views

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/gigboard/gigchat/internal/store"
	"github.com/gigboard/gigchat/internal/tui/ui"
)

// ConversationList shows recently opened conversations of the profile.
type ConversationList struct {
	*tview.Table
	theme   *ui.Theme
	convs   []store.Conversation
	visible []store.Conversation
	filter  string
}

// NewConversationList creates a new conversation list table.
func NewConversationList(theme *ui.Theme) *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitleColor(theme.TitleColor)

	cl := &ConversationList{
		Table: table,
		theme: theme,
	}
	cl.render()
	return cl
}

// Name implements Component.
func (cl *ConversationList) Name() string { return "Conversations" }

// Update replaces the listed conversations.
func (cl *ConversationList) Update(convs []store.Conversation) {
	cl.convs = convs
	cl.render()
}

// SetFilter sets the active filter text and re-renders.
func (cl *ConversationList) SetFilter(filter string) {
	cl.filter = filter
	cl.render()
}

// Filter returns the active filter.
func (cl *ConversationList) Filter() string {
	return cl.filter
}

func (cl *ConversationList) render() {
	cl.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" PEER", 1},
		{" LAST MESSAGE", 2},
		{" ACTIVE", 0},
	}
	for col, h := range headers {
		cl.SetCell(0, col, tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp))
	}

	cl.visible = FilterConversations(cl.convs, cl.filter)
	for i, c := range cl.visible {
		row := i + 1
		cl.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(c.PeerID)).SetExpansion(1).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(c.LastMessagePreview))).SetExpansion(2).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 2, tview.NewTableCell(lastActive(c)+" ").SetAlign(tview.AlignRight).SetTextColor(cl.theme.FgColor))
	}

	if cl.filter != "" {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d/%d) filter: %s ", len(cl.visible), len(cl.convs), tview.Escape(cl.filter)))
	} else {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d) ", len(cl.convs)))
	}
}

// SelectedPeer returns the peer of the selected row, or empty.
func (cl *ConversationList) SelectedPeer() string {
	row, _ := cl.GetSelection()
	if row < 1 || row > len(cl.visible) {
		return ""
	}
	return cl.visible[row-1].PeerID
}

// FilterConversations keeps conversations whose peer or preview contains filter.
func FilterConversations(convs []store.Conversation, filter string) []store.Conversation {
	if filter == "" {
		return convs
	}
	var out []store.Conversation
	for _, c := range convs {
		if containsFold(c.PeerID, filter) || containsFold(c.LastMessagePreview, filter) {
			out = append(out, c)
		}
	}
	return out
}

func lastActive(c store.Conversation) string {
	ms := max(c.LastOpenedAt, c.LastMessageAt)
	if ms == 0 {
		return ""
	}
	return humanize.Time(time.UnixMilli(ms))
}
