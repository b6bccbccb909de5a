package views

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/gigboard/gigchat/internal/chat"
	"github.com/gigboard/gigchat/internal/conversation"
	"github.com/gigboard/gigchat/internal/timeline"
	"github.com/gigboard/gigchat/internal/tui/model"
	"github.com/gigboard/gigchat/internal/tui/ui"
)

// Row is one line of the rendered timeline: a day header or a message.
type Row struct {
	Header  string
	Message chat.Message
	Own     bool
}

// IsHeader reports whether the row is a day header.
func (r Row) IsHeader() bool { return r.Header != "" }

// Marker is the delivery indicator of an own message.
func (r Row) Marker() string {
	if !r.Own {
		return ""
	}
	switch r.Message.Status {
	case chat.Pending:
		return "…"
	case chat.Failed:
		return "✗ not sent"
	default:
		return "✓"
	}
}

// TimelineRows lays out newest-first messages under their day headers.
func TimelineRows(msgs []chat.Message, self string, now time.Time, loc *time.Location) []Row {
	var rows []Row
	for _, b := range timeline.GroupByDay(msgs, now, loc) {
		rows = append(rows, Row{Header: b.Label})
		for _, m := range b.Messages {
			rows = append(rows, Row{Message: m, Own: m.IsOwn(self)})
		}
	}
	return rows
}

// Timeline renders the active conversation, newest message first.
type Timeline struct {
	*tview.Table
	theme *ui.Theme
	self  string
	rows  []Row
	now   func() time.Time
}

// NewTimeline creates the timeline table for the user self.
func NewTimeline(theme *ui.Theme, self string) *Timeline {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitleColor(theme.TitleColor)

	return &Timeline{
		Table: table,
		theme: theme,
		self:  self,
		now:   time.Now,
	}
}

// Name implements Component.
func (t *Timeline) Name() string { return "Chat" }

// Update re-renders the timeline and keeps the selected message selected.
func (t *Timeline) Update(st model.State) {
	selected := t.SelectedID()
	t.rows = TimelineRows(st.Messages, t.self, t.now(), time.Local)

	t.Clear()
	t.SetTitle(fmt.Sprintf(" %s (%d) ", tview.Escape(st.Peer), len(st.Messages)))

	if len(t.rows) == 0 {
		text := " No messages yet"
		if st.Loading {
			text = " Loading messages…"
		}
		t.SetCell(0, 0, tview.NewTableCell(text).SetSelectable(false).SetTextColor(t.theme.PendingColor))
		return
	}

	sel := -1
	for i, r := range t.rows {
		if r.IsHeader() {
			t.SetCell(i, 0, tview.NewTableCell(" ── "+r.Header+" ──").
				SetSelectable(false).
				SetAttributes(tcell.AttrBold).
				SetTextColor(t.theme.DayHeaderColor))
			t.SetCell(i, 1, tview.NewTableCell("").SetSelectable(false))
			t.SetCell(i, 2, tview.NewTableCell("").SetSelectable(false))
			continue
		}
		if r.Message.ID == selected {
			sel = i
		}
		t.setMessageRow(i, r)
	}
	if sel < 0 {
		sel = 1
	}
	t.Select(sel, 0)
}

func (t *Timeline) setMessageRow(i int, r Row) {
	m := r.Message
	color := t.theme.MessageColor(m, r.Own)
	align := tview.AlignLeft
	if r.Own {
		align = tview.AlignRight
	}
	t.SetCell(i, 0, tview.NewTableCell(" "+m.CreatedAt.Local().Format("15:04")).SetTextColor(t.theme.FgColor))
	t.SetCell(i, 1, tview.NewTableCell(tview.Escape(sanitizeForTerminal(m.Content))).
		SetExpansion(1).
		SetAlign(align).
		SetTextColor(color))
	t.SetCell(i, 2, tview.NewTableCell(r.Marker()+" ").SetAlign(tview.AlignRight).SetTextColor(color))
}

// SelectedID returns the id of the selected message, or empty.
func (t *Timeline) SelectedID() string {
	row, _ := t.GetSelection()
	if row < 0 || row >= len(t.rows) || t.rows[row].IsHeader() {
		return ""
	}
	return t.rows[row].Message.ID
}

// SelectedPosition is the screen position of the selected row, used to
// anchor the message menu.
func (t *Timeline) SelectedPosition() conversation.Position {
	x, y, _, _ := t.GetInnerRect()
	row, _ := t.GetSelection()
	off, _ := t.GetOffset()
	return conversation.Position{X: x + 2, Y: y + row - off + 1}
}

// SelectAt selects the message row under the screen position p and
// reports whether there is one.
func (t *Timeline) SelectAt(p conversation.Position) bool {
	row, _ := t.CellAt(p.X, p.Y)
	if row < 0 || row >= len(t.rows) || t.rows[row].IsHeader() {
		return false
	}
	t.Select(row, 0)
	return true
}
