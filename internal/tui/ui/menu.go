package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// menuRows is how many hints stack in one column of the header.
const menuRows = 5

// Menu lays out key hints in columns of menuRows.
type Menu struct {
	*tview.TextView
	theme *Theme
}

func NewMenu(theme *Theme) *Menu {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(1, 0, 1, 0)
	return &Menu{TextView: tv, theme: theme}
}

// Update replaces the shown hints.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()
	_, _ = fmt.Fprint(m, m.layout(hints))
}

func (m *Menu) layout(hints []MenuHint) string {
	if len(hints) == 0 {
		return ""
	}
	keyColor := ColorName(m.theme.MenuKeyColor)
	cols := (len(hints) + menuRows - 1) / menuRows
	widths := make([]int, cols)
	for i, h := range hints {
		c := i / menuRows
		widths[c] = max(widths[c], len(h.Key)+len(h.Description)+3)
	}

	lines := make([]strings.Builder, min(len(hints), menuRows))
	for i, h := range hints {
		c := i / menuRows
		cell := fmt.Sprintf("<%s> %s", h.Key, h.Description)
		pad := widths[c] - len(cell) + 2
		fmt.Fprintf(&lines[i%menuRows], "[%s::b]<%s>[-:-:-] %s%s",
			keyColor, tview.Escape(h.Key), h.Description, strings.Repeat(" ", pad))
	}
	out := make([]string, len(lines))
	for i := range lines {
		out[i] = strings.TrimRight(lines[i].String(), " ")
	}
	return strings.Join(out, "\n")
}
