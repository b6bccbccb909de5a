package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/gigboard/gigchat/internal/status"
	"github.com/gigboard/gigchat/internal/tui/model"
	"github.com/gigboard/gigchat/internal/tui/ui"
)

// StatusBar shows the active conversation, its connection and whether the
// peer is typing.
type StatusBar struct {
	*tview.TextView
	theme   *ui.Theme
	profile string
}

// NewStatusBar creates a new status bar.
func NewStatusBar(theme *ui.Theme, profile string) *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv, theme: theme, profile: profile}
}

// Update renders st.
func (sb *StatusBar) Update(st model.State) {
	sb.Clear()
	_, _ = fmt.Fprint(sb, StatusLine(sb.theme, sb.profile, st, time.Now()))
}

// StatusLine formats the status bar markup.
func StatusLine(theme *ui.Theme, profile string, st model.State, now time.Time) string {
	peer := "no conversation"
	if st.Peer != "" {
		peer = tview.Escape(st.Peer)
	}
	conn := st.Conn
	if conn == "" {
		conn = status.Idle
	}
	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s | [%s]● %s[-]", tview.Escape(profile), peer, ui.ColorName(theme.ConnColor(conn)), conn)
	if st.Typing {
		line += fmt.Sprintf(" | [%s]typing…[-]", ui.ColorName(theme.TypingColor))
	}
	return line + " | " + now.Format("15:04")
}
