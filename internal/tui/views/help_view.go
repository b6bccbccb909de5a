package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/gigboard/gigchat/internal/chat"
	"github.com/gigboard/gigchat/internal/tui/ui"
)

// HelpView displays key binding reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{
		TextView: tv,
		theme:    theme,
	}
	hv.render()
	return hv
}

// Name implements Component.
func (hv *HelpView) Name() string { return "Help" }

func (hv *HelpView) render() {
	kc := ui.ColorName(hv.theme.MenuKeyColor)
	key := func(k string) string { return fmt.Sprintf("[%s]%s[-:-:-]", kc, k) }

	_, _ = fmt.Fprintf(hv, `
  [::b]Global Keys[-:-:-]

  %s       Command mode        %s     Cancel / Go back
  %s       Help                %s  Quit

  [::b]Conversations[-:-:-]

  %s   Open conversation   %s       Filter by peer or text

  [::b]Chat[-:-:-]

  %s       Focus composer      %s   Send (in composer)
  %s  Message menu        %s  Menu at the pointer
  %s       Copy text           %s       Delete own message
  %s       Retry failed send   %s       Discard failed send

  Messages are limited to %d characters. Failed sends stay in the
  timeline until retried or discarded.

  [::b]Commands (: mode)[-:-:-]

  %s      Open or start a conversation
  %s               Back to the conversation list
  %s / %s       Show this help
  %s / %s       Quit
`,
		key(":"), key("Esc"), key("?"), key("Ctrl-C"),
		key("Enter"), key("/"),
		key("i"), key("Enter"),
		key("m/Enter"), key("right-click"),
		key("y"), key("d"),
		key("r"), key("x"),
		chat.MaxContentLength,
		key(":open <user>"), key(":chats"),
		key(":help"), key(":h"), key(":quit"), key(":q"),
	)
}
