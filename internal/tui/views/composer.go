package views

import (
	"fmt"
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/gigboard/gigchat/internal/chat"
	"github.com/gigboard/gigchat/internal/tui/ui"
)

// Composer is the text input for sending messages. The title carries a
// character counter that turns red past the limit.
type Composer struct {
	*tview.InputField
	theme    *ui.Theme
	onSend   func(text string) bool
	onChange func(text string)
	onLeave  func()
}

// NewComposer creates a new message composer.
func NewComposer(theme *ui.Theme) *Composer {
	input := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	input.SetBorder(true)
	input.SetBorderColor(theme.BorderColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.PeerColor)
	input.SetTitleAlign(tview.AlignRight)

	c := &Composer{InputField: input, theme: theme}
	c.updateCounter("")

	input.SetChangedFunc(func(text string) {
		c.updateCounter(text)
		if c.onChange != nil {
			c.onChange(text)
		}
	})
	input.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			if c.onSend != nil && c.onSend(c.GetText()) {
				c.SetText("")
			}
		case tcell.KeyEscape:
			if c.onLeave != nil {
				c.onLeave()
			}
		}
	})
	return c
}

// SetOnSend sets the send callback. The input is cleared when it returns true.
func (c *Composer) SetOnSend(fn func(text string) bool) {
	c.onSend = fn
}

// SetOnChange sets the callback fired on every edit.
func (c *Composer) SetOnChange(fn func(text string)) {
	c.onChange = fn
}

// SetOnLeave sets the callback fired when Esc leaves the composer.
func (c *Composer) SetOnLeave(fn func()) {
	c.onLeave = fn
}

func (c *Composer) updateCounter(text string) {
	c.SetTitle(" " + CounterLabel(c.theme, text) + " ")
}

// CounterLabel formats the character counter for text.
func CounterLabel(theme *ui.Theme, text string) string {
	n := utf8.RuneCountInString(chat.NormalizeContent(text))
	color := theme.CounterColor
	if n > chat.MaxContentLength {
		color = theme.FailedColor
	}
	return fmt.Sprintf("[%s]%d/%d[-]", ui.ColorName(color), n, chat.MaxContentLength)
}
