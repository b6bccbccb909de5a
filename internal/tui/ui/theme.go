package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/gigboard/gigchat/internal/chat"
	"github.com/gigboard/gigchat/internal/status"
)

// Theme holds color constants for the TUI.
type Theme struct {
	BgColor           tcell.Color
	FgColor           tcell.Color
	BorderColor       tcell.Color
	BorderFocusColor  tcell.Color
	TableHeaderFg     tcell.Color
	TableCursorFg     tcell.Color
	TableCursorBg     tcell.Color
	CrumbActiveFg     tcell.Color
	CrumbActiveBg     tcell.Color
	CrumbInactiveFg   tcell.Color
	CrumbInactiveBg   tcell.Color
	MenuKeyColor      tcell.Color
	TitleColor        tcell.Color
	CounterColor      tcell.Color
	FlashInfoColor    tcell.Color
	FlashWarnColor    tcell.Color
	FlashErrColor     tcell.Color
	PromptBorderColor tcell.Color

	DayHeaderColor tcell.Color
	OwnColor       tcell.Color
	PeerColor      tcell.Color
	PendingColor   tcell.Color
	FailedColor    tcell.Color
	TypingColor    tcell.Color
}

// DefaultTheme returns a k9s-inspired dark theme.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:           tcell.ColorBlack,
		FgColor:           tcell.ColorCadetBlue,
		BorderColor:       tcell.ColorDodgerBlue,
		BorderFocusColor:  tcell.ColorLightSkyBlue,
		TableHeaderFg:     tcell.ColorWhite,
		TableCursorFg:     tcell.ColorBlack,
		TableCursorBg:     tcell.ColorAqua,
		CrumbActiveFg:     tcell.ColorBlack,
		CrumbActiveBg:     tcell.ColorOrange,
		CrumbInactiveFg:   tcell.ColorBlack,
		CrumbInactiveBg:   tcell.ColorAqua,
		MenuKeyColor:      tcell.ColorDodgerBlue,
		TitleColor:        tcell.ColorFuchsia,
		CounterColor:      tcell.ColorPapayaWhip,
		FlashInfoColor:    tcell.ColorNavajoWhite,
		FlashWarnColor:    tcell.ColorOrange,
		FlashErrColor:     tcell.ColorOrangeRed,
		PromptBorderColor: tcell.ColorDodgerBlue,
		DayHeaderColor:    tcell.ColorGray,
		OwnColor:          tcell.ColorLightGreen,
		PeerColor:         tcell.ColorWhite,
		PendingColor:      tcell.ColorGray,
		FailedColor:       tcell.ColorOrangeRed,
		TypingColor:       tcell.ColorFuchsia,
	}
}

// ConnColor maps a connection state to its indicator color.
func (t *Theme) ConnColor(s status.State) tcell.Color {
	switch s {
	case status.Connected:
		return tcell.ColorLightGreen
	case status.Connecting, status.Reconnecting:
		return t.FlashWarnColor
	case status.Closed:
		return t.FailedColor
	default:
		return t.PendingColor
	}
}

// MessageColor is the text color of a timeline entry.
func (t *Theme) MessageColor(m chat.Message, own bool) tcell.Color {
	switch {
	case m.Status == chat.Failed:
		return t.FailedColor
	case m.Status == chat.Pending:
		return t.PendingColor
	case own:
		return t.OwnColor
	default:
		return t.PeerColor
	}
}

// ColorName returns a tview color tag value for c.
func ColorName(c tcell.Color) string {
	return fmt.Sprintf("#%06x", c.Hex())
}
