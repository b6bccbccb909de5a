package ui

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rivo/tview"

	"github.com/gigboard/gigchat/internal/status"
	"github.com/gigboard/gigchat/internal/store"
)

// ProfileData holds profile information for display.
type ProfileData struct {
	Profile string
	UserID  string
	Peer    string
	Conn    status.State
	Outbox  store.OutboxCounts
	Started time.Time
}

// ProfileInfo displays profile metadata in the header.
type ProfileInfo struct {
	*tview.TextView
	theme *Theme
}

// NewProfileInfo creates a new profile info panel.
func NewProfileInfo(theme *Theme) *ProfileInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &ProfileInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the profile info.
func (pi *ProfileInfo) Update(d ProfileData) {
	pi.Clear()

	fg := ColorName(pi.theme.FgColor)
	val := ColorName(pi.theme.CounterColor)
	peer := d.Peer
	if peer == "" {
		peer = "-"
	}
	since := "-"
	if !d.Started.IsZero() {
		since = humanize.Time(d.Started)
	}

	_, _ = fmt.Fprintf(pi,
		"[%s::b]Profile:[-:-:-] [%s]%s[-]\n"+
			"[%s::b]User:[-:-:-]    [%s]%s[-]\n"+
			"[%s::b]Chat:[-:-:-]    [%s]%s[-]\n"+
			"[%s::b]Conn:[-:-:-]    [%s]%s[-]\n"+
			"[%s::b]Outbox:[-:-:-]  [%s]%d pending, %d failed[-]\n"+
			"[%s::b]Started:[-:-:-] [%s]%s[-]",
		fg, val, tview.Escape(d.Profile),
		fg, val, tview.Escape(d.UserID),
		fg, val, tview.Escape(peer),
		fg, ColorName(pi.theme.ConnColor(d.Conn)), d.Conn,
		fg, val, d.Outbox.Pending, d.Outbox.Failed,
		fg, val, since,
	)
}
