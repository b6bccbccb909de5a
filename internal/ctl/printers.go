package ctl

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"github.com/gigboard/gigchat/internal/api"
)

var (
	bold    = color.New(color.Bold)
	title   = color.New(color.Bold, color.Underline)
	faint   = color.New(color.Faint)
	okColor = color.New(color.FgGreen)
	warn    = color.New(color.FgYellow)
	bad     = color.New(color.FgRed)
)

func connColor(state string) *color.Color {
	switch state {
	case "CONNECTED":
		return okColor
	case "CONNECTING", "RECONNECTING":
		return warn
	case "CLOSED":
		return bad
	default:
		return faint
	}
}

func printStatus(w io.Writer, s *api.StatusResponse) {
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("Profile"), s.Profile)
	tbl.AddRow(bold.Sprint("User"), s.UserID)
	if s.Peer == "" {
		tbl.AddRow(bold.Sprint("Chat"), faint.Sprint("none"))
	} else {
		tbl.AddRow(bold.Sprint("Chat"), s.Peer)
		tbl.AddRow(bold.Sprint("History"), s.History)
		tbl.AddRow(bold.Sprint("Messages"), s.Messages)
	}
	conn := connColor(s.Conn).Sprint(s.Conn)
	if s.PeerTyping {
		conn += faint.Sprint(" (typing…)")
	}
	tbl.AddRow(bold.Sprint("Connection"), conn)
	tbl.AddRow(bold.Sprint("Outbox"), outboxSummary(s.Outbox))
	tbl.AddRow(bold.Sprint("Started"), humanize.Time(time.Now().Add(-time.Duration(s.UptimeMs)*time.Millisecond)))
	_, _ = fmt.Fprintln(w, tbl)
}

func outboxSummary(c api.OutboxCounts) string {
	s := fmt.Sprintf("%d pending, %d confirmed", c.Pending, c.Confirmed)
	if c.Failed > 0 {
		s += ", " + bad.Sprintf("%d failed", c.Failed)
	} else {
		s += ", 0 failed"
	}
	return s
}

func printConversations(w io.Writer, convs []api.Conversation) {
	if len(convs) == 0 {
		_, _ = faint.Fprintln(w, "no conversations yet")
		return
	}
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = 60
	tbl.AddRow(bold.Sprint("PEER"), bold.Sprint("LAST MESSAGE"), bold.Sprint("ACTIVE"))
	for _, c := range convs {
		active := c.LastOpenedAt
		if c.LastMessageAt.After(active) {
			active = c.LastMessageAt
		}
		when := ""
		if !active.IsZero() {
			when = humanize.Time(active)
		}
		tbl.AddRow(c.PeerID, c.Preview, faint.Sprint(when))
	}
	_, _ = fmt.Fprintln(w, tbl)
}

func printTimeline(w io.Writer, tl *api.TimelineResponse) {
	n := 0
	for _, b := range tl.Buckets {
		n += len(b.Messages)
	}
	_, _ = title.Fprint(w, tl.Peer)
	_, _ = faint.Fprintf(w, " - %s\n", humanize.Comma(int64(n))+" "+plural(n, "message", "messages"))
	if n == 0 {
		if tl.History == "loading" {
			_, _ = faint.Fprintln(w, "  loading history…")
		} else {
			_, _ = faint.Fprintln(w, "  none")
		}
		return
	}
	for _, b := range tl.Buckets {
		_, _ = fmt.Fprintln(w)
		_, _ = bold.Fprintln(w, b.Label)
		tbl := uitable.New()
		tbl.Separator = "  "
		tbl.MaxColWidth = 80
		tbl.Wrap = true
		for _, m := range b.Messages {
			who := m.SenderID
			if m.Own {
				who = "you"
			}
			tbl.AddRow(faint.Sprint(m.CreatedAt.Local().Format("15:04")), who, statusMark(m), m.Content, faint.Sprint(m.ID))
		}
		_, _ = fmt.Fprintln(w, tbl)
	}
}

func statusMark(m api.Message) string {
	if !m.Own {
		return " "
	}
	switch m.Status {
	case "pending":
		return faint.Sprint("…")
	case "failed":
		return bad.Sprint("✗")
	default:
		return okColor.Sprint("✓")
	}
}

func printEvent(w io.Writer, e *api.Event) {
	line := faint.Sprint(e.Time.Local().Format("15:04:05")) + " " + bold.Sprint(e.Kind)
	if e.Peer != "" {
		line += " " + e.Peer
	}
	switch {
	case e.Conn != "":
		line += " " + connColor(e.Conn).Sprint(e.Conn)
	case e.Typing != nil:
		if *e.Typing {
			line += " typing…"
		} else {
			line += " stopped typing"
		}
	case e.Messages != nil:
		line += fmt.Sprintf(" %d %s", *e.Messages, plural(*e.Messages, "message", "messages"))
	}
	if e.Text != "" {
		line += ": " + e.Text
	}
	_, _ = fmt.Fprintln(w, line)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
