package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

type FlashLevel int

const (
	FlashInfo FlashLevel = iota
	FlashWarn
	FlashErr
)

// flashTTL is how long a notice of each level stays on screen.
var flashTTL = [...]time.Duration{
	FlashInfo: 4 * time.Second,
	FlashWarn: 8 * time.Second,
	FlashErr:  10 * time.Second,
}

type FlashMessage struct {
	Text    string
	Level   FlashLevel
	Expires time.Time
}

// FlashModel holds the latest notice. A newer notice replaces an older one
// whatever their levels.
type FlashModel struct {
	mu      sync.RWMutex
	current *FlashMessage
	now     func() time.Time
}

func NewFlashModel() *FlashModel {
	return &FlashModel{now: time.Now}
}

func (f *FlashModel) Info(msg string)  { f.Show(FlashInfo, msg) }
func (f *FlashModel) Warn(msg string)  { f.Show(FlashWarn, msg) }
func (f *FlashModel) Error(msg string) { f.Show(FlashErr, msg) }

// Show replaces the current notice.
func (f *FlashModel) Show(level FlashLevel, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = &FlashMessage{Text: msg, Level: level, Expires: f.now().Add(flashTTL[level])}
}

// Current returns a copy of the live notice, or nil once it has expired.
func (f *FlashModel) Current() *FlashMessage {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.current == nil || f.now().After(f.current.Expires) {
		return nil
	}
	m := *f.current
	return &m
}

// FlashBar is the one-line notice area above the status bar.
type FlashBar struct {
	*tview.TextView
	colors [3]tcell.Color
}

func NewFlashBar(theme *Theme) *FlashBar {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	return &FlashBar{
		TextView: tv,
		colors:   [3]tcell.Color{theme.FlashInfoColor, theme.FlashWarnColor, theme.FlashErrColor},
	}
}

// Update shows msg, or blanks the bar when msg is nil.
func (fb *FlashBar) Update(msg *FlashMessage) {
	fb.Clear()
	if msg == nil {
		return
	}
	_, _ = fmt.Fprintf(fb, " [%s]%s[-]", ColorName(fb.colors[msg.Level]), tview.Escape(msg.Text))
}
