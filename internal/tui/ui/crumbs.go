package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// Crumbs is a breadcrumb bar showing the profile and the navigation path.
type Crumbs struct {
	*tview.TextView
	theme   *Theme
	profile string
}

// NewCrumbs creates a new breadcrumb bar for profile.
func NewCrumbs(theme *Theme, profile string) *Crumbs {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)

	return &Crumbs{
		TextView: tv,
		theme:    theme,
		profile:  profile,
	}
}

// Update renders the breadcrumb trail from the page stack.
func (c *Crumbs) Update(stack []string) {
	c.Clear()
	_, _ = fmt.Fprint(c, Trail(c.theme, c.profile, stack))
}

// Trail formats the breadcrumb markup. The last element is highlighted.
func Trail(theme *Theme, profile string, stack []string) string {
	parts := []string{fmt.Sprintf("[%s::b]@%s[-:-:-]", ColorName(theme.TitleColor), tview.Escape(profile))}
	for i, name := range stack {
		fg, bg := theme.CrumbInactiveFg, theme.CrumbInactiveBg
		if i == len(stack)-1 {
			fg, bg = theme.CrumbActiveFg, theme.CrumbActiveBg
		}
		parts = append(parts, fmt.Sprintf("[%s:%s:b] %s [-:-:-]", ColorName(fg), ColorName(bg), tview.Escape(name)))
	}
	return strings.Join(parts, " ")
}
