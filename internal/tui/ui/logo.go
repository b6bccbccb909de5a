package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

var logoArt = []string{
	" ╔═╗╦╔═╗",
	" ║ ╦║║ ╦",
	" ╚═╝╩╚═╝",
}

// Logo is the header mark shown top right.
type Logo struct {
	*tview.TextView
}

func NewLogo(theme *Theme) *Logo {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(1, 0, 1, 0)

	art := ColorName(theme.TitleColor)
	var b strings.Builder
	for _, line := range logoArt {
		fmt.Fprintf(&b, "[%s::b]%s[-:-:-]\n", art, line)
	}
	fmt.Fprintf(&b, "[%s]gigboard chat[-:-:-]", ColorName(theme.FgColor))
	tv.SetText(b.String())
	return &Logo{TextView: tv}
}
