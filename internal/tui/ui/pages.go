package ui

import (
	"slices"

	"github.com/rivo/tview"
)

// Pages keeps a navigation stack over tview.Pages. One modal can float above
// the top page without joining the stack; any navigation dismisses it.
type Pages struct {
	*tview.Pages
	stack    []string
	modal    string
	onChange func(stack []string)
}

func NewPages() *Pages {
	return &Pages{Pages: tview.NewPages()}
}

// SetOnChange registers fn to run after every stack change.
func (p *Pages) SetOnChange(fn func(stack []string)) { p.onChange = fn }

// Push shows name on top of the stack. Pushing the current page is a no-op.
func (p *Pages) Push(name string) {
	if p.Current() == name {
		return
	}
	p.navigate(append(p.stack, name))
}

// Pop returns to the previous page and reports the page it left. The bottom
// page stays; Pop on it returns "".
func (p *Pages) Pop() string {
	if len(p.stack) < 2 {
		return ""
	}
	top := p.Current()
	p.navigate(p.stack[:len(p.stack)-1])
	return top
}

// Reset makes name the only page on the stack.
func (p *Pages) Reset(name string) {
	p.navigate([]string{name})
}

func (p *Pages) Current() string {
	if len(p.stack) == 0 {
		return ""
	}
	return p.stack[len(p.stack)-1]
}

// Stack returns a copy of the stack, bottom first.
func (p *Pages) Stack() []string { return slices.Clone(p.stack) }

func (p *Pages) navigate(stack []string) {
	p.HideModal()
	if cur := p.Current(); cur != "" {
		p.HidePage(cur)
	}
	p.stack = stack
	top := p.Current()
	p.ShowPage(top)
	p.SendToFront(top)
	if p.onChange != nil {
		p.onChange(p.Stack())
	}
}

// ShowModal floats item at the given rectangle above the current page,
// replacing any modal already shown.
func (p *Pages) ShowModal(name string, item tview.Primitive, x, y, w, h int) {
	p.HideModal()
	item.SetRect(x, y, w, h)
	p.AddPage(name, item, false, true)
	p.modal = name
}

func (p *Pages) HideModal() {
	if p.modal == "" {
		return
	}
	p.RemovePage(p.modal)
	p.modal = ""
}

func (p *Pages) HasModal() bool { return p.modal != "" }
