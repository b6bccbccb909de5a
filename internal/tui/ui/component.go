package ui

// MenuHint is a key and what it does, shown in the header.
type MenuHint struct {
	Key         string
	Description string
}

// Component is a page of the TUI. Name is its breadcrumb label.
type Component interface {
	Name() string
}
