package tui

import (
	"fmt"
	"strings"
)

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

var commandAliases = map[string]string{
	"o":    "open",
	"q":    "quit",
	"q!":   "quit",
	"h":    "help",
	"c":    "chats",
	"back": "chats",
}

// ParseCommand parses a command string (without the leading ':').
// Aliases resolve to their full name.
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if full, ok := commandAliases[cmd.Name]; ok {
		cmd.Name = full
	}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}

// Validate reports commands that cannot run.
func (c Command) Validate() error {
	switch c.Name {
	case "open":
		if c.Args == "" || strings.ContainsAny(c.Args, " \t") {
			return fmt.Errorf("usage: open <user-id>")
		}
	case "quit", "help", "chats":
	case "":
		return fmt.Errorf("empty command")
	default:
		return fmt.Errorf("unknown command %q", c.Name)
	}
	return nil
}
