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

// Known commands.
const (
	CmdOpen  = "open"
	CmdClose = "close"
	CmdChats = "chats"
	CmdQuit  = "quit"
)

var aliases = map[string]string{
	"o": CmdOpen,
	"c": CmdClose,
	"q": CmdQuit,
	"l": CmdChats,
}

// ParseCommand parses a command string (without the leading ':').
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if full, ok := aliases[cmd.Name]; ok {
		cmd.Name = full
	}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}

// Validate reports a usage error for unknown commands or missing arguments.
func (c Command) Validate() error {
	switch c.Name {
	case CmdOpen:
		if c.Args == "" {
			return fmt.Errorf("usage: :open <chat-id>")
		}
	case CmdClose, CmdChats, CmdQuit:
	default:
		return fmt.Errorf("unknown command %q", c.Name)
	}
	return nil
}
