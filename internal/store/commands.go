package store

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Command is one recognized terminal command.
type Command struct {
	Description string `json:"description"`
	Delay       int    `json:"delay"`
	Hidden      bool   `json:"hidden"`
}

// CommandEntry pairs a command with its token.
type CommandEntry struct {
	Token string
	Command
}

// CommandTable is the ordered set of recognized command tokens.
type CommandTable struct {
	order   []string
	entries map[string]Command
}

// NewCommandTable builds a table from ordered entries. Tokens are normalized.
func NewCommandTable(entries ...CommandEntry) (CommandTable, error) {
	table := CommandTable{
		order:   make([]string, 0, len(entries)),
		entries: make(map[string]Command, len(entries)),
	}
	for _, entry := range entries {
		token := NormalizeToken(entry.Token)
		if token == "" {
			return CommandTable{}, &ValidationError{Key: "commands", Reason: "command token must not be empty"}
		}
		if _, exists := table.entries[token]; exists {
			return CommandTable{}, &ValidationError{Key: "commands." + token, Reason: "duplicate command token"}
		}
		if entry.Delay < 0 {
			return CommandTable{}, &ValidationError{Key: "commands." + token, Reason: "delay must be >= 0"}
		}
		table.order = append(table.order, token)
		table.entries[token] = entry.Command
	}
	return table, nil
}

// Lookup returns the command for a normalized token.
func (t CommandTable) Lookup(token string) (Command, bool) {
	command, ok := t.entries[token]
	return command, ok
}

// Len returns the number of commands.
func (t CommandTable) Len() int {
	return len(t.order)
}

// Entries returns every command in file order.
func (t CommandTable) Entries() []CommandEntry {
	out := make([]CommandEntry, 0, len(t.order))
	for _, token := range t.order {
		out = append(out, CommandEntry{Token: token, Command: t.entries[token]})
	}
	return out
}

// Visible returns the commands listed by help.
func (t CommandTable) Visible() []CommandEntry {
	out := make([]CommandEntry, 0, len(t.order))
	for _, entry := range t.Entries() {
		if entry.Hidden {
			continue
		}
		out = append(out, entry)
	}
	return out
}

// NormalizeToken trims and lowercases a command token.
func NormalizeToken(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func decodeCommandTable(data []byte) (CommandTable, error) {
	root, err := decodeOrderedObject(data)
	if err != nil {
		return CommandTable{}, err
	}
	raw, ok := root.values["commands"]
	if !ok {
		return CommandTable{}, &ValidationError{Key: "commands", Reason: "missing top-level commands object"}
	}
	object, err := decodeOrderedObject(raw)
	if err != nil {
		return CommandTable{}, fmt.Errorf("decode commands: %w", err)
	}

	entries := make([]CommandEntry, 0, len(object.keys))
	for _, token := range object.keys {
		var command Command
		if err := json.Unmarshal(object.values[token], &command); err != nil {
			return CommandTable{}, fmt.Errorf("decode command %q: %w", token, err)
		}
		entries = append(entries, CommandEntry{Token: token, Command: command})
	}
	return NewCommandTable(entries...)
}

func encodeCommandTable(table CommandTable) ([]byte, error) {
	inner, err := encodeOrderedObject(table.order, func(token string) any {
		return table.entries[token]
	})
	if err != nil {
		return nil, err
	}
	outer, err := encodeOrderedObject([]string{"commands"}, func(string) any {
		return json.RawMessage(inner)
	})
	if err != nil {
		return nil, err
	}
	return indentJSON(outer)
}
