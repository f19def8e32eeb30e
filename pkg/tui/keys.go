package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the review client's bindings. Every binding fires once per
// key event.
type KeyMap struct {
	Next     key.Binding
	Previous key.Binding
	Ignore   key.Binding
	Close    key.Binding
	Delete   key.Binding
	Reseed   key.Binding
	Open     key.Binding
	Up       key.Binding
	Down     key.Binding
	Quit     key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Next:     key.NewBinding(key.WithKeys("right", "n"), key.WithHelp("→/n", "next")),
		Previous: key.NewBinding(key.WithKeys("left", "p"), key.WithHelp("←/p", "previous")),
		Ignore:   key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "ignore 72h")),
		Close:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back to list")),
		Delete:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete link")),
		Reseed:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "new sample")),
		Open:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "inspect")),
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}
