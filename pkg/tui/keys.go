package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Increase key.Binding
	Decrease key.Binding
	Search   key.Binding
	Phone    key.Binding
	Send     key.Binding
	Copy     key.Binding
	QR       key.Binding
	Sidebar  key.Binding
	Back     key.Binding
	Quit     key.Binding
}

var keys = keyMap{
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Increase: key.NewBinding(key.WithKeys("+", "=", "right", "l"), key.WithHelp("+", "add one")),
	Decrease: key.NewBinding(key.WithKeys("-", "left", "h"), key.WithHelp("-", "remove one")),
	Search:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search items")),
	Phone:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "customer phone")),
	Send:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "send to phone")),
	Copy:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy summary")),
	QR:       key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "show QR")),
	Sidebar:  key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
	Back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back to list")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Increase, k.Decrease, k.Send, k.Sidebar, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Increase, k.Decrease},
		{k.Search, k.Phone, k.Send, k.Back},
		{k.Copy, k.QR, k.Sidebar, k.Quit},
	}
}
