package calldetail

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings for the call detail.
type KeyMap struct {
	Toggle     key.Binding
	Back5      key.Binding
	Forward5   key.Binding
	VolumeUp   key.Binding
	VolumeDown key.Binding
	Next       key.Binding
	Prev       key.Binding
	Seek       key.Binding
	Up         key.Binding
	Down       key.Binding
	Back       key.Binding
}

// DefaultKeyMap returns the default key bindings for the call detail.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Toggle: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "play/pause"),
		),
		Back5: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←", "-5s"),
		),
		Forward5: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→", "+5s"),
		),
		VolumeUp: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "louder"),
		),
		VolumeDown: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "quieter"),
		),
		Next: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next line"),
		),
		Prev: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "prev line"),
		),
		Seek: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "play from line"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k", "pgup"),
			key.WithHelp("↑/k", "scroll"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j", "pgdown"),
			key.WithHelp("↓/j", "scroll"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc", "backspace"),
			key.WithHelp("esc", "back"),
		),
	}
}

// ShortHelp returns the short help bindings for the call detail.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Back5, k.Forward5, k.Next, k.Seek, k.VolumeUp, k.VolumeDown, k.Back}
}

// FullHelp returns the full help bindings for the call detail.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.Back5, k.Forward5},
		{k.Next, k.Prev, k.Seek, k.Up, k.Down},
		{k.VolumeUp, k.VolumeDown, k.Back},
	}
}
