package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap holds every binding of the main view.
type KeyMap struct {
	Up             key.Binding
	Down           key.Binding
	Toggle         key.Binding
	NextPane       key.Binding
	NextBroker     key.Binding
	Filter         key.Binding
	AddStep        key.Binding
	ResetPipeline  key.Binding
	LoadPipeline   key.Binding
	SavePipeline   key.Binding
	Delete         key.Binding
	Publish        key.Binding
	RunCommand     key.Binding
	ToggleCommands key.Binding
	Connect        key.Binding
	RemoveBroker   key.Binding
	Quit           key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:             key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:           key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Toggle:         key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "expand")),
		NextPane:       key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "pane")),
		NextBroker:     key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "broker")),
		Filter:         key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		AddStep:        key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add step")),
		ResetPipeline:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset")),
		LoadPipeline:   key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"), key.WithHelp("1-9", "load")),
		SavePipeline:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save")),
		Delete:         key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Publish:        key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "publish")),
		RunCommand:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "run command")),
		ToggleCommands: key.NewBinding(key.WithKeys("C"), key.WithHelp("C", "commands")),
		Connect:        key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "connect")),
		RemoveBroker:   key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "remove broker")),
		Quit:           key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp returns the bindings shown in the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.NextPane, k.NextBroker, k.Filter, k.AddStep, k.ResetPipeline,
		k.LoadPipeline, k.SavePipeline, k.Publish, k.ToggleCommands,
		k.Connect, k.RemoveBroker, k.Quit,
	}
}

// pipelineSlot maps a digit key to a saved pipeline index.
func pipelineSlot(keyStr string) (int, bool) {
	if len(keyStr) != 1 || keyStr[0] < '1' || keyStr[0] > '9' {
		return 0, false
	}
	return int(keyStr[0] - '1'), true
}
