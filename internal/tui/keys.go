package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up, Down, Top, Bottom key.Binding

	Toggle   key.Binding
	Expand   key.Binding
	Collapse key.Binding
	AllFold  key.Binding

	Add, AddSub, Edit key.Binding
	Dup, Delete       key.Binding

	MoveUp, MoveDown key.Binding
	Indent, Outdent  key.Binding

	View, Sort, Tags key.Binding
	Preview, Reload  key.Binding

	Help, Quit key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Top:    key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "top")),
		Bottom: key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "bottom")),

		Toggle:   key.NewBinding(key.WithKeys(" ", "x"), key.WithHelp("space", "done")),
		Expand:   key.NewBinding(key.WithKeys("enter", "right", "l"), key.WithHelp("enter", "expand")),
		Collapse: key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "collapse")),
		AllFold:  key.NewBinding(key.WithKeys("z"), key.WithHelp("z", "fold all")),

		Add:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		AddSub: key.NewBinding(key.WithKeys("A"), key.WithHelp("A", "add subtask")),
		Edit:   key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		Dup:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "duplicate")),
		Delete: key.NewBinding(key.WithKeys("D", "delete"), key.WithHelp("D", "delete")),

		MoveUp:   key.NewBinding(key.WithKeys("K", "shift+up"), key.WithHelp("K", "move up")),
		MoveDown: key.NewBinding(key.WithKeys("J", "shift+down"), key.WithHelp("J", "move down")),
		Indent:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "indent")),
		Outdent:  key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "outdent")),

		View:    key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "view")),
		Sort:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort")),
		Tags:    key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "tags")),
		Preview: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "preview")),
		Reload:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),

		Help: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Expand, k.Add, k.AddSub, k.Delete, k.View, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Top, k.Bottom},
		{k.Toggle, k.Expand, k.Collapse, k.AllFold},
		{k.Add, k.AddSub, k.Edit, k.Dup, k.Delete},
		{k.MoveUp, k.MoveDown, k.Indent, k.Outdent},
		{k.View, k.Sort, k.Tags, k.Preview, k.Reload, k.Quit},
	}
}
