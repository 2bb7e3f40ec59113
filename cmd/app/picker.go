package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/starford/cardsync/internal/models"
)

type refItem struct {
	ref models.ReferenceResult
}

func (i refItem) Title() string       { return i.ref.File }
func (i refItem) Description() string { return kindLabel(i.ref.Kind) }
func (i refItem) FilterValue() string { return i.ref.File }

var chooseKey = key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "create/sync card"))

type pickerModel struct {
	list     list.Model
	chosen   string
	canceled bool
}

func newPickerModel(note string, refs []models.ReferenceResult) pickerModel {
	items := make([]list.Item, len(refs))
	for i, r := range refs {
		items[i] = refItem{ref: r}
	}
	l := list.New(items, list.NewDefaultDelegate(), 80, 20)
	l.Title = fmt.Sprintf("Canvases for %s", note)
	l.Styles.Title = titleStyle
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{chooseKey}
	}
	return pickerModel{list: l}
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h, v := appStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v)

	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, chooseKey):
			if it, ok := m.list.SelectedItem().(refItem); ok {
				m.chosen = it.ref.File
				return m, tea.Quit
			}
		case msg.String() == "ctrl+c" || msg.String() == "esc" || msg.String() == "q":
			m.canceled = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m pickerModel) View() string {
	return appStyle.Render(m.list.View())
}

// pickReference lets the user choose one canvas. ok is false when the picker
// was dismissed.
func pickReference(note string, refs []models.ReferenceResult) (string, bool, error) {
	if len(refs) == 0 {
		return "", false, errors.New("no canvases reference this note")
	}
	final, err := tea.NewProgram(newPickerModel(note, refs)).Run()
	if err != nil {
		return "", false, fmt.Errorf("picker: %w", err)
	}
	m := final.(pickerModel)
	if m.canceled || m.chosen == "" {
		return "", false, nil
	}
	return m.chosen, true, nil
}
