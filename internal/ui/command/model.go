package command

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/chronicle/internal/theme"
)

// CommandMsg is emitted when the user enters a command that parses.
type CommandMsg struct {
	Command Command
}

// ClosedMsg is emitted when the palette is dismissed.
type ClosedMsg struct{}

// Model is the command palette.
type Model struct {
	input textinput.Model
	err   string
	width int
}

func New(width int) Model {
	ti := textinput.New()
	ti.Placeholder = "add Buy milk due:2026-06-12 · goal Run 10k by:2026-09-01 · snooze 2h"
	ti.Prompt = ": "
	m := Model{input: ti}
	m.SetWidth(width)
	return m
}

// Open focuses an empty palette.
func (m *Model) Open() tea.Cmd {
	m.input.Reset()
	m.err = ""
	return m.input.Focus()
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			m.input.Blur()
			return m, func() tea.Msg { return ClosedMsg{} }
		case "enter":
			c, err := Parse(m.input.Value())
			if err != nil {
				m.err = err.Error()
				return m, nil
			}
			m.input.Blur()
			return m, func() tea.Msg { return CommandMsg{Command: c} }
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.err = ""
	return m, cmd
}

func (m Model) View() string {
	lines := []string{theme.PanelTitleStyle.Render("Command"), m.input.View()}
	if m.err != "" {
		lines = append(lines, theme.ErrorStyle.Render(m.err))
	} else {
		lines = append(lines, theme.HelpStyle.Render("add · goal · routine · note · snooze · refresh · migrate · quit"))
	}
	return theme.FocusedPanelStyle.
		Width(max(m.width-4, 20)).
		Render(strings.Join(lines, "\n"))
}

func (m *Model) SetWidth(width int) {
	m.width = width
	m.input.Width = max(width-8, 10)
}
