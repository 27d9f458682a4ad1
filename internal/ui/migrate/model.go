package migrate

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/chronicle/internal/theme"
)

// ConfirmedMsg carries the user's answer. Clear asks for the local copies
// to be removed once everything has been copied.
type ConfirmedMsg struct {
	Migrate bool
	Clear   bool
}

type answers struct {
	migrate bool
	clear   bool
}

// Model asks whether local data should be copied to the signed-in account.
type Model struct {
	form  *huh.Form
	ans   *answers
	width int
}

func New(width int) Model {
	return Model{ans: &answers{}, width: width}
}

// Start builds the prompt for count local items.
func (m *Model) Start(count int, email string) tea.Cmd {
	*m.ans = answers{migrate: true}
	account := email
	if account == "" {
		account = "your account"
	}
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Copy %d local item(s) to %s?", count, account)).
				Description("Items are copied with new ids. Running this twice copies them twice.").
				Affirmative("Copy").
				Negative("Not now").
				Value(&m.ans.migrate),
			huh.NewConfirm().
				Title("Remove the local copies afterwards?").
				Description("Only happens if every item was copied.").
				Value(&m.ans.clear),
		),
	).WithWidth(min(max(m.width-4, 40), 80))
	return m.form.Init()
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		ans := *m.ans
		m.form = nil
		return m, func() tea.Msg { return ConfirmedMsg{Migrate: ans.migrate, Clear: ans.migrate && ans.clear} }
	case huh.StateAborted:
		m.form = nil
		return m, func() tea.Msg { return ConfirmedMsg{} }
	}
	return m, cmd
}

func (m Model) View() string {
	if m.form == nil {
		return ""
	}
	title := theme.PanelTitleStyle.MarginBottom(1).Render("Move local data")
	return lipgloss.NewStyle().Padding(1, 2).Render(title + "\n" + m.form.View())
}

func (m *Model) SetWidth(width int) {
	m.width = width
}
