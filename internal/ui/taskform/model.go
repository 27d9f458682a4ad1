package taskform

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/chronicle/internal/model"
	"github.com/nhle/chronicle/internal/theme"
)

// SubmittedMsg is dispatched when the form is completed.
type SubmittedMsg struct {
	Task model.Task
}

// CancelledMsg is dispatched when the user aborts the form.
type CancelledMsg struct{}

// bindings holds field values on the heap so that huh's Value() pointers
// stay valid across Bubble Tea model copies.
type bindings struct {
	title        string
	description  string
	dueDate      string
	reminderTime string
}

// Model is the new-task form.
type Model struct {
	form   *huh.Form
	fb     *bindings
	width  int
	height int
}

func New(width, height int) Model {
	return Model{fb: &bindings{}, width: width, height: height}
}

// Start resets the form. today pre-fills the due date.
func (m *Model) Start(today string) tea.Cmd {
	*m.fb = bindings{dueDate: today}
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Placeholder("What needs to be done?").
				Value(&m.fb.title).
				Validate(validateRequired("Title")),
			huh.NewText().
				Title("Description").
				Placeholder("Optional details...").
				Value(&m.fb.description),
			huh.NewInput().
				Title("Due Date").
				Placeholder("YYYY-MM-DD (optional)").
				Value(&m.fb.dueDate).
				Validate(validateOptionalDate),
			huh.NewInput().
				Title("Reminder").
				Placeholder("HH:MM (optional)").
				Value(&m.fb.reminderTime).
				Validate(validateOptionalClock),
		),
	).WithWidth(m.formWidth()).WithShowHelp(true)
	return m.form.Init()
}

// Active reports whether the form is being filled in.
func (m Model) Active() bool {
	return m.form != nil && m.form.State == huh.StateNormal
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
		task := model.Task{
			Title:        strings.TrimSpace(m.fb.title),
			Description:  strings.TrimSpace(m.fb.description),
			DueDate:      strings.TrimSpace(m.fb.dueDate),
			ReminderTime: strings.TrimSpace(m.fb.reminderTime),
		}
		m.form = nil
		return m, func() tea.Msg { return SubmittedMsg{Task: task} }
	case huh.StateAborted:
		m.form = nil
		return m, func() tea.Msg { return CancelledMsg{} }
	}
	return m, cmd
}

func (m Model) View() string {
	if m.form == nil {
		return ""
	}
	title := theme.PanelTitleStyle.MarginBottom(1).Render("New Task")
	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(title + "\n" + m.form.View())
}

func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateOptionalDate(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if _, ok := model.ParseDate(s, time.Local); !ok {
		return fmt.Errorf("invalid date format, use YYYY-MM-DD")
	}
	return nil
}

func validateOptionalClock(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if _, err := time.Parse("15:04", s); err != nil {
		return fmt.Errorf("invalid time, use HH:MM")
	}
	return nil
}
