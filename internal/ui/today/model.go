// Package today renders the dashboard: the task list, goals, reminders and
// suggestions for the current day, with a cursor in one focused panel.
package today

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/chronicle/internal/dashboard"
	"github.com/nhle/chronicle/internal/model"
	"github.com/nhle/chronicle/internal/theme"
	"github.com/nhle/chronicle/internal/ui"
)

// Panel identifies a focusable panel.
type Panel int

const (
	PanelTasks Panel = iota
	PanelGoals
	PanelReminders
	PanelSuggestions
	panelCount
)

func (p Panel) String() string {
	switch p {
	case PanelGoals:
		return "Goals"
	case PanelReminders:
		return "Reminders"
	case PanelSuggestions:
		return "Suggestions"
	default:
		return "Tasks"
	}
}

// Data is everything the view shows. Pending holds ids with an
// unconfirmed optimistic write.
type Data struct {
	Now       time.Time
	Tasks     []model.Task
	Goals     []model.Goal
	Reminders []model.Reminder
	Summary   dashboard.Summary
	Pending   map[string]bool
}

// Model is the dashboard view.
type Model struct {
	data    Data
	focus   Panel
	cursor  [panelCount]int
	bar     progress.Model
	overdue map[string]bool
	layout  ui.Layout
}

func New(width, height int) Model {
	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	bar.Width = 12
	return Model{bar: bar, layout: ui.NewLayout(width, height)}
}

// SetData replaces the displayed data and keeps cursors in range.
func (m *Model) SetData(d Data) {
	m.data = d
	m.overdue = make(map[string]bool, len(d.Summary.Overdue))
	for _, t := range d.Summary.Overdue {
		m.overdue[t.ID] = true
	}
	for p := Panel(0); p < panelCount; p++ {
		m.cursor[p] = clamp(m.cursor[p], m.count(p))
	}
}

func (m *Model) SetSize(width, height int) {
	m.layout = ui.NewLayout(width, height)
}

// Focus returns the focused panel.
func (m Model) Focus() Panel {
	return m.focus
}

// NextPanel moves focus to the following panel.
func (m *Model) NextPanel() {
	m.focus = (m.focus + 1) % panelCount
}

// Move shifts the cursor of the focused panel by delta.
func (m *Model) Move(delta int) {
	m.cursor[m.focus] = clamp(m.cursor[m.focus]+delta, m.count(m.focus))
}

// SelectedTask returns the task under the cursor.
func (m Model) SelectedTask() (model.Task, bool) {
	return at(m.data.Tasks, m.cursor[PanelTasks])
}

// SelectedGoal returns the goal under the cursor.
func (m Model) SelectedGoal() (model.Goal, bool) {
	return at(m.data.Goals, m.cursor[PanelGoals])
}

// SelectedReminder returns the reminder under the cursor.
func (m Model) SelectedReminder() (model.Reminder, bool) {
	return at(m.data.Reminders, m.cursor[PanelReminders])
}

// SelectedSuggestion returns the suggestion under the cursor.
func (m Model) SelectedSuggestion() (model.SmartSuggestion, bool) {
	return at(m.data.Summary.Suggestions, m.cursor[PanelSuggestions])
}

func (m Model) count(p Panel) int {
	switch p {
	case PanelGoals:
		return len(m.data.Goals)
	case PanelReminders:
		return len(m.data.Reminders)
	case PanelSuggestions:
		return len(m.data.Summary.Suggestions)
	default:
		return len(m.data.Tasks)
	}
}

func (m Model) View() string {
	left, right := m.layout.ColumnWidths()

	leftCol := lipgloss.JoinVertical(lipgloss.Left,
		m.panel(PanelTasks, left, m.taskLines()),
		m.summaryPanel(left),
	)
	if right == 0 {
		return lipgloss.JoinVertical(lipgloss.Left,
			leftCol,
			m.panel(PanelGoals, left, m.goalLines()),
			m.panel(PanelReminders, left, m.reminderLines()),
			m.panel(PanelSuggestions, left, m.suggestionLines()),
		)
	}
	rightCol := lipgloss.JoinVertical(lipgloss.Left,
		m.panel(PanelGoals, right, m.goalLines()),
		m.panel(PanelReminders, right, m.reminderLines()),
		m.panel(PanelSuggestions, right, m.suggestionLines()),
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, leftCol, rightCol)
}

func (m Model) panel(p Panel, width int, lines []string) string {
	style := theme.PanelStyle
	if p == m.focus {
		style = theme.FocusedPanelStyle
	}
	for i := range lines {
		if p == m.focus && i == m.cursor[p] {
			lines[i] = theme.SelectedItemStyle.Render("> " + lines[i])
		} else {
			lines[i] = "  " + lines[i]
		}
	}
	if len(lines) == 0 {
		lines = []string{theme.DimmedStyle.Render("  nothing here")}
	}
	title := theme.PanelTitleStyle.Render(fmt.Sprintf("%s (%d)", p, m.count(p)))
	body := lipgloss.JoinVertical(lipgloss.Left, append([]string{title}, lines...)...)
	return style.Width(max(width-2, 10)).Render(body)
}

func (m Model) taskLines() []string {
	lines := make([]string, 0, len(m.data.Tasks))
	for _, t := range m.data.Tasks {
		box := "[ ]"
		if t.Completed {
			box = "[x]"
		}
		line := box + " " + t.Title
		if t.DueDate != "" {
			due := "due " + t.DueDate
			if m.overdue[t.ID] {
				due = theme.OverdueStyle.Render(due)
			}
			line += "  " + due
		}
		switch {
		case m.data.Pending[t.ID]:
			line = theme.PendingStyle.Render(line + "  saving…")
		case t.Completed:
			line = theme.DimmedStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return lines
}

func (m Model) goalLines() []string {
	lines := make([]string, 0, len(m.data.Goals))
	for _, g := range m.data.Goals {
		line := fmt.Sprintf("%s %3d%% %s", m.bar.ViewAs(float64(g.Progress)/100), g.Progress, g.Title)
		if dashboard.IsBehindSchedule(g, m.data.Now) {
			line += theme.OverdueStyle.Render("  behind")
		}
		if m.data.Pending[g.ID] {
			line = theme.PendingStyle.Render(line)
		} else if g.Status == model.GoalCompleted {
			line = theme.GoalStatusStyle(g.Status).Render(line)
		}
		lines = append(lines, line)
	}
	return lines
}

func (m Model) reminderLines() []string {
	lines := make([]string, 0, len(m.data.Reminders))
	for _, r := range m.data.Reminders {
		lines = append(lines, theme.PriorityStyle(r.Priority).Render(string(r.Priority))+" "+r.Title)
	}
	return lines
}

func (m Model) suggestionLines() []string {
	lines := make([]string, 0, len(m.data.Summary.Suggestions))
	for _, s := range m.data.Summary.Suggestions {
		lines = append(lines, fmt.Sprintf("%s %s %s",
			theme.PriorityStyle(s.Priority).Render(string(s.Priority)),
			s.Title,
			theme.DimmedStyle.Render(fmt.Sprintf("~%dm +%d", s.EstimatedTime, s.Points)),
		))
	}
	return lines
}

func (m Model) summaryPanel(width int) string {
	s := m.data.Summary
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %d overdue · %d due today · %d goals behind\n",
		theme.PanelTitleStyle.Render(m.data.Now.Format("Monday, Jan 2")),
		len(s.Overdue), len(s.DueToday), len(s.Behind))
	fmt.Fprintf(&b, "Points %d today / %d total · streak %d day(s)\n", s.Points.Today, s.Points.Total, s.Streak)

	if len(s.Routines) == 0 {
		b.WriteString(theme.DimmedStyle.Render("No routines today"))
	} else {
		names := make([]string, len(s.Routines))
		for i, r := range s.Routines {
			names[i] = r.Time + " " + r.Title
		}
		b.WriteString("Routines: " + strings.Join(names, ", "))
	}
	return theme.PanelStyle.Width(max(width-2, 10)).Render(b.String())
}

func clamp(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func at[T any](items []T, i int) (T, bool) {
	if i < 0 || i >= len(items) {
		var zero T
		return zero, false
	}
	return items[i], true
}
