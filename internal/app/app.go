package app

import (
	"fmt"
	"slices"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/chronicle/internal/hybrid"
	"github.com/nhle/chronicle/internal/keys"
	"github.com/nhle/chronicle/internal/model"
	"github.com/nhle/chronicle/internal/scheduler"
	"github.com/nhle/chronicle/internal/theme"
	"github.com/nhle/chronicle/internal/ui"
	"github.com/nhle/chronicle/internal/ui/command"
	helpview "github.com/nhle/chronicle/internal/ui/help"
	"github.com/nhle/chronicle/internal/ui/migrate"
	"github.com/nhle/chronicle/internal/ui/taskform"
	"github.com/nhle/chronicle/internal/ui/today"
	"github.com/nhle/chronicle/internal/workspace"
)

// ViewState is the active view.
type ViewState int

const (
	ViewToday ViewState = iota
	ViewHelp
	ViewTaskForm
	ViewMigrate
	ViewCommand
)

// changedMsg is sent when anything in the workspace changed.
type changedMsg struct{}

// Model is the root Bubble Tea model: view routing, layout, and the bridge
// from workspace change callbacks to messages.
type Model struct {
	ws      *workspace.Workspace
	keys    *keys.KeyMap
	layout  ui.Layout
	view    ViewState
	today   today.Model
	help    helpview.Model
	form    taskform.Model
	migrate migrate.Model
	palette command.Model
	spinner spinner.Model

	changes   chan struct{}
	stopWatch func()

	inFlight         int
	status           string
	lastErr          error
	migrationOffered bool
	ready            bool
}

// New creates the root model over ws.
func New(ws *workspace.Workspace) Model {
	k := keys.DefaultKeyMap()
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	changes := make(chan struct{}, 1)
	stop := ws.Watch(func() {
		select {
		case changes <- struct{}{}:
		default:
			// A change is already queued.
		}
	})

	m := Model{
		ws:        ws,
		keys:      k,
		today:     today.New(80, 24),
		help:      helpview.New(k, 80, 24),
		form:      taskform.New(80, 24),
		migrate:   migrate.New(80),
		palette:   command.New(80),
		spinner:   sp,
		changes:   changes,
		stopWatch: stop,
	}
	m.today.SetData(m.snapshot())
	return m
}

// Init starts the background jobs and begins listening for changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.waitForChange(),
		m.ws.Scheduler.Start(),
		m.spinner.Tick,
	)
}

func (m Model) waitForChange() tea.Cmd {
	ch := m.changes
	return func() tea.Msg {
		<-ch
		return changedMsg{}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.today.SetSize(w, h)
		m.help.SetSize(w, h)
		m.form.SetSize(w, h)
		m.migrate.SetWidth(w)
		m.palette.SetWidth(w)
		return m.updateActiveView(msg)

	case changedMsg:
		m.today.SetData(m.snapshot())
		cmds := []tea.Cmd{m.waitForChange()}
		if cmd := m.offerMigration(); cmd != nil {
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case scheduler.ResultMsg:
		if msg.Error != nil {
			m.status = fmt.Sprintf("%s failed", msg.Job)
		}
		return m, m.ws.Scheduler.WaitForResult()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case opDoneMsg:
		m.inFlight = max(m.inFlight-1, 0)
		m.lastErr = msg.err
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.what, msg.err)
		} else {
			m.status = msg.what
		}
		m.today.SetData(m.snapshot())
		return m, nil

	case taskform.SubmittedMsg:
		m.view = ViewToday
		cmd := m.addTask(msg.Task)
		return m, cmd

	case taskform.CancelledMsg:
		m.view = ViewToday
		return m, nil

	case migrate.ConfirmedMsg:
		m.view = ViewToday
		if !msg.Migrate {
			m.status = "local data kept on this device"
			return m, nil
		}
		cmd := m.migrateLocalData(msg.Clear)
		return m, cmd

	case command.CommandMsg:
		m.view = ViewToday
		return m.executeCommand(msg.Command)

	case command.ClosedMsg:
		m.view = ViewToday
		return m, nil

	case tea.KeyMsg:
		if m.view == ViewTaskForm || m.view == ViewMigrate || m.view == ViewCommand {
			return m.updateActiveView(msg)
		}
		return m.handleKey(msg)
	}

	return m.updateActiveView(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.stopWatch()
		m.ws.Scheduler.Stop()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		if m.view == ViewHelp {
			m.view = ViewToday
		} else {
			m.view = ViewHelp
		}
		return m, nil

	case key.Matches(msg, m.keys.Back):
		m.view = ViewToday
		return m, nil
	}

	if m.view != ViewToday {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Down):
		m.today.Move(1)
	case key.Matches(msg, m.keys.Up):
		m.today.Move(-1)
	case key.Matches(msg, m.keys.NextPanel):
		m.today.NextPanel()

	case key.Matches(msg, m.keys.Add):
		m.view = ViewTaskForm
		cmd := m.form.Start(model.DateOf(m.ws.Now()))
		return m, cmd

	case key.Matches(msg, m.keys.Command):
		m.view = ViewCommand
		cmd := m.palette.Open()
		return m, cmd

	case key.Matches(msg, m.keys.Refresh):
		m.refresh()

	case key.Matches(msg, m.keys.Migrate):
		cmd := m.requestMigration()
		return m, cmd

	default:
		cmd := m.panelAction(msg)
		return m, cmd
	}
	return m, nil
}

// panelAction applies a key to the item under the cursor in the focused
// panel.
func (m *Model) panelAction(msg tea.KeyMsg) tea.Cmd {
	switch m.today.Focus() {
	case today.PanelTasks:
		t, ok := m.today.SelectedTask()
		if !ok {
			return nil
		}
		switch {
		case key.Matches(msg, m.keys.Toggle):
			return m.toggleTask(t)
		case key.Matches(msg, m.keys.Delete):
			return m.deleteTask(t)
		}

	case today.PanelGoals:
		g, ok := m.today.SelectedGoal()
		if !ok {
			return nil
		}
		switch {
		case key.Matches(msg, m.keys.ProgressUp):
			return m.setGoalProgress(g, g.Progress+10)
		case key.Matches(msg, m.keys.ProgressDown):
			return m.setGoalProgress(g, g.Progress-10)
		case key.Matches(msg, m.keys.Delete):
			return m.deleteGoal(g)
		}

	case today.PanelReminders:
		r, ok := m.today.SelectedReminder()
		if !ok {
			return nil
		}
		switch {
		case key.Matches(msg, m.keys.Acknowledge):
			return m.reminderAction("acknowledged", func() error { return m.ws.Reminders.Acknowledge(r.ID) })
		case key.Matches(msg, m.keys.Snooze):
			until := m.ws.Now().Add(snoozeFor)
			return m.reminderAction("snoozed", func() error { return m.ws.Reminders.Snooze(r.ID, until) })
		case key.Matches(msg, m.keys.Dismiss):
			return m.reminderAction("dismissed", func() error { return m.ws.Reminders.Dismiss(r.ID) })
		}

	case today.PanelSuggestions:
		s, ok := m.today.SelectedSuggestion()
		if ok && (key.Matches(msg, m.keys.Dismiss) || key.Matches(msg, m.keys.Acknowledge)) {
			if m.ws.DismissSuggestion(s.ID) {
				m.today.SetData(m.snapshot())
			}
		}
	}
	return nil
}

// executeCommand runs a palette command.
func (m Model) executeCommand(c command.Command) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch c.Kind {
	case command.KindQuit:
		m.stopWatch()
		m.ws.Scheduler.Stop()
		return m, tea.Quit
	case command.KindRefresh:
		m.refresh()
	case command.KindMigrate:
		cmd = m.requestMigration()
	case command.KindAddTask:
		cmd = m.addTask(c.Task)
	case command.KindAddGoal:
		cmd = m.addGoal(c.Goal)
	case command.KindAddRoutine:
		cmd = m.addRoutine(c.Routine)
	case command.KindAddNote:
		cmd = m.addResource(c.Resource)
	case command.KindSnooze:
		r, ok := m.today.SelectedReminder()
		if !ok {
			m.status = "select a reminder to snooze"
			return m, nil
		}
		until := m.ws.Now().Add(c.Snooze)
		cmd = m.reminderAction("snoozed", func() error { return m.ws.Reminders.Snooze(r.ID, until) })
	}
	return m, cmd
}

func (m *Model) refresh() {
	for _, name := range []string{workspace.JobBackendHealth, workspace.JobReminders, workspace.JobSuggestions} {
		m.ws.Scheduler.Trigger(name)
	}
	m.status = "refreshing"
}

// requestMigration reopens the migration prompt on demand.
func (m *Model) requestMigration() tea.Cmd {
	m.migrationOffered = false
	if cmd := m.offerMigration(); cmd != nil {
		return cmd
	}
	m.status = "nothing to migrate"
	return nil
}

// offerMigration opens the migration prompt once per session when signed
// in with data still held only on this device.
func (m *Model) offerMigration() tea.Cmd {
	if m.migrationOffered || m.view != ViewToday || !m.ws.NeedsMigration() {
		return nil
	}
	m.migrationOffered = true
	m.view = ViewMigrate

	email := ""
	if u := m.ws.Auth().Current().User; u != nil {
		email = u.Email
	}
	return m.migrate.Start(m.ws.Migrator.LocalCount(), email)
}

func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case ViewTaskForm:
		m.form, cmd = m.form.Update(msg)
	case ViewMigrate:
		m.migrate, cmd = m.migrate.Update(msg)
	case ViewCommand:
		m.palette, cmd = m.palette.Update(msg)
	}
	return m, cmd
}

// snapshot gathers what the dashboard shows, reading through the
// optimistic views so pending writes are visible.
func (m Model) snapshot() today.Data {
	tasks := m.ws.TaskView.Items()
	slices.SortStableFunc(tasks, func(a, b model.Task) int {
		switch {
		case a.Completed == b.Completed:
			return 0
		case a.Completed:
			return 1
		default:
			return -1
		}
	})

	pending := make(map[string]bool)
	for _, p := range m.ws.TaskView.Engine().Pending() {
		pending[p.EntityID()] = true
	}
	for _, p := range m.ws.GoalView.Engine().Pending() {
		pending[p.EntityID()] = true
	}

	now := m.ws.Now()
	return today.Data{
		Now:       now,
		Tasks:     tasks,
		Goals:     m.ws.GoalView.Items(),
		Reminders: m.ws.Reminders.Due(now),
		Summary:   m.ws.Today(),
		Pending:   pending,
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := m.layout.RenderHeader("Chronicle", m.syncStatus())
	return m.layout.RenderWithFrame(header, m.renderContent(), m.layout.RenderStatusBar(m.hints()))
}

func (m Model) renderContent() string {
	switch m.view {
	case ViewHelp:
		return m.help.View()
	case ViewTaskForm:
		return m.form.View()
	case ViewMigrate:
		return m.migrate.View()
	case ViewCommand:
		return lipgloss.JoinVertical(lipgloss.Left, m.palette.View(), m.today.View())
	default:
		return m.today.View()
	}
}

// syncStatus describes the storage mode and outstanding work.
func (m Model) syncStatus() string {
	mode := m.ws.Mode()
	label := "on this device"
	if mode == hybrid.Remote {
		label = "synced"
		if u := m.ws.Auth().Current().User; u != nil && u.Email != "" {
			label = "synced as " + u.Email
		}
	}
	badge := theme.ModeStyle(mode == hybrid.Remote).Render(label)

	loading := m.ws.Tasks.IsLoading() || m.ws.Goals.IsLoading()
	if m.inFlight > 0 || loading {
		return m.spinner.View() + " saving " + badge
	}
	if err := m.ws.Tasks.Err(); err != nil {
		return theme.ErrorStyle.Render("⚠ stale") + " " + badge
	}
	return badge
}

func (m Model) hints() string {
	switch m.view {
	case ViewHelp:
		return "? close help | esc back"
	case ViewTaskForm, ViewMigrate, ViewCommand:
		return "enter submit | esc cancel"
	}
	if m.status != "" {
		if m.lastErr != nil {
			return theme.ErrorStyle.Render(m.status)
		}
		return m.status + " | ? help"
	}
	return m.help.ShortView()
}
