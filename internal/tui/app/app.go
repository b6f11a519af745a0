package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"poolprobe/internal/analyze"
	"poolprobe/internal/config"
	"poolprobe/internal/errors"
	"poolprobe/internal/export"
	"poolprobe/internal/runner"
	"poolprobe/internal/storage"
	"poolprobe/internal/tui/styles"
	"poolprobe/internal/tui/views"
)

type ClearStatusMsg struct{}

func clearStatusCmd() tea.Cmd {
	return tea.Tick(3*time.Second, func(_ time.Time) tea.Msg {
		return ClearStatusMsg{}
	})
}

// View Enum
type ViewID int

const (
	ViewPlan ViewID = iota
	ViewDashboard
	ViewReport
	ViewHistory
)

// EventMsg carries one driver event into the program.
type EventMsg runner.Event

// SweepDoneMsg ends a sweep. Sweep is nil when bootstrap failed.
type SweepDoneMsg struct {
	Sweep *runner.Sweep
	Err   error
}

// Options wires the TUI to configuration and persistence.
type Options struct {
	Config  *config.Config
	Plan    []runner.Pattern
	Store   *storage.Store
	Outputs export.Outputs
	Seed    int64
	// AutoStart begins the sweep as soon as the program starts.
	AutoStart bool
	Logger    zerolog.Logger
}

type Model struct {
	opts Options

	// Core State
	RunActive bool
	RunCancel context.CancelFunc
	msgs      chan tea.Msg

	LastSweep  *runner.Sweep
	LastReport *analyze.Report

	// Layout
	Width  int
	Height int

	CurrentView ViewID
	MenuItems   []string

	PlanView    views.PlanView
	DashView    views.DashboardView
	ReportView  views.ReportView
	HistoryView views.HistoryView

	// Feedback
	StatusMsg string
}

func NewModel(opts Options) Model {
	return Model{
		opts:        opts,
		CurrentView: ViewPlan,
		MenuItems:   []string{"[1] Plan", "[2] Dashboard", "[3] Report", "[4] History"},
		PlanView:    views.NewPlanView(opts.Plan, opts.Config.BaseURL),
		DashView:    views.NewDashboardView(opts.Plan, opts.Config.BaseURL, 0, 0),
		ReportView:  views.NewReportView(nil, nil, 0, 0),
		HistoryView: views.NewHistoryView(opts.Store),
	}
}

// autoStartMsg triggers the first run once the program loop is up.
type autoStartMsg struct{}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.PlanView.Init()}
	if m.opts.AutoStart {
		cmds = append(cmds, func() tea.Msg { return autoStartMsg{} })
	}
	return tea.Batch(cmds...)
}

func listen(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case ClearStatusMsg:
		m.StatusMsg = ""
		return m, nil

	case autoStartMsg:
		cmd := m.startFromPlan()
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+q":
			if m.RunCancel != nil {
				m.RunCancel()
			}
			return m, tea.Quit

		case "ctrl+right":
			m.CurrentView++
			if m.CurrentView > ViewHistory {
				m.CurrentView = ViewPlan
			}
			if m.CurrentView == ViewHistory {
				m.HistoryView.Refresh()
			}
			return m, nil
		case "ctrl+left":
			m.CurrentView--
			if m.CurrentView < ViewPlan {
				m.CurrentView = ViewHistory
			}
			if m.CurrentView == ViewHistory {
				m.HistoryView.Refresh()
			}
			return m, nil

		case "ctrl+r":
			if m.RunActive {
				m.StatusMsg = "A sweep is already running."
				return m, clearStatusCmd()
			}
			cmd := m.startFromPlan()
			return m, cmd

		case "ctrl+s":
			if m.RunActive && m.RunCancel != nil {
				m.RunCancel()
				m.StatusMsg = "Stopping sweep..."
			}
			return m, nil

		case "ctrl+p":
			return m.export()
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		content := tea.WindowSizeMsg{Width: msg.Width, Height: m.Height - 7}

		m.PlanView, _ = m.PlanView.Update(content)
		m.DashView, _ = m.DashView.Update(content)
		m.ReportView, _ = m.ReportView.Update(content)
		m.HistoryView, _ = m.HistoryView.Update(content)
		return m, nil

	case EventMsg:
		var c tea.Cmd
		m.DashView, c = m.DashView.Apply(runner.Event(msg))
		return m, tea.Batch(c, listen(m.msgs))

	case SweepDoneMsg:
		return m.finish(msg)
	}

	var defaultCmd tea.Cmd
	switch m.CurrentView {
	case ViewPlan:
		m.PlanView, defaultCmd = m.PlanView.Update(msg)
	case ViewDashboard:
		m.DashView, defaultCmd = m.DashView.Update(msg)
	case ViewReport:
		m.ReportView, defaultCmd = m.ReportView.Update(msg)
	case ViewHistory:
		m.HistoryView, defaultCmd = m.HistoryView.Update(msg)
		if rec := m.HistoryView.Selected; rec != nil {
			m.HistoryView.Selected = nil
			rep := rec.Report
			m.ReportView = views.NewReportView(&rep, nil, m.Width, m.Height-7)
			m.CurrentView = ViewReport
		}
	}
	// Progress frames keep animating while another view is shown.
	if _, ok := msg.(progress.FrameMsg); ok && m.CurrentView != ViewDashboard {
		var c tea.Cmd
		m.DashView, c = m.DashView.Update(msg)
		cmds = append(cmds, c)
	}
	cmds = append(cmds, defaultCmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) startFromPlan() tea.Cmd {
	plan, err := m.PlanView.GetPlan()
	if err != nil {
		m.StatusMsg = fmt.Sprintf("Invalid plan: %v", err)
		m.CurrentView = ViewPlan
		return clearStatusCmd()
	}
	return m.startRun(plan)
}

// startRun launches the sweep in its own goroutine. Driver events and the
// final result are funneled through one channel that listen drains.
func (m *Model) startRun(plan []runner.Pattern) tea.Cmd {
	cfg := m.opts.Config
	ctx, cancel := context.WithCancel(context.Background())
	m.RunCancel = cancel
	m.RunActive = true
	m.msgs = make(chan tea.Msg, 64)

	m.DashView = views.NewDashboardView(plan, cfg.BaseURL, m.Width, m.Height-7)
	m.CurrentView = ViewDashboard

	d := runner.NewDriverFromConfig(cfg, m.opts.Logger)
	if m.opts.Seed != 0 {
		d.Seed(m.opts.Seed)
	}
	msgs := m.msgs
	d.OnEvent = func(ev runner.Event) {
		select {
		case msgs <- EventMsg(ev):
		case <-ctx.Done():
		}
	}

	go func() {
		sw, err := d.Sweep(ctx, cfg.BaseURL, plan)
		msgs <- SweepDoneMsg{Sweep: sw, Err: err}
	}()

	return listen(msgs)
}

// finish analyzes and persists the sweep the same way the headless runner
// does, then switches to the report.
func (m Model) finish(msg SweepDoneMsg) (tea.Model, tea.Cmd) {
	m.RunActive = false
	if m.RunCancel != nil {
		m.RunCancel()
		m.RunCancel = nil
	}
	log := m.opts.Logger

	if msg.Sweep == nil {
		m.DashView.Phase = views.PhaseStopped
		m.StatusMsg = fmt.Sprintf("Sweep failed: %v", msg.Err)
		log.Error().Err(msg.Err).Msg("sweep did not start")
		return m, nil
	}

	m.DashView.Phase = views.PhaseDone
	var notes []string
	if errors.Is(msg.Err, context.Canceled) {
		m.DashView.Phase = views.PhaseStopped
		notes = append(notes, "Sweep stopped early; partial results kept.")
	}

	rep := analyze.Analyze(msg.Sweep)
	m.LastSweep = msg.Sweep
	m.LastReport = &rep

	written, err := m.opts.Outputs.Write(msg.Sweep, rep)
	if err != nil {
		log.Error().Err(err).Msg("could not save results")
		notes = append(notes, fmt.Sprintf("Save failed: %v", err))
	}
	if m.opts.Store != nil {
		if err := m.opts.Store.Save(storage.NewRecord(msg.Sweep, rep)); err != nil {
			log.Warn().Err(err).Msg("could not record sweep history")
			notes = append(notes, fmt.Sprintf("History not saved: %v", err))
		} else {
			notes = append(notes, "History saved.")
		}
		m.HistoryView.Refresh()
	}

	m.ReportView = views.NewReportView(&rep, written, m.Width, m.Height-7)
	m.CurrentView = ViewReport
	m.StatusMsg = strings.Join(notes, " ")
	return m, clearStatusCmd()
}

func (m Model) View() string {
	if m.Width == 0 {
		return "Loading..."
	}

	active := lipgloss.NewStyle().Foreground(styles.ColorText).Background(styles.ColorPrimary).Bold(true).Padding(0, 1)
	inactive := lipgloss.NewStyle().Foreground(styles.ColorSubtle).Padding(0, 1)
	nav := strings.Builder{}
	for i, item := range m.MenuItems {
		if ViewID(i) == m.CurrentView {
			nav.WriteString(active.Render(item))
		} else {
			nav.WriteString(inactive.Render(item))
		}
	}
	navBar := styles.FooterBase.Width(m.Width).Render(nav.String())

	contentStr := ""
	switch m.CurrentView {
	case ViewPlan:
		contentStr = m.PlanView.View()
	case ViewDashboard:
		contentStr = m.DashView.View()
	case ViewReport:
		contentStr = m.ReportView.View()
	case ViewHistory:
		contentStr = m.HistoryView.View()
	}
	content := styles.Panel.Width(m.Width - 2).Height(m.Height - 6).Render(contentStr)

	keys1 := []string{
		styles.RenderKey("Ctrl+<->", "View"),
		styles.RenderKey("Tab", "Field"),
		styles.RenderKey("Space", "Toggle"),
	}
	keys2 := []string{
		styles.RenderKey("Ctrl+R", "Run"),
		styles.RenderKey("Ctrl+S", "Stop"),
		styles.RenderKey("Ctrl+P", "Export"),
		styles.RenderKey("Ctrl+Q", "Quit"),
	}
	helpRow1 := styles.FooterBase.Width(m.Width).Render(strings.Join(keys1, "   "))
	helpRow2 := styles.FooterBase.Width(m.Width).Render(strings.Join(keys2, "   "))
	footer := lipgloss.JoinVertical(lipgloss.Left, helpRow1, helpRow2)

	if m.StatusMsg != "" {
		status := styles.Box.BorderForeground(styles.ColorWarning).Render(m.StatusMsg)
		return lipgloss.JoinVertical(lipgloss.Left, navBar, content, status, footer)
	}
	return lipgloss.JoinVertical(lipgloss.Left, navBar, content, footer)
}
