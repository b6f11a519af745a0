package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"poolprobe/internal/analyze"
	"poolprobe/internal/tui/styles"
)

// ReportView shows a finished analysis in a scrollable pane.
type ReportView struct {
	Report   *analyze.Report
	Saved    []string
	Viewport viewport.Model

	Width  int
	Height int
}

func NewReportView(rep *analyze.Report, saved []string, width, height int) ReportView {
	m := ReportView{
		Report:   rep,
		Saved:    saved,
		Viewport: viewport.New(max(width-4, 0), max(height-6, 0)),
		Width:    width,
		Height:   height,
	}
	m.Viewport.SetContent(m.body())
	return m
}

func (m ReportView) Init() tea.Cmd {
	return nil
}

func (m ReportView) Update(msg tea.Msg) (ReportView, tea.Cmd) {
	if msg, ok := msg.(tea.WindowSizeMsg); ok {
		m.Width = msg.Width
		m.Height = msg.Height
		m.Viewport.Width = msg.Width - 4
		m.Viewport.Height = msg.Height - 6
		m.Viewport.SetContent(m.body())
	}
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	return m, cmd
}

func (m ReportView) body() string {
	if m.Report == nil {
		return styles.Subtle.Render("No report yet.\nStart a sweep with Ctrl+R.")
	}
	rep := m.Report

	s := strings.Builder{}
	verdict := lipgloss.NewStyle().
		Foreground(styles.HealthColor(string(rep.Health))).
		Bold(true).
		Render(strings.ToUpper(strings.ReplaceAll(string(rep.Health), "_", " ")))

	overview := fmt.Sprintf(
		"Sweep:    %s\nServer:   %s\nRequests: %d\nFailures: %d\nSuccess:  %.1f%%",
		rep.SweepID, rep.BaseURL, rep.TotalRequests, rep.TotalFailures, rep.OverallSuccessRate*100,
	)
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Center,
		styles.Box.Render(overview),
		styles.Box.BorderForeground(styles.HealthColor(string(rep.Health))).Render(verdict),
	))
	s.WriteString("\n")
	s.WriteString(styles.Text.Render(rep.Render()))

	if len(m.Saved) > 0 {
		s.WriteString("\n")
		s.WriteString(styles.Subtle.Render("Saved: " + strings.Join(m.Saved, ", ")))
	}
	return s.String()
}

func (m ReportView) View() string {
	return m.Viewport.View()
}
