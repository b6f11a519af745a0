package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"poolprobe/internal/storage"
	"poolprobe/internal/tui/styles"
)

// HistoryView lists recorded sweeps, newest first.
type HistoryView struct {
	Store *storage.Store
	Table table.Model

	records []storage.SweepRecord
	loadErr error

	// Selected is set on Enter for the parent to open.
	Selected *storage.SweepRecord

	Width  int
	Height int
}

func NewHistoryView(store *storage.Store) HistoryView {
	columns := []table.Column{
		{Title: "Time", Width: 20},
		{Title: "Sweep", Width: 10},
		{Title: "URL", Width: 36},
		{Title: "Reqs", Width: 6},
		{Title: "Success", Width: 9},
		{Title: "P99 (ms)", Width: 10},
		{Title: "Health", Width: 22},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.ColorBorder).
		BorderBottom(true).
		Bold(true).
		Foreground(styles.ColorPrimary)
	s.Selected = s.Selected.
		Foreground(styles.ColorText).
		Background(styles.ColorPrimary).
		Bold(true)
	t.SetStyles(s)

	m := HistoryView{Store: store, Table: t}
	m.Refresh()
	return m
}

// Refresh reloads records from the store.
func (m *HistoryView) Refresh() {
	if m.Store == nil {
		return
	}
	m.records, m.loadErr = m.Store.List(0)

	rows := make([]table.Row, len(m.records))
	for i, rec := range m.records {
		sum := rec.Summary()
		id := sum.ID
		if len(id) > 8 {
			id = id[:8]
		}
		rows[i] = table.Row{
			sum.Timestamp.Local().Format("2006-01-02 15:04:05"),
			id,
			sum.BaseURL,
			fmt.Sprintf("%d", sum.TotalRequests),
			fmt.Sprintf("%.1f%%", sum.SuccessRate*100),
			fmt.Sprintf("%.0f", sum.P99LatencyMs),
			string(sum.Health),
		}
	}
	m.Table.SetRows(rows)
}

func (m HistoryView) Init() tea.Cmd {
	return nil
}

func (m HistoryView) Update(msg tea.Msg) (HistoryView, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Table.SetWidth(msg.Width - 4)
		m.Table.SetHeight(max(msg.Height-6, 3))

	case tea.KeyMsg:
		if msg.String() == "enter" {
			m.Selected = m.GetSelectedItem()
			return m, nil
		}
	}

	m.Table, cmd = m.Table.Update(msg)
	return m, cmd
}

func (m HistoryView) View() string {
	s := strings.Builder{}
	s.WriteString(styles.Title.Render("Past Sweeps"))
	s.WriteString("\n\n")

	switch {
	case m.Store == nil:
		s.WriteString(styles.Subtle.Render("History is disabled."))
	case m.loadErr != nil:
		s.WriteString(styles.Error.Render("Could not read history: " + m.loadErr.Error()))
	case len(m.records) == 0:
		s.WriteString(styles.Subtle.Render("No history found.\nRun a sweep to generate data."))
	default:
		s.WriteString(styles.Box.Render(m.Table.View()))
	}
	s.WriteString("\n\n")
	s.WriteString(styles.Subtle.Render("[Enter] Open report  [Ctrl+P] Export selected"))
	return s.String()
}

// GetSelectedItem is the record under the cursor, or nil.
func (m HistoryView) GetSelectedItem() *storage.SweepRecord {
	idx := m.Table.Cursor()
	if idx < 0 || idx >= len(m.records) {
		return nil
	}
	rec := m.records[idx]
	return &rec
}
