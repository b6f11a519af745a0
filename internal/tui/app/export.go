package app

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"poolprobe/internal/analyze"
	"poolprobe/internal/export"
	"poolprobe/internal/runner"
)

// ExportBase names a timestamped export prefix for a sweep id.
func ExportBase(kind, id string, now time.Time) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("poolprobe_%s_%s_%s", kind, id, now.Format("20060102-150405"))
}

// ExportSweep writes results, CSV and report files next to base and returns
// the paths written.
func ExportSweep(base string, sw *runner.Sweep, rep analyze.Report) ([]string, error) {
	return export.Outputs{
		Results: base + ".json",
		CSV:     base + ".csv",
		Report:  base + ".report.json",
	}.Write(sw, rep)
}

func (m Model) export() (tea.Model, tea.Cmd) {
	var (
		sw   *runner.Sweep
		rep  analyze.Report
		kind string
	)

	switch m.CurrentView {
	case ViewHistory:
		rec := m.HistoryView.GetSelectedItem()
		if rec == nil {
			m.StatusMsg = "No history entry selected."
			return m, clearStatusCmd()
		}
		sw, rep, kind = rec.Sweep(), rec.Report, "history"
	default:
		if m.LastSweep == nil || m.LastReport == nil {
			m.StatusMsg = "No results to export yet."
			return m, clearStatusCmd()
		}
		sw, rep, kind = m.LastSweep, *m.LastReport, "sweep"
	}

	written, err := ExportSweep(ExportBase(kind, sw.ID, time.Now()), sw, rep)
	if err != nil {
		m.StatusMsg = fmt.Sprintf("Export Failed: %v", err)
	} else {
		m.StatusMsg = "Exported " + strings.Join(written, ", ")
	}
	return m, clearStatusCmd()
}
