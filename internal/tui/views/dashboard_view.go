package views

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"poolprobe/internal/erp"
	"poolprobe/internal/runner"
	"poolprobe/internal/stats"
	"poolprobe/internal/tui/components"
	"poolprobe/internal/tui/styles"
)

const recentLines = 8

// Phase labels shown in the dashboard header.
const (
	PhaseBootstrap = "Authenticating"
	PhaseRunning   = "Running"
	PhaseSettling  = "Settling"
	PhaseDone      = "Done"
	PhaseStopped   = "Stopped"
)

// DashboardView follows a sweep in progress, one driver event at a time.
type DashboardView struct {
	Live     *stats.Live
	Progress progress.Model
	Latency  components.Sparkline
	Viewport viewport.Model

	BaseURL   string
	Planned   int
	Done      int
	Pattern   string
	Index     int
	Total     int
	Phase     string
	StartTime time.Time

	StatusCodes map[int]int
	Kinds       map[runner.ErrorKind]int
	Recent      []string

	Width  int
	Height int
}

func NewDashboardView(plan []runner.Pattern, baseURL string, width, height int) DashboardView {
	planned := 0
	for _, p := range plan {
		planned += p.Count
	}

	prog := progress.New(
		progress.WithGradient("#7D56F4", "#04B575"),
		progress.WithWidth(max(width-10, 10)),
		progress.WithoutPercentage(),
	)

	return DashboardView{
		Live:        stats.NewLive(),
		Progress:    prog,
		Latency:     components.NewSparkline(60, "Latency per attempt", styles.Value, styles.Error),
		Viewport:    viewport.New(max(width-6, 0), max(height-8, 0)),
		BaseURL:     baseURL,
		Planned:     planned,
		Total:       len(plan),
		Phase:       PhaseBootstrap,
		StartTime:   time.Now(),
		StatusCodes: map[int]int{},
		Kinds:       map[runner.ErrorKind]int{},
		Width:       width,
		Height:      height,
	}
}

func (m DashboardView) Init() tea.Cmd {
	return nil
}

// Apply folds one driver event into the dashboard.
func (m DashboardView) Apply(ev runner.Event) (DashboardView, tea.Cmd) {
	switch ev.Type {
	case runner.EventPatternStart:
		m.Phase = PhaseRunning
		m.Pattern = ev.Pattern.Name
		m.Index = ev.Index
		m.Total = ev.Total
	case runner.EventSettle:
		m.Phase = PhaseSettling
	case runner.EventAttempt:
		r := ev.Result
		m.Done++
		m.Live.Add(r.Success, time.Duration(r.ElapsedMs)*time.Millisecond)
		m.Latency.Add(components.Point{Value: r.ElapsedMs, Failed: !r.Success})
		m.StatusCodes[r.StatusCode]++
		if !r.Success {
			m.Kinds[r.ErrorType]++
		}
		m.Recent = append(m.Recent, m.attemptLine(ev.Pattern.Name, r))
		if len(m.Recent) > recentLines {
			m.Recent = m.Recent[len(m.Recent)-recentLines:]
		}
		pct := 0.0
		if m.Planned > 0 {
			pct = min(float64(m.Done)/float64(m.Planned), 1.0)
		}
		cmd := m.Progress.SetPercent(pct)
		return m, cmd
	}
	return m, nil
}

func (m DashboardView) attemptLine(pattern string, r runner.AttemptResult) string {
	status := styles.Success.Render(r.Status())
	detail := r.Preview
	if !r.Success {
		status = styles.Error.Render(r.Status())
		detail = fmt.Sprintf("%s: %s", r.ErrorType, r.ErrorMessage)
	}
	return fmt.Sprintf("%-15s [%2d] %s %5dms  %s", pattern, r.Attempt, status, r.ElapsedMs, erp.Truncate(detail, 60))
}

func (m DashboardView) Update(msg tea.Msg) (DashboardView, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = max(msg.Width-10, 10)
		m.Viewport.Width = msg.Width - 6
		m.Viewport.Height = msg.Height - 8

	case progress.FrameMsg:
		newModel, cmd := m.Progress.Update(msg)
		if newModel, ok := newModel.(progress.Model); ok {
			m.Progress = newModel
		}
		cmds = append(cmds, cmd)
	}

	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m DashboardView) View() string {
	s := strings.Builder{}
	snap := m.Live.Snapshot()

	elapsed := time.Since(m.StartTime).Round(time.Second)
	current := "-"
	if m.Pattern != "" {
		current = fmt.Sprintf("%s (%d/%d)", m.Pattern, m.Index+1, m.Total)
	}
	header := lipgloss.JoinHorizontal(lipgloss.Center,
		styles.Title.Render("Probing "+m.BaseURL),
		lipgloss.NewStyle().MarginLeft(2).Foreground(styles.ColorSubtle).Render(elapsed.String()),
		lipgloss.NewStyle().MarginLeft(4).Foreground(styles.ColorPrimary).Bold(true).Render("["+m.Phase+"]"),
	)
	s.WriteString(header)
	s.WriteString("\n\n")

	s.WriteString(m.Progress.View())
	s.WriteString(styles.Subtle.Render(fmt.Sprintf("  %d/%d  pattern %s", m.Done, m.Planned, current)))
	s.WriteString("\n\n")

	failStyle := styles.Text
	if snap.Fail > 0 {
		failStyle = styles.Error
	}
	row1 := lipgloss.JoinHorizontal(lipgloss.Top,
		MakeCard("Requests", styles.Value.Render(fmt.Sprintf("%d", snap.Requests))),
		MakeCard("OK", styles.Success.Render(fmt.Sprintf("%d", snap.Success))),
		MakeCard("Failed", failStyle.Render(fmt.Sprintf("%d", snap.Fail))),
		MakeCard("Error Rate", failStyle.Render(fmt.Sprintf("%.1f%%", m.Live.ErrorRate()))),
	)
	row2 := lipgloss.JoinHorizontal(lipgloss.Top,
		MakeCard("P50 Latency", styles.Text.Render(fmt.Sprintf("%.0f ms", snap.Latency.P50Ms))),
		MakeCard("P90 Latency", styles.Text.Render(fmt.Sprintf("%.0f ms", snap.Latency.P90Ms))),
		MakeCard("P99 Latency", styles.Warn.Render(fmt.Sprintf("%.0f ms", snap.Latency.P99Ms))),
		MakeCard("Max Latency", styles.Error.Render(fmt.Sprintf("%.0f ms", snap.Latency.MaxMs))),
	)
	s.WriteString(row1 + "\n" + row2 + "\n\n")

	s.WriteString(m.Latency.View())
	s.WriteString("\n\n")

	if len(m.StatusCodes) > 0 {
		s.WriteString(styles.Subtle.Render("Response Breakdown"))
		s.WriteString("\n")
		s.WriteString(m.codeBars())
	}

	if len(m.Kinds) > 0 {
		s.WriteString("\n")
		s.WriteString(styles.Subtle.Render("Failure Kinds"))
		s.WriteString("\n")
		kinds := make([]string, 0, len(m.Kinds))
		for k := range m.Kinds {
			kinds = append(kinds, string(k))
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Fprintf(&s, "%s %s\n", styles.Error.Render(fmt.Sprintf("%d x", m.Kinds[runner.ErrorKind(k)])), k)
		}
	}

	if len(m.Recent) > 0 {
		s.WriteString("\n")
		s.WriteString(styles.Subtle.Render("Recent Attempts"))
		s.WriteString("\n")
		s.WriteString(strings.Join(m.Recent, "\n"))
		s.WriteString("\n")
	}

	content := styles.Panel.Width(max(m.Width-6, 0)).Render(s.String())
	m.Viewport.SetContent(content)
	return m.Viewport.View()
}

func (m DashboardView) codeBars() string {
	codes := make([]int, 0, len(m.StatusCodes))
	maxCount := 0
	for c, n := range m.StatusCodes {
		codes = append(codes, c)
		maxCount = max(maxCount, n)
	}
	sort.Ints(codes)

	const barWidth = 30
	var b strings.Builder
	for _, c := range codes {
		n := m.StatusCodes[c]
		bar := strings.Repeat("█", n*barWidth/maxCount)

		label := fmt.Sprintf("%d", c)
		color := styles.Value
		switch {
		case c == 0:
			label = "ERR"
			color = styles.Error
		case c >= 500:
			color = styles.Error
		case c >= 400:
			color = styles.Warn
		}
		fmt.Fprintf(&b, "%3s : %s %d\n", label, color.Render(bar), n)
	}
	return b.String()
}

func MakeCard(title, value string) string {
	return styles.Box.Width(18).Align(lipgloss.Center).Render(
		fmt.Sprintf("%s\n%s", styles.Subtle.Render(title), value),
	)
}
