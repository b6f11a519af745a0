package views

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"poolprobe/internal/errors"
	"poolprobe/internal/runner"
	"poolprobe/internal/tui/styles"
)

// Each pattern row owns three inputs: enabled toggle, count, wait.
const (
	colEnabled = iota
	colCount
	colWait
	colsPerRow
)

// PlanView edits the sweep plan before a run.
type PlanView struct {
	Patterns []runner.Pattern
	Inputs   []textinput.Model
	Focus    int
	BaseURL  string

	Viewport viewport.Model

	Width  int
	Height int
}

func NewPlanView(plan []runner.Pattern, baseURL string) PlanView {
	if len(plan) == 0 {
		plan = runner.DefaultPlan()
	}
	inputs := make([]textinput.Model, len(plan)*colsPerRow)
	for i := range inputs {
		inputs[i] = textinput.New()
		inputs[i].PromptStyle = styles.Subtle
		inputs[i].TextStyle = styles.Subtle
		inputs[i].Width = 10
	}

	for i, p := range plan {
		base := i * colsPerRow

		inputs[base+colEnabled].Prompt = ""
		inputs[base+colEnabled].SetValue("on")
		inputs[base+colEnabled].Width = 3

		inputs[base+colCount].Prompt = "count: "
		inputs[base+colCount].SetValue(strconv.Itoa(p.Count))
		inputs[base+colCount].Width = 4

		wait := inputs[base+colWait]
		switch p.Mode {
		case runner.ModeJitter:
			wait.Prompt = "jitter ms: "
			wait.SetValue(fmt.Sprintf("%d-%d", p.JitterMin.Milliseconds(), p.JitterMax.Milliseconds()))
		case runner.ModeConcurrent:
			wait.Prompt = "concurrent"
		default:
			wait.Prompt = "delay ms: "
			wait.SetValue(strconv.FormatInt(p.Delay.Milliseconds(), 10))
		}
		inputs[base+colWait] = wait
	}

	m := PlanView{
		Patterns: plan,
		Inputs:   inputs,
		BaseURL:  baseURL,
		Viewport: viewport.New(0, 0),
	}
	m, _ = m.focusCmd()
	return m
}

func (m PlanView) Init() tea.Cmd {
	return textinput.Blink
}

// editable reports whether field i takes focus. Concurrent rows have no wait.
func (m PlanView) editable(i int) bool {
	if i%colsPerRow != colWait {
		return true
	}
	return m.Patterns[i/colsPerRow].Mode != runner.ModeConcurrent
}

func (m PlanView) nextFocus(dir int) int {
	n := len(m.Inputs)
	next := m.Focus
	for range n {
		next = (next + dir + n) % n
		if m.editable(next) {
			return next
		}
	}
	return m.Focus
}

func (m PlanView) Update(msg tea.Msg) (PlanView, tea.Cmd) {
	var cmds []tea.Cmd
	dir := 0

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "tab", "down", "enter":
			dir = 1
		case "shift+tab", "up":
			dir = -1
		case " ":
			if m.Focus%colsPerRow == colEnabled {
				in := &m.Inputs[m.Focus]
				if in.Value() == "on" {
					in.SetValue("off")
				} else {
					in.SetValue("on")
				}
				return m, nil
			}
		}
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Viewport.Width = msg.Width - 4
		m.Viewport.Height = msg.Height - 8
	}

	if dir != 0 {
		m.Focus = m.nextFocus(dir)
		var cmd tea.Cmd
		m, cmd = m.focusCmd()
		cmds = append(cmds, cmd)
	} else if m.Focus%colsPerRow != colEnabled {
		var cmd tea.Cmd
		m.Inputs[m.Focus], cmd = m.Inputs[m.Focus].Update(msg)
		cmds = append(cmds, cmd)
	}

	var vpCmd tea.Cmd
	m.Viewport, vpCmd = m.Viewport.Update(msg)
	cmds = append(cmds, vpCmd)

	return m, tea.Batch(cmds...)
}

func (m PlanView) focusCmd() (PlanView, tea.Cmd) {
	var cmd tea.Cmd
	for i := range m.Inputs {
		if i == m.Focus {
			cmd = m.Inputs[i].Focus()
			m.Inputs[i].PromptStyle = styles.Active
			m.Inputs[i].TextStyle = styles.Text
			continue
		}
		m.Inputs[i].Blur()
		m.Inputs[i].PromptStyle = styles.Subtle
		m.Inputs[i].TextStyle = styles.Subtle
	}
	return m, cmd
}

// GetHelp describes the focused field.
func (m PlanView) GetHelp() string {
	p := m.Patterns[m.Focus/colsPerRow]
	switch m.Focus % colsPerRow {
	case colEnabled:
		return "Include this pattern in the sweep.\n\nPress [Space] to toggle."
	case colCount:
		if p.Mode == runner.ModeConcurrent {
			return "Number of transactions started at once.\nAll of them share one session token."
		}
		return "Number of transactions sent one after another."
	case colWait:
		if p.Mode == runner.ModeJitter {
			return "Random wait between attempts.\nFormat: min-max in milliseconds.\nExample: 100-1000"
		}
		return "Fixed wait between attempts in milliseconds.\n0 sends back to back."
	}
	return ""
}

func (m PlanView) View() string {
	rows := strings.Builder{}
	rows.WriteString(styles.Title.Render("Sweep Plan"))
	rows.WriteString("\n")
	rows.WriteString(styles.Subtle.Render("Target: " + m.BaseURL))
	rows.WriteString("\n\n")

	for i, p := range m.Patterns {
		base := i * colsPerRow
		name := styles.Text.Render(fmt.Sprintf("%-16s", p.Name))
		if m.Inputs[base+colEnabled].Value() != "on" {
			name = styles.Subtle.Strikethrough(true).Render(fmt.Sprintf("%-16s", p.Name))
		}
		toggle := m.renderToggle(base + colEnabled)
		rows.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			toggle, " ", name, "  ",
			m.Inputs[base+colCount].View(), "  ",
			m.Inputs[base+colWait].View(),
		))
		rows.WriteString("\n")
	}

	helpBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.ColorBorder).
		Padding(1, 2).
		Width(45)

	help := styles.Subtle.Bold(true).Render("Information") + "\n\n" +
		styles.Text.Foreground(styles.ColorSecondary).Render(m.GetHelp())

	mainRow := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(70).Render(rows.String()),
		helpBox.Render(help),
	)
	m.Viewport.SetContent(mainRow)
	return m.Viewport.View()
}

func (m PlanView) renderToggle(i int) string {
	mark := "[ ]"
	if m.Inputs[i].Value() == "on" {
		mark = "[x]"
	}
	if i == m.Focus {
		return styles.Active.Render(mark)
	}
	return styles.Subtle.Render(mark)
}

// GetPlan reads the edited plan. Disabled rows are dropped and every kept
// pattern is validated.
func (m PlanView) GetPlan() ([]runner.Pattern, error) {
	var plan []runner.Pattern
	for i, p := range m.Patterns {
		base := i * colsPerRow
		if m.Inputs[base+colEnabled].Value() != "on" {
			continue
		}

		count, err := strconv.Atoi(strings.TrimSpace(m.Inputs[base+colCount].Value()))
		if err != nil {
			return nil, errors.Mark(errors.ErrConfigInvalid, fmt.Errorf("%s count: %w", p.Name, err))
		}
		p.Count = count

		wait := strings.TrimSpace(m.Inputs[base+colWait].Value())
		switch p.Mode {
		case runner.ModeJitter:
			lo, hi, ok := strings.Cut(wait, "-")
			minMs, err1 := strconv.Atoi(strings.TrimSpace(lo))
			maxMs, err2 := strconv.Atoi(strings.TrimSpace(hi))
			if !ok || err1 != nil || err2 != nil {
				return nil, fmt.Errorf("%w: %s jitter %q is not min-max", errors.ErrConfigInvalid, p.Name, wait)
			}
			p.JitterMin = time.Duration(minMs) * time.Millisecond
			p.JitterMax = time.Duration(maxMs) * time.Millisecond
		case runner.ModeFixedDelay:
			ms, err := strconv.Atoi(wait)
			if err != nil {
				return nil, errors.Mark(errors.ErrConfigInvalid, fmt.Errorf("%s delay: %w", p.Name, err))
			}
			p.Delay = time.Duration(ms) * time.Millisecond
		}

		if err := p.Validate(); err != nil {
			return nil, err
		}
		plan = append(plan, p)
	}
	if len(plan) == 0 {
		return nil, fmt.Errorf("%w: no patterns enabled", errors.ErrConfigInvalid)
	}
	return plan, nil
}
