package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var levels = []string{"▁", "▂", "▃", "▄", "▅", "▆", "▇", "█"}

// Point is one sparkline sample. Failed samples render in FailStyle.
type Point struct {
	Value  int64
	Failed bool
}

// Sparkline is a one-row scrolling chart of per-attempt latency.
type Sparkline struct {
	Data      []Point
	Width     int
	Label     string
	Style     lipgloss.Style
	FailStyle lipgloss.Style
}

func NewSparkline(width int, label string, style, failStyle lipgloss.Style) Sparkline {
	return Sparkline{
		Width:     width,
		Label:     label,
		Style:     style,
		FailStyle: failStyle,
		Data:      make([]Point, 0, width),
	}
}

// Add appends a sample, dropping the oldest once the window is full.
func (s *Sparkline) Add(p Point) {
	s.Data = append(s.Data, p)
	if s.Width > 0 && len(s.Data) > s.Width {
		s.Data = s.Data[len(s.Data)-s.Width:]
	}
}

// Max is the largest value in the visible window.
func (s Sparkline) Max() int64 {
	var m int64
	for _, p := range s.Data {
		if p.Value > m {
			m = p.Value
		}
	}
	return m
}

// Level maps v onto a bar index for the window maximum m.
func Level(v, m int64) int {
	if m <= 0 || v <= 0 {
		return 0
	}
	idx := int(float64(v) / float64(m) * float64(len(levels)-1))
	if idx >= len(levels) {
		idx = len(levels) - 1
	}
	return idx
}

func (s Sparkline) View() string {
	if s.Width <= 0 {
		return ""
	}

	var out strings.Builder
	out.WriteString(s.Style.Render(s.Label))
	out.WriteString("\n")

	m := s.Max()
	for _, p := range s.Data {
		bar := levels[Level(p.Value, m)]
		if p.Failed {
			out.WriteString(s.FailStyle.Render(bar))
		} else {
			out.WriteString(s.Style.Render(bar))
		}
	}
	if pad := s.Width - len(s.Data); pad > 0 {
		out.WriteString(strings.Repeat(" ", pad))
	}
	return out.String()
}
