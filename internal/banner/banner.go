package banner

import (
	"io"

	"github.com/charmbracelet/lipgloss"

	"poolprobe/internal/tui/styles"
)

const title = `
 ┌─┐┌─┐┌─┐┬  ┌─┐┬─┐┌─┐┌┐ ┌─┐
 ├─┘│ ││ ││  ├─┘├┬┘│ │├┴┐├┤
 ┴  └─┘└─┘┴─┘┴  ┴└─└─┘└─┘└─┘`

const tagline = " session pool contamination probe"

// For renders the banner for w, so colors are dropped when w is not a terminal.
func For(w io.Writer) string {
	return render(lipgloss.NewRenderer(w))
}

func render(r *lipgloss.Renderer) string {
	style := r.NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)
	sub := r.NewStyle().Foreground(styles.ColorSubtle)

	return "\n" + style.Render(title) + "\n" + sub.Render(tagline) + "\n"
}
