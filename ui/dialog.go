package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"tcode/tools"
)

const (
	defaultWidth = 80
	minWidth     = 40
)

// renderDialog renders a bordered block with a centered title, the body
// lines and an optional footer. It is printed inline, not placed on an
// alternate screen.
func renderDialog(title string, body []string, footer string, width int) string {
	if width <= 0 {
		width = defaultWidth
	}
	if width < minWidth {
		width = minWidth
	}
	inner := width - 4

	var b strings.Builder
	b.WriteString(centerTitle(title, inner))
	b.WriteString("\n\n")

	section := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dimColor).
		Padding(0, 1).
		Width(inner - 2)
	b.WriteString(section.Render(strings.Join(body, "\n")))

	if footer != "" {
		b.WriteString("\n\n")
		b.WriteString(footer)
	}

	return lipgloss.NewStyle().Padding(0, 1).Render(b.String())
}

func centerTitle(title string, width int) string {
	w := runewidth.StringWidth(title)
	if w >= width {
		return TitleStyle.Render(title)
	}
	pad := (width - w) / 2
	return strings.Repeat(" ", pad) + TitleStyle.Render(title)
}

// FormatChange renders one pending change as a single line no wider
// than width.
func FormatChange(c tools.Change, width int) string {
	var label string
	switch c.Kind {
	case tools.ChangeCreate:
		label = createStyle.Render("create")
	case tools.ChangeDelete:
		label = deleteStyle.Render("delete")
	default:
		label = modifyStyle.Render("modify")
	}

	detail := c.Path
	if c.Kind != tools.ChangeDelete {
		detail = strings.TrimPrefix(c.String(), string(c.Kind)+" ")
	}
	if width > 0 {
		// "modify " plus border and padding
		max := width - 7 - 6
		if max < 10 {
			max = 10
		}
		detail = runewidth.Truncate(detail, max, "…")
	}
	return label + " " + detail
}

// FormatChanges renders a change list, one line per change.
func FormatChanges(changes []tools.Change, width int) []string {
	lines := make([]string, len(changes))
	for i, c := range changes {
		lines[i] = FormatChange(c, width)
	}
	return lines
}
