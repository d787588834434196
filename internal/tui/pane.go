package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// pane is a bordered box with the title set into the top border.
type pane struct {
	Title   string
	Content string
	Focused bool
}

func (p pane) render(width, height int, s styles) string {
	if width < 4 {
		width = 4
	}
	if height < 3 {
		height = 3
	}

	border := s.palette.Surface1
	if p.Focused {
		border = s.palette.Focus
	}
	borderStyle := lipgloss.NewStyle().Foreground(border)
	titleStyle := lipgloss.NewStyle().Foreground(s.palette.Text).Bold(true)

	innerWidth := width - 2
	contentWidth := innerWidth - 2
	if contentWidth < 1 {
		contentWidth = 1
	}

	title := strings.TrimSpace(p.Title)
	titleText := ""
	if title != "" {
		titleText = " " + title + " "
		if ansi.StringWidth(titleText) > innerWidth-1 {
			titleText = " " + ansi.Truncate(title, max(1, innerWidth-3), "…") + " "
		}
	}
	dashes := max(0, innerWidth-ansi.StringWidth(titleText))
	leftDash := min(1, dashes)
	rightDash := dashes - leftDash

	v := borderStyle.Render("│")
	top := borderStyle.Render("╭"+strings.Repeat("─", leftDash)) +
		titleStyle.Render(titleText) +
		borderStyle.Render(strings.Repeat("─", rightDash)+"╮")

	lines := strings.Split(p.Content, "\n")
	rows := make([]string, 0, height)
	rows = append(rows, top)
	for i := 0; i < height-2; i++ {
		line := ""
		if i < len(lines) {
			line = ansi.Truncate(lines[i], contentWidth, "…")
		}
		rows = append(rows, v+" "+padRight(line, contentWidth)+" "+v)
	}
	rows = append(rows, borderStyle.Render("╰"+strings.Repeat("─", innerWidth)+"╯"))
	return strings.Join(rows, "\n")
}

func padRight(s string, width int) string {
	w := ansi.StringWidth(s)
	if width <= 0 || w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}
