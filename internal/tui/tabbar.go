package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/jask/hyprshell/internal/session"
)

const (
	glyphPinned    = "📌"
	glyphIncognito = "🕵"
	glyphClose     = "✕"
	glyphNewTab    = "＋"

	minTabTitle = 6
	maxTabTitle = 24
)

type zoneKind int

const (
	zoneSelect zoneKind = iota
	zoneClose
	zoneNew
)

// zone is a clickable column range [x0, x1) on the tab bar row.
type zone struct {
	kind  zoneKind
	index int
	x0    int
	x1    int
}

func hitZone(zones []zone, x int) (zone, bool) {
	for _, z := range zones {
		if x >= z.x0 && x < z.x1 {
			return z, true
		}
	}
	return zone{}, false
}

// tabGlyph is the pin glyph for pinned tabs, else the incognito glyph.
func tabGlyph(t session.Tab) string {
	switch {
	case t.Pinned:
		return glyphPinned
	case t.Incognito:
		return glyphIncognito
	}
	return ""
}

// tabTitleBudget shares the bar width between tabs.
func tabTitleBudget(width, tabs int) int {
	if width <= 0 || tabs == 0 {
		return maxTabTitle
	}
	// Per tab: two spaces, a glyph, close glyph and separators.
	per := (width-4)/tabs - 8
	return max(minTabTitle, min(maxTabTitle, per))
}

// renderTabBar draws one entry per tab plus a trailing new-tab button and
// returns the click zones for the row.
func renderTabBar(st session.State, width int, s styles) (string, []zone) {
	budget := tabTitleBudget(width, len(st.Tabs))
	var (
		b     strings.Builder
		zones []zone
		x     int
	)
	emit := func(text string, style lipgloss.Style, kind zoneKind, index int) {
		w := ansi.StringWidth(text)
		b.WriteString(style.Render(text))
		zones = append(zones, zone{kind: kind, index: index, x0: x, x1: x + w})
		x += w
	}

	for i, t := range st.Tabs {
		style := s.inactiveTab
		if i == st.CurrentTab {
			style = s.activeTab
		}
		label := ansi.Truncate(t.DisplayTitle(), budget, "…")
		if g := tabGlyph(t); g != "" {
			label = g + " " + label
		}
		emit(" "+label+" ", style, zoneSelect, i)
		emit(glyphClose+" ", style, zoneClose, i)
		b.WriteString(s.tabBar.Render("│"))
		x++
	}
	newText := " " + glyphNewTab + " "
	newW := ansi.StringWidth(newText)
	line := b.String()
	if width > 0 {
		// The new-tab button always stays visible; tabs are clipped before it.
		limit := max(0, width-newW)
		if x > limit {
			line = ansi.Truncate(line, limit, "")
			x = limit
			kept := zones[:0]
			for _, z := range zones {
				if z.x0 >= limit {
					continue
				}
				z.x1 = min(z.x1, limit)
				kept = append(kept, z)
			}
			zones = kept
		}
	}
	line += s.newTab.Render(newText)
	zones = append(zones, zone{kind: zoneNew, index: -1, x0: x, x1: x + newW})
	x += newW
	if width > x {
		line += s.tabBar.Render(strings.Repeat(" ", width-x))
	}
	return line, zones
}
