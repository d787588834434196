package tui

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/jask/hyprshell/internal/keys"
	"github.com/jask/hyprshell/internal/session"
)

var panelLabels = map[string]string{
	session.PanelBrowser:   "Browser",
	session.PanelHistory:   "History",
	session.PanelSettings:  "Settings",
	session.PanelLogs:      "Logs",
	session.PanelDownloads: "Downloads",
	session.PanelModules:   "Modules",
}

func (a *App) renderAddressBar(st session.State, width int, s styles) string {
	tab := st.Active()
	nav := s.addressLabel.Render(" ◀ ▶ ⟳ ")
	if tab != nil {
		back := "◀"
		if tab.HistoryPos == 0 {
			back = " "
		}
		fwd := "▶"
		if tab.HistoryPos >= len(tab.History)-1 {
			fwd = " "
		}
		nav = s.addressLabel.Render(" " + back + " " + fwd + " ⟳ ")
	}

	badge := func(label string, on bool) string {
		if on {
			return s.badgeOn.Render(" " + label + " ✓ ")
		}
		return s.badgeOff.Render(" " + label + " ✗ ")
	}
	badges := badge("AdBlock", st.AdblockEnabled) + badge("VPN", st.VPNEnabled)

	field := a.address.View()
	if a.focus != focusAddress && tab != nil {
		field = tab.URL
		if tab.Incognito {
			field = glyphIncognito + " " + field
		}
	}
	avail := max(1, width-ansi.StringWidth(nav)-ansi.StringWidth(badges))
	field = s.address.Render(padRight(ansi.Truncate(field, avail, "…"), avail))
	return nav + field + badges
}

func renderSidebar(current string, height int, s styles) string {
	lines := make([]string, 0, len(session.Panels))
	for _, p := range session.Panels {
		label := panelLabels[p]
		if p == current {
			lines = append(lines, s.sidebarActive.Render("▶ "+label))
		} else {
			lines = append(lines, s.sidebarItem.Render("  "+label))
		}
	}
	return s.sidebar.Width(sidebarWidth).Height(height).Render(strings.Join(lines, "\n"))
}

// renderPage draws the placeholder surface for the active tab. The host
// draws the real page.
func renderPage(tab *session.Tab, focused bool, width, height int, s styles) string {
	if tab == nil {
		return pane{Title: "No tab"}.render(width, height, s)
	}
	lines := []string{
		"",
		s.title.Render(tab.DisplayTitle()),
		s.muted.Render(tab.URL),
		"",
	}
	if tab.Pinned {
		lines = append(lines, s.muted.Render(glyphPinned+" pinned"))
	}
	if tab.Incognito {
		lines = append(lines, s.muted.Render(glyphIncognito+" incognito: visits are not recorded"))
	}
	lines = append(lines, s.muted.Render(fmt.Sprintf("history %d/%d", tab.HistoryPos+1, len(tab.History))))
	return pane{Title: tab.DisplayTitle(), Content: strings.Join(lines, "\n"), Focused: focused}.render(width, height, s)
}

func (a *App) renderHistory(width, height int, s styles) string {
	var b strings.Builder
	if a.focus == focusFilter {
		b.WriteString(a.filter.View())
	} else if a.historyQuery != "" {
		b.WriteString(s.muted.Render("filter: " + a.historyQuery))
	} else {
		b.WriteString(s.muted.Render("/ to filter, c to clear"))
	}
	b.WriteString("\n")

	if len(a.history) == 0 {
		b.WriteString(s.muted.Render("no visits"))
	}
	visible := max(1, height-3)
	top := 0
	if a.historyCursor >= visible {
		top = a.historyCursor - visible + 1
	}
	for i := top; i < len(a.history) && i < top+visible; i++ {
		v := a.history[i]
		prefix := "  "
		if i == a.historyCursor {
			prefix = s.cursor.Render("> ")
		}
		when := v.VisitedAt.Local().Format("Jan 02 15:04")
		fmt.Fprintf(&b, "%s%s  %s  %s\n", prefix, s.muted.Render(when), s.text.Render(v.Title), s.muted.Render(v.URL))
	}
	return pane{Title: "History", Content: strings.TrimRight(b.String(), "\n"), Focused: true}.render(width, height, s)
}

func (a *App) renderSettings(st session.State, width, height int, s styles) string {
	onOff := func(on bool) string {
		if on {
			return "on"
		}
		return "off"
	}
	latest := "enter to check"
	if a.update != nil {
		latest = a.update.LatestVersion
		if !a.update.Available {
			latest += " (current)"
		}
	}
	saved := "-"
	if a.updatePath != "" {
		saved = a.updatePath
	}
	rows := []struct {
		label string
		value string
	}{
		settingAdblock:      {"Ad blocking", onOff(st.AdblockEnabled)},
		settingVPN:          {"VPN", onOff(st.VPNEnabled)},
		settingTheme:        {"Theme", st.Theme.String()},
		settingCheckUpdates: {"Latest", latest},
		settingApplyUpdate:  {"Update", saved},
	}
	var lines []string
	for i, r := range rows {
		prefix := "  "
		if settingsRow(i) == a.settingsCursor {
			prefix = s.cursor.Render("> ")
		}
		lines = append(lines, prefix+padRight(s.text.Render(r.label), 14)+s.title.Render(r.value))
	}
	lines = append(lines, "", s.muted.Render(fmt.Sprintf("home %s", a.shell.HomeURL())))
	return pane{Title: "Settings", Content: strings.Join(lines, "\n"), Focused: true}.render(width, height, s)
}

func (a *App) renderLogs(width, height int, s styles) string {
	if a.ring == nil {
		return pane{Title: "Logs", Content: s.muted.Render("logging to file only")}.render(width, height, s)
	}
	entries := a.ring.Entries()
	if len(entries) > logLines {
		entries = entries[len(entries)-logLines:]
	}
	visible := max(1, height-2)
	if len(entries) > visible {
		entries = entries[len(entries)-visible:]
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		style := s.muted
		switch {
		case e.Level >= slog.LevelError:
			style = s.errText
		case e.Level >= slog.LevelWarn:
			style = lipgloss.NewStyle().Foreground(s.palette.Warning)
		}
		lines = append(lines, style.Render(e.String()))
	}
	return pane{Title: "Logs", Content: strings.Join(lines, "\n"), Focused: true}.render(width, height, s)
}

func (a *App) renderStatus(width int, s styles) string {
	text := a.status
	if a.focus == focusPrompt {
		text = a.prompt.View()
	}
	text = strings.ReplaceAll(text, "\n", " ")
	return s.status.Width(width).Render(ansi.Truncate(text, max(1, width-2), "…"))
}

func (a *App) renderFooter(width int, s styles) string {
	scope := a.scope()
	switch a.focus {
	case focusAddress:
		scope = keys.ScopeAddress
	case focusPrompt, focusModuleSearch:
		scope = keys.ScopePrompt
	}
	parts := make([]string, 0, 16)
	for _, b := range a.keys.Help(scope) {
		h := b.Help()
		parts = append(parts, s.helpKey.Render(h.Key)+s.helpDsc.Render(" "+h.Desc))
	}
	line := strings.Join(parts, s.helpDsc.Render("  "))
	return s.footer.Width(width).Render(ansi.Truncate(line, max(1, width-2), "…"))
}
