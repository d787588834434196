package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jask/hyprshell/internal/host"
	"github.com/jask/hyprshell/internal/session"
)

// downloadRefresh is how often the downloads panel polls while a transfer
// is running.
const downloadRefresh = 500 * time.Millisecond

type (
	downloadsMsg struct {
		list []host.Download
		err  error
	}
	downloadOpMsg struct {
		status string
		err    error
	}
	downloadTickMsg struct{}

	modulesMsg struct {
		list []host.Module
		err  error
	}
	catalogMsg struct {
		results []host.ModuleResult
		err     error
	}
	moduleOpMsg struct {
		status string
		err    error
	}

	updateCheckedMsg struct {
		info host.UpdateInfo
		err  error
	}
	updateAppliedMsg struct {
		path string
		err  error
	}
)

// catalogItem adapts a search result to the bubbles list.
type catalogItem struct{ res host.ModuleResult }

func (i catalogItem) Title() string {
	return fmt.Sprintf("%s  ★ %d", i.res.FullName, i.res.Stars)
}

func (i catalogItem) Description() string {
	if i.res.Description == "" {
		return "no description"
	}
	return i.res.Description
}

func (i catalogItem) FilterValue() string { return i.res.FullName }

func newDownloadsTable() table.Model {
	return table.New(
		table.WithColumns(downloadColumns(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
}

func newModulesTable() table.Model {
	return table.New(
		table.WithColumns(moduleColumns(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
}

func newCatalog() list.Model {
	l := list.New(nil, list.NewDefaultDelegate(), 40, 12)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	return l
}

// Each cell carries one column of padding on both sides.
func downloadColumns(width int) []table.Column {
	fixed := 12 + 6 + 10 + 4*2
	return []table.Column{
		{Title: "File", Width: max(8, width-fixed)},
		{Title: "Status", Width: 12},
		{Title: "Done", Width: 6},
		{Title: "Size", Width: 10},
	}
}

func moduleColumns(width int) []table.Column {
	fixed := 20 + 10 + 5 + 4*2
	return []table.Column{
		{Title: "Name", Width: 20},
		{Title: "Version", Width: 10},
		{Title: "On", Width: 5},
		{Title: "Repository", Width: max(8, width-fixed)},
	}
}

func downloadRow(d host.Download) table.Row {
	done := "-"
	if d.Size > 0 || d.Status == host.DownloadCompleted {
		done = fmt.Sprintf("%.0f%%", d.Progress()*100)
	}
	size := humanize.IBytes(uint64(max(0, d.Downloaded)))
	if d.Size > 0 {
		size = humanize.IBytes(uint64(d.Size))
	}
	return table.Row{d.Filename, string(d.Status), done, size}
}

func moduleRow(m host.Module) table.Row {
	on := "no"
	if m.Enabled {
		on = "yes"
	}
	return table.Row{m.Name, m.Version, on, m.Repo}
}

func (a *App) loadDownloadsCmd() tea.Cmd {
	return func() tea.Msg {
		dls, err := a.shell.Downloads(a.ctx)
		return downloadsMsg{list: dls, err: err}
	}
}

func (a *App) startDownloadCmd(rawURL string) tea.Cmd {
	return func() tea.Msg {
		d, err := a.shell.StartDownload(a.ctx, rawURL)
		return downloadOpMsg{status: "downloading " + d.Filename, err: err}
	}
}

func (a *App) downloadOpCmd(status string, op func() error) tea.Cmd {
	return func() tea.Msg {
		return downloadOpMsg{status: status, err: op()}
	}
}

func (a *App) loadModulesCmd() tea.Cmd {
	return func() tea.Msg {
		mods, err := a.shell.Modules(a.ctx)
		return modulesMsg{list: mods, err: err}
	}
}

func (a *App) searchModulesCmd(query string) tea.Cmd {
	return func() tea.Msg {
		res, err := a.shell.SearchModules(a.ctx, query)
		return catalogMsg{results: res, err: err}
	}
}

func (a *App) moduleOpCmd(status string, op func() error) tea.Cmd {
	return func() tea.Msg {
		return moduleOpMsg{status: status, err: op()}
	}
}

func (a *App) checkUpdatesCmd() tea.Cmd {
	return func() tea.Msg {
		info, err := a.shell.CheckUpdates(a.ctx)
		return updateCheckedMsg{info: info, err: err}
	}
}

func (a *App) applyUpdateCmd() tea.Cmd {
	return func() tea.Msg {
		path, err := a.shell.ApplyUpdate(a.ctx)
		return updateAppliedMsg{path: path, err: err}
	}
}

// updatePanels handles the replies of the downloads, modules and update
// commands. ok is false for any other message.
func (a *App) updatePanels(msg tea.Msg) (tea.Cmd, bool) {
	switch m := msg.(type) {
	case downloadsMsg:
		if m.err != nil {
			a.status = "downloads: " + m.err.Error()
			return nil, true
		}
		a.setDownloads(m.list)
		return a.scheduleDownloadTick(), true
	case downloadTickMsg:
		a.tickPending = false
		if a.shell.State().CurrentPanel != session.PanelDownloads {
			return nil, true
		}
		return a.loadDownloadsCmd(), true
	case downloadOpMsg:
		if m.err != nil {
			a.status = m.err.Error()
		} else {
			a.status = m.status
		}
		return a.loadDownloadsCmd(), true
	case modulesMsg:
		if m.err != nil {
			a.status = "modules: " + m.err.Error()
			return nil, true
		}
		a.setModules(m.list)
		return nil, true
	case catalogMsg:
		if m.err != nil {
			a.status = "search: " + m.err.Error()
			return nil, true
		}
		items := make([]list.Item, 0, len(m.results))
		for _, r := range m.results {
			items = append(items, catalogItem{res: r})
		}
		a.status = fmt.Sprintf("%d modules found", len(items))
		a.catalogOpen = true
		return a.catalog.SetItems(items), true
	case moduleOpMsg:
		if m.err != nil {
			a.status = m.err.Error()
		} else {
			a.status = m.status
		}
		return a.loadModulesCmd(), true
	case updateCheckedMsg:
		if m.err != nil {
			a.status = "update check: " + m.err.Error()
			return nil, true
		}
		info := m.info
		a.update = &info
		if info.Available {
			a.status = "update available: " + info.LatestVersion
		} else {
			a.status = "up to date"
		}
		return nil, true
	case updateAppliedMsg:
		if m.err != nil {
			a.status = "update: " + m.err.Error()
			return nil, true
		}
		a.updatePath = m.path
		a.status = "update saved to " + m.path
		return nil, true
	}
	return nil, false
}

func (a *App) setDownloads(dls []host.Download) {
	a.downloads = dls
	rows := make([]table.Row, 0, len(dls))
	for _, d := range dls {
		rows = append(rows, downloadRow(d))
	}
	a.dlTable.SetRows(rows)
	if c := a.dlTable.Cursor(); c >= len(rows) || c < 0 {
		a.dlTable.SetCursor(max(0, len(rows)-1))
	}
}

func (a *App) setModules(mods []host.Module) {
	a.modules = mods
	rows := make([]table.Row, 0, len(mods))
	for _, m := range mods {
		rows = append(rows, moduleRow(m))
	}
	a.modTable.SetRows(rows)
	if c := a.modTable.Cursor(); c >= len(rows) || c < 0 {
		a.modTable.SetCursor(max(0, len(rows)-1))
	}
}

// scheduleDownloadTick keeps one poll pending while the downloads panel
// shows a running transfer.
func (a *App) scheduleDownloadTick() tea.Cmd {
	if a.tickPending || a.shell.State().CurrentPanel != session.PanelDownloads {
		return nil
	}
	running := false
	for _, d := range a.downloads {
		if d.Status == host.DownloadActive || d.Status == host.DownloadPending {
			running = true
			break
		}
	}
	if !running {
		return nil
	}
	a.tickPending = true
	return tea.Tick(downloadRefresh, func(time.Time) tea.Msg { return downloadTickMsg{} })
}

func (a *App) selectedDownload() (host.Download, bool) {
	i := a.dlTable.Cursor()
	if i < 0 || i >= len(a.downloads) {
		return host.Download{}, false
	}
	return a.downloads[i], true
}

func (a *App) selectedModule() (host.Module, bool) {
	i := a.modTable.Cursor()
	if i < 0 || i >= len(a.modules) {
		return host.Module{}, false
	}
	return a.modules[i], true
}

func (a *App) downloadActivePage() tea.Cmd {
	tab := a.shell.State().Active()
	if tab == nil || tab.URL == "" {
		return nil
	}
	a.status = "starting download"
	return a.startDownloadCmd(tab.URL)
}

func (a *App) pauseOrResumeDownload() tea.Cmd {
	d, ok := a.selectedDownload()
	if !ok {
		return nil
	}
	switch d.Status {
	case host.DownloadPaused, host.DownloadFailed:
		return a.downloadOpCmd("resumed "+d.Filename, func() error {
			return a.shell.ResumeDownload(a.ctx, d.ID)
		})
	case host.DownloadActive, host.DownloadPending:
		return a.downloadOpCmd("paused "+d.Filename, func() error {
			return a.shell.PauseDownload(a.ctx, d.ID)
		})
	}
	a.status = d.Filename + " is " + string(d.Status)
	return nil
}

func (a *App) cancelDownload() tea.Cmd {
	d, ok := a.selectedDownload()
	if !ok {
		return nil
	}
	return a.downloadOpCmd("cancelled "+d.Filename, func() error {
		return a.shell.CancelDownload(a.ctx, d.ID)
	})
}

func (a *App) toggleModule() tea.Cmd {
	m, ok := a.selectedModule()
	if !ok {
		return nil
	}
	verb := "enabled "
	if m.Enabled {
		verb = "disabled "
	}
	return a.moduleOpCmd(verb+m.Name, func() error {
		return a.shell.SetModuleEnabled(a.ctx, m.Name, !m.Enabled)
	})
}

func (a *App) uninstallModule() tea.Cmd {
	m, ok := a.selectedModule()
	if !ok {
		return nil
	}
	return a.moduleOpCmd("uninstalled "+m.Name, func() error {
		return a.shell.UninstallModule(a.ctx, m.Name)
	})
}

func (a *App) installSelected() tea.Cmd {
	item, ok := a.catalog.SelectedItem().(catalogItem)
	if !ok {
		return nil
	}
	a.catalogOpen = false
	repo := item.res.FullName
	a.status = "installing " + repo
	return a.moduleOpCmd("installed "+repo, func() error {
		_, err := a.shell.InstallModule(a.ctx, repo)
		return err
	})
}

func (a *App) openModuleSearch() tea.Cmd {
	a.blurInputs()
	a.focus = focusModuleSearch
	a.moduleQuery.SetValue("")
	return a.moduleQuery.Focus()
}

func (a *App) submitModuleSearch(value string) tea.Cmd {
	q := strings.TrimSpace(value)
	if q == "" {
		return nil
	}
	a.status = "searching…"
	return a.searchModulesCmd(q)
}

func tableStyles(s styles) table.Styles {
	ts := table.DefaultStyles()
	ts.Header = ts.Header.
		Foreground(s.palette.Subtext).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(s.palette.Surface1).
		BorderBottom(true)
	ts.Cell = ts.Cell.Foreground(s.palette.Text)
	ts.Selected = ts.Selected.Foreground(s.palette.Accent)
	return ts
}

func catalogDelegate(s styles) list.DefaultDelegate {
	d := list.NewDefaultDelegate()
	d.Styles.NormalTitle = d.Styles.NormalTitle.Foreground(s.palette.Text)
	d.Styles.NormalDesc = d.Styles.NormalDesc.Foreground(s.palette.Subtext)
	d.Styles.SelectedTitle = d.Styles.SelectedTitle.Foreground(s.palette.Accent).BorderForeground(s.palette.Accent)
	d.Styles.SelectedDesc = d.Styles.SelectedDesc.Foreground(s.palette.Subtext).BorderForeground(s.palette.Accent)
	return d
}

func (a *App) renderDownloads(width, height int, s styles) string {
	inner := max(1, width-4)
	var content string
	if len(a.downloads) == 0 {
		content = s.muted.Render("no downloads, S saves the current page")
	} else {
		a.dlTable.SetStyles(tableStyles(s))
		a.dlTable.SetColumns(downloadColumns(inner))
		a.dlTable.SetWidth(inner)
		a.dlTable.SetHeight(max(2, height-4))
		content = a.dlTable.View()
		if d, ok := a.selectedDownload(); ok && d.Error != "" {
			content += "\n" + s.errText.Render(d.Error)
		}
	}
	return pane{Title: "Downloads", Content: content, Focused: true}.render(width, height, s)
}

func (a *App) renderModules(width, height int, s styles) string {
	inner := max(1, width-4)
	var b strings.Builder
	switch {
	case a.focus == focusModuleSearch:
		b.WriteString(a.moduleQuery.View())
	case a.catalogOpen:
		b.WriteString(s.muted.Render("enter installs, esc closes"))
	default:
		b.WriteString(s.muted.Render("/ to search the catalogue"))
	}
	b.WriteString("\n")

	switch {
	case a.catalogOpen:
		a.catalog.SetDelegate(catalogDelegate(s))
		a.catalog.SetSize(inner, max(2, height-3))
		b.WriteString(a.catalog.View())
	case len(a.modules) == 0:
		b.WriteString(s.muted.Render("no modules installed"))
	default:
		a.modTable.SetStyles(tableStyles(s))
		a.modTable.SetColumns(moduleColumns(inner))
		a.modTable.SetWidth(inner)
		a.modTable.SetHeight(max(2, height-5))
		b.WriteString(a.modTable.View())
		if m, ok := a.selectedModule(); ok && m.Description != "" {
			b.WriteString("\n" + s.muted.Render(m.Description))
		}
	}
	title := "Modules"
	if a.catalogOpen {
		title = "Module catalogue"
	}
	return pane{Title: title, Content: b.String(), Focused: true}.render(width, height, s)
}
