// Package tui is the terminal front end of the shell.
package tui

import (
	"context"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jask/hyprshell/internal/host"
	"github.com/jask/hyprshell/internal/keys"
	"github.com/jask/hyprshell/internal/logx"
	"github.com/jask/hyprshell/internal/session"
	"github.com/jask/hyprshell/internal/shell"
)

const (
	sidebarWidth = 14
	historyLimit = 200
	logLines     = 200
)

type focusMode int

const (
	focusPage focusMode = iota
	focusAddress
	focusPrompt
	focusFilter
	focusModuleSearch
)

type settingsRow int

const (
	settingAdblock settingsRow = iota
	settingVPN
	settingTheme
	settingCheckUpdates
	settingApplyUpdate
	settingsRows
)

// App is the bubbletea model of the browser shell.
type App struct {
	ctx   context.Context
	shell *shell.Shell
	keys  *keys.Registry
	ring  *logx.Ring
	log   *slog.Logger

	width  int
	height int

	loaded bool
	focus  focusMode
	status string
	zones  []zone

	address     textinput.Model
	prompt      textinput.Model
	filter      textinput.Model
	moduleQuery textinput.Model

	history        []host.Visit
	historyCursor  int
	historyQuery   string
	settingsCursor settingsRow

	downloads   []host.Download
	dlTable     table.Model
	tickPending bool

	modules     []host.Module
	modTable    table.Model
	catalog     list.Model
	catalogOpen bool

	update     *host.UpdateInfo
	updatePath string
}

type Options struct {
	Keys *keys.Registry
	// Ring feeds the logs panel. Nil hides log records.
	Ring   *logx.Ring
	Logger *slog.Logger
}

func New(ctx context.Context, sh *shell.Shell, opts Options) *App {
	if opts.Keys == nil {
		opts.Keys = keys.NewRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	address := textinput.New()
	address.Prompt = ""
	address.Placeholder = "Search or enter address"
	address.CharLimit = 2048

	prompt := textinput.New()
	prompt.Prompt = "quick search: "
	prompt.Placeholder = "expression or text"

	filter := textinput.New()
	filter.Prompt = "/"
	filter.Placeholder = "filter history"

	moduleQuery := textinput.New()
	moduleQuery.Prompt = "search modules: "
	moduleQuery.Placeholder = "name or topic"

	return &App{
		ctx:         ctx,
		shell:       sh,
		keys:        opts.Keys,
		ring:        opts.Ring,
		log:         opts.Logger,
		address:     address,
		prompt:      prompt,
		filter:      filter,
		moduleQuery: moduleQuery,
		dlTable:     newDownloadsTable(),
		modTable:    newModulesTable(),
		catalog:     newCatalog(),
	}
}

// Messages.
type (
	stateLoadedMsg struct {
		state session.State
		err   error
	}
	quickSearchMsg struct {
		url string
		ok  bool
	}
	historyMsg struct {
		visits []host.Visit
		err    error
	}
	historyClearedMsg struct{ err error }

	// KeysReloadedMsg swaps in a new key registry.
	KeysReloadedMsg struct{ Registry *keys.Registry }
)

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.loadStateCmd(), textinput.Blink)
}

func (a *App) loadStateCmd() tea.Cmd {
	return func() tea.Msg {
		st, err := a.shell.FetchState(a.ctx)
		return stateLoadedMsg{state: st, err: err}
	}
}

func (a *App) quickSearchCmd(input string) tea.Cmd {
	return func() tea.Msg {
		u, ok := a.shell.ResolveQuickSearch(a.ctx, input)
		return quickSearchMsg{url: u, ok: ok}
	}
}

func (a *App) loadHistoryCmd() tea.Cmd {
	query := a.historyQuery
	return func() tea.Msg {
		visits, err := a.shell.History(a.ctx, query, historyLimit)
		return historyMsg{visits: visits, err: err}
	}
}

func (a *App) clearHistoryCmd() tea.Cmd {
	return func() tea.Msg {
		return historyClearedMsg{err: a.shell.ClearHistory(a.ctx)}
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = m.Width, m.Height
		a.address.Width = max(10, m.Width-40)
		return a, nil
	case stateLoadedMsg:
		a.shell.Restore(m.state, m.err)
		a.loaded = true
		a.syncAddress()
		return a, a.panelCmd(a.shell.State().CurrentPanel)
	case quickSearchMsg:
		if m.ok {
			a.navigate(m.url)
		}
		return a, nil
	case historyMsg:
		if m.err != nil {
			a.status = "history: " + m.err.Error()
			return a, nil
		}
		a.history = m.visits
		if a.historyCursor >= len(a.history) {
			a.historyCursor = max(0, len(a.history)-1)
		}
		return a, nil
	case historyClearedMsg:
		if m.err != nil {
			a.status = "clear history: " + m.err.Error()
			return a, nil
		}
		a.status = "history cleared"
		a.history = nil
		a.historyCursor = 0
		return a, nil
	case KeysReloadedMsg:
		if m.Registry != nil {
			a.keys = m.Registry
			a.status = "keybindings reloaded"
		}
		return a, nil
	case tea.MouseMsg:
		if !a.loaded {
			return a, nil
		}
		return a.handleMouse(m)
	case tea.KeyMsg:
		if !a.loaded {
			return a.handleKeyBeforeLoad(m)
		}
		return a.handleKey(m)
	}
	if cmd, ok := a.updatePanels(msg); ok {
		return a, cmd
	}

	var cmd tea.Cmd
	switch a.focus {
	case focusAddress:
		a.address, cmd = a.address.Update(msg)
	case focusPrompt:
		a.prompt, cmd = a.prompt.Update(msg)
	case focusFilter:
		a.filter, cmd = a.filter.Update(msg)
	case focusModuleSearch:
		a.moduleQuery, cmd = a.moduleQuery.Update(msg)
	}
	return a, cmd
}

// handleKeyBeforeLoad drops every key except quit until the stored session
// has been restored.
func (a *App) handleKeyBeforeLoad(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	if action, ok := a.keys.LookupLocal(m.String(), keys.ScopeGlobal); ok && action == keys.ActionWindowClose {
		return a, tea.Quit
	}
	return a, nil
}

func (a *App) handleKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.focus {
	case focusAddress:
		return a.handleInputKey(m, keys.ScopeAddress, &a.address, a.submitAddress)
	case focusPrompt:
		return a.handleInputKey(m, keys.ScopePrompt, &a.prompt, a.submitPrompt)
	case focusFilter:
		return a.handleInputKey(m, keys.ScopeHistory, &a.filter, a.submitFilter)
	case focusModuleSearch:
		return a.handleInputKey(m, keys.ScopePrompt, &a.moduleQuery, a.submitModuleSearch)
	}

	action, ok := a.keys.Lookup(m.String(), a.scope())
	if !ok {
		return a, nil
	}
	return a, a.runAction(action, m.String())
}

// handleInputKey routes keys to a focused text field. Only the field's own
// scope is consulted so typed letters never fire shell shortcuts.
func (a *App) handleInputKey(m tea.KeyMsg, scope string, field *textinput.Model, submit func(string) tea.Cmd) (tea.Model, tea.Cmd) {
	if action, ok := a.keys.LookupLocal(m.String(), scope); ok {
		switch action {
		case keys.ActionConfirm, keys.ActionSelect:
			value := field.Value()
			a.blurInputs()
			return a, submit(value)
		case keys.ActionCancel:
			a.blurInputs()
			a.syncAddress()
			return a, nil
		}
	}
	if m.Type == tea.KeyCtrlC {
		return a, a.runAction(keys.ActionWindowClose, m.String())
	}
	var cmd tea.Cmd
	*field, cmd = field.Update(m)
	return a, cmd
}

func (a *App) submitAddress(value string) tea.Cmd {
	a.navigate(value)
	return nil
}

func (a *App) submitPrompt(value string) tea.Cmd {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	a.status = "evaluating…"
	return a.quickSearchCmd(value)
}

func (a *App) submitFilter(value string) tea.Cmd {
	a.historyQuery = strings.TrimSpace(value)
	a.historyCursor = 0
	return a.loadHistoryCmd()
}

func (a *App) scope() string {
	switch a.shell.State().CurrentPanel {
	case session.PanelHistory:
		return keys.ScopeHistory
	case session.PanelSettings:
		return keys.ScopeSettings
	case session.PanelLogs:
		return keys.ScopeLogs
	case session.PanelDownloads:
		return keys.ScopeDownloads
	case session.PanelModules:
		if a.catalogOpen {
			return keys.ScopeCatalog
		}
		return keys.ScopeModules
	}
	return keys.ScopeGlobal
}

func (a *App) runAction(action keys.Action, key string) tea.Cmd {
	sh := a.shell
	switch action {
	case keys.ActionNewTab:
		sh.NewTab()
	case keys.ActionNewIncognitoTab:
		sh.NewIncognitoTab()
	case keys.ActionDuplicateTab:
		sh.DuplicateTab()
	case keys.ActionCloseTab:
		if !sh.CloseActiveTab() {
			a.status = "cannot close the last tab"
		}
	case keys.ActionFocusAddress:
		return a.focusAddress()
	case keys.ActionHome:
		sh.Home()
	case keys.ActionQuickSearch:
		return a.openPrompt()
	case keys.ActionBack:
		sh.Back()
	case keys.ActionForward:
		sh.Forward()
	case keys.ActionReload:
		sh.Reload()
		a.status = "reloading"
	case keys.ActionNextTab:
		sh.NextTab()
	case keys.ActionPrevTab:
		sh.PrevTab()
	case keys.ActionPinTab:
		sh.PinTab(sh.State().CurrentTab)
	case keys.ActionToggleIncognito:
		sh.ToggleIncognito()
	case keys.ActionCloseOthers:
		sh.CloseOtherTabs()
	case keys.ActionToggleAdblock:
		sh.ToggleAdblock()
	case keys.ActionToggleVPN:
		sh.ToggleVPN()
	case keys.ActionCycleTheme:
		a.status = "theme: " + sh.CycleTheme().String()
	case keys.ActionDownloadPage:
		return a.downloadActivePage()
	case keys.ActionPanelBrowser:
		return a.switchPanel(session.PanelBrowser)
	case keys.ActionPanelHistory:
		return a.switchPanel(session.PanelHistory)
	case keys.ActionPanelSettings:
		return a.switchPanel(session.PanelSettings)
	case keys.ActionPanelLogs:
		return a.switchPanel(session.PanelLogs)
	case keys.ActionPanelDownloads:
		return a.switchPanel(session.PanelDownloads)
	case keys.ActionPanelModules:
		return a.switchPanel(session.PanelModules)
	case keys.ActionWindowClose:
		_ = sh.Window(host.WindowClose)
		return tea.Quit
	case keys.ActionWindowMaximize:
		_ = sh.Window(host.WindowMaximize)
	case keys.ActionWindowMinimize:
		_ = sh.Window(host.WindowMinimize)
	case keys.ActionNavigate:
		a.moveCursor(key)
	case keys.ActionSelect:
		if a.catalogOpen {
			return a.installSelected()
		}
		return a.openSelectedVisit()
	case keys.ActionFilter:
		if sh.State().CurrentPanel == session.PanelModules {
			return a.openModuleSearch()
		}
		a.focus = focusFilter
		a.filter.SetValue(a.historyQuery)
		a.filter.CursorEnd()
		return a.filter.Focus()
	case keys.ActionClear:
		return a.clearHistoryCmd()
	case keys.ActionToggle:
		if sh.State().CurrentPanel == session.PanelModules {
			return a.toggleModule()
		}
		return a.toggleSetting()
	case keys.ActionPause:
		return a.pauseOrResumeDownload()
	case keys.ActionRemove:
		if sh.State().CurrentPanel == session.PanelModules {
			return a.uninstallModule()
		}
		return a.cancelDownload()
	case keys.ActionRefresh:
		return a.loadDownloadsCmd()
	case keys.ActionCancel:
		if a.catalogOpen {
			a.catalogOpen = false
			return nil
		}
		return a.switchPanel(session.PanelBrowser)
	}
	a.syncAddress()
	return nil
}

func (a *App) navigate(input string) {
	if u := a.shell.Navigate(input); u != "" {
		a.status = ""
	}
	a.syncAddress()
}

func (a *App) switchPanel(name string) tea.Cmd {
	if err := a.shell.SwitchPanel(name); err != nil {
		a.status = err.Error()
		return nil
	}
	if name == session.PanelBrowser {
		a.blurInputs()
		a.syncAddress()
	}
	a.catalogOpen = false
	return a.panelCmd(name)
}

// panelCmd fetches what the named panel lists.
func (a *App) panelCmd(name string) tea.Cmd {
	switch name {
	case session.PanelHistory:
		return a.loadHistoryCmd()
	case session.PanelDownloads:
		return a.loadDownloadsCmd()
	case session.PanelModules:
		return a.loadModulesCmd()
	}
	return nil
}

func (a *App) focusAddress() tea.Cmd {
	a.blurInputs()
	a.focus = focusAddress
	a.syncAddress()
	a.address.CursorEnd()
	return a.address.Focus()
}

func (a *App) openPrompt() tea.Cmd {
	a.blurInputs()
	a.focus = focusPrompt
	a.prompt.SetValue("")
	return a.prompt.Focus()
}

func (a *App) blurInputs() {
	a.focus = focusPage
	a.address.Blur()
	a.prompt.Blur()
	a.filter.Blur()
	a.moduleQuery.Blur()
}

// syncAddress shows the active URL unless the user is editing it.
func (a *App) syncAddress() {
	if a.focus == focusAddress {
		return
	}
	st := a.shell.State()
	if tab := st.Active(); tab != nil {
		a.address.SetValue(tab.URL)
	}
}

func (a *App) moveCursor(key string) {
	up := key == "k" || key == "up"
	switch a.shell.State().CurrentPanel {
	case session.PanelHistory:
		if up && a.historyCursor > 0 {
			a.historyCursor--
		} else if !up && a.historyCursor < len(a.history)-1 {
			a.historyCursor++
		}
	case session.PanelSettings:
		if up && a.settingsCursor > 0 {
			a.settingsCursor--
		} else if !up && a.settingsCursor < settingsRows-1 {
			a.settingsCursor++
		}
	case session.PanelDownloads:
		if up {
			a.dlTable.MoveUp(1)
		} else {
			a.dlTable.MoveDown(1)
		}
	case session.PanelModules:
		switch {
		case a.catalogOpen && up:
			a.catalog.CursorUp()
		case a.catalogOpen:
			a.catalog.CursorDown()
		case up:
			a.modTable.MoveUp(1)
		default:
			a.modTable.MoveDown(1)
		}
	}
}

func (a *App) openSelectedVisit() tea.Cmd {
	if a.historyCursor < 0 || a.historyCursor >= len(a.history) {
		return nil
	}
	u := a.history[a.historyCursor].URL
	cmd := a.switchPanel(session.PanelBrowser)
	a.navigate(u)
	return cmd
}

func (a *App) toggleSetting() tea.Cmd {
	switch a.settingsCursor {
	case settingAdblock:
		a.shell.ToggleAdblock()
	case settingVPN:
		a.shell.ToggleVPN()
	case settingTheme:
		a.status = "theme: " + a.shell.CycleTheme().String()
	case settingCheckUpdates:
		a.status = "checking for updates…"
		return a.checkUpdatesCmd()
	case settingApplyUpdate:
		if a.update == nil || !a.update.Available {
			a.status = "no update to apply, check first"
			return nil
		}
		a.status = "downloading " + a.update.LatestVersion + "…"
		return a.applyUpdateCmd()
	}
	return nil
}

func (a *App) handleMouse(m tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.Action != tea.MouseActionPress || m.Button != tea.MouseButtonLeft {
		return a, nil
	}
	if m.Y == 0 {
		z, ok := hitZone(a.zones, m.X)
		if !ok {
			return a, nil
		}
		switch z.kind {
		case zoneSelect:
			a.shell.SelectTab(z.index)
		case zoneClose:
			a.shell.CloseTab(z.index)
		case zoneNew:
			a.shell.NewTab()
		}
		a.syncAddress()
		return a, nil
	}
	if m.Y == 1 {
		return a, a.focusAddress()
	}
	// Sidebar rows start below the tab bar and address bar.
	if m.X < sidebarWidth {
		if i := m.Y - 2; i >= 0 && i < len(session.Panels) {
			return a, a.switchPanel(session.Panels[i])
		}
	}
	return a, nil
}

func (a *App) styles() styles {
	return newStyles(PaletteFor(a.shell.State().Theme))
}

func (a *App) View() string {
	if !a.loaded {
		return "loading session…"
	}
	s := a.styles()
	st := a.shell.State()
	width := a.width
	if width <= 0 {
		width = 100
	}
	height := a.height
	if height <= 0 {
		height = 30
	}

	tabBar, zones := renderTabBar(st, width, s)
	a.zones = zones
	addressBar := a.renderAddressBar(st, width, s)

	bodyHeight := max(3, height-4)
	sidebar := renderSidebar(st.CurrentPanel, bodyHeight, s)
	contentWidth := max(10, width-sidebarWidth)
	var content string
	switch st.CurrentPanel {
	case session.PanelHistory:
		content = a.renderHistory(contentWidth, bodyHeight, s)
	case session.PanelSettings:
		content = a.renderSettings(st, contentWidth, bodyHeight, s)
	case session.PanelLogs:
		content = a.renderLogs(contentWidth, bodyHeight, s)
	case session.PanelDownloads:
		content = a.renderDownloads(contentWidth, bodyHeight, s)
	case session.PanelModules:
		content = a.renderModules(contentWidth, bodyHeight, s)
	default:
		content = renderPage(st.Active(), a.focus == focusPage, contentWidth, bodyHeight, s)
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, content)

	return strings.Join([]string{
		tabBar,
		addressBar,
		body,
		a.renderStatus(width, s),
		a.renderFooter(width, s),
	}, "\n")
}
