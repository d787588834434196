// Package keys maps key presses to shell actions per input scope and lets
// users override the defaults from a TOML file.
package keys

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

type Action string

// Binding ties an action to its keys. The first key is shown in help.
type Binding struct {
	Action Action
	Keys   []string
	Help   string
}

const (
	ScopeGlobal    = "global"
	ScopeAddress   = "address"
	ScopePrompt    = "prompt"
	ScopeHistory   = "history"
	ScopeSettings  = "settings"
	ScopeLogs      = "logs"
	ScopeDownloads = "downloads"
	ScopeModules   = "modules"
	// ScopeCatalog is the module search result list.
	ScopeCatalog = "catalog"
)

const (
	ActionNewTab          Action = "new_tab"
	ActionNewIncognitoTab Action = "new_incognito_tab"
	ActionDuplicateTab    Action = "duplicate_tab"
	ActionCloseTab        Action = "close_tab"
	ActionFocusAddress    Action = "focus_address"
	ActionHome            Action = "home"
	ActionQuickSearch     Action = "quick_search"
	ActionBack            Action = "back"
	ActionForward         Action = "forward"
	ActionReload          Action = "reload"
	ActionNextTab         Action = "next_tab"
	ActionPrevTab         Action = "prev_tab"
	ActionPinTab          Action = "pin_tab"
	ActionToggleIncognito Action = "toggle_incognito"
	ActionCloseOthers     Action = "close_other_tabs"
	ActionToggleAdblock   Action = "toggle_adblock"
	ActionToggleVPN       Action = "toggle_vpn"
	ActionCycleTheme      Action = "cycle_theme"
	ActionDownloadPage    Action = "download_page"
	ActionPanelBrowser    Action = "panel_browser"
	ActionPanelHistory    Action = "panel_history"
	ActionPanelSettings   Action = "panel_settings"
	ActionPanelLogs       Action = "panel_logs"
	ActionPanelDownloads  Action = "panel_downloads"
	ActionPanelModules    Action = "panel_modules"
	ActionWindowClose     Action = "window_close"
	ActionWindowMaximize  Action = "window_maximize"
	ActionWindowMinimize  Action = "window_minimize"

	ActionConfirm  Action = "confirm"
	ActionCancel   Action = "cancel"
	ActionNavigate Action = "navigate"
	ActionSelect   Action = "select"
	ActionClear    Action = "clear"
	ActionFilter   Action = "filter"
	ActionToggle   Action = "toggle"
	ActionPause    Action = "pause_resume"
	ActionRemove   Action = "remove"
	ActionRefresh  Action = "refresh"
)

var navigate = Binding{ActionNavigate, []string{"j/k", "j", "k", "up", "down"}, "navigate"}

// defaults lists every scope's bindings in dispatch priority order.
var defaults = map[string][]Binding{
	ScopeGlobal: {
		{ActionNewTab, []string{"T"}, "new tab"},
		{ActionNewIncognitoTab, []string{"ctrl+t"}, "incognito tab"},
		{ActionDuplicateTab, []string{"D"}, "duplicate"},
		{ActionCloseTab, []string{"ctrl+w"}, "close tab"},
		{ActionFocusAddress, []string{"U"}, "address"},
		{ActionHome, []string{"H"}, "home"},
		{ActionQuickSearch, []string{"shift+tab"}, "quick search"},
		{ActionBack, []string{"B", "alt+left"}, "back"},
		{ActionForward, []string{"F", "alt+right"}, "forward"},
		{ActionReload, []string{"R"}, "reload"},
		{ActionNextTab, []string{"]", "tab"}, "next tab"},
		{ActionPrevTab, []string{"["}, "prev tab"},
		{ActionPinTab, []string{"P"}, "pin"},
		{ActionToggleIncognito, []string{"I"}, "incognito"},
		{ActionCloseOthers, []string{"O"}, "close others"},
		{ActionToggleAdblock, []string{"A"}, "adblock"},
		{ActionToggleVPN, []string{"V"}, "vpn"},
		{ActionCycleTheme, []string{"M"}, "theme"},
		{ActionDownloadPage, []string{"S"}, "save page"},
		{ActionPanelBrowser, []string{"1"}, "browser"},
		{ActionPanelHistory, []string{"2"}, "history"},
		{ActionPanelSettings, []string{"3"}, "settings"},
		{ActionPanelLogs, []string{"4"}, "logs"},
		{ActionPanelDownloads, []string{"5"}, "downloads"},
		{ActionPanelModules, []string{"6"}, "modules"},
		{ActionWindowClose, []string{"ctrl+q", "ctrl+c"}, "quit"},
		{ActionWindowMaximize, []string{"ctrl+up"}, "maximize"},
		{ActionWindowMinimize, []string{"ctrl+down"}, "minimize"},
	},
	ScopeAddress: {
		{ActionConfirm, []string{"enter"}, "go"},
		{ActionCancel, []string{"esc"}, "cancel"},
	},
	ScopePrompt: {
		{ActionConfirm, []string{"enter"}, "search"},
		{ActionCancel, []string{"esc"}, "cancel"},
	},
	ScopeHistory: {
		navigate,
		{ActionSelect, []string{"enter"}, "open"},
		{ActionFilter, []string{"/"}, "filter"},
		{ActionClear, []string{"c"}, "clear history"},
		{ActionCancel, []string{"esc"}, "back"},
	},
	ScopeSettings: {
		navigate,
		{ActionToggle, []string{"enter", "space"}, "toggle"},
		{ActionCancel, []string{"esc"}, "back"},
	},
	ScopeLogs: {
		{ActionCancel, []string{"esc"}, "back"},
	},
	ScopeDownloads: {
		navigate,
		{ActionPause, []string{"p", "space"}, "pause/resume"},
		{ActionRemove, []string{"x"}, "cancel download"},
		{ActionRefresh, []string{"r"}, "refresh"},
		{ActionCancel, []string{"esc"}, "back"},
	},
	ScopeModules: {
		navigate,
		{ActionToggle, []string{"e", "enter"}, "enable/disable"},
		{ActionRemove, []string{"d"}, "uninstall"},
		{ActionFilter, []string{"/"}, "search"},
		{ActionCancel, []string{"esc"}, "back"},
	},
	ScopeCatalog: {
		navigate,
		{ActionSelect, []string{"enter"}, "install"},
		{ActionCancel, []string{"esc"}, "close"},
	},
}

// Registry resolves keys to bindings. It is replaced, never mutated, once
// handed to the UI.
type Registry struct {
	scopes map[string][]Binding
	index  map[string]map[string]int
}

func NewRegistry() *Registry {
	scopes := make(map[string][]Binding, len(defaults))
	for name, list := range defaults {
		scopes[name] = cloneBindings(list)
	}
	r := &Registry{scopes: scopes}
	r.reindex()
	return r
}

// Lookup resolves key in scope, then in the global scope.
func (r *Registry) Lookup(key, scope string) (Action, bool) {
	if a, ok := r.LookupLocal(key, scope); ok {
		return a, true
	}
	if scope == ScopeGlobal {
		return "", false
	}
	return r.LookupLocal(key, ScopeGlobal)
}

// LookupLocal resolves key in scope only. Text-entry scopes use it so typed
// characters never trigger global shortcuts.
func (r *Registry) LookupLocal(key, scope string) (Action, bool) {
	i, ok := r.index[scope][canonicalKey(key)]
	if !ok {
		return "", false
	}
	return r.scopes[scope][i].Action, true
}

// Help returns the scope's bindings for the bubbles help view.
func (r *Registry) Help(scope string) []key.Binding {
	out := make([]key.Binding, 0, len(r.scopes[scope]))
	for _, b := range r.scopes[scope] {
		out = append(out, key.NewBinding(key.WithKeys(b.Keys...), key.WithHelp(b.Keys[0], b.Help)))
	}
	return out
}

// Override rebinds one action in one scope.
type Override struct {
	Scope  string   `toml:"scope"`
	Action string   `toml:"action"`
	Keys   []string `toml:"keys"`
}

// Apply rebinds actions. On error the registry is unchanged.
func (r *Registry) Apply(items []Override) error {
	if len(items) == 0 {
		return nil
	}
	next := make(map[string][]Binding, len(r.scopes))
	for name, list := range r.scopes {
		next[name] = cloneBindings(list)
	}
	done := make(map[[2]string]bool)
	for _, o := range items {
		scope, action := strings.TrimSpace(o.Scope), strings.TrimSpace(o.Action)
		where := fmt.Sprintf("keybinding override scope=%q action=%q", scope, action)
		switch {
		case scope == "":
			return fmt.Errorf("keybinding override: scope is required")
		case action == "":
			return fmt.Errorf("%s: action is required", where)
		}
		list, ok := next[scope]
		if !ok {
			return fmt.Errorf("%s: unknown scope", where)
		}
		i := slices.IndexFunc(list, func(b Binding) bool { return b.Action == Action(action) })
		if i < 0 {
			return fmt.Errorf("%s: unknown action in scope", where)
		}
		keys := canonicalKeys(o.Keys)
		if len(keys) == 0 {
			return fmt.Errorf("%s: keys are required", where)
		}
		if done[[2]string{scope, action}] {
			return fmt.Errorf("%s: duplicated override entry", where)
		}
		done[[2]string{scope, action}] = true
		list[i].Keys = keys
	}
	for name, list := range next {
		owner := make(map[string]Action)
		for _, b := range list {
			for _, k := range b.Keys {
				if prev, taken := owner[k]; taken {
					return fmt.Errorf("keybinding override conflict in scope=%q: key %q used by both %q and %q", name, k, prev, b.Action)
				}
				owner[k] = b.Action
			}
		}
	}
	r.scopes = next
	r.reindex()
	return nil
}

// Export lists every binding as an override, sorted by scope then action.
func (r *Registry) Export() []Override {
	var out []Override
	for name, list := range r.scopes {
		for _, b := range list {
			out = append(out, Override{Scope: name, Action: string(b.Action), Keys: slices.Clone(b.Keys)})
		}
	}
	slices.SortFunc(out, func(a, b Override) int {
		if c := strings.Compare(a.Scope, b.Scope); c != 0 {
			return c
		}
		return strings.Compare(a.Action, b.Action)
	})
	return out
}

// reindex maps each key to the first binding that claims it.
func (r *Registry) reindex() {
	r.index = make(map[string]map[string]int, len(r.scopes))
	for name, list := range r.scopes {
		idx := make(map[string]int)
		for i, b := range list {
			for _, k := range b.Keys {
				if _, taken := idx[k]; !taken {
					idx[k] = i
				}
			}
		}
		r.index[name] = idx
	}
}

func cloneBindings(list []Binding) []Binding {
	out := make([]Binding, len(list))
	for i, b := range list {
		b.Keys = canonicalKeys(b.Keys)
		out[i] = b
	}
	return out
}

func canonicalKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if c := canonicalKey(k); c != "" && !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

var keyAliases = strings.NewReplacer("control+", "ctrl+", "ctl+", "ctrl+", "return", "enter", "spacebar", "space")

// canonicalKey lowercases key names except single capital letters, which
// stay distinct from their lowercase forms.
func canonicalKey(k string) string {
	if k == " " {
		return "space"
	}
	k = strings.TrimSpace(k)
	if len(k) == 1 && k[0] >= 'A' && k[0] <= 'Z' {
		return k
	}
	return keyAliases.Replace(strings.ReplaceAll(strings.ToLower(k), " ", ""))
}
