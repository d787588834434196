package session

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultHomeURL is used when no home URL is configured.
const DefaultHomeURL = "https://www.google.com"

// incognitoLabel is appended to incognito tab titles at display time only.
const incognitoLabel = " (Incognito)"

// Theme is the user's color preference.
type Theme string

const (
	ThemeSystem Theme = "system"
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
)

// Themes lists every theme in cycle order.
var Themes = []Theme{ThemeSystem, ThemeLight, ThemeDark}

// ParseTheme accepts the lower-case names plus the capitalised variants the
// host runtime has historically persisted.
func ParseTheme(s string) (Theme, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "system", "":
		return ThemeSystem, nil
	case "light":
		return ThemeLight, nil
	case "dark":
		return ThemeDark, nil
	}
	return ThemeSystem, fmt.Errorf("unknown theme %q", s)
}

func (t Theme) String() string { return string(t) }

// Next returns the theme after t in cycle order.
func (t Theme) Next() Theme {
	for i, th := range Themes {
		if th == t {
			return Themes[(i+1)%len(Themes)]
		}
	}
	return ThemeSystem
}

func (t Theme) MarshalText() ([]byte, error) {
	if t == "" {
		return []byte(ThemeSystem), nil
	}
	return []byte(t), nil
}

func (t *Theme) UnmarshalText(b []byte) error {
	parsed, err := ParseTheme(string(b))
	if err != nil {
		// Unknown values degrade to system rather than failing the whole load.
		parsed = ThemeSystem
	}
	*t = parsed
	return nil
}

// Panel names.
const (
	PanelBrowser   = "browser"
	PanelHistory   = "history"
	PanelSettings  = "settings"
	PanelLogs      = "logs"
	PanelDownloads = "downloads"
	PanelModules   = "modules"
)

// Panels lists the panels in sidebar order.
var Panels = []string{PanelBrowser, PanelHistory, PanelSettings, PanelLogs, PanelDownloads, PanelModules}

// ValidPanel reports whether name is a known panel.
func ValidPanel(name string) bool {
	for _, p := range Panels {
		if p == name {
			return true
		}
	}
	return false
}

// Tab is one open tab. Field names are the persisted wire names.
type Tab struct {
	URL        string   `json:"url"`
	Title      string   `json:"title"`
	Pinned     bool     `json:"pinned"`
	Incognito  bool     `json:"incognito"`
	History    []string `json:"history"`
	HistoryPos int      `json:"history_pos"`
}

// NewTab returns a tab pointed at u with a single history entry.
func NewTab(u string) Tab {
	return Tab{
		URL:     u,
		Title:   TitleFromURL(u),
		History: []string{u},
	}
}

// DisplayTitle derives the label shown in the tab bar.
func (t Tab) DisplayTitle() string {
	title := t.Title
	if title == "" {
		title = "New Tab"
	}
	if t.Incognito {
		title += incognitoLabel
	}
	return title
}

// Clone copies t including its history.
func (t Tab) Clone() Tab {
	out := t
	out.History = append([]string(nil), t.History...)
	return out
}

func (t *Tab) normalize(homeURL string) {
	t.Title = strings.TrimSuffix(t.Title, incognitoLabel)
	if len(t.History) == 0 {
		u := t.URL
		if u == "" {
			u = homeURL
		}
		t.History = []string{u}
		t.HistoryPos = 0
	}
	if t.HistoryPos < 0 {
		t.HistoryPos = 0
	}
	if t.HistoryPos >= len(t.History) {
		t.HistoryPos = len(t.History) - 1
	}
	if cur := t.History[t.HistoryPos]; t.URL != cur {
		t.URL = cur
		if t.Title == "" {
			t.Title = TitleFromURL(cur)
		}
	}
}

// State is the whole shell state as exchanged with the host runtime.
type State struct {
	Tabs           []Tab  `json:"tabs"`
	CurrentTab     int    `json:"current_tab"`
	Theme          Theme  `json:"theme"`
	AdblockEnabled bool   `json:"adblock_enabled"`
	VPNEnabled     bool   `json:"vpn_enabled"`
	CurrentPanel   string `json:"current_panel,omitempty"`
}

// Default is the state used on first start and whenever loading fails.
func Default(homeURL string) State {
	if homeURL == "" {
		homeURL = DefaultHomeURL
	}
	return State{
		Tabs:           []Tab{NewTab(homeURL)},
		CurrentTab:     0,
		Theme:          ThemeSystem,
		AdblockEnabled: true,
		VPNEnabled:     false,
		CurrentPanel:   PanelBrowser,
	}
}

// Normalize repairs a state received from outside: indices in range, history non-empty, known panel.
func (s *State) Normalize(homeURL string) {
	if homeURL == "" {
		homeURL = DefaultHomeURL
	}
	if len(s.Tabs) == 0 {
		s.Tabs = []Tab{NewTab(homeURL)}
	}
	for i := range s.Tabs {
		s.Tabs[i].normalize(homeURL)
	}
	if s.CurrentTab < 0 {
		s.CurrentTab = 0
	}
	if s.CurrentTab >= len(s.Tabs) {
		s.CurrentTab = len(s.Tabs) - 1
	}
	theme, err := ParseTheme(string(s.Theme))
	if err != nil {
		theme = ThemeSystem
	}
	s.Theme = theme
	if !ValidPanel(s.CurrentPanel) {
		s.CurrentPanel = PanelBrowser
	}
}

// Clone deep-copies the state.
func (s State) Clone() State {
	out := s
	out.Tabs = make([]Tab, len(s.Tabs))
	for i, t := range s.Tabs {
		out.Tabs[i] = t.Clone()
	}
	return out
}

// Active returns a pointer to the active tab, or nil when there are no tabs.
func (s *State) Active() *Tab {
	if s.CurrentTab < 0 || s.CurrentTab >= len(s.Tabs) {
		return nil
	}
	return &s.Tabs[s.CurrentTab]
}

// TitleFromURL returns the host of u, or u itself when it has none.
func TitleFromURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Hostname() == "" {
		return u
	}
	return parsed.Hostname()
}
