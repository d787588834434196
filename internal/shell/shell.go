// Package shell holds the browser shell state and applies user actions to it,
// mirroring every change to the host runtime.
package shell

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jask/hyprshell/internal/host"
	"github.com/jask/hyprshell/internal/session"
)

var (
	ErrUnknownPanel = errors.New("unknown panel")
	ErrUnknownTheme = errors.New("unknown theme")
	ErrUnknownOp    = errors.New("unknown window operation")
)

const defaultCallTimeout = 5 * time.Second

type Options struct {
	HomeURL     string
	SearchURL   string
	CallTimeout time.Duration
	Logger      *slog.Logger
}

// Shell is not safe for concurrent use. All methods except
// ResolveQuickSearch, History and ClearHistory must be called from the one
// goroutine that owns the UI.
type Shell struct {
	rt        host.Runtime
	log       *slog.Logger
	homeURL   string
	searchURL string
	timeout   time.Duration
	// writer identifies this shell's saves so the host can drop stale ones.
	writer string

	state         session.State
	lastRequested string

	saves *saveQueue
	out   *outbox
}

func New(rt host.Runtime, opts Options) *Shell {
	if opts.HomeURL == "" {
		opts.HomeURL = session.DefaultHomeURL
	}
	if opts.SearchURL == "" {
		opts.SearchURL = DefaultSearchURL
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Shell{
		rt:        rt,
		log:       opts.Logger,
		homeURL:   opts.HomeURL,
		searchURL: opts.SearchURL,
		timeout:   opts.CallTimeout,
		writer:    uuid.NewString(),
		state:     session.Default(opts.HomeURL),
	}
	s.saves = newSaveQueue(s.saveState, s.log, s.timeout)
	s.out = newOutbox(s.log, s.timeout)
	return s
}

func (s *Shell) saveState(ctx context.Context, version uint64, st session.State) error {
	return s.rt.SaveState(ctx, host.SaveRequest{Writer: s.writer, Version: version, State: st})
}

// State returns a copy of the current state.
func (s *Shell) State() session.State { return s.state.Clone() }

func (s *Shell) HomeURL() string   { return s.homeURL }
func (s *Shell) SearchURL() string { return s.searchURL }

// Load fetches persisted state from the host and applies it.
func (s *Shell) Load(ctx context.Context) {
	s.Restore(s.FetchState(ctx))
}

// FetchState calls load_state without touching shell state, so it may run
// off the UI goroutine. Pass the result to Restore.
func (s *Shell) FetchState(ctx context.Context) (session.State, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.rt.LoadState(ctx)
}

// Restore applies the result of a load_state call. A failed load resets the
// whole state to defaults.
func (s *Shell) Restore(st session.State, err error) {
	if err != nil {
		s.log.Warn("load state failed, using defaults", "err", host.Wrap(host.CallLoadState, err))
		st = session.Default(s.homeURL)
	} else {
		st.Normalize(s.homeURL)
	}
	s.state = st
	s.lastRequested = ""
	s.syncNavigation()
}

// Navigate loads input in the active tab and returns the normalized URL.
// Forward history past the current position is discarded.
func (s *Shell) Navigate(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}
	u := NormalizeURL(input, s.searchURL)
	tab := s.state.Active()
	tab.History = append(tab.History[:tab.HistoryPos+1:tab.HistoryPos+1], u)
	tab.HistoryPos = len(tab.History) - 1
	tab.URL = u
	tab.Title = session.TitleFromURL(u)
	s.persist()
	s.requestNavigation()
	return u
}

// Home navigates the active tab to the home URL.
func (s *Shell) Home() string { return s.Navigate(s.homeURL) }

// Back steps the active tab one entry back. It reports whether it moved.
func (s *Shell) Back() bool { return s.step(-1) }

// Forward steps the active tab one entry forward.
func (s *Shell) Forward() bool { return s.step(1) }

func (s *Shell) step(delta int) bool {
	tab := s.state.Active()
	pos := tab.HistoryPos + delta
	if pos < 0 || pos >= len(tab.History) {
		return false
	}
	tab.HistoryPos = pos
	tab.URL = tab.History[pos]
	tab.Title = session.TitleFromURL(tab.URL)
	s.persist()
	s.requestNavigation()
	return true
}

// Reload asks the host to load the active URL again.
func (s *Shell) Reload() { s.requestNavigation() }

func (s *Shell) NewTab() {
	s.appendTab(session.NewTab(s.homeURL))
}

func (s *Shell) NewIncognitoTab() {
	t := session.NewTab(s.homeURL)
	t.Incognito = true
	s.appendTab(t)
}

func (s *Shell) appendTab(t session.Tab) {
	s.state.Tabs = append(s.state.Tabs, t)
	s.state.CurrentTab = len(s.state.Tabs) - 1
	s.persist()
	s.syncNavigation()
}

// CloseTab removes tab i. The last remaining tab cannot be closed.
func (s *Shell) CloseTab(i int) bool {
	if len(s.state.Tabs) <= 1 || i < 0 || i >= len(s.state.Tabs) {
		return false
	}
	s.state.Tabs = append(s.state.Tabs[:i], s.state.Tabs[i+1:]...)
	if i < s.state.CurrentTab {
		s.state.CurrentTab--
	}
	if s.state.CurrentTab >= len(s.state.Tabs) {
		s.state.CurrentTab = len(s.state.Tabs) - 1
	}
	s.persist()
	s.syncNavigation()
	return true
}

// CloseActiveTab closes the current tab.
func (s *Shell) CloseActiveTab() bool { return s.CloseTab(s.state.CurrentTab) }

// DuplicateTab copies the active tab, unpinned, and selects the copy.
func (s *Shell) DuplicateTab() {
	dup := s.state.Active().Clone()
	dup.Pinned = false
	s.state.Tabs = append(s.state.Tabs, dup)
	idx := len(s.state.Tabs) - 1
	s.state.CurrentTab = idx
	s.persist()
	s.out.Send(host.CallDuplicateTab, func(ctx context.Context) error {
		return s.rt.DuplicateTab(ctx, idx)
	})
	s.syncNavigation()
}

func (s *Shell) CloseOtherTabs() {
	active := *s.state.Active()
	s.state.Tabs = []session.Tab{active}
	s.state.CurrentTab = 0
	s.persist()
}

// PinTab toggles the pinned flag of tab i.
func (s *Shell) PinTab(i int) bool {
	if i < 0 || i >= len(s.state.Tabs) {
		return false
	}
	s.state.Tabs[i].Pinned = !s.state.Tabs[i].Pinned
	s.persist()
	s.out.Send(host.CallPinTab, func(ctx context.Context) error {
		return s.rt.PinTab(ctx, i)
	})
	return true
}

func (s *Shell) ToggleIncognito() {
	tab := s.state.Active()
	tab.Incognito = !tab.Incognito
	s.persist()
	s.out.Send(host.CallToggleIncognito, s.rt.ToggleIncognito)
}

// SelectTab makes tab i active. Out of range indexes are ignored.
func (s *Shell) SelectTab(i int) bool {
	if i < 0 || i >= len(s.state.Tabs) {
		return false
	}
	s.state.CurrentTab = i
	s.persist()
	s.syncNavigation()
	return true
}

func (s *Shell) NextTab() { s.SelectTab((s.state.CurrentTab + 1) % len(s.state.Tabs)) }

func (s *Shell) PrevTab() {
	n := len(s.state.Tabs)
	s.SelectTab((s.state.CurrentTab - 1 + n) % n)
}

func (s *Shell) ToggleAdblock() {
	s.state.AdblockEnabled = !s.state.AdblockEnabled
	s.persist()
	s.out.Send(host.CallToggleAdblock, s.rt.ToggleAdblock)
}

func (s *Shell) ToggleVPN() {
	s.state.VPNEnabled = !s.state.VPNEnabled
	s.persist()
	s.out.Send(host.CallToggleVPN, s.rt.ToggleVPN)
}

func (s *Shell) SetTheme(t session.Theme) error {
	parsed, err := session.ParseTheme(string(t))
	if err != nil || t == "" {
		return fmt.Errorf("%w: %q", ErrUnknownTheme, t)
	}
	s.state.Theme = parsed
	s.persist()
	s.out.Send(host.CallSetTheme, func(ctx context.Context) error {
		return s.rt.SetTheme(ctx, parsed)
	})
	return nil
}

// CycleTheme advances system, light, dark and back to system.
func (s *Shell) CycleTheme() session.Theme {
	next := s.state.Theme.Next()
	_ = s.SetTheme(next)
	return next
}

// SwitchPanel shows the named side panel.
func (s *Shell) SwitchPanel(name string) error {
	if !session.ValidPanel(name) {
		return fmt.Errorf("%w: %q", ErrUnknownPanel, name)
	}
	s.state.CurrentPanel = name
	s.persist()
	return nil
}

// Window forwards a window-chrome request to the host.
func (s *Shell) Window(op host.WindowOp) error {
	switch op {
	case host.WindowClose, host.WindowMinimize, host.WindowMaximize:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOp, op)
	}
	s.out.Send(host.CallWindowControl, func(ctx context.Context) error {
		return s.rt.WindowControl(ctx, op)
	})
	return nil
}

// ResolveQuickSearch asks the host to evaluate input and returns the URL to
// open. A null result opens nothing; an evaluation failure searches for the
// raw input. It does not touch shell state.
func (s *Shell) ResolveQuickSearch(ctx context.Context, input string) (string, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", false
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	result, err := s.rt.EvaluateExpression(ctx, input)
	if err != nil {
		s.log.Info("quick search evaluation failed, searching raw input",
			"input", input, "err", host.Wrap(host.CallEvaluateExpression, err))
		return SearchURL(s.searchURL, input), true
	}
	if result == nil {
		return "", false
	}
	return SearchURL(s.searchURL, stringify(result)), true
}

// History lists host visits matching query.
func (s *Shell) History(ctx context.Context, query string, limit int) ([]host.Visit, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	visits, err := s.rt.History(ctx, host.HistoryQuery{Query: query, Limit: limit})
	return visits, host.Wrap(host.CallGetHistory, err)
}

func (s *Shell) ClearHistory(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return host.Wrap(host.CallClearHistory, s.rt.ClearHistory(ctx))
}

// Flush waits until all queued saves and host calls have been delivered.
func (s *Shell) Flush(ctx context.Context) error {
	if err := s.saves.Flush(ctx); err != nil {
		return err
	}
	return s.out.Flush(ctx)
}

// Close flushes and stops the background workers.
func (s *Shell) Close(ctx context.Context) error {
	err := s.Flush(ctx)
	s.saves.Close()
	s.out.Close()
	return err
}

func (s *Shell) persist() {
	s.saves.Submit(s.state.Clone())
}

// syncNavigation requests a load only when the active URL differs from the
// last one sent to the host.
func (s *Shell) syncNavigation() {
	if tab := s.state.Active(); tab != nil && tab.URL != s.lastRequested {
		s.requestNavigation()
	}
}

func (s *Shell) requestNavigation() {
	tab := s.state.Active()
	if tab == nil {
		return
	}
	req := host.NavigateRequest{URL: tab.URL, Incognito: tab.Incognito}
	s.lastRequested = req.URL
	s.out.Send(host.CallNavigate, func(ctx context.Context) error {
		return s.rt.Navigate(ctx, req)
	})
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(v)
	}
}
