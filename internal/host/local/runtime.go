// Package local is an in-process host runtime backed by sqlite. It persists
// session state, records browsing history and evaluates quick-search
// expressions. It does not render pages; navigation only records a visit.
package local

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jask/hyprshell/internal/database/repository"
	"github.com/jask/hyprshell/internal/host"
	"github.com/jask/hyprshell/internal/session"
)

const titleTimeout = 10 * time.Second

// TitleFetcher resolves the document title of a URL.
type TitleFetcher interface {
	Title(ctx context.Context, url string) (string, error)
}

// Evaluator evaluates quick-search expressions.
type Evaluator interface {
	Eval(ctx context.Context, expr string) (any, error)
}

// Mirror is the host-side bookkeeping of shell actions.
type Mirror struct {
	CurrentURL     string
	Incognito      bool
	AdblockEnabled bool
	VPNEnabled     bool
	Theme          session.Theme
	Pinned         []int
	Duplicated     []int
	IncognitoFlips int
	LastWindowOp   host.WindowOp
}

type Options struct {
	HomeURL   string
	Logger    *slog.Logger
	Titles    TitleFetcher
	Evaluator Evaluator
	// OnWindow receives window-chrome requests.
	OnWindow func(host.WindowOp) error
	// Downloads, Modules and Updates serve the extension calls; a nil one
	// answers with host.ErrUnsupported.
	Downloads host.DownloadHost
	Modules   host.ModuleHost
	Updates   host.UpdateHost
}

type Runtime struct {
	sessions *repository.SessionRepo
	visits   *repository.VisitRepo
	log      *slog.Logger
	homeURL  string
	titles   TitleFetcher
	eval     Evaluator

	downloads host.DownloadHost
	modules   host.ModuleHost
	updates   host.UpdateHost

	mu       sync.Mutex
	mirror   Mirror
	onWindow func(host.WindowOp) error

	// saveMu orders writes; lastVersion is the newest stored version per writer.
	saveMu      sync.Mutex
	lastVersion map[string]uint64

	fetches sync.WaitGroup
}

var _ host.Runtime = (*Runtime)(nil)

func New(db *sql.DB, opts Options) *Runtime {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.HomeURL == "" {
		opts.HomeURL = session.DefaultHomeURL
	}
	def := session.Default(opts.HomeURL)
	return &Runtime{
		sessions:    repository.NewSessionRepo(db),
		visits:      repository.NewVisitRepo(db),
		log:         opts.Logger,
		homeURL:     opts.HomeURL,
		titles:      opts.Titles,
		eval:        opts.Evaluator,
		onWindow:    opts.OnWindow,
		downloads:   opts.Downloads,
		modules:     opts.Modules,
		updates:     opts.Updates,
		lastVersion: make(map[string]uint64),
		mirror: Mirror{
			AdblockEnabled: def.AdblockEnabled,
			VPNEnabled:     def.VPNEnabled,
			Theme:          def.Theme,
		},
	}
}

// OnWindow replaces the window-chrome callback.
func (r *Runtime) OnWindow(fn func(host.WindowOp) error) {
	r.mu.Lock()
	r.onWindow = fn
	r.mu.Unlock()
}

// Mirror returns a copy of the host-side bookkeeping.
func (r *Runtime) Mirror() Mirror {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.mirror
	m.Pinned = append([]int(nil), r.mirror.Pinned...)
	m.Duplicated = append([]int(nil), r.mirror.Duplicated...)
	return m
}

// Wait blocks until background title fetches finish.
func (r *Runtime) Wait() { r.fetches.Wait() }

func (r *Runtime) LoadState(ctx context.Context) (session.State, error) {
	st, found, err := r.sessions.Load(ctx)
	if err != nil {
		return session.State{}, fmt.Errorf("load session: %w", err)
	}
	if !found {
		st = session.Default(r.homeURL)
	}
	r.mu.Lock()
	r.mirror.AdblockEnabled = st.AdblockEnabled
	r.mirror.VPNEnabled = st.VPNEnabled
	r.mirror.Theme = st.Theme
	r.mu.Unlock()
	return st, nil
}

// SaveState stores req.State unless the same writer already stored a newer
// version. Requests without a writer or version are always stored.
func (r *Runtime) SaveState(ctx context.Context, req host.SaveRequest) error {
	if len(req.State.Tabs) == 0 {
		return errors.New("refusing to save a state without tabs")
	}
	r.saveMu.Lock()
	defer r.saveMu.Unlock()
	versioned := req.Writer != "" && req.Version > 0
	if versioned && req.Version <= r.lastVersion[req.Writer] {
		r.log.Debug("stale save dropped", "writer", req.Writer,
			"version", req.Version, "stored", r.lastVersion[req.Writer])
		return nil
	}
	if err := r.sessions.Save(ctx, req.State); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if versioned {
		r.lastVersion[req.Writer] = req.Version
	}
	return nil
}

func (r *Runtime) Navigate(ctx context.Context, req host.NavigateRequest) error {
	if strings.TrimSpace(req.URL) == "" {
		return errors.New("navigate: empty url")
	}
	r.mu.Lock()
	r.mirror.CurrentURL = req.URL
	r.mirror.Incognito = req.Incognito
	r.mu.Unlock()
	r.log.Info("navigate", "url", req.URL, "incognito", req.Incognito)

	if req.Incognito || !recordable(req.URL) {
		return nil
	}
	v, err := r.visits.Record(ctx, req.URL, session.TitleFromURL(req.URL))
	if err != nil {
		return fmt.Errorf("record visit: %w", err)
	}
	if r.titles != nil {
		r.fetches.Add(1)
		go r.fetchTitle(v.ID, v.URL)
	}
	return nil
}

func (r *Runtime) fetchTitle(id, url string) {
	defer r.fetches.Done()
	ctx, cancel := context.WithTimeout(context.Background(), titleTimeout)
	defer cancel()
	title, err := r.titles.Title(ctx, url)
	if err != nil {
		r.log.Debug("title fetch failed", "url", url, "err", err)
		return
	}
	if title == "" {
		return
	}
	if err := r.visits.SetTitle(ctx, id, title); err != nil {
		r.log.Warn("update visit title failed", "url", url, "err", err)
	}
}

func recordable(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "file:")
}

func (r *Runtime) DuplicateTab(ctx context.Context, index int) error {
	r.mu.Lock()
	r.mirror.Duplicated = append(r.mirror.Duplicated, index)
	r.mu.Unlock()
	r.log.Info("duplicate tab", "index", index)
	return nil
}

func (r *Runtime) PinTab(ctx context.Context, index int) error {
	r.mu.Lock()
	r.mirror.Pinned = append(r.mirror.Pinned, index)
	r.mu.Unlock()
	r.log.Info("pin tab", "index", index)
	return nil
}

func (r *Runtime) ToggleIncognito(ctx context.Context) error {
	r.mu.Lock()
	r.mirror.IncognitoFlips++
	r.mu.Unlock()
	r.log.Info("toggle incognito")
	return nil
}

func (r *Runtime) ToggleAdblock(ctx context.Context) error {
	r.mu.Lock()
	r.mirror.AdblockEnabled = !r.mirror.AdblockEnabled
	on := r.mirror.AdblockEnabled
	r.mu.Unlock()
	r.log.Info("toggle adblock", "enabled", on)
	return nil
}

func (r *Runtime) ToggleVPN(ctx context.Context) error {
	r.mu.Lock()
	r.mirror.VPNEnabled = !r.mirror.VPNEnabled
	on := r.mirror.VPNEnabled
	r.mu.Unlock()
	r.log.Info("toggle vpn", "enabled", on)
	return nil
}

func (r *Runtime) SetTheme(ctx context.Context, theme session.Theme) error {
	parsed, err := session.ParseTheme(string(theme))
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.mirror.Theme = parsed
	r.mu.Unlock()
	r.log.Info("set theme", "theme", parsed)
	return nil
}

func (r *Runtime) EvaluateExpression(ctx context.Context, expr string) (any, error) {
	if r.eval == nil {
		return nil, host.ErrUnsupported
	}
	return r.eval.Eval(ctx, expr)
}

func (r *Runtime) WindowControl(ctx context.Context, op host.WindowOp) error {
	r.mu.Lock()
	r.mirror.LastWindowOp = op
	fn := r.onWindow
	r.mu.Unlock()
	r.log.Info("window control", "op", op)
	if fn == nil {
		return nil
	}
	return fn(op)
}

func (r *Runtime) History(ctx context.Context, q host.HistoryQuery) ([]host.Visit, error) {
	limit := q.Limit
	if strings.TrimSpace(q.Query) != "" {
		limit = 0
	}
	rows, err := r.visits.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	visits := make([]host.Visit, 0, len(rows))
	for _, v := range rows {
		visits = append(visits, host.Visit{ID: v.ID, URL: v.URL, Title: v.Title, VisitedAt: v.VisitedAt})
	}
	if strings.TrimSpace(q.Query) != "" {
		visits = Rank(visits, q.Query)
		if q.Limit > 0 && len(visits) > q.Limit {
			visits = visits[:q.Limit]
		}
	}
	return visits, nil
}

func (r *Runtime) ClearHistory(ctx context.Context) error {
	if err := r.visits.Clear(ctx); err != nil {
		return fmt.Errorf("clear visits: %w", err)
	}
	r.log.Info("history cleared")
	return nil
}
