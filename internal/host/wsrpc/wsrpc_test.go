package wsrpc

import (
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/hyprshell/internal/database"
	"github.com/jask/hyprshell/internal/host"
	"github.com/jask/hyprshell/internal/host/local"
	"github.com/jask/hyprshell/internal/session"
	"github.com/jask/hyprshell/internal/shell"
)

type stubRuntime struct {
	host.Unimplemented

	mu        sync.Mutex
	saved     session.State
	navigated []host.NavigateRequest
	pinned    []int
	theme     session.Theme
	windowOps []host.WindowOp
	block     chan struct{}
}

func (s *stubRuntime) LoadState(ctx context.Context) (session.State, error) {
	st := session.Default("https://home.test")
	st.VPNEnabled = true
	return st, nil
}

func (s *stubRuntime) SaveState(ctx context.Context, req host.SaveRequest) error {
	s.mu.Lock()
	s.saved = req.State
	s.mu.Unlock()
	return nil
}

func (s *stubRuntime) Navigate(ctx context.Context, req host.NavigateRequest) error {
	if req.URL == "block" && s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
		}
		return ctx.Err()
	}
	s.mu.Lock()
	s.navigated = append(s.navigated, req)
	s.mu.Unlock()
	return nil
}

func (s *stubRuntime) DuplicateTab(ctx context.Context, index int) error { return nil }

func (s *stubRuntime) PinTab(ctx context.Context, index int) error {
	s.mu.Lock()
	s.pinned = append(s.pinned, index)
	s.mu.Unlock()
	return nil
}

func (s *stubRuntime) ToggleIncognito(ctx context.Context) error { return nil }
func (s *stubRuntime) ToggleAdblock(ctx context.Context) error   { return nil }
func (s *stubRuntime) ToggleVPN(ctx context.Context) error {
	return errors.New("vpn unavailable")
}

func (s *stubRuntime) SetTheme(ctx context.Context, theme session.Theme) error {
	s.mu.Lock()
	s.theme = theme
	s.mu.Unlock()
	return nil
}

func (s *stubRuntime) EvaluateExpression(ctx context.Context, expr string) (any, error) {
	switch expr {
	case "null":
		return nil, nil
	case "2+2":
		return int64(4), nil
	}
	return nil, errors.New("syntax error")
}

func (s *stubRuntime) WindowControl(ctx context.Context, op host.WindowOp) error {
	s.mu.Lock()
	s.windowOps = append(s.windowOps, op)
	s.mu.Unlock()
	return nil
}

func (s *stubRuntime) History(ctx context.Context, q host.HistoryQuery) ([]host.Visit, error) {
	return []host.Visit{{ID: "1", URL: "https://a.test", Title: "A", VisitedAt: time.Unix(100, 0).UTC()}}, nil
}

func (s *stubRuntime) ClearHistory(ctx context.Context) error {
	return host.ErrUnsupported
}

func (s *stubRuntime) StartDownload(ctx context.Context, url string) (host.Download, error) {
	return host.Download{ID: "d1", URL: url, Filename: "a.zip", Status: host.DownloadPending}, nil
}

func (s *stubRuntime) PauseDownload(ctx context.Context, id string) error {
	if id != "d1" {
		return errors.New("download not found")
	}
	return nil
}

func (s *stubRuntime) InstallModule(ctx context.Context, repo string) (host.Module, error) {
	return host.Module{Name: "ext", Repo: repo, Version: "1.0.0", Enabled: true}, nil
}

func (s *stubRuntime) ApplyUpdate(ctx context.Context) (string, error) {
	return "/tmp/hyprshell-2.0.0.zip", nil
}

func startServer(t *testing.T, rt host.Runtime) *Client {
	t.Helper()
	srv := httptest.NewServer(NewHandler(rt, slog.New(slog.DiscardHandler)))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, err := Dial(context.Background(), url, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRoundTrip(t *testing.T) {
	rt := &stubRuntime{}
	c := startServer(t, rt)
	ctx := context.Background()

	st, err := c.LoadState(ctx)
	require.NoError(t, err)
	require.True(t, st.VPNEnabled)
	require.Len(t, st.Tabs, 1)
	require.Equal(t, "https://home.test", st.Tabs[0].URL)

	st.Theme = session.ThemeDark
	require.NoError(t, c.SaveState(ctx, host.SaveRequest{Writer: "w", Version: 1, State: st}))
	require.NoError(t, c.Navigate(ctx, host.NavigateRequest{URL: "https://a.test", Incognito: true}))
	require.NoError(t, c.PinTab(ctx, 2))
	require.NoError(t, c.SetTheme(ctx, session.ThemeLight))
	require.NoError(t, c.WindowControl(ctx, host.WindowMaximize))

	rt.mu.Lock()
	require.Equal(t, session.ThemeDark, rt.saved.Theme)
	require.Equal(t, []host.NavigateRequest{{URL: "https://a.test", Incognito: true}}, rt.navigated)
	require.Equal(t, []int{2}, rt.pinned)
	require.Equal(t, session.ThemeLight, rt.theme)
	require.Equal(t, []host.WindowOp{host.WindowMaximize}, rt.windowOps)
	rt.mu.Unlock()

	visits, err := c.History(ctx, host.HistoryQuery{Limit: 10})
	require.NoError(t, err)
	require.Len(t, visits, 1)
	require.Equal(t, "A", visits[0].Title)
}

func TestEvaluateExpression(t *testing.T) {
	c := startServer(t, &stubRuntime{})
	ctx := context.Background()

	v, err := c.EvaluateExpression(ctx, "2+2")
	require.NoError(t, err)
	require.Equal(t, float64(4), v)

	v, err = c.EvaluateExpression(ctx, "null")
	require.NoError(t, err)
	require.Nil(t, v)

	_, err = c.EvaluateExpression(ctx, "nope(")
	require.Error(t, err)
	var ce *host.CallError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, host.CallEvaluateExpression, ce.Call)
}

func TestErrorsCarryCallName(t *testing.T) {
	c := startServer(t, &stubRuntime{})
	ctx := context.Background()

	err := c.ToggleVPN(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), host.CallToggleVPN)
	var re *RemoteError
	require.ErrorAs(t, err, &re)
	require.Equal(t, CodeCallFailed, re.Code)

	err = c.ClearHistory(ctx)
	require.ErrorIs(t, err, host.ErrUnsupported)
}

func TestUnknownMethod(t *testing.T) {
	c := startServer(t, &stubRuntime{})
	err := c.call(context.Background(), "teleport", nil, nil)
	var re *RemoteError
	require.ErrorAs(t, err, &re)
	require.Equal(t, CodeUnknownMethod, re.Code)
}

func TestCallHonoursDeadline(t *testing.T) {
	rt := &stubRuntime{block: make(chan struct{})}
	defer close(rt.block)
	c := startServer(t, rt)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Navigate(ctx, host.NavigateRequest{URL: "block"})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, c.Navigate(context.Background(), host.NavigateRequest{URL: "https://after.test"}))
}

func TestCallsAfterConnectionLostFail(t *testing.T) {
	c := startServer(t, &stubRuntime{})
	_ = c.conn.Close()

	require.Eventually(t, func() bool {
		return errors.Is(c.ToggleAdblock(context.Background()), ErrNotConnected)
	}, 2*time.Second, 20*time.Millisecond)
}

func TestExtensionCalls(t *testing.T) {
	c := startServer(t, &stubRuntime{})
	ctx := context.Background()

	d, err := c.StartDownload(ctx, "https://files.test/a.zip")
	require.NoError(t, err)
	require.Equal(t, "d1", d.ID)
	require.Equal(t, host.DownloadPending, d.Status)
	require.NoError(t, c.PauseDownload(ctx, "d1"))
	require.Error(t, c.PauseDownload(ctx, "d2"))

	m, err := c.InstallModule(ctx, "octo/ext")
	require.NoError(t, err)
	require.Equal(t, "octo/ext", m.Repo)
	require.True(t, m.Enabled)

	path, err := c.ApplyUpdate(ctx)
	require.NoError(t, err)
	require.Equal(t, "/tmp/hyprshell-2.0.0.zip", path)

	_, err = c.CheckUpdates(ctx)
	require.ErrorIs(t, err, host.ErrUnsupported)
	var ce *host.CallError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, host.CallCheckUpdates, ce.Call)
}

// slowFirstSave stalls the first save_state so the shell gives up on it
// and sends the next snapshot while the first is still being written.
type slowFirstSave struct {
	*local.Runtime
	delay    time.Duration
	started  chan struct{}
	calls    atomic.Int32
	finished atomic.Int32
}

func (s *slowFirstSave) SaveState(ctx context.Context, req host.SaveRequest) error {
	if s.calls.Add(1) == 1 {
		close(s.started)
		time.Sleep(s.delay)
	}
	defer s.finished.Add(1)
	return s.Runtime.SaveState(ctx, req)
}

func TestTimedOutSaveCannotOverwriteNewer(t *testing.T) {
	db, err := database.OpenMigrated(filepath.Join(t.TempDir(), "host.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	discard := slog.New(slog.DiscardHandler)
	rt := local.New(db, local.Options{HomeURL: "https://home.test", Logger: discard})
	slow := &slowFirstSave{Runtime: rt, delay: 300 * time.Millisecond, started: make(chan struct{})}

	c := startServer(t, slow)
	sh := shell.New(c, shell.Options{HomeURL: "https://home.test", CallTimeout: 100 * time.Millisecond, Logger: discard})
	t.Cleanup(func() { _ = sh.Close(context.Background()) })

	sh.Navigate("old.test")
	select {
	case <-slow.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first save never reached the host")
	}
	sh.Navigate("new.test")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sh.Flush(ctx))
	require.Eventually(t, func() bool { return slow.finished.Load() == 2 }, 2*time.Second, 10*time.Millisecond)

	st, err := rt.LoadState(context.Background())
	require.NoError(t, err)
	require.Equal(t, "https://new.test", st.Active().URL)
}
