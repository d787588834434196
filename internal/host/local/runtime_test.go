package local

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/hyprshell/internal/database"
	"github.com/jask/hyprshell/internal/evaluator"
	"github.com/jask/hyprshell/internal/host"
	"github.com/jask/hyprshell/internal/session"
)

type fixedTitles struct {
	title string
	err   error
}

func (p fixedTitles) Title(ctx context.Context, url string) (string, error) {
	return p.title, p.err
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenMigrated(filepath.Join(t.TempDir(), "host.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newRuntime(t *testing.T, opts Options) *Runtime {
	t.Helper()
	opts.HomeURL = "https://home.test"
	opts.Logger = slog.New(slog.DiscardHandler)
	return New(openTestDB(t), opts)
}

func TestLoadStateDefaultsWhenEmpty(t *testing.T) {
	rt := newRuntime(t, Options{})
	st, err := rt.LoadState(context.Background())
	require.NoError(t, err)
	require.Equal(t, session.Default("https://home.test"), st)
}

func TestSaveThenLoad(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t, Options{})

	st := session.Default("https://home.test")
	st.Tabs = append(st.Tabs, session.NewTab("https://b.test"))
	st.CurrentTab = 1
	st.Theme = session.ThemeLight
	st.AdblockEnabled = false
	require.NoError(t, rt.SaveState(ctx, host.SaveRequest{State: st}))

	got, err := rt.LoadState(ctx)
	require.NoError(t, err)
	require.Equal(t, st, got)
	require.Equal(t, session.ThemeLight, rt.Mirror().Theme)
	require.False(t, rt.Mirror().AdblockEnabled)

	require.Error(t, rt.SaveState(ctx, host.SaveRequest{}))
}

func TestSaveStateDropsStaleVersions(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t, Options{})

	withURL := func(u string) session.State {
		st := session.Default("https://home.test")
		st.Tabs[0] = session.NewTab(u)
		return st
	}
	activeURL := func() string {
		st, err := rt.LoadState(ctx)
		require.NoError(t, err)
		return st.Active().URL
	}

	require.NoError(t, rt.SaveState(ctx, host.SaveRequest{Writer: "a", Version: 2, State: withURL("https://new.test")}))
	require.NoError(t, rt.SaveState(ctx, host.SaveRequest{Writer: "a", Version: 1, State: withURL("https://old.test")}))
	require.Equal(t, "https://new.test", activeURL())

	// Same version again is a duplicate, not an update.
	require.NoError(t, rt.SaveState(ctx, host.SaveRequest{Writer: "a", Version: 2, State: withURL("https://dup.test")}))
	require.Equal(t, "https://new.test", activeURL())

	// Versions are tracked per writer.
	require.NoError(t, rt.SaveState(ctx, host.SaveRequest{Writer: "b", Version: 1, State: withURL("https://b.test")}))
	require.Equal(t, "https://b.test", activeURL())

	// Unversioned saves always land.
	require.NoError(t, rt.SaveState(ctx, host.SaveRequest{State: withURL("https://plain.test")}))
	require.Equal(t, "https://plain.test", activeURL())
}

type recordingDownloads struct {
	host.Unimplemented
	started []string
}

func (d *recordingDownloads) StartDownload(ctx context.Context, url string) (host.Download, error) {
	d.started = append(d.started, url)
	return host.Download{ID: "d1", URL: url, Status: host.DownloadPending}, nil
}

func TestExtensionCallsDelegate(t *testing.T) {
	ctx := context.Background()
	dl := &recordingDownloads{}
	rt := newRuntime(t, Options{Downloads: dl})

	d, err := rt.StartDownload(ctx, "https://files.test/a.zip")
	require.NoError(t, err)
	require.Equal(t, "d1", d.ID)
	require.Equal(t, []string{"https://files.test/a.zip"}, dl.started)
	require.ErrorIs(t, rt.PauseDownload(ctx, "d1"), host.ErrUnsupported)

	_, err = rt.Modules(ctx)
	require.ErrorIs(t, err, host.ErrUnsupported)
	_, err = rt.CheckUpdates(ctx)
	require.ErrorIs(t, err, host.ErrUnsupported)
}

func TestNavigateRecordsVisitAndFetchesTitle(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t, Options{Titles: fixedTitles{title: "Example Domain"}})

	require.NoError(t, rt.Navigate(ctx, host.NavigateRequest{URL: "https://example.com/"}))
	rt.Wait()

	visits, err := rt.History(ctx, host.HistoryQuery{})
	require.NoError(t, err)
	require.Len(t, visits, 1)
	require.Equal(t, "https://example.com/", visits[0].URL)
	require.Equal(t, "Example Domain", visits[0].Title)
	require.Equal(t, "https://example.com/", rt.Mirror().CurrentURL)
}

func TestNavigateTitleFailureKeepsHostTitle(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t, Options{Titles: fixedTitles{err: errors.New("offline")}})

	require.NoError(t, rt.Navigate(ctx, host.NavigateRequest{URL: "https://example.com/"}))
	rt.Wait()

	visits, err := rt.History(ctx, host.HistoryQuery{})
	require.NoError(t, err)
	require.Len(t, visits, 1)
	require.Equal(t, "example.com", visits[0].Title)
}

func TestIncognitoAndInternalPagesNotRecorded(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t, Options{})

	require.NoError(t, rt.Navigate(ctx, host.NavigateRequest{URL: "https://secret.test", Incognito: true}))
	require.NoError(t, rt.Navigate(ctx, host.NavigateRequest{URL: "about:blank"}))
	require.Error(t, rt.Navigate(ctx, host.NavigateRequest{URL: " "}))

	visits, err := rt.History(ctx, host.HistoryQuery{})
	require.NoError(t, err)
	require.Empty(t, visits)
	require.False(t, rt.Mirror().Incognito)
}

func TestHistoryQueryAndClear(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t, Options{})
	for _, u := range []string{"https://github.com/x", "https://news.ycombinator.com", "https://go.dev/doc"} {
		require.NoError(t, rt.Navigate(ctx, host.NavigateRequest{URL: u}))
	}

	all, err := rt.History(ctx, host.HistoryQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, all, 2)

	hits, err := rt.History(ctx, host.HistoryQuery{Query: "githb"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "https://github.com/x", hits[0].URL)

	require.NoError(t, rt.ClearHistory(ctx))
	all, err = rt.History(ctx, host.HistoryQuery{})
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestMirrorBookkeeping(t *testing.T) {
	ctx := context.Background()
	var ops []host.WindowOp
	rt := newRuntime(t, Options{OnWindow: func(op host.WindowOp) error {
		ops = append(ops, op)
		return nil
	}})

	require.NoError(t, rt.ToggleAdblock(ctx))
	require.NoError(t, rt.ToggleVPN(ctx))
	require.NoError(t, rt.SetTheme(ctx, session.ThemeDark))
	require.Error(t, rt.SetTheme(ctx, "neon"))
	require.NoError(t, rt.PinTab(ctx, 1))
	require.NoError(t, rt.DuplicateTab(ctx, 2))
	require.NoError(t, rt.ToggleIncognito(ctx))
	require.NoError(t, rt.WindowControl(ctx, host.WindowMinimize))

	m := rt.Mirror()
	require.False(t, m.AdblockEnabled)
	require.True(t, m.VPNEnabled)
	require.Equal(t, session.ThemeDark, m.Theme)
	require.Equal(t, []int{1}, m.Pinned)
	require.Equal(t, []int{2}, m.Duplicated)
	require.Equal(t, 1, m.IncognitoFlips)
	require.Equal(t, host.WindowMinimize, m.LastWindowOp)
	require.Equal(t, []host.WindowOp{host.WindowMinimize}, ops)
}

func TestEvaluateExpression(t *testing.T) {
	ctx := context.Background()

	rt := newRuntime(t, Options{})
	_, err := rt.EvaluateExpression(ctx, "1+1")
	require.ErrorIs(t, err, host.ErrUnsupported)

	rt = newRuntime(t, Options{Evaluator: evaluator.New(time.Second)})
	v, err := rt.EvaluateExpression(ctx, "6*7")
	require.NoError(t, err)
	require.Equal(t, int64(42), v)
}
