package downloads

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/hyprshell/internal/database"
	"github.com/jask/hyprshell/internal/database/repository"
	"github.com/jask/hyprshell/internal/host"
)

const payload = "hello world"

// rangeServer serves payload, honouring "bytes=N-". A request without a
// Range header stalls after the first five bytes until the client leaves.
func rangeServer(t *testing.T) *httptest.Server {
	t.Helper()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/whole.txt") {
			w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
			_, _ = w.Write([]byte(payload))
			return
		}
		if rng := r.Header.Get("Range"); rng != "" {
			start, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(rng, "bytes="), "-"))
			if err != nil || start > len(payload) {
				w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
				return
			}
			rest := payload[start:]
			w.Header().Set("Content-Length", strconv.Itoa(len(rest)))
			w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, len(payload)-1, len(payload)))
			w.WriteHeader(http.StatusPartialContent)
			_, _ = w.Write([]byte(rest))
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		_, _ = w.Write([]byte(payload[:5]))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})
	return srv
}

func newTestManager(t *testing.T) (*Manager, *repository.DownloadRepo, string) {
	t.Helper()
	db, err := database.OpenMigrated(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	repo := repository.NewDownloadRepo(db)
	dir := filepath.Join(t.TempDir(), "downloads")
	m := New(repo, Options{Dir: dir})
	t.Cleanup(m.Close)
	return m, repo, dir
}

func waitStatus(t *testing.T, m *Manager, id string, want host.DownloadStatus) host.Download {
	t.Helper()
	var got host.Download
	require.Eventually(t, func() bool {
		d, err := m.Get(context.Background(), id)
		require.NoError(t, err)
		got = d
		return d.Status == want
	}, 5*time.Second, 10*time.Millisecond)
	return got
}

func waitFileSize(t *testing.T, path string, size int64) {
	t.Helper()
	require.Eventually(t, func() bool {
		fi, err := os.Stat(path)
		return err == nil && fi.Size() >= size
	}, 5*time.Second, 10*time.Millisecond)
}

func TestDownloadCompletes(t *testing.T) {
	srv := rangeServer(t)
	m, _, dir := newTestManager(t)

	d, err := m.StartDownload(context.Background(), srv.URL+"/files/whole.txt")
	require.NoError(t, err)
	require.Equal(t, "whole.txt", d.Filename)
	require.Equal(t, filepath.Join(dir, "whole.txt"), d.Path)

	done := waitStatus(t, m, d.ID, host.DownloadCompleted)
	require.Equal(t, int64(len(payload)), done.Size)
	require.Equal(t, int64(len(payload)), done.Downloaded)
	require.Equal(t, 1.0, done.Progress())

	body, err := os.ReadFile(d.Path)
	require.NoError(t, err)
	require.Equal(t, payload, string(body))

	list, err := m.Downloads(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestDownloadPauseResume(t *testing.T) {
	srv := rangeServer(t)
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	d, err := m.StartDownload(ctx, srv.URL+"/slow.txt")
	require.NoError(t, err)
	waitFileSize(t, d.Path, 5)

	require.NoError(t, m.PauseDownload(ctx, d.ID))
	paused := waitStatus(t, m, d.ID, host.DownloadPaused)
	require.Equal(t, int64(5), paused.Downloaded)
	require.Equal(t, int64(len(payload)), paused.Size)

	// Pausing twice is harmless.
	require.NoError(t, m.PauseDownload(ctx, d.ID))

	require.NoError(t, m.ResumeDownload(ctx, d.ID))
	waitStatus(t, m, d.ID, host.DownloadCompleted)
	body, err := os.ReadFile(d.Path)
	require.NoError(t, err)
	require.Equal(t, payload, string(body))

	require.ErrorIs(t, m.ResumeDownload(ctx, d.ID), ErrNotPaused)
	require.ErrorIs(t, m.CancelDownload(ctx, d.ID), ErrFinished)
}

func TestDownloadCancelRemovesFile(t *testing.T) {
	srv := rangeServer(t)
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	d, err := m.StartDownload(ctx, srv.URL+"/slow.bin")
	require.NoError(t, err)
	waitFileSize(t, d.Path, 5)

	require.NoError(t, m.CancelDownload(ctx, d.ID))
	waitStatus(t, m, d.ID, host.DownloadCancelled)
	_, err = os.Stat(d.Path)
	require.True(t, os.IsNotExist(err))
}

func TestDownloadUniqueFilenames(t *testing.T) {
	srv := rangeServer(t)
	m, _, dir := newTestManager(t)
	ctx := context.Background()

	first, err := m.StartDownload(ctx, srv.URL+"/whole.txt")
	require.NoError(t, err)
	second, err := m.StartDownload(ctx, srv.URL+"/whole.txt")
	require.NoError(t, err)

	require.Equal(t, "whole.txt", first.Filename)
	require.Equal(t, "whole-1.txt", second.Filename)
	require.Equal(t, filepath.Join(dir, "whole-1.txt"), second.Path)
	waitStatus(t, m, first.ID, host.DownloadCompleted)
	waitStatus(t, m, second.ID, host.DownloadCompleted)
}

func TestDownloadFailsOnHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	m, _, _ := newTestManager(t)

	d, err := m.StartDownload(context.Background(), srv.URL+"/missing.zip")
	require.NoError(t, err)
	failed := waitStatus(t, m, d.ID, host.DownloadFailed)
	require.Contains(t, failed.Error, "404")
}

func TestStartDownloadRejectsNonHTTP(t *testing.T) {
	m, _, _ := newTestManager(t)
	for _, raw := range []string{"file:///etc/passwd", "about:blank", "not a url", "https://"} {
		_, err := m.StartDownload(context.Background(), raw)
		require.ErrorIs(t, err, ErrNotHTTP, raw)
	}
	_, err := m.Get(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRecoverPausesInterrupted(t *testing.T) {
	m, repo, _ := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, host.Download{
		ID: "left-over", URL: "https://files.test/a", Filename: "a", Path: "/tmp/a",
		Status: host.DownloadActive, StartedAt: database.Now(),
	}))

	require.NoError(t, m.Recover(ctx))
	d, err := m.Get(ctx, "left-over")
	require.NoError(t, err)
	require.Equal(t, host.DownloadPaused, d.Status)
}

func TestFilenameFromURL(t *testing.T) {
	cases := map[string]string{
		"https://x.test/a/b/report.pdf": "report.pdf",
		"https://x.test/":               "download",
		"https://x.test":                "download",
		"https://x.test/dir/":           "dir",
	}
	for raw, want := range cases {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		require.Equal(t, want, FilenameFromURL(u), raw)
	}
}
