// Package downloads fetches files into a directory with pause, resume and
// cancel. Records are kept in sqlite so paused downloads survive a restart.
package downloads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/jask/hyprshell/internal/database"
	"github.com/jask/hyprshell/internal/database/repository"
	"github.com/jask/hyprshell/internal/host"
)

var (
	ErrNotFound   = errors.New("download not found")
	ErrFinished   = errors.New("download already finished")
	ErrNotPaused  = errors.New("download is not paused")
	ErrNotHTTP    = errors.New("only http(s) urls can be downloaded")
	ErrNotRunning = errors.New("download is not running")
)

const (
	chunkSize       = 32 << 10
	persistEvery    = 250 * time.Millisecond
	fallbackName    = "download"
	maxNameAttempts = 1000
)

type stopReason int

const (
	stopNone stopReason = iota
	stopPause
	stopCancel
)

type job struct {
	cancel context.CancelFunc
	reason stopReason
	done   chan struct{}
}

// Manager runs downloads in background goroutines, one per active download.
type Manager struct {
	repo   *repository.DownloadRepo
	client *resty.Client
	dir    string
	log    *slog.Logger

	mu     sync.Mutex
	active map[string]*job
	closed bool
}

type Options struct {
	Dir    string
	Logger *slog.Logger
	// Client overrides the HTTP client; tests point it at httptest servers.
	Client *resty.Client
}

func New(repo *repository.DownloadRepo, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Client == nil {
		opts.Client = resty.New().
			SetHeader("User-Agent", "hyprshell/1.0").
			SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	}
	return &Manager{
		repo:   repo,
		client: opts.Client,
		dir:    opts.Dir,
		log:    opts.Logger,
		active: make(map[string]*job),
	}
}

// Recover marks downloads interrupted by a previous process as paused.
func (m *Manager) Recover(ctx context.Context) error {
	n, err := m.repo.MarkInterrupted(ctx)
	if err != nil {
		return fmt.Errorf("recover downloads: %w", err)
	}
	if n > 0 {
		m.log.Info("interrupted downloads paused", "count", n)
	}
	return nil
}

func (m *Manager) Downloads(ctx context.Context) ([]host.Download, error) {
	return m.repo.List(ctx)
}

// Get returns one download record.
func (m *Manager) Get(ctx context.Context, id string) (host.Download, error) {
	d, found, err := m.repo.Get(ctx, id)
	if err != nil {
		return host.Download{}, err
	}
	if !found {
		return host.Download{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return d, nil
}

// StartDownload reserves a file in the download directory and starts
// fetching rawURL into it.
func (m *Manager) StartDownload(ctx context.Context, rawURL string) (host.Download, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return host.Download{}, fmt.Errorf("%w: %q", ErrNotHTTP, rawURL)
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return host.Download{}, fmt.Errorf("mkdir downloads dir: %w", err)
	}
	name, f, err := reserveFile(m.dir, FilenameFromURL(u))
	if err != nil {
		return host.Download{}, err
	}
	_ = f.Close()

	d := host.Download{
		ID:        uuid.NewString(),
		URL:       u.String(),
		Filename:  name,
		Path:      filepath.Join(m.dir, name),
		Status:    host.DownloadPending,
		StartedAt: database.Now(),
	}
	if err := m.repo.Upsert(ctx, d); err != nil {
		_ = os.Remove(d.Path)
		return host.Download{}, fmt.Errorf("save download: %w", err)
	}
	if err := m.spawn(d); err != nil {
		return host.Download{}, err
	}
	m.log.Info("download started", "id", d.ID, "url", d.URL, "file", d.Path)
	return d, nil
}

// PauseDownload stops a running download, keeping the partial file.
func (m *Manager) PauseDownload(ctx context.Context, id string) error {
	if m.stop(id, stopPause) {
		return nil
	}
	d, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	if d.Status == host.DownloadPaused {
		return nil
	}
	return fmt.Errorf("%w: %s is %s", ErrNotRunning, id, d.Status)
}

// ResumeDownload continues a paused or failed download from the bytes
// already on disk.
func (m *Manager) ResumeDownload(ctx context.Context, id string) error {
	d, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	switch d.Status {
	case host.DownloadPaused, host.DownloadFailed:
	case host.DownloadActive, host.DownloadPending:
		m.mu.Lock()
		_, running := m.active[id]
		m.mu.Unlock()
		if running {
			return nil
		}
	default:
		return fmt.Errorf("%w: %s is %s", ErrNotPaused, id, d.Status)
	}
	if fi, err := os.Stat(d.Path); err == nil {
		d.Downloaded = fi.Size()
	} else {
		d.Downloaded = 0
	}
	d.Error = ""
	return m.spawn(d)
}

// CancelDownload stops the download and removes its partial file.
func (m *Manager) CancelDownload(ctx context.Context, id string) error {
	if m.stop(id, stopCancel) {
		return nil
	}
	d, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	if d.Status.Finished() {
		return fmt.Errorf("%w: %s is %s", ErrFinished, id, d.Status)
	}
	_ = os.Remove(d.Path)
	d.Status = host.DownloadCancelled
	return m.repo.Upsert(ctx, d)
}

// Close pauses every running download and waits for the workers to stop.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	ids := make([]string, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		m.stop(id, stopPause)
	}
}

func (m *Manager) spawn(d host.Download) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.New("download manager closed")
	}
	if _, running := m.active[d.ID]; running {
		m.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	j := &job{cancel: cancel, done: make(chan struct{})}
	m.active[d.ID] = j
	m.mu.Unlock()

	go func() {
		defer close(j.done)
		defer cancel()
		final := m.run(ctx, j, d)
		// Leave the active set and store the final record under one lock.
		m.mu.Lock()
		delete(m.active, d.ID)
		m.save(final)
		m.mu.Unlock()
	}()
	return nil
}

// stop reports false when id has no running worker.
func (m *Manager) stop(id string, reason stopReason) bool {
	m.mu.Lock()
	j, ok := m.active[id]
	if ok && j.reason == stopNone {
		j.reason = reason
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	j.cancel()
	<-j.done
	return true
}

func (m *Manager) reason(j *job) stopReason {
	m.mu.Lock()
	defer m.mu.Unlock()
	return j.reason
}

func (m *Manager) run(ctx context.Context, j *job, d host.Download) host.Download {
	err := m.fetch(ctx, &d)
	switch {
	case err == nil:
		d.Status = host.DownloadCompleted
		m.log.Info("download completed", "id", d.ID, "bytes", d.Downloaded)
	case ctx.Err() != nil && m.reason(j) == stopCancel:
		_ = os.Remove(d.Path)
		d.Status = host.DownloadCancelled
		m.log.Info("download cancelled", "id", d.ID)
	case ctx.Err() != nil:
		d.Status = host.DownloadPaused
		m.log.Info("download paused", "id", d.ID, "bytes", d.Downloaded)
	default:
		d.Status = host.DownloadFailed
		d.Error = err.Error()
		m.log.Warn("download failed", "id", d.ID, "err", err)
	}
	return d
}

func (m *Manager) save(d host.Download) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.repo.Upsert(ctx, d); err != nil {
		m.log.Warn("save download failed", "id", d.ID, "err", err)
	}
}

// fetch streams the body into d.Path, resuming at d.Downloaded when the
// server honours the Range header.
func (m *Manager) fetch(ctx context.Context, d *host.Download) error {
	req := m.client.R().SetContext(ctx).SetDoNotParseResponse(true)
	if d.Downloaded > 0 {
		req.SetHeader("Range", fmt.Sprintf("bytes=%d-", d.Downloaded))
	}
	resp, err := req.Get(d.URL)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", d.URL, err)
	}
	body := resp.RawBody()
	defer body.Close()

	flags := os.O_WRONLY | os.O_CREATE
	switch resp.StatusCode() {
	case http.StatusPartialContent:
		flags |= os.O_APPEND
	case http.StatusOK:
		// Range ignored: start over.
		d.Downloaded = 0
		flags |= os.O_TRUNC
	case http.StatusRequestedRangeNotSatisfiable:
		if d.Size > 0 && d.Downloaded >= d.Size {
			return nil
		}
		return fmt.Errorf("fetch %s: HTTP %d", d.URL, resp.StatusCode())
	default:
		return fmt.Errorf("fetch %s: HTTP %d", d.URL, resp.StatusCode())
	}
	if n := resp.RawResponse.ContentLength; n >= 0 {
		d.Size = d.Downloaded + n
	}

	f, err := os.OpenFile(d.Path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", d.Path, err)
	}
	defer f.Close()

	d.Status = host.DownloadActive
	m.save(*d)
	last := time.Now()
	buf := make([]byte, chunkSize)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				return fmt.Errorf("write %s: %w", d.Path, err)
			}
			d.Downloaded += int64(n)
			if time.Since(last) >= persistEvery {
				m.save(*d)
				last = time.Now()
			}
		}
		if errors.Is(rerr, io.EOF) {
			if d.Size <= 0 {
				d.Size = d.Downloaded
			}
			return nil
		}
		if rerr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read %s: %w", d.URL, rerr)
		}
	}
}

// FilenameFromURL is the last path segment, or "download" when there is none.
func FilenameFromURL(u *url.URL) string {
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return fallbackName
	}
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r < 0x20 {
			return '_'
		}
		return r
	}, name)
	if name == ".." {
		return fallbackName
	}
	return name
}

// reserveFile creates name in dir, or name-1, name-2 ... when taken.
func reserveFile(dir, name string) (string, *os.File, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name
	for i := 1; i <= maxNameAttempts; i++ {
		f, err := os.OpenFile(filepath.Join(dir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return candidate, f, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", nil, fmt.Errorf("create %s: %w", candidate, err)
		}
		candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
	}
	return "", nil, fmt.Errorf("no free file name for %s", name)
}
