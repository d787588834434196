package host

import (
	"context"
	"time"
)

// DownloadStatus is the lifecycle state of a download.
type DownloadStatus string

const (
	DownloadPending   DownloadStatus = "pending"
	DownloadActive    DownloadStatus = "downloading"
	DownloadPaused    DownloadStatus = "paused"
	DownloadCompleted DownloadStatus = "completed"
	DownloadFailed    DownloadStatus = "failed"
	DownloadCancelled DownloadStatus = "cancelled"
)

// Finished reports whether the download can no longer change.
func (s DownloadStatus) Finished() bool {
	return s == DownloadCompleted || s == DownloadCancelled
}

type Download struct {
	ID         string         `json:"id"`
	URL        string         `json:"url"`
	Filename   string         `json:"filename"`
	Path       string         `json:"path,omitempty"`
	Status     DownloadStatus `json:"status"`
	Size       int64          `json:"size"`
	Downloaded int64          `json:"downloaded"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
}

// Progress is the completed fraction in [0, 1], or 0 when the size is unknown.
func (d Download) Progress() float64 {
	if d.Status == DownloadCompleted {
		return 1
	}
	if d.Size <= 0 {
		return 0
	}
	return min(1, float64(d.Downloaded)/float64(d.Size))
}

// Module is an installed shell extension.
type Module struct {
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Repo        string    `json:"repo"`
	Enabled     bool      `json:"enabled"`
	Author      string    `json:"author"`
	Description string    `json:"description"`
	InstalledAt time.Time `json:"installed_at"`
}

// ModuleResult is a module found by a catalogue search.
type ModuleResult struct {
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Description string `json:"description,omitempty"`
	HTMLURL     string `json:"html_url"`
	Owner       string `json:"owner"`
	Stars       int    `json:"stars"`
	Language    string `json:"language,omitempty"`
}

type UpdateInfo struct {
	CurrentVersion string `json:"current_version"`
	LatestVersion  string `json:"latest_version"`
	ReleaseURL     string `json:"release_url,omitempty"`
	DownloadURL    string `json:"download_url,omitempty"`
	Changelog      string `json:"changelog,omitempty"`
	Available      bool   `json:"available"`
}

// DownloadHost manages file downloads.
type DownloadHost interface {
	Downloads(ctx context.Context) ([]Download, error)
	StartDownload(ctx context.Context, url string) (Download, error)
	PauseDownload(ctx context.Context, id string) error
	ResumeDownload(ctx context.Context, id string) error
	CancelDownload(ctx context.Context, id string) error
}

// ModuleHost searches for and manages modules.
type ModuleHost interface {
	SearchModules(ctx context.Context, query string) ([]ModuleResult, error)
	Modules(ctx context.Context) ([]Module, error)
	InstallModule(ctx context.Context, repo string) (Module, error)
	UninstallModule(ctx context.Context, name string) error
	EnableModule(ctx context.Context, name string) error
	DisableModule(ctx context.Context, name string) error
}

// UpdateHost checks for and fetches new releases.
type UpdateHost interface {
	CheckUpdates(ctx context.Context) (UpdateInfo, error)
	// ApplyUpdate fetches the release archive and returns its local path.
	ApplyUpdate(ctx context.Context) (string, error)
}

// Unimplemented answers every download, module and update call with
// ErrUnsupported. Embed it in hosts that only cover the core calls.
type Unimplemented struct{}

func (Unimplemented) Downloads(context.Context) ([]Download, error) { return nil, ErrUnsupported }
func (Unimplemented) StartDownload(context.Context, string) (Download, error) {
	return Download{}, ErrUnsupported
}
func (Unimplemented) PauseDownload(context.Context, string) error  { return ErrUnsupported }
func (Unimplemented) ResumeDownload(context.Context, string) error { return ErrUnsupported }
func (Unimplemented) CancelDownload(context.Context, string) error { return ErrUnsupported }
func (Unimplemented) SearchModules(context.Context, string) ([]ModuleResult, error) {
	return nil, ErrUnsupported
}
func (Unimplemented) Modules(context.Context) ([]Module, error) { return nil, ErrUnsupported }
func (Unimplemented) InstallModule(context.Context, string) (Module, error) {
	return Module{}, ErrUnsupported
}
func (Unimplemented) UninstallModule(context.Context, string) error { return ErrUnsupported }
func (Unimplemented) EnableModule(context.Context, string) error    { return ErrUnsupported }
func (Unimplemented) DisableModule(context.Context, string) error   { return ErrUnsupported }
func (Unimplemented) CheckUpdates(context.Context) (UpdateInfo, error) {
	return UpdateInfo{}, ErrUnsupported
}
func (Unimplemented) ApplyUpdate(context.Context) (string, error) { return "", ErrUnsupported }
