// Package updater checks GitHub releases for a newer build and fetches
// its archive.
package updater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/mod/semver"

	"github.com/jask/hyprshell/internal/host"
)

const DefaultAPIURL = "https://api.github.com"

var (
	ErrUpToDate  = errors.New("already up to date")
	ErrNoArchive = errors.New("release has no .zip asset")
	ErrNoRepo    = errors.New("no update repository configured")
)

type Options struct {
	APIURL string
	// Repo is the owner/name whose releases are checked.
	Repo           string
	CurrentVersion string
	// Dir receives downloaded archives; defaults to the OS temp dir.
	Dir     string
	Timeout time.Duration
	Logger  *slog.Logger
}

type Checker struct {
	client  *resty.Client
	repo    string
	current string
	dir     string
	log     *slog.Logger
}

func New(opts Options) *Checker {
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	if opts.Dir == "" {
		opts.Dir = os.TempDir()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.APIURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/vnd.github+json").
		SetHeader("User-Agent", "hyprshell/"+trimV(opts.CurrentVersion))
	return &Checker{
		client:  client,
		repo:    opts.Repo,
		current: trimV(opts.CurrentVersion),
		dir:     opts.Dir,
		log:     opts.Logger,
	}
}

type release struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
	Body    string `json:"body"`
	Assets  []struct {
		Name string `json:"name"`
		URL  string `json:"browser_download_url"`
	} `json:"assets"`
}

// CheckUpdates asks for the latest release. A release list the API will
// not serve is reported as "no update" rather than an error.
func (c *Checker) CheckUpdates(ctx context.Context) (host.UpdateInfo, error) {
	info := host.UpdateInfo{CurrentVersion: c.current, LatestVersion: c.current}
	if c.repo == "" {
		return info, ErrNoRepo
	}
	var rel release
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&rel).
		Get("/repos/" + c.repo + "/releases/latest")
	if err != nil {
		return info, fmt.Errorf("check updates: %w", err)
	}
	if resp.IsError() {
		c.log.Info("no release information", "repo", c.repo, "status", resp.StatusCode())
		return info, nil
	}

	info.LatestVersion = trimV(rel.TagName)
	info.ReleaseURL = rel.HTMLURL
	info.Changelog = rel.Body
	for _, a := range rel.Assets {
		if strings.HasSuffix(strings.ToLower(a.Name), ".zip") {
			info.DownloadURL = a.URL
			break
		}
	}
	info.Available = Newer(info.LatestVersion, c.current)
	return info, nil
}

// ApplyUpdate downloads the newest release archive and returns its path.
// Installing it is left to the user.
func (c *Checker) ApplyUpdate(ctx context.Context) (string, error) {
	info, err := c.CheckUpdates(ctx)
	if err != nil {
		return "", err
	}
	if !info.Available {
		return "", fmt.Errorf("%w (%s)", ErrUpToDate, c.current)
	}
	if info.DownloadURL == "" {
		return "", fmt.Errorf("%w: %s", ErrNoArchive, info.LatestVersion)
	}
	dst := filepath.Join(c.dir, fmt.Sprintf("hyprshell-%s.zip", info.LatestVersion))
	resp, err := c.client.R().
		SetContext(ctx).
		SetOutput(dst).
		Get(info.DownloadURL)
	if err != nil {
		return "", fmt.Errorf("download update: %w", err)
	}
	if resp.IsError() {
		_ = os.Remove(dst)
		return "", fmt.Errorf("download update: HTTP %d", resp.StatusCode())
	}
	c.log.Info("update downloaded", "version", info.LatestVersion, "path", dst)
	return dst, nil
}

// Newer reports whether latest is a higher semantic version than current.
// Unparseable versions never count as newer.
func Newer(latest, current string) bool {
	l, cur := "v"+trimV(latest), "v"+trimV(current)
	if !semver.IsValid(l) || !semver.IsValid(cur) {
		return false
	}
	return semver.Compare(l, cur) > 0
}

func trimV(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}
