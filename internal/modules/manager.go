// Package modules finds shell extensions on GitHub and tracks which ones
// are installed.
package modules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/jask/hyprshell/internal/database"
	"github.com/jask/hyprshell/internal/database/repository"
	"github.com/jask/hyprshell/internal/host"
)

const (
	DefaultAPIURL  = "https://api.github.com"
	installVersion = "1.0.0"
	searchLimit    = 20
)

var (
	ErrNotInstalled = errors.New("module not installed")
	ErrBadRepo      = errors.New("repository must be owner/name")
	ErrEmptyQuery   = errors.New("empty search query")
)

var repoPart = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

type Manager struct {
	repo   *repository.ModuleRepo
	client *resty.Client
	log    *slog.Logger
}

type Options struct {
	APIURL  string
	Timeout time.Duration
	Logger  *slog.Logger
}

func New(repo *repository.ModuleRepo, opts Options) *Manager {
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.APIURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/vnd.github+json").
		SetHeader("User-Agent", "hyprshell/1.0")
	return &Manager{repo: repo, client: client, log: opts.Logger}
}

type githubRepo struct {
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	HTMLURL     string `json:"html_url"`
	Stars       int    `json:"stargazers_count"`
	Language    string `json:"language"`
	Owner       struct {
		Login string `json:"login"`
	} `json:"owner"`
}

type githubSearch struct {
	Items []githubRepo `json:"items"`
}

// SearchModules looks up repositories matching query, most starred first.
func (m *Manager) SearchModules(ctx context.Context, query string) ([]host.ModuleResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	var out githubSearch
	resp, err := m.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":        query,
			"sort":     "stars",
			"per_page": fmt.Sprint(searchLimit),
		}).
		SetResult(&out).
		Get("/search/repositories")
	if err != nil {
		return nil, fmt.Errorf("search modules: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("search modules: HTTP %d", resp.StatusCode())
	}
	results := make([]host.ModuleResult, 0, len(out.Items))
	for _, r := range out.Items {
		results = append(results, host.ModuleResult{
			Name:        r.Name,
			FullName:    r.FullName,
			Description: r.Description,
			HTMLURL:     r.HTMLURL,
			Owner:       r.Owner.Login,
			Stars:       r.Stars,
			Language:    r.Language,
		})
	}
	return results, nil
}

func (m *Manager) Modules(ctx context.Context) ([]host.Module, error) {
	return m.repo.List(ctx)
}

// InstallModule records owner/name as an enabled module. Reinstalling keeps
// the module's name and refreshes its metadata.
func (m *Manager) InstallModule(ctx context.Context, fullName string) (host.Module, error) {
	owner, name, err := SplitRepo(fullName)
	if err != nil {
		return host.Module{}, err
	}
	mod := host.Module{
		Name:        name,
		Version:     installVersion,
		Repo:        owner + "/" + name,
		Enabled:     true,
		Author:      owner,
		Description: "Module from " + owner + "/" + name,
		InstalledAt: database.Now(),
	}

	var info githubRepo
	resp, err := m.client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"owner": owner, "name": name}).
		SetResult(&info).
		Get("/repos/{owner}/{name}")
	switch {
	case err != nil:
		m.log.Warn("module metadata unavailable", "repo", mod.Repo, "err", err)
	case resp.StatusCode() == 404:
		return host.Module{}, fmt.Errorf("install %s: repository not found", mod.Repo)
	case resp.IsError():
		m.log.Warn("module metadata unavailable", "repo", mod.Repo, "status", resp.StatusCode())
	default:
		if info.Description != "" {
			mod.Description = info.Description
		}
		if info.Owner.Login != "" {
			mod.Author = info.Owner.Login
		}
	}

	if err := m.repo.Upsert(ctx, mod); err != nil {
		return host.Module{}, fmt.Errorf("install %s: %w", mod.Repo, err)
	}
	m.log.Info("module installed", "name", mod.Name, "repo", mod.Repo)
	return mod, nil
}

// UninstallModule removes name; removing a missing module is not an error.
func (m *Manager) UninstallModule(ctx context.Context, name string) error {
	if err := m.repo.Delete(ctx, name); err != nil {
		return fmt.Errorf("uninstall %s: %w", name, err)
	}
	m.log.Info("module uninstalled", "name", name)
	return nil
}

func (m *Manager) EnableModule(ctx context.Context, name string) error {
	return m.setEnabled(ctx, name, true)
}

func (m *Manager) DisableModule(ctx context.Context, name string) error {
	return m.setEnabled(ctx, name, false)
}

func (m *Manager) setEnabled(ctx context.Context, name string, enabled bool) error {
	ok, err := m.repo.SetEnabled(ctx, name, enabled)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotInstalled, name)
	}
	return nil
}

// SplitRepo parses "owner/name", tolerating a github.com URL prefix.
func SplitRepo(s string) (owner, name string, err error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "github.com/")
	s = strings.TrimSuffix(strings.TrimSuffix(s, "/"), ".git")
	parts := strings.Split(s, "/")
	if len(parts) != 2 || !validPart(parts[0]) || !validPart(parts[1]) {
		return "", "", fmt.Errorf("%w: %q", ErrBadRepo, s)
	}
	return parts[0], parts[1], nil
}

func validPart(s string) bool {
	return repoPart.MatchString(s) && s != "." && s != ".."
}
