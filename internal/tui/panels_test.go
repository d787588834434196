package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/jask/hyprshell/internal/host"
	"github.com/jask/hyprshell/internal/keys"
	"github.com/jask/hyprshell/internal/session"
)

var errNoSuchItem = errors.New("no such item")

// fakeExtensions keeps downloads, modules and the update feed in memory.
type fakeExtensions struct {
	mu        sync.Mutex
	downloads []host.Download
	modules   []host.Module
	catalog   []host.ModuleResult
	update    host.UpdateInfo
	applied   int
}

func newFakeExtensions() *fakeExtensions {
	return &fakeExtensions{update: host.UpdateInfo{CurrentVersion: "0.1.0", LatestVersion: "0.1.0"}}
}

func (f *fakeExtensions) Downloads(context.Context) ([]host.Download, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]host.Download(nil), f.downloads...), nil
}

func (f *fakeExtensions) StartDownload(_ context.Context, rawURL string) (host.Download, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := host.Download{
		ID:         fmt.Sprintf("d%d", len(f.downloads)+1),
		URL:        rawURL,
		Filename:   "page.html",
		Status:     host.DownloadActive,
		Size:       2048,
		Downloaded: 512,
	}
	f.downloads = append(f.downloads, d)
	return d, nil
}

func (f *fakeExtensions) setStatus(id string, status host.DownloadStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.downloads {
		if f.downloads[i].ID == id {
			f.downloads[i].Status = status
			return nil
		}
	}
	return errNoSuchItem
}

func (f *fakeExtensions) PauseDownload(_ context.Context, id string) error {
	return f.setStatus(id, host.DownloadPaused)
}

func (f *fakeExtensions) ResumeDownload(_ context.Context, id string) error {
	return f.setStatus(id, host.DownloadActive)
}

func (f *fakeExtensions) CancelDownload(_ context.Context, id string) error {
	return f.setStatus(id, host.DownloadCancelled)
}

func (f *fakeExtensions) SearchModules(_ context.Context, query string) ([]host.ModuleResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []host.ModuleResult
	for _, r := range f.catalog {
		if strings.Contains(r.FullName, query) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeExtensions) Modules(context.Context) ([]host.Module, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]host.Module(nil), f.modules...), nil
}

func (f *fakeExtensions) InstallModule(_ context.Context, repo string) (host.Module, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, name, _ := strings.Cut(repo, "/")
	m := host.Module{Name: name, Repo: repo, Version: "1.0.0", Enabled: true, Description: "Module from " + repo}
	f.modules = append(f.modules, m)
	return m, nil
}

func (f *fakeExtensions) UninstallModule(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.modules {
		if m.Name == name {
			f.modules = append(f.modules[:i], f.modules[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeExtensions) setEnabled(name string, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.modules {
		if f.modules[i].Name == name {
			f.modules[i].Enabled = on
			return nil
		}
	}
	return errNoSuchItem
}

func (f *fakeExtensions) EnableModule(_ context.Context, name string) error {
	return f.setEnabled(name, true)
}

func (f *fakeExtensions) DisableModule(_ context.Context, name string) error {
	return f.setEnabled(name, false)
}

func (f *fakeExtensions) CheckUpdates(context.Context) (host.UpdateInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.update, nil
}

func (f *fakeExtensions) ApplyUpdate(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.update.Available {
		return "", errors.New("already up to date")
	}
	f.applied++
	return "/tmp/hyprshell-" + f.update.LatestVersion + ".zip", nil
}

// deliver runs cmd and feeds its message back into the app.
func deliver(t *testing.T, a *App, cmd tea.Cmd) tea.Cmd {
	t.Helper()
	if cmd == nil {
		t.Fatalf("expected a command")
	}
	_, next := a.Update(cmd())
	return next
}

func TestDownloadsPanelLifecycle(t *testing.T) {
	ext := newFakeExtensions()
	a, sh, _ := newTestAppWith(t, ext)

	deliver(t, a, press(a, "S"))
	if len(ext.downloads) != 1 || ext.downloads[0].URL != "https://home.test" {
		t.Fatalf("downloads = %+v", ext.downloads)
	}
	if a.status != "downloading page.html" {
		t.Fatalf("status = %q", a.status)
	}

	tick := deliver(t, a, press(a, "5"))
	if sh.State().CurrentPanel != session.PanelDownloads || a.scope() != keys.ScopeDownloads {
		t.Fatalf("panel = %q scope = %q", sh.State().CurrentPanel, a.scope())
	}
	if tick == nil || !a.tickPending {
		t.Fatalf("running download should schedule a refresh")
	}
	view := ansi.Strip(a.View())
	if !strings.Contains(view, "page.html") || !strings.Contains(view, "downloading") || !strings.Contains(view, "25%") {
		t.Fatalf("downloads view:\n%s", view)
	}

	deliver(t, a, deliver(t, a, press(a, "p")))
	if ext.downloads[0].Status != host.DownloadPaused || a.downloads[0].Status != host.DownloadPaused {
		t.Fatalf("after pause: %+v", ext.downloads[0])
	}
	deliver(t, a, deliver(t, a, press(a, "space")))
	if ext.downloads[0].Status != host.DownloadActive {
		t.Fatalf("after resume: %+v", ext.downloads[0])
	}
	deliver(t, a, deliver(t, a, press(a, "x")))
	if ext.downloads[0].Status != host.DownloadCancelled || a.status != "cancelled page.html" {
		t.Fatalf("after cancel: %+v status %q", ext.downloads[0], a.status)
	}
	press(a, "p")
	if !strings.Contains(a.status, "cancelled") {
		t.Fatalf("pausing a cancelled download: status %q", a.status)
	}
}

func TestDownloadRefreshStopsWhenIdle(t *testing.T) {
	ext := newFakeExtensions()
	ext.downloads = []host.Download{{ID: "d1", Filename: "done.zip", Status: host.DownloadCompleted, Size: 10, Downloaded: 10}}
	a, _, _ := newTestAppWith(t, ext)

	if next := deliver(t, a, press(a, "5")); next != nil || a.tickPending {
		t.Fatalf("finished downloads should not poll")
	}
	if !strings.Contains(ansi.Strip(a.View()), "100%") {
		t.Fatalf("completed download should show 100%%")
	}

	press(a, "1")
	if _, cmd := a.Update(downloadTickMsg{}); cmd != nil {
		t.Fatalf("tick outside the downloads panel should stop")
	}
}

func TestModulesPanelSearchInstallToggle(t *testing.T) {
	ext := newFakeExtensions()
	ext.catalog = []host.ModuleResult{
		{Name: "reader", FullName: "acme/reader", Description: "reader mode", Stars: 42},
		{Name: "tabs", FullName: "acme/tabs", Stars: 3},
	}
	a, _, _ := newTestAppWith(t, ext)

	deliver(t, a, press(a, "6"))
	if !strings.Contains(ansi.Strip(a.View()), "no modules installed") {
		t.Fatalf("empty modules view:\n%s", ansi.Strip(a.View()))
	}

	press(a, "/")
	if a.focus != focusModuleSearch {
		t.Fatalf("focus = %v, want module search", a.focus)
	}
	typeText(a, "reader")
	deliver(t, a, press(a, "enter"))
	if !a.catalogOpen || a.scope() != keys.ScopeCatalog {
		t.Fatalf("catalog not open, scope %q", a.scope())
	}
	if view := ansi.Strip(a.View()); !strings.Contains(view, "acme/reader") || strings.Contains(view, "acme/tabs") {
		t.Fatalf("catalog view:\n%s", view)
	}

	deliver(t, a, deliver(t, a, press(a, "enter")))
	if a.catalogOpen || len(a.modules) != 1 || a.modules[0].Repo != "acme/reader" {
		t.Fatalf("after install: open=%v modules=%+v", a.catalogOpen, a.modules)
	}
	if a.status != "installed acme/reader" {
		t.Fatalf("status = %q", a.status)
	}
	if view := ansi.Strip(a.View()); !strings.Contains(view, "reader") || !strings.Contains(view, "1.0.0") {
		t.Fatalf("modules view:\n%s", view)
	}

	deliver(t, a, deliver(t, a, press(a, "e")))
	if ext.modules[0].Enabled || a.modules[0].Enabled {
		t.Fatalf("module should be disabled")
	}
	deliver(t, a, deliver(t, a, press(a, "enter")))
	if !ext.modules[0].Enabled {
		t.Fatalf("module should be enabled again")
	}

	deliver(t, a, deliver(t, a, press(a, "d")))
	if len(ext.modules) != 0 || len(a.modules) != 0 {
		t.Fatalf("module not uninstalled: %+v", ext.modules)
	}
}

func TestCatalogEscapeClosesBeforeLeaving(t *testing.T) {
	ext := newFakeExtensions()
	ext.catalog = []host.ModuleResult{{Name: "reader", FullName: "acme/reader"}}
	a, sh, _ := newTestAppWith(t, ext)

	deliver(t, a, press(a, "6"))
	press(a, "/")
	typeText(a, "acme")
	deliver(t, a, press(a, "enter"))

	press(a, "esc")
	if a.catalogOpen || sh.State().CurrentPanel != session.PanelModules {
		t.Fatalf("esc should close the catalogue first")
	}
	press(a, "esc")
	if sh.State().CurrentPanel != session.PanelBrowser {
		t.Fatalf("panel = %q", sh.State().CurrentPanel)
	}
}

func TestSettingsCheckAndApplyUpdate(t *testing.T) {
	ext := newFakeExtensions()
	ext.update = host.UpdateInfo{CurrentVersion: "0.1.0", LatestVersion: "0.2.0", Available: true}
	a, _, _ := newTestAppWith(t, ext)

	press(a, "3")
	for range int(settingApplyUpdate) {
		press(a, "j")
	}
	if cmd := press(a, "enter"); cmd != nil || !strings.Contains(a.status, "check first") {
		t.Fatalf("apply before check: status %q", a.status)
	}

	press(a, "k")
	deliver(t, a, press(a, "enter"))
	if a.update == nil || a.status != "update available: 0.2.0" {
		t.Fatalf("after check: %+v status %q", a.update, a.status)
	}
	if !strings.Contains(ansi.Strip(a.View()), "0.2.0") {
		t.Fatalf("settings view missing latest version")
	}

	press(a, "j")
	deliver(t, a, press(a, "enter"))
	if ext.applied != 1 || a.updatePath != "/tmp/hyprshell-0.2.0.zip" {
		t.Fatalf("applied=%d path=%q", ext.applied, a.updatePath)
	}
}

func TestUnsupportedExtensionsReportInStatus(t *testing.T) {
	a, _, _ := newTestAppWith(t, nil)
	deliver(t, a, press(a, "5"))
	if !strings.Contains(a.status, "not supported") {
		t.Fatalf("downloads status = %q", a.status)
	}
	deliver(t, a, press(a, "6"))
	if !strings.Contains(a.status, "not supported") {
		t.Fatalf("modules status = %q", a.status)
	}
}
