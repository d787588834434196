package shell

import (
	"context"
	"time"

	"github.com/jask/hyprshell/internal/host"
)

// Fetching a release archive takes longer than an ordinary host call.
const updateTimeout = 5 * time.Minute

// The calls below leave shell state alone and may run off the UI goroutine.

func (s *Shell) Downloads(ctx context.Context) ([]host.Download, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	list, err := s.rt.Downloads(ctx)
	return list, host.Wrap(host.CallGetDownloads, err)
}

// StartDownload saves rawURL into the host's download directory.
func (s *Shell) StartDownload(ctx context.Context, rawURL string) (host.Download, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	d, err := s.rt.StartDownload(ctx, rawURL)
	return d, host.Wrap(host.CallStartDownload, err)
}

func (s *Shell) PauseDownload(ctx context.Context, id string) error {
	return s.call(ctx, host.CallPauseDownload, func(ctx context.Context) error {
		return s.rt.PauseDownload(ctx, id)
	})
}

func (s *Shell) ResumeDownload(ctx context.Context, id string) error {
	return s.call(ctx, host.CallResumeDownload, func(ctx context.Context) error {
		return s.rt.ResumeDownload(ctx, id)
	})
}

func (s *Shell) CancelDownload(ctx context.Context, id string) error {
	return s.call(ctx, host.CallCancelDownload, func(ctx context.Context) error {
		return s.rt.CancelDownload(ctx, id)
	})
}

func (s *Shell) SearchModules(ctx context.Context, query string) ([]host.ModuleResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	res, err := s.rt.SearchModules(ctx, query)
	return res, host.Wrap(host.CallSearchModules, err)
}

func (s *Shell) Modules(ctx context.Context) ([]host.Module, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	mods, err := s.rt.Modules(ctx)
	return mods, host.Wrap(host.CallGetModules, err)
}

// InstallModule installs the module published at repo ("owner/name").
func (s *Shell) InstallModule(ctx context.Context, repo string) (host.Module, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	m, err := s.rt.InstallModule(ctx, repo)
	return m, host.Wrap(host.CallInstallModule, err)
}

func (s *Shell) UninstallModule(ctx context.Context, name string) error {
	return s.call(ctx, host.CallUninstallModule, func(ctx context.Context) error {
		return s.rt.UninstallModule(ctx, name)
	})
}

func (s *Shell) SetModuleEnabled(ctx context.Context, name string, enabled bool) error {
	if enabled {
		return s.call(ctx, host.CallEnableModule, func(ctx context.Context) error {
			return s.rt.EnableModule(ctx, name)
		})
	}
	return s.call(ctx, host.CallDisableModule, func(ctx context.Context) error {
		return s.rt.DisableModule(ctx, name)
	})
}

func (s *Shell) CheckUpdates(ctx context.Context) (host.UpdateInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	info, err := s.rt.CheckUpdates(ctx)
	return info, host.Wrap(host.CallCheckUpdates, err)
}

// ApplyUpdate downloads the newest release and returns the archive path.
func (s *Shell) ApplyUpdate(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, max(updateTimeout, s.timeout))
	defer cancel()
	path, err := s.rt.ApplyUpdate(ctx)
	return path, host.Wrap(host.CallApplyUpdate, err)
}

func (s *Shell) call(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return host.Wrap(name, fn(ctx))
}
