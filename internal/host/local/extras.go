package local

import (
	"context"

	"github.com/jask/hyprshell/internal/host"
)

func (r *Runtime) Downloads(ctx context.Context) ([]host.Download, error) {
	if r.downloads == nil {
		return nil, host.ErrUnsupported
	}
	return r.downloads.Downloads(ctx)
}

func (r *Runtime) StartDownload(ctx context.Context, url string) (host.Download, error) {
	if r.downloads == nil {
		return host.Download{}, host.ErrUnsupported
	}
	return r.downloads.StartDownload(ctx, url)
}

func (r *Runtime) PauseDownload(ctx context.Context, id string) error {
	if r.downloads == nil {
		return host.ErrUnsupported
	}
	return r.downloads.PauseDownload(ctx, id)
}

func (r *Runtime) ResumeDownload(ctx context.Context, id string) error {
	if r.downloads == nil {
		return host.ErrUnsupported
	}
	return r.downloads.ResumeDownload(ctx, id)
}

func (r *Runtime) CancelDownload(ctx context.Context, id string) error {
	if r.downloads == nil {
		return host.ErrUnsupported
	}
	return r.downloads.CancelDownload(ctx, id)
}

func (r *Runtime) SearchModules(ctx context.Context, query string) ([]host.ModuleResult, error) {
	if r.modules == nil {
		return nil, host.ErrUnsupported
	}
	return r.modules.SearchModules(ctx, query)
}

func (r *Runtime) Modules(ctx context.Context) ([]host.Module, error) {
	if r.modules == nil {
		return nil, host.ErrUnsupported
	}
	return r.modules.Modules(ctx)
}

func (r *Runtime) InstallModule(ctx context.Context, repo string) (host.Module, error) {
	if r.modules == nil {
		return host.Module{}, host.ErrUnsupported
	}
	return r.modules.InstallModule(ctx, repo)
}

func (r *Runtime) UninstallModule(ctx context.Context, name string) error {
	if r.modules == nil {
		return host.ErrUnsupported
	}
	return r.modules.UninstallModule(ctx, name)
}

func (r *Runtime) EnableModule(ctx context.Context, name string) error {
	if r.modules == nil {
		return host.ErrUnsupported
	}
	return r.modules.EnableModule(ctx, name)
}

func (r *Runtime) DisableModule(ctx context.Context, name string) error {
	if r.modules == nil {
		return host.ErrUnsupported
	}
	return r.modules.DisableModule(ctx, name)
}

func (r *Runtime) CheckUpdates(ctx context.Context) (host.UpdateInfo, error) {
	if r.updates == nil {
		return host.UpdateInfo{}, host.ErrUnsupported
	}
	return r.updates.CheckUpdates(ctx)
}

func (r *Runtime) ApplyUpdate(ctx context.Context) (string, error) {
	if r.updates == nil {
		return "", host.ErrUnsupported
	}
	return r.updates.ApplyUpdate(ctx)
}
