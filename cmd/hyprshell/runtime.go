package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jask/hyprshell/internal/config"
	"github.com/jask/hyprshell/internal/database"
	"github.com/jask/hyprshell/internal/database/repository"
	"github.com/jask/hyprshell/internal/downloads"
	"github.com/jask/hyprshell/internal/evaluator"
	"github.com/jask/hyprshell/internal/host"
	"github.com/jask/hyprshell/internal/host/local"
	"github.com/jask/hyprshell/internal/host/wsrpc"
	"github.com/jask/hyprshell/internal/logx"
	"github.com/jask/hyprshell/internal/modules"
	"github.com/jask/hyprshell/internal/pagetitle"
	"github.com/jask/hyprshell/internal/updater"
)

// version is stamped at release time with -ldflags "-X main.version=...".
var version = "0.1.0"

func loadConfig(g globalFlags) (config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if g.mode != "" {
		cfg.Host.Mode = g.mode
	}
	if g.addr != "" {
		cfg.Host.Addr = g.addr
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// openLocal opens the sqlite-backed host. The returned func pauses running
// downloads and closes the database after in-flight title fetches finish.
func openLocal(ctx context.Context, cfg config.Config, logger *slog.Logger) (*local.Runtime, func() error, error) {
	db, err := database.OpenMigrated(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	dl := downloads.New(repository.NewDownloadRepo(db), downloads.Options{
		Dir:    cfg.Downloads.Dir,
		Logger: logger.With("component", "downloads"),
	})
	if err := dl.Recover(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	opts := local.Options{
		HomeURL:   cfg.Browser.HomeURL,
		Logger:    logger.With("component", "host"),
		Evaluator: evaluator.New(cfg.Host.CallTimeout),
		Downloads: dl,
		Modules: modules.New(repository.NewModuleRepo(db), modules.Options{
			APIURL: cfg.GitHub.APIURL,
			Logger: logger.With("component", "modules"),
		}),
		Updates: updater.New(updater.Options{
			APIURL:         cfg.GitHub.APIURL,
			Repo:           cfg.Updates.Repo,
			CurrentVersion: version,
			Logger:         logger.With("component", "updater"),
		}),
	}
	if cfg.Host.FetchTitles {
		opts.Titles = pagetitle.New(0)
	}
	rt := local.New(db, opts)
	return rt, func() error {
		dl.Close()
		rt.Wait()
		return db.Close()
	}, nil
}

// openHost picks the runtime for host.mode, logging through the logger in ctx.
func openHost(ctx context.Context, cfg config.Config) (host.Runtime, func() error, error) {
	logger := logx.FromContext(ctx)
	if cfg.Host.Mode == config.HostRemote {
		dialCtx, cancel := context.WithTimeout(ctx, cfg.Host.CallTimeout)
		defer cancel()
		c, err := wsrpc.Dial(dialCtx, cfg.Host.Addr, logger.With("component", "wsrpc"))
		if err != nil {
			return nil, nil, fmt.Errorf("dial host %s: %w", cfg.Host.Addr, err)
		}
		return c, c.Close, nil
	}
	return openLocal(ctx, cfg, logger)
}
