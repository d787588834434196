package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/hyprshell/internal/keys"
	"github.com/jask/hyprshell/internal/logx"
	"github.com/jask/hyprshell/internal/shell"
	"github.com/jask/hyprshell/internal/tui"
)

const shutdownTimeout = 5 * time.Second

func runTUI(ctx context.Context, g globalFlags) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	logger, err := logx.New(logx.Options{Path: cfg.Log.Path, Level: cfg.Log.Level})
	if err != nil {
		return err
	}
	defer logger.Close()
	ctx = logx.WithContext(ctx, logger.Logger)

	rt, closeHost, err := openHost(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeHost(); err != nil {
			logger.Warn("close host failed", "err", err)
		}
	}()

	reg, err := keys.Load(cfg.UI.KeybindingsPath)
	if err != nil {
		// Bad overrides fall back to the defaults; the shell stays usable.
		logger.Warn("keybindings ignored", "path", cfg.UI.KeybindingsPath, "err", err)
		reg = keys.NewRegistry()
	}

	sh := shell.New(rt, shell.Options{
		HomeURL:     cfg.Browser.HomeURL,
		SearchURL:   cfg.Browser.SearchURL,
		CallTimeout: cfg.Host.CallTimeout,
		Logger:      logger.With("component", "shell"),
	})
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := sh.Close(closeCtx); err != nil {
			logger.Warn("shell shutdown", "err", err)
		}
	}()

	app := tui.New(ctx, sh, tui.Options{
		Keys:   reg,
		Ring:   logger.Ring,
		Logger: logger.With("component", "tui"),
	})
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go func() {
		err := keys.Watch(watchCtx, cfg.UI.KeybindingsPath, logger.Logger, func(r *keys.Registry) {
			p.Send(tui.KeysReloadedMsg{Registry: r})
		})
		if err != nil {
			logger.Warn("keybindings watch stopped", "err", err)
		}
	}()

	logger.Info("shell started", "host", cfg.Host.Mode)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
