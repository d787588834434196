package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jask/hyprshell/internal/host"
	"github.com/jask/hyprshell/internal/host/wsrpc"
	"github.com/jask/hyprshell/internal/logx"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the local host runtime over websocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), *g, listen)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:7777", "listen address")
	return cmd
}

func serve(ctx context.Context, g globalFlags, listen string) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	logger, err := logx.New(logx.Options{Path: cfg.Log.Path, Level: cfg.Log.Level, Stderr: true})
	if err != nil {
		return err
	}
	defer logger.Close()

	rt, closeHost, err := openLocal(ctx, cfg, logger.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeHost(); err != nil {
			logger.Warn("close host failed", "err", err)
		}
	}()
	rt.OnWindow(func(op host.WindowOp) error {
		logger.Info("window request", "op", op)
		return nil
	})

	mux := http.NewServeMux()
	mux.Handle("/rpc", wsrpc.NewHandler(rt, logger.With("component", "wsrpc")))
	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		logger.Info("host listening", "addr", listen, "path", "/rpc")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen %s: %w", listen, err)
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("host shutting down")
		return srv.Shutdown(shutCtx)
	})
	return eg.Wait()
}
