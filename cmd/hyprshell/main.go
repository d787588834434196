package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	mode       string
	addr       string
}

func newRootCmd() *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:           "hyprshell",
		Short:         "Keyboard-driven browser shell",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), g)
		},
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "config file (default $HYPRSHELL_CONFIG or ~/.config/hyprshell/config.toml)")
	root.PersistentFlags().StringVar(&g.mode, "host", "", "host runtime: local or remote")
	root.PersistentFlags().StringVar(&g.addr, "addr", "", "websocket address of a remote host")

	root.AddCommand(newServeCmd(&g))
	root.AddCommand(newKeysCmd(&g))
	root.AddCommand(newConfigCmd(&g))
	return root
}
