package main

import (
	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/jask/hyprshell/internal/config"
	"github.com/jask/hyprshell/internal/keys"
)

func newKeysCmd(g *globalFlags) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Print the effective keybindings as TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*g)
			if err != nil {
				return err
			}
			reg, err := keys.Load(cfg.UI.KeybindingsPath)
			if err != nil {
				return err
			}
			items := reg.Export()
			if write {
				if err := keys.WriteFile(cfg.UI.KeybindingsPath, items); err != nil {
					return err
				}
				cmd.Printf("wrote %s\n", cfg.UI.KeybindingsPath)
				return nil
			}
			return toml.NewEncoder(cmd.OutOrStdout()).Encode(struct {
				Binding []keys.Override `toml:"binding"`
			}{items})
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "write the bindings to the keybindings file instead of stdout")
	return cmd
}

func newConfigCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Write the effective configuration to the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*g)
			if err != nil {
				return err
			}
			if err := config.Save(g.configPath, cfg); err != nil {
				return err
			}
			cmd.Printf("wrote %s\n", config.Path(g.configPath))
			return nil
		},
	}
}
