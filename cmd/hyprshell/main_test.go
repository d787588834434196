package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/require"

	"github.com/jask/hyprshell/internal/config"
	"github.com/jask/hyprshell/internal/keys"
	"github.com/jask/hyprshell/internal/logx"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("HYPRSHELL_CONFIG", filepath.Join(dir, "config.toml"))
	return dir
}

func TestLoadConfigFlagsOverride(t *testing.T) {
	isolate(t)
	cfg, err := loadConfig(globalFlags{mode: config.HostRemote, addr: "ws://host.test/rpc"})
	require.NoError(t, err)
	require.Equal(t, config.HostRemote, cfg.Host.Mode)
	require.Equal(t, "ws://host.test/rpc", cfg.Host.Addr)

	_, err = loadConfig(globalFlags{mode: "carrier-pigeon"})
	require.Error(t, err)
}

func TestKeysCommandPrintsBindings(t *testing.T) {
	isolate(t)
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"keys"})
	require.NoError(t, root.Execute())

	var parsed struct {
		Binding []keys.Override `toml:"binding"`
	}
	_, err := toml.Decode(out.String(), &parsed)
	require.NoError(t, err)
	require.NotEmpty(t, parsed.Binding)

	found := false
	for _, b := range parsed.Binding {
		if b.Scope == keys.ScopeGlobal && b.Action == string(keys.ActionNewTab) {
			found = true
			require.Contains(t, b.Keys, "T")
		}
	}
	require.True(t, found, "new_tab binding missing from:\n%s", out.String())
}

func TestKeysCommandWritesFile(t *testing.T) {
	dir := isolate(t)
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"keys", "--write"})
	require.NoError(t, root.Execute())
	require.True(t, strings.HasPrefix(out.String(), "wrote "))

	path := filepath.Join(dir, ".config", "hyprshell", "keybindings.toml")
	items, err := keys.LoadFile(path)
	require.NoError(t, err)
	require.NotEmpty(t, items)

	reg, err := keys.Load(path)
	require.NoError(t, err)
	action, ok := reg.Lookup("T", keys.ScopeGlobal)
	require.True(t, ok)
	require.Equal(t, keys.ActionNewTab, action)
}

func TestConfigCommandWritesFile(t *testing.T) {
	dir := isolate(t)
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"config"})
	require.NoError(t, root.Execute())

	cfg, err := config.Load(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
	require.Equal(t, config.HostLocal, cfg.Host.Mode)
}

func TestOpenHostLocal(t *testing.T) {
	isolate(t)
	cfg, err := loadConfig(globalFlags{})
	require.NoError(t, err)
	cfg.Host.FetchTitles = false

	ctx := logx.WithContext(context.Background(), logx.Discard())
	rt, closeHost, err := openHost(ctx, cfg)
	require.NoError(t, err)
	defer func() { require.NoError(t, closeHost()) }()

	st, err := rt.LoadState(ctx)
	require.NoError(t, err)
	require.Len(t, st.Tabs, 1)
	require.Equal(t, cfg.Browser.HomeURL, st.Tabs[0].URL)

	list, err := rt.Downloads(ctx)
	require.NoError(t, err)
	require.Empty(t, list)
	mods, err := rt.Modules(ctx)
	require.NoError(t, err)
	require.Empty(t, mods)
}
