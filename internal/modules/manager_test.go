package modules

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/hyprshell/internal/database"
	"github.com/jask/hyprshell/internal/database/repository"
)

func githubStub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/search/repositories", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "adblock" || r.URL.Query().Get("sort") != "stars" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{{
				"name": "shell-adblock", "full_name": "octo/shell-adblock",
				"description": "Blocks ads", "html_url": "https://github.test/octo/shell-adblock",
				"stargazers_count": 42, "language": "Go",
				"owner": map[string]any{"login": "octo"},
			}},
		})
	})
	mux.HandleFunc("/repos/octo/shell-adblock", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name": "shell-adblock", "description": "Blocks ads",
			"owner": map[string]any{"login": "Octo"},
		})
	})
	mux.HandleFunc("/repos/octo/flaky", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestManager(t *testing.T, apiURL string) *Manager {
	t.Helper()
	db, err := database.OpenMigrated(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(repository.NewModuleRepo(db), Options{APIURL: apiURL})
}

func TestSearchModules(t *testing.T) {
	m := newTestManager(t, githubStub(t).URL)

	got, err := m.SearchModules(context.Background(), "  adblock ")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "octo/shell-adblock", got[0].FullName)
	require.Equal(t, "octo", got[0].Owner)
	require.Equal(t, 42, got[0].Stars)

	_, err = m.SearchModules(context.Background(), " ")
	require.ErrorIs(t, err, ErrEmptyQuery)
}

func TestSearchModulesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)
	m := newTestManager(t, srv.URL)

	_, err := m.SearchModules(context.Background(), "x")
	require.ErrorContains(t, err, "403")
}

func TestInstallEnableUninstall(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, githubStub(t).URL)

	mod, err := m.InstallModule(ctx, "https://github.com/octo/shell-adblock.git")
	require.NoError(t, err)
	require.Equal(t, "shell-adblock", mod.Name)
	require.Equal(t, "1.0.0", mod.Version)
	require.Equal(t, "Octo", mod.Author)
	require.Equal(t, "Blocks ads", mod.Description)
	require.True(t, mod.Enabled)

	require.NoError(t, m.DisableModule(ctx, "shell-adblock"))
	list, err := m.Modules(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.False(t, list[0].Enabled)

	require.NoError(t, m.EnableModule(ctx, "shell-adblock"))
	require.ErrorIs(t, m.EnableModule(ctx, "missing"), ErrNotInstalled)

	require.NoError(t, m.UninstallModule(ctx, "shell-adblock"))
	require.NoError(t, m.UninstallModule(ctx, "shell-adblock"))
	list, err = m.Modules(ctx)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestInstallFallsBackWithoutMetadata(t *testing.T) {
	m := newTestManager(t, githubStub(t).URL)

	mod, err := m.InstallModule(context.Background(), "octo/flaky")
	require.NoError(t, err)
	require.Equal(t, "Module from octo/flaky", mod.Description)
	require.Equal(t, "octo", mod.Author)

	_, err = m.InstallModule(context.Background(), "octo/missing")
	require.ErrorContains(t, err, "not found")
}

func TestSplitRepo(t *testing.T) {
	owner, name, err := SplitRepo("github.com/a-b/c.d/")
	require.NoError(t, err)
	require.Equal(t, "a-b", owner)
	require.Equal(t, "c.d", name)

	for _, bad := range []string{"", "solo", "a/b/c", "a b/c", "../x"} {
		_, _, err := SplitRepo(bad)
		require.ErrorIs(t, err, ErrBadRepo, bad)
	}
}
