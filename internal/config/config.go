package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Host modes.
const (
	HostLocal  = "local"
	HostRemote = "remote"
)

// Config holds application configuration.
type Config struct {
	Host      HostConfig      `mapstructure:"host"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	UI        UIConfig        `mapstructure:"ui"`
	Log       LogConfig       `mapstructure:"log"`
	Downloads DownloadsConfig `mapstructure:"downloads"`
	GitHub    GitHubConfig    `mapstructure:"github"`
	Updates   UpdatesConfig   `mapstructure:"updates"`
}

// HostConfig selects and tunes the host runtime.
type HostConfig struct {
	Mode        string        `mapstructure:"mode"`
	Addr        string        `mapstructure:"addr"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	FetchTitles bool          `mapstructure:"fetch_titles"`
}

// DatabaseConfig holds sqlite settings for the local host.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// BrowserConfig holds navigation defaults.
type BrowserConfig struct {
	HomeURL   string `mapstructure:"home_url"`
	SearchURL string `mapstructure:"search_url"`
}

// UIConfig holds presentation settings.
type UIConfig struct {
	KeybindingsPath string `mapstructure:"keybindings_path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Path  string `mapstructure:"path"`
	Level string `mapstructure:"level"`
}

// DownloadsConfig sets where downloaded files land.
type DownloadsConfig struct {
	Dir string `mapstructure:"dir"`
}

// GitHubConfig points module search and update checks at an API server.
type GitHubConfig struct {
	APIURL string `mapstructure:"api_url"`
}

// UpdatesConfig names the repository whose releases are checked.
type UpdatesConfig struct {
	Repo string `mapstructure:"repo"`
}

func dataDir() string {
	return filepath.Join(os.Getenv("HOME"), ".local", "share", "hyprshell")
}

func configDir() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "hyprshell")
}

// Path returns the config file location: explicit, $HYPRSHELL_CONFIG, or the default.
func Path(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv("HYPRSHELL_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(configDir(), "config.toml")
}

// Load reads configuration from file and env. Env var overrides use prefix HYPRSHELL_.
func Load(explicit string) (Config, error) {
	v := viper.New()

	v.SetDefault("host.mode", HostLocal)
	v.SetDefault("host.addr", "ws://127.0.0.1:7777/rpc")
	v.SetDefault("host.call_timeout", "5s")
	v.SetDefault("host.fetch_titles", true)
	v.SetDefault("database.path", filepath.Join(dataDir(), "hyprshell.db"))
	v.SetDefault("browser.home_url", "https://www.google.com")
	v.SetDefault("browser.search_url", "https://www.google.com/search?q=")
	v.SetDefault("ui.keybindings_path", filepath.Join(configDir(), "keybindings.toml"))
	v.SetDefault("log.path", filepath.Join(dataDir(), "hyprshell.log"))
	v.SetDefault("log.level", "info")
	v.SetDefault("downloads.dir", filepath.Join(os.Getenv("HOME"), "Downloads"))
	v.SetDefault("github.api_url", "https://api.github.com")
	v.SetDefault("updates.repo", "jask/hyprshell")

	v.SetConfigType("toml")
	v.SetConfigFile(Path(explicit))

	v.SetEnvPrefix("HYPRSHELL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects settings the shell cannot run with.
func (c Config) Validate() error {
	switch c.Host.Mode {
	case HostLocal, HostRemote:
	default:
		return fmt.Errorf("host.mode %q: want %q or %q", c.Host.Mode, HostLocal, HostRemote)
	}
	if c.Host.Mode == HostRemote && strings.TrimSpace(c.Host.Addr) == "" {
		return fmt.Errorf("host.addr is required in remote mode")
	}
	if c.Host.CallTimeout <= 0 {
		return fmt.Errorf("host.call_timeout must be positive")
	}
	if strings.TrimSpace(c.Browser.SearchURL) == "" {
		return fmt.Errorf("browser.search_url is required")
	}
	if c.Updates.Repo != "" && strings.Count(c.Updates.Repo, "/") != 1 {
		return fmt.Errorf("updates.repo %q: want owner/name", c.Updates.Repo)
	}
	return nil
}

// Save writes the provided config to disk, creating the config directory if needed.
func Save(explicit string, cfg Config) error {
	path := Path(explicit)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("host.mode", cfg.Host.Mode)
	v.Set("host.addr", cfg.Host.Addr)
	v.Set("host.call_timeout", cfg.Host.CallTimeout.String())
	v.Set("host.fetch_titles", cfg.Host.FetchTitles)
	v.Set("database.path", cfg.Database.Path)
	v.Set("browser.home_url", cfg.Browser.HomeURL)
	v.Set("browser.search_url", cfg.Browser.SearchURL)
	v.Set("ui.keybindings_path", cfg.UI.KeybindingsPath)
	v.Set("log.path", cfg.Log.Path)
	v.Set("log.level", cfg.Log.Level)
	v.Set("downloads.dir", cfg.Downloads.Dir)
	v.Set("github.api_url", cfg.GitHub.APIURL)
	v.Set("updates.repo", cfg.Updates.Repo)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
