package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Asana  AsanaConfig  `toml:"asana"`
	Server ServerConfig `toml:"server"`
	Cache  CacheConfig  `toml:"cache"`
	Log    LogConfig    `toml:"log"`
}

type AsanaConfig struct {
	// AccessToken is only ever read from the environment, never from the
	// config file.
	AccessToken      string `toml:"-"`
	BaseURL          string `toml:"base_url"`
	DefaultWorkspace string `toml:"default_workspace"`
}

type ServerConfig struct {
	HTTPPort int `toml:"http_port"`
}

type CacheConfig struct {
	Dir string `toml:"dir"`
}

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

func defaults() Config {
	return Config{
		Asana: AsanaConfig{
			BaseURL: "https://app.asana.com/api/1.0",
		},
		Server: ServerConfig{
			HTTPPort: 4040,
		},
		Cache: CacheConfig{
			Dir: defaultCacheDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "taskbridge")
	}
	return filepath.Join(base, "taskbridge")
}

// DefaultFilePath returns the location of the optional TOML config file.
func DefaultFilePath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "taskbridge", "config.toml")
}

// Load reads configuration from the optional TOML file and environment
// variables. Environment variables override file values:
//
//	ASANA_ACCESS_TOKEN       personal access token (required)
//	TASKBRIDGE_BASE_URL      API base URL
//	TASKBRIDGE_WORKSPACE     default workspace gid
//	TASKBRIDGE_HTTP_PORT     HTTP transport port
//	TASKBRIDGE_CACHE_DIR     project cache directory
//	TASKBRIDGE_LOG_LEVEL     debug | info | warn | error
//	TASKBRIDGE_LOG_FILE      log file path (default: stderr)
func Load() (Config, error) {
	return loadWith(DefaultFilePath(), os.Getenv)
}

func loadWith(path string, getenv func(string) string) (Config, error) {
	cfg := defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg, getenv)

	if cfg.Asana.AccessToken == "" {
		return Config{}, fmt.Errorf("missing required config: Asana access token. " +
			"Set it via environment variable ASANA_ACCESS_TOKEN " +
			"(create one at https://app.asana.com/0/my-apps)")
	}

	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv("ASANA_ACCESS_TOKEN"); v != "" {
		cfg.Asana.AccessToken = v
	}
	if v := getenv("TASKBRIDGE_BASE_URL"); v != "" {
		cfg.Asana.BaseURL = v
	}
	if v := getenv("TASKBRIDGE_WORKSPACE"); v != "" {
		cfg.Asana.DefaultWorkspace = v
	}
	if v := getenv("TASKBRIDGE_HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Server.HTTPPort = port
		}
	}
	if v := getenv("TASKBRIDGE_CACHE_DIR"); v != "" {
		cfg.Cache.Dir = v
	}
	if v := getenv("TASKBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := getenv("TASKBRIDGE_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
}
