package main

import (
	"fmt"

	"github.com/kalambet/taskbridge/internal/asana"
	"github.com/kalambet/taskbridge/internal/config"
)

func newClient() (*asana.Client, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	return asana.NewClient(cfg.Asana.BaseURL, cfg.Asana.AccessToken), &cfg, nil
}

// resolveWorkspace picks the --workspace flag value or the configured default.
func resolveWorkspace(flag string, cfg *config.Config) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if cfg.Asana.DefaultWorkspace != "" {
		return cfg.Asana.DefaultWorkspace, nil
	}
	return "", fmt.Errorf("no workspace: pass --workspace or set TASKBRIDGE_WORKSPACE")
}
