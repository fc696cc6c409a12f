// Package config resolves the plugin's WorkspaceConfig: an optional config
// document under the workspace, merged over built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config is the resolved, never-mutated-after-load configuration for a
// single plugin process.
type Config struct {
	Hook            string `yaml:"hook"`
	HeartbeatMs     int64  `yaml:"heartbeat_ms"`
	HookTimeoutMs   int64  `yaml:"hook_timeout"`
	HeartbeatTitle  string `yaml:"heartbeat_title"`
	HeartbeatAgent  string `yaml:"heartbeat_agent"`
	TestScript      string `yaml:"test_script"`
	DiagnosticsAddr string `yaml:"diagnostics_addr"`
	WatchHookFile   bool   `yaml:"watch_hook_file"`
}

// Defaults returns the built-in configuration defaults.
func Defaults() Config {
	return Config{
		Hook:            "evolve.py",
		HeartbeatMs:     1_800_000,
		HookTimeoutMs:   30_000,
		HeartbeatTitle:  "heartbeat",
		HeartbeatAgent:  "evolve",
		TestScript:      "",
		DiagnosticsAddr: "",
		WatchHookFile:   false,
	}
}

// configCandidates are the basenames findConfigFile tries, in order, under the
// workspace root. The first one found wins; if none exist the defaults are
// used unmodified.
var configCandidates = []string{
	"evolve.config.json",
	"evolve.config.jsonc",
	"evolve.config.yaml",
	"evolve.config.yml",
}

// Load resolves the configuration document under workspace (if any) and
// merges it over Defaults. A missing config file is not an error.
func Load(workspace string) (Config, error) {
	cfg := Defaults()

	path := findConfigFile(workspace)
	if path == "" {
		return cfg, nil
	}

	raw, err := LoadRaw(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}

	defaultsRaw, err := toRawMap(cfg)
	if err != nil {
		return Config{}, fmt.Errorf("encode config defaults: %w", err)
	}
	merged := mergeMaps(defaultsRaw, raw)

	decoded, err := decodeRawConfig(merged)
	if err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	return *decoded, nil
}

func findConfigFile(workspace string) string {
	for _, name := range configCandidates {
		candidate := filepath.Join(workspace, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

func toRawMap(cfg Config) (map[string]any, error) {
	return map[string]any{
		"hook":             cfg.Hook,
		"heartbeat_ms":     cfg.HeartbeatMs,
		"hook_timeout":     cfg.HookTimeoutMs,
		"heartbeat_title":  cfg.HeartbeatTitle,
		"heartbeat_agent":  cfg.HeartbeatAgent,
		"test_script":      cfg.TestScript,
		"diagnostics_addr": cfg.DiagnosticsAddr,
		"watch_hook_file":  cfg.WatchHookFile,
	}, nil
}

// legacyWorkspaceEnv is the alias the original opencode-evolve plugin
// recognized before this port standardized on EvolveWorkspaceEnv.
const (
	EvolveWorkspaceEnv = "OPENCODE_EVOLVE_WORKSPACE"
	legacyWorkspaceEnv = "EVOLVE_WORKSPACE"
)

// ResolveWorkspace applies the documented environment-variable precedence:
// OPENCODE_EVOLVE_WORKSPACE, then the legacy alias, then <home>/workspace.
func ResolveWorkspace() (string, error) {
	if v := os.Getenv(EvolveWorkspaceEnv); v != "" {
		return v, nil
	}
	if v := os.Getenv(legacyWorkspaceEnv); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, "workspace"), nil
}
