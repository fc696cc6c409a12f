package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Hook != "evolve.py" {
		t.Errorf("Hook default = %q, want evolve.py", cfg.Hook)
	}
	if cfg.HeartbeatMs != 1_800_000 {
		t.Errorf("HeartbeatMs default = %d, want 1800000", cfg.HeartbeatMs)
	}
	if cfg.HookTimeoutMs != 30_000 {
		t.Errorf("HookTimeoutMs default = %d, want 30000", cfg.HookTimeoutMs)
	}
	if cfg.HeartbeatTitle != "heartbeat" {
		t.Errorf("HeartbeatTitle default = %q, want heartbeat", cfg.HeartbeatTitle)
	}
	if cfg.HeartbeatAgent != "evolve" {
		t.Errorf("HeartbeatAgent default = %q, want evolve", cfg.HeartbeatAgent)
	}
	if cfg.TestScript != "" {
		t.Errorf("TestScript default = %q, want empty", cfg.TestScript)
	}
	if cfg.DiagnosticsAddr != "" {
		t.Errorf("DiagnosticsAddr default = %q, want empty", cfg.DiagnosticsAddr)
	}
	if cfg.WatchHookFile {
		t.Error("WatchHookFile default = true, want false")
	}
}

func TestLoadNoConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Defaults() {
		t.Errorf("Load with no config file = %+v, want defaults %+v", cfg, Defaults())
	}
}

func TestLoadJSONOverride(t *testing.T) {
	dir := t.TempDir()
	content := `{
		// comments are allowed, it's jsonc
		"heartbeat_ms": 60000,
		"test_script": "scripts/test.sh",
	}`
	if err := os.WriteFile(filepath.Join(dir, "evolve.config.json"), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HeartbeatMs != 60000 {
		t.Errorf("HeartbeatMs = %d, want 60000", cfg.HeartbeatMs)
	}
	if cfg.TestScript != "scripts/test.sh" {
		t.Errorf("TestScript = %q, want scripts/test.sh", cfg.TestScript)
	}
	// Unset fields keep their defaults.
	if cfg.Hook != "evolve.py" {
		t.Errorf("Hook = %q, want evolve.py (unset should keep default)", cfg.Hook)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	content := "hook: persona.py\nheartbeat_agent: persona\n"
	if err := os.WriteFile(filepath.Join(dir, "evolve.config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Hook != "persona.py" {
		t.Errorf("Hook = %q, want persona.py", cfg.Hook)
	}
	if cfg.HeartbeatAgent != "persona" {
		t.Errorf("HeartbeatAgent = %q, want persona", cfg.HeartbeatAgent)
	}
}

func TestResolveWorkspacePrefersPrimaryEnv(t *testing.T) {
	t.Setenv(EvolveWorkspaceEnv, "/primary/ws")
	t.Setenv(legacyWorkspaceEnv, "/legacy/ws")

	ws, err := ResolveWorkspace()
	if err != nil {
		t.Fatalf("ResolveWorkspace: %v", err)
	}
	if ws != "/primary/ws" {
		t.Errorf("ResolveWorkspace = %q, want /primary/ws", ws)
	}
}

func TestResolveWorkspaceFallsBackToLegacyEnv(t *testing.T) {
	t.Setenv(EvolveWorkspaceEnv, "")
	t.Setenv(legacyWorkspaceEnv, "/legacy/ws")

	ws, err := ResolveWorkspace()
	if err != nil {
		t.Fatalf("ResolveWorkspace: %v", err)
	}
	if ws != "/legacy/ws" {
		t.Errorf("ResolveWorkspace = %q, want /legacy/ws", ws)
	}
}

func TestResolveWorkspaceFallsBackToHome(t *testing.T) {
	t.Setenv(EvolveWorkspaceEnv, "")
	t.Setenv(legacyWorkspaceEnv, "")

	ws, err := ResolveWorkspace()
	if err != nil {
		t.Fatalf("ResolveWorkspace: %v", err)
	}
	home, _ := os.UserHomeDir()
	want := filepath.Join(home, "workspace")
	if ws != want {
		t.Errorf("ResolveWorkspace = %q, want %q", ws, want)
	}
}
