package hookproc

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeHook(t *testing.T, workspace, name, script string) {
	t.Helper()
	hooksDir := filepath.Join(workspace, "hooks")
	if err := os.MkdirAll(hooksDir, 0o755); err != nil {
		t.Fatalf("mkdir hooks: %v", err)
	}
	path := filepath.Join(hooksDir, name)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write hook: %v", err)
	}
}

func TestInvokeAbsentHookNoOps(t *testing.T) {
	dir := t.TempDir()
	ipc := NewIPC(dir, "missing.sh", time.Second, nil)
	out, err := ipc.Invoke(context.Background(), "discover", map[string]any{})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected empty result, got %v", out)
	}
}

func TestInvokeMergesJSONL(t *testing.T) {
	dir := t.TempDir()
	script := "#!/bin/sh\ncat <<'EOF'\n{\"log\":\"starting\"}\n{\"system\":[\"A\"]}\n{\"modified\":[\"x\"]}\nEOF\n"
	writeHook(t, dir, "evolve.sh", script)

	ipc := NewIPC(dir, "evolve.sh", 5*time.Second, nil)
	out, err := ipc.Invoke(context.Background(), "mutate_request", map[string]any{"session": map[string]any{"id": "s1"}})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if _, ok := out["log"]; ok {
		t.Error("log lines should not appear in merged result")
	}
	system, ok := out["system"].([]any)
	if !ok || len(system) != 1 || system[0] != "A" {
		t.Errorf("system = %v, want [A]", out["system"])
	}
}

func TestInvokeNonZeroExitFails(t *testing.T) {
	dir := t.TempDir()
	writeHook(t, dir, "evolve.sh", "#!/bin/sh\nexit 1\n")

	ipc := NewIPC(dir, "evolve.sh", 5*time.Second, nil)
	_, err := ipc.Invoke(context.Background(), "discover", map[string]any{})
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
}

func TestInvokeTimeout(t *testing.T) {
	dir := t.TempDir()
	writeHook(t, dir, "evolve.sh", "#!/bin/sh\nsleep 5\n")

	ipc := NewIPC(dir, "evolve.sh", 50*time.Millisecond, nil)
	_, err := ipc.Invoke(context.Background(), "discover", map[string]any{})
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestInvokeMalformedLineFails(t *testing.T) {
	dir := t.TempDir()
	writeHook(t, dir, "evolve.sh", "#!/bin/sh\necho 'not json'\n")

	ipc := NewIPC(dir, "evolve.sh", 5*time.Second, nil)
	_, err := ipc.Invoke(context.Background(), "discover", map[string]any{})
	if err == nil {
		t.Fatal("expected malformed-output error")
	}
}

func TestInvokeWritesStdinPayload(t *testing.T) {
	dir := t.TempDir()
	// Count stdin bytes and report them, proving the payload was delivered.
	script := "#!/bin/sh\nn=$(wc -c | tr -d ' ')\nprintf '{\"result\":%s}' \"$n\"\n"
	writeHook(t, dir, "evolve.sh", script)

	ipc := NewIPC(dir, "evolve.sh", 5*time.Second, nil)
	out, err := ipc.Invoke(context.Background(), "discover", map[string]any{"hook": "discover"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	result, ok := out["result"].(float64)
	if !ok || result <= 0 {
		t.Errorf("expected positive byte count echoing stdin, got %v", out["result"])
	}
}
