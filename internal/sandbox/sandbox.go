// Package sandbox runs a candidate hook script's test command in a
// disposable mirror of the workspace's ancillary subtrees. The trust
// boundary is the filesystem path, not the process: the candidate never
// sees the live workspace.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	execsafety "github.com/selfmod/evolve-plugin/internal/exec"
	"github.com/selfmod/evolve-plugin/internal/metrics"
)

// ancillarySubtrees are the workspace directories a hook might read at
// runtime and that the sandbox therefore mirrors alongside the candidate.
var ancillarySubtrees = []string{"traits", "prompts"}

// Result is the outcome of a single validation run.
type Result struct {
	OK     bool
	Output string
}

// Validator validates candidate hook content by running a configured test
// command against a mirrored copy of the workspace.
type Validator struct {
	workspace  string
	hookName   string
	testScript string
	timeout    time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// WithMetrics attaches a metrics sink and returns the same Validator, for
// chaining onto New. A nil sink is a no-op.
func (v *Validator) WithMetrics(m *metrics.Metrics) *Validator {
	v.metrics = m
	return v
}

// New returns a Validator. If testScript is empty, Validate always
// succeeds trivially (no test configured). A non-empty testScript that
// fails IsSafeExecutableValue is treated the same as unconfigured, since
// it comes from config and must never reach exec.CommandContext unchecked.
func New(workspace, hookName, testScript string, timeout time.Duration, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "sandbox")
	if testScript != "" && !execsafety.IsSafeExecutableValue(testScript) {
		logger.Error("configured test script is unsafe, sandbox validation disabled")
		testScript = ""
	}
	return &Validator{
		workspace:  workspace,
		hookName:   hookName,
		testScript: testScript,
		timeout:    timeout,
		logger:     logger,
	}
}

// Validate materializes candidateContent as the hook inside a fresh
// temporary mirror of the workspace's ancillary subtrees and runs the
// configured test command against it. The temporary directory is removed
// unconditionally before Validate returns.
func (v *Validator) Validate(ctx context.Context, candidateContent string) Result {
	if v.testScript == "" {
		return Result{OK: true, Output: "no test configured"}
	}

	tmpDir, err := os.MkdirTemp("", "evolve-sandbox-*")
	if err != nil {
		return Result{OK: false, Output: fmt.Sprintf("create sandbox dir: %s", err)}
	}
	defer os.RemoveAll(tmpDir)

	if err := v.mirror(tmpDir); err != nil {
		return Result{OK: false, Output: fmt.Sprintf("mirror workspace: %s", err)}
	}

	hookPath := filepath.Join(tmpDir, "hooks", v.hookName)
	if err := os.MkdirAll(filepath.Dir(hookPath), 0o755); err != nil {
		return Result{OK: false, Output: fmt.Sprintf("create hooks dir: %s", err)}
	}
	if err := os.WriteFile(hookPath, []byte(candidateContent), 0o755); err != nil {
		return Result{OK: false, Output: fmt.Sprintf("write candidate: %s", err)}
	}

	result := v.runTest(ctx, tmpDir)
	if v.metrics != nil {
		v.metrics.ObserveSandboxRun(result.OK)
	}
	return result
}

func (v *Validator) mirror(tmpDir string) error {
	for _, subtree := range ancillarySubtrees {
		src := filepath.Join(v.workspace, subtree)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		dst := filepath.Join(tmpDir, subtree)
		if err := copyTree(src, dst); err != nil {
			return fmt.Errorf("copy %s: %w", subtree, err)
		}
	}
	return nil
}

func (v *Validator) runTest(ctx context.Context, tmpDir string) Result {
	runCtx := ctx
	var cancel func()
	if v.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, v.testScript, tmpDir)
	cmd.Env = append(os.Environ(), "OPENCODE_EVOLVE_WORKSPACE="+tmpDir, "EVOLVE_WORKSPACE="+tmpDir)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	output := stdout.String() + stderr.String()

	if runCtx.Err() != nil {
		return Result{OK: false, Output: output + fmt.Sprintf("\ntimeout: %s", runCtx.Err())}
	}
	if runErr != nil {
		return Result{OK: false, Output: output + fmt.Sprintf("\n%s", runErr)}
	}
	return Result{OK: true, Output: output}
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, info.Mode())
	})
}
