// Package hookproc implements the hook subprocess IPC protocol and the
// named-dispatch hook caller with its recover-cascade error policy.
package hookproc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	execsafety "github.com/selfmod/evolve-plugin/internal/exec"
)

// IPC spawns the hook binary as a child process per invocation and merges
// its newline-delimited JSON output into a single accumulator.
type IPC struct {
	workspace string
	hookName  string
	validName bool
	timeout   time.Duration
	logger    *slog.Logger
}

// NewIPC returns an IPC bound to a workspace, resolving
// <workspace>/hooks/<hookName> as the subprocess to spawn. hookName comes
// from config and is validated once here: a name that fails
// IsSafeExecutableValue (shell metacharacters, option injection, quotes)
// makes every Invoke behave as if the hook were absent rather than ever
// reaching exec.CommandContext.
func NewIPC(workspace, hookName string, timeout time.Duration, logger *slog.Logger) *IPC {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "hookproc", "hook", hookName)
	valid := execsafety.IsSafeExecutableValue(hookName)
	if !valid {
		logger.Error("configured hook name is unsafe, hook disabled")
	}
	return &IPC{
		workspace: workspace,
		hookName:  hookName,
		validName: valid,
		timeout:   timeout,
		logger:    logger,
	}
}

// Path returns the resolved path of the hook executable.
func (ipc *IPC) Path() string {
	return filepath.Join(ipc.workspace, "hooks", ipc.hookName)
}

// Invoke spawns the hook with argv [name], writes input as a single JSON
// document to stdin, and merges its NDJSON stdout into a result object. If
// the hook executable is absent, it returns an empty object without
// starting a process.
func (ipc *IPC) Invoke(ctx context.Context, name string, input map[string]any) (map[string]any, error) {
	invocationID := uuid.NewString()
	logger := ipc.logger.With("invocation_id", invocationID)

	if !ipc.validName {
		return map[string]any{}, nil
	}

	path := ipc.Path()
	if _, err := os.Stat(path); err != nil {
		logger.Debug("hook absent, no-op", "path", path)
		return map[string]any{}, nil
	}

	payload, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode hook input: %w", err)
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if ipc.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, ipc.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, path, name)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &slogWriter{logger: logger}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start hook: %w", err)
	}

	if _, err := stdin.Write(payload); err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("write hook input: %w", err)
	}
	if err := stdin.Close(); err != nil {
		return nil, fmt.Errorf("close hook stdin: %w", err)
	}

	waitErr := cmd.Wait()
	if runCtx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("timeout")
	}
	if waitErr != nil {
		return nil, fmt.Errorf("exit %s", exitDescription(waitErr))
	}

	return ipc.mergeOutput(logger, stdout.Bytes())
}

func (ipc *IPC) mergeOutput(logger *slog.Logger, data []byte) (map[string]any, error) {
	result := map[string]any{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal(line, &obj); err != nil {
			return nil, fmt.Errorf("malformed hook output line: %w", err)
		}
		if logMsg, ok := obj["log"]; ok {
			if s, ok := logMsg.(string); ok {
				logger.Debug(s)
			}
			continue
		}
		for k, v := range obj {
			result[k] = v
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read hook output: %w", err)
	}
	return result, nil
}

func exitDescription(err error) string {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.ExitCode() >= 0 {
			return fmt.Sprintf("%d", exitErr.ExitCode())
		}
		return exitErr.String()
	}
	return err.Error()
}

// slogWriter adapts an io.Writer onto a slog.Logger at debug level, one log
// record per line. It's used to forward a hook's stderr to the debug log.
type slogWriter struct {
	logger *slog.Logger
}

func (w *slogWriter) Write(p []byte) (int, error) {
	scanner := bufio.NewScanner(bytes.NewReader(p))
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			w.logger.Debug(line)
		}
	}
	return len(p), nil
}

var _ io.Writer = (*slogWriter)(nil)
