// Package workspace initializes and snapshots a content-versioned
// repository under the plugin workspace. It wraps the system git binary;
// version control itself is an external collaborator (plugin's job is only
// to stage and commit what the hook and tools have already written).
package workspace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

// Snapshotter commits staged changes under a workspace root into a git
// repository, initializing one on first use.
type Snapshotter struct {
	root   string
	logger *slog.Logger

	initialized bool
}

// New returns a Snapshotter rooted at root. The repository is initialized
// lazily, on the first Commit call.
func New(root string, logger *slog.Logger) *Snapshotter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Snapshotter{root: root, logger: logger.With("component", "workspace")}
}

// Commit stages all changes under the workspace and commits them with
// message. It no-ops (no commit created) when the staged tree
// is empty. Commit failures are logged and swallowed — per the error
// handling design, version-control failures never fail user-visible
// operations.
func (s *Snapshotter) Commit(ctx context.Context, message string) {
	if err := s.commit(ctx, message); err != nil {
		s.logger.Debug("commit failed", "error", err, "message", message)
	}
}

func (s *Snapshotter) commit(ctx context.Context, message string) error {
	if err := s.ensureInitialized(ctx); err != nil {
		return err
	}

	if err := s.run(ctx, "add", "-A"); err != nil {
		return fmt.Errorf("stage changes: %w", err)
	}

	dirty, err := s.hasStagedChanges(ctx)
	if err != nil {
		return fmt.Errorf("check staged changes: %w", err)
	}
	if !dirty {
		return nil
	}

	if err := s.run(ctx, "commit", "-m", message); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Snapshotter) ensureInitialized(ctx context.Context) error {
	if s.initialized {
		return nil
	}
	if _, err := os.Stat(filepath.Join(s.root, ".git")); err == nil {
		s.initialized = true
		return nil
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create workspace root: %w", err)
	}
	if err := s.run(ctx, "init"); err != nil {
		return fmt.Errorf("git init: %w", err)
	}
	if err := s.run(ctx, "config", "user.name", "evolve-plugin"); err != nil {
		return fmt.Errorf("configure identity name: %w", err)
	}
	if err := s.run(ctx, "config", "user.email", "evolve-plugin@localhost"); err != nil {
		return fmt.Errorf("configure identity email: %w", err)
	}
	s.initialized = true
	return nil
}

func (s *Snapshotter) hasStagedChanges(ctx context.Context) (bool, error) {
	cmd := exec.CommandContext(ctx, "git", "diff", "--cached", "--quiet")
	cmd.Dir = s.root
	err := cmd.Run()
	if err == nil {
		return false, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return true, nil
	}
	return false, err
}

func (s *Snapshotter) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = s.root
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", args[0], err, stderr.String())
	}
	return nil
}
