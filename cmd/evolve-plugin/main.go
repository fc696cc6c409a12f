// Package main provides a standalone CLI for developing and debugging an
// evolve hook script outside of a live host process: invoking a single hook
// by name, validating a candidate rewrite in the sandbox, dry-running a
// full observe/idle cycle against an in-memory fake host, or running the
// heartbeat loop standalone against a workspace.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

var workspaceFlag string

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "evolve-plugin",
		Short:        "Debug and validate an evolve hook script outside a live host",
		Version:      fmt.Sprintf("%s (commit %s)", version, commit),
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&workspaceFlag, "workspace", "w", "", "Workspace root (defaults to $OPENCODE_EVOLVE_WORKSPACE)")
	root.AddCommand(
		buildCallCmd(),
		buildValidateCmd(),
		buildDryRunCmd(),
		buildServeHeartbeatCmd(),
	)
	return root
}
