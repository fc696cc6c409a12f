package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/selfmod/evolve-plugin/internal/actions"
	"github.com/selfmod/evolve-plugin/internal/config"
	execsafety "github.com/selfmod/evolve-plugin/internal/exec"
	"github.com/selfmod/evolve-plugin/internal/heartbeat"
	"github.com/selfmod/evolve-plugin/internal/hookproc"
	"github.com/selfmod/evolve-plugin/internal/host"
	"github.com/selfmod/evolve-plugin/internal/host/hosttest"
	"github.com/selfmod/evolve-plugin/internal/metrics"
	"github.com/selfmod/evolve-plugin/internal/plugin"
	"github.com/selfmod/evolve-plugin/internal/sandbox"
	"github.com/selfmod/evolve-plugin/internal/session"
)

func resolveWorkspace() (string, error) {
	if workspaceFlag != "" {
		return workspaceFlag, nil
	}
	return config.ResolveWorkspace()
}

// buildCallCmd invokes a single hook verb against the configured workspace
// and prints its merged result, for manually testing a hook in isolation.
func buildCallCmd() *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "call <hook-name>",
		Short: "Invoke a single hook verb and print its merged JSON result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hookName, err := execsafety.SanitizeArgument(args[0])
			if err != nil {
				return fmt.Errorf("hook name: %w", err)
			}

			workspace, err := resolveWorkspace()
			if err != nil {
				return err
			}
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}

			var hookCtx map[string]any
			raw, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &hookCtx); err != nil {
					return fmt.Errorf("decode stdin as JSON: %w", err)
				}
			}

			ipc := hookproc.NewIPC(workspace, cfg.Hook, time.Duration(cfg.HookTimeoutMs)*time.Millisecond, slog.Default())
			store := session.New()
			caller := hookproc.NewCaller(ipc, store, slog.Default())

			out := caller.Call(context.Background(), hookName, hookCtx, sessionID)
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Session id to attach (enables cached history injection)")
	return cmd
}

// buildValidateCmd runs sandbox validation on a candidate hook file without
// installing it, printing the sandbox test command's output.
func buildValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <candidate-file>",
		Short: "Validate a candidate hook rewrite in the sandbox",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace, err := resolveWorkspace()
			if err != nil {
				return err
			}
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			if cfg.TestScript == "" {
				return fmt.Errorf("no test_script configured for %s", workspace)
			}

			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read candidate: %w", err)
			}

			validator := sandbox.New(workspace, cfg.Hook, cfg.TestScript, time.Duration(cfg.HookTimeoutMs)*time.Millisecond, slog.Default())
			result := validator.Validate(context.Background(), string(content))

			fmt.Fprintln(cmd.OutOrStdout(), result.Output)
			if !result.OK {
				return fmt.Errorf("validation failed")
			}
			return nil
		},
	}
	return cmd
}

// staticModelProvider implements heartbeat.ModelProvider with a fixed model.
// serve-heartbeat has no live chat host ever observing a model, so the
// operator supplies one up front instead.
type staticModelProvider struct {
	model host.Model
}

func (s staticModelProvider) LastModel() (host.Model, bool) { return s.model, true }

// buildServeHeartbeatCmd runs the heartbeat loop standalone against a
// workspace until interrupted, with no real chat host attached: ticks
// dispatch against an in-memory fake session, skipped ticks are logged by
// the scheduler at debug level, and the number of dispatched prompts is
// logged on shutdown. Useful for exercising the heartbeat hook's cadence
// and skip-on-overlap behavior in isolation.
func buildServeHeartbeatCmd() *cobra.Command {
	var providerID, modelID string
	cmd := &cobra.Command{
		Use:   "serve-heartbeat",
		Short: "Run the heartbeat loop standalone against a workspace until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace, err := resolveWorkspace()
			if err != nil {
				return err
			}
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := slog.Default()
			reg := metrics.New(prometheus.DefaultRegisterer)

			ipc := hookproc.NewIPC(workspace, cfg.Hook, time.Duration(cfg.HookTimeoutMs)*time.Millisecond, logger)
			store := session.New()
			caller := hookproc.NewCaller(ipc, store, logger).WithMetrics(reg)
			fake := hosttest.New()
			execr := actions.New(fake, logger)
			models := staticModelProvider{model: host.Model{ProviderID: providerID, ModelID: modelID}}

			sched := heartbeat.New(time.Duration(cfg.HeartbeatMs)*time.Millisecond, caller, fake, store, execr,
				cfg.HeartbeatTitle, cfg.HeartbeatAgent, models, logger).WithMetrics(reg)

			logger.Info("serve-heartbeat starting", "workspace", workspace, "interval_ms", cfg.HeartbeatMs)
			sched.Start(ctx)

			<-ctx.Done()
			logger.Info("serve-heartbeat stopping")
			sched.Stop()
			logger.Info("serve-heartbeat stopped", "prompts_dispatched", len(fake.Prompts))
			return nil
		},
	}
	cmd.Flags().StringVar(&providerID, "provider", "anthropic", "Model provider id to report on each heartbeat prompt")
	cmd.Flags().StringVar(&modelID, "model", "claude", "Model id to report on each heartbeat prompt")
	return cmd
}

// buildDryRunCmd wires a full Plugin against an in-memory fake host and
// fires one synthetic chat-message turn through it, printing the resulting
// debug-state snapshot. Useful for exercising the observe/idle/notify path
// end to end without a real host process.
func buildDryRunCmd() *cobra.Command {
	var answer string
	var sessionID string
	var diagnosticsAddr string
	cmd := &cobra.Command{
		Use:   "dry-run",
		Short: "Fire one synthetic chat-message turn through a fake host",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace, err := resolveWorkspace()
			if err != nil {
				return err
			}
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			if diagnosticsAddr != "" {
				cfg.DiagnosticsAddr = diagnosticsAddr
			}

			reg := metrics.New(prometheus.DefaultRegisterer)

			fake := hosttest.New()
			p := plugin.New(cfg, workspace, fake, reg, slog.Default())
			p.RegisterCallbacks(fake)
			defer p.Close()

			if shutdown, err := p.ServeDiagnostics(cfg.DiagnosticsAddr); err != nil {
				return fmt.Errorf("start diagnostics: %w", err)
			} else if shutdown != nil {
				defer shutdown(context.Background())
			}

			fake.FireChatMessage(context.Background(), host.ChatMessageEvent{
				SessionID: sessionID,
				Agent:     cfg.HeartbeatAgent,
				Model:     host.Model{ProviderID: "anthropic", ModelID: "claude"},
				Parts:     []host.Part{{"type": "text", "text": answer}},
			})

			return writeJSON(cmd.OutOrStdout(), p.Store().Stats())
		},
	}
	cmd.Flags().StringVar(&answer, "answer", "dry run turn", "Synthetic assistant answer text")
	cmd.Flags().StringVar(&sessionID, "session", "dry-run-session", "Synthetic session id")
	cmd.Flags().StringVar(&diagnosticsAddr, "diagnostics-addr", "", "Serve /healthz, /metrics, /debug/state on this address for the duration of the run")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
