package hookproc

import (
	"context"
	"log/slog"
	"time"

	"github.com/selfmod/evolve-plugin/internal/metrics"
)

// observational hooks witness events; their failures are swallowed and
// never trigger the recover cascade.
var observational = map[string]bool{
	"tool_before":         true,
	"tool_after":          true,
	"observe_message":     true,
	"format_notification": true,
}

// HistoryProvider supplies a session's most recently captured message
// history, if any is cached.
type HistoryProvider interface {
	SessionHistory(sessionID string) (any, bool)
}

// Caller wraps an IPC with named dispatch, session-history injection, and
// the recover-cascade error policy.
type Caller struct {
	ipc     *IPC
	history HistoryProvider
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewCaller returns a Caller. history may be nil if no session-history
// lookup is available (e.g. calls with no session id).
func NewCaller(ipc *IPC, history HistoryProvider, logger *slog.Logger) *Caller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Caller{ipc: ipc, history: history, logger: logger.With("component", "hookproc.caller")}
}

// WithMetrics attaches a metrics sink and returns the same Caller, for
// chaining onto NewCaller. A nil or never-called metrics sink is a no-op.
func (c *Caller) WithMetrics(m *metrics.Metrics) *Caller {
	c.metrics = m
	return c
}

// Call invokes the named hook with context merged into the input object,
// plus the session's cached history when available. On failure it applies
// the recover cascade: observational hooks swallow their error; all other
// hooks trigger exactly one `recover` invocation, whose own failure is
// swallowed.
func (c *Caller) Call(ctx context.Context, name string, hookCtx map[string]any, sessionID string) map[string]any {
	out, d, err := c.invoke(ctx, name, hookCtx, sessionID)
	if err == nil {
		c.observe(name, "success", d)
		return out
	}

	c.logger.Debug("hook call failed", "hook", name, "error", err)

	if observational[name] {
		c.observe(name, "swallowed", d)
		return map[string]any{}
	}
	if name == "recover" {
		// Base case: recover never re-enters itself.
		c.observe(name, "failed", d)
		return map[string]any{}
	}
	c.observe(name, "failed", d)

	_, recoverD, recoverErr := c.invoke(ctx, "recover", map[string]any{
		"error":       err.Error(),
		"failed_hook": name,
	}, "")
	if recoverErr != nil {
		c.logger.Debug("recover hook also failed", "error", recoverErr)
		c.observe("recover", "failed", recoverD)
		return map[string]any{}
	}
	// Per open question (c), recover's own system/user pair is ignored at
	// the call site.
	c.observe("recover", "success", recoverD)
	return map[string]any{}
}

func (c *Caller) observe(hook, outcome string, d time.Duration) {
	if c.metrics != nil {
		c.metrics.ObserveHook(hook, outcome, d)
	}
}

func (c *Caller) invoke(ctx context.Context, name string, hookCtx map[string]any, sessionID string) (map[string]any, time.Duration, error) {
	input := map[string]any{"hook": name}
	for k, v := range hookCtx {
		input[k] = v
	}
	if sessionID != "" && c.history != nil {
		if h, ok := c.history.SessionHistory(sessionID); ok {
			input["history"] = h
		}
	}
	start := time.Now()
	out, err := c.ipc.Invoke(ctx, name, input)
	d := time.Since(start)
	c.logger.Debug("hook invocation", "hook", name, "duration", d, "error", err)
	return out, d, err
}
