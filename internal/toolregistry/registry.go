package toolregistry

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/selfmod/evolve-plugin/internal/hookproc"
	"github.com/selfmod/evolve-plugin/internal/sandbox"
	"github.com/selfmod/evolve-plugin/internal/session"
	"github.com/selfmod/evolve-plugin/internal/workspace"
)

// Registry builds the union of hook-declared tools and the fixed built-in
// set, all prefixed with the hook's stem name.
type Registry struct {
	workspaceRoot string
	hookName      string
	stem          string

	caller *hookproc.Caller
	store  *session.Store
	snap   *workspace.Snapshotter
	valid  *sandbox.Validator
	logger *slog.Logger

	validationHistory *validationRing
}

// New returns a Registry bound to a workspace and hook.
func New(workspaceRoot, hookName string, caller *hookproc.Caller, store *session.Store, snap *workspace.Snapshotter, valid *sandbox.Validator, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		workspaceRoot:     workspaceRoot,
		hookName:          hookName,
		stem:              stemOf(hookName),
		caller:            caller,
		store:             store,
		snap:              snap,
		valid:             valid,
		logger:            logger.With("component", "toolregistry"),
		validationHistory: newValidationRing(20),
	}
}

func stemOf(hookName string) string {
	ext := filepath.Ext(hookName)
	return strings.TrimSuffix(hookName, ext)
}

// Prefix returns "<hook_stem>_" + name.
func (r *Registry) Prefix(name string) string {
	return r.stem + "_" + name
}

// Discover calls the hook's discover verb and wraps each declared tool
// descriptor as a ToolDefinition whose Handler dispatches execute_tool.
func (r *Registry) Discover(ctx context.Context) []ToolDefinition {
	out := r.caller.Call(ctx, "discover", map[string]any{}, "")
	rawTools, ok := out["tools"].([]any)
	if !ok {
		return nil
	}

	defs := make([]ToolDefinition, 0, len(rawTools))
	for _, rawTool := range rawTools {
		toolMap, ok := rawTool.(map[string]any)
		if !ok {
			continue
		}
		name, _ := toolMap["name"].(string)
		if name == "" {
			continue
		}
		description, _ := toolMap["description"].(string)
		params := map[string]string{}
		if rawParams, ok := toolMap["parameters"].(map[string]any); ok {
			for k, v := range rawParams {
				if s, ok := v.(string); ok {
					params[k] = s
				}
			}
		}
		defs = append(defs, ToolDefinition{
			Name:        r.Prefix(name),
			Description: description,
			Parameters:  params,
			Handler:     r.executeHookTool(name),
		})
	}
	return defs
}

// executeHookTool builds the Handler for a hook-declared tool: calls
// execute_tool, applies modified/notify side effects, commits, and returns
// the hook's result (or "done" if none was given).
func (r *Registry) executeHookTool(name string) Handler {
	return func(ctx context.Context, sessionID string, args map[string]any) (string, error) {
		out := r.caller.Call(ctx, "execute_tool", map[string]any{
			"tool": name,
			"args": args,
			"session": map[string]any{
				"id": sessionID,
			},
		}, sessionID)

		applySideEffects(r.store, sessionID, out)

		r.snap.Commit(ctx, fmt.Sprintf("update %s", name))

		if result, ok := out["result"].(string); ok {
			return result, nil
		}
		return "done", nil
	}
}

// applySideEffects fans notify entries out to every other known session
// and is a no-op for everything else (modified is observational bookkeeping
// the snapshotter already captures via git's own diff).
func applySideEffects(store *session.Store, sourceSessionID string, out map[string]any) {
	notify, ok := out["notify"].([]any)
	if !ok {
		return
	}
	for _, n := range notify {
		store.EnqueueNotification(sourceSessionID, n)
	}
}
