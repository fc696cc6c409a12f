package toolregistry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/selfmod/evolve-plugin/internal/sandbox"
)

// validationRing is a bounded ring buffer of the most recent sandbox
// validation outcomes, exposed via hook_validate_history so an agent
// debugging a failed self-rewrite doesn't have to scrape logs.
type validationRing struct {
	mu   sync.Mutex
	cap  int
	buf  []sandbox.Result
}

func newValidationRing(capacity int) *validationRing {
	return &validationRing{cap: capacity}
}

func (r *validationRing) record(res sandbox.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, res)
	if len(r.buf) > r.cap {
		r.buf = r.buf[len(r.buf)-r.cap:]
	}
}

func (r *validationRing) snapshot() []sandbox.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sandbox.Result, len(r.buf))
	copy(out, r.buf)
	return out
}

// Builtins returns the fixed set of built-in tools, always present even if
// the hook itself is broken — they are the self-repair escape hatch.
func (r *Registry) Builtins() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        r.Prefix("prompt_list"),
			Description: "List prompt files under prompts/",
			Handler:     r.promptList,
		},
		{
			Name:        r.Prefix("prompt_read"),
			Description: "Read a prompt file's contents",
			Parameters:  map[string]string{"path": "relative path under prompts/"},
			Handler:     r.promptRead,
		},
		{
			Name:        r.Prefix("prompt_write"),
			Description: "Replace a prompt file's contents",
			Parameters:  map[string]string{"path": "relative path under prompts/", "content": "new file content"},
			Handler:     r.promptWrite,
		},
		{
			Name:        r.Prefix("prompt_patch"),
			Description: "Apply a single find/replace to a prompt file",
			Parameters:  map[string]string{"path": "relative path under prompts/", "old": "text to replace", "new": "replacement text"},
			Handler:     r.promptPatch,
		},
		{
			Name:        r.Prefix("hook_validate"),
			Description: "Run sandbox validation on supplied hook content",
			Parameters:  map[string]string{"content": "candidate hook content"},
			Handler:     r.hookValidate,
		},
		{
			Name:        r.Prefix("hook_read"),
			Description: "Read the current hook script content",
			Handler:     r.hookRead,
		},
		{
			Name:        r.Prefix("hook_write"),
			Description: "Validate and install new hook content",
			Parameters:  map[string]string{"content": "new hook content"},
			Handler:     r.hookWrite,
		},
		{
			Name:        r.Prefix("hook_patch"),
			Description: "Apply a single find/replace to the hook, validate, install",
			Parameters:  map[string]string{"old": "text to replace", "new": "replacement text"},
			Handler:     r.hookPatch,
		},
		{
			Name:        r.Prefix("hook_validate_history"),
			Description: "List the last sandbox validation outcomes",
			Handler:     r.hookValidateHistory,
		},
	}
}

func (r *Registry) promptsDir() string {
	return filepath.Join(r.workspaceRoot, "prompts")
}

func (r *Registry) resolvePromptPath(rel string) (string, error) {
	clean := filepath.Clean("/" + rel)
	return filepath.Join(r.promptsDir(), clean), nil
}

func (r *Registry) promptList(ctx context.Context, sessionID string, args map[string]any) (string, error) {
	dir := r.promptsDir()
	var names []string
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("list prompts: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return strings.Join(names, "\n"), nil
}

func (r *Registry) promptRead(ctx context.Context, sessionID string, args map[string]any) (string, error) {
	path, _ := args["path"].(string)
	full, err := r.resolvePromptPath(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("read prompt %s: %w", path, err)
	}
	return string(data), nil
}

func (r *Registry) promptWrite(ctx context.Context, sessionID string, args map[string]any) (string, error) {
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)
	full, err := r.resolvePromptPath(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create prompts dir: %w", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write prompt %s: %w", path, err)
	}
	r.store.EnqueueNotification(sessionID, map[string]any{"type": "trait_changed", "path": path})
	r.snap.Commit(ctx, fmt.Sprintf("update prompt %s", path))
	return "done", nil
}

func (r *Registry) promptPatch(ctx context.Context, sessionID string, args map[string]any) (string, error) {
	path, _ := args["path"].(string)
	old, _ := args["old"].(string)
	new, _ := args["new"].(string)
	full, err := r.resolvePromptPath(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("read prompt %s: %w", path, err)
	}
	patched, err := SingleOccurrencePatch(string(data), old, new)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(full, []byte(patched), 0o644); err != nil {
		return "", fmt.Errorf("write prompt %s: %w", path, err)
	}
	r.store.EnqueueNotification(sessionID, map[string]any{"type": "trait_changed", "path": path})
	r.snap.Commit(ctx, fmt.Sprintf("update prompt %s", path))
	return "done", nil
}

func (r *Registry) hookValidate(ctx context.Context, sessionID string, args map[string]any) (string, error) {
	content, _ := args["content"].(string)
	result := r.valid.Validate(ctx, content)
	r.validationHistory.record(result)
	if !result.OK {
		return fmt.Sprintf("validation failed: %s", result.Output), nil
	}
	return result.Output, nil
}

func (r *Registry) hookPath() string {
	return filepath.Join(r.workspaceRoot, "hooks", r.hookName)
}

func (r *Registry) hookRead(ctx context.Context, sessionID string, args map[string]any) (string, error) {
	data, err := os.ReadFile(r.hookPath())
	if err != nil {
		return "", fmt.Errorf("read hook: %w", err)
	}
	return string(data), nil
}

func (r *Registry) hookWrite(ctx context.Context, sessionID string, args map[string]any) (string, error) {
	content, _ := args["content"].(string)
	result := r.valid.Validate(ctx, content)
	r.validationHistory.record(result)
	if !result.OK {
		return fmt.Sprintf("validation failed: %s", result.Output), nil
	}
	if err := os.MkdirAll(filepath.Dir(r.hookPath()), 0o755); err != nil {
		return "", fmt.Errorf("create hooks dir: %w", err)
	}
	if err := os.WriteFile(r.hookPath(), []byte(content), 0o755); err != nil {
		return "", fmt.Errorf("write hook: %w", err)
	}
	r.snap.Commit(ctx, "update hook")
	return "done", nil
}

func (r *Registry) hookPatch(ctx context.Context, sessionID string, args map[string]any) (string, error) {
	old, _ := args["old"].(string)
	new, _ := args["new"].(string)
	current, err := os.ReadFile(r.hookPath())
	if err != nil {
		return "", fmt.Errorf("read hook: %w", err)
	}
	patched, err := SingleOccurrencePatch(string(current), old, new)
	if err != nil {
		return "", err
	}
	result := r.valid.Validate(ctx, patched)
	r.validationHistory.record(result)
	if !result.OK {
		return fmt.Sprintf("validation failed: %s", result.Output), nil
	}
	if err := os.WriteFile(r.hookPath(), []byte(patched), 0o755); err != nil {
		return "", fmt.Errorf("write hook: %w", err)
	}
	r.snap.Commit(ctx, "update hook")
	return "done", nil
}

func (r *Registry) hookValidateHistory(ctx context.Context, sessionID string, args map[string]any) (string, error) {
	history := r.validationHistory.snapshot()
	if len(history) == 0 {
		return "no validations recorded yet", nil
	}
	var b strings.Builder
	for i, res := range history {
		fmt.Fprintf(&b, "%d: ok=%t\n", i, res.OK)
	}
	return b.String(), nil
}
