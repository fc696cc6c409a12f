// Package actions translates hook-returned action objects into host SDK
// calls: sending a synthetic message, or creating a new session.
package actions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/selfmod/evolve-plugin/internal/host"
)

// Action is the decoded, tagged form of a hook-returned action object.
type Action struct {
	Type      string // "send" or "create_session"
	SessionID string
	Message   string
	Synthetic bool
	Title     string
}

// ParseAll decodes the raw "actions" field from a hook result into Actions,
// skipping anything malformed rather than failing the whole batch — a
// malformed action is not named as an error kind in the error-handling
// design, so best-effort skip keeps failures isolated per-entry.
func ParseAll(raw []any) []Action {
	out := make([]Action, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		kind, _ := m["type"].(string)
		switch kind {
		case "send":
			a := Action{Type: "send", Synthetic: true}
			a.SessionID, _ = m["session_id"].(string)
			a.Message, _ = m["message"].(string)
			if synthetic, ok := m["synthetic"].(bool); ok {
				a.Synthetic = synthetic
			}
			out = append(out, a)
		case "create_session":
			a := Action{Type: "create_session"}
			a.Title, _ = m["title"].(string)
			out = append(out, a)
		}
	}
	return out
}

// Executor executes Actions against the host SDK. A single action's
// failure is logged and does not prevent the remaining actions in the
// batch from being attempted.
type Executor struct {
	h      host.Host
	logger *slog.Logger
}

// New returns an Executor bound to a host.
func New(h host.Host, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{h: h, logger: logger.With("component", "actions")}
}

// Execute runs every action in order. Each failure is logged; the next
// action is still attempted.
func (e *Executor) Execute(ctx context.Context, actions []Action) {
	for _, a := range actions {
		if err := e.execute(ctx, a); err != nil {
			e.logger.Debug("action failed", "type", a.Type, "error", err)
		}
	}
}

func (e *Executor) execute(ctx context.Context, a Action) error {
	switch a.Type {
	case "send":
		return e.h.SessionPromptAsync(ctx, host.PromptRequest{
			SessionID: a.SessionID,
			Synthetic: a.Synthetic,
			Parts:     []host.Part{{"type": "text", "text": a.Message}},
		})
	case "create_session":
		_, err := e.h.SessionCreate(ctx, a.Title)
		return err
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
}
