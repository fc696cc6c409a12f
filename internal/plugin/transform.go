package plugin

import (
	"context"
	"fmt"
	"strings"

	"github.com/selfmod/evolve-plugin/internal/host"
	"github.com/selfmod/evolve-plugin/internal/session"
)

// MessagesTransform implements host.MessagesTransformHandler. The host
// contract guarantees this fires before SystemTransform within the same
// prompt cycle; MessagesFifo/InjectionFifo correlation depends on it.
func (p *Plugin) MessagesTransform(ctx context.Context, req host.MessagesTransformRequest) host.MessagesTransformResponse {
	captured := make(session.History, 0, len(req.Messages))
	for _, raw := range req.Messages {
		role, _ := raw["role"].(string)
		agent, _ := raw["agent"].(string)
		parts, _ := raw["parts"].([]any)
		captured = append(captured, session.Message{Role: role, Agent: agent, Parts: parts})
	}
	p.store.PushMessages(captured)

	out := append([]map[string]any(nil), req.Messages...)
	if parts, ok := p.store.PopInjection(); ok {
		out = append(out, map[string]any{
			"role":  "user",
			"parts": partsToAny(parts),
		})
	}
	return host.MessagesTransformResponse{Messages: out}
}

func partsToAny(parts session.PartList) []any {
	out := make([]any, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out
}

// SystemTransform implements host.SystemTransformHandler.
func (p *Plugin) SystemTransform(ctx context.Context, req host.SystemTransformRequest) host.SystemTransformResponse {
	if !containsMarker(req.System) {
		return host.SystemTransformResponse{System: req.System}
	}

	if history, ok := p.store.PopMessages(); ok {
		p.store.SetSessionHistory(req.SessionID, history)
	}

	system := p.resolveSystemPrompt(ctx, req.SessionID, req.System)

	p.injectNotifications(ctx, req.SessionID)

	return host.SystemTransformResponse{System: system}
}

func (p *Plugin) resolveSystemPrompt(ctx context.Context, sessionID string, inbound []string) []string {
	if frozen, ok := p.store.FrozenPrompt(sessionID); ok {
		return frozen
	}

	out := p.caller.Call(ctx, "mutate_request", map[string]any{
		"session": map[string]any{"id": sessionID},
	}, sessionID)

	rawSystem, ok := out["system"].([]any)
	if !ok || len(rawSystem) == 0 {
		return inbound
	}

	seq := make([]string, 0, len(rawSystem))
	for _, v := range rawSystem {
		if s, ok := v.(string); ok {
			seq = append(seq, s)
		}
	}
	effective, _ := p.store.FreezePrompt(sessionID, seq)
	return effective
}

func (p *Plugin) injectNotifications(ctx context.Context, sessionID string) {
	pending := p.store.DrainNotifications(sessionID)
	if len(pending) == 0 {
		return
	}

	out := p.caller.Call(ctx, "format_notification", map[string]any{
		"notifications": pending,
	}, sessionID)

	message, ok := out["message"].(string)
	if !ok || message == "" {
		return
	}

	wrapped := fmt.Sprintf("<internal-notification>\n%s\n</internal-notification>", message)
	p.store.PushInjection(session.PartList{{"type": "text", "text": wrapped}})
}

func containsMarker(system []string) bool {
	for _, s := range system {
		if strings.Contains(s, AgentMarker) {
			return true
		}
	}
	return false
}
