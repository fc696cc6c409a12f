package plugin

import (
	"context"
	"strings"

	"github.com/selfmod/evolve-plugin/internal/actions"
	"github.com/selfmod/evolve-plugin/internal/host"
)

// OnChatMessage implements host.ChatMessageHandler: it observes every
// assistant turn, applies the hook's side-effects, and resurrects idle
// turns via the idle hook's continue string.
func (p *Plugin) OnChatMessage(ctx context.Context, evt host.ChatMessageEvent) {
	p.captureModel(evt.Model)
	p.rememberAgent(evt.SessionID, evt.Agent)

	reasoning, toolCalls, answer := splitParts(evt.Parts)

	out := p.caller.Call(ctx, "observe_message", map[string]any{
		"reasoning":  reasoning,
		"tool_calls": toolCalls,
		"answer":     answer,
		"session": map[string]any{
			"id":    evt.SessionID,
			"agent": evt.Agent,
		},
	}, evt.SessionID)

	p.applyObserveSideEffects(ctx, evt.SessionID, out)

	if len(toolCalls) > 0 {
		return
	}

	idleOut := p.caller.Call(ctx, "idle", map[string]any{"answer": answer}, evt.SessionID)
	cont, ok := idleOut["continue"].(string)
	if !ok || cont == "" {
		return
	}

	model, _ := p.LastModel()
	agent := p.agentFor(evt.SessionID, p.cfg.HeartbeatAgent)
	if err := p.h.SessionPromptAsync(ctx, host.PromptRequest{
		SessionID: evt.SessionID,
		AgentID:   agent,
		Model:     model,
		Parts:     []host.Part{{"type": "text", "text": cont}},
		Synthetic: true,
	}); err != nil {
		p.logger.Debug("idle continuation dispatch failed", "error", err)
	}
}

func (p *Plugin) applyObserveSideEffects(ctx context.Context, sessionID string, out map[string]any) {
	if _, ok := out["modified"]; ok {
		p.logger.Debug("workspace marked dirty", "session", sessionID)
	}

	if notify, ok := out["notify"].([]any); ok {
		for _, n := range notify {
			p.store.EnqueueNotification(sessionID, n)
		}
	}

	if rawActions, ok := out["actions"].([]any); ok {
		p.execute.Execute(ctx, actions.ParseAll(rawActions))
	}
}

// splitParts extracts reasoning text, tool-call parts, and answer text from
// an assistant turn's parts.
func splitParts(parts []host.Part) (reasoning string, toolCalls []host.Part, answer string) {
	var reasoningBuf, answerBuf strings.Builder
	for _, part := range parts {
		kind, _ := part["type"].(string)
		switch kind {
		case "reasoning":
			if text, ok := part["text"].(string); ok {
				reasoningBuf.WriteString(text)
			}
		case "tool-call", "tool_call":
			toolCalls = append(toolCalls, part)
		case "text":
			if text, ok := part["text"].(string); ok {
				answerBuf.WriteString(text)
			}
		}
	}
	return reasoningBuf.String(), toolCalls, answerBuf.String()
}

// OnToolBefore/OnToolAfter implement host.ToolHandler. Both are
// observational: their hook's failures never cascade into recover.
func (p *Plugin) OnToolBefore(ctx context.Context, evt host.ToolEvent) {
	p.caller.Call(ctx, "tool_before", map[string]any{
		"tool": evt.ToolName,
		"args": evt.Args,
		"session": map[string]any{
			"id": evt.SessionID,
		},
	}, evt.SessionID)
}

func (p *Plugin) OnToolAfter(ctx context.Context, evt host.ToolEvent) {
	p.caller.Call(ctx, "tool_after", map[string]any{
		"tool": evt.ToolName,
		"args": evt.Args,
		"session": map[string]any{
			"id": evt.SessionID,
		},
	}, evt.SessionID)
}

// OnSessionCompacting implements host.SessionCompactingHandler.
func (p *Plugin) OnSessionCompacting(ctx context.Context, evt host.SessionCompactingEvent) {
	p.caller.Call(ctx, "compacting", map[string]any{
		"session": map[string]any{"id": evt.SessionID},
	}, evt.SessionID)
}
