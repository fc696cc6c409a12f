// Package hosttest provides an in-memory fake of host.Host for tests,
// mirroring the pack's convention of a sibling "*test" package per seam.
package hosttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/selfmod/evolve-plugin/internal/host"
)

// Host is an in-memory, single-process fake implementing host.Host. Tests
// drive it directly: call Fire* to simulate the real host invoking a
// registered callback, and inspect Prompts/Sessions afterward.
type Host struct {
	mu       sync.Mutex
	sessions []host.Session
	nextID   int

	Prompts      []host.PromptRequest
	AsyncPrompts []host.PromptRequest

	chatMessage       host.ChatMessageHandler
	toolBefore        host.ToolHandler
	toolAfter         host.ToolHandler
	messagesTransform host.MessagesTransformHandler
	systemTransform   host.SystemTransformHandler
	sessionCompacting host.SessionCompactingHandler
}

// New returns an empty fake host.
func New() *Host {
	return &Host{}
}

func (h *Host) SessionCreate(ctx context.Context, title string) (host.Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	s := host.Session{ID: fmt.Sprintf("session-%d", h.nextID), Title: title}
	h.sessions = append(h.sessions, s)
	return s, nil
}

func (h *Host) SessionList(ctx context.Context) ([]host.Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]host.Session, len(h.sessions))
	copy(out, h.sessions)
	return out, nil
}

func (h *Host) SessionPromptSync(ctx context.Context, req host.PromptRequest) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Prompts = append(h.Prompts, req)
	return nil
}

func (h *Host) SessionPromptAsync(ctx context.Context, req host.PromptRequest) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.AsyncPrompts = append(h.AsyncPrompts, req)
	return nil
}

func (h *Host) OnChatMessage(handler host.ChatMessageHandler) { h.chatMessage = handler }
func (h *Host) OnToolBefore(handler host.ToolHandler)         { h.toolBefore = handler }
func (h *Host) OnToolAfter(handler host.ToolHandler)          { h.toolAfter = handler }
func (h *Host) OnMessagesTransform(handler host.MessagesTransformHandler) {
	h.messagesTransform = handler
}
func (h *Host) OnSystemTransform(handler host.SystemTransformHandler) {
	h.systemTransform = handler
}
func (h *Host) OnSessionCompacting(handler host.SessionCompactingHandler) {
	h.sessionCompacting = handler
}

// FireChatMessage simulates the host delivering a chat-message-observed
// event to the registered handler, if any.
func (h *Host) FireChatMessage(ctx context.Context, evt host.ChatMessageEvent) {
	if h.chatMessage != nil {
		h.chatMessage(ctx, evt)
	}
}

// FireToolBefore/FireToolAfter simulate the host's tool lifecycle events.
func (h *Host) FireToolBefore(ctx context.Context, evt host.ToolEvent) {
	if h.toolBefore != nil {
		h.toolBefore(ctx, evt)
	}
}

func (h *Host) FireToolAfter(ctx context.Context, evt host.ToolEvent) {
	if h.toolAfter != nil {
		h.toolAfter(ctx, evt)
	}
}

// FireMessagesTransform/FireSystemTransform simulate the ordered prompt
// cycle pair.
func (h *Host) FireMessagesTransform(ctx context.Context, req host.MessagesTransformRequest) host.MessagesTransformResponse {
	if h.messagesTransform == nil {
		return host.MessagesTransformResponse{Messages: req.Messages}
	}
	return h.messagesTransform(ctx, req)
}

func (h *Host) FireSystemTransform(ctx context.Context, req host.SystemTransformRequest) host.SystemTransformResponse {
	if h.systemTransform == nil {
		return host.SystemTransformResponse{System: req.System}
	}
	return h.systemTransform(ctx, req)
}

func (h *Host) FireSessionCompacting(ctx context.Context, evt host.SessionCompactingEvent) {
	if h.sessionCompacting != nil {
		h.sessionCompacting(ctx, evt)
	}
}
