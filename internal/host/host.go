// Package host defines the seam between the plugin and its chat host. The
// real host (session/message CRUD, LLM streaming, tool registration) is an
// external collaborator out of scope for this module; this package only
// captures the slice of it the plugin actually consumes.
package host

import "context"

// Session is the host's minimal session record.
type Session struct {
	ID    string
	Title string
}

// Part is an opaque message part, typically {"type":"text","text":"..."}.
type Part = map[string]any

// Model identifies an LLM provider/model pair as observed from the host.
type Model struct {
	ProviderID string
	ModelID    string
}

// PromptRequest describes a prompt dispatched to a session.
type PromptRequest struct {
	SessionID string
	AgentID   string
	Model     Model
	Parts     []Part
	Synthetic bool
}

// ChatMessageEvent is delivered on every assistant turn.
type ChatMessageEvent struct {
	SessionID string
	Agent     string
	Model     Model
	Parts     []Part
}

// ToolEvent is delivered around tool execution.
type ToolEvent struct {
	SessionID string
	ToolName  string
	Args      map[string]any
}

// MessagesTransformRequest/Response model the messages-transform callback.
type MessagesTransformRequest struct {
	SessionID string
	Messages  []map[string]any
}

type MessagesTransformResponse struct {
	Messages []map[string]any
}

// SystemTransformRequest/Response model the system-transform callback.
type SystemTransformRequest struct {
	SessionID string
	Model     Model
	System    []string
}

type SystemTransformResponse struct {
	System []string
}

// SessionCompactingEvent is delivered when the host is about to compact a
// session's history.
type SessionCompactingEvent struct {
	SessionID string
}

// Handler function types the plugin registers with the host.
type (
	ChatMessageHandler       func(ctx context.Context, evt ChatMessageEvent)
	ToolHandler              func(ctx context.Context, evt ToolEvent)
	MessagesTransformHandler func(ctx context.Context, req MessagesTransformRequest) MessagesTransformResponse
	SystemTransformHandler   func(ctx context.Context, req SystemTransformRequest) SystemTransformResponse
	SessionCompactingHandler func(ctx context.Context, evt SessionCompactingEvent)
)

// Host is the subset of the chat host's SDK the plugin consumes: session
// CRUD, prompt dispatch, and lifecycle callback registration.
type Host interface {
	SessionCreate(ctx context.Context, title string) (Session, error)
	SessionList(ctx context.Context) ([]Session, error)
	SessionPromptSync(ctx context.Context, req PromptRequest) error
	SessionPromptAsync(ctx context.Context, req PromptRequest) error

	OnChatMessage(handler ChatMessageHandler)
	OnToolBefore(handler ToolHandler)
	OnToolAfter(handler ToolHandler)
	OnMessagesTransform(handler MessagesTransformHandler)
	OnSystemTransform(handler SystemTransformHandler)
	OnSessionCompacting(handler SessionCompactingHandler)
}
