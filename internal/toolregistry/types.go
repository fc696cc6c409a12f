// Package toolregistry builds host-facing tool descriptors from the hook's
// discover response plus a fixed set of built-in tools for prompt and hook
// read/write/patch/validate, all prefixed with the hook's stem name.
package toolregistry

import "context"

// Handler executes a tool call and returns its textual result.
type Handler func(ctx context.Context, sessionID string, args map[string]any) (string, error)

// ToolDefinition is a host-facing tool descriptor.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]string
	Handler     Handler
}
