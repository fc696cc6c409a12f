package actions

import (
	"context"
	"testing"

	"github.com/selfmod/evolve-plugin/internal/host/hosttest"
)

func TestParseAllSendDefaultsSyntheticTrue(t *testing.T) {
	raw := []any{
		map[string]any{"type": "send", "session_id": "s1", "message": "hi"},
	}
	got := ParseAll(raw)
	if len(got) != 1 {
		t.Fatalf("expected 1 action, got %d", len(got))
	}
	if !got[0].Synthetic {
		t.Error("expected synthetic to default true")
	}
}

func TestParseAllSendSyntheticOverride(t *testing.T) {
	raw := []any{
		map[string]any{"type": "send", "session_id": "s1", "message": "hi", "synthetic": false},
	}
	got := ParseAll(raw)
	if got[0].Synthetic {
		t.Error("expected synthetic override to false")
	}
}

func TestParseAllSkipsMalformed(t *testing.T) {
	raw := []any{
		"not a map",
		map[string]any{"type": "unknown_type"},
		map[string]any{"type": "create_session", "title": "heartbeat"},
	}
	got := ParseAll(raw)
	if len(got) != 1 || got[0].Type != "create_session" {
		t.Fatalf("expected only create_session to survive, got %+v", got)
	}
}

func TestExecutorContinuesAfterFailure(t *testing.T) {
	h := hosttest.New()
	ex := New(h, nil)

	ex.Execute(context.Background(), []Action{
		{Type: "unknown"},
		{Type: "create_session", Title: "heartbeat"},
	})

	sessions, _ := h.SessionList(context.Background())
	if len(sessions) != 1 || sessions[0].Title != "heartbeat" {
		t.Errorf("expected create_session to still run after a failure, got %+v", sessions)
	}
}

func TestExecutorSend(t *testing.T) {
	h := hosttest.New()
	ex := New(h, nil)

	ex.Execute(context.Background(), []Action{
		{Type: "send", SessionID: "s1", Message: "hello", Synthetic: true},
	})

	if len(h.AsyncPrompts) != 1 {
		t.Fatalf("expected 1 async prompt, got %d", len(h.AsyncPrompts))
	}
	if h.AsyncPrompts[0].SessionID != "s1" {
		t.Errorf("SessionID = %q, want s1", h.AsyncPrompts[0].SessionID)
	}
}
