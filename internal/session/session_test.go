package session

import "testing"

func TestFreezePromptIsWriteOnce(t *testing.T) {
	s := New()
	seq, installed := s.FreezePrompt("s1", []string{"A"})
	if !installed || len(seq) != 1 || seq[0] != "A" {
		t.Fatalf("first freeze = %v, %v", seq, installed)
	}

	seq2, installed2 := s.FreezePrompt("s1", []string{"B", "C"})
	if installed2 {
		t.Error("second freeze should not install")
	}
	if len(seq2) != 1 || seq2[0] != "A" {
		t.Errorf("frozen prompt changed: %v", seq2)
	}

	got, ok := s.FrozenPrompt("s1")
	if !ok || len(got) != 1 || got[0] != "A" {
		t.Errorf("FrozenPrompt = %v, %v, want [A] true", got, ok)
	}
}

func TestEnqueueNotificationNeverTargetsSource(t *testing.T) {
	s := New()
	s.FreezePrompt("a", []string{"sys-a"})
	s.FreezePrompt("b", []string{"sys-b"})

	s.EnqueueNotification("a", map[string]any{"type": "x"})

	if pending := s.DrainNotifications("a"); len(pending) != 0 {
		t.Errorf("session a must never receive its own notification, got %v", pending)
	}
	pending := s.DrainNotifications("b")
	if len(pending) != 1 {
		t.Fatalf("session b expected 1 pending notification, got %d", len(pending))
	}
}

func TestDrainNotificationsIsAtMostOnce(t *testing.T) {
	s := New()
	s.FreezePrompt("a", []string{"sys-a"})
	s.FreezePrompt("b", []string{"sys-b"})
	s.EnqueueNotification("a", map[string]any{"type": "x"})

	first := s.DrainNotifications("b")
	if len(first) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(first))
	}
	second := s.DrainNotifications("b")
	if len(second) != 0 {
		t.Errorf("expected no notifications on re-drain, got %d", len(second))
	}
}

func TestMessagesFifoOrdering(t *testing.T) {
	s := New()
	s.PushMessages(History{{Role: "user", Agent: "evolve", Parts: []any{"1"}}})
	s.PushMessages(History{{Role: "user", Agent: "evolve", Parts: []any{"2"}}})

	first, ok := s.PopMessages()
	if !ok || first[0].Parts[0] != "1" {
		t.Errorf("first pop = %v, want entry 1", first)
	}
	second, ok := s.PopMessages()
	if !ok || second[0].Parts[0] != "2" {
		t.Errorf("second pop = %v, want entry 2", second)
	}
	if _, ok := s.PopMessages(); ok {
		t.Error("expected empty FIFO")
	}
}

func TestInjectionFifoOrdering(t *testing.T) {
	s := New()
	s.PushInjection(PartList{{"type": "text", "text": "one"}})
	s.PushInjection(PartList{{"type": "text", "text": "two"}})

	first, ok := s.PopInjection()
	if !ok || first[0]["text"] != "one" {
		t.Errorf("first pop = %v, want 'one'", first)
	}
	second, ok := s.PopInjection()
	if !ok || second[0]["text"] != "two" {
		t.Errorf("second pop = %v, want 'two'", second)
	}
}

func TestSessionHistoryCache(t *testing.T) {
	s := New()
	if _, ok := s.SessionHistory("unknown"); ok {
		t.Error("expected no cached history for unknown session")
	}

	h := History{{Role: "assistant", Agent: "evolve", Parts: []any{"hi"}}}
	s.SetSessionHistory("s1", h)
	got, ok := s.SessionHistory("s1")
	if !ok {
		t.Fatal("expected cached history")
	}
	if gh, ok := got.(History); !ok || len(gh) != 1 {
		t.Errorf("SessionHistory = %v", got)
	}

	// Overwrite semantics: a second set replaces, not appends.
	s.SetSessionHistory("s1", History{})
	got2, _ := s.SessionHistory("s1")
	if gh, ok := got2.(History); !ok || len(gh) != 0 {
		t.Errorf("expected overwrite to empty history, got %v", got2)
	}
}
