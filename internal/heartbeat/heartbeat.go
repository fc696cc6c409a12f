// Package heartbeat implements the single repeating timer that ticks a
// long-lived background session, skipping overlapping ticks rather than
// queueing or cancel-and-restarting them.
package heartbeat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/selfmod/evolve-plugin/internal/actions"
	"github.com/selfmod/evolve-plugin/internal/host"
	"github.com/selfmod/evolve-plugin/internal/hookproc"
	"github.com/selfmod/evolve-plugin/internal/metrics"
	"github.com/selfmod/evolve-plugin/internal/session"
)

// ModelProvider supplies the most recently observed LLM identity, captured
// from live chat turns. Heartbeats cannot run until one has been observed.
type ModelProvider interface {
	LastModel() (host.Model, bool)
}

// Scheduler ticks the heartbeat hook on a fixed period, coalescing
// overlapping ticks.
type Scheduler struct {
	interval       time.Duration
	caller         *hookproc.Caller
	h              host.Host
	store          *session.Store
	actionExec     *actions.Executor
	heartbeatTitle string
	heartbeatAgent string
	models         ModelProvider
	logger         *slog.Logger
	metrics        *metrics.Metrics

	mu                 sync.Mutex
	inProgress         bool
	heartbeatSessionID string

	ticks sync.WaitGroup
	stop  chan struct{}
	done  chan struct{}
}

// New returns a Scheduler. Call Start to begin ticking.
func New(interval time.Duration, caller *hookproc.Caller, h host.Host, store *session.Store, actionExec *actions.Executor, heartbeatTitle, heartbeatAgent string, models ModelProvider, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		interval:       interval,
		caller:         caller,
		h:              h,
		store:          store,
		actionExec:     actionExec,
		heartbeatTitle: heartbeatTitle,
		heartbeatAgent: heartbeatAgent,
		models:         models,
		logger:         logger.With("component", "heartbeat"),
	}
}

// WithMetrics attaches a metrics sink and returns the same Scheduler, for
// chaining onto New. A nil sink is a no-op.
func (s *Scheduler) WithMetrics(m *metrics.Metrics) *Scheduler {
	s.metrics = m
	return s
}

// Start begins the repeating timer on its own goroutine. Each tick is
// dispatched onto its own goroutine rather than run inline on the timer
// loop, so that a tick still running when the next one fires is the one
// the inProgress guard in Tick sees and skips — time.Ticker alone would
// otherwise just coalesce the missed fire with no record of it.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.stop != nil {
		s.mu.Unlock()
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.ticks.Add(1)
				go func() {
					defer s.ticks.Done()
					s.Tick(ctx)
				}()
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the timer and waits for the timer loop and any in-flight tick
// goroutines to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	stop := s.stop
	done := s.done
	s.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
	s.ticks.Wait()
}

// Tick runs one heartbeat tick synchronously, honoring the skip-on-overlap
// guard. Start's timer loop calls it on every fire; exported so tests can
// drive it directly.
func (s *Scheduler) Tick(ctx context.Context) {
	s.mu.Lock()
	if s.inProgress {
		s.mu.Unlock()
		s.logger.Debug("skipped")
		s.observe("skipped")
		return
	}
	s.inProgress = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inProgress = false
		s.mu.Unlock()
	}()

	s.run(ctx)
}

func (s *Scheduler) observe(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveHeartbeatTick(outcome)
	}
}

func (s *Scheduler) run(ctx context.Context) {
	sessionID, err := s.resolveHeartbeatSession(ctx)
	if err != nil {
		s.logger.Debug("resolve heartbeat session failed", "error", err)
		s.observe("aborted")
		return
	}

	model, ok := s.models.LastModel()
	if !ok {
		s.logger.Debug("aborting tick: no model observed yet")
		s.observe("aborted")
		return
	}

	s.observe("ran")

	out := s.caller.Call(ctx, "heartbeat", map[string]any{"sessions": []any{}}, sessionID)

	if text, ok := out["user"].(string); ok && text != "" {
		err := s.h.SessionPromptSync(ctx, host.PromptRequest{
			SessionID: sessionID,
			AgentID:   s.heartbeatAgent,
			Model:     model,
			Parts:     []host.Part{{"type": "text", "text": fmt.Sprintf("[heartbeat] %s", text)}},
			Synthetic: false,
		})
		if err != nil {
			s.logger.Debug("heartbeat prompt dispatch failed", "error", err)
		}
	}

	if notify, ok := out["notify"].([]any); ok {
		for _, n := range notify {
			s.store.EnqueueNotification(sessionID, n)
		}
	}

	if rawActions, ok := out["actions"].([]any); ok {
		s.actionExec.Execute(ctx, actions.ParseAll(rawActions))
	}
}

func (s *Scheduler) resolveHeartbeatSession(ctx context.Context) (string, error) {
	s.mu.Lock()
	cached := s.heartbeatSessionID
	s.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	sessions, err := s.h.SessionList(ctx)
	if err != nil {
		return "", fmt.Errorf("list sessions: %w", err)
	}
	for _, sess := range sessions {
		if sess.Title == s.heartbeatTitle {
			s.mu.Lock()
			s.heartbeatSessionID = sess.ID
			s.mu.Unlock()
			return sess.ID, nil
		}
	}

	created, err := s.h.SessionCreate(ctx, s.heartbeatTitle)
	if err != nil {
		return "", fmt.Errorf("create heartbeat session: %w", err)
	}
	s.mu.Lock()
	s.heartbeatSessionID = created.ID
	s.mu.Unlock()
	return created.ID, nil
}
