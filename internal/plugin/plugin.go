// Package plugin binds the host's lifecycle callbacks to the hook caller,
// session state store, tool registry, action executor, and workspace
// snapshotter, preserving the cross-callback ordering contract the core
// depends on.
package plugin

import (
	"log/slog"
	"sync"
	"time"

	"github.com/selfmod/evolve-plugin/internal/actions"
	"github.com/selfmod/evolve-plugin/internal/config"
	"github.com/selfmod/evolve-plugin/internal/heartbeat"
	"github.com/selfmod/evolve-plugin/internal/host"
	"github.com/selfmod/evolve-plugin/internal/hookproc"
	"github.com/selfmod/evolve-plugin/internal/metrics"
	"github.com/selfmod/evolve-plugin/internal/sandbox"
	"github.com/selfmod/evolve-plugin/internal/session"
	"github.com/selfmod/evolve-plugin/internal/toolregistry"
	"github.com/selfmod/evolve-plugin/internal/workspace"
)

// AgentMarker is the sentinel substring in the inbound system array that
// signals the plugin to take ownership of a prompt cycle.
const AgentMarker = "<~ PERSONA AGENT MARKER ~>"

// Plugin holds every component wired together and implements the host
// callback glue.
type Plugin struct {
	cfg           config.Config
	workspaceRoot string

	h         host.Host
	store     *session.Store
	ipc       *hookproc.IPC
	caller    *hookproc.Caller
	registry  *toolregistry.Registry
	execute   *actions.Executor
	snap      *workspace.Snapshotter
	heartbeat *heartbeat.Scheduler
	watcher   *hookproc.Watcher
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mu           sync.Mutex
	lastModel    host.Model
	haveModel    bool
	sessionAgent map[string]string
}

// New wires every component for a single plugin process rooted at
// workspaceRoot, using cfg's resolved options.
func New(cfg config.Config, workspaceRoot string, h host.Host, reg *metrics.Metrics, logger *slog.Logger) *Plugin {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "plugin")

	store := session.New()
	ipc := hookproc.NewIPC(workspaceRoot, cfg.Hook, millis(cfg.HookTimeoutMs), logger)
	caller := hookproc.NewCaller(ipc, store, logger).WithMetrics(reg)
	snap := workspace.New(workspaceRoot, logger)
	validator := sandbox.New(workspaceRoot, cfg.Hook, cfg.TestScript, millis(cfg.HookTimeoutMs), logger).WithMetrics(reg)
	registry := toolregistry.New(workspaceRoot, cfg.Hook, caller, store, snap, validator, logger)
	execute := actions.New(h, logger)

	p := &Plugin{
		cfg:           cfg,
		workspaceRoot: workspaceRoot,
		h:             h,
		store:         store,
		ipc:           ipc,
		caller:        caller,
		registry:      registry,
		execute:       execute,
		snap:          snap,
		metrics:       reg,
		logger:        logger,
		sessionAgent:  map[string]string{},
	}

	if model, ok := loadRuntimeState(workspaceRoot); ok {
		p.lastModel = model
		p.haveModel = true
	}

	p.heartbeat = heartbeat.New(millis(cfg.HeartbeatMs), caller, h, store, execute, cfg.HeartbeatTitle, cfg.HeartbeatAgent, p, logger).WithMetrics(reg)

	if cfg.WatchHookFile {
		if w, err := hookproc.WatchHookFile(ipc, logger); err != nil {
			logger.Debug("hook file watcher disabled", "error", err)
		} else {
			p.watcher = w
		}
	}

	return p
}

// Close releases background resources (the hook file watcher and the
// heartbeat scheduler, if running).
func (p *Plugin) Close() error {
	p.heartbeat.Stop()
	if p.watcher != nil {
		return p.watcher.Close()
	}
	return nil
}

// Caller exposes the underlying hook caller (the same one the heartbeat
// scheduler and tool registry were built with).
func (p *Plugin) Caller() *hookproc.Caller { return p.caller }

// Store exposes the session state store.
func (p *Plugin) Store() *session.Store { return p.store }

// Registry exposes the tool registry.
func (p *Plugin) Registry() *toolregistry.Registry { return p.registry }

// Executor exposes the action executor.
func (p *Plugin) Executor() *actions.Executor { return p.execute }

// Snapshotter exposes the workspace snapshotter.
func (p *Plugin) Snapshotter() *workspace.Snapshotter { return p.snap }

// Heartbeat exposes the heartbeat scheduler; the embedding host process
// calls Start on it once, alongside RegisterCallbacks.
func (p *Plugin) Heartbeat() *heartbeat.Scheduler { return p.heartbeat }

// LastModel implements heartbeat.ModelProvider.
func (p *Plugin) LastModel() (host.Model, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastModel, p.haveModel
}

// captureModel records model as the most recently observed LLM identity if
// it differs from what's cached, persisting the change.
func (p *Plugin) captureModel(model host.Model) {
	if model.ProviderID == "" && model.ModelID == "" {
		return
	}
	p.mu.Lock()
	changed := !p.haveModel || p.lastModel != model
	if changed {
		p.lastModel = model
		p.haveModel = true
	}
	p.mu.Unlock()

	if changed {
		if err := saveRuntimeState(p.workspaceRoot, model); err != nil {
			p.logger.Debug("persist runtime state failed", "error", err)
		}
	}
}

func (p *Plugin) agentFor(sessionID, fallback string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if agent, ok := p.sessionAgent[sessionID]; ok && agent != "" {
		return agent
	}
	return fallback
}

func (p *Plugin) rememberAgent(sessionID, agent string) {
	if agent == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessionAgent[sessionID] = agent
}

// RegisterCallbacks wires every host lifecycle callback to this plugin.
func (p *Plugin) RegisterCallbacks(h host.Host) {
	h.OnMessagesTransform(p.MessagesTransform)
	h.OnSystemTransform(p.SystemTransform)
	h.OnChatMessage(p.OnChatMessage)
	h.OnToolBefore(p.OnToolBefore)
	h.OnToolAfter(p.OnToolAfter)
	h.OnSessionCompacting(p.OnSessionCompacting)
}

func millis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
