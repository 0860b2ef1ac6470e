package registry

import (
	"sync"
	"time"

	acrerrors "acr/internal/errors"
	"acr/internal/shared/clock"
	"acr/internal/shared/logging"
)

// Config tunes the registry's liveness behavior. Zero values are replaced
// with defaults by New.
type Config struct {
	HeartbeatInterval    time.Duration // default 30s
	MissedThreshold      int           // default 3
	CrashedRetention     time.Duration // default 1h
	Clock                clock.Clock
	Logger               logging.Logger
	Events               Events
	PendingMessages      func(agentID string) int
	PendingTasks         func(agentID string) int
}

func (c *Config) applyDefaults() {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.MissedThreshold <= 0 {
		c.MissedThreshold = 3
	}
	if c.CrashedRetention <= 0 {
		c.CrashedRetention = time.Hour
	}
	if c.Clock == nil {
		c.Clock = clock.Default
	}
	c.Logger = logging.OrNop(c.Logger)
	if c.Events == nil {
		c.Events = NopEvents()
	}
	if c.PendingMessages == nil {
		c.PendingMessages = func(string) int { return 0 }
	}
	if c.PendingTasks == nil {
		c.PendingTasks = func(string) int { return 0 }
	}
}

type monitorState struct {
	timer         clock.Timer
	lastHeartbeat time.Time
	missed        int
}

// Registry tracks agents, their heartbeats, hierarchy, and capabilities.
// All mutation methods serialize against each other via mu, matching the
// single-writer-per-object model the runtime requires.
type Registry struct {
	cfg Config

	mu       sync.RWMutex
	agents   map[string]*Agent
	monitors map[string]*monitorState
	gcTimers map[string]clock.Timer
}

// New constructs a Registry. A zero Config is valid and uses built-in defaults.
func New(cfg Config) *Registry {
	cfg.applyDefaults()
	return &Registry{
		cfg:      cfg,
		agents:   make(map[string]*Agent),
		monitors: make(map[string]*monitorState),
		gcTimers: make(map[string]clock.Timer),
	}
}

// Register adds a new agent. Re-registering an id currently in a
// non-offline/non-crashed state fails with KindAlreadyRegistered;
// re-registering an offline or crashed id reuses the slot.
func (r *Registry) Register(id string, role Role, capabilities []Capability, parentID, surface, session string, metadata map[string]string) (Agent, error) {
	r.mu.Lock()
	if existing, ok := r.agents[id]; ok && !existing.Status.IsTerminal() {
		r.mu.Unlock()
		return Agent{}, acrerrors.Newf(acrerrors.KindAlreadyRegistered, "agent %q already registered", id).
			WithDetail(existing.Clone())
	}

	now := r.cfg.Clock.Now()
	agent := &Agent{
		ID:            id,
		Role:          role,
		Capabilities:  append([]Capability(nil), capabilities...),
		Status:        StatusInitializing,
		ParentID:      parentID,
		Surface:       surface,
		Session:       session,
		RegisteredAt:  now,
		LastHeartbeat: now,
		LastActivity:  now,
		Metadata:      cloneMeta(metadata),
	}
	r.agents[id] = agent
	if parentID != "" {
		if parent, ok := r.agents[parentID]; ok {
			parent.ChildIDs = append(parent.ChildIDs, id)
		}
	}
	r.stopGC(id)
	r.startMonitor(id, now)
	clone := agent.Clone()
	r.mu.Unlock()

	r.cfg.Events.AgentRegistered(clone)
	return clone, nil
}

// Unregister removes an agent after transitioning it through shuttingDown,
// detaching it from its parent, and orphaning its children.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	agent, ok := r.agents[id]
	if !ok {
		r.mu.Unlock()
		return false
	}

	old := agent.Status
	agent.Status = StatusShuttingDown
	if agent.ParentID != "" {
		if parent, ok := r.agents[agent.ParentID]; ok {
			parent.ChildIDs = removeString(parent.ChildIDs, id)
		}
	}
	for _, childID := range agent.ChildIDs {
		if child, ok := r.agents[childID]; ok {
			child.ParentID = ""
		}
	}
	r.stopMonitor(id)
	delete(r.agents, id)
	r.mu.Unlock()

	if old != StatusShuttingDown {
		r.cfg.Events.AgentStatusChanged(id, old, StatusShuttingDown)
	}
	r.cfg.Events.AgentUnregistered(id)
	return true
}

// Heartbeat records a liveness signal. An unknown id returns an empty,
// unaccepted result so the caller knows to re-register. A heartbeat for an
// offline agent is accepted but only revives the agent to active/idle/busy
// when the caller also supplies a new status; silent revival is not
// supported. Monitoring stops when an agent goes offline, so a revived agent
// gets a fresh heartbeat monitor with its missed-beat counter at zero.
func (r *Registry) Heartbeat(id string, status *Status, currentTaskID *string) HeartbeatResult {
	r.mu.Lock()
	agent, ok := r.agents[id]
	if !ok {
		r.mu.Unlock()
		return HeartbeatResult{}
	}

	now := r.cfg.Clock.Now()
	agent.LastHeartbeat = now
	agent.LastActivity = now
	if mon, ok := r.monitors[id]; ok {
		mon.lastHeartbeat = now
		mon.missed = 0
	}

	var statusChanged bool
	var oldStatus, newStatus Status
	if status != nil && *status != agent.Status {
		oldStatus, newStatus = agent.Status, *status
		agent.Status = *status
		statusChanged = true
	}
	if _, ok := r.monitors[id]; !ok && !agent.Status.IsTerminal() {
		r.startMonitor(id, now)
	}

	if currentTaskID != nil {
		r.applyCurrentTask(agent, *currentTaskID)
	}

	result := HeartbeatResult{
		Accepted:        true,
		NextHeartbeatMs: r.cfg.HeartbeatInterval.Milliseconds(),
		ServerTime:      now,
	}
	r.mu.Unlock()

	if statusChanged {
		r.emitStatusTransition(id, oldStatus, newStatus)
	}
	result.PendingMessages = r.cfg.PendingMessages(id)
	result.PendingTasks = r.cfg.PendingTasks(id)
	return result
}

// UpdateStatus atomically mutates an agent's status and emits the
// corresponding events.
func (r *Registry) UpdateStatus(id string, status Status) error {
	r.mu.Lock()
	agent, ok := r.agents[id]
	if !ok {
		r.mu.Unlock()
		return acrerrors.Newf(acrerrors.KindNotFound, "agent %q not found", id)
	}
	old := agent.Status
	if old == status {
		r.mu.Unlock()
		return nil
	}
	agent.Status = status
	agent.LastActivity = r.cfg.Clock.Now()
	r.mu.Unlock()

	r.emitStatusTransition(id, old, status)
	return nil
}

// emitStatusTransition fires the status-change event for every transition
// and, when the new status is crashed, also fires the crash event and
// arms the crash-retention GC timer. Both heartbeat-driven and explicit
// status changes funnel through here so a heartbeat carrying a crashed
// status is garbage-collected the same as an explicit UpdateStatus call.
// Must be called without mu held.
func (r *Registry) emitStatusTransition(id string, old, new Status) {
	r.cfg.Events.AgentStatusChanged(id, old, new)
	if new == StatusCrashed {
		r.cfg.Events.AgentCrashed(id)
		r.scheduleCrashGC(id)
	}
}

// UpdateCurrentTask couples current-task and status: a non-null taskID
// forces status to busy; clearing taskID transitions busy back to idle.
func (r *Registry) UpdateCurrentTask(id string, taskID string) error {
	r.mu.Lock()
	agent, ok := r.agents[id]
	if !ok {
		r.mu.Unlock()
		return acrerrors.Newf(acrerrors.KindNotFound, "agent %q not found", id)
	}
	old := agent.Status
	r.applyCurrentTask(agent, taskID)
	agent.LastActivity = r.cfg.Clock.Now()
	changed := old != agent.Status
	newStatus := agent.Status
	r.mu.Unlock()

	if changed {
		r.cfg.Events.AgentStatusChanged(id, old, newStatus)
	}
	return nil
}

// applyCurrentTask must be called with mu held.
func (r *Registry) applyCurrentTask(agent *Agent, taskID string) {
	agent.CurrentTaskID = taskID
	if taskID != "" {
		agent.Status = StatusBusy
	} else if agent.Status == StatusBusy {
		agent.Status = StatusIdle
	}
}

// Get returns a copy of the agent record, if present.
func (r *Registry) Get(id string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agent, ok := r.agents[id]
	if !ok {
		return Agent{}, false
	}
	return agent.Clone(), true
}

func cloneMeta(meta map[string]string) map[string]string {
	if meta == nil {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}

func removeString(items []string, target string) []string {
	out := items[:0]
	for _, v := range items {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}
