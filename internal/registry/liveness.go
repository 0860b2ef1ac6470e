package registry

import "time"

// startMonitor begins a self-rescheduling heartbeat monitor for id. Must be
// called with mu held.
func (r *Registry) startMonitor(id string, now time.Time) {
	state := &monitorState{lastHeartbeat: now}
	r.monitors[id] = state
	state.timer = r.cfg.Clock.AfterFunc(r.cfg.HeartbeatInterval, func() { r.tick(id) })
}

// stopMonitor cancels and removes the monitor for id. Must be called with
// mu held.
func (r *Registry) stopMonitor(id string) {
	if state, ok := r.monitors[id]; ok {
		state.timer.Stop()
		delete(r.monitors, id)
	}
}

// tick runs on the registry's monitor goroutine for a single agent, once per
// heartbeat interval. It is self-rescheduling: every firing reschedules the
// next one until the agent becomes terminal or is unregistered.
func (r *Registry) tick(id string) {
	r.mu.Lock()
	agent, ok := r.agents[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	state, ok := r.monitors[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	if agent.Status.IsTerminal() {
		delete(r.monitors, id)
		r.mu.Unlock()
		return
	}

	if agent.LastHeartbeat.After(state.lastHeartbeat) {
		state.lastHeartbeat = agent.LastHeartbeat
		state.missed = 0
		state.timer = r.cfg.Clock.AfterFunc(r.cfg.HeartbeatInterval, func() { r.tick(id) })
		r.mu.Unlock()
		return
	}

	state.missed++
	missed := state.missed
	var transitioned bool
	var old Status
	if state.missed >= r.cfg.MissedThreshold {
		old = agent.Status
		agent.Status = StatusOffline
		transitioned = true
		delete(r.monitors, id)
	} else {
		state.timer = r.cfg.Clock.AfterFunc(r.cfg.HeartbeatInterval, func() { r.tick(id) })
	}
	r.mu.Unlock()

	r.cfg.Events.HeartbeatMissed(id, missed)
	if transitioned {
		r.cfg.Events.AgentStatusChanged(id, old, StatusOffline)
	}
}

// scheduleCrashGC arranges for a crashed agent's record to be removed after
// the configured retention window, provided it is still crashed at fire
// time. Must be called without mu held.
func (r *Registry) scheduleCrashGC(id string) {
	r.mu.Lock()
	if t, ok := r.gcTimers[id]; ok {
		t.Stop()
	}
	r.gcTimers[id] = r.cfg.Clock.AfterFunc(r.cfg.CrashedRetention, func() { r.collectCrashed(id) })
	r.mu.Unlock()
}

// stopGC cancels a pending crash-retention GC timer, if any. Must be called
// with mu held.
func (r *Registry) stopGC(id string) {
	if t, ok := r.gcTimers[id]; ok {
		t.Stop()
		delete(r.gcTimers, id)
	}
}

// Shutdown stops every outstanding heartbeat monitor and crash-retention GC
// timer. Agent records themselves are left intact; this only releases the
// background timers so the registry can be discarded without leaking them.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, state := range r.monitors {
		state.timer.Stop()
		delete(r.monitors, id)
	}
	for id, t := range r.gcTimers {
		t.Stop()
		delete(r.gcTimers, id)
	}
}

func (r *Registry) collectCrashed(id string) {
	r.mu.Lock()
	agent, ok := r.agents[id]
	if !ok || agent.Status != StatusCrashed {
		delete(r.gcTimers, id)
		r.mu.Unlock()
		return
	}
	delete(r.agents, id)
	delete(r.gcTimers, id)
	r.mu.Unlock()

	r.cfg.Events.AgentUnregistered(id)
}
