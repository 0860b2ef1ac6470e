package workdistributor

// scheduleClaimTimeoutLocked arms a one-shot timer that releases the task
// back to available if it is still claimed (not yet started) when it
// fires. Must be called with mu held.
func (d *Distributor) scheduleClaimTimeoutLocked(taskID string) {
	d.claimTimers[taskID] = d.cfg.Clock.AfterFunc(d.cfg.ClaimTimeout, func() { d.onClaimTimeout(taskID) })
}

// cancelClaimTimerLocked must be called with mu held.
func (d *Distributor) cancelClaimTimerLocked(taskID string) {
	if t, ok := d.claimTimers[taskID]; ok {
		t.Stop()
		delete(d.claimTimers, taskID)
	}
}

func (d *Distributor) onClaimTimeout(taskID string) {
	d.mu.Lock()
	task, ok := d.tasks[taskID]
	if !ok || task.Status != StatusClaimed {
		delete(d.claimTimers, taskID)
		d.mu.Unlock()
		return
	}
	agentID := task.ClaimedBy
	task.Status = StatusAvailable
	task.ClaimedBy = ""
	task.UpdatedAt = d.cfg.Clock.Now()
	delete(d.claimTimers, taskID)
	clone := task.Clone()
	d.mu.Unlock()

	if agentID != "" && d.cfg.Registry != nil {
		_ = d.cfg.Registry.UpdateCurrentTask(agentID, "")
	}
	d.cfg.Events.ClaimTimeout(clone)
	d.publishStatus(clone, map[string]any{"agentId": agentID})
}

// scheduleProgressTimeoutLocked arms a one-shot advisory timer; its firing
// never mutates task state, only emits an event. Must be called with mu
// held.
func (d *Distributor) scheduleProgressTimeoutLocked(taskID string) {
	d.progressTimers[taskID] = d.cfg.Clock.AfterFunc(d.cfg.ProgressTimeout, func() { d.onProgressTimeout(taskID) })
}

// cancelProgressTimerLocked must be called with mu held.
func (d *Distributor) cancelProgressTimerLocked(taskID string) {
	if t, ok := d.progressTimers[taskID]; ok {
		t.Stop()
		delete(d.progressTimers, taskID)
	}
}

func (d *Distributor) onProgressTimeout(taskID string) {
	d.mu.Lock()
	task, ok := d.tasks[taskID]
	delete(d.progressTimers, taskID)
	if !ok || task.Status != StatusInProgress {
		d.mu.Unlock()
		return
	}
	clone := task.Clone()
	d.mu.Unlock()

	d.cfg.Events.ProgressTimeout(clone)
}

// Shutdown cancels every outstanding claim and progress timer. Task records
// themselves are left intact; this only releases background timers so the
// distributor can be discarded without leaking them.
func (d *Distributor) Shutdown() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, t := range d.claimTimers {
		t.Stop()
		delete(d.claimTimers, id)
	}
	for id, t := range d.progressTimers {
		t.Stop()
		delete(d.progressTimers, id)
	}
}

// unblockDependentsLocked scans all tasks for blocked entries whose
// dependencies are now all completed and transitions them to available.
// Must be called with mu held.
func (d *Distributor) unblockDependentsLocked() []Task {
	var unblocked []Task
	for _, task := range d.tasks {
		if task.Status != StatusBlocked {
			continue
		}
		if d.allDependenciesCompletedLocked(task.Dependencies) {
			task.Status = StatusAvailable
			task.UpdatedAt = d.cfg.Clock.Now()
			unblocked = append(unblocked, task.Clone())
		}
	}
	return unblocked
}
