package workdistributor

import (
	"sync"
	"time"

	acrerrors "acr/internal/errors"
	"acr/internal/registry"
	"acr/internal/shared/clock"
	"acr/internal/shared/ids"
	"acr/internal/shared/logging"
)

// Config tunes distributor behavior. Zero values fall back to spec
// defaults.
type Config struct {
	Registry        *registry.Registry
	ClaimTimeout    time.Duration // default 5min
	ProgressTimeout time.Duration // default 2x ClaimTimeout
	MaxRetries      int           // default 3
	Clock           clock.Clock
	Logger          logging.Logger
	Events          Events
	// Publish forwards a task.status topic notification to a wired message
	// bus. Nil means no bus is wired.
	Publish func(topic, subject string, body any)
}

func (c *Config) applyDefaults() {
	if c.ClaimTimeout <= 0 {
		c.ClaimTimeout = 5 * time.Minute
	}
	if c.ProgressTimeout <= 0 {
		c.ProgressTimeout = 2 * c.ClaimTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.Clock == nil {
		c.Clock = clock.Default
	}
	c.Logger = logging.OrNop(c.Logger)
	if c.Events == nil {
		c.Events = NopEvents()
	}
	if c.Publish == nil {
		c.Publish = func(string, string, any) {}
	}
}

// Distributor owns Task records exclusively.
type Distributor struct {
	cfg Config

	mu             sync.Mutex
	tasks          map[string]*Task
	claimTimers    map[string]clock.Timer
	progressTimers map[string]clock.Timer
}

// New constructs a Distributor. A zero Config.Registry means eligibility
// checks accept any agentId (useful for tests exercising claim semantics in
// isolation).
func New(cfg Config) *Distributor {
	cfg.applyDefaults()
	return &Distributor{
		cfg:            cfg,
		tasks:          make(map[string]*Task),
		claimTimers:    make(map[string]clock.Timer),
		progressTimers: make(map[string]clock.Timer),
	}
}

// CreateTask validates dependencies exist, computes the initial status, and
// registers the task.
func (d *Distributor) CreateTask(title, description string, opts CreateOptions) (Task, error) {
	d.mu.Lock()
	for _, depID := range opts.Dependencies {
		if _, ok := d.tasks[depID]; !ok {
			d.mu.Unlock()
			return Task{}, acrerrors.Newf(acrerrors.KindInvalid, "dependency %q does not exist", depID)
		}
	}

	now := d.cfg.Clock.Now()
	status := StatusAvailable
	if !d.allDependenciesCompletedLocked(opts.Dependencies) {
		status = StatusBlocked
	}

	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = d.cfg.MaxRetries
	}

	task := &Task{
		ID:                   ids.New("task"),
		Title:                title,
		Description:          description,
		Status:               status,
		Priority:             opts.Priority,
		RequiredRole:         opts.RequiredRole,
		RequiredCapabilities: append([]string(nil), opts.RequiredCapabilities...),
		Dependencies:         append([]string(nil), opts.Dependencies...),
		CreatedAt:            now,
		UpdatedAt:            now,
		EstimatedMinutes:     opts.EstimatedMinutes,
		Metadata:             cloneMeta(opts.Metadata),
		ParentTaskID:         opts.ParentTaskID,
		MaxRetries:           maxRetries,
	}
	d.tasks[task.ID] = task
	if opts.ParentTaskID != "" {
		if parent, ok := d.tasks[opts.ParentTaskID]; ok {
			parent.SubtaskIDs = append(parent.SubtaskIDs, task.ID)
		}
	}
	clone := task.Clone()
	d.mu.Unlock()

	d.cfg.Events.TaskCreated(clone)
	d.publishStatus(clone, nil)
	return clone, nil
}

// allDependenciesCompletedLocked must be called with mu held.
func (d *Distributor) allDependenciesCompletedLocked(deps []string) bool {
	for _, depID := range deps {
		dep, ok := d.tasks[depID]
		if !ok || dep.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// ClaimTask runs the optimistic-locking claim protocol (spec 4.3 steps 1-6).
func (d *Distributor) ClaimTask(taskID, agentID string, expectedVersion *uint64) ClaimResult {
	d.mu.Lock()
	task, ok := d.tasks[taskID]
	if !ok {
		d.mu.Unlock()
		return ClaimResult{Success: false, Reason: "not_found"}
	}

	if task.Status != StatusAvailable {
		conflict := &ClaimConflict{ClaimedBy: task.ClaimedBy, ClaimedAt: task.ClaimedAt, ClaimVersion: task.ClaimVersion}
		reason := "already_claimed"
		if task.Status == StatusBlocked {
			reason = "dependencies_pending"
		}
		d.mu.Unlock()
		return ClaimResult{Success: false, Reason: reason, Conflict: conflict}
	}

	if !d.allDependenciesCompletedLocked(task.Dependencies) {
		d.mu.Unlock()
		return ClaimResult{Success: false, Reason: "dependencies_pending"}
	}

	if expectedVersion != nil && *expectedVersion != task.ClaimVersion {
		d.mu.Unlock()
		return ClaimResult{Success: false, Reason: "version_mismatch", Conflict: &ClaimConflict{ClaimVersion: task.ClaimVersion}}
	}

	if err := d.checkEligibility(agentID, task); err != nil {
		d.mu.Unlock()
		return ClaimResult{Success: false, Reason: "ineligible"}
	}

	now := d.cfg.Clock.Now()
	task.Status = StatusClaimed
	task.ClaimedBy = agentID
	task.ClaimedAt = now
	task.ClaimVersion++
	task.UpdatedAt = now
	d.scheduleClaimTimeoutLocked(taskID)
	clone := task.Clone()
	d.mu.Unlock()

	if d.cfg.Registry != nil {
		_ = d.cfg.Registry.UpdateCurrentTask(agentID, taskID)
	}
	d.cfg.Events.TaskClaimed(clone)
	d.publishStatus(clone, map[string]any{"agentId": agentID})
	return ClaimResult{Success: true, Task: &clone}
}

func (d *Distributor) checkEligibility(agentID string, task *Task) error {
	if d.cfg.Registry == nil {
		return nil
	}
	agent, ok := d.cfg.Registry.Get(agentID)
	if !ok {
		return acrerrors.Newf(acrerrors.KindIneligible, "agent %q not found", agentID)
	}
	if agent.Status != registry.StatusActive && agent.Status != registry.StatusIdle {
		return acrerrors.Newf(acrerrors.KindIneligible, "agent %q is not active or idle", agentID)
	}
	if task.RequiredRole != "" && agent.Role != task.RequiredRole {
		return acrerrors.Newf(acrerrors.KindIneligible, "agent %q lacks required role %q", agentID, task.RequiredRole)
	}
	names := agent.CapabilityNames()
	for _, required := range task.RequiredCapabilities {
		if _, ok := names[required]; !ok {
			return acrerrors.Newf(acrerrors.KindIneligible, "agent %q lacks required capability %q", agentID, required)
		}
	}
	return nil
}

// StartTask transitions claimed -> inProgress for the current claimant
// only, canceling the claim timer and installing a progress timer.
func (d *Distributor) StartTask(taskID, agentID string) error {
	d.mu.Lock()
	task, ok := d.tasks[taskID]
	if !ok {
		d.mu.Unlock()
		return acrerrors.Newf(acrerrors.KindNotFound, "task %q not found", taskID)
	}
	if task.Status != StatusClaimed || task.ClaimedBy != agentID {
		d.mu.Unlock()
		return acrerrors.Newf(acrerrors.KindIneligible, "task %q is not claimed by %q", taskID, agentID)
	}
	task.Status = StatusInProgress
	task.StartedAt = d.cfg.Clock.Now()
	task.UpdatedAt = task.StartedAt
	d.cancelClaimTimerLocked(taskID)
	d.scheduleProgressTimeoutLocked(taskID)
	clone := task.Clone()
	d.mu.Unlock()

	d.cfg.Events.TaskStarted(clone)
	d.publishStatus(clone, map[string]any{"agentId": agentID})
	return nil
}

// CompleteTask finalizes a task, unblocks dependents, and clears the
// agent's current-task link.
func (d *Distributor) CompleteTask(taskID, agentID string, result any) error {
	d.mu.Lock()
	task, ok := d.tasks[taskID]
	if !ok {
		d.mu.Unlock()
		return acrerrors.Newf(acrerrors.KindNotFound, "task %q not found", taskID)
	}
	if task.ClaimedBy != agentID {
		d.mu.Unlock()
		return acrerrors.Newf(acrerrors.KindIneligible, "task %q is not claimed by %q", taskID, agentID)
	}
	now := d.cfg.Clock.Now()
	task.Status = StatusCompleted
	task.Result = result
	task.CompletedAt = now
	task.UpdatedAt = now
	if !task.StartedAt.IsZero() {
		task.ActualMinutes = int(now.Sub(task.StartedAt).Minutes())
	}
	d.cancelClaimTimerLocked(taskID)
	d.cancelProgressTimerLocked(taskID)
	clone := task.Clone()
	unblocked := d.unblockDependentsLocked()
	d.mu.Unlock()

	if d.cfg.Registry != nil {
		_ = d.cfg.Registry.UpdateCurrentTask(agentID, "")
	}
	d.cfg.Events.TaskCompleted(clone)
	d.publishStatus(clone, map[string]any{"agentId": agentID})
	for _, u := range unblocked {
		d.cfg.Events.TaskUnblocked(u)
		d.publishStatus(u, nil)
	}
	return nil
}

// FailTask increments retryCount; below maxRetries it releases the task
// back to available (retaining claimVersion), otherwise it fails terminally.
func (d *Distributor) FailTask(taskID, agentID string, taskErr error) error {
	d.mu.Lock()
	task, ok := d.tasks[taskID]
	if !ok {
		d.mu.Unlock()
		return acrerrors.Newf(acrerrors.KindNotFound, "task %q not found", taskID)
	}
	if task.ClaimedBy != agentID {
		d.mu.Unlock()
		return acrerrors.Newf(acrerrors.KindIneligible, "task %q is not claimed by %q", taskID, agentID)
	}
	task.RetryCount++
	if taskErr != nil {
		task.Error = taskErr.Error()
	}
	task.UpdatedAt = d.cfg.Clock.Now()
	d.cancelClaimTimerLocked(taskID)
	d.cancelProgressTimerLocked(taskID)

	retrying := task.RetryCount < task.MaxRetries
	if retrying {
		task.Status = StatusAvailable
		task.ClaimedBy = ""
		task.ClaimedAt = time.Time{}
	} else {
		task.Status = StatusFailed
	}
	clone := task.Clone()
	d.mu.Unlock()

	if d.cfg.Registry != nil {
		_ = d.cfg.Registry.UpdateCurrentTask(agentID, "")
	}
	if retrying {
		d.cfg.Events.TaskRetrying(clone)
	} else {
		d.cfg.Events.TaskFailed(clone)
	}
	d.publishStatus(clone, map[string]any{"agentId": agentID, "error": clone.Error})
	return nil
}

// ReleaseTask clears a claim without penalty, e.g. on graceful agent exit.
func (d *Distributor) ReleaseTask(taskID, agentID string) error {
	d.mu.Lock()
	task, ok := d.tasks[taskID]
	if !ok {
		d.mu.Unlock()
		return acrerrors.Newf(acrerrors.KindNotFound, "task %q not found", taskID)
	}
	if task.ClaimedBy != agentID {
		d.mu.Unlock()
		return acrerrors.Newf(acrerrors.KindIneligible, "task %q is not claimed by %q", taskID, agentID)
	}
	task.Status = StatusAvailable
	task.ClaimedBy = ""
	task.ClaimedAt = time.Time{}
	task.UpdatedAt = d.cfg.Clock.Now()
	d.cancelClaimTimerLocked(taskID)
	d.cancelProgressTimerLocked(taskID)
	clone := task.Clone()
	d.mu.Unlock()

	if d.cfg.Registry != nil {
		_ = d.cfg.Registry.UpdateCurrentTask(agentID, "")
	}
	d.cfg.Events.TaskReleased(clone)
	d.publishStatus(clone, map[string]any{"agentId": agentID})
	return nil
}

// CancelTask is idempotent except that a completed task cannot be
// cancelled (returns false).
func (d *Distributor) CancelTask(taskID string) bool {
	d.mu.Lock()
	task, ok := d.tasks[taskID]
	if !ok {
		d.mu.Unlock()
		return false
	}
	if task.Status == StatusCompleted {
		d.mu.Unlock()
		return false
	}
	if task.Status == StatusCancelled {
		d.mu.Unlock()
		return true
	}
	claimedBy := task.ClaimedBy
	task.Status = StatusCancelled
	task.UpdatedAt = d.cfg.Clock.Now()
	d.cancelClaimTimerLocked(taskID)
	d.cancelProgressTimerLocked(taskID)
	clone := task.Clone()
	d.mu.Unlock()

	if claimedBy != "" && d.cfg.Registry != nil {
		_ = d.cfg.Registry.UpdateCurrentTask(claimedBy, "")
	}
	d.cfg.Events.TaskCancelled(clone)
	d.publishStatus(clone, nil)
	return true
}

// Get returns a copy of the task record, if present.
func (d *Distributor) Get(taskID string) (Task, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	task, ok := d.tasks[taskID]
	if !ok {
		return Task{}, false
	}
	return task.Clone(), true
}

func (d *Distributor) publishStatus(task Task, extra map[string]any) {
	d.cfg.Publish("task.status", string(task.Status), map[string]any{
		"taskId":    task.ID,
		"status":    task.Status,
		"timestamp": d.cfg.Clock.Now(),
		"extra":     extra,
	})
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
