package progress

import (
	"sync"
	"time"

	"acr/internal/shared/clock"
	"acr/internal/shared/ids"
	"acr/internal/shared/logging"
)

// Config tunes tracker behavior. Zero values fall back to spec defaults.
type Config struct {
	MaxHistoryPerTask int // default 1000
	Clock             clock.Clock
	Logger            logging.Logger
	Events            Events
	// Publish forwards a progress-topic notification to a wired message
	// bus. Nil means no bus is wired.
	Publish func(topic, subject string, body any)
}

func (c *Config) applyDefaults() {
	if c.MaxHistoryPerTask <= 0 {
		c.MaxHistoryPerTask = 1000
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

// Tracker owns progress history, latest-progress projections, milestones,
// and agent statistics.
type Tracker struct {
	cfg Config

	mu              sync.Mutex
	history         map[string][]Entry // taskId -> bounded append-only history
	latestProgress  map[string]float64 // taskId -> latest percentage
	milestones      map[string]*Milestone
	milestonesByTask map[string][]string // taskId -> milestone ids requiring it
	agentStats      map[string]*AgentStats
}

// New constructs a Tracker. A zero Config is valid and uses spec defaults.
func New(cfg Config) *Tracker {
	cfg.applyDefaults()
	return &Tracker{
		cfg:              cfg,
		history:          make(map[string][]Entry),
		latestProgress:   make(map[string]float64),
		milestones:       make(map[string]*Milestone),
		milestonesByTask: make(map[string][]string),
		agentStats:       make(map[string]*AgentStats),
	}
}

// ReportProgress clamps percentage to [0,100], appends to bounded history,
// updates agent statistics, and recomputes every milestone that depends on
// taskId (cascading to ancestors).
func (t *Tracker) ReportProgress(agentID, taskID string, percentage float64, status string, opts ReportOptions) Entry {
	if percentage < 0 {
		percentage = 0
	} else if percentage > 100 {
		percentage = 100
	}

	now := t.cfg.Clock.Now()
	entry := Entry{
		ID:                        ids.New("progress"),
		TaskID:                    taskID,
		AgentID:                   agentID,
		Percentage:                percentage,
		Status:                    status,
		Message:                   opts.Message,
		Details:                   opts.Details,
		Timestamp:                 now,
		TimeSpentMinutes:          opts.TimeSpentMinutes,
		EstimatedRemainingMinutes: opts.EstimatedRemainingMinutes,
		Blockers:                  append([]string(nil), opts.Blockers...),
		Metadata:                  opts.Metadata,
	}

	t.mu.Lock()
	hist := append(t.history[taskID], entry)
	if len(hist) > t.cfg.MaxHistoryPerTask {
		hist = hist[len(hist)-t.cfg.MaxHistoryPerTask:]
	}
	t.history[taskID] = hist
	t.latestProgress[taskID] = percentage

	stats, ok := t.agentStats[agentID]
	if !ok {
		stats = &AgentStats{AgentID: agentID}
		t.agentStats[agentID] = stats
	}
	if opts.Completed {
		stats.TasksCompleted++
		stats.TotalTimeMinutes += opts.TimeSpentMinutes
		stats.RecentCompletions = append(stats.RecentCompletions, now)
		if len(stats.RecentCompletions) > 100 {
			stats.RecentCompletions = stats.RecentCompletions[len(stats.RecentCompletions)-100:]
		}
	}
	if opts.Failed {
		stats.TasksFailed++
	}

	affected := append([]string(nil), t.milestonesByTask[taskID]...)
	t.mu.Unlock()

	t.cfg.Events.ProgressReported(entry)
	t.cfg.Publish("progress", taskID, entry)

	for _, milestoneID := range affected {
		t.recompute(milestoneID)
	}
	return entry
}

// GetHistory returns the bounded progress history for a task.
func (t *Tracker) GetHistory(taskID string) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	hist := t.history[taskID]
	out := make([]Entry, len(hist))
	copy(out, hist)
	return out
}

// LatestProgress returns the most recent percentage reported for a task.
func (t *Tracker) LatestProgress(taskID string) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.latestProgress[taskID]
	return p, ok
}

// AgentStatistics returns a copy of an agent's tracked statistics,
// defaulting SuccessRate to 1.0 when there is no history.
func (t *Tracker) AgentStatistics(agentID string) AgentStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	stats, ok := t.agentStats[agentID]
	if !ok {
		return AgentStats{AgentID: agentID}
	}
	clone := *stats
	clone.RecentCompletions = append([]time.Time(nil), stats.RecentCompletions...)
	return clone
}

// OverallStatus derives a summary status across a set of task statuses
// (caller-provided, since Tracker does not own Task records).
func OverallStatus(statuses []string) OverallStatus {
	total := len(statuses)
	if total == 0 {
		return OverallNotStarted
	}
	completed, blocked, inProgress := 0, 0, 0
	for _, s := range statuses {
		switch s {
		case "completed":
			completed++
		case "blocked":
			blocked++
		case "inProgress":
			inProgress++
		}
	}
	switch {
	case completed == total:
		return OverallCompleted
	case blocked > 0 && inProgress == 0:
		return OverallBlocked
	case inProgress > 0:
		return OverallInProgress
	default:
		return OverallNotStarted
	}
}
