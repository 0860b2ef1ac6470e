// Package progress implements the progress and milestone tracker: per-task
// progress history, derived milestone rollups across a DAG, and per-agent
// completion statistics.
package progress

import "time"

// MilestoneStatus is a milestone's lifecycle state.
type MilestoneStatus string

const (
	MilestonePending    MilestoneStatus = "pending"
	MilestoneInProgress MilestoneStatus = "inProgress"
	MilestoneAchieved   MilestoneStatus = "achieved"
	MilestoneMissed     MilestoneStatus = "missed"
	MilestoneDeferred   MilestoneStatus = "deferred"
)

// OverallStatus summarizes a set of tasks.
type OverallStatus string

const (
	OverallCompleted  OverallStatus = "completed"
	OverallBlocked    OverallStatus = "blocked"
	OverallInProgress OverallStatus = "inProgress"
	OverallNotStarted OverallStatus = "notStarted"
)

// Entry is a single, append-only progress report.
type Entry struct {
	ID                        string
	TaskID                    string
	AgentID                   string
	Percentage                float64
	Status                    string
	Message                   string
	Details                   any
	Timestamp                 time.Time
	TimeSpentMinutes          float64
	EstimatedRemainingMinutes float64
	Blockers                  []string
	Metadata                  map[string]string
}

// Milestone tracks derived completion across required tasks or child
// milestones. Progress is always derived by recompute, never set directly
// except implicitly via the achieved transition.
type Milestone struct {
	ID                string
	Name              string
	Description       string
	Status            MilestoneStatus
	TargetDate        time.Time
	CompletedDate     time.Time
	RequiredTaskIDs   []string
	Progress          float64
	ParentMilestoneID string
	ChildMilestoneIDs []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Owner             string
	Tags              []string
}

// Clone returns a deep-enough copy so callers can't mutate tracker state
// through aliased slices.
func (m Milestone) Clone() Milestone {
	clone := m
	clone.RequiredTaskIDs = append([]string(nil), m.RequiredTaskIDs...)
	clone.ChildMilestoneIDs = append([]string(nil), m.ChildMilestoneIDs...)
	clone.Tags = append([]string(nil), m.Tags...)
	return clone
}

// AgentStats summarizes an agent's completion history.
type AgentStats struct {
	AgentID          string
	TasksCompleted   int
	TasksFailed      int
	TotalTimeMinutes float64
	RecentCompletions []time.Time // bounded to the last 100
}

// SuccessRate returns completed/(completed+failed), defaulting to 1.0 when
// there is no history.
func (s AgentStats) SuccessRate() float64 {
	total := s.TasksCompleted + s.TasksFailed
	if total == 0 {
		return 1.0
	}
	return float64(s.TasksCompleted) / float64(total)
}

// ReportOptions configures ReportProgress.
type ReportOptions struct {
	Message                   string
	Details                   any
	TimeSpentMinutes          float64
	EstimatedRemainingMinutes float64
	Blockers                  []string
	Metadata                  map[string]string
	// Completed marks the task as having finished for agent-statistics
	// purposes (success); Failed marks it as having failed. At most one
	// should be set.
	Completed bool
	Failed    bool
}

// MilestoneOptions configures CreateMilestone.
type MilestoneOptions struct {
	Description       string
	TargetDate        time.Time
	RequiredTaskIDs   []string
	ParentMilestoneID string
	Owner             string
	Tags              []string
}
