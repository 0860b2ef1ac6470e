// Package registry implements the liveness registry: agent registration,
// heartbeat-driven state transitions, parent/child hierarchies, and
// capability-based discovery.
package registry

import "time"

// Role is the fixed set of agent specializations used for task eligibility.
type Role string

const (
	RolePlanner     Role = "planner"
	RoleImplementer Role = "implementer"
	RoleAuditor     Role = "auditor"
	RoleCleaner     Role = "cleaner"
	RoleResearcher  Role = "researcher"
	RoleCoordinator Role = "coordinator"
	RoleSpecialist  Role = "specialist"
)

// Status is the agent lifecycle state.
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusActive       Status = "active"
	StatusBusy         Status = "busy"
	StatusIdle         Status = "idle"
	StatusShuttingDown Status = "shuttingDown"
	StatusOffline      Status = "offline"
	StatusCrashed      Status = "crashed"
)

// IsLive reports whether status counts as a live, schedulable agent for
// broadcast fan-out and discovery purposes.
func (s Status) IsLive() bool {
	switch s {
	case StatusActive, StatusBusy, StatusIdle:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether status is a final, non-monitored state.
func (s Status) IsTerminal() bool {
	return s == StatusOffline || s == StatusCrashed
}

// Capability is a named competence an agent holds with a proficiency level.
type Capability struct {
	Name         string
	Description  string
	Proficiency  float64 // in [0, 1]
	Dependencies []string
}

// Agent is an autonomous worker identified by an opaque string id.
type Agent struct {
	ID            string
	Role          Role
	Capabilities  []Capability
	Status        Status
	ParentID      string // weak identity reference only, never ownership
	ChildIDs      []string
	Surface       string // web, mobile, desktop, api, slack, cli
	Session       string
	RegisteredAt  time.Time
	LastHeartbeat time.Time
	LastActivity  time.Time
	CurrentTaskID string
	Metadata      map[string]string
}

// Clone returns a deep-enough copy so callers can't mutate registry state
// through an aliased slice or map.
func (a Agent) Clone() Agent {
	clone := a
	clone.Capabilities = append([]Capability(nil), a.Capabilities...)
	clone.ChildIDs = append([]string(nil), a.ChildIDs...)
	if a.Metadata != nil {
		clone.Metadata = make(map[string]string, len(a.Metadata))
		for k, v := range a.Metadata {
			clone.Metadata[k] = v
		}
	}
	return clone
}

// HasCapability reports whether the agent holds a capability named name at
// or above minProficiency.
func (a Agent) HasCapability(name string, minProficiency float64) bool {
	for _, c := range a.Capabilities {
		if c.Name == name {
			return c.Proficiency >= minProficiency
		}
	}
	return false
}

// CapabilityNames returns the set of capability names the agent holds.
func (a Agent) CapabilityNames() map[string]struct{} {
	names := make(map[string]struct{}, len(a.Capabilities))
	for _, c := range a.Capabilities {
		names[c.Name] = struct{}{}
	}
	return names
}

// HeartbeatResult is returned from Heartbeat.
type HeartbeatResult struct {
	Accepted         bool
	NextHeartbeatMs  int64
	PendingMessages  int
	PendingTasks     int
	ServerTime       time.Time
}
