package workdistributor

import (
	"sort"
	"time"

	"acr/internal/registry"
)

// GetTasks returns tasks matching filter.
func (d *Distributor) GetTasks(filter Filter) []Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Task, 0, len(d.tasks))
	for _, task := range d.tasks {
		if filter.HasStatus && task.Status != filter.Status {
			continue
		}
		if filter.RequiredRole != "" && task.RequiredRole != filter.RequiredRole {
			continue
		}
		if filter.ClaimedBy != "" && task.ClaimedBy != filter.ClaimedBy {
			continue
		}
		if filter.HasParent && task.ParentTaskID != filter.ParentTaskID {
			continue
		}
		out = append(out, task.Clone())
	}
	return out
}

// GetAvailableTasksForAgent returns available, dependency-satisfied tasks
// the agent is eligible to claim.
func (d *Distributor) GetAvailableTasksForAgent(agentID string) []Task {
	var agent registry.Agent
	var hasAgent bool
	if d.cfg.Registry != nil {
		agent, hasAgent = d.cfg.Registry.Get(agentID)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Task, 0)
	for _, task := range d.tasks {
		if task.Status != StatusAvailable {
			continue
		}
		if d.cfg.Registry != nil {
			if !hasAgent {
				continue
			}
			if task.RequiredRole != "" && agent.Role != task.RequiredRole {
				continue
			}
			names := agent.CapabilityNames()
			missing := false
			for _, req := range task.RequiredCapabilities {
				if _, ok := names[req]; !ok {
					missing = true
					break
				}
			}
			if missing {
				continue
			}
		}
		out = append(out, task.Clone())
	}
	return out
}

// GetAssignmentRecommendations scores every eligible (task, agent) pair
// among available, dependency-satisfied tasks and returns up to limit best
// pairs sorted by descending score.
func (d *Distributor) GetAssignmentRecommendations(limit int) []Recommendation {
	if d.cfg.Registry == nil {
		return nil
	}

	d.mu.Lock()
	available := make([]Task, 0)
	for _, task := range d.tasks {
		if task.Status == StatusAvailable && d.allDependenciesCompletedLocked(task.Dependencies) {
			available = append(available, task.Clone())
		}
	}
	d.mu.Unlock()

	now := d.cfg.Clock.Now()
	var recs []Recommendation
	for _, task := range available {
		candidates := d.cfg.Registry.DiscoverPeers(registry.Filter{LiveOnly: true})
		for _, agent := range candidates {
			if task.RequiredRole != "" && agent.Role != task.RequiredRole {
				continue
			}
			names := agent.CapabilityNames()
			eligible := true
			for _, req := range task.RequiredCapabilities {
				if _, ok := names[req]; !ok {
					eligible = false
					break
				}
			}
			if !eligible {
				continue
			}

			score := 0
			var reasons []string
			if task.RequiredRole != "" && agent.Role == task.RequiredRole {
				score += 20
				reasons = append(reasons, "role_match")
			}
			for _, c := range agent.Capabilities {
				for _, req := range task.RequiredCapabilities {
					if c.Name == req {
						score += 10
						score += int(10 * c.Proficiency)
						reasons = append(reasons, "capability:"+req)
					}
				}
			}
			if agent.Status == registry.StatusIdle {
				score += 15
				reasons = append(reasons, "idle")
			}
			if agent.Status == registry.StatusActive && now.Sub(agent.LastActivity) <= time.Minute {
				score += 5
				reasons = append(reasons, "recently_active")
			}

			recs = append(recs, Recommendation{TaskID: task.ID, AgentID: agent.ID, Score: score, Reasons: reasons})
		}
	}

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Score > recs[j].Score })
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}
