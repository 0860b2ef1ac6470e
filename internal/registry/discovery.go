package registry

import "sort"

// Filter narrows a discovery query. Zero-value fields are ignored; all
// provided fields are ANDed together.
type Filter struct {
	Role            Role
	Capability      string
	MinProficiency  float64
	LiveOnly        bool
	ParentID        string
	HasParentID     bool // distinguishes "no parent filter" from "parent == """
}

// DiscoverPeers returns agents matching filter, ordered by most-recently
// active first.
func (r *Registry) DiscoverPeers(filter Filter) []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matches := make([]Agent, 0, len(r.agents))
	for _, agent := range r.agents {
		if !matchesFilter(agent, filter) {
			continue
		}
		matches = append(matches, agent.Clone())
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].LastActivity.After(matches[j].LastActivity)
	})
	return matches
}

// FindByCapability returns live agents holding capability at or above
// minProficiency, most-recently-active first.
func (r *Registry) FindByCapability(capability string, minProficiency float64) []Agent {
	return r.DiscoverPeers(Filter{Capability: capability, MinProficiency: minProficiency, LiveOnly: true})
}

// FindByRole returns live agents of role, most-recently-active first.
func (r *Registry) FindByRole(role Role) []Agent {
	return r.DiscoverPeers(Filter{Role: role, LiveOnly: true})
}

// Children returns the direct children of id, if it exists.
func (r *Registry) Children(id string) []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	parent, ok := r.agents[id]
	if !ok {
		return nil
	}
	out := make([]Agent, 0, len(parent.ChildIDs))
	for _, childID := range parent.ChildIDs {
		if child, ok := r.agents[childID]; ok {
			out = append(out, child.Clone())
		}
	}
	return out
}

func matchesFilter(agent *Agent, filter Filter) bool {
	if filter.Role != "" && agent.Role != filter.Role {
		return false
	}
	if filter.LiveOnly && !agent.Status.IsLive() {
		return false
	}
	if filter.Capability != "" && !agent.HasCapability(filter.Capability, filter.MinProficiency) {
		return false
	}
	if filter.HasParentID && agent.ParentID != filter.ParentID {
		return false
	}
	return true
}
