package progress

import "acr/internal/shared/ids"

// CreateMilestone registers a milestone and indexes it against the tasks
// (and, transitively, children) that affect its derived progress.
func (t *Tracker) CreateMilestone(name string, opts MilestoneOptions) Milestone {
	now := t.cfg.Clock.Now()
	m := &Milestone{
		ID:                ids.New("milestone"),
		Name:              name,
		Description:       opts.Description,
		Status:            MilestonePending,
		TargetDate:        opts.TargetDate,
		RequiredTaskIDs:   append([]string(nil), opts.RequiredTaskIDs...),
		ParentMilestoneID: opts.ParentMilestoneID,
		CreatedAt:         now,
		UpdatedAt:         now,
		Owner:             opts.Owner,
		Tags:              append([]string(nil), opts.Tags...),
	}

	t.mu.Lock()
	t.milestones[m.ID] = m
	for _, taskID := range m.RequiredTaskIDs {
		t.milestonesByTask[taskID] = append(t.milestonesByTask[taskID], m.ID)
	}
	if m.ParentMilestoneID != "" {
		if parent, ok := t.milestones[m.ParentMilestoneID]; ok {
			parent.ChildMilestoneIDs = append(parent.ChildMilestoneIDs, m.ID)
		}
	}
	clone := m.Clone()
	t.mu.Unlock()

	t.cfg.Events.MilestoneCreated(clone)
	t.recompute(m.ID)
	return clone
}

// GetMilestone returns a copy of a milestone, if present.
func (t *Tracker) GetMilestone(id string) (Milestone, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.milestones[id]
	if !ok {
		return Milestone{}, false
	}
	return m.Clone(), true
}

// recompute re-derives a milestone's progress per spec 4.4 and cascades to
// its parent. Errors (unknown id) are silently ignored since recompute is
// always triggered internally against ids the tracker itself created.
func (t *Tracker) recompute(milestoneID string) {
	t.mu.Lock()
	m, ok := t.milestones[milestoneID]
	if !ok {
		t.mu.Unlock()
		return
	}

	var progress float64
	switch {
	case len(m.RequiredTaskIDs) > 0:
		var sum float64
		for _, taskID := range m.RequiredTaskIDs {
			sum += t.latestProgress[taskID]
		}
		progress = sum / float64(len(m.RequiredTaskIDs))
	case len(m.ChildMilestoneIDs) > 0:
		var sum float64
		for _, childID := range m.ChildMilestoneIDs {
			if child, ok := t.milestones[childID]; ok {
				sum += child.Progress
			}
		}
		progress = sum / float64(len(m.ChildMilestoneIDs))
	default:
		progress = 0
	}

	old := m.Status
	m.Progress = progress
	now := t.cfg.Clock.Now()
	if progress >= 100 && m.Status != MilestoneAchieved {
		m.Status = MilestoneAchieved
		m.CompletedDate = now
	} else if progress > 0 && progress < 100 && m.Status == MilestonePending {
		m.Status = MilestoneInProgress
	}
	m.UpdatedAt = now
	parentID := m.ParentMilestoneID
	changed := old != m.Status
	clone := m.Clone()
	t.mu.Unlock()

	if changed {
		t.cfg.Events.MilestoneStatusChanged(milestoneID, old, clone.Status)
	}
	if parentID != "" {
		t.recompute(parentID)
	}
}

