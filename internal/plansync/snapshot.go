package plansync

import (
	"acr/internal/plansync/crdt"
)

// GetPlanSnapshot returns the full wire-transmissible state of a plan: its
// header and every item's raw CRDT state.
func (s *Service) GetPlanSnapshot(planID string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, ok := s.plans[planID]
	if !ok {
		return Snapshot{}, false
	}
	items := make([]crdt.Item, 0, len(ps.items))
	for _, item := range ps.items {
		items = append(items, item)
	}
	return Snapshot{Plan: ps.plan.clone(), Items: items}, true
}

// materializeFrom replaces ps's contents with remote's, keeping ps's
// pending-operations queue (the local history is subsumed, not discarded,
// so operations already recorded locally can still be gossiped onward).
func (ps *planState) materializeFrom(remote Snapshot) {
	ps.plan = remote.Plan.clone()
	ps.items = make(map[string]crdt.Item, len(remote.Items))
	for _, item := range remote.Items {
		ps.items[item.ID] = item
	}
}

// ApplyPlanSnapshot merges a remote replica of a plan into the local one
// per the vector-clock relation between them: before replaces local with
// remote wholesale, after is a no-op, concurrent merges item-by-item.
func (s *Service) ApplyPlanSnapshot(remote Snapshot) (Plan, error) {
	s.mu.Lock()

	ps, ok := s.plans[remote.Plan.ID]
	if !ok {
		ps = &planState{items: make(map[string]crdt.Item), appliedOps: make(map[string]struct{})}
		s.plans[remote.Plan.ID] = ps
		ps.materializeFrom(remote)
		clone := ps.plan.clone()
		s.mu.Unlock()
		s.cfg.Events.PlanRestored(clone.ID)
		return clone, nil
	}

	relation := crdt.Compare(ps.plan.VectorClock, remote.Plan.VectorClock)
	switch relation {
	case crdt.RelationBefore:
		ps.materializeFrom(remote)
		clone := ps.plan.clone()
		s.mu.Unlock()
		s.cfg.Events.PlanRestored(clone.ID)
		return clone, nil

	case crdt.RelationAfter, crdt.RelationEqual:
		clone := ps.plan.clone()
		s.mu.Unlock()
		return clone, nil

	default: // concurrent
		for _, remoteItem := range remote.Items {
			if localItem, exists := ps.items[remoteItem.ID]; exists {
				ps.items[remoteItem.ID] = localItem.Merge(remoteItem)
			} else {
				ps.items[remoteItem.ID] = remoteItem
			}
		}
		ps.plan.VectorClock = crdt.Merge(ps.plan.VectorClock, remote.Plan.VectorClock)
		if remote.Plan.Version > ps.plan.Version {
			ps.plan.Version = remote.Plan.Version
		}
		ps.plan.Version++
		ps.recomputeOverallProgress()
		ps.plan.ConflictsResolved++
		clone := ps.plan.clone()
		s.mu.Unlock()

		s.cfg.Events.PlanUpdated(clone)
		return clone, nil
	}
}

// ApplyOperation replays a remotely-recorded mutation against the local
// plan. Concurrency against the local clock is detected before the merge,
// then the intent is reapplied using the same field-application machinery
// local mutations use, stamped with the operation's originating node and
// timestamp so LWW/OR-Set ordering stays correct across nodes.
func (s *Service) ApplyOperation(op Operation) error {
	s.mu.Lock()
	ps, err := s.getLocked(op.PlanID)
	if err != nil {
		if op.Type != OpCreatePlan {
			s.mu.Unlock()
			return err
		}
		// A createPlan operation gossiped without a prior snapshot: this
		// node has never seen the plan, so materialize it from the
		// operation's own fields instead of requiring a full snapshot first.
		name, _ := op.Fields["name"].(string)
		description, _ := op.Fields["description"].(string)
		owner, _ := op.Fields["owner"].(string)
		collaborators, _ := op.Fields["collaborators"].([]string)
		totalPhases, _ := op.Fields["totalPhases"].(int)
		ps = &planState{
			plan: Plan{
				ID: op.PlanID, Name: name, Description: description, Owner: owner,
				Collaborators: collaborators, TotalPhases: totalPhases,
				VectorClock: crdt.New(op.NodeID), Version: 1,
			},
			items:      make(map[string]crdt.Item),
			appliedOps: make(map[string]struct{}),
		}
		s.plans[op.PlanID] = ps
	}
	if ps.appliedOps == nil {
		ps.appliedOps = make(map[string]struct{})
	}

	// Replaying an operation already applied on this node (gossip retry,
	// at-least-once delivery) must be a no-op rather than re-adding to an
	// OR-Set or double-counting a conflict.
	if op.ID != "" {
		if _, done := ps.appliedOps[op.ID]; done {
			s.mu.Unlock()
			return nil
		}
	}

	concurrent := crdt.AreConcurrent(ps.plan.VectorClock, op.VectorClock)
	if concurrent {
		ps.plan.ConflictsDetected++
	}
	ps.plan.VectorClock = crdt.Merge(ps.plan.VectorClock, op.VectorClock)

	switch op.Type {
	case OpCreatePlan:
		// Already materialized above (either pre-existing or just created);
		// nothing further to apply beyond the clock merge.

	case OpUpdatePlan:
		if v, ok := op.Fields["name"].(string); ok {
			ps.plan.Name = v
		}
		if v, ok := op.Fields["description"].(string); ok {
			ps.plan.Description = v
		}
		if v, ok := op.Fields["currentPhase"].(string); ok {
			ps.plan.CurrentPhase = v
		}
		if v, ok := op.Fields["totalPhases"].(int); ok {
			ps.plan.TotalPhases = v
		}

	case OpAddItem:
		itemID, _ := op.Fields["itemId"].(string)
		item, exists := ps.items[itemID]
		if !exists {
			item = crdt.NewItem(itemID, s.cfg.Clock.Now())
		}
		item = applyItemFields(item, op.Fields, op.NodeID, op.Timestamp)
		ps.items[itemID] = item
		if parentID, _ := op.Fields["parentId"].(string); parentID != "" {
			if parent, ok := ps.items[parentID]; ok {
				parent.SubtaskIDs = parent.SubtaskIDs.Add(itemID, op.NodeID, op.Timestamp)
				ps.items[parentID] = parent
			}
		}

	case OpUpdateItem, OpUpdateStatus, OpAssignItem:
		itemID, _ := op.Fields["itemId"].(string)
		item, exists := ps.items[itemID]
		if exists {
			ps.items[itemID] = applyItemFields(item, op.Fields, op.NodeID, op.Timestamp)
		}

	case OpDeleteItem:
		if item, exists := ps.items[op.ItemID]; exists {
			if parentID, _ := item.ParentID.Value(); parentID != nil {
				if parentStr, _ := parentID.(string); parentStr != "" {
					if parent, ok := ps.items[parentStr]; ok {
						parent.SubtaskIDs = parent.SubtaskIDs.Remove(op.ItemID, op.NodeID, op.Timestamp)
						ps.items[parentStr] = parent
					}
				}
			}
			delete(ps.items, op.ItemID)
		}
	}

	ps.recomputeOverallProgress()
	ps.operations = append(ps.operations, op)
	if op.ID != "" {
		ps.appliedOps[op.ID] = struct{}{}
	}
	clone := ps.plan.clone()
	s.mu.Unlock()

	if concurrent {
		s.cfg.Events.ConflictDetected(op.PlanID)
	}
	s.cfg.Events.OperationApplied(op)
	s.cfg.Publish("plan", clone.ID, clone)
	return nil
}
