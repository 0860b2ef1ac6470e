package plansync

import (
	acrerrors "acr/internal/errors"
	"acr/internal/plansync/crdt"
	"acr/internal/shared/ids"
)

// applyItemFields applies a field map to an item's registers and sets,
// stamping every write with (node, ts). Shared between local mutation
// methods (node=this service's NodeID, ts=now) and applyOperation replaying
// a remote intent (node=op.NodeID, ts=op.Timestamp), so LWW/OR-Set ordering
// is correct regardless of which node originated the change.
func applyItemFields(item crdt.Item, fields map[string]any, node string, ts int64) crdt.Item {
	if v, ok := fields["title"]; ok {
		item.Title, _ = item.Title.Set(v, node, ts)
	}
	if v, ok := fields["description"]; ok {
		item.Description, _ = item.Description.Set(v, node, ts)
	}
	if v, ok := fields["status"]; ok {
		item.Status, _ = item.Status.Set(v, node, ts)
	}
	if v, ok := fields["priority"]; ok {
		item.Priority, _ = item.Priority.Set(v, node, ts)
	}
	if v, ok := fields["assignedTo"]; ok {
		item.AssignedTo, _ = item.AssignedTo.Set(v, node, ts)
	}
	if v, ok := fields["progress"]; ok {
		item.Progress, _ = item.Progress.Set(v, node, ts)
	}
	if v, ok := fields["parentId"]; ok {
		item.ParentID, _ = item.ParentID.Set(v, node, ts)
	}
	if v, ok := fields["estimatedMinutes"]; ok {
		item.EstimatedMinutes, _ = item.EstimatedMinutes.Set(v, node, ts)
	}
	if v, ok := fields["actualMinutes"]; ok {
		item.ActualMinutes, _ = item.ActualMinutes.Set(v, node, ts)
	}
	if vs, ok := fields["addDependencies"].([]string); ok {
		for _, dep := range vs {
			item.Dependencies = item.Dependencies.Add(dep, node, ts)
		}
	}
	if vs, ok := fields["removeDependencies"].([]string); ok {
		for _, dep := range vs {
			item.Dependencies = item.Dependencies.Remove(dep, node, ts)
		}
	}
	if vs, ok := fields["addTags"].([]string); ok {
		for _, tag := range vs {
			item.Tags = item.Tags.Add(tag, node, ts)
		}
	}
	if vs, ok := fields["removeTags"].([]string); ok {
		for _, tag := range vs {
			item.Tags = item.Tags.Remove(tag, node, ts)
		}
	}
	if vs, ok := fields["addNotes"].([]string); ok {
		for _, note := range vs {
			item.Notes = item.Notes.Add(note, node, ts)
		}
	}
	if vs, ok := fields["addSubtaskIDs"].([]string); ok {
		for _, id := range vs {
			item.SubtaskIDs = item.SubtaskIDs.Add(id, node, ts)
		}
	}
	if vs, ok := fields["removeSubtaskIDs"].([]string); ok {
		for _, id := range vs {
			item.SubtaskIDs = item.SubtaskIDs.Remove(id, node, ts)
		}
	}
	return item
}

// AddItem creates a new CRDT item within planID, linking it into its
// parent's subtaskIds OR-Set when ParentID is set.
func (s *Service) AddItem(planID, title string, opts AddItemOptions) (PlanItem, error) {
	now := s.cfg.Clock.Now()
	ts := now.UnixMilli()
	s.mu.Lock()
	ps, err := s.getLocked(planID)
	if err != nil {
		s.mu.Unlock()
		return PlanItem{}, err
	}

	itemID := ids.New("item")
	item := crdt.NewItem(itemID, now)
	fields := map[string]any{
		"title": title, "description": opts.Description, "priority": opts.Priority,
		"assignedTo": opts.AssignedTo, "parentId": opts.ParentID,
		"estimatedMinutes": opts.EstimatedMinutes,
		"addDependencies":  opts.Dependencies,
		"addTags":          opts.Tags,
	}
	item = applyItemFields(item, fields, s.cfg.NodeID, ts)
	ps.items[itemID] = item

	if opts.ParentID != "" {
		if parent, ok := ps.items[opts.ParentID]; ok {
			parent.SubtaskIDs = parent.SubtaskIDs.Add(itemID, s.cfg.NodeID, ts)
			ps.items[opts.ParentID] = parent
		}
	}

	ps.plan.UpdatedAt = now
	ps.recomputeOverallProgress()
	fields["itemId"] = itemID
	op := ps.recordOperation(s.cfg.NodeID, OpAddItem, itemID, ts, fields)
	plain := item.ToPlain()
	s.mu.Unlock()

	s.cfg.Events.ItemAdded(planID, plain)
	s.cfg.Events.OperationRecorded(op)
	s.cfg.Publish("plan.item", itemID, plain)
	return plain, nil
}

// GetItem returns the resolved projection of an item, if present.
func (s *Service) GetItem(planID, itemID string) (PlanItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, ok := s.plans[planID]
	if !ok {
		return PlanItem{}, false
	}
	item, ok := ps.items[itemID]
	if !ok {
		return PlanItem{}, false
	}
	return item.ToPlain(), true
}

// ListItems returns every resolved item in the plan, order unspecified.
func (s *Service) ListItems(planID string) []PlanItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, ok := s.plans[planID]
	if !ok {
		return nil
	}
	out := make([]PlanItem, 0, len(ps.items))
	for _, item := range ps.items {
		out = append(out, item.ToPlain())
	}
	return out
}

// UpdateItem applies the given field changes to an existing item.
func (s *Service) UpdateItem(planID, itemID string, fields UpdateItemFields) (PlanItem, error) {
	now := s.cfg.Clock.Now()
	ts := now.UnixMilli()
	s.mu.Lock()
	ps, err := s.getLocked(planID)
	if err != nil {
		s.mu.Unlock()
		return PlanItem{}, err
	}
	item, ok := ps.items[itemID]
	if !ok {
		s.mu.Unlock()
		return PlanItem{}, acrerrors.Newf(acrerrors.KindNotFound, "item %s not found in plan %s", itemID, planID)
	}

	recorded := map[string]any{}
	if fields.Title != nil {
		recorded["title"] = *fields.Title
	}
	if fields.Description != nil {
		recorded["description"] = *fields.Description
	}
	if fields.Priority != nil {
		recorded["priority"] = *fields.Priority
	}
	if fields.EstimatedMinutes != nil {
		recorded["estimatedMinutes"] = *fields.EstimatedMinutes
	}
	if fields.ActualMinutes != nil {
		recorded["actualMinutes"] = *fields.ActualMinutes
	}
	if len(fields.AddDependencies) > 0 {
		recorded["addDependencies"] = fields.AddDependencies
	}
	if len(fields.RemoveDependencies) > 0 {
		recorded["removeDependencies"] = fields.RemoveDependencies
	}
	if len(fields.AddTags) > 0 {
		recorded["addTags"] = fields.AddTags
	}
	if len(fields.RemoveTags) > 0 {
		recorded["removeTags"] = fields.RemoveTags
	}
	if len(fields.AddNotes) > 0 {
		recorded["addNotes"] = fields.AddNotes
	}

	item = applyItemFields(item, recorded, s.cfg.NodeID, ts)
	ps.items[itemID] = item
	ps.plan.UpdatedAt = now
	ps.recomputeOverallProgress()
	recorded["itemId"] = itemID
	op := ps.recordOperation(s.cfg.NodeID, OpUpdateItem, itemID, ts, recorded)
	plain := item.ToPlain()
	s.mu.Unlock()

	s.cfg.Events.ItemUpdated(planID, plain)
	s.cfg.Events.OperationRecorded(op)
	s.cfg.Publish("plan.item", itemID, plain)
	return plain, nil
}

// UpdateItemStatus transitions an item's status, auto-setting progress to
// 100 when completing unless an explicit progress is supplied.
func (s *Service) UpdateItemStatus(planID, itemID, status string, progress *float64) (PlanItem, error) {
	now := s.cfg.Clock.Now()
	ts := now.UnixMilli()
	s.mu.Lock()
	ps, err := s.getLocked(planID)
	if err != nil {
		s.mu.Unlock()
		return PlanItem{}, err
	}
	item, ok := ps.items[itemID]
	if !ok {
		s.mu.Unlock()
		return PlanItem{}, acrerrors.Newf(acrerrors.KindNotFound, "item %s not found in plan %s", itemID, planID)
	}

	fields := map[string]any{"status": status}
	if progress != nil {
		fields["progress"] = *progress
	} else if status == "completed" {
		fields["progress"] = float64(100)
	}

	item = applyItemFields(item, fields, s.cfg.NodeID, ts)
	ps.items[itemID] = item
	ps.plan.UpdatedAt = now
	ps.recomputeOverallProgress()
	fields["itemId"] = itemID
	op := ps.recordOperation(s.cfg.NodeID, OpUpdateStatus, itemID, ts, fields)
	s.mu.Unlock()

	s.cfg.Events.StatusUpdated(planID, itemID, status)
	s.cfg.Events.OperationRecorded(op)
	s.cfg.Publish("plan.item.status", itemID, status)
	return item.ToPlain(), nil
}

// AssignItem sets an item's assignedTo field.
func (s *Service) AssignItem(planID, itemID, agentID string) (PlanItem, error) {
	now := s.cfg.Clock.Now()
	ts := now.UnixMilli()
	s.mu.Lock()
	ps, err := s.getLocked(planID)
	if err != nil {
		s.mu.Unlock()
		return PlanItem{}, err
	}
	item, ok := ps.items[itemID]
	if !ok {
		s.mu.Unlock()
		return PlanItem{}, acrerrors.Newf(acrerrors.KindNotFound, "item %s not found in plan %s", itemID, planID)
	}

	fields := map[string]any{"assignedTo": agentID}
	item = applyItemFields(item, fields, s.cfg.NodeID, ts)
	ps.items[itemID] = item
	ps.plan.UpdatedAt = now
	fields["itemId"] = itemID
	op := ps.recordOperation(s.cfg.NodeID, OpAssignItem, itemID, ts, fields)
	s.mu.Unlock()

	s.cfg.Events.ItemAssigned(planID, itemID, agentID)
	s.cfg.Events.OperationRecorded(op)
	s.cfg.Publish("plan.item.assigned", itemID, agentID)
	return item.ToPlain(), nil
}

// DeleteItem removes an item from the plan and, if it had a parent,
// removes it from the parent's subtaskIds OR-Set. Because OR-Sets are
// observed-remove, a concurrent add on another node for the same id will
// resurface after merge; that is the correct, expected outcome.
func (s *Service) DeleteItem(planID, itemID string) error {
	now := s.cfg.Clock.Now()
	ts := now.UnixMilli()
	s.mu.Lock()
	ps, err := s.getLocked(planID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	item, ok := ps.items[itemID]
	if !ok {
		s.mu.Unlock()
		return acrerrors.Newf(acrerrors.KindNotFound, "item %s not found in plan %s", itemID, planID)
	}

	parentID, _ := item.ParentID.Value()
	if parentStr, _ := parentID.(string); parentStr != "" {
		if parent, ok := ps.items[parentStr]; ok {
			parent.SubtaskIDs = parent.SubtaskIDs.Remove(itemID, s.cfg.NodeID, ts)
			ps.items[parentStr] = parent
		}
	}
	delete(ps.items, itemID)
	ps.plan.UpdatedAt = now
	ps.recomputeOverallProgress()
	op := ps.recordOperation(s.cfg.NodeID, OpDeleteItem, itemID, ts, nil)
	s.mu.Unlock()

	s.cfg.Events.ItemDeleted(planID, itemID)
	s.cfg.Events.OperationRecorded(op)
	s.cfg.Publish("plan.item.deleted", itemID, nil)
	return nil
}
