package plansync

import (
	"math"
	"sync"

	acrerrors "acr/internal/errors"
	"acr/internal/plansync/crdt"
	"acr/internal/shared/clock"
	"acr/internal/shared/ids"
	"acr/internal/shared/logging"
)

// Config tunes service behavior. Zero values fall back to spec defaults.
type Config struct {
	// NodeID tags every local write for LWW/OR-Set ordering and seeds this
	// node's vector-clock entry. Defaults to a generated node id.
	NodeID string
	Clock  clock.Clock
	Logger logging.Logger
	Events Events
	// Publish forwards a plan-topic notification to a wired message bus.
	// Nil means no bus is wired.
	Publish func(topic, subject string, body any)
}

func (c *Config) applyDefaults() {
	if c.NodeID == "" {
		c.NodeID = ids.New("node")
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

// planState is the service's internal representation of a plan: the
// resolved header plus its CRDT items and pending-operation log.
type planState struct {
	plan       Plan
	items      map[string]crdt.Item
	operations []Operation
	// appliedOps is the set of operation ids already dispatched through
	// ApplyOperation, so a redelivered op (gossip retry, at-least-once
	// transport) is a no-op instead of re-adding to an OR-Set or
	// re-incrementing a register's tag.
	appliedOps map[string]struct{}
}

// Service owns Plan and CRDT-item records exclusively.
type Service struct {
	cfg Config

	mu    sync.Mutex
	plans map[string]*planState
}

// New constructs a Service. A zero Config is valid and uses spec defaults.
func New(cfg Config) *Service {
	cfg.applyDefaults()
	return &Service{cfg: cfg, plans: make(map[string]*planState)}
}

func (s *Service) nowMillis() int64 {
	return s.cfg.Clock.Now().UnixMilli()
}

// recordOperation increments the plan's vector clock at the local node,
// appends the operation (tagged with the post-increment clock) to the
// pending-operations queue, and returns the op for event emission.
func (ps *planState) recordOperation(nodeID string, opType OperationType, itemID string, ts int64, fields map[string]any) Operation {
	// The stored clock's Owner may still read as whichever node last
	// materialized it wholesale (e.g. via a snapshot restore); Increment
	// only ever advances vc.Owner's own entry, so it must be pinned to this
	// node before incrementing or the wrong node's counter would advance.
	ps.plan.VectorClock.Owner = nodeID
	ps.plan.VectorClock = ps.plan.VectorClock.Increment()
	op := Operation{
		ID:          ids.New("op"),
		PlanID:      ps.plan.ID,
		Type:        opType,
		ItemID:      itemID,
		NodeID:      nodeID,
		Timestamp:   ts,
		VectorClock: ps.plan.VectorClock.Clone(),
		Fields:      fields,
	}
	ps.operations = append(ps.operations, op)
	return op
}

// recomputeOverallProgress re-derives the plan's overallProgress as the
// rounded mean of its items' resolved progress values.
func (ps *planState) recomputeOverallProgress() {
	if len(ps.items) == 0 {
		ps.plan.OverallProgress = 0
		return
	}
	var sum float64
	for _, item := range ps.items {
		sum += item.ToPlain().Progress
	}
	ps.plan.OverallProgress = math.Round(sum / float64(len(ps.items)))
}

func (s *Service) getLocked(planID string) (*planState, error) {
	ps, ok := s.plans[planID]
	if !ok {
		return nil, acrerrors.Newf(acrerrors.KindNotFound, "plan %s not found", planID)
	}
	return ps, nil
}

// PendingOperations returns a copy of the plan's recorded operation log, in
// the order they were applied locally. A gossip layer pulls from here to
// forward this node's intent to peers via ApplyOperation.
func (s *Service) PendingOperations(planID string) []Operation {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, ok := s.plans[planID]
	if !ok {
		return nil
	}
	out := make([]Operation, len(ps.operations))
	copy(out, ps.operations)
	return out
}

// CreatePlan registers a new plan owned by this node.
func (s *Service) CreatePlan(name string, opts CreatePlanOptions) Plan {
	now := s.cfg.Clock.Now()
	s.mu.Lock()
	ps := &planState{
		plan: Plan{
			ID:            ids.New("plan"),
			Name:          name,
			Description:   opts.Description,
			Owner:         opts.Owner,
			Collaborators: append([]string(nil), opts.Collaborators...),
			TotalPhases:   opts.TotalPhases,
			CreatedAt:     now,
			UpdatedAt:     now,
			VectorClock:   crdt.New(s.cfg.NodeID),
			Version:       1,
		},
		items:      make(map[string]crdt.Item),
		appliedOps: make(map[string]struct{}),
	}
	op := ps.recordOperation(s.cfg.NodeID, OpCreatePlan, "", now.UnixMilli(), map[string]any{
		"name": name, "description": opts.Description, "owner": opts.Owner,
		"collaborators": opts.Collaborators, "totalPhases": opts.TotalPhases,
	})
	ps.appliedOps[op.ID] = struct{}{}
	s.plans[ps.plan.ID] = ps
	clone := ps.plan.clone()
	s.mu.Unlock()

	s.cfg.Events.PlanCreated(clone)
	s.cfg.Events.OperationRecorded(op)
	s.cfg.Publish("plan", clone.ID, clone)
	return clone
}

// GetPlan returns a copy of a plan's header, if present.
func (s *Service) GetPlan(planID string) (Plan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, ok := s.plans[planID]
	if !ok {
		return Plan{}, false
	}
	return ps.plan.clone(), true
}

// UpdatePlan changes plan-level fields, leaving unset pointers untouched.
func (s *Service) UpdatePlan(planID string, fields UpdatePlanFields) (Plan, error) {
	now := s.cfg.Clock.Now()
	s.mu.Lock()
	ps, err := s.getLocked(planID)
	if err != nil {
		s.mu.Unlock()
		return Plan{}, err
	}

	recorded := map[string]any{}
	if fields.Name != nil {
		ps.plan.Name = *fields.Name
		recorded["name"] = *fields.Name
	}
	if fields.Description != nil {
		ps.plan.Description = *fields.Description
		recorded["description"] = *fields.Description
	}
	if fields.CurrentPhase != nil {
		ps.plan.CurrentPhase = *fields.CurrentPhase
		recorded["currentPhase"] = *fields.CurrentPhase
	}
	if fields.TotalPhases != nil {
		ps.plan.TotalPhases = *fields.TotalPhases
		recorded["totalPhases"] = *fields.TotalPhases
	}
	ps.plan.UpdatedAt = now
	op := ps.recordOperation(s.cfg.NodeID, OpUpdatePlan, "", now.UnixMilli(), recorded)
	clone := ps.plan.clone()
	s.mu.Unlock()

	s.cfg.Events.PlanUpdated(clone)
	s.cfg.Events.OperationRecorded(op)
	s.cfg.Publish("plan", clone.ID, clone)
	return clone, nil
}
