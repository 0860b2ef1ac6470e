// Package plansync implements the plan synchronizer: a CRDT-backed plan and
// item store that converges across nodes without coordination, built atop
// the vector clock, LWW-Register, and OR-Set primitives in the crdt
// subpackage.
package plansync

import (
	"time"

	"acr/internal/plansync/crdt"
)

// Plan is the top-level container for a set of CRDT items plus the
// metadata describing the plan itself.
type Plan struct {
	ID              string
	Name            string
	Description     string
	Owner           string
	Collaborators   []string
	CurrentPhase    string
	TotalPhases     int
	OverallProgress float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	VectorClock     crdt.VectorClock
	Version         int

	ConflictsDetected int
	ConflictsResolved int
}

func (p Plan) clone() Plan {
	clone := p
	clone.Collaborators = append([]string(nil), p.Collaborators...)
	clone.VectorClock = p.VectorClock.Clone()
	return clone
}

// PlanItem is the resolved, human-readable projection of a plan's CRDT
// item, identical in shape to crdt.PlainItem.
type PlanItem = crdt.PlainItem

// OperationType tags the kind of mutation recorded in the pending-operation
// log.
type OperationType string

const (
	OpCreatePlan   OperationType = "createPlan"
	OpUpdatePlan   OperationType = "updatePlan"
	OpAddItem      OperationType = "addItem"
	OpUpdateItem   OperationType = "updateItem"
	OpUpdateStatus OperationType = "updateItemStatus"
	OpAssignItem   OperationType = "assignItem"
	OpDeleteItem   OperationType = "deleteItem"
)

// Operation is a single recorded mutation, carrying enough state for a
// remote node to replay the same intent via applyOperation.
type Operation struct {
	ID          string
	PlanID      string
	Type        OperationType
	ItemID      string
	NodeID      string
	Timestamp   int64 // epoch millis, used as the LWW/OR-Set tag timestamp
	VectorClock crdt.VectorClock
	Fields      map[string]any
}

// CreatePlanOptions configures CreatePlan.
type CreatePlanOptions struct {
	Description   string
	Owner         string
	Collaborators []string
	TotalPhases   int
}

// UpdatePlanFields carries the subset of plan-level fields an UpdatePlan
// call changes; zero-value fields are left untouched.
type UpdatePlanFields struct {
	Name         *string
	Description  *string
	CurrentPhase *string
	TotalPhases  *int
}

// AddItemOptions configures AddItem.
type AddItemOptions struct {
	Description      string
	Priority         string
	AssignedTo       string
	ParentID         string
	EstimatedMinutes int
	Dependencies     []string
	Tags             []string
}

// UpdateItemFields carries the subset of item fields an UpdateItem call
// changes; nil fields are left untouched.
type UpdateItemFields struct {
	Title              *string
	Description        *string
	Priority           *string
	EstimatedMinutes   *int
	ActualMinutes      *int
	AddDependencies    []string
	RemoveDependencies []string
	AddTags            []string
	RemoveTags         []string
	AddNotes           []string
}

// Snapshot is the wire shape exchanged between nodes: a plan header plus
// every item's full CRDT state. Carrying the CRDT state (not the resolved
// projection) is what lets applyPlanSnapshot merge concurrent replicas
// correctly; PlanItem is only the display projection of a single item.
type Snapshot struct {
	Plan  Plan
	Items []crdt.Item
}
