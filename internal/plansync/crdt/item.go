package crdt

import "time"

// PlainItem is the resolved, human-readable projection of an Item: the
// current winning value of every register and the current membership of
// every set, with CRDT machinery stripped away.
type PlainItem struct {
	ID               string
	Title            string
	Description      string
	Status           string
	Priority         string
	AssignedTo       string
	Progress         float64
	ParentID         string
	EstimatedMinutes int
	ActualMinutes    int
	Dependencies     []string
	Tags             []string
	Notes            []string
	SubtaskIDs       []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Defaults applied when a register was never set, used by the
// ToPlain projection.
const (
	DefaultStatus   = "pending"
	DefaultPriority = "medium"
)

// Item composes LWW-Registers for scalar plan fields and OR-Sets for
// collection fields into a single mergeable CRDT unit.
type Item struct {
	ID string

	Title            LWWRegister
	Description      LWWRegister
	Status           LWWRegister
	Priority         LWWRegister
	AssignedTo       LWWRegister
	Progress         LWWRegister
	ParentID         LWWRegister
	EstimatedMinutes LWWRegister
	ActualMinutes    LWWRegister

	Dependencies ORSet
	Tags         ORSet
	Notes        ORSet
	SubtaskIDs   ORSet

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewItem constructs an empty CRDT item shell for id.
func NewItem(id string, createdAt time.Time) Item {
	return Item{
		ID:           id,
		Dependencies: NewORSet(),
		Tags:         NewORSet(),
		Notes:        NewORSet(),
		SubtaskIDs:   NewORSet(),
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
}

// Merge composes each sub-CRDT pairwise. CreatedAt takes the earlier of the
// two replicas' values since it describes when the item first came into
// existence on either side.
func (it Item) Merge(other Item) Item {
	merged := Item{
		ID:               it.ID,
		Title:            it.Title.Merge(other.Title),
		Description:      it.Description.Merge(other.Description),
		Status:           it.Status.Merge(other.Status),
		Priority:         it.Priority.Merge(other.Priority),
		AssignedTo:       it.AssignedTo.Merge(other.AssignedTo),
		Progress:         it.Progress.Merge(other.Progress),
		ParentID:         it.ParentID.Merge(other.ParentID),
		EstimatedMinutes: it.EstimatedMinutes.Merge(other.EstimatedMinutes),
		ActualMinutes:    it.ActualMinutes.Merge(other.ActualMinutes),
		Dependencies:     it.Dependencies.Merge(other.Dependencies),
		Tags:             it.Tags.Merge(other.Tags),
		Notes:            it.Notes.Merge(other.Notes),
		SubtaskIDs:       it.SubtaskIDs.Merge(other.SubtaskIDs),
		CreatedAt:        earlier(it.CreatedAt, other.CreatedAt),
		UpdatedAt:        later(it.UpdatedAt, other.UpdatedAt),
	}
	return merged
}

func earlier(a, b time.Time) time.Time {
	if a.IsZero() {
		return b
	}
	if b.IsZero() {
		return a
	}
	if a.Before(b) {
		return a
	}
	return b
}

func later(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// ToPlain projects the current resolved values of item, applying the
// default status/priority for registers that were never set.
func (it Item) ToPlain() PlainItem {
	plain := PlainItem{
		ID:        it.ID,
		Status:    DefaultStatus,
		Priority:  DefaultPriority,
		CreatedAt: it.CreatedAt,
		UpdatedAt: it.UpdatedAt,
	}
	if v, ok := it.Title.Value(); ok {
		plain.Title, _ = v.(string)
	}
	if v, ok := it.Description.Value(); ok {
		plain.Description, _ = v.(string)
	}
	if v, ok := it.Status.Value(); ok {
		if s, isStr := v.(string); isStr {
			plain.Status = s
		}
	}
	if v, ok := it.Priority.Value(); ok {
		if s, isStr := v.(string); isStr {
			plain.Priority = s
		}
	}
	if v, ok := it.AssignedTo.Value(); ok {
		plain.AssignedTo, _ = v.(string)
	}
	if v, ok := it.Progress.Value(); ok {
		plain.Progress, _ = toFloat(v)
	}
	if v, ok := it.ParentID.Value(); ok {
		plain.ParentID, _ = v.(string)
	}
	if v, ok := it.EstimatedMinutes.Value(); ok {
		plain.EstimatedMinutes, _ = toInt(v)
	}
	if v, ok := it.ActualMinutes.Value(); ok {
		plain.ActualMinutes, _ = toInt(v)
	}
	plain.Dependencies = toStringSlice(it.Dependencies.Values())
	plain.Tags = toStringSlice(it.Tags.Values())
	plain.Notes = toStringSlice(it.Notes.Values())
	plain.SubtaskIDs = toStringSlice(it.SubtaskIDs.Values())
	return plain
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func toStringSlice(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
