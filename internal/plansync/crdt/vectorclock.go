// Package crdt implements the state-based CRDT primitives the plan
// synchronizer composes: vector clocks, LWW-Registers, and OR-Sets.
// Every merge here must be commutative, associative, and idempotent.
package crdt

// VectorClock is a per-node logical counter map used to detect causal order
// and concurrency between events from different nodes.
type VectorClock struct {
	Owner   string
	Entries map[string]uint64
}

// Relation classifies how two vector clocks relate causally.
type Relation int

const (
	RelationEqual Relation = iota
	RelationBefore
	RelationAfter
	RelationConcurrent
)

func (r Relation) String() string {
	switch r {
	case RelationEqual:
		return "equal"
	case RelationBefore:
		return "before"
	case RelationAfter:
		return "after"
	default:
		return "concurrent"
	}
}

// New creates a clock tagged with the owning node, with every entry at zero.
func New(owner string) VectorClock {
	return VectorClock{Owner: owner, Entries: map[string]uint64{owner: 0}}
}

// Clone returns a deep copy so callers never mutate shared state through an
// aliased map.
func (vc VectorClock) Clone() VectorClock {
	entries := make(map[string]uint64, len(vc.Entries))
	for k, v := range vc.Entries {
		entries[k] = v
	}
	return VectorClock{Owner: vc.Owner, Entries: entries}
}

// Increment returns a new clock with the owner's own entry advanced by one.
// Vector clocks are treated as immutable values throughout the runtime so
// concurrent readers never observe a partially-updated map.
func (vc VectorClock) Increment() VectorClock {
	next := vc.Clone()
	next.Entries[vc.Owner] = next.Entries[vc.Owner] + 1
	return next
}

// Get returns the counter for node, defaulting to zero when absent.
func (vc VectorClock) Get(node string) uint64 {
	return vc.Entries[node]
}

// Merge computes the entrywise maximum of two clocks. Merge is commutative,
// associative, and idempotent by construction (max has all three
// properties), which is what lets nodes converge regardless of gossip order.
func Merge(a, b VectorClock) VectorClock {
	owner := a.Owner
	if owner == "" {
		owner = b.Owner
	}
	entries := make(map[string]uint64, len(a.Entries)+len(b.Entries))
	for k, v := range a.Entries {
		entries[k] = v
	}
	for k, v := range b.Entries {
		if v > entries[k] {
			entries[k] = v
		}
	}
	return VectorClock{Owner: owner, Entries: entries}
}

// Compare classifies the causal relationship between a and b.
func Compare(a, b VectorClock) Relation {
	keys := make(map[string]struct{}, len(a.Entries)+len(b.Entries))
	for k := range a.Entries {
		keys[k] = struct{}{}
	}
	for k := range b.Entries {
		keys[k] = struct{}{}
	}

	aLess, bLess := false, false
	for k := range keys {
		av, bv := a.Entries[k], b.Entries[k]
		if av < bv {
			aLess = true
		} else if av > bv {
			bLess = true
		}
	}

	switch {
	case !aLess && !bLess:
		return RelationEqual
	case aLess && !bLess:
		return RelationBefore
	case bLess && !aLess:
		return RelationAfter
	default:
		return RelationConcurrent
	}
}

// AreConcurrent reports whether a and b are causally concurrent.
func AreConcurrent(a, b VectorClock) bool {
	return Compare(a, b) == RelationConcurrent
}
