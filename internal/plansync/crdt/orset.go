package crdt

// orTag is the (timestamp, nodeId, seq) tag stamped on every add/remove.
// seq disambiguates repeated adds of the same value at the same
// (timestamp, node) pair so each add gets its own shadowable tag.
type orTag struct {
	timestamp int64
	node      string
	seq       uint64
}

// ORSet is the observed-remove set CRDT: a value is present iff it has at
// least one add-tag that has not been shadowed by a remove-tag for that
// same add-tag. Concurrent add/remove of the same value resolves in favor
// of add ("observed-remove" bias), which is what lets a concurrently
// re-added dependency or subtask id correctly reappear after merge.
type ORSet struct {
	adds    map[any]map[orTag]struct{}
	removes map[any]map[orTag]struct{}
	seq     uint64
}

// NewORSet constructs an empty OR-Set.
func NewORSet() ORSet {
	return ORSet{adds: map[any]map[orTag]struct{}{}, removes: map[any]map[orTag]struct{}{}}
}

func cloneTagIndex(src map[any]map[orTag]struct{}) map[any]map[orTag]struct{} {
	dst := make(map[any]map[orTag]struct{}, len(src))
	for v, tags := range src {
		tagCopy := make(map[orTag]struct{}, len(tags))
		for t := range tags {
			tagCopy[t] = struct{}{}
		}
		dst[v] = tagCopy
	}
	return dst
}

// Add inserts value into the set with a fresh tag. Re-adding a value already
// present still stamps a new tag, which matters because a concurrent remove
// only shadows the tags it had observed at the time.
func (s ORSet) Add(value any, node string, ts int64) ORSet {
	next := ORSet{adds: cloneTagIndex(s.adds), removes: cloneTagIndex(s.removes), seq: s.seq + 1}
	t := orTag{timestamp: ts, node: node, seq: next.seq}
	if next.adds[value] == nil {
		next.adds[value] = map[orTag]struct{}{}
	}
	next.adds[value][t] = struct{}{}
	return next
}

// Remove copies every add-tag currently observed for value into the
// remove-table. A concurrent Add on another replica stamps a tag this
// Remove never observed, so it survives merge: the correct
// observed-remove outcome.
func (s ORSet) Remove(value any, _node string, _ts int64) ORSet {
	observed := s.adds[value]
	if len(observed) == 0 {
		return s
	}
	next := ORSet{adds: cloneTagIndex(s.adds), removes: cloneTagIndex(s.removes), seq: s.seq}
	if next.removes[value] == nil {
		next.removes[value] = map[orTag]struct{}{}
	}
	for t := range observed {
		next.removes[value][t] = struct{}{}
	}
	return next
}

// Contains reports whether value currently has a surviving (unshadowed) tag.
func (s ORSet) Contains(value any) bool {
	for t := range s.adds[value] {
		if _, removed := s.removes[value][t]; !removed {
			return true
		}
	}
	return false
}

// Values returns every value with at least one unshadowed add-tag. Order is
// unspecified; callers that need stable output should sort.
func (s ORSet) Values() []any {
	out := make([]any, 0, len(s.adds))
	for v := range s.adds {
		if s.Contains(v) {
			out = append(out, v)
		}
	}
	return out
}

// Merge unions both replicas' add- and remove-tables element-wise. Union is
// commutative, associative, and idempotent, so Merge inherits those
// properties directly.
func (s ORSet) Merge(other ORSet) ORSet {
	merged := ORSet{adds: cloneTagIndex(s.adds), removes: cloneTagIndex(s.removes), seq: maxU64(s.seq, other.seq)}
	for v, tags := range other.adds {
		if merged.adds[v] == nil {
			merged.adds[v] = map[orTag]struct{}{}
		}
		for t := range tags {
			merged.adds[v][t] = struct{}{}
		}
	}
	for v, tags := range other.removes {
		if merged.removes[v] == nil {
			merged.removes[v] = map[orTag]struct{}{}
		}
		for t := range tags {
			merged.removes[v][t] = struct{}{}
		}
	}
	return merged
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
