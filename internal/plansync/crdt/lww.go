package crdt

// tag orders writes by (timestamp, nodeId).
type tag struct {
	timestamp int64
	node      string
}

// after reports whether t happened strictly after o: a later timestamp
// wins outright; on a tie the lexicographically larger node id wins.
func (t tag) after(o tag) bool {
	if t.timestamp != o.timestamp {
		return t.timestamp > o.timestamp
	}
	return t.node > o.node
}

// LWWRegister is a last-writer-wins single-value CRDT. The zero value is an
// empty, unset register.
type LWWRegister struct {
	value any
	tag   tag
	set   bool
}

// NewLWWRegister constructs an empty, unset register;
// NewLWWRegisterWithInitial seeds one with an initial value.
func NewLWWRegister() LWWRegister {
	return LWWRegister{}
}

// NewLWWRegisterWithInitial seeds the register with an initial value at
// ts=0, attributed to node.
func NewLWWRegisterWithInitial(value any, node string) LWWRegister {
	return LWWRegister{value: value, tag: tag{timestamp: 0, node: node}, set: true}
}

// Set accepts the write only when (ts, node) sorts strictly after the
// register's current tag. Returns the resulting register and whether the
// write was accepted.
func (r LWWRegister) Set(value any, node string, ts int64) (LWWRegister, bool) {
	candidate := tag{timestamp: ts, node: node}
	if r.set && !candidate.after(r.tag) {
		return r, false
	}
	return LWWRegister{value: value, tag: candidate, set: true}, true
}

// Value returns the current value and whether the register has ever been set.
func (r LWWRegister) Value() (any, bool) {
	return r.value, r.set
}

// Merge resolves two replicas of the same register to the one with the
// later tag. Merge is commutative, associative, and idempotent: it always
// picks the single resolved winner regardless of which side is receiver.
func (r LWWRegister) Merge(other LWWRegister) LWWRegister {
	if !r.set {
		return other
	}
	if !other.set {
		return r
	}
	if other.tag.after(r.tag) {
		return other
	}
	return r
}
