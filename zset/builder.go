package zset

// Builder accumulates many (key, weight) entries and finalizes them
// into a single ZSet in one pass. Hot paths must use a Builder rather
// than repeated Add(z, Singleton(k, w)) calls, which would reconsolidate
// the whole accumulator on every insertion (spec §9, "Builders over
// repeated insertion").
type Builder[K comparable] struct {
	acc    map[K]Weight
	policy Policy
}

// NewBuilder returns a Builder with capacity reserved for the
// expected entry count.
func NewBuilder[K comparable](capacityHint int) *Builder[K] {
	if capacityHint < 0 {
		capacityHint = 0
	}
	return &Builder[K]{acc: make(map[K]Weight, capacityHint), policy: DefaultPolicy()}
}

// WithPolicy overrides the adaptive-backend policy used by the
// finalized Z-set.
func (bu *Builder[K]) WithPolicy(p Policy) *Builder[K] {
	bu.policy = p
	return bu
}

// Add accumulates w into k's running total. Zero-weight cancellation
// is resolved at Build time, not per-call, so repeated Add calls for
// the same key stay O(1) amortized.
func (bu *Builder[K]) Add(k K, w Weight) *Builder[K] {
	if w == 0 {
		return bu
	}
	bu.acc[k] += w
	return bu
}

// Len returns the number of distinct keys accumulated so far
// (including any that currently sum to zero and will be dropped by Build).
func (bu *Builder[K]) Len() int { return len(bu.acc) }

// Build finalizes the accumulated entries into a ZSet, dropping any
// key whose total weight is zero.
func (bu *Builder[K]) Build() ZSet[K] {
	out := newBackend[K](bu.policy.SmallsetN)
	out.policy = bu.policy
	for k, w := range bu.acc {
		if w != 0 {
			out.upsert(k, w)
		}
	}
	return wrap(out)
}
