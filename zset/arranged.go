package zset

// ArrangedView is an iterator over a Z-set's current consolidated
// content in an unspecified but fixed order (see DESIGN.md ordering
// note: key order is deferred to the storage layer, where keys are
// pre-encoded to []byte and compared with bytes.Compare), suitable
// for repeated reuse by a downstream join or aggregation without
// re-flushing on every access beyond the first (spec §4.1.1: "An
// arranged view ... handle returning an iterator ... over the current
// consolidated content. Taking an arranged view may force a flush.").
type ArrangedView[K comparable] struct {
	entries []entry[K]
}

// Arrange takes an arranged view of z, forcing a flush of any pending
// memtable entries into the trace.
func Arrange[K comparable](z ZSet[K]) ArrangedView[K] {
	return ArrangedView[K]{entries: z.backendOrEmpty().arrangedView()}
}

// Len returns the number of distinct keys in the view.
func (v ArrangedView[K]) Len() int { return len(v.entries) }

// Each calls fn once per (key, weight) pair in the view.
func (v ArrangedView[K]) Each(fn func(k K, w Weight) bool) {
	for _, e := range v.entries {
		if !fn(e.key, e.w) {
			return
		}
	}
}

// Lookup performs a linear probe for k within the view. Callers doing
// repeated lookups against the same view (e.g. the generic join path)
// should instead build an IndexedZSet once and reuse it; ArrangedView
// itself makes no indexing promise beyond "already flushed".
func (v ArrangedView[K]) Lookup(k K) (Weight, bool) {
	for _, e := range v.entries {
		if e.key == k {
			return e.w, true
		}
	}
	return 0, false
}
