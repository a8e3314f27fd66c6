package op

import (
	"github.com/nelknet/dbsp/izset"
	"github.com/nelknet/dbsp/zset"
)

// AggSpec describes a retractable fold: Zero is the accumulator for an
// empty group, and Add folds one more (value, weight) occurrence into
// a running accumulator. Because Z-set weights can be negative, Add
// must handle retraction the same way it handles insertion (e.g. Count
// just adds w; Sum adds w*value); spec §4.5 calls this "maintaining a
// retractable running aggregate per group" as the alternative to full
// recomputation on every group touched by a delta.
type AggSpec[V, Acc any] struct {
	Zero Acc
	Add  func(acc Acc, v V, w zset.Weight) Acc
}

// CountSpec counts occurrences (weighted), the incremental form of
// spec's Count aggregate.
func CountSpec[V any]() AggSpec[V, int64] {
	return AggSpec[V, int64]{
		Zero: 0,
		Add:  func(acc int64, _ V, w zset.Weight) int64 { return acc + w },
	}
}

// SumSpec sums valueOf(v)*w, the incremental form of spec's Sum aggregate.
func SumSpec[V any](valueOf func(V) int64) AggSpec[V, int64] {
	return AggSpec[V, int64]{
		Zero: 0,
		Add:  func(acc int64, v V, w zset.Weight) int64 { return acc + valueOf(v)*w },
	}
}

// AvgState is the running (sum, count) pair Average folds into; the
// mean itself is only materialized by Value(), keeping the accumulator
// exactly retractable (no division baked into the running state).
type AvgState struct {
	Sum   int64
	Count int64
}

// Value returns the mean, or 0 for an empty (fully retracted) group.
func (s AvgState) Value() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.Sum) / float64(s.Count)
}

// AvgSpec computes a running (sum, count) per group; callers read
// AvgState.Value() off the emitted accumulator.
func AvgSpec[V any](valueOf func(V) int64) AggSpec[V, AvgState] {
	return AggSpec[V, AvgState]{
		Zero: AvgState{},
		Add: func(acc AvgState, v V, w zset.Weight) AvgState {
			return AvgState{Sum: acc.Sum + valueOf(v)*w, Count: acc.Count + w}
		},
	}
}

// groupState tracks whether a key's accumulator has ever been
// observed, distinguishing "group doesn't exist" from "group's
// accumulator happens to equal Acc's zero value".
type groupState[Acc any] struct {
	acc    Acc
	exists bool
}

// GroupAggregate incrementally maintains one accumulator per group and
// emits the (key, accumulator) relation as a Z-set of Pair[K, Acc]
// with weight ±1: spec §4.5 treats an aggregate's output as a
// function of the key, so changing a group's value retracts the old
// (key, oldAcc) pair and inserts the new one in the same step, rather
// than emitting a multiset of partial updates.
type GroupAggregate[K comparable, V comparable, Acc comparable] struct {
	keyFn func(V) K
	spec  AggSpec[V, Acc]
	state map[K]groupState[Acc]
	zero  func(Acc) bool
}

// NewGroupAggregate returns a GroupAggregate with no groups yet. zero
// reports whether an accumulator represents an empty (fully retracted)
// group, used to decide whether to drop the key entirely rather than
// emit its zero value.
func NewGroupAggregate[K comparable, V comparable, Acc comparable](
	keyFn func(V) K, spec AggSpec[V, Acc], zero func(Acc) bool,
) *GroupAggregate[K, V, Acc] {
	return &GroupAggregate[K, V, Acc]{
		keyFn: keyFn,
		spec:  spec,
		state: make(map[K]groupState[Acc]),
		zero:  zero,
	}
}

// Step folds delta into the running per-group accumulators and
// returns the (key, accumulator) retract/insert delta.
func (g *GroupAggregate[K, V, Acc]) Step(delta zset.ZSet[V]) zset.ZSet[izset.Pair[K, Acc]] {
	byKey := make(map[K][]struct {
		v V
		w zset.Weight
	})
	delta.Iterate(func(v V, w zset.Weight) bool {
		k := g.keyFn(v)
		byKey[k] = append(byKey[k], struct {
			v V
			w zset.Weight
		}{v, w})
		return true
	})

	bu := zset.NewBuilder[izset.Pair[K, Acc]](len(byKey) * 2)
	for k, occs := range byKey {
		prev, hadPrev := g.state[k]
		if hadPrev {
			bu.Add(izset.Pair[K, Acc]{Key: k, Val: prev.acc}, -1)
		}
		acc := g.spec.Zero
		if hadPrev {
			acc = prev.acc
		}
		for _, o := range occs {
			acc = g.spec.Add(acc, o.v, o.w)
		}
		if g.zero(acc) {
			delete(g.state, k)
		} else {
			g.state[k] = groupState[Acc]{acc: acc, exists: true}
			bu.Add(izset.Pair[K, Acc]{Key: k, Val: acc}, 1)
		}
	}
	return bu.Build()
}

// Each calls fn once per resident group's (key, accumulator) pair, the
// read-only access point a circuit spill adapter uses to snapshot
// state to persistent storage without GroupAggregate itself depending
// on package storage.
func (g *GroupAggregate[K, V, Acc]) Each(fn func(k K, acc Acc) bool) {
	for k, st := range g.state {
		if !fn(k, st.acc) {
			return
		}
	}
}

// Resident reports how many groups are currently held in memory, the
// figure a circuit node wraps in EstimatedStateBytes for the spill
// coordinator's budget comparison.
func (g *GroupAggregate[K, V, Acc]) Resident() int { return len(g.state) }

// MinMax maintains a per-group frequency table of values so the
// running extreme can be retracted without rescanning the whole
// input, falling back to a full rescan of the group's surviving
// values only when the cached extreme itself is exhausted — the same
// trade the teacher's aggregate spiller makes: cheap in the common
// case, bounded work in the worst case (spec §4.5, Min/Max note).
type MinMax[K comparable, V comparable] struct {
	keyFn func(V) K
	less  func(a, b V) bool
	freq  map[K]map[V]zset.Weight
	cache map[K]V
}

// NewMinMax returns a Min (less = a<b) or Max (less = a>b) tracker.
func NewMinMax[K comparable, V comparable](keyFn func(V) K, less func(a, b V) bool) *MinMax[K, V] {
	return &MinMax[K, V]{
		keyFn: keyFn,
		less:  less,
		freq:  make(map[K]map[V]zset.Weight),
		cache: make(map[K]V),
	}
}

// Step folds delta into per-group frequency tables and returns the
// (key, extreme) retract/insert delta.
func (m *MinMax[K, V]) Step(delta zset.ZSet[V]) zset.ZSet[izset.Pair[K, V]] {
	touched := make(map[K]bool)
	delta.Iterate(func(v V, w zset.Weight) bool {
		k := m.keyFn(v)
		touched[k] = true
		bucket, ok := m.freq[k]
		if !ok {
			bucket = make(map[V]zset.Weight)
			m.freq[k] = bucket
		}
		bucket[v] += w
		if bucket[v] == 0 {
			delete(bucket, v)
		}
		return true
	})

	bu := zset.NewBuilder[izset.Pair[K, V]](len(touched) * 2)
	for k := range touched {
		oldExtreme, hadOld := m.cache[k]
		bucket := m.freq[k]
		if len(bucket) == 0 {
			delete(m.freq, k)
			delete(m.cache, k)
			if hadOld {
				bu.Add(izset.Pair[K, V]{Key: k, Val: oldExtreme}, -1)
			}
			continue
		}
		newExtreme, stillValid := oldExtreme, hadOld && bucket[oldExtreme] > 0
		if !stillValid {
			first := true
			for v := range bucket {
				if first || m.less(v, newExtreme) {
					newExtreme = v
					first = false
				}
			}
		}
		if !hadOld || newExtreme != oldExtreme {
			if hadOld {
				bu.Add(izset.Pair[K, V]{Key: k, Val: oldExtreme}, -1)
			}
			bu.Add(izset.Pair[K, V]{Key: k, Val: newExtreme}, 1)
			m.cache[k] = newExtreme
		}
	}
	return bu.Build()
}
