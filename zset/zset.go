// Package zset implements the Z-set algebra: finite mappings from
// comparable keys to nonzero integer weights, closed under pointwise
// addition, with an adaptive storage backend that grows from a small
// unsorted array through a mutable hash table into a compacted,
// multi-level trace as a collection's size and churn increase.
//
// A Z-set is a value type: operators never mutate one another's Z-sets
// in place. The adaptive layout transitions (backend.go) are an
// implementation detail entirely hidden behind Iterate/Equal/Weight.
package zset

import "fmt"

// Weight is the multiplicity of a key in a Z-set. Positive weights are
// insertions, negative weights are deletions/retractions. A weight of
// zero must never be observable: singleton, Add, and every operator
// in package op drop zero-weight entries as they produce output.
type Weight = int64

// ZSet is a finite mapping from K to nonzero Weight. The zero value is
// not useful; construct one with Empty[K]() or a Builder.
type ZSet[K comparable] struct {
	b *backend[K]
}

// Empty returns the additive identity: the Z-set with no entries.
func Empty[K comparable]() ZSet[K] {
	return ZSet[K]{b: newBackend[K](DefaultSmallsetN)}
}

// EmptyWithPolicy returns the additive identity using a non-default
// adaptive-backend policy (see Policy).
func EmptyWithPolicy[K comparable](p Policy) ZSet[K] {
	b := newBackend[K](p.SmallsetN)
	b.policy = p
	return ZSet[K]{b: b}
}

// Singleton returns a one-entry Z-set, or Empty if w == 0.
func Singleton[K comparable](k K, w Weight) ZSet[K] {
	z := Empty[K]()
	if w == 0 {
		return z
	}
	z.b.upsert(k, w)
	return z
}

func wrap[K comparable](b *backend[K]) ZSet[K] { return ZSet[K]{b: b} }

// IsZero reports whether z was constructed via the zero value (no
// Empty/Singleton/Builder call). Such a value has no backend and must
// not be operated on directly; it exists only so ZSet is a usable map
// value and struct field default.
func (z ZSet[K]) IsZero() bool { return z.b == nil }

func (z ZSet[K]) backendOrEmpty() *backend[K] {
	if z.b == nil {
		return newBackend[K](DefaultSmallsetN)
	}
	return z.b
}

// GetWeight returns the weight of k, or 0 if k is absent.
func (z ZSet[K]) GetWeight(k K) Weight {
	if z.b == nil {
		return 0
	}
	return z.b.get(k)
}

// Count returns the sum of absolute weights: the multiset cardinality.
func (z ZSet[K]) Count() int64 {
	if z.b == nil {
		return 0
	}
	var n int64
	z.b.iterateConsolidated(func(_ K, w Weight) bool {
		if w < 0 {
			n -= w
		} else {
			n += w
		}
		return true
	})
	return n
}

// Len returns the number of distinct keys with nonzero weight.
func (z ZSet[K]) Len() int {
	if z.b == nil {
		return 0
	}
	n := 0
	z.b.iterateConsolidated(func(K, Weight) bool { n++; return true })
	return n
}

// Iterate calls fn for each (key, weight) in the consolidated logical
// view, in an unspecified but stable-for-the-call order. Iteration may
// force a flush of pending memtable entries into the trace. fn must
// not mutate z. Iteration stops early if fn returns false.
func (z ZSet[K]) Iterate(fn func(k K, w Weight) bool) {
	if z.b == nil {
		return
	}
	z.b.iterateConsolidated(fn)
}

// Add returns the pointwise sum of a and b: a commutative, associative
// operation with Empty as identity.
func Add[K comparable](a, b ZSet[K]) ZSet[K] {
	out := newBackend[K](policyOf(a, b).SmallsetN)
	out.policy = policyOf(a, b)
	a.backendOrEmpty().iterateConsolidated(func(k K, w Weight) bool {
		out.upsert(k, w)
		return true
	})
	b.backendOrEmpty().iterateConsolidated(func(k K, w Weight) bool {
		out.upsert(k, w)
		return true
	})
	return wrap(out)
}

// Negate returns a Z-set with every weight negated, so
// Add(a, Negate(a)) == Empty.
func Negate[K comparable](a ZSet[K]) ZSet[K] {
	out := newBackend[K](a.backendOrEmpty().policy.SmallsetN)
	out.policy = a.backendOrEmpty().policy
	a.backendOrEmpty().iterateConsolidated(func(k K, w Weight) bool {
		out.upsert(k, -w)
		return true
	})
	return wrap(out)
}

// ScalarMul multiplies every weight by c. c == 0 yields Empty.
func ScalarMul[K comparable](c int64, a ZSet[K]) ZSet[K] {
	out := newBackend[K](a.backendOrEmpty().policy.SmallsetN)
	out.policy = a.backendOrEmpty().policy
	if c == 0 {
		return wrap(out)
	}
	a.backendOrEmpty().iterateConsolidated(func(k K, w Weight) bool {
		out.upsert(k, w*c)
		return true
	})
	return wrap(out)
}

// Union is sugar for Add.
func Union[K comparable](a, b ZSet[K]) ZSet[K] { return Add(a, b) }

// Difference is sugar for Add(a, Negate(b)).
func Difference[K comparable](a, b ZSet[K]) ZSet[K] { return Add(a, Negate(b)) }

// MapKeys applies f to every key, combining weights when f collapses
// distinct keys onto the same image. The total weight sum (not the
// count of distinct keys) is preserved.
func MapKeys[K, K2 comparable](f func(K) K2, a ZSet[K]) ZSet[K2] {
	out := newBackend[K2](DefaultSmallsetN)
	a.backendOrEmpty().iterateConsolidated(func(k K, w Weight) bool {
		out.upsert(f(k), w)
		return true
	})
	return wrap(out)
}

// Filter keeps only keys for which p holds; weights are unchanged.
func Filter[K comparable](p func(K) bool, a ZSet[K]) ZSet[K] {
	out := newBackend[K](a.backendOrEmpty().policy.SmallsetN)
	out.policy = a.backendOrEmpty().policy
	a.backendOrEmpty().iterateConsolidated(func(k K, w Weight) bool {
		if p(k) {
			out.upsert(k, w)
		}
		return true
	})
	return wrap(out)
}

// FlatMap applies f to every key, yielding zero or more output keys
// per input key; each output key receives the input weight, and
// multiple occurrences (from the same or different input keys)
// accumulate via normal addition.
func FlatMap[K, K2 comparable](f func(K) []K2, a ZSet[K]) ZSet[K2] {
	out := newBackend[K2](DefaultSmallsetN)
	a.backendOrEmpty().iterateConsolidated(func(k K, w Weight) bool {
		for _, k2 := range f(k) {
			out.upsert(k2, w)
		}
		return true
	})
	return wrap(out)
}

// Distinct normalizes every weight to its sign: +1 for positive
// weights, -1 for negative, and drops keys that are exactly zero
// (which cannot appear in a well-formed Z-set anyway).
func Distinct[K comparable](a ZSet[K]) ZSet[K] {
	out := newBackend[K](a.backendOrEmpty().policy.SmallsetN)
	out.policy = a.backendOrEmpty().policy
	a.backendOrEmpty().iterateConsolidated(func(k K, w Weight) bool {
		switch {
		case w > 0:
			out.upsert(k, 1)
		case w < 0:
			out.upsert(k, -1)
		}
		return true
	})
	return wrap(out)
}

// Equal reports whether a and b represent the same logical multiset,
// independent of physical layout or iteration order.
func Equal[K comparable](a, b ZSet[K]) bool {
	if a.Len() != b.Len() {
		return false
	}
	eq := true
	a.backendOrEmpty().iterateConsolidated(func(k K, w Weight) bool {
		if b.GetWeight(k) != w {
			eq = false
			return false
		}
		return true
	})
	return eq
}

func (z ZSet[K]) String() string {
	return fmt.Sprintf("ZSet(len=%d, count=%d)", z.Len(), z.Count())
}

// Stats returns a snapshot of the adaptive-backend runtime statistics
// described in spec §4.1.1 (EWMA insert rate, cancellation rate, time
// since last flush, arranged-subscriber count).
func (z ZSet[K]) Stats() Stats {
	if z.b == nil {
		return Stats{}
	}
	return z.b.stats()
}

func policyOf[K comparable](a, b ZSet[K]) Policy {
	if a.b != nil {
		return a.b.policy
	}
	if b.b != nil {
		return b.b.policy
	}
	return DefaultPolicy()
}
