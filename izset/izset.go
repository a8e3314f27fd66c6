// Package izset implements indexed Z-sets: mappings from a key K to a
// zset.ZSet[V], the storage shape used for grouping and for the
// build/probe side of every join variant in package op (spec §3.2, §4.2).
package izset

import "github.com/nelknet/dbsp/zset"

// IndexedZSet is a mapping K -> ZSet[V]. A key whose Z-set becomes
// empty (all weights cancel to zero) is removed entirely, so Len()
// always reflects the number of keys with nonempty content.
type IndexedZSet[K comparable, V comparable] struct {
	m map[K]zset.ZSet[V]
}

// Empty returns the indexed Z-set with no keys.
func Empty[K comparable, V comparable]() IndexedZSet[K, V] {
	return IndexedZSet[K, V]{m: make(map[K]zset.ZSet[V])}
}

// GroupBy partitions z by keyFn, producing an indexed Z-set where each
// key maps to the Z-set of values that hashed to it, weights preserved.
func GroupBy[K comparable, V comparable](keyFn func(V) K, z zset.ZSet[V]) IndexedZSet[K, V] {
	out := make(map[K][]valWeight[V])
	z.Iterate(func(v V, w zset.Weight) bool {
		k := keyFn(v)
		out[k] = append(out[k], valWeight[V]{v, w})
		return true
	})
	ix := Empty[K, V]()
	for k, vws := range out {
		bu := zset.NewBuilder[V](len(vws))
		for _, vw := range vws {
			bu.Add(vw.v, vw.w)
		}
		zs := bu.Build()
		if zs.Len() > 0 {
			ix.m[k] = zs
		}
	}
	return ix
}

type valWeight[V any] struct {
	v V
	w zset.Weight
}

// Pair is a concrete (key, value) tuple, used by FromPairs/ToZSet in
// place of the spec's abstract (K,V) pair type (Go generics have no
// first-class tuple type, so FromZSet from spec §4.2 is realized here
// as FromPairs over a concrete Pair[K, V]).
type Pair[K comparable, V comparable] struct {
	Key K
	Val V
}

// FromPairs builds an IndexedZSet[K, V] from a Z-set of Pair[K, V] in
// one builder pass: equivalent to GroupBy(func(p) { return p.Key }, z)
// but avoids constructing an intermediate value Z-set per key twice.
func FromPairs[K comparable, V comparable](z zset.ZSet[Pair[K, V]]) IndexedZSet[K, V] {
	builders := make(map[K]*zset.Builder[V])
	z.Iterate(func(p Pair[K, V], w zset.Weight) bool {
		bu, ok := builders[p.Key]
		if !ok {
			bu = zset.NewBuilder[V](4)
			builders[p.Key] = bu
		}
		bu.Add(p.Val, w)
		return true
	})
	ix := Empty[K, V]()
	for k, bu := range builders {
		zs := bu.Build()
		if zs.Len() > 0 {
			ix.m[k] = zs
		}
	}
	return ix
}

// ToZSet is the inverse of FromPairs: flattens the indexed Z-set back
// into a Z-set of (key, value) pairs.
func (ix IndexedZSet[K, V]) ToZSet() zset.ZSet[Pair[K, V]] {
	bu := zset.NewBuilder[Pair[K, V]](0)
	for k, zs := range ix.m {
		zs.Iterate(func(v V, w zset.Weight) bool {
			bu.Add(Pair[K, V]{Key: k, Val: v}, w)
			return true
		})
	}
	return bu.Build()
}

// Lookup returns the Z-set stored at k, or zset.Empty if k is absent.
func (ix IndexedZSet[K, V]) Lookup(k K) zset.ZSet[V] {
	if zs, ok := ix.m[k]; ok {
		return zs
	}
	return zset.Empty[V]()
}

// Has reports whether k has any nonempty content.
func (ix IndexedZSet[K, V]) Has(k K) bool {
	_, ok := ix.m[k]
	return ok
}

// Len returns the number of keys with nonempty content.
func (ix IndexedZSet[K, V]) Len() int { return len(ix.m) }

// Keys calls fn for every key with nonempty content.
func (ix IndexedZSet[K, V]) Keys(fn func(K) bool) {
	for k := range ix.m {
		if !fn(k) {
			return
		}
	}
}

// Each calls fn for every (key, value, weight) triple.
func (ix IndexedZSet[K, V]) Each(fn func(k K, v V, w zset.Weight) bool) {
	for k, zs := range ix.m {
		stop := false
		zs.Iterate(func(v V, w zset.Weight) bool {
			if !fn(k, v, w) {
				stop = true
				return false
			}
			return true
		})
		if stop {
			return
		}
	}
}

// Add returns the key-wise Z-set sum of a and b, removing any key
// whose combined Z-set becomes empty.
func Add[K comparable, V comparable](a, b IndexedZSet[K, V]) IndexedZSet[K, V] {
	out := Empty[K, V]()
	seen := make(map[K]bool, len(a.m)+len(b.m))
	for k := range a.m {
		seen[k] = true
	}
	for k := range b.m {
		seen[k] = true
	}
	for k := range seen {
		sum := zset.Add(a.Lookup(k), b.Lookup(k))
		if sum.Len() > 0 {
			out.m[k] = sum
		}
	}
	return out
}

// Negate returns the key-wise negation of a.
func Negate[K comparable, V comparable](a IndexedZSet[K, V]) IndexedZSet[K, V] {
	out := Empty[K, V]()
	for k, zs := range a.m {
		out.m[k] = zset.Negate(zs)
	}
	return out
}

// JoinCore pairs every (left value, right value) with a common key,
// multiplying weights, and drops keys present in only one side. This
// is the batch building block the incremental join variants in package
// op apply to (ΔL, R), (L, ΔR), and (ΔL, ΔR) per spec §4.4.
func JoinCore[K comparable, V1 comparable, V2 comparable](left IndexedZSet[K, V1], right IndexedZSet[K, V2]) IndexedZSet[K, Pair[V1, V2]] {
	out := Empty[K, Pair[V1, V2]]()
	for k, lz := range left.m {
		rz, ok := right.m[k]
		if !ok {
			continue
		}
		bu := zset.NewBuilder[Pair[V1, V2]](lz.Len() * rz.Len())
		lz.Iterate(func(v1 V1, w1 zset.Weight) bool {
			rz.Iterate(func(v2 V2, w2 zset.Weight) bool {
				bu.Add(Pair[V1, V2]{v1, v2}, w1*w2)
				return true
			})
			return true
		})
		zs := bu.Build()
		if zs.Len() > 0 {
			out.m[k] = zs
		}
	}
	return out
}
