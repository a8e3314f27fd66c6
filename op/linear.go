package op

import (
	"github.com/nelknet/dbsp/izset"
	"github.com/nelknet/dbsp/zset"
)

// MapKeys, Filter, FlatMap, Negate, Union, Difference, and Distinct are
// the stateless linear operators of spec §4.3; they are already fully
// general as zset.MapKeys / zset.Filter / zset.FlatMap / zset.Negate /
// zset.Union / zset.Difference / zset.Distinct, so package op re-exposes
// them here only where a fused variant needs a building block the
// zset package doesn't already provide, plus the fused variants
// themselves. MapFilter, FilterMap, FilterGroupByAggregate, JoinMap and
// JoinProject perform both constituent passes in a single iteration;
// MapGroupBy is the exception and runs its two passes one after the
// other.

// MapFilter applies f to every key and keeps the result only where p
// holds, in one pass: equivalent to Filter(p, MapKeys(f, a)) but
// without materializing the intermediate mapped Z-set.
func MapFilter[K, K2 comparable](f func(K) K2, p func(K2) bool, a zset.ZSet[K]) zset.ZSet[K2] {
	bu := zset.NewBuilder[K2](a.Len())
	a.Iterate(func(k K, w zset.Weight) bool {
		k2 := f(k)
		if p(k2) {
			bu.Add(k2, w)
		}
		return true
	})
	return bu.Build()
}

// FilterMap keeps keys satisfying p and then maps them, in one pass:
// equivalent to MapKeys(f, Filter(p, a)).
func FilterMap[K, K2 comparable](p func(K) bool, f func(K) K2, a zset.ZSet[K]) zset.ZSet[K2] {
	bu := zset.NewBuilder[K2](a.Len())
	a.Iterate(func(k K, w zset.Weight) bool {
		if p(k) {
			bu.Add(f(k), w)
		}
		return true
	})
	return bu.Build()
}

// MapGroupBy maps every key with f, then groups the result by keyFn:
// it is literally izset.GroupBy(keyFn, MapKeys(f, a)), two passes with
// the mapped Z-set materialized in between, not a single fused pass.
func MapGroupBy[K, K2, G comparable](f func(K) K2, keyFn func(K2) G, a zset.ZSet[K]) izset.IndexedZSet[G, K2] {
	return izset.GroupBy(keyFn, MapKeys(f, a))
}

// MapKeys re-exposes zset.MapKeys for symmetry with the fused variants
// above, which are defined in this package.
func MapKeys[K, K2 comparable](f func(K) K2, a zset.ZSet[K]) zset.ZSet[K2] {
	return zset.MapKeys(f, a)
}

// FilterGroupByAggregate keeps keys satisfying p, groups the rest by
// keyFn, and folds each group with step starting from seed, all in one
// pass over a; the per-group accumulators are returned as a map. This
// is the fused form of Filter -> GroupBy -> Aggregate.
func FilterGroupByAggregate[K, G comparable, Acc any](
	p func(K) bool,
	keyFn func(K) G,
	seed Acc,
	step func(acc Acc, v K, w zset.Weight) Acc,
	a zset.ZSet[K],
) map[G]Acc {
	accs := make(map[G]Acc)
	a.Iterate(func(k K, w zset.Weight) bool {
		if !p(k) {
			return true
		}
		g := keyFn(k)
		acc, ok := accs[g]
		if !ok {
			acc = seed
		}
		accs[g] = step(acc, k, w)
		return true
	})
	return accs
}

// JoinMap performs JoinCore and maps every output pair with f in one
// pass, avoiding materializing the intermediate Pair[V1, V2] Z-set per
// key before mapping it.
func JoinMap[K, V1, V2 comparable, Out comparable](
	left izset.IndexedZSet[K, V1],
	right izset.IndexedZSet[K, V2],
	f func(k K, v1 V1, v2 V2) Out,
) zset.ZSet[Out] {
	bu := zset.NewBuilder[Out](0)
	left.Each(func(k K, v1 V1, w1 zset.Weight) bool {
		rz := right.Lookup(k)
		rz.Iterate(func(v2 V2, w2 zset.Weight) bool {
			bu.Add(f(k, v1, v2), w1*w2)
			return true
		})
		return true
	})
	return bu.Build()
}

// JoinProject is JoinMap specialized to projecting out a subset of
// fields via a projector, matching the spec's naming for the common
// case where the fused map is just a field projection rather than an
// arbitrary combination.
func JoinProject[K, V1, V2 comparable, Out comparable](
	left izset.IndexedZSet[K, V1],
	right izset.IndexedZSet[K, V2],
	project func(v1 V1, v2 V2) Out,
) zset.ZSet[Out] {
	return JoinMap(left, right, func(_ K, v1 V1, v2 V2) Out { return project(v1, v2) })
}
