package op

import (
	"github.com/nelknet/dbsp/izset"
	"github.com/nelknet/dbsp/zset"
)

// joinCore dispatches JoinCore through the fast/generic path selector
// so the EWMA sees every matched-term computation. Both paths are
// semantically identical; pathGeneric additionally builds an
// arrangement of each side first. That arrangement is not kept or
// probed: both paths compute the match through izset.JoinCore.
func joinCore[K, V1, V2 comparable](d *dispatcher, left izset.IndexedZSet[K, V1], right izset.IndexedZSet[K, V2]) izset.IndexedZSet[K, izset.Pair[V1, V2]] {
	switch d.path {
	case pathGeneric:
		zset.Arrange(left.ToZSet())
		zset.Arrange(right.ToZSet())
	}
	return izset.JoinCore(left, right)
}

// InnerJoin maintains left/right indexed state across steps and emits
// the delta of the matched-pair Z-set per spec §4.4's three-term
// formula: δ(L⋈R) = (ΔL⋈R) ⊕ (L⋈ΔR) ⊕ (ΔL⋈ΔR). State is updated
// atomically after the output delta is computed, as required by spec.
type InnerJoin[K, V1, V2 comparable] struct {
	left  izset.IndexedZSet[K, V1]
	right izset.IndexedZSet[K, V2]
	disp  *dispatcher
}

// NewInnerJoin returns an InnerJoin with empty left/right state.
func NewInnerJoin[K, V1, V2 comparable]() *InnerJoin[K, V1, V2] {
	return &InnerJoin[K, V1, V2]{
		left:  izset.Empty[K, V1](),
		right: izset.Empty[K, V2](),
		disp:  newDispatcher(),
	}
}

// Step consumes one (ΔL, ΔR) and returns the matched-pair output delta.
func (j *InnerJoin[K, V1, V2]) Step(deltaL izset.IndexedZSet[K, V1], deltaR izset.IndexedZSet[K, V2]) izset.IndexedZSet[K, izset.Pair[V1, V2]] {
	j.disp.observe(deltaL.Len(), deltaR.Len())
	t1 := joinCore(j.disp, deltaL, j.right)
	t2 := joinCore(j.disp, j.left, deltaR)
	t3 := joinCore(j.disp, deltaL, deltaR)
	out := izset.Add(izset.Add(t1, t2), t3)
	j.left = izset.Add(j.left, deltaL)
	j.right = izset.Add(j.right, deltaR)
	return out
}

// Resident reports the combined key count of both indexed sides
// currently held in memory, the figure a circuit node wraps in
// EstimatedStateBytes for the spill coordinator's budget comparison.
func (j *InnerJoin[K, V1, V2]) Resident() int { return j.left.Len() + j.right.Len() }

// LeftOuterRow is one output row of LeftOuterJoin: v2 is Some when k
// has a match in right, None otherwise.
type LeftOuterRow[K, V1, V2 comparable] struct {
	Key K
	V1  V1
	V2  Option[V2]
}

// LeftOuterJoin emits every left row, paired with every matching right
// value when one exists, or a single None row when it doesn't. Per
// spec §4.4's Open Question, the subtle case is a key whose right-side
// match set disappears or appears entirely within a single step: the
// matched rows are retracted/added for free by the ordinary three-term
// formula, but the None placeholder row must be added or retracted
// explicitly, which is what touchedKeys below does.
type LeftOuterJoin[K, V1, V2 comparable] struct {
	left  izset.IndexedZSet[K, V1]
	right izset.IndexedZSet[K, V2]
	disp  *dispatcher
}

// NewLeftOuterJoin returns a LeftOuterJoin with empty left/right state.
func NewLeftOuterJoin[K, V1, V2 comparable]() *LeftOuterJoin[K, V1, V2] {
	return &LeftOuterJoin[K, V1, V2]{
		left:  izset.Empty[K, V1](),
		right: izset.Empty[K, V2](),
		disp:  newDispatcher(),
	}
}

func (j *LeftOuterJoin[K, V1, V2]) Step(deltaL izset.IndexedZSet[K, V1], deltaR izset.IndexedZSet[K, V2]) zset.ZSet[LeftOuterRow[K, V1, V2]] {
	j.disp.observe(deltaL.Len(), deltaR.Len())
	updatedLeft := izset.Add(j.left, deltaL)
	updatedRight := izset.Add(j.right, deltaR)

	bu := zset.NewBuilder[LeftOuterRow[K, V1, V2]](0)

	matched := izset.Add(izset.Add(
		joinCore(j.disp, deltaL, j.right),
		joinCore(j.disp, j.left, deltaR)),
		joinCore(j.disp, deltaL, deltaR))
	matched.Each(func(k K, p izset.Pair[V1, V2], w zset.Weight) bool {
		bu.Add(LeftOuterRow[K, V1, V2]{Key: k, V1: p.Key, V2: Some(p.Val)}, w)
		return true
	})

	touched := make(map[K]bool)
	deltaL.Keys(func(k K) bool { touched[k] = true; return true })
	deltaR.Keys(func(k K) bool { touched[k] = true; return true })

	for k := range touched {
		hadMatch := j.right.Has(k)
		hasMatch := updatedRight.Has(k)
		switch {
		case !hadMatch && hasMatch:
			// Newly matched: retract the stale None row carried by
			// every left value that already existed at k.
			j.left.Lookup(k).Iterate(func(v1 V1, w zset.Weight) bool {
				bu.Add(LeftOuterRow[K, V1, V2]{Key: k, V1: v1, V2: None[V2]()}, -w)
				return true
			})
		case hadMatch && !hasMatch:
			// Newly unmatched: every left value now present at k
			// (old and new) needs a None row.
			updatedLeft.Lookup(k).Iterate(func(v1 V1, w zset.Weight) bool {
				bu.Add(LeftOuterRow[K, V1, V2]{Key: k, V1: v1, V2: None[V2]()}, w)
				return true
			})
		case !hadMatch && !hasMatch:
			// Still unmatched: brand-new left values at k get a
			// None row directly (no prior state to retract).
			deltaL.Lookup(k).Iterate(func(v1 V1, w zset.Weight) bool {
				bu.Add(LeftOuterRow[K, V1, V2]{Key: k, V1: v1, V2: None[V2]()}, w)
				return true
			})
		}
	}

	j.left = updatedLeft
	j.right = updatedRight
	return bu.Build()
}

// RightOuterRow is one output row of RightOuterJoin: v1 is Some when k
// has a match in left, None otherwise.
type RightOuterRow[K, V1, V2 comparable] struct {
	Key K
	V1  Option[V1]
	V2  V2
}

// RightOuterJoin is LeftOuterJoin with sides swapped.
type RightOuterJoin[K, V1, V2 comparable] struct {
	inner *LeftOuterJoin[K, V2, V1]
}

func NewRightOuterJoin[K, V1, V2 comparable]() *RightOuterJoin[K, V1, V2] {
	return &RightOuterJoin[K, V1, V2]{inner: NewLeftOuterJoin[K, V2, V1]()}
}

func (j *RightOuterJoin[K, V1, V2]) Step(deltaL izset.IndexedZSet[K, V1], deltaR izset.IndexedZSet[K, V2]) zset.ZSet[RightOuterRow[K, V1, V2]] {
	rows := j.inner.Step(deltaR, deltaL)
	bu := zset.NewBuilder[RightOuterRow[K, V1, V2]](rows.Len())
	rows.Iterate(func(r LeftOuterRow[K, V2, V1], w zset.Weight) bool {
		bu.Add(RightOuterRow[K, V1, V2]{Key: r.Key, V1: r.V2, V2: r.V1}, w)
		return true
	})
	return bu.Build()
}

// FullOuterRow is one output row of FullOuterJoin.
type FullOuterRow[K, V1, V2 comparable] struct {
	Key K
	V1  Option[V1]
	V2  Option[V2]
}

// FullOuterJoin combines the left-outer and right-outer adjustments:
// a key with no match on either side never appears (there's nothing
// to anchor a row to), a key matched on one side only carries a single
// None on the other, and a fully matched key carries Some/Some for
// every pair.
type FullOuterJoin[K, V1, V2 comparable] struct {
	left  izset.IndexedZSet[K, V1]
	right izset.IndexedZSet[K, V2]
	disp  *dispatcher
}

func NewFullOuterJoin[K, V1, V2 comparable]() *FullOuterJoin[K, V1, V2] {
	return &FullOuterJoin[K, V1, V2]{
		left:  izset.Empty[K, V1](),
		right: izset.Empty[K, V2](),
		disp:  newDispatcher(),
	}
}

func (j *FullOuterJoin[K, V1, V2]) Step(deltaL izset.IndexedZSet[K, V1], deltaR izset.IndexedZSet[K, V2]) zset.ZSet[FullOuterRow[K, V1, V2]] {
	j.disp.observe(deltaL.Len(), deltaR.Len())
	updatedLeft := izset.Add(j.left, deltaL)
	updatedRight := izset.Add(j.right, deltaR)

	bu := zset.NewBuilder[FullOuterRow[K, V1, V2]](0)

	matched := izset.Add(izset.Add(
		joinCore(j.disp, deltaL, j.right),
		joinCore(j.disp, j.left, deltaR)),
		joinCore(j.disp, deltaL, deltaR))
	matched.Each(func(k K, p izset.Pair[V1, V2], w zset.Weight) bool {
		bu.Add(FullOuterRow[K, V1, V2]{Key: k, V1: Some(p.Key), V2: Some(p.Val)}, w)
		return true
	})

	touched := make(map[K]bool)
	deltaL.Keys(func(k K) bool { touched[k] = true; return true })
	deltaR.Keys(func(k K) bool { touched[k] = true; return true })

	for k := range touched {
		hadLeft, hasLeft := j.left.Has(k), updatedLeft.Has(k)
		hadRight, hasRight := j.right.Has(k), updatedRight.Has(k)

		// Left side's None-on-right placeholder, mirroring LeftOuterJoin.
		switch {
		case !hadRight && hasRight:
			j.left.Lookup(k).Iterate(func(v1 V1, w zset.Weight) bool {
				bu.Add(FullOuterRow[K, V1, V2]{Key: k, V1: Some(v1), V2: None[V2]()}, -w)
				return true
			})
		case hadRight && !hasRight:
			updatedLeft.Lookup(k).Iterate(func(v1 V1, w zset.Weight) bool {
				bu.Add(FullOuterRow[K, V1, V2]{Key: k, V1: Some(v1), V2: None[V2]()}, w)
				return true
			})
		case !hadRight && !hasRight:
			deltaL.Lookup(k).Iterate(func(v1 V1, w zset.Weight) bool {
				bu.Add(FullOuterRow[K, V1, V2]{Key: k, V1: Some(v1), V2: None[V2]()}, w)
				return true
			})
		}

		// Right side's None-on-left placeholder, mirroring RightOuterJoin.
		switch {
		case !hadLeft && hasLeft:
			j.right.Lookup(k).Iterate(func(v2 V2, w zset.Weight) bool {
				bu.Add(FullOuterRow[K, V1, V2]{Key: k, V1: None[V1](), V2: Some(v2)}, -w)
				return true
			})
		case hadLeft && !hasLeft:
			updatedRight.Lookup(k).Iterate(func(v2 V2, w zset.Weight) bool {
				bu.Add(FullOuterRow[K, V1, V2]{Key: k, V1: None[V1](), V2: Some(v2)}, w)
				return true
			})
		case !hadLeft && !hasLeft:
			deltaR.Lookup(k).Iterate(func(v2 V2, w zset.Weight) bool {
				bu.Add(FullOuterRow[K, V1, V2]{Key: k, V1: None[V1](), V2: Some(v2)}, w)
				return true
			})
		}
	}

	j.left = updatedLeft
	j.right = updatedRight
	return bu.Build()
}

// SemiRow is one output row of SemiJoin/AntiJoin: the left value alone,
// keyed by K for the caller's convenience.
type SemiRow[K, V1 comparable] struct {
	Key K
	V1  V1
}

// SemiJoin emits left rows whose key exists in right, with the left
// row's own weight (not multiplied by right's weight: existence only).
// Adjustments fire only when right's key set gains or loses a key,
// per spec §4.4's "Semi: ... adjustments when right key set gains or
// loses keys" note.
type SemiJoin[K, V1, V2 comparable] struct {
	left  izset.IndexedZSet[K, V1]
	right izset.IndexedZSet[K, V2]
}

func NewSemiJoin[K, V1, V2 comparable]() *SemiJoin[K, V1, V2] {
	return &SemiJoin[K, V1, V2]{left: izset.Empty[K, V1](), right: izset.Empty[K, V2]()}
}

func (j *SemiJoin[K, V1, V2]) Step(deltaL izset.IndexedZSet[K, V1], deltaR izset.IndexedZSet[K, V2]) zset.ZSet[SemiRow[K, V1]] {
	updatedLeft := izset.Add(j.left, deltaL)
	updatedRight := izset.Add(j.right, deltaR)
	bu := zset.NewBuilder[SemiRow[K, V1]](0)

	deltaL.Each(func(k K, v1 V1, w zset.Weight) bool {
		if updatedRight.Has(k) {
			bu.Add(SemiRow[K, V1]{Key: k, V1: v1}, w)
		}
		return true
	})

	touched := make(map[K]bool)
	deltaR.Keys(func(k K) bool { touched[k] = true; return true })
	for k := range touched {
		hadRight, hasRight := j.right.Has(k), updatedRight.Has(k)
		switch {
		case !hadRight && hasRight:
			j.left.Lookup(k).Iterate(func(v1 V1, w zset.Weight) bool {
				bu.Add(SemiRow[K, V1]{Key: k, V1: v1}, w)
				return true
			})
		case hadRight && !hasRight:
			j.left.Lookup(k).Iterate(func(v1 V1, w zset.Weight) bool {
				bu.Add(SemiRow[K, V1]{Key: k, V1: v1}, -w)
				return true
			})
		}
	}

	j.left = updatedLeft
	j.right = updatedRight
	return bu.Build()
}

// AntiJoin emits left rows whose key does NOT exist in right; the dual
// of SemiJoin, with the same key-set-transition adjustment logic but
// inverted sign and inverted present/absent test.
type AntiJoin[K, V1, V2 comparable] struct {
	left  izset.IndexedZSet[K, V1]
	right izset.IndexedZSet[K, V2]
}

func NewAntiJoin[K, V1, V2 comparable]() *AntiJoin[K, V1, V2] {
	return &AntiJoin[K, V1, V2]{left: izset.Empty[K, V1](), right: izset.Empty[K, V2]()}
}

func (j *AntiJoin[K, V1, V2]) Step(deltaL izset.IndexedZSet[K, V1], deltaR izset.IndexedZSet[K, V2]) zset.ZSet[SemiRow[K, V1]] {
	updatedLeft := izset.Add(j.left, deltaL)
	updatedRight := izset.Add(j.right, deltaR)
	bu := zset.NewBuilder[SemiRow[K, V1]](0)

	deltaL.Each(func(k K, v1 V1, w zset.Weight) bool {
		if !updatedRight.Has(k) {
			bu.Add(SemiRow[K, V1]{Key: k, V1: v1}, w)
		}
		return true
	})

	touched := make(map[K]bool)
	deltaR.Keys(func(k K) bool { touched[k] = true; return true })
	for k := range touched {
		hadRight, hasRight := j.right.Has(k), updatedRight.Has(k)
		switch {
		case hadRight && !hasRight:
			j.left.Lookup(k).Iterate(func(v1 V1, w zset.Weight) bool {
				bu.Add(SemiRow[K, V1]{Key: k, V1: v1}, w)
				return true
			})
		case !hadRight && hasRight:
			j.left.Lookup(k).Iterate(func(v1 V1, w zset.Weight) bool {
				bu.Add(SemiRow[K, V1]{Key: k, V1: v1}, -w)
				return true
			})
		}
	}

	j.left = updatedLeft
	j.right = updatedRight
	return bu.Build()
}

// CrossJoin maintains both sides as plain (unindexed) Z-sets and
// applies the same three-term formula as InnerJoin, but over the full
// Cartesian product rather than a keyed match.
type CrossJoin[V1, V2 comparable] struct {
	left  zset.ZSet[V1]
	right zset.ZSet[V2]
}

func NewCrossJoin[V1, V2 comparable]() *CrossJoin[V1, V2] {
	return &CrossJoin[V1, V2]{left: zset.Empty[V1](), right: zset.Empty[V2]()}
}

func crossProduct[V1, V2 comparable](a zset.ZSet[V1], b zset.ZSet[V2]) zset.ZSet[izset.Pair[V1, V2]] {
	bu := zset.NewBuilder[izset.Pair[V1, V2]](a.Len() * b.Len())
	a.Iterate(func(v1 V1, w1 zset.Weight) bool {
		b.Iterate(func(v2 V2, w2 zset.Weight) bool {
			bu.Add(izset.Pair[V1, V2]{Key: v1, Val: v2}, w1*w2)
			return true
		})
		return true
	})
	return bu.Build()
}

func (j *CrossJoin[V1, V2]) Step(deltaL zset.ZSet[V1], deltaR zset.ZSet[V2]) zset.ZSet[izset.Pair[V1, V2]] {
	out := zset.Union(zset.Union(
		crossProduct(deltaL, j.right),
		crossProduct(j.left, deltaR)),
		crossProduct(deltaL, deltaR))
	j.left = zset.Add(j.left, deltaL)
	j.right = zset.Add(j.right, deltaR)
	return out
}
