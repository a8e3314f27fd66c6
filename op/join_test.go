package op

import (
	"testing"

	"github.com/nelknet/dbsp/izset"
	"github.com/nelknet/dbsp/zset"
)

func indexed[K, V comparable](pairs ...izset.Pair[K, V]) izset.IndexedZSet[K, V] {
	bu := zset.NewBuilder[izset.Pair[K, V]](len(pairs))
	for _, p := range pairs {
		bu.Add(p, 1)
	}
	return izset.FromPairs(bu.Build())
}

func TestInnerJoinStepMultipliesAcrossDeltas(t *testing.T) {
	j := NewInnerJoin[int, string, string]()

	out1 := j.Step(
		indexed(izset.Pair[int, string]{Key: 1, Val: "a"}, izset.Pair[int, string]{Key: 2, Val: "b"}),
		indexed(izset.Pair[int, string]{Key: 1, Val: "x"}),
	)
	if out1.Lookup(1).GetWeight(izset.Pair[string, string]{Key: "a", Val: "x"}) != 1 {
		t.Fatalf("expected matched pair (a,x) at key 1")
	}
	if out1.Has(2) {
		t.Fatalf("key 2 has no right match yet")
	}

	out2 := j.Step(indexed[int, string](), indexed(izset.Pair[int, string]{Key: 2, Val: "y"}))
	if out2.Lookup(2).GetWeight(izset.Pair[string, string]{Key: "b", Val: "y"}) != 1 {
		t.Fatalf("expected (L⋈ΔR) to produce (b,y) once right catches up at key 2")
	}
}

func TestLeftOuterJoinEmitsNoneThenRetractsOnMatch(t *testing.T) {
	j := NewLeftOuterJoin[int, string, string]()

	out1 := j.Step(
		indexed(izset.Pair[int, string]{Key: 1, Val: "a"}, izset.Pair[int, string]{Key: 2, Val: "b"}),
		indexed(izset.Pair[int, string]{Key: 1, Val: "x"}),
	)
	if out1.GetWeight(LeftOuterRow[int, string, string]{Key: 1, V1: "a", V2: Some("x")}) != 1 {
		t.Fatalf("expected matched row for key 1")
	}
	if out1.GetWeight(LeftOuterRow[int, string, string]{Key: 2, V1: "b", V2: None[string]()}) != 1 {
		t.Fatalf("expected None row for unmatched key 2")
	}

	out2 := j.Step(indexed[int, string](), indexed(izset.Pair[int, string]{Key: 2, Val: "y"}))
	if out2.GetWeight(LeftOuterRow[int, string, string]{Key: 2, V1: "b", V2: None[string]()}) != -1 {
		t.Fatalf("expected retraction of the stale None row for key 2, got weight %d",
			out2.GetWeight(LeftOuterRow[int, string, string]{Key: 2, V1: "b", V2: None[string]()}))
	}
	if out2.GetWeight(LeftOuterRow[int, string, string]{Key: 2, V1: "b", V2: Some("y")}) != 1 {
		t.Fatalf("expected new matched row for key 2")
	}
}

func TestLeftOuterJoinAddsNoneWhenLastMatchRemoved(t *testing.T) {
	j := NewLeftOuterJoin[int, string, string]()
	j.Step(indexed(izset.Pair[int, string]{Key: 1, Val: "a"}), indexed(izset.Pair[int, string]{Key: 1, Val: "x"}))

	out := j.Step(indexed[int, string](), indexed2Neg(izset.Pair[int, string]{Key: 1, Val: "x"}))
	if out.GetWeight(LeftOuterRow[int, string, string]{Key: 1, V1: "a", V2: Some("x")}) != -1 {
		t.Fatalf("expected retraction of matched row once right's last entry is removed")
	}
	if out.GetWeight(LeftOuterRow[int, string, string]{Key: 1, V1: "a", V2: None[string]()}) != 1 {
		t.Fatalf("expected a fresh None row once key 1 becomes unmatched")
	}
}

func indexed2Neg[K, V comparable](pairs ...izset.Pair[K, V]) izset.IndexedZSet[K, V] {
	bu := zset.NewBuilder[izset.Pair[K, V]](len(pairs))
	for _, p := range pairs {
		bu.Add(p, -1)
	}
	return izset.FromPairs(bu.Build())
}

func TestAntiJoinLaterMatchRetractsRow(t *testing.T) {
	j := NewAntiJoin[int, string, string]()

	out1 := j.Step(
		indexed(
			izset.Pair[int, string]{Key: 1, Val: "a"},
			izset.Pair[int, string]{Key: 2, Val: "b"},
			izset.Pair[int, string]{Key: 3, Val: "c"},
		),
		indexed(izset.Pair[int, string]{Key: 1, Val: "_"}),
	)
	if out1.GetWeight(SemiRow[int, string]{Key: 2, V1: "b"}) != 1 {
		t.Fatalf("expected key 2 in anti-join output")
	}
	if out1.GetWeight(SemiRow[int, string]{Key: 3, V1: "c"}) != 1 {
		t.Fatalf("expected key 3 in anti-join output")
	}
	if out1.GetWeight(SemiRow[int, string]{Key: 1, V1: "a"}) != 0 {
		t.Fatalf("expected key 1 absent: it already has a right match")
	}

	out2 := j.Step(indexed[int, string](), indexed(izset.Pair[int, string]{Key: 2, Val: "_"}))
	if out2.GetWeight(SemiRow[int, string]{Key: 2, V1: "b"}) != -1 {
		t.Fatalf("expected retraction of key 2 once it gains a right match")
	}
}

func TestSemiJoinExistenceOnly(t *testing.T) {
	j := NewSemiJoin[int, string, string]()
	out := j.Step(
		indexed(izset.Pair[int, string]{Key: 1, Val: "a"}),
		indexed(izset.Pair[int, string]{Key: 1, Val: "x"}, izset.Pair[int, string]{Key: 1, Val: "y"}),
	)
	if out.GetWeight(SemiRow[int, string]{Key: 1, V1: "a"}) != 1 {
		t.Fatalf("semi join weight must not multiply by the right side's cardinality")
	}
}

func TestCrossJoinMultipliesWeights(t *testing.T) {
	j := NewCrossJoin[string, string]()
	l := zset.NewBuilder[string](0).Add("a", 2).Build()
	r := zset.NewBuilder[string](0).Add("x", 3).Build()
	out := j.Step(l, r)
	if out.GetWeight((izset.Pair[string, string]{Key: "a", Val: "x"})) != 6 {
		t.Fatalf("expected cross product weight 6")
	}
}

func TestFullOuterJoinBothSidesUnmatched(t *testing.T) {
	j := NewFullOuterJoin[int, string, string]()
	out := j.Step(
		indexed(izset.Pair[int, string]{Key: 1, Val: "a"}),
		indexed(izset.Pair[int, string]{Key: 2, Val: "x"}),
	)
	if out.GetWeight(FullOuterRow[int, string, string]{Key: 1, V1: Some("a"), V2: None[string]()}) != 1 {
		t.Fatalf("expected left-unmatched row for key 1")
	}
	if out.GetWeight(FullOuterRow[int, string, string]{Key: 2, V1: None[string](), V2: Some("x")}) != 1 {
		t.Fatalf("expected right-unmatched row for key 2")
	}
}
