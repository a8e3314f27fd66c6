package op

import (
	"testing"

	"github.com/nelknet/dbsp/izset"
	"github.com/nelknet/dbsp/zset"
)

type word struct {
	text string
}

func TestGroupAggregateCountIsWordCount(t *testing.T) {
	g := NewGroupAggregate[string, word, int64](
		func(w word) string { return w.text },
		CountSpec[word](),
		func(acc int64) bool { return acc == 0 },
	)

	d1 := zset.NewBuilder[word](0).Add(word{"the"}, 2).Add(word{"cat"}, 1).Build()
	out1 := g.Step(d1)
	if out1.GetWeight(izset.Pair[string, int64]{Key: "the", Val: 2}) != 1 {
		t.Fatalf("expected (the, 2) inserted")
	}

	d2 := zset.NewBuilder[word](0).Add(word{"the"}, 1).Build()
	out2 := g.Step(d2)
	if out2.GetWeight(izset.Pair[string, int64]{Key: "the", Val: 2}) != -1 {
		t.Fatalf("expected retraction of stale count (the, 2)")
	}
	if out2.GetWeight(izset.Pair[string, int64]{Key: "the", Val: 3}) != 1 {
		t.Fatalf("expected insertion of updated count (the, 3)")
	}
}

func TestGroupAggregateDropsEmptiedGroup(t *testing.T) {
	g := NewGroupAggregate[string, word, int64](
		func(w word) string { return w.text },
		CountSpec[word](),
		func(acc int64) bool { return acc == 0 },
	)
	g.Step(zset.NewBuilder[word](0).Add(word{"cat"}, 1).Build())
	out := g.Step(zset.NewBuilder[word](0).Add(word{"cat"}, -1).Build())
	if out.GetWeight(izset.Pair[string, int64]{Key: "cat", Val: 1}) != -1 {
		t.Fatalf("expected retraction once group empties")
	}
	if out.GetWeight(izset.Pair[string, int64]{Key: "cat", Val: 0}) != 0 {
		t.Fatalf("an emptied group must not reappear with its zero value")
	}
}

func TestAvgSpecComputesMean(t *testing.T) {
	g := NewGroupAggregate[string, int, AvgState](
		func(int) string { return "all" },
		AvgSpec[int](func(v int) int64 { return int64(v) }),
		func(acc AvgState) bool { return acc.Count == 0 },
	)
	out := g.Step(zset.NewBuilder[int](0).Add(2, 1).Add(4, 1).Build())
	var got AvgState
	out.Iterate(func(p izset.Pair[string, AvgState], w zset.Weight) bool {
		if w > 0 {
			got = p.Val
		}
		return true
	})
	if got.Value() != 3 {
		t.Fatalf("expected mean 3, got %v", got.Value())
	}
}

func TestMinMaxTracksRunningMinimum(t *testing.T) {
	mm := NewMinMax[string, int](func(int) string { return "k" }, func(a, b int) bool { return a < b })
	out1 := mm.Step(zset.NewBuilder[int](0).Add(5, 1).Add(3, 1).Build())
	if out1.GetWeight(izset.Pair[string, int]{Key: "k", Val: 3}) != 1 {
		t.Fatalf("expected min 3 inserted")
	}

	out2 := mm.Step(zset.NewBuilder[int](0).Add(3, -1).Build())
	if out2.GetWeight(izset.Pair[string, int]{Key: "k", Val: 3}) != -1 {
		t.Fatalf("expected retraction of 3 once removed")
	}
	if out2.GetWeight(izset.Pair[string, int]{Key: "k", Val: 5}) != 1 {
		t.Fatalf("expected new minimum 5 after 3 is removed")
	}
}
