package circuit

import (
	"context"
	"testing"

	"github.com/nelknet/dbsp/izset"
	"github.com/nelknet/dbsp/op"
	"github.com/nelknet/dbsp/storage"
	"github.com/nelknet/dbsp/zset"
)

// izsetSource is a minimal source node for tests, analogous to
// circuit_test.go's passthrough but over an IndexedZSet rather than a
// plain ZSet, since no handle type exists for indexed state.
type izsetSource[K comparable, V comparable] struct {
	BaseOperator
	content izset.IndexedZSet[K, V]
}

func (s *izsetSource[K, V]) Step(ctx context.Context) error { return nil }
func (s *izsetSource[K, V]) Output() izset.IndexedZSet[K, V] { return s.content }

func TestJoinNodeRunsInsideCircuit(t *testing.T) {
	left := izset.FromPairs(zset.Singleton(izset.Pair[int, string]{Key: 1, Val: "a"}, 1))
	right := izset.FromPairs(zset.Singleton(izset.Pair[int, string]{Key: 1, Val: "x"}, 1))

	leftSrc := &izsetSource[int, string]{content: left}
	rightSrc := &izsetSource[int, string]{content: right}
	joinNode := NewJoinNode[int, string, string](op.NewInnerJoin[int, string, string](), leftSrc.Output, rightSrc.Output)

	b := NewCircuitBuilder()
	b.AddNode("left", leftSrc)
	b.AddNode("right", rightSrc)
	b.AddNode("join", joinNode, "left", "right")
	c, err := b.Build()
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}

	rt := NewRuntime(c, RuntimeConfig{})
	if err := rt.Start(); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if err := rt.StepAsync(context.Background()); err != nil {
		t.Fatalf("unexpected step error: %v", err)
	}

	out := joinNode.Output()
	if out.Len() != 1 || !out.Has(1) {
		t.Fatalf("expected one matched key, got %+v", out)
	}
	matched := out.Lookup(1)
	if w := matched.GetWeight(izset.Pair[string, string]{Key: "a", Val: "x"}); w != 1 {
		t.Fatalf("expected (a,x) weight 1, got %d", w)
	}
}

func TestAggregateNodeRunsInsideCircuitAndSpillsToStore(t *testing.T) {
	words := &wordSource{content: zset.Singleton("hello", 3)}
	agg := op.NewGroupAggregate(func(s string) string { return s }, op.CountSpec[string](), func(c int64) bool { return c == 0 })
	store := storage.NewMemoryStore()
	node := NewAggregateNode[string, string, int64](agg, words.Output, store,
		func(k string) []byte { return []byte(k) },
		func(acc int64) int64 { return acc },
	)

	b := NewCircuitBuilder()
	b.AddNode("words", words)
	b.AddNode("count", node, "words")
	c, err := b.Build()
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}

	rt := NewRuntime(c, RuntimeConfig{})
	if err := rt.Start(); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if err := rt.StepAsync(context.Background()); err != nil {
		t.Fatalf("unexpected step error: %v", err)
	}

	out := node.Output()
	if w := out.GetWeight(izset.Pair[string, int64]{Key: "hello", Val: 3}); w != 1 {
		t.Fatalf("expected (hello,3) inserted with weight 1, got %d", w)
	}
	if node.EstimatedStateBytes() == 0 {
		t.Fatalf("expected nonzero estimated state bytes with a resident group")
	}

	spilled, err := c.SpillHeaviest(context.Background())
	if err != nil {
		t.Fatalf("unexpected spill error: %v", err)
	}
	if spilled != "count" {
		t.Fatalf("expected the aggregate node to be the heaviest, got %q", spilled)
	}
	gotW, ok, err := store.Get(context.Background(), []byte("hello"))
	if err != nil || !ok || gotW != 3 {
		t.Fatalf("expected spilled group to land in the store as (hello,3), got w=%d ok=%v err=%v", gotW, ok, err)
	}
}

// wordSource is a fixed-content source node over a plain ZSet.
type wordSource struct {
	BaseOperator
	content zset.ZSet[string]
}

func (s *wordSource) Step(ctx context.Context) error { return nil }
func (s *wordSource) Output() zset.ZSet[string]      { return s.content }
