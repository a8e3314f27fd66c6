package circuit

import (
	"context"

	"github.com/nelknet/dbsp/izset"
	"github.com/nelknet/dbsp/op"
	"github.com/nelknet/dbsp/storage"
	"github.com/nelknet/dbsp/zset"
)

// JoinNode adapts an op.InnerJoin into a circuit Operator: each step it
// pulls a fresh delta from each upstream side via left/right, feeds
// them to the join's Step, and publishes the matched-pair output for
// downstream nodes to read via Output. This is the missing link
// between package op's pure incremental algebra and the circuit graph
// that schedules it (spec §4.7).
type JoinNode[K, V1, V2 comparable] struct {
	BaseOperator
	join  *op.InnerJoin[K, V1, V2]
	left  func() izset.IndexedZSet[K, V1]
	right func() izset.IndexedZSet[K, V2]
	out   izset.IndexedZSet[K, izset.Pair[V1, V2]]
}

// NewJoinNode wraps join, pulling its per-step deltas from left/right.
func NewJoinNode[K, V1, V2 comparable](
	join *op.InnerJoin[K, V1, V2],
	left func() izset.IndexedZSet[K, V1],
	right func() izset.IndexedZSet[K, V2],
) *JoinNode[K, V1, V2] {
	return &JoinNode[K, V1, V2]{join: join, left: left, right: right}
}

func (n *JoinNode[K, V1, V2]) Step(ctx context.Context) error {
	n.out = n.join.Step(n.left(), n.right())
	return nil
}

// Output returns the matched-pair delta produced by the most recent Step.
func (n *JoinNode[K, V1, V2]) Output() izset.IndexedZSet[K, izset.Pair[V1, V2]] { return n.out }

// EstimatedStateBytes approximates the join's indexed-state footprint
// from its resident key count; exact byte accounting isn't the point,
// relative growth against the spill coordinator's budget is.
func (n *JoinNode[K, V1, V2]) EstimatedStateBytes() int64 {
	return int64(n.join.Resident()) * stateBytesPerKey
}

// AggregateNode adapts an op.GroupAggregate into a circuit Operator,
// pulling its input delta from an upstream node via input and
// publishing the retract/insert accumulator delta via Output.
//
// When store is non-nil, Spill persists a snapshot of every resident
// group's accumulator to it (spec §10's per-operator spill hook), the
// way aggregate.Aggregator.spillTable is invoked from Consume once the
// in-memory row count exceeds a limit. Unlike the teacher's spiller,
// this Spill does not evict groups from memory afterward: storage.Store
// only records one int64 weight per key, which is lossless for
// Acc=int64 (CountSpec/SumSpec) but would require a decode path for
// richer accumulators (AvgState) before eviction could be undone
// safely, so Spill here is a durability checkpoint rather than a
// memory-reclaiming eviction (see DESIGN.md).
type AggregateNode[K comparable, V comparable, Acc comparable] struct {
	BaseOperator
	agg       *op.GroupAggregate[K, V, Acc]
	input     func() zset.ZSet[V]
	out       zset.ZSet[izset.Pair[K, Acc]]
	store     storage.Store
	keyBytes  func(K) []byte
	accWeight func(Acc) int64
	epoch     uint64
}

// NewAggregateNode wraps agg, pulling its per-step input from input. A
// nil store disables Spill (it becomes a no-op), matching
// BaseOperator's default for operators with nothing to spill.
func NewAggregateNode[K comparable, V comparable, Acc comparable](
	agg *op.GroupAggregate[K, V, Acc],
	input func() zset.ZSet[V],
	store storage.Store,
	keyBytes func(K) []byte,
	accWeight func(Acc) int64,
) *AggregateNode[K, V, Acc] {
	return &AggregateNode[K, V, Acc]{agg: agg, input: input, store: store, keyBytes: keyBytes, accWeight: accWeight}
}

func (n *AggregateNode[K, V, Acc]) Step(ctx context.Context) error {
	n.out = n.agg.Step(n.input())
	n.epoch++
	return nil
}

// Output returns the (key, accumulator) delta produced by the most
// recent Step.
func (n *AggregateNode[K, V, Acc]) Output() zset.ZSet[izset.Pair[K, Acc]] { return n.out }

// EstimatedStateBytes approximates the group table's footprint from
// its resident group count.
func (n *AggregateNode[K, V, Acc]) EstimatedStateBytes() int64 {
	return int64(n.agg.Resident()) * stateBytesPerKey
}

// Spill writes every resident group's (key, accumulator) pair to the
// configured Store under the node's running epoch counter, or does
// nothing if no store was configured.
func (n *AggregateNode[K, V, Acc]) Spill(ctx context.Context) error {
	if n.store == nil {
		return nil
	}
	var entries []storage.Entry
	n.agg.Each(func(k K, acc Acc) bool {
		entries = append(entries, storage.Entry{Key: n.keyBytes(k), Weight: n.accWeight(acc)})
		return true
	})
	if len(entries) == 0 {
		return nil
	}
	return n.store.StoreBatch(ctx, n.epoch, entries)
}

// stateBytesPerKey is a fixed per-resident-key overhead estimate (key
// bytes plus weight/accumulator column plus map bucket overhead), the
// same coarse constant-factor estimate used across the adapter nodes
// since EstimatedStateBytes only needs to track relative growth, not
// exact allocation size.
const stateBytesPerKey = 64
