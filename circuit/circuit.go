package circuit

import (
	"context"
	"fmt"
	"time"

	"github.com/RoaringBitmap/roaring"
	"golang.org/x/sync/errgroup"

	"github.com/nelknet/dbsp/dbsperr"
)

// Circuit is a frozen dataflow graph: a fixed node set, a fixed
// topological order, and the levelized waves the scheduler dispatches
// to the worker pool. A Circuit has no notion of "running" by itself;
// Runtime drives it through repeated Step calls.
type Circuit struct {
	nodes  []node
	order  []NodeID
	levels [][]NodeID
	names  map[string]NodeID
}

// NodeID returns the id assigned to name, or false if name is unknown.
func (c *Circuit) NodeID(name string) (NodeID, bool) {
	id, ok := c.names[name]
	return id, ok
}

// Step runs every node exactly once, level by level: nodes within a
// level have no dependency on one another and run concurrently on the
// worker pool (bounded by workers); the scheduler waits for a whole
// level to finish before starting the next, since a later level may
// read the former's output.
//
// readySet is a roaring bitmap scratch buffer reused across calls so
// repeated steps don't reallocate it; the scheduler sets the bits of
// every node in a level once all of that level's Step calls have
// returned without error, which is the signal dependents in the next
// level are safe to read their output.
func (c *Circuit) Step(ctx context.Context, workers int, readySet *roaring.Bitmap) error {
	readySet.Clear()
	if workers <= 0 {
		workers = 1
	}
	for _, wave := range c.levels {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for _, id := range wave {
			id := id
			g.Go(func() error {
				if err := c.nodes[id].op.Step(gctx); err != nil {
					return dbsperr.New(fmt.Sprintf("circuit.step[%s]", c.nodes[id].name), classify(err), err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		for _, id := range wave {
			readySet.Add(uint32(id))
		}
	}
	return nil
}

func classify(err error) dbsperr.Kind {
	if de, ok := err.(*dbsperr.Error); ok {
		return de.Kind
	}
	if err == context.DeadlineExceeded {
		return dbsperr.StepTimeout
	}
	if err == context.Canceled {
		return dbsperr.Cancelled
	}
	return dbsperr.StorageIO
}

// TotalStateBytes sums EstimatedStateBytes across every node, the
// figure the spill coordinator compares against its memory budget.
func (c *Circuit) TotalStateBytes() int64 {
	var total int64
	for _, n := range c.nodes {
		total += n.op.EstimatedStateBytes()
	}
	return total
}

// SpillHeaviest asks the single node with the largest estimated state
// to spill, returning its name, or ("", nil) if every node is
// stateless. This is a simple greedy policy: repeatedly spilling the
// single heaviest node converges toward the budget without forcing
// every stateful node to pay a spill cost on the same tick.
func (c *Circuit) SpillHeaviest(ctx context.Context) (string, error) {
	var heaviest NodeID = -1
	var heaviestBytes int64
	for i, n := range c.nodes {
		if b := n.op.EstimatedStateBytes(); b > heaviestBytes {
			heaviestBytes = b
			heaviest = NodeID(i)
		}
	}
	if heaviest < 0 {
		return "", nil
	}
	if err := c.nodes[heaviest].op.Spill(ctx); err != nil {
		return c.nodes[heaviest].name, err
	}
	return c.nodes[heaviest].name, nil
}

// defaultStepTimeout is the StepTimeout NewRuntime uses when none is
// configured; exceeding it is a StepTimeout fault per spec §4.7's state
// machine (Running -> Faulted).
const defaultStepTimeout = 30 * time.Second
