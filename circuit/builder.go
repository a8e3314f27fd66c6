package circuit

import (
	"context"
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring"

	"github.com/nelknet/dbsp/dbsperr"
)

const opBuild = "circuit.build"

// NodeID identifies a node within one Circuit; IDs are assigned in
// registration order and are stable for the circuit's lifetime.
type NodeID int

type node struct {
	name   string
	op     Operator
	inputs []NodeID
}

// CircuitBuilder accumulates nodes and their dependency edges, then
// validates and freezes them into a Circuit. Edges are declared, not
// inferred: package op operators don't know about circuit wiring, so
// the builder is the one place that records which node's output feeds
// which node's input.
type CircuitBuilder struct {
	nodes []node
	names map[string]NodeID
	err   error
}

// NewCircuitBuilder returns an empty builder.
func NewCircuitBuilder() *CircuitBuilder {
	return &CircuitBuilder{names: make(map[string]NodeID)}
}

// AddNode registers op under name, wired to read from the named
// inputs' most recent output. A source node (no upstream data
// dependency) is added with no inputs.
func (b *CircuitBuilder) AddNode(name string, op Operator, inputs ...string) NodeID {
	if b.err != nil {
		return -1
	}
	if _, dup := b.names[name]; dup {
		b.err = dbsperr.New(opBuild, dbsperr.InvalidConfig, fmt.Errorf("duplicate node name %q", name))
		return -1
	}
	ids := make([]NodeID, 0, len(inputs))
	for _, in := range inputs {
		id, ok := b.names[in]
		if !ok {
			b.err = dbsperr.New(opBuild, dbsperr.InvalidConfig, fmt.Errorf("node %q references unknown input %q", name, in))
			return -1
		}
		ids = append(ids, id)
	}
	id := NodeID(len(b.nodes))
	b.nodes = append(b.nodes, node{name: name, op: op, inputs: ids})
	b.names[name] = id
	return id
}

// Build validates the graph (acyclic, every referenced input exists)
// and returns the frozen Circuit, computing a fixed topological
// execution order once up front rather than on every step.
func (b *CircuitBuilder) Build() (*Circuit, error) {
	if b.err != nil {
		return nil, b.err
	}
	order, err := topoSort(b.nodes)
	if err != nil {
		return nil, err
	}
	levels := levelize(b.nodes, order)
	return &Circuit{nodes: b.nodes, order: order, levels: levels, names: b.names}, nil
}

// topoSort returns node indices in a valid execution order (Kahn's
// algorithm), or an error if the graph has a cycle — a circuit's
// dataflow must be acyclic; recursion is expressed via the
// FixedPoint/Delay operators in package op, not via a cyclic wiring.
func topoSort(nodes []node) ([]NodeID, error) {
	indegree := make([]int, len(nodes))
	dependents := make([][]NodeID, len(nodes))
	for i, n := range nodes {
		indegree[i] = len(n.inputs)
		for _, in := range n.inputs {
			dependents[in] = append(dependents[in], NodeID(i))
		}
	}
	var ready []NodeID
	for i, d := range indegree {
		if d == 0 {
			ready = append(ready, NodeID(i))
		}
	}
	order := make([]NodeID, 0, len(nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}
	if len(order) != len(nodes) {
		return nil, dbsperr.New(opBuild, dbsperr.InvalidConfig, errors.New("circuit graph contains a cycle"))
	}
	return order, nil
}

// nestedScope wraps a fully-built child Circuit as a single Operator
// node in the parent circuit: stepping it steps every node of the
// child circuit level-by-level, the same dispatch Circuit.Step itself
// performs, so a fixed-point body can be structured as its own
// operator graph (joins, aggregates, a Delay closing the loop) rather
// than a single closure, matching how real DBSP implementations
// structure recursive SQL bodies as their own feedback sub-circuits
// (spec §10 "nested-circuit / scoped sub-circuits").
type nestedScope struct {
	BaseOperator
	child   *Circuit
	workers int
	ready   *roaring.Bitmap
}

func (s *nestedScope) Step(ctx context.Context) error {
	return s.child.Step(ctx, s.workers, s.ready)
}

// EstimatedStateBytes sums the child circuit's own per-node estimates,
// so a parent's spill coordinator sees a nested scope's footprint the
// same as any other stateful node.
func (s *nestedScope) EstimatedStateBytes() int64 { return s.child.TotalStateBytes() }

// Spill asks the child circuit's own heaviest node to spill.
func (s *nestedScope) Spill(ctx context.Context) error {
	_, err := s.child.SpillHeaviest(ctx)
	return err
}

// AddNestedScope builds a child circuit via build (a CircuitBuilder the
// caller wires exactly like a top-level one) and registers it as a
// single node named name, wired to the given parent inputs. This is
// the supplemented nested-circuit feature (spec §10): a fixed-point or
// recursive body can be expressed as its own operator graph instead of
// a single closure, and still participates in the parent's scheduling,
// spill accounting, and dependency ordering like any other node.
func (b *CircuitBuilder) AddNestedScope(name string, build func(*CircuitBuilder), workers int, inputs ...string) NodeID {
	if b.err != nil {
		return -1
	}
	childBuilder := NewCircuitBuilder()
	build(childBuilder)
	child, err := childBuilder.Build()
	if err != nil {
		b.err = dbsperr.New(opBuild, dbsperr.InvalidConfig, fmt.Errorf("nested scope %q: %w", name, err))
		return -1
	}
	if workers <= 0 {
		workers = 1
	}
	return b.AddNode(name, &nestedScope{child: child, workers: workers, ready: roaring.New()}, inputs...)
}

// levelize groups the topological order into waves of mutually
// independent nodes (every node in a wave depends only on nodes from
// earlier waves), which is the unit the scheduler dispatches to the
// worker pool concurrently.
func levelize(nodes []node, order []NodeID) [][]NodeID {
	level := make([]int, len(nodes))
	maxLevel := 0
	for _, id := range order {
		l := 0
		for _, in := range nodes[id].inputs {
			if level[in]+1 > l {
				l = level[in] + 1
			}
		}
		level[id] = l
		if l > maxLevel {
			maxLevel = l
		}
	}
	waves := make([][]NodeID, maxLevel+1)
	for _, id := range order {
		l := level[id]
		waves[l] = append(waves[l], id)
	}
	return waves
}
