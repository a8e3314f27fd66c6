// Package circuit assembles operators from package op (and the raw
// zset/izset algebra) into a dataflow graph that steps in lockstep,
// schedules independent nodes concurrently, and exposes runtime state,
// metrics, and a debug HTTP surface the way the teacher's service
// package wires up a long-running server (spec §4.7).
package circuit

import "context"

// Operator is the uniform node contract every circuit node satisfies,
// regardless of which package op type it wraps. Step reads this tick's
// inputs from its upstream nodes (through whatever references or pull
// closures the node was constructed with) and produces this tick's
// output, which downstream nodes read before the next Step.
//
// EstimatedStateBytes and Spill implement the supplemented
// spill-coordination contract (SPEC_FULL §10): a node that holds
// unbounded state (a join's indexed sides, an aggregate's group
// table) reports its approximate footprint so the runtime's spill
// coordinator can decide when to ask it to move state to secondary
// storage.
type Operator interface {
	Step(ctx context.Context) error
	EstimatedStateBytes() int64
	Spill(ctx context.Context) error
}

// BaseOperator gives node implementations a zero-cost default for
// EstimatedStateBytes/Spill so only stateful operators need to
// override them; stateless operators (map, filter) are never
// candidates for spilling.
type BaseOperator struct{}

func (BaseOperator) EstimatedStateBytes() int64          { return 0 }
func (BaseOperator) Spill(ctx context.Context) error { return nil }
