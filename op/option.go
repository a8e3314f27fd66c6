// Package op implements the incremental operators of spec §4.3-§4.6:
// linear operators and their fused variants, incremental join variants
// with fast-path/generic-path dispatch, stateful aggregations,
// temporal operators, fixed-point recursion, and windowing.
package op

// Option represents the spec's Option<V> used by outer join variants:
// Some(v) for a matched value, None for an unmatched side.
type Option[V any] struct {
	Valid bool
	Value V
}

// Some wraps v as a present Option.
func Some[V any](v V) Option[V] { return Option[V]{Valid: true, Value: v} }

// None returns the absent Option for V.
func None[V any]() Option[V] { return Option[V]{} }
