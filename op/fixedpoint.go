package op

import "github.com/nelknet/dbsp/zset"

// FixedPoint runs body repeatedly against its own output, starting
// from seed, until two consecutive iterations produce equal
// consolidated Z-sets (spec §4.6's "Open Question: fixed_point
// equality is defined on the consolidated logical view, not physical
// layout" — resolved here by comparing via zset.Equal, which already
// ignores layout). maxIterations bounds runaway non-converging bodies;
// Converged reports whether the loop stopped because of equality
// (true) or because it hit the bound (false), so callers can treat a
// bound-out as an error distinct from a legitimate fixed point.
//
// This is the incremental engine's nested-circuit primitive: body is
// itself one step of an inner circuit whose own state (e.g. the
// accumulated edge set in a transitive closure) is threaded through
// successive calls via its closure, not through FixedPoint itself.
type FixedPoint[K comparable] struct {
	maxIterations int
}

// NewFixedPoint returns a FixedPoint bounded at maxIterations.
func NewFixedPoint[K comparable](maxIterations int) *FixedPoint[K] {
	if maxIterations <= 0 {
		maxIterations = 1000
	}
	return &FixedPoint[K]{maxIterations: maxIterations}
}

// Run iterates body starting from seed until convergence or the
// iteration bound, returning the final value, the iteration count, and
// whether it converged.
func (fp *FixedPoint[K]) Run(seed zset.ZSet[K], body func(cur zset.ZSet[K]) zset.ZSet[K]) (result zset.ZSet[K], iterations int, converged bool) {
	cur := seed
	for i := 0; i < fp.maxIterations; i++ {
		next := body(cur)
		iterations = i + 1
		if zset.Equal(cur, next) {
			return next, iterations, true
		}
		cur = next
	}
	return cur, iterations, false
}

// TransitiveClosure computes the transitive closure of edges under a
// join-then-union step: next = Distinct(cur ∪ joinStep(edges, cur)),
// starting from cur = edges, grounded on spec §8's transitive-closure
// worked example.
// joinStep must perform exactly that one-hop extension given the
// current accumulated edge set.
func TransitiveClosure[K comparable](edges zset.ZSet[K], maxIterations int, joinStep func(edges, cur zset.ZSet[K]) zset.ZSet[K]) (zset.ZSet[K], int, bool) {
	fp := NewFixedPoint[K](maxIterations)
	return fp.Run(edges, func(cur zset.ZSet[K]) zset.ZSet[K] {
		return zset.Distinct(zset.Union(cur, joinStep(edges, cur)))
	})
}
