package op

import (
	"testing"

	"github.com/nelknet/dbsp/zset"
)

type edge struct{ src, dst int }

func TestTransitiveClosureConverges(t *testing.T) {
	// 1->2, 2->3, 3->4
	edges := zset.NewBuilder[edge](0).
		Add(edge{1, 2}, 1).
		Add(edge{2, 3}, 1).
		Add(edge{3, 4}, 1).
		Build()

	oneHop := func(edges, cur zset.ZSet[edge]) zset.ZSet[edge] {
		bu := zset.NewBuilder[edge](0)
		cur.Iterate(func(c edge, w1 zset.Weight) bool {
			edges.Iterate(func(e edge, w2 zset.Weight) bool {
				if c.dst == e.src {
					bu.Add(edge{c.src, e.dst}, w1*w2)
				}
				return true
			})
			return true
		})
		return bu.Build()
	}

	closure, iterations, converged := TransitiveClosure(edges, 10, oneHop)
	if !converged {
		t.Fatalf("expected convergence within bound, took %d iterations", iterations)
	}
	want := []edge{{1, 2}, {2, 3}, {3, 4}, {1, 3}, {2, 4}, {1, 4}}
	for _, e := range want {
		if closure.GetWeight(e) != 1 {
			t.Fatalf("expected edge %+v in transitive closure", e)
		}
	}
}

func TestFixedPointHitsBoundOnNonConvergence(t *testing.T) {
	fp := NewFixedPoint[int](3)
	counter := 0
	_, iterations, converged := fp.Run(zset.Empty[int](), func(cur zset.ZSet[int]) zset.ZSet[int] {
		counter++
		return zset.Add(cur, zset.Singleton(counter, 1))
	})
	if converged {
		t.Fatalf("a strictly growing body must not converge")
	}
	if iterations != 3 {
		t.Fatalf("expected exactly maxIterations iterations, got %d", iterations)
	}
}
