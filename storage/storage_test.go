package storage

import (
	"context"
	"testing"
)

func TestMemoryStoreRangeIterIsSorted(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.StoreBatch(ctx, 1, []Entry{
		{Key: []byte("c"), Weight: 1},
		{Key: []byte("a"), Weight: 1},
		{Key: []byte("b"), Weight: 1},
	})
	var got []string
	s.RangeIter(ctx, nil, nil, func(k []byte, w int64) bool {
		got = append(got, string(k))
		return true
	})
	want := []string{"a", "b", "c"}
	for i, w := range want {
		if got[i] != w {
			t.Fatalf("expected sorted order %v, got %v", want, got)
		}
	}
}

func TestMemoryStoreDropsZeroWeightKeys(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.StoreBatch(ctx, 1, []Entry{{Key: []byte("x"), Weight: 1}})
	s.StoreBatch(ctx, 2, []Entry{{Key: []byte("x"), Weight: -1}})
	if _, ok, _ := s.Get(ctx, []byte("x")); ok {
		t.Fatalf("expected key to disappear once its weight sums to zero")
	}
}

func TestLSMStoreFlushesAndReadsBack(t *testing.T) {
	s := NewLSMStore(LSMOptions{MemtableLimit: 2, LevelFanout: 2})
	ctx := context.Background()
	s.StoreBatch(ctx, 1, []Entry{{Key: []byte("a"), Weight: 1}, {Key: []byte("b"), Weight: 1}})
	s.StoreBatch(ctx, 2, []Entry{{Key: []byte("c"), Weight: 1}})

	if w, ok, _ := s.Get(ctx, []byte("a")); !ok || w != 1 {
		t.Fatalf("expected a flushed key to still be readable, got w=%d ok=%v", w, ok)
	}
	if w, ok, _ := s.Get(ctx, []byte("c")); !ok || w != 1 {
		t.Fatalf("expected a memtable-resident key to be readable, got w=%d ok=%v", w, ok)
	}
	if s.Stats().Levels == 0 {
		t.Fatalf("expected at least one level after a flush")
	}
}

func TestLSMStoreCompactMergesWeights(t *testing.T) {
	s := NewLSMStore(LSMOptions{MemtableLimit: 1, LevelFanout: 100})
	ctx := context.Background()
	s.StoreBatch(ctx, 1, []Entry{{Key: []byte("a"), Weight: 2}})
	s.StoreBatch(ctx, 2, []Entry{{Key: []byte("a"), Weight: 3}})
	s.Compact(ctx)
	if w, ok, _ := s.Get(ctx, []byte("a")); !ok || w != 5 {
		t.Fatalf("expected merged weight 5, got w=%d ok=%v", w, ok)
	}
}

func TestSpineRoutesByTimeBucket(t *testing.T) {
	spine := NewSpine(10, func() Store { return NewMemoryStore() })
	ctx := context.Background()
	spine.InsertBatch(ctx, 1, 3, []Entry{{Key: []byte("x"), Weight: 1}})
	spine.InsertBatch(ctx, 1, 17, []Entry{{Key: []byte("y"), Weight: 1}})

	b := spine.QueryAtTime(3)
	if b == nil || b.Lo != 0 {
		t.Fatalf("expected bucket [0,10) for t=3, got %+v", b)
	}
	if _, ok, _ := b.Store.Get(ctx, []byte("x")); !ok {
		t.Fatalf("expected x in bucket [0,10)")
	}

	buckets := spine.QueryRange(0, 20)
	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets covering [0,20), got %d", len(buckets))
	}
}

func TestShadowCacheServesFromCacheOnHit(t *testing.T) {
	backing := NewMemoryStore()
	ctx := context.Background()
	backing.StoreBatch(ctx, 1, []Entry{{Key: []byte("k"), Weight: 9}})
	cache := NewShadowCache(backing, 16)

	w, ok, _ := cache.Get(ctx, []byte("k"))
	if !ok || w != 9 {
		t.Fatalf("expected cache miss to read through, got w=%d ok=%v", w, ok)
	}
	if cache.Len() != 1 {
		t.Fatalf("expected the read-through result to be cached")
	}

	backing.StoreBatch(ctx, 2, []Entry{{Key: []byte("k"), Weight: 1}}) // now 10, cache stale
	cache.Invalidate([]byte("k"))
	w, ok, _ = cache.Get(ctx, []byte("k"))
	if !ok || w != 10 {
		t.Fatalf("expected invalidated key to read the fresh value, got w=%d", w)
	}
}

func TestCoordinatorShouldSpill(t *testing.T) {
	c := NewCoordinator(1000, Adaptive)
	if c.ShouldSpill(500) {
		t.Fatalf("under budget should not spill")
	}
	if !c.ShouldSpill(1500) {
		t.Fatalf("over budget should spill")
	}
	always := NewCoordinator(0, OnDisk)
	if !always.ShouldSpill(0) {
		t.Fatalf("OnDisk policy should always spill")
	}
}
