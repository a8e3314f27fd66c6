package storage

import (
	"context"
	"sort"
	"sync"
)

// Bucket is one non-overlapping time partition of the spine, holding
// its own Store. Buckets never overlap in [Lo, Hi) once closed, the
// same non-overlapping-partition invariant the teacher's Slicer
// maintains over data objects (runtime/sam/op/meta/slicer.go) — there
// it partitions by key range, here by time range.
type Bucket struct {
	Lo, Hi int64 // half-open [Lo, Hi)
	Store  Store
}

// Spine is a temporal index over Stores: InsertBatch routes entries
// to the bucket covering their timestamp (creating one if needed),
// and QueryAtTime/QueryRange let a caller read only the buckets that
// can possibly contain a match instead of scanning every batch ever
// written.
type Spine struct {
	mu         sync.RWMutex
	bucketSize int64
	buckets    map[int64]*Bucket // keyed by Lo
	newStore   func() Store
}

// NewSpine returns a Spine partitioning time into fixed-width buckets
// of bucketSize, each backed by a Store from newStore.
func NewSpine(bucketSize int64, newStore func() Store) *Spine {
	if bucketSize <= 0 {
		bucketSize = 1
	}
	return &Spine{bucketSize: bucketSize, buckets: make(map[int64]*Bucket), newStore: newStore}
}

func (s *Spine) bucketLo(t int64) int64 {
	lo := (t / s.bucketSize) * s.bucketSize
	if t < 0 && t%s.bucketSize != 0 {
		lo -= s.bucketSize
	}
	return lo
}

// InsertBatch routes entries to their time bucket and writes them via
// that bucket's Store.StoreBatch under epoch.
func (s *Spine) InsertBatch(ctx context.Context, epoch uint64, t int64, entries []Entry) error {
	s.mu.Lock()
	lo := s.bucketLo(t)
	b, ok := s.buckets[lo]
	if !ok {
		b = &Bucket{Lo: lo, Hi: lo + s.bucketSize, Store: s.newStore()}
		s.buckets[lo] = b
	}
	s.mu.Unlock()
	return b.Store.StoreBatch(ctx, epoch, entries)
}

// ListBuckets returns every bucket currently tracked, ordered by Lo.
func (s *Spine) ListBuckets() []*Bucket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Bucket, 0, len(s.buckets))
	for _, b := range s.buckets {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Lo < out[j].Lo })
	return out
}

// QueryAtTime returns the single bucket covering t, or nil if none
// has been written yet.
func (s *Spine) QueryAtTime(t int64) *Bucket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buckets[s.bucketLo(t)]
}

// QueryRange returns every bucket overlapping [lo, hi), ordered by Lo:
// a bucket [bLo, bHi) overlaps iff bLo < hi && lo < bHi, the same
// overlap test the teacher's slicer uses to decide which objects fall
// into a partition.
func (s *Spine) QueryRange(lo, hi int64) []*Bucket {
	all := s.ListBuckets()
	out := all[:0:0]
	for _, b := range all {
		if b.Lo < hi && lo < b.Hi {
			out = append(out, b)
		}
	}
	return out
}
