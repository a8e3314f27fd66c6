// Package storage implements the persistent backends a circuit's
// stateful operators spill into: an abstract Store contract, an
// in-memory reference backend, an LSM-tree backend modeled on the
// corpus's memtable/levels/compaction shape, a temporal spine that
// partitions batches by time the way the teacher's lake metadata
// lister/slicer partitions data objects, and a lazy shadow cache in
// front of any Store (spec §4.9).
//
// Every Store operates on pre-encoded []byte keys rather than a
// generic comparable K: byte encoding is where this module commits to
// the total order (bytes.Compare) that RangeIter requires, so the
// zset/izset packages upstream never need a generic ordering
// constraint on their own key types (see DESIGN.md's ordering note).
package storage

import "context"

// Entry is one (key, weight) pair as stored: Weight is the Z-set
// weight, never zero (a Store drops zero-weight keys on write, same
// as zset.Builder).
type Entry struct {
	Key    []byte
	Weight int64
}

// Stats summarizes a Store's current footprint for the spill
// coordinator and for /metrics.
type Stats struct {
	Keys       int64
	Bytes      int64
	Levels     int
	LastFlush  int64 // epoch passed to the most recent StoreBatch, 0 if never
}

// Store is the persistence contract every backend in this package
// satisfies: batched writes tagged by epoch (for recovery), point and
// range reads over the byte-ordered keyspace, and compaction to bound
// read amplification.
type Store interface {
	StoreBatch(ctx context.Context, epoch uint64, entries []Entry) error
	Get(ctx context.Context, key []byte) (weight int64, ok bool, err error)
	RangeIter(ctx context.Context, lo, hi []byte, fn func(key []byte, weight int64) bool) error
	Compact(ctx context.Context) error
	Stats() Stats
}
