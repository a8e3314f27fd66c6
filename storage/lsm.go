package storage

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// run is one sorted, immutable level segment, the in-process analogue
// of an SSTable in _examples/other_examples's graphdb LSM: a
// compaction merges several runs in a level into fewer, larger ones
// with duplicate keys resolved by summing weights (zero-sum keys
// dropped, same rule as MemoryStore).
type run struct {
	entries []Entry // sorted by Key
}

func (r *run) get(key []byte) (int64, bool) {
	i := sort.Search(len(r.entries), func(i int) bool { return bytes.Compare(r.entries[i].Key, key) >= 0 })
	if i < len(r.entries) && bytes.Equal(r.entries[i].Key, key) {
		return r.entries[i].Weight, true
	}
	return 0, false
}

// LSMOptions configures an LSMStore, mirroring the teacher pattern's
// LSMOptions (memtable size threshold, level fan-out).
type LSMOptions struct {
	MemtableLimit int // entries; flush to a level-0 run once reached
	LevelFanout   int // runs per level before a compaction merges them up
	Logger        *zap.Logger
}

// DefaultLSMOptions returns sane defaults for an embedded circuit's
// state store.
func DefaultLSMOptions() LSMOptions {
	return LSMOptions{MemtableLimit: 4096, LevelFanout: 4, Logger: zap.NewNop()}
}

// LSMStore is a leveled log-structured merge store: writes land in an
// in-memory memtable, flush to a sorted level-0 run once the
// memtable holds MemtableLimit keys, and compaction merges same-level
// runs upward once a level accumulates LevelFanout of them, bounding
// the number of runs RangeIter/Get must probe.
type LSMStore struct {
	mu        sync.RWMutex
	opts      LSMOptions
	memtable  map[string]int64
	levels    [][]*run
	lastFlush int64
	logger    *zap.Logger
}

// NewLSMStore returns an empty LSMStore.
func NewLSMStore(opts LSMOptions) *LSMStore {
	if opts.MemtableLimit <= 0 {
		opts.MemtableLimit = DefaultLSMOptions().MemtableLimit
	}
	if opts.LevelFanout <= 0 {
		opts.LevelFanout = DefaultLSMOptions().LevelFanout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &LSMStore{opts: opts, memtable: make(map[string]int64), logger: opts.Logger.Named("lsm")}
}

func (s *LSMStore) StoreBatch(ctx context.Context, epoch uint64, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if e.Weight == 0 {
			continue
		}
		s.memtable[string(e.Key)] += e.Weight
		if s.memtable[string(e.Key)] == 0 {
			delete(s.memtable, string(e.Key))
		}
	}
	s.lastFlush = int64(epoch)
	if len(s.memtable) >= s.opts.MemtableLimit {
		s.flushLocked()
	}
	return nil
}

// flushLocked sorts the memtable into a new level-0 run and clears it.
// Caller must hold s.mu.
func (s *LSMStore) flushLocked() {
	if len(s.memtable) == 0 {
		return
	}
	entries := make([]Entry, 0, len(s.memtable))
	for k, w := range s.memtable {
		entries = append(entries, Entry{Key: []byte(k), Weight: w})
	}
	sort.Slice(entries, func(i, j int) bool { return bytes.Compare(entries[i].Key, entries[j].Key) < 0 })
	if len(s.levels) == 0 {
		s.levels = append(s.levels, nil)
	}
	s.levels[0] = append(s.levels[0], &run{entries: entries})
	s.memtable = make(map[string]int64)
	s.logger.Debug("flushed memtable", zap.Int("entries", len(entries)))
	if len(s.levels[0]) >= s.opts.LevelFanout {
		s.compactLevelLocked(0)
	}
}

// compactLevelLocked merges every run at level l into one run, pushed
// to level l+1. Caller must hold s.mu.
func (s *LSMStore) compactLevelLocked(l int) {
	merged := make(map[string]int64)
	var order [][]byte
	for _, r := range s.levels[l] {
		for _, e := range r.entries {
			k := string(e.Key)
			if _, seen := merged[k]; !seen {
				order = append(order, e.Key)
			}
			merged[k] += e.Weight
		}
	}
	entries := make([]Entry, 0, len(order))
	for _, k := range order {
		if w := merged[string(k)]; w != 0 {
			entries = append(entries, Entry{Key: k, Weight: w})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return bytes.Compare(entries[i].Key, entries[j].Key) < 0 })
	s.levels[l] = nil
	for len(s.levels) <= l+1 {
		s.levels = append(s.levels, nil)
	}
	s.levels[l+1] = append(s.levels[l+1], &run{entries: entries})
	s.logger.Debug("compacted level", zap.Int("level", l), zap.Int("entries", len(entries)))
	if len(s.levels[l+1]) >= s.opts.LevelFanout {
		s.compactLevelLocked(l + 1)
	}
}

// Get sums the weight recorded for key across the memtable and every
// run in every level, the same additive accumulation MemoryStore does
// for every StoreBatch call: a key can legitimately hold weight in
// more than one uncompacted run, and returning only the first match
// would silently drop the rest.
func (s *LSMStore) Get(ctx context.Context, key []byte) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	if w, ok := s.memtable[string(key)]; ok {
		total += w
	}
	for _, level := range s.levels {
		for _, rn := range level {
			if w, ok := rn.get(key); ok {
				total += w
			}
		}
	}
	return total, total != 0, nil
}

func (s *LSMStore) RangeIter(ctx context.Context, lo, hi []byte, fn func(key []byte, weight int64) bool) error {
	s.mu.RLock()
	merged := make(map[string]int64)
	for _, level := range s.levels {
		for _, rn := range level {
			for _, e := range rn.entries {
				merged[string(e.Key)] += e.Weight
			}
		}
	}
	for k, w := range s.memtable {
		merged[k] += w
	}
	s.mu.RUnlock()

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		kb := []byte(k)
		if lo != nil && bytes.Compare(kb, lo) < 0 {
			continue
		}
		if hi != nil && bytes.Compare(kb, hi) >= 0 {
			break
		}
		if w := merged[k]; w != 0 {
			if !fn(kb, w) {
				break
			}
		}
	}
	return nil
}

// Compact forces every level to merge down to a single run, the full
// compaction a spill coordinator triggers under memory pressure rather
// than waiting for LevelFanout to trip naturally.
func (s *LSMStore) Compact(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
	for l := 0; l < len(s.levels); l++ {
		if len(s.levels[l]) > 1 {
			s.compactLevelLocked(l)
		}
	}
	return nil
}

func (s *LSMStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys, bytesTotal int64
	keys += int64(len(s.memtable))
	for _, r := range s.levels {
		for _, run := range r {
			keys += int64(len(run.entries))
			for _, e := range run.entries {
				bytesTotal += int64(len(e.Key)) + 8
			}
		}
	}
	return Stats{Keys: keys, Bytes: bytesTotal, Levels: len(s.levels), LastFlush: s.lastFlush}
}
