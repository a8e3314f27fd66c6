package op

import "github.com/nelknet/dbsp/zset"

// TumblingWindow partitions rows into fixed-size, non-overlapping time
// buckets keyed by timeOf(row)/size, accumulating each bucket's
// content until the watermark passed to Step reaches its upper edge, at
// which point the bucket is finalized and evicted. This is the windowed
// analogue of the teacher's object-partitioning slicer
// (runtime/sam/op/meta/slicer.go): rows are stashed into the bucket
// they land in as they arrive, and a bucket is only ever emitted once,
// when it closes; rows arriving later for a bucket that closed on an
// earlier Step are dropped.
type TumblingWindow[K comparable] struct {
	size    int64
	timeOf  func(K) int64
	buckets map[int64]zset.ZSet[K]
	builder map[int64]*zset.Builder[K]
	// lastWatermark is the highest watermark seen by a previous Step;
	// stepped reports whether there has been one.
	lastWatermark int64
	stepped       bool
}

// NewTumblingWindow returns a TumblingWindow of the given size (in
// clock ticks), bucketing rows via timeOf.
func NewTumblingWindow[K comparable](size int64, timeOf func(K) int64) *TumblingWindow[K] {
	return &TumblingWindow[K]{
		size:    size,
		timeOf:  timeOf,
		buckets: make(map[int64]zset.ZSet[K]),
		builder: make(map[int64]*zset.Builder[K]),
	}
}

func (w *TumblingWindow[K]) bucketOf(row K) int64 {
	t := w.timeOf(row)
	b := t / w.size
	if t < 0 && t%w.size != 0 {
		b--
	}
	return b
}

// Step stashes delta's rows into their buckets and, for every bucket
// whose window has closed as of watermark, returns it as a finalized
// (bucket, Z-set) pair and evicts it. A bucket closes once watermark
// has advanced past its upper edge, i.e. watermark >= (bucket+1)*size.
func (w *TumblingWindow[K]) Step(delta zset.ZSet[K], watermark int64) []ClosedWindow[K] {
	delta.Iterate(func(row K, weight zset.Weight) bool {
		b := w.bucketOf(row)
		if w.stepped && w.lastWatermark >= (b+1)*w.size {
			return true // bucket b already closed on an earlier Step
		}
		bu, ok := w.builder[b]
		if !ok {
			bu = zset.NewBuilder[K](4)
			w.builder[b] = bu
		}
		bu.Add(row, weight)
		return true
	})

	var closed []ClosedWindow[K]
	for b, bu := range w.builder {
		if watermark < (b+1)*w.size {
			continue
		}
		closed = append(closed, ClosedWindow[K]{Bucket: b, Content: bu.Build()})
		delete(w.builder, b)
		delete(w.buckets, b)
	}
	if !w.stepped || watermark > w.lastWatermark {
		w.lastWatermark = watermark
	}
	w.stepped = true
	return closed
}

// ClosedWindow is one finalized tumbling-window bucket.
type ClosedWindow[K comparable] struct {
	Bucket  int64
	Content zset.ZSet[K]
}

// SlidingCountWindow keeps exactly the last N steps' worth of rows
// live, retracting the oldest step's content as each new step's
// content is added: output_n = input_n - input_(n-N) once n >= N. This
// mirrors Delay/Differentiate's buffering shape but over a ring of N
// steps instead of one.
type SlidingCountWindow[K comparable] struct {
	n      int
	ring   []zset.ZSet[K]
	pos    int
	filled int
}

// NewSlidingCountWindow returns a SlidingCountWindow retaining the
// last n steps.
func NewSlidingCountWindow[K comparable](n int) *SlidingCountWindow[K] {
	if n <= 0 {
		n = 1
	}
	return &SlidingCountWindow[K]{n: n, ring: make([]zset.ZSet[K], n)}
}

// Step admits in as the newest step and returns the delta to apply to
// the running window total: in alone, minus whatever step is now
// falling out of the trailing edge.
func (s *SlidingCountWindow[K]) Step(in zset.ZSet[K]) zset.ZSet[K] {
	out := in
	if s.filled == s.n {
		evicted := s.ring[s.pos]
		out = zset.Difference(in, evicted)
	} else {
		s.filled++
	}
	s.ring[s.pos] = in
	s.pos = (s.pos + 1) % s.n
	return out
}
