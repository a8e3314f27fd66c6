package circuit

import (
	"context"
	"sync"

	"github.com/nelknet/dbsp/dbsperr"
	"github.com/nelknet/dbsp/zset"
)

// InputHandle is a source node: an Operator whose Step simply drains
// whatever was queued by Push since the last step, as a single
// consolidated Z-set. Push is safe to call concurrently with Step
// from a producer goroutine external to the circuit's own worker
// pool (spec §4.7's "back-pressured channels" for feeding a circuit
// from outside).
type InputHandle[K comparable] struct {
	BaseOperator
	mu      sync.Mutex
	pending zset.ZSet[K]
	ch      chan zset.ZSet[K]
	last    zset.ZSet[K]
}

// NewInputHandle returns an InputHandle with capacity pending deltas
// buffered before Push blocks, providing the back-pressure spec §4.7
// expects of a source feed.
func NewInputHandle[K comparable](capacity int) *InputHandle[K] {
	if capacity <= 0 {
		capacity = 1
	}
	return &InputHandle[K]{ch: make(chan zset.ZSet[K], capacity), pending: zset.Empty[K]()}
}

// Push enqueues a delta, blocking if the channel is full (the
// back-pressure signal to the producer) or returning ctx.Err() if ctx
// is cancelled first.
func (h *InputHandle[K]) Push(ctx context.Context, delta zset.ZSet[K]) error {
	select {
	case h.ch <- delta:
		return nil
	case <-ctx.Done():
		return dbsperr.New("circuit.input.push", dbsperr.Cancelled, ctx.Err())
	}
}

// Step drains every delta queued since the last Step, merging them
// into one consolidated output via zset.Add.
func (h *InputHandle[K]) Step(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := zset.Empty[K]()
	for {
		select {
		case d := <-h.ch:
			out = zset.Add(out, d)
			continue
		default:
		}
		break
	}
	h.last = out
	return nil
}

// Output returns this step's consolidated delta.
func (h *InputHandle[K]) Output() zset.ZSet[K] {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// OutputHandle is a sink node: it has no transformation of its own,
// only a reference to an upstream producer function (usually a
// closure reading another node's Output) and the latest step's value,
// which Take and Current return without clearing it.
type OutputHandle[K comparable] struct {
	BaseOperator
	mu          sync.Mutex
	pull        func() zset.ZSet[K]
	latest      zset.ZSet[K]
	stepped     bool
	subscribers []func(zset.ZSet[K])
}

// NewOutputHandle wires an OutputHandle to read pull's return value
// each step.
func NewOutputHandle[K comparable](pull func() zset.ZSet[K]) *OutputHandle[K] {
	return &OutputHandle[K]{pull: pull}
}

func (h *OutputHandle[K]) Step(ctx context.Context) error {
	h.mu.Lock()
	h.latest = h.pull()
	h.stepped = true
	subs := append([]func(zset.ZSet[K]){}, h.subscribers...)
	latest := h.latest
	h.mu.Unlock()
	for _, fn := range subs {
		fn(latest)
	}
	return nil
}

// Take returns the most recently captured step's delta.
func (h *OutputHandle[K]) Take() zset.ZSet[K] {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest
}

// Current returns the most recently captured step's delta, and false
// if Step has never run yet (the Option<T> shape spec §6 describes for
// OutputHandle::current()).
func (h *OutputHandle[K]) Current() (zset.ZSet[K], bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest, h.stepped
}

// Subscribe registers fn to be called with every future step's delta,
// the fan-out contract spec §4.7 describes for handle subscribers.
// Subscribers registered before the next Step see that step's output;
// Subscribe does not replay past steps.
func (h *OutputHandle[K]) Subscribe(fn func(zset.ZSet[K])) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers = append(h.subscribers, fn)
}
