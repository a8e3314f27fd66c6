package circuit

import (
	"context"
	"testing"
	"time"

	"github.com/nelknet/dbsp/zset"
)

// passthrough is a minimal Operator for wiring tests: it copies
// in.Output() (or a fixed Z-set for sources) straight to Output().
type passthrough struct {
	BaseOperator
	source zset.ZSet[int]
	input  *passthrough
	last   zset.ZSet[int]
}

func (p *passthrough) Step(ctx context.Context) error {
	if p.input != nil {
		p.last = p.input.last
	} else {
		p.last = p.source
	}
	return nil
}

func TestBuilderRejectsUnknownInput(t *testing.T) {
	b := NewCircuitBuilder()
	b.AddNode("sink", &passthrough{}, "missing")
	if _, err := b.Build(); err == nil {
		t.Fatalf("expected an error for an unknown input reference")
	}
}

func TestBuilderRejectsDuplicateName(t *testing.T) {
	b := NewCircuitBuilder()
	b.AddNode("a", &passthrough{source: zset.Singleton(1, 1)})
	b.AddNode("a", &passthrough{source: zset.Singleton(2, 1)})
	if _, err := b.Build(); err == nil {
		t.Fatalf("expected an error for a duplicate node name")
	}
}

func TestCircuitStepsInDependencyOrder(t *testing.T) {
	src := &passthrough{source: zset.Singleton(7, 1)}
	b := NewCircuitBuilder()
	b.AddNode("src", src)
	mid := &passthrough{input: src}
	b.AddNode("mid", mid, "src")
	sink := &passthrough{input: mid}
	b.AddNode("sink", sink, "mid")

	c, err := b.Build()
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}

	rt := NewRuntime(c, RuntimeConfig{})
	if err := rt.Start(); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if err := rt.StepAsync(context.Background()); err != nil {
		t.Fatalf("unexpected step error: %v", err)
	}
	if !zset.Equal(sink.last, zset.Singleton(7, 1)) {
		t.Fatalf("expected the source's value to flow through to the sink in one step")
	}
}

func TestRuntimeStateMachine(t *testing.T) {
	b := NewCircuitBuilder()
	b.AddNode("n", &passthrough{source: zset.Empty[int]()})
	c, err := b.Build()
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	rt := NewRuntime(c, RuntimeConfig{})

	if err := rt.Pause(); err == nil {
		t.Fatalf("expected Pause to fail before Start")
	}
	if err := rt.Start(); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if rt.State() != Running {
		t.Fatalf("expected Running after Start")
	}
	if err := rt.Pause(); err != nil {
		t.Fatalf("unexpected pause error: %v", err)
	}
	if rt.State() != Paused {
		t.Fatalf("expected Paused after Pause")
	}
	if err := rt.Resume(); err != nil {
		t.Fatalf("unexpected resume error: %v", err)
	}
	rt.Stop()
	if rt.State() != Stopped {
		t.Fatalf("expected Stopped after Stop")
	}
}

func TestInputHandlePushThenStep(t *testing.T) {
	h := NewInputHandle[int](4)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := h.Push(ctx, zset.Singleton(1, 1)); err != nil {
		t.Fatalf("unexpected push error: %v", err)
	}
	if err := h.Push(ctx, zset.Singleton(2, 1)); err != nil {
		t.Fatalf("unexpected push error: %v", err)
	}
	if err := h.Step(ctx); err != nil {
		t.Fatalf("unexpected step error: %v", err)
	}
	out := h.Output()
	if out.Len() != 2 {
		t.Fatalf("expected both pushed deltas merged, got %d keys", out.Len())
	}
}

func TestOutputHandleCurrentAndSubscribe(t *testing.T) {
	src := zset.Singleton(9, 1)
	h := NewOutputHandle(func() zset.ZSet[int] { return src })

	if _, ok := h.Current(); ok {
		t.Fatalf("expected Current to report false before the first Step")
	}

	var seen zset.ZSet[int]
	h.Subscribe(func(z zset.ZSet[int]) { seen = z })

	if err := h.Step(context.Background()); err != nil {
		t.Fatalf("unexpected step error: %v", err)
	}

	cur, ok := h.Current()
	if !ok || !zset.Equal(cur, src) {
		t.Fatalf("expected Current to report the latest step's output")
	}
	if !zset.Equal(seen, src) {
		t.Fatalf("expected the subscriber to observe the step's output")
	}
}
