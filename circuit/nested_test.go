package circuit

import (
	"context"
	"testing"

	"github.com/nelknet/dbsp/zset"
)

func TestAddNestedScopeStepsChildCircuit(t *testing.T) {
	src := &passthrough{source: zset.Singleton(5, 1)}

	b := NewCircuitBuilder()
	b.AddNode("src", src)

	var inner *passthrough
	b.AddNestedScope("scope", func(cb *CircuitBuilder) {
		inner = &passthrough{input: src}
		cb.AddNode("inner", inner)
	}, 1, "src")

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
	if !zset.Equal(inner.last, zset.Singleton(5, 1)) {
		t.Fatalf("expected the nested scope's child circuit to have stepped")
	}
}
