package op

import "github.com/nelknet/dbsp/zset"

// Delay is the z^-1 operator: it buffers one step's input and emits it
// on the following step, returning Empty on the very first call (spec
// §4.6: "Delay ... emits the previous step's input, Empty on step 0").
// Delay is the building block every stateful recursive operator is
// expressed in terms of.
type Delay[K comparable] struct {
	prev    zset.ZSet[K]
	primed  bool
}

// NewDelay returns a Delay with nothing buffered yet.
func NewDelay[K comparable]() *Delay[K] { return &Delay[K]{} }

// Step returns the previous input and buffers the current one.
func (d *Delay[K]) Step(in zset.ZSet[K]) zset.ZSet[K] {
	out := zset.Empty[K]()
	if d.primed {
		out = d.prev
	}
	d.prev = in
	d.primed = true
	return out
}

// Integrate runs a running sum of every step's input: output_n =
// sum(input_0..input_n). It is the left inverse of Differentiate,
// satisfying Differentiate(Integrate(x)) == x (spec §4.6, §8).
type Integrate[K comparable] struct {
	total zset.ZSet[K]
}

// NewIntegrate returns an Integrate starting from Empty.
func NewIntegrate[K comparable]() *Integrate[K] { return &Integrate[K]{total: zset.Empty[K]()} }

// Step adds in to the running total and returns the new total.
func (ig *Integrate[K]) Step(in zset.ZSet[K]) zset.ZSet[K] {
	ig.total = zset.Add(ig.total, in)
	return ig.total
}

// Value returns the current running total without advancing.
func (ig *Integrate[K]) Value() zset.ZSet[K] { return ig.total }

// Differentiate emits the change since the previous step: output_n =
// input_n - input_(n-1), the right inverse of Integrate.
type Differentiate[K comparable] struct {
	prev   zset.ZSet[K]
	primed bool
}

// NewDifferentiate returns a Differentiate with nothing buffered yet.
func NewDifferentiate[K comparable]() *Differentiate[K] { return &Differentiate[K]{} }

// Step returns in minus the previously seen value and buffers in.
func (df *Differentiate[K]) Step(in zset.ZSet[K]) zset.ZSet[K] {
	out := in
	if df.primed {
		out = zset.Difference(in, df.prev)
	}
	df.prev = in
	df.primed = true
	return out
}

// Generator drives a circuit's source input from an in-memory
// sequence of steps, standing in for an external feed during tests and
// for bounded batch replays (spec §4.6's source abstraction).
type Generator[K comparable] struct {
	steps []zset.ZSet[K]
	pos   int
}

// NewGenerator returns a Generator that replays steps in order.
func NewGenerator[K comparable](steps ...zset.ZSet[K]) *Generator[K] {
	return &Generator[K]{steps: steps}
}

// Next returns the next queued step and true, or Empty and false once
// the sequence is exhausted.
func (g *Generator[K]) Next() (zset.ZSet[K], bool) {
	if g.pos >= len(g.steps) {
		return zset.Empty[K](), false
	}
	s := g.steps[g.pos]
	g.pos++
	return s, true
}

// Inspect calls fn with every Z-set that passes through it and returns
// the input unchanged, for debugging and test assertions without
// altering the dataflow (spec §4.6).
func Inspect[K comparable](fn func(zset.ZSet[K]), in zset.ZSet[K]) zset.ZSet[K] {
	fn(in)
	return in
}

// Clock is a monotonic step counter a circuit can thread through
// time-aware operators (windowing, temporal spine queries) without
// reaching for wall-clock time, keeping replay deterministic.
type Clock struct {
	step int64
}

// Now returns the current step index.
func (c *Clock) Now() int64 { return c.step }

// Tick advances the clock by one step and returns the new value.
func (c *Clock) Tick() int64 {
	c.step++
	return c.step
}
