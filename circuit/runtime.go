package circuit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/nelknet/dbsp/dbsperr"
)

// State is one of the circuit runtime's lifecycle states (spec §4.7):
// Created -> Running -> Paused <-> Running -> Stopped | Faulted.
type State int

const (
	Created State = iota
	Running
	Paused
	Stopped
	Faulted
)

func (s State) String() string {
	switch s {
	case Created:
		return "Created"
	case Running:
		return "Running"
	case Paused:
		return "Paused"
	case Stopped:
		return "Stopped"
	case Faulted:
		return "Faulted"
	default:
		return "Unknown"
	}
}

// RuntimeConfig tunes a Runtime. Zero values fall back to sane
// defaults in NewRuntime, mirroring the teacher's Config-with-defaults
// pattern (service.Config / NewCore).
type RuntimeConfig struct {
	Workers     int
	StepTimeout time.Duration
	Logger      *zap.Logger
	Registry    *prometheus.Registry
}

// Runtime drives a Circuit through repeated steps, enforcing the
// lifecycle state machine, collecting per-step metrics, and recording
// the circuit's total estimated state bytes after each step. It never
// spills state on its own.
type Runtime struct {
	circuit *Circuit
	conf    RuntimeConfig
	logger  *zap.Logger

	mu          sync.Mutex
	state       State
	stepsRun    uint64
	lastErr     error
	lastStepDur time.Duration
	faulted     string

	readySet *roaring.Bitmap

	stepDuration prometheus.Histogram
	stepErrors   prometheus.Counter
	stateBytes   prometheus.Gauge
}

// MetricsSnapshot is a point-in-time read of a Runtime's counters,
// returned by Metrics() for callers that want programmatic access
// without scraping the ambient /metrics HTTP surface (spec §4.7).
type MetricsSnapshot struct {
	StepsExecuted    uint64
	LastStepDuration time.Duration
	StateBytes       int64
}

// Metrics returns a snapshot of the runtime's step counters.
func (r *Runtime) Metrics() MetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return MetricsSnapshot{
		StepsExecuted:    r.stepsRun,
		LastStepDuration: r.lastStepDur,
		StateBytes:       int64(r.circuit.TotalStateBytes()),
	}
}

// Status is the runtime's externally-visible health: its lifecycle
// state, the error (if any) that caused the most recent fault, and the
// Op of that error, which for a node failure is
// "circuit.step[<node name>]", per spec §7's "status API surfacing last
// error / faulted operator set".
type Status struct {
	State           State
	LastError       error
	FaultedOperator string
}

// Status returns the runtime's current lifecycle state plus the last
// step error and the Op of the fault's error, if any.
func (r *Runtime) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{State: r.state, LastError: r.lastErr, FaultedOperator: r.faulted}
}

// NewRuntime wires a Circuit into a Runtime in the Created state.
func NewRuntime(c *Circuit, conf RuntimeConfig) *Runtime {
	if conf.Workers <= 0 {
		conf.Workers = 4
	}
	if conf.StepTimeout <= 0 {
		conf.StepTimeout = defaultStepTimeout
	}
	if conf.Logger == nil {
		conf.Logger = zap.NewNop()
	}
	if conf.Registry == nil {
		conf.Registry = prometheus.NewRegistry()
	}
	r := &Runtime{
		circuit:  c,
		conf:     conf,
		logger:   conf.Logger.Named("circuit"),
		state:    Created,
		readySet: roaring.New(),
		stepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "dbsp_circuit_step_duration_seconds",
			Help: "Wall time of one circuit Step call.",
		}),
		stepErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dbsp_circuit_step_errors_total",
			Help: "Number of Step calls that returned an error.",
		}),
		stateBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dbsp_circuit_state_bytes",
			Help: "Sum of every node's EstimatedStateBytes after the most recent step.",
		}),
	}
	conf.Registry.MustRegister(r.stepDuration, r.stepErrors, r.stateBytes)
	return r
}

// Start transitions Created -> Running. It is not itself a step loop;
// callers drive steps with StepAsync or RunAsync.
func (r *Runtime) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Created {
		return dbsperr.New("circuit.start", dbsperr.InvalidConfig, errors.New("Start called outside Created state"))
	}
	r.state = Running
	r.logger.Info("circuit started")
	return nil
}

// Pause transitions Running -> Paused. A paused runtime's StepAsync
// calls return immediately with no work done, until Resume.
func (r *Runtime) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Running {
		return dbsperr.New("circuit.pause", dbsperr.InvalidConfig, errors.New("Pause called outside Running state"))
	}
	r.state = Paused
	return nil
}

// Resume transitions Paused -> Running.
func (r *Runtime) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Paused {
		return dbsperr.New("circuit.resume", dbsperr.InvalidConfig, errors.New("Resume called outside Paused state"))
	}
	r.state = Running
	return nil
}

// Stop transitions Running or Paused -> Stopped. A stopped runtime
// never steps again.
func (r *Runtime) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Running || r.state == Paused {
		r.state = Stopped
		r.logger.Info("circuit stopped")
	}
}

// State returns the current lifecycle state.
func (r *Runtime) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// StepAsync runs one Step if the runtime is Running, enforcing
// conf.StepTimeout; a timeout or a node error with Kind.Fatal()
// transitions the runtime to Faulted, per spec §4.7.
func (r *Runtime) StepAsync(ctx context.Context) error {
	r.mu.Lock()
	state := r.state
	r.mu.Unlock()
	if state == Paused || state == Stopped || state == Faulted {
		return nil
	}
	if state != Running {
		return dbsperr.New("circuit.step", dbsperr.InvalidConfig, errors.New("StepAsync called outside Running state"))
	}

	stepCtx, cancel := context.WithTimeout(ctx, r.conf.StepTimeout)
	defer cancel()

	start := time.Now()
	err := r.circuit.Step(stepCtx, r.conf.Workers, r.readySet)
	dur := time.Since(start)
	r.stepDuration.Observe(dur.Seconds())
	r.stateBytes.Set(float64(r.circuit.TotalStateBytes()))

	r.mu.Lock()
	r.stepsRun++
	r.lastStepDur = dur
	r.mu.Unlock()

	if err != nil {
		r.stepErrors.Inc()
		var de *dbsperr.Error
		r.mu.Lock()
		r.lastErr = err
		r.mu.Unlock()
		if errors.As(err, &de) && de.Kind.Fatal() {
			r.mu.Lock()
			r.state = Faulted
			r.faulted = de.Op
			r.mu.Unlock()
			r.logger.Error("circuit faulted", zap.Error(err))
		}
		return err
	}
	return nil
}

// RunAsync steps the runtime at the given interval until ctx is
// cancelled, the runtime is stopped or faulted, or a step returns an
// error whose Kind is Fatal; non-fatal step errors do not end the
// loop. It returns that fatal error, or nil on clean
// cancellation/stop.
func (r *Runtime) RunAsync(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if r.State() == Stopped || r.State() == Faulted {
				return nil
			}
			if err := r.StepAsync(ctx); err != nil {
				var de *dbsperr.Error
				if errors.As(err, &de) && de.Kind.Fatal() {
					return err
				}
			}
		}
	}
}
