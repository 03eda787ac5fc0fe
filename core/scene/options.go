package scene

import (
	"runtime"

	"github.com/kilianp07/ecom/core/logger"
	"github.com/kilianp07/ecom/core/metrics"
	"github.com/kilianp07/ecom/core/optimizer"
	"github.com/kilianp07/ecom/internal/eventbus"
)

// Option configures a Scene.
type Option func(*Scene)

// WithLogger sets the logger. Per-iteration progress is logged at debug level.
func WithLogger(l logger.Logger) Option {
	return func(s *Scene) { s.log = logger.OrNop(l) }
}

// WithProgress publishes an IterationEvent on bus after every iteration.
func WithProgress(bus *eventbus.TypedBus[metrics.IterationEvent]) Option {
	return func(s *Scene) { s.bus = bus }
}

// WithWorkers bounds the number of members repaired and evaluated in
// parallel. Values below 1 select GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(s *Scene) {
		if n < 1 {
			n = runtime.GOMAXPROCS(0)
		}
		s.workers = n
	}
}

// WithOptimizerConfig replaces the optimizer parameters. PopDim is always
// derived from the bounds.
func WithOptimizerConfig(cfg optimizer.Config) Option {
	return func(s *Scene) { s.cfg = cfg }
}

// WithEarlyStop makes Run honour the optimizer stopping criterion.
func WithEarlyStop(enabled bool) Option {
	return func(s *Scene) { s.earlyStop = &enabled }
}

// WithRunID fixes the identifier of the next runs instead of generating one.
func WithRunID(id string) Option {
	return func(s *Scene) { s.runID = id }
}
