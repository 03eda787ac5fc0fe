// Package scene adapts an energy community to the optimizer. A Scene builds
// the search box from the community resources, decodes optimizer members
// into schedules, repairs and scores them, and writes the repaired members
// back so the population only ever holds feasible schedules.
package scene

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/ecom/core/logger"
	"github.com/kilianp07/ecom/core/metrics"
	"github.com/kilianp07/ecom/core/optimizer"
	"github.com/kilianp07/ecom/core/repair"
	"github.com/kilianp07/ecom/core/resource"
	"github.com/kilianp07/ecom/core/schedule"
	"github.com/kilianp07/ecom/internal/eventbus"
)

// Scene owns a community and the bookkeeping of its optimization runs. Run
// must not be called concurrently on the same Scene.
type Scene struct {
	name      string
	community *resource.Community
	repairer  *repair.Repairer
	eval      Evaluator
	log       logger.Logger
	bus       *eventbus.TypedBus[metrics.IterationEvent]
	workers   int
	cfg       optimizer.Config
	earlyStop *bool
	runID     string

	lower     []float64
	upper     []float64
	history   []float64
	trace     []float64
	best      *schedule.Candidate
	bestFit   float64
	iteration int
}

// Result describes a finished run.
type Result struct {
	RunID         string
	Scene         string
	Best          *schedule.Candidate
	BestFitness   float64
	Iterations    int
	Evaluations   int
	Stopped       bool
	Infeasibility repair.Infeasibility
	Trace         []float64
	Started       time.Time
	Finished      time.Time
}

// Summary converts the result for the metrics sinks.
func (r Result) Summary() metrics.RunResult {
	return metrics.RunResult{
		RunID:        r.RunID,
		Scene:        r.Scene,
		Iterations:   r.Iterations,
		Evaluations:  r.Evaluations,
		BestFitness:  r.BestFitness,
		StorageSlack: r.Infeasibility.StorageSlack,
		VehicleSlack: r.Infeasibility.VehicleSlack,
		ENS:          r.Infeasibility.ENS,
		GridExcess:   r.Infeasibility.GridExcess,
		Stopped:      r.Stopped,
		Duration:     r.Finished.Sub(r.Started),
		Time:         r.Finished,
	}
}

// New creates a Scene. The evaluator scores repaired schedules; use
// NewCostEvaluator for the resource costs.
func New(name string, c *resource.Community, eval Evaluator, opts ...Option) (*Scene, error) {
	if c == nil {
		return nil, errors.New("scene: nil community")
	}
	if eval == nil {
		return nil, errors.New("scene: nil evaluator")
	}
	r, err := repair.New(c)
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", name, err)
	}
	s := &Scene{
		name:      name,
		community: c,
		repairer:  r,
		eval:      eval,
		log:       logger.Nop{},
		workers:   runtime.GOMAXPROCS(0),
		cfg:       optimizer.DefaultConfig(),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *Scene) Name() string                   { return s.name }
func (s *Scene) Community() *resource.Community { return s.community }
func (s *Scene) Schema() schedule.Schema        { return s.repairer.Schema() }

// Initialize resets the run bookkeeping and rebuilds the search box from the
// resources in schema order. It fails when a resource declares bounds that
// do not match the schema. Calling it twice yields the same state.
func (s *Scene) Initialize() error {
	s.history = nil
	s.trace = nil
	s.best = nil
	s.bestFit = 0
	s.iteration = 0
	s.lower, s.upper = nil, nil

	lower, upper, err := s.community.Bounds(s.Schema())
	if err != nil {
		return fmt.Errorf("scene %s: bounds: %w", s.name, err)
	}
	if len(lower) != s.Schema().Size() || len(upper) != s.Schema().Size() {
		return fmt.Errorf("scene %s: %w: bounds have %d/%d values, want %d",
			s.name, schedule.ErrDimension, len(lower), len(upper), s.Schema().Size())
	}
	s.lower, s.upper = lower, upper
	return nil
}

// Bounds returns copies of the search box built by Initialize.
func (s *Scene) Bounds() (lower, upper []float64) {
	return append([]float64(nil), s.lower...), append([]float64(nil), s.upper...)
}

// Encode flattens a schedule in schema order.
func (s *Scene) Encode(x *schedule.Candidate) ([]float64, error) { return s.Schema().Encode(x) }

// Decode reshapes a flat vector into a schedule.
func (s *Scene) Decode(v []float64) (*schedule.Candidate, error) { return s.Schema().Decode(v) }

// History returns the fitness of every evaluation of the last run in
// evaluation order.
func (s *Scene) History() []float64 { return append([]float64(nil), s.history...) }

// Trace returns the best fitness after the initial population and after
// every iteration of the last run.
func (s *Scene) Trace() []float64 { return append([]float64(nil), s.trace...) }

// Best returns the best schedule of the last run.
func (s *Scene) Best() (*schedule.Candidate, float64) {
	if s.best == nil {
		return nil, 0
	}
	return s.best.Clone(), s.bestFit
}

// Run initializes the scene and performs one optimization. The context is
// checked before every iteration; on cancellation the partial result is
// returned together with the context error.
func (s *Scene) Run(ctx context.Context) (Result, error) {
	if err := s.Initialize(); err != nil {
		return Result{}, err
	}
	cfg := s.cfg
	cfg.PopDim = len(s.lower)
	if s.earlyStop != nil {
		cfg.EarlyStop = *s.earlyStop
	}
	algo, err := optimizer.NewHydeDF(cfg, s.lower, s.upper)
	if err != nil {
		return Result{}, fmt.Errorf("scene %s: optimizer: %w", s.name, err)
	}

	runID := s.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	started := time.Now()
	s.log.Infof("scene %s: run %s started (dim=%d pop=%d iterations=%d)", s.name, runID, cfg.PopDim, cfg.PopSize, cfg.NIter)

	algo.Initialize()
	if err := s.step(algo); err != nil {
		return Result{}, err
	}
	if err := s.observe(runID, algo); err != nil {
		return Result{}, err
	}

	stopped := false
	for algo.Iteration() < cfg.NIter {
		if err := ctx.Err(); err != nil {
			s.log.Warnf("scene %s: run %s cancelled after %d iterations", s.name, runID, algo.Iteration())
			return s.result(runID, algo, stopped, started), err
		}
		if err := algo.UpdatePopulation(); err != nil {
			return Result{}, err
		}
		if err := s.step(algo); err != nil {
			return Result{}, err
		}
		if err := algo.SelectionMechanism(); err != nil {
			return Result{}, err
		}
		algo.PostUpdateCleanup(algo.Snapshot())
		if err := s.observe(runID, algo); err != nil {
			return Result{}, err
		}
		if cfg.EarlyStop && algo.CheckStoppingCriteria() {
			stopped = algo.Iteration() < cfg.NIter
			break
		}
	}

	res := s.result(runID, algo, stopped, started)
	s.log.Infof("scene %s: run %s finished after %d iterations, best %.6g", s.name, runID, res.Iterations, res.BestFitness)
	return res, nil
}

// step repairs and evaluates the working population and commits it. Members
// are processed in parallel; the commit happens once all are done.
func (s *Scene) step(algo *optimizer.HydeDF) error {
	members := algo.Members()
	fitness := make([]float64, len(members))
	errs := make([]error, len(members))

	p := pool.New().WithMaxGoroutines(s.workers)
	for i, m := range members {
		p.Go(func() {
			members[i], fitness[i], errs[i] = s.evaluateMember(m)
		})
	}
	p.Wait()
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("scene %s: %w", s.name, err)
	}

	s.history = append(s.history, fitness...)
	return algo.Commit(members, fitness)
}

// evaluateMember decodes, repairs, scores and re-encodes one member.
func (s *Scene) evaluateMember(v []float64) ([]float64, float64, error) {
	x, err := s.Decode(v)
	if err != nil {
		return nil, 0, err
	}
	s.repairer.Repair(x)
	fit := s.eval.Evaluate(x)
	enc, err := s.Encode(x)
	if err != nil {
		return nil, 0, err
	}
	return enc, fit, nil
}

func (s *Scene) observe(runID string, algo *optimizer.HydeDF) error {
	vec, fit := algo.Best()
	best, err := s.Decode(vec)
	if err != nil {
		return err
	}
	s.best, s.bestFit = best, fit
	s.iteration = algo.Iteration()
	s.trace = append(s.trace, fit)

	batch := s.history[len(s.history)-algo.Config().PopSize:]
	mean, std := stat.MeanStdDev(batch, nil)
	s.log.Debugw("iteration", map[string]any{
		"scene":     s.name,
		"run_id":    runID,
		"iteration": s.iteration,
		"best":      fit,
		"mean":      mean,
	})
	if s.bus != nil {
		s.bus.Publish(metrics.IterationEvent{
			RunID:       runID,
			Scene:       s.name,
			Iteration:   s.iteration,
			BestFitness: fit,
			MeanFitness: mean,
			StdFitness:  std,
			Evaluations: algo.Evaluations(),
			Time:        time.Now(),
		})
	}
	return nil
}

func (s *Scene) result(runID string, algo *optimizer.HydeDF, stopped bool, started time.Time) Result {
	res := Result{
		RunID:       runID,
		Scene:       s.name,
		BestFitness: s.bestFit,
		Iterations:  algo.Iteration(),
		Evaluations: algo.Evaluations(),
		Stopped:     stopped,
		Trace:       s.Trace(),
		Started:     started,
		Finished:    time.Now(),
	}
	if s.best != nil {
		res.Best = s.best.Clone()
		res.Infeasibility = s.repairer.Report(res.Best)
	}
	return res
}
