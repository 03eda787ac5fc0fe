// Package optimizer implements population based search over bounded real
// vectors. Fitness is minimised everywhere: lower is better.
package optimizer

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotInitialized is returned when a population operator runs before the
// population was created and its first fitness values committed.
var ErrNotInitialized = errors.New("optimizer: population not initialized")

// Objective scores a flat vector.
type Objective interface {
	Evaluate(x []float64) float64
}

// ObjectiveFunc adapts a plain function to Objective.
type ObjectiveFunc func(x []float64) float64

func (f ObjectiveFunc) Evaluate(x []float64) float64 { return f(x) }

// Metaheuristic is the contract every optimizer variant satisfies. Execute
// drives a self-contained search; Evaluate and FixBounds are the hooks a
// caller uses when it drives the population itself.
type Metaheuristic interface {
	Execute(ctx context.Context, obj Objective) (Result, error)
	Evaluate(obj Objective, x []float64) float64
	FixBounds(x []float64)
}

// Result summarises a finished search.
type Result struct {
	Best        []float64
	BestFitness float64
	Iterations  int
	Evaluations int
	// Trace holds the best fitness after every iteration, starting with the
	// initial population.
	Trace   []float64
	Stopped bool
}

// Snapshot is the convergence state at the end of one iteration.
type Snapshot struct {
	Iteration   int
	BestIdx     int
	BestFitness float64
	Best        []float64
}

// Config holds the search parameters.
type Config struct {
	NIter            int     `json:"n_iter"`
	IterTolerance    int     `json:"iter_tolerance"`
	EpsilonTolerance float64 `json:"epsilon_tolerance"`
	PopSize          int     `json:"pop_size"`
	PopDim           int     `json:"pop_dim"`
	FWeight          float64 `json:"f_weight"`
	FCR              float64 `json:"f_cr"`
	Seed             uint64  `json:"seed"`
	// EarlyStop makes Execute honour CheckStoppingCriteria.
	EarlyStop bool `json:"early_stop"`
}

// DefaultConfig returns the parameters of the reference community run.
func DefaultConfig() Config {
	return Config{
		NIter:            200,
		IterTolerance:    10,
		EpsilonTolerance: 1e-6,
		PopSize:          10,
		FWeight:          0.5,
		FCR:              0.9,
	}
}

// SetDefaults fills unset fields. PopDim is derived from the bounds. A zero
// n_iter means unset, so Validate rejects it once defaults were skipped.
func (c *Config) SetDefaults() {
	d := DefaultConfig()
	if c.NIter == 0 {
		c.NIter = d.NIter
	}
	if c.IterTolerance == 0 {
		c.IterTolerance = d.IterTolerance
	}
	if c.EpsilonTolerance == 0 {
		c.EpsilonTolerance = d.EpsilonTolerance
	}
	if c.PopSize == 0 {
		c.PopSize = d.PopSize
	}
	if c.FWeight == 0 {
		c.FWeight = d.FWeight
	}
	if c.FCR == 0 {
		c.FCR = d.FCR
	}
}

// Validate checks the parameters. Differential mutation needs the target
// plus two distinct donors and a best member, hence the population floor.
func (c Config) Validate() error {
	if c.NIter < 1 {
		return fmt.Errorf("n_iter must be at least 1, got %d", c.NIter)
	}
	if c.IterTolerance < 0 {
		return fmt.Errorf("iter_tolerance must not be negative, got %d", c.IterTolerance)
	}
	if c.EpsilonTolerance < 0 {
		return fmt.Errorf("epsilon_tolerance must not be negative, got %v", c.EpsilonTolerance)
	}
	if c.PopSize < 4 {
		return fmt.Errorf("pop_size must be at least 4, got %d", c.PopSize)
	}
	if c.PopDim <= 0 {
		return fmt.Errorf("pop_dim must be positive, got %d", c.PopDim)
	}
	if c.FWeight <= 0 || c.FWeight > 2 {
		return fmt.Errorf("f_weight must be in (0,2], got %v", c.FWeight)
	}
	if c.FCR < 0 || c.FCR > 1 {
		return fmt.Errorf("f_cr must be in [0,1], got %v", c.FCR)
	}
	return nil
}
