package optimizer

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// jDE self-adaptation constants.
const (
	tauF  = 0.1
	tauCR = 0.1
	fLow  = 0.1
	fHigh = 0.9
)

// HydeDF is a hybrid-adaptive differential evolution. Each member carries its
// own mutation factor and crossover rate which are resampled with a small
// probability and kept only when the trial they produced survives selection.
//
// The population lives in two matrices: the archive holds the surviving
// parents and their fitness, the working population holds the trials of the
// current iteration. A caller driving the loop itself follows
//
//	Initialize, Commit(initial members)
//	repeat: UpdatePopulation, Commit(trials), SelectionMechanism, PostUpdateCleanup
type HydeDF struct {
	cfg   Config
	lower []float64
	upper []float64
	rng   *rand.Rand
	src   rand.Source

	pop        *mat.Dense
	fitness    []float64
	archive    *mat.Dense
	archiveFit []float64

	f, cr           []float64
	trialF, trialCR []float64

	bestIdx  int
	bestFit  float64
	lastBest float64
	stall    int

	iteration   int
	evaluations int
	seeded      bool
	pending     bool
}

var _ Metaheuristic = (*HydeDF)(nil)

// NewHydeDF validates cfg against the bounds. cfg.PopDim defaults to the
// bounds length.
func NewHydeDF(cfg Config, lower, upper []float64) (*HydeDF, error) {
	if cfg.PopDim == 0 {
		cfg.PopDim = len(lower)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(lower) != cfg.PopDim || len(upper) != cfg.PopDim {
		return nil, fmt.Errorf("bounds have %d/%d values, want %d", len(lower), len(upper), cfg.PopDim)
	}
	for i := range lower {
		if lower[i] > upper[i] {
			return nil, fmt.Errorf("lower bound %v above upper bound %v at %d", lower[i], upper[i], i)
		}
	}
	src := rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)
	return &HydeDF{
		cfg:   cfg,
		lower: append([]float64(nil), lower...),
		upper: append([]float64(nil), upper...),
		src:   src,
		rng:   rand.New(src),
	}, nil
}

// Config returns the parameters in use.
func (h *HydeDF) Config() Config { return h.cfg }

// Initialize samples the population uniformly within the bounds and resets
// every tracker. No fitness exists until the first Commit.
func (h *HydeDF) Initialize() {
	n, d := h.cfg.PopSize, h.cfg.PopDim
	h.pop = mat.NewDense(n, d, nil)
	for j := 0; j < d; j++ {
		u := distuv.Uniform{Min: h.lower[j], Max: h.upper[j], Src: h.src}
		for i := 0; i < n; i++ {
			h.pop.Set(i, j, u.Rand())
		}
	}
	h.fitness = filled(n, math.Inf(1))
	h.archive = nil
	h.archiveFit = nil
	h.f = filled(n, h.cfg.FWeight)
	h.cr = filled(n, h.cfg.FCR)
	h.trialF = filled(n, h.cfg.FWeight)
	h.trialCR = filled(n, h.cfg.FCR)
	h.bestIdx = 0
	h.bestFit = math.Inf(1)
	h.lastBest = math.Inf(1)
	h.stall = 0
	h.iteration = 0
	h.evaluations = 0
	h.seeded = false
	h.pending = false
}

// Members returns a copy of the working population.
func (h *HydeDF) Members() [][]float64 {
	if h.pop == nil {
		return nil
	}
	return rows(h.pop)
}

// Commit writes back the evaluated members of one iteration. It is the
// barrier between evaluation and selection: members and fitness must cover
// the whole population. The first commit also seeds the archive.
func (h *HydeDF) Commit(members [][]float64, fitness []float64) error {
	if h.pop == nil {
		return ErrNotInitialized
	}
	if len(members) != h.cfg.PopSize || len(fitness) != h.cfg.PopSize {
		return fmt.Errorf("commit of %d members and %d fitness values, want %d",
			len(members), len(fitness), h.cfg.PopSize)
	}
	for i, m := range members {
		if len(m) != h.cfg.PopDim {
			return fmt.Errorf("member %d has %d values, want %d", i, len(m), h.cfg.PopDim)
		}
		h.pop.SetRow(i, m)
	}
	copy(h.fitness, fitness)
	h.evaluations += len(fitness)

	if !h.seeded {
		h.archive = mat.DenseCopyOf(h.pop)
		h.archiveFit = append([]float64(nil), h.fitness...)
		h.seeded = true
		h.updateBest()
		h.lastBest = h.bestFit
		return nil
	}
	h.pending = true
	return nil
}

// UpdatePopulation replaces the working population with trial vectors built
// from the archive. Trials are clipped to the bounds but are otherwise not
// checked for feasibility.
func (h *HydeDF) UpdatePopulation() error {
	if !h.seeded {
		return ErrNotInitialized
	}
	n, d := h.cfg.PopSize, h.cfg.PopDim
	delta := h.bestInfluence()
	best := h.archive.RawRowView(h.bestIdx)
	trial := make([]float64, d)

	for i := 0; i < n; i++ {
		h.trialF[i], h.trialCR[i] = h.f[i], h.cr[i]
		if h.rng.Float64() < tauF {
			h.trialF[i] = fLow + fHigh*h.rng.Float64()
		}
		if h.rng.Float64() < tauCR {
			h.trialCR[i] = h.rng.Float64()
		}
		r1, r2 := h.donors(i)
		x := h.archive.RawRowView(i)
		a, b := h.archive.RawRowView(r1), h.archive.RawRowView(r2)
		fw, cr := h.trialF[i], h.trialCR[i]

		forced := h.rng.IntN(d)
		for j := 0; j < d; j++ {
			if j != forced && h.rng.Float64() >= cr {
				trial[j] = x[j]
				continue
			}
			trial[j] = x[j] + delta*fw*(best[j]-x[j]) + fw*(a[j]-b[j])
		}
		h.FixBounds(trial)
		h.pop.SetRow(i, trial)
		h.fitness[i] = math.Inf(1)
	}
	h.pending = false
	return nil
}

// SelectionMechanism keeps, per index, the trial when its fitness is not
// worse than the parent's. Archive fitness therefore never increases.
func (h *HydeDF) SelectionMechanism() error {
	if !h.seeded || !h.pending {
		return ErrNotInitialized
	}
	for i := 0; i < h.cfg.PopSize; i++ {
		if h.fitness[i] <= h.archiveFit[i] {
			h.archive.SetRow(i, h.pop.RawRowView(i))
			h.archiveFit[i] = h.fitness[i]
			h.f[i], h.cr[i] = h.trialF[i], h.trialCR[i]
		}
	}
	h.pending = false
	h.updateBest()
	return nil
}

// Snapshot returns the convergence state of the archive.
func (h *HydeDF) Snapshot() Snapshot {
	s := Snapshot{Iteration: h.iteration, BestIdx: h.bestIdx, BestFitness: h.bestFit}
	if h.archive != nil {
		s.Best = mat.Row(nil, h.bestIdx, h.archive)
	}
	return s
}

// PostUpdateCleanup closes an iteration: it records whether the best fitness
// improved by more than the epsilon tolerance and advances the counter.
func (h *HydeDF) PostUpdateCleanup(s Snapshot) {
	if h.lastBest-s.BestFitness > h.cfg.EpsilonTolerance {
		h.stall = 0
		h.lastBest = s.BestFitness
	} else {
		h.stall++
	}
	h.iteration = s.Iteration + 1
}

// CheckStoppingCriteria reports whether the iteration budget is spent or the
// best fitness stagnated for IterTolerance iterations. Callers opt in.
func (h *HydeDF) CheckStoppingCriteria() bool {
	if h.iteration >= h.cfg.NIter {
		return true
	}
	return h.cfg.IterTolerance > 0 && h.stall >= h.cfg.IterTolerance
}

// Iteration returns the number of completed iterations.
func (h *HydeDF) Iteration() int { return h.iteration }

// Evaluations returns the number of committed fitness values.
func (h *HydeDF) Evaluations() int { return h.evaluations }

// Best returns a copy of the best archived member and its fitness.
func (h *HydeDF) Best() ([]float64, float64) {
	if h.archive == nil {
		return nil, math.Inf(1)
	}
	return mat.Row(nil, h.bestIdx, h.archive), h.bestFit
}

// Archive returns a copy of the surviving parents.
func (h *HydeDF) Archive() [][]float64 {
	if h.archive == nil {
		return nil
	}
	return rows(h.archive)
}

// Fitness returns a copy of the archive fitness.
func (h *HydeDF) Fitness() []float64 {
	return append([]float64(nil), h.archiveFit...)
}

// FixBounds clips x in place to the search box.
func (h *HydeDF) FixBounds(x []float64) {
	for j := range x {
		if x[j] < h.lower[j] {
			x[j] = h.lower[j]
		} else if x[j] > h.upper[j] {
			x[j] = h.upper[j]
		}
	}
}

// Evaluate clips x and scores it.
func (h *HydeDF) Evaluate(obj Objective, x []float64) float64 {
	h.FixBounds(x)
	return obj.Evaluate(x)
}

// Execute runs a complete search against obj. The context is checked once per
// iteration.
func (h *HydeDF) Execute(ctx context.Context, obj Objective) (Result, error) {
	h.Initialize()
	members := h.Members()
	if err := h.Commit(members, h.evaluateAll(obj, members)); err != nil {
		return Result{}, err
	}
	trace := []float64{h.bestFit}
	stopped := false
	for h.iteration < h.cfg.NIter {
		if err := ctx.Err(); err != nil {
			return h.result(trace, stopped), err
		}
		if err := h.UpdatePopulation(); err != nil {
			return Result{}, err
		}
		trials := h.Members()
		if err := h.Commit(trials, h.evaluateAll(obj, trials)); err != nil {
			return Result{}, err
		}
		if err := h.SelectionMechanism(); err != nil {
			return Result{}, err
		}
		h.PostUpdateCleanup(h.Snapshot())
		trace = append(trace, h.bestFit)
		if h.cfg.EarlyStop && h.CheckStoppingCriteria() {
			stopped = h.iteration < h.cfg.NIter
			break
		}
	}
	return h.result(trace, stopped), nil
}

func (h *HydeDF) evaluateAll(obj Objective, members [][]float64) []float64 {
	fit := make([]float64, len(members))
	for i, m := range members {
		fit[i] = h.Evaluate(obj, m)
	}
	return fit
}

func (h *HydeDF) result(trace []float64, stopped bool) Result {
	best, fit := h.Best()
	return Result{
		Best:        best,
		BestFitness: fit,
		Iterations:  h.iteration,
		Evaluations: h.evaluations,
		Trace:       trace,
		Stopped:     stopped,
	}
}

// bestInfluence decays from 1 to 0 over the iteration budget so the pull
// toward the best member fades as the search matures.
func (h *HydeDF) bestInfluence() float64 {
	a := float64(h.iteration) / float64(h.cfg.NIter)
	if a >= 1 {
		return 0
	}
	return math.Exp(1 - 1/((1-a)*(1-a)))
}

// donors picks two distinct archive indices different from i.
func (h *HydeDF) donors(i int) (int, int) {
	n := h.cfg.PopSize
	r1 := h.rng.IntN(n - 1)
	if r1 >= i {
		r1++
	}
	r2 := h.rng.IntN(n - 2)
	for _, skip := range sortedPair(i, r1) {
		if r2 >= skip {
			r2++
		}
	}
	return r1, r2
}

func (h *HydeDF) updateBest() {
	h.bestIdx = floats.MinIdx(h.archiveFit)
	h.bestFit = h.archiveFit[h.bestIdx]
}

func sortedPair(a, b int) [2]int {
	if a > b {
		return [2]int{b, a}
	}
	return [2]int{a, b}
}

func rows(m *mat.Dense) [][]float64 {
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, m)
	}
	return out
}

func filled(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
