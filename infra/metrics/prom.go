package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/ecom/core/metrics"
)

// PromSink exposes optimizer progress as Prometheus metrics.
type PromSink struct {
	best        *prometheus.GaugeVec
	mean        *prometheus.GaugeVec
	evaluations *prometheus.CounterVec
	iterations  *prometheus.CounterVec
	runs        *prometheus.CounterVec
	slack       *prometheus.GaugeVec
	duration    *prometheus.HistogramVec
}

// NewPromSink registers the optimizer metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by a previous sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		best: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "optimizer_best_fitness",
			Help: "Best fitness found so far in the current run",
		}, []string{"scene"}),
		mean: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "optimizer_mean_fitness",
			Help: "Mean fitness of the last evaluated population",
		}, []string{"scene"}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "optimizer_evaluations_total",
			Help: "Total number of candidate evaluations",
		}, []string{"scene"}),
		iterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "optimizer_iterations_total",
			Help: "Total number of completed optimizer iterations",
		}, []string{"scene"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "optimizer_runs_total",
			Help: "Total number of finished runs",
		}, []string{"scene", "feasible"}),
		slack: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "schedule_relaxation_slack",
			Help: "Relaxation slack and unserved energy of the last best schedule",
		}, []string{"scene", "kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "optimizer_run_duration_seconds",
			Help:    "Wall time of finished runs",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"scene"}),
	}
	var err error
	if s.best, err = register(reg, s.best); err != nil {
		return nil, err
	}
	if s.mean, err = register(reg, s.mean); err != nil {
		return nil, err
	}
	if s.evaluations, err = register(reg, s.evaluations); err != nil {
		return nil, err
	}
	if s.iterations, err = register(reg, s.iterations); err != nil {
		return nil, err
	}
	if s.runs, err = register(reg, s.runs); err != nil {
		return nil, err
	}
	if s.slack, err = register(reg, s.slack); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, s.duration); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordIteration updates the convergence gauges. Iteration 0 is the initial
// population and does not count as a completed iteration.
func (s *PromSink) RecordIteration(ev coremetrics.IterationEvent) error {
	s.best.WithLabelValues(ev.Scene).Set(ev.BestFitness)
	s.mean.WithLabelValues(ev.Scene).Set(ev.MeanFitness)
	if ev.Iteration > 0 {
		s.iterations.WithLabelValues(ev.Scene).Inc()
	}
	return nil
}

// RecordRun records the summary of a finished run.
func (s *PromSink) RecordRun(res coremetrics.RunResult) error {
	feasible := "true"
	if res.StorageSlack > 0 || res.VehicleSlack > 0 || res.GridExcess > 0 {
		feasible = "false"
	}
	s.runs.WithLabelValues(res.Scene, feasible).Inc()
	s.evaluations.WithLabelValues(res.Scene).Add(float64(res.Evaluations))
	s.slack.WithLabelValues(res.Scene, "storage").Set(res.StorageSlack)
	s.slack.WithLabelValues(res.Scene, "vehicle").Set(res.VehicleSlack)
	s.slack.WithLabelValues(res.Scene, "ens").Set(res.ENS)
	s.slack.WithLabelValues(res.Scene, "grid_excess").Set(res.GridExcess)
	s.duration.WithLabelValues(res.Scene).Observe(res.Duration.Seconds())
	return nil
}
