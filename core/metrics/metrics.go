package metrics

import "time"

// IterationEvent is the convergence state published after every optimizer
// iteration. Iteration 0 describes the initial population.
type IterationEvent struct {
	RunID       string
	Scene       string
	Iteration   int
	BestFitness float64
	MeanFitness float64
	StdFitness  float64
	Evaluations int
	Time        time.Time
}

// RunResult summarises a finished optimization run.
type RunResult struct {
	RunID        string
	Scene        string
	Iterations   int
	Evaluations  int
	BestFitness  float64
	StorageSlack float64
	VehicleSlack float64
	ENS          float64
	GridExcess   float64
	Stopped      bool
	Duration     time.Duration
	Time         time.Time
}

// MetricsSink records optimizer progress for observability purposes.
type MetricsSink interface {
	RecordIteration(ev IterationEvent) error
}

// RunRecorder is implemented by sinks able to record run summaries.
type RunRecorder interface {
	RecordRun(res RunResult) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordIteration(IterationEvent) error { return nil }

// Ensure NopSink implements RunRecorder.
func (NopSink) RecordRun(RunResult) error { return nil }
