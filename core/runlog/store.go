// Package runlog persists the outcome of optimization runs so they can be
// listed, exported and plotted after the process exits.
package runlog

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/kilianp07/ecom/core/scene"
	"github.com/kilianp07/ecom/core/schedule"
)

// ErrNotFound is returned by Get when no run has the requested ID.
var ErrNotFound = errors.New("run not found")

// RunRecord is the persisted summary of one run.
type RunRecord struct {
	ID           string                 `json:"id"`
	Scene        string                 `json:"scene"`
	Started      time.Time              `json:"started"`
	Finished     time.Time              `json:"finished"`
	Iterations   int                    `json:"iterations"`
	Evaluations  int                    `json:"evaluations"`
	BestFitness  float64                `json:"best_fitness"`
	StorageSlack float64                `json:"storage_slack"`
	VehicleSlack float64                `json:"vehicle_slack"`
	ENS          float64                `json:"ens"`
	GridExcess   float64                `json:"grid_excess"`
	Stopped      bool                   `json:"stopped"`
	Trace        []float64              `json:"trace"`
	Schedule     map[string][][]float64 `json:"schedule,omitempty"`
}

// FromResult converts a scene result, including its best schedule.
func FromResult(res scene.Result) RunRecord {
	rec := RunRecord{
		ID:           res.RunID,
		Scene:        res.Scene,
		Started:      res.Started,
		Finished:     res.Finished,
		Iterations:   res.Iterations,
		Evaluations:  res.Evaluations,
		BestFitness:  res.BestFitness,
		StorageSlack: res.Infeasibility.StorageSlack,
		VehicleSlack: res.Infeasibility.VehicleSlack,
		ENS:          res.Infeasibility.ENS,
		GridExcess:   res.Infeasibility.GridExcess,
		Stopped:      res.Stopped,
		Trace:        append([]float64(nil), res.Trace...),
	}
	if res.Best != nil {
		rec.Schedule = make(map[string][][]float64, len(schedule.Vars()))
		for _, v := range schedule.Vars() {
			rec.Schedule[v.String()] = res.Best.Get(v).Rows2D()
		}
	}
	return rec
}

// Query filters stored runs. Zero values match everything.
type Query struct {
	Scene string
	Start time.Time
	End   time.Time
	// Limit keeps the most recent runs only.
	Limit int
}

func (q Query) match(r RunRecord) bool {
	if q.Scene != "" && r.Scene != q.Scene {
		return false
	}
	if !q.Start.IsZero() && r.Started.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Started.After(q.End) {
		return false
	}
	return true
}

// apply sorts by start time and enforces the limit.
func (q Query) apply(recs []RunRecord) []RunRecord {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Started.Before(recs[j].Started) })
	if q.Limit > 0 && len(recs) > q.Limit {
		recs = recs[len(recs)-q.Limit:]
	}
	return recs
}

// Store persists RunRecords and supports querying.
type Store interface {
	Append(ctx context.Context, rec RunRecord) error
	Query(ctx context.Context, q Query) ([]RunRecord, error)
	Get(ctx context.Context, id string) (RunRecord, error)
	Close() error
}

func findByID(recs []RunRecord, id string) (RunRecord, error) {
	for i := len(recs) - 1; i >= 0; i-- {
		if recs[i].ID == id {
			return recs[i], nil
		}
	}
	return RunRecord{}, ErrNotFound
}
