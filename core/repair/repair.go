// Package repair maps arbitrary decoded candidates onto feasible, time-causal
// dispatch schedules.
//
// Repair runs six stages in a fixed order, each relying on the invariants
// established by the previous ones:
//
//  1. grid import/export clipping
//  2. generators
//  3. loads
//  4. stationary storage
//  5. EV/V2G fleet
//  6. energy balance closure
//
// No stage fails: every step is a clip, a mask or a reassignment.
// Infeasibility surfaces as non-zero relaxation slack, see Report.
package repair

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/ecom/core/resource"
	"github.com/kilianp07/ecom/core/schedule"
)

// BinaryThreshold is the value above which a relaxed decision becomes 1.
const BinaryThreshold = 0.5

// Repairer holds a read-only community snapshot. It keeps no per-call state
// and may be shared between goroutines.
type Repairer struct {
	community *resource.Community
	schema    schedule.Schema
	stor      battery
	evs       battery
}

// New builds a Repairer for the community.
func New(c *resource.Community) (*Repairer, error) {
	s, err := schedule.NewSchema(c.Dims())
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	return &Repairer{
		community: c,
		schema:    s,
		stor:      storageBattery(c.Storage(), c.Steps()),
		evs:       vehicleBattery(c.Vehicles()),
	}, nil
}

// Schema returns the variable registry the repairer operates on.
func (r *Repairer) Schema() schedule.Schema { return r.schema }

// Repair fixes x in place and returns it.
func (r *Repairer) Repair(x *schedule.Candidate) *schedule.Candidate {
	r.checkImportsExports(x)
	r.checkGenerators(x)
	r.checkLoads(x)
	r.stor.repair(x)
	r.evs.repair(x)
	r.checkBalance(x)
	return x
}

func (r *Repairer) checkImportsExports(x *schedule.Candidate) {
	imp, exp := x.Get(schedule.PImp), x.Get(schedule.PExp)
	for t := 0; t < r.community.Steps(); t++ {
		imp.Data[t] = clip(imp.Data[t], 0, r.community.Import().Limit(t))
		exp.Data[t] = clip(exp.Data[t], 0, r.community.Export().Limit(t))
	}
}

// checkGenerators applies the per-unit type rule: dispatchable units run at
// capacity times their binary decision, renewable units report the unused
// part of their capacity as excess.
func (r *Repairer) checkGenerators(x *schedule.Candidate) {
	gen := r.community.Generators()
	act, exc, xo := x.Get(schedule.GenActPower), x.Get(schedule.GenExcActPower), x.Get(schedule.GenXo)
	binarize(xo.Data)
	for u := 0; u < gen.Units(); u++ {
		for t := 0; t < r.community.Steps(); t++ {
			capacity := gen.Capacity(u, t)
			p := clip(act.At(u, t), 0, capacity)
			e := 0.0
			if gen.IsDispatchable(u) {
				p = capacity * xo.At(u, t)
			} else {
				e = capacity - p
			}
			act.Set(u, t, p)
			exc.Set(u, t, e)
		}
	}
}

func (r *Repairer) checkLoads(x *schedule.Candidate) {
	loads := r.community.Loads()
	red, cut := x.Get(schedule.LoadRedActPower), x.Get(schedule.LoadCutActPower)
	ens, xo := x.Get(schedule.LoadENS), x.Get(schedule.LoadXo)
	binarize(xo.Data)
	for u := 0; u < loads.Units(); u++ {
		for t := 0; t < r.community.Steps(); t++ {
			demand := loads.Demand(u, t)
			rv := clip(red.At(u, t), 0, demand)
			cv := demand * xo.At(u, t)
			red.Set(u, t, rv)
			cut.Set(u, t, cv)
			ens.Set(u, t, clip(demand-rv-cv, 0, demand))
		}
	}
}

// Residual returns the net flow of everything except the grid at step t.
// Positive values are a surplus to export.
func (r *Repairer) Residual(x *schedule.Candidate, t int) float64 {
	var res float64
	act, exc := x.Get(schedule.GenActPower), x.Get(schedule.GenExcActPower)
	for u := 0; u < act.Rows; u++ {
		res += act.At(u, t) - exc.At(u, t)
	}
	loads := r.community.Loads()
	red, cut, ens := x.Get(schedule.LoadRedActPower), x.Get(schedule.LoadCutActPower), x.Get(schedule.LoadENS)
	for u := 0; u < red.Rows; u++ {
		res += red.At(u, t) + cut.At(u, t) + ens.At(u, t) - loads.Demand(u, t)
	}
	for _, pair := range [][2]schedule.Var{
		{schedule.StorDchActPower, schedule.StorChActPower},
		{schedule.V2GDchActPower, schedule.V2GChActPower},
	} {
		dch, ch := x.Get(pair[0]), x.Get(pair[1])
		for u := 0; u < dch.Rows; u++ {
			res += dch.At(u, t) - ch.At(u, t)
		}
	}
	return res
}

// checkBalance closes the energy balance through the grid. Import and export
// are never both positive afterwards.
func (r *Repairer) checkBalance(x *schedule.Candidate) {
	imp, exp := x.Get(schedule.PImp), x.Get(schedule.PExp)
	for t := 0; t < r.community.Steps(); t++ {
		res := r.Residual(x, t)
		switch {
		case res > 0:
			imp.Data[t] = 0
			exp.Data[t] = res
		case res < 0:
			exp.Data[t] = 0
			imp.Data[t] = -res
		default:
			imp.Data[t] = 0
			exp.Data[t] = 0
		}
	}
}

// Infeasibility summarises what the repair had to absorb.
type Infeasibility struct {
	StorageSlack float64
	VehicleSlack float64
	ENS          float64
	// GridExcess is the import/export beyond the connection limits.
	GridExcess float64
}

// Feasible reports whether the original bounds were met without relaxation.
// Unserved energy is a priced outcome and does not count as infeasible.
func (i Infeasibility) Feasible() bool {
	return i.StorageSlack == 0 && i.VehicleSlack == 0 && i.GridExcess == 0
}

// Report inspects a repaired candidate.
func (r *Repairer) Report(x *schedule.Candidate) Infeasibility {
	inf := Infeasibility{
		StorageSlack: floats.Sum(x.Get(schedule.EminRelaxStor).Data),
		VehicleSlack: floats.Sum(x.Get(schedule.EminRelaxEV).Data),
		ENS:          floats.Sum(x.Get(schedule.LoadENS).Data),
	}
	imp, exp := x.Get(schedule.PImp), x.Get(schedule.PExp)
	for t := 0; t < r.community.Steps(); t++ {
		inf.GridExcess += max(0, imp.Data[t]-r.community.Import().Limit(t))
		inf.GridExcess += max(0, exp.Data[t]-r.community.Export().Limit(t))
	}
	return inf
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func binarize(v []float64) {
	for i, x := range v {
		if x > BinaryThreshold {
			v[i] = 1
		} else {
			v[i] = 0
		}
	}
}
