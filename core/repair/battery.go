package repair

import (
	"github.com/kilianp07/ecom/core/resource"
	"github.com/kilianp07/ecom/core/schedule"
)

// battery is the parameter set of the causal state-of-charge recursion shared
// by stationary storage and the V2G fleet.
type battery struct {
	units   int
	steps   int
	capMax  []float64
	chEff   []float64
	dchEff  []float64
	floor   []float64
	initial []float64
	chMax   schedule.Array
	dchMax  schedule.Array

	ch, dch, relax, state, chXo, dchXo schedule.Var
}

func storageBattery(s *resource.Storage, steps int) battery {
	n := s.Units()
	b := battery{
		units:   n,
		steps:   steps,
		capMax:  s.CapacityMax,
		chEff:   s.ChargeEfficiency,
		dchEff:  s.DischargeEfficiency,
		floor:   make([]float64, n),
		initial: make([]float64, n),
		chMax:   schedule.NewArray(n, steps),
		dchMax:  schedule.NewArray(n, steps),
		ch:      schedule.StorChActPower,
		dch:     schedule.StorDchActPower,
		relax:   schedule.EminRelaxStor,
		state:   schedule.StorEnerState,
		chXo:    schedule.StorChXo,
		dchXo:   schedule.StorDchXo,
	}
	for u := 0; u < n; u++ {
		b.floor[u] = s.Floor(u)
		b.initial[u] = s.CapacityMax[u] * s.InitialCharge[u]
		for t := 0; t < steps; t++ {
			b.chMax.Set(u, t, s.ChargeMax[u])
			b.dchMax.Set(u, t, s.DischargeMax[u])
		}
	}
	return b
}

func vehicleBattery(v *resource.Vehicle) battery {
	n := v.Units()
	b := battery{
		units:   n,
		steps:   v.ScheduleCharge.Cols,
		capMax:  v.CapacityMax,
		chEff:   v.ChargeEfficiency,
		dchEff:  v.DischargeEfficiency,
		floor:   make([]float64, n),
		initial: make([]float64, n),
		chMax:   v.ScheduleCharge,
		dchMax:  v.ScheduleDischarge,
		ch:      schedule.V2GChActPower,
		dch:     schedule.V2GDchActPower,
		relax:   schedule.EminRelaxEV,
		state:   schedule.V2GEnerState,
		chXo:    schedule.V2GChXo,
		dchXo:   schedule.V2GDchXo,
	}
	for u := 0; u < n; u++ {
		b.floor[u] = v.Floor(u)
		b.initial[u] = v.InitialState(u)
	}
	return b
}

// repair walks every unit forward in time. The state at t depends only on
// the state at t-1 and the (possibly reduced) power decided at t.
func (b battery) repair(x *schedule.Candidate) {
	ch, dch := x.Get(b.ch), x.Get(b.dch)
	relax, state := x.Get(b.relax), x.Get(b.state)
	chXo, dchXo := x.Get(b.chXo), x.Get(b.dchXo)
	binarize(chXo.Data)
	binarize(dchXo.Data)

	for u := 0; u < b.units; u++ {
		capMax, ce, de := b.capMax[u], b.chEff[u], b.dchEff[u]
		prev := b.initial[u]
		for t := 0; t < b.steps; t++ {
			c := clip(ch.At(u, t), 0, b.chMax.At(u, t))
			d := clip(dch.At(u, t), 0, b.dchMax.At(u, t))

			// Opposing decisions: keep the direction asking for more power.
			if chXo.At(u, t) == 1 && dchXo.At(u, t) == 1 {
				if d > c {
					chXo.Set(u, t, 0)
				} else {
					dchXo.Set(u, t, 0)
				}
			}

			if prev+c*ce > capMax {
				c = max(0, (capMax-prev)/ce)
			}
			if prev-d/de < 0 {
				d = prev * de
			}
			c *= chXo.At(u, t)
			d *= dchXo.At(u, t)

			raw := min(prev+c*ce-d/de, capMax)
			// Slack only covers the part of the floor the state actually misses.
			slack := min(clip(relax.At(u, t), 0, b.floor[u]), max(0, b.floor[u]-raw))
			s := max(raw, b.floor[u]-slack)

			ch.Set(u, t, c)
			dch.Set(u, t, d)
			relax.Set(u, t, slack)
			state.Set(u, t, s)
			prev = s
		}
	}
}
