package resource

import (
	"fmt"

	"github.com/kilianp07/ecom/core/schedule"
)

// InitialStateFraction is the state of charge every V2G unit starts the
// horizon with, as a fraction of its capacity.
const InitialStateFraction = 0.8

// Vehicle is an EV/V2G fleet. ScheduleCharge and ScheduleDischarge bound the
// power of unit u at step t and are zero while the vehicle is away.
type Vehicle struct {
	Base
	ScheduleCharge      schedule.Array
	ScheduleDischarge   schedule.Array
	ChargeEfficiency    []float64
	DischargeEfficiency []float64
	CapacityMax         []float64
	MinCharge           []float64
	ChargeCost          []float64
	DischargeCost       []float64
}

func (v *Vehicle) Kind() Kind { return KindVehicle }

func (v *Vehicle) Units() int { return len(v.CapacityMax) }

func (v *Vehicle) Validate(steps int) error {
	n := v.Units()
	if err := checkShape(v.Name(), "schedule_charge", v.ScheduleCharge, n, steps); err != nil {
		return err
	}
	if err := checkShape(v.Name(), "schedule_discharge", v.ScheduleDischarge, n, steps); err != nil {
		return err
	}
	for _, c := range []struct {
		field string
		v     []float64
	}{
		{"charge_efficiency", v.ChargeEfficiency},
		{"discharge_efficiency", v.DischargeEfficiency},
		{"min_charge", v.MinCharge},
	} {
		if err := checkLen(v.Name(), c.field, c.v, n); err != nil {
			return err
		}
	}
	if err := checkOptionalLen(v.Name(), "charge_cost", v.ChargeCost, n); err != nil {
		return err
	}
	if err := checkOptionalLen(v.Name(), "discharge_cost", v.DischargeCost, n); err != nil {
		return err
	}
	if err := checkEfficiency(v.Name(), "charge_efficiency", v.ChargeEfficiency); err != nil {
		return err
	}
	if err := checkEfficiency(v.Name(), "discharge_efficiency", v.DischargeEfficiency); err != nil {
		return err
	}
	if err := checkNonNegative(v.Name(), "capacity_max", v.CapacityMax); err != nil {
		return err
	}
	if err := checkNonNegative(v.Name(), "schedule_charge", v.ScheduleCharge.Data); err != nil {
		return err
	}
	if err := checkNonNegative(v.Name(), "schedule_discharge", v.ScheduleDischarge.Data); err != nil {
		return err
	}
	for u, m := range v.MinCharge {
		if m < 0 || m > 1 {
			return fmt.Errorf("%s.min_charge[%d] = %v outside [0,1]", v.Name(), u, m)
		}
	}
	return checkOptional(v.Name(), "value", v.Value, n, steps)
}

// Floor returns the minimum energy state of unit u before relaxation.
func (v *Vehicle) Floor(u int) float64 { return v.CapacityMax[u] * v.MinCharge[u] }

// InitialState returns the energy state of unit u before the first step.
func (v *Vehicle) InitialState(u int) float64 { return v.CapacityMax[u] * InitialStateFraction }

func (v *Vehicle) Bounds(steps int) []VarBounds {
	n := v.Units() * steps
	floors := make([]float64, v.Units())
	for u := range floors {
		floors[u] = v.Floor(u)
	}
	return []VarBounds{
		{Var: schedule.V2GDchActPower, Lower: zeros(n), Upper: append([]float64(nil), v.ScheduleDischarge.Data...)},
		{Var: schedule.V2GChActPower, Lower: zeros(n), Upper: append([]float64(nil), v.ScheduleCharge.Data...)},
		{Var: schedule.EminRelaxEV, Lower: zeros(n), Upper: unitBounds(floors, steps)},
		{Var: schedule.V2GEnerState, Lower: zeros(n), Upper: unitBounds(v.CapacityMax, steps)},
		{Var: schedule.V2GDchXo, Lower: zeros(n), Upper: ones(n)},
		{Var: schedule.V2GChXo, Lower: zeros(n), Upper: ones(n)},
	}
}
