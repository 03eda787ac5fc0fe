package resource

import (
	"fmt"

	"github.com/kilianp07/ecom/core/schedule"
)

// Storage is a set of stationary batteries. All parameters are per unit.
// CapacityMin and InitialCharge are fractions of CapacityMax.
type Storage struct {
	Base
	ChargeMax           []float64
	DischargeMax        []float64
	ChargeEfficiency    []float64
	DischargeEfficiency []float64
	CapacityMax         []float64
	CapacityMin         []float64
	InitialCharge       []float64
	ChargeCost          []float64
	DischargeCost       []float64
}

func (s *Storage) Kind() Kind { return KindStorage }

func (s *Storage) Units() int { return len(s.CapacityMax) }

func (s *Storage) Validate(steps int) error {
	n := s.Units()
	for _, c := range []struct {
		field string
		v     []float64
	}{
		{"charge_max", s.ChargeMax},
		{"discharge_max", s.DischargeMax},
		{"charge_efficiency", s.ChargeEfficiency},
		{"discharge_efficiency", s.DischargeEfficiency},
		{"capacity_min", s.CapacityMin},
		{"initial_charge", s.InitialCharge},
	} {
		if err := checkLen(s.Name(), c.field, c.v, n); err != nil {
			return err
		}
	}
	if err := checkOptionalLen(s.Name(), "charge_cost", s.ChargeCost, n); err != nil {
		return err
	}
	if err := checkOptionalLen(s.Name(), "discharge_cost", s.DischargeCost, n); err != nil {
		return err
	}
	if err := checkEfficiency(s.Name(), "charge_efficiency", s.ChargeEfficiency); err != nil {
		return err
	}
	if err := checkEfficiency(s.Name(), "discharge_efficiency", s.DischargeEfficiency); err != nil {
		return err
	}
	for _, c := range []struct {
		field string
		v     []float64
	}{{"capacity_max", s.CapacityMax}, {"charge_max", s.ChargeMax}, {"discharge_max", s.DischargeMax}} {
		if err := checkNonNegative(s.Name(), c.field, c.v); err != nil {
			return err
		}
	}
	for u := 0; u < n; u++ {
		if s.CapacityMin[u] < 0 || s.CapacityMin[u] > 1 {
			return fmt.Errorf("%s.capacity_min[%d] = %v outside [0,1]", s.Name(), u, s.CapacityMin[u])
		}
		if s.InitialCharge[u] < 0 || s.InitialCharge[u] > 1 {
			return fmt.Errorf("%s.initial_charge[%d] = %v outside [0,1]", s.Name(), u, s.InitialCharge[u])
		}
	}
	return checkOptional(s.Name(), "value", s.Value, n, steps)
}

// Floor returns the minimum energy state of unit u before relaxation.
func (s *Storage) Floor(u int) float64 { return s.CapacityMax[u] * s.CapacityMin[u] }

func (s *Storage) Bounds(steps int) []VarBounds {
	n := s.Units() * steps
	floors := make([]float64, s.Units())
	for u := range floors {
		floors[u] = s.Floor(u)
	}
	return []VarBounds{
		{Var: schedule.StorDchActPower, Lower: zeros(n), Upper: unitBounds(s.DischargeMax, steps)},
		{Var: schedule.StorChActPower, Lower: zeros(n), Upper: unitBounds(s.ChargeMax, steps)},
		{Var: schedule.EminRelaxStor, Lower: zeros(n), Upper: unitBounds(floors, steps)},
		{Var: schedule.StorEnerState, Lower: zeros(n), Upper: unitBounds(s.CapacityMax, steps)},
		{Var: schedule.StorDchXo, Lower: zeros(n), Upper: ones(n)},
		{Var: schedule.StorChXo, Lower: zeros(n), Upper: ones(n)},
	}
}
