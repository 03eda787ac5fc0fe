package resource

import (
	"fmt"

	"github.com/kilianp07/ecom/core/schedule"
)

// Load is a set of consumers. Upper[u,t] is the demand profile.
type Load struct {
	Base
	ReductionCost []float64
	CutCost       []float64
	ENSCost       []float64
}

func (l *Load) Kind() Kind { return KindLoad }

func (l *Load) Units() int { return l.Upper.Rows }

// Demand returns the demand of unit u at step t.
func (l *Load) Demand(u, t int) float64 { return l.Upper.At(u, t) }

func (l *Load) Validate(steps int) error {
	n := l.Units()
	if n == 0 {
		return fmt.Errorf("load %s has no units", l.Name())
	}
	if err := checkShape(l.Name(), "upper_bound", l.Upper, n, steps); err != nil {
		return err
	}
	if err := checkNonNegative(l.Name(), "upper_bound", l.Upper.Data); err != nil {
		return err
	}
	if err := checkOptional(l.Name(), "value", l.Value, n, steps); err != nil {
		return err
	}
	for _, c := range []struct {
		field string
		v     []float64
	}{{"reduction_cost", l.ReductionCost}, {"cut_cost", l.CutCost}, {"ens_cost", l.ENSCost}} {
		if err := checkOptionalLen(l.Name(), c.field, c.v, n); err != nil {
			return err
		}
	}
	return nil
}

func (l *Load) Bounds(int) []VarBounds {
	n := l.Upper.Len()
	demand := func() []float64 { return append([]float64(nil), l.Upper.Data...) }
	return []VarBounds{
		{Var: schedule.LoadRedActPower, Lower: zeros(n), Upper: demand()},
		{Var: schedule.LoadCutActPower, Lower: zeros(n), Upper: demand()},
		{Var: schedule.LoadENS, Lower: zeros(n), Upper: demand()},
		{Var: schedule.LoadXo, Lower: zeros(n), Upper: ones(n)},
	}
}
