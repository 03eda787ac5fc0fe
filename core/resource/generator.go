package resource

import (
	"fmt"

	"github.com/kilianp07/ecom/core/schedule"
)

// Generator types as stored in IsRenewable.
const (
	Dispatchable = 1
	Renewable    = 2
)

// Generator is a set of generation units. Upper[u,t] is the available
// capacity of unit u at step t and Cost[u,t] its generation cost.
type Generator struct {
	Base
	IsRenewable      []int
	NonDeliveredCost []float64
}

func (g *Generator) Kind() Kind { return KindGenerator }

func (g *Generator) Units() int { return g.Upper.Rows }

// Capacity returns the available capacity of unit u at step t.
func (g *Generator) Capacity(u, t int) float64 { return g.Upper.At(u, t) }

// IsDispatchable reports whether unit u is a type 1 (non-renewable) unit.
func (g *Generator) IsDispatchable(u int) bool { return g.IsRenewable[u] == Dispatchable }

func (g *Generator) Validate(steps int) error {
	n := g.Units()
	if n == 0 {
		return fmt.Errorf("generator %s has no units", g.Name())
	}
	if err := checkShape(g.Name(), "upper_bound", g.Upper, n, steps); err != nil {
		return err
	}
	if err := checkNonNegative(g.Name(), "upper_bound", g.Upper.Data); err != nil {
		return err
	}
	for _, c := range []struct {
		field string
		a     schedule.Array
	}{{"value", g.Value}, {"lower_bound", g.Lower}, {"cost", g.Cost}} {
		if err := checkOptional(g.Name(), c.field, c.a, n, steps); err != nil {
			return err
		}
	}
	if len(g.IsRenewable) != n {
		return fmt.Errorf("%w: %s.is_renewable has %d values, want %d", ErrShape, g.Name(), len(g.IsRenewable), n)
	}
	for u, r := range g.IsRenewable {
		if r != Dispatchable && r != Renewable {
			return fmt.Errorf("%s.is_renewable[%d] = %d, want 1 or 2", g.Name(), u, r)
		}
	}
	return checkOptionalLen(g.Name(), "non_delivered_cost", g.NonDeliveredCost, n)
}

func (g *Generator) Bounds(int) []VarBounds {
	n := g.Upper.Len()
	upper := append([]float64(nil), g.Upper.Data...)
	return []VarBounds{
		{Var: schedule.GenActPower, Lower: lowerOrZero(g.Lower, n), Upper: upper},
		{Var: schedule.GenExcActPower, Lower: zeros(n), Upper: append([]float64(nil), upper...)},
		{Var: schedule.GenXo, Lower: zeros(n), Upper: ones(n)},
	}
}
