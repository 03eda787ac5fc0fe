package resource

import (
	"fmt"

	"github.com/kilianp07/ecom/core/schedule"
)

// Grid is the import or export connection of the community. Upper and Cost
// are [1,T]: the per-step power limit and price.
type Grid struct {
	Base
	Direction Kind
}

// NewImport returns an import connection with the given limits and prices.
func NewImport(name string, limit, price []float64) *Grid {
	return newGrid(name, KindImport, limit, price)
}

// NewExport returns an export connection with the given limits and prices.
func NewExport(name string, limit, price []float64) *Grid {
	return newGrid(name, KindExport, limit, price)
}

func newGrid(name string, dir Kind, limit, price []float64) *Grid {
	g := &Grid{Direction: dir}
	g.ResourceName = name
	g.Upper = schedule.Array{Rows: 1, Cols: len(limit), Data: append([]float64(nil), limit...)}
	if len(price) > 0 {
		g.Cost = schedule.Array{Rows: 1, Cols: len(price), Data: append([]float64(nil), price...)}
	}
	return g
}

func (g *Grid) Kind() Kind { return g.Direction }

// Units is zero: grid variables are vectors over the horizon.
func (g *Grid) Units() int { return 0 }

// Limit returns the power limit at step t.
func (g *Grid) Limit(t int) float64 { return g.Upper.Data[t] }

// Price returns the price at step t, zero when no price is set.
func (g *Grid) Price(t int) float64 {
	if t < g.Cost.Len() {
		return g.Cost.Data[t]
	}
	return 0
}

func (g *Grid) Validate(steps int) error {
	if g.Direction != KindImport && g.Direction != KindExport {
		return fmt.Errorf("grid %s has direction %s", g.Name(), g.Direction)
	}
	if g.Upper.Len() != steps {
		return fmt.Errorf("%w: %s.upper_bound has %d values, want %d", ErrShape, g.Name(), g.Upper.Len(), steps)
	}
	if err := checkNonNegative(g.Name(), "upper_bound", g.Upper.Data); err != nil {
		return err
	}
	if g.Cost.Len() != 0 && g.Cost.Len() != steps {
		return fmt.Errorf("%w: %s.cost has %d values, want %d", ErrShape, g.Name(), g.Cost.Len(), steps)
	}
	return nil
}

func (g *Grid) Bounds(steps int) []VarBounds {
	v := schedule.PImp
	if g.Direction == KindExport {
		v = schedule.PExp
	}
	return []VarBounds{{Var: v, Lower: zeros(steps), Upper: append([]float64(nil), g.Upper.Data...)}}
}
