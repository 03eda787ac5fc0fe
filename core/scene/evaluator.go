package scene

import (
	"github.com/kilianp07/ecom/core/repair"
	"github.com/kilianp07/ecom/core/resource"
	"github.com/kilianp07/ecom/core/schedule"
)

// Evaluator scores a repaired candidate. Lower is better. Implementations
// must be pure: the scene calls them concurrently.
type Evaluator interface {
	Evaluate(x *schedule.Candidate) float64
}

// EvaluatorFunc adapts a plain function to Evaluator.
type EvaluatorFunc func(x *schedule.Candidate) float64

func (f EvaluatorFunc) Evaluate(x *schedule.Candidate) float64 { return f(x) }

// DefaultSlackPenalty prices one unit of relaxation slack or grid excess.
const DefaultSlackPenalty = 1e3

// CostEvaluator prices a schedule with the costs carried by the community
// resources: generation, non-delivered renewable energy, grid exchange, load
// reduction/curtailment/ENS and battery cycling. Relaxation slack and power
// beyond the grid limits are added with SlackPenalty per unit.
type CostEvaluator struct {
	community    *resource.Community
	report       func(*schedule.Candidate) repair.Infeasibility
	SlackPenalty float64
}

// NewCostEvaluator returns a CostEvaluator for c.
func NewCostEvaluator(c *resource.Community) (*CostEvaluator, error) {
	r, err := repair.New(c)
	if err != nil {
		return nil, err
	}
	return &CostEvaluator{community: c, report: r.Report, SlackPenalty: DefaultSlackPenalty}, nil
}

func (e *CostEvaluator) Evaluate(x *schedule.Candidate) float64 {
	c := e.community
	var cost float64

	gen := c.Generators()
	act, exc := x.Get(schedule.GenActPower), x.Get(schedule.GenExcActPower)
	for u := 0; u < act.Rows; u++ {
		for t := 0; t < act.Cols; t++ {
			cost += act.At(u, t) * arrayAt(gen.Cost, u, t)
			cost += exc.At(u, t) * resource.PerUnit(gen.NonDeliveredCost, u)
		}
	}

	loads := c.Loads()
	red, cut, ens := x.Get(schedule.LoadRedActPower), x.Get(schedule.LoadCutActPower), x.Get(schedule.LoadENS)
	for u := 0; u < red.Rows; u++ {
		rc := resource.PerUnit(loads.ReductionCost, u)
		cc := resource.PerUnit(loads.CutCost, u)
		ec := resource.PerUnit(loads.ENSCost, u)
		for t := 0; t < red.Cols; t++ {
			cost += red.At(u, t)*rc + cut.At(u, t)*cc + ens.At(u, t)*ec
		}
	}

	stor, evs := c.Storage(), c.Vehicles()
	cost += cycling(x.Get(schedule.StorChActPower), x.Get(schedule.StorDchActPower), stor.ChargeCost, stor.DischargeCost)
	cost += cycling(x.Get(schedule.V2GChActPower), x.Get(schedule.V2GDchActPower), evs.ChargeCost, evs.DischargeCost)

	imp, exp := x.Get(schedule.PImp), x.Get(schedule.PExp)
	for t := 0; t < c.Steps(); t++ {
		cost += imp.Data[t]*c.Import().Price(t) - exp.Data[t]*c.Export().Price(t)
	}

	inf := e.report(x)
	cost += e.SlackPenalty * (inf.StorageSlack + inf.VehicleSlack + inf.GridExcess)
	return cost
}

func cycling(ch, dch schedule.Array, chCost, dchCost []float64) float64 {
	var cost float64
	for u := 0; u < ch.Rows; u++ {
		cc, dc := resource.PerUnit(chCost, u), resource.PerUnit(dchCost, u)
		for t := 0; t < ch.Cols; t++ {
			cost += ch.At(u, t)*cc + dch.At(u, t)*dc
		}
	}
	return cost
}

func arrayAt(a schedule.Array, u, t int) float64 {
	if a.Len() == 0 {
		return 0
	}
	return a.At(u, t)
}
