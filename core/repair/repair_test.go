package repair

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ecom/core/resource"
	"github.com/kilianp07/ecom/core/schedule"
)

const tol = 1e-9

func array(t *testing.T, rows [][]float64) schedule.Array {
	t.Helper()
	a, err := schedule.ArrayFrom(rows)
	require.NoError(t, err)
	return a
}

func testCommunity(t *testing.T) *resource.Community {
	t.Helper()
	gen := &resource.Generator{IsRenewable: []int{resource.Dispatchable, resource.Renewable}}
	gen.ResourceName = "gen"
	gen.Upper = array(t, [][]float64{
		{10, 10, 10, 10, 10, 10},
		{0, 2, 6, 8, 5, 1},
	})

	loads := &resource.Load{}
	loads.ResourceName = "loads"
	loads.Upper = array(t, [][]float64{
		{3, 4, 5, 6, 5, 4},
		{1, 1, 2, 2, 3, 3},
	})

	stor := &resource.Storage{
		ChargeMax:           []float64{5},
		DischargeMax:        []float64{5},
		ChargeEfficiency:    []float64{0.9},
		DischargeEfficiency: []float64{0.9},
		CapacityMax:         []float64{12},
		CapacityMin:         []float64{0.25},
		InitialCharge:       []float64{0.5},
	}
	stor.ResourceName = "stor"

	evs := &resource.Vehicle{
		ChargeEfficiency:    []float64{0.95, 0.9},
		DischargeEfficiency: []float64{0.95, 0.9},
		CapacityMax:         []float64{40, 30},
		MinCharge:           []float64{0.3, 0.5},
	}
	evs.ResourceName = "evs"
	evs.ScheduleCharge = array(t, [][]float64{
		{7, 7, 0, 0, 7, 7},
		{11, 11, 11, 11, 0, 0},
	})
	evs.ScheduleDischarge = array(t, [][]float64{
		{7, 7, 0, 0, 7, 7},
		{11, 11, 11, 11, 0, 0},
	})

	imp := resource.NewImport("pimp", []float64{20, 20, 20, 20, 20, 20}, nil)
	exp := resource.NewExport("pexp", []float64{15, 15, 15, 15, 15, 15}, nil)

	c, err := resource.NewCommunity(gen, loads, stor, evs, imp, exp)
	require.NoError(t, err)
	return c
}

func randomCandidate(s schedule.Schema, rng *rand.Rand) *schedule.Candidate {
	v := make([]float64, s.Size())
	for i := range v {
		v[i] = rng.Float64()*40 - 5
	}
	c, err := s.Decode(v)
	if err != nil {
		panic(err)
	}
	return c
}

func TestRepair_SingleGeneratorScenario(t *testing.T) {
	gen := &resource.Generator{IsRenewable: []int{resource.Dispatchable}}
	gen.ResourceName = "gen"
	gen.Upper = array(t, [][]float64{{10}})
	loads := &resource.Load{}
	loads.ResourceName = "loads"
	loads.Upper = array(t, [][]float64{{8}})
	c, err := resource.NewCommunity(gen, loads)
	require.NoError(t, err)
	r, err := New(c)
	require.NoError(t, err)

	x := r.Schema().NewCandidate()
	x.Get(schedule.GenXo).Data[0] = 1.0
	r.Repair(x)

	assert.Equal(t, 10.0, x.Get(schedule.GenActPower).At(0, 0))
	assert.Equal(t, 0.0, x.Get(schedule.GenExcActPower).At(0, 0))
	assert.Equal(t, 8.0, x.Get(schedule.LoadENS).At(0, 0))
	// Net load is reduction + curtailment + ENS - demand = 0, so the whole
	// generation is a surplus.
	assert.Equal(t, 10.0, x.Get(schedule.PExp).Data[0])
	assert.Equal(t, 0.0, x.Get(schedule.PImp).Data[0])

	rep := r.Report(x)
	assert.Equal(t, 8.0, rep.ENS)
	assert.Equal(t, 10.0, rep.GridExcess, "no export connection configured")
	assert.False(t, rep.Feasible())
}

func TestRepair_GeneratorTypes(t *testing.T) {
	r, err := New(testCommunity(t))
	require.NoError(t, err)
	x := r.Schema().NewCandidate()
	act, xo := x.Get(schedule.GenActPower), x.Get(schedule.GenXo)
	xo.Set(0, 0, 0.7)
	xo.Set(0, 1, 0.3)
	act.Set(0, 0, 3) // overridden by the decision
	act.Set(1, 2, 4)
	act.Set(1, 3, 20) // above capacity 8
	act.Set(1, 4, -1)
	r.Repair(x)

	exc := x.Get(schedule.GenExcActPower)
	assert.Equal(t, 10.0, act.At(0, 0))
	assert.Equal(t, 0.0, act.At(0, 1))
	assert.Equal(t, 0.0, exc.At(0, 0))
	assert.Equal(t, 4.0, act.At(1, 2))
	assert.Equal(t, 2.0, exc.At(1, 2))
	assert.Equal(t, 8.0, act.At(1, 3))
	assert.Equal(t, 0.0, exc.At(1, 3))
	assert.Equal(t, 0.0, act.At(1, 4))
	assert.Equal(t, 5.0, exc.At(1, 4))
}

func TestRepair_Loads(t *testing.T) {
	r, err := New(testCommunity(t))
	require.NoError(t, err)
	x := r.Schema().NewCandidate()
	x.Get(schedule.LoadRedActPower).Set(0, 0, 1)
	x.Get(schedule.LoadRedActPower).Set(0, 1, 9)
	x.Get(schedule.LoadXo).Set(1, 2, 0.51)
	r.Repair(x)

	red, cut, ens := x.Get(schedule.LoadRedActPower), x.Get(schedule.LoadCutActPower), x.Get(schedule.LoadENS)
	assert.Equal(t, 2.0, ens.At(0, 0))
	assert.Equal(t, 4.0, red.At(0, 1), "reduction clipped to demand")
	assert.Equal(t, 0.0, ens.At(0, 1))
	assert.Equal(t, 2.0, cut.At(1, 2))
	assert.Equal(t, 0.0, ens.At(1, 2))
	assert.Equal(t, 1.0, x.Get(schedule.LoadXo).At(1, 2))
}

func TestRepair_StorageCapsCharge(t *testing.T) {
	r, err := New(testCommunity(t))
	require.NoError(t, err)
	x := r.Schema().NewCandidate()
	ch, xo := x.Get(schedule.StorChActPower), x.Get(schedule.StorChXo)
	for ts := 0; ts < 6; ts++ {
		ch.Set(0, ts, 5)
		xo.Set(0, ts, 1)
	}
	r.Repair(x)

	state := x.Get(schedule.StorEnerState)
	// 6 + 4.5 = 10.5, then capped at 12 by reducing the charge to 1.5/0.9.
	assert.InDelta(t, 10.5, state.At(0, 0), tol)
	assert.InDelta(t, 12.0, state.At(0, 1), tol)
	assert.InDelta(t, 1.5/0.9, ch.At(0, 1), tol)
	assert.InDelta(t, 0.0, ch.At(0, 2), tol)
	assert.InDelta(t, 12.0, state.At(0, 5), tol)
}

func TestRepair_StorageFloorUsesSlack(t *testing.T) {
	r, err := New(testCommunity(t))
	require.NoError(t, err)
	x := r.Schema().NewCandidate()
	dch, xo, relax := x.Get(schedule.StorDchActPower), x.Get(schedule.StorDchXo), x.Get(schedule.EminRelaxStor)
	for ts := 0; ts < 6; ts++ {
		dch.Set(0, ts, 5)
		xo.Set(0, ts, 1)
	}
	relax.Set(0, 1, 1)
	relax.Set(0, 2, 50) // clipped to the floor of 3
	r.Repair(x)

	state := x.Get(schedule.StorEnerState)
	// 6 - 5/0.9 = 0.444 < floor 3 -> raised to 3.
	assert.InDelta(t, 3.0, state.At(0, 0), tol)
	// With slack 1 the floor becomes 2.
	assert.InDelta(t, 2.0, state.At(0, 1), tol)
	assert.InDelta(t, 3.0, relax.At(0, 2), tol)
	assert.InDelta(t, 0.0, state.At(0, 2), tol)
	assert.Greater(t, r.Report(x).StorageSlack, 0.0)
}

func TestRepair_IdleBatteryDropsSlack(t *testing.T) {
	r, err := New(testCommunity(t))
	require.NoError(t, err)
	x := r.Schema().NewCandidate()
	stor, evs := x.Get(schedule.EminRelaxStor), x.Get(schedule.EminRelaxEV)
	for ts := 0; ts < 6; ts++ {
		stor.Set(0, ts, 2)
		evs.Set(1, ts, 5)
	}
	r.Repair(x)

	// Idle units stay at their initial state, well above the floor.
	assert.InDeltaSlice(t, []float64{6, 6, 6, 6, 6, 6}, x.Get(schedule.StorEnerState).Data, tol)
	assert.InDeltaSlice(t, make([]float64, 6), stor.Data, tol)
	assert.InDeltaSlice(t, make([]float64, 12), evs.Data, tol)

	rep := r.Report(x)
	assert.Zero(t, rep.StorageSlack)
	assert.Zero(t, rep.VehicleSlack)
	assert.True(t, rep.Feasible())
}

func TestRepair_OpposingDecisionsExclusive(t *testing.T) {
	r, err := New(testCommunity(t))
	require.NoError(t, err)
	x := r.Schema().NewCandidate()
	x.Get(schedule.StorChActPower).Set(0, 0, 1)
	x.Get(schedule.StorDchActPower).Set(0, 0, 3)
	x.Get(schedule.StorChXo).Set(0, 0, 1)
	x.Get(schedule.StorDchXo).Set(0, 0, 1)
	r.Repair(x)

	assert.Equal(t, 0.0, x.Get(schedule.StorChXo).At(0, 0))
	assert.Equal(t, 1.0, x.Get(schedule.StorDchXo).At(0, 0))
	assert.Equal(t, 0.0, x.Get(schedule.StorChActPower).At(0, 0))
	assert.Equal(t, 3.0, x.Get(schedule.StorDchActPower).At(0, 0))
}

func TestRepair_VehicleScheduleBounds(t *testing.T) {
	r, err := New(testCommunity(t))
	require.NoError(t, err)
	x := r.Schema().NewCandidate()
	ch, xo := x.Get(schedule.V2GChActPower), x.Get(schedule.V2GChXo)
	for ts := 0; ts < 6; ts++ {
		ch.Set(0, ts, 100)
		xo.Set(0, ts, 1)
	}
	r.Repair(x)

	state := x.Get(schedule.V2GEnerState)
	// Starts at 0.8 * 40 = 32, charges 7 * 0.95 = 6.65 at t=0.
	assert.InDelta(t, 38.65, state.At(0, 0), tol)
	assert.InDelta(t, 0.0, ch.At(0, 2), tol, "vehicle away")
	assert.InDelta(t, 40.0, state.At(0, 1), tol)
}

func TestRepair_Properties(t *testing.T) {
	c := testCommunity(t)
	r, err := New(c)
	require.NoError(t, err)
	rng := rand.New(rand.NewPCG(7, 11))

	for i := 0; i < 200; i++ {
		x := r.Repair(randomCandidate(r.Schema(), rng))

		for _, v := range schedule.Vars() {
			if !v.IsBinary() {
				continue
			}
			for _, b := range x.Get(v).Data {
				if b != 0 && b != 1 {
					t.Fatalf("%s holds non-binary %v", v, b)
				}
			}
		}

		checkBattery(t, x, r.stor)
		checkBattery(t, x, r.evs)

		imp, exp := x.Get(schedule.PImp), x.Get(schedule.PExp)
		for ts := 0; ts < c.Steps(); ts++ {
			if imp.Data[ts] > 0 && exp.Data[ts] > 0 {
				t.Fatalf("import and export both positive at %d", ts)
			}
			closure := imp.Data[ts] - exp.Data[ts] + r.Residual(x, ts)
			if math.Abs(closure) > tol {
				t.Fatalf("balance not closed at %d: %v", ts, closure)
			}
		}

		again := r.Repair(x.Clone())
		for _, v := range schedule.Vars() {
			assert.InDeltaSlice(t, x.Get(v).Data, again.Get(v).Data, tol, "repair not idempotent on %s", v)
		}
	}
}

func checkBattery(t *testing.T, x *schedule.Candidate, b battery) {
	t.Helper()
	ch, dch := x.Get(b.ch), x.Get(b.dch)
	relax, state := x.Get(b.relax), x.Get(b.state)
	for u := 0; u < b.units; u++ {
		prev := b.initial[u]
		for ts := 0; ts < b.steps; ts++ {
			slack := relax.At(u, ts)
			if slack < 0 {
				t.Fatalf("negative slack %v", slack)
			}
			s := state.At(u, ts)
			if s > b.capMax[u]+tol {
				t.Fatalf("state %v above capacity %v", s, b.capMax[u])
			}
			if s < b.floor[u]-slack-tol {
				t.Fatalf("state %v below relaxed floor %v", s, b.floor[u]-slack)
			}
			raw := min(prev+ch.At(u, ts)*b.chEff[u]-dch.At(u, ts)/b.dchEff[u], b.capMax[u])
			if slack > max(0, b.floor[u]-raw)+tol {
				t.Fatalf("slack %v at %d exceeds the floor deficit %v", slack, ts, max(0, b.floor[u]-raw))
			}
			want := max(raw, b.floor[u]-slack)
			if math.Abs(want-s) > 1e-6 {
				t.Fatalf("state at %d is %v, recursion gives %v", ts, s, want)
			}
			if ch.At(u, ts) > b.chMax.At(u, ts)+tol || dch.At(u, ts) > b.dchMax.At(u, ts)+tol {
				t.Fatalf("power above schedule at %d", ts)
			}
			prev = s
		}
	}
}
