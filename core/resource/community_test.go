package resource

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ecom/core/schedule"
)

func mustArray(t *testing.T, rows [][]float64) schedule.Array {
	t.Helper()
	a, err := schedule.ArrayFrom(rows)
	require.NoError(t, err)
	return a
}

func testGenerator(t *testing.T) *Generator {
	g := &Generator{IsRenewable: []int{Dispatchable, Renewable}}
	g.ResourceName = "gen"
	g.Upper = mustArray(t, [][]float64{{10, 10}, {4, 6}})
	return g
}

func testLoad(t *testing.T) *Load {
	l := &Load{}
	l.ResourceName = "loads"
	l.Upper = mustArray(t, [][]float64{{8, 3}})
	return l
}

func testStorage() *Storage {
	s := &Storage{
		ChargeMax:           []float64{5},
		DischargeMax:        []float64{4},
		ChargeEfficiency:    []float64{0.9},
		DischargeEfficiency: []float64{0.95},
		CapacityMax:         []float64{20},
		CapacityMin:         []float64{0.2},
		InitialCharge:       []float64{0.5},
	}
	s.ResourceName = "stor"
	return s
}

func TestNewCommunity_Defaults(t *testing.T) {
	c, err := NewCommunity(testGenerator(t), testLoad(t))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Steps())
	assert.Equal(t, 0, c.Storage().Units())
	assert.Equal(t, 0, c.Vehicles().Units())
	assert.Equal(t, 0.0, c.Import().Limit(1))
	assert.Equal(t, schedule.Dims{Steps: 2, Generators: 2, Loads: 1}, c.Dims())
	assert.Len(t, c.Resources(), 2)
}

func TestNewCommunity_Errors(t *testing.T) {
	_, err := NewCommunity(testLoad(t))
	assert.Error(t, err, "missing generator")

	_, err = NewCommunity(testGenerator(t), testLoad(t), testLoad(t))
	assert.Error(t, err, "duplicate load")

	bad := testLoad(t)
	bad.Upper = mustArray(t, [][]float64{{1, 2, 3}})
	_, err = NewCommunity(testGenerator(t), bad)
	assert.True(t, errors.Is(err, ErrShape))

	g := testGenerator(t)
	g.IsRenewable = []int{1, 3}
	_, err = NewCommunity(g, testLoad(t))
	assert.Error(t, err)

	s := testStorage()
	s.ChargeEfficiency = []float64{1.2}
	_, err = NewCommunity(testGenerator(t), testLoad(t), s)
	assert.Error(t, err)
}

func TestCommunity_BoundsFollowSchema(t *testing.T) {
	imp := NewImport("pimp", []float64{50, 40}, []float64{0.2, 0.3})
	c, err := NewCommunity(testGenerator(t), testLoad(t), testStorage(), imp)
	require.NoError(t, err)
	s, err := schedule.NewSchema(c.Dims())
	require.NoError(t, err)

	lower, upper, err := c.Bounds(s)
	require.NoError(t, err)
	require.Len(t, lower, s.Size())
	require.Len(t, upper, s.Size())

	gen := s.Field(schedule.GenActPower)
	assert.Equal(t, []float64{10, 10, 4, 6}, upper[gen.Offset:gen.Offset+4])
	pimp := s.Field(schedule.PImp)
	assert.Equal(t, []float64{50, 40}, upper[pimp.Offset:pimp.Offset+2])
	relax := s.Field(schedule.EminRelaxStor)
	assert.InDeltaSlice(t, []float64{4, 4}, upper[relax.Offset:relax.Offset+2], 1e-12)
	xo := s.Field(schedule.StorChXo)
	assert.Equal(t, []float64{1, 1}, upper[xo.Offset:xo.Offset+2])
	for i := range lower {
		assert.LessOrEqual(t, lower[i], upper[i])
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("evs")
	require.NoError(t, err)
	assert.Equal(t, KindVehicle, k)
	assert.Equal(t, "vehicle", k.String())
	_, err = ParseKind("windmill")
	assert.Error(t, err)
}
