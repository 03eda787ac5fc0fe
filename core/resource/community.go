package resource

import (
	"errors"
	"fmt"

	"github.com/kilianp07/ecom/core/schedule"
)

// Community is the ordered set of resources of one energy community. The
// insertion order is kept for reporting; the vector layout is defined by the
// schedule schema.
type Community struct {
	resources []Resource
	steps     int

	gen  *Generator
	load *Load
	stor *Storage
	evs  *Vehicle
	imp  *Grid
	exp  *Grid
}

// NewCommunity validates the resources and indexes them by kind. A generator
// set and a load set are required; storage, vehicles and grid connections are
// optional and default to zero units or zero limits.
func NewCommunity(resources ...Resource) (*Community, error) {
	c := &Community{}
	seen := map[Kind]string{}
	for _, r := range resources {
		if r == nil {
			return nil, errors.New("nil resource")
		}
		if prev, ok := seen[r.Kind()]; ok {
			return nil, fmt.Errorf("duplicate %s resource: %s and %s", r.Kind(), prev, r.Name())
		}
		seen[r.Kind()] = r.Name()
		switch v := r.(type) {
		case *Generator:
			c.gen = v
		case *Load:
			c.load = v
		case *Storage:
			c.stor = v
		case *Vehicle:
			c.evs = v
		case *Grid:
			if v.Direction == KindImport {
				c.imp = v
			} else {
				c.exp = v
			}
		default:
			return nil, fmt.Errorf("unsupported resource type %T", r)
		}
		c.resources = append(c.resources, r)
	}
	if c.gen == nil {
		return nil, errors.New("community requires a generator resource")
	}
	if c.load == nil {
		return nil, errors.New("community requires a load resource")
	}
	c.steps = c.gen.Upper.Cols
	if c.stor == nil {
		c.stor = &Storage{Base: Base{ResourceName: "stor"}}
	}
	if c.evs == nil {
		c.evs = &Vehicle{Base: Base{ResourceName: "evs"}}
		c.evs.ScheduleCharge = schedule.NewArray(0, c.steps)
		c.evs.ScheduleDischarge = schedule.NewArray(0, c.steps)
	}
	if c.imp == nil {
		c.imp = NewImport("pimp", make([]float64, c.steps), nil)
	}
	if c.exp == nil {
		c.exp = NewExport("pexp", make([]float64, c.steps), nil)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks every resource against the horizon.
func (c *Community) Validate() error {
	if c.steps <= 0 {
		return fmt.Errorf("horizon must be positive, got %d", c.steps)
	}
	for _, r := range []Resource{c.gen, c.load, c.stor, c.evs, c.imp, c.exp} {
		if err := r.Validate(c.steps); err != nil {
			return fmt.Errorf("resource %s: %w", r.Name(), err)
		}
	}
	return nil
}

// Resources returns the configured resources in insertion order.
func (c *Community) Resources() []Resource {
	out := make([]Resource, len(c.resources))
	copy(out, c.resources)
	return out
}

func (c *Community) Steps() int             { return c.steps }
func (c *Community) Generators() *Generator { return c.gen }
func (c *Community) Loads() *Load           { return c.load }
func (c *Community) Storage() *Storage      { return c.stor }
func (c *Community) Vehicles() *Vehicle     { return c.evs }
func (c *Community) Import() *Grid          { return c.imp }
func (c *Community) Export() *Grid          { return c.exp }

// Dims returns the schema dimensions of the community.
func (c *Community) Dims() schedule.Dims {
	return schedule.Dims{
		Steps:      c.steps,
		Generators: c.gen.Units(),
		Loads:      c.load.Units(),
		Storage:    c.stor.Units(),
		Vehicles:   c.evs.Units(),
	}
}

// Bounds concatenates the resource bounds in schema order. A resource that
// declares bounds of the wrong length is a configuration error.
func (c *Community) Bounds(s schedule.Schema) (lower, upper []float64, err error) {
	owned := make(map[schedule.Var]VarBounds)
	for _, r := range []Resource{c.gen, c.load, c.stor, c.evs, c.imp, c.exp} {
		for _, b := range r.Bounds(c.steps) {
			owned[b.Var] = b
		}
	}
	lower = make([]float64, 0, s.Size())
	upper = make([]float64, 0, s.Size())
	for _, f := range s.Fields() {
		b, ok := owned[f.Var]
		if !ok {
			if f.Shape.Size() != 0 {
				return nil, nil, fmt.Errorf("%w: no resource bounds %s", ErrShape, f.Var)
			}
			continue
		}
		if len(b.Lower) != f.Shape.Size() || len(b.Upper) != f.Shape.Size() {
			return nil, nil, fmt.Errorf("%w: %s bounds have %d/%d values, want %d",
				ErrShape, f.Var, len(b.Lower), len(b.Upper), f.Shape.Size())
		}
		lower = append(lower, b.Lower...)
		upper = append(upper, b.Upper...)
	}
	return lower, upper, nil
}
