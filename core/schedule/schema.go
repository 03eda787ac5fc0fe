package schedule

import (
	"errors"
	"fmt"
)

// ErrDimension is returned when a vector or candidate does not match the schema.
var ErrDimension = errors.New("dimension mismatch")

// Dims holds the unit count per resource class and the horizon length.
type Dims struct {
	Steps      int
	Generators int
	Loads      int
	Storage    int
	Vehicles   int
}

// Units returns the number of rows of the given class. Grid variables are
// vectors and report zero.
func (d Dims) Units(c Class) int {
	switch c {
	case ClassGenerator:
		return d.Generators
	case ClassLoad:
		return d.Loads
	case ClassStorage:
		return d.Storage
	case ClassVehicle:
		return d.Vehicles
	}
	return 0
}

// Shape describes the decoded shape of a variable. Vector shapes have a
// single implicit row and are indexed by timestep only.
type Shape struct {
	Rows   int
	Cols   int
	Vector bool
}

func (s Shape) Size() int { return s.Rows * s.Cols }

func (s Shape) String() string {
	if s.Vector {
		return fmt.Sprintf("[%d]", s.Cols)
	}
	return fmt.Sprintf("[%d,%d]", s.Rows, s.Cols)
}

// Field is one registry entry: a variable, its shape and its offset in the
// flat vector.
type Field struct {
	Var    Var
	Shape  Shape
	Offset int
}

// Schema is the ordered variable registry shared by encode and decode.
type Schema struct {
	dims   Dims
	fields []Field
	size   int
}

// NewSchema builds the registry for the given dimensions.
func NewSchema(d Dims) (Schema, error) {
	if d.Steps <= 0 {
		return Schema{}, fmt.Errorf("steps must be positive, got %d", d.Steps)
	}
	if d.Generators < 0 || d.Loads < 0 || d.Storage < 0 || d.Vehicles < 0 {
		return Schema{}, fmt.Errorf("unit counts must not be negative: %+v", d)
	}
	s := Schema{dims: d, fields: make([]Field, 0, numVars)}
	for _, v := range Vars() {
		var sh Shape
		if v == PImp || v == PExp {
			sh = Shape{Rows: 1, Cols: d.Steps, Vector: true}
		} else {
			sh = Shape{Rows: d.Units(v.Class()), Cols: d.Steps}
		}
		s.fields = append(s.fields, Field{Var: v, Shape: sh, Offset: s.size})
		s.size += sh.Size()
	}
	return s, nil
}

// Dims returns the dimensions the schema was built from.
func (s Schema) Dims() Dims { return s.dims }

// Size is the flat vector length.
func (s Schema) Size() int { return s.size }

// Fields returns a copy of the registry entries in layout order.
func (s Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field returns the registry entry of v.
func (s Schema) Field(v Var) Field { return s.fields[v] }

// NewCandidate returns a zeroed candidate shaped by the schema.
func (s Schema) NewCandidate() *Candidate {
	c := &Candidate{}
	for _, f := range s.fields {
		c.vars[f.Var] = NewArray(f.Shape.Rows, f.Shape.Cols)
	}
	return c
}

// Encode concatenates the raveled variable arrays in registry order.
func (s Schema) Encode(c *Candidate) ([]float64, error) {
	out := make([]float64, s.size)
	for _, f := range s.fields {
		a := c.vars[f.Var]
		if a.Len() != f.Shape.Size() {
			return nil, fmt.Errorf("%w: %s has %d elements, want %s", ErrDimension, f.Var, a.Len(), f.Shape)
		}
		copy(out[f.Offset:f.Offset+f.Shape.Size()], a.Data)
	}
	return out, nil
}

// Decode splits v at the registry offsets and reshapes every slice.
func (s Schema) Decode(v []float64) (*Candidate, error) {
	if len(v) != s.size {
		return nil, fmt.Errorf("%w: vector has %d elements, want %d", ErrDimension, len(v), s.size)
	}
	c := &Candidate{}
	for _, f := range s.fields {
		a := NewArray(f.Shape.Rows, f.Shape.Cols)
		copy(a.Data, v[f.Offset:f.Offset+f.Shape.Size()])
		c.vars[f.Var] = a
	}
	return c, nil
}
