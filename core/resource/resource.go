package resource

import (
	"errors"
	"fmt"

	"github.com/kilianp07/ecom/core/schedule"
)

// ErrShape is returned when a resource array does not have the expected shape.
var ErrShape = errors.New("shape mismatch")

// Kind identifies an equipment class.
type Kind int

const (
	KindGenerator Kind = iota
	KindLoad
	KindStorage
	KindVehicle
	KindImport
	KindExport
)

func (k Kind) String() string {
	switch k {
	case KindGenerator:
		return "generator"
	case KindLoad:
		return "load"
	case KindStorage:
		return "storage"
	case KindVehicle:
		return "vehicle"
	case KindImport:
		return "import"
	case KindExport:
		return "export"
	}
	return "unknown"
}

// ParseKind converts a configuration name into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "generator", "gen":
		return KindGenerator, nil
	case "load", "loads":
		return KindLoad, nil
	case "storage", "stor":
		return KindStorage, nil
	case "vehicle", "evs", "v2g":
		return KindVehicle, nil
	case "import", "pimp":
		return KindImport, nil
	case "export", "pexp":
		return KindExport, nil
	}
	return 0, fmt.Errorf("unknown resource kind %q", s)
}

// VarBounds is the flat box constraint a resource owns for one schedule variable.
type VarBounds struct {
	Var   schedule.Var
	Lower []float64
	Upper []float64
}

// Resource describes one equipment class with its bounds and physical parameters.
type Resource interface {
	Name() string
	Kind() Kind
	// Units is the number of rows the resource contributes to its variables.
	Units() int
	// Validate checks every array against the horizon length.
	Validate(steps int) error
	// Bounds lists the box constraints of the variables owned by the resource.
	Bounds(steps int) []VarBounds
}

// Base holds the fields shared by every resource.
type Base struct {
	ResourceName string
	Value        schedule.Array
	Lower        schedule.Array
	Upper        schedule.Array
	Cost         schedule.Array
}

func (b *Base) Name() string { return b.ResourceName }

func checkShape(owner, field string, a schedule.Array, rows, cols int) error {
	if a.Rows != rows || a.Cols != cols || len(a.Data) != rows*cols {
		return fmt.Errorf("%w: %s.%s is [%d,%d], want [%d,%d]", ErrShape, owner, field, a.Rows, a.Cols, rows, cols)
	}
	return nil
}

// checkOptional accepts an empty array or one of the expected shape.
func checkOptional(owner, field string, a schedule.Array, rows, cols int) error {
	if a.Len() == 0 {
		return nil
	}
	return checkShape(owner, field, a, rows, cols)
}

func checkLen(owner, field string, v []float64, n int) error {
	if len(v) != n {
		return fmt.Errorf("%w: %s.%s has %d values, want %d", ErrShape, owner, field, len(v), n)
	}
	return nil
}

func checkOptionalLen(owner, field string, v []float64, n int) error {
	if len(v) == 0 {
		return nil
	}
	return checkLen(owner, field, v, n)
}

func checkEfficiency(owner, field string, v []float64) error {
	for i, e := range v {
		if e <= 0 || e > 1 {
			return fmt.Errorf("%s.%s[%d] = %v outside (0,1]", owner, field, i, e)
		}
	}
	return nil
}

func checkNonNegative(owner, field string, v []float64) error {
	for i, x := range v {
		if x < 0 {
			return fmt.Errorf("%s.%s[%d] = %v is negative", owner, field, i, x)
		}
	}
	return nil
}

// unitBounds repeats per-unit values over the horizon.
func unitBounds(perUnit []float64, steps int) []float64 {
	out := make([]float64, len(perUnit)*steps)
	for u, v := range perUnit {
		for t := 0; t < steps; t++ {
			out[u*steps+t] = v
		}
	}
	return out
}

func zeros(n int) []float64 { return make([]float64, n) }

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

// lowerOrZero returns the flat lower bound, defaulting to zeros.
func lowerOrZero(a schedule.Array, n int) []float64 {
	if a.Len() == n {
		return append([]float64(nil), a.Data...)
	}
	return zeros(n)
}

// PerUnit returns the value for unit u or 0 when v is empty.
func PerUnit(v []float64, u int) float64 {
	if u < len(v) {
		return v[u]
	}
	return 0
}
