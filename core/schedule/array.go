package schedule

import "fmt"

// Array is a dense row-major matrix of shape [Rows, Cols]. Unlike gonum's
// mat.Dense it accepts zero rows so that absent resource classes keep a
// well-defined, empty shape.
type Array struct {
	Rows int
	Cols int
	Data []float64
}

// NewArray allocates a zeroed array.
func NewArray(rows, cols int) Array {
	return Array{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// ArrayFrom builds an array from row slices. All rows must have the same length.
func ArrayFrom(rows [][]float64) (Array, error) {
	if len(rows) == 0 {
		return Array{}, nil
	}
	cols := len(rows[0])
	a := NewArray(len(rows), cols)
	for r, row := range rows {
		if len(row) != cols {
			return Array{}, fmt.Errorf("row %d has %d columns, want %d", r, len(row), cols)
		}
		copy(a.Row(r), row)
	}
	return a, nil
}

// Filled returns an array where every element is v.
func Filled(rows, cols int, v float64) Array {
	a := NewArray(rows, cols)
	for i := range a.Data {
		a.Data[i] = v
	}
	return a
}

func (a Array) At(r, c int) float64 { return a.Data[r*a.Cols+c] }

func (a Array) Set(r, c int, v float64) { a.Data[r*a.Cols+c] = v }

// Row returns a view of row r. Writes go through to the array.
func (a Array) Row(r int) []float64 { return a.Data[r*a.Cols : (r+1)*a.Cols] }

// Len returns the number of elements.
func (a Array) Len() int { return len(a.Data) }

// Clone returns a deep copy.
func (a Array) Clone() Array {
	data := make([]float64, len(a.Data))
	copy(data, a.Data)
	return Array{Rows: a.Rows, Cols: a.Cols, Data: data}
}

// Rows2D copies the array into a slice of rows.
func (a Array) Rows2D() [][]float64 {
	out := make([][]float64, a.Rows)
	for r := range out {
		out[r] = append([]float64(nil), a.Row(r)...)
	}
	return out
}
