package schedule

// Candidate is the structured form of one population member: one array per
// registered variable.
type Candidate struct {
	vars [numVars]Array
}

// Get returns the array of v. The returned array shares storage with the
// candidate.
func (c *Candidate) Get(v Var) Array { return c.vars[v] }

// Set replaces the array of v.
func (c *Candidate) Set(v Var, a Array) { c.vars[v] = a }

// Clone returns a deep copy.
func (c *Candidate) Clone() *Candidate {
	out := &Candidate{}
	for i, a := range c.vars {
		out.vars[i] = a.Clone()
	}
	return out
}

// Equal reports whether both candidates hold the same shapes and values.
func (c *Candidate) Equal(o *Candidate) bool {
	for i := range c.vars {
		a, b := c.vars[i], o.vars[i]
		if a.Rows != b.Rows || a.Cols != b.Cols || len(a.Data) != len(b.Data) {
			return false
		}
		for j := range a.Data {
			if a.Data[j] != b.Data[j] {
				return false
			}
		}
	}
	return true
}
