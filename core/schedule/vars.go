package schedule

// Var identifies one decision or physical quantity of a candidate schedule.
// The declaration order is the vector layout order.
type Var int

const (
	GenActPower Var = iota
	GenExcActPower
	PImp
	PExp
	LoadRedActPower
	LoadCutActPower
	LoadENS
	StorDchActPower
	StorChActPower
	EminRelaxStor
	StorEnerState
	V2GDchActPower
	V2GChActPower
	EminRelaxEV
	V2GEnerState
	GenXo
	LoadXo
	StorDchXo
	StorChXo
	V2GDchXo
	V2GChXo

	numVars
)

var varNames = [numVars]string{
	GenActPower:     "genActPower",
	GenExcActPower:  "genExcActPower",
	PImp:            "pImp",
	PExp:            "pExp",
	LoadRedActPower: "loadRedActPower",
	LoadCutActPower: "loadCutActPower",
	LoadENS:         "loadENS",
	StorDchActPower: "storDchActPower",
	StorChActPower:  "storChActPower",
	EminRelaxStor:   "EminRelaxStor",
	StorEnerState:   "storEnerState",
	V2GDchActPower:  "v2gDchActPower",
	V2GChActPower:   "v2gChActPower",
	EminRelaxEV:     "EminRelaxEV",
	V2GEnerState:    "v2gEnerState",
	GenXo:           "genXo",
	LoadXo:          "loadXo",
	StorDchXo:       "storDchXo",
	StorChXo:        "storChXo",
	V2GDchXo:        "v2gDchXo",
	V2GChXo:         "v2gChXo",
}

func (v Var) String() string {
	if v < 0 || v >= numVars {
		return "unknown"
	}
	return varNames[v]
}

// Vars returns every variable in layout order.
func Vars() []Var {
	out := make([]Var, numVars)
	for i := range out {
		out[i] = Var(i)
	}
	return out
}

// ParseVar returns the variable with the given name.
func ParseVar(name string) (Var, bool) {
	for i, n := range varNames {
		if n == name {
			return Var(i), true
		}
	}
	return 0, false
}

// IsBinary reports whether the variable is a binary decision.
func (v Var) IsBinary() bool {
	switch v {
	case GenXo, LoadXo, StorDchXo, StorChXo, V2GDchXo, V2GChXo:
		return true
	}
	return false
}

// Class is the resource class a variable is indexed by.
type Class int

const (
	ClassGenerator Class = iota
	ClassLoad
	ClassStorage
	ClassVehicle
	ClassGrid
)

// Class returns the resource class owning the rows of v.
func (v Var) Class() Class {
	switch v {
	case GenActPower, GenExcActPower, GenXo:
		return ClassGenerator
	case LoadRedActPower, LoadCutActPower, LoadENS, LoadXo:
		return ClassLoad
	case StorDchActPower, StorChActPower, EminRelaxStor, StorEnerState, StorDchXo, StorChXo:
		return ClassStorage
	case V2GDchActPower, V2GChActPower, EminRelaxEV, V2GEnerState, V2GDchXo, V2GChXo:
		return ClassVehicle
	default:
		return ClassGrid
	}
}
