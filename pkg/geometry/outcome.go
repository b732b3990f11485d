package geometry

// Outcome is the result of validating a division: either Unrepaired or Repaired.
type Outcome interface {
	// Defects is the number of invalid geometries found in the raw table.
	Defects() int
	outcome()
}

// Unrepaired means the raw table had no defects and is used as is.
type Unrepaired struct {
	Original Table
}

// Repaired means the raw table had defects and a corrected copy was produced.
type Repaired struct {
	Original    Table
	Corrected   Table
	Diagnostics []Diagnostic
	defects     int
}

// NewRepaired builds a Repaired outcome for defects found in original.
func NewRepaired(original, corrected Table, defects int, diagnostics []Diagnostic) Repaired {
	return Repaired{Original: original, Corrected: corrected, Diagnostics: diagnostics, defects: defects}
}

// Defects implements Outcome.
func (Unrepaired) Defects() int { return 0 }

// Defects implements Outcome.
func (r Repaired) Defects() int { return r.defects }

func (Unrepaired) outcome() {}
func (Repaired) outcome()   {}

// Source returns the table every export of the division must read.
func Source(o Outcome) Table {
	switch o := o.(type) {
	case Unrepaired:
		return o.Original
	case Repaired:
		return o.Corrected
	default:
		panic("geometry: unknown outcome type")
	}
}

// Kind names the outcome for reports.
func Kind(o Outcome) string {
	switch o.(type) {
	case Unrepaired:
		return "unrepaired"
	case Repaired:
		return "repaired"
	default:
		return "unknown"
	}
}
