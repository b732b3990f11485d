// Package geometry orchestrates validation and repair of the spatial table
// of each division.
//
// The geometric computations belong to an Engine. The Orchestrator loads
// the raw table, asks the engine how many geometries are invalid and, only
// when there are defects, requests a repaired copy. The result is an
// Outcome that callers branch on to find the table every export must read.
package geometry

import (
	"context"
	"fmt"

	"github.com/ondata/confini/pkg/types"
)

// Table is a handle to a spatial table held by an Engine.
type Table struct {
	Name string
}

// Diagnostic describes one record failing the validity predicate.
type Diagnostic struct {
	RowID   int64  `json:"row_id" yaml:"row_id"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
	// Point is the first offending point in WKT, when the engine reports one.
	Point string `json:"point,omitempty" yaml:"point,omitempty"`
}

// String formats the diagnostic for logs and errors.
func (d Diagnostic) String() string {
	s := fmt.Sprintf("row %d", d.RowID)
	if d.Message != "" {
		s += ": " + d.Message
	}
	if d.Point != "" {
		s += " at " + d.Point
	}
	return s
}

// Engine performs the geometric work on spatial tables.
type Engine interface {
	// Name identifies the engine in logs and reports.
	Name() string

	// Load creates a table named name from the shapefile at path
	// (the .shp file).
	Load(ctx context.Context, name, path string) (Table, error)

	// CountInvalid counts the records failing the validity predicate.
	CountInvalid(ctx context.Context, t Table) (int, []Diagnostic, error)

	// Repair creates a copy of t in which every invalid geometry is corrected.
	Repair(ctx context.Context, t Table) (Table, error)

	// Export writes t to path in the given format. FormatCSV writes the
	// attribute columns only.
	Export(ctx context.Context, t Table, format types.Format, path string) error

	// Close releases the engine resources.
	Close() error
}
