// Package table provides the in-memory tabular model shared by enrichment
// and the national merge.
//
// Cells are opaque strings: codes keep their leading zeros and absent
// values are materialized as the empty string at join time. Each column
// carries an Origin describing where it comes from; the qualified name
// written to disk is only derived from it by Column.Header.
package table

import (
	"slices"

	"github.com/ondata/confini/pkg/errors"
	"github.com/ondata/confini/pkg/types"
)

// Origin is the provenance of a column.
type Origin struct {
	Kind     types.ColumnKind `yaml:"kind" json:"kind"`
	Release  string           `yaml:"release,omitempty" json:"release,omitempty"`
	Division string           `yaml:"division,omitempty" json:"division,omitempty"`
}

// Column is a named table column with its provenance.
type Column struct {
	Name   string `yaml:"name" json:"name"`
	Origin Origin `yaml:"origin" json:"origin"`
}

// Own returns a column of the table's own division.
func Own(name string) Column {
	return Column{Name: name, Origin: Origin{Kind: types.ColumnOwn}}
}

// Header materializes the column name. Parent columns are qualified with
// the parent division and release-scoped columns with the release.
func (c Column) Header() string {
	h := c.Name
	if c.Origin.Kind == types.ColumnParent && c.Origin.Division != "" {
		h += "_" + c.Origin.Division
	}
	if c.Origin.Release != "" {
		h += "_" + c.Origin.Release
	}
	return h
}

// Table is a rectangular table of string cells.
type Table struct {
	Name    string
	columns []Column
	rows    [][]string
}

// New creates an empty table with the given columns.
func New(name string, columns ...Column) *Table {
	return &Table{Name: name, columns: slices.Clone(columns)}
}

// Columns returns a copy of the column list.
func (t *Table) Columns() []Column {
	return slices.Clone(t.columns)
}

// Column returns the column at index i.
func (t *Table) Column(i int) Column {
	return t.columns[i]
}

// Width returns the number of columns.
func (t *Table) Width() int {
	return len(t.columns)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Row returns a copy of row i.
func (t *Table) Row(i int) []string {
	return slices.Clone(t.rows[i])
}

// Value returns the cell at row i, column j.
func (t *Table) Value(i, j int) string {
	return t.rows[i][j]
}

// Values returns a copy of column j.
func (t *Table) Values(j int) []string {
	out := make([]string, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[j]
	}
	return out
}

// Append adds a row. The row must have one cell per column.
func (t *Table) Append(row ...string) error {
	if len(row) != len(t.columns) {
		return errors.NewSchemaError(t.Name, "", "row width does not match column count")
	}
	t.rows = append(t.rows, slices.Clone(row))
	return nil
}

// Headers returns the materialized column names. Two columns that
// materialize to the same name are a SchemaError.
func (t *Table) Headers() ([]string, error) {
	headers := make([]string, len(t.columns))
	seen := make(map[string]int, len(t.columns))
	for i, c := range t.columns {
		h := c.Header()
		if prev, ok := seen[h]; ok {
			return nil, errors.NewSchemaError(t.Name, h,
				"column name collision between "+describe(t.columns[prev])+" and "+describe(c))
		}
		seen[h] = i
		headers[i] = h
	}
	return headers, nil
}

func describe(c Column) string {
	s := string(c.Origin.Kind) + " column " + c.Name
	if c.Origin.Division != "" {
		s += " of " + c.Origin.Division
	}
	if c.Origin.Release != "" {
		s += " from " + c.Origin.Release
	}
	return s
}

// Index returns the index of the first column with the given bare name
// that satisfies every filter, or -1.
func (t *Table) Index(name string, filters ...func(Column) bool) int {
	for i, c := range t.columns {
		if c.Name != name {
			continue
		}
		if matchAll(c, filters) {
			return i
		}
	}
	return -1
}

// HeaderIndex returns the index of the column whose materialized name is h, or -1.
func (t *Table) HeaderIndex(h string) int {
	for i, c := range t.columns {
		if c.Header() == h {
			return i
		}
	}
	return -1
}

// Require returns the index of a column that must exist. A missing
// column is a SchemaError.
func (t *Table) Require(name string, filters ...func(Column) bool) (int, error) {
	i := t.Index(name, filters...)
	if i < 0 {
		return -1, errors.NewSchemaError(t.Name, name, "column not found")
	}
	return i, nil
}

func matchAll(c Column, filters []func(Column) bool) bool {
	for _, f := range filters {
		if !f(c) {
			return false
		}
	}
	return true
}

// OfKind matches columns of the given kind.
func OfKind(kind types.ColumnKind) func(Column) bool {
	return func(c Column) bool { return c.Origin.Kind == kind }
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{Name: t.Name, columns: slices.Clone(t.columns), rows: make([][]string, len(t.rows))}
	for i, row := range t.rows {
		out.rows[i] = slices.Clone(row)
	}
	return out
}

// Project returns a new table holding the given columns in the given order.
func (t *Table) Project(indexes ...int) *Table {
	out := &Table{Name: t.Name, columns: make([]Column, len(indexes)), rows: make([][]string, len(t.rows))}
	for k, j := range indexes {
		out.columns[k] = t.columns[j]
	}
	for i, row := range t.rows {
		r := make([]string, len(indexes))
		for k, j := range indexes {
			r[k] = row[j]
		}
		out.rows[i] = r
	}
	return out
}

// DropWhere returns a new table without the columns matching pred.
func (t *Table) DropWhere(pred func(Column) bool) *Table {
	keep := make([]int, 0, len(t.columns))
	for i, c := range t.columns {
		if !pred(c) {
			keep = append(keep, i)
		}
	}
	return t.Project(keep...)
}

// Drop returns a new table without the given columns.
func (t *Table) Drop(indexes ...int) *Table {
	drop := make(map[int]bool, len(indexes))
	for _, i := range indexes {
		drop[i] = true
	}
	keep := make([]int, 0, len(t.columns))
	for i := range t.columns {
		if !drop[i] {
			keep = append(keep, i)
		}
	}
	return t.Project(keep...)
}

// Retag returns a copy of the table with every column passed through fn.
func (t *Table) Retag(fn func(Column) Column) *Table {
	out := t.Clone()
	for i, c := range out.columns {
		out.columns[i] = fn(c)
	}
	return out
}

// Rename returns a copy of the table with fn applied to every bare column name.
func (t *Table) Rename(fn func(string) string) *Table {
	return t.Retag(func(c Column) Column {
		c.Name = fn(c.Name)
		return c
	})
}

// SetColumn replaces the first column with the same bare name and kind,
// or appends it. values must have one entry per row.
func (t *Table) SetColumn(col Column, values []string) error {
	if len(values) != len(t.rows) {
		return errors.NewSchemaError(t.Name, col.Name, "value count does not match row count")
	}
	j := t.Index(col.Name, OfKind(col.Origin.Kind))
	if j < 0 {
		t.columns = append(t.columns, col)
		for i := range t.rows {
			t.rows[i] = append(t.rows[i], values[i])
		}
		return nil
	}
	t.columns[j] = col
	for i := range t.rows {
		t.rows[i][j] = values[i]
	}
	return nil
}

// Map computes a value per row.
func (t *Table) Map(fn func(row []string) (string, error)) ([]string, error) {
	out := make([]string, len(t.rows))
	for i, row := range t.rows {
		v, err := fn(row)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Records returns the rows keyed by materialized column name.
func (t *Table) Records() ([]map[string]string, error) {
	headers, err := t.Headers()
	if err != nil {
		return nil, err
	}
	out := make([]map[string]string, len(t.rows))
	for i, row := range t.rows {
		rec := make(map[string]string, len(headers))
		for j, h := range headers {
			rec[h] = row[j]
		}
		out[i] = rec
	}
	return out, nil
}
