package types

import "slices"

// ColumnKind identifies where a table column comes from.
// Provenance is carried as column metadata and only materialized
// into a column name when a table is written.
type ColumnKind string

const (
	// ColumnOwn is a column of the division's own source table.
	ColumnOwn ColumnKind = "own"

	// ColumnParent is a column projected from an ancestor division.
	ColumnParent ColumnKind = "parent"

	// ColumnAuthority is the controlled-vocabulary URI column.
	ColumnAuthority ColumnKind = "authority"

	// ColumnPresence is a per-release marker holding the release name on matched rows.
	ColumnPresence ColumnKind = "presence"

	// ColumnBase is a column of the national base registry.
	ColumnBase ColumnKind = "base"
)

// String returns the string representation of a column kind.
func (k ColumnKind) String() string {
	return string(k)
}

// ColumnKinds returns all defined column kinds.
func ColumnKinds() []ColumnKind {
	return []ColumnKind{
		ColumnOwn,
		ColumnParent,
		ColumnAuthority,
		ColumnPresence,
		ColumnBase,
	}
}

// IsValid returns true if the ColumnKind is one of the defined constants.
func (k ColumnKind) IsValid() bool {
	return slices.Contains(ColumnKinds(), k)
}
