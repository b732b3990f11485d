package table

import (
	"slices"

	"github.com/ondata/confini/pkg/errors"
)

// JoinOn describes the key pair of a left join.
type JoinOn struct {
	// Left is the key column index in the left table.
	Left int
	// Right is the key column index in the right table.
	Right int
	// KeepRightKey keeps the right key column in the result. When false the
	// left key stands for both, as the two hold the same value on matched rows.
	KeepRightKey bool
}

// LeftJoin keeps every row of left and appends the columns of right.
// A left row matching several right rows is repeated once per match;
// an unmatched row gets empty cells. The result must materialize to
// unique column names, a collision is a SchemaError.
func LeftJoin(left, right *Table, on JoinOn) (*Table, error) {
	if on.Left < 0 || on.Left >= left.Width() {
		return nil, errors.NewSchemaError(left.Name, "", "join key out of range")
	}
	if on.Right < 0 || on.Right >= right.Width() {
		return nil, errors.NewSchemaError(right.Name, "", "join key out of range")
	}

	rightCols := make([]int, 0, right.Width())
	for j := range right.columns {
		if j == on.Right && !on.KeepRightKey {
			continue
		}
		rightCols = append(rightCols, j)
	}

	out := &Table{Name: left.Name, columns: slices.Clone(left.columns)}
	for _, j := range rightCols {
		out.columns = append(out.columns, right.columns[j])
	}
	if _, err := out.Headers(); err != nil {
		return nil, err
	}

	index := make(map[string][]int, right.Len())
	for i, row := range right.rows {
		k := row[on.Right]
		index[k] = append(index[k], i)
	}

	empty := make([]string, len(rightCols))
	out.rows = make([][]string, 0, left.Len())
	for _, row := range left.rows {
		matches := index[row[on.Left]]
		if len(matches) == 0 {
			out.rows = append(out.rows, concat(row, empty))
			continue
		}
		for _, m := range matches {
			r := make([]string, len(rightCols))
			for k, j := range rightCols {
				r[k] = right.rows[m][j]
			}
			out.rows = append(out.rows, concat(row, r))
		}
	}
	return out, nil
}

func concat(a, b []string) []string {
	r := make([]string, 0, len(a)+len(b))
	r = append(r, a...)
	return append(r, b...)
}

// Matches counts the left rows whose key has at least one match in right.
func Matches(left, right *Table, on JoinOn) int {
	keys := make(map[string]bool, right.Len())
	for _, row := range right.rows {
		keys[row[on.Right]] = true
	}
	n := 0
	for _, row := range left.rows {
		if keys[row[on.Left]] {
			n++
		}
	}
	return n
}

// DedupColumns collapses columns holding identical values on every row,
// keeping the first occurrence. Columns matched by skip are never
// compared or removed. A table without rows is returned unchanged.
// The removed columns are returned alongside the result.
func (t *Table) DedupColumns(skip func(Column) bool) (*Table, []Column) {
	if t.Len() == 0 {
		return t.Clone(), nil
	}

	seen := make(map[string]int, t.Width())
	drop := make([]int, 0)
	var removed []Column
	for j, c := range t.columns {
		if skip != nil && skip(c) {
			continue
		}
		sig := signature(t.Values(j))
		if _, ok := seen[sig]; ok {
			drop = append(drop, j)
			removed = append(removed, c)
			continue
		}
		seen[sig] = j
	}
	return t.Drop(drop...), removed
}

// signature encodes a column so equal columns have equal signatures.
func signature(values []string) string {
	n := 0
	for _, v := range values {
		n += len(v) + 4
	}
	b := make([]byte, 0, n)
	for _, v := range values {
		l := len(v)
		b = append(b, byte(l>>24), byte(l>>16), byte(l>>8), byte(l))
		b = append(b, v...)
	}
	return string(b)
}
