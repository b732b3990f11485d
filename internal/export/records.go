// Package export writes the non-spatial artifacts of an enriched table.
// Spatial formats are written by the geometry engine.
package export

import (
	"io"

	"github.com/bytedance/sonic/ast"

	"github.com/ondata/confini/internal/utils/atomicfile"
	"github.com/ondata/confini/pkg/errors"
	"github.com/ondata/confini/pkg/table"
)

// Records encodes t as a JSON array with one object per row. Keys follow
// the column order; empty cells are null.
func Records(t *table.Table) ([]byte, error) {
	headers, err := t.Headers()
	if err != nil {
		return nil, err
	}

	rows := make([]ast.Node, t.Len())
	for i := range t.Len() {
		pairs := make([]ast.Pair, len(headers))
		for j, h := range headers {
			value := ast.NewNull()
			if v := t.Value(i, j); v != "" {
				value = ast.NewString(v)
			}
			pairs[j] = ast.Pair{Key: h, Value: value}
		}
		rows[i] = ast.NewObject(pairs)
	}

	array := ast.NewArray(rows)
	data, err := array.MarshalJSON()
	if err != nil {
		return nil, errors.WrapParse("json", t.Name, err)
	}
	return data, nil
}

// WriteRecords atomically writes the JSON records of t to path.
func WriteRecords(path string, t *table.Table) error {
	data, err := Records(t)
	if err != nil {
		return err
	}
	return atomicfile.Write(path, func(w io.Writer) error {
		if _, err := w.Write(data); err != nil {
			return errors.WrapIO("write", path, err)
		}
		return nil
	})
}
