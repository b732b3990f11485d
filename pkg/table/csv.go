package table

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/ondata/confini/internal/utils/atomicfile"
	"github.com/ondata/confini/pkg/constants"
	"github.com/ondata/confini/pkg/errors"
	"github.com/ondata/confini/pkg/types"
)

// ReadCSV reads a CSV document with a header row. Every column is
// assigned the given origin.
func ReadCSV(r io.Reader, name string, origin Origin) (*Table, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = 0

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.NewParseError("csv", name, "missing header row", err)
	}
	if err != nil {
		return nil, errors.WrapParse("csv", name, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	t := &Table{Name: name, columns: make([]Column, len(header))}
	for i, h := range header {
		t.columns[i] = Column{Name: h, Origin: origin}
	}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.WrapParse("csv", name, err)
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}

// WriteCSV writes the table with its materialized header.
func WriteCSV(w io.Writer, t *Table) error {
	headers, err := t.Headers()
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return errors.WrapIO("write", t.Name, err)
	}
	if err := cw.WriteAll(t.rows); err != nil {
		return errors.WrapIO("write", t.Name, err)
	}
	return nil
}

// schema is the column metadata sidecar of a persisted table.
type schema struct {
	Table   string   `yaml:"table"`
	Columns []Column `yaml:"columns"`
}

// SchemaPath returns the sidecar path for a CSV file.
func SchemaPath(csvPath string) string {
	return strings.TrimSuffix(csvPath, ".csv") + constants.SchemaSuffix
}

// Save writes the table as CSV to path along with its schema sidecar.
// Both files are written atomically, the CSV last, so an existing CSV
// always has a complete sidecar next to it.
func Save(path string, t *Table) error {
	if _, err := t.Headers(); err != nil {
		return err
	}
	data, err := yaml.Marshal(schema{Table: t.Name, Columns: t.columns})
	if err != nil {
		return errors.WrapParse("yaml", SchemaPath(path), err)
	}
	if err := atomicfile.WriteBytes(SchemaPath(path), data); err != nil {
		return err
	}
	return atomicfile.Write(path, func(w io.Writer) error {
		return WriteCSV(w, t)
	})
}

// Load reads a table saved by Save. Without a sidecar every column is
// treated as an own column of the table.
func Load(path, name string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("table", path)
		}
		return nil, errors.WrapIO("open", path, err)
	}
	defer func() { _ = f.Close() }()

	t, err := ReadCSV(f, name, Origin{Kind: types.ColumnOwn})
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(SchemaPath(path))
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return nil, errors.WrapIO("read", SchemaPath(path), err)
	}
	var s schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.WrapParse("yaml", SchemaPath(path), err)
	}
	if len(s.Columns) != len(t.columns) {
		return nil, errors.NewParseError("yaml", SchemaPath(path), "column count does not match CSV header", nil)
	}
	for i, c := range s.Columns {
		if c.Header() != t.columns[i].Name {
			return nil, errors.NewParseError("yaml", SchemaPath(path),
				"column "+c.Header()+" does not match CSV header "+t.columns[i].Name, nil)
		}
		t.columns[i] = c
	}
	return t, nil
}
