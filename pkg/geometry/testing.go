package geometry

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/ondata/confini/internal/utils/atomicfile"
	"github.com/ondata/confini/pkg/constants"
	"github.com/ondata/confini/pkg/errors"
	"github.com/ondata/confini/pkg/table"
	"github.com/ondata/confini/pkg/types"
)

// Fixture is the content a FakeEngine serves for one shapefile path.
type Fixture struct {
	// Attributes are the attribute columns of the shapefile.
	Attributes *table.Table
	// Defects is the number of invalid geometries in the raw table.
	Defects int
	// Diagnostics are reported with the defects.
	Diagnostics []Diagnostic
}

// FakeEngine is an in-memory Engine for tests. It serves registered
// fixtures and records every call.
type FakeEngine struct {
	mu       sync.Mutex
	fixtures map[string]Fixture
	tables   map[string]fakeTable

	// LoadFailures makes the next n Load calls fail.
	LoadFailures int
	// RepairFailures makes the next n Repair calls fail.
	RepairFailures int
	// ResidualDefects is the defect count of repaired tables.
	ResidualDefects int

	Loads   []string
	Repairs []string
	Exports []FakeExport
}

// FakeExport records one Export call.
type FakeExport struct {
	Table  string
	Format types.Format
	Path   string
}

type fakeTable struct {
	fixture Fixture
	defects int
}

// NewFakeEngine creates a FakeEngine with no fixtures.
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{
		fixtures: make(map[string]Fixture),
		tables:   make(map[string]fakeTable),
	}
}

// Register serves f for Load calls on path.
func (e *FakeEngine) Register(path string, f Fixture) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fixtures[path] = f
}

// Name implements Engine.
func (e *FakeEngine) Name() string { return "fake" }

// Load implements Engine.
func (e *FakeEngine) Load(_ context.Context, name, path string) (Table, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Loads = append(e.Loads, name)
	if e.LoadFailures > 0 {
		e.LoadFailures--
		return Table{}, errors.New("transient load failure")
	}
	f, ok := e.fixtures[path]
	if !ok {
		return Table{}, errors.NewNotFoundError("shapefile", path)
	}
	e.tables[name] = fakeTable{fixture: f, defects: f.Defects}
	return Table{Name: name}, nil
}

// CountInvalid implements Engine.
func (e *FakeEngine) CountInvalid(_ context.Context, t Table) (int, []Diagnostic, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ft, ok := e.tables[t.Name]
	if !ok {
		return 0, nil, errors.NewNotFoundError("table", t.Name)
	}
	if ft.defects == 0 {
		return 0, nil, nil
	}
	diagnostics := ft.fixture.Diagnostics
	if ft.defects != ft.fixture.Defects {
		diagnostics = nil
	}
	return ft.defects, diagnostics, nil
}

// Repair implements Engine.
func (e *FakeEngine) Repair(_ context.Context, t Table) (Table, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Repairs = append(e.Repairs, t.Name)
	if e.RepairFailures > 0 {
		e.RepairFailures--
		return Table{}, errors.New("transient repair failure")
	}
	ft, ok := e.tables[t.Name]
	if !ok {
		return Table{}, errors.NewNotFoundError("table", t.Name)
	}
	name := t.Name + constants.CleanSuffix
	e.tables[name] = fakeTable{fixture: ft.fixture, defects: e.ResidualDefects}
	return Table{Name: name}, nil
}

// Export implements Engine. CSV writes the attributes, spatial formats
// write a placeholder naming the source table.
func (e *FakeEngine) Export(_ context.Context, t Table, format types.Format, path string) error {
	e.mu.Lock()
	ft, ok := e.tables[t.Name]
	e.Exports = append(e.Exports, FakeExport{Table: t.Name, Format: format, Path: path})
	e.mu.Unlock()
	if !ok {
		return errors.NewNotFoundError("table", t.Name)
	}

	if format == types.FormatCSV {
		return atomicfile.Write(path, func(w io.Writer) error {
			return table.WriteCSV(w, ft.fixture.Attributes)
		})
	}
	return atomicfile.WriteBytes(path, []byte(fmt.Sprintf("%s:%s\n", format, t.Name)))
}

// Close implements Engine.
func (e *FakeEngine) Close() error { return nil }

// ExportsOf returns the recorded exports in the given format.
func (e *FakeEngine) ExportsOf(format types.Format) []FakeExport {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []FakeExport
	for _, x := range e.Exports {
		if x.Format == format {
			out = append(out, x)
		}
	}
	return out
}
