package duckdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ondata/confini/internal/geoengine/sqlrows"
	"github.com/ondata/confini/pkg/geometry"
	"github.com/ondata/confini/pkg/table"
	"github.com/ondata/confini/pkg/types"
)

// newEngine skips when the spatial extension cannot be installed, which
// needs network access on a fresh machine.
func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(context.Background())
	if err != nil {
		t.Skipf("duckdb spatial extension unavailable: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func seed(t *testing.T, e *Engine, name string, wkts ...string) geometry.Table {
	t.Helper()
	ctx := context.Background()
	_, err := e.db.ExecContext(ctx, `CREATE TABLE "`+name+`" (PKUID BIGINT, COD_REG VARCHAR, geom GEOMETRY)`)
	require.NoError(t, err)
	for i, wkt := range wkts {
		_, err := e.db.ExecContext(ctx, `INSERT INTO "`+name+`" VALUES (?, ?, ST_GeomFromText(?))`,
			i+1, []string{"01", "12"}[i%2], wkt)
		require.NoError(t, err)
	}
	return geometry.Table{Name: name}
}

func TestValidityAndRepair(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	valid := "POLYGON((0 0, 1 0, 1 1, 0 1, 0 0))"
	bowtie := "POLYGON((0 0, 1 1, 1 0, 0 1, 0 0))"

	t.Run("valid table has no defects", func(t *testing.T) {
		tbl := seed(t, e, "regioni", valid, valid)
		n, diags, err := e.CountInvalid(ctx, tbl)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Empty(t, diags)
	})

	t.Run("repair removes defects", func(t *testing.T) {
		tbl := seed(t, e, "comuni", valid, bowtie)
		n, diags, err := e.CountInvalid(ctx, tbl)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		require.Len(t, diags, 1)
		assert.Equal(t, int64(2), diags[0].RowID)

		clean, err := e.Repair(ctx, tbl)
		require.NoError(t, err)
		assert.Equal(t, "comuni_clean", clean.Name)

		n, _, err = e.CountInvalid(ctx, clean)
		require.NoError(t, err)
		assert.Zero(t, n)

		names, err := tables(ctx, e)
		require.NoError(t, err)
		assert.Contains(t, names, "comuni")
		assert.Contains(t, names, "comuni_clean")
	})
}

func TestExportCSV(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	tbl := seed(t, e, "province", "POINT(1 2)", "POINT(3 4)")

	path := filepath.Join(t.TempDir(), "shp", "province", "province.csv")
	require.NoError(t, e.Export(ctx, tbl, types.FormatCSV, path))

	got, err := table.Load(path, "province")
	require.NoError(t, err)
	headers, err := got.Headers()
	require.NoError(t, err)
	assert.Equal(t, []string{"COD_REG"}, headers)
	assert.Equal(t, []string{"01", "12"}, got.Values(0))
}

func TestExportUnsupported(t *testing.T) {
	e := newEngine(t)
	err := e.Export(context.Background(), geometry.Table{Name: "x"}, types.FormatJSON, filepath.Join(t.TempDir(), "x.json"))
	require.Error(t, err)
}

// tables lists the tables created in e.
func tables(ctx context.Context, e *Engine) ([]string, error) {
	t, err := sqlrows.Table(ctx, e.db, "tables", "SELECT table_name FROM duckdb_tables() ORDER BY table_name")
	if err != nil {
		return nil, err
	}
	return t.Values(0), nil
}
