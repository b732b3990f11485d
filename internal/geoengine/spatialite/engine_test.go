package spatialite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ondata/confini/pkg/errors"
	"github.com/ondata/confini/pkg/geometry"
	"github.com/ondata/confini/pkg/table"
	"github.com/ondata/confini/pkg/types"
)

// newEngine skips when mod_spatialite is not installed.
func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(context.Background())
	if err != nil {
		t.Skipf("mod_spatialite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func seed(t *testing.T, e *Engine, name string, wkts ...string) geometry.Table {
	t.Helper()
	ctx := context.Background()
	_, err := e.db.ExecContext(ctx, `CREATE TABLE "`+name+`" (PKUID INTEGER PRIMARY KEY, COD_PROV TEXT, Geometry BLOB)`)
	require.NoError(t, err)
	for i, wkt := range wkts {
		_, err := e.db.ExecContext(ctx, `INSERT INTO "`+name+`" VALUES (?, ?, GeomFromText(?, 32632))`,
			i+1, []string{"058", "001"}[i%2], wkt)
		require.NoError(t, err)
	}
	return geometry.Table{Name: name}
}

func TestValidityAndRepair(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	valid := "MULTIPOLYGON(((0 0, 1 0, 1 1, 0 1, 0 0)))"
	bowtie := "MULTIPOLYGON(((0 0, 1 1, 1 0, 0 1, 0 0)))"

	tbl := seed(t, e, "province", valid, bowtie, bowtie)
	n, diags, err := e.CountInvalid(ctx, tbl)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, diags, 2)
	assert.Equal(t, int64(2), diags[0].RowID)

	clean, err := e.Repair(ctx, tbl)
	require.NoError(t, err)
	assert.Equal(t, "province_clean", clean.Name)

	n, _, err = e.CountInvalid(ctx, clean)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExport(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	tbl := seed(t, e, "regioni", "MULTIPOLYGON(((0 0, 1 0, 1 1, 0 1, 0 0)))")

	t.Run("csv drops the row id and geometry", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "regioni.csv")
		require.NoError(t, e.Export(ctx, tbl, types.FormatCSV, path))

		got, err := table.Load(path, "regioni")
		require.NoError(t, err)
		headers, err := got.Headers()
		require.NoError(t, err)
		assert.Equal(t, []string{"COD_PROV"}, headers)
		assert.Equal(t, []string{"058"}, got.Values(0))
	})

	t.Run("geopackage is unsupported", func(t *testing.T) {
		err := e.Export(ctx, tbl, types.FormatGeoPackage, filepath.Join(t.TempDir(), "regioni.gpkg"))
		assert.ErrorIs(t, err, errors.ErrUnsupported)
	})
}
