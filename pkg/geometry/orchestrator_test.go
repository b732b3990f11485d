package geometry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ondata/confini/pkg/errors"
	"github.com/ondata/confini/pkg/logging"
	"github.com/ondata/confini/pkg/table"
	"github.com/ondata/confini/pkg/types"
)

func regioni(t *testing.T) *table.Table {
	t.Helper()
	tbl := table.New("regioni", table.Own("COD_REG"), table.Own("DEN_REG"))
	require.NoError(t, tbl.Append("12", "Lazio"))
	require.NoError(t, tbl.Append("01", "Piemonte"))
	return tbl
}

type defectReport struct {
	division string
	defects  int
}

func TestValidate(t *testing.T) {
	ctx := context.Background()

	t.Run("no defects keeps the original table", func(t *testing.T) {
		engine := NewFakeEngine()
		engine.Register("regioni.shp", Fixture{Attributes: regioni(t)})

		var reports []defectReport
		o := NewOrchestrator(engine, WithRetryDelay(0), WithDefectsHook(
			func(_ context.Context, _, division string, defects int, _ []Diagnostic) {
				reports = append(reports, defectReport{division, defects})
			}))

		outcome, err := o.Validate(ctx, "20200101", "regioni", "regioni.shp")
		require.NoError(t, err)

		unrepaired, ok := outcome.(Unrepaired)
		require.True(t, ok)
		assert.Equal(t, Table{Name: "regioni"}, unrepaired.Original)
		assert.Equal(t, unrepaired.Original, Source(outcome))
		assert.Zero(t, outcome.Defects())
		assert.Empty(t, engine.Repairs)
		assert.Equal(t, []defectReport{{"regioni", 0}}, reports)
	})

	t.Run("defects produce a repaired copy", func(t *testing.T) {
		engine := NewFakeEngine()
		engine.Register("comuni.shp", Fixture{
			Attributes:  regioni(t),
			Defects:     2,
			Diagnostics: []Diagnostic{{RowID: 7, Message: "Ring Self-intersection", Point: "POINT(1 2)"}},
		})
		tl := logging.NewTestLogger(t)
		ctx := logging.WithLogger(ctx, tl.Logger)

		outcome, err := NewOrchestrator(engine, WithRetryDelay(0)).Validate(ctx, "20200101", "comuni", "comuni.shp")
		require.NoError(t, err)

		repaired, ok := outcome.(Repaired)
		require.True(t, ok)
		assert.Equal(t, 2, outcome.Defects())
		assert.Equal(t, "comuni_clean", Source(outcome).Name)
		assert.Equal(t, "comuni", repaired.Original.Name)
		assert.Len(t, repaired.Diagnostics, 1)
		assert.Equal(t, []string{"comuni"}, engine.Repairs)
		tl.AssertContains(t, `"defects":2`)
		assert.Equal(t, "repaired", Kind(outcome))
	})

	t.Run("transient load failure is retried once", func(t *testing.T) {
		engine := NewFakeEngine()
		engine.Register("regioni.shp", Fixture{Attributes: regioni(t)})
		engine.LoadFailures = 1

		_, err := NewOrchestrator(engine, WithRetryDelay(0)).Validate(ctx, "r", "regioni", "regioni.shp")
		require.NoError(t, err)
		assert.Len(t, engine.Loads, 2)
	})

	t.Run("persistent load failure is an engine error", func(t *testing.T) {
		engine := NewFakeEngine()
		engine.Register("regioni.shp", Fixture{Attributes: regioni(t)})
		engine.LoadFailures = 2

		_, err := NewOrchestrator(engine, WithRetryDelay(0)).Validate(ctx, "r", "regioni", "regioni.shp")
		require.Error(t, err)
		assert.True(t, errors.IsEngine(err))
		assert.Len(t, engine.Loads, 2)
	})

	t.Run("repair failure carries diagnostics", func(t *testing.T) {
		engine := NewFakeEngine()
		engine.Register("comuni.shp", Fixture{
			Attributes:  regioni(t),
			Defects:     1,
			Diagnostics: []Diagnostic{{RowID: 3, Point: "POINT(5 6)"}},
		})
		engine.RepairFailures = 2

		_, err := NewOrchestrator(engine, WithRetryDelay(0)).Validate(ctx, "r", "comuni", "comuni.shp")
		var engErr *errors.EngineError
		require.ErrorAs(t, err, &engErr)
		assert.Equal(t, "repair", engErr.Operation)
		assert.Equal(t, []string{"row 3 at POINT(5 6)"}, engErr.Diagnostics)
	})

	t.Run("residual defects after repair are an engine error", func(t *testing.T) {
		engine := NewFakeEngine()
		engine.Register("comuni.shp", Fixture{Attributes: regioni(t), Defects: 3})
		engine.ResidualDefects = 1

		_, err := NewOrchestrator(engine, WithRetryDelay(0)).Validate(ctx, "r", "comuni", "comuni.shp")
		require.Error(t, err)
		assert.True(t, errors.IsEngine(err))
	})

	t.Run("canceled context stops retries", func(t *testing.T) {
		engine := NewFakeEngine()
		engine.LoadFailures = 5
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := NewOrchestrator(engine, WithRetryDelay(0)).Validate(cctx, "r", "x", "x.shp")
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	for _, defects := range []int{0, 4} {
		engine := NewFakeEngine()
		engine.Register("regioni.shp", Fixture{Attributes: regioni(t), Defects: defects})
		o := NewOrchestrator(engine, WithRetryDelay(0))

		outcome, err := o.Validate(ctx, "r", "regioni", "regioni.shp")
		require.NoError(t, err)

		shp := filepath.Join(dir, "shp", "regioni.shp")
		require.NoError(t, o.Export(ctx, "r", "regioni", outcome, types.FormatShapefile, shp))
		extract := filepath.Join(dir, "shp", "regioni.csv")
		require.NoError(t, o.Export(ctx, "r", "regioni", outcome, types.FormatCSV, extract))

		for _, x := range engine.Exports {
			assert.Equal(t, Source(outcome).Name, x.Table)
		}

		loaded, err := table.Load(extract, "regioni")
		require.NoError(t, err)
		assert.Equal(t, regioni(t).Row(0), loaded.Row(0))
		_ = os.RemoveAll(filepath.Join(dir, "shp"))
	}
}
