package confini

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engines "github.com/ondata/confini/internal/geoengine/registry"
	"github.com/ondata/confini/internal/layout"
	"github.com/ondata/confini/pkg/catalog"
	"github.com/ondata/confini/pkg/constants"
	"github.com/ondata/confini/pkg/errors"
	"github.com/ondata/confini/pkg/geometry"
	"github.com/ondata/confini/pkg/logging"
	"github.com/ondata/confini/pkg/provenance"
	"github.com/ondata/confini/pkg/table"
	"github.com/ondata/confini/pkg/types"
)

const anprCSV = "CODISTAT,DENOMINAZIONE_IT,DATAISTITUZIONE\n" +
	"001001,AGLIE',1861-03-17\n" +
	"001002,AIRASCA,1861-03-17\n" +
	"099999,SOPPRESSO,1861-03-17\n"

// server serves the release archive at /20200101.zip and the base
// registry at /anpr.csv. Other paths are 404.
type server struct {
	*httptest.Server
	downloads atomic.Int32
}

func newServer(t *testing.T) *server {
	t.Helper()
	archive := zipArchive(t,
		"Limiti01012020/Reg01012020/Reg01012020_WGS84.shp",
		"Limiti01012020/Reg01012020/Reg01012020_WGS84.dbf",
		"Limiti01012020/Com01012020/Com01012020_WGS84.shp",
		"Limiti01012020/Com01012020/Com01012020_WGS84.dbf",
	)

	s := &server{}
	mux := http.NewServeMux()
	mux.HandleFunc("/20200101.zip", func(w http.ResponseWriter, _ *http.Request) {
		s.downloads.Add(1)
		_, _ = w.Write(archive)
	})
	mux.HandleFunc("/anpr.csv", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(anprCSV))
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func zipArchive(t *testing.T, names ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte("placeholder"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func testCatalog(t *testing.T, baseURL string, releases ...string) *catalog.Catalog {
	t.Helper()
	var rs []catalog.Release
	for _, name := range releases {
		r, err := catalog.NewRelease(name, baseURL+"/"+name+".zip", "Limiti01012020/",
			catalog.Division{Name: "comuni", DirName: "Com01012020", FileName: "Com01012020_WGS84",
				Key: "PRO_COM_T", Fields: []string{"COMUNE"}, Parents: []string{"regioni"}},
			catalog.Division{Name: "regioni", DirName: "Reg01012020", FileName: "Reg01012020_WGS84",
				Key: "COD_REG", Fields: []string{"DEN_REG"}},
		)
		require.NoError(t, err)
		rs = append(rs, r)
	}
	ontopia, err := catalog.NewOntopia("https://w3id.org/italia/controlled-vocabulary/territorial-classifications",
		catalog.OntopiaMapping{Name: "regioni", Key: "COD_REG", URL: "regions", Digits: 2},
		catalog.OntopiaMapping{Name: "comuni", Digits: 1},
	)
	require.NoError(t, err)
	cat, err := catalog.New(rs, ontopia, &catalog.BaseRegistry{
		Name:     "anpr",
		URL:      baseURL + "/anpr.csv",
		Encoding: "utf-8",
		Division: "comuni",
		Key:      "CODISTAT",
	})
	require.NoError(t, err)
	return cat
}

func attributes(t *testing.T, headers []string, rows ...[]string) *table.Table {
	t.Helper()
	cols := make([]table.Column, len(headers))
	for i, h := range headers {
		cols[i] = table.Own(h)
	}
	tbl := table.New("attributes", cols...)
	for _, r := range rows {
		require.NoError(t, tbl.Append(r...))
	}
	return tbl
}

// fakeEngine registers a fake geometry engine serving the raw shapefiles
// of release 20200101 under a name unique to the test.
func fakeEngine(t *testing.T, l layout.Layout) (string, *geometry.FakeEngine) {
	t.Helper()
	eng := geometry.NewFakeEngine()
	eng.Register(l.Artifact("20200101", types.FormatZip, "regioni"), geometry.Fixture{
		Attributes: attributes(t, []string{"cod_reg", "den_reg", "Shape_Area"},
			[]string{"1", "Piemonte", "1.0"}),
	})
	eng.Register(l.Artifact("20200101", types.FormatZip, "comuni"), geometry.Fixture{
		Attributes: attributes(t, []string{"COD_REG", "PRO_COM_T", "COMUNE"},
			[]string{"1", "001001", "Agliè"},
			[]string{"1", "001002", "Airasca"}),
		Defects:     2,
		Diagnostics: []geometry.Diagnostic{{RowID: 1, Point: "POINT(1 2)"}},
	})

	name := "fake-" + strings.ReplaceAll(t.Name(), "/", "-")
	engines.Register(name, func(context.Context) (geometry.Engine, error) {
		return eng, nil
	})
	return name, eng
}

func newConfini(t *testing.T, cat *catalog.Catalog, dir, engine string, opts ...Option) Confini {
	t.Helper()
	c, err := New(cat, append([]Option{
		WithOutputDir(dir),
		WithEngine(engine),
		WithDownloadRetries(0, 0),
		WithEngineRetryDelay(0),
	}, opts...)...)
	require.NoError(t, err)
	return c
}

func TestBuild(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t)
	dir := t.TempDir()
	l := layout.New(dir)
	engine, eng := fakeEngine(t, l)
	c := newConfini(t, testCatalog(t, srv.URL, "20200101"), dir, engine)

	var mu sync.Mutex
	defects := map[string]int{}
	var enriched []string
	c.OnDefects(func(_ context.Context, _, division string, n int, _ []geometry.Diagnostic) {
		mu.Lock()
		defer mu.Unlock()
		defects[division] = n
	})
	c.OnDivisionEnriched(func(_ context.Context, _, division string, _ *table.Table) {
		mu.Lock()
		defer mu.Unlock()
		enriched = append(enriched, division)
	})

	results, err := c.Build(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	res := results[0]
	assert.True(t, res.Fetched)
	assert.False(t, res.Skipped)

	t.Run("geometry follows processing order", func(t *testing.T) {
		require.Len(t, res.Geometry, 2)
		assert.Equal(t, "regioni", res.Geometry[0].Division)
		assert.IsType(t, geometry.Unrepaired{}, res.Geometry[0].Outcome)
		assert.IsType(t, geometry.Repaired{}, res.Geometry[1].Outcome)
		assert.Equal(t, map[string]int{"regioni": 0, "comuni": 2}, defects)
		assert.Equal(t, []string{"regioni", "comuni"}, enriched)
	})

	t.Run("exports read the repaired table", func(t *testing.T) {
		for _, x := range eng.ExportsOf(types.FormatGeoJSON) {
			if strings.Contains(x.Path, "comuni") {
				assert.Equal(t, "comuni_clean", x.Table)
			}
		}
		assert.Len(t, eng.ExportsOf(types.FormatShapefile), 2)
		assert.Len(t, eng.ExportsOf(types.FormatGeoPackage), 2)
	})

	t.Run("artifacts", func(t *testing.T) {
		comuni, err := table.Load(l.Enriched("20200101", "comuni"), "comuni")
		require.NoError(t, err)
		headers, err := comuni.Headers()
		require.NoError(t, err)
		assert.Equal(t, []string{"COD_REG", "PRO_COM_T", "COMUNE", "DEN_REG_regioni"}, headers)
		assert.Equal(t, []string{"Piemonte", "Piemonte"}, comuni.Values(3))

		data, err := os.ReadFile(l.Artifact("20200101", types.FormatJSON, "regioni"))
		require.NoError(t, err)
		assert.JSONEq(t,
			`[{"COD_REG":"1","DEN_REG":"Piemonte","ONTOPIA":"https://w3id.org/italia/controlled-vocabulary/territorial-classifications/regions/01"}]`,
			string(data))

		rep, err := os.ReadFile(l.Report("20200101"))
		require.NoError(t, err)
		assert.Contains(t, string(rep), "repaired")
		assert.Contains(t, string(rep), "`regioni` → `comuni`")
		require.NotEmpty(t, res.RunID)
		assert.Contains(t, string(rep), res.RunID)
	})

	t.Run("second build resumes without work", func(t *testing.T) {
		loads := len(eng.Loads)
		exports := len(eng.Exports)

		again, err := c.Build(logging.WithRunID(ctx, "rerun"), "20200101")
		require.NoError(t, err)
		require.Len(t, again, 1)
		assert.Equal(t, "rerun", again[0].RunID)
		assert.False(t, again[0].Fetched)
		for _, dg := range again[0].Geometry {
			assert.True(t, dg.Skipped, dg.Division)
		}
		assert.Equal(t, loads, len(eng.Loads))
		assert.Equal(t, exports, len(eng.Exports))
		assert.Equal(t, int32(1), srv.downloads.Load())
	})

	t.Run("merge", func(t *testing.T) {
		res, err := c.Merge(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"20200101"}, res.Merged)

		reg, err := table.Load(l.Registry("anpr"), "anpr")
		require.NoError(t, err)
		assert.Equal(t, []string{"20200101", "20200101", ""}, reg.Values(reg.HeaderIndex("GEO")))
		assert.Equal(t,
			"https://w3id.org/italia/controlled-vocabulary/territorial-classifications/cities/001001-(1861-03-17)",
			reg.Value(0, reg.HeaderIndex("ONTOPIA")))

		p, err := provenance.Load(l.Provenance("anpr"))
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, []string{"20200101"}, p.Releases)

		assert.FileExists(t, l.Cache("anpr.csv"))
	})
}

func TestBuildSkipsUnavailableRelease(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t)
	dir := t.TempDir()
	engine, eng := fakeEngine(t, layout.New(dir))
	c := newConfini(t, testCatalog(t, srv.URL, "20200101", "20990101"), dir, engine)

	var skipped []string
	c.OnReleaseSkipped(func(_ context.Context, release string, err error) {
		assert.True(t, errors.IsAcquisition(err))
		skipped = append(skipped, release)
	})

	results, err := c.Build(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.False(t, results[0].Skipped)
	assert.True(t, results[1].Skipped)
	assert.Equal(t, []string{"20990101"}, skipped)
	assert.NotEmpty(t, eng.Loads)

	res, err := c.Merge(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"20200101"}, res.Merged)
}

func TestBuildHaltsFailingDivision(t *testing.T) {
	srv := newServer(t)
	dir := t.TempDir()
	engine, eng := fakeEngine(t, layout.New(dir))
	eng.ResidualDefects = 1
	c := newConfini(t, testCatalog(t, srv.URL, "20200101"), dir, engine)

	results, err := c.Build(context.Background())
	require.NoError(t, err)
	res := results[0]

	require.Len(t, res.Geometry, 2)
	assert.NotNil(t, res.Geometry[0].Outcome)
	assert.True(t, errors.IsEngine(res.Geometry[1].Err))

	comuni, ok := res.Enrichment.Get("comuni")
	require.True(t, ok)
	assert.Equal(t, "missing", string(comuni.Status))
	regioni, _ := res.Enrichment.Get("regioni")
	assert.Equal(t, "enriched", string(regioni.Status))
}

func TestNew(t *testing.T) {
	cat := testCatalog(t, "http://127.0.0.1:1", "20200101")

	_, err := New(cat, WithEngine("nope"))
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))

	_, err = New(cat, WithFormats(types.FormatZip))
	assert.Error(t, err)

	_, err = New(cat, WithParallel(0))
	assert.Error(t, err)

	_, err = New(cat, WithParallel(constants.MaxParallelDivisions+1))
	assert.True(t, errors.IsValidationError(err))

	c, err := New(cat, WithEngine("duckdb"), WithOutputDir("out"))
	require.NoError(t, err)
	assert.Equal(t, "out", c.OutputDir())
}

func TestMergeWithoutBaseRegistry(t *testing.T) {
	r, err := catalog.NewRelease("20200101", "http://127.0.0.1:1/x.zip", "",
		catalog.Division{Name: "comuni", Key: "PRO_COM_T"})
	require.NoError(t, err)
	cat, err := catalog.New([]catalog.Release{r}, catalog.Ontopia{}, nil)
	require.NoError(t, err)

	c, err := New(cat, WithOutputDir(t.TempDir()), WithDownloadRetries(0, 0))
	require.NoError(t, err)
	_, err = c.Merge(context.Background())
	assert.Error(t, err)

	results, merged, err := c.Run(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, merged)
	require.Len(t, results, 1)
	assert.True(t, results[0].Skipped)
}
