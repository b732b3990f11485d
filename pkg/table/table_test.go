package table

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ondata/confini/pkg/errors"
	"github.com/ondata/confini/pkg/types"
)

func mustTable(t *testing.T, name string, cols []Column, rows ...[]string) *Table {
	t.Helper()
	tbl := New(name, cols...)
	for _, r := range rows {
		require.NoError(t, tbl.Append(r...))
	}
	return tbl
}

func parent(name, division string) Column {
	return Column{Name: name, Origin: Origin{Kind: types.ColumnParent, Division: division}}
}

func TestColumnHeader(t *testing.T) {
	tests := []struct {
		name string
		col  Column
		want string
	}{
		{"own", Own("DEN_COM"), "DEN_COM"},
		{"parent", parent("DEN_PROV", "provincia"), "DEN_PROV_provincia"},
		{"release", Column{Name: "PRO_COM_T", Origin: Origin{Kind: types.ColumnOwn, Release: "20200101"}}, "PRO_COM_T_20200101"},
		{"parent in release", Column{Name: "DEN_REG", Origin: Origin{Kind: types.ColumnParent, Division: "regioni", Release: "20200101"}}, "DEN_REG_regioni_20200101"},
		{"authority", Column{Name: "ONTOPIA", Origin: Origin{Kind: types.ColumnAuthority}}, "ONTOPIA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.col.Header())
		})
	}
}

func TestLeftJoin(t *testing.T) {
	comuni := mustTable(t, "comune",
		[]Column{Own("PRO_COM"), Own("COD_PROV"), Own("DEN_COM")},
		[]string{"058091", "58", "Roma"},
		[]string{"058001", "58", "Affile"},
		[]string{"099999", "99", "Nowhere"},
	)
	province := mustTable(t, "provincia",
		[]Column{parent("COD_PROV", "provincia"), parent("DEN_PROV", "provincia")},
		[]string{"58", "Roma"},
		[]string{"59", "Latina"},
	)

	t.Run("keeps every left row", func(t *testing.T) {
		out, err := LeftJoin(comuni, province, JoinOn{Left: 1, Right: 0})
		require.NoError(t, err)
		require.Equal(t, comuni.Len(), out.Len())

		headers, err := out.Headers()
		require.NoError(t, err)
		assert.Equal(t, []string{"PRO_COM", "COD_PROV", "DEN_COM", "DEN_PROV_provincia"}, headers)

		assert.Equal(t, []string{"058091", "58", "Roma", "Roma"}, out.Row(0))
		assert.Equal(t, []string{"058001", "58", "Affile", "Roma"}, out.Row(1))
		assert.Equal(t, []string{"099999", "99", "Nowhere", ""}, out.Row(2))
	})

	t.Run("keeps right key on request", func(t *testing.T) {
		out, err := LeftJoin(comuni, province, JoinOn{Left: 1, Right: 0, KeepRightKey: true})
		require.NoError(t, err)
		assert.Equal(t, 5, out.Width())
		assert.Equal(t, "", out.Value(2, 3))
	})

	t.Run("multiple matches expand rows", func(t *testing.T) {
		dup := mustTable(t, "provincia",
			[]Column{parent("COD_PROV", "provincia"), parent("DEN_PROV", "provincia")},
			[]string{"58", "Roma"},
			[]string{"58", "Roma Capitale"},
		)
		out, err := LeftJoin(comuni, dup, JoinOn{Left: 1, Right: 0})
		require.NoError(t, err)
		assert.Equal(t, 5, out.Len())
	})

	t.Run("name collision is a schema error", func(t *testing.T) {
		clash := mustTable(t, "provincia", []Column{Own("COD_PROV"), Own("DEN_COM")}, []string{"58", "x"})
		_, err := LeftJoin(comuni, clash, JoinOn{Left: 1, Right: 0})
		require.Error(t, err)
		assert.True(t, errors.IsSchema(err))
	})

	t.Run("matches counts left rows", func(t *testing.T) {
		assert.Equal(t, 2, Matches(comuni, province, JoinOn{Left: 1, Right: 0}))
	})
}

func TestDedupColumns(t *testing.T) {
	r1 := Origin{Kind: types.ColumnOwn, Release: "20200101"}
	r2 := Origin{Kind: types.ColumnOwn, Release: "20210101"}
	tbl := mustTable(t, "registry",
		[]Column{
			{Name: "CODISTAT", Origin: Origin{Kind: types.ColumnBase}},
			{Name: "REGIONE", Origin: r1},
			{Name: "GEO", Origin: Origin{Kind: types.ColumnPresence, Release: "20200101"}},
			{Name: "REGIONE", Origin: r2},
			{Name: "GEO", Origin: Origin{Kind: types.ColumnPresence, Release: "20210101"}},
			{Name: "DEN", Origin: r2},
		},
		[]string{"058091", "Lazio", "20200101", "Lazio", "20210101", "Roma"},
		[]string{"001001", "Piemonte", "20200101", "Piemonte", "20210101", "Agliè"},
	)
	isPresence := OfKind(types.ColumnPresence)

	out, removed := tbl.DedupColumns(isPresence)
	require.Len(t, removed, 1)
	assert.Equal(t, "REGIONE_20210101", removed[0].Header())

	headers, err := out.Headers()
	require.NoError(t, err)
	assert.Equal(t, []string{"CODISTAT", "REGIONE_20200101", "GEO_20200101", "GEO_20210101", "DEN_20210101"}, headers)

	again, removedAgain := out.DedupColumns(isPresence)
	assert.Empty(t, removedAgain)
	assert.Equal(t, out.Columns(), again.Columns())
	for i := 0; i < out.Len(); i++ {
		assert.Equal(t, out.Row(i), again.Row(i))
	}

	t.Run("empty table is unchanged", func(t *testing.T) {
		empty := New("x", Own("A"), Own("B"))
		out, removed := empty.DedupColumns(nil)
		assert.Empty(t, removed)
		assert.Equal(t, 2, out.Width())
	})
}

func TestSetColumn(t *testing.T) {
	tbl := mustTable(t, "c", []Column{Own("A")}, []string{"1"}, []string{"2"})
	authority := Column{Name: "ONTOPIA", Origin: Origin{Kind: types.ColumnAuthority}}

	require.NoError(t, tbl.SetColumn(authority, []string{"u1", "u2"}))
	require.NoError(t, tbl.SetColumn(authority, []string{"v1", "v2"}))
	assert.Equal(t, 2, tbl.Width())
	assert.Equal(t, []string{"v1", "v2"}, tbl.Values(1))

	err := tbl.SetColumn(authority, []string{"only one"})
	assert.True(t, errors.IsSchema(err))
}

func TestDropWhere(t *testing.T) {
	tbl := mustTable(t, "c", []Column{Own("PKUID"), Own("COD"), Own("Shape_Leng")}, []string{"1", "001", "3.2"})
	out := tbl.DropWhere(func(c Column) bool {
		l := strings.ToLower(c.Name)
		return strings.Contains(l, "pkuid") || strings.Contains(l, "shape_")
	})
	assert.Equal(t, []Column{Own("COD")}, out.Columns())
	assert.Equal(t, []string{"001"}, out.Row(0))
}

func TestCSV(t *testing.T) {
	t.Run("read preserves leading zeros", func(t *testing.T) {
		in := "\ufeffPRO_COM,DEN\n001001,Agliè\n"
		tbl, err := ReadCSV(strings.NewReader(in), "comune", Origin{Kind: types.ColumnOwn})
		require.NoError(t, err)
		assert.Equal(t, "PRO_COM", tbl.Column(0).Name)
		assert.Equal(t, "001001", tbl.Value(0, 0))
	})

	t.Run("empty input is a parse error", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader(""), "x", Origin{})
		var pe *errors.ParseError
		assert.ErrorAs(t, err, &pe)
	})

	t.Run("write materializes headers", func(t *testing.T) {
		tbl := mustTable(t, "comune", []Column{Own("COD_PROV"), parent("DEN_PROV", "provincia")}, []string{"58", "Roma"})
		var buf bytes.Buffer
		require.NoError(t, WriteCSV(&buf, tbl))
		assert.Equal(t, "COD_PROV,DEN_PROV_provincia\n58,Roma\n", buf.String())
	})
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "csv", "comune", "comune.csv")
	tbl := mustTable(t, "comune",
		[]Column{Own("COD_PROV"), parent("DEN_PROV", "provincia"), {Name: "ONTOPIA", Origin: Origin{Kind: types.ColumnAuthority}}},
		[]string{"058", "Roma", "H/p/058"},
	)
	require.NoError(t, Save(path, tbl))
	assert.FileExists(t, SchemaPath(path))

	loaded, err := Load(path, "comune")
	require.NoError(t, err)
	assert.Equal(t, tbl.Columns(), loaded.Columns())
	assert.Equal(t, tbl.Row(0), loaded.Row(0))

	t.Run("without sidecar columns are own", func(t *testing.T) {
		require.NoError(t, os.Remove(SchemaPath(path)))
		plain, err := Load(path, "comune")
		require.NoError(t, err)
		assert.Equal(t, Own("DEN_PROV_provincia"), plain.Column(1))
	})

	t.Run("missing file is not found", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "nope.csv"), "nope")
		assert.True(t, errors.IsNotFound(err))
	})
}
