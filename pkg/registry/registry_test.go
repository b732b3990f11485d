package registry

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ondata/confini/pkg/catalog"
	"github.com/ondata/confini/pkg/errors"
	"github.com/ondata/confini/pkg/logging"
	"github.com/ondata/confini/pkg/provenance"
	"github.com/ondata/confini/pkg/table"
	"github.com/ondata/confini/pkg/types"
)

var comuni = catalog.Division{Name: "comuni", Key: "PRO_COM_T", Fields: []string{"COMUNE", "REGIONE"}}

func anpr() catalog.BaseRegistry {
	return catalog.BaseRegistry{Name: "anpr", Division: "comuni", Key: "CODISTAT"}
}

func baseTable(t *testing.T) *table.Table {
	t.Helper()
	col := func(name string) table.Column {
		return table.Column{Name: name, Origin: table.Origin{Kind: types.ColumnBase}}
	}
	tbl := table.New("anpr", col("CODISTAT"), col("DENOMINAZIONE_IT"), col("DATAISTITUZIONE"))
	require.NoError(t, tbl.Append("001001", "AGLIE'", "1861-03-17"))
	require.NoError(t, tbl.Append("001002", "AIRASCA", "1861-03-17"))
	require.NoError(t, tbl.Append("099999", "NUOVO", "2022-01-01"))
	return tbl
}

func enriched(t *testing.T, rows ...[]string) *table.Table {
	t.Helper()
	tbl := table.New("comuni", table.Own("PRO_COM_T"), table.Own("COMUNE"), table.Own("REGIONE"), table.Own("ONTOPIA"))
	for _, r := range rows {
		require.NoError(t, tbl.Append(append(r, "x")...))
	}
	return tbl
}

func merger(t *testing.T) *Merger {
	t.Helper()
	m, err := New(anpr())
	require.NoError(t, err)
	return m
}

func TestMerge(t *testing.T) {
	tl := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), tl.Logger)

	inputs := []Input{
		{Release: "20200101", Division: comuni, Table: enriched(t,
			[]string{"001001", "Agliè", "Piemonte"},
			[]string{"001002", "Airasca", "Piemonte"},
		)},
		{Release: "20210101", Division: comuni, Table: enriched(t,
			[]string{"001001", "Agliè", "Piemonte"},
			[]string{"001002", "Airasca Nuova", "Piemonte"},
		)},
	}

	res, err := merger(t).Merge(ctx, baseTable(t), inputs)
	require.NoError(t, err)
	assert.Equal(t, []string{"20200101", "20210101"}, res.Merged)
	assert.Empty(t, res.Omitted)

	reg := res.Table
	headers, err := reg.Headers()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"CODISTAT", "DENOMINAZIONE_IT", "DATAISTITUZIONE",
		"PRO_COM_T", "COMUNE", "REGIONE", "COMUNE_20210101",
		"GEO", "ONTOPIA",
	}, headers)

	t.Run("presence list in processing order", func(t *testing.T) {
		geo := reg.HeaderIndex("GEO")
		assert.Equal(t, []string{"20200101,20210101", "20200101,20210101", ""}, reg.Values(geo))
	})

	t.Run("identical columns collapse into the bare name", func(t *testing.T) {
		assert.Equal(t, []string{"Piemonte", "Piemonte", ""}, reg.Values(reg.HeaderIndex("REGIONE")))
		assert.Equal(t, -1, reg.HeaderIndex("REGIONE_20210101"))
	})

	t.Run("differing columns keep their release", func(t *testing.T) {
		assert.Equal(t, []string{"Agliè", "Airasca", ""}, reg.Values(reg.HeaderIndex("COMUNE")))
		assert.Equal(t, []string{"Agliè", "Airasca Nuova", ""}, reg.Values(reg.HeaderIndex("COMUNE_20210101")))
	})

	t.Run("unmatched base rows are kept with empty cells", func(t *testing.T) {
		require.Equal(t, 3, reg.Len())
		assert.Equal(t, "099999", reg.Value(2, 0))
		assert.Equal(t, "", reg.Value(2, reg.HeaderIndex("PRO_COM_T")))
	})

	t.Run("authority from stable base fields", func(t *testing.T) {
		j := reg.HeaderIndex("ONTOPIA")
		assert.Equal(t, types.ColumnAuthority, reg.Column(j).Origin.Kind)
		assert.Equal(t,
			"https://w3id.org/italia/controlled-vocabulary/territorial-classifications/cities/099999-(2022-01-01)",
			reg.Value(2, j))
	})

	t.Run("provenance", func(t *testing.T) {
		p := res.Provenance
		require.NotNil(t, p)
		require.Len(t, p.Columns, len(headers))
		assert.Equal(t, "COMUNE", p.Columns[4].Name)
		assert.Equal(t, "20200101", p.Columns[4].Release)

		var collapsed []string
		for _, c := range p.Removed {
			for _, e := range c.History {
				if e.Action == provenance.ActionCollapsed {
					collapsed = append(collapsed, c.Name)
				}
			}
		}
		assert.ElementsMatch(t, []string{"PRO_COM_T_20210101", "REGIONE_20210101"}, collapsed)
	})

	tl.AssertContains(t, "Registry consolidated")
}

func TestMergeDedupIsIdempotent(t *testing.T) {
	ctx := context.Background()
	in := Input{Release: "20200101", Division: comuni, Table: enriched(t,
		[]string{"001001", "Agliè", "Piemonte"},
		[]string{"001002", "Airasca", "Piemonte"},
	)}

	once, err := merger(t).Merge(ctx, baseTable(t), []Input{in})
	require.NoError(t, err)
	deduped, removed := once.Table.DedupColumns(isPresence)
	assert.Empty(t, removed)

	a, err := once.Table.Headers()
	require.NoError(t, err)
	b, err := deduped.Headers()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestMergeQualifiedHeaders(t *testing.T) {
	v2020 := [][]string{{"001001", "Agliè", "Piemonte"}, {"001002", "Airasca", "Piemonte"}}
	renamed := [][]string{{"001001", "Agliè", "Piemonte"}, {"001002", "Airasca Nuova", "Piemonte"}}
	base := []string{"CODISTAT", "DENOMINAZIONE_IT", "DATAISTITUZIONE"}

	tests := []struct {
		name     string
		releases map[string][][]string
		order    []string
		want     []string
	}{
		{
			name:     "single release keeps bare names",
			releases: map[string][][]string{"20200101": v2020},
			order:    []string{"20200101"},
			want:     []string{"PRO_COM_T", "COMUNE", "REGIONE", "GEO", "ONTOPIA"},
		},
		{
			name:     "identical later release collapses",
			releases: map[string][][]string{"20200101": v2020, "20210101": v2020},
			order:    []string{"20200101", "20210101"},
			want:     []string{"PRO_COM_T", "COMUNE", "REGIONE", "GEO", "ONTOPIA"},
		},
		{
			name:     "first differing release keeps its qualifier",
			releases: map[string][][]string{"20200101": v2020, "20210101": renamed, "20220101": renamed},
			order:    []string{"20200101", "20210101", "20220101"},
			want:     []string{"PRO_COM_T", "COMUNE", "REGIONE", "COMUNE_20210101", "GEO", "ONTOPIA"},
		},
		{
			name:     "qualifier follows the merged releases",
			releases: map[string][][]string{"20200101": v2020, "20220101": renamed},
			order:    []string{"20200101", "20220101"},
			want:     []string{"PRO_COM_T", "COMUNE", "REGIONE", "COMUNE_20220101", "GEO", "ONTOPIA"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var inputs []Input
			for _, release := range tt.order {
				inputs = append(inputs, Input{Release: release, Division: comuni, Table: enriched(t, tt.releases[release]...)})
			}

			res, err := merger(t).Merge(context.Background(), baseTable(t), inputs)
			require.NoError(t, err)
			headers, err := res.Table.Headers()
			require.NoError(t, err)
			assert.Equal(t, append(slices.Clone(base), tt.want...), headers)
		})
	}
}

func TestMergeOmitsUnmatchedRelease(t *testing.T) {
	tl := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), tl.Logger)

	inputs := []Input{
		{Release: "20200101", Division: comuni, Table: enriched(t, []string{"001001", "Agliè", "Piemonte"})},
		{Release: "20210101", Division: comuni, Table: enriched(t, []string{"1001", "Agliè", "Piemonte"})},
	}
	res, err := merger(t).Merge(ctx, baseTable(t), inputs)
	require.NoError(t, err)
	assert.Equal(t, []string{"20200101"}, res.Merged)
	assert.Equal(t, []string{"20210101"}, res.Omitted)
	assert.Equal(t, []string{"20200101", "", ""}, res.Table.Values(res.Table.HeaderIndex("GEO")))
	tl.AssertContains(t, "Release omitted from the registry")

	_, err = merger(t).release(ctx, baseTable(t), 0, inputs[1])
	assert.True(t, errors.IsConsolidation(err))
}

func TestMergeSchemaErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing release field", func(t *testing.T) {
		bad := comuni
		bad.Fields = []string{"DEN_UTS"}
		_, err := merger(t).Merge(ctx, baseTable(t), []Input{
			{Release: "20200101", Division: bad, Table: enriched(t, []string{"001001", "Agliè", "Piemonte"})},
		})
		require.Error(t, err)
		assert.True(t, errors.IsSchema(err))
	})

	t.Run("missing base key", func(t *testing.T) {
		b := anpr()
		b.Key = "COD_COMUNE"
		m, err := New(b)
		require.NoError(t, err)
		_, err = m.Merge(ctx, baseTable(t), nil)
		assert.True(t, errors.IsSchema(err))
	})

	t.Run("missing template field", func(t *testing.T) {
		b := anpr()
		b.Authority = "https://example.org/{SIGLA}"
		m, err := New(b)
		require.NoError(t, err)
		_, err = m.Merge(ctx, baseTable(t), nil)
		assert.True(t, errors.IsSchema(err))
	})
}

func TestMergeReplacesAuthority(t *testing.T) {
	base := baseTable(t)
	values := make([]string, base.Len())
	for i := range values {
		values[i] = "stale"
	}
	require.NoError(t, base.SetColumn(table.Column{Name: "ONTOPIA", Origin: table.Origin{Kind: types.ColumnBase}}, values))

	res, err := merger(t).Merge(context.Background(), base, nil)
	require.NoError(t, err)
	headers, err := res.Table.Headers()
	require.NoError(t, err)
	assert.Equal(t, []string{"CODISTAT", "DENOMINAZIONE_IT", "DATAISTITUZIONE", "GEO", "ONTOPIA"}, headers)
	assert.NotContains(t, res.Table.Values(4), "stale")
}
