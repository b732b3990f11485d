// Package enrich joins every division of a release with the attributes
// of its ancestor divisions and links it to the authority vocabulary.
//
// Divisions are processed in the dependency order of the catalog, so the
// enriched table of every parent exists before its children read it.
package enrich

import (
	"strings"

	"github.com/ondata/confini/pkg/authority"
	"github.com/ondata/confini/pkg/catalog"
	"github.com/ondata/confini/pkg/constants"
	"github.com/ondata/confini/pkg/errors"
	"github.com/ondata/confini/pkg/table"
	"github.com/ondata/confini/pkg/types"
)

// Parent is the enriched table of an ancestor division.
type Parent struct {
	Division catalog.Division
	Table    *table.Table
}

// Enrich returns the enriched form of own, the attribute table of
// division. Parents are joined in the given order on the parent key,
// projecting the key and the declared fields of the parent as parent
// columns; unmatched rows get empty cells. When mapping is not nil an
// authority URI column is computed from the mapping key. Noise columns
// are dropped last.
func Enrich(own *table.Table, division catalog.Division, parents []Parent, mapping *authority.Mapping) (*table.Table, error) {
	t := own
	for _, p := range parents {
		joined, err := joinParent(t, p)
		if err != nil {
			return nil, err
		}
		t = joined
	}

	if mapping != nil {
		var err error
		if t, err = withAuthority(t, *mapping); err != nil {
			return nil, err
		}
	}

	return t.DropWhere(IsNoise), nil
}

func joinParent(t *table.Table, p Parent) (*table.Table, error) {
	pd := p.Division
	left, err := t.Require(pd.Key, table.OfKind(types.ColumnOwn))
	if err != nil {
		return nil, err
	}

	indexes := make([]int, 0, len(pd.Fields)+1)
	for _, name := range append([]string{pd.Key}, pd.Fields...) {
		j, err := p.Table.Require(name, table.OfKind(types.ColumnOwn))
		if err != nil {
			return nil, err
		}
		indexes = append(indexes, j)
	}

	right := p.Table.Project(indexes...).Retag(func(c table.Column) table.Column {
		c.Origin = table.Origin{Kind: types.ColumnParent, Division: pd.Name}
		return c
	})
	return table.LeftJoin(t, right, table.JoinOn{Left: left, Right: 0})
}

func withAuthority(t *table.Table, m authority.Mapping) (*table.Table, error) {
	key, err := t.Require(m.Key, table.OfKind(types.ColumnOwn))
	if err != nil {
		return nil, err
	}
	values, err := t.Map(func(row []string) (string, error) {
		return m.URI(row[key])
	})
	if err != nil {
		return nil, err
	}

	out := t.Clone()
	col := table.Column{Name: constants.AuthorityColumn, Origin: table.Origin{Kind: types.ColumnAuthority}}
	if err := out.SetColumn(col, values); err != nil {
		return nil, err
	}
	return out, nil
}

// IsNoise matches the internal bookkeeping columns of the source
// shapefiles, compared case-insensitively on the bare name.
func IsNoise(c table.Column) bool {
	name := strings.ToLower(c.Name)
	for _, marker := range constants.NoiseColumnMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

// Normalize prepares an attribute extract for enrichment: column names
// are upper-cased and every column is an own column of the division.
func Normalize(t *table.Table, division string) (*table.Table, error) {
	out := t.Retag(func(c table.Column) table.Column {
		return table.Column{Name: strings.ToUpper(c.Name), Origin: table.Origin{Kind: types.ColumnOwn}}
	})
	out.Name = division
	if _, err := out.Headers(); err != nil {
		return nil, errors.NewSchemaError(division, "", "column names collide once upper-cased")
	}
	return out, nil
}
