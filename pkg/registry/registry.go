// Package registry consolidates the municipality division of several
// releases into one national registry keyed by the stable identifier of
// the base registry.
//
// Every release contributes its key and declared fields, scoped to the
// release, and a presence marker. Columns identical on every row are
// collapsed after each release; the markers are folded into a single
// presence list and the release scope is dropped from the names last.
package registry

import (
	"context"
	"slices"
	"strings"

	"github.com/ondata/confini/pkg/authority"
	"github.com/ondata/confini/pkg/catalog"
	"github.com/ondata/confini/pkg/constants"
	"github.com/ondata/confini/pkg/errors"
	"github.com/ondata/confini/pkg/logging"
	"github.com/ondata/confini/pkg/provenance"
	"github.com/ondata/confini/pkg/table"
	"github.com/ondata/confini/pkg/types"
)

// Input is the enriched municipality table of one release.
type Input struct {
	Release  string
	Division catalog.Division
	Table    *table.Table
}

// Result is a consolidated registry.
type Result struct {
	Table *table.Table
	// Merged lists the releases present in the registry, in processing order.
	Merged []string
	// Omitted lists the releases left out after a consolidation error.
	Omitted []string
	// Provenance describes every column of Table.
	Provenance *provenance.Report
}

// Merger consolidates releases into the base registry.
type Merger struct {
	base     catalog.BaseRegistry
	template authority.Template
	tracker  provenance.Tracker
}

// Option configures a Merger.
type Option func(*Merger)

// WithTracker replaces the provenance tracker.
func WithTracker(t provenance.Tracker) Option {
	return func(m *Merger) {
		m.tracker = t
	}
}

// New creates a Merger for the base registry b.
func New(b catalog.BaseRegistry, opts ...Option) (*Merger, error) {
	raw := b.Authority
	if raw == "" {
		raw = constants.DefaultAuthorityTemplate
	}
	tmpl, err := authority.ParseTemplate(raw)
	if err != nil {
		return nil, err
	}
	m := &Merger{base: b, template: tmpl, tracker: provenance.NewTracker(true)}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Merge consolidates inputs into base in the given order. A release none
// of whose keys match the base registry is omitted with a warning; schema
// errors abort the merge.
func (m *Merger) Merge(ctx context.Context, base *table.Table, inputs []Input) (*Result, error) {
	logger := logging.FromContext(ctx)
	m.tracker.Clear()

	baseKey, err := base.Require(m.base.Key, table.OfKind(types.ColumnBase))
	if err != nil {
		return nil, err
	}
	for _, c := range base.Columns() {
		m.tracker.Track(c.Header(), provenance.Event{Action: provenance.ActionAdded, Reason: "base registry"})
	}

	res := &Result{}
	t := base.Clone()
	for _, in := range inputs {
		next, err := m.release(ctx, t, baseKey, in)
		if errors.IsConsolidation(err) {
			logger.Warn().Err(err).Str("release", in.Release).Msg("Release omitted from the registry")
			res.Omitted = append(res.Omitted, in.Release)
			continue
		}
		if err != nil {
			return nil, err
		}
		t = next
		res.Merged = append(res.Merged, in.Release)
	}

	t, err = m.presence(t)
	if err != nil {
		return nil, err
	}
	t, tracked := m.strip(t)
	t, err = m.withAuthority(t)
	if err != nil {
		return nil, err
	}
	tracked = slices.DeleteFunc(tracked, func(tr provenance.Tracked) bool {
		return tr.Header == constants.AuthorityColumn
	})
	tracked = append(tracked, provenance.Tracked{
		Key:    constants.AuthorityColumn,
		Header: constants.AuthorityColumn,
		Origin: t.Column(t.Width() - 1).Origin,
	})

	res.Table = t
	res.Provenance = provenance.GenerateReport(m.base.Name, res.Merged, res.Omitted, tracked, m.tracker.Map())
	logger.Info().
		Int("rows", t.Len()).
		Int("columns", t.Width()).
		Strs("releases", res.Merged).
		Msg("Registry consolidated")
	return res, nil
}

// release joins one release into t.
func (m *Merger) release(ctx context.Context, t *table.Table, baseKey int, in Input) (*table.Table, error) {
	ctx = logging.WithRelease(ctx, in.Release)
	logger := logging.FromContext(ctx)
	d := in.Division

	indexes := make([]int, 0, len(d.Fields)+1)
	for _, name := range append([]string{d.Key}, d.Fields...) {
		j, err := in.Table.Require(name, table.OfKind(types.ColumnOwn))
		if err != nil {
			return nil, err
		}
		indexes = append(indexes, j)
	}

	scoped := in.Table.Project(indexes...).Retag(func(c table.Column) table.Column {
		c.Origin = table.Origin{Kind: types.ColumnOwn, Release: in.Release, Division: d.Name}
		return c
	})
	marker := make([]string, scoped.Len())
	for i := range marker {
		marker[i] = in.Release
	}
	presence := table.Column{Name: constants.PresenceColumn, Origin: table.Origin{Kind: types.ColumnPresence, Release: in.Release}}
	if err := scoped.SetColumn(presence, marker); err != nil {
		return nil, err
	}

	on := table.JoinOn{Left: baseKey, Right: 0, KeepRightKey: true}
	matched := table.Matches(t, scoped, on)
	if matched == 0 {
		return nil, errors.NewConsolidationError(in.Release,
			"no "+d.Key+" value matches the base registry key "+m.base.Key, nil)
	}

	joined, err := table.LeftJoin(t, scoped, on)
	if err != nil {
		return nil, err
	}
	for _, c := range scoped.Columns() {
		m.tracker.Track(c.Header(), provenance.Event{Action: provenance.ActionAdded, Release: in.Release})
	}

	deduped, removed := joined.DedupColumns(isPresence)
	for _, c := range removed {
		m.tracker.Track(c.Header(), provenance.Event{
			Action:  provenance.ActionCollapsed,
			Release: in.Release,
			Reason:  "identical to an earlier column on every row",
		})
	}
	logger.Info().
		Int("matched", matched).
		Int("added", scoped.Width()-len(removed)).
		Int("collapsed", len(removed)).
		Msg("Release merged")
	return deduped, nil
}

func isPresence(c table.Column) bool {
	return c.Origin.Kind == types.ColumnPresence
}

// presence folds the per-release markers into the presence list: the
// non-empty markers of a row, comma-joined in processing order.
func (m *Merger) presence(t *table.Table) (*table.Table, error) {
	var markers []int
	for j, c := range t.Columns() {
		if isPresence(c) {
			markers = append(markers, j)
		}
	}

	values, err := t.Map(func(row []string) (string, error) {
		present := make([]string, 0, len(markers))
		for _, j := range markers {
			if row[j] != "" {
				present = append(present, row[j])
			}
		}
		return strings.Join(present, ","), nil
	})
	if err != nil {
		return nil, err
	}

	out := t.Drop(markers...)
	for _, j := range markers {
		m.tracker.Track(t.Column(j).Header(), provenance.Event{Action: provenance.ActionDropped, Into: constants.PresenceColumn})
	}
	list := table.Column{Name: constants.PresenceColumn, Origin: table.Origin{Kind: types.ColumnPresence}}
	if err := out.SetColumn(list, values); err != nil {
		return nil, err
	}
	m.tracker.Track(constants.PresenceColumn, provenance.Event{Action: provenance.ActionComputed})
	return out, nil
}

// strip drops the release scope from column names. The first column to
// claim a bare name keeps it; later columns with the same bare name keep
// their release qualifier, so names stay unique.
func (m *Merger) strip(t *table.Table) (*table.Table, []provenance.Tracked) {
	taken := make(map[string]bool, t.Width())
	for _, c := range t.Columns() {
		if c.Origin.Release == "" {
			taken[c.Header()] = true
		}
	}

	tracked := make([]provenance.Tracked, 0, t.Width())
	out := t.Retag(func(c table.Column) table.Column {
		key := c.Header()
		if c.Origin.Release == "" {
			tracked = append(tracked, provenance.Tracked{Key: key, Header: key, Origin: c.Origin})
			return c
		}

		bare := c
		bare.Origin.Release = ""
		if taken[bare.Header()] {
			m.tracker.Track(key, provenance.Event{Action: provenance.ActionQualified, Release: c.Origin.Release})
			tracked = append(tracked, provenance.Tracked{Key: key, Header: key, Origin: c.Origin})
			return c
		}
		taken[bare.Header()] = true
		m.tracker.Track(key, provenance.Event{Action: provenance.ActionRenamed, Release: c.Origin.Release, Into: bare.Header()})
		tracked = append(tracked, provenance.Tracked{Key: key, Header: bare.Header(), Origin: c.Origin})
		return bare
	})
	return out, tracked
}

// withAuthority recomputes the authority URI from the stable base fields,
// replacing any authority column already present.
func (m *Merger) withAuthority(t *table.Table) (*table.Table, error) {
	fields := m.template.Fields()
	indexes := make(map[string]int, len(fields))
	for _, f := range fields {
		j := t.HeaderIndex(f)
		if j < 0 {
			return nil, errors.NewSchemaError(t.Name, f, "authority template field not found")
		}
		indexes[f] = j
	}

	values, err := t.Map(func(row []string) (string, error) {
		return m.template.Render(t.Name, func(field string) (string, bool) {
			j, ok := indexes[field]
			if !ok {
				return "", false
			}
			return row[j], true
		})
	})
	if err != nil {
		return nil, err
	}

	out := t.DropWhere(func(c table.Column) bool {
		if c.Header() != constants.AuthorityColumn {
			return false
		}
		m.tracker.Track(constants.AuthorityColumn, provenance.Event{Action: provenance.ActionReplaced})
		return true
	})
	col := table.Column{Name: constants.AuthorityColumn, Origin: table.Origin{Kind: types.ColumnAuthority}}
	if err := out.SetColumn(col, values); err != nil {
		return nil, err
	}
	m.tracker.Track(constants.AuthorityColumn, provenance.Event{Action: provenance.ActionComputed})
	return out, nil
}
