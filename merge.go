package confini

import (
	"context"

	"github.com/ondata/confini/internal/baseregistry"
	"github.com/ondata/confini/pkg/errors"
	"github.com/ondata/confini/pkg/logging"
	"github.com/ondata/confini/pkg/provenance"
	"github.com/ondata/confini/pkg/registry"
	"github.com/ondata/confini/pkg/table"
)

// Merge consolidates the enriched municipality tables of every built
// release into the national registry. A failure to acquire the base
// registry with no cached copy is fatal.
func (c *confini) Merge(ctx context.Context) (*registry.Result, error) {
	b, ok := c.catalog.BaseRegistry()
	if !ok {
		return nil, errNoBaseRegistry
	}
	ctx = logging.WithStage(ctx, stageMerge)
	logger := logging.FromContext(ctx)

	fetcher := baseregistry.New(c.layout.Cache(b.Cache), c.transportOptions(b.Insecure)...)
	base, source, err := fetcher.Fetch(ctx, b)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("source", string(source)).Int("rows", base.Len()).Msg("Base registry loaded")

	var inputs []registry.Input
	for _, r := range c.catalog.Releases() {
		d, ok := r.Division(b.Division)
		if !ok {
			continue
		}
		t, err := table.Load(c.layout.Enriched(r.Name, d.Name), d.Name)
		if errors.IsNotFound(err) {
			logger.Warn().Str("release", r.Name).Str("division", d.Name).Msg("Release not built, left out of the registry")
			continue
		}
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, registry.Input{Release: r.Name, Division: d, Table: t})
	}

	m, err := registry.New(b)
	if err != nil {
		return nil, err
	}
	res, err := m.Merge(ctx, base, inputs)
	if err != nil {
		return nil, err
	}

	path := c.layout.Registry(b.Name)
	if err := table.Save(path, res.Table); err != nil {
		return nil, err
	}
	if err := provenance.Save(c.layout.Provenance(b.Name), res.Provenance); err != nil {
		return nil, err
	}
	logger.Info().Str("path", path).Strs("omitted", res.Omitted).Msg("Registry written")
	return res, nil
}
