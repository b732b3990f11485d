// Package confini builds a versioned dataset of Italian administrative
// boundaries from the ISTAT shapefile releases.
//
// Each release goes through the same stages: the archive is acquired, the
// geometry of every division is validated and repaired when needed, the
// divisions are enriched with the attributes of their ancestors and the
// authority URIs, and the configured formats are exported. The municipality
// division of every release is finally consolidated into the national
// registry.
//
// Every stage writes its artifacts atomically under the output directory
// and is skipped when they already exist, so an interrupted build resumes
// where it stopped.
package confini

import (
	"context"
	"fmt"

	engines "github.com/ondata/confini/internal/geoengine/registry"
	"github.com/ondata/confini/internal/layout"
	"github.com/ondata/confini/internal/transport"
	"github.com/ondata/confini/pkg/catalog"
	"github.com/ondata/confini/pkg/errors"
	"github.com/ondata/confini/pkg/registry"
)

// Confini builds releases and consolidates them into the national registry
type Confini interface {
	// Catalog returns the catalog the builds follow
	Catalog() *catalog.Catalog

	// OutputDir returns the root of the persisted layout
	OutputDir() string

	// Build builds the named releases, every release when none is named.
	// A release whose archive cannot be acquired is skipped.
	Build(ctx context.Context, releases ...string) ([]ReleaseResult, error)

	// Merge consolidates the built releases into the national registry
	Merge(ctx context.Context) (*registry.Result, error)

	// Run builds every release and merges them
	Run(ctx context.Context) ([]ReleaseResult, *registry.Result, error)

	// OnDefects registers a callback for defect reports
	OnDefects(DefectsHook)

	// OnDivisionEnriched registers a callback for enriched divisions
	OnDivisionEnriched(DivisionEnrichedHook)

	// OnReleaseSkipped registers a callback for skipped releases
	OnReleaseSkipped(ReleaseSkippedHook)
}

// confini is the internal implementation of the Confini interface
type confini struct {
	*hooks
	catalog *catalog.Catalog
	config  *config
	layout  layout.Layout
}

// New creates a new Confini instance for cat. A nil catalog selects the
// embedded default catalog.
func New(cat *catalog.Catalog, opts ...Option) (Confini, error) {
	cfg := defaultConfig()
	if err := cfg.apply(opts...); err != nil {
		return nil, fmt.Errorf("applying options: %w", err)
	}
	if !engines.Has(cfg.engine) {
		_, err := engines.Get(cfg.engine)
		return nil, err
	}

	if cat == nil {
		var err error
		if cat, err = catalog.Default(); err != nil {
			return nil, fmt.Errorf("loading embedded catalog: %w", err)
		}
	}

	return &confini{
		hooks:   newHooks(),
		catalog: cat,
		config:  cfg,
		layout:  layout.New(cfg.outputDir),
	}, nil
}

// Catalog returns the catalog the builds follow
func (c *confini) Catalog() *catalog.Catalog {
	return c.catalog
}

// OutputDir returns the root of the persisted layout
func (c *confini) OutputDir() string {
	return c.layout.Root()
}

// Run builds every release and merges them
func (c *confini) Run(ctx context.Context) ([]ReleaseResult, *registry.Result, error) {
	ctx = withRun(ctx)
	results, err := c.Build(ctx)
	if err != nil {
		return results, nil, err
	}
	if _, ok := c.catalog.BaseRegistry(); !ok {
		return results, nil, nil
	}
	merged, err := c.Merge(ctx)
	return results, merged, err
}

// transportOptions returns the client options for remote inputs
func (c *confini) transportOptions(insecure bool) []transport.Option {
	opts := []transport.Option{
		transport.WithRetries(c.config.retries, c.config.retryDelay),
	}
	if insecure {
		opts = append(opts, transport.WithInsecureTLS())
	}
	return opts
}

// errNoBaseRegistry is returned by Merge when the catalog has no base registry
var errNoBaseRegistry = errors.NewConfigError("anpr", "the catalog declares no base registry", nil)
