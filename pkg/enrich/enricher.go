package enrich

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ondata/confini/internal/utils/atomicfile"
	"github.com/ondata/confini/pkg/authority"
	"github.com/ondata/confini/pkg/catalog"
	"github.com/ondata/confini/pkg/errors"
	"github.com/ondata/confini/pkg/logging"
	"github.com/ondata/confini/pkg/table"
)

// Store locates the tables read and written by enrichment.
type Store interface {
	// Extract is the attribute table exported from the validated shapefile.
	Extract(release, division string) string
	// Enriched is where the enriched table of a division is persisted.
	Enriched(release, division string) string
}

// Status is the result of enriching one division.
type Status string

const (
	// StatusEnriched means the enriched table was written by this run.
	StatusEnriched Status = "enriched"
	// StatusSkipped means the enriched table already existed.
	StatusSkipped Status = "skipped"
	// StatusMissing means an input was missing, usually because the
	// geometry stage halted the division or one of its ancestors.
	StatusMissing Status = "missing"
)

// DivisionResult reports what happened to one division.
type DivisionResult struct {
	Division string
	Status   Status
	Rows     int
	Reason   string
}

// Result reports the enrichment of a release in processing order.
type Result struct {
	Release   string
	Divisions []DivisionResult
}

// Get returns the result of a division.
func (r Result) Get(division string) (DivisionResult, bool) {
	for _, d := range r.Divisions {
		if d.Division == division {
			return d, true
		}
	}
	return DivisionResult{}, false
}

// EnrichedHook is called after a division's enriched table was written.
type EnrichedHook func(ctx context.Context, release, division string, t *table.Table)

// Enricher enriches the divisions of a release.
type Enricher struct {
	store      Store
	ontopia    catalog.Ontopia
	parallel   int
	onEnriched []EnrichedHook
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithParallel lets up to n independent divisions of the same level run
// concurrently. n <= 1 keeps the sequential default.
func WithParallel(n int) Option {
	return func(e *Enricher) {
		e.parallel = n
	}
}

// WithEnrichedHook registers a callback for written tables.
func WithEnrichedHook(fn EnrichedHook) Option {
	return func(e *Enricher) {
		e.onEnriched = append(e.onEnriched, fn)
	}
}

// New creates an Enricher reading and writing through store.
func New(store Store, ontopia catalog.Ontopia, opts ...Option) *Enricher {
	e := &Enricher{store: store, ontopia: ontopia, parallel: 1}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Release enriches every division of release level by level. A schema
// error aborts the release; a missing input only marks the division.
func (e *Enricher) Release(ctx context.Context, release catalog.Release) (Result, error) {
	ctx = logging.WithRelease(ctx, release.Name)
	results := make(map[string]DivisionResult)
	var mu sync.Mutex
	record := func(r DivisionResult) {
		mu.Lock()
		results[r.Division] = r
		mu.Unlock()
	}

	for _, level := range release.Levels() {
		if e.parallel <= 1 || len(level) == 1 {
			for _, d := range level {
				r, err := e.division(ctx, release, d)
				if err != nil {
					return Result{}, err
				}
				record(r)
			}
			continue
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.parallel)
		for _, d := range level {
			g.Go(func() error {
				r, err := e.division(gctx, release, d)
				if err != nil {
					return err
				}
				record(r)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return Result{}, err
		}
	}

	out := Result{Release: release.Name}
	for _, d := range release.Order() {
		out.Divisions = append(out.Divisions, results[d.Name])
	}
	return out, nil
}

func (e *Enricher) division(ctx context.Context, release catalog.Release, d catalog.Division) (DivisionResult, error) {
	ctx = logging.WithDivision(ctx, d.Name)
	logger := logging.FromContext(ctx)
	if err := ctx.Err(); err != nil {
		return DivisionResult{}, err
	}

	target := e.store.Enriched(release.Name, d.Name)
	if atomicfile.Exists(target) {
		logger.Debug().Str("path", target).Msg("Enriched table exists, skipping")
		return DivisionResult{Division: d.Name, Status: StatusSkipped}, nil
	}

	extract, err := table.Load(e.store.Extract(release.Name, d.Name), d.Name)
	if errors.IsNotFound(err) {
		logger.Warn().Msg("No attribute extract, division not enriched")
		return DivisionResult{Division: d.Name, Status: StatusMissing, Reason: "no attribute extract"}, nil
	}
	if err != nil {
		return DivisionResult{}, err
	}
	own, err := Normalize(extract, d.Name)
	if err != nil {
		return DivisionResult{}, err
	}

	parents := make([]Parent, 0, len(d.Parents))
	for _, name := range d.Parents {
		pd, _ := release.Division(name)
		pt, err := table.Load(e.store.Enriched(release.Name, name), name)
		if errors.IsNotFound(err) {
			logger.Warn().Str("parent", name).Msg("Parent not enriched, division not enriched")
			return DivisionResult{Division: d.Name, Status: StatusMissing, Reason: "parent " + name + " not enriched"}, nil
		}
		if err != nil {
			return DivisionResult{}, err
		}
		parents = append(parents, Parent{Division: pd, Table: pt})
	}

	var mapping *authority.Mapping
	if m, ok := authority.FromCatalog(e.ontopia, d.Name); ok {
		mapping = &m
	}

	enriched, err := Enrich(own, d, parents, mapping)
	if err != nil {
		return DivisionResult{}, err
	}
	if err := table.Save(target, enriched); err != nil {
		return DivisionResult{}, err
	}

	logger.Info().Int("rows", enriched.Len()).Int("parents", len(parents)).Msg("Division enriched")
	for _, hook := range e.onEnriched {
		hook(ctx, release.Name, d.Name, enriched)
	}
	return DivisionResult{Division: d.Name, Status: StatusEnriched, Rows: enriched.Len()}, nil
}
