package confini

import (
	"context"

	"github.com/agentstation/utc"

	"github.com/ondata/confini/internal/archive"
	"github.com/ondata/confini/internal/export"
	engines "github.com/ondata/confini/internal/geoengine/registry"
	"github.com/ondata/confini/internal/report"
	"github.com/ondata/confini/internal/transport"
	"github.com/ondata/confini/pkg/catalog"
	"github.com/ondata/confini/pkg/constants"
	"github.com/ondata/confini/pkg/enrich"
	"github.com/ondata/confini/pkg/errors"
	"github.com/ondata/confini/pkg/geometry"
	"github.com/ondata/confini/pkg/logging"
	"github.com/ondata/confini/pkg/table"
	"github.com/ondata/confini/pkg/types"
)

// Build stage names used in logs
const (
	stageAcquire  = "acquire"
	stageGeometry = "geometry"
	stageEnrich   = "enrich"
	stageExport   = "export"
	stageReport   = "report"
	stageMerge    = "merge"
)

// ReleaseResult reports the build of one release.
type ReleaseResult struct {
	Release string
	// RunID identifies the Build or Run call that produced the result.
	RunID string
	// Fetched is set when the archive was downloaded by this build.
	Fetched bool
	// Skipped is set when the archive could not be acquired; Err says why.
	Skipped bool
	Err     error
	// Geometry lists the divisions in processing order.
	Geometry   []DivisionGeometry
	Enrichment enrich.Result
	Warnings   []string
}

// DivisionGeometry is the geometry stage result of one division.
type DivisionGeometry struct {
	Division string
	// Outcome is nil when the stage was skipped or halted.
	Outcome geometry.Outcome
	// Skipped is set when the corrected shapefile already existed.
	Skipped bool
	// Err halted the division.
	Err error
}

// Build builds the named releases, every release when none is named.
// A release whose archive cannot be acquired is skipped.
func (c *confini) Build(ctx context.Context, releases ...string) ([]ReleaseResult, error) {
	selected, err := c.catalog.Select(releases...)
	if err != nil {
		return nil, err
	}
	ctx = withRun(ctx)

	results := make([]ReleaseResult, 0, len(selected))
	for _, r := range selected {
		res, err := c.release(logging.WithRelease(ctx, r.Name), r)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// withRun tags ctx with a new run identifier unless it already carries one.
func withRun(ctx context.Context) context.Context {
	if logging.RunID(ctx) != "" {
		return ctx
	}
	return logging.WithRunID(ctx, utc.Now().Format(constants.RunIDFormat))
}

// release runs every stage of one release.
func (c *confini) release(ctx context.Context, r catalog.Release) (ReleaseResult, error) {
	logger := logging.FromContext(ctx)
	res := ReleaseResult{Release: r.Name, RunID: logging.RunID(ctx)}
	logger.Info().Msg("Processing release")

	src := archive.New(c.layout,
		transport.WithRetries(c.config.retries, c.config.retryDelay),
		transport.WithTimeout(c.config.httpTimeout),
	)
	fetched, err := src.Acquire(logging.WithStage(ctx, stageAcquire), r)
	if errors.IsAcquisition(err) {
		logger.Warn().Err(err).Msg("Release archive not available, skipping release")
		c.triggerSkipped(ctx, r.Name, err)
		res.Skipped, res.Err = true, err
		return res, nil
	}
	if err != nil {
		return res, err
	}
	res.Fetched = fetched

	factory, err := engines.Get(c.config.engine)
	if err != nil {
		return res, err
	}
	engine, err := factory(ctx)
	if err != nil {
		return res, errors.WrapEngine("open", r.Name, "", err)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Warn().Err(err).Str("engine", engine.Name()).Msg("Closing geometry engine")
		}
	}()

	orchestrator := geometry.NewOrchestrator(engine,
		geometry.WithRetryDelay(c.config.engineDelay),
		geometry.WithDefectsHook(geometry.DefectsHook(c.triggerDefects)),
	)

	gctx := logging.WithStage(ctx, stageGeometry)
	for _, d := range r.Order() {
		dg, err := c.geometry(logging.WithDivision(gctx, d.Name), orchestrator, r, d)
		if err != nil {
			return res, err
		}
		res.Geometry = append(res.Geometry, dg)
	}

	enricher := enrich.New(c.layout, c.catalog.Ontopia(),
		enrich.WithParallel(c.config.parallel),
		enrich.WithEnrichedHook(enrich.EnrichedHook(c.triggerEnriched)),
	)
	res.Enrichment, err = enricher.Release(logging.WithStage(ctx, stageEnrich), r)
	if err != nil {
		return res, err
	}

	warnings, err := c.exports(logging.WithStage(ctx, stageExport), orchestrator, r, &res)
	if err != nil {
		return res, err
	}
	res.Warnings = append(res.Warnings, warnings...)

	if err := c.report(logging.WithStage(ctx, stageReport), engine.Name(), res); err != nil {
		return res, err
	}
	logger.Info().Int("warnings", len(res.Warnings)).Msg("Release processed")
	return res, nil
}

// geometry validates one division and writes its corrected shapefile and
// attribute extract. An engine failure halts the division only.
func (c *confini) geometry(ctx context.Context, o *geometry.Orchestrator, r catalog.Release, d catalog.Division) (DivisionGeometry, error) {
	logger := logging.FromContext(ctx)
	dg := DivisionGeometry{Division: d.Name}

	shp := c.layout.Artifact(r.Name, types.FormatShapefile, d.Name)
	extract := c.layout.Extract(r.Name, d.Name)
	if c.layout.Exists(shp) && c.layout.Exists(extract) {
		logger.Debug().Str("path", shp).Msg("Corrected shapefile exists, skipping")
		dg.Skipped = true
		return dg, nil
	}

	raw := c.layout.Artifact(r.Name, types.FormatZip, d.Name)
	if !c.layout.Exists(raw) {
		dg.Err = errors.NewEngineError("load", r.Name, d.Name, errors.NewNotFoundError("shapefile", raw))
		logger.Error().Err(dg.Err).Msg("Division halted")
		return dg, nil
	}

	outcome, err := o.Validate(ctx, r.Name, d.Name, raw)
	if err == nil && !c.layout.Exists(shp) {
		err = o.Export(ctx, r.Name, d.Name, outcome, types.FormatShapefile, shp)
	}
	if err == nil {
		err = o.Export(ctx, r.Name, d.Name, outcome, types.FormatCSV, extract)
	}
	if errors.IsEngine(err) {
		dg.Err = err
		logger.Error().Err(err).Msg("Division halted")
		return dg, nil
	}
	if err != nil {
		return dg, err
	}

	dg.Outcome = outcome
	return dg, nil
}

// exports writes the optional formats of every division. Formats the
// engine cannot write are reported as warnings.
func (c *confini) exports(ctx context.Context, o *geometry.Orchestrator, r catalog.Release, res *ReleaseResult) ([]string, error) {
	var warnings []string
	outcomes := make(map[string]geometry.Outcome, len(res.Geometry))
	for _, dg := range res.Geometry {
		if dg.Outcome != nil {
			outcomes[dg.Division] = dg.Outcome
		}
	}

	for _, d := range r.Order() {
		dctx := logging.WithDivision(ctx, d.Name)
		logger := logging.FromContext(dctx)

		for _, format := range c.config.formats {
			path := c.layout.Artifact(r.Name, format, d.Name)
			if c.layout.Exists(path) {
				continue
			}

			if !format.Spatial() {
				enriched, err := table.Load(c.layout.Enriched(r.Name, d.Name), d.Name)
				if errors.IsNotFound(err) {
					continue
				}
				if err != nil {
					return warnings, err
				}
				if err := export.WriteRecords(path, enriched); err != nil {
					return warnings, err
				}
				logger.Debug().Str("format", format.String()).Str("path", path).Msg("Exported records")
				continue
			}

			outcome, ok := outcomes[d.Name]
			if !ok {
				// The corrected shapefile of an earlier build is already valid.
				shp := c.layout.Artifact(r.Name, types.FormatShapefile, d.Name)
				if !c.layout.Exists(shp) {
					continue
				}
				reloaded, err := o.Validate(dctx, r.Name, d.Name, shp)
				if errors.IsEngine(err) {
					warnings = append(warnings, d.Name+": "+err.Error())
					logger.Warn().Err(err).Msg("Corrected shapefile could not be reloaded")
					break
				}
				if err != nil {
					return warnings, err
				}
				outcome, outcomes[d.Name] = reloaded, reloaded
			}

			err := o.Export(dctx, r.Name, d.Name, outcome, format, path)
			if errors.Is(err, errors.ErrUnsupported) {
				warnings = append(warnings, d.Name+": "+format.String()+" export not supported by the engine")
				logger.Warn().Str("format", format.String()).Msg("Export format not supported by the engine")
				continue
			}
			if errors.IsEngine(err) {
				warnings = append(warnings, d.Name+": "+err.Error())
				logger.Error().Err(err).Str("format", format.String()).Msg("Export failed")
				continue
			}
			if err != nil {
				return warnings, err
			}
		}
	}
	return warnings, nil
}

// report writes the markdown report of a release.
func (c *confini) report(ctx context.Context, engine string, res ReleaseResult) error {
	rep := report.Release{
		Name:      res.Release,
		Engine:    engine,
		RunID:     res.RunID,
		Generated: utc.Now(),
		Warnings:  res.Warnings,
	}
	for _, f := range c.config.formats {
		rep.Exports = append(rep.Exports, f.String())
	}

	for _, dg := range res.Geometry {
		row := report.Division{Name: dg.Division}
		switch {
		case dg.Outcome != nil:
			row.Outcome = geometry.Kind(dg.Outcome)
			row.Defects = dg.Outcome.Defects()
		case dg.Skipped:
			row.Outcome = report.OutcomeSkipped
		default:
			row.Outcome = report.OutcomeHalted
			row.Note = dg.Err.Error()
		}
		if er, ok := res.Enrichment.Get(dg.Division); ok {
			row.Enrichment = string(er.Status)
			row.Rows = er.Rows
			if row.Note == "" {
				row.Note = er.Reason
			}
		}
		rep.Divisions = append(rep.Divisions, row)
	}

	path := c.layout.Report(res.Release)
	if err := report.Write(path, rep); err != nil {
		return err
	}
	logging.FromContext(ctx).Debug().Str("path", path).Msg("Report written")
	return nil
}
