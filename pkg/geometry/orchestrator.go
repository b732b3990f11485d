package geometry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ondata/confini/pkg/constants"
	"github.com/ondata/confini/pkg/errors"
	"github.com/ondata/confini/pkg/logging"
	"github.com/ondata/confini/pkg/types"
)

// DefectsHook is called once per validated division with the defect count
// of the raw table, including zero.
type DefectsHook func(ctx context.Context, release, division string, defects int, diagnostics []Diagnostic)

// Orchestrator applies the validation and repair policy on top of an Engine.
type Orchestrator struct {
	engine     Engine
	retryDelay time.Duration
	onDefects  []DefectsHook
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRetryDelay sets the pause before the single retry of a table creation.
func WithRetryDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.retryDelay = d
	}
}

// WithDefectsHook registers a callback for defect reports.
func WithDefectsHook(fn DefectsHook) Option {
	return func(o *Orchestrator) {
		o.onDefects = append(o.onDefects, fn)
	}
}

// NewOrchestrator creates an Orchestrator over engine.
func NewOrchestrator(engine Engine, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		engine:     engine,
		retryDelay: constants.RetryBackoff,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Engine returns the underlying engine.
func (o *Orchestrator) Engine() Engine {
	return o.engine
}

// Validate loads the shapefile of a division and decides whether its raw
// table can be exported as is. With zero defects no repair is requested
// and the outcome is Unrepaired. Otherwise the engine repairs a copy, the
// copy is checked again and the outcome is Repaired. A copy that still has
// defects is an EngineError carrying the diagnostics.
func (o *Orchestrator) Validate(ctx context.Context, release, division, path string) (Outcome, error) {
	logger := logging.FromContext(ctx)

	var raw Table
	err := o.retry(ctx, func() error {
		var err error
		raw, err = o.engine.Load(ctx, division, path)
		return err
	})
	if err != nil {
		return nil, errors.WrapEngine("load", release, division, err)
	}

	defects, diagnostics, err := o.engine.CountInvalid(ctx, raw)
	if err != nil {
		return nil, errors.WrapEngine("validate", release, division, err)
	}
	o.report(ctx, release, division, defects, diagnostics)

	if defects == 0 {
		logger.Info().
			Str("engine", o.engine.Name()).
			Int("defects", 0).
			Msg("All geometries valid")
		return Unrepaired{Original: raw}, nil
	}

	logger.Warn().
		Str("engine", o.engine.Name()).
		Int("defects", defects).
		Msg("Invalid geometries found, repairing")
	for i, d := range diagnostics {
		if i == constants.MaxDiagnostics {
			break
		}
		logger.Debug().Int64("row_id", d.RowID).Str("point", d.Point).Msg(d.Message)
	}

	var corrected Table
	err = o.retry(ctx, func() error {
		var err error
		corrected, err = o.engine.Repair(ctx, raw)
		return err
	})
	if err != nil {
		return nil, errors.NewEngineError("repair", release, division, err, describe(diagnostics)...)
	}

	residual, residualDiagnostics, err := o.engine.CountInvalid(ctx, corrected)
	if err != nil {
		return nil, errors.WrapEngine("validate", release, division, err)
	}
	if residual > 0 {
		return nil, errors.NewEngineError("repair", release, division,
			errors.New("repaired table still has invalid geometries"), describe(residualDiagnostics)...)
	}

	logger.Info().Int("repaired", defects).Str("table", corrected.Name).Msg("Geometries repaired")
	return NewRepaired(raw, corrected, defects, diagnostics), nil
}

// Export writes the table selected by the outcome.
func (o *Orchestrator) Export(ctx context.Context, release, division string, outcome Outcome, format types.Format, path string) error {
	src := Source(outcome)
	if err := o.engine.Export(ctx, src, format, path); err != nil {
		return errors.WrapEngine("export "+format.String(), release, division, err)
	}
	logging.FromContext(ctx).Debug().
		Str("table", src.Name).
		Str("format", format.String()).
		Str("path", path).
		Msg("Exported spatial table")
	return nil
}

// retry runs fn and retries it once after the configured delay.
func (o *Orchestrator) retry(ctx context.Context, fn func() error) error {
	return backoff.Retry(
		func() error {
			if err := ctx.Err(); err != nil {
				return backoff.Permanent(err)
			}
			return fn()
		},
		backoff.WithContext(
			backoff.WithMaxRetries(backoff.NewConstantBackOff(o.retryDelay), constants.EngineRetries),
			ctx,
		),
	)
}

func (o *Orchestrator) report(ctx context.Context, release, division string, defects int, diagnostics []Diagnostic) {
	for _, hook := range o.onDefects {
		hook(ctx, release, division, defects, diagnostics)
	}
}

func describe(diagnostics []Diagnostic) []string {
	n := min(len(diagnostics), constants.MaxDiagnostics)
	out := make([]string, n)
	for i := range n {
		out[i] = diagnostics[i].String()
	}
	return out
}
