package confini

import (
	"fmt"
	"slices"
	"time"

	"github.com/ondata/confini/pkg/constants"
	"github.com/ondata/confini/pkg/errors"
	"github.com/ondata/confini/pkg/types"
)

// Option is a function that configures a Confini instance
type Option func(*config) error

// config holds the build settings
type config struct {
	outputDir   string
	engine      string
	parallel    int
	formats     []types.Format
	retries     uint64
	retryDelay  time.Duration
	engineDelay time.Duration
	httpTimeout time.Duration
}

// defaultConfig returns the settings used when no option is given
func defaultConfig() *config {
	return &config{
		outputDir:   constants.DefaultOutputDir,
		engine:      constants.DefaultEngine,
		parallel:    1,
		formats:     DefaultFormats(),
		retries:     constants.DownloadRetries,
		retryDelay:  constants.DownloadRetryBackoff,
		engineDelay: constants.RetryBackoff,
		httpTimeout: constants.DefaultHTTPTimeout,
	}
}

// DefaultFormats returns the optional export formats written by default.
// The corrected shapefile and the enriched CSV are always written.
func DefaultFormats() []types.Format {
	return []types.Format{types.FormatJSON, types.FormatGeoJSON, types.FormatGeoPackage}
}

// WithOutputDir sets the root of the persisted layout
func WithOutputDir(dir string) Option {
	return func(c *config) error {
		if dir == "" {
			return errors.NewValidationError("output-dir", dir, "output directory is required")
		}
		c.outputDir = dir
		return nil
	}
}

// WithEngine selects the geometry engine by registered name
func WithEngine(name string) Option {
	return func(c *config) error {
		c.engine = name
		return nil
	}
}

// WithParallel lets up to n independent divisions be enriched concurrently,
// n between 1 and constants.MaxParallelDivisions.
func WithParallel(n int) Option {
	return func(c *config) error {
		if n < 1 || n > constants.MaxParallelDivisions {
			return errors.NewValidationError("parallel", n,
				fmt.Sprintf("must be between 1 and %d", constants.MaxParallelDivisions))
		}
		c.parallel = n
		return nil
	}
}

// WithFormats sets the optional export formats
func WithFormats(formats ...types.Format) Option {
	return func(c *config) error {
		for _, f := range formats {
			if !slices.Contains(DefaultFormats(), f) {
				return errors.NewValidationError("formats", f, "not an optional export format")
			}
		}
		c.formats = slices.Clone(formats)
		return nil
	}
}

// WithDownloadRetries configures the extra attempts for remote inputs and
// the initial delay between them
func WithDownloadRetries(n uint64, delay time.Duration) Option {
	return func(c *config) error {
		c.retries = n
		c.retryDelay = delay
		return nil
	}
}

// WithEngineRetryDelay sets the pause before an engine operation is retried
func WithEngineRetryDelay(d time.Duration) Option {
	return func(c *config) error {
		c.engineDelay = d
		return nil
	}
}

// WithHTTPTimeout sets the timeout of a single archive download
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *config) error {
		if d <= 0 {
			return errors.NewValidationError("http-timeout", d, "must be positive")
		}
		c.httpTimeout = d
		return nil
	}
}

// apply applies the options in order
func (c *config) apply(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return err
		}
	}
	return nil
}
