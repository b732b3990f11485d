// Package constants provides shared constants used throughout the confini codebase.
// This includes timeouts, limits, file permissions, defaults and other values
// that should be consistent across the application.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout is the standard timeout for downloading release archives
	DefaultHTTPTimeout = 10 * time.Minute

	// RegistryFetchTimeout is the timeout for fetching the national base registry
	RegistryFetchTimeout = 2 * time.Minute

	// RetryBackoff is the base backoff duration for retries
	RetryBackoff = 1 * time.Second

	// DownloadRetryBackoff is the base backoff between archive download attempts
	DownloadRetryBackoff = 5 * time.Second
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Limit constants define various limits and capacities
const (
	// EngineRetries is the number of extra attempts at the table creation boundary
	EngineRetries = 1

	// DownloadRetries is the number of extra attempts for archive downloads
	DownloadRetries = 3

	// MaxParallelDivisions bounds concurrent division enrichment within a level
	MaxParallelDivisions = 8

	// MaxDiagnostics is the maximum number of offending points kept per division
	MaxDiagnostics = 50
)

// Default values
const (
	// DefaultOutputDir is the root of the persisted layout
	DefaultOutputDir = "v1"

	// DefaultSourceFile is the catalog configuration file
	DefaultSourceFile = "sources.json"

	// DefaultEngine is the geometry engine used when none is configured
	DefaultEngine = "duckdb"

	// DefaultSRID is the spatial reference of the ISTAT shapefiles (WGS 84 / UTM zone 32N)
	DefaultSRID = 32632

	// DefaultShapeEncoding is the attribute encoding of the release shapefiles
	DefaultShapeEncoding = "UTF-8"

	// DefaultRegistryEncoding is the charset of the national base registry
	DefaultRegistryEncoding = "latin1"

	// UserAgent is sent with every HTTP request
	UserAgent = "confini"

	// DefaultAuthorityTemplate builds the registry authority URI from stable base fields
	DefaultAuthorityTemplate = "https://w3id.org/italia/controlled-vocabulary/territorial-classifications/cities/{CODISTAT}-({DATAISTITUZIONE})"
)

// Column names written by the build
const (
	// AuthorityColumn holds the controlled-vocabulary URI
	AuthorityColumn = "ONTOPIA"

	// PresenceColumn holds the comma-joined list of releases a registry row appears in
	PresenceColumn = "GEO"

	// GeometryColumn is the geometry column name inside the geometry engines
	GeometryColumn = "geom"

	// RowIDColumn is the internal row identifier added by the geometry engines
	RowIDColumn = "PKUID"
)

// Noise column markers dropped from enriched tables (case-insensitive substrings)
var NoiseColumnMarkers = []string{"shape_", "pkuid"}

// File names of the persisted layout
const (
	// ReportFile is the per-release run report
	ReportFile = "REPORT.md"

	// SchemaSuffix is appended to a table path for its column metadata sidecar
	SchemaSuffix = ".schema.yaml"

	// ProvenanceSuffix is appended to the registry name for its column provenance report
	ProvenanceSuffix = ".provenance.yaml"

	// CleanSuffix names the repaired copy of a spatial table
	CleanSuffix = "_clean"
)

// Format constants
const (
	// TimeFormatHuman is a human-readable time format
	TimeFormatHuman = "Jan 2, 2006 at 3:04pm MST"

	// RunIDFormat is the layout of build run identifiers (UTC)
	RunIDFormat = "20060102T150405Z"
)
