// Package application provides the application interface for confini commands.
//
// Commands accept the Application interface rather than the concrete App
// type so they can be tested with a Mock:
//
//	mock := &application.Mock{
//	    CatalogFunc: func() (*catalog.Catalog, error) {
//	        return testCatalog, nil
//	    },
//	}
//	cmd := build.NewCommand(mock)
package application

import (
	"github.com/rs/zerolog"

	"github.com/ondata/confini"
	"github.com/ondata/confini/pkg/catalog"
)

// Application provides the application interface that commands need.
//
// Thread Safety: All methods must be safe for concurrent access.
type Application interface {
	// Catalog returns the catalog loaded from the sources file.
	Catalog() (*catalog.Catalog, error)

	// Confini returns the confini instance built from the configuration.
	// Options are applied after the configured ones.
	Confini(opts ...confini.Option) (confini.Confini, error)

	// SourceName returns the release selected by configuration, empty
	// when every release is built.
	SourceName() string

	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// OutputFormat returns the configured output format (json, yaml, table).
	OutputFormat() string

	// Version returns the application version string.
	Version() string

	// Commit returns the git commit hash.
	Commit() string

	// Date returns the build date.
	Date() string

	// BuiltBy returns the build system identifier.
	BuiltBy() string
}
