// Package types provides shared type definitions used across the confini packages.
//
// This package contains fundamental types like ColumnKind and Format that are
// referenced by multiple packages (table, geometry, enrich, registry, provenance)
// to avoid import cycles while maintaining type safety.
//
// The package has zero dependencies and serves as a foundation for the type system.
//
//nolint:revive // Package name 'types' is appropriate for common type definitions
package types
