// Package duckdb implements the geometry engine on an in-memory DuckDB
// database with the spatial extension.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	_ "github.com/duckdb/duckdb-go/v2" // registers the duckdb driver

	"github.com/ondata/confini/internal/geoengine/registry"
	"github.com/ondata/confini/internal/geoengine/sqlrows"
	"github.com/ondata/confini/internal/utils/atomicfile"
	"github.com/ondata/confini/pkg/constants"
	"github.com/ondata/confini/pkg/errors"
	"github.com/ondata/confini/pkg/geometry"
	"github.com/ondata/confini/pkg/logging"
	"github.com/ondata/confini/pkg/table"
	"github.com/ondata/confini/pkg/types"
)

// Name identifies the engine in configuration.
const Name = "duckdb"

var drivers = map[types.Format]string{
	types.FormatShapefile:  "ESRI Shapefile",
	types.FormatGeoJSON:    "GeoJSON",
	types.FormatGeoPackage: "GPKG",
}

// Engine is a geometry.Engine backed by DuckDB.
type Engine struct {
	db   *sql.DB
	srid int
}

var _ geometry.Engine = (*Engine)(nil)

func init() {
	registry.Register(Name, func(ctx context.Context) (geometry.Engine, error) {
		return New(ctx)
	})
}

// New opens an in-memory database and loads the spatial extension.
func New(ctx context.Context) (*Engine, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, errors.WrapEngine("open", "", "", err)
	}
	if _, err := db.ExecContext(ctx, "INSTALL spatial; LOAD spatial;"); err != nil {
		_ = db.Close()
		return nil, errors.WrapEngine("load spatial extension", "", "", err)
	}
	return &Engine{db: db, srid: constants.DefaultSRID}, nil
}

// Name implements geometry.Engine.
func (e *Engine) Name() string { return Name }

// Load reads the shapefile with GDAL into a table with a row identifier.
func (e *Engine) Load(ctx context.Context, name, path string) (geometry.Table, error) {
	query := fmt.Sprintf(
		"CREATE OR REPLACE TABLE %s AS SELECT row_number() OVER () AS %s, * FROM ST_Read(%s)",
		sqlrows.Ident(name), constants.RowIDColumn, sqlrows.Literal(path))
	if _, err := e.db.ExecContext(ctx, query); err != nil {
		return geometry.Table{}, err
	}
	logging.FromContext(ctx).Debug().Str("table", name).Str("path", path).Msg("Loaded shapefile")
	return geometry.Table{Name: name}, nil
}

// CountInvalid implements geometry.Engine. The centroid of each failing
// record stands in for the offending point.
func (e *Engine) CountInvalid(ctx context.Context, t geometry.Table) (int, []geometry.Diagnostic, error) {
	where := fmt.Sprintf("FROM %s WHERE NOT ST_IsValid(%s)", sqlrows.Ident(t.Name), constants.GeometryColumn)

	var count int
	if err := e.db.QueryRowContext(ctx, "SELECT count(*) "+where).Scan(&count); err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	rows, err := e.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT %s, ST_AsText(ST_Centroid(%s)) %s ORDER BY %s LIMIT %d",
		constants.RowIDColumn, constants.GeometryColumn, where, constants.RowIDColumn, constants.MaxDiagnostics))
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = rows.Close() }()

	var diagnostics []geometry.Diagnostic
	for rows.Next() {
		var d geometry.Diagnostic
		var point sql.NullString
		if err := rows.Scan(&d.RowID, &point); err != nil {
			return 0, nil, err
		}
		d.Message = "invalid geometry"
		d.Point = point.String
		diagnostics = append(diagnostics, d)
	}
	return count, diagnostics, rows.Err()
}

// Repair creates <name>_clean with every invalid geometry made valid.
func (e *Engine) Repair(ctx context.Context, t geometry.Table) (geometry.Table, error) {
	clean := t.Name + constants.CleanSuffix
	geom := constants.GeometryColumn
	query := fmt.Sprintf(
		"CREATE OR REPLACE TABLE %s AS SELECT * REPLACE (CASE WHEN ST_IsValid(%s) THEN %s ELSE ST_MakeValid(%s) END AS %s) FROM %s",
		sqlrows.Ident(clean), geom, geom, geom, geom, sqlrows.Ident(t.Name))
	if _, err := e.db.ExecContext(ctx, query); err != nil {
		return geometry.Table{}, err
	}
	return geometry.Table{Name: clean}, nil
}

// Export implements geometry.Engine. Spatial formats go through the GDAL
// writer of the spatial extension, CSV holds the attributes only.
func (e *Engine) Export(ctx context.Context, t geometry.Table, format types.Format, path string) error {
	if format == types.FormatCSV {
		attrs, err := sqlrows.Table(ctx, e.db, t.Name, fmt.Sprintf(
			"SELECT * EXCLUDE (%s, %s) FROM %s ORDER BY %s",
			constants.RowIDColumn, constants.GeometryColumn, sqlrows.Ident(t.Name), constants.RowIDColumn))
		if err != nil {
			return err
		}
		return atomicfile.Write(path, func(w io.Writer) error {
			return table.WriteCSV(w, attrs)
		})
	}

	driver, ok := drivers[format]
	if !ok {
		return fmt.Errorf("%w: %s export", errors.ErrUnsupported, format)
	}
	return atomicfile.WriteSet(path, func(temp string) error {
		query := fmt.Sprintf(
			"COPY (SELECT * EXCLUDE (%s) FROM %s ORDER BY %s) TO %s WITH (FORMAT GDAL, DRIVER %s, SRS %s)",
			constants.RowIDColumn, sqlrows.Ident(t.Name), constants.RowIDColumn,
			sqlrows.Literal(temp), sqlrows.Literal(driver), sqlrows.Literal(fmt.Sprintf("EPSG:%d", e.srid)))
		_, err := e.db.ExecContext(ctx, query)
		return err
	})
}

// Close implements geometry.Engine.
func (e *Engine) Close() error {
	return e.db.Close()
}
