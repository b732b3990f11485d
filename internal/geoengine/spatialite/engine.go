// Package spatialite implements the geometry engine on SQLite with the
// mod_spatialite extension, reading shapefiles through VirtualShape and
// using GEOS for validity checks and repair.
package spatialite

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-sqlite3"

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
const Name = "spatialite"

const (
	driverName     = "sqlite3_spatialite"
	geometryColumn = "Geometry"
	geometryType   = "MULTIPOLYGON"
)

var registerOnce sync.Once

func register() {
	registerOnce.Do(func() {
		sql.Register(driverName, &sqlite3.SQLiteDriver{
			Extensions: []string{"mod_spatialite"},
		})
	})
}

// Engine is a geometry.Engine backed by SpatiaLite.
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

// New opens an in-memory spatial database.
func New(ctx context.Context) (*Engine, error) {
	register()
	// ExportSHP and ExportGeoJSON2 write files only in relaxed mode.
	if err := os.Setenv("SPATIALITE_SECURITY", "relaxed"); err != nil {
		return nil, errors.WrapEngine("open", "", "", err)
	}

	db, err := sql.Open(driverName, "file::memory:")
	if err != nil {
		return nil, errors.WrapEngine("open", "", "", err)
	}
	// Every statement must see the same in-memory database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, "SELECT InitSpatialMetadata(1)"); err != nil {
		_ = db.Close()
		return nil, errors.WrapEngine("init spatial metadata", "", "", err)
	}
	return &Engine{db: db, srid: constants.DefaultSRID}, nil
}

// Name implements geometry.Engine.
func (e *Engine) Name() string { return Name }

// Load exposes the shapefile as a virtual table named name.
func (e *Engine) Load(ctx context.Context, name, path string) (geometry.Table, error) {
	base := strings.TrimSuffix(path, ".shp")
	stmts := []string{
		"DROP TABLE IF EXISTS " + sqlrows.Ident(name),
		fmt.Sprintf("CREATE VIRTUAL TABLE %s USING VirtualShape(%s, %s, %d)",
			sqlrows.Ident(name), sqlrows.Literal(base), constants.DefaultShapeEncoding, e.srid),
	}
	for _, stmt := range stmts {
		if _, err := e.db.ExecContext(ctx, stmt); err != nil {
			return geometry.Table{}, err
		}
	}
	logging.FromContext(ctx).Debug().Str("table", name).Str("path", path).Msg("Loaded shapefile")
	return geometry.Table{Name: name}, nil
}

// CountInvalid implements geometry.Engine. GEOS reports the warning and
// the critical point of the last failed validity check.
func (e *Engine) CountInvalid(ctx context.Context, t geometry.Table) (int, []geometry.Diagnostic, error) {
	rows, err := e.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT PKUID, GEOS_GetLastWarningMsg(), ST_AsText(GEOS_GetCriticalPointFromMsg()) FROM %s WHERE ST_IsValid(%s) <> 1",
		sqlrows.Ident(t.Name), geometryColumn))
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = rows.Close() }()

	count := 0
	var diagnostics []geometry.Diagnostic
	for rows.Next() {
		var (
			id         int64
			msg, point sql.NullString
		)
		if err := rows.Scan(&id, &msg, &point); err != nil {
			return 0, nil, err
		}
		count++
		if len(diagnostics) < constants.MaxDiagnostics {
			diagnostics = append(diagnostics, geometry.Diagnostic{RowID: id, Message: msg.String, Point: point.String})
		}
	}
	return count, diagnostics, rows.Err()
}

// Repair copies t into <name>_clean, registers its geometry column and
// replaces every invalid geometry with MakeValid.
func (e *Engine) Repair(ctx context.Context, t geometry.Table) (geometry.Table, error) {
	clean := t.Name + constants.CleanSuffix
	stmts := []string{
		"DROP TABLE IF EXISTS " + sqlrows.Ident(clean),
		fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM %s", sqlrows.Ident(clean), sqlrows.Ident(t.Name)),
	}
	for _, stmt := range stmts {
		if _, err := e.db.ExecContext(ctx, stmt); err != nil {
			return geometry.Table{}, err
		}
	}

	var recovered sql.NullInt64
	err := e.db.QueryRowContext(ctx, "SELECT RecoverGeometryColumn(?, ?, ?, ?, 'XY')",
		clean, geometryColumn, e.srid, geometryType).Scan(&recovered)
	if err != nil {
		return geometry.Table{}, err
	}
	if recovered.Int64 != 1 {
		return geometry.Table{}, errors.New("cannot register geometry column of " + clean)
	}

	_, err = e.db.ExecContext(ctx, fmt.Sprintf(
		"UPDATE %s SET %s = MakeValid(%s) WHERE ST_IsValid(%s) <> 1",
		sqlrows.Ident(clean), geometryColumn, geometryColumn, geometryColumn))
	if err != nil {
		return geometry.Table{}, err
	}
	return geometry.Table{Name: clean}, nil
}

// Export implements geometry.Engine. GeoPackage output is not available
// through SpatiaLite SQL functions.
func (e *Engine) Export(ctx context.Context, t geometry.Table, format types.Format, path string) error {
	switch format {
	case types.FormatCSV:
		attrs, err := sqlrows.Table(ctx, e.db, t.Name, "SELECT * FROM "+sqlrows.Ident(t.Name)+" ORDER BY PKUID")
		if err != nil {
			return err
		}
		attrs = attrs.DropWhere(func(c table.Column) bool {
			return strings.EqualFold(c.Name, constants.RowIDColumn) || strings.EqualFold(c.Name, geometryColumn)
		})
		return atomicfile.Write(path, func(w io.Writer) error {
			return table.WriteCSV(w, attrs)
		})
	case types.FormatShapefile:
		return atomicfile.WriteSet(path, func(temp string) error {
			return e.exportFunc(ctx, "ExportSHP(?, ?, ?, ?)",
				t.Name, geometryColumn, strings.TrimSuffix(temp, ".shp"), constants.DefaultShapeEncoding)
		})
	case types.FormatGeoJSON:
		return atomicfile.WriteSet(path, func(temp string) error {
			return e.exportFunc(ctx, "ExportGeoJSON2(?, ?, ?)", t.Name, geometryColumn, temp)
		})
	default:
		return fmt.Errorf("%w: %s export with %s", errors.ErrUnsupported, format, Name)
	}
}

// exportFunc calls a SpatiaLite export function, which returns the number
// of exported rows or NULL on failure.
func (e *Engine) exportFunc(ctx context.Context, call string, args ...any) error {
	var n sql.NullInt64
	if err := e.db.QueryRowContext(ctx, "SELECT "+call, args...).Scan(&n); err != nil {
		return err
	}
	if !n.Valid {
		return errors.New(strings.SplitN(call, "(", 2)[0] + " failed")
	}
	return nil
}

// Close implements geometry.Engine.
func (e *Engine) Close() error {
	return e.db.Close()
}
