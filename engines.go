package confini

// Geometry engines register themselves with the engine registry.
import (
	_ "github.com/ondata/confini/internal/geoengine/duckdb"
	_ "github.com/ondata/confini/internal/geoengine/spatialite"
)
