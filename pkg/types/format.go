//nolint:revive // Package types provides common type definitions
package types

import "slices"

// Format identifies an artifact format written for a division.
type Format string

// String returns the string representation of a format.
func (f Format) String() string {
	return string(f)
}

// Artifact formats. The value doubles as the directory name of the
// persisted layout.
const (
	// FormatZip is the extracted release archive.
	FormatZip Format = "zip"

	// FormatShapefile is the corrected ESRI shapefile and its tabular extract.
	FormatShapefile Format = "shp"

	// FormatCSV is the enriched attribute table.
	FormatCSV Format = "csv"

	// FormatJSON is the enriched table as a list of records.
	FormatJSON Format = "json"

	// FormatGeoJSON is the corrected geometry as GeoJSON.
	FormatGeoJSON Format = "geojson"

	// FormatGeoPackage is the corrected geometry as an OGC GeoPackage.
	FormatGeoPackage Format = "geopkg"
)

// Formats returns all artifact formats in layout order.
func Formats() []Format {
	return []Format{
		FormatZip,
		FormatShapefile,
		FormatCSV,
		FormatJSON,
		FormatGeoJSON,
		FormatGeoPackage,
	}
}

// IsValid returns true if the Format is one of the defined constants.
func (f Format) IsValid() bool {
	return slices.Contains(Formats(), f)
}

// Extension returns the file extension used for the format.
func (f Format) Extension() string {
	switch f {
	case FormatGeoPackage:
		return "gpkg"
	case FormatZip:
		return "zip"
	default:
		return string(f)
	}
}

// Spatial reports whether the format carries geometry.
func (f Format) Spatial() bool {
	switch f {
	case FormatShapefile, FormatGeoJSON, FormatGeoPackage:
		return true
	default:
		return false
	}
}

// ParseFormat resolves a user supplied format name. It accepts the
// layout directory name and the file extension.
func ParseFormat(s string) (Format, bool) {
	for _, f := range Formats() {
		if s == string(f) || s == f.Extension() {
			return f, true
		}
	}
	return "", false
}
