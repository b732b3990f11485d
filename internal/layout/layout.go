// Package layout maps build artifacts to their place on disk.
//
// Every artifact of a release lives under
// <root>/<release>/<format>/<division>/<division>.<ext>, the national
// registry sits at <root>/<name>.csv. A stage whose artifact already
// exists is skipped, which makes an interrupted build resumable.
package layout

import (
	"os"
	"path/filepath"

	"github.com/ondata/confini/internal/utils/atomicfile"
	"github.com/ondata/confini/pkg/constants"
	"github.com/ondata/confini/pkg/types"
)

// Layout resolves artifact paths under a root directory.
type Layout struct {
	root string
}

// New creates a Layout rooted at root.
func New(root string) Layout {
	if root == "" {
		root = constants.DefaultOutputDir
	}
	return Layout{root: root}
}

// Root returns the root directory.
func (l Layout) Root() string {
	return l.root
}

// Release returns the directory of a release.
func (l Layout) Release(release string) string {
	return filepath.Join(l.root, release)
}

// FormatDir returns the directory holding every division of a release in
// the given format.
func (l Layout) FormatDir(release string, format types.Format) string {
	return filepath.Join(l.root, release, format.String())
}

// Division returns the directory of a division in the given format.
func (l Layout) Division(release string, format types.Format, division string) string {
	return filepath.Join(l.FormatDir(release, format), division)
}

// Artifact returns the path of the division artifact in the given format.
// The extracted archive has no single artifact; its shapefile is returned.
func (l Layout) Artifact(release string, format types.Format, division string) string {
	ext := format.Extension()
	if format == types.FormatZip {
		ext = types.FormatShapefile.Extension()
	}
	return filepath.Join(l.Division(release, format, division), division+"."+ext)
}

// Extract returns the attribute extract written next to the corrected shapefile.
func (l Layout) Extract(release, division string) string {
	return filepath.Join(l.Division(release, types.FormatShapefile, division), division+".csv")
}

// Enriched returns the enriched attribute table of a division.
func (l Layout) Enriched(release, division string) string {
	return l.Artifact(release, types.FormatCSV, division)
}

// Report returns the run report of a release.
func (l Layout) Report(release string) string {
	return filepath.Join(l.root, release, constants.ReportFile)
}

// Registry returns the national registry table.
func (l Layout) Registry(name string) string {
	return filepath.Join(l.root, name+".csv")
}

// Provenance returns the column provenance report of the registry.
func (l Layout) Provenance(name string) string {
	return filepath.Join(l.root, name+constants.ProvenanceSuffix)
}

// Cache resolves the base registry cache file. Relative names live under
// the root directory.
func (l Layout) Cache(cache string) string {
	if filepath.IsAbs(cache) {
		return cache
	}
	return filepath.Join(l.root, cache)
}

// Exists reports whether an artifact is present.
func (l Layout) Exists(path string) bool {
	return atomicfile.Exists(path)
}

// Extracted reports whether the archive of a release was extracted.
func (l Layout) Extracted(release string) bool {
	info, err := os.Stat(l.FormatDir(release, types.FormatZip))
	return err == nil && info.IsDir()
}

// Releases lists the release directories present under the root.
func (l Layout) Releases() ([]string, error) {
	entries, err := os.ReadDir(l.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
