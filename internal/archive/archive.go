// Package archive acquires the shapefile archive of a release and
// extracts it into the persisted layout with normalized division names.
package archive

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ondata/confini/internal/layout"
	"github.com/ondata/confini/internal/transport"
	"github.com/ondata/confini/pkg/catalog"
	"github.com/ondata/confini/pkg/constants"
	"github.com/ondata/confini/pkg/errors"
	"github.com/ondata/confini/pkg/logging"
	"github.com/ondata/confini/pkg/types"
)

// Source downloads and extracts release archives.
type Source struct {
	layout  layout.Layout
	options []transport.Option
}

// New creates a Source writing under l. The transport options apply to
// every download.
func New(l layout.Layout, opts ...transport.Option) *Source {
	return &Source{layout: l, options: opts}
}

// Acquire makes the extracted archive of release available. It reports
// false when the archive was already extracted by an earlier run. Any
// failure is an AcquisitionError for the release.
func (s *Source) Acquire(ctx context.Context, release catalog.Release) (bool, error) {
	logger := logging.FromContext(ctx)
	if s.layout.Extracted(release.Name) {
		logger.Debug().Msg("Archive already extracted")
		return false, nil
	}

	opts := s.options
	if release.Insecure {
		opts = append(opts[:len(opts):len(opts)], transport.WithInsecureTLS())
	}
	client := transport.New(opts...)

	dir := s.layout.Release(release.Name)
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return false, errors.NewAcquisitionError(release.Name, release.URL, false, err)
	}

	logger.Info().Str("url", release.URL).Msg("Downloading archive")
	err := client.Fetch(ctx, release.Name, release.URL, false, func(body io.Reader) error {
		return s.extract(dir, release, body)
	})
	if err != nil {
		return false, err
	}
	logger.Info().Str("path", s.layout.FormatDir(release.Name, types.FormatZip)).Msg("Archive extracted")
	return true, nil
}

// extract spools body to a temporary file, extracts it into a temporary
// directory and renames that into place.
func (s *Source) extract(dir string, release catalog.Release, body io.Reader) error {
	spool, err := os.CreateTemp(dir, ".archive.*.zip")
	if err != nil {
		return errors.WrapIO("create", "archive spool", err)
	}
	defer func() {
		_ = spool.Close()
		_ = os.Remove(spool.Name())
	}()

	size, err := io.Copy(spool, body)
	if err != nil {
		return errors.WrapIO("download", release.URL, err)
	}

	zr, err := zip.NewReader(spool, size)
	if err != nil {
		return errors.NewParseError("zip", release.URL, "not a valid zip archive", err)
	}

	staging, err := os.MkdirTemp(dir, ".zip.*.tmp")
	if err != nil {
		return errors.WrapIO("create", "staging dir", err)
	}
	defer func() { _ = os.RemoveAll(staging) }()

	for _, f := range zr.File {
		name := Rename(f.Name, release)
		if name == "" || f.FileInfo().IsDir() {
			continue
		}
		target := filepath.Join(staging, filepath.FromSlash(name))
		if !strings.HasPrefix(target, filepath.Clean(staging)+string(os.PathSeparator)) {
			continue
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}

	final := s.layout.FormatDir(release.Name, types.FormatZip)
	if err := os.Rename(staging, final); err != nil {
		return errors.WrapIO("rename", final, err)
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), constants.DirPermissions); err != nil {
		return errors.WrapIO("create", filepath.Dir(target), err)
	}
	r, err := f.Open()
	if err != nil {
		return errors.NewParseError("zip", f.Name, "cannot open entry", err)
	}
	defer func() { _ = r.Close() }()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, constants.FilePermissions)
	if err != nil {
		return errors.WrapIO("create", target, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return errors.WrapIO("extract", f.Name, err)
	}
	return out.Close()
}

// Rename maps an archive entry to its place in the layout: the root
// directory prefix is removed and the directory and file names of each
// division are replaced by the division name. Entries outside the root
// directory map to the empty string.
func Rename(entry string, release catalog.Release) string {
	name := entry
	if release.RootDir != "" {
		root := strings.TrimSuffix(release.RootDir, "/") + "/"
		if !strings.HasPrefix(name, root) {
			return ""
		}
		name = strings.TrimPrefix(name, root)
	}
	for _, d := range release.Divisions() {
		if d.DirName != "" {
			name = strings.Replace(name, d.DirName+"/", d.Name+"/", 1)
		}
		if d.FileName != "" {
			name = strings.Replace(name, d.FileName+".", d.Name+".", 1)
		}
	}
	return name
}
