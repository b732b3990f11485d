// Package atomicfile writes files so readers never observe partial content.
package atomicfile

import (
	"io"
	"os"
	"path/filepath"

	"github.com/ondata/confini/pkg/constants"
	"github.com/ondata/confini/pkg/errors"
)

// Write creates path by writing to a temporary file in the same directory
// and renaming it into place once fn succeeds. Missing parent directories
// are created.
func Write(path string, fn func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return errors.WrapIO("create", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.WrapIO("create", "temp file", err)
	}
	tempPath := tempFile.Name()

	if err := fn(tempFile); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tempPath)
		return err
	}
	if err := tempFile.Close(); err != nil {
		_ = os.Remove(tempPath)
		return errors.WrapIO("close", tempPath, err)
	}
	if err := os.Chmod(tempPath, constants.FilePermissions); err != nil {
		_ = os.Remove(tempPath)
		return errors.WrapIO("chmod", tempPath, err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return errors.WrapIO("rename", path, err)
	}
	return nil
}

// WriteBytes atomically writes data to path.
func WriteBytes(path string, data []byte) error {
	return Write(path, func(w io.Writer) error {
		if _, err := w.Write(data); err != nil {
			return errors.WrapIO("write", path, err)
		}
		return nil
	})
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// WriteSet creates path together with the sidecar files a writer places
// next to it, such as the .dbf and .shx of a shapefile. fn writes into a
// temporary directory under the same parent; every file it produced is then
// renamed into place, path itself last, so path exists only once the whole
// set is complete.
func WriteSet(path string, fn func(tempPath string) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return errors.WrapIO("create", dir, err)
	}

	tempDir, err := os.MkdirTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.WrapIO("create", "temp dir", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	base := filepath.Base(path)
	if err := fn(filepath.Join(tempDir, base)); err != nil {
		return err
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		return errors.WrapIO("read", tempDir, err)
	}
	primary := false
	for _, e := range entries {
		if e.Name() == base {
			primary = true
			continue
		}
		if err := os.Rename(filepath.Join(tempDir, e.Name()), filepath.Join(dir, e.Name())); err != nil {
			return errors.WrapIO("rename", e.Name(), err)
		}
	}
	if !primary {
		return errors.NewIOError("write", path, errors.New("writer produced no output"))
	}
	if err := os.Rename(filepath.Join(tempDir, base), path); err != nil {
		return errors.WrapIO("rename", path, err)
	}
	return nil
}
