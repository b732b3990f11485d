// Package baseregistry acquires the national roll of municipalities the
// multi-release merge starts from.
//
// A fresh copy is fetched on every run. When the fetch or the parse fails
// the last good copy kept in the cache is used instead; without a cache
// the failure is fatal.
package baseregistry

import (
	"bytes"
	"context"
	"io"
	"os"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/ondata/confini/internal/transport"
	"github.com/ondata/confini/internal/utils/atomicfile"
	"github.com/ondata/confini/pkg/catalog"
	"github.com/ondata/confini/pkg/constants"
	"github.com/ondata/confini/pkg/errors"
	"github.com/ondata/confini/pkg/logging"
	"github.com/ondata/confini/pkg/table"
	"github.com/ondata/confini/pkg/types"
)

// Source is where a base table came from.
type Source string

const (
	// SourceRemote means the table was fetched in this run.
	SourceRemote Source = "remote"
	// SourceCache means the fetch failed and the cached copy was used.
	SourceCache Source = "cache"
)

// Fetcher acquires the base registry.
type Fetcher struct {
	client *transport.Client
	cache  string
}

// New creates a Fetcher keeping its last good copy at cache.
func New(cache string, opts ...transport.Option) *Fetcher {
	return &Fetcher{
		client: transport.New(append([]transport.Option{
			transport.WithTimeout(constants.RegistryFetchTimeout),
		}, opts...)...),
		cache: cache,
	}
}

// Fetch returns the base table of b with every column tagged as a base
// column. The raw document is cached as served, so the cache is decoded
// with the same charset.
func (f *Fetcher) Fetch(ctx context.Context, b catalog.BaseRegistry) (*table.Table, Source, error) {
	logger := logging.FromContext(ctx)
	enc, err := htmlindex.Get(b.Encoding)
	if err != nil {
		return nil, "", errors.NewConfigError("anpr.encoding", "unknown encoding "+b.Encoding, err)
	}

	var raw []byte
	var fresh *table.Table
	err = f.client.Fetch(ctx, b.Name, b.URL, true, func(body io.Reader) error {
		data, err := io.ReadAll(body)
		if err != nil {
			return err
		}
		t, err := decode(bytes.NewReader(data), enc, b)
		if err != nil {
			return err
		}
		raw, fresh = data, t
		return nil
	})
	if err == nil {
		if werr := atomicfile.WriteBytes(f.cache, raw); werr != nil {
			logger.Warn().Err(werr).Str("cache", f.cache).Msg("Could not refresh base registry cache")
		}
		logger.Info().Int("rows", fresh.Len()).Str("url", b.URL).Msg("Base registry fetched")
		return fresh, SourceRemote, nil
	}

	logger.Warn().Err(err).Str("cache", f.cache).Msg("Base registry not available, using the cache")
	cached, cerr := f.readCache(enc, b)
	if cerr != nil {
		if errors.IsNotFound(cerr) {
			return nil, "", err
		}
		return nil, "", errors.NewAcquisitionError(b.Name, f.cache, true, cerr)
	}
	return cached, SourceCache, nil
}

func (f *Fetcher) readCache(enc encoding.Encoding, b catalog.BaseRegistry) (*table.Table, error) {
	file, err := os.Open(f.cache)
	if os.IsNotExist(err) {
		return nil, errors.NewNotFoundError("base registry cache", f.cache)
	}
	if err != nil {
		return nil, errors.WrapIO("open", f.cache, err)
	}
	defer func() { _ = file.Close() }()
	return decode(file, enc, b)
}

func decode(r io.Reader, enc encoding.Encoding, b catalog.BaseRegistry) (*table.Table, error) {
	t, err := table.ReadCSV(enc.NewDecoder().Reader(r), b.Name, table.Origin{Kind: types.ColumnBase})
	if err != nil {
		return nil, err
	}
	if _, err := t.Require(b.Key); err != nil {
		return nil, err
	}
	return t, nil
}
