// Package authority builds links from territorial units to the OntoPiA
// controlled vocabulary.
//
// Two forms exist. A Mapping formats a per-division numeric key as
// {host}/{path}/{zero padded key}. A Template interpolates named fields
// of a row, which the national registry uses to link municipalities by
// their stable identifiers.
package authority

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ondata/confini/pkg/catalog"
	"github.com/ondata/confini/pkg/errors"
)

// Mapping computes authority URIs for one division.
type Mapping struct {
	Host     string
	Path     string
	Key      string
	Digits   int
	Division string
}

// FromCatalog builds the mapping of a division. ok is false when the
// division has no mapping or the mapping declares no key.
func FromCatalog(o catalog.Ontopia, division string) (m Mapping, ok bool) {
	cm, found := o.Mapping(division)
	if !found || !cm.HasKey() {
		return Mapping{}, false
	}
	return Mapping{
		Host:     o.URL,
		Path:     cm.URL,
		Key:      cm.Key,
		Digits:   cm.Digits,
		Division: division,
	}, true
}

// URI returns the authority URI for key. The key must be a non-negative
// base-10 integer, anything else is a SchemaError.
func (m Mapping) URI(key string) (string, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(key), 10, 64)
	if err != nil {
		return "", &errors.SchemaError{
			Table:   m.Division,
			Column:  m.Key,
			Message: fmt.Sprintf("authority key %q is not a non-negative integer", key),
			Err:     err,
		}
	}
	digits := m.Digits
	if digits < 1 {
		digits = 1
	}
	return fmt.Sprintf("%s/%s/%0*d", m.Host, m.Path, digits, n), nil
}

// ParseKey recovers the numeric key from a URI built by URI.
func (m Mapping) ParseKey(uri string) (uint64, error) {
	prefix := m.Host + "/" + m.Path + "/"
	if !strings.HasPrefix(uri, prefix) {
		return 0, errors.NewValidationError("uri", uri, "does not start with "+prefix)
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(uri, prefix), 10, 64)
	if err != nil {
		return 0, errors.WrapValidation("uri", err)
	}
	return n, nil
}
