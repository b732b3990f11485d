// Package catalog provides the immutable Division Catalog: the releases to
// build, the administrative divisions of each release with their join keys,
// propagated fields and parents, the OntoPiA authority mappings and the
// national base registry.
//
// A Catalog is validated once when it is loaded and never mutated
// afterwards. Every accessor returns copies, so a Catalog can be shared
// freely between concurrent stages.
package catalog

import (
	"slices"

	"github.com/ondata/confini/pkg/errors"
)

// Catalog is the validated configuration of a build.
type Catalog struct {
	releases []Release
	ontopia  Ontopia
	base     *BaseRegistry
}

// Release is one dated publication of boundary data.
type Release struct {
	Name     string
	URL      string
	RootDir  string
	Insecure bool

	divisions []Division
	levels    [][]int
}

// Division is one administrative level within a release.
type Division struct {
	// Name is the normalized division name used in the persisted layout.
	Name string
	// DirName is the directory of the division inside the release archive.
	DirName string
	// FileName is the shapefile base name inside DirName.
	FileName string
	// Key is the join key column other divisions reference.
	Key string
	// Fields are propagated to child divisions.
	Fields []string
	// Parents are joined in listed order.
	Parents []string
}

func (d Division) clone() Division {
	d.Fields = slices.Clone(d.Fields)
	d.Parents = slices.Clone(d.Parents)
	return d
}

// Ontopia holds the authority host and per-division mappings.
type Ontopia struct {
	URL      string
	mappings []OntopiaMapping
}

// OntopiaMapping links a division to the controlled vocabulary.
type OntopiaMapping struct {
	Name   string
	Key    string
	URL    string
	Digits int
}

// HasKey reports whether the mapping declares a key, which is required
// to compute authority URIs.
func (m OntopiaMapping) HasKey() bool {
	return m.Key != ""
}

// BaseRegistry describes the national roll of municipalities the
// multi-release merge starts from.
type BaseRegistry struct {
	Name     string
	URL      string
	Encoding string
	// Division names the release division merged into the registry.
	Division string
	// Key is the stable identifier column of the base table.
	Key string
	// Cache is the local copy used when a fresh fetch fails.
	Cache string
	// Authority is the URI template computed from stable base fields.
	Authority string
	// Insecure disables TLS certificate verification for the fetch.
	Insecure bool
}

// Releases returns all releases in configuration order.
func (c *Catalog) Releases() []Release {
	out := make([]Release, len(c.releases))
	for i, r := range c.releases {
		out[i] = r.clone()
	}
	return out
}

// Release returns the named release.
func (c *Catalog) Release(name string) (Release, error) {
	for _, r := range c.releases {
		if r.Name == name {
			return r.clone(), nil
		}
	}
	return Release{}, errors.NewNotFoundError("release", name)
}

// Select returns the named releases in configuration order. With no
// names every release is returned.
func (c *Catalog) Select(names ...string) ([]Release, error) {
	if len(names) == 0 {
		return c.Releases(), nil
	}
	for _, n := range names {
		if _, err := c.Release(n); err != nil {
			return nil, err
		}
	}
	var out []Release
	for _, r := range c.releases {
		if slices.Contains(names, r.Name) {
			out = append(out, r.clone())
		}
	}
	return out, nil
}

// Ontopia returns the authority configuration.
func (c *Catalog) Ontopia() Ontopia {
	return Ontopia{URL: c.ontopia.URL, mappings: slices.Clone(c.ontopia.mappings)}
}

// BaseRegistry returns the national base registry, if configured.
func (c *Catalog) BaseRegistry() (BaseRegistry, bool) {
	if c.base == nil {
		return BaseRegistry{}, false
	}
	return *c.base, true
}

// Mapping returns the authority mapping of a division.
func (o Ontopia) Mapping(division string) (OntopiaMapping, bool) {
	for _, m := range o.mappings {
		if m.Name == division {
			return m, true
		}
	}
	return OntopiaMapping{}, false
}

// Mappings returns all authority mappings.
func (o Ontopia) Mappings() []OntopiaMapping {
	return slices.Clone(o.mappings)
}

// Divisions returns the divisions in configuration order.
func (r Release) Divisions() []Division {
	out := make([]Division, len(r.divisions))
	for i, d := range r.divisions {
		out[i] = d.clone()
	}
	return out
}

// Division returns the named division.
func (r Release) Division(name string) (Division, bool) {
	for _, d := range r.divisions {
		if d.Name == name {
			return d.clone(), true
		}
	}
	return Division{}, false
}

// Levels returns the divisions grouped by dependency level. Every parent
// of a division sits in an earlier level, divisions in one level are
// independent of each other. Within a level configuration order is kept.
func (r Release) Levels() [][]Division {
	out := make([][]Division, len(r.levels))
	for i, level := range r.levels {
		out[i] = make([]Division, len(level))
		for j, idx := range level {
			out[i][j] = r.divisions[idx].clone()
		}
	}
	return out
}

// Order returns the divisions in a topological order of the parent graph.
func (r Release) Order() []Division {
	var out []Division
	for _, level := range r.Levels() {
		out = append(out, level...)
	}
	return out
}

func (r Release) clone() Release {
	r.divisions = slices.Clone(r.divisions)
	for i := range r.divisions {
		r.divisions[i] = r.divisions[i].clone()
	}
	r.levels = slices.Clone(r.levels)
	return r
}
