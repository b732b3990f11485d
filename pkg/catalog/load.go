package catalog

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/ondata/confini/pkg/constants"
	"github.com/ondata/confini/pkg/errors"
)

// document mirrors the sources file. JSON documents are accepted as YAML.
type document struct {
	Istat   []releaseDoc `yaml:"istat"`
	Ontopia ontopiaDoc   `yaml:"ontopia"`
	Anpr    *baseDoc     `yaml:"anpr"`
}

type releaseDoc struct {
	Name      string        `yaml:"name"`
	URL       string        `yaml:"url"`
	RootDir   string        `yaml:"rootdir"`
	Insecure  bool          `yaml:"insecure"`
	Divisions []divisionDoc `yaml:"divisions"`
}

type divisionDoc struct {
	Name     string   `yaml:"name"`
	DirName  string   `yaml:"dirname"`
	FileName string   `yaml:"filename"`
	Key      string   `yaml:"key"`
	Fields   []string `yaml:"fields"`
	Parents  []string `yaml:"parents"`
}

type ontopiaDoc struct {
	URL       string       `yaml:"url"`
	Divisions []mappingDoc `yaml:"divisions"`
}

type mappingDoc struct {
	Name   string `yaml:"name"`
	Key    string `yaml:"key"`
	URL    string `yaml:"url"`
	Digits *int   `yaml:"digits"`
}

type baseDoc struct {
	Name      string `yaml:"name"`
	URL       string `yaml:"url"`
	Encoding  string `yaml:"encoding"`
	Cache     string `yaml:"cache"`
	Authority string `yaml:"authority"`
	Insecure  bool   `yaml:"insecure"`
	Division  struct {
		Name string `yaml:"name"`
		Key  string `yaml:"key"`
	} `yaml:"division"`
}

// Load reads and validates a sources file.
func Load(file string) (*Catalog, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("sources file", file)
		}
		return nil, errors.WrapIO("read", file, err)
	}
	c, err := Parse(data)
	if err != nil {
		if errors.IsValidationError(err) {
			return nil, err
		}
		return nil, errors.WrapParse("yaml", file, err)
	}
	return c, nil
}

// Parse decodes and validates a sources document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	releases := make([]Release, 0, len(doc.Istat))
	for _, rd := range doc.Istat {
		divisions := make([]Division, 0, len(rd.Divisions))
		for _, dd := range rd.Divisions {
			divisions = append(divisions, Division{
				Name:     dd.Name,
				DirName:  dd.DirName,
				FileName: dd.FileName,
				Key:      dd.Key,
				Fields:   dd.Fields,
				Parents:  dd.Parents,
			})
		}
		r, err := NewRelease(rd.Name, rd.URL, rd.RootDir, divisions...)
		if err != nil {
			return nil, err
		}
		r.Insecure = rd.Insecure
		releases = append(releases, r)
	}

	mappings := make([]OntopiaMapping, 0, len(doc.Ontopia.Divisions))
	for _, md := range doc.Ontopia.Divisions {
		m := OntopiaMapping{Name: md.Name, Key: md.Key, URL: md.URL, Digits: 1}
		if md.Digits != nil {
			m.Digits = *md.Digits
		}
		mappings = append(mappings, m)
	}
	ontopia, err := NewOntopia(doc.Ontopia.URL, mappings...)
	if err != nil {
		return nil, err
	}

	var base *BaseRegistry
	if doc.Anpr != nil {
		base = &BaseRegistry{
			Name:      doc.Anpr.Name,
			URL:       doc.Anpr.URL,
			Encoding:  doc.Anpr.Encoding,
			Division:  doc.Anpr.Division.Name,
			Key:       doc.Anpr.Division.Key,
			Cache:     doc.Anpr.Cache,
			Authority: doc.Anpr.Authority,
			Insecure:  doc.Anpr.Insecure,
		}
	}

	return New(releases, ontopia, base)
}

// New validates the parts of a catalog and assembles it.
func New(releases []Release, ontopia Ontopia, base *BaseRegistry) (*Catalog, error) {
	seen := make(map[string]bool, len(releases))
	for _, r := range releases {
		if seen[r.Name] {
			return nil, errors.NewValidationError("istat.name", r.Name, "duplicate release "+r.Name)
		}
		seen[r.Name] = true
	}

	c := &Catalog{
		releases: make([]Release, len(releases)),
		ontopia:  Ontopia{URL: ontopia.URL, mappings: ontopia.Mappings()},
	}
	for i, r := range releases {
		c.releases[i] = r.clone()
	}

	if base != nil {
		b, err := normalizeBase(*base)
		if err != nil {
			return nil, err
		}
		c.base = &b
	}
	return c, nil
}

// NewRelease validates a release and resolves its division order.
func NewRelease(name, sourceURL, rootDir string, divisions ...Division) (Release, error) {
	if name == "" {
		return Release{}, errors.NewValidationError("istat.name", name, "release name is required")
	}
	seen := make(map[string]bool, len(divisions))
	for _, d := range divisions {
		switch {
		case d.Name == "":
			return Release{}, errors.NewValidationError("divisions.name", d.Name,
				fmt.Sprintf("release %s has a division without name", name))
		case seen[d.Name]:
			return Release{}, errors.NewValidationError("divisions.name", d.Name,
				fmt.Sprintf("release %s declares division %s twice", name, d.Name))
		case d.Key == "":
			return Release{}, errors.NewValidationError("divisions.key", d.Name,
				fmt.Sprintf("division %s of release %s has no key", d.Name, name))
		}
		seen[d.Name] = true
	}

	r := Release{Name: name, URL: sourceURL, RootDir: rootDir}
	r.divisions = make([]Division, len(divisions))
	for i, d := range divisions {
		r.divisions[i] = d.clone()
	}
	levels, err := resolveLevels(name, r.divisions)
	if err != nil {
		return Release{}, err
	}
	r.levels = levels
	return r, nil
}

// NewOntopia validates authority mappings.
func NewOntopia(host string, mappings ...OntopiaMapping) (Ontopia, error) {
	seen := make(map[string]bool, len(mappings))
	for _, m := range mappings {
		if m.Name == "" {
			return Ontopia{}, errors.NewValidationError("ontopia.divisions.name", m.Name, "mapping without division name")
		}
		if seen[m.Name] {
			return Ontopia{}, errors.NewValidationError("ontopia.divisions.name", m.Name, "duplicate mapping for "+m.Name)
		}
		if m.Digits < 1 {
			return Ontopia{}, errors.NewValidationError("ontopia.divisions.digits", m.Digits,
				fmt.Sprintf("digits of %s must be at least 1", m.Name))
		}
		seen[m.Name] = true
	}
	return Ontopia{URL: host, mappings: append([]OntopiaMapping(nil), mappings...)}, nil
}

func normalizeBase(b BaseRegistry) (BaseRegistry, error) {
	if b.Name == "" {
		return b, errors.NewValidationError("anpr.name", b.Name, "base registry name is required")
	}
	if b.Key == "" {
		return b, errors.NewValidationError("anpr.division.key", b.Key, "base registry key is required")
	}
	if b.Division == "" {
		return b, errors.NewValidationError("anpr.division.name", b.Division, "base registry division is required")
	}
	if b.Encoding == "" {
		b.Encoding = constants.DefaultRegistryEncoding
	}
	if b.Cache == "" {
		b.Cache = defaultCache(b.URL, b.Name)
	}
	if b.Authority == "" {
		b.Authority = constants.DefaultAuthorityTemplate
	}
	return b, nil
}

// defaultCache names the cache after the last path segment of the URL.
func defaultCache(rawURL, name string) string {
	base := name
	if u, err := url.Parse(rawURL); err == nil && path.Base(u.Path) != "." && path.Base(u.Path) != "/" {
		base = path.Base(u.Path)
	}
	return strings.TrimSuffix(base, path.Ext(base)) + ".csv"
}
