package catalog

import (
	_ "embed"
	"fmt"
)

//go:embed sources.json
var defaultSources []byte

// Default returns the compiled-in catalog of ISTAT releases, OntoPiA
// mappings and the ANPR municipality roll.
func Default() (*Catalog, error) {
	c, err := Parse(defaultSources)
	if err != nil {
		return nil, fmt.Errorf("loading embedded catalog: %w", err)
	}
	return c, nil
}

// DefaultSources returns a copy of the compiled-in sources document.
func DefaultSources() []byte {
	return append([]byte(nil), defaultSources...)
}
