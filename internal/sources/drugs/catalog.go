// Package drugs serves the curated table of approved DMD therapies.
package drugs

import (
	"context"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/hanzhi-dmd/companion/internal/content"
)

//go:embed drugs.yaml
var tableYAML []byte

type table struct {
	Drugs []content.Drug `yaml:"drugs"`
}

type Catalog struct {
	drugs []content.Drug
}

// Load decodes the embedded table.
func Load() (*Catalog, error) {
	return Parse(tableYAML)
}

func Parse(raw []byte) (*Catalog, error) {
	var t table
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("drugs: decode table: %w", err)
	}
	for i, d := range t.Drugs {
		if d.BrandName == "" || d.GenericName == "" {
			return nil, fmt.Errorf("drugs: entry %d missing brand or generic name", i)
		}
	}
	return &Catalog{drugs: t.Drugs}, nil
}

// MustLoad panics if the embedded table is malformed.
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// Drugs returns a copy of the table. The table is static, so ctx is only
// honoured for cancellation.
func (c *Catalog) Drugs(ctx context.Context) []content.Drug {
	if ctx.Err() != nil {
		return []content.Drug{}
	}
	out := make([]content.Drug, len(c.drugs))
	copy(out, c.drugs)
	return out
}
