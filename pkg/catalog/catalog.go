// Package catalog holds the reference data every MossPay deployment ships with:
// the per-product carbon savings table and the government reward schemes.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// CarbonFactor is the CO2 saved by one unit of a named product.
type CarbonFactor struct {
	Name string  `yaml:"name"`
	KG   float64 `yaml:"kg"`
}

// Reward is a platform-wide reward scheme consumers can redeem MossCoins for.
type Reward struct {
	ID          string `yaml:"id"`
	Type        string `yaml:"type"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Cost        int    `yaml:"cost"`
}

// Catalog models catalog.yaml.
type Catalog struct {
	Carbon  []CarbonFactor `yaml:"carbon"`
	Rewards []Reward       `yaml:"rewards"`

	carbonIndex map[string]float64
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalogYAML)
}

// Load reads a catalog file, falling back to the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes catalog YAML and indexes carbon factors by lower-case name.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}
	c.carbonIndex = make(map[string]float64, len(c.Carbon))
	for _, f := range c.Carbon {
		key := strings.ToLower(strings.TrimSpace(f.Name))
		if key == "" {
			return nil, errors.New("catalog: carbon entry without a name")
		}
		c.carbonIndex[key] = f.KG
	}
	seen := map[string]bool{}
	for _, r := range c.Rewards {
		if r.ID == "" || r.Cost < 0 {
			return nil, fmt.Errorf("catalog: invalid reward %q", r.ID)
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("catalog: duplicate reward %q", r.ID)
		}
		seen[r.ID] = true
	}
	return &c, nil
}

// CarbonFor returns the savings for an exact (case-insensitive) product name, or 0.
func (c *Catalog) CarbonFor(name string) float64 {
	return c.carbonIndex[strings.ToLower(strings.TrimSpace(name))]
}

// Reward looks up a scheme by id.
func (c *Catalog) Reward(id string) (Reward, bool) {
	for _, r := range c.Rewards {
		if r.ID == id {
			return r, true
		}
	}
	return Reward{}, false
}
