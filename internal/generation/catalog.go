package generation

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed models.yaml
var defaultCatalog []byte

// Catalog holds per-model token cost multipliers.
type Catalog struct {
	Providers map[string]ProviderCatalog `yaml:"providers"`
}

// ProviderCatalog lists the multipliers of one provider's models.
type ProviderCatalog struct {
	DefaultMultiplier float64            `yaml:"default_multiplier"`
	Models            map[string]float64 `yaml:"models"`
}

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads a catalog from path, or returns the default catalog
// when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML catalog and rejects negative multipliers.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: model catalog: %v", ErrInvalidConfig, err)
	}
	for provider, pc := range c.Providers {
		if pc.DefaultMultiplier < 0 {
			return nil, fmt.Errorf("%w: negative default multiplier for %s", ErrInvalidConfig, provider)
		}
		for model, m := range pc.Models {
			if m < 0 {
				return nil, fmt.Errorf("%w: negative multiplier for %s/%s", ErrInvalidConfig, provider, model)
			}
		}
	}
	return &c, nil
}

// Multiplier returns the cost multiplier for a provider's model. Unknown
// models fall back to the provider default, then to 1.
func (c *Catalog) Multiplier(provider, model string) float64 {
	pc, ok := c.Providers[provider]
	if !ok {
		return 1
	}
	if m, ok := pc.Models[model]; ok {
		return m
	}
	if pc.DefaultMultiplier > 0 {
		return pc.DefaultMultiplier
	}
	return 1
}
