package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Variants is the closed set of supported rule-set variants plus the known
// jurisdiction labels. The router never emits a variant outside this set.
type Variants struct {
	Variants map[string]string `yaml:"variants"`
	Nations  map[string]string `yaml:"nations"`
}

func LoadVariants(path string) (*Variants, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read variants file: %w", err)
	}

	var v Variants
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse variants file: %w", err)
	}
	if len(v.Variants) == 0 {
		return nil, fmt.Errorf("variants file %s defines no variants", path)
	}
	return &v, nil
}

// DefaultVariants covers the three official rulebooks when no manifest file is
// deployed.
func DefaultVariants() *Variants {
	return &Variants{
		Variants: map[string]string{
			"outdoor":  "Outdoor Hockey",
			"indoor":   "Indoor Hockey",
			"hockey5s": "Hockey 5s",
		},
	}
}

func (v *Variants) Supported(variant string) bool {
	_, ok := v.Variants[strings.ToLower(strings.TrimSpace(variant))]
	return ok
}

func (v *Variants) Names() []string {
	out := make([]string, 0, len(v.Variants))
	for name := range v.Variants {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// JurisdictionLabel resolves a country code to a display label, falling back
// to the code itself for jurisdictions outside the manifest.
func (v *Variants) JurisdictionLabel(countryCode string) string {
	if countryCode == "" {
		return "International"
	}
	if name, ok := v.Nations[countryCode]; ok {
		return name
	}
	return countryCode + " National"
}
