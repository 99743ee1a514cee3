// Package catalog holds the option lists offered by the form: the
// specializations and services a provider can pick and the working days.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kalambet/provform/internal/profile"
)

//go:embed default.yaml
var defaultYAML []byte

// Catalog is the set of selectable options.
type Catalog struct {
	Specializations []string          `json:"specializations" yaml:"specializations"`
	Services        []string          `json:"services" yaml:"services"`
	Weekdays        []profile.Weekday `json:"weekdays" yaml:"weekdays"`
}

// Default returns the built-in catalog.
func Default() Catalog {
	c, err := Parse(defaultYAML, "default.yaml")
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded default is invalid: %v", err))
	}
	return c
}

// Load reads a catalog from a YAML file. An empty path returns Default.
func Load(path string) (Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes and normalises a YAML catalog. source is used in errors.
func Parse(data []byte, source string) (Catalog, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return Catalog{}, fmt.Errorf("catalog: %s is empty", source)
	}

	var raw struct {
		Specializations []string `yaml:"specializations"`
		Services        []string `yaml:"services"`
		Weekdays        []string `yaml:"weekdays"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Catalog{}, fmt.Errorf("catalog: parse %s: %w", source, err)
	}

	var c Catalog
	var err error
	if c.Specializations, err = normaliseList(raw.Specializations, "specializations", source); err != nil {
		return Catalog{}, err
	}
	if c.Services, err = normaliseList(raw.Services, "services", source); err != nil {
		return Catalog{}, err
	}

	if len(raw.Weekdays) == 0 {
		c.Weekdays = append([]profile.Weekday(nil), profile.Weekdays...)
	} else {
		seen := make(map[profile.Weekday]bool)
		for _, name := range raw.Weekdays {
			d, ok := profile.ParseWeekday(name)
			if !ok {
				return Catalog{}, fmt.Errorf("catalog: %s lists unknown weekday %q", source, name)
			}
			if seen[d] {
				return Catalog{}, fmt.Errorf("catalog: %s lists weekday %q twice", source, d)
			}
			seen[d] = true
			c.Weekdays = append(c.Weekdays, d)
		}
	}

	return c, nil
}

func normaliseList(in []string, name, source string) ([]string, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("catalog: %s defines no %s", source, name)
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for idx, entry := range in {
		v := strings.TrimSpace(entry)
		if v == "" {
			return nil, fmt.Errorf("catalog: %s has an empty %s entry at index %d", source, name, idx)
		}
		if seen[v] {
			return nil, fmt.Errorf("catalog: %s lists %s entry %q twice", source, name, v)
		}
		seen[v] = true
		out = append(out, v)
	}
	return out, nil
}

// HasSpecialization reports whether s is offered.
func (c Catalog) HasSpecialization(s string) bool {
	return contains(c.Specializations, s)
}

// HasService reports whether s is offered.
func (c Catalog) HasService(s string) bool {
	return contains(c.Services, s)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
