package facility

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile describes one deployment: where reports are mirrored and which
// facilities it serves.
type Profile struct {
	Endpoint      string            `yaml:"endpoint"`
	Variant       string            `yaml:"variant"`
	FallbackLabel string            `yaml:"fallback_label"`
	Facilities    map[string]string `yaml:"facilities"`
}

func LoadProfile(path string) (Profile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile %s: %w", path, err)
	}

	var p Profile
	if err := yaml.Unmarshal(b, &p); err != nil {
		return Profile{}, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if _, err := ParseVariant(p.Variant); err != nil {
		return Profile{}, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

// Label returns the explicit fallback label, or the variant's label.
func (p Profile) Label() string {
	if p.FallbackLabel != "" {
		return p.FallbackLabel
	}
	v, _ := ParseVariant(p.Variant)
	return v.Label()
}

// Registry builds a registry from the profile; an empty table means the built-in one.
func (p Profile) Registry() (*Registry, error) {
	names := p.Facilities
	if len(names) == 0 {
		names = defaultNames
	}
	return New(names, p.Label())
}
