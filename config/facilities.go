package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FacilityOverride is one entry of the facilities file. Zero fields keep the
// value from the environment.
type FacilityOverride struct {
	CapacityLimit int      `yaml:"capacity_limit"`
	WarnAt        float64  `yaml:"warn_at"`
	Timezone      string   `yaml:"timezone"`
	AlertTo       []string `yaml:"alert_to"`
}

// Facilities is the parsed FACILITIES_FILE, keyed by facility id.
type Facilities struct {
	Facilities map[string]FacilityOverride `yaml:"facilities"`
}

// LoadFacilities reads and parses a facilities YAML file.
func LoadFacilities(path string) (*Facilities, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read facilities file: %w", err)
	}
	var f Facilities
	if err := yaml.Unmarshal(buf, &f); err != nil {
		return nil, fmt.Errorf("config: parse facilities file: %w", err)
	}
	return &f, nil
}

// Apply overlays the entry for fc.ID, if there is one.
func (f *Facilities) Apply(fc *FacilityConfig) {
	o, ok := f.Facilities[fc.ID]
	if !ok {
		return
	}
	if o.CapacityLimit != 0 {
		fc.CapacityLimit = o.CapacityLimit
	}
	if o.WarnAt != 0 {
		fc.WarnAt = o.WarnAt
	}
	if o.Timezone != "" {
		fc.Timezone = o.Timezone
	}
	if len(o.AlertTo) > 0 {
		fc.AlertTo = o.AlertTo
	}
}
