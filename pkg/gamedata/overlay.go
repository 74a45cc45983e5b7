package gamedata

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pullwatch/pullwatch/internal/model"
)

// Overlay is the optional YAML file format for extending or correcting
// the shipped tables. All sections are optional; entries merge over the
// defaults.
type Overlay struct {
	Difficulties   map[int64]string `yaml:"difficulties"`
	Roles          map[int64]string `yaml:"roles"`
	Affixes        map[int64]string `yaml:"affixes"`
	MajorCooldowns []int64          `yaml:"major_cooldowns"`
	Taunts         []int64          `yaml:"taunts"`
}

// LoadOverlay merges a YAML overlay file into the tables.
func (t *StaticTables) LoadOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read overlay: %w", err)
	}
	return t.ApplyOverlay(data)
}

// ApplyOverlay merges raw YAML overlay bytes into the tables.
func (t *StaticTables) ApplyOverlay(data []byte) error {
	var ov Overlay
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return fmt.Errorf("parse overlay: %w", err)
	}

	for id, name := range ov.Difficulties {
		t.Difficulties[id] = name
	}
	for id, role := range ov.Roles {
		r, err := parseRole(role)
		if err != nil {
			return err
		}
		t.SpecRoles[id] = r
	}
	for id, name := range ov.Affixes {
		t.Affixes[id] = name
	}
	for _, id := range ov.MajorCooldowns {
		t.MajorCooldowns[id] = true
	}
	for _, id := range ov.Taunts {
		t.Taunts[id] = true
	}
	return nil
}

func parseRole(s string) (model.Role, error) {
	switch model.Role(s) {
	case model.RoleTank, model.RoleHealer, model.RoleDamage:
		return model.Role(s), nil
	default:
		return model.RoleUnknown, fmt.Errorf("overlay: unknown role %q", s)
	}
}
