// Package gamedata supplies the static lookup tables consulted during
// metric finalization: difficulty names, specialization roles, affix
// names and notable spell sets. The core consumes lookups; it never
// discovers configuration files on its own.
package gamedata

import (
	"fmt"

	"github.com/pullwatch/pullwatch/internal/model"
)

// Tables is the lookup capability the segmentation engine consumes.
// Unknown ids resolve to a printable default, never an error.
type Tables interface {
	DifficultyName(id int64) string
	RoleForSpec(id int64) model.Role
	AffixName(id int64) string
	IsMajorCooldown(spellID int64) bool
	IsTauntSpell(spellID int64) bool
}

// StaticTables is the in-memory Tables implementation, optionally
// overlaid from a YAML file.
type StaticTables struct {
	Difficulties   map[int64]string
	SpecRoles      map[int64]model.Role
	Affixes        map[int64]string
	MajorCooldowns map[int64]bool
	Taunts         map[int64]bool
}

// Default returns tables seeded with the shipped game data.
func Default() *StaticTables {
	t := &StaticTables{
		Difficulties: map[int64]string{
			1:  "Normal",
			2:  "Heroic",
			8:  "Mythic Keystone",
			14: "Normal",
			15: "Heroic",
			16: "Mythic",
			17: "Looking For Raid",
			23: "Mythic",
			24: "Timewalking",
		},
		SpecRoles:      make(map[int64]model.Role),
		Affixes:        make(map[int64]string),
		MajorCooldowns: make(map[int64]bool),
		Taunts:         make(map[int64]bool),
	}

	for _, id := range tankSpecs {
		t.SpecRoles[id] = model.RoleTank
	}
	for _, id := range healerSpecs {
		t.SpecRoles[id] = model.RoleHealer
	}
	for _, id := range damageSpecs {
		t.SpecRoles[id] = model.RoleDamage
	}

	for id, name := range affixNames {
		t.Affixes[id] = name
	}
	for _, id := range majorCooldowns {
		t.MajorCooldowns[id] = true
	}
	for _, id := range tauntSpells {
		t.Taunts[id] = true
	}
	return t
}

// DifficultyName resolves a difficulty id.
func (t *StaticTables) DifficultyName(id int64) string {
	if name, ok := t.Difficulties[id]; ok {
		return name
	}
	return unknown(id)
}

// RoleForSpec resolves a specialization id to its combat role.
func (t *StaticTables) RoleForSpec(id int64) model.Role {
	if role, ok := t.SpecRoles[id]; ok {
		return role
	}
	return model.RoleUnknown
}

// AffixName resolves a keystone affix id.
func (t *StaticTables) AffixName(id int64) string {
	if name, ok := t.Affixes[id]; ok {
		return name
	}
	return unknown(id)
}

// IsMajorCooldown reports whether a spell id is a known raid-wide or
// personal major buff. Consulted by the buff/debuff heuristic.
func (t *StaticTables) IsMajorCooldown(spellID int64) bool {
	return t.MajorCooldowns[spellID]
}

// IsTauntSpell reports whether a spell id is a taunt, used by tank
// detection.
func (t *StaticTables) IsTauntSpell(spellID int64) bool {
	return t.Taunts[spellID]
}

func unknown(id int64) string {
	return fmt.Sprintf("Unknown (%d)", id)
}

var tankSpecs = []int64{
	66,  // Protection Paladin
	73,  // Protection Warrior
	104, // Guardian Druid
	250, // Blood Death Knight
	268, // Brewmaster Monk
	581, // Vengeance Demon Hunter
}

var healerSpecs = []int64{
	65,   // Holy Paladin
	105,  // Restoration Druid
	256,  // Discipline Priest
	257,  // Holy Priest
	264,  // Restoration Shaman
	270,  // Mistweaver Monk
	1468, // Preservation Evoker
}

var damageSpecs = []int64{
	62, 63, 64, // Mage
	70,                // Retribution Paladin
	71, 72,            // Warrior
	102, 103,          // Druid
	251, 252,          // Death Knight
	253, 254, 255,     // Hunter
	258,               // Shadow Priest
	259, 260, 261,     // Rogue
	262, 263,          // Shaman
	265, 266, 267,     // Warlock
	269,               // Windwalker Monk
	577,               // Havoc Demon Hunter
	1467, 1473,        // Evoker
}

var affixNames = map[int64]string{
	3:   "Volcanic",
	4:   "Necrotic",
	6:   "Raging",
	7:   "Bolstering",
	8:   "Sanguine",
	9:   "Tyrannical",
	10:  "Fortified",
	11:  "Bursting",
	12:  "Grievous",
	13:  "Explosive",
	14:  "Quaking",
	123: "Spiteful",
	124: "Storming",
	134: "Entangling",
	135: "Afflicted",
	136: "Incorporeal",
}

// Raid-wide haste effects plus Power Infusion.
var majorCooldowns = []int64{
	2825,   // Bloodlust
	32182,  // Heroism
	80353,  // Time Warp
	264667, // Primal Rage
	390386, // Fury of the Aspects
	10060,  // Power Infusion
}

var tauntSpells = []int64{
	355,    // Taunt
	6795,   // Growl
	56222,  // Dark Command
	62124,  // Hand of Reckoning
	115546, // Provoke
	185245, // Torment
}
