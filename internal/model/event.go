// Package model defines the combat event variants and the
// Encounter/Fight/Character hierarchy produced by segmentation.
package model

import "time"

// Event is the closed set of combat event variants. All variants embed
// EventBase; consumers dispatch with a type switch. Events are immutable
// once constructed.
type Event interface {
	Base() *EventBase
}

// EventBase carries the fields shared by every event variant.
type EventBase struct {
	Time   time.Time
	Tag    string
	Source Unit
	Dest   Unit
	Raw    string
}

// Base implements Event.
func (b *EventBase) Base() *EventBase { return b }

// SpellInfo is the spell-identity prefix carried by SPELL_/RANGE_ families.
type SpellInfo struct {
	ID     int64
	Name   string
	School int64
}

// DamageEvent covers SWING_DAMAGE, RANGE_DAMAGE, SPELL_DAMAGE,
// SPELL_PERIODIC_DAMAGE and their variants. Derived marks events that
// mirror damage already reported elsewhere (SWING_DAMAGE_LANDED,
// DAMAGE_SPLIT) and must not be counted independently.
type DamageEvent struct {
	EventBase
	Spell    SpellInfo
	Amount   int64
	Overkill int64
	School   int64
	Resisted int64
	Blocked  int64
	Absorbed int64
	Critical bool
	Derived  bool
}

// HealEvent covers SPELL_HEAL and SPELL_PERIODIC_HEAL.
type HealEvent struct {
	EventBase
	Spell       SpellInfo
	Amount      int64
	Overhealing int64
	Absorbed    int64
	Critical    bool
}

// Effective returns the healing that landed: amount minus overheal,
// floored at zero.
func (h *HealEvent) Effective() int64 {
	eff := h.Amount - h.Overhealing
	if eff < 0 {
		return 0
	}
	return eff
}

// AuraEvent covers SPELL_AURA_APPLIED/REMOVED and their DOSE variants.
// AuraType is the raw BUFF/DEBUFF field when the log provides one;
// empty otherwise.
type AuraEvent struct {
	EventBase
	Spell    SpellInfo
	AuraType string
	Applied  bool
}

// CastEvent covers SPELL_CAST_START and SPELL_CAST_SUCCESS; used for
// activity accounting.
type CastEvent struct {
	EventBase
	Spell SpellInfo
}

// DeathEvent marks a UNIT_DIED / UNIT_DESTROYED line. The destination
// unit is the one that died.
type DeathEvent struct {
	EventBase
}

// SummonEvent covers SPELL_SUMMON: source is the owner, destination the
// summoned unit.
type SummonEvent struct {
	EventBase
	Spell SpellInfo
}

// EncounterBoundaryEvent covers ENCOUNTER_START and ENCOUNTER_END.
type EncounterBoundaryEvent struct {
	EventBase
	EncounterID  int64
	Name         string
	DifficultyID int64
	GroupSize    int64
	Start        bool
	Success      bool
}

// ChallengeBoundaryEvent covers CHALLENGE_MODE_START and CHALLENGE_MODE_END.
type ChallengeBoundaryEvent struct {
	EventBase
	ZoneName      string
	InstanceID    int64
	ChallengeID   int64
	KeystoneLevel int64
	Affixes       []int64
	Start         bool
	Success       bool
	RunTime       time.Duration
}

// EquipmentItem is one entry of a COMBATANT_INFO equipment block.
type EquipmentItem struct {
	ItemID    int64
	ItemLevel int64
	Enchants  []int64
	Gems      []int64
	Bonuses   []int64
}

// Talent is one entry of a COMBATANT_INFO talent block.
type Talent struct {
	SpellID int64
	Rank    int64
}

// CombatantInfoEvent carries the parsed COMBATANT_INFO snapshot for one
// player. Equipment and Talents are nil when their bracket sections were
// absent or malformed.
type CombatantInfoEvent struct {
	EventBase
	PlayerGUID string
	SpecID     int64
	Equipment  []EquipmentItem
	Talents    []Talent
}
