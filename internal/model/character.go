package model

import "time"

// Role is the detected combat role of a character.
type Role string

const (
	RoleTank    Role = "tank"
	RoleHealer  Role = "healer"
	RoleDamage  Role = "damage"
	RoleUnknown Role = "unknown"
)

// recentEventWindow bounds the per-character ring buffers consulted by
// death analysis.
const recentEventWindow = 10

// AbilityMetrics is the per-spell breakdown derived for one character.
type AbilityMetrics struct {
	SpellID int64   `json:"spell_id"`
	Name    string  `json:"name"`
	Total   int64   `json:"total"`
	Hits    int64   `json:"hits"`
	Crits   int64   `json:"crits"`
	Max     int64   `json:"max"`
	Average float64 `json:"average"`
	CritPct float64 `json:"crit_pct"`
	Share   float64 `json:"share"`
}

// DeathRecord captures the context of one character death.
type DeathRecord struct {
	Time          time.Time      `json:"time"`
	KillingBlow   *DamageEvent   `json:"-"`
	KillingSpell  string         `json:"killing_spell,omitempty"`
	Overkill      int64          `json:"overkill"`
	RecentDamage  []*DamageEvent `json:"-"`
	RecentHealing []*HealEvent   `json:"-"`
}

// Character accumulates the event stream and derived totals for one
// player, keyed by canonical GUID. Summoned units are resolved to their
// owner before a Character is created, so no pet GUID is ever a key.
type Character struct {
	GUID string `json:"guid"`
	Name string `json:"name"`

	SpecID    int64           `json:"spec_id,omitempty"`
	ItemLevel float64         `json:"item_level,omitempty"`
	Equipment []EquipmentItem `json:"-"`
	Talents   []Talent        `json:"-"`
	Role      Role            `json:"role"`

	DamageDone      []*DamageEvent `json:"-"`
	DamageTaken     []*DamageEvent `json:"-"`
	HealingDone     []*HealEvent   `json:"-"`
	HealingReceived []*HealEvent   `json:"-"`
	BuffsGained     []*AuraEvent   `json:"-"`
	DebuffsGained   []*AuraEvent   `json:"-"`
	BuffsLost       []*AuraEvent   `json:"-"`
	DebuffsLost     []*AuraEvent   `json:"-"`
	Casts           []*CastEvent   `json:"-"`

	TotalDamageDone      int64 `json:"total_damage_done"`
	TotalDamageTaken     int64 `json:"total_damage_taken"`
	TotalOverkill        int64 `json:"total_overkill"`
	TotalHealingDone     int64 `json:"total_healing_done"`
	TotalOverhealing     int64 `json:"total_overhealing"`
	TotalHealingReceived int64 `json:"total_healing_received"`

	Deaths []*DeathRecord `json:"deaths"`

	DamageAbilities  map[int64]*AbilityMetrics `json:"damage_abilities,omitempty"`
	HealingAbilities map[int64]*AbilityMetrics `json:"healing_abilities,omitempty"`

	// Derived at encounter close.
	DPS       float64 `json:"dps"`
	HPS       float64 `json:"hps"`
	CombatDPS float64 `json:"combat_dps"`
	CombatHPS float64 `json:"combat_hps"`
	ActivePct float64 `json:"active_pct"`

	// Ring buffers for death analysis, newest last.
	RecentDamageTaken     []*DamageEvent `json:"-"`
	RecentHealingReceived []*HealEvent   `json:"-"`
}

// NewCharacter creates an empty character for the given canonical GUID.
func NewCharacter(guid, name string) *Character {
	return &Character{
		GUID:             guid,
		Name:             name,
		Role:             RoleUnknown,
		DamageAbilities:  make(map[int64]*AbilityMetrics),
		HealingAbilities: make(map[int64]*AbilityMetrics),
	}
}

// AddDamageDone appends a damage event attributed to this character.
// Derived events are recorded but excluded from totals and breakdowns.
func (c *Character) AddDamageDone(ev *DamageEvent) {
	c.DamageDone = append(c.DamageDone, ev)
	if ev.Derived {
		return
	}
	dealt := ev.Amount - ev.Overkill
	if dealt < 0 {
		dealt = 0
	}
	c.TotalDamageDone += dealt
	c.TotalOverkill += ev.Overkill
	c.recordAbility(c.DamageAbilities, ev.Spell, ev.Tag, dealt, ev.Critical)
}

// AddDamageTaken appends a damage event against this character and
// advances the recent-damage ring buffer.
func (c *Character) AddDamageTaken(ev *DamageEvent) {
	c.DamageTaken = append(c.DamageTaken, ev)
	if !ev.Derived {
		c.TotalDamageTaken += ev.Amount
	}
	c.RecentDamageTaken = append(c.RecentDamageTaken, ev)
	if len(c.RecentDamageTaken) > recentEventWindow {
		c.RecentDamageTaken = c.RecentDamageTaken[1:]
	}
}

// AddHealingDone appends a heal cast by this character. Totals use
// effective healing; overheal is tracked separately.
func (c *Character) AddHealingDone(ev *HealEvent) {
	c.HealingDone = append(c.HealingDone, ev)
	c.TotalHealingDone += ev.Effective()
	c.TotalOverhealing += ev.Overhealing
	c.recordAbility(c.HealingAbilities, ev.Spell, ev.Tag, ev.Effective(), ev.Critical)
}

// AddHealingReceived appends a heal landed on this character and
// advances the recent-healing ring buffer.
func (c *Character) AddHealingReceived(ev *HealEvent) {
	c.HealingReceived = append(c.HealingReceived, ev)
	c.TotalHealingReceived += ev.Effective()
	c.RecentHealingReceived = append(c.RecentHealingReceived, ev)
	if len(c.RecentHealingReceived) > recentEventWindow {
		c.RecentHealingReceived = c.RecentHealingReceived[1:]
	}
}

// AddAura appends an aura event to the gained or lost list depending
// on whether it was applied or removed.
func (c *Character) AddAura(ev *AuraEvent, buff bool) {
	switch {
	case ev.Applied && buff:
		c.BuffsGained = append(c.BuffsGained, ev)
	case ev.Applied:
		c.DebuffsGained = append(c.DebuffsGained, ev)
	case buff:
		c.BuffsLost = append(c.BuffsLost, ev)
	default:
		c.DebuffsLost = append(c.DebuffsLost, ev)
	}
}

// LastDamageTaken returns the most recent damage event against this
// character, or nil.
func (c *Character) LastDamageTaken() *DamageEvent {
	if len(c.RecentDamageTaken) == 0 {
		return nil
	}
	return c.RecentDamageTaken[len(c.RecentDamageTaken)-1]
}

func (c *Character) recordAbility(abilities map[int64]*AbilityMetrics, spell SpellInfo, tag string, amount int64, crit bool) {
	id := spell.ID
	name := spell.Name
	if name == "" {
		// Swings carry no spell identity.
		name = tag
	}
	am, ok := abilities[id]
	if !ok {
		am = &AbilityMetrics{SpellID: id, Name: name}
		abilities[id] = am
	}
	am.Total += amount
	am.Hits++
	if crit {
		am.Crits++
	}
	if amount > am.Max {
		am.Max = amount
	}
}

// NPCCombatant tracks one non-player entity within a single Fight.
type NPCCombatant struct {
	GUID         string           `json:"guid"`
	Name         string           `json:"name"`
	DamageDone   int64            `json:"damage_done"`
	DamageTaken  int64            `json:"damage_taken"`
	HealingDone  int64            `json:"healing_done"`
	HealingTaken int64            `json:"healing_taken"`
	Deaths       int              `json:"deaths"`
	Abilities    map[int64]string `json:"abilities,omitempty"`
}

// NewNPCCombatant creates an empty NPC record.
func NewNPCCombatant(guid, name string) *NPCCombatant {
	return &NPCCombatant{
		GUID:      guid,
		Name:      name,
		Abilities: make(map[int64]string),
	}
}

// ObserveAbility records a spell seen from this NPC.
func (n *NPCCombatant) ObserveAbility(spell SpellInfo) {
	if spell.ID != 0 {
		n.Abilities[spell.ID] = spell.Name
	}
}
