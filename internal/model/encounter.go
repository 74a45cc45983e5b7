package model

import "time"

// EncounterKind distinguishes the top-level session types.
type EncounterKind string

const (
	EncounterRaid       EncounterKind = "raid"
	EncounterMythicPlus EncounterKind = "mythic_plus"
	EncounterUnknown    EncounterKind = "unknown"
)

// CombatPeriod is a span of the encounter timeline with no inter-event
// gap above the detector's threshold.
type CombatPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns the length of the period.
func (p CombatPeriod) Duration() time.Duration {
	return p.End.Sub(p.Start)
}

// Fight is one contiguous combat segment of an Encounter. At most one
// Fight is open at a time. Boss and Number are meaningful only inside a
// dungeon-run Encounter.
type Fight struct {
	Name        string                   `json:"name"`
	Number      int                      `json:"number"`
	Boss        bool                     `json:"boss"`
	EncounterID int64                    `json:"encounter_id,omitempty"`
	StartTime   time.Time                `json:"start_time"`
	EndTime     time.Time                `json:"end_time"`
	Players     map[string]*Character    `json:"-"`
	Enemies     map[string]*NPCCombatant `json:"enemies,omitempty"`
}

// NewFight opens a fight named name at ts.
func NewFight(name string, number int, boss bool, ts time.Time) *Fight {
	return &Fight{
		Name:      name,
		Number:    number,
		Boss:      boss,
		StartTime: ts,
		Players:   make(map[string]*Character),
		Enemies:   make(map[string]*NPCCombatant),
	}
}

// Enemy fetches or creates the NPC record for guid within this fight.
func (f *Fight) Enemy(guid, name string) *NPCCombatant {
	npc, ok := f.Enemies[guid]
	if !ok {
		npc = NewNPCCombatant(guid, name)
		f.Enemies[guid] = npc
	}
	return npc
}

// Duration returns the wall-clock length of the fight.
func (f *Fight) Duration() time.Duration {
	if f.EndTime.IsZero() || f.StartTime.IsZero() {
		return 0
	}
	return f.EndTime.Sub(f.StartTime)
}

// EncounterMetrics is the aggregate block computed at encounter close.
// Recomputing it from the underlying characters is idempotent.
type EncounterMetrics struct {
	TotalDamage    int64         `json:"total_damage"`
	TotalHealing   int64         `json:"total_healing"`
	TotalDeaths    int64         `json:"total_deaths"`
	RaidDuration   time.Duration `json:"raid_duration"`
	CombatDuration time.Duration `json:"combat_duration"`
	RaidDPS        float64       `json:"raid_dps"`
	CombatDPS      float64       `json:"combat_dps"`
	RaidHPS        float64       `json:"raid_hps"`
	CombatHPS      float64       `json:"combat_hps"`
	AvgItemLevel   float64       `json:"avg_item_level"`
	AvgActivity    float64       `json:"avg_activity"`
}

// Encounter is the top-level combat session: a raid boss pull or a
// complete dungeon run. Characters are keyed by canonical GUID.
type Encounter struct {
	Kind          EncounterKind         `json:"kind"`
	EncounterID   int64                 `json:"encounter_id"`
	Name          string                `json:"name"`
	DifficultyID  int64                 `json:"difficulty_id,omitempty"`
	Difficulty    string                `json:"difficulty,omitempty"`
	KeystoneLevel int64                 `json:"keystone_level,omitempty"`
	Affixes       []int64               `json:"affixes,omitempty"`
	Pull          int                   `json:"pull"`
	StartTime     time.Time             `json:"start_time"`
	EndTime       time.Time             `json:"end_time"`
	Success       bool                  `json:"success"`
	Closed        bool                  `json:"-"`
	Fights        []*Fight              `json:"fights"`
	Characters    map[string]*Character `json:"characters"`
	Events        []Event               `json:"-"`
	Periods       []CombatPeriod        `json:"combat_periods"`
	Metrics       EncounterMetrics      `json:"metrics"`
}

// NewEncounter creates an open encounter of the given kind.
func NewEncounter(kind EncounterKind, ts time.Time) *Encounter {
	return &Encounter{
		Kind:       kind,
		StartTime:  ts,
		Characters: make(map[string]*Character),
	}
}

// CurrentFight returns the open fight, or nil when none is open.
func (e *Encounter) CurrentFight() *Fight {
	if len(e.Fights) == 0 {
		return nil
	}
	f := e.Fights[len(e.Fights)-1]
	if !f.EndTime.IsZero() {
		return nil
	}
	return f
}

// Character fetches or creates the character for a canonical GUID and
// registers it on the current fight.
func (e *Encounter) Character(guid, name string) *Character {
	c, ok := e.Characters[guid]
	if !ok {
		c = NewCharacter(guid, name)
		e.Characters[guid] = c
	}
	if c.Name == "" && name != "" {
		c.Name = name
	}
	if f := e.CurrentFight(); f != nil {
		f.Players[guid] = c
	}
	return c
}

// Duration returns wall-clock encounter length ("raid time").
func (e *Encounter) Duration() time.Duration {
	if e.EndTime.IsZero() || e.StartTime.IsZero() {
		return 0
	}
	return e.EndTime.Sub(e.StartTime)
}

// CombatTime returns the summed duration of detected combat periods.
func (e *Encounter) CombatTime() time.Duration {
	var total time.Duration
	for _, p := range e.Periods {
		total += p.Duration()
	}
	return total
}
