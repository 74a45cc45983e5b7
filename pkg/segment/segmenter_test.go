package segment

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pullwatch/pullwatch/internal/model"
	"github.com/pullwatch/pullwatch/pkg/gamedata"
)

var t0 = time.Date(2025, 3, 14, 20, 30, 0, 0, time.UTC)

const (
	playerGUID = "Player-1329-0A1B2C3D"
	healerGUID = "Player-1329-0E5F6A7B"
	petGUID    = "Pet-0-3110-2902-22865-165189-0102ask"
	bossGUID   = "Creature-0-3110-2902-22865-226398-00004FA1C2"
)

func newTestEngine() *Engine {
	return NewEngine(zerolog.Nop(), gamedata.Default())
}

func base(ts time.Time, tag, srcGUID, srcName, dstGUID, dstName string) model.EventBase {
	return model.EventBase{
		Time:   ts,
		Tag:    tag,
		Source: model.Unit{GUID: srcGUID, Name: srcName},
		Dest:   model.Unit{GUID: dstGUID, Name: dstName},
	}
}

func encStart(ts time.Time, id int64, name string, difficulty int64) *model.EncounterBoundaryEvent {
	return &model.EncounterBoundaryEvent{
		EventBase:    model.EventBase{Time: ts, Tag: "ENCOUNTER_START"},
		EncounterID:  id,
		Name:         name,
		DifficultyID: difficulty,
		Start:        true,
	}
}

func encEnd(ts time.Time, id int64, name string, success bool) *model.EncounterBoundaryEvent {
	return &model.EncounterBoundaryEvent{
		EventBase:   model.EventBase{Time: ts, Tag: "ENCOUNTER_END"},
		EncounterID: id,
		Name:        name,
		Success:     success,
	}
}

func spellDamage(ts time.Time, srcGUID, srcName, dstGUID, dstName string, spellID, amount int64) *model.DamageEvent {
	return &model.DamageEvent{
		EventBase: base(ts, "SPELL_DAMAGE", srcGUID, srcName, dstGUID, dstName),
		Spell:     model.SpellInfo{ID: spellID, Name: "Fireball", School: 4},
		Amount:    amount,
	}
}

func swing(ts time.Time, tag, srcGUID, dstGUID string, amount int64) *model.DamageEvent {
	return &model.DamageEvent{
		EventBase: base(ts, tag, srcGUID, "Melee", dstGUID, "Boss"),
		Amount:    amount,
	}
}

func TestRaidEncounterLifecycle(t *testing.T) {
	e := newTestEngine()

	e.Ingest(encStart(t0, 2902, "Drop Bear", 15))
	e.Ingest(spellDamage(t0.Add(1*time.Second), playerGUID, "Arcanus", bossGUID, "Drop Bear", 133, 400))
	e.Ingest(spellDamage(t0.Add(2*time.Second), playerGUID, "Arcanus", bossGUID, "Drop Bear", 133, 350))
	e.Ingest(spellDamage(t0.Add(3*time.Second), playerGUID, "Arcanus", bossGUID, "Drop Bear", 133, 250))
	e.Ingest(encEnd(t0.Add(4*time.Second), 2902, "Drop Bear", true))

	encs := e.Encounters()
	require.Len(t, encs, 1)

	enc := encs[0]
	assert.Equal(t, model.EncounterRaid, enc.Kind)
	assert.Equal(t, "Drop Bear", enc.Name)
	assert.Equal(t, "Heroic", enc.Difficulty)
	assert.True(t, enc.Success)
	assert.True(t, enc.Closed)
	assert.Len(t, enc.Fights, 1)
	require.Len(t, enc.Characters, 1)

	c := enc.Characters[playerGUID]
	require.NotNil(t, c)
	assert.Equal(t, int64(1000), c.TotalDamageDone)
	assert.Equal(t, int64(1000), enc.Metrics.TotalDamage)

	// Boss damage taken lands on the fight's enemy record.
	npc := enc.Fights[0].Enemies[bossGUID]
	require.NotNil(t, npc)
	assert.Equal(t, int64(1000), npc.DamageTaken)
}

func TestEventsOutsideEncounterDropped(t *testing.T) {
	e := newTestEngine()
	e.Ingest(spellDamage(t0, playerGUID, "Arcanus", bossGUID, "Drop Bear", 133, 500))

	assert.Empty(t, e.Encounters())
	assert.Equal(t, int64(1), e.Stats().EventsDropped)
}

func TestPullCounterAcrossAttempts(t *testing.T) {
	e := newTestEngine()

	e.Ingest(encStart(t0, 2902, "Drop Bear", 16))
	e.Ingest(encEnd(t0.Add(time.Minute), 2902, "Drop Bear", false))
	e.Ingest(encStart(t0.Add(2*time.Minute), 2902, "Drop Bear", 16))
	e.Ingest(encEnd(t0.Add(3*time.Minute), 2902, "Drop Bear", true))

	encs := e.Encounters()
	require.Len(t, encs, 2)
	assert.Equal(t, 1, encs[0].Pull)
	assert.Equal(t, 2, encs[1].Pull)
	assert.False(t, encs[0].Success)
	assert.True(t, encs[1].Success)
}

func TestSwingDedupIdempotence(t *testing.T) {
	e := newTestEngine()
	e.Ingest(encStart(t0, 2902, "Drop Bear", 15))

	ts := t0.Add(time.Second)
	e.Ingest(swing(ts, "SWING_DAMAGE", playerGUID, bossGUID, 500))
	e.Ingest(swing(ts, "SWING_DAMAGE_LANDED", playerGUID, bossGUID, 500))
	e.Ingest(encEnd(t0.Add(2*time.Second), 2902, "Drop Bear", true))

	enc := e.Encounters()[0]
	c := enc.Characters[playerGUID]
	require.NotNil(t, c)
	assert.Equal(t, int64(500), c.TotalDamageDone)
	assert.Equal(t, int64(1), e.Stats().DedupedSwings)

	// Both events stay in the raw log and the character's stream.
	assert.Len(t, c.DamageDone, 2)
}

func TestSwingLandedAloneStillCounts(t *testing.T) {
	e := newTestEngine()
	e.Ingest(encStart(t0, 2902, "Drop Bear", 15))
	e.Ingest(swing(t0.Add(time.Second), "SWING_DAMAGE_LANDED", playerGUID, bossGUID, 321))
	e.Ingest(encEnd(t0.Add(2*time.Second), 2902, "Drop Bear", true))

	c := e.Encounters()[0].Characters[playerGUID]
	require.NotNil(t, c)
	assert.Equal(t, int64(321), c.TotalDamageDone)
	assert.Zero(t, e.Stats().DedupedSwings)
}

func TestPetAttribution(t *testing.T) {
	e := newTestEngine()
	e.Ingest(encStart(t0, 2902, "Drop Bear", 15))

	e.Ingest(&model.SummonEvent{
		EventBase: base(t0.Add(time.Second), "SPELL_SUMMON", playerGUID, "Hunter", petGUID, "Wolf"),
		Spell:     model.SpellInfo{ID: 883, Name: "Call Pet"},
	})
	e.Ingest(spellDamage(t0.Add(2*time.Second), petGUID, "Wolf", bossGUID, "Drop Bear", 17253, 640))
	e.Ingest(encEnd(t0.Add(3*time.Second), 2902, "Drop Bear", true))

	enc := e.Encounters()[0]
	owner := enc.Characters[playerGUID]
	require.NotNil(t, owner)
	assert.Equal(t, int64(640), owner.TotalDamageDone)
	assert.NotContains(t, enc.Characters, petGUID)
}

func TestPetOwnershipSurvivesEncounters(t *testing.T) {
	e := newTestEngine()

	e.Ingest(encStart(t0, 2902, "Drop Bear", 15))
	e.Ingest(&model.SummonEvent{
		EventBase: base(t0.Add(time.Second), "SPELL_SUMMON", playerGUID, "Hunter", petGUID, "Wolf"),
	})
	e.Ingest(encEnd(t0.Add(2*time.Second), 2902, "Drop Bear", false))

	e.Ingest(encStart(t0.Add(time.Minute), 2902, "Drop Bear", 15))
	e.Ingest(spellDamage(t0.Add(time.Minute+time.Second), petGUID, "Wolf", bossGUID, "Drop Bear", 17253, 111))
	e.Ingest(encEnd(t0.Add(time.Minute+2*time.Second), 2902, "Drop Bear", true))

	encs := e.Encounters()
	require.Len(t, encs, 2)
	owner := encs[1].Characters[playerGUID]
	require.NotNil(t, owner)
	assert.Equal(t, int64(111), owner.TotalDamageDone)
}

func TestMythicPlusNestedFights(t *testing.T) {
	e := newTestEngine()

	e.Ingest(&model.ChallengeBoundaryEvent{
		EventBase:     model.EventBase{Time: t0, Tag: "CHALLENGE_MODE_START"},
		ZoneName:      "Halls of Valor",
		ChallengeID:   200,
		KeystoneLevel: 18,
		Affixes:       []int64{10, 9},
		Start:         true,
	})
	e.Ingest(spellDamage(t0.Add(10*time.Second), playerGUID, "Arcanus", bossGUID, "Trash Mob", 133, 100))
	e.Ingest(encStart(t0.Add(time.Minute), 1805, "Hymdall", 8))
	e.Ingest(spellDamage(t0.Add(time.Minute+5*time.Second), playerGUID, "Arcanus", bossGUID, "Hymdall", 133, 900))
	e.Ingest(encEnd(t0.Add(2*time.Minute), 1805, "Hymdall", true))
	e.Ingest(spellDamage(t0.Add(3*time.Minute), playerGUID, "Arcanus", bossGUID, "Trash Mob", 133, 50))
	e.Ingest(&model.ChallengeBoundaryEvent{
		EventBase:     model.EventBase{Time: t0.Add(20 * time.Minute), Tag: "CHALLENGE_MODE_END"},
		ZoneName:      "Halls of Valor",
		ChallengeID:   200,
		KeystoneLevel: 18,
		Success:       true,
	})

	encs := e.Encounters()
	require.Len(t, encs, 1)

	enc := encs[0]
	assert.Equal(t, model.EncounterMythicPlus, enc.Kind)
	assert.Equal(t, "Halls of Valor", enc.Name)
	assert.Equal(t, int64(18), enc.KeystoneLevel)
	assert.True(t, enc.Success)

	// Trash 1, boss, Trash 2.
	require.Len(t, enc.Fights, 3)
	assert.False(t, enc.Fights[0].Boss)
	assert.True(t, enc.Fights[1].Boss)
	assert.Equal(t, "Hymdall", enc.Fights[1].Name)
	assert.False(t, enc.Fights[2].Boss)

	// All damage rolls into one encounter-level character.
	c := enc.Characters[playerGUID]
	require.NotNil(t, c)
	assert.Equal(t, int64(1050), c.TotalDamageDone)
}

func TestUnmatchedBoundaryCounted(t *testing.T) {
	e := newTestEngine()
	e.Ingest(encEnd(t0, 2902, "Drop Bear", true))

	assert.Empty(t, e.Encounters())
	assert.Equal(t, int64(1), e.Stats().BoundaryFailures)
}

func TestDoubleStartClosesAsWipe(t *testing.T) {
	e := newTestEngine()
	e.Ingest(encStart(t0, 2902, "Drop Bear", 15))
	e.Ingest(encStart(t0.Add(time.Minute), 2902, "Drop Bear", 15))
	e.Ingest(encEnd(t0.Add(2*time.Minute), 2902, "Drop Bear", true))

	encs := e.Encounters()
	require.Len(t, encs, 2)
	assert.False(t, encs[0].Success)
	assert.True(t, encs[1].Success)
	assert.Equal(t, int64(1), e.Stats().BoundaryFailures)
	assert.Equal(t, 2, encs[1].Pull)
}

func TestFinishClosesOpenEncounterAsFailed(t *testing.T) {
	e := newTestEngine()
	e.Ingest(encStart(t0, 2902, "Drop Bear", 15))
	e.Ingest(spellDamage(t0.Add(time.Second), playerGUID, "Arcanus", bossGUID, "Drop Bear", 133, 123))
	e.Finish()

	encs := e.Encounters()
	require.Len(t, encs, 1)
	assert.False(t, encs[0].Success)
	assert.True(t, encs[0].Closed)
	assert.False(t, encs[0].EndTime.IsZero())
	assert.False(t, encs[0].EndTime.Before(encs[0].StartTime))
}

func TestClosureInvariant(t *testing.T) {
	e := newTestEngine()
	e.Ingest(encStart(t0, 2902, "Drop Bear", 15))
	e.Ingest(encEnd(t0.Add(90*time.Second), 2902, "Drop Bear", false))

	// Zero routed events still yields a complete finalized record.
	encs := e.Encounters()
	require.Len(t, encs, 1)
	enc := encs[0]
	assert.False(t, enc.EndTime.Before(enc.StartTime))
	assert.Zero(t, enc.Metrics.TotalDamage)
	assert.NotEmpty(t, enc.Fights)
	assert.Empty(t, enc.Characters)
}

func TestDeathRecordsKillingBlow(t *testing.T) {
	e := newTestEngine()
	e.Ingest(encStart(t0, 2902, "Drop Bear", 15))

	blow := &model.DamageEvent{
		EventBase: base(t0.Add(time.Second), "SPELL_DAMAGE", bossGUID, "Drop Bear", playerGUID, "Arcanus"),
		Spell:     model.SpellInfo{ID: 465081, Name: "Savage Maul", School: 1},
		Amount:    950000,
		Overkill:  120000,
	}
	e.Ingest(blow)
	e.Ingest(&model.DeathEvent{EventBase: base(t0.Add(2*time.Second), "UNIT_DIED", "", "", playerGUID, "Arcanus")})
	e.Ingest(encEnd(t0.Add(3*time.Second), 2902, "Drop Bear", false))

	c := e.Encounters()[0].Characters[playerGUID]
	require.NotNil(t, c)
	require.Len(t, c.Deaths, 1)

	rec := c.Deaths[0]
	assert.Equal(t, "Savage Maul", rec.KillingSpell)
	assert.Equal(t, int64(120000), rec.Overkill)
	assert.Same(t, blow, rec.KillingBlow)
	assert.NotEmpty(t, rec.RecentDamage)
}

func TestNPCDeathCountsOnFight(t *testing.T) {
	e := newTestEngine()
	e.Ingest(encStart(t0, 2902, "Drop Bear", 15))
	e.Ingest(spellDamage(t0.Add(time.Second), playerGUID, "Arcanus", bossGUID, "Drop Bear", 133, 10))
	e.Ingest(&model.DeathEvent{EventBase: base(t0.Add(2*time.Second), "UNIT_DIED", "", "", bossGUID, "Drop Bear")})
	e.Ingest(encEnd(t0.Add(3*time.Second), 2902, "Drop Bear", true))

	npc := e.Encounters()[0].Fights[0].Enemies[bossGUID]
	require.NotNil(t, npc)
	assert.Equal(t, 1, npc.Deaths)
}

func TestCombatantInfoAttachesBeforeAndAfterFirstEvent(t *testing.T) {
	e := newTestEngine()
	e.Ingest(encStart(t0, 2902, "Drop Bear", 15))

	// Snapshot arrives before the player's first routed event.
	e.Ingest(&model.CombatantInfoEvent{
		EventBase:  model.EventBase{Time: t0, Tag: "COMBATANT_INFO"},
		PlayerGUID: playerGUID,
		SpecID:     257,
		Equipment: []model.EquipmentItem{
			{ItemID: 207279, ItemLevel: 489},
			{ItemID: 208431, ItemLevel: 483},
		},
	})
	e.Ingest(&model.HealEvent{
		EventBase: base(t0.Add(time.Second), "SPELL_HEAL", playerGUID, "Lumina", healerGUID, "Bryn"),
		Spell:     model.SpellInfo{ID: 2060, Name: "Heal", School: 2},
		Amount:    5000,
	})

	// Snapshot for a player already tracked attaches directly.
	e.Ingest(&model.CombatantInfoEvent{
		EventBase:  model.EventBase{Time: t0.Add(2 * time.Second), Tag: "COMBATANT_INFO"},
		PlayerGUID: healerGUID,
		SpecID:     65,
	})
	e.Ingest(encEnd(t0.Add(3*time.Second), 2902, "Drop Bear", true))

	enc := e.Encounters()[0]
	c := enc.Characters[playerGUID]
	require.NotNil(t, c)
	assert.Equal(t, int64(257), c.SpecID)
	assert.Equal(t, model.RoleHealer, c.Role)
	assert.InDelta(t, 486.0, c.ItemLevel, 0.01)

	h := enc.Characters[healerGUID]
	require.NotNil(t, h)
	assert.Equal(t, int64(65), h.SpecID)
	assert.Equal(t, model.RoleHealer, h.Role)
}

func TestAuraClassification(t *testing.T) {
	e := newTestEngine()
	e.Ingest(encStart(t0, 2902, "Drop Bear", 15))

	// Explicit DEBUFF tag from an enemy.
	e.Ingest(&model.AuraEvent{
		EventBase: base(t0.Add(time.Second), "SPELL_AURA_APPLIED", bossGUID, "Drop Bear", playerGUID, "Arcanus"),
		Spell:     model.SpellInfo{ID: 465081, Name: "Rabies"},
		AuraType:  "DEBUFF",
		Applied:   true,
	})
	// Untagged friendly-to-friendly aura is assumed to be a buff.
	e.Ingest(&model.AuraEvent{
		EventBase: base(t0.Add(2*time.Second), "SPELL_AURA_APPLIED", healerGUID, "Lumina", playerGUID, "Arcanus"),
		Spell:     model.SpellInfo{ID: 21562, Name: "Power Word: Fortitude"},
		Applied:   true,
	})
	// Removals land in the lost lists, classified the same way.
	e.Ingest(&model.AuraEvent{
		EventBase: base(t0.Add(3*time.Second), "SPELL_AURA_REMOVED", healerGUID, "Lumina", playerGUID, "Arcanus"),
		Spell:     model.SpellInfo{ID: 21562, Name: "Power Word: Fortitude"},
		Applied:   false,
	})
	e.Ingest(&model.AuraEvent{
		EventBase: base(t0.Add(3500*time.Millisecond), "SPELL_AURA_REMOVED", bossGUID, "Drop Bear", playerGUID, "Arcanus"),
		Spell:     model.SpellInfo{ID: 465081, Name: "Rabies"},
		AuraType:  "DEBUFF",
		Applied:   false,
	})
	e.Ingest(encEnd(t0.Add(4*time.Second), 2902, "Drop Bear", true))

	c := e.Encounters()[0].Characters[playerGUID]
	require.NotNil(t, c)
	assert.Len(t, c.DebuffsGained, 1)
	assert.Len(t, c.BuffsGained, 1)
	require.Len(t, c.BuffsLost, 1)
	assert.Equal(t, int64(21562), c.BuffsLost[0].Spell.ID)
	require.Len(t, c.DebuffsLost, 1)
	assert.Equal(t, int64(465081), c.DebuffsLost[0].Spell.ID)
}
