// Package segment turns the event stream into the Encounter/Fight
// hierarchy. One Engine instance owns one stream; parallel workers each
// hold their own Engine so no state is shared across goroutines.
package segment

import (
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/pullwatch/pullwatch/internal/model"
	"github.com/pullwatch/pullwatch/pkg/gamedata"
)

// PetOwner is the resolved owner of a summoned unit.
type PetOwner struct {
	GUID string
	Name string
}

// swingKey identifies one physical auto-attack. SWING_DAMAGE and
// SWING_DAMAGE_LANDED share the key when they report the same hit.
type swingKey struct {
	ts  int64
	src string
	dst string
}

// Stats are the per-engine counters surfaced after a run. The engine is
// single-goroutine so plain fields suffice.
type Stats struct {
	EventsRouted     int64
	EventsDropped    int64
	RouteErrors      int64
	DedupedSwings    int64
	BoundaryFailures int64
}

// Engine is the segmentation state machine. The state is carried by
// current: nil means idle, otherwise current.Kind distinguishes a raid
// pull from a dungeon run, and the open Fight's Boss flag carries the
// boss/trash sub-state of a run.
type Engine struct {
	log    zerolog.Logger
	tables gamedata.Tables

	current   *model.Encounter
	completed []*model.Encounter

	// petOwners survives across encounters: summons routinely happen
	// between pulls.
	petOwners map[string]PetOwner

	// swingSeen is reset at every encounter open.
	swingSeen map[swingKey]struct{}

	// pendingInfo holds COMBATANT_INFO snapshots for players that have
	// not produced a routed event yet.
	pendingInfo map[string]*model.CombatantInfoEvent

	pullCounts map[int64]int
	trashCount int
	lastTime   time.Time

	stats Stats
}

// NewEngine creates an idle engine using the given game-data tables.
func NewEngine(log zerolog.Logger, tables gamedata.Tables) *Engine {
	return &Engine{
		log:         log.With().Str("component", "segment").Logger(),
		tables:      tables,
		petOwners:   make(map[string]PetOwner),
		pendingInfo: make(map[string]*model.CombatantInfoEvent),
		pullCounts:  make(map[int64]int),
	}
}

// Stats returns a copy of the engine's counters.
func (e *Engine) Stats() Stats { return e.stats }

// Encounters returns the finalized encounters produced so far, in
// stream order.
func (e *Engine) Encounters() []*model.Encounter { return e.completed }

// Ingest routes one event through the state machine. A nil event is
// ignored. Malformed or unroutable events are dropped with a counter
// increment; Ingest never fails.
func (e *Engine) Ingest(ev model.Event) {
	if ev == nil {
		return
	}
	e.lastTime = ev.Base().Time

	switch v := ev.(type) {
	case *model.EncounterBoundaryEvent:
		e.encounterBoundary(v)
		return
	case *model.ChallengeBoundaryEvent:
		e.challengeBoundary(v)
		return
	}

	if e.current == nil {
		e.stats.EventsDropped++
		return
	}

	e.current.Events = append(e.current.Events, ev)
	e.stats.EventsRouted++

	switch v := ev.(type) {
	case *model.SummonEvent:
		e.recordSummon(v)
	case *model.CombatantInfoEvent:
		e.recordCombatantInfo(v)
	case *model.DeathEvent:
		e.recordDeath(v)
	case *model.DamageEvent:
		e.routeDamage(v)
	case *model.HealEvent:
		e.routeHeal(v)
	case *model.AuraEvent:
		e.routeAura(v)
	case *model.CastEvent:
		e.routeCast(v)
	}
}

// Finish closes the stream. An encounter still open at end of input is
// finalized as unsuccessful rather than discarded, so the record of the
// partial pull survives.
func (e *Engine) Finish() {
	if e.current == nil {
		return
	}
	e.log.Debug().
		Str("name", e.current.Name).
		Msg("input ended inside an open encounter, closing as failed")
	e.closeCurrent(e.lastTime, false)
}

// --- Boundary transitions ---

func (e *Engine) encounterBoundary(ev *model.EncounterBoundaryEvent) {
	if e.current != nil && e.current.Kind == model.EncounterMythicPlus {
		e.current.Events = append(e.current.Events, ev)
		if ev.Start {
			e.openBossFight(ev)
		} else {
			e.closeBossFight(ev)
		}
		return
	}

	if ev.Start {
		if e.current != nil {
			// A second start before the matching end. Treat it as an
			// implicit wipe of the open pull.
			e.stats.BoundaryFailures++
			e.closeCurrent(ev.Time, false)
		}
		e.openRaid(ev)
		return
	}

	if e.current == nil {
		e.stats.BoundaryFailures++
		return
	}
	e.current.Events = append(e.current.Events, ev)
	e.closeCurrent(ev.Time, ev.Success)
}

func (e *Engine) challengeBoundary(ev *model.ChallengeBoundaryEvent) {
	if ev.Start {
		if e.current != nil {
			e.stats.BoundaryFailures++
			e.closeCurrent(ev.Time, false)
		}
		e.openChallenge(ev)
		return
	}

	if e.current == nil || e.current.Kind != model.EncounterMythicPlus {
		e.stats.BoundaryFailures++
		return
	}
	e.current.Events = append(e.current.Events, ev)
	e.closeCurrent(ev.Time, ev.Success)
}

func (e *Engine) openRaid(ev *model.EncounterBoundaryEvent) {
	enc := model.NewEncounter(model.EncounterRaid, ev.Time)
	enc.EncounterID = ev.EncounterID
	enc.Name = ev.Name
	enc.DifficultyID = ev.DifficultyID
	enc.Difficulty = e.tables.DifficultyName(ev.DifficultyID)

	e.pullCounts[ev.EncounterID]++
	enc.Pull = e.pullCounts[ev.EncounterID]

	enc.Fights = append(enc.Fights, model.NewFight(ev.Name, 1, true, ev.Time))
	enc.Events = append(enc.Events, ev)

	e.current = enc
	e.swingSeen = make(map[swingKey]struct{})

	e.log.Debug().
		Str("name", ev.Name).
		Int64("encounter_id", ev.EncounterID).
		Int("pull", enc.Pull).
		Msg("raid encounter opened")
}

func (e *Engine) openChallenge(ev *model.ChallengeBoundaryEvent) {
	enc := model.NewEncounter(model.EncounterMythicPlus, ev.Time)
	enc.EncounterID = ev.ChallengeID
	enc.Name = ev.ZoneName
	enc.KeystoneLevel = ev.KeystoneLevel
	enc.Affixes = ev.Affixes

	e.trashCount = 1
	enc.Fights = append(enc.Fights, model.NewFight("Trash 1", 1, false, ev.Time))
	enc.Events = append(enc.Events, ev)

	e.current = enc
	e.swingSeen = make(map[swingKey]struct{})

	e.log.Debug().
		Str("zone", ev.ZoneName).
		Int64("keystone", ev.KeystoneLevel).
		Msg("challenge run opened")
}

// openBossFight closes the open trash segment of a dungeon run and
// starts a nested boss fight. The top-level encounter stays open.
func (e *Engine) openBossFight(ev *model.EncounterBoundaryEvent) {
	if f := e.current.CurrentFight(); f != nil {
		f.EndTime = ev.Time
	}
	n := len(e.current.Fights) + 1
	f := model.NewFight(ev.Name, n, true, ev.Time)
	f.EncounterID = ev.EncounterID
	e.current.Fights = append(e.current.Fights, f)
}

// closeBossFight ends a nested boss fight and opens the next trash
// segment.
func (e *Engine) closeBossFight(ev *model.EncounterBoundaryEvent) {
	if f := e.current.CurrentFight(); f != nil {
		f.EndTime = ev.Time
	}
	e.trashCount++
	n := len(e.current.Fights) + 1
	name := "Trash " + strconv.Itoa(e.trashCount)
	e.current.Fights = append(e.current.Fights, model.NewFight(name, n, false, ev.Time))
}

func (e *Engine) closeCurrent(ts time.Time, success bool) {
	enc := e.current
	if f := enc.CurrentFight(); f != nil {
		f.EndTime = ts
	}
	enc.EndTime = ts
	enc.Success = success
	enc.Closed = true

	enc.Periods = DetectPeriods(enc.Events, DefaultGapThreshold)
	ComputeMetrics(enc, e.tables)

	e.completed = append(e.completed, enc)
	e.current = nil
	e.swingSeen = nil

	e.log.Debug().
		Str("name", enc.Name).
		Bool("success", success).
		Int("fights", len(enc.Fights)).
		Int("characters", len(enc.Characters)).
		Msg("encounter finalized")
}

// --- Event routing ---

// resolve maps a summoned unit's GUID to its owner. Non-pet GUIDs pass
// through unchanged.
func (e *Engine) resolve(guid, name string) (string, string) {
	if owner, ok := e.petOwners[guid]; ok {
		return owner.GUID, owner.Name
	}
	return guid, name
}

func (e *Engine) recordSummon(ev *model.SummonEvent) {
	if !model.IsSummonedGUID(ev.Dest.GUID) {
		return
	}
	// A pet summoning a pet chains to the original owner.
	guid, name := e.resolve(ev.Source.GUID, ev.Source.Name)
	e.petOwners[ev.Dest.GUID] = PetOwner{GUID: guid, Name: name}
}

func (e *Engine) recordCombatantInfo(ev *model.CombatantInfoEvent) {
	if c, ok := e.current.Characters[ev.PlayerGUID]; ok {
		applyCombatantInfo(c, ev)
		return
	}
	e.pendingInfo[ev.PlayerGUID] = ev
}

// character fetches or lazily creates the Character for a resolved
// player GUID, attaching any pending COMBATANT_INFO snapshot.
func (e *Engine) character(guid, name string) *model.Character {
	_, existed := e.current.Characters[guid]
	c := e.current.Character(guid, name)
	if !existed {
		if info, ok := e.pendingInfo[guid]; ok {
			applyCombatantInfo(c, info)
			delete(e.pendingInfo, guid)
		}
	}
	return c
}

func applyCombatantInfo(c *model.Character, ev *model.CombatantInfoEvent) {
	c.SpecID = ev.SpecID
	c.Equipment = ev.Equipment
	c.Talents = ev.Talents
	c.ItemLevel = averageItemLevel(ev.Equipment)
}

func averageItemLevel(items []model.EquipmentItem) float64 {
	var sum, n int64
	for _, it := range items {
		if it.ItemLevel > 0 {
			sum += it.ItemLevel
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

func (e *Engine) recordDeath(ev *model.DeathEvent) {
	guid, name := e.resolve(ev.Dest.GUID, ev.Dest.Name)
	if model.IsPlayerGUID(guid) {
		c := e.character(guid, name)
		c.Deaths = append(c.Deaths, buildDeathRecord(c, ev.Time))
		return
	}
	if f := e.current.CurrentFight(); f != nil && guid != "" {
		f.Enemy(guid, name).Deaths++
		return
	}
	if guid != "" {
		e.stats.RouteErrors++
	}
}

// isSwingTag reports whether the tag participates in auto-attack
// deduplication.
func isSwingTag(tag string) bool {
	return tag == "SWING_DAMAGE" || tag == "SWING_DAMAGE_LANDED"
}

func (e *Engine) routeDamage(ev *model.DamageEvent) {
	if isSwingTag(ev.Tag) && !ev.Derived {
		key := swingKey{ts: ev.Time.UnixNano(), src: ev.Source.GUID, dst: ev.Dest.GUID}
		if _, seen := e.swingSeen[key]; seen {
			// The same physical hit was already counted. Keep the
			// event in the log but strip it from the totals.
			e.stats.DedupedSwings++
			dup := *ev
			dup.Derived = true
			ev = &dup
		} else {
			e.swingSeen[key] = struct{}{}
		}
	}

	srcGUID, srcName := e.resolve(ev.Source.GUID, ev.Source.Name)
	dstGUID, dstName := e.resolve(ev.Dest.GUID, ev.Dest.Name)

	if model.IsPlayerGUID(srcGUID) {
		e.character(srcGUID, srcName).AddDamageDone(ev)
	} else if srcGUID != "" {
		if f := e.current.CurrentFight(); f != nil {
			npc := f.Enemy(srcGUID, srcName)
			if !ev.Derived {
				npc.DamageDone += dealtAmount(ev)
			}
			npc.ObserveAbility(ev.Spell)
		} else {
			e.stats.RouteErrors++
		}
	}

	if model.IsPlayerGUID(dstGUID) {
		e.character(dstGUID, dstName).AddDamageTaken(ev)
	} else if dstGUID != "" {
		if f := e.current.CurrentFight(); f != nil {
			if !ev.Derived {
				f.Enemy(dstGUID, dstName).DamageTaken += dealtAmount(ev)
			}
		} else {
			e.stats.RouteErrors++
		}
	}
}

func dealtAmount(ev *model.DamageEvent) int64 {
	dealt := ev.Amount - ev.Overkill
	if dealt < 0 {
		return 0
	}
	return dealt
}

func (e *Engine) routeHeal(ev *model.HealEvent) {
	srcGUID, srcName := e.resolve(ev.Source.GUID, ev.Source.Name)
	dstGUID, dstName := e.resolve(ev.Dest.GUID, ev.Dest.Name)

	if model.IsPlayerGUID(srcGUID) {
		e.character(srcGUID, srcName).AddHealingDone(ev)
	} else if srcGUID != "" {
		if f := e.current.CurrentFight(); f != nil {
			npc := f.Enemy(srcGUID, srcName)
			npc.HealingDone += ev.Effective()
			npc.ObserveAbility(ev.Spell)
		} else {
			e.stats.RouteErrors++
		}
	}

	if model.IsPlayerGUID(dstGUID) {
		e.character(dstGUID, dstName).AddHealingReceived(ev)
	} else if dstGUID != "" {
		if f := e.current.CurrentFight(); f != nil {
			f.Enemy(dstGUID, dstName).HealingTaken += ev.Effective()
		} else {
			e.stats.RouteErrors++
		}
	}
}

func (e *Engine) routeAura(ev *model.AuraEvent) {
	dstGUID, dstName := e.resolve(ev.Dest.GUID, ev.Dest.Name)
	if !model.IsPlayerGUID(dstGUID) {
		return
	}
	e.character(dstGUID, dstName).AddAura(ev, e.classifyBuff(ev))
}

// classifyBuff decides buff vs. debuff. The explicit BUFF/DEBUFF field
// wins when present. Without it, known major cooldowns are buffs, and a
// friendly-to-friendly aura is assumed to be a buff. That assumption is
// a long-standing approximation, not a guarantee.
func (e *Engine) classifyBuff(ev *model.AuraEvent) bool {
	switch ev.AuraType {
	case "BUFF":
		return true
	case "DEBUFF":
		return false
	}
	if e.tables.IsMajorCooldown(ev.Spell.ID) {
		return true
	}
	srcGUID, _ := e.resolve(ev.Source.GUID, ev.Source.Name)
	dstGUID, _ := e.resolve(ev.Dest.GUID, ev.Dest.Name)
	return model.IsPlayerGUID(srcGUID) && model.IsPlayerGUID(dstGUID)
}

func (e *Engine) routeCast(ev *model.CastEvent) {
	srcGUID, srcName := e.resolve(ev.Source.GUID, ev.Source.Name)
	if model.IsPlayerGUID(srcGUID) {
		c := e.character(srcGUID, srcName)
		c.Casts = append(c.Casts, ev)
		return
	}
	if srcGUID != "" {
		if f := e.current.CurrentFight(); f != nil {
			f.Enemy(srcGUID, srcName).ObserveAbility(ev.Spell)
		}
	}
}
