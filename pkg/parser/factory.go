package parser

import (
	"sync/atomic"
	"time"

	"github.com/pullwatch/pullwatch/internal/model"
)

// maxPlausibleAmount bounds the sanity check on damage/heal amounts.
// A value outside [0, 2^53) almost always means the suffix offset was
// wrong and an unrelated field was read as the amount.
const maxPlausibleAmount = int64(1) << 53

// FactoryStats are the factory's absorbed-failure counters. All
// anomalies are reflected here and never abort a run.
type FactoryStats struct {
	UnknownTags              int64
	MalformedCombatantBlocks int64
	AmountMismatches         int64
}

// eventKind is the closed dispatch target chosen per tag at factory
// construction, replacing per-line string matching.
type eventKind uint8

const (
	kindDamage eventKind = iota
	kindDerivedDamage
	kindHeal
	kindAuraApplied
	kindAuraRemoved
	kindCast
	kindDeath
	kindSummon
	kindEncounterStart
	kindEncounterEnd
	kindChallengeStart
	kindChallengeEnd
	kindCombatantInfo
	kindIgnored
)

// tagKinds enumerates every tag the factory models. Tags absent from
// this table produce no event.
var tagKinds = map[string]eventKind{
	"SWING_DAMAGE": kindDamage,
	// Not derived: when advanced logging is off, LANDED may be the only
	// record of a hit. The segmenter's signature dedup suppresses the
	// duplicate when both lines appear.
	"SWING_DAMAGE_LANDED": kindDamage,
	"RANGE_DAMAGE":          kindDamage,
	"SPELL_DAMAGE":          kindDamage,
	"SPELL_PERIODIC_DAMAGE": kindDamage,
	"SPELL_BUILDING_DAMAGE": kindDamage,
	"DAMAGE_SHIELD":         kindDamage,
	"DAMAGE_SPLIT":          kindDerivedDamage,
	"ENVIRONMENTAL_DAMAGE":  kindDamage,

	"SPELL_HEAL":          kindHeal,
	"SPELL_PERIODIC_HEAL": kindHeal,
	"SPELL_BUILDING_HEAL": kindHeal,

	"SPELL_AURA_APPLIED":      kindAuraApplied,
	"SPELL_AURA_APPLIED_DOSE": kindAuraApplied,
	"SPELL_AURA_REFRESH":      kindAuraApplied,
	"SPELL_AURA_REMOVED":      kindAuraRemoved,
	"SPELL_AURA_REMOVED_DOSE": kindAuraRemoved,

	"SPELL_CAST_START":   kindCast,
	"SPELL_CAST_SUCCESS": kindCast,

	"UNIT_DIED":       kindDeath,
	"UNIT_DESTROYED":  kindDeath,
	"UNIT_DISSIPATES": kindDeath,

	"SPELL_SUMMON": kindSummon,

	"ENCOUNTER_START":      kindEncounterStart,
	"ENCOUNTER_END":        kindEncounterEnd,
	"CHALLENGE_MODE_START": kindChallengeStart,
	"CHALLENGE_MODE_END":   kindChallengeEnd,
	"COMBATANT_INFO":       kindCombatantInfo,

	// Recognized markers with no event variant.
	"COMBAT_LOG_VERSION": kindIgnored,
	"ZONE_CHANGE":        kindIgnored,
	"MAP_CHANGE":         kindIgnored,
}

// Factory maps ParsedLines to event variants. Safe to reuse across
// lines; not safe to share across goroutines (each worker owns one).
type Factory struct {
	stats FactoryStats
}

// NewFactory creates an event factory.
func NewFactory() *Factory {
	return &Factory{}
}

// Stats returns a snapshot of the absorbed-failure counters.
func (f *Factory) Stats() FactoryStats {
	return FactoryStats{
		UnknownTags:              atomic.LoadInt64(&f.stats.UnknownTags),
		MalformedCombatantBlocks: atomic.LoadInt64(&f.stats.MalformedCombatantBlocks),
		AmountMismatches:         atomic.LoadInt64(&f.stats.AmountMismatches),
	}
}

// CreateEvent builds the narrowest matching event variant, or nil for
// tags with no defined variant. It never returns an error: all
// anomalies are absorbed into Stats.
func (f *Factory) CreateEvent(line *ParsedLine) model.Event {
	kind, ok := tagKinds[line.Tag]
	if !ok {
		atomic.AddInt64(&f.stats.UnknownTags, 1)
		return nil
	}

	switch kind {
	case kindDamage:
		return f.damageEvent(line, false)
	case kindDerivedDamage:
		return f.damageEvent(line, true)
	case kindHeal:
		return f.healEvent(line)
	case kindAuraApplied:
		return f.auraEvent(line, true)
	case kindAuraRemoved:
		return f.auraEvent(line, false)
	case kindCast:
		return &model.CastEvent{EventBase: f.eventBase(line), Spell: spellInfo(line)}
	case kindDeath:
		return &model.DeathEvent{EventBase: f.eventBase(line)}
	case kindSummon:
		return &model.SummonEvent{EventBase: f.eventBase(line), Spell: spellInfo(line)}
	case kindEncounterStart, kindEncounterEnd:
		return f.encounterBoundary(line, kind == kindEncounterStart)
	case kindChallengeStart:
		return f.challengeStart(line)
	case kindChallengeEnd:
		return f.challengeEnd(line)
	case kindCombatantInfo:
		return f.combatantInfo(line)
	default:
		return nil
	}
}

// at is a bounds-safe suffix read; out-of-range positions read as nil
// fields, matching the log's own "nil" convention.
func at(values []Value, i int) Value {
	if i < 0 || i >= len(values) {
		return Value{Kind: ValueNil}
	}
	return values[i]
}

func unitAt(base []Value, off int) model.Unit {
	return model.Unit{
		GUID:      at(base, off).Str(),
		Name:      at(base, off+1).Str(),
		Flags:     at(base, off+2).Int(),
		RaidFlags: at(base, off+3).Int(),
	}
}

func (f *Factory) eventBase(line *ParsedLine) model.EventBase {
	return model.EventBase{
		Time:   line.Time,
		Tag:    line.Tag,
		Source: unitAt(line.Base, 0),
		Dest:   unitAt(line.Base, 4),
		Raw:    line.Raw,
	}
}

func spellInfo(line *ParsedLine) model.SpellInfo {
	if len(line.Prefix) == 1 {
		// Environmental damage carries only the environment type.
		return model.SpellInfo{Name: line.Prefix[0].Str()}
	}
	return model.SpellInfo{
		ID:     at(line.Prefix, 0).Int(),
		Name:   at(line.Prefix, 1).Str(),
		School: at(line.Prefix, 2).Int(),
	}
}

// payloadOffset picks where the damage/heal payload starts in the
// suffix: advanced logging inserts a 19-field snapshot before it. This
// must exactly mirror the tokenizer's latch; reading the wrong offset
// silently yields a bogus amount, which checkAmount catches.
func (f *Factory) payloadOffset(line *ParsedLine) int {
	if !line.Advanced {
		return 0
	}
	if AdvancedBlockSize >= len(line.Suffix) {
		// Advanced flag is latched but the payload is short: fall back
		// rather than reading past the suffix.
		atomic.AddInt64(&f.stats.AmountMismatches, 1)
		return 0
	}
	return AdvancedBlockSize
}

// checkAmount validates the derived amount field is numeric and within
// a plausible range, counting (not failing) mismatches.
func (f *Factory) checkAmount(v Value) int64 {
	if v.Kind != ValueInt || v.I < 0 || v.I >= maxPlausibleAmount {
		atomic.AddInt64(&f.stats.AmountMismatches, 1)
	}
	return v.Int()
}

func (f *Factory) damageEvent(line *ParsedLine, derived bool) model.Event {
	off := f.payloadOffset(line)
	s := line.Suffix
	return &model.DamageEvent{
		EventBase: f.eventBase(line),
		Spell:     spellInfo(line),
		Amount:    f.checkAmount(at(s, off)),
		Overkill:  positive(at(s, off+1).Int()),
		School:    at(s, off+2).Int(),
		Resisted:  positive(at(s, off+3).Int()),
		Blocked:   positive(at(s, off+4).Int()),
		Absorbed:  positive(at(s, off+5).Int()),
		Critical:  at(s, off+6).Truthy(),
		Derived:   derived,
	}
}

func (f *Factory) healEvent(line *ParsedLine) model.Event {
	off := f.payloadOffset(line)
	s := line.Suffix
	return &model.HealEvent{
		EventBase:   f.eventBase(line),
		Spell:       spellInfo(line),
		Amount:      f.checkAmount(at(s, off)),
		Overhealing: positive(at(s, off+1).Int()),
		Absorbed:    positive(at(s, off+2).Int()),
		Critical:    at(s, off+3).Truthy(),
	}
}

func (f *Factory) auraEvent(line *ParsedLine, applied bool) model.Event {
	auraType := ""
	if v := at(line.Suffix, 0); v.Kind == ValueText && (v.S == "BUFF" || v.S == "DEBUFF") {
		auraType = v.S
	}
	return &model.AuraEvent{
		EventBase: f.eventBase(line),
		Spell:     spellInfo(line),
		AuraType:  auraType,
		Applied:   applied,
	}
}

func (f *Factory) encounterBoundary(line *ParsedLine, start bool) model.Event {
	s := line.Suffix
	ev := &model.EncounterBoundaryEvent{
		EventBase:    f.eventBase(line),
		EncounterID:  at(s, 0).Int(),
		Name:         at(s, 1).Str(),
		DifficultyID: at(s, 2).Int(),
		GroupSize:    at(s, 3).Int(),
		Start:        start,
	}
	if !start {
		ev.Success = at(s, 4).Truthy()
	}
	return ev
}

func (f *Factory) challengeStart(line *ParsedLine) model.Event {
	s := line.Suffix
	return &model.ChallengeBoundaryEvent{
		EventBase:     f.eventBase(line),
		ZoneName:      at(s, 0).Str(),
		InstanceID:    at(s, 1).Int(),
		ChallengeID:   at(s, 2).Int(),
		KeystoneLevel: at(s, 3).Int(),
		Affixes:       ParseAffixList(at(s, 4)),
		Start:         true,
	}
}

func (f *Factory) challengeEnd(line *ParsedLine) model.Event {
	s := line.Suffix
	return &model.ChallengeBoundaryEvent{
		EventBase:     f.eventBase(line),
		InstanceID:    at(s, 0).Int(),
		Success:       at(s, 1).Truthy(),
		KeystoneLevel: at(s, 2).Int(),
		RunTime:       time.Duration(at(s, 3).Int()) * time.Millisecond,
	}
}

func (f *Factory) combatantInfo(line *ParsedLine) model.Event {
	blocks, err := ScanCombatantBlocks(line.Suffix)
	if err != nil {
		atomic.AddInt64(&f.stats.MalformedCombatantBlocks, 1)
	}
	return &model.CombatantInfoEvent{
		EventBase:  f.eventBase(line),
		PlayerGUID: at(line.Suffix, 0).Str(),
		SpecID:     at(line.Suffix, 23).Int(),
		Equipment:  blocks.Equipment,
		Talents:    blocks.Talents,
	}
}

func positive(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
