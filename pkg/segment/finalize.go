package segment

import (
	"sort"
	"time"

	"github.com/pullwatch/pullwatch/internal/model"
	"github.com/pullwatch/pullwatch/pkg/gamedata"
)

// ComputeMetrics derives every per-character and encounter-level figure
// from the accumulated totals. It is idempotent: running it again after
// a parallel merge recomputes the same values, because it only reads
// the totals built up during routing and never feeds back into them.
func ComputeMetrics(enc *model.Encounter, tables gamedata.Tables) {
	raidDur := enc.Duration()
	combatDur := enc.CombatTime()
	raidSec := raidDur.Seconds()
	combatSec := combatDur.Seconds()

	var m model.EncounterMetrics
	m.RaidDuration = raidDur
	m.CombatDuration = combatDur

	var ilvlSum, activitySum float64
	var ilvlN int

	for _, c := range enc.Characters {
		c.Role = detectRole(c, tables)

		c.DPS = rate(c.TotalDamageDone, raidSec)
		c.HPS = rate(c.TotalHealingDone, raidSec)
		c.CombatDPS = rate(c.TotalDamageDone, combatSec)
		c.CombatHPS = rate(c.TotalHealingDone, combatSec)

		active := characterActiveTime(c)
		if raidDur > 0 {
			c.ActivePct = float64(active) / float64(raidDur) * 100
			if c.ActivePct > 100 {
				c.ActivePct = 100
			}
		} else {
			c.ActivePct = 0
		}

		finalizeAbilities(c.DamageAbilities, c.TotalDamageDone)
		finalizeAbilities(c.HealingAbilities, c.TotalHealingDone)

		m.TotalDamage += c.TotalDamageDone
		m.TotalHealing += c.TotalHealingDone
		m.TotalDeaths += int64(len(c.Deaths))
		activitySum += c.ActivePct
		if c.ItemLevel > 0 {
			ilvlSum += c.ItemLevel
			ilvlN++
		}
	}

	m.RaidDPS = rate(m.TotalDamage, raidSec)
	m.CombatDPS = rate(m.TotalDamage, combatSec)
	m.RaidHPS = rate(m.TotalHealing, raidSec)
	m.CombatHPS = rate(m.TotalHealing, combatSec)
	if ilvlN > 0 {
		m.AvgItemLevel = ilvlSum / float64(ilvlN)
	}
	if n := len(enc.Characters); n > 0 {
		m.AvgActivity = activitySum / float64(n)
	}

	enc.Metrics = m
}

func rate(total int64, seconds float64) float64 {
	if seconds <= 0 {
		return 0
	}
	return float64(total) / seconds
}

// detectRole picks the character's role. The spec lookup is
// authoritative when a COMBATANT_INFO snapshot supplied one; otherwise
// a taunt cast marks a tank and a healing-dominated output marks a
// healer.
func detectRole(c *model.Character, tables gamedata.Tables) model.Role {
	if c.SpecID != 0 {
		if r := tables.RoleForSpec(c.SpecID); r != model.RoleUnknown {
			return r
		}
	}
	for _, cast := range c.Casts {
		if tables.IsTauntSpell(cast.Spell.ID) {
			return model.RoleTank
		}
	}
	if c.TotalHealingDone > 0 && c.TotalHealingDone > 2*c.TotalDamageDone {
		return model.RoleHealer
	}
	return model.RoleDamage
}

// finalizeAbilities fills in the derived fields of each breakdown entry
// from its accumulated counters.
func finalizeAbilities(abilities map[int64]*model.AbilityMetrics, total int64) {
	for _, am := range abilities {
		if am.Hits > 0 {
			am.Average = float64(am.Total) / float64(am.Hits)
			am.CritPct = float64(am.Crits) / float64(am.Hits) * 100
		} else {
			am.Average = 0
			am.CritPct = 0
		}
		if total > 0 {
			am.Share = float64(am.Total) / float64(total) * 100
		} else {
			am.Share = 0
		}
	}
}

// characterActiveTime sums the combat periods of one character's own
// output events, using the same gap threshold as the encounter-level
// detector.
func characterActiveTime(c *model.Character) time.Duration {
	times := make([]time.Time, 0, len(c.DamageDone)+len(c.HealingDone)+len(c.Casts))
	for _, ev := range c.DamageDone {
		times = append(times, ev.Time)
	}
	for _, ev := range c.HealingDone {
		times = append(times, ev.Time)
	}
	for _, ev := range c.Casts {
		times = append(times, ev.Time)
	}
	if len(times) == 0 {
		return 0
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	var active time.Duration
	start, end := times[0], times[0]
	for _, ts := range times[1:] {
		if ts.Sub(end) > DefaultGapThreshold {
			active += end.Sub(start)
			start = ts
		}
		end = ts
	}
	active += end.Sub(start)
	return active
}
