package segment

import (
	"time"

	"github.com/pullwatch/pullwatch/internal/model"
)

// buildDeathRecord snapshots the context of a player death: the most
// recent damage event against the character as the presumed killing
// blow, plus copies of the recent damage and healing windows. The
// copies keep the record stable as the ring buffers keep advancing.
func buildDeathRecord(c *model.Character, ts time.Time) *model.DeathRecord {
	rec := &model.DeathRecord{
		Time:          ts,
		RecentDamage:  append([]*model.DamageEvent(nil), c.RecentDamageTaken...),
		RecentHealing: append([]*model.HealEvent(nil), c.RecentHealingReceived...),
	}
	if blow := c.LastDamageTaken(); blow != nil {
		rec.KillingBlow = blow
		rec.Overkill = blow.Overkill
		rec.KillingSpell = blow.Spell.Name
		if rec.KillingSpell == "" {
			rec.KillingSpell = blow.Tag
		}
	}
	return rec
}
