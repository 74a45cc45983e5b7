package segment

import (
	"time"

	"github.com/pullwatch/pullwatch/internal/model"
)

// DefaultGapThreshold is the inter-event gap that splits the encounter
// timeline into separate combat periods.
const DefaultGapThreshold = 5 * time.Second

// DetectPeriods partitions the event timeline into combat periods. Only
// combat activity (damage, heals, casts) advances a period; boundary
// and bookkeeping events do not count as combat. Events are assumed to
// be in stream order.
func DetectPeriods(events []model.Event, gap time.Duration) []model.CombatPeriod {
	if gap <= 0 {
		gap = DefaultGapThreshold
	}

	var periods []model.CombatPeriod
	var open bool
	var cur model.CombatPeriod

	for _, ev := range events {
		if !isCombatActivity(ev) {
			continue
		}
		ts := ev.Base().Time
		if !open {
			cur = model.CombatPeriod{Start: ts, End: ts}
			open = true
			continue
		}
		if ts.Sub(cur.End) > gap {
			periods = append(periods, cur)
			cur = model.CombatPeriod{Start: ts, End: ts}
			continue
		}
		cur.End = ts
	}
	if open {
		periods = append(periods, cur)
	}
	return periods
}

func isCombatActivity(ev model.Event) bool {
	switch ev.(type) {
	case *model.DamageEvent, *model.HealEvent, *model.CastEvent:
		return true
	}
	return false
}
