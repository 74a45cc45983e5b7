package parser

import (
	"strconv"
	"strings"

	"github.com/pullwatch/pullwatch/internal/model"
)

// Balanced-bracket extraction for COMBATANT_INFO. Equipment and talent
// blocks are nested bracket-delimited lists whose entries themselves
// contain commas, so naive splitting breaks them; an explicit
// depth-counting scanner over `[`/`]` and `(`/`)` is used instead.

// CombatantBlocks is the result of scanning one COMBATANT_INFO payload.
type CombatantBlocks struct {
	Equipment []model.EquipmentItem
	Talents   []model.Talent
}

// ScanCombatantBlocks extracts the equipment and talent sub-lists from
// a COMBATANT_INFO suffix. Bracket groups survive tokenization as
// single text fields; a group whose tuples carry item shapes (three or
// more elements) is the equipment block, a group of (spell id, rank)
// pairs is the talent block. Malformed sections yield a nil sub-list
// and a non-nil error; the event is still usable.
func ScanCombatantBlocks(suffix []Value) (CombatantBlocks, error) {
	var blocks CombatantBlocks
	var scanErr error

	for _, v := range suffix {
		if v.Kind != ValueText || !strings.HasPrefix(v.S, "[") {
			continue
		}

		entries, ok := splitGroup(v.S)
		if !ok {
			scanErr = ErrMalformedCombatantBlock
			continue
		}
		if len(entries) == 0 {
			continue
		}

		if blocks.Equipment == nil {
			if eq, ok := parseEquipment(entries); ok {
				blocks.Equipment = eq
				continue
			}
		}
		if blocks.Talents == nil {
			if tl, ok := parseTalents(entries); ok {
				blocks.Talents = tl
			}
		}
	}

	return blocks, scanErr
}

// splitGroup strips the outer bracket pair of a `[...]`/`(...)` group
// and splits its contents on top-level commas, tracking nesting depth
// across both bracket kinds. Returns ok=false on unbalanced input.
func splitGroup(s string) ([]string, bool) {
	if len(s) < 2 {
		return nil, false
	}
	first, last := s[0], s[len(s)-1]
	if !(first == '[' && last == ']') && !(first == '(' && last == ')') {
		return nil, false
	}

	inner := s[1 : len(s)-1]
	if inner == "" {
		return nil, true
	}

	var entries []string
	depth := 0
	start := 0
	for i := 0; i < len(inner); i++ {
		switch inner[i] {
		case '[', '(':
			depth++
		case ']', ')':
			depth--
			if depth < 0 {
				return nil, false
			}
		case ',':
			if depth == 0 {
				entries = append(entries, inner[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, false
	}
	entries = append(entries, inner[start:])
	return entries, true
}

// parseEquipment interprets entries as item tuples:
// (itemID, itemLevel, (enchants), (gems), (bonuses)).
func parseEquipment(entries []string) ([]model.EquipmentItem, bool) {
	items := make([]model.EquipmentItem, 0, len(entries))
	for _, entry := range entries {
		elems, ok := splitGroup(entry)
		if !ok || len(elems) < 3 {
			return nil, false
		}

		itemID, err1 := strconv.ParseInt(elems[0], 10, 64)
		itemLevel, err2 := strconv.ParseInt(elems[1], 10, 64)
		if err1 != nil || err2 != nil {
			return nil, false
		}

		item := model.EquipmentItem{ItemID: itemID, ItemLevel: itemLevel}
		subs := elems[2:]
		if len(subs) > 0 {
			item.Enchants = parseIntGroup(subs[0])
		}
		if len(subs) > 1 {
			item.Gems = parseIntGroup(subs[1])
		}
		if len(subs) > 2 {
			item.Bonuses = parseIntGroup(subs[2])
		}
		items = append(items, item)
	}
	return items, true
}

// parseTalents interprets entries as (spell id, rank) pairs.
func parseTalents(entries []string) ([]model.Talent, bool) {
	talents := make([]model.Talent, 0, len(entries))
	for _, entry := range entries {
		elems, ok := splitGroup(entry)
		if !ok {
			// Older logs list bare spell ids without parens.
			if id, err := strconv.ParseInt(strings.TrimSpace(entry), 10, 64); err == nil {
				talents = append(talents, model.Talent{SpellID: id, Rank: 1})
				continue
			}
			return nil, false
		}
		if len(elems) != 2 && len(elems) != 3 {
			return nil, false
		}

		id, err1 := strconv.ParseInt(strings.TrimSpace(elems[0]), 10, 64)
		rank, err2 := strconv.ParseInt(strings.TrimSpace(elems[len(elems)-1]), 10, 64)
		if err1 != nil || err2 != nil {
			return nil, false
		}
		talents = append(talents, model.Talent{SpellID: id, Rank: rank})
	}
	return talents, true
}

// parseIntGroup parses a `(1,2,3)` style group into its integers.
// Non-group or empty input yields nil.
func parseIntGroup(s string) []int64 {
	elems, ok := splitGroup(s)
	if !ok || len(elems) == 0 {
		return nil
	}
	out := make([]int64, 0, len(elems))
	for _, e := range elems {
		n, err := strconv.ParseInt(strings.TrimSpace(e), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ParseAffixList parses a `[9,122,13]` affix group from a challenge
// boundary line.
func ParseAffixList(v Value) []int64 {
	if v.Kind != ValueText {
		return nil
	}
	return parseIntGroup(v.S)
}
