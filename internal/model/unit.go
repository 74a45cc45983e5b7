package model

import "strings"

// Unit identifies one participant of a combat event: a player, an NPC,
// or a summoned unit (pet/guardian/vehicle).
type Unit struct {
	GUID      string
	Name      string
	Flags     int64
	RaidFlags int64
}

// IsEmpty reports whether the unit slot was nil in the log line.
func (u Unit) IsEmpty() bool {
	return u.GUID == "" || u.GUID == "0000000000000000"
}

// summonedPrefixes are the GUID prefixes of units owned by another unit.
var summonedPrefixes = []string{"Pet-", "Guardian-", "Vehicle-"}

// IsPlayerGUID reports whether guid has the player identity shape.
func IsPlayerGUID(guid string) bool {
	return strings.HasPrefix(guid, "Player-")
}

// IsSummonedGUID reports whether guid belongs to a summoned unit
// (pet, guardian or vehicle) that resolves to an owning player.
func IsSummonedGUID(guid string) bool {
	for _, p := range summonedPrefixes {
		if strings.HasPrefix(guid, p) {
			return true
		}
	}
	return false
}

// IsCreatureGUID reports whether guid has the NPC shape.
func IsCreatureGUID(guid string) bool {
	return strings.HasPrefix(guid, "Creature-")
}
