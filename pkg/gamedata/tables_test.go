package gamedata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pullwatch/pullwatch/internal/model"
)

func TestDefaultLookups(t *testing.T) {
	tables := Default()

	assert.Equal(t, "Heroic", tables.DifficultyName(15))
	assert.Equal(t, "Mythic", tables.DifficultyName(16))
	assert.Equal(t, "Unknown (999)", tables.DifficultyName(999))

	assert.Equal(t, model.RoleHealer, tables.RoleForSpec(257))
	assert.Equal(t, model.RoleTank, tables.RoleForSpec(250))
	assert.Equal(t, model.RoleDamage, tables.RoleForSpec(62))
	assert.Equal(t, model.RoleUnknown, tables.RoleForSpec(0))

	assert.Equal(t, "Tyrannical", tables.AffixName(9))
	assert.Equal(t, "Unknown (42)", tables.AffixName(42))

	assert.True(t, tables.IsMajorCooldown(2825))
	assert.True(t, tables.IsMajorCooldown(10060))
	assert.False(t, tables.IsMajorCooldown(1))

	assert.True(t, tables.IsTauntSpell(355))
	assert.False(t, tables.IsTauntSpell(2825))
}

func TestOverlayMerge(t *testing.T) {
	tables := Default()

	overlay := []byte(`
difficulties:
  200: "Fated Heroic"
roles:
  1999: healer
affixes:
  160: "Peril"
major_cooldowns: [47788]
taunts: [17735]
`)
	require.NoError(t, tables.ApplyOverlay(overlay))

	assert.Equal(t, "Fated Heroic", tables.DifficultyName(200))
	assert.Equal(t, model.RoleHealer, tables.RoleForSpec(1999))
	assert.Equal(t, "Peril", tables.AffixName(160))
	assert.True(t, tables.IsMajorCooldown(47788))
	assert.True(t, tables.IsTauntSpell(17735))

	// Defaults survive the merge.
	assert.Equal(t, "Heroic", tables.DifficultyName(15))
}

func TestOverlayRejectsBadRole(t *testing.T) {
	tables := Default()
	err := tables.ApplyOverlay([]byte("roles:\n  7: warlord\n"))
	assert.Error(t, err)
}
