package export

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pullwatch/pullwatch/internal/model"
	"github.com/pullwatch/pullwatch/pkg/telemetry"
)

func sampleEncounters() []*model.Encounter {
	t0 := time.Date(2025, 3, 14, 20, 30, 0, 0, time.UTC)

	enc := model.NewEncounter(model.EncounterRaid, t0)
	enc.Name = "Drop Bear"
	enc.EncounterID = 2902
	enc.Difficulty = "Heroic"
	enc.Pull = 1
	enc.EndTime = t0.Add(4 * time.Minute)
	enc.Success = true
	enc.Closed = true
	enc.Fights = append(enc.Fights, model.NewFight("Drop Bear", 1, true, t0))

	c := model.NewCharacter("Player-1329-09AB32C1", "Thraka")
	c.Role = model.RoleDamage
	c.TotalDamageDone = 123456
	c.DPS = 514.4
	enc.Characters[c.GUID] = c

	h := model.NewCharacter("Player-1329-0E5F6A7B", "Lumina")
	h.Role = model.RoleHealer
	h.TotalHealingDone = 98765
	enc.Characters[h.GUID] = h

	return []*model.Encounter{enc}
}

func TestWriteJSON(t *testing.T) {
	report := NewReport("combat.log", sampleEncounters(), telemetry.Snapshot{LinesProcessed: 5})
	require.NotEmpty(t, report.ID)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, report))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, report.ID, decoded["id"])
	assert.Equal(t, "combat.log", decoded["source"])

	encounters, ok := decoded["encounters"].([]interface{})
	require.True(t, ok)
	require.Len(t, encounters, 1)
	first := encounters[0].(map[string]interface{})
	assert.Equal(t, "Drop Bear", first["name"])
	assert.Equal(t, true, first["success"])

	chars := first["characters"].(map[string]interface{})
	assert.Len(t, chars, 2)
}

func TestParquetWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewParquetWriter(&buf, "report-1")
	require.NoError(t, err)

	require.NoError(t, w.WriteEncounters(sampleEncounters()))
	require.NoError(t, w.Close())

	// One row per character.
	assert.Equal(t, int64(2), w.RowsWritten())
	assert.NotZero(t, buf.Len())
	// Parquet files end with the PAR1 magic.
	require.GreaterOrEqual(t, buf.Len(), 4)
	assert.Equal(t, "PAR1", string(buf.Bytes()[buf.Len()-4:]))
}

func TestParquetWriterClosedRejectsWrites(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewParquetWriter(&buf, "report-2")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Error(t, w.WriteEncounters(sampleEncounters()))
	assert.NoError(t, w.Close())
}
