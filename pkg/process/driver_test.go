package process

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pullwatch/pullwatch/internal/model"
	pwerrors "github.com/pullwatch/pullwatch/pkg/errors"
	"github.com/pullwatch/pullwatch/pkg/gamedata"
	"github.com/pullwatch/pullwatch/pkg/telemetry"
)

const (
	fxPlayer = `Player-1329-09AB32C1,"Thraka-Khadgar",0x512,0x0`
	fxBoss   = `Creature-0-3889-2549-28621-200927-00004D8E,"Drop Bear",0x10a48,0x0`
)

// ts renders the fixture timestamp at second offset sec.
func ts(sec int) string {
	return fmt.Sprintf("3/14/2025 20:%02d:%02d.000-5", 30+sec/60, sec%60)
}

func damageLine(sec int, amount int64) string {
	return fmt.Sprintf("%s  SPELL_DAMAGE,%s,%s,0,0,133,\"Fireball\",0x4,%d,0,4,0,0,0,nil,nil,nil",
		ts(sec), fxPlayer, fxBoss, amount)
}

func versionLine(sec int, advanced bool) string {
	flag := 0
	if advanced {
		flag = 1
	}
	return fmt.Sprintf("%s  COMBAT_LOG_VERSION,20,ADVANCED_LOG_ENABLED,%d,BUILD_VERSION,11.0.2,PROJECT_ID,1",
		ts(sec), flag)
}

// advancedDamageLine carries the 19-field snapshot before the payload.
// The first snapshot field is a plausible-looking bogus amount, so a
// pipeline reading at the wrong suffix offset shows up in the totals.
func advancedDamageLine(sec int, amount int64) string {
	snapshot := strings.TrimSuffix("999001,"+strings.Repeat("0,", 18), ",")
	return fmt.Sprintf("%s  SPELL_DAMAGE,%s,%s,0,0,133,\"Fireball\",0x4,%s,%d,0,4,0,0,0,nil,nil,nil",
		ts(sec), fxPlayer, fxBoss, snapshot, amount)
}

func advancedRaidPull(startSec int, id int64, name string, amounts []int64, success bool) []string {
	lines := []string{
		fmt.Sprintf("%s  ENCOUNTER_START,%d,%q,15,20", ts(startSec), id, name),
	}
	for i, amt := range amounts {
		lines = append(lines, advancedDamageLine(startSec+1+i, amt))
	}
	okFlag := 0
	if success {
		okFlag = 1
	}
	lines = append(lines,
		fmt.Sprintf("%s  ENCOUNTER_END,%d,%q,15,20,%d", ts(startSec+len(amounts)+1), id, name, okFlag))
	return lines
}

func healLine(sec int, amount int64) string {
	return fmt.Sprintf("%s  SPELL_HEAL,%s,%s,0,0,2060,\"Heal\",0x2,%d,0,0,nil",
		ts(sec), fxPlayer, fxPlayer, amount)
}

// raidPull renders one complete ENCOUNTER_START..END block.
func raidPull(startSec int, id int64, name string, amounts []int64, success bool) []string {
	lines := []string{
		fmt.Sprintf("%s  ENCOUNTER_START,%d,%q,15,20", ts(startSec), id, name),
	}
	for i, amt := range amounts {
		lines = append(lines, damageLine(startSec+1+i, amt))
	}
	okFlag := 0
	if success {
		okFlag = 1
	}
	lines = append(lines,
		fmt.Sprintf("%s  ENCOUNTER_END,%d,%q,15,20,%d", ts(startSec+len(amounts)+1), id, name, okFlag))
	return lines
}

func challengeRun(startSec int, nested bool) []string {
	lines := []string{
		fmt.Sprintf(`%s  CHALLENGE_MODE_START,"Halls of Valor",1477,200,18,[10,9]`, ts(startSec)),
		damageLine(startSec+1, 100),
	}
	if nested {
		lines = append(lines, raidPull(startSec+10, 1805, "Hymdall", []int64{900}, true)...)
	}
	lines = append(lines,
		fmt.Sprintf("%s  CHALLENGE_MODE_END,1477,1,18,1860000", ts(startSec+60)))
	return lines
}

func logText(blocks ...[]string) []byte {
	var all []string
	for _, b := range blocks {
		all = append(all, b...)
	}
	return []byte(strings.Join(all, "\n") + "\n")
}

func newTestProcessor(cfg Config) *Processor {
	return NewProcessor(zerolog.Nop(), gamedata.Default(), cfg)
}

func TestDiscoverBoundaries(t *testing.T) {
	data := logText(
		challengeRun(0, true),
		raidPull(120, 2902, "Drop Bear", []int64{500}, true),
		raidPull(240, 2902, "Drop Bear", []int64{400}, false),
	)

	boundaries := DiscoverBoundaries(data)
	require.Len(t, boundaries, 3)

	// Sorted by start; the encounter nested in the challenge run is
	// absorbed into it, not listed standalone.
	assert.Equal(t, model.EncounterMythicPlus, boundaries[0].Kind)
	assert.Equal(t, model.EncounterRaid, boundaries[1].Kind)
	assert.Equal(t, model.EncounterRaid, boundaries[2].Kind)

	for i := 0; i < len(boundaries)-1; i++ {
		assert.Less(t, boundaries[i].Start, boundaries[i+1].Start)
		assert.LessOrEqual(t, boundaries[i].End, boundaries[i+1].Start,
			"boundaries must not overlap")
	}
	last := boundaries[len(boundaries)-1]
	assert.LessOrEqual(t, last.End, int64(len(data)))
}

func TestDiscoverBoundariesNone(t *testing.T) {
	data := logText([]string{damageLine(0, 100), healLine(1, 50)})
	assert.Empty(t, DiscoverBoundaries(data))
}

func TestDiscoverBoundariesUnmatchedStart(t *testing.T) {
	data := logText([]string{
		fmt.Sprintf(`%s  ENCOUNTER_START,2902,"Drop Bear",15,20`, ts(0)),
		damageLine(1, 100),
	})

	boundaries := DiscoverBoundaries(data)
	require.Len(t, boundaries, 1)
	assert.Equal(t, int64(len(data)), boundaries[0].End)
}

func TestProcessDataScenario(t *testing.T) {
	data := logText(raidPull(0, 2902, "Drop Bear", []int64{400, 350, 250}, true))

	res, err := newTestProcessor(Config{}).ProcessData(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, res.Encounters, 1)

	enc := res.Encounters[0]
	assert.True(t, enc.Success)
	assert.Len(t, enc.Fights, 1)
	require.Len(t, enc.Characters, 1)

	c := enc.Characters["Player-1329-09AB32C1"]
	require.NotNil(t, c)
	assert.Equal(t, int64(1000), c.TotalDamageDone)

	assert.Equal(t, int64(5), res.Counters.LinesProcessed)
	assert.Equal(t, int64(1), res.Counters.EncountersProduced)
	assert.Zero(t, res.Counters.ParseErrors)
	assert.Empty(t, res.BoundaryErrors)
}

func TestParallelSequentialEquivalence(t *testing.T) {
	data := logText(
		raidPull(0, 2902, "Drop Bear", []int64{400, 350, 250}, false),
		challengeRun(120, true),
		raidPull(300, 2917, "Honey Badger", []int64{123, 321}, true),
	)

	par, err := newTestProcessor(Config{Workers: 4}).ProcessData(context.Background(), data)
	require.NoError(t, err)
	require.Empty(t, par.BoundaryErrors)

	seqCounters := telemetry.NewCounters()
	seqPipe := NewPipeline(zerolog.Nop(), gamedata.Default(), seqCounters)
	require.NoError(t, seqPipe.Run(context.Background(), data, nil))
	seq := seqPipe.Encounters()

	require.Equal(t, len(seq), len(par.Encounters))
	for i := range seq {
		assert.Equal(t, seq[i].Kind, par.Encounters[i].Kind)
		assert.Equal(t, seq[i].Name, par.Encounters[i].Name)
		assert.Equal(t, len(seq[i].Fights), len(par.Encounters[i].Fights))
		assert.Equal(t, len(seq[i].Characters), len(par.Encounters[i].Characters))
		assert.Equal(t, seq[i].Metrics.TotalDamage, par.Encounters[i].Metrics.TotalDamage)
		assert.Equal(t, seq[i].Metrics.TotalHealing, par.Encounters[i].Metrics.TotalHealing)
	}
}

// Worker ranges start at the boundary line and never contain the
// COMBAT_LOG_VERSION header, so their tokenizers must be seeded or
// every advanced payload is read at offset 0.
func TestParallelAdvancedOffsetEquivalence(t *testing.T) {
	data := logText(
		[]string{versionLine(0, true)},
		advancedRaidPull(10, 2902, "Drop Bear", []int64{400, 350, 250}, true),
		advancedRaidPull(120, 2917, "Honey Badger", []int64{123, 321}, false),
	)

	par, err := newTestProcessor(Config{Workers: 4}).ProcessData(context.Background(), data)
	require.NoError(t, err)
	require.Empty(t, par.BoundaryErrors)

	seqCounters := telemetry.NewCounters()
	seqPipe := NewPipeline(zerolog.Nop(), gamedata.Default(), seqCounters)
	require.NoError(t, seqPipe.Run(context.Background(), data, nil))
	seq := seqPipe.Encounters()

	require.Len(t, par.Encounters, 2)
	require.Equal(t, len(seq), len(par.Encounters))
	for i := range seq {
		assert.Equal(t, seq[i].Metrics.TotalDamage, par.Encounters[i].Metrics.TotalDamage)
	}
	assert.Equal(t, int64(1000), par.Encounters[0].Metrics.TotalDamage)
	assert.Equal(t, int64(444), par.Encounters[1].Metrics.TotalDamage)
	assert.Zero(t, par.Counters.AmountMismatches)
}

func TestAdvancedLatchOffset(t *testing.T) {
	noHeader := logText(raidPull(0, 2902, "Drop Bear", []int64{100}, true))
	assert.Equal(t, int64(-1), AdvancedLatchOffset(noHeader))

	disabled := logText([]string{versionLine(0, false)})
	assert.Equal(t, int64(-1), AdvancedLatchOffset(disabled))

	data := logText([]string{damageLine(0, 100), versionLine(1, true)})
	off := AdvancedLatchOffset(data)
	require.GreaterOrEqual(t, off, int64(0))
	assert.True(t, strings.HasPrefix(string(data[off:]), ts(1)),
		"offset must point at the enabling version line")
}

func TestSequentialFallbackNoBoundaries(t *testing.T) {
	var called bool
	cfg := Config{Progress: func(consumed, total int64) { called = true }}
	data := logText([]string{damageLine(0, 100), healLine(1, 50), "not a combat log line"})

	res, err := newTestProcessor(cfg).ProcessData(context.Background(), data)
	require.NoError(t, err)

	// Out-of-encounter events are dropped, not errors; the junk line is.
	assert.Empty(t, res.Encounters)
	assert.Equal(t, int64(3), res.Counters.LinesProcessed)
	assert.Equal(t, int64(1), res.Counters.ParseErrors)
	assert.True(t, called)
}

func TestProcessFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "combat.log")
	require.NoError(t, os.WriteFile(path, logText(raidPull(0, 2902, "Drop Bear", []int64{1000}, true)), 0o644))

	res, err := newTestProcessor(Config{}).ProcessFile(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, res.Encounters, 1)
}

func TestProcessFileMissing(t *testing.T) {
	_, err := newTestProcessor(Config{}).ProcessFile(context.Background(), "/nonexistent/combat.log")
	require.Error(t, err)
	assert.True(t, pwerrors.IsCode(err, pwerrors.CodeFileNotFound))
}

func TestProcessDataCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Enough lines to pass at least one cancellation checkpoint.
	pulls := make([][]string, 0, 8)
	for i := 0; i < 8; i++ {
		amounts := make([]int64, 1200)
		for j := range amounts {
			amounts[j] = 1
		}
		pulls = append(pulls, raidPull(i, 2902, "Drop Bear", amounts, false))
	}

	_, err := newTestProcessor(Config{}).ProcessData(ctx, logText(pulls...))
	require.Error(t, err)
}
