package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/pullwatch/pullwatch/internal/model"
	"github.com/pullwatch/pullwatch/pkg/telemetry"
)

var (
	accent = lipgloss.Color("#FFB433")
	green  = lipgloss.Color("#00CC66")
	red    = lipgloss.Color("#FF5555")
	muted  = lipgloss.Color("#666666")
	white  = lipgloss.Color("#FFFFFF")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(white)
	nameStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	killStyle  = lipgloss.NewStyle().Foreground(green).Bold(true)
	wipeStyle  = lipgloss.NewStyle().Foreground(red).Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(muted)
)

func renderSummary(encounters []*model.Encounter, counters telemetry.Snapshot, elapsed time.Duration) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%d encounters", len(encounters))))
	b.WriteString("\n")
	for _, enc := range encounters {
		b.WriteString(renderEncounter(enc))
		b.WriteString("\n")
	}
	b.WriteString(mutedStyle.Render(fmt.Sprintf("processed in %s", elapsed.Round(time.Millisecond))))
	b.WriteString("\n")
	b.WriteString(renderCounters(counters))
	return b.String()
}

func renderEncounter(enc *model.Encounter) string {
	result := killStyle.Render("kill")
	if enc.Kind == model.EncounterMythicPlus {
		result = killStyle.Render("timed")
	}
	if !enc.Success {
		result = wipeStyle.Render("wipe")
	}

	head := fmt.Sprintf("%s %s  %s  %s",
		nameStyle.Render(enc.Name),
		mutedStyle.Render(describe(enc)),
		result,
		enc.Duration().Round(time.Second),
	)

	lines := []string{head}
	for _, c := range topCharacters(enc, 5) {
		lines = append(lines, fmt.Sprintf("  %-20s %8s %10.0f dps %9.0f hps  %5.1f%% active",
			c.Name, c.Role, c.DPS, c.HPS, c.ActivePct))
	}
	return strings.Join(lines, "\n")
}

func describe(enc *model.Encounter) string {
	if enc.Kind == model.EncounterMythicPlus {
		return fmt.Sprintf("(+%d, pull %d)", enc.KeystoneLevel, enc.Pull)
	}
	if enc.Difficulty != "" {
		return fmt.Sprintf("(%s, pull %d)", enc.Difficulty, enc.Pull)
	}
	return fmt.Sprintf("(pull %d)", enc.Pull)
}

// topCharacters returns up to n characters by damage done.
func topCharacters(enc *model.Encounter, n int) []*model.Character {
	chars := make([]*model.Character, 0, len(enc.Characters))
	for _, c := range enc.Characters {
		chars = append(chars, c)
	}
	sort.Slice(chars, func(i, j int) bool {
		return chars[i].TotalDamageDone > chars[j].TotalDamageDone
	})
	if len(chars) > n {
		chars = chars[:n]
	}
	return chars
}

func renderCounters(s telemetry.Snapshot) string {
	parts := []string{
		fmt.Sprintf("%d lines", s.LinesProcessed),
		fmt.Sprintf("%d events", s.EventsProcessed),
		fmt.Sprintf("%.0f lines/s", s.LinesPerSecond),
	}
	if s.ParseErrors > 0 {
		parts = append(parts, fmt.Sprintf("%d parse errors", s.ParseErrors))
	}
	if s.DedupedSwings > 0 {
		parts = append(parts, fmt.Sprintf("%d deduped swings", s.DedupedSwings))
	}
	if s.AmountMismatches > 0 {
		parts = append(parts, fmt.Sprintf("%d amount mismatches", s.AmountMismatches))
	}
	if s.BoundaryFailures > 0 {
		parts = append(parts, fmt.Sprintf("%d boundary failures", s.BoundaryFailures))
	}
	return mutedStyle.Render(strings.Join(parts, " · "))
}
