package process

import (
	"bytes"
	"sort"

	"github.com/pullwatch/pullwatch/internal/model"
	"github.com/pullwatch/pullwatch/internal/pool"
)

// Boundary is a self-contained top-level byte range of the input file:
// one raid pull or one complete dungeon run. Boundaries never overlap
// and are sorted by start offset. Driver-internal; never exposed
// downstream.
type Boundary struct {
	Start int64
	End   int64
	Kind  model.EncounterKind
	Name  string
}

var (
	sepBytes          = []byte("  ")
	tagChallengeStart = []byte("CHALLENGE_MODE_START")
	tagChallengeEnd   = []byte("CHALLENGE_MODE_END")
	tagEncounterStart = []byte("ENCOUNTER_START")
	tagEncounterEnd   = []byte("ENCOUNTER_END")
	tagVersion        = []byte("COMBAT_LOG_VERSION")
	advancedMarker    = []byte("ADVANCED_LOG_ENABLED,1")
)

// lineTag extracts the event-type tag of a raw line, or nil when the
// line does not match the timestamp grammar's separator.
func lineTag(line []byte) []byte {
	sep := bytes.Index(line, sepBytes)
	if sep < 0 {
		return nil
	}
	rest := line[sep+2:]
	if comma := bytes.IndexByte(rest, ','); comma >= 0 {
		return rest[:comma]
	}
	return rest
}

// lineName pulls the quoted display-name field that follows the tag and
// one id field on boundary lines. Best effort; empty on any mismatch.
func lineName(line []byte) string {
	sep := bytes.Index(line, sepBytes)
	if sep < 0 {
		return ""
	}
	fields := bytes.Split(line[sep+2:], []byte(","))
	if len(fields) < 3 {
		return ""
	}
	name := bytes.Trim(fields[2], `"`)
	return string(name)
}

// DiscoverBoundaries runs the two linear scans: challenge ranges first,
// then encounter ranges excluding any fully nested inside a challenge
// range. An unmatched start extends to end of data so a truncated log
// still yields its partial encounter.
func DiscoverBoundaries(data []byte) []Boundary {
	challenges := scanRanges(data, tagChallengeStart, tagChallengeEnd, model.EncounterMythicPlus)
	encounters := scanRanges(data, tagEncounterStart, tagEncounterEnd, model.EncounterRaid)

	out := make([]Boundary, 0, len(challenges)+len(encounters))
	out = append(out, challenges...)
	for _, enc := range encounters {
		if nestedIn(enc, challenges) {
			continue
		}
		out = append(out, enc)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// scanRanges collects [start-line offset, end-line end offset] ranges
// for one start/end tag pair. Ranges of the same kind never nest, so a
// second start before an end simply extends the open range.
func scanRanges(data []byte, startTag, endTag []byte, kind model.EncounterKind) []Boundary {
	var ranges []Boundary
	var open *Boundary

	lb := pool.NewLineBuffer(data)
	for lb.HasMore() {
		lineStart := int64(lb.Offset())
		line := lb.NextLine()
		if len(line) == 0 {
			continue
		}
		tag := lineTag(line)
		if tag == nil {
			continue
		}

		switch {
		case bytes.Equal(tag, startTag):
			if open == nil {
				ranges = append(ranges, Boundary{Start: lineStart, Kind: kind, Name: lineName(line)})
				open = &ranges[len(ranges)-1]
			}
		case bytes.Equal(tag, endTag):
			if open != nil {
				open.End = int64(lb.Offset())
				open = nil
			}
		}
	}

	if open != nil {
		open.End = int64(len(data))
	}
	return ranges
}

// AdvancedLatchOffset returns the byte offset of the first
// COMBAT_LOG_VERSION line that enables advanced logging, or -1 when no
// line does. A sequential pipeline latches the flag in stream order;
// parallel workers start mid-file, so any worker whose range begins
// after this offset must have its tokenizer pre-latched or every
// damage/heal payload in the range is read at the wrong suffix offset.
func AdvancedLatchOffset(data []byte) int64 {
	lb := pool.NewLineBuffer(data)
	for lb.HasMore() {
		lineStart := int64(lb.Offset())
		line := lb.NextLine()
		if len(line) == 0 || !bytes.Equal(lineTag(line), tagVersion) {
			continue
		}
		if bytes.Contains(line, advancedMarker) {
			return lineStart
		}
	}
	return -1
}

func nestedIn(b Boundary, outer []Boundary) bool {
	for _, o := range outer {
		if b.Start >= o.Start && b.End <= o.End {
			return true
		}
	}
	return false
}
