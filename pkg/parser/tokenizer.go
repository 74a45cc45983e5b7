package parser

import (
	"bytes"
	"strings"
	"time"

	"github.com/pullwatch/pullwatch/internal/pool"
)

// BaseBlockSize is the fixed arity of the source/dest identity block
// carried by all combat events: source GUID, source name, source flags
// x2, dest GUID, dest name, dest flags x2.
const BaseBlockSize = 10

// AdvancedBlockSize is the arity of the attacker resource/position/aura
// snapshot that advanced logging inserts before damage/heal payloads.
const AdvancedBlockSize = 19

// timestampSeparator splits the timestamp from the event payload.
var timestampSeparator = []byte("  ")

// ParsedLine is one tokenized log line: timestamp, event-type tag and
// the three ordered field groups. Advanced snapshots whether advanced
// logging was latched when the line was parsed; the factory uses it to
// pick the payload offset. Immutable once returned.
type ParsedLine struct {
	Time     time.Time
	Tag      string
	Base     []Value
	Prefix   []Value
	Suffix   []Value
	Advanced bool
	Raw      string
}

// noBaseTags are the event tags that carry no source/dest identity
// block; everything after the tag is suffix.
var noBaseTags = map[string]bool{
	"COMBAT_LOG_VERSION":   true,
	"ZONE_CHANGE":          true,
	"MAP_CHANGE":           true,
	"ENCOUNTER_START":      true,
	"ENCOUNTER_END":        true,
	"CHALLENGE_MODE_START": true,
	"CHALLENGE_MODE_END":   true,
	"COMBATANT_INFO":       true,
}

// prefixSize returns how many spell-identity fields the tag's event
// family consumes between base block and suffix.
func prefixSize(tag string) int {
	switch {
	case strings.HasPrefix(tag, "SWING_"):
		return 0
	case strings.HasPrefix(tag, "ENVIRONMENTAL_"):
		return 1
	case strings.HasPrefix(tag, "SPELL_"),
		strings.HasPrefix(tag, "RANGE_"),
		strings.HasPrefix(tag, "DAMAGE_"):
		return 3
	default:
		return 0
	}
}

// Tokenizer converts raw log lines into ParsedLines. It is stateless
// per line except for the advanced-logging latch, which is set once a
// COMBAT_LOG_VERSION marker reports ADVANCED_LOG_ENABLED and stays set
// for the tokenizer's lifetime. One Tokenizer serves one file or one
// worker's byte range; never share across goroutines.
type Tokenizer struct {
	scanner  *FieldScanner
	advanced bool
}

// NewTokenizer creates a tokenizer with advanced logging unlatched.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{scanner: NewFieldScanner()}
}

// Advanced reports whether the advanced-logging marker has been seen.
func (t *Tokenizer) Advanced() bool { return t.advanced }

// SetAdvanced pre-latches advanced logging. The parallel driver seeds
// worker tokenizers with it when the enabling COMBAT_LOG_VERSION line
// lies before the worker's byte range, since the worker never parses
// that line itself.
func (t *Tokenizer) SetAdvanced(v bool) { t.advanced = v }

// ParseLine tokenizes one raw line. Failures are per-line and
// recoverable: the caller counts them and continues.
func (t *Tokenizer) ParseLine(line []byte) (*ParsedLine, error) {
	line = pool.TrimSpaces(SanitizeUTF8(line))
	if len(line) == 0 {
		return nil, ErrFieldCountMismatch
	}

	sep := bytes.Index(line, timestampSeparator)
	if sep < 0 {
		return nil, ErrMalformedTimestamp
	}

	ts, err := pool.ParseLogTime(line[:sep])
	if err != nil {
		return nil, ErrMalformedTimestamp
	}

	rawFields := t.scanner.ScanLine(line[sep+2:])
	if len(rawFields) == 0 || len(rawFields[0]) == 0 {
		return nil, ErrFieldCountMismatch
	}

	tag := string(rawFields[0])
	values := make([]Value, len(rawFields)-1)
	for i, f := range rawFields[1:] {
		values[i] = Coerce(f)
	}

	if tag == "COMBAT_LOG_VERSION" {
		t.latchAdvanced(values)
	}

	pl := &ParsedLine{
		Time:     ts,
		Tag:      tag,
		Advanced: t.advanced,
		Raw:      string(line),
	}

	if noBaseTags[tag] {
		pl.Suffix = values
		return pl, nil
	}

	if len(values) <= BaseBlockSize {
		// Short line: everything is base, no payload parsing.
		pl.Base = values
		return pl, nil
	}

	pl.Base = values[:BaseBlockSize]
	rest := values[BaseBlockSize:]

	n := prefixSize(tag)
	if n > len(rest) {
		n = len(rest)
	}
	pl.Prefix = rest[:n]
	pl.Suffix = rest[n:]
	return pl, nil
}

// latchAdvanced inspects a COMBAT_LOG_VERSION parameter list
// (version, ADVANCED_LOG_ENABLED, 0|1, BUILD_VERSION, ...) and latches
// the advanced flag when enabled.
func (t *Tokenizer) latchAdvanced(values []Value) {
	for i := 0; i+1 < len(values); i++ {
		if values[i].Kind == ValueText && values[i].S == "ADVANCED_LOG_ENABLED" {
			if values[i+1].Truthy() {
				t.advanced = true
			}
			return
		}
	}
}
