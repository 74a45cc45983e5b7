package parser

// fieldState represents the current state of the field scanner.
type fieldState uint8

const (
	// stateFieldStart indicates we're at the start of a field.
	stateFieldStart fieldState = iota
	// stateInField indicates we're inside an unquoted field.
	stateInField
	// stateInQuotedField indicates we're inside a double-quoted field.
	stateInQuotedField
	// stateAfterQuote indicates the quoted span closed and we're
	// consuming up to the next delimiter.
	stateAfterQuote
	// stateInGroup indicates we're inside a bracket/paren group.
	stateInGroup
)

// FieldScanner splits one combat log payload into raw comma-separated
// fields using a finite state machine. A comma inside a double-quoted
// span is not a delimiter; a backslash-escaped quote does not toggle
// quoting state. Top-level `[...]`/`(...)` groups are kept intact as
// single fields so nested blocks survive for the bracket scanner.
type FieldScanner struct {
	state fieldState

	fieldStart int
	fieldEnd   int
	depth      int
}

// NewFieldScanner creates a field scanner.
func NewFieldScanner() *FieldScanner {
	return &FieldScanner{state: stateFieldStart}
}

// Reset resets the scanner state for a new line.
func (s *FieldScanner) Reset() {
	s.state = stateFieldStart
	s.fieldStart = 0
	s.fieldEnd = 0
	s.depth = 0
}

// ScanLine splits a payload into fields. Quoted fields are returned
// with their quotes stripped. Returned slices point into the original
// line unless unescaping was required.
func (s *FieldScanner) ScanLine(line []byte) [][]byte {
	if len(line) == 0 {
		return nil
	}

	// Pre-allocate for a typical combat event arity.
	fields := make([][]byte, 0, 32)
	s.Reset()

	needsUnescape := false
	escaped := false

	for i := 0; i <= len(line); i++ {
		var c byte
		if i < len(line) {
			c = line[i]
		}

		switch s.state {
		case stateFieldStart:
			if i >= len(line) {
				// Empty final field
				fields = append(fields, nil)
				continue
			}

			switch {
			case c == '"':
				s.fieldStart = i + 1
				s.state = stateInQuotedField
			case c == '[' || c == '(':
				s.fieldStart = i
				s.depth = 1
				s.state = stateInGroup
			case c == ',':
				// Empty field
				fields = append(fields, nil)
			default:
				s.fieldStart = i
				s.state = stateInField
			}

		case stateInField:
			if i >= len(line) || c == ',' {
				fields = append(fields, line[s.fieldStart:i])
				s.state = stateFieldStart
			}

		case stateInQuotedField:
			if escaped {
				escaped = false
				continue
			}
			if i >= len(line) {
				// Unterminated quoted field - take what we have
				field := line[s.fieldStart:i]
				if needsUnescape {
					field = unescapeQuotes(field)
					needsUnescape = false
				}
				fields = append(fields, field)
				continue
			}
			switch c {
			case '\\':
				escaped = true
				needsUnescape = true
			case '"':
				s.fieldEnd = i
				s.state = stateAfterQuote
			}

		case stateAfterQuote:
			if i >= len(line) || c == ',' {
				field := line[s.fieldStart:s.fieldEnd]
				if needsUnescape {
					field = unescapeQuotes(field)
					needsUnescape = false
				}
				fields = append(fields, field)
				s.state = stateFieldStart
			}
			// Anything else between the closing quote and the comma
			// is dropped; be lenient.

		case stateInGroup:
			if i >= len(line) {
				// Unterminated group - take what we have
				fields = append(fields, line[s.fieldStart:i])
				continue
			}
			switch c {
			case '[', '(':
				s.depth++
			case ']', ')':
				if s.depth > 0 {
					s.depth--
				}
			case ',':
				if s.depth == 0 {
					fields = append(fields, line[s.fieldStart:i])
					s.state = stateFieldStart
				}
			}
		}
	}

	return fields
}

// unescapeQuotes replaces \" with " in a quoted field.
func unescapeQuotes(field []byte) []byte {
	buf := make([]byte, 0, len(field))
	i := 0
	for i < len(field) {
		if field[i] == '\\' && i+1 < len(field) && field[i+1] == '"' {
			buf = append(buf, '"')
			i += 2
		} else {
			buf = append(buf, field[i])
			i++
		}
	}
	return buf
}

// SanitizeUTF8 replaces invalid UTF-8 sequences with the replacement
// character. Combat logs come from client machines with mixed locales;
// decoding is best-effort, never fatal.
func SanitizeUTF8(data []byte) []byte {
	if len(data) == 0 {
		return data
	}

	// Fast path: check if sanitization is needed
	valid := true
	for i := 0; i < len(data); {
		if data[i] < 0x80 {
			i++
			continue
		}

		// Multi-byte sequence
		size := utf8SequenceLength(data[i])
		if size == 0 || i+size > len(data) {
			valid = false
			break
		}

		// Validate continuation bytes
		for j := 1; j < size; j++ {
			if data[i+j]&0xC0 != 0x80 {
				valid = false
				break
			}
		}
		if !valid {
			break
		}
		i += size
	}

	if valid {
		return data
	}

	// Sanitize by replacing invalid sequences
	result := make([]byte, 0, len(data))
	for i := 0; i < len(data); {
		if data[i] < 0x80 {
			result = append(result, data[i])
			i++
			continue
		}

		size := utf8SequenceLength(data[i])
		if size == 0 || i+size > len(data) {
			// Invalid start byte or truncated sequence
			result = append(result, 0xEF, 0xBF, 0xBD) // UTF-8 replacement character
			i++
			continue
		}

		// Check continuation bytes
		validSeq := true
		for j := 1; j < size; j++ {
			if data[i+j]&0xC0 != 0x80 {
				validSeq = false
				break
			}
		}

		if validSeq {
			result = append(result, data[i:i+size]...)
			i += size
		} else {
			result = append(result, 0xEF, 0xBF, 0xBD)
			i++
		}
	}

	return result
}

// utf8SequenceLength returns the expected length of a UTF-8 sequence
// based on the first byte, or 0 if invalid.
func utf8SequenceLength(b byte) int {
	if b < 0x80 {
		return 1
	}
	if b < 0xC0 {
		return 0 // Continuation byte, invalid as start
	}
	if b < 0xE0 {
		return 2
	}
	if b < 0xF0 {
		return 3
	}
	if b < 0xF8 {
		return 4
	}
	return 0 // Invalid
}
