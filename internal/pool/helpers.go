package pool

import (
	"strconv"
	"unsafe"
)

// Zero-allocation helper functions for common operations.

// BytesToString converts a byte slice to a string without allocation.
// WARNING: The returned string shares memory with the byte slice.
// Do not modify the byte slice after calling this function if you
// need the string to remain valid.
func BytesToString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

// ParseInt64 parses an int64 from a byte slice without allocation.
func ParseInt64(b []byte) (int64, error) {
	return strconv.ParseInt(BytesToString(b), 10, 64)
}

// ParseFloat64 parses a float64 from a byte slice without allocation.
func ParseFloat64(b []byte) (float64, error) {
	return strconv.ParseFloat(BytesToString(b), 64)
}

// TrimSpaces trims leading and trailing whitespace in-place.
// Returns a slice of the same underlying array.
func TrimSpaces(b []byte) []byte {
	start := 0
	end := len(b)

	for start < end && isSpace(b[start]) {
		start++
	}
	for end > start && isSpace(b[end-1]) {
		end--
	}

	return b[start:end]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// IndexByte returns the index of the first occurrence of c in b,
// or -1 if c is not present.
func IndexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}
