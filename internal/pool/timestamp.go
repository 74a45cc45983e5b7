package pool

import (
	"errors"
	"time"
)

// ErrInvalidTimestamp is returned when a timestamp does not match the
// log's positional grammar.
var ErrInvalidTimestamp = errors.New("invalid timestamp")

// ParseLogTime parses the combat log timestamp grammar
// "M/D/YYYY H:MM:SS.mmm±Z" (Z is a signed whole-hour UTC offset) using
// byte inspection to avoid string allocations in the hot path.
func ParseLogTime(b []byte) (time.Time, error) {
	p := tsParser{data: b}

	month, ok := p.number('/')
	if !ok || month < 1 || month > 12 {
		return time.Time{}, ErrInvalidTimestamp
	}
	day, ok := p.number('/')
	if !ok || day < 1 || day > 31 {
		return time.Time{}, ErrInvalidTimestamp
	}
	year, ok := p.number(' ')
	if !ok || year < 1000 {
		return time.Time{}, ErrInvalidTimestamp
	}
	hour, ok := p.number(':')
	if !ok || hour > 23 {
		return time.Time{}, ErrInvalidTimestamp
	}
	minute, ok := p.number(':')
	if !ok || minute > 59 {
		return time.Time{}, ErrInvalidTimestamp
	}
	sec, ok := p.number('.')
	if !ok || sec > 60 {
		return time.Time{}, ErrInvalidTimestamp
	}
	millis, digits, ok := p.fraction()
	if !ok || digits == 0 || digits > 3 {
		return time.Time{}, ErrInvalidTimestamp
	}
	// Normalize to milliseconds regardless of digit count.
	for ; digits < 3; digits++ {
		millis *= 10
	}

	offset, ok := p.signedNumber()
	if !ok || !p.done() {
		return time.Time{}, ErrInvalidTimestamp
	}

	zone := time.FixedZone("", offset*3600)
	return time.Date(year, time.Month(month), day, hour, minute, sec,
		millis*int(time.Millisecond), zone), nil
}

type tsParser struct {
	data []byte
	pos  int
}

func (p *tsParser) done() bool {
	return p.pos >= len(p.data)
}

// number reads digits up to the given terminator, consuming it.
func (p *tsParser) number(term byte) (int, bool) {
	n, start := 0, p.pos
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if c == term {
			p.pos++
			return n, p.pos-1 > start
		}
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
		p.pos++
	}
	return 0, false
}

// fraction reads digits until a non-digit, without consuming it.
func (p *tsParser) fraction() (n, digits int, ok bool) {
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
		digits++
		p.pos++
	}
	return n, digits, digits > 0
}

// signedNumber reads an optionally signed integer to end of input.
func (p *tsParser) signedNumber() (int, bool) {
	sign := 1
	if p.pos < len(p.data) {
		switch p.data[p.pos] {
		case '-':
			sign = -1
			p.pos++
		case '+':
			p.pos++
		}
	}
	n, digits, ok := p.fraction()
	if !ok || digits > 2 {
		return 0, false
	}
	return sign * n, true
}
