package parser

import "errors"

var (
	// ErrMalformedTimestamp is returned when a line does not match the
	// positional timestamp grammar.
	ErrMalformedTimestamp = errors.New("parser: malformed timestamp")

	// ErrFieldCountMismatch is returned when a line carries no event
	// fields after the timestamp.
	ErrFieldCountMismatch = errors.New("parser: field count mismatch")

	// ErrTypeCoercionFailure is returned when a field cannot be coerced
	// to the type its position requires.
	ErrTypeCoercionFailure = errors.New("parser: type coercion failure")

	// ErrMalformedCombatantBlock is returned when a COMBATANT_INFO
	// bracket section cannot be extracted. Non-fatal: the event is
	// still produced with nil sub-lists.
	ErrMalformedCombatantBlock = errors.New("parser: malformed combatant info block")
)
