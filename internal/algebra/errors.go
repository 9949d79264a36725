package algebra

import (
	"errors"
	"fmt"
)

// CapacityError reports that no storage width in the table holds the
// demanded magnitude bits. With the sign bit, demand beyond 128 total bits
// is unrepresentable and fails generation.
type CapacityError struct {
	Bits   uint
	Signed bool
}

func (e *CapacityError) Error() string {
	total := e.Bits
	kind := "unsigned"
	if e.Signed {
		total++
		kind = "signed"
	}
	return fmt.Sprintf("no storage width holds %d %s magnitude bits (%d total, table max 128)",
		e.Bits, kind, total)
}

// IsCapacityError reports whether err is a CapacityError.
// Uses errors.As to handle wrapped errors.
func IsCapacityError(err error) bool {
	var ce *CapacityError
	return errors.As(err, &ce)
}

// RuleError reports that an operation's derivation rule rejected its
// operands: a target descriptor that cannot soundly hold the result, a
// widening that narrows, a signedness the rule forbids.
type RuleError struct {
	Op      string
	Message string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// IsRuleError reports whether err is a RuleError.
func IsRuleError(err error) bool {
	var re *RuleError
	return errors.As(err, &re)
}

func ruleErrorf(op, format string, args ...any) *RuleError {
	return &RuleError{Op: op, Message: fmt.Sprintf(format, args...)}
}
