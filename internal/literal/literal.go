// Package literal parses fixed-point literal text exactly.
//
// Literals are parsed into big.Rat with no rounding anywhere: a literal
// either scales to an integer raw value at the requested shift or it is a
// representation error. "0.1" at any binary shift is the canonical
// rejection; its denominator carries a factor of five.
package literal

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/dlaw/fixpoint/internal/algebra"
)

// Value is an exactly parsed literal: the raw integer and the minimal
// descriptor that holds it.
type Value struct {
	Raw  *big.Int
	Desc algebra.Descriptor
}

// RepresentationError reports a literal that cannot be constructed
// exactly: not parseable, not an integer raw at the chosen shift, or
// outside a declared format's range.
type RepresentationError struct {
	Text    string
	Shift   int
	Message string
}

func (e *RepresentationError) Error() string {
	return fmt.Sprintf("literal %q at shift %d: %s", e.Text, e.Shift, e.Message)
}

// Parse parses literal text into an exact rational.
//
// Accepted forms: decimal ("2.375", "-12"), fractions ("19/8"), and
// hex/binary integers ("0x13", "-0b10011"). Decimal exponents are allowed
// ("15e-1"); floats never appear because nothing here rounds.
func Parse(text string) (*big.Rat, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil, &RepresentationError{Text: text, Message: "empty literal"}
	}

	// Hex and binary forms are integers; big.Int handles the prefixes.
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "-"), "+")
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") ||
		strings.HasPrefix(digits, "0b") || strings.HasPrefix(digits, "0B") {
		i, ok := new(big.Int).SetString(s, 0)
		if !ok {
			return nil, &RepresentationError{Text: text, Message: "malformed integer literal"}
		}
		return new(big.Rat).SetInt(i), nil
	}

	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, &RepresentationError{Text: text, Message: "malformed literal"}
	}
	return r, nil
}

// RawAt scales an exact rational to its raw integer at the given shift:
// raw = value / 2^shift. Returns a RepresentationError when the scaled
// value is not an integer; text names the literal in the diagnostic.
func RawAt(text string, r *big.Rat, shift int) (*big.Int, error) {
	scaled := new(big.Rat).Set(r)
	if shift <= 0 {
		scale := new(big.Int).Lsh(big.NewInt(1), uint(-shift))
		scaled.Mul(scaled, new(big.Rat).SetInt(scale))
	} else {
		scale := new(big.Int).Lsh(big.NewInt(1), uint(shift))
		scaled.Quo(scaled, new(big.Rat).SetInt(scale))
	}

	if !scaled.IsInt() {
		return nil, &RepresentationError{
			Text:    text,
			Shift:   shift,
			Message: fmt.Sprintf("scaled value %s is not an integer; the literal is not exactly representable at this shift", scaled.RatString()),
		}
	}
	return new(big.Int).Set(scaled.Num()), nil
}

// Infer parses a literal at a shift and returns it with the minimal
// descriptor: bits = bitlen(|raw|), signed iff negative.
func Infer(text string, shift int) (Value, error) {
	r, err := Parse(text)
	if err != nil {
		return Value{}, err
	}
	raw, err := RawAt(text, r, shift)
	if err != nil {
		return Value{}, err
	}
	return Value{
		Raw: raw,
		Desc: algebra.Descriptor{
			Shift:  shift,
			Bits:   uint(raw.BitLen()),
			Signed: raw.Sign() < 0,
		},
	}, nil
}

// Fit parses a literal and checks it against a declared descriptor:
// exact at the descriptor's shift, in range, sign-compatible.
func Fit(text string, d algebra.Descriptor) (*big.Int, error) {
	r, err := Parse(text)
	if err != nil {
		return nil, err
	}
	raw, err := RawAt(text, r, d.Shift)
	if err != nil {
		return nil, err
	}
	if raw.Sign() < 0 && !d.Signed {
		return nil, &RepresentationError{
			Text:    text,
			Shift:   d.Shift,
			Message: fmt.Sprintf("negative value cannot inhabit unsigned format %s", d),
		}
	}
	if !d.Contains(raw) {
		return nil, &RepresentationError{
			Text:    text,
			Shift:   d.Shift,
			Message: fmt.Sprintf("raw value %s exceeds format %s (|raw| <= %s)", raw, d, d.MaxRaw()),
		}
	}
	return raw, nil
}
