package fixed

import (
	"errors"
	"fmt"
	"math"
	"math/big"
)

// ErrOutOfRange is returned by checked ingestion boundaries (generated
// NewXxx constructors, ToUnsigned conversions) when a raw value does not
// fit the target format's range.
var ErrOutOfRange = errors.New("fixed: raw value out of format range")

// ErrDivideByZero is returned by generated pipelines whose runtime
// divisor turns out to be zero. Constant divisors are rejected at
// generation time instead.
var ErrDivideByZero = errors.New("fixed: division by zero")

// Numeric is the capability interface satisfied by every generated
// fixed-point type. It exposes format metadata and lossy views only; exact
// raw access stays on the concrete types because its width varies.
type Numeric interface {
	// Shift is the binary scale: value = raw * 2^Shift.
	Shift() int

	// Bits is the magnitude-bit bound of the format (sign bit excluded).
	Bits() uint

	// IsSigned reports whether the format carries a sign bit.
	IsSigned() bool

	// Float64 converts to float64. Explicitly lossy for formats wider
	// than the float64 mantissa.
	Float64() float64

	fmt.Stringer
}

// Describe renders a Numeric's format as a short diagnostic string,
// e.g. "s6@-3" for a signed 6-bit format at shift -3.
func Describe(n Numeric) string {
	sign := "u"
	if n.IsSigned() {
		sign = "s"
	}
	return fmt.Sprintf("%s%d@%d", sign, n.Bits(), n.Shift())
}

// Float64FromRaw converts raw * 2^shift to float64.
// Lossy when raw exceeds the float64 mantissa.
func Float64FromRaw(raw int64, shift int) float64 {
	return math.Ldexp(float64(raw), shift)
}

// Float64FromRawUint is Float64FromRaw for unsigned raw storage.
func Float64FromRawUint(raw uint64, shift int) float64 {
	return math.Ldexp(float64(raw), shift)
}

// Float64FromRawUint128 is Float64FromRaw for two-limb unsigned storage.
func Float64FromRawUint128(raw Uint128, shift int) float64 {
	return math.Ldexp(raw.Float64(), shift)
}

// Float64FromRawInt128 is Float64FromRaw for two-limb signed storage.
func Float64FromRawInt128(raw Int128, shift int) float64 {
	return math.Ldexp(raw.Float64(), shift)
}

// FormatRaw renders raw * 2^shift as an exact decimal string.
// Binary scales always terminate in decimal, so no rounding occurs.
func FormatRaw(raw int64, shift int) string {
	return formatRat(ratFromRaw(new(big.Int).SetInt64(raw), shift))
}

// FormatRawUint is FormatRaw for unsigned raw storage.
func FormatRawUint(raw uint64, shift int) string {
	return formatRat(ratFromRaw(new(big.Int).SetUint64(raw), shift))
}

// FormatRawBig is FormatRaw for arbitrary-width raw storage
// (used by the 128-bit lanes).
func FormatRawBig(raw *big.Int, shift int) string {
	return formatRat(ratFromRaw(raw, shift))
}

// ratFromRaw builds the exact rational raw * 2^shift.
func ratFromRaw(raw *big.Int, shift int) *big.Rat {
	r := new(big.Rat).SetInt(raw)
	if shift >= 0 {
		scale := new(big.Int).Lsh(big.NewInt(1), uint(shift))
		return r.Mul(r, new(big.Rat).SetInt(scale))
	}
	scale := new(big.Int).Lsh(big.NewInt(1), uint(-shift))
	return r.Quo(r, new(big.Rat).SetInt(scale))
}

// formatRat renders a dyadic rational as exact decimal text.
// The denominator is always a power of two, so FloatString with enough
// digits is exact; trailing zeros are trimmed.
func formatRat(r *big.Rat) string {
	if r.IsInt() {
		return r.Num().String()
	}
	// Denominator 2^k needs exactly k decimal digits.
	digits := r.Denom().BitLen() - 1
	s := r.FloatString(digits)
	// Trim trailing zeros but keep at least one fractional digit.
	i := len(s)
	for i > 0 && s[i-1] == '0' {
		i--
	}
	if i > 0 && s[i-1] == '.' {
		i--
	}
	return s[:i]
}
