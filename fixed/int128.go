package fixed

import (
	"math/big"
	"math/bits"
)

// Int128 is a signed 128-bit integer lane in two's-complement form.
//
// It backs generated signed formats wider than 63 magnitude bits. The
// generator only ever produces values in the symmetric range
// [-(2^127 - 1), 2^127 - 1]; the two's-complement extreme is excluded at
// every construction boundary, so Neg and Abs are total here.
type Int128 struct {
	Hi int64
	Lo uint64
}

// Int128From64 sign-extends an int64 into an Int128.
func Int128From64(v int64) Int128 {
	hi := int64(0)
	if v < 0 {
		hi = -1
	}
	return Int128{Hi: hi, Lo: uint64(v)}
}

// Int128FromUint64 widens a uint64 into a non-negative Int128.
func Int128FromUint64(v uint64) Int128 {
	return Int128{Lo: v}
}

// MulInt64 computes the full 128-bit product of two int64 values.
func MulInt64(a, b int64) Int128 {
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	// Correct the unsigned product for negative operands.
	if a < 0 {
		hi -= uint64(b)
	}
	if b < 0 {
		hi -= uint64(a)
	}
	return Int128{Hi: int64(hi), Lo: lo}
}

// bits returns the raw two's-complement limbs of x.
func (x Int128) bits() Uint128 {
	return Uint128{Hi: uint64(x.Hi), Lo: x.Lo}
}

// int128FromBits reinterprets raw limbs as a signed value.
func int128FromBits(u Uint128) Int128 {
	return Int128{Hi: int64(u.Hi), Lo: u.Lo}
}

// Int128FromUint128 reinterprets the limbs of u as a signed value.
// Generated code uses it for signedness retyping of 128-bit lanes; u
// must fit 127 magnitude bits or the result goes negative.
func Int128FromUint128(u Uint128) Int128 {
	return int128FromBits(u)
}

// Uint128FromInt128 reinterprets the limbs of x as an unsigned value.
// The caller guarantees x is non-negative.
func Uint128FromInt128(x Int128) Uint128 {
	return x.bits()
}

// Add computes x + y.
func (x Int128) Add(y Int128) Int128 {
	return int128FromBits(x.bits().Add(y.bits()))
}

// Sub computes x - y.
func (x Int128) Sub(y Int128) Int128 {
	return int128FromBits(x.bits().Sub(y.bits()))
}

// Mul computes the low 128 bits of x * y.
// Truncated multiplication is sign-agnostic in two's complement, so this
// is exact whenever the true product fits the signed 128-bit range.
func (x Int128) Mul(y Int128) Int128 {
	return int128FromBits(x.bits().Mul(y.bits()))
}

// Neg computes -x.
func (x Int128) Neg() Int128 {
	zero := Uint128{}
	return int128FromBits(zero.Sub(x.bits()))
}

// Abs returns the magnitude of x as a Uint128.
func (x Int128) Abs() Uint128 {
	if x.IsNeg() {
		return x.Neg().bits()
	}
	return x.bits()
}

// Shl computes x << k.
func (x Int128) Shl(k uint) Int128 {
	return int128FromBits(x.bits().Shl(k))
}

// Shr computes x >> k with sign fill (arithmetic shift).
func (x Int128) Shr(k uint) Int128 {
	if k == 0 {
		return x
	}
	if k >= 128 {
		if x.IsNeg() {
			return Int128{Hi: -1, Lo: ^uint64(0)}
		}
		return Int128{}
	}
	if k >= 64 {
		return Int128{Hi: x.Hi >> 63, Lo: uint64(x.Hi >> (k - 64))}
	}
	return Int128{Hi: x.Hi >> k, Lo: x.Lo>>k | uint64(x.Hi)<<(64-k)}
}

// Quo computes x / y truncated toward zero.
// Panics if y is zero, matching native integer division.
func (x Int128) Quo(y Int128) Int128 {
	neg := x.IsNeg() != y.IsNeg()
	qm, _ := x.Abs().QuoRem(y.Abs())
	q := int128FromBits(qm)
	if neg {
		return q.Neg()
	}
	return q
}

// Cmp returns -1, 0, or +1 comparing x against y.
func (x Int128) Cmp(y Int128) int {
	switch {
	case x.Hi != y.Hi:
		if x.Hi < y.Hi {
			return -1
		}
		return 1
	case x.Lo != y.Lo:
		if x.Lo < y.Lo {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// IsNeg reports whether x < 0.
func (x Int128) IsNeg() bool {
	return x.Hi < 0
}

// Sign returns -1, 0, or +1.
func (x Int128) Sign() int {
	if x.Hi == 0 && x.Lo == 0 {
		return 0
	}
	if x.IsNeg() {
		return -1
	}
	return 1
}

// Int64 returns the low 64 bits as a signed value.
// Callers must know the value fits; the generator guarantees this at the
// points where it emits the conversion.
func (x Int128) Int64() int64 {
	return int64(x.Lo)
}

// BitLen returns the number of magnitude bits of x.
func (x Int128) BitLen() int {
	return x.Abs().BitLen()
}

// ToBig converts x to a big.Int.
func (x Int128) ToBig() *big.Int {
	m := x.Abs().ToBig()
	if x.IsNeg() {
		return m.Neg(m)
	}
	return m
}

// Int128FromBig converts a big.Int to an Int128.
// Reports ok=false when b is outside the two's-complement 128-bit range.
func Int128FromBig(b *big.Int) (Int128, bool) {
	neg := b.Sign() < 0
	m := new(big.Int).Abs(b)
	limit := 127
	if m.BitLen() > limit+1 {
		return Int128{}, false
	}
	if m.BitLen() == limit+1 && !neg {
		return Int128{}, false
	}
	u, _ := Uint128FromBig(m)
	v := int128FromBits(u)
	if neg {
		v = v.Neg()
		if !v.IsNeg() && v.Sign() != 0 {
			return Int128{}, false
		}
	}
	// Reject magnitudes above 2^127 even when negative (only -2^127 has
	// bit length 128 and survives the negation round trip).
	if m.BitLen() == limit+1 && v.bits() != (Uint128{Hi: 1 << 63}) {
		return Int128{}, false
	}
	return v, true
}

// Float64 converts x to float64. Lossy above 2^53.
func (x Int128) Float64() float64 {
	return float64(x.Hi)*0x1p64 + float64(x.Lo)
}

// String renders x in decimal.
func (x Int128) String() string {
	return x.ToBig().String()
}
