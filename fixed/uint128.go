package fixed

import (
	"math/big"
	"math/bits"
)

// Uint128 is an unsigned 128-bit integer lane.
//
// It backs generated formats whose resolved storage is wider than 64 bits.
// All operations are constant-time two-limb arithmetic over math/bits; the
// generator guarantees results fit, so there are no overflow checks.
type Uint128 struct {
	Hi uint64
	Lo uint64
}

// Uint128From64 widens a uint64 into a Uint128.
func Uint128From64(v uint64) Uint128 {
	return Uint128{Lo: v}
}

// MulUint64 computes the full 128-bit product of two uint64 values.
func MulUint64(a, b uint64) Uint128 {
	hi, lo := bits.Mul64(a, b)
	return Uint128{Hi: hi, Lo: lo}
}

// Add computes x + y.
func (x Uint128) Add(y Uint128) Uint128 {
	lo, carry := bits.Add64(x.Lo, y.Lo, 0)
	hi, _ := bits.Add64(x.Hi, y.Hi, carry)
	return Uint128{Hi: hi, Lo: lo}
}

// Sub computes x - y.
func (x Uint128) Sub(y Uint128) Uint128 {
	lo, borrow := bits.Sub64(x.Lo, y.Lo, 0)
	hi, _ := bits.Sub64(x.Hi, y.Hi, borrow)
	return Uint128{Hi: hi, Lo: lo}
}

// Mul computes the low 128 bits of x * y.
// Exact whenever the true product fits 128 bits.
func (x Uint128) Mul(y Uint128) Uint128 {
	hi, lo := bits.Mul64(x.Lo, y.Lo)
	hi += x.Hi*y.Lo + x.Lo*y.Hi
	return Uint128{Hi: hi, Lo: lo}
}

// Shl computes x << k.
func (x Uint128) Shl(k uint) Uint128 {
	switch {
	case k == 0:
		return x
	case k >= 128:
		return Uint128{}
	case k >= 64:
		return Uint128{Hi: x.Lo << (k - 64)}
	default:
		return Uint128{Hi: x.Hi<<k | x.Lo>>(64-k), Lo: x.Lo << k}
	}
}

// Shr computes x >> k (logical).
func (x Uint128) Shr(k uint) Uint128 {
	switch {
	case k == 0:
		return x
	case k >= 128:
		return Uint128{}
	case k >= 64:
		return Uint128{Lo: x.Hi >> (k - 64)}
	default:
		return Uint128{Hi: x.Hi >> k, Lo: x.Lo>>k | x.Hi<<(64-k)}
	}
}

// Cmp returns -1, 0, or +1 comparing x against y.
func (x Uint128) Cmp(y Uint128) int {
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

// IsZero reports whether x == 0.
func (x Uint128) IsZero() bool {
	return x.Hi == 0 && x.Lo == 0
}

// Quo computes x / y truncated toward zero.
// Panics if y is zero, matching native integer division.
func (x Uint128) Quo(y Uint128) Uint128 {
	q, _ := x.QuoRem(y)
	return q
}

// QuoRem computes the quotient and remainder of x / y.
// Panics if y is zero, matching native integer division.
func (x Uint128) QuoRem(y Uint128) (q, r Uint128) {
	if y.IsZero() {
		panic("fixed: division by zero")
	}

	if y.Hi == 0 {
		// Single-limb divisor: two chained 64-bit divisions.
		var qhi uint64
		rem := x.Hi
		if x.Hi >= y.Lo {
			qhi = x.Hi / y.Lo
			rem = x.Hi % y.Lo
		}
		qlo, rlo := bits.Div64(rem, x.Lo, y.Lo)
		return Uint128{Hi: qhi, Lo: qlo}, Uint128{Lo: rlo}
	}

	// Two-limb divisor: restoring shift-subtract division.
	for i := 127; i >= 0; i-- {
		r = r.Shl(1)
		if x.bit(uint(i)) {
			r.Lo |= 1
		}
		if r.Cmp(y) >= 0 {
			r = r.Sub(y)
			q = q.setBit(uint(i))
		}
	}
	return q, r
}

// bit reports bit i of x.
func (x Uint128) bit(i uint) bool {
	if i >= 64 {
		return x.Hi>>(i-64)&1 == 1
	}
	return x.Lo>>i&1 == 1
}

// setBit returns x with bit i set.
func (x Uint128) setBit(i uint) Uint128 {
	if i >= 64 {
		x.Hi |= 1 << (i - 64)
	} else {
		x.Lo |= 1 << i
	}
	return x
}

// Uint64 returns the low 64 bits.
// Callers must know the value fits; the generator guarantees this at the
// points where it emits the conversion.
func (x Uint128) Uint64() uint64 {
	return x.Lo
}

// BitLen returns the number of bits required to represent x.
func (x Uint128) BitLen() int {
	if x.Hi != 0 {
		return 64 + bits.Len64(x.Hi)
	}
	return bits.Len64(x.Lo)
}

// ToBig converts x to a big.Int.
func (x Uint128) ToBig() *big.Int {
	b := new(big.Int).SetUint64(x.Hi)
	b.Lsh(b, 64)
	return b.Or(b, new(big.Int).SetUint64(x.Lo))
}

// Uint128FromBig converts a big.Int to a Uint128.
// Reports ok=false when b is negative or wider than 128 bits.
func Uint128FromBig(b *big.Int) (Uint128, bool) {
	if b.Sign() < 0 || b.BitLen() > 128 {
		return Uint128{}, false
	}
	lo := new(big.Int).And(b, maskLow64)
	hi := new(big.Int).Rsh(b, 64)
	return Uint128{Hi: hi.Uint64(), Lo: lo.Uint64()}, true
}

var maskLow64 = new(big.Int).SetUint64(^uint64(0))

// Float64 converts x to float64. Lossy above 2^53.
func (x Uint128) Float64() float64 {
	return float64(x.Hi)*0x1p64 + float64(x.Lo)
}

// String renders x in decimal.
func (x Uint128) String() string {
	return x.ToBig().String()
}
