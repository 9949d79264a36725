package algebra

import (
	"fmt"
	"math/big"
)

// Descriptor is the static type of a fixed-point value.
//
// The logical value is raw * 2^Shift. Bits bounds the magnitude of raw:
// |raw| <= 2^Bits - 1. The sign bit is NOT counted in Bits; the storage
// resolver adds it for signed formats.
//
// Bits == 0 describes the exact value zero.
type Descriptor struct {
	Shift  int
	Bits   uint
	Signed bool
}

// MaxRaw returns the largest raw value of the format: 2^Bits - 1.
func (d Descriptor) MaxRaw() *big.Int {
	m := new(big.Int).Lsh(big.NewInt(1), d.Bits)
	return m.Sub(m, big.NewInt(1))
}

// MinRaw returns the smallest raw value of the format:
// -(2^Bits - 1) for signed formats, 0 for unsigned.
// The range is symmetric; -2^Bits is deliberately excluded.
func (d Descriptor) MinRaw() *big.Int {
	if !d.Signed {
		return new(big.Int)
	}
	return new(big.Int).Neg(d.MaxRaw())
}

// Contains reports whether raw lies in the format's range.
func (d Descriptor) Contains(raw *big.Int) bool {
	if raw.Sign() < 0 && !d.Signed {
		return false
	}
	return raw.CmpAbs(d.MaxRaw()) <= 0
}

// Value returns the exact logical value raw * 2^Shift.
func (d Descriptor) Value(raw *big.Int) *big.Rat {
	r := new(big.Rat).SetInt(raw)
	if d.Shift >= 0 {
		scale := new(big.Int).Lsh(big.NewInt(1), uint(d.Shift))
		return r.Mul(r, new(big.Rat).SetInt(scale))
	}
	scale := new(big.Int).Lsh(big.NewInt(1), uint(-d.Shift))
	return r.Quo(r, new(big.Rat).SetInt(scale))
}

// String renders the descriptor as "u5@-3" / "s6@-3".
func (d Descriptor) String() string {
	sign := "u"
	if d.Signed {
		sign = "s"
	}
	return fmt.Sprintf("%s%d@%d", sign, d.Bits, d.Shift)
}

// ceilLog2 returns ceil(log2(m)) for m >= 1.
// ceil(log2(m)) == bitlen(m-1), which is exact for powers of two.
func ceilLog2(m *big.Int) uint {
	t := new(big.Int).Sub(m, big.NewInt(1))
	return uint(t.BitLen())
}

// floorLog2 returns floor(log2(m)) for m >= 1.
func floorLog2(m *big.Int) uint {
	return uint(m.BitLen() - 1)
}

// ceilLog2N is ceilLog2 for small counts.
func ceilLog2N(n int) uint {
	return ceilLog2(big.NewInt(int64(n)))
}
