package emit

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/dlaw/fixpoint/internal/algebra"
)

// TypeName renders the generated identifier for a descriptor without a
// declared name: Fix, U or S, the bit bound, then M or P and the shift
// magnitude. u6@-3 becomes FixU6M3; s22@-5 FixS22M5; u10@0 FixU10.
// Declared format names may not start with "Fix", so the namespaces
// cannot collide.
func TypeName(d algebra.Descriptor) string {
	sign := "U"
	if d.Signed {
		sign = "S"
	}
	switch {
	case d.Shift < 0:
		return fmt.Sprintf("Fix%s%dM%d", sign, d.Bits, -d.Shift)
	case d.Shift > 0:
		return fmt.Sprintf("Fix%s%dP%d", sign, d.Bits, d.Shift)
	default:
		return fmt.Sprintf("Fix%s%d", sign, d.Bits)
	}
}

// exportName converts a validated lower_snake local name to an exported
// identifier: "iir_step" becomes "IirStep". Local names never contain
// upper-case letters, so distinct inputs stay distinct.
func exportName(s string) string {
	parts := strings.Split(s, "_")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

// limbs128 renders a raw value as a two-limb struct literal. Negative
// values render their two's-complement limbs into an Int128.
func limbs128(raw *big.Int, signed bool) string {
	v := new(big.Int).Set(raw)
	if v.Sign() < 0 {
		mod := new(big.Int).Lsh(big.NewInt(1), 128)
		v.Add(v, mod)
	}
	lo := new(big.Int).And(v, maxUint64)
	hi := new(big.Int).Rsh(v, 64)
	if signed {
		return fmt.Sprintf("fixed.Int128{Hi: %s, Lo: %#x}", signedHi(hi), lo)
	}
	return fmt.Sprintf("fixed.Uint128{Hi: %#x, Lo: %#x}", hi, lo)
}

// signedHi renders the high limb as an int64 expression. Values with the
// top bit set have no positive literal form and go through a uint64
// conversion.
func signedHi(hi *big.Int) string {
	if hi.Bit(63) == 1 {
		return fmt.Sprintf("int64(%#x - 1<<63)", new(big.Int).And(hi, maxInt63))
	}
	return fmt.Sprintf("%#x", hi)
}

var (
	maxUint64 = new(big.Int).SetUint64(^uint64(0))
	maxInt63  = new(big.Int).SetUint64(1<<63 - 1)
)
