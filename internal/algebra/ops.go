package algebra

import "math/big"

// AlignedOperand is one side of a realigned binary operation.
type AlignedOperand struct {
	// ShiftBy is the left shift applied to the operand's raw value.
	// Realignment always multiplies; it never divides.
	ShiftBy uint

	// Desc is the operand's descriptor after realignment.
	Desc Descriptor
}

// Alignment realigns two operands to their common (smaller) shift.
type Alignment struct {
	Shift int
	A, B  AlignedOperand
}

// Align computes the realignment of a and b to min(a.Shift, b.Shift).
// The realigned bits grow by the shift distance; whether they still fit a
// storage width is the caller's resolution check.
func Align(a, b Descriptor) Alignment {
	common := min(a.Shift, b.Shift)
	return Alignment{
		Shift: common,
		A:     realign(a, common),
		B:     realign(b, common),
	}
}

func realign(d Descriptor, common int) AlignedOperand {
	by := uint(d.Shift - common)
	nd := d
	nd.Shift = common
	if by > 0 && d.Bits > 0 {
		// Exact zero (bits 0) stays zero under any shift.
		nd.Bits = d.Bits + by
	}
	return AlignedOperand{ShiftBy: by, Desc: nd}
}

// Add derives the sum descriptor: common shift, one bit of headroom over
// the wider realigned operand, signed if either operand is.
func Add(a, b Descriptor) (Descriptor, Alignment) {
	al := Align(a, b)
	return Descriptor{
		Shift:  al.Shift,
		Bits:   max(al.A.Desc.Bits, al.B.Desc.Bits) + 1,
		Signed: a.Signed || b.Signed,
	}, al
}

// Sub derives the difference descriptor. Same width rule as Add; the
// result is always signed because the difference of unsigned operands can
// be negative.
func Sub(a, b Descriptor) (Descriptor, Alignment) {
	al := Align(a, b)
	return Descriptor{
		Shift:  al.Shift,
		Bits:   max(al.A.Desc.Bits, al.B.Desc.Bits) + 1,
		Signed: true,
	}, al
}

// Mul derives the product descriptor: shifts add, bits add, no
// realignment. Exact under the symmetric range model:
// (2^b0 - 1)(2^b1 - 1) < 2^(b0+b1) - 1.
func Mul(a, b Descriptor) Descriptor {
	return Descriptor{
		Shift:  a.Shift + b.Shift,
		Bits:   a.Bits + b.Bits,
		Signed: a.Signed || b.Signed,
	}
}

// MulConst derives the descriptor for multiplication by a declared
// constant with raw value constRaw at constShift. Knowing the exact
// constant tightens the bound to bits + ceil(log2 |constRaw|) instead of
// the constant format's full width.
func MulConst(a Descriptor, constShift int, constRaw *big.Int) Descriptor {
	if constRaw.Sign() == 0 {
		return Descriptor{Shift: a.Shift + constShift}
	}
	mag := new(big.Int).Abs(constRaw)
	return Descriptor{
		Shift:  a.Shift + constShift,
		Bits:   a.Bits + ceilLog2(mag),
		Signed: a.Signed || constRaw.Sign() < 0,
	}
}

// DivPow2 derives division by a constant ±2^pow. This is the exact
// division form: a pure shift reinterpretation with the raw value and bit
// count untouched. A negative divisor additionally promotes to signed; the
// emitted op is then a negation.
func DivPow2(a Descriptor, pow int, negative bool) Descriptor {
	d := a
	d.Shift = a.Shift - pow
	if negative {
		d.Signed = true
	}
	return d
}

// DivPlan is the derivation of a truncating division.
type DivPlan struct {
	// Prescale is the left shift applied to the numerator raw before
	// dividing, bridging the gap between the natural quotient shift and
	// the caller's finer target shift.
	Prescale uint

	// Numerator is the prescaled numerator's descriptor.
	Numerator Descriptor

	// Lane is the division lane: the numerator's descriptor widened to
	// hold the divisor raw as well, so the emitted divide never narrows
	// the divisor. It must resolve to a storage width.
	Lane Descriptor

	// Result equals the caller's target descriptor.
	Result Descriptor
}

// DivTrunc derives the general division: runtime divisor, truncation
// toward zero, explicitly lossy. The caller names the target descriptor;
// the rule verifies it is sound rather than inferring one, because no
// useful tight bound exists for an unknown divisor.
//
// divisorRaw, when non-nil, is a declared constant divisor's raw value and
// tightens the quotient bound by floor(log2 |divisorRaw|).
func DivTrunc(a, b, target Descriptor, divisorRaw *big.Int) (DivPlan, error) {
	const op = "div"

	if divisorRaw != nil && divisorRaw.Sign() == 0 {
		return DivPlan{}, ruleErrorf(op, "constant divisor is zero")
	}
	if b.Bits == 0 {
		return DivPlan{}, ruleErrorf(op, "divisor format %s holds only zero", b)
	}

	natural := a.Shift - b.Shift
	if target.Shift > natural {
		return DivPlan{}, ruleErrorf(op,
			"target shift %d is coarser than the natural quotient shift %d; shift the result explicitly instead",
			target.Shift, natural)
	}
	prescale := uint(natural - target.Shift)

	signed := a.Signed || b.Signed
	if signed && !target.Signed {
		return DivPlan{}, ruleErrorf(op, "signed operands need a signed target, got %s", target)
	}

	numBits := a.Bits
	if a.Bits > 0 {
		numBits = a.Bits + prescale
	}

	// |trunc(n/d)| <= |n| for |d| >= 1; a known constant divisor drops
	// floor(log2 |d_raw|) bits off that bound.
	bound := numBits
	if divisorRaw != nil {
		mag := new(big.Int).Abs(divisorRaw)
		drop := floorLog2(mag)
		if drop >= bound {
			bound = 0
		} else {
			bound -= drop
		}
	}
	if target.Bits < bound {
		return DivPlan{}, ruleErrorf(op, "target bits %d below the sound quotient bound %d", target.Bits, bound)
	}

	num := Descriptor{
		Shift:  a.Shift - int(prescale),
		Bits:   numBits,
		Signed: signed,
	}
	lane := num
	if b.Bits > lane.Bits {
		lane.Bits = b.Bits
	}
	return DivPlan{Prescale: prescale, Numerator: num, Lane: lane, Result: target}, nil
}

// Shl derives the logical left shift: the value scales by 2^k while the
// raw bits stay put. Exact, type-only.
func Shl(a Descriptor, k uint) Descriptor {
	a.Shift += int(k)
	return a
}

// Shr derives the logical right shift: the value scales by 2^-k while the
// raw bits stay put. Exact, type-only. Distinct from division, which
// truncates.
func Shr(a Descriptor, k uint) Descriptor {
	a.Shift -= int(k)
	return a
}

// RawShl moves the raw value k bits up and compensates the shift, leaving
// the logical value unchanged. Bits grow by k; the caller's resolution
// check decides whether the wider raw still fits.
func RawShl(a Descriptor, k uint) Descriptor {
	a.Shift -= int(k)
	if a.Bits > 0 {
		a.Bits += k
	}
	return a
}

// RawShr drops the k low raw bits and compensates the shift. This is the
// explicitly lossy operation: the logical value is truncated toward
// negative infinity on the raw lane. Exact only when the k low bits are
// zero.
//
// Unsigned raws shrink to bits-k. Signed raws shift arithmetically, and
// flooring can push the magnitude to 2^(bits-k), one past the symmetric
// bound, so the signed result keeps bits-k+1. At k >= bits the floor of a
// negative raw is -1, never zero, hence the single signed bit.
func RawShr(a Descriptor, k uint) Descriptor {
	a.Shift += int(k)
	switch {
	case a.Bits == 0:
	case !a.Signed:
		if a.Bits > k {
			a.Bits -= k
		} else {
			a.Bits = 0
		}
	case a.Bits > k:
		a.Bits = a.Bits - k + 1
	default:
		a.Bits = 1
	}
	return a
}

// Neg derives negation. Under the symmetric range model the magnitude
// bound is unchanged; an unsigned operand promotes to signed.
func Neg(a Descriptor) Descriptor {
	a.Signed = true
	return a
}

// ToSigned reinterprets an unsigned format as signed with the same bits.
// Always exact under the symmetric range model: type-only, free.
func ToSigned(a Descriptor) Descriptor {
	a.Signed = true
	return a
}

// ToUnsigned reinterprets a signed format as unsigned with the same bits.
// The descriptor rule is type-only, but negative values cannot cross this
// boundary, so the emitted operation is runtime-checked.
func ToUnsigned(a Descriptor) Descriptor {
	a.Signed = false
	return a
}

// Widen grows the bit bound without touching the value. Free and always
// sound; narrowing is refused.
func Widen(a Descriptor, bits uint) (Descriptor, error) {
	if bits < a.Bits {
		return a, ruleErrorf("widen", "target bits %d below current %d", bits, a.Bits)
	}
	a.Bits = bits
	return a, nil
}

// SumPlan is the derivation of an N-ary accumulation.
type SumPlan struct {
	Shift    int
	Operands []AlignedOperand
	Result   Descriptor
}

// Sum derives the N-ary accumulation: all operands realign to the common
// shift and the result carries ceil(log2 N) headroom bits over the widest
// realigned operand. N equal terms of b bits therefore derive exactly
// b + ceil(log2 N), tighter than a chain of binary Adds.
func Sum(ds []Descriptor) (SumPlan, error) {
	if len(ds) == 0 {
		return SumPlan{}, ruleErrorf("sum", "needs at least one operand")
	}

	common := ds[0].Shift
	for _, d := range ds[1:] {
		common = min(common, d.Shift)
	}

	plan := SumPlan{Shift: common}
	var maxBits uint
	signed := false
	for _, d := range ds {
		op := realign(d, common)
		plan.Operands = append(plan.Operands, op)
		maxBits = max(maxBits, op.Desc.Bits)
		signed = signed || d.Signed
	}

	plan.Result = Descriptor{
		Shift:  common,
		Bits:   maxBits + ceilLog2N(len(ds)),
		Signed: signed,
	}
	return plan, nil
}

// ComparePlan is the derivation of a comparison: both operands realigned
// into a shared intermediate wide enough for either. No new value is
// produced; Intermediate exists only to resolve the comparison lane.
type ComparePlan struct {
	Alignment
	Intermediate Descriptor
}

// Compare derives the realignment for Eq/Ne/Lt/Le/Gt/Ge.
func Compare(a, b Descriptor) ComparePlan {
	al := Align(a, b)
	return ComparePlan{
		Alignment: al,
		Intermediate: Descriptor{
			Shift:  al.Shift,
			Bits:   max(al.A.Desc.Bits, al.B.Desc.Bits),
			Signed: a.Signed || b.Signed,
		},
	}
}
