package algebra

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptorRangeSymmetric(t *testing.T) {
	d := Descriptor{Shift: -3, Bits: 5, Signed: true}

	assert.Equal(t, big.NewInt(31), d.MaxRaw())
	assert.Equal(t, big.NewInt(-31), d.MinRaw(), "signed range is symmetric: -2^bits is excluded")

	u := Descriptor{Shift: -3, Bits: 5}
	assert.Equal(t, big.NewInt(31), u.MaxRaw())
	assert.Zero(t, u.MinRaw().Sign())
}

func TestDescriptorContains(t *testing.T) {
	d := Descriptor{Bits: 5, Signed: true}

	assert.True(t, d.Contains(big.NewInt(31)))
	assert.True(t, d.Contains(big.NewInt(-31)))
	assert.False(t, d.Contains(big.NewInt(32)))
	assert.False(t, d.Contains(big.NewInt(-32)), "the two's-complement extreme is out of range")

	u := Descriptor{Bits: 5}
	assert.False(t, u.Contains(big.NewInt(-1)), "unsigned formats hold no negatives")

	zero := Descriptor{Bits: 0}
	assert.True(t, zero.Contains(big.NewInt(0)))
	assert.False(t, zero.Contains(big.NewInt(1)), "bits 0 is the exact value zero")
}

func TestDescriptorValue(t *testing.T) {
	d := Descriptor{Shift: -3, Bits: 5}
	assert.Zero(t, big.NewRat(19, 8).Cmp(d.Value(big.NewInt(19))), "19 * 2^-3 = 2.375")

	up := Descriptor{Shift: 2, Bits: 3}
	assert.Zero(t, big.NewRat(12, 1).Cmp(up.Value(big.NewInt(3))), "3 * 2^2 = 12")
}

func TestDescriptorString(t *testing.T) {
	assert.Equal(t, "u5@-3", Descriptor{Shift: -3, Bits: 5}.String())
	assert.Equal(t, "s22@-5", Descriptor{Shift: -5, Bits: 22, Signed: true}.String())
}

func TestCeilLog2(t *testing.T) {
	testCases := []struct {
		m    int64
		want uint
	}{
		{m: 1, want: 0},
		{m: 2, want: 1},
		{m: 3, want: 2},
		{m: 4, want: 2},
		{m: 5, want: 3},
		{m: 8, want: 3},
		{m: 9, want: 4},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, ceilLog2(big.NewInt(tc.m)), "ceil(log2(%d))", tc.m)
	}
}

func TestFloorLog2(t *testing.T) {
	assert.Equal(t, uint(0), floorLog2(big.NewInt(1)))
	assert.Equal(t, uint(1), floorLog2(big.NewInt(3)))
	assert.Equal(t, uint(2), floorLog2(big.NewInt(4)))
	assert.Equal(t, uint(3), floorLog2(big.NewInt(15)))
}

func TestResolveSmallestSufficientWidth(t *testing.T) {
	testCases := []struct {
		name   string
		bits   uint
		signed bool
		want   Width
	}{
		{name: "tiny unsigned", bits: 5, signed: false, want: W8},
		{name: "full byte unsigned", bits: 8, signed: false, want: W8},
		{name: "full byte signed needs sign bit", bits: 8, signed: true, want: W16},
		{name: "boundary signed", bits: 7, signed: true, want: W8},
		{name: "product width", bits: 22, signed: false, want: W32},
		{name: "product width signed", bits: 22, signed: true, want: W32},
		{name: "widest unsigned", bits: 128, signed: false, want: W128},
		{name: "widest signed", bits: 127, signed: true, want: W128},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := Resolve(tc.bits, tc.signed)
			require.NoError(t, err)
			assert.Equal(t, tc.want, s.Width)
			assert.Equal(t, tc.signed, s.Signed)
		})
	}
}

func TestResolveMinimality(t *testing.T) {
	// Property: the resolved width is the smallest table entry whose
	// capacity covers the demand.
	for bits := uint(0); bits <= 128; bits++ {
		for _, signed := range []bool{false, true} {
			s, err := Resolve(bits, signed)
			if err != nil {
				continue // capacity cases checked separately
			}
			require.GreaterOrEqual(t, s.Width.Capacity(signed), bits)
			for _, w := range Widths {
				if w >= s.Width {
					break
				}
				assert.Less(t, w.Capacity(signed), bits,
					"width %d would already hold %d bits (signed=%v)", w, bits, signed)
			}
		}
	}
}

func TestResolveCapacityError(t *testing.T) {
	_, err := Resolve(129, false)
	require.Error(t, err)
	assert.True(t, IsCapacityError(err))
	assert.Contains(t, err.Error(), "129")

	_, err = Resolve(128, true)
	require.Error(t, err, "128 signed magnitude bits need a 129th bit for the sign")
	assert.True(t, IsCapacityError(err))
}

func TestStorageGoType(t *testing.T) {
	assert.Equal(t, "uint8", Storage{Width: W8}.GoType())
	assert.Equal(t, "int32", Storage{Width: W32, Signed: true}.GoType())
	assert.Equal(t, "fixed.Uint128", Storage{Width: W128}.GoType())
	assert.Equal(t, "fixed.Int128", Storage{Width: W128, Signed: true}.GoType())
}
