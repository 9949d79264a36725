package algebra

import "fmt"

// Width is a machine storage width in bits.
type Width int

// The storage width table. Strictly increasing; the resolver walks it
// smallest-first. There is nothing after 128: wider demands are capacity
// errors.
const (
	W8   Width = 8
	W16  Width = 16
	W32  Width = 32
	W64  Width = 64
	W128 Width = 128
)

// Widths lists the table in resolution order.
var Widths = [...]Width{W8, W16, W32, W64, W128}

// Capacity returns the magnitude bits width w can hold: w minus the sign
// bit for signed storage.
func (w Width) Capacity(signed bool) uint {
	if signed {
		return uint(w) - 1
	}
	return uint(w)
}

// Storage is a resolved machine representation.
type Storage struct {
	Width  Width
	Signed bool
}

// Resolve picks the smallest storage whose capacity covers bits.
// Deterministic and pure: equal inputs always resolve equally.
func Resolve(bits uint, signed bool) (Storage, error) {
	for _, w := range Widths {
		if w.Capacity(signed) >= bits {
			return Storage{Width: w, Signed: signed}, nil
		}
	}
	return Storage{}, &CapacityError{Bits: bits, Signed: signed}
}

// ResolveDescriptor resolves d's storage.
func ResolveDescriptor(d Descriptor) (Storage, error) {
	return Resolve(d.Bits, d.Signed)
}

// MustResolve is Resolve but panics on capacity failure.
// Use only in tests or when bits are known to fit.
func MustResolve(bits uint, signed bool) Storage {
	s, err := Resolve(bits, signed)
	if err != nil {
		panic(err)
	}
	return s
}

// Is128 reports whether the storage needs a two-limb lane.
func (s Storage) Is128() bool {
	return s.Width == W128
}

// GoType returns the Go type backing this storage.
// 128-bit lanes use the fixed package's limb structs.
func (s Storage) GoType() string {
	if s.Is128() {
		if s.Signed {
			return "fixed.Int128"
		}
		return "fixed.Uint128"
	}
	if s.Signed {
		return fmt.Sprintf("int%d", s.Width)
	}
	return fmt.Sprintf("uint%d", s.Width)
}

// String renders the storage as its Go type.
func (s Storage) String() string {
	return s.GoType()
}
