// Package algebra implements the fixed-point descriptor algebra.
//
// A Descriptor is the static type of a fixed-point value: binary scale
// (shift), magnitude-bit bound (bits, sign excluded) and signedness. Every
// operation has one derivation rule mapping operand descriptors to a result
// descriptor, and the storage resolver maps descriptors to the smallest
// machine width that holds them.
//
// All functions here are pure and run at generation time only; nothing in
// this package touches runtime values.
//
// Key design constraints:
//   - Soundness over precision: derived bits bound the true magnitude,
//     loosely if necessary, never tightly enough to overflow.
//   - Symmetric signed ranges: signed bits=b covers [-(2^b-1), 2^b-1].
//     The two's-complement extreme -2^b is excluded at construction, which
//     keeps negation bit-preserving and multiplication at exactly b0+b1.
//   - Realignment multiplies, never divides: binary operations realign to
//     the smaller shift by left-shifting the coarser operand's raw.
//   - The width table is fixed: 8, 16, 32, 64, 128. Anything wider is a
//     capacity error at generation time.
package algebra
