// Package planner derives concrete plans from declaration IR.
//
// The planner is where "compile-time checked arithmetic" actually
// happens: it walks every format, constant and pipeline step, applies
// the operation algebra to compute each node's descriptor, and resolves
// each descriptor to a machine storage width. Anything that cannot be
// derived soundly becomes a diagnostic, and diagnostics fail the build.
//
// DERIVATION FLOW:
//
//  1. Formats resolve to storage (capacity-checked).
//  2. Constants scale their literal text to an exact raw at the format's
//     shift (representation-checked).
//  3. Pipeline steps derive left to right; each step consumes the
//     descriptors of names already bound (params, constants, earlier
//     steps), so derivation is single-pass and the graph is acyclic by
//     construction.
//
// Diagnostics come in exactly two kinds: REPRESENTATION (a value or
// target cannot be expressed exactly) and CAPACITY (a derived bit demand
// exceeds the storage width table). Both carry the declaration path and
// source position; collect-all is the default so one run reports every
// failure in a unit.
//
// The package also hosts the exact evaluator: it executes a planned
// pipeline over big.Int raws, re-checking the overflow theorem at every
// node (each computed raw must lie within its derived descriptor). The
// evaluator produces step traces ordered by a logical clock; the harness,
// the eval command and the soundness tests all consume those traces.
//
// DETERMINISM:
//
// Planning is pure: equal IR derives equal plans, byte for byte, hash
// for hash. Declaration order is preserved everywhere; nothing iterates
// a map. No wall clock, no randomness.
package planner
