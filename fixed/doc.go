// Package fixed provides the runtime support types imported by generated
// fixed-point code.
//
// Everything that needs arithmetic at run time lives here: the 128-bit
// integer lanes (Int128, Uint128), the Numeric capability interface that
// every generated type satisfies, and the rendering/conversion helpers the
// generated methods delegate to.
//
// The package contains NO descriptor algebra. Result widths, scales and
// overflow proofs are computed by the fixpoint generator before this code
// is ever compiled; by the time a value reaches this package its storage is
// already known to be sufficient. The only checked operations are the
// explicit ingestion boundaries (generated NewXxx constructors and
// ToUnsigned conversions), which return ErrOutOfRange.
package fixed
