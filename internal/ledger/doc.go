// Package ledger provides SQLite-backed append-only storage for
// generation and verification runs.
//
// Each run records:
//   - Runs: one row per generate/verify/eval invocation (UUID, time,
//     tool version, outcome)
//   - Units: per compiled unit, the decl/plan/artifact hash triple and
//     the artifact path
//   - Diagnostics: generation failures with expression path, position
//     and the computed (shift, bits) demand
//
// The ledger is append-only: the package exposes no update or delete
// path, so past runs stay auditable. Unit identities are deterministic
// UUIDv5 values and hashes are canonical-JSON SHA-256, both computed in
// internal/ir.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package ledger
