// Package ir provides the canonical declaration types for fixpoint.
//
// This package contains type definitions and their content-addressed
// identity only. All other internal packages import ir; ir imports nothing
// internal. This keeps IR the foundational layer with no circular
// dependencies.
//
// Key design constraints:
//   - NO float types anywhere - literal values travel as exact text,
//     numbers as int64
//   - All JSON tags use snake_case
//   - Identity is RFC 8785 canonical JSON hashed with domain separation;
//     MarshalCanonical is the only serialization used for hashing
package ir
