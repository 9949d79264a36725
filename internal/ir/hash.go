package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Domain prefixes for content-addressed identity. The version suffix
// enables future algorithm migration.
const (
	DomainDecl     = "fixpoint/decl/v1"
	DomainPlan     = "fixpoint/plan/v1"
	DomainArtifact = "fixpoint/artifact/v1"
)

// unitNamespace is the fixed UUID namespace for deterministic unit IDs.
var unitNamespace = uuid.MustParse("5f1c2b9e-9f74-4d54-8a3a-52a6f2d1b0c7")

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DeclHash computes the content-addressed identity of a declaration
// unit. Equal declarations hash equally regardless of source formatting;
// reordering declarations changes the hash because declaration order is
// identity-relevant.
func DeclHash(m *Module) (string, error) {
	canonical, err := MarshalCanonical(m.Canonical())
	if err != nil {
		return "", fmt.Errorf("DeclHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainDecl, canonical), nil
}

// PlanHash computes the identity of a derived plan. The caller passes
// the plan's canonical map; the planner owns that shape.
func PlanHash(canonical map[string]any) (string, error) {
	data, err := MarshalCanonical(canonical)
	if err != nil {
		return "", fmt.Errorf("PlanHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainPlan, data), nil
}

// ArtifactHash computes the identity of emitted source bytes. No
// canonicalization: the artifact is already deterministic byte output.
func ArtifactHash(data []byte) string {
	return hashWithDomain(DomainArtifact, data)
}

// UnitID derives the stable UUID of a declaration unit from its module
// name. Version 5 (SHA-1, name-based) under a fixed namespace, so the
// same unit keeps its ID across machines and runs.
func UnitID(moduleName string) string {
	return uuid.NewSHA1(unitNamespace, []byte(moduleName)).String()
}

// MustDeclHash is DeclHash but panics on error.
// Use only in tests or when the module is known to be valid.
func MustDeclHash(m *Module) string {
	h, err := DeclHash(m)
	if err != nil {
		panic(err)
	}
	return h
}

// MustPlanHash is PlanHash but panics on error.
func MustPlanHash(canonical map[string]any) string {
	h, err := PlanHash(canonical)
	if err != nil {
		panic(err)
	}
	return h
}
