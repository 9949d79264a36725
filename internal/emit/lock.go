package emit

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/dlaw/fixpoint/internal/ir"
	"github.com/dlaw/fixpoint/internal/planner"
)

// LockVersion is the fixpoint.lock.json schema version.
const LockVersion = 1

// LockFile pins every generated unit to the hash triple it was built
// from: declarations, derived plan, and rendered artifact. verify
// recomputes all three and compares.
type LockFile struct {
	Version     int        `json:"version"`
	Tool        string     `json:"tool"`
	ToolVersion string     `json:"tool_version"`
	Units       []UnitLock `json:"units"`
}

// UnitLock is one unit's pinned identity.
type UnitLock struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DeclHash     string `json:"decl_hash"`
	PlanHash     string `json:"plan_hash"`
	Artifact     string `json:"artifact"`
	ArtifactHash string `json:"artifact_hash"`
}

// NewLockFile returns an empty lock for the current tool version.
func NewLockFile() *LockFile {
	return &LockFile{
		Version:     LockVersion,
		Tool:        "fixpoint",
		ToolVersion: ir.ToolVersion,
	}
}

// Add pins one planned unit and its rendered artifact. Units stay
// sorted by name so the lock file is deterministic.
func (lf *LockFile) Add(p *planner.Plan, artifact string, src []byte) error {
	planHash, err := p.Hash()
	if err != nil {
		return fmt.Errorf("lock unit %s: %w", p.Module.Name, err)
	}
	lf.Units = append(lf.Units, UnitLock{
		ID:           ir.UnitID(p.Module.Name),
		Name:         p.Module.Name,
		DeclHash:     p.DeclHash,
		PlanHash:     planHash,
		Artifact:     artifact,
		ArtifactHash: ir.ArtifactHash(src),
	})
	sort.Slice(lf.Units, func(i, j int) bool { return lf.Units[i].Name < lf.Units[j].Name })
	return nil
}

// Unit returns the pinned entry for a unit name.
func (lf *LockFile) Unit(name string) (UnitLock, bool) {
	for _, u := range lf.Units {
		if u.Name == name {
			return u, true
		}
	}
	return UnitLock{}, false
}

// Diff lists the fields on which two pins for the same unit disagree.
// An empty result means the unit verifies clean.
func (u UnitLock) Diff(other UnitLock) []string {
	var fields []string
	if u.DeclHash != other.DeclHash {
		fields = append(fields, "decl_hash")
	}
	if u.PlanHash != other.PlanHash {
		fields = append(fields, "plan_hash")
	}
	if u.Artifact != other.Artifact {
		fields = append(fields, "artifact")
	}
	if u.ArtifactHash != other.ArtifactHash {
		fields = append(fields, "artifact_hash")
	}
	return fields
}

// WriteLockFile renders the lock as indented JSON at path.
func WriteLockFile(path string, lf *LockFile) error {
	data, err := json.MarshalIndent(lf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal lock file: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write lock file: %w", err)
	}
	return nil
}

// ReadLockFile loads and version-checks a lock file.
func ReadLockFile(path string) (*LockFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lock file: %w", err)
	}
	var lf LockFile
	if err := json.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("parse lock file %s: %w", path, err)
	}
	if lf.Version != LockVersion {
		return nil, fmt.Errorf("lock file %s: unsupported version %d", path, lf.Version)
	}
	return &lf, nil
}
