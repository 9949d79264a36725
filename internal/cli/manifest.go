package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// DefaultManifestPath is where generate and verify look for the
// project manifest when --manifest is not given.
const DefaultManifestPath = "fixpoint.toml"

// Manifest is the fixpoint.toml project file. Every field has a
// default, so a project without a manifest still works; flags override
// manifest values, manifest values override defaults.
type Manifest struct {
	// Specs is the declaration unit directory.
	Specs string `toml:"specs"`

	// Output is the generated Go source path.
	Output string `toml:"output"`

	// Lock is the lock file path.
	Lock string `toml:"lock"`

	// Ledger is the SQLite audit ledger path.
	Ledger string `toml:"ledger"`
}

// DefaultManifest returns the manifest used when no fixpoint.toml
// exists.
func DefaultManifest() Manifest {
	return Manifest{
		Specs:  "specs",
		Output: "fixpoint.gen.go",
		Lock:   "fixpoint.lock.json",
		Ledger: ".fixpoint/ledger.db",
	}
}

// LoadManifest reads and parses a manifest file. Unknown keys are
// errors so typos surface instead of silently falling back to
// defaults. Absent keys keep their defaults.
func LoadManifest(path string) (Manifest, error) {
	m := DefaultManifest()

	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("read manifest: %w", err)
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return m, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return m, nil
}

// ResolveManifest loads the manifest at path, or the default manifest
// when path is empty and no fixpoint.toml exists. An explicit path
// must exist; the implicit one may be absent.
func ResolveManifest(path string) (Manifest, error) {
	if path != "" {
		return LoadManifest(path)
	}
	if _, err := os.Stat(DefaultManifestPath); os.IsNotExist(err) {
		return DefaultManifest(), nil
	}
	return LoadManifest(DefaultManifestPath)
}
