package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// LoadDir loads all CUE files in dir and builds them into a single value.
// One directory is one declaration unit; files in it unify.
// Returns the built value and the number of CUE files found.
func LoadDir(dir string) (cue.Value, int, error) {
	var zero cue.Value

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return zero, 0, fmt.Errorf("declaration directory not found: %s", dir)
	}
	if err != nil {
		return zero, 0, fmt.Errorf("accessing declaration directory: %w", err)
	}
	if !info.IsDir() {
		return zero, 0, fmt.Errorf("not a directory: %s", dir)
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return zero, 0, fmt.Errorf("scanning declaration directory: %w", err)
	}
	if len(cueFiles) == 0 {
		return zero, 0, fmt.Errorf("no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return zero, 0, fmt.Errorf("no CUE instances loaded from %s", dir)
	}

	inst := instances[0]
	if inst.Err != nil {
		return zero, 0, fmt.Errorf("loading CUE files: %w", formatCUEError(inst.Err))
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return zero, 0, fmt.Errorf("building CUE value: %w", formatCUEError(err))
	}

	return value, len(cueFiles), nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
