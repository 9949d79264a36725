package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/dlaw/fixpoint/internal/compiler"
	"github.com/dlaw/fixpoint/internal/ir"
)

// LoadResult contains one compiled declaration unit.
type LoadResult struct {
	Module    *ir.Module
	Source    *compiler.SourceMap
	FileCount int // Number of CUE files found
}

// LoadError represents an error that occurred during unit loading.
// Load errors are command-level problems: bad paths, unreadable files,
// CUE that does not build. Declaration schema violations and planning
// diagnostics are reported separately.
type LoadError struct {
	Code    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load or build failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeWriteFailed = "E007" // File write error

	// Check-level codes
	ErrCodeValidation = "E010" // Declaration schema violation
	ErrCodeRejected   = "E011" // Planning rejected the unit
	ErrCodeEval       = "E012" // Evaluation failed

	// Lock and ledger codes
	ErrCodeLockMissing = "E020" // Lock file absent or unreadable
	ErrCodeDrift       = "E021" // Lock file does not match recomputed hashes
	ErrCodeLedger      = "E030" // Ledger access failed
)

// LoadUnit loads and compiles the declaration unit in dir.
// Path problems and CUE errors come back as a *LoadError; schema
// validation is the caller's next step.
func LoadUnit(dir string) (*LoadResult, error) {
	// Classify path problems before handing the directory to the CUE
	// loader, so commands can map them to exit codes.
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	cueFiles, err := compiler.FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	value, fileCount, err := compiler.LoadDir(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", err)}
	}

	mod, src, err := compiler.CompileModule(value)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("compiling declarations: %v", err)}
	}

	return &LoadResult{
		Module:    mod,
		Source:    src,
		FileCount: fileCount,
	}, nil
}

// outputLoadError reports a load failure and maps it to exit code 2.
func outputLoadError(formatter *OutputFormatter, err error) error {
	code, message := ErrCodeGeneric, err.Error()
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		code, message = loadErr.Code, loadErr.Message
	}
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}
