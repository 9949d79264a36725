package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// An evaluation scenario compiles a declaration unit, runs one pipeline
// on exact inputs, and asserts on the result and trace. A rejection
// scenario instead asserts the diagnostics the unit must fail with.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists paths to CUE declaration files forming one unit.
	// Paths are relative to the scenario file location.
	Specs []string `yaml:"specs"`

	// Pipeline names the pipeline to evaluate.
	// Empty for rejection scenarios.
	Pipeline string `yaml:"pipeline,omitempty"`

	// Inputs are the pipeline parameter values as exact decimal text.
	Inputs map[string]string `yaml:"inputs,omitempty"`

	// Expect specifies the expected evaluation outcome.
	Expect *ExpectClause `yaml:"expect,omitempty"`

	// Diagnostics are the generation failures a rejection scenario
	// requires. Subset match per entry; at least one actual diagnostic
	// must match each.
	Diagnostics []ExpectDiagnostic `yaml:"diagnostics,omitempty"`
}

// ExpectClause specifies the expected outcome of a pipeline evaluation.
// All values are exact decimal strings.
type ExpectClause struct {
	// Result is the expected fixed-point value of the pipeline result.
	Result string `yaml:"result,omitempty"`

	// Raw is the expected raw integer of the result.
	Raw string `yaml:"raw,omitempty"`

	// Format is the expected derived descriptor, e.g. "s6@-3".
	Format string `yaml:"format,omitempty"`

	// Bool is the expected outcome for comparison pipelines.
	Bool *bool `yaml:"bool,omitempty"`

	// Error is the expected evaluator error code (e.g. DIVIDE_BY_ZERO).
	// When set, the evaluation must fail with that code and the other
	// fields are ignored.
	Error string `yaml:"error,omitempty"`

	// Steps checks individual step bindings by name.
	Steps []ExpectStep `yaml:"steps,omitempty"`
}

// ExpectStep checks one step's derived binding and computed raw.
type ExpectStep struct {
	// Name is the step name.
	Name string `yaml:"name"`

	// Raw is the expected raw integer, if set.
	Raw string `yaml:"raw,omitempty"`

	// Format is the expected descriptor, if set.
	Format string `yaml:"format,omitempty"`
}

// ExpectDiagnostic matches one required generation diagnostic.
type ExpectDiagnostic struct {
	// Kind is the diagnostic kind: "representation" or "capacity".
	Kind string `yaml:"kind"`

	// Path is the expression path, if it should match exactly.
	Path string `yaml:"path,omitempty"`

	// Contains is a substring the message must contain, if set.
	Contains string `yaml:"contains,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, "")
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving spec paths relative to the provided base path.
// This is useful when scenario files reference specs using relative paths.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "expects:" vs "expect:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve spec paths relative to base path BEFORE validation
	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Specs) == 0 {
		return fmt.Errorf("specs list is required and must be non-empty")
	}

	evaluation := s.Pipeline != "" || s.Expect != nil || len(s.Inputs) > 0
	rejection := len(s.Diagnostics) > 0

	switch {
	case evaluation && rejection:
		return fmt.Errorf("pipeline and diagnostics are mutually exclusive")
	case !evaluation && !rejection:
		return fmt.Errorf("either a pipeline with expect or a diagnostics list is required")
	}

	if evaluation {
		if s.Pipeline == "" {
			return fmt.Errorf("pipeline is required for evaluation scenarios")
		}
		if s.Expect == nil {
			return fmt.Errorf("expect is required for evaluation scenarios")
		}
		if s.Expect.Error == "" && s.Expect.Result == "" && s.Expect.Raw == "" &&
			s.Expect.Bool == nil && len(s.Expect.Steps) == 0 {
			return fmt.Errorf("expect must check at least one of result, raw, bool, error, or steps")
		}
		for i, step := range s.Expect.Steps {
			if step.Name == "" {
				return fmt.Errorf("expect.steps[%d]: name is required", i)
			}
		}
	}

	for i, d := range s.Diagnostics {
		if d.Kind == "" {
			return fmt.Errorf("diagnostics[%d]: kind is required", i)
		}
	}

	// Validate spec paths exist
	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
	}

	return nil
}
