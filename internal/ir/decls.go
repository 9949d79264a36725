package ir

// Module is one compiled declaration unit: the formats, constants and
// pipelines of a specs directory, plus the Go package the generated code
// belongs to.
type Module struct {
	Name      string     `json:"name"`
	Package   string     `json:"package"`
	Formats   []Format   `json:"formats"`
	Constants []Constant `json:"constants,omitempty"`
	Pipelines []Pipeline `json:"pipelines,omitempty"`
}

// Format declares a named fixed-point format.
// Shift is the binary scale (value = raw * 2^shift); Bits bounds the raw
// magnitude with the sign bit excluded.
type Format struct {
	Name   string `json:"name"`
	Shift  int64  `json:"shift"`
	Bits   int64  `json:"bits"`
	Signed bool   `json:"signed,omitempty"`
}

// Constant declares a named literal bound to a declared format.
// Value is exact literal text; it either scales to an integer raw at the
// format's shift or generation fails.
type Constant struct {
	Name   string `json:"name"`
	Format string `json:"format"`
	Value  string `json:"value"`
}

// Pipeline declares a named expression graph over declared formats.
// Steps are in dependency order: each step references only parameters and
// earlier steps, so the graph is acyclic by construction.
type Pipeline struct {
	Name   string  `json:"name"`
	Params []Param `json:"params"`
	Steps  []Step  `json:"steps"`
	Result string  `json:"result"`
}

// Param is a typed pipeline input.
type Param struct {
	Name   string `json:"name"`
	Format string `json:"format"`
}

// Step is a single operation node.
type Step struct {
	Name string   `json:"name"`
	Op   Op       `json:"op"`
	Args []string `json:"args,omitempty"`

	// Amount is the shift distance for shl/shr/raw_shl/raw_shr and the
	// target bit count for widen.
	Amount int64 `json:"amount,omitempty"`

	// Const names a declared constant (mul_const) or holds inline literal
	// text for the exact division form (div_exact).
	Const string `json:"const,omitempty"`

	// Target names the declared format a truncating division (div)
	// resolves into.
	Target string `json:"target,omitempty"`
}

// Op identifies an operation derivation rule.
type Op string

// The operation set. div_exact is the shift-reinterpretation form for
// power-of-two constant divisors; div is the explicit truncating form.
const (
	OpAdd        Op = "add"
	OpSub        Op = "sub"
	OpMul        Op = "mul"
	OpMulConst   Op = "mul_const"
	OpDiv        Op = "div"
	OpDivExact   Op = "div_exact"
	OpShl        Op = "shl"
	OpShr        Op = "shr"
	OpRawShl     Op = "raw_shl"
	OpRawShr     Op = "raw_shr"
	OpNeg        Op = "neg"
	OpSum        Op = "sum"
	OpWiden      Op = "widen"
	OpToSigned   Op = "to_signed"
	OpToUnsigned Op = "to_unsigned"
	OpEq         Op = "eq"
	OpNe         Op = "ne"
	OpLt         Op = "lt"
	OpLe         Op = "le"
	OpGt         Op = "gt"
	OpGe         Op = "ge"
)

// ValidOps defines the allowed step operations.
var ValidOps = map[Op]bool{
	OpAdd: true, OpSub: true, OpMul: true, OpMulConst: true,
	OpDiv: true, OpDivExact: true,
	OpShl: true, OpShr: true, OpRawShl: true, OpRawShr: true,
	OpNeg: true, OpSum: true, OpWiden: true,
	OpToSigned: true, OpToUnsigned: true,
	OpEq: true, OpNe: true, OpLt: true, OpLe: true, OpGt: true, OpGe: true,
}

// IsComparison reports whether op yields a bool instead of a fixed-point
// value.
func (op Op) IsComparison() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// FindFormat returns the named format declaration.
func (m *Module) FindFormat(name string) (*Format, bool) {
	for i := range m.Formats {
		if m.Formats[i].Name == name {
			return &m.Formats[i], true
		}
	}
	return nil, false
}

// FindConstant returns the named constant declaration.
func (m *Module) FindConstant(name string) (*Constant, bool) {
	for i := range m.Constants {
		if m.Constants[i].Name == name {
			return &m.Constants[i], true
		}
	}
	return nil, false
}

// FindPipeline returns the named pipeline declaration.
func (m *Module) FindPipeline(name string) (*Pipeline, bool) {
	for i := range m.Pipelines {
		if m.Pipelines[i].Name == name {
			return &m.Pipelines[i], true
		}
	}
	return nil, false
}

// Canonical returns the module as a canonical map for hashing.
// Field order is irrelevant (keys are sorted during marshaling) but the
// slice order of declarations is identity-relevant: reordering
// declarations is a different module.
func (m *Module) Canonical() map[string]any {
	formats := make([]any, len(m.Formats))
	for i, f := range m.Formats {
		formats[i] = map[string]any{
			"name":   f.Name,
			"shift":  f.Shift,
			"bits":   f.Bits,
			"signed": f.Signed,
		}
	}

	constants := make([]any, len(m.Constants))
	for i, c := range m.Constants {
		constants[i] = map[string]any{
			"name":   c.Name,
			"format": c.Format,
			"value":  c.Value,
		}
	}

	pipelines := make([]any, len(m.Pipelines))
	for i := range m.Pipelines {
		pipelines[i] = m.Pipelines[i].canonical()
	}

	return map[string]any{
		"ir_version": IRVersion,
		"name":       m.Name,
		"package":    m.Package,
		"formats":    formats,
		"constants":  constants,
		"pipelines":  pipelines,
	}
}

func (p *Pipeline) canonical() map[string]any {
	params := make([]any, len(p.Params))
	for i, pr := range p.Params {
		params[i] = map[string]any{
			"name":   pr.Name,
			"format": pr.Format,
		}
	}

	steps := make([]any, len(p.Steps))
	for i, s := range p.Steps {
		step := map[string]any{
			"name": s.Name,
			"op":   string(s.Op),
		}
		if len(s.Args) > 0 {
			args := make([]any, len(s.Args))
			for j, a := range s.Args {
				args[j] = a
			}
			step["args"] = args
		}
		if s.Amount != 0 {
			step["amount"] = s.Amount
		}
		if s.Const != "" {
			step["const"] = s.Const
		}
		if s.Target != "" {
			step["target"] = s.Target
		}
		steps[i] = step
	}

	return map[string]any{
		"name":   p.Name,
		"params": params,
		"steps":  steps,
		"result": p.Result,
	}
}
