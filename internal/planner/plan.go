package planner

import (
	"math/big"

	"github.com/dlaw/fixpoint/internal/algebra"
	"github.com/dlaw/fixpoint/internal/ir"
)

// Plan is the fully derived form of one declaration unit: every format,
// constant and pipeline node annotated with its descriptor and resolved
// storage. A Plan exists only if zero diagnostics were produced; the
// emitter consumes it without further checking.
type Plan struct {
	Module   *ir.Module
	DeclHash string

	Formats   []FormatPlan
	Constants []ConstantPlan
	Pipelines []PipelinePlan
}

// FormatPlan is a declared format with resolved storage.
type FormatPlan struct {
	Name    string
	Desc    algebra.Descriptor
	Storage algebra.Storage
}

// ConstantPlan is a declared constant with its exact raw value.
type ConstantPlan struct {
	Name    string
	Format  string
	Text    string
	Raw     *big.Int
	Desc    algebra.Descriptor
	Storage algebra.Storage
}

// ParamPlan is a typed pipeline input.
type ParamPlan struct {
	Name    string
	Format  string
	Desc    algebra.Descriptor
	Storage algebra.Storage
}

// PipelinePlan is one derived pipeline.
type PipelinePlan struct {
	Name   string
	Params []ParamPlan
	Nodes  []NodePlan
	Result string

	// Checked marks pipelines containing a runtime-checked step: a
	// to_unsigned narrowing or a div with a runtime divisor. Their
	// generated functions return an error.
	Checked bool
}

// NodePlan is one derived operation node.
type NodePlan struct {
	Name string
	Op   ir.Op
	Args []string

	// Desc and Storage describe the node's value. Zero for comparisons;
	// IsBool marks those.
	Desc    algebra.Descriptor
	Storage algebra.Storage
	IsBool  bool

	// ArgShifts are the realignment left-shifts per arg for add, sub,
	// sum and comparisons. Same length as Args; nil for other ops.
	ArgShifts []uint

	// Amount is the distance for shl/shr/raw_shl/raw_shr and the target
	// bit count for widen.
	Amount uint

	// Const resolution for mul_const.
	ConstName string
	ConstRaw  *big.Int

	// div_exact: the divisor is ±2^DivPow.
	DivPow int
	DivNeg bool

	// Prescale is the numerator left-shift for div.
	Prescale uint

	// Inter is the intermediate lane: the division lane (prescaled
	// numerator widened to hold the divisor) for div, the comparison
	// lane for comparisons. Meaningful only for those ops.
	Inter        algebra.Descriptor
	InterStorage algebra.Storage
}

// Binding is a name visible inside a pipeline: a param, a declared
// constant, or an earlier node.
type Binding struct {
	Desc    algebra.Descriptor
	Storage algebra.Storage
	IsBool  bool

	Param *ParamPlan
	Const *ConstantPlan
	Node  *NodePlan
}

// Pipeline returns the named pipeline plan.
func (p *Plan) Pipeline(name string) (*PipelinePlan, bool) {
	for i := range p.Pipelines {
		if p.Pipelines[i].Name == name {
			return &p.Pipelines[i], true
		}
	}
	return nil, false
}

// Constant returns the named constant plan.
func (p *Plan) Constant(name string) (*ConstantPlan, bool) {
	for i := range p.Constants {
		if p.Constants[i].Name == name {
			return &p.Constants[i], true
		}
	}
	return nil, false
}

// Format returns the named format plan.
func (p *Plan) Format(name string) (*FormatPlan, bool) {
	for i := range p.Formats {
		if p.Formats[i].Name == name {
			return &p.Formats[i], true
		}
	}
	return nil, false
}

// Binding resolves a name visible inside pp: params and nodes first,
// then the unit's constants.
func (p *Plan) Binding(pp *PipelinePlan, name string) (Binding, bool) {
	for i := range pp.Params {
		if pp.Params[i].Name == name {
			prm := &pp.Params[i]
			return Binding{Desc: prm.Desc, Storage: prm.Storage, Param: prm}, true
		}
	}
	for i := range pp.Nodes {
		if pp.Nodes[i].Name == name {
			n := &pp.Nodes[i]
			return Binding{Desc: n.Desc, Storage: n.Storage, IsBool: n.IsBool, Node: n}, true
		}
	}
	for i := range p.Constants {
		if p.Constants[i].Name == name {
			c := &p.Constants[i]
			return Binding{Desc: c.Desc, Storage: c.Storage, Const: c}, true
		}
	}
	return Binding{}, false
}

// Hash computes the plan's content-addressed identity.
func (p *Plan) Hash() (string, error) {
	return ir.PlanHash(p.Canonical())
}

// Canonical returns the plan as a canonical map for hashing. It chains
// the decl hash, so a plan hash commits to both what was declared and
// what was derived from it.
func (p *Plan) Canonical() map[string]any {
	formats := make([]any, len(p.Formats))
	for i, f := range p.Formats {
		formats[i] = map[string]any{
			"name":    f.Name,
			"desc":    descCanonical(f.Desc),
			"storage": f.Storage.GoType(),
		}
	}

	constants := make([]any, len(p.Constants))
	for i, c := range p.Constants {
		constants[i] = map[string]any{
			"name":    c.Name,
			"format":  c.Format,
			"raw":     c.Raw.String(),
			"desc":    descCanonical(c.Desc),
			"storage": c.Storage.GoType(),
		}
	}

	pipelines := make([]any, len(p.Pipelines))
	for i := range p.Pipelines {
		pipelines[i] = p.Pipelines[i].canonical()
	}

	return map[string]any{
		"ir_version": ir.IRVersion,
		"decl_hash":  p.DeclHash,
		"formats":    formats,
		"constants":  constants,
		"pipelines":  pipelines,
	}
}

func (pp *PipelinePlan) canonical() map[string]any {
	params := make([]any, len(pp.Params))
	for i, prm := range pp.Params {
		params[i] = map[string]any{
			"name":    prm.Name,
			"format":  prm.Format,
			"storage": prm.Storage.GoType(),
		}
	}

	nodes := make([]any, len(pp.Nodes))
	for i := range pp.Nodes {
		nodes[i] = pp.Nodes[i].canonical()
	}

	return map[string]any{
		"name":    pp.Name,
		"params":  params,
		"nodes":   nodes,
		"result":  pp.Result,
		"checked": pp.Checked,
	}
}

func (n *NodePlan) canonical() map[string]any {
	m := map[string]any{
		"name": n.Name,
		"op":   string(n.Op),
	}
	if len(n.Args) > 0 {
		args := make([]any, len(n.Args))
		for i, a := range n.Args {
			args[i] = a
		}
		m["args"] = args
	}
	if n.IsBool {
		m["bool"] = true
		m["inter"] = descCanonical(n.Inter)
		m["inter_storage"] = n.InterStorage.GoType()
	} else {
		m["desc"] = descCanonical(n.Desc)
		m["storage"] = n.Storage.GoType()
	}
	if len(n.ArgShifts) > 0 {
		shifts := make([]any, len(n.ArgShifts))
		for i, s := range n.ArgShifts {
			shifts[i] = s
		}
		m["arg_shifts"] = shifts
	}
	if n.Amount != 0 {
		m["amount"] = n.Amount
	}
	if n.ConstName != "" {
		m["const"] = n.ConstName
	}
	if n.Op == ir.OpDivExact {
		m["div_pow"] = n.DivPow
		m["div_neg"] = n.DivNeg
	}
	if n.Op == ir.OpDiv {
		m["prescale"] = n.Prescale
		m["lane"] = descCanonical(n.Inter)
		m["lane_storage"] = n.InterStorage.GoType()
	}
	return m
}

func descCanonical(d algebra.Descriptor) map[string]any {
	return map[string]any{
		"shift":  d.Shift,
		"bits":   d.Bits,
		"signed": d.Signed,
	}
}
