package planner

import (
	"fmt"
	"math/big"

	"github.com/dlaw/fixpoint/internal/algebra"
	"github.com/dlaw/fixpoint/internal/ir"
	"github.com/dlaw/fixpoint/internal/literal"
)

// SourceLookup maps declaration paths ("pipelines.fuse.steps.sum") back to
// source positions for diagnostics. compiler.SourceMap implements it; nil
// is allowed and yields positionless diagnostics.
type SourceLookup interface {
	Lookup(path string) string
}

// BuildPlan derives descriptors and storage for every declaration in m.
// The module must already have passed validation; BuildPlan checks the
// arithmetic, not the shape.
//
// Diagnostics are collected across the whole module: every format,
// constant and pipeline is visited even after earlier failures, but a
// failing step aborts the rest of its own pipeline because later steps
// have no descriptor to build on. The plan is returned only when the
// diagnostic list is empty.
func BuildPlan(m *ir.Module, src SourceLookup) (*Plan, []Diagnostic) {
	b := &builder{m: m, src: src}
	p := b.build()
	if len(b.diags) > 0 {
		return nil, b.diags
	}
	return p, nil
}

type builder struct {
	m     *ir.Module
	src   SourceLookup
	diags []Diagnostic
}

func (b *builder) pos(path string) string {
	if b.src == nil {
		return ""
	}
	return b.src.Lookup(path)
}

func (b *builder) representation(path, format string, args ...any) {
	d := NewRepresentationDiag(path, b.pos(path), fmt.Sprintf(format, args...))
	b.diags = append(b.diags, *d)
}

func (b *builder) capacity(path string, demand algebra.Descriptor, err error) {
	d := NewCapacityDiag(path, b.pos(path), demand, err.Error())
	b.diags = append(b.diags, *d)
}

// resolve maps a derived descriptor to its storage width, reporting a
// capacity diagnostic on overflow of the width table.
func (b *builder) resolve(path string, d algebra.Descriptor) (algebra.Storage, bool) {
	st, err := algebra.ResolveDescriptor(d)
	if err != nil {
		b.capacity(path, d, err)
		return algebra.Storage{}, false
	}
	return st, true
}

func (b *builder) build() *Plan {
	p := &Plan{Module: b.m, DeclHash: ir.MustDeclHash(b.m)}

	formats := make(map[string]FormatPlan, len(b.m.Formats))
	for _, f := range b.m.Formats {
		path := "formats." + f.Name
		desc := algebra.Descriptor{Shift: int(f.Shift), Bits: uint(f.Bits), Signed: f.Signed}
		st, ok := b.resolve(path, desc)
		if !ok {
			continue
		}
		fp := FormatPlan{Name: f.Name, Desc: desc, Storage: st}
		p.Formats = append(p.Formats, fp)
		formats[f.Name] = fp
	}

	constants := make(map[string]ConstantPlan, len(b.m.Constants))
	for _, c := range b.m.Constants {
		path := "constants." + c.Name
		f, ok := formats[c.Format]
		if !ok {
			b.representation(path, "format %q is not available", c.Format)
			continue
		}
		raw, err := literal.Fit(c.Value, f.Desc)
		if err != nil {
			b.representation(path, "%v", err)
			continue
		}
		cp := ConstantPlan{
			Name:    c.Name,
			Format:  c.Format,
			Text:    c.Value,
			Raw:     raw,
			Desc:    f.Desc,
			Storage: f.Storage,
		}
		p.Constants = append(p.Constants, cp)
		constants[c.Name] = cp
	}

	for _, pl := range b.m.Pipelines {
		pp, ok := b.buildPipeline(pl, formats, constants)
		if ok {
			p.Pipelines = append(p.Pipelines, pp)
		}
	}
	return p
}

// bound is a name in scope while deriving one pipeline. constRaw is
// non-nil only for declared constants; a constant divisor's exact value
// tightens the div quotient bound.
type bound struct {
	desc     algebra.Descriptor
	storage  algebra.Storage
	isBool   bool
	constRaw *big.Int
}

func (b *builder) buildPipeline(pl ir.Pipeline, formats map[string]FormatPlan, constants map[string]ConstantPlan) (PipelinePlan, bool) {
	pp := PipelinePlan{Name: pl.Name, Result: pl.Result}
	scope := make(map[string]bound, len(pl.Params)+len(pl.Steps))
	for name, c := range constants {
		scope[name] = bound{desc: c.Desc, storage: c.Storage, constRaw: c.Raw}
	}

	for _, prm := range pl.Params {
		path := fmt.Sprintf("pipelines.%s.params.%s", pl.Name, prm.Name)
		f, ok := formats[prm.Format]
		if !ok {
			b.representation(path, "format %q is not available", prm.Format)
			return pp, false
		}
		pp.Params = append(pp.Params, ParamPlan{
			Name: prm.Name, Format: prm.Format, Desc: f.Desc, Storage: f.Storage,
		})
		scope[prm.Name] = bound{desc: f.Desc, storage: f.Storage}
	}

	for _, s := range pl.Steps {
		path := fmt.Sprintf("pipelines.%s.steps.%s", pl.Name, s.Name)
		node, ok := b.deriveStep(path, s, &pp, scope, formats, constants)
		if !ok {
			return pp, false
		}
		pp.Nodes = append(pp.Nodes, node)
		scope[s.Name] = bound{desc: node.Desc, storage: node.Storage, isBool: node.IsBool}
	}
	return pp, true
}

// operands resolves step args in scope and rejects comparison results,
// which have no descriptor to feed arithmetic with.
func (b *builder) operands(path string, s ir.Step, scope map[string]bound) ([]bound, bool) {
	out := make([]bound, len(s.Args))
	for i, arg := range s.Args {
		bd, ok := scope[arg]
		if !ok {
			b.representation(path, "%q is not in scope", arg)
			return nil, false
		}
		if bd.isBool {
			b.representation(path, "comparison %q has no value to feed %s", arg, s.Op)
			return nil, false
		}
		out[i] = bd
	}
	return out, true
}

func (b *builder) deriveStep(path string, s ir.Step, pp *PipelinePlan, scope map[string]bound, formats map[string]FormatPlan, constants map[string]ConstantPlan) (NodePlan, bool) {
	node := NodePlan{Name: s.Name, Op: s.Op, Args: s.Args}

	args, ok := b.operands(path, s, scope)
	if !ok {
		return node, false
	}

	switch s.Op {
	case ir.OpAdd:
		desc, al := algebra.Add(args[0].desc, args[1].desc)
		node.Desc = desc
		node.ArgShifts = []uint{al.A.ShiftBy, al.B.ShiftBy}

	case ir.OpSub:
		desc, al := algebra.Sub(args[0].desc, args[1].desc)
		node.Desc = desc
		node.ArgShifts = []uint{al.A.ShiftBy, al.B.ShiftBy}

	case ir.OpMul:
		node.Desc = algebra.Mul(args[0].desc, args[1].desc)

	case ir.OpMulConst:
		c, ok := constants[s.Const]
		if !ok {
			b.representation(path, "constant %q is not available", s.Const)
			return node, false
		}
		node.ConstName = c.Name
		node.ConstRaw = c.Raw
		node.Desc = algebra.MulConst(args[0].desc, c.Desc.Shift, c.Raw)

	case ir.OpDiv:
		f, ok := formats[s.Target]
		if !ok {
			b.representation(path, "target format %q is not available", s.Target)
			return node, false
		}
		plan, err := algebra.DivTrunc(args[0].desc, args[1].desc, f.Desc, args[1].constRaw)
		if err != nil {
			b.representation(path, "%v", err)
			return node, false
		}
		// A constant divisor is proven nonzero at plan time; a runtime
		// divisor needs the generated zero check and an error return.
		if args[1].constRaw == nil {
			pp.Checked = true
		}
		node.Desc = plan.Result
		node.Prescale = plan.Prescale
		node.Inter = plan.Lane
		node.InterStorage, ok = b.resolve(path, plan.Lane)
		if !ok {
			return node, false
		}

	case ir.OpDivExact:
		r, err := literal.Parse(s.Const)
		if err != nil {
			b.representation(path, "%v", err)
			return node, false
		}
		pow, neg, ok := powerOfTwoExp(r)
		if !ok {
			b.representation(path, "divisor %q is not a power of two; use div with an explicit target", s.Const)
			return node, false
		}
		node.DivPow = pow
		node.DivNeg = neg
		node.Desc = algebra.DivPow2(args[0].desc, pow, neg)

	case ir.OpShl:
		node.Amount = uint(s.Amount)
		node.Desc = algebra.Shl(args[0].desc, node.Amount)

	case ir.OpShr:
		node.Amount = uint(s.Amount)
		node.Desc = algebra.Shr(args[0].desc, node.Amount)

	case ir.OpRawShl:
		node.Amount = uint(s.Amount)
		node.Desc = algebra.RawShl(args[0].desc, node.Amount)

	case ir.OpRawShr:
		node.Amount = uint(s.Amount)
		node.Desc = algebra.RawShr(args[0].desc, node.Amount)

	case ir.OpNeg:
		node.Desc = algebra.Neg(args[0].desc)

	case ir.OpSum:
		ds := make([]algebra.Descriptor, len(args))
		for i, a := range args {
			ds[i] = a.desc
		}
		plan, err := algebra.Sum(ds)
		if err != nil {
			b.representation(path, "%v", err)
			return node, false
		}
		node.Desc = plan.Result
		node.ArgShifts = make([]uint, len(plan.Operands))
		for i, op := range plan.Operands {
			node.ArgShifts[i] = op.ShiftBy
		}

	case ir.OpWiden:
		desc, err := algebra.Widen(args[0].desc, uint(s.Amount))
		if err != nil {
			b.representation(path, "%v", err)
			return node, false
		}
		node.Amount = uint(s.Amount)
		node.Desc = desc

	case ir.OpToSigned:
		node.Desc = algebra.ToSigned(args[0].desc)

	case ir.OpToUnsigned:
		node.Desc = algebra.ToUnsigned(args[0].desc)
		// Reinterpreting an already-unsigned value needs no runtime check.
		if args[0].desc.Signed {
			pp.Checked = true
		}

	case ir.OpEq, ir.OpNe, ir.OpLt, ir.OpLe, ir.OpGt, ir.OpGe:
		plan := algebra.Compare(args[0].desc, args[1].desc)
		node.IsBool = true
		node.ArgShifts = []uint{plan.A.ShiftBy, plan.B.ShiftBy}
		node.Inter = plan.Intermediate
		node.InterStorage, ok = b.resolve(path, plan.Intermediate)
		if !ok {
			return node, false
		}
		return node, true

	default:
		b.representation(path, "operation %q has no derivation rule", s.Op)
		return node, false
	}

	var resolved bool
	node.Storage, resolved = b.resolve(path, node.Desc)
	if !resolved {
		return node, false
	}
	return node, true
}

// powerOfTwoExp decomposes an exact rational into ±2^pow. The exponent may
// be negative ("0.25" is 2^-2); zero and non-powers are rejected.
func powerOfTwoExp(r *big.Rat) (pow int, negative bool, ok bool) {
	num := new(big.Int).Abs(r.Num())
	den := r.Denom()
	if num.Sign() == 0 {
		return 0, false, false
	}
	if num.TrailingZeroBits() != uint(num.BitLen()-1) {
		return 0, false, false
	}
	if den.TrailingZeroBits() != uint(den.BitLen()-1) {
		return 0, false, false
	}
	return (num.BitLen() - 1) - (den.BitLen() - 1), r.Sign() < 0, true
}
