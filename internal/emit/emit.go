package emit

import (
	"fmt"
	"go/format"
	"strings"

	"github.com/dlaw/fixpoint/internal/algebra"
	"github.com/dlaw/fixpoint/internal/planner"
)

// Generator renders one derived plan as a single Go source file.
//
// Every emitted statement computes at most one binary operation, so the
// output is stable under gofmt and the overflow argument can be read off
// line by line. All iteration follows plan order; equal plans produce
// byte-identical files.
type Generator struct {
	plan *planner.Plan
	b    strings.Builder

	// types lists every named type to emit: declared formats first, then
	// derived pipeline result formats, in plan order.
	types  []typeDecl
	byDesc map[algebra.Descriptor]string
}

type typeDecl struct {
	Name     string
	Desc     algebra.Descriptor
	Storage  algebra.Storage
	Declared bool
}

// Generate renders p into gofmt-formatted Go source.
func Generate(p *planner.Plan) ([]byte, error) {
	planHash, err := p.Hash()
	if err != nil {
		return nil, fmt.Errorf("hash plan for unit %s: %w", p.Module.Name, err)
	}

	g := &Generator{plan: p, byDesc: make(map[algebra.Descriptor]string)}
	g.collectTypes()
	g.file(planHash)

	out, err := format.Source([]byte(g.b.String()))
	if err != nil {
		return nil, fmt.Errorf("format generated unit %s: %w", p.Module.Name, err)
	}
	return out, nil
}

// typeNameFor resolves the emitted type name for a descriptor: the first
// declared format with that exact descriptor, else a derived Fix name.
func (g *Generator) typeNameFor(d algebra.Descriptor) string {
	if name, ok := g.byDesc[d]; ok {
		return name
	}
	return TypeName(d)
}

func (g *Generator) collectTypes() {
	for _, f := range g.plan.Formats {
		g.types = append(g.types, typeDecl{Name: f.Name, Desc: f.Desc, Storage: f.Storage, Declared: true})
		if _, ok := g.byDesc[f.Desc]; !ok {
			g.byDesc[f.Desc] = f.Name
		}
	}

	// Pipelines whose result descriptor matches no declared format need
	// a derived type; intermediate steps live in scratch integers and
	// need none.
	for i := range g.plan.Pipelines {
		pp := &g.plan.Pipelines[i]
		bnd, ok := g.plan.Binding(pp, pp.Result)
		if !ok || bnd.IsBool {
			continue
		}
		if _, ok := g.byDesc[bnd.Desc]; ok {
			continue
		}
		name := TypeName(bnd.Desc)
		g.byDesc[bnd.Desc] = name
		g.types = append(g.types, typeDecl{Name: name, Desc: bnd.Desc, Storage: bnd.Storage})
	}
}

func (g *Generator) file(planHash string) {
	m := g.plan.Module
	fmt.Fprintf(&g.b, "// Code generated by fixpoint. DO NOT EDIT.\n")
	fmt.Fprintf(&g.b, "//\n")
	fmt.Fprintf(&g.b, "// unit: %s\n", m.Name)
	fmt.Fprintf(&g.b, "// decl: %s\n", g.plan.DeclHash)
	fmt.Fprintf(&g.b, "// plan: %s\n", planHash)
	fmt.Fprintf(&g.b, "\npackage %s\n", m.Package)
	fmt.Fprintf(&g.b, "\nimport (\n\t\"github.com/dlaw/fixpoint/fixed\"\n)\n")

	for _, t := range g.types {
		g.typeDecl(t)
	}
	g.assertions()
	g.constants()
	for i := range g.plan.Pipelines {
		g.pipeline(&g.plan.Pipelines[i])
	}
}

func (g *Generator) typeDecl(t typeDecl) {
	b := &g.b
	d := t.Desc
	gt := t.Storage.GoType()

	fmt.Fprintf(b, "\n// %s is %s: value = raw * 2^%d", t.Name, d, d.Shift)
	if !t.Declared {
		fmt.Fprintf(b, " (derived result format)")
	}
	fmt.Fprintf(b, ".\ntype %s %s\n", t.Name, gt)

	g.bounds(t)
	g.constructor(t)
	g.methods(t)
}

// bounds emits the MinT/MaxT raw range for a type. Scalar bounds are
// constants; two-limb bounds have no constant form and become vars.
func (g *Generator) bounds(t typeDecl) {
	b := &g.b
	d := t.Desc
	if t.Storage.Is128() {
		fmt.Fprintf(b, "\n// %s raw bounds.\nvar (\n", t.Name)
		if d.Signed {
			fmt.Fprintf(b, "\tMax%s = %s\n", t.Name, limbs128(d.MaxRaw(), true))
			fmt.Fprintf(b, "\tMin%s = Max%s.Neg()\n", t.Name, t.Name)
		} else {
			fmt.Fprintf(b, "\tMin%s = fixed.Uint128{}\n", t.Name)
			fmt.Fprintf(b, "\tMax%s = %s\n", t.Name, limbs128(d.MaxRaw(), false))
		}
		fmt.Fprintf(b, ")\n")
		return
	}
	gt := t.Storage.GoType()
	fmt.Fprintf(b, "\n// %s raw bounds.\nconst (\n", t.Name)
	fmt.Fprintf(b, "\tMin%s %s = %s\n", t.Name, gt, d.MinRaw())
	fmt.Fprintf(b, "\tMax%s %s = %s\n", t.Name, gt, d.MaxRaw())
	fmt.Fprintf(b, ")\n")
}

// constructor emits the checked NewT ingestion boundary.
func (g *Generator) constructor(t typeDecl) {
	b := &g.b
	d := t.Desc
	st := t.Storage
	gt := st.GoType()

	full := !d.Signed && d.Bits == st.Width.Capacity(false)
	if full {
		fmt.Fprintf(b, "\n// New%s wraps raw; every %s value fits %s.\n", t.Name, gt, d)
		fmt.Fprintf(b, "func New%s(raw %s) (%s, error) {\n", t.Name, gt, t.Name)
		fmt.Fprintf(b, "\treturn %s(raw), nil\n}\n", t.Name)
		return
	}

	fmt.Fprintf(b, "\n// New%s range-checks raw against %s.\n", t.Name, d)
	fmt.Fprintf(b, "func New%s(raw %s) (%s, error) {\n", t.Name, gt, t.Name)
	switch {
	case st.Is128() && d.Signed:
		fmt.Fprintf(b, "\tif raw.Cmp(Min%s) < 0 || raw.Cmp(Max%s) > 0 {\n", t.Name, t.Name)
		fmt.Fprintf(b, "\t\treturn %s{}, fixed.ErrOutOfRange\n\t}\n", t.Name)
	case st.Is128():
		fmt.Fprintf(b, "\tif raw.Cmp(Max%s) > 0 {\n", t.Name)
		fmt.Fprintf(b, "\t\treturn %s{}, fixed.ErrOutOfRange\n\t}\n", t.Name)
	case d.Signed:
		fmt.Fprintf(b, "\tif raw < Min%s || raw > Max%s {\n", t.Name, t.Name)
		fmt.Fprintf(b, "\t\treturn 0, fixed.ErrOutOfRange\n\t}\n")
	default:
		fmt.Fprintf(b, "\tif raw > Max%s {\n", t.Name)
		fmt.Fprintf(b, "\t\treturn 0, fixed.ErrOutOfRange\n\t}\n")
	}
	fmt.Fprintf(b, "\treturn %s(raw), nil\n}\n", t.Name)
}

func (g *Generator) methods(t typeDecl) {
	b := &g.b
	d := t.Desc
	st := t.Storage
	gt := st.GoType()
	n := t.Name

	fmt.Fprintf(b, "\nfunc (x %s) Raw() %s { return %s(x) }\n", n, gt, gt)
	fmt.Fprintf(b, "func (x %s) Shift() int { return %d }\n", n, d.Shift)
	fmt.Fprintf(b, "func (x %s) Bits() uint { return %d }\n", n, d.Bits)
	fmt.Fprintf(b, "func (x %s) IsSigned() bool { return %t }\n", n, d.Signed)

	switch {
	case st.Is128() && st.Signed:
		fmt.Fprintf(b, "func (x %s) Float64() float64 { return fixed.Float64FromRawInt128(fixed.Int128(x), %d) }\n", n, d.Shift)
		fmt.Fprintf(b, "func (x %s) String() string { return fixed.FormatRawBig(fixed.Int128(x).ToBig(), %d) }\n", n, d.Shift)
	case st.Is128():
		fmt.Fprintf(b, "func (x %s) Float64() float64 { return fixed.Float64FromRawUint128(fixed.Uint128(x), %d) }\n", n, d.Shift)
		fmt.Fprintf(b, "func (x %s) String() string { return fixed.FormatRawBig(fixed.Uint128(x).ToBig(), %d) }\n", n, d.Shift)
	case st.Signed:
		fmt.Fprintf(b, "func (x %s) Float64() float64 { return fixed.Float64FromRaw(int64(x), %d) }\n", n, d.Shift)
		fmt.Fprintf(b, "func (x %s) String() string { return fixed.FormatRaw(int64(x), %d) }\n", n, d.Shift)
	default:
		fmt.Fprintf(b, "func (x %s) Float64() float64 { return fixed.Float64FromRawUint(uint64(x), %d) }\n", n, d.Shift)
		fmt.Fprintf(b, "func (x %s) String() string { return fixed.FormatRawUint(uint64(x), %d) }\n", n, d.Shift)
	}
}

func (g *Generator) assertions() {
	b := &g.b
	fmt.Fprintf(b, "\nvar (\n")
	for _, t := range g.types {
		if t.Storage.Is128() {
			fmt.Fprintf(b, "\t_ fixed.Numeric = %s{}\n", t.Name)
		} else {
			fmt.Fprintf(b, "\t_ fixed.Numeric = %s(0)\n", t.Name)
		}
	}
	fmt.Fprintf(b, ")\n")
}

func (g *Generator) constants() {
	b := &g.b
	for i := range g.plan.Constants {
		c := &g.plan.Constants[i]
		fmt.Fprintf(b, "\n// %s is the declared constant %s (raw %s).\n", c.Name, c.Text, c.Raw)
		if c.Storage.Is128() {
			fmt.Fprintf(b, "var %s = %s(%s)\n", c.Name, c.Format, limbs128(c.Raw, c.Storage.Signed))
		} else {
			fmt.Fprintf(b, "const %s %s = %s\n", c.Name, c.Format, c.Raw)
		}
	}
}
