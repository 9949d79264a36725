package emit

import (
	"fmt"

	"github.com/dlaw/fixpoint/internal/algebra"
	"github.com/dlaw/fixpoint/internal/ir"
	"github.com/dlaw/fixpoint/internal/planner"
)

// operand is a resolved step argument: the raw-value expression plus the
// format it carries.
type operand struct {
	expr string
	sto  algebra.Storage
	desc algebra.Descriptor
}

func (g *Generator) operand(pp *planner.PipelinePlan, name string) operand {
	bnd, _ := g.plan.Binding(pp, name)
	o := operand{sto: bnd.Storage, desc: bnd.Desc}
	switch {
	case bnd.Node != nil:
		o.expr = name
	default:
		// Params and constants are typed values; steps consume raws.
		o.expr = name + ".Raw()"
	}
	return o
}

func (g *Generator) pipeline(pp *planner.PipelinePlan) {
	b := &g.b
	fnName := exportName(pp.Name)

	resBnd, _ := g.plan.Binding(pp, pp.Result)
	retType := "bool"
	switch {
	case resBnd.Param != nil:
		// A param result keeps its declared format, which may share a
		// descriptor with another format.
		retType = resBnd.Param.Format
	case !resBnd.IsBool:
		retType = g.typeNameFor(resBnd.Desc)
	}

	fmt.Fprintf(b, "\n// %s evaluates the %s pipeline.\n", fnName, pp.Name)
	if pp.Checked {
		fmt.Fprintf(b, "// It returns an error when a runtime check fails.\n")
	}
	fmt.Fprintf(b, "func %s(", fnName)
	for i := range pp.Params {
		if i > 0 {
			fmt.Fprintf(b, ", ")
		}
		fmt.Fprintf(b, "%s %s", pp.Params[i].Name, pp.Params[i].Format)
	}
	if pp.Checked {
		fmt.Fprintf(b, ") (%s, error) {\n", retType)
	} else {
		fmt.Fprintf(b, ") %s {\n", retType)
	}

	used := usedNames(pp)
	for i := range pp.Nodes {
		n := &pp.Nodes[i]
		g.node(pp, n, retType, resBnd)
		if !used[n.Name] {
			fmt.Fprintf(b, "\t_ = %s\n", n.Name)
		}
	}

	ret := pp.Result
	if resBnd.Node != nil && !resBnd.IsBool {
		ret = fmt.Sprintf("%s(%s)", retType, pp.Result)
	}
	if pp.Checked {
		fmt.Fprintf(b, "\treturn %s, nil\n}\n", ret)
	} else {
		fmt.Fprintf(b, "\treturn %s\n}\n", ret)
	}
}

// usedNames marks every step consumed by a later step or the result.
func usedNames(pp *planner.PipelinePlan) map[string]bool {
	used := map[string]bool{pp.Result: true}
	for i := range pp.Nodes {
		for _, a := range pp.Nodes[i].Args {
			used[a] = true
		}
	}
	return used
}

// errReturn renders the early-return statement for a failed runtime
// check inside a checked pipeline.
func errReturn(retType string, resBnd planner.Binding, sentinel string) string {
	zero := retType + "(0)"
	switch {
	case resBnd.IsBool:
		zero = "false"
	case resBnd.Storage.Is128():
		zero = retType + "{}"
	}
	return fmt.Sprintf("return %s, fixed.%s", zero, sentinel)
}

func (g *Generator) node(pp *planner.PipelinePlan, n *planner.NodePlan, retType string, resBnd planner.Binding) {
	b := &g.b

	switch n.Op {
	case ir.OpAdd, ir.OpSub:
		a := g.argVar(n.Name+"A", g.operand(pp, n.Args[0]), n.Storage, n.ArgShifts[0])
		c := g.argVar(n.Name+"B", g.operand(pp, n.Args[1]), n.Storage, n.ArgShifts[1])
		sym := "+"
		if n.Op == ir.OpSub {
			sym = "-"
		}
		fmt.Fprintf(b, "\t%s := %s\n", n.Name, binary(n.Storage, a, sym, c))

	case ir.OpMul:
		g.mul(n, g.operand(pp, n.Args[0]), g.operand(pp, n.Args[1]))

	case ir.OpMulConst:
		cst, _ := g.plan.Constant(n.ConstName)
		g.mul(n, g.operand(pp, n.Args[0]), operand{
			expr: cst.Name + ".Raw()", sto: cst.Storage, desc: cst.Desc,
		})

	case ir.OpDiv:
		num := g.operand(pp, n.Args[0])
		div := g.operand(pp, n.Args[1])
		bnd, _ := g.plan.Binding(pp, n.Args[1])
		if bnd.Const == nil {
			fmt.Fprintf(b, "\tif %s {\n\t\t%s\n\t}\n",
				zeroTest(div), errReturn(retType, resBnd, "ErrDivideByZero"))
		}
		numExpr := g.argVar(n.Name+"N", num, n.InterStorage, n.Prescale)
		q := binary(n.InterStorage, numExpr, "/", lift(div.expr, div.sto, n.InterStorage))
		fmt.Fprintf(b, "\t%s := %s\n", n.Name, lift(q, n.InterStorage, n.Storage))

	case ir.OpDivExact:
		o := g.operand(pp, n.Args[0])
		e := lift(o.expr, o.sto, n.Storage)
		if n.DivNeg {
			e = negate(e, n.Storage)
		}
		fmt.Fprintf(b, "\t%s := %s\n", n.Name, e)

	case ir.OpShl, ir.OpShr, ir.OpWiden, ir.OpToSigned:
		o := g.operand(pp, n.Args[0])
		fmt.Fprintf(b, "\t%s := %s\n", n.Name, lift(o.expr, o.sto, n.Storage))

	case ir.OpRawShl:
		o := g.operand(pp, n.Args[0])
		fmt.Fprintf(b, "\t%s := %s\n", n.Name, shl(lift(o.expr, o.sto, n.Storage), n.Storage, n.Amount))

	case ir.OpRawShr:
		o := g.operand(pp, n.Args[0])
		fmt.Fprintf(b, "\t%s := %s\n", n.Name, lift(shr(o.expr, o.sto, n.Amount), o.sto, n.Storage))

	case ir.OpNeg:
		o := g.operand(pp, n.Args[0])
		fmt.Fprintf(b, "\t%s := %s\n", n.Name, negate(lift(o.expr, o.sto, n.Storage), n.Storage))

	case ir.OpSum:
		g.sum(pp, n)

	case ir.OpToUnsigned:
		o := g.operand(pp, n.Args[0])
		if o.sto.Signed {
			fmt.Fprintf(b, "\tif %s {\n\t\t%s\n\t}\n",
				negTest(o), errReturn(retType, resBnd, "ErrOutOfRange"))
		}
		fmt.Fprintf(b, "\t%s := %s\n", n.Name, lift(o.expr, o.sto, n.Storage))

	case ir.OpEq, ir.OpNe, ir.OpLt, ir.OpLe, ir.OpGt, ir.OpGe:
		a := g.argVar(n.Name+"A", g.operand(pp, n.Args[0]), n.InterStorage, n.ArgShifts[0])
		c := g.argVar(n.Name+"B", g.operand(pp, n.Args[1]), n.InterStorage, n.ArgShifts[1])
		sym := cmpSym(n.Op)
		if n.InterStorage.Is128() {
			fmt.Fprintf(b, "\t%s := %s.Cmp(%s) %s 0\n", n.Name, a, c, sym)
		} else {
			fmt.Fprintf(b, "\t%s := %s %s %s\n", n.Name, a, sym, c)
		}
	}
}

// mul emits a full product. Products that fit 64 bits are plain casts and
// a multiply; wider ones go through the two-limb helpers.
func (g *Generator) mul(n *planner.NodePlan, a, c operand) {
	b := &g.b
	s := n.Storage

	if !s.Is128() {
		fmt.Fprintf(b, "\t%s := %s\n", n.Name,
			binary(s, lift(a.expr, a.sto, s), "*", lift(c.expr, c.sto, s)))
		return
	}

	if !a.sto.Is128() && !c.sto.Is128() {
		if !s.Signed {
			fmt.Fprintf(b, "\t%s := fixed.MulUint64(%s, %s)\n", n.Name, asUint64(a), asUint64(c))
			return
		}
		if int64Safe(a) && int64Safe(c) {
			fmt.Fprintf(b, "\t%s := fixed.MulInt64(%s, %s)\n", n.Name, asInt64(a), asInt64(c))
			return
		}
	}
	fmt.Fprintf(b, "\t%s := %s\n", n.Name,
		binary(s, lift(a.expr, a.sto, s), "*", lift(c.expr, c.sto, s)))
}

func (g *Generator) sum(pp *planner.PipelinePlan, n *planner.NodePlan) {
	b := &g.b
	terms := make([]string, len(n.Args))
	for i, arg := range n.Args {
		terms[i] = g.argVar(fmt.Sprintf("%sT%d", n.Name, i),
			g.operand(pp, arg), n.Storage, n.ArgShifts[i])
	}

	acc := terms[0]
	for i := 1; i < len(terms); i++ {
		name := n.Name
		if i < len(terms)-1 {
			name = fmt.Sprintf("%sP%d", n.Name, i)
		}
		fmt.Fprintf(b, "\t%s := %s\n", name, binary(n.Storage, acc, "+", terms[i]))
		acc = name
	}
}

// argVar materializes an operand in the target lane. Realignment shifts
// get their own statement so no emitted line carries two operations;
// plain lifts stay inline.
func (g *Generator) argVar(name string, o operand, lane algebra.Storage, k uint) string {
	e := lift(o.expr, o.sto, lane)
	if k == 0 {
		return e
	}
	fmt.Fprintf(&g.b, "\t%s := %s\n", name, shl(e, lane, k))
	return name
}

// lift converts a raw expression from one storage lane to another.
// Narrowing is only emitted where the plan proves the value fits.
func lift(expr string, from, to algebra.Storage) string {
	if from.GoType() == to.GoType() {
		return expr
	}
	switch {
	case !from.Is128() && !to.Is128():
		return fmt.Sprintf("%s(%s)", to.GoType(), expr)

	case !from.Is128() && to.Is128():
		if !to.Signed {
			return fmt.Sprintf("fixed.Uint128From64(%s)", cast(expr, from.GoType(), "uint64"))
		}
		if !from.Signed && from.Width == algebra.W64 {
			return fmt.Sprintf("fixed.Int128FromUint64(%s)", expr)
		}
		return fmt.Sprintf("fixed.Int128From64(%s)", cast(expr, from.GoType(), "int64"))

	case to.Is128():
		if to.Signed {
			return fmt.Sprintf("fixed.Int128FromUint128(%s)", expr)
		}
		return fmt.Sprintf("fixed.Uint128FromInt128(%s)", expr)

	default: // two-limb to scalar
		if from.Signed {
			return cast(expr+".Int64()", "int64", to.GoType())
		}
		return cast(expr+".Uint64()", "uint64", to.GoType())
	}
}

func cast(expr, from, to string) string {
	if from == to {
		return expr
	}
	return fmt.Sprintf("%s(%s)", to, expr)
}

func binary(lane algebra.Storage, a, sym, b string) string {
	if !lane.Is128() {
		return fmt.Sprintf("%s %s %s", a, sym, b)
	}
	method := map[string]string{"+": "Add", "-": "Sub", "*": "Mul", "/": "Quo"}[sym]
	return fmt.Sprintf("%s.%s(%s)", a, method, b)
}

func shl(expr string, lane algebra.Storage, k uint) string {
	if lane.Is128() {
		return fmt.Sprintf("%s.Shl(%d)", expr, k)
	}
	return fmt.Sprintf("%s << %d", expr, k)
}

func shr(expr string, lane algebra.Storage, k uint) string {
	if lane.Is128() {
		return fmt.Sprintf("%s.Shr(%d)", expr, k)
	}
	return fmt.Sprintf("%s >> %d", expr, k)
}

func negate(expr string, lane algebra.Storage) string {
	if lane.Is128() {
		return expr + ".Neg()"
	}
	return "-" + expr
}

func zeroTest(o operand) string {
	switch {
	case o.sto.Is128() && o.sto.Signed:
		return o.expr + ".Sign() == 0"
	case o.sto.Is128():
		return o.expr + ".IsZero()"
	default:
		return o.expr + " == 0"
	}
}

func negTest(o operand) string {
	if o.sto.Is128() {
		return o.expr + ".IsNeg()"
	}
	return o.expr + " < 0"
}

// asUint64 and asInt64 feed the 64x64 full-product helpers.
func asUint64(o operand) string {
	return cast(o.expr, o.sto.GoType(), "uint64")
}

func asInt64(o operand) string {
	return cast(o.expr, o.sto.GoType(), "int64")
}

// int64Safe reports whether the operand's raw always fits int64: signed
// storage always does, unsigned only below 64 magnitude bits.
func int64Safe(o operand) bool {
	return o.sto.Signed || o.desc.Bits <= 63
}

func cmpSym(op ir.Op) string {
	switch op {
	case ir.OpEq:
		return "=="
	case ir.OpNe:
		return "!="
	case ir.OpLt:
		return "<"
	case ir.OpLe:
		return "<="
	case ir.OpGt:
		return ">"
	default:
		return ">="
	}
}
