package planner

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/dlaw/fixpoint/fixed"
	"github.com/dlaw/fixpoint/internal/algebra"
	"github.com/dlaw/fixpoint/internal/ir"
	"github.com/dlaw/fixpoint/internal/literal"
)

// Trace event kinds.
const (
	EventParam  = "param"
	EventStep   = "step"
	EventResult = "result"
)

// TraceEvent is one evaluation record: a parameter ingested, a step
// computed, or the result re-stated. Comparison steps carry Bool instead
// of a raw value.
type TraceEvent struct {
	Seq  int64
	Kind string
	Name string
	Op   ir.Op

	Desc    algebra.Descriptor
	Storage algebra.Storage
	Raw     *big.Int
	Bool    *bool
}

// Trace is the transcript of one pipeline evaluation, in execution order.
type Trace struct {
	Pipeline string
	Events   []TraceEvent
}

// Evaluator runs pipelines against a plan with exact arithmetic. It is
// the reference the generated code is checked against: same truncation,
// same flooring, same checked narrowing.
//
// Event sequence numbers come from a logical clock scoped to the
// Evaluator, so traces from consecutive Run calls stay globally ordered.
type Evaluator struct {
	plan  *Plan
	clock *Clock
}

// NewEvaluator creates an evaluator over a derived plan.
func NewEvaluator(p *Plan) *Evaluator {
	return &Evaluator{plan: p, clock: NewClock()}
}

// EvaluatePipeline runs one pipeline on a fresh evaluator.
func EvaluatePipeline(p *Plan, pipeline string, inputs map[string]*big.Int) (*Trace, error) {
	return NewEvaluator(p).Run(pipeline, inputs)
}

// cell is a value in scope during one run.
type cell struct {
	raw     *big.Int
	b       bool
	isBool  bool
	desc    algebra.Descriptor
	storage algebra.Storage
}

// Run evaluates the named pipeline over raw parameter values. Inputs are
// raws at each parameter's declared shift; every declared parameter must
// be present, in range, and nothing extra supplied.
func (e *Evaluator) Run(pipeline string, inputs map[string]*big.Int) (*Trace, error) {
	pp, ok := e.plan.Pipeline(pipeline)
	if !ok {
		return nil, newUnknownPipeline(pipeline)
	}

	tr := &Trace{Pipeline: pipeline}
	cells := make(map[string]cell, len(pp.Params)+len(pp.Nodes))
	for i := range e.plan.Constants {
		c := &e.plan.Constants[i]
		cells[c.Name] = cell{raw: c.Raw, desc: c.Desc, storage: c.Storage}
	}

	for _, prm := range pp.Params {
		raw, ok := inputs[prm.Name]
		if !ok {
			return nil, newBadInput(pipeline, prm.Name, "missing input", nil)
		}
		if !prm.Desc.Contains(raw) {
			msg := fmt.Sprintf("raw %s outside %s", raw, prm.Desc)
			return nil, newBadInput(pipeline, prm.Name, msg, fixed.ErrOutOfRange)
		}
		v := new(big.Int).Set(raw)
		cells[prm.Name] = cell{raw: v, desc: prm.Desc, storage: prm.Storage}
		tr.Events = append(tr.Events, TraceEvent{
			Seq:     e.clock.Next(),
			Kind:    EventParam,
			Name:    prm.Name,
			Desc:    prm.Desc,
			Storage: prm.Storage,
			Raw:     new(big.Int).Set(v),
		})
	}
	if extra := unknownInputs(pp, inputs); extra != "" {
		return nil, newBadInput(pipeline, extra, "not a parameter of this pipeline", nil)
	}

	for i := range pp.Nodes {
		n := &pp.Nodes[i]
		c, err := e.evalNode(pp, n, cells)
		if err != nil {
			return nil, err
		}
		// Derivation guarantees containment; a miss is a derivation bug.
		if !c.isBool && !n.Desc.Contains(c.raw) {
			return nil, fmt.Errorf("pipeline %s step %s: raw %s escapes derived %s",
				pipeline, n.Name, c.raw, n.Desc)
		}
		cells[n.Name] = c
		ev := TraceEvent{
			Seq:     e.clock.Next(),
			Kind:    EventStep,
			Name:    n.Name,
			Op:      n.Op,
			Desc:    c.desc,
			Storage: c.storage,
		}
		if c.isBool {
			b := c.b
			ev.Bool = &b
		} else {
			ev.Raw = new(big.Int).Set(c.raw)
		}
		tr.Events = append(tr.Events, ev)
	}

	res := cells[pp.Result]
	ev := TraceEvent{
		Seq:     e.clock.Next(),
		Kind:    EventResult,
		Name:    pp.Result,
		Desc:    res.desc,
		Storage: res.storage,
	}
	if res.isBool {
		b := res.b
		ev.Bool = &b
	} else {
		ev.Raw = new(big.Int).Set(res.raw)
	}
	tr.Events = append(tr.Events, ev)
	return tr, nil
}

func (e *Evaluator) evalNode(pp *PipelinePlan, n *NodePlan, cells map[string]cell) (cell, error) {
	arg := func(i int) *big.Int { return cells[n.Args[i]].raw }
	out := cell{desc: n.Desc, storage: n.Storage}

	switch n.Op {
	case ir.OpAdd:
		x := new(big.Int).Lsh(arg(0), n.ArgShifts[0])
		y := new(big.Int).Lsh(arg(1), n.ArgShifts[1])
		out.raw = x.Add(x, y)

	case ir.OpSub:
		x := new(big.Int).Lsh(arg(0), n.ArgShifts[0])
		y := new(big.Int).Lsh(arg(1), n.ArgShifts[1])
		out.raw = x.Sub(x, y)

	case ir.OpMul:
		out.raw = new(big.Int).Mul(arg(0), arg(1))

	case ir.OpMulConst:
		out.raw = new(big.Int).Mul(arg(0), n.ConstRaw)

	case ir.OpDiv:
		if arg(1).Sign() == 0 {
			return cell{}, newDivideByZero(pp.Name, n.Name, fixed.ErrDivideByZero)
		}
		num := new(big.Int).Lsh(arg(0), n.Prescale)
		out.raw = num.Quo(num, arg(1))

	case ir.OpDivExact:
		out.raw = new(big.Int).Set(arg(0))
		if n.DivNeg {
			out.raw.Neg(out.raw)
		}

	case ir.OpShl, ir.OpShr, ir.OpWiden, ir.OpToSigned:
		out.raw = new(big.Int).Set(arg(0))

	case ir.OpRawShl:
		out.raw = new(big.Int).Lsh(arg(0), n.Amount)

	case ir.OpRawShr:
		out.raw = new(big.Int).Rsh(arg(0), n.Amount)

	case ir.OpNeg:
		out.raw = new(big.Int).Neg(arg(0))

	case ir.OpSum:
		acc := new(big.Int)
		for i := range n.Args {
			t := new(big.Int).Lsh(arg(i), n.ArgShifts[i])
			acc.Add(acc, t)
		}
		out.raw = acc

	case ir.OpToUnsigned:
		if arg(0).Sign() < 0 {
			return cell{}, newNegativeNarrow(pp.Name, n.Name, fixed.ErrOutOfRange)
		}
		out.raw = new(big.Int).Set(arg(0))

	case ir.OpEq, ir.OpNe, ir.OpLt, ir.OpLe, ir.OpGt, ir.OpGe:
		x := new(big.Int).Lsh(arg(0), n.ArgShifts[0])
		y := new(big.Int).Lsh(arg(1), n.ArgShifts[1])
		out = cell{isBool: true, b: holds(n.Op, x.Cmp(y))}

	default:
		return cell{}, fmt.Errorf("pipeline %s step %s: no evaluation for %q", pp.Name, n.Name, n.Op)
	}
	return out, nil
}

// holds maps a comparison op and a Cmp result to the predicate value.
func holds(op ir.Op, cmp int) bool {
	switch op {
	case ir.OpEq:
		return cmp == 0
	case ir.OpNe:
		return cmp != 0
	case ir.OpLt:
		return cmp < 0
	case ir.OpLe:
		return cmp <= 0
	case ir.OpGt:
		return cmp > 0
	default:
		return cmp >= 0
	}
}

// unknownInputs returns the first (sorted) input name that is not a
// declared parameter, or "".
func unknownInputs(pp *PipelinePlan, inputs map[string]*big.Int) string {
	declared := make(map[string]bool, len(pp.Params))
	for _, prm := range pp.Params {
		declared[prm.Name] = true
	}
	var extras []string
	for name := range inputs {
		if !declared[name] {
			extras = append(extras, name)
		}
	}
	if len(extras) == 0 {
		return ""
	}
	sort.Strings(extras)
	return extras[0]
}

// ParseInputs scales literal input text against each parameter's declared
// format, producing the raw map Run consumes.
func ParseInputs(pp *PipelinePlan, texts map[string]string) (map[string]*big.Int, error) {
	out := make(map[string]*big.Int, len(texts))
	for _, prm := range pp.Params {
		text, ok := texts[prm.Name]
		if !ok {
			return nil, newBadInput(pp.Name, prm.Name, "missing input", nil)
		}
		raw, err := literal.Fit(text, prm.Desc)
		if err != nil {
			return nil, newBadInput(pp.Name, prm.Name, err.Error(), err)
		}
		out[prm.Name] = raw
	}
	var extras []string
	for name := range texts {
		if _, ok := out[name]; !ok {
			extras = append(extras, name)
		}
	}
	if len(extras) > 0 {
		sort.Strings(extras)
		return nil, newBadInput(pp.Name, extras[0], "not a parameter of this pipeline", nil)
	}
	return out, nil
}

// Canonical renders the trace for canonical JSON hashing and golden
// comparison. Raw values become decimal strings; fixed-point values are
// formatted exactly.
func (t *Trace) Canonical() map[string]any {
	events := make([]any, len(t.Events))
	for i := range t.Events {
		events[i] = t.Events[i].canonical()
	}
	return map[string]any{
		"pipeline": t.Pipeline,
		"events":   events,
	}
}

func (ev *TraceEvent) canonical() map[string]any {
	m := map[string]any{
		"seq":  ev.Seq,
		"kind": ev.Kind,
		"name": ev.Name,
	}
	if ev.Op != "" {
		m["op"] = string(ev.Op)
	}
	if ev.Bool != nil {
		m["bool"] = *ev.Bool
		return m
	}
	m["desc"] = ev.Desc.String()
	m["storage"] = ev.Storage.String()
	m["raw"] = ev.Raw.String()
	m["value"] = fixed.FormatRawBig(ev.Raw, ev.Desc.Shift)
	return m
}
