package emit

import (
	"go/format"
	"regexp"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dlaw/fixpoint/internal/ir"
	"github.com/dlaw/fixpoint/internal/planner"
)

// hashLine strips the content hashes from a generated header so goldens
// stay stable across hash-affecting changes elsewhere.
var hashLine = regexp.MustCompile(`(?m)^// (decl|plan): [0-9a-f]{64}$`)

func normalizeHashes(src []byte) []byte {
	return hashLine.ReplaceAll(src, []byte("// $1: (normalized)"))
}

func imuModule() *ir.Module {
	return &ir.Module{
		Name:    "imu",
		Package: "imupipe",
		Formats: []ir.Format{
			{Name: "Accel", Shift: -3, Bits: 5},
			{Name: "Bias", Shift: -1, Bits: 2, Signed: true},
		},
		Constants: []ir.Constant{
			{Name: "Gravity", Format: "Accel", Value: "2.375"},
		},
		Pipelines: []ir.Pipeline{{
			Name: "fuse",
			Params: []ir.Param{
				{Name: "a", Format: "Accel"},
				{Name: "b", Format: "Bias"},
			},
			Steps:  []ir.Step{{Name: "sum", Op: ir.OpAdd, Args: []string{"a", "b"}}},
			Result: "sum",
		}},
	}
}

// flowModule exercises both div forms and a comparison: a constant
// divisor with a prescaled numerator, a runtime divisor that forces an
// error return, and a bool pipeline.
func flowModule() *ir.Module {
	return &ir.Module{
		Name:    "flow",
		Package: "flowpipe",
		Formats: []ir.Format{
			{Name: "Flow", Shift: -2, Bits: 10},
			{Name: "Scale", Shift: 0, Bits: 4},
			{Name: "Out", Shift: -4, Bits: 9},
		},
		Constants: []ir.Constant{
			{Name: "Eight", Format: "Scale", Value: "8"},
		},
		Pipelines: []ir.Pipeline{
			{
				Name:   "scaled",
				Params: []ir.Param{{Name: "n", Format: "Flow"}},
				Steps: []ir.Step{
					{Name: "q", Op: ir.OpDiv, Args: []string{"n", "Eight"}, Target: "Out"},
				},
				Result: "q",
			},
			{
				Name: "ratio",
				Params: []ir.Param{
					{Name: "n", Format: "Flow"},
					{Name: "d", Format: "Scale"},
				},
				Steps: []ir.Step{
					{Name: "q", Op: ir.OpDiv, Args: []string{"n", "d"}, Target: "Flow"},
				},
				Result: "q",
			},
			{
				Name: "exceeds",
				Params: []ir.Param{
					{Name: "n", Format: "Flow"},
					{Name: "d", Format: "Scale"},
				},
				Steps:  []ir.Step{{Name: "cmp", Op: ir.OpGt, Args: []string{"n", "d"}}},
				Result: "cmp",
			},
		},
	}
}

func mustGenerate(t *testing.T, m *ir.Module) []byte {
	t.Helper()
	p, diags := planner.BuildPlan(m, nil)
	require.Empty(t, diags)
	require.NotNil(t, p)
	src, err := Generate(p)
	require.NoError(t, err)
	return src
}

func TestGenerateImuGolden(t *testing.T) {
	src := mustGenerate(t, imuModule())

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "imu", normalizeHashes(src))
}

func TestGenerateFlowGolden(t *testing.T) {
	src := mustGenerate(t, flowModule())

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "flow", normalizeHashes(src))
}

func TestGenerateDeterministic(t *testing.T) {
	first := mustGenerate(t, flowModule())
	second := mustGenerate(t, flowModule())
	assert.Equal(t, first, second)
}

func TestGenerateGofmtStable(t *testing.T) {
	src := mustGenerate(t, flowModule())
	formatted, err := format.Source(src)
	require.NoError(t, err)
	assert.Equal(t, src, formatted)
}

func TestGenerateHeaderCommitsToHashes(t *testing.T) {
	p, diags := planner.BuildPlan(imuModule(), nil)
	require.Empty(t, diags)
	src, err := Generate(p)
	require.NoError(t, err)

	planHash, err := p.Hash()
	require.NoError(t, err)
	assert.Contains(t, string(src), "// unit: imu\n")
	assert.Contains(t, string(src), "// decl: "+p.DeclHash+"\n")
	assert.Contains(t, string(src), "// plan: "+planHash+"\n")
}

func TestGenerateWideProduct(t *testing.T) {
	m := &ir.Module{
		Name:    "wide",
		Package: "wide",
		Formats: []ir.Format{{Name: "Count", Shift: 0, Bits: 35}},
		Pipelines: []ir.Pipeline{{
			Name: "area",
			Params: []ir.Param{
				{Name: "a", Format: "Count"},
				{Name: "b", Format: "Count"},
			},
			Steps:  []ir.Step{{Name: "prod", Op: ir.OpMul, Args: []string{"a", "b"}}},
			Result: "prod",
		}},
	}
	src := string(mustGenerate(t, m))

	// 35x35 bits lands in a two-limb lane via the 64-bit full product.
	assert.Contains(t, src, "type FixU70 fixed.Uint128\n")
	assert.Contains(t, src, "MinFixU70 = fixed.Uint128{}\n")
	assert.Contains(t, src, "MaxFixU70 = fixed.Uint128{Hi: 0x3f, Lo: 0xffffffffffffffff}\n")
	assert.Contains(t, src, "if raw.Cmp(MaxFixU70) > 0 {\n")
	assert.Contains(t, src, "return FixU70{}, fixed.ErrOutOfRange\n")
	assert.Contains(t, src, "prod := fixed.MulUint64(a.Raw(), b.Raw())\n")
	assert.Contains(t, src, "return FixU70(prod)\n")
	assert.Contains(t, src, "_ fixed.Numeric = FixU70{}\n")
}

func TestGenerateToUnsignedCheck(t *testing.T) {
	m := &ir.Module{
		Name:    "clamp",
		Package: "clamp",
		Formats: []ir.Format{{Name: "Delta", Shift: 0, Bits: 10, Signed: true}},
		Pipelines: []ir.Pipeline{{
			Name:   "clamp",
			Params: []ir.Param{{Name: "n", Format: "Delta"}},
			Steps:  []ir.Step{{Name: "u", Op: ir.OpToUnsigned, Args: []string{"n"}}},
			Result: "u",
		}},
	}
	src := string(mustGenerate(t, m))

	assert.Contains(t, src, "func Clamp(n Delta) (FixU10, error) {\n")
	assert.Contains(t, src, "if n.Raw() < 0 {\n")
	assert.Contains(t, src, "return FixU10(0), fixed.ErrOutOfRange\n")
	assert.Contains(t, src, "u := uint16(n.Raw())\n")
	assert.Contains(t, src, "return FixU10(u), nil\n")
}

func TestGenerateToUnsignedOfUnsignedNeedsNoCheck(t *testing.T) {
	m := &ir.Module{
		Name:    "clamp",
		Package: "clamp",
		Formats: []ir.Format{{Name: "Count", Shift: 0, Bits: 10}},
		Pipelines: []ir.Pipeline{{
			Name:   "pass",
			Params: []ir.Param{{Name: "n", Format: "Count"}},
			Steps:  []ir.Step{{Name: "u", Op: ir.OpToUnsigned, Args: []string{"n"}}},
			Result: "u",
		}},
	}
	src := string(mustGenerate(t, m))

	// Reinterpreting unsigned as unsigned is free: plain return, no guard.
	assert.Contains(t, src, "func Pass(n Count) FixU10 {\n")
	assert.Contains(t, src, "u := n.Raw()\n")
	assert.Contains(t, src, "return FixU10(u)\n")
	assert.NotContains(t, src, "if n.Raw() < 0 {")
}

func TestGenerateDivLiftsWideDivisor(t *testing.T) {
	m := &ir.Module{
		Name:    "share",
		Package: "share",
		Formats: []ir.Format{
			{Name: "Level", Shift: 0, Bits: 7},
			{Name: "Total", Shift: 0, Bits: 40},
			{Name: "Part", Shift: 0, Bits: 8},
		},
		Pipelines: []ir.Pipeline{{
			Name: "share",
			Params: []ir.Param{
				{Name: "n", Format: "Level"},
				{Name: "d", Format: "Total"},
			},
			Steps:  []ir.Step{{Name: "q", Op: ir.OpDiv, Args: []string{"n", "d"}, Target: "Part"}},
			Result: "q",
		}},
	}
	src := string(mustGenerate(t, m))

	// The divide runs in the divisor's 64-bit lane: the numerator lifts
	// up and only the quotient narrows. Casting d.Raw() down to the
	// numerator's byte would corrupt the quotient and turn a nonzero
	// divisor like 256 into a zero after the zero check passed.
	assert.Contains(t, src, "if d.Raw() == 0 {\n")
	assert.Contains(t, src, "q := uint8(uint64(n.Raw()) / d.Raw())\n")
	assert.NotContains(t, src, "uint8(d.Raw())")
}

func TestGenerateSumFold(t *testing.T) {
	m := &ir.Module{
		Name:    "acc",
		Package: "acc",
		Formats: []ir.Format{{Name: "Sample", Shift: 0, Bits: 8}},
		Pipelines: []ir.Pipeline{{
			Name: "total",
			Params: []ir.Param{
				{Name: "a", Format: "Sample"},
				{Name: "b", Format: "Sample"},
				{Name: "c", Format: "Sample"},
			},
			Steps:  []ir.Step{{Name: "total", Op: ir.OpSum, Args: []string{"a", "b", "c"}}},
			Result: "total",
		}},
	}
	src := string(mustGenerate(t, m))

	// One partial per fold, one binary op per statement.
	assert.Contains(t, src, "totalP1 := uint16(a.Raw()) + uint16(b.Raw())\n")
	assert.Contains(t, src, "total := totalP1 + uint16(c.Raw())\n")
}

func TestGenerateUnusedStepAndParamResult(t *testing.T) {
	m := &ir.Module{
		Name:    "pick",
		Package: "pick",
		Formats: []ir.Format{{Name: "Reading", Shift: -3, Bits: 5}},
		Pipelines: []ir.Pipeline{{
			Name:   "pick",
			Params: []ir.Param{{Name: "a", Format: "Reading"}},
			Steps:  []ir.Step{{Name: "t", Op: ir.OpRawShl, Args: []string{"a"}, Amount: 1}},
			Result: "a",
		}},
	}
	src := string(mustGenerate(t, m))

	// The dangling step still compiles; the param result keeps its
	// declared format.
	assert.Contains(t, src, "func Pick(a Reading) Reading {\n")
	assert.Contains(t, src, "t := a.Raw() << 1\n")
	assert.Contains(t, src, "_ = t\n")
	assert.Contains(t, src, "return a\n")
}

func TestGenerateParamResultDisambiguates(t *testing.T) {
	// Two formats share a descriptor; a param result must keep the
	// format it was declared with, not the first match.
	m := &ir.Module{
		Name:    "alias",
		Package: "alias",
		Formats: []ir.Format{
			{Name: "Az", Shift: 0, Bits: 5},
			{Name: "El", Shift: 0, Bits: 5},
		},
		Pipelines: []ir.Pipeline{{
			Name:   "keep",
			Params: []ir.Param{{Name: "p", Format: "El"}},
			Steps:  []ir.Step{{Name: "t", Op: ir.OpWiden, Args: []string{"p"}, Amount: 6}},
			Result: "p",
		}},
	}
	src := string(mustGenerate(t, m))

	assert.Contains(t, src, "func Keep(p El) El {\n")
	assert.Contains(t, src, "return p\n")
}
