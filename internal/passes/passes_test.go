package passes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tilegpu/heron/internal/lower"
	"github.com/tilegpu/heron/internal/mir"
	"github.com/tilegpu/heron/internal/ssa"
	"github.com/tilegpu/heron/internal/validate"
)

func newTestShader(stage ssa.ShaderStage) (*mir.Shader, *mir.Builder) {
	s := mir.NewShader(&mir.BuildCtx{}, stage)
	b := mir.NewBuilder(s)
	b.PushBlock("entry")
	return s, b
}

func collect(s *mir.Shader) []*mir.Instr {
	var out []*mir.Instr
	for _, blk := range s.Blocks {
		out = append(out, blk.Instrs...)
	}
	return out
}

func countOps(s *mir.Shader, kind mir.InstrKind, op uint16) int {
	n := 0
	for _, i := range collect(s) {
		if i.Kind == kind && i.Op == op {
			n++
		}
	}
	return n
}

func TestPipelineOrder(t *testing.T) {
	want := []string{
		"constreg", "schedule_st", "lower_pseudo", "constreg",
		"schedule_wdf", "schedule_uvsw", "trim", "regalloc",
		"lower_late", "schedule_groups",
	}
	require.Len(t, Pipeline, len(want))
	for n, p := range Pipeline {
		require.Equal(t, want[n], p.Name)
	}
}

// TestFullPipeline runs selection and the whole pass stack over a fragment
// shader with interpolation, arithmetic and divergent control flow, then
// holds the result to the post-grouping wellformedness rules.
func TestFullPipeline(t *testing.T) {
	var id ssa.ValueID
	val := func() ssa.Value {
		v := ssa.MakeValue(id, 32, 1)
		id++
		return v
	}
	in := val()
	half := val()
	cond := val()
	scaled := val()
	sum := val()

	fn := &ssa.Function{
		Stage: ssa.StageFragment,
		Body: []ssa.Node{
			&ssa.Block{Instrs: []*ssa.Instruction{
				{Op: ssa.OpcodeLoadInput, Ret: in, Imm: 0, Interp: ssa.InterpSmooth},
				{Op: ssa.OpcodeLoadConst, Ret: half, Imm: 0x3f000000},
				{Op: ssa.OpcodeFLt, Ret: cond, Srcs: []ssa.Value{in, half}},
			}},
			&ssa.If{
				Cond: cond,
				Then: []ssa.Node{&ssa.Block{Instrs: []*ssa.Instruction{
					{Op: ssa.OpcodeFMul, Ret: scaled, Srcs: []ssa.Value{in, half}},
					{Op: ssa.OpcodeStoreOutput, Srcs: []ssa.Value{scaled}},
				}}},
				Else: []ssa.Node{&ssa.Block{Instrs: []*ssa.Instruction{
					{Op: ssa.OpcodeFAdd, Ret: sum, Srcs: []ssa.Value{in, half}},
					{Op: ssa.OpcodeStoreOutput, Srcs: []ssa.Value{sum}},
				}}},
			},
		},
		NumValues: uint32(id),
	}

	ctx := &mir.BuildCtx{
		Layout: mir.PipelineLayout{
			CoeffBases: []uint32{0},
			WCoeffBase: 8,
		},
	}
	s := lower.Translate(ctx, fn)
	require.Empty(t, validate.Check(s, "before passes"))

	Run(s)

	require.True(t, s.Grouped)
	require.Empty(t, validate.Check(s, "after passes"))

	for _, i := range collect(s) {
		require.False(t, i.Info().Pseudo, "pseudo op survived: %s", i)
		for _, d := range i.Dsts {
			for _, r := range refRegsOf(d.Ref) {
				require.NotEqual(t, mir.RegClassSSA, r.Class, "ssa dst in %s", i)
			}
		}
		for _, src := range i.Srcs {
			for _, r := range refRegsOf(src.Ref) {
				require.NotEqual(t, mir.RegClassSSA, r.Class, "ssa src in %s", i)
			}
		}
	}
	require.Greater(t, s.UsedRegs(mir.RegClassTemp), uint32(0))
}

func refRegsOf(ref mir.Ref) []*mir.Reg {
	return appendRefRegs(nil, ref)
}
