package heron

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tilegpu/heron/internal/mir"
	"github.com/tilegpu/heron/internal/ssa"
)

func testLayout() PipelineLayout {
	return PipelineLayout{
		CoeffBases: []uint32{0, 4},
		WCoeffBase: 32,
		VtxInAttrs: []VtxInAttr{{Base: 0, Comps: 4}},
	}
}

// fragmentFunction builds a small but representative program: interpolate a
// varying, branch on it, and write a pixel output on both paths.
func fragmentFunction() *ssa.Function {
	var id ssa.ValueID
	val := func() ssa.Value {
		v := ssa.MakeValue(id, 32, 1)
		id++
		return v
	}
	in := val()
	threshold := val()
	cond := val()
	bright := val()
	dim := val()

	return &ssa.Function{
		Stage: ssa.StageFragment,
		Body: []ssa.Node{
			&ssa.Block{Instrs: []*ssa.Instruction{
				{Op: ssa.OpcodeLoadInput, Ret: in, Imm: 0, Interp: ssa.InterpSmooth},
				{Op: ssa.OpcodeLoadConst, Ret: threshold, Imm: 0x3f000000},
				{Op: ssa.OpcodeFGe, Ret: cond, Srcs: []ssa.Value{in, threshold}},
			}},
			&ssa.If{
				Cond: cond,
				Then: []ssa.Node{&ssa.Block{Instrs: []*ssa.Instruction{
					{Op: ssa.OpcodeFMul, Ret: bright, Srcs: []ssa.Value{in, in}},
					{Op: ssa.OpcodeStoreOutput, Srcs: []ssa.Value{bright}},
				}}},
				Else: []ssa.Node{&ssa.Block{Instrs: []*ssa.Instruction{
					{Op: ssa.OpcodeFAdd, Ret: dim, Srcs: []ssa.Value{in, threshold}},
					{Op: ssa.OpcodeStoreOutput, Srcs: []ssa.Value{dim}},
				}}},
			},
		},
		NumValues: uint32(id),
	}
}

func TestCompileShaderFragment(t *testing.T) {
	ctx := NewBuildContext(DeviceInfo{}, testLayout(), 0)
	s, err := CompileShader(ctx, fragmentFunction())
	require.NoError(t, err)
	require.True(t, s.Grouped)
	require.Equal(t, ssa.StageFragment, s.Stage)

	// The driver consumes the temp high-water mark.
	require.Greater(t, ctx.FragData.UsedRegs[mir.RegClassTemp], uint32(0))
	require.False(t, ctx.FragData.Discards)
}

func TestCompileShaderVertex(t *testing.T) {
	var id ssa.ValueID
	val := func() ssa.Value {
		v := ssa.MakeValue(id, 32, 1)
		id++
		return v
	}
	pos := val()
	fn := &ssa.Function{
		Stage: ssa.StageVertex,
		Body: []ssa.Node{&ssa.Block{Instrs: []*ssa.Instruction{
			{Op: ssa.OpcodeLoadInput, Ret: pos, Imm: 0, Component: 1},
			{Op: ssa.OpcodeStoreOutput, Srcs: []ssa.Value{pos}, Imm: 0},
		}}},
		NumValues: uint32(id),
	}

	ctx := NewBuildContext(DeviceInfo{}, testLayout(), 0)
	s, err := CompileShader(ctx, fn)
	require.NoError(t, err)

	found := false
	for _, blk := range s.Blocks {
		for _, i := range blk.Instrs {
			if i.Kind == mir.InstrKindBackend && i.BackendOp() == mir.BackendOpUVSWWRITE {
				found = true
			}
		}
	}
	require.True(t, found, "vertex outputs go through the UVSW unit")
}

func TestCompileShaderDiscardReported(t *testing.T) {
	var id ssa.ValueID
	cond := ssa.MakeValue(id, 32, 1)
	id++
	out := ssa.MakeValue(id, 32, 1)
	id++
	fn := &ssa.Function{
		Stage: ssa.StageFragment,
		Body: []ssa.Node{&ssa.Block{Instrs: []*ssa.Instruction{
			{Op: ssa.OpcodeLoadConst, Ret: cond, Imm: 1},
			{Op: ssa.OpcodeDiscardIf, Srcs: []ssa.Value{cond}},
			{Op: ssa.OpcodeLoadConst, Ret: out, Imm: 0x3f800000},
			{Op: ssa.OpcodeStoreOutput, Srcs: []ssa.Value{out}},
		}}},
		NumValues: uint32(id),
	}

	ctx := NewBuildContext(DeviceInfo{}, testLayout(), 0)
	_, err := CompileShader(ctx, fn)
	require.NoError(t, err)
	require.True(t, ctx.FragData.Discards)
}

func TestCompileShaderEmptyFunction(t *testing.T) {
	ctx := NewBuildContext(DeviceInfo{}, testLayout(), 0)
	_, err := CompileShader(ctx, &ssa.Function{Stage: ssa.StageFragment})
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty shader function")
}

func TestCompileShaderUnsupportedInstruction(t *testing.T) {
	var id ssa.ValueID
	a := ssa.MakeValue(id, 16, 1)
	id++
	b := ssa.MakeValue(id, 16, 1)
	id++
	sum := ssa.MakeValue(id, 16, 1)
	id++
	fn := &ssa.Function{
		Stage: ssa.StageFragment,
		Body: []ssa.Node{&ssa.Block{Instrs: []*ssa.Instruction{
			{Op: ssa.OpcodeLoadConst, Ret: a, Imm: 0},
			{Op: ssa.OpcodeLoadConst, Ret: b, Imm: 0},
			{Op: ssa.OpcodeFAdd, Ret: sum, Srcs: []ssa.Value{a, b}},
		}}},
		NumValues: uint32(id),
	}

	ctx := NewBuildContext(DeviceInfo{}, testLayout(), 0)
	_, err := CompileShader(ctx, fn)
	require.Error(t, err)
	require.Contains(t, err.Error(), "compiling fragment shader")
	require.Contains(t, err.Error(), "unsupported instruction: fadd")
}
