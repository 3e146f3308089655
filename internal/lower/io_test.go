package lower

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tilegpu/heron/internal/mir"
	"github.com/tilegpu/heron/internal/ssa"
)

func TestSmoothVaryingInterpolatesWithW(t *testing.T) {
	var f fnBuilder
	v := f.val(32, 1)
	fn := f.fn(ssa.StageFragment, block(
		&ssa.Instruction{
			Op: ssa.OpcodeLoadInput, Ret: v,
			Imm: 1, Component: 2, Interp: ssa.InterpSmooth,
		},
		&ssa.Instruction{Op: ssa.OpcodeStoreOutput, Srcs: []ssa.Value{v}},
	))

	ctx := testCtx()
	s := Translate(ctx, fn)
	itrs := findBackend(s, mir.BackendOpFITRP)
	require.Len(t, itrs, 1)
	itr := itrs[0]

	// Location 1, component 2: three plane coefficients starting past the
	// location base, plus the shared W triple.
	wantBase := ctx.Layout.CoeffBases[1] + 2*mir.CoeffAlign
	require.Equal(t, wantBase, itr.Srcs[1].Ref.Array.Base())
	require.Equal(t, 3, itr.Srcs[1].Ref.Array.Size())
	require.Equal(t, ctx.Layout.WCoeffBase, itr.Srcs[2].Ref.Array.Base())
	require.Equal(t, mir.RefKindDRC, itr.Srcs[0].Ref.Kind)
}

func TestFlatVaryingReadsTheCCoefficient(t *testing.T) {
	var f fnBuilder
	v := f.val(32, 1)
	fn := f.fn(ssa.StageFragment, block(
		&ssa.Instruction{
			Op: ssa.OpcodeLoadInput, Ret: v,
			Imm: 0, Component: 0, Interp: ssa.InterpFlat,
		},
		&ssa.Instruction{Op: ssa.OpcodeStoreOutput, Srcs: []ssa.Value{v}},
	))

	s := Translate(testCtx(), fn)
	require.Empty(t, findBackend(s, mir.BackendOpFITRP))
	require.Empty(t, findBackend(s, mir.BackendOpFITR))

	var reads []*mir.Instr
	for _, i := range findALU(s, mir.ALUOpMOV) {
		if i.Srcs[0].Ref.Kind == mir.RefKindReg && i.Srcs[0].Ref.Reg.Class == mir.RegClassCoeff {
			reads = append(reads, i)
		}
	}
	require.Len(t, reads, 1)
}

func TestMissingAttributeComponentReadsOne(t *testing.T) {
	var f fnBuilder
	v := f.val(32, 1)
	fn := f.fn(ssa.StageVertex, block(
		// Attribute 1 only stages two components; component 3 is absent.
		&ssa.Instruction{Op: ssa.OpcodeLoadInput, Ret: v, Imm: 1, Component: 3},
		&ssa.Instruction{Op: ssa.OpcodeStoreOutput, Srcs: []ssa.Value{v}},
	))

	s := Translate(testCtx(), fn)
	subs := withComment(allInstrs(s), "missing component")
	require.Len(t, subs, 1)
	require.Equal(t, uint32(floatOne), subs[0].Srcs[0].Ref.U)
}

func TestFragmentEpilogueEmitsPixelsThenEnds(t *testing.T) {
	var f fnBuilder
	v := f.val(32, 1)
	fn := f.fn(ssa.StageFragment, block(
		loadConst(v, floatOne),
		&ssa.Instruction{Op: ssa.OpcodeStoreOutput, Srcs: []ssa.Value{v}},
	))

	s := Translate(testCtx(), fn)
	require.Len(t, findBackend(s, mir.BackendOpEMITPIX), 1)

	last := s.Blocks[len(s.Blocks)-1]
	end := last.Instrs[len(last.Instrs)-1]
	require.Equal(t, mir.CtrlOpEND, end.CtrlOp())
	require.True(t, end.End)
}

func TestVertexEpilogueEmitsVertexThenEnds(t *testing.T) {
	var f fnBuilder
	v := f.val(32, 1)
	fn := f.fn(ssa.StageVertex, block(
		loadConst(v, floatOne),
		&ssa.Instruction{Op: ssa.OpcodeStoreOutput, Srcs: []ssa.Value{v}},
	))

	s := Translate(testCtx(), fn)
	require.Len(t, findBackend(s, mir.BackendOpUVSWENDTASK), 1)
	require.Len(t, findBackend(s, mir.BackendOpUVSWEMIT), 1)

	last := s.Blocks[len(s.Blocks)-1]
	require.True(t, last.Instrs[len(last.Instrs)-1].End)
}

func TestDiscardSetsFragmentData(t *testing.T) {
	var f fnBuilder
	cond := f.val(32, 1)
	fn := f.fn(ssa.StageFragment, block(
		loadConst(cond, 1),
		&ssa.Instruction{Op: ssa.OpcodeDiscardIf, Srcs: []ssa.Value{cond}},
	))

	ctx := testCtx()
	s := Translate(ctx, fn)
	require.NotEmpty(t, findBackend(s, mir.BackendOpATST))
	require.True(t, ctx.FragData.Discards)
}
