package passes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tilegpu/heron/internal/mir"
	"github.com/tilegpu/heron/internal/ssa"
)

func TestScheduleUVSWFusesContiguousWrites(t *testing.T) {
	s, b := newTestShader(ssa.StageVertex)
	src := s.NewSSAArray(3)
	for c := uint32(0); c < 3; c++ {
		b.BYP0(mir.RefReg(s.Reg(mir.RegClassVtxOut, c)), mir.RefReg(src.Regs[c]))
	}

	ScheduleUVSW(s)

	require.Equal(t, 1, countOps(s, mir.InstrKindBackend, uint16(mir.BackendOpUVSWWRITE)))
	w := collect(s)[0]
	require.Equal(t, uint8(3), w.Repeat)
	require.Equal(t, uint32(0), w.Dsts[0].Ref.Array.Base())
	require.Equal(t, 3, w.Dsts[0].Ref.Array.Size())
	require.Same(t, src, w.Srcs[0].Ref.Array)
	require.Equal(t, 0, countOps(s, mir.InstrKindBitwise, uint16(mir.BitwiseOpBYP0)))
}

func TestScheduleUVSWBreaksNonContiguousRuns(t *testing.T) {
	s, b := newTestShader(ssa.StageVertex)
	s0, s1 := s.NewSSA(), s.NewSSA()
	b.BYP0(mir.RefReg(s.Reg(mir.RegClassVtxOut, 0)), mir.RefReg(s0))
	// Output index 2 breaks the step-by-one run.
	b.BYP0(mir.RefReg(s.Reg(mir.RegClassVtxOut, 2)), mir.RefReg(s1))

	ScheduleUVSW(s)

	require.Equal(t, 2, countOps(s, mir.InstrKindBackend, uint16(mir.BackendOpUVSWWRITE)))
	for _, i := range collect(s) {
		require.NotEqual(t, uint8(2), i.Repeat)
	}
}

func TestScheduleUVSWStagesImmediates(t *testing.T) {
	s, b := newTestShader(ssa.StageVertex)
	b.BYP0(mir.RefReg(s.Reg(mir.RegClassVtxOut, 0)), mir.RefImm(0x3f800000))

	ScheduleUVSW(s)

	instrs := collect(s)
	require.Len(t, instrs, 2)
	stage, w := instrs[0], instrs[1]
	require.Equal(t, mir.BitwiseOpBYP0, stage.BitwiseOp())
	require.Equal(t, mir.BackendOpUVSWWRITE, w.BackendOp())
	require.Same(t, stage.Dsts[0].Ref.Reg, w.Srcs[0].Ref.Reg)
}

func TestScheduleUVSWIgnoresOtherStages(t *testing.T) {
	s, b := newTestShader(ssa.StageFragment)
	b.BYP0(mir.RefReg(s.Reg(mir.RegClassVtxOut, 0)), mir.RefImm(0))

	ScheduleUVSW(s)

	require.Equal(t, 0, countOps(s, mir.InstrKindBackend, uint16(mir.BackendOpUVSWWRITE)))
}
