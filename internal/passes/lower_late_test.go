package passes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tilegpu/heron/internal/mir"
	"github.com/tilegpu/heron/internal/ssa"
)

func TestLowerLateIndexesFarSharedRegisters(t *testing.T) {
	s, b := newTestShader(ssa.StageFragment)
	far := s.Reg(mir.RegClassShared, 3000)
	add := b.FADD(mir.RefReg(s.Reg(mir.RegClassTemp, 0)), mir.RefReg(far), mir.RefImm(1))

	LowerLate(s)

	src := add.Srcs[0].Ref
	require.Equal(t, mir.RefKindRegIndexed, src.Kind)
	require.Equal(t, mir.RegClassShared, src.Reg.Class)
	require.Equal(t, uint32(0), src.Reg.Index)
	require.Equal(t, mir.RegClassIndex, src.Idx.Class)

	// The offset load precedes the use.
	load := add.Block.Instrs[add.Index()-1]
	require.Equal(t, mir.BitwiseOpBYP0, load.BitwiseOp())
	require.Equal(t, uint32(3000), load.Srcs[0].Ref.U)
	require.Same(t, src.Idx, load.Dsts[0].Ref.Reg)
}

func TestLowerLateLeavesDirectIndexesAlone(t *testing.T) {
	s, b := newTestShader(ssa.StageFragment)
	near := s.Reg(mir.RegClassShared, 2047)
	add := b.FADD(mir.RefReg(s.Reg(mir.RegClassTemp, 0)), mir.RefReg(near), mir.RefImm(1))

	before := len(collect(s))
	LowerLate(s)

	require.Len(t, collect(s), before)
	require.Equal(t, mir.RefKindReg, add.Srcs[0].Ref.Kind)
}

func TestLowerLateAlternatesIndexRegisters(t *testing.T) {
	s, b := newTestShader(ssa.StageFragment)
	f0 := s.Reg(mir.RegClassShared, 2500)
	f1 := s.Reg(mir.RegClassShared, 3500)
	add := b.FADD(mir.RefReg(s.Reg(mir.RegClassTemp, 0)), mir.RefReg(f0), mir.RefReg(f1))

	LowerLate(s)

	require.NotSame(t, add.Srcs[0].Ref.Idx, add.Srcs[1].Ref.Idx)
}
