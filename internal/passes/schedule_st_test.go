package passes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tilegpu/heron/internal/mir"
	"github.com/tilegpu/heron/internal/ssa"
)

func TestScheduleStoreRegsPacksScatteredOperands(t *testing.T) {
	s, b := newTestShader(ssa.StageFragment)
	addr := s.NewSSAArray(2)
	data := s.NewSSAArray(3)
	st := b.ST(mir.RefDRC(0), 4, mir.RefRegArray(addr), mir.RefRegArray(data))

	before := len(collect(s))
	ScheduleStoreRegs(s)

	// Two address copies plus one per data component.
	require.Len(t, collect(s), before+5)

	newAddr := st.Srcs[2].Ref.Array
	newData := st.Srcs[3].Ref.Array
	require.NotNil(t, newAddr.Parent)
	require.Same(t, newAddr.Parent, newData.Parent)
	require.Equal(t, newAddr.Base()+2, newData.Base())

	// The copies precede the store in order: address pair first, then the
	// data burst.
	blk := st.Block
	for n := 0; n < 5; n++ {
		mov := blk.Instrs[n]
		require.Equal(t, mir.ALUOpMOV, mov.ALU())
		require.Equal(t, newAddr.Parent.Regs[n], mov.Dsts[0].Ref.Reg)
	}
}

func TestScheduleStoreRegsKeepsPackedBlocks(t *testing.T) {
	s, b := newTestShader(ssa.StageFragment)
	block := s.NewSSAArray(4)
	addr := s.SubArray(block, 0, 2)
	data := s.SubArray(block, 2, 2)
	st := b.ST(mir.RefDRC(0), 4, mir.RefRegArray(addr), mir.RefRegArray(data))

	before := len(collect(s))
	ScheduleStoreRegs(s)

	require.Len(t, collect(s), before)
	require.Same(t, addr, st.Srcs[2].Ref.Array)
	require.Same(t, data, st.Srcs[3].Ref.Array)
}

func TestScheduleStoreRegsScalarData(t *testing.T) {
	s, b := newTestShader(ssa.StageFragment)
	addr := s.NewSSAArray(2)
	data := s.NewSSA()
	st := b.ST(mir.RefDRC(0), 1, mir.RefRegArray(addr), mir.RefReg(data))

	ScheduleStoreRegs(s)

	require.Equal(t, mir.RefKindReg, st.Srcs[3].Ref.Kind)
	require.Equal(t, st.Srcs[2].Ref.Array.Base()+2, st.Srcs[3].Ref.Reg.Index)
}
