package passes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tilegpu/heron/internal/mir"
	"github.com/tilegpu/heron/internal/ssa"
)

func TestRegAllocRewritesEveryScratchReference(t *testing.T) {
	s, b := newTestShader(ssa.StageFragment)
	a := s.NewSSA()
	c := s.NewSSA()
	b.FADD(mir.RefReg(a), mir.RefImm(1), mir.RefImm(2))
	b.FADD(mir.RefReg(c), mir.RefReg(a), mir.RefImm(3))
	b.MOV(mir.RefReg(s.Reg(mir.RegClassPixOut, 0)), mir.RefReg(c))

	RegAlloc(s)

	require.Equal(t, uint32(2), s.UsedRegs(mir.RegClassTemp))

	for _, i := range collect(s) {
		for _, d := range i.Dsts {
			for _, r := range appendRefRegs(nil, d.Ref) {
				require.NotEqual(t, mir.RegClassSSA, r.Class)
			}
		}
		for _, src := range i.Srcs {
			for _, r := range appendRefRegs(nil, src.Ref) {
				require.NotEqual(t, mir.RegClassSSA, r.Class)
			}
		}
	}
}

func TestRegAllocReusesExpiredTemps(t *testing.T) {
	s, b := newTestShader(ssa.StageFragment)
	a := s.NewSSA()
	c := s.NewSSA()
	defA := b.FADD(mir.RefReg(a), mir.RefImm(1), mir.RefImm(2))
	b.MOV(mir.RefReg(s.Reg(mir.RegClassPixOut, 0)), mir.RefReg(a))
	// a is dead here, so c can take its slot.
	defC := b.FADD(mir.RefReg(c), mir.RefImm(3), mir.RefImm(4))
	b.MOV(mir.RefReg(s.Reg(mir.RegClassPixOut, 1)), mir.RefReg(c))

	RegAlloc(s)

	require.Same(t, defA.Dsts[0].Ref.Reg, defC.Dsts[0].Ref.Reg)
	require.Equal(t, uint32(1), s.UsedRegs(mir.RegClassTemp))
}

func TestRegAllocKeepsOverlappingValuesApart(t *testing.T) {
	s, b := newTestShader(ssa.StageFragment)
	a := s.NewSSA()
	c := s.NewSSA()
	defA := b.FADD(mir.RefReg(a), mir.RefImm(1), mir.RefImm(2))
	defC := b.FADD(mir.RefReg(c), mir.RefImm(3), mir.RefImm(4))
	b.FADD(mir.RefReg(s.Reg(mir.RegClassPixOut, 0)), mir.RefReg(a), mir.RefReg(c))

	RegAlloc(s)

	require.NotSame(t, defA.Dsts[0].Ref.Reg, defC.Dsts[0].Ref.Reg)
	require.Equal(t, uint32(2), s.UsedRegs(mir.RegClassTemp))
}

func TestRegAllocKeepsArraysContiguous(t *testing.T) {
	s, b := newTestShader(ssa.StageFragment)
	arr := s.NewSSAArray(3)
	for c := uint32(0); c < 3; c++ {
		b.MOV(mir.RefReg(arr.Regs[c]), mir.RefImm(c))
	}
	use := b.ST(mir.RefDRC(0), 1, mir.RefRegArray(s.SubArray(arr, 0, 2)), mir.RefReg(arr.Regs[2]))

	RegAlloc(s)

	addr := use.Srcs[2].Ref.Array
	require.Equal(t, mir.RegClassTemp, addr.Class())
	require.Equal(t, addr.Base()+2, use.Srcs[3].Ref.Reg.Index)
	require.Equal(t, uint32(3), s.UsedRegs(mir.RegClassTemp))
}

// Values read on a later iteration must hold their temp across the whole
// loop, even when their last textual read comes early in the body.
func TestRegAllocExtendsLoopCarriedValues(t *testing.T) {
	s, b := newTestShader(ssa.StageFragment)
	emc := mir.RefReg(s.EMC())

	carried := s.NewSSA()
	b.FADD(mir.RefReg(carried), mir.RefImm(1), mir.RefImm(2))
	open := b.CNDST(mir.OpModAlways, emc, 2)

	body := b.PushBlock("loop_body")
	// Last textual read of the carried value.
	b.FADD(mir.RefReg(s.Reg(mir.RegClassPixOut, 0)), mir.RefReg(carried), mir.RefImm(0))
	// A value born after that read but before the back edge.
	inner := s.NewSSA()
	defInner := b.FADD(mir.RefReg(inner), mir.RefImm(3), mir.RefImm(4))
	b.MOV(mir.RefReg(s.Reg(mir.RegClassPixOut, 1)), mir.RefReg(inner))
	back := b.BR(mir.OpMods(mir.OpModP0True), body)
	open.Link = back
	back.Link = open

	tail := b.PushBlock("loop_exit")
	b.SetCursorEnd(tail)
	b.CNDEND(emc, 2)

	defCarried := s.Blocks[0].Instrs[0]
	RegAlloc(s)

	require.NotSame(t, defCarried.Dsts[0].Ref.Reg, defInner.Dsts[0].Ref.Reg)
}
