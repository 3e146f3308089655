package passes

import (
	"github.com/tilegpu/heron/internal/mir"
	"github.com/tilegpu/heron/internal/ssa"
)

// ScheduleUVSW rewrites vertex-output moves into unified vertex store
// writes and fuses neighboring writes into bursts. The varying output file
// is only reachable through the UVSW unit, so every surviving move whose
// destination is a vtxout register becomes a UVSW.WRITE; runs whose output
// and source registers both step by one collapse into a single repeated
// write.
func ScheduleUVSW(s *mir.Shader) {
	if s.Stage != ssa.StageVertex {
		return
	}
	b := mir.NewBuilder(s)
	for _, blk := range s.Blocks {
		instrs := append([]*mir.Instr(nil), blk.Instrs...)
		for _, i := range instrs {
			if !isVtxOutMove(i) {
				continue
			}
			src := i.Srcs[0].Ref
			if src.Kind != mir.RefKindReg {
				// The UVSW unit has no immediate path; stage the value
				// in a scratch register first.
				tmp := s.NewSSA()
				b.SetCursorBefore(i)
				b.BYP0(mir.RefReg(tmp), src)
				src = mir.RefReg(tmp)
			}
			b.SetCursorBefore(i)
			b.UVSWWRITE(i.Dsts[0].Ref, src)
			b.Remove(i)
		}
	}
	for _, blk := range s.Blocks {
		fuseUVSWWrites(s, b, blk)
	}
}

func isVtxOutMove(i *mir.Instr) bool {
	switch {
	case i.Kind == mir.InstrKindALU && i.ALU() == mir.ALUOpMBYP:
	case i.Kind == mir.InstrKindBitwise && i.BitwiseOp() == mir.BitwiseOpBYP0:
	default:
		return false
	}
	d := i.Dsts[0].Ref
	return d.Kind == mir.RefKindReg && d.Reg.Class == mir.RegClassVtxOut
}

func fuseUVSWWrites(s *mir.Shader, b *mir.Builder, blk *mir.Block) {
	instrs := append([]*mir.Instr(nil), blk.Instrs...)
	var run []*mir.Instr
	flush := func() {
		if len(run) > 1 && fusableRun(run) {
			head := run[0]
			n := uint32(len(run))
			dst := s.RegArray(mir.RegClassVtxOut, head.Dsts[0].Ref.Reg.Index, n)
			src := s.RegArray(head.Srcs[0].Ref.Reg.Class, head.Srcs[0].Ref.Reg.Index, n)
			b.SetCursorBefore(head)
			w := b.UVSWWRITE(mir.RefRegArray(dst), mir.RefRegArray(src))
			w.Repeat = uint8(n)
			for _, i := range run {
				b.Remove(i)
			}
		}
		run = run[:0]
	}
	for _, i := range instrs {
		if i.Kind != mir.InstrKindBackend || i.BackendOp() != mir.BackendOpUVSWWRITE {
			flush()
			continue
		}
		if len(run) > 0 && !extendsRun(run[len(run)-1], i) {
			flush()
		}
		run = append(run, i)
	}
	flush()
}

// fusableRun reports whether the run's source registers can form a regarray
// without disturbing existing array ownership: either none belongs to an
// array, or all belong to the same one.
func fusableRun(run []*mir.Instr) bool {
	parent := run[0].Srcs[0].Ref.Reg.Parent
	for _, i := range run[1:] {
		if i.Srcs[0].Ref.Reg.Parent != parent {
			return false
		}
	}
	return true
}

// extendsRun reports whether next continues prev's burst: both operands are
// single registers stepping by exactly one.
func extendsRun(prev, next *mir.Instr) bool {
	pd, nd := prev.Dsts[0].Ref, next.Dsts[0].Ref
	ps, ns := prev.Srcs[0].Ref, next.Srcs[0].Ref
	if pd.Kind != mir.RefKindReg || nd.Kind != mir.RefKindReg ||
		ps.Kind != mir.RefKindReg || ns.Kind != mir.RefKindReg {
		return false
	}
	return nd.Reg.Index == pd.Reg.Index+1 &&
		ns.Reg.Class == ps.Reg.Class && ns.Reg.Index == ps.Reg.Index+1
}
