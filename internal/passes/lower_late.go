package passes

import (
	"fmt"

	"github.com/tilegpu/heron/internal/mir"
)

// maxDirectRegIndex is the largest register index the instruction encoding
// addresses directly; anything above goes through an index register.
const maxDirectRegIndex = 2047

// LowerLate legalizes operands that only become known after allocation.
// Shared and coefficient banks are larger than the directly-encodable index
// range, so a reference past the limit is rewritten to indexed addressing:
// the index register is loaded with the offset and the operand becomes an
// indexed reference off the bank base. The two index registers alternate so
// one instruction can carry two fixups.
func LowerLate(s *mir.Shader) {
	b := mir.NewBuilder(s)
	for _, blk := range s.Blocks {
		instrs := append([]*mir.Instr(nil), blk.Instrs...)
		for _, i := range instrs {
			nextIdx := uint32(0)
			fix := func(ref mir.Ref, slot mir.RefMask) (mir.Ref, bool) {
				if ref.Kind != mir.RefKindReg || ref.Reg.Index <= maxDirectRegIndex {
					return ref, false
				}
				if !slot.Has(mir.RefKindRegIndexed) {
					panic(fmt.Sprintf("register index %d of %s exceeds direct encoding in %s",
						ref.Reg.Index, ref.Reg.Class, i.OpName()))
				}
				if nextIdx >= mir.RegClassIndex.Count() {
					panic("BUG: instruction needs more than two indexed operands")
				}
				idx := s.Reg(mir.RegClassIndex, nextIdx)
				nextIdx++
				b.SetCursorBefore(i)
				b.BYP0(mir.RefReg(idx), mir.RefImm(ref.Reg.Index))
				return mir.RefRegIndexed(s.Reg(ref.Reg.Class, 0), idx), true
			}

			info := i.Info()
			for n, d := range i.Dsts {
				if ref, ok := fix(d.Ref, info.DstRefs[n]); ok {
					i.SetDstRef(n, ref)
				}
			}
			for n, src := range i.Srcs {
				if ref, ok := fix(src.Ref, info.SrcRefs[n]); ok {
					i.SetSrcRef(n, ref)
				}
			}
		}
	}
}
