package passes

import "github.com/tilegpu/heron/internal/mir"

// ScheduleStoreRegs packs every store's operands into one contiguous block:
// the two address registers followed immediately by the data burst. The
// memory unit reads the data at addr_index+2, so a store whose data landed
// elsewhere gets a fresh block and copy moves.
func ScheduleStoreRegs(s *mir.Shader) {
	b := mir.NewBuilder(s)
	for _, blk := range s.Blocks {
		// Snapshot: the loop inserts moves ahead of the store.
		instrs := append([]*mir.Instr(nil), blk.Instrs...)
		for _, i := range instrs {
			if i.Kind != mir.InstrKindBackend || i.BackendOp() != mir.BackendOpST {
				continue
			}
			packStore(s, b, i)
		}
	}
}

func packStore(s *mir.Shader, b *mir.Builder, st *mir.Instr) {
	addr := st.Srcs[2].Ref.Array
	data := st.Srcs[3].Ref

	if storeBlockPacked(addr, data) {
		return
	}

	n := uint32(data.Size())
	block := s.NewSSAArray(2 + n)
	b.SetCursorBefore(st)
	b.MOV(mir.RefReg(block.Regs[0]), mir.RefReg(addr.Regs[0]))
	b.MOV(mir.RefReg(block.Regs[1]), mir.RefReg(addr.Regs[1]))
	for c := uint32(0); c < n; c++ {
		b.MOV(mir.RefReg(block.Regs[2+c]), storeDataComp(data, c))
	}
	st.SetSrcRef(2, mir.RefRegArray(s.SubArray(block, 0, 2)))
	if n == 1 {
		st.SetSrcRef(3, mir.RefReg(block.Regs[2]))
	} else {
		st.SetSrcRef(3, mir.RefRegArray(s.SubArray(block, 2, n)))
	}
}

// storeBlockPacked reports whether the data burst already sits two registers
// above the address base within one parent array.
func storeBlockPacked(addr *mir.RegArray, data mir.Ref) bool {
	if addr.Parent == nil {
		return false
	}
	want := addr.Base() + 2
	switch data.Kind {
	case mir.RefKindReg:
		return data.Reg.Class == addr.Class() && data.Reg.Index == want &&
			data.Reg.Parent == addr.Parent
	case mir.RefKindRegArray:
		return data.Array.Class() == addr.Class() && data.Array.Base() == want &&
			data.Array.Parent == addr.Parent
	}
	return false
}

func storeDataComp(data mir.Ref, c uint32) mir.Ref {
	switch data.Kind {
	case mir.RefKindReg:
		return data
	case mir.RefKindRegArray:
		return mir.RefReg(data.Array.Regs[c])
	}
	panic("BUG: store data is not a register reference")
}
