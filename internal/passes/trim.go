package passes

import "github.com/tilegpu/heron/internal/mir"

// Trim removes computations whose results nothing reads and blocks that
// ended up empty. Only pure pipeline ops are candidates; backend and control
// ops keep their side effects even when their outputs are dead. Removing one
// instruction can orphan its inputs, so the sweep repeats until a fixed
// point.
func Trim(s *mir.Shader) {
	b := mir.NewBuilder(s)
	for removeDead(s, b) {
	}
	trimBlocks(s)
}

func removeDead(s *mir.Shader, b *mir.Builder) bool {
	changed := false
	for _, blk := range s.Blocks {
		instrs := append([]*mir.Instr(nil), blk.Instrs...)
		for _, i := range instrs {
			if !pure(i) || live(i) {
				continue
			}
			b.Remove(i)
			changed = true
		}
	}
	return changed
}

func pure(i *mir.Instr) bool {
	switch i.Kind {
	case mir.InstrKindALU, mir.InstrKindBitwise:
		return true
	}
	return false
}

// live reports whether any result reaches a reader. Results landing outside
// the scratch file (output registers, the mask counter) are always live.
func live(i *mir.Instr) bool {
	for _, d := range i.Dsts {
		switch d.Ref.Kind {
		case mir.RefKindReg:
			if d.Ref.Reg.Class != mir.RegClassSSA || len(d.Ref.Reg.Uses) > 0 {
				return true
			}
		case mir.RefKindRegArray:
			for _, r := range d.Ref.Array.Regs {
				if r.Class != mir.RegClassSSA || len(r.Uses) > 0 {
					return true
				}
			}
		default:
			return true
		}
	}
	return false
}

func trimBlocks(s *mir.Shader) {
	for changed := true; changed; {
		changed = false
		for _, blk := range s.Blocks {
			if !blk.Empty() || blk.Next() == nil {
				continue
			}
			blk.RedirectUses(blk.Next())
			s.RemoveBlock(blk)
			changed = true
			break
		}
	}
}
