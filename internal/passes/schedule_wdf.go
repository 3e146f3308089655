package passes

import "github.com/tilegpu/heron/internal/mir"

// ScheduleWDF inserts the dependent-read fences. Every memory, sample or
// interpolation op signals a DRC when its results land; a fence on that DRC
// must execute before anything touches the registers in flight. Stores hold
// their source block in flight until the fence, so those registers join the
// hazard set too. Fences within a block go right before the first hazard;
// anything still pending is fenced before the block's terminator, keeping
// the scheduling local.
func ScheduleWDF(s *mir.Shader) {
	b := mir.NewBuilder(s)
	for _, blk := range s.Blocks {
		scheduleBlockWDF(b, blk)
	}
}

func scheduleBlockWDF(b *mir.Builder, blk *mir.Block) {
	// pending maps each DRC to the registers its outstanding ops leave in
	// flight; nil means the counter is settled.
	var pending [2]map[*mir.Reg]struct{}

	instrs := append([]*mir.Instr(nil), blk.Instrs...)
	for _, i := range instrs {
		for d := uint8(0); d < 2; d++ {
			if pending[d] == nil {
				continue
			}
			if !touchesAny(i, pending[d]) {
				continue
			}
			b.SetCursorBefore(i)
			b.WDF(mir.RefDRC(d))
			pending[d] = nil
		}

		if d, regs, ok := drcHazards(i); ok {
			if pending[d] == nil {
				pending[d] = make(map[*mir.Reg]struct{})
			}
			for _, r := range regs {
				pending[d][r] = struct{}{}
			}
		}
	}

	for d := uint8(0); d < 2; d++ {
		if pending[d] == nil {
			continue
		}
		if t := blk.Terminator(); t != nil {
			b.SetCursorBefore(t)
		} else {
			b.SetCursorEnd(blk)
		}
		b.WDF(mir.RefDRC(d))
	}
}

// drcHazards returns the DRC an instruction signals and the registers that
// stay in flight until its fence.
func drcHazards(i *mir.Instr) (uint8, []*mir.Reg, bool) {
	drc := -1
	for _, src := range i.Srcs {
		if src.Ref.Kind == mir.RefKindDRC {
			drc = int(src.Ref.Drc)
			break
		}
	}
	if drc < 0 {
		return 0, nil, false
	}

	var regs []*mir.Reg
	for _, d := range i.Dsts {
		regs = appendRefRegs(regs, d.Ref)
	}
	if i.Kind == mir.InstrKindBackend && i.BackendOp() == mir.BackendOpST {
		// The store reads its block asynchronously; the address and data
		// registers must not be overwritten before the fence.
		regs = appendRefRegs(regs, i.Srcs[2].Ref)
		regs = appendRefRegs(regs, i.Srcs[3].Ref)
	}
	return uint8(drc), regs, true
}

func appendRefRegs(regs []*mir.Reg, ref mir.Ref) []*mir.Reg {
	switch ref.Kind {
	case mir.RefKindReg:
		regs = append(regs, ref.Reg)
	case mir.RefKindRegIndexed:
		regs = append(regs, ref.Reg, ref.Idx)
	case mir.RefKindRegArray:
		regs = append(regs, ref.Array.Regs...)
	}
	return regs
}

func touchesAny(i *mir.Instr, set map[*mir.Reg]struct{}) bool {
	hit := false
	check := func(ref mir.Ref) {
		for _, r := range appendRefRegs(nil, ref) {
			if _, ok := set[r]; ok {
				hit = true
			}
		}
	}
	for _, d := range i.Dsts {
		check(d.Ref)
	}
	for _, src := range i.Srcs {
		check(src.Ref)
	}
	return hit
}
