package passes

import "github.com/tilegpu/heron/internal/mir"

// ScheduleGroups forms the final instruction groups. An instruction whose
// result leaves on a feed-through port must co-issue with the consumer that
// reads the port, so those chains get GroupNext set; control ops and
// whole-pipeline ops never group. Registers written inside a group are in
// flight until the group retires, which the encoder tracks through the
// Dirty flag.
func ScheduleGroups(s *mir.Shader) {
	for _, blk := range s.Blocks {
		for n, i := range blk.Instrs {
			if !feedsThrough(i) {
				continue
			}
			if n+1 >= len(blk.Instrs) {
				panic("BUG: feed-through port has no consumer: " + i.String())
			}
			next := blk.Instrs[n+1]
			if next.Kind == mir.InstrKindCtrl || next.Info().WholePipeline {
				panic("BUG: feed-through consumer cannot co-issue: " + next.String())
			}
			i.GroupNext = true
		}
	}

	for _, blk := range s.Blocks {
		prevGrouped := false
		for _, i := range blk.Instrs {
			if i.GroupNext || prevGrouped {
				for _, d := range i.Dsts {
					for _, r := range appendRefRegs(nil, d.Ref) {
						r.Dirty = true
					}
				}
			}
			prevGrouped = i.GroupNext
		}
	}

	s.Grouped = true
}

// feedsThrough reports whether the instruction writes a feed-through port
// (FT0..FTE) that the next instruction in the group consumes. Predicate and
// lane-enable ports are read by control ops across groups and do not force
// grouping.
func feedsThrough(i *mir.Instr) bool {
	if i.Kind == mir.InstrKindCtrl {
		return false
	}
	for _, d := range i.Dsts {
		if d.Ref.Kind != mir.RefKindIO {
			continue
		}
		switch d.Ref.Port {
		case mir.IOFT0, mir.IOFT1, mir.IOFT2, mir.IOFT3, mir.IOFTE:
			return true
		}
	}
	return false
}
