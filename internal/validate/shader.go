package validate

import "github.com/tilegpu/heron/internal/mir"

func (v *validator) blockInShader(b *mir.Block) bool {
	return b.Index() < len(v.s.Blocks) && v.s.Blocks[b.Index()] == b
}

func (v *validator) checkBlock(blk *mir.Block) {
	if blk.Empty() {
		v.failf("%s: empty block", blk)
		return
	}
	for n, i := range blk.Instrs {
		if i.Block != blk || i.Index() != n {
			v.failf("%s: instruction %s detached from its block", blk, i)
		}
		if i.Info().EndsBlock && n != len(blk.Instrs)-1 {
			v.failf("%s: %s terminates mid-block", blk, i.OpName())
		}
	}
	if blk.Terminator() != nil {
		return
	}
	// A successor holding a single instruction is an implicit continuation;
	// anything longer needs an explicit terminator so grouping never runs
	// across the boundary.
	next := blk.Next()
	if next == nil {
		v.failf("%s: last block is unterminated", blk)
	} else if len(next.Instrs) != 1 {
		v.failf("%s: unterminated block before multi-instruction %s", blk, next)
	}
}

func (v *validator) checkRegArrays() {
	for _, a := range v.s.RegArrays() {
		if a.Size() == 0 {
			v.failf("%s: empty regarray", a)
			continue
		}
		class, base := a.Class(), a.Base()
		for n, r := range a.Regs {
			if r.Class != class {
				v.failf("%s: member %s has class %s", a, r, r.Class)
			}
			if r.Index != base+uint32(n) {
				v.failf("%s: member %d has index %d, regarrays are contiguous", a, n, r.Index)
			}
		}
		if p := a.Parent; p != nil {
			if p.Parent != nil {
				v.failf("%s: parent %s is itself a sub-array", a, p)
			}
			if base < p.Base() || base+uint32(a.Size()) > p.Base()+uint32(p.Size()) {
				v.failf("%s: exceeds parent %s", a, p)
			}
		}
	}
}

func (v *validator) checkCaches() {
	v.s.ForEachCachedReg(func(class mir.RegClass, index uint32, r *mir.Reg) {
		if r.Class != class || r.Index != index {
			v.failf("register cache entry (%s, %d) holds %s", class, index, r)
		}
	})
	v.s.ForEachCachedRegArray(func(class mir.RegClass, base, size uint32, a *mir.RegArray) {
		if a.Class() != class || a.Base() != base || uint32(a.Size()) != size {
			v.failf("regarray cache entry (%s, %d, %d) holds %s", class, base, size, a)
		}
	})
}

// checkRefLists cross-checks the per-register use and write lists against
// the operand references, and enforces the single-write rule for scratch
// registers.
func (v *validator) checkRefLists() {
	type counts struct{ uses, writes int }
	seen := make(map[*mir.Reg]counts)
	for _, blk := range v.s.Blocks {
		for _, i := range blk.Instrs {
			for _, d := range i.Dsts {
				for _, r := range refRegs(d.Ref) {
					c := seen[r]
					c.writes++
					seen[r] = c
					if !containsInstr(r.Writes, i) {
						v.failf("%s: write of %s missing from its write list", i, r)
					}
				}
			}
			for _, src := range i.Srcs {
				for _, r := range refRegs(src.Ref) {
					c := seen[r]
					c.uses++
					seen[r] = c
					if !containsInstr(r.Uses, i) {
						v.failf("%s: use of %s missing from its use list", i, r)
					}
				}
			}
		}
	}
	v.s.ForEachCachedReg(func(_ mir.RegClass, _ uint32, r *mir.Reg) {
		c := seen[r]
		if len(r.Uses) != c.uses || len(r.Writes) != c.writes {
			v.failf("%s: tracked %d uses %d writes, found %d and %d",
				r, len(r.Uses), len(r.Writes), c.uses, c.writes)
		}
		if r.Class == mir.RegClassSSA && c.writes > 1 {
			v.failf("%s: scratch register written %d times", r, c.writes)
		}
	})
}

func containsInstr(list []*mir.Instr, i *mir.Instr) bool {
	for _, x := range list {
		if x == i {
			return true
		}
	}
	return false
}

// checkMaskBalance verifies the mask-counter deltas cancel out over the
// whole shader: every construct that raises lane counters must lower them
// by the same amount.
func (v *validator) checkMaskBalance() {
	balance := 0
	for _, blk := range v.s.Blocks {
		for _, i := range blk.Instrs {
			if i.Kind != mir.InstrKindCtrl {
				continue
			}
			switch i.CtrlOp() {
			case mir.CtrlOpCNDST:
				balance += int(i.Srcs[0].Ref.U)
			case mir.CtrlOpCNDEND:
				balance -= int(i.Srcs[0].Ref.U)
			}
		}
	}
	if balance != 0 {
		v.failf("mask counter deltas sum to %+d over the shader", balance)
	}
}

// checkAlphaTests enforces at most one feedback alpha test: the hardware
// has a single feedback slot, while plain lane kills may repeat.
func (v *validator) checkAlphaTests() {
	n := 0
	for _, blk := range v.s.Blocks {
		for _, i := range blk.Instrs {
			if i.Kind == mir.InstrKindBackend && i.BackendOp() == mir.BackendOpATST &&
				i.Mods.Has(mir.OpModIFB) {
				n++
			}
		}
	}
	if n > 1 {
		v.failf("%d feedback alpha tests, the hardware has one slot", n)
	}
}

func (v *validator) checkEnd() {
	var last *mir.Instr
	ends := 0
	for _, blk := range v.s.Blocks {
		for _, i := range blk.Instrs {
			if i.End {
				ends++
			}
			last = i
		}
	}
	if ends != 1 {
		v.failf("%d instructions marked as the shader end", ends)
		return
	}
	if last == nil || !last.End {
		v.failf("the end-marked instruction is not last")
	}
}
