package validate

import "github.com/tilegpu/heron/internal/mir"

func (v *validator) checkInstr(i *mir.Instr) {
	info := i.Info()
	if info.Name == "" {
		v.failf("%s: unnamed opcode %d/%d", i, i.Kind, i.Op)
		return
	}
	if len(i.Dsts) != info.NumDsts {
		v.failf("%s: %d destinations, %s takes %d", i, len(i.Dsts), info.Name, info.NumDsts)
		return
	}
	if len(i.Srcs) != info.NumSrcs {
		v.failf("%s: %d sources, %s takes %d", i, len(i.Srcs), info.Name, info.NumSrcs)
		return
	}

	v.checkMods(i, info)
	v.checkRepeat(i, info)

	for n, d := range i.Dsts {
		v.checkSlot(i, "dst", n, d.Ref, info.DstRefs[n])
		v.checkSlotSize(i, "dst", n, d.Ref, v.dstSize(i, info, n))
	}
	for n, src := range i.Srcs {
		v.checkSlot(i, "src", n, src.Ref, info.SrcRefs[n])
		v.checkSlotSize(i, "src", n, src.Ref, v.srcSize(i, info, n))
	}

	if info.HasTarget {
		if i.Target == nil {
			v.failf("%s: branch without a target", i)
		} else if !v.blockInShader(i.Target) {
			v.failf("%s: branch target %s not in shader", i, i.Target)
		}
	} else if i.Target != nil {
		v.failf("%s: %s cannot carry a branch target", i, info.Name)
	}

	if v.s.Grouped {
		if info.Pseudo {
			v.failf("%s: pseudo op after lowering", i)
		}
		if i.Kind == mir.InstrKindBackend && i.BackendOp() == mir.BackendOpST {
			v.checkStoreBlock(i)
		}
	} else if i.GroupNext {
		v.failf("%s: grouped before group scheduling", i)
	}
	if i.GroupNext {
		v.checkGroupNext(i, info)
	}
}

func (v *validator) checkMods(i *mir.Instr, info *mir.OpInfo) {
	if !i.Mods.SubsetOf(info.Mods) {
		v.failf("%s: modifiers %s not legal on %s", i, i.Mods, info.Name)
	}
	for _, req := range info.Require {
		if i.Mods.Has(req[0]) && !i.Mods.Has(req[1]) {
			v.failf("%s: %s requires %s", i, req[0], req[1])
		}
	}
	for _, ex := range info.Exclude {
		if i.Mods.Has(ex[0]) && i.Mods.Has(ex[1]) {
			v.failf("%s: %s excludes %s", i, ex[0], ex[1])
		}
	}
	for n, d := range i.Dsts {
		var legal mir.DstMod
		if n < len(info.DstMods) {
			legal = info.DstMods[n]
		}
		if d.Mod&^legal != 0 {
			v.failf("%s: dst%d modifier %s not legal on %s", i, n, d.Mod, info.Name)
		}
	}
	for n, src := range i.Srcs {
		var legal mir.SrcMod
		if n < len(info.SrcMods) {
			legal = info.SrcMods[n]
		}
		if src.Mod&^legal != 0 {
			v.failf("%s: src%d modifier %s not legal on %s", i, n, src.Mod, info.Name)
		}
	}
}

func (v *validator) checkRepeat(i *mir.Instr, info *mir.OpInfo) {
	if info.MaxRepeat == 0 {
		if i.Repeat != 0 {
			v.failf("%s: %s does not support repeat", i, info.Name)
		}
		return
	}
	if i.Repeat < 1 || i.Repeat > info.MaxRepeat {
		v.failf("%s: repeat %d outside 1..%d", i, i.Repeat, info.MaxRepeat)
	}
	// Element selects address one lane; they cannot combine with
	// replication.
	if i.Repeat > 1 && i.Kind == mir.InstrKindBackend && i.BackendOp() == mir.BackendOpUPCK {
		if i.Srcs[0].Mod&(mir.SrcModE0|mir.SrcModE1|mir.SrcModE2|mir.SrcModE3) != 0 {
			v.failf("%s: element select with repeat", i)
		}
	}
}

func (v *validator) checkSlot(i *mir.Instr, what string, n int, ref mir.Ref, legal mir.RefMask) {
	if !ref.Valid() {
		v.failf("%s: %s%d is empty", i, what, n)
		return
	}
	if !legal.Has(ref.Kind) {
		v.failf("%s: %s%d reference kind not legal for the slot", i, what, n)
		return
	}
	for _, r := range refRegs(ref) {
		if count := r.Class.Count(); count > 0 && r.Index >= count {
			v.failf("%s: %s%d register %s out of the %s file's %d entries",
				i, what, n, r, r.Class, count)
		}
		if v.s.Grouped && r.Class == mir.RegClassSSA {
			v.failf("%s: %s%d scratch register %s survived allocation", i, what, n, r)
		}
	}
	if ref.Kind == mir.RefKindRegIndexed && ref.Idx.Class != mir.RegClassIndex {
		v.failf("%s: %s%d index register has class %s", i, what, n, ref.Idx.Class)
	}
}

// dstSize returns the register count dst n must cover, 0 to skip the check.
func (v *validator) dstSize(i *mir.Instr, info *mir.OpInfo, n int) int {
	stride := 0
	if n < len(info.DstStride) {
		if info.DstStride[n] == mir.StrideNone {
			return 0
		}
		stride = int(info.DstStride[n])
	}
	size := stride + 1
	if info.RepeatDsts&(1<<n) != 0 && i.Repeat > 1 {
		size *= int(i.Repeat)
	}
	if n < len(info.DstValnum) && info.DstValnum[n] >= 0 {
		size *= int(i.Srcs[info.DstValnum[n]].Ref.U)
	}
	// A gather returns the full four-tap footprint, each tap one channel
	// set wide.
	if i.Mods.Has(mir.OpModGather) {
		size *= 4
	}
	return size
}

func (v *validator) srcSize(i *mir.Instr, info *mir.OpInfo, n int) int {
	stride := 0
	if n < len(info.SrcStride) {
		if info.SrcStride[n] == mir.StrideNone {
			return 0
		}
		stride = int(info.SrcStride[n])
	}
	size := stride + 1
	if info.RepeatSrcs&(1<<n) != 0 && i.Repeat > 1 {
		size *= int(i.Repeat)
	}
	if n < len(info.SrcValnum) && info.SrcValnum[n] >= 0 {
		size *= int(i.Srcs[info.SrcValnum[n]].Ref.U)
	}
	return size
}

func (v *validator) checkSlotSize(i *mir.Instr, what string, n int, ref mir.Ref, want int) {
	if want == 0 {
		return
	}
	switch ref.Kind {
	case mir.RefKindReg, mir.RefKindRegIndexed, mir.RefKindRegArray:
	default:
		return
	}
	if got := ref.Size(); got != want {
		v.failf("%s: %s%d covers %d registers, needs %d", i, what, n, got, want)
	}
}

func (v *validator) checkGroupNext(i *mir.Instr, info *mir.OpInfo) {
	if i.Kind == mir.InstrKindCtrl || info.WholePipeline {
		v.failf("%s: %s cannot co-issue", i, info.Name)
		return
	}
	blk := i.Block
	if blk == nil || i.Index() >= len(blk.Instrs)-1 {
		v.failf("%s: grouped with no successor", i)
		return
	}
	next := blk.Instrs[i.Index()+1]
	if next.Kind == mir.InstrKindCtrl || next.Info().WholePipeline {
		v.failf("%s: grouped with %s, which cannot co-issue", i, next.OpName())
	}
}

// checkStoreBlock verifies the allocated store block: the data burst must
// start two registers above the address base so the memory unit finds it.
func (v *validator) checkStoreBlock(i *mir.Instr) {
	addr := i.Srcs[2].Ref
	data := i.Srcs[3].Ref
	if addr.Kind != mir.RefKindRegArray || data.Size() == 0 {
		return
	}
	dataBase := uint32(0)
	switch data.Kind {
	case mir.RefKindReg:
		dataBase = data.Reg.Index
	case mir.RefKindRegArray:
		dataBase = data.Array.Base()
	default:
		return
	}
	if want := addr.Array.Base() + 2; dataBase != want {
		v.failf("%s: store data at index %d, the address block puts it at %d",
			i, dataBase, want)
	}
}

func refRegs(ref mir.Ref) []*mir.Reg {
	switch ref.Kind {
	case mir.RefKindReg:
		return []*mir.Reg{ref.Reg}
	case mir.RefKindRegIndexed:
		return []*mir.Reg{ref.Reg, ref.Idx}
	case mir.RefKindRegArray:
		return ref.Array.Regs
	}
	return nil
}
