package lower

import (
	"github.com/tilegpu/heron/internal/mir"
	"github.com/tilegpu/heron/internal/ssa"
)

// atomicMods maps the IR atomic operation onto the hardware op modifier;
// the set is closed.
var atomicMods = map[ssa.AtomicOp]mir.OpMod{
	ssa.AtomicOpIAdd: mir.OpModAtomIAdd,
	ssa.AtomicOpIMin: mir.OpModAtomIMin,
	ssa.AtomicOpUMin: mir.OpModAtomUMin,
	ssa.AtomicOpIMax: mir.OpModAtomIMax,
	ssa.AtomicOpUMax: mir.OpModAtomUMax,
	ssa.AtomicOpAnd:  mir.OpModAtomAnd,
	ssa.AtomicOpOr:   mir.OpModAtomOr,
	ssa.AtomicOpXor:  mir.OpModAtomXor,
	ssa.AtomicOpXchg: mir.OpModAtomXchg,
}

// loadGlobal emits a burst load through a 64-bit address.
func (t *translator) loadGlobal(i *ssa.Instruction) {
	addr := t.ref64(i.Srcs[0])
	drc := mir.RefDRC(t.s.NextDRC())
	t.b.LD(t.dst(i), drc, regsFor(i.Ret), addr.Ref64)
}

// storeGlobal emits a burst store; a later pass stages the data next to the
// address block.
func (t *translator) storeGlobal(i *ssa.Instruction) {
	addr := t.ref64(i.Srcs[0])
	data := i.Srcs[1]
	drc := mir.RefDRC(t.s.NextDRC())
	t.b.ST(drc, regsFor(data), addr.Ref64, t.ref(data))
}

// atomic packs the address and data word into one contiguous 3-register
// block and issues a single atomic.
func (t *translator) atomic(i *ssa.Instruction) {
	mod, ok := atomicMods[i.Atomic]
	if !ok {
		panic(unsupported(i))
	}
	addr := t.ref64(i.Srcs[0])

	block := t.s.NewSSAArray(3)
	t.b.MOV(mir.RefReg(block.Regs[0]), addr.Lo32)
	t.b.MOV(mir.RefReg(block.Regs[1]), addr.Hi32)
	t.b.MOV(mir.RefReg(block.Regs[2]), t.ref(i.Srcs[1]))

	drc := mir.RefDRC(t.s.NextDRC())
	t.b.ATOMIC(mod, t.dst(i), drc, mir.RefRegArray(block))
}
