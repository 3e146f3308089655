package mir

import "fmt"

// Builder appends instructions at a movable cursor and keeps register
// use/write lists current.
type Builder struct {
	S *Shader

	blk *Block
	pos int
}

// NewBuilder returns a builder with no cursor; call PushBlock or SetCursor
// before emitting.
func NewBuilder(s *Shader) *Builder {
	return &Builder{S: s}
}

// PushBlock appends a new block and moves the cursor to its start.
func (b *Builder) PushBlock(name string) *Block {
	blk := b.S.NewBlock(name)
	b.blk = blk
	b.pos = 0
	return blk
}

// Block returns the cursor's block.
func (b *Builder) Block() *Block { return b.blk }

// SetCursorEnd moves the cursor to the end of blk.
func (b *Builder) SetCursorEnd(blk *Block) {
	b.blk = blk
	b.pos = len(blk.Instrs)
}

// SetCursorStart moves the cursor to the start of blk.
func (b *Builder) SetCursorStart(blk *Block) {
	b.blk = blk
	b.pos = 0
}

// SetCursorBefore moves the cursor to just before instr.
func (b *Builder) SetCursorBefore(instr *Instr) {
	b.blk = instr.Block
	b.pos = instr.index
}

// SetCursorAfter moves the cursor to just after instr.
func (b *Builder) SetCursorAfter(instr *Instr) {
	b.blk = instr.Block
	b.pos = instr.index + 1
}

func (b *Builder) insert(i *Instr) *Instr {
	if b.blk == nil {
		panic("BUG: emit without a cursor")
	}
	i.Block = b.blk
	b.blk.Instrs = append(b.blk.Instrs, nil)
	copy(b.blk.Instrs[b.pos+1:], b.blk.Instrs[b.pos:])
	b.blk.Instrs[b.pos] = i
	for n := b.pos; n < len(b.blk.Instrs); n++ {
		b.blk.Instrs[n].index = n
	}
	b.pos++
	trackRefs(i)
	return i
}

// trackRefs records i on the use/write lists of every register it touches.
func trackRefs(i *Instr) {
	for _, d := range i.Dsts {
		forEachRefReg(d.Ref, func(r *Reg) { r.Writes = append(r.Writes, i) })
	}
	for _, s := range i.Srcs {
		forEachRefReg(s.Ref, func(r *Reg) { r.Uses = append(r.Uses, i) })
	}
}

// untrackRefs removes i from the use/write lists of its registers.
func untrackRefs(i *Instr) {
	for _, d := range i.Dsts {
		forEachRefReg(d.Ref, func(r *Reg) { r.Writes = removeInstr(r.Writes, i) })
	}
	for _, s := range i.Srcs {
		forEachRefReg(s.Ref, func(r *Reg) { r.Uses = removeInstr(r.Uses, i) })
	}
}

func forEachRefReg(ref Ref, f func(*Reg)) {
	switch ref.Kind {
	case RefKindReg:
		f(ref.Reg)
	case RefKindRegIndexed:
		f(ref.Reg)
		f(ref.Idx)
	case RefKindRegArray:
		for _, r := range ref.Array.Regs {
			f(r)
		}
	}
}

func removeInstr(list []*Instr, i *Instr) []*Instr {
	for n, x := range list {
		if x == i {
			return append(list[:n], list[n+1:]...)
		}
	}
	return list
}

// SetSrcRef rewrites the n'th source reference, keeping use lists current.
func (i *Instr) SetSrcRef(n int, ref Ref) {
	forEachRefReg(i.Srcs[n].Ref, func(r *Reg) { r.Uses = removeInstr(r.Uses, i) })
	i.Srcs[n].Ref = ref
	forEachRefReg(ref, func(r *Reg) { r.Uses = append(r.Uses, i) })
}

// SetDstRef rewrites the n'th destination reference, keeping write lists
// current.
func (i *Instr) SetDstRef(n int, ref Ref) {
	forEachRefReg(i.Dsts[n].Ref, func(r *Reg) { r.Writes = removeInstr(r.Writes, i) })
	i.Dsts[n].Ref = ref
	forEachRefReg(ref, func(r *Reg) { r.Writes = append(r.Writes, i) })
}

// Remove deletes an instruction from its block.
func (b *Builder) Remove(i *Instr) {
	blk := i.Block
	blk.Instrs = append(blk.Instrs[:i.index], blk.Instrs[i.index+1:]...)
	for n := i.index; n < len(blk.Instrs); n++ {
		blk.Instrs[n].index = n
	}
	if b.blk == blk && b.pos > i.index {
		b.pos--
	}
	untrackRefs(i)
	i.Block = nil
}

// Replace swaps old for an already-built replacement at the same position.
func (b *Builder) Replace(old, repl *Instr) {
	blk, idx := old.Block, old.index
	untrackRefs(old)
	repl.Block, repl.index = blk, idx
	blk.Instrs[idx] = repl
	trackRefs(repl)
	old.Block = nil
}

func (b *Builder) emit(kind InstrKind, op uint16, mods OpModSet, dsts []Dst, srcs []Src) *Instr {
	i := &Instr{Kind: kind, Op: op, Mods: mods, Dsts: dsts, Srcs: srcs}
	if i.Info().MaxRepeat > 0 {
		i.Repeat = 1
	}
	return b.insert(i)
}

func dsts(refs ...Ref) []Dst {
	out := make([]Dst, len(refs))
	for i, r := range refs {
		out[i] = Dst{Ref: r}
	}
	return out
}

func srcs(refs ...Ref) []Src {
	out := make([]Src, len(refs))
	for i, r := range refs {
		out[i] = Src{Ref: r}
	}
	return out
}

// ALU emitters.

func (b *Builder) MOV(dst, src Ref) *Instr {
	return b.emit(InstrKindALU, uint16(ALUOpMOV), 0, dsts(dst), srcs(src))
}

func (b *Builder) MBYP(dst, src Ref) *Instr {
	return b.emit(InstrKindALU, uint16(ALUOpMBYP), 0, dsts(dst), srcs(src))
}

func (b *Builder) FADD(dst, src0, src1 Ref) *Instr {
	return b.emit(InstrKindALU, uint16(ALUOpFADD), 0, dsts(dst), srcs(src0, src1))
}

func (b *Builder) FMUL(dst, src0, src1 Ref) *Instr {
	return b.emit(InstrKindALU, uint16(ALUOpFMUL), 0, dsts(dst), srcs(src0, src1))
}

func (b *Builder) FMAD(dst, src0, src1, src2 Ref) *Instr {
	return b.emit(InstrKindALU, uint16(ALUOpFMAD), 0, dsts(dst), srcs(src0, src1, src2))
}

func (b *Builder) FRCP(dst, src Ref) *Instr {
	return b.emit(InstrKindALU, uint16(ALUOpFRCP), 0, dsts(dst), srcs(src))
}

func (b *Builder) FRSQ(dst, src Ref) *Instr {
	return b.emit(InstrKindALU, uint16(ALUOpFRSQ), 0, dsts(dst), srcs(src))
}

func (b *Builder) FLOG2(dst, src Ref) *Instr {
	return b.emit(InstrKindALU, uint16(ALUOpFLOG2), 0, dsts(dst), srcs(src))
}

func (b *Builder) FEXP2(dst, src Ref) *Instr {
	return b.emit(InstrKindALU, uint16(ALUOpFEXP2), 0, dsts(dst), srcs(src))
}

func (b *Builder) FFLR(dst, src Ref) *Instr {
	return b.emit(InstrKindALU, uint16(ALUOpFFLR), 0, dsts(dst), srcs(src))
}

func (b *Builder) FRED(part OpMod, dst, iter, src Ref) *Instr {
	return b.emit(InstrKindALU, uint16(ALUOpFRED), OpMods(part), dsts(dst), srcs(iter, src))
}

func (b *Builder) FSINC(dst, src Ref) *Instr {
	return b.emit(InstrKindALU, uint16(ALUOpFSINC), 0, dsts(dst), srcs(src))
}

func (b *Builder) GETPRED(dst Ref) *Instr {
	return b.emit(InstrKindALU, uint16(ALUOpGETPRED), 0, dsts(dst), srcs(RefIO(IOP0)))
}

func (b *Builder) FDS(op ALUOp, dst, src Ref) *Instr {
	switch op {
	case ALUOpFDSX, ALUOpFDSXF, ALUOpFDSY, ALUOpFDSYF:
	default:
		panic(fmt.Sprintf("BUG: not a derivative op: %d", op))
	}
	return b.emit(InstrKindALU, uint16(op), 0, dsts(dst), srcs(src))
}

func (b *Builder) MIN(elem OpMod, dst, src0, src1 Ref) *Instr {
	return b.emit(InstrKindALU, uint16(ALUOpMIN), OpMods(elem), dsts(dst), srcs(src0, src1))
}

func (b *Builder) MAX(elem OpMod, dst, src0, src1 Ref) *Instr {
	return b.emit(InstrKindALU, uint16(ALUOpMAX), OpMods(elem), dsts(dst), srcs(src0, src1))
}

func (b *Builder) CMP(fn, elem OpMod, dst, src0, src1 Ref) *Instr {
	return b.emit(InstrKindALU, uint16(ALUOpCMP), OpMods(fn, elem), dsts(dst), srcs(src0, src1))
}

func (b *Builder) CSEL(test, elem OpMod, dst, cond, ifTrue, ifFalse Ref) *Instr {
	return b.emit(InstrKindALU, uint16(ALUOpCSEL), OpMods(test, elem), dsts(dst), srcs(cond, ifTrue, ifFalse))
}

func (b *Builder) IADD(op ALUOp, dst, src0, src1 Ref) *Instr {
	switch op {
	case ALUOpIADD8, ALUOpIADD16, ALUOpIADD32, ALUOpIADD64:
	default:
		panic(fmt.Sprintf("BUG: not an integer add op: %d", op))
	}
	return b.emit(InstrKindALU, uint16(op), 0, dsts(dst), srcs(src0, src1))
}

func (b *Builder) IMUL(op ALUOp, mods OpModSet, dst, src0, src1 Ref) *Instr {
	switch op {
	case ALUOpIMUL8, ALUOpIMUL16, ALUOpIMUL32, ALUOpIMUL32HI:
	default:
		panic(fmt.Sprintf("BUG: not an integer mul op: %d", op))
	}
	return b.emit(InstrKindALU, uint16(op), mods, dsts(dst), srcs(src0, src1))
}

func (b *Builder) IMADD32(mods OpModSet, dst, src0, src1, src2 Ref) *Instr {
	return b.emit(InstrKindALU, uint16(ALUOpIMADD32), mods, dsts(dst), srcs(src0, src1, src2))
}

func (b *Builder) IMADD64(mods OpModSet, dst, src0, src1, src2 Ref) *Instr {
	return b.emit(InstrKindALU, uint16(ALUOpIMADD64), mods, dsts(dst), srcs(src0, src1, src2))
}

func (b *Builder) ISXT(dst, src, msb, offset Ref) *Instr {
	return b.emit(InstrKindALU, uint16(ALUOpISXT), 0, dsts(dst), srcs(src, msb, offset))
}

func (b *Builder) MOVC(en DstMod, dst, src, old Ref) *Instr {
	i := b.emit(InstrKindALU, uint16(ALUOpMOVC), 0, dsts(dst), srcs(src, old))
	i.Dsts[0].Mod = en
	return i
}

// Backend emitters.

func (b *Builder) UVSWWRITE(dst, src Ref) *Instr {
	return b.emit(InstrKindBackend, uint16(BackendOpUVSWWRITE), 0, dsts(dst), srcs(src))
}

func (b *Builder) UVSWEMIT() *Instr {
	return b.emit(InstrKindBackend, uint16(BackendOpUVSWEMIT), 0, nil, nil)
}

func (b *Builder) UVSWENDTASK() *Instr {
	return b.emit(InstrKindBackend, uint16(BackendOpUVSWENDTASK), 0, nil, nil)
}

func (b *Builder) FITR(dst, drc, coeffs Ref, repeat uint8) *Instr {
	i := b.emit(InstrKindBackend, uint16(BackendOpFITR), 0, dsts(dst), srcs(drc, coeffs))
	i.Repeat = repeat
	return i
}

func (b *Builder) FITRP(dst, drc, coeffs, wcoeffs Ref, repeat uint8) *Instr {
	i := b.emit(InstrKindBackend, uint16(BackendOpFITRP), 0, dsts(dst), srcs(drc, coeffs, wcoeffs))
	i.Repeat = repeat
	return i
}

func (b *Builder) SMP(op BackendOp, mods OpModSet, dst, drc, texState, smpState, data Ref, chans uint32) *Instr {
	switch op {
	case BackendOpSMP1D, BackendOpSMP2D, BackendOpSMP3D:
	default:
		panic(fmt.Sprintf("BUG: not a sample op: %d", op))
	}
	return b.emit(InstrKindBackend, uint16(op), mods, dsts(dst), srcs(drc, texState, smpState, data, RefVal(chans)))
}

func (b *Builder) LD(dst, drc Ref, burst uint32, addr Ref) *Instr {
	return b.emit(InstrKindBackend, uint16(BackendOpLD), 0, dsts(dst), srcs(drc, RefVal(burst), addr))
}

func (b *Builder) ST(drc Ref, burst uint32, addr, data Ref) *Instr {
	return b.emit(InstrKindBackend, uint16(BackendOpST), 0, nil, srcs(drc, RefVal(burst), addr, data))
}

func (b *Builder) ATOMIC(op OpMod, dst, drc, addrData Ref) *Instr {
	return b.emit(InstrKindBackend, uint16(BackendOpATOMIC), OpMods(op), dsts(dst), srcs(drc, addrData))
}

func (b *Builder) ATST(mods OpModSet, src0, src1 Ref) *Instr {
	return b.emit(InstrKindBackend, uint16(BackendOpATST), mods, nil, srcs(src0, src1))
}

func (b *Builder) SAVMSK(mods OpModSet, dst Ref) *Instr {
	return b.emit(InstrKindBackend, uint16(BackendOpSAVMSK), mods, dsts(dst), nil)
}

func (b *Builder) EMITPIX() *Instr {
	return b.emit(InstrKindBackend, uint16(BackendOpEMITPIX), 0, nil, nil)
}

func (b *Builder) PCK(mods OpModSet, dst, src Ref, repeat uint8) *Instr {
	i := b.emit(InstrKindBackend, uint16(BackendOpPCK), mods, dsts(dst), srcs(src))
	i.Repeat = repeat
	return i
}

func (b *Builder) UPCK(mods OpModSet, dst, src Ref, repeat uint8) *Instr {
	i := b.emit(InstrKindBackend, uint16(BackendOpUPCK), mods, dsts(dst), srcs(src))
	i.Repeat = repeat
	return i
}

// Ctrl emitters.

func (b *Builder) NOP() *Instr {
	return b.emit(InstrKindCtrl, uint16(CtrlOpNOP), 0, nil, nil)
}

func (b *Builder) END() *Instr {
	return b.emit(InstrKindCtrl, uint16(CtrlOpEND), 0, nil, nil)
}

// BR emits a branch; target may be nil and set later with SetBranchTarget
// when the destination block does not exist yet.
func (b *Builder) BR(mods OpModSet, target *Block) *Instr {
	i := b.emit(InstrKindCtrl, uint16(CtrlOpBR), mods, nil, nil)
	if target != nil {
		i.SetBranchTarget(target)
	}
	return i
}

func (b *Builder) CNDST(test OpMod, dst Ref, delta uint32) *Instr {
	return b.emit(InstrKindCtrl, uint16(CtrlOpCNDST), OpMods(test), dsts(dst), srcs(RefImm(delta)))
}

func (b *Builder) CNDEF(test OpMod, dst Ref, delta uint32) *Instr {
	return b.emit(InstrKindCtrl, uint16(CtrlOpCNDEF), OpMods(test), dsts(dst), srcs(RefImm(delta)))
}

func (b *Builder) CNDEND(dst Ref, delta uint32) *Instr {
	return b.emit(InstrKindCtrl, uint16(CtrlOpCNDEND), 0, dsts(dst), srcs(RefImm(delta)))
}

func (b *Builder) CNDLT(dst Ref, val uint32) *Instr {
	return b.emit(InstrKindCtrl, uint16(CtrlOpCNDLT), 0, []Dst{{Ref: dst}, {Ref: RefIO(IOP0)}}, srcs(RefImm(val)))
}

func (b *Builder) WDF(drc Ref) *Instr {
	return b.emit(InstrKindCtrl, uint16(CtrlOpWDF), 0, nil, srcs(drc))
}

func (b *Builder) SETPRED(src Ref) *Instr {
	return b.emit(InstrKindCtrl, uint16(CtrlOpSETPRED), 0, dsts(RefIO(IOP0)), srcs(src))
}

func (b *Builder) MUTEX(mod OpMod) *Instr {
	return b.emit(InstrKindCtrl, uint16(CtrlOpMUTEX), OpMods(mod), nil, nil)
}

// Bitwise emitters.

func (b *Builder) BYP0(dst, src Ref) *Instr {
	return b.emit(InstrKindBitwise, uint16(BitwiseOpBYP0), 0, dsts(dst), srcs(src))
}

func (b *Builder) AND(dst, src0, src1 Ref) *Instr {
	return b.emit(InstrKindBitwise, uint16(BitwiseOpAND), 0, dsts(dst), srcs(src0, src1))
}

func (b *Builder) OR(dst, src0, src1 Ref) *Instr {
	return b.emit(InstrKindBitwise, uint16(BitwiseOpOR), 0, dsts(dst), srcs(src0, src1))
}

func (b *Builder) XOR(dst, src0, src1 Ref) *Instr {
	return b.emit(InstrKindBitwise, uint16(BitwiseOpXOR), 0, dsts(dst), srcs(src0, src1))
}

func (b *Builder) LSL(dst, src, amount Ref) *Instr {
	return b.emit(InstrKindBitwise, uint16(BitwiseOpLSL), 0, dsts(dst), srcs(src, amount))
}

func (b *Builder) SHR(dst, src, amount Ref) *Instr {
	return b.emit(InstrKindBitwise, uint16(BitwiseOpSHR), 0, dsts(dst), srcs(src, amount))
}

func (b *Builder) ASR(dst, src, amount Ref) *Instr {
	return b.emit(InstrKindBitwise, uint16(BitwiseOpASR), 0, dsts(dst), srcs(src, amount))
}

func (b *Builder) REV(dst, src Ref) *Instr {
	return b.emit(InstrKindBitwise, uint16(BitwiseOpREV), 0, dsts(dst), srcs(src))
}

func (b *Builder) CBS(dst, src Ref) *Instr {
	return b.emit(InstrKindBitwise, uint16(BitwiseOpCBS), 0, dsts(dst), srcs(src))
}

func (b *Builder) FTB(dst, src Ref) *Instr {
	return b.emit(InstrKindBitwise, uint16(BitwiseOpFTB), 0, dsts(dst), srcs(src))
}

func (b *Builder) MSK(dst, width, offset Ref) *Instr {
	return b.emit(InstrKindBitwise, uint16(BitwiseOpMSK), 0, dsts(dst), srcs(width, offset))
}
