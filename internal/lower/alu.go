package lower

import (
	"fmt"

	"github.com/tilegpu/heron/internal/mir"
	"github.com/tilegpu/heron/internal/ssa"
)

const (
	floatOne   = 0x3f800000
	floatPiTwo = 0x3fc90fdb
)

// applySrcMods copies per-source modifiers onto an emitted instruction.
func applySrcMods(in *mir.Instr, srcs ...mir.Src) {
	for n, s := range srcs {
		in.Srcs[n].Mod |= s.Mod
	}
}

// floatALU selects the float arithmetic family.
func (t *translator) floatALU(i *ssa.Instruction) {
	if i.Ret.Bits() != 32 {
		panic(unsupported(i))
	}
	dst := t.dst(i)
	switch i.Op {
	case ssa.OpcodeFAdd:
		t.commutativeFloat(i, mir.ALUOpFADD)
	case ssa.OpcodeFMul:
		t.commutativeFloat(i, mir.ALUOpFMUL)
	case ssa.OpcodeFFma:
		s0, s1, s2 := t.src(i, 0), t.src(i, 1), t.src(i, 2)
		applySrcMods(t.b.FMAD(dst, s0.Ref, s1.Ref, s2.Ref), s0, s1, s2)
	case ssa.OpcodeFRcp:
		s := t.src(i, 0)
		applySrcMods(t.b.FRCP(dst, s.Ref), s)
	case ssa.OpcodeFRsq:
		s := t.src(i, 0)
		applySrcMods(t.b.FRSQ(dst, s.Ref), s)
	case ssa.OpcodeFLog2:
		s := t.src(i, 0)
		applySrcMods(t.b.FLOG2(dst, s.Ref), s)
	case ssa.OpcodeFExp2:
		s := t.src(i, 0)
		applySrcMods(t.b.FEXP2(dst, s.Ref), s)
	case ssa.OpcodeFFloor:
		s := t.src(i, 0)
		applySrcMods(t.b.FFLR(dst, s.Ref), s)
	case ssa.OpcodeFNeg:
		in := t.b.MBYP(dst, t.src(i, 0).Ref)
		in.Srcs[0].Mod = t.src(i, 0).Mod ^ mir.SrcModNeg
	case ssa.OpcodeFAbs:
		in := t.b.MBYP(dst, t.src(i, 0).Ref)
		in.Srcs[0].Mod = (t.src(i, 0).Mod | mir.SrcModAbs) &^ mir.SrcModNeg
	case ssa.OpcodeFDdx:
		t.b.FDS(mir.ALUOpFDSX, dst, t.src(i, 0).Ref)
	case ssa.OpcodeFDdxFine:
		t.b.FDS(mir.ALUOpFDSXF, dst, t.src(i, 0).Ref)
	case ssa.OpcodeFDdy:
		t.b.FDS(mir.ALUOpFDSY, dst, t.src(i, 0).Ref)
	case ssa.OpcodeFDdyFine:
		t.b.FDS(mir.ALUOpFDSYF, dst, t.src(i, 0).Ref)
	default:
		panic(unsupported(i))
	}
}

// commutativeFloat emits fadd/fmul with the swap-on-negate rule: the second
// source slot has no negate modifier, so when only src1 is negated the
// operands are exchanged instead.
func (t *translator) commutativeFloat(i *ssa.Instruction, op mir.ALUOp) {
	s0, s1 := t.src(i, 0), t.src(i, 1)
	if s1.Mod&mir.SrcModNeg != 0 && s0.Mod&mir.SrcModNeg == 0 {
		s0, s1 = s1, s0
	}
	if s1.Mod&mir.SrcModNeg != 0 {
		panic(fmt.Sprintf("unsupported instruction: %s with negated second source", i.Op))
	}
	dst := t.dst(i)
	var in *mir.Instr
	if op == mir.ALUOpFADD {
		in = t.b.FADD(dst, s0.Ref, s1.Ref)
	} else {
		in = t.b.FMUL(dst, s0.Ref, s1.Ref)
	}
	applySrcMods(in, s0, s1)
}

// sinCos lowers sin/cos through the hardware range-reduction sequence.
func (t *translator) sinCos(i *ssa.Instruction) {
	src := t.src(i, 0).Ref
	if i.Op == ssa.OpcodeFCos {
		// cos(x) = sin(x + pi/2).
		shifted := mir.RefReg(t.s.NewSSA())
		t.b.FADD(shifted, src, mir.RefImm(floatPiTwo))
		src = shifted
	}
	redA := mir.RefReg(t.s.NewSSA())
	redB := mir.RefReg(t.s.NewSSA())
	t.b.FRED(mir.OpModPartA, redA, mir.RefImm(0), src)
	t.b.FRED(mir.OpModPartB, redB, mir.RefImm(0), src)
	core := mir.RefReg(t.s.NewSSA())
	t.b.FSINC(core, redB)
	// The sine core leaves the quadrant parity in P0.
	parity := mir.RefReg(t.s.NewSSA())
	t.b.GETPRED(parity)
	scaled := mir.RefReg(t.s.NewSSA())
	t.b.FMUL(scaled, core, redA)
	sel := t.b.CSEL(mir.OpModGZ, mir.OpModU32, t.dst(i), parity, scaled, scaled)
	sel.Srcs[1].Mod |= mir.SrcModNeg
}

// minMax selects min/max with the element-type modifier from domain and
// width.
func (t *translator) minMax(i *ssa.Instruction) {
	bits := i.Ret.Bits()
	var elem mir.OpMod
	switch i.Op {
	case ssa.OpcodeFMin, ssa.OpcodeFMax:
		if bits != 32 {
			panic(unsupported(i))
		}
		elem = mir.OpModF32
	case ssa.OpcodeIMin, ssa.OpcodeIMax:
		elem = signedElem(bits, i)
	case ssa.OpcodeUMin, ssa.OpcodeUMax:
		elem = unsignedElem(bits, i)
	}
	s0, s1 := t.src(i, 0), t.src(i, 1)
	var in *mir.Instr
	switch i.Op {
	case ssa.OpcodeFMin, ssa.OpcodeIMin, ssa.OpcodeUMin:
		in = t.b.MIN(elem, t.dst(i), s0.Ref, s1.Ref)
	default:
		in = t.b.MAX(elem, t.dst(i), s0.Ref, s1.Ref)
	}
	applySrcMods(in, s0, s1)
}

func signedElem(bits uint8, i *ssa.Instruction) mir.OpMod {
	switch bits {
	case 8:
		return mir.OpModS8
	case 16:
		return mir.OpModS16
	case 32:
		return mir.OpModS32
	}
	panic(unsupported(i))
}

func unsignedElem(bits uint8, i *ssa.Instruction) mir.OpMod {
	switch bits {
	case 8:
		return mir.OpModU8
	case 16:
		return mir.OpModU16
	case 32:
		return mir.OpModU32
	}
	panic(unsupported(i))
}

// intALU selects the width-specialized integer arithmetic family.
func (t *translator) intALU(i *ssa.Instruction) {
	bits := i.Ret.Bits()
	dst := t.dst(i)
	switch i.Op {
	case ssa.OpcodeIAdd:
		s0, s1 := t.src(i, 0), t.src(i, 1)
		applySrcMods(t.b.IADD(iaddOp(bits, i), dst, s0.Ref, s1.Ref), s0, s1)
	case ssa.OpcodeIMul:
		s0, s1 := t.src(i, 0), t.src(i, 1)
		applySrcMods(t.b.IMUL(imulOp(bits, i), 0, dst, s0.Ref, s1.Ref), s0, s1)
	case ssa.OpcodeIMulHigh:
		t.b.IMUL(mir.ALUOpIMUL32HI, mir.OpMods(mir.OpModS), dst, t.src(i, 0).Ref, t.src(i, 1).Ref)
	case ssa.OpcodeUMulHigh:
		t.b.IMUL(mir.ALUOpIMUL32HI, 0, dst, t.src(i, 0).Ref, t.src(i, 1).Ref)
	case ssa.OpcodeUMulLow:
		t.b.IMUL(mir.ALUOpIMUL32, 0, dst, t.src(i, 0).Ref, t.src(i, 1).Ref)
	case ssa.OpcodeINeg:
		in := t.b.IADD(iaddOp(bits, i), dst, mir.RefImm(0), t.src(i, 0).Ref)
		in.Srcs[1].Mod = mir.SrcModNeg
	case ssa.OpcodeIAbs:
		in := t.b.IADD(iaddOp(bits, i), dst, mir.RefImm(0), t.src(i, 0).Ref)
		in.Srcs[1].Mod = mir.SrcModAbs
	default:
		panic(unsupported(i))
	}
}

func iaddOp(bits uint8, i *ssa.Instruction) mir.ALUOp {
	switch bits {
	case 8:
		return mir.ALUOpIADD8
	case 16:
		return mir.ALUOpIADD16
	case 32:
		return mir.ALUOpIADD32
	case 64:
		return mir.ALUOpIADD64
	}
	panic(unsupported(i))
}

func imulOp(bits uint8, i *ssa.Instruction) mir.ALUOp {
	switch bits {
	case 8:
		return mir.ALUOpIMUL8
	case 16:
		return mir.ALUOpIMUL16
	case 32:
		return mir.ALUOpIMUL32
	}
	panic(unsupported(i))
}

// cmpDesc maps an IR comparison opcode to a compare function and element
// type; unknown combinations are fatal.
func cmpDesc(i *ssa.Instruction) (fn, elem mir.OpMod) {
	bits := i.Srcs[0].Bits()
	switch i.Op {
	case ssa.OpcodeFLt, ssa.OpcodeFGe, ssa.OpcodeFEq, ssa.OpcodeFNe:
		if bits != 32 {
			panic(unsupported(i))
		}
		elem = mir.OpModF32
	case ssa.OpcodeILt, ssa.OpcodeIGe:
		elem = signedElem(bits, i)
	case ssa.OpcodeULt, ssa.OpcodeUGe:
		elem = unsignedElem(bits, i)
	case ssa.OpcodeIEq, ssa.OpcodeINe:
		elem = unsignedElem(bits, i)
	}
	switch i.Op {
	case ssa.OpcodeFLt, ssa.OpcodeILt, ssa.OpcodeULt:
		fn = mir.OpModL
	case ssa.OpcodeFGe, ssa.OpcodeIGe, ssa.OpcodeUGe:
		fn = mir.OpModGE
	case ssa.OpcodeFEq, ssa.OpcodeIEq:
		fn = mir.OpModE
	case ssa.OpcodeFNe, ssa.OpcodeINe:
		fn = mir.OpModNE
	default:
		panic(unsupported(i))
	}
	return fn, elem
}

// compare lowers all comparison families through the shared compare
// primitive.
func (t *translator) compare(i *ssa.Instruction) {
	fn, elem := cmpDesc(i)
	s0, s1 := t.src(i, 0), t.src(i, 1)
	applySrcMods(t.b.CMP(fn, elem, t.dst(i), s0.Ref, s1.Ref), s0, s1)
}

// csel lowers the conditional-select family.
func (t *translator) csel(i *ssa.Instruction) {
	var test, elem mir.OpMod
	switch i.Op {
	case ssa.OpcodeBCsel:
		test, elem = mir.OpModNZ, mir.OpModU32
	case ssa.OpcodeFCselGt:
		test, elem = mir.OpModGZ, mir.OpModF32
	case ssa.OpcodeFCselGe:
		test, elem = mir.OpModGEZ, mir.OpModF32
	case ssa.OpcodeICselGt:
		test, elem = mir.OpModGZ, mir.OpModS32
	case ssa.OpcodeICselGe:
		test, elem = mir.OpModGEZ, mir.OpModS32
	default:
		panic(unsupported(i))
	}
	s1, s2 := t.src(i, 1), t.src(i, 2)
	in := t.b.CSEL(test, elem, t.dst(i), t.src(i, 0).Ref, s1.Ref, s2.Ref)
	in.Srcs[1].Mod |= s1.Mod
	in.Srcs[2].Mod |= s2.Mod
}

// mov copies scalar, 64-bit and vector values.
func (t *translator) mov(i *ssa.Instruction) {
	v := i.Ret
	switch {
	case v.Bits() == 64:
		d, s := t.ref64(v), t.ref64(i.Srcs[0])
		t.b.MOV(d.Lo32, s.Lo32)
		t.b.MOV(d.Hi32, s.Hi32)
	case v.Comps() > 1:
		for c := uint8(0); c < v.Comps(); c++ {
			t.b.MOV(t.comp(v, c), t.comp(i.Srcs[0], c))
		}
	default:
		t.b.MOV(t.dst(i), t.ref(i.Srcs[0]))
	}
}

// vec gathers scalars into a vector's contiguous registers.
func (t *translator) vec(i *ssa.Instruction) {
	for c := range i.Srcs {
		t.b.MOV(t.comp(i.Ret, uint8(c)), t.ref(i.Srcs[c]))
	}
}

// loadConst materializes an immediate; 64-bit constants fill both halves.
func (t *translator) loadConst(i *ssa.Instruction) {
	if i.Ret.Bits() == 64 {
		d := t.ref64(i.Ret)
		t.b.MOV(d.Lo32, mir.RefImm(uint32(i.U64)))
		t.b.MOV(d.Hi32, mir.RefImm(uint32(i.U64>>32)))
		return
	}
	t.b.MOV(t.dst(i), mir.RefImm(i.Imm))
}
