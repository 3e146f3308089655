package lower

import (
	"fmt"

	"github.com/tilegpu/heron/internal/mir"
	"github.com/tilegpu/heron/internal/ssa"
)

// bitwise lowers and/or/xor/not/shifts. The bitwise pipeline is 32-bit
// only: narrower destinations compute at full width into a scratch register
// and mask the result to the exact destination width.
func (t *translator) bitwise(i *ssa.Instruction) {
	bits := i.Ret.Bits()
	if bits > 32 {
		panic(unsupported(i))
	}

	// Arithmetic right shifts below 32 bits sign-extend from the narrow
	// top bit while shifting, so they take the sign-extend path instead
	// of the mask path.
	if i.Op == ssa.OpcodeIShr {
		if bits == 32 {
			t.b.ASR(t.dst(i), t.ref(i.Srcs[0]), t.ref(i.Srcs[1]))
		} else {
			t.b.ISXT(t.dst(i), t.ref(i.Srcs[0]), mir.RefImm(uint32(bits)-1), t.ref(i.Srcs[1]))
		}
		return
	}

	dst := t.dst(i)
	if bits < 32 {
		dst = mir.RefReg(t.s.NewSSA())
	}

	switch i.Op {
	case ssa.OpcodeIAnd:
		t.b.AND(dst, t.ref(i.Srcs[0]), t.ref(i.Srcs[1]))
	case ssa.OpcodeIOr:
		t.b.OR(dst, t.ref(i.Srcs[0]), t.ref(i.Srcs[1]))
	case ssa.OpcodeIXor:
		t.b.XOR(dst, t.ref(i.Srcs[0]), t.ref(i.Srcs[1]))
	case ssa.OpcodeINot:
		t.b.XOR(dst, t.ref(i.Srcs[0]), mir.RefImm(0xffffffff))
	case ssa.OpcodeIShl:
		t.b.LSL(dst, t.ref(i.Srcs[0]), t.ref(i.Srcs[1]))
	case ssa.OpcodeUShr:
		t.b.SHR(dst, t.ref(i.Srcs[0]), t.ref(i.Srcs[1]))
	default:
		panic(unsupported(i))
	}

	if bits < 32 {
		mask := uint32(1)<<bits - 1
		t.b.AND(t.dst(i), dst, mir.RefImm(mask)).Comment(fmt.Sprintf("i_mask_%d", bits))
	}
}

// bitfield lowers the bitfield manipulation family through bitwise-pipeline
// sequences.
func (t *translator) bitfield(i *ssa.Instruction) {
	if i.Ret.Bits() != 32 {
		panic(unsupported(i))
	}
	dst := t.dst(i)
	fresh := func() mir.Ref { return mir.RefReg(t.s.NewSSA()) }

	switch i.Op {
	case ssa.OpcodeBitfieldInsert:
		base, insert, offset, bits := t.ref(i.Srcs[0]), t.ref(i.Srcs[1]), t.ref(i.Srcs[2]), t.ref(i.Srcs[3])
		mask := fresh()
		t.b.MSK(mask, bits, offset)
		shifted := fresh()
		t.b.LSL(shifted, insert, offset)
		ins := fresh()
		t.b.AND(ins, shifted, mask)
		inv := fresh()
		t.b.XOR(inv, mask, mir.RefImm(0xffffffff))
		keep := fresh()
		t.b.AND(keep, base, inv)
		t.b.OR(dst, ins, keep)
	case ssa.OpcodeUBitfieldExtract:
		value, offset, bits := t.ref(i.Srcs[0]), t.ref(i.Srcs[1]), t.ref(i.Srcs[2])
		shifted := fresh()
		t.b.SHR(shifted, value, offset)
		mask := fresh()
		t.b.MSK(mask, bits, mir.RefImm(0))
		t.b.AND(dst, shifted, mask)
	case ssa.OpcodeIBitfieldExtract:
		value, offset, bits := t.ref(i.Srcs[0]), t.ref(i.Srcs[1]), t.ref(i.Srcs[2])
		shifted := fresh()
		t.b.SHR(shifted, value, offset)
		msb := fresh()
		t.b.IADD(mir.ALUOpIADD32, msb, bits, mir.RefImm(0xffffffff))
		t.b.ISXT(dst, shifted, msb, mir.RefImm(0))
	case ssa.OpcodeBitfieldReverse:
		t.b.REV(dst, t.ref(i.Srcs[0]))
	case ssa.OpcodeBitCount:
		t.b.CBS(dst, t.ref(i.Srcs[0]))
	case ssa.OpcodeUFindMSB:
		t.b.FTB(dst, t.ref(i.Srcs[0]))
	default:
		panic(unsupported(i))
	}
}
