package lower

import (
	"github.com/tilegpu/heron/internal/mir"
	"github.com/tilegpu/heron/internal/ssa"
)

// packUnpack lowers the fixed-function pack/unpack family. Pack repeats
// once per component; the scale modifier applies to normalized formats
// only.
func (t *translator) packUnpack(i *ssa.Instruction) {
	scale := mir.OpMods(mir.OpModScale)
	switch i.Op {
	case ssa.OpcodePackUnorm4x8:
		t.b.PCK(mir.OpMods(mir.OpModFmtU8888)|scale, t.dst(i), t.ref(i.Srcs[0]), 4)
	case ssa.OpcodePackSnorm4x8:
		t.b.PCK(mir.OpMods(mir.OpModFmtS8888)|scale, t.dst(i), t.ref(i.Srcs[0]), 4)
	case ssa.OpcodePackUnorm2x16:
		t.b.PCK(mir.OpMods(mir.OpModFmtU1616)|scale, t.dst(i), t.ref(i.Srcs[0]), 2)
	case ssa.OpcodePackSnorm2x16:
		t.b.PCK(mir.OpMods(mir.OpModFmtS1616)|scale, t.dst(i), t.ref(i.Srcs[0]), 2)
	case ssa.OpcodePackHalf2x16:
		t.b.PCK(mir.OpMods(mir.OpModFmtF16F16), t.dst(i), t.ref(i.Srcs[0]), 2)
	case ssa.OpcodePackHalf2x16Split:
		// Stage the two scalars contiguously so the pack can repeat over
		// them like a vector source.
		pair := t.s.NewSSAArray(2)
		t.b.MOV(mir.RefReg(pair.Regs[0]), t.ref(i.Srcs[0]))
		t.b.MOV(mir.RefReg(pair.Regs[1]), t.ref(i.Srcs[1]))
		t.b.PCK(mir.OpMods(mir.OpModFmtF16F16), t.dst(i), mir.RefRegArray(pair), 2)
	case ssa.OpcodeUnpackUnorm4x8:
		t.b.UPCK(mir.OpMods(mir.OpModFmtU8888)|scale, t.dst(i), t.ref(i.Srcs[0]), 4)
	case ssa.OpcodeUnpackSnorm4x8:
		t.b.UPCK(mir.OpMods(mir.OpModFmtS8888)|scale, t.dst(i), t.ref(i.Srcs[0]), 4)
	case ssa.OpcodeUnpackUnorm2x16:
		t.b.UPCK(mir.OpMods(mir.OpModFmtU1616)|scale, t.dst(i), t.ref(i.Srcs[0]), 2)
	case ssa.OpcodeUnpackSnorm2x16:
		t.b.UPCK(mir.OpMods(mir.OpModFmtS1616)|scale, t.dst(i), t.ref(i.Srcs[0]), 2)
	case ssa.OpcodeUnpackHalf2x16:
		t.b.UPCK(mir.OpMods(mir.OpModFmtF16F16), t.dst(i), t.ref(i.Srcs[0]), 2)
	case ssa.OpcodePack64_2x32Split:
		d := t.ref64(i.Ret)
		t.b.MOV(d.Lo32, t.ref(i.Srcs[0]))
		t.b.MOV(d.Hi32, t.ref(i.Srcs[1]))
	case ssa.OpcodeUnpack64_2x32SplitX:
		t.b.MOV(t.dst(i), t.ref64(i.Srcs[0]).Lo32)
	case ssa.OpcodeUnpack64_2x32SplitY:
		t.b.MOV(t.dst(i), t.ref64(i.Srcs[0]).Hi32)
	case ssa.OpcodeUnpack32_2x16SplitX:
		t.b.AND(t.dst(i), t.ref(i.Srcs[0]), mir.RefImm(0xffff))
	case ssa.OpcodeUnpack32_2x16SplitY:
		t.b.SHR(t.dst(i), t.ref(i.Srcs[0]), mir.RefImm(16))
	default:
		panic(unsupported(i))
	}
}
