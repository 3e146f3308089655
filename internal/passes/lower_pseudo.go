package passes

import "github.com/tilegpu/heron/internal/mir"

// LowerPseudo rewrites every pseudo move into a concrete pipeline op. Moves
// carrying source modifiers go through the main ALU bypass, which honors
// negate and absolute; plain copies go through the bitwise pipeline so the
// main ALU slot stays free for co-issue.
func LowerPseudo(s *mir.Shader) {
	b := mir.NewBuilder(s)
	forEachInstr(s, func(i *mir.Instr) {
		if i.Kind != mir.InstrKindALU || i.ALU() != mir.ALUOpMOV {
			return
		}
		repl := &mir.Instr{
			Dsts:     []mir.Dst{{Ref: i.Dsts[0].Ref, Mod: i.Dsts[0].Mod}},
			Srcs:     []mir.Src{{Ref: i.Srcs[0].Ref, Mod: i.Srcs[0].Mod}},
			Comments: i.Comments,
		}
		if i.Srcs[0].Mod != 0 {
			repl.Kind = mir.InstrKindALU
			repl.Op = uint16(mir.ALUOpMBYP)
		} else {
			repl.Kind = mir.InstrKindBitwise
			repl.Op = uint16(mir.BitwiseOpBYP0)
		}
		b.Replace(i, repl)
	})

	forEachInstr(s, func(i *mir.Instr) {
		if i.Info().Pseudo {
			panic("BUG: pseudo op survived lowering: " + i.String())
		}
	})
}
