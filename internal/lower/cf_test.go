package lower

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tilegpu/heron/internal/mir"
	"github.com/tilegpu/heron/internal/ssa"
)

// maskSum totals the counter deltas of every mask open against every mask
// close; a well-formed shader always balances to zero.
func maskSum(s *mir.Shader) int {
	var sum int
	for _, i := range allInstrs(s) {
		if i.Kind != mir.InstrKindCtrl {
			continue
		}
		switch i.CtrlOp() {
		case mir.CtrlOpCNDST:
			sum += int(i.Srcs[0].Ref.U)
		case mir.CtrlOpCNDEND:
			sum -= int(i.Srcs[0].Ref.U)
		}
	}
	return sum
}

func withComment(instrs []*mir.Instr, c string) []*mir.Instr {
	var out []*mir.Instr
	for _, i := range instrs {
		for _, ic := range i.Comments {
			if ic == c {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

func TestIfMasksFalseLanesAndRestores(t *testing.T) {
	var f fnBuilder
	cond := f.val(32, 1)
	a := f.val(32, 1)
	r := f.val(32, 1)
	fn := f.fn(ssa.StageFragment,
		block(loadConst(cond, 1), loadConst(a, 0x3f800000)),
		&ssa.If{
			Cond: cond,
			Then: []ssa.Node{block(
				&ssa.Instruction{Op: ssa.OpcodeFAdd, Ret: r, Srcs: []ssa.Value{a, a}},
			)},
		},
	)

	s := Translate(testCtx(), fn)

	preds := findCtrl(s, mir.CtrlOpSETPRED)
	require.Len(t, preds, 1)

	opens := withComment(findCtrl(s, mir.CtrlOpCNDST), "if")
	require.Len(t, opens, 1)
	require.True(t, opens[0].Mods.Has(mir.OpModP0False))
	require.Equal(t, uint32(1), opens[0].Srcs[0].Ref.U)

	closes := withComment(findCtrl(s, mir.CtrlOpCNDEND), "endif")
	require.Len(t, closes, 1)
	require.Equal(t, uint32(1), closes[0].Srcs[0].Ref.U)

	require.Zero(t, maskSum(s))
}

func TestIfWithEmptyThenFlipsPolarity(t *testing.T) {
	var f fnBuilder
	cond := f.val(32, 1)
	a := f.val(32, 1)
	r := f.val(32, 1)
	fn := f.fn(ssa.StageFragment,
		block(loadConst(cond, 1), loadConst(a, 0)),
		&ssa.If{
			Cond: cond,
			Else: []ssa.Node{block(
				&ssa.Instruction{Op: ssa.OpcodeFAdd, Ret: r, Srcs: []ssa.Value{a, a}},
			)},
		},
	)

	s := Translate(testCtx(), fn)

	opens := withComment(findCtrl(s, mir.CtrlOpCNDST), "if")
	require.Len(t, opens, 1)
	require.True(t, opens[0].Mods.Has(mir.OpModP0True))

	// A single lowered branch never needs the complementary transition.
	require.Empty(t, withComment(findCtrl(s, mir.CtrlOpCNDEF), "else"))
	require.Zero(t, maskSum(s))
}

func TestIfElseTransitionsToComplementaryLanes(t *testing.T) {
	var f fnBuilder
	cond := f.val(32, 1)
	a := f.val(32, 1)
	r1 := f.val(32, 1)
	r2 := f.val(32, 1)
	fn := f.fn(ssa.StageFragment,
		block(loadConst(cond, 1), loadConst(a, 0)),
		&ssa.If{
			Cond: cond,
			Then: []ssa.Node{block(
				&ssa.Instruction{Op: ssa.OpcodeFAdd, Ret: r1, Srcs: []ssa.Value{a, a}},
			)},
			Else: []ssa.Node{block(
				&ssa.Instruction{Op: ssa.OpcodeFMul, Ret: r2, Srcs: []ssa.Value{a, a}},
			)},
		},
	)

	s := Translate(testCtx(), fn)

	elses := withComment(findCtrl(s, mir.CtrlOpCNDEF), "else")
	require.Len(t, elses, 1)
	require.True(t, elses[0].Mods.Has(mir.OpModAlways))
	require.Equal(t, uint32(1), elses[0].Srcs[0].Ref.U)
	require.Zero(t, maskSum(s))
}

func TestIfDontFlattenBranchesAroundBody(t *testing.T) {
	var f fnBuilder
	cond := f.val(32, 1)
	a := f.val(32, 1)
	r := f.val(32, 1)
	fn := f.fn(ssa.StageFragment,
		block(loadConst(cond, 1), loadConst(a, 0)),
		&ssa.If{
			Cond:        cond,
			DontFlatten: true,
			Then: []ssa.Node{block(
				&ssa.Instruction{Op: ssa.OpcodeFAdd, Ret: r, Srcs: []ssa.Value{a, a}},
			)},
		},
	)

	s := Translate(testCtx(), fn)

	skips := allInstSkips(s)
	require.Len(t, skips, 1)
	require.NotNil(t, skips[0].Target)

	// The skip lands on the construct's mask restore: lanes taking it
	// still carry the level the open added.
	closes := withComment(findCtrl(s, mir.CtrlOpCNDEND), "endif")
	require.Len(t, closes, 1)
	require.Same(t, closes[0].Block, skips[0].Target)
}

// allInstSkips returns the all-instances skip branches in shader order.
func allInstSkips(s *mir.Shader) []*mir.Instr {
	var skips []*mir.Instr
	for _, br := range findCtrl(s, mir.CtrlOpBR) {
		if br.Mods.Has(mir.OpModAllInst) {
			skips = append(skips, br)
		}
	}
	return skips
}

func TestIfSkipBranchLandsOnElseTransition(t *testing.T) {
	var f fnBuilder
	cond := f.val(32, 1)
	a := f.val(32, 1)
	r1 := f.val(32, 1)
	r2 := f.val(32, 1)
	fn := f.fn(ssa.StageFragment,
		block(loadConst(cond, 1), loadConst(a, 0)),
		&ssa.If{
			Cond:        cond,
			DontFlatten: true,
			Then: []ssa.Node{block(
				&ssa.Instruction{Op: ssa.OpcodeFAdd, Ret: r1, Srcs: []ssa.Value{a, a}},
			)},
			Else: []ssa.Node{block(
				&ssa.Instruction{Op: ssa.OpcodeFMul, Ret: r2, Srcs: []ssa.Value{a, a}},
			)},
		},
	)

	s := Translate(testCtx(), fn)

	skips := allInstSkips(s)
	require.Len(t, skips, 2)

	// When every then lane is masked, the skip still has to run the
	// transition so the live else lanes execute their branch.
	elses := withComment(findCtrl(s, mir.CtrlOpCNDEF), "else")
	require.Len(t, elses, 1)
	require.Same(t, elses[0].Block, skips[0].Target)

	// The else-side skip lands on the restore.
	closes := withComment(findCtrl(s, mir.CtrlOpCNDEND), "endif")
	require.Len(t, closes, 1)
	require.Same(t, closes[0].Block, skips[1].Target)
}

func TestLoopOpensTwoDeepAndThreadsBackEdge(t *testing.T) {
	var f fnBuilder
	cond := f.val(32, 1)
	fn := f.fn(ssa.StageFragment,
		&ssa.Loop{Body: []ssa.Node{
			block(loadConst(cond, 1)),
			&ssa.If{
				Cond: cond,
				Then: []ssa.Node{block(&ssa.Instruction{Op: ssa.OpcodeBreak})},
			},
		}},
	)

	s := Translate(testCtx(), fn)

	opens := withComment(findCtrl(s, mir.CtrlOpCNDST), "loop")
	require.Len(t, opens, 1)
	open := opens[0]
	require.True(t, open.Mods.Has(mir.OpModAlways))
	require.Equal(t, uint32(2), open.Srcs[0].Ref.U)

	// The open and the back-edge branch reference each other, and the
	// branch re-enters the block right after the open.
	back := open.Link
	require.NotNil(t, back)
	require.Equal(t, mir.InstrKindCtrl, back.Kind)
	require.Equal(t, mir.CtrlOpBR, back.CtrlOp())
	require.True(t, back.Mods.Has(mir.OpModP0True))
	require.Same(t, open, back.Link)
	require.NotNil(t, back.Target)
	require.Greater(t, back.Block.Index(), back.Target.Index())

	tests := withComment(findCtrl(s, mir.CtrlOpCNDLT), "loop_test")
	require.Len(t, tests, 1)
	require.Equal(t, uint32(2), tests[0].Srcs[0].Ref.U)

	ends := withComment(findCtrl(s, mir.CtrlOpCNDEND), "loop_end")
	require.Len(t, ends, 1)
	require.Equal(t, uint32(2), ends[0].Srcs[0].Ref.U)

	require.Zero(t, maskSum(s))
}

func TestLoopSkipBranchLandsOnMaskRestore(t *testing.T) {
	var f fnBuilder
	a := f.val(32, 1)
	r := f.val(32, 1)
	fn := f.fn(ssa.StageFragment,
		&ssa.Loop{Body: []ssa.Node{block(
			loadConst(a, 1),
			&ssa.Instruction{Op: ssa.OpcodeFAdd, Ret: r, Srcs: []ssa.Value{a, a}},
		)}},
	)

	s := Translate(testCtx(), fn)

	skips := allInstSkips(s)
	require.Len(t, skips, 1)

	// Lanes taking the skip still carry the two levels the loop open
	// added, so the branch lands on the restore, not past it.
	ends := withComment(findCtrl(s, mir.CtrlOpCNDEND), "loop_end")
	require.Len(t, ends, 1)
	require.Same(t, ends[0].Block, skips[0].Target)
}

func TestBreakWritesDepthSentinel(t *testing.T) {
	var f fnBuilder
	cond := f.val(32, 1)
	fn := f.fn(ssa.StageFragment,
		&ssa.Loop{Body: []ssa.Node{
			block(loadConst(cond, 1)),
			&ssa.If{
				Cond: cond,
				Then: []ssa.Node{block(&ssa.Instruction{Op: ssa.OpcodeBreak})},
			},
		}},
	)

	s := Translate(testCtx(), fn)

	// At depth one, break parks the lane at counter 3 so the loop-close
	// sequence releases it only past the construct.
	breaks := withComment(allInstrs(s), "break")
	require.Len(t, breaks, 1)
	require.Equal(t, mir.ALUOpMOV, breaks[0].ALU())
	require.Equal(t, uint32(3), breaks[0].Srcs[0].Ref.U)
	require.Equal(t, mir.RegClassSpecial, breaks[0].Dsts[0].Ref.Reg.Class)
	require.Equal(t, uint32(mir.EMCIndex), breaks[0].Dsts[0].Ref.Reg.Index)

	flushes := withComment(findCtrl(s, mir.CtrlOpCNDEF), "flush_pe")
	require.Len(t, flushes, 1)
	require.True(t, flushes[0].Mods.Has(mir.OpModNever))
	require.True(t, flushes[0].Mods.Has(mir.OpModPEAny))
	require.Equal(t, uint32(0), flushes[0].Srcs[0].Ref.U)
}

func TestBreakSentinelCountsEnclosingConditionals(t *testing.T) {
	var f fnBuilder
	c1 := f.val(32, 1)
	c2 := f.val(32, 1)
	fn := f.fn(ssa.StageFragment,
		&ssa.Loop{Body: []ssa.Node{
			block(loadConst(c1, 1), loadConst(c2, 1)),
			&ssa.If{Cond: c1, Then: []ssa.Node{
				&ssa.If{Cond: c2, Then: []ssa.Node{
					block(&ssa.Instruction{Op: ssa.OpcodeBreak}),
				}},
			}},
		}},
	)

	s := Translate(testCtx(), fn)

	// Two conditional levels sit between the break and the loop, so the
	// lane parks two past the loop's own pair and decays back to zero as
	// each level closes.
	breaks := withComment(allInstrs(s), "break")
	require.Len(t, breaks, 1)
	require.Equal(t, uint32(4), breaks[0].Srcs[0].Ref.U)
	require.Zero(t, maskSum(s))
}

func TestBreakDirectlyInLoopParksPastTheLoopPair(t *testing.T) {
	var f fnBuilder
	a := f.val(32, 1)
	fn := f.fn(ssa.StageFragment,
		&ssa.Loop{Body: []ssa.Node{block(
			loadConst(a, 1),
			&ssa.Instruction{Op: ssa.OpcodeBreak},
		)}},
	)

	s := Translate(testCtx(), fn)

	breaks := withComment(allInstrs(s), "break")
	require.Len(t, breaks, 1)
	require.Equal(t, uint32(2), breaks[0].Srcs[0].Ref.U)
}

func TestContinueWritesShallowerSentinel(t *testing.T) {
	var f fnBuilder
	cond := f.val(32, 1)
	fn := f.fn(ssa.StageFragment,
		&ssa.Loop{Body: []ssa.Node{
			block(loadConst(cond, 1)),
			&ssa.If{
				Cond: cond,
				Then: []ssa.Node{block(&ssa.Instruction{Op: ssa.OpcodeContinue})},
			},
		}},
	)

	s := Translate(testCtx(), fn)
	continues := withComment(allInstrs(s), "continue")
	require.Len(t, continues, 1)
	require.Equal(t, uint32(2), continues[0].Srcs[0].Ref.U)
}

func TestJumpOutsideLoopIsUnsupported(t *testing.T) {
	var f fnBuilder
	fn := f.fn(ssa.StageFragment,
		block(&ssa.Instruction{Op: ssa.OpcodeBreak}),
	)

	requirePanicContains(t, "unsupported instruction: break", func() {
		Translate(testCtx(), fn)
	})
}
