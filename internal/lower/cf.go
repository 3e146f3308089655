package lower

import (
	"github.com/tilegpu/heron/internal/mir"
	"github.com/tilegpu/heron/internal/ssa"
)

// Execution-mask lowering: the hardware runs all lanes in lock-step and
// predication is a per-lane counter. A conditional-mask open raises the
// counter of the lanes leaving the path; only counter-zero lanes execute;
// the matching close lowers the counter back, so the value after a
// construct always equals the value before it. Break and continue write a
// nesting-depth sentinel that the loop's close sequence resolves.

// initEMC lazily emits the counter init ahead of the first conditional
// construct.
func (t *translator) initEMC() {
	if t.s.EMCInit {
		return
	}
	t.s.EMCInit = true
	emc := mir.RefReg(t.s.EMC())
	t.b.MOV(emc, mir.RefImm(0))
	t.b.CNDST(mir.OpModAlways, emc, 0).Comment("cf_init")
	t.b.PushBlock("main")
}

func regionEmpty(nodes []ssa.Node) bool {
	empty := true
	ssa.ForEachInstr(nodes, func(*ssa.Instruction) { empty = false })
	return empty
}

// lowerIf opens the construct with the condition in P0, runs the branches
// under the mask, and restores the counter on exit. An empty then-branch
// flips the polarity and lowers only the else-branch.
func (t *translator) lowerIf(n *ssa.If) {
	t.initEMC()
	emc := mir.RefReg(t.s.EMC())

	emptyThen := regionEmpty(n.Then)
	emptyElse := regionEmpty(n.Else)

	t.b.SETPRED(t.ref(n.Cond))

	// Mask the lanes that skip the first lowered branch: normally the
	// condition-false lanes; with an empty then-branch, the true lanes.
	test := mir.OpModP0False
	if emptyThen {
		test = mir.OpModP0True
	}
	t.b.CNDST(test, emc, 1).Comment("if")
	t.s.LoopNestings++

	var thenSkip, elseSkip *mir.Instr
	body := t.b.PushBlock("if_then")
	if emptyThen {
		body.Name = "if_else"
	}
	if n.DontFlatten {
		thenSkip = t.b.BR(mir.OpMods(mir.OpModAllInst), nil)
		t.b.PushBlock(body.Name + "_body")
	}

	if emptyThen {
		t.nodes(n.Else)
	} else {
		t.nodes(n.Then)
		if !emptyElse {
			// Transition the mask to the complementary lane set. The
			// then-skip lands on the transition so the else lanes still
			// run when every then lane is masked.
			check := t.b.PushBlock("if_else_check")
			t.b.CNDEF(mir.OpModAlways, emc, 1).Comment("else")
			if thenSkip != nil {
				thenSkip.SetBranchTarget(check)
				thenSkip = nil
			}
			t.b.PushBlock("if_else")
			if n.DontFlatten {
				elseSkip = t.b.BR(mir.OpMods(mir.OpModAllInst), nil)
				t.b.PushBlock("if_else_body")
			}
			t.nodes(n.Else)
		}
	}

	t.s.LoopNestings--

	// Skipping lanes must still execute the restore, so the remaining
	// skips land on the block holding it, never past it.
	restore := t.b.PushBlock("if_end")
	t.b.CNDEND(emc, 1).Comment("endif")
	for _, br := range []*mir.Instr{thenSkip, elseSkip} {
		if br != nil {
			br.SetBranchTarget(restore)
		}
	}
	t.b.PushBlock("if_after")
}

// lowerLoop opens the construct with a two-deep mask so break (depth+2) and
// continue (depth+1) sentinels stay distinguishable, then closes each
// iteration by re-enabling the lanes that still want to run and branching
// back while any lane does.
func (t *translator) lowerLoop(n *ssa.Loop) {
	t.initEMC()
	emc := mir.RefReg(t.s.EMC())

	open := t.b.CNDST(mir.OpModAlways, emc, 2).Comment("loop")
	body := t.b.PushBlock("loop_body")
	skip := t.b.BR(mir.OpMods(mir.OpModAllInst), nil)
	t.b.PushBlock("loop_body_inner")

	// Jump sentinels count conditional levels relative to the innermost
	// loop, so the nesting counter restarts at zero inside it.
	outerStart := t.loopStart
	pushedNestings := t.s.LoopNestings
	t.loopStart = open
	t.s.LoopNestings = 0
	t.s.Loops++

	t.nodes(n.Body)

	t.s.LoopNestings = pushedNestings
	t.loopStart = outerStart

	// Release this iteration's continue lanes, then test whether any lane
	// still wants another iteration.
	t.b.CNDEND(emc, 1).Comment("loop_cont")
	t.b.PushBlock("loop_test")
	t.b.CNDST(mir.OpModAlways, emc, 1)
	t.b.PushBlock("loop_test_cmp")
	t.b.CNDLT(emc, 2).Comment("loop_test")
	t.b.PushBlock("loop_branch")
	backEdge := t.b.BR(mir.OpMods(mir.OpModP0True), body)

	// Thread the loop extent for later scheduling.
	open.Link = backEdge
	backEdge.Link = open

	// The all-instances skip lands on the restore itself: lanes taking it
	// still carry the two levels the open added.
	exit := t.b.PushBlock("loop_exit")
	t.b.CNDEND(emc, 2).Comment("loop_end")
	skip.SetBranchTarget(exit)
	t.b.PushBlock("loop_end")
}

// jump lowers break/continue: write the sentinel counting the conditional
// levels between here and the innermost loop, flush the lane enables, and
// start a fresh block for the now-dead path.
func (t *translator) jump(i *ssa.Instruction) {
	if t.loopStart == nil {
		panic(unsupported(i))
	}
	emc := mir.RefReg(t.s.EMC())

	sentinel := t.s.LoopNestings + 1 // continue
	if i.Op == ssa.OpcodeBreak {
		sentinel = t.s.LoopNestings + 2
	}
	t.b.MOV(emc, mir.RefImm(sentinel)).Comment(i.Op.String())
	flush := t.b.CNDEF(mir.OpModNever, emc, 0).Comment("flush_pe")
	flush.Mods = flush.Mods.With(mir.OpModPEAny)
	t.b.PushBlock("after_" + i.Op.String())
}
