package passes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tilegpu/heron/internal/mir"
	"github.com/tilegpu/heron/internal/ssa"
)

func TestScheduleGroupsCoIssuesFeedThroughChains(t *testing.T) {
	s, b := newTestShader(ssa.StageFragment)
	bypass := b.MBYP(mir.RefIO(mir.IOFT0), mir.RefReg(s.Reg(mir.RegClassTemp, 0)))
	pck := b.PCK(mir.OpMods(mir.OpModFmtU8888, mir.OpModRoundZero),
		mir.RefIO(mir.IOFT2), mir.RefIO(mir.IOFT0), 1)
	sel := b.MOVC(mir.DstModE0|mir.DstModE1|mir.DstModE2|mir.DstModE3,
		mir.RefReg(s.Reg(mir.RegClassTemp, 1)), mir.RefIO(mir.IOFT2), mir.RefImm(0))

	ScheduleGroups(s)

	require.True(t, bypass.GroupNext)
	require.True(t, pck.GroupNext)
	require.False(t, sel.GroupNext)
	require.True(t, s.Grouped)
	require.True(t, s.Reg(mir.RegClassTemp, 1).Dirty)
}

func TestScheduleGroupsLeavesPredicateWritersAlone(t *testing.T) {
	s, b := newTestShader(ssa.StageFragment)
	// The predicate port crosses groups; the setter stands alone.
	pred := b.SETPRED(mir.RefReg(s.Reg(mir.RegClassTemp, 0)))
	b.CNDST(mir.OpModP0False, mir.RefReg(s.EMC()), 1)

	ScheduleGroups(s)

	require.False(t, pred.GroupNext)
}

func TestScheduleGroupsRejectsDanglingFeedThrough(t *testing.T) {
	s, b := newTestShader(ssa.StageFragment)
	b.MBYP(mir.RefIO(mir.IOFT0), mir.RefReg(s.Reg(mir.RegClassTemp, 0)))

	require.Panics(t, func() { ScheduleGroups(s) })
}
