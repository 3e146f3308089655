// Package passes implements the legalization pipeline run between
// instruction selection and encoding. Each pass rewrites the shader in
// place; the order is fixed and significant: constant promotion runs once
// before and once after pseudo-op lowering because lowering materializes
// fresh immediates, and everything that inserts or removes instructions
// runs before register allocation.
package passes

import (
	"github.com/tilegpu/heron/internal/mir"
)

// Pass is one in-place shader rewrite.
type Pass struct {
	Name string
	Run  func(*mir.Shader)
}

// Pipeline is the fixed pass order.
var Pipeline = []Pass{
	{Name: "constreg", Run: ConstReg},
	{Name: "schedule_st", Run: ScheduleStoreRegs},
	{Name: "lower_pseudo", Run: LowerPseudo},
	{Name: "constreg", Run: ConstReg},
	{Name: "schedule_wdf", Run: ScheduleWDF},
	{Name: "schedule_uvsw", Run: ScheduleUVSW},
	{Name: "trim", Run: Trim},
	{Name: "regalloc", Run: RegAlloc},
	{Name: "lower_late", Run: LowerLate},
	{Name: "schedule_groups", Run: ScheduleGroups},
}

// Run executes the full pipeline on s.
func Run(s *mir.Shader) {
	for _, p := range Pipeline {
		p.Run(s)
	}
}

// forEachInstr visits every instruction in block order. The callback may
// not insert or remove instructions; passes that mutate the instruction
// stream iterate blocks themselves.
func forEachInstr(s *mir.Shader, f func(*mir.Instr)) {
	for _, blk := range s.Blocks {
		for _, i := range blk.Instrs {
			f(i)
		}
	}
}
