package validate_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tilegpu/heron/internal/mir"
	"github.com/tilegpu/heron/internal/ssa"
	"github.com/tilegpu/heron/internal/validate"
)

// newShader returns an empty fragment shader with the builder cursor in an
// open entry block; finish caps it with the end marker.
func newShader() (*mir.Shader, *mir.Builder) {
	s := mir.NewShader(&mir.BuildCtx{}, ssa.StageFragment)
	b := mir.NewBuilder(s)
	b.PushBlock("entry")
	return s, b
}

func finish(b *mir.Builder) {
	b.END().End = true
}

var _ = Describe("Check", func() {
	It("accepts a minimal well-formed shader", func() {
		s, b := newShader()
		b.MOV(mir.RefReg(s.NewSSA()), mir.RefImm(1))
		finish(b)

		Expect(validate.Check(s, "test")).To(BeEmpty())
	})

	Describe("instruction legality", func() {
		It("flags modifiers the opcode does not take", func() {
			s, b := newShader()
			add := b.FADD(mir.RefReg(s.NewSSA()), mir.RefImm(0), mir.RefImm(1))
			add.Mods = mir.OpMods(mir.OpModGather)
			finish(b)

			Expect(validate.Check(s, "test")).To(
				ContainElement(ContainSubstring("not legal")))
		})

		It("flags repeats past the opcode's limit", func() {
			s, b := newShader()
			b.PCK(mir.OpMods(mir.OpModFmtU8888), mir.RefIO(mir.IOFT2), mir.RefImm(0), 5)
			finish(b)

			Expect(validate.Check(s, "test")).To(
				ContainElement(ContainSubstring("repeat 5 outside 1..4")))
		})

		It("flags reference kinds a slot cannot encode", func() {
			s, b := newShader()
			// The mask delta slot only takes immediates.
			cnd := b.CNDST(mir.OpModAlways, mir.RefReg(s.EMC()), 1)
			cnd.SetSrcRef(0, mir.RefReg(s.Reg(mir.RegClassTemp, 0)))
			b.PushBlock("masked")
			b.CNDEND(mir.RefReg(s.EMC()), 0)
			b.PushBlock("tail")
			finish(b)

			Expect(validate.Check(s, "test")).To(
				ContainElement(ContainSubstring("reference kind not legal")))
		})

		It("flags operands that cover too few registers", func() {
			s, b := newShader()
			// A store address is a 64-bit pair; a 1-wide array is short.
			addr := s.NewSSAArray(1)
			b.ST(mir.RefDRC(0), 1, mir.RefRegArray(addr), mir.RefReg(s.NewSSA()))
			finish(b)

			Expect(validate.Check(s, "test")).To(
				ContainElement(ContainSubstring("covers 1 registers, needs 2")))
		})

		It("sizes gather destinations by taps times channels", func() {
			s, b := newShader()
			tex := s.RegArray(mir.RegClassShared, 0, 4)
			smp := s.RegArray(mir.RegClassShared, 8, 4)
			data := s.NewSSAArray(3)
			dst := s.NewSSAArray(16)
			b.SMP(mir.BackendOpSMP2D, mir.OpMods(mir.OpModGather),
				mir.RefRegArray(dst), mir.RefDRC(0), mir.RefRegArray(tex),
				mir.RefRegArray(smp), mir.RefRegArray(data), 4)
			finish(b)

			Expect(validate.Check(s, "test")).To(BeEmpty())
		})

		It("flags gather destinations sized for a single tap", func() {
			s, b := newShader()
			tex := s.RegArray(mir.RegClassShared, 0, 4)
			smp := s.RegArray(mir.RegClassShared, 8, 4)
			data := s.NewSSAArray(3)
			dst := s.NewSSAArray(4)
			b.SMP(mir.BackendOpSMP2D, mir.OpMods(mir.OpModGather),
				mir.RefRegArray(dst), mir.RefDRC(0), mir.RefRegArray(tex),
				mir.RefRegArray(smp), mir.RefRegArray(data), 4)
			finish(b)

			Expect(validate.Check(s, "test")).To(
				ContainElement(ContainSubstring("covers 4 registers, needs 16")))
		})

		It("flags branches without a target", func() {
			s, b := newShader()
			b.FADD(mir.RefReg(s.NewSSA()), mir.RefImm(0), mir.RefImm(1))
			b.BR(mir.OpMods(mir.OpModAllInst), nil)
			b.PushBlock("tail")
			finish(b)

			Expect(validate.Check(s, "test")).To(
				ContainElement(ContainSubstring("branch without a target")))
		})
	})

	Describe("shader-wide invariants", func() {
		It("flags unbalanced mask counters", func() {
			s, b := newShader()
			b.CNDST(mir.OpModAlways, mir.RefReg(s.EMC()), 1)
			b.PushBlock("masked")
			finish(b)

			Expect(validate.Check(s, "test")).To(
				ContainElement(ContainSubstring("mask counter deltas sum to +1")))
		})

		It("flags a missing end marker", func() {
			s, b := newShader()
			b.FADD(mir.RefReg(s.NewSSA()), mir.RefImm(0), mir.RefImm(1))
			b.END()

			Expect(validate.Check(s, "test")).To(
				ContainElement(ContainSubstring("marked as the shader end")))
		})

		It("flags an end marker before the last instruction", func() {
			s, b := newShader()
			finish(b)
			b.FADD(mir.RefReg(s.NewSSA()), mir.RefImm(0), mir.RefImm(1))

			Expect(validate.Check(s, "test")).To(
				ContainElement(ContainSubstring("not last")))
		})

		It("flags scratch registers written twice", func() {
			s, b := newShader()
			r := s.NewSSA()
			b.FADD(mir.RefReg(r), mir.RefImm(0), mir.RefImm(1))
			b.FADD(mir.RefReg(r), mir.RefImm(2), mir.RefImm(3))
			finish(b)

			Expect(validate.Check(s, "test")).To(
				ContainElement(ContainSubstring("written 2 times")))
		})

		It("flags more than one feedback alpha test", func() {
			s, b := newShader()
			r := mir.RefReg(s.NewSSA())
			b.MOV(r, mir.RefImm(0))
			b.ATST(mir.OpMods(mir.OpModIFB, mir.OpModNE), r, mir.RefImm(0))
			b.ATST(mir.OpMods(mir.OpModIFB, mir.OpModNE), r, mir.RefImm(0))
			finish(b)

			Expect(validate.Check(s, "test")).To(
				ContainElement(ContainSubstring("feedback alpha tests")))
		})

		It("accepts repeated plain lane kills", func() {
			s, b := newShader()
			r := mir.RefReg(s.NewSSA())
			b.MOV(r, mir.RefImm(0))
			b.ATST(mir.OpMods(mir.OpModNE), r, mir.RefImm(0))
			b.ATST(mir.OpMods(mir.OpModNE), r, mir.RefImm(0))
			finish(b)

			Expect(validate.Check(s, "test")).To(BeEmpty())
		})
	})

	Describe("after group scheduling", func() {
		It("flags surviving scratch registers", func() {
			s, b := newShader()
			b.BYP0(mir.RefReg(s.NewSSA()), mir.RefImm(0))
			finish(b)
			s.Grouped = true

			Expect(validate.Check(s, "test")).To(
				ContainElement(ContainSubstring("survived allocation")))
		})

		It("flags surviving pseudo ops", func() {
			s, b := newShader()
			b.MOV(mir.RefReg(s.Reg(mir.RegClassTemp, 0)), mir.RefImm(0))
			finish(b)
			s.Grouped = true

			Expect(validate.Check(s, "test")).To(
				ContainElement(ContainSubstring("pseudo op after lowering")))
		})

		It("flags store data outside the address block", func() {
			s, b := newShader()
			block := s.RegArray(mir.RegClassTemp, 0, 4)
			addr := s.SubArray(block, 0, 2)
			// Data one register early: the unit reads it at base+2.
			b.ST(mir.RefDRC(0), 1, mir.RefRegArray(addr), mir.RefReg(block.Regs[1]))
			finish(b)
			s.Grouped = true

			Expect(validate.Check(s, "test")).To(
				ContainElement(ContainSubstring("store data at index")))
		})

		It("flags grouping with an instruction that cannot co-issue", func() {
			s, b := newShader()
			mbyp := b.MBYP(mir.RefIO(mir.IOFT0), mir.RefReg(s.Reg(mir.RegClassTemp, 0)))
			mbyp.GroupNext = true
			finish(b)
			s.Grouped = true

			Expect(validate.Check(s, "test")).To(
				ContainElement(ContainSubstring("cannot co-issue")))
		})
	})
})
