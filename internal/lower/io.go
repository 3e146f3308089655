package lower

import (
	"fmt"

	"github.com/tilegpu/heron/internal/mir"
	"github.com/tilegpu/heron/internal/ssa"
)

// Special-file slots for fixed-function fragment inputs. The pixel-rate and
// sample-rate position pairs are distinct registers.
const (
	specialXP uint32 = iota
	specialYP
	specialXS
	specialYS
	specialZ
	specialW
)

// Vertex-input sysval slots; the driver stages these ahead of the
// attributes.
const (
	vtxinVertexID uint32 = iota
	vtxinInstanceID
)

// vtxinLocalInvocationIndex is where compute tasks stage the flat local
// index.
const vtxinLocalInvocationIndex uint32 = 0

// coeffComponentC is the constant plane coefficient within a varying's
// coefficient triple, the one flat interpolation reads directly.
const coeffComponentC = 2

// Workgroup-id components arrive in the first coefficient registers of a
// compute task.
const coeffWorkgroupIDBase uint32 = 0

// loadInput selects fragment varying interpolation or vertex attribute
// reads.
func (t *translator) loadInput(i *ssa.Instruction) {
	switch t.fn.Stage {
	case ssa.StageFragment:
		t.loadVarying(i)
	case ssa.StageVertex:
		t.loadAttribute(i)
	default:
		panic(unsupported(i))
	}
}

// loadVarying dispatches on the interpolation mode: perspective-correct
// and linear interpolation use the iterator ops over the coefficient
// triple; flat inputs copy the constant plane coefficient.
func (t *translator) loadVarying(i *ssa.Instruction) {
	layout := &t.s.Ctx.Layout
	base := layout.CoeffBases[i.Imm] + uint32(i.Component)*mir.CoeffAlign
	coeffs := mir.RefRegArray(t.s.RegArray(mir.RegClassCoeff, base, 3))

	switch i.Interp {
	case ssa.InterpSmooth:
		wcoeffs := mir.RefRegArray(t.s.RegArray(mir.RegClassCoeff, layout.WCoeffBase, 3))
		drc := mir.RefDRC(t.s.NextDRC())
		t.b.FITRP(t.dst(i), drc, coeffs, wcoeffs, 1)
	case ssa.InterpNoPerspective:
		drc := mir.RefDRC(t.s.NextDRC())
		t.b.FITR(t.dst(i), drc, coeffs, 1)
	case ssa.InterpFlat:
		t.b.MOV(t.dst(i), mir.RefReg(t.s.Reg(mir.RegClassCoeff, base+coeffComponentC)))
	default:
		panic(fmt.Sprintf("unsupported interpolation mode: %d", i.Interp))
	}
}

// loadAttribute reads a vertex input register, substituting 1.0 for
// components the driver did not fetch.
func (t *translator) loadAttribute(i *ssa.Instruction) {
	attr := t.s.Ctx.Layout.VtxInAttrs[i.Imm]
	if i.Component >= attr.Comps {
		t.b.MOV(t.dst(i), mir.RefImm(floatOne)).Comment("missing component")
		return
	}
	t.b.MOV(t.dst(i), mir.RefReg(t.s.Reg(mir.RegClassVtxIn, attr.Base+uint32(i.Component))))
}

// storeOutput writes a pixel output or varying output register.
func (t *translator) storeOutput(i *ssa.Instruction) {
	idx := i.Imm + uint32(i.Component)
	switch t.fn.Stage {
	case ssa.StageFragment:
		t.b.MOV(mir.RefReg(t.s.Reg(mir.RegClassPixOut, idx)), t.ref(i.Srcs[0]))
	case ssa.StageVertex:
		t.b.MOV(mir.RefReg(t.s.Reg(mir.RegClassVtxOut, idx)), t.ref(i.Srcs[0]))
	default:
		panic(unsupported(i))
	}
}

// loadOutput reads back a pixel output register.
func (t *translator) loadOutput(i *ssa.Instruction) {
	if t.fn.Stage != ssa.StageFragment {
		panic(unsupported(i))
	}
	t.b.MOV(t.dst(i), mir.RefReg(t.s.Reg(mir.RegClassPixOut, i.Imm+uint32(i.Component))))
}

// loadFragCoord reads the fixed position registers; the x/y pair depends on
// whether the device resolves positions per sample.
func (t *translator) loadFragCoord(i *ssa.Instruction) {
	x, y := specialXP, specialYP
	if t.s.Ctx.Dev.MSAAModeSample {
		x, y = specialXS, specialYS
	}
	for c, slot := range [4]uint32{x, y, specialZ, specialW} {
		t.b.MOV(t.comp(i.Ret, uint8(c)), mir.RefReg(t.s.Reg(mir.RegClassSpecial, slot)))
	}
}

// loadPreamble reads a value the preamble staged into shared registers.
func (t *translator) loadPreamble(i *ssa.Instruction) {
	off := t.s.Ctx.Layout.PreambleOffsets[i.Imm]
	if i.Ret.Bits() == 64 {
		d := t.ref64(i.Ret)
		t.b.MOV(d.Lo32, mir.RefReg(t.s.Reg(mir.RegClassShared, off)))
		t.b.MOV(d.Hi32, mir.RefReg(t.s.Reg(mir.RegClassShared, off+1)))
		return
	}
	t.b.MOV(t.dst(i), mir.RefReg(t.s.Reg(mir.RegClassShared, off)))
}

// loadSharedAddr loads one of the driver-staged 64-bit base addresses.
func (t *translator) loadSharedAddr(i *ssa.Instruction) {
	layout := &t.s.Ctx.Layout
	var off uint32
	switch i.Op {
	case ssa.OpcodeLoadPushConstAddr:
		off = layout.PushConstAddrOffset
	case ssa.OpcodeLoadDescTableAddr:
		off = layout.DescTableAddrOffsets[i.Imm]
	case ssa.OpcodeLoadNumWorkgroupsAddr:
		off = layout.NumWorkgroupsAddrOffset
	}
	d := t.ref64(i.Ret)
	t.b.MOV(d.Lo32, mir.RefReg(t.s.Reg(mir.RegClassShared, off)))
	t.b.MOV(d.Hi32, mir.RefReg(t.s.Reg(mir.RegClassShared, off+1)))
}

// workgroupID reads one axis from the coefficient file.
func (t *translator) workgroupID(i *ssa.Instruction) {
	if t.fn.Stage != ssa.StageCompute {
		panic(unsupported(i))
	}
	t.b.MOV(t.dst(i), mir.RefReg(t.s.Reg(mir.RegClassCoeff, coeffWorkgroupIDBase+i.Imm)))
}

// vtxinSysval reads the sysvals the driver stages in the vertex-input file.
func (t *translator) vtxinSysval(i *ssa.Instruction) {
	var idx uint32
	switch i.Op {
	case ssa.OpcodeLocalInvocationIndex:
		if t.fn.Stage != ssa.StageCompute {
			panic(unsupported(i))
		}
		idx = vtxinLocalInvocationIndex
	case ssa.OpcodeVertexID:
		idx = vtxinVertexID
	case ssa.OpcodeInstanceID:
		idx = vtxinInstanceID
	}
	t.b.MOV(t.dst(i), mir.RefReg(t.s.Reg(mir.RegClassVtxIn, idx)))
}

// helperInvocation saves the valid mask and tests this lane's bit.
func (t *translator) helperInvocation(i *ssa.Instruction) {
	mask := mir.RefReg(t.s.NewSSA())
	t.b.SAVMSK(mir.OpMods(mir.OpModVM), mask)
	t.b.CMP(mir.OpModE, mir.OpModU32, t.dst(i), mask, mir.RefImm(0))
}

// discard kills the fragment through the alpha-test unit.
func (t *translator) discard(i *ssa.Instruction) {
	if t.fn.Stage != ssa.StageFragment {
		panic(unsupported(i))
	}
	if i.Op == ssa.OpcodeDiscard {
		t.b.ATST(mir.OpMods(mir.OpModNever), mir.RefImm(0), mir.RefImm(0))
		return
	}
	// discard_if kills lanes whose condition is set: the test passes
	// (keeps the lane) only where the condition equals zero.
	t.b.ATST(mir.OpMods(mir.OpModE), t.ref(i.Srcs[0]), mir.RefImm(0))
}

// mutex serializes overlapping instances; double lock or stray release is a
// compiler defect.
func (t *translator) mutex(i *ssa.Instruction) {
	switch i.Op {
	case ssa.OpcodeMutexLock:
		if t.s.MutexHeld {
			panic("BUG: mutex locked twice")
		}
		t.s.MutexHeld = true
		t.b.MUTEX(mir.OpModLock)
	case ssa.OpcodeMutexRelease:
		if !t.s.MutexHeld {
			panic("BUG: mutex released while not held")
		}
		t.s.MutexHeld = false
		t.b.MUTEX(mir.OpModRelease)
	}
}
