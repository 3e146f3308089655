// Package lower translates the SSA IR into machine IR: instruction
// selection plus execution-mask based control-flow lowering. The supported
// IR is a closed set; anything outside it aborts with a diagnostic naming
// the construct.
package lower

import (
	"fmt"

	"github.com/tilegpu/heron/internal/mir"
	"github.com/tilegpu/heron/internal/ssa"
)

// translator carries the per-compilation selection state.
type translator struct {
	s  *mir.Shader
	b  *mir.Builder
	fn *ssa.Function

	// valBase maps a value ID to its SSA-shadow base register index.
	valBase map[ssa.ValueID]uint32

	// loopStart is the innermost loop's opening mask instruction, for
	// back-edge threading.
	loopStart *mir.Instr
}

// Translate selects instructions for fn into a fresh shader.
func Translate(ctx *mir.BuildCtx, fn *ssa.Function) *mir.Shader {
	s := mir.NewShader(ctx, fn.Stage)
	t := &translator{
		s:       s,
		b:       mir.NewBuilder(s),
		fn:      fn,
		valBase: make(map[ssa.ValueID]uint32),
	}

	// Reserve every SSA definition up front so that component sub-views
	// never precede their vector's own allocation.
	t.reserveDefs()

	t.b.PushBlock("entry")
	t.nodes(fn.Body)

	t.endShader()

	trimEmptyBlocks(t.b, s)

	if fn.Stage == ssa.StageFragment {
		collectFragData(s)
	}
	return s
}

// regsFor returns the SSA-shadow register count of a value: two per 32 bits
// of a 64-bit scalar, one per component otherwise.
func regsFor(v ssa.Value) uint32 {
	if v.Bits() == 64 {
		if v.Comps() != 1 {
			panic(fmt.Sprintf("unsupported value shape: 64-bit vector %s", v))
		}
		return 2
	}
	return uint32(v.Comps())
}

// reserveDefs walks every instruction assigning contiguous SSA base indices
// to each definition, vectors first-class.
func (t *translator) reserveDefs() {
	ssa.ForEachInstr(t.fn.Body, func(i *ssa.Instruction) {
		if !i.Ret.Valid() {
			return
		}
		size := regsFor(i.Ret)
		base := t.s.NextSSAIdx
		t.valBase[i.Ret.ID()] = base
		if size > 1 {
			t.s.RegArray(mir.RegClassSSA, base, size)
			t.s.NextSSAIdx += size
		} else {
			t.s.SSAReg(base)
			t.s.NextSSAIdx++
		}
	})
}

// ref returns the whole-value reference: a single register for scalar
// <=32-bit values, the 2-register array for 64-bit scalars, the N-register
// array for vectors.
func (t *translator) ref(v ssa.Value) mir.Ref {
	base, ok := t.valBase[v.ID()]
	if !ok {
		panic(fmt.Sprintf("BUG: reference to unreserved value %s", v))
	}
	if size := regsFor(v); size > 1 {
		return mir.RefRegArray(t.s.RegArray(mir.RegClassSSA, base, size))
	}
	return mir.RefReg(t.s.SSAReg(base))
}

// comp returns the c'th component of a vector value (or the value itself
// for scalars).
func (t *translator) comp(v ssa.Value, c uint8) mir.Ref {
	if v.Comps() == 1 {
		if c != 0 {
			panic(fmt.Sprintf("BUG: component %d of scalar %s", c, v))
		}
		return t.ref(v)
	}
	base := t.valBase[v.ID()]
	return mir.RefReg(t.s.SSAReg(base + uint32(c)))
}

// ref64 returns the dual whole/halves view of a 64-bit scalar.
func (t *translator) ref64(v ssa.Value) mir.Ref64 {
	if v.Bits() != 64 {
		panic(fmt.Sprintf("BUG: 64-bit reference to %s", v))
	}
	base := t.valBase[v.ID()]
	return t.s.Ref64FromArray(t.s.RegArray(mir.RegClassSSA, base, 2))
}

// dst returns the destination reference of an instruction's result.
func (t *translator) dst(i *ssa.Instruction) mir.Ref { return t.ref(i.Ret) }

// src returns the n'th source with its negate/abs modifiers applied.
func (t *translator) src(i *ssa.Instruction, n int) mir.Src {
	s := mir.Src{Ref: t.ref(i.Srcs[n])}
	if n < len(i.SrcNeg) && i.SrcNeg[n] {
		s.Mod |= mir.SrcModNeg
	}
	if n < len(i.SrcAbs) && i.SrcAbs[n] {
		s.Mod |= mir.SrcModAbs
	}
	return s
}

// nodes lowers a structured control-flow region in order.
func (t *translator) nodes(nodes []ssa.Node) {
	for _, n := range nodes {
		switch n := n.(type) {
		case *ssa.Block:
			for _, i := range n.Instrs {
				t.instr(i)
			}
		case *ssa.If:
			t.lowerIf(n)
		case *ssa.Loop:
			t.lowerLoop(n)
		default:
			panic("BUG: unknown CF node")
		}
	}
}

// instr dispatches one SSA instruction to its selection family.
func (t *translator) instr(i *ssa.Instruction) {
	switch i.Op {
	case ssa.OpcodeFAdd, ssa.OpcodeFMul, ssa.OpcodeFFma,
		ssa.OpcodeFRcp, ssa.OpcodeFRsq, ssa.OpcodeFLog2, ssa.OpcodeFExp2,
		ssa.OpcodeFFloor, ssa.OpcodeFNeg, ssa.OpcodeFAbs,
		ssa.OpcodeFDdx, ssa.OpcodeFDdxFine, ssa.OpcodeFDdy, ssa.OpcodeFDdyFine:
		t.floatALU(i)
	case ssa.OpcodeFSin, ssa.OpcodeFCos:
		t.sinCos(i)
	case ssa.OpcodeFMin, ssa.OpcodeFMax,
		ssa.OpcodeIMin, ssa.OpcodeIMax, ssa.OpcodeUMin, ssa.OpcodeUMax:
		t.minMax(i)
	case ssa.OpcodeIAdd, ssa.OpcodeIMul, ssa.OpcodeIMulHigh,
		ssa.OpcodeUMulHigh, ssa.OpcodeUMulLow, ssa.OpcodeINeg, ssa.OpcodeIAbs:
		t.intALU(i)
	case ssa.OpcodeFLt, ssa.OpcodeFGe, ssa.OpcodeFEq, ssa.OpcodeFNe,
		ssa.OpcodeILt, ssa.OpcodeIGe, ssa.OpcodeIEq, ssa.OpcodeINe,
		ssa.OpcodeULt, ssa.OpcodeUGe:
		t.compare(i)
	case ssa.OpcodeBCsel, ssa.OpcodeFCselGt, ssa.OpcodeFCselGe,
		ssa.OpcodeICselGt, ssa.OpcodeICselGe:
		t.csel(i)
	case ssa.OpcodeIAnd, ssa.OpcodeIOr, ssa.OpcodeIXor, ssa.OpcodeINot,
		ssa.OpcodeIShl, ssa.OpcodeIShr, ssa.OpcodeUShr:
		t.bitwise(i)
	case ssa.OpcodeBitfieldInsert, ssa.OpcodeUBitfieldExtract,
		ssa.OpcodeIBitfieldExtract, ssa.OpcodeBitfieldReverse,
		ssa.OpcodeBitCount, ssa.OpcodeUFindMSB:
		t.bitfield(i)
	case ssa.OpcodeMov:
		t.mov(i)
	case ssa.OpcodeVec2, ssa.OpcodeVec3, ssa.OpcodeVec4:
		t.vec(i)
	case ssa.OpcodeLoadConst:
		t.loadConst(i)
	case ssa.OpcodePackUnorm4x8, ssa.OpcodePackSnorm4x8,
		ssa.OpcodePackUnorm2x16, ssa.OpcodePackSnorm2x16,
		ssa.OpcodePackHalf2x16, ssa.OpcodePackHalf2x16Split,
		ssa.OpcodeUnpackUnorm4x8, ssa.OpcodeUnpackSnorm4x8,
		ssa.OpcodeUnpackUnorm2x16, ssa.OpcodeUnpackSnorm2x16,
		ssa.OpcodeUnpackHalf2x16,
		ssa.OpcodePack64_2x32Split, ssa.OpcodeUnpack64_2x32SplitX,
		ssa.OpcodeUnpack64_2x32SplitY,
		ssa.OpcodeUnpack32_2x16SplitX, ssa.OpcodeUnpack32_2x16SplitY:
		t.packUnpack(i)
	case ssa.OpcodeConvert:
		t.convert(i)
	case ssa.OpcodeTex, ssa.OpcodeTexBias, ssa.OpcodeTexLod,
		ssa.OpcodeTexGrad, ssa.OpcodeTexFetch, ssa.OpcodeTexFetchMS,
		ssa.OpcodeImageLoad, ssa.OpcodeImageStore:
		t.texSample(i)
	case ssa.OpcodeTexGather:
		t.texGather(i)
	case ssa.OpcodeTexSize, ssa.OpcodeTexLevels, ssa.OpcodeTexSamples:
		t.texQuery(i)
	case ssa.OpcodeLoadGlobal, ssa.OpcodeLoadGlobalConstant:
		t.loadGlobal(i)
	case ssa.OpcodeStoreGlobal:
		t.storeGlobal(i)
	case ssa.OpcodeAtomicGlobal:
		t.atomic(i)
	case ssa.OpcodeLoadInput:
		t.loadInput(i)
	case ssa.OpcodeStoreOutput:
		t.storeOutput(i)
	case ssa.OpcodeLoadOutput:
		t.loadOutput(i)
	case ssa.OpcodeLoadFragCoord:
		t.loadFragCoord(i)
	case ssa.OpcodeLoadPreamble:
		t.loadPreamble(i)
	case ssa.OpcodeLoadPushConstAddr, ssa.OpcodeLoadDescTableAddr,
		ssa.OpcodeLoadNumWorkgroupsAddr:
		t.loadSharedAddr(i)
	case ssa.OpcodeWorkgroupID:
		t.workgroupID(i)
	case ssa.OpcodeLocalInvocationIndex, ssa.OpcodeVertexID, ssa.OpcodeInstanceID:
		t.vtxinSysval(i)
	case ssa.OpcodeHelperInvocation:
		t.helperInvocation(i)
	case ssa.OpcodeDiscard, ssa.OpcodeDiscardIf:
		t.discard(i)
	case ssa.OpcodeMutexLock, ssa.OpcodeMutexRelease:
		t.mutex(i)
	case ssa.OpcodeBreak, ssa.OpcodeContinue:
		t.jump(i)
	default:
		panic(unsupported(i))
	}
}

// unsupported builds the fatal diagnostic for an IR shape outside the
// closed supported set.
func unsupported(i *ssa.Instruction) string {
	bits := uint8(32)
	if i.Ret.Valid() {
		bits = i.Ret.Bits()
	} else if len(i.Srcs) > 0 {
		bits = i.Srcs[0].Bits()
	}
	return fmt.Sprintf("unsupported instruction: %s (%d-bit)", i.Op, bits)
}

// endShader emits the stage epilogue and final END.
func (t *translator) endShader() {
	switch t.fn.Stage {
	case ssa.StageVertex:
		t.b.UVSWENDTASK()
		t.b.UVSWEMIT()
	case ssa.StageFragment:
		t.b.EMITPIX()
	}
	end := t.b.END()
	end.End = true
}

// trimEmptyBlocks drops blocks selection left empty, redirecting their
// branch uses to the following block.
func trimEmptyBlocks(b *mir.Builder, s *mir.Shader) {
	for i := 0; i < len(s.Blocks); {
		blk := s.Blocks[i]
		if !blk.Empty() {
			i++
			continue
		}
		next := blk.Next()
		if next == nil {
			// A trailing empty block has no continuation to inherit
			// its uses; selection never produces one.
			panic("BUG: trailing empty block")
		}
		blk.RedirectUses(next)
		s.RemoveBlock(blk)
	}
}

// collectFragData records late fragment-stage facts for the driver.
func collectFragData(s *mir.Shader) {
	for _, blk := range s.Blocks {
		for _, in := range blk.Instrs {
			if in.Kind == mir.InstrKindBackend && in.BackendOp() == mir.BackendOpATST {
				s.Ctx.FragData.Discards = true
			}
		}
	}
}
