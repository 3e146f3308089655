package lower

import (
	"fmt"

	"github.com/tilegpu/heron/internal/mir"
	"github.com/tilegpu/heron/internal/ssa"
)

// Image metadata block layout in the shared file, one block per descriptor
// slot: dimensions, mip/sample words, and the layer addressing triple for
// hardware without native array textures.
const (
	texMetaWidth = iota
	texMetaHeight
	texMetaDepth // max layer index for arrays, max cube index for cube arrays
	texMetaLevels
	texMetaSamples
	texMetaLayerStride
	texMetaBaseLo
	texMetaBaseHi
)

// gatherRemap reorders the hardware footprint (top-left, top-right,
// bottom-left, bottom-right) into the IR order (bottom-left, bottom-right,
// top-right, top-left).
var gatherRemap = [4]uint32{2, 3, 1, 0}

// sampleBuilder accumulates the packed sample-data operand in its required
// field order, then emits the sample instruction over a contiguous scratch
// block.
type sampleBuilder struct {
	t     *translator
	mods  mir.OpModSet
	elems []mir.Ref
}

func (sb *sampleBuilder) push(refs ...mir.Ref) {
	sb.elems = append(sb.elems, refs...)
}

func (sb *sampleBuilder) setMod(m mir.OpMod) {
	sb.mods = sb.mods.With(m)
}

// validate enforces the modifier exclusion invariants centrally.
func (sb *sampleBuilder) validate() {
	if sb.mods.Has(mir.OpModInteger) && sb.mods.Has(mir.OpModFCNorm) {
		panic("BUG: integer and normalized coordinates both set")
	}
	if sb.mods.Has(mir.OpModBias) && sb.mods.Has(mir.OpModReplace) {
		panic("BUG: lod bias and replace both set")
	}
	if len(sb.elems) == 0 {
		panic("BUG: sample with no data")
	}
}

// emit moves the accumulated fields into one contiguous scratch block and
// issues the sample.
func (sb *sampleBuilder) emit(op mir.BackendOp, dst mir.Ref, texState, smpState mir.Ref, chans uint32) *mir.Instr {
	sb.validate()
	t := sb.t
	data := t.s.NewSSAArray(uint32(len(sb.elems)))
	for n, e := range sb.elems {
		t.b.MOV(mir.RefReg(data.Regs[n]), e)
	}
	drc := mir.RefDRC(t.s.NextDRC())
	return t.b.SMP(op, sb.mods, dst, drc, texState, smpState, mir.RefRegArray(data), chans)
}

// coordComps returns the coordinate component count for a dimensionality.
func coordComps(dim ssa.TexDim) uint8 {
	switch dim {
	case ssa.TexDim1D, ssa.TexDimBuffer:
		return 1
	case ssa.TexDim2D:
		return 2
	case ssa.TexDim3D, ssa.TexDimCube:
		return 3
	}
	panic(fmt.Sprintf("unsupported texture dimensionality: %d", dim))
}

func smpOpForDim(dim ssa.TexDim) mir.BackendOp {
	switch coordComps(dim) {
	case 1:
		return mir.BackendOpSMP1D
	case 2:
		return mir.BackendOpSMP2D
	default:
		return mir.BackendOpSMP3D
	}
}

// texState/smpState return the shared-file descriptor state blocks.
func (t *translator) texState(slot uint32) mir.Ref {
	base := t.s.Ctx.Layout.TexStateOffsets[slot]
	return mir.RefRegArray(t.s.RegArray(mir.RegClassShared, base, 4))
}

func (t *translator) smpState(slot uint32, gather bool) mir.Ref {
	base := t.s.Ctx.Layout.SmpStateOffsets[slot]
	if gather {
		// The full-precision gather variant of the sampler state lives
		// one descriptor stride after the regular one.
		base += 4
	}
	return mir.RefRegArray(t.s.RegArray(mir.RegClassShared, base, 4))
}

func (t *translator) texMetaReg(slot uint32, word uint32) mir.Ref {
	base := t.s.Ctx.Layout.TexMetaOffsets[slot]
	return mir.RefReg(t.s.Reg(mir.RegClassShared, base+word))
}

// texSample lowers regular sampling, texel fetches and image load/store.
func (t *translator) texSample(i *ssa.Instruction) {
	tx := i.Tex
	sb := &sampleBuilder{t: t}
	comps := coordComps(tx.Dim)

	for c := uint8(0); c < comps; c++ {
		sb.push(t.comp(tx.Coords, c))
	}

	switch i.Op {
	case ssa.OpcodeTexBias:
		sb.setMod(mir.OpModPPLOD)
		sb.setMod(mir.OpModBias)
	case ssa.OpcodeTexLod:
		sb.setMod(mir.OpModPPLOD)
		sb.setMod(mir.OpModReplace)
	case ssa.OpcodeTexGrad:
		sb.setMod(mir.OpModGradient)
	case ssa.OpcodeTexFetch, ssa.OpcodeImageLoad:
		sb.setMod(mir.OpModInteger)
		sb.setMod(mir.OpModNNCoords)
	case ssa.OpcodeTexFetchMS:
		sb.setMod(mir.OpModInteger)
		sb.setMod(mir.OpModNNCoords)
	case ssa.OpcodeImageStore:
		sb.setMod(mir.OpModInteger)
		sb.setMod(mir.OpModNNCoords)
		sb.setMod(mir.OpModWrt)
	}

	if tx.Array {
		if t.s.Ctx.Dev.ArrayTextures {
			sb.push(t.comp(tx.Coords, comps))
		} else {
			lo, hi := t.layerAddress(tx, comps)
			sb.push(lo, hi)
			sb.setMod(mir.OpModTAO)
		}
	}

	if tx.Proj.Valid() {
		sb.push(t.ref(tx.Proj))
		sb.setMod(mir.OpModProj)
	}

	if tx.Lod.Valid() {
		sb.push(t.ref(tx.Lod))
	}

	if tx.Ddx.Valid() {
		for c := uint8(0); c < comps; c++ {
			sb.push(t.comp(tx.Ddx, c))
			sb.push(t.comp(tx.Ddy, c))
		}
	}

	if tx.Offset.Valid() || tx.MSIndex.Valid() {
		sb.push(t.sampleOpts(tx))
		if tx.Offset.Valid() {
			sb.setMod(mir.OpModSNO)
		}
		if tx.MSIndex.Valid() {
			sb.setMod(mir.OpModSOO)
		}
	}

	var chans uint32
	var dst mir.Ref
	if i.Op == ssa.OpcodeImageStore {
		sb.setMod(mir.OpModData)
		for c := uint8(0); c < tx.WriteData.Comps(); c++ {
			sb.push(t.comp(tx.WriteData, c))
		}
		// Writes produce no sample data; the destination is a dummy
		// scratch the hardware leaves untouched.
		chans = 1
		dst = mir.RefReg(t.s.NewSSA())
	} else {
		chans = uint32(i.Ret.Comps())
		dst = t.dst(i)
		if i.Ret.Bits() == 16 {
			sb.setMod(mir.OpModF16)
		}
	}

	sb.emit(smpOpForDim(tx.Dim), dst, t.texState(tx.TexIndex), t.smpState(tx.SamplerIndex, false), chans)
}

// layerAddress computes the indirect array-layer byte address on hardware
// without native array textures: clamp the layer to [0, max] and form
// base + stride*layer.
func (t *translator) layerAddress(tx *ssa.Tex, layerComp uint8) (lo, hi mir.Ref) {
	layer := t.comp(tx.Coords, layerComp)

	li := mir.RefReg(t.s.NewSSA())
	if tx.IntegerCoords {
		t.b.MOV(li, layer)
	} else {
		t.b.PCK(mir.OpMods(mir.OpModFmtU32), li, layer, 1)
	}

	zeroed := mir.RefReg(t.s.NewSSA())
	t.b.MAX(mir.OpModS32, zeroed, li, mir.RefImm(0))

	maxLayer := t.texMetaReg(tx.TexIndex, texMetaDepth)
	if tx.Dim == ssa.TexDimCube {
		// Cube arrays address faces: max face index = 6*max_cube + 5.
		faces := mir.RefReg(t.s.NewSSA())
		t.b.IMADD32(0, faces, maxLayer, mir.RefImm(6), mir.RefImm(5))
		maxLayer = faces
	}
	clamped := mir.RefReg(t.s.NewSSA())
	t.b.MIN(mir.OpModS32, clamped, zeroed, maxLayer)

	stride := t.texMetaReg(tx.TexIndex, texMetaLayerStride)
	metaBase := t.s.Ctx.Layout.TexMetaOffsets[tx.TexIndex]
	base := t.s.RegArray(mir.RegClassShared, metaBase+texMetaBaseLo, 2)

	addr := t.s.NewSSAArray(2)
	t.b.IMADD64(0, mir.RefRegArray(addr), clamped, stride, mir.RefRegArray(base))
	return mir.RefReg(addr.Regs[0]), mir.RefReg(addr.Regs[1])
}

// sampleOpts packs the per-sample options word: each offset component takes
// 5 bits at 5*c, the multisample index 3 bits at 16.
func (t *translator) sampleOpts(tx *ssa.Tex) mir.Ref {
	word := mir.RefReg(t.s.NewSSA())
	t.b.MOV(word, mir.RefImm(0))
	if tx.Offset.Valid() {
		for c := uint8(0); c < tx.Offset.Comps(); c++ {
			masked := mir.RefReg(t.s.NewSSA())
			t.b.AND(masked, t.comp(tx.Offset, c), mir.RefImm(0x1f))
			shifted := mir.RefReg(t.s.NewSSA())
			t.b.LSL(shifted, masked, mir.RefImm(uint32(c)*5))
			merged := mir.RefReg(t.s.NewSSA())
			t.b.OR(merged, word, shifted)
			word = merged
		}
	}
	if tx.MSIndex.Valid() {
		masked := mir.RefReg(t.s.NewSSA())
		t.b.AND(masked, t.ref(tx.MSIndex), mir.RefImm(0x7))
		shifted := mir.RefReg(t.s.NewSSA())
		t.b.LSL(shifted, masked, mir.RefImm(16))
		merged := mir.RefReg(t.s.NewSSA())
		t.b.OR(merged, word, shifted)
		word = merged
	}
	return word
}

// texGather samples the fixed 4-tap footprint at full precision, four
// channels per tap, then picks the requested channel of each tap in the
// order the IR expects.
func (t *translator) texGather(i *ssa.Instruction) {
	tx := i.Tex
	if tx.Dim != ssa.TexDim2D && tx.Dim != ssa.TexDimCube {
		panic(fmt.Sprintf("unsupported instruction: %s on non-2d texture", i.Op))
	}
	sb := &sampleBuilder{t: t}
	comps := coordComps(tx.Dim)
	for c := uint8(0); c < comps; c++ {
		sb.push(t.comp(tx.Coords, c))
	}
	if tx.Array {
		if t.s.Ctx.Dev.ArrayTextures {
			sb.push(t.comp(tx.Coords, comps))
		} else {
			lo, hi := t.layerAddress(tx, comps)
			sb.push(lo, hi)
			sb.setMod(mir.OpModTAO)
		}
	}
	// The footprint samples at the base level; the LOD slot is a
	// placeholder.
	sb.push(mir.RefImm(0))
	sb.setMod(mir.OpModPPLOD)
	sb.setMod(mir.OpModReplace)
	sb.setMod(mir.OpModGather)

	scratch := t.s.NewSSAArray(4 * 4)
	sb.emit(smpOpForDim(tx.Dim), mir.RefRegArray(scratch),
		t.texState(tx.TexIndex), t.smpState(tx.SamplerIndex, true), 4)

	for c := uint8(0); c < 4; c++ {
		tap := gatherRemap[c]*4 + uint32(tx.GatherComp)
		t.b.MOV(t.comp(i.Ret, c), mir.RefReg(scratch.Regs[tap]))
	}
}

// texQuery answers size/levels/samples queries from the image metadata
// block.
func (t *translator) texQuery(i *ssa.Instruction) {
	tx := i.Tex
	switch i.Op {
	case ssa.OpcodeTexSize:
		words := []uint32{texMetaWidth, texMetaHeight, texMetaDepth}
		comps := i.Ret.Comps()
		for c := uint8(0); c < comps; c++ {
			if tx.Array && c == comps-1 {
				// The metadata stores the max layer index.
				t.b.IADD(mir.ALUOpIADD32, t.comp(i.Ret, c),
					t.texMetaReg(tx.TexIndex, texMetaDepth), mir.RefImm(1))
				continue
			}
			t.b.MOV(t.comp(i.Ret, c), t.texMetaReg(tx.TexIndex, words[c]))
		}
	case ssa.OpcodeTexLevels:
		word := mir.RefReg(t.s.NewSSA())
		t.b.MOV(word, t.texMetaReg(tx.TexIndex, texMetaLevels))
		t.b.AND(t.dst(i), word, mir.RefImm(0xf))
	case ssa.OpcodeTexSamples:
		// The sample count is stored as log2 in the top two bits.
		word := mir.RefReg(t.s.NewSSA())
		t.b.MOV(word, t.texMetaReg(tx.TexIndex, texMetaSamples))
		log2 := mir.RefReg(t.s.NewSSA())
		t.b.SHR(log2, word, mir.RefImm(30))
		t.b.LSL(t.dst(i), mir.RefImm(1), log2)
	default:
		panic(unsupported(i))
	}
}
