package mir

import (
	"github.com/tilegpu/heron/internal/ssa"
)

// EMCIndex is the special-file slot holding the per-lane execution mask
// counter driving predicated control flow.
const EMCIndex = 96

// DeviceInfo carries the hardware capability flags compilation depends on.
type DeviceInfo struct {
	// ArrayTextures is set when the sampler hardware addresses array
	// layers natively; otherwise the selector emits the indirect layer
	// address computation.
	ArrayTextures bool
	// MSAAModeSample is set when fragment position reads resolve per
	// sample rather than per pixel.
	MSAAModeSample bool
	// MaxInstancesPerTask bounds the lanes covered by one mutex.
	MaxInstancesPerTask uint32
}

// VtxInAttr describes where the driver staged one vertex attribute.
type VtxInAttr struct {
	Base uint32
	// Comps is how many components the driver fetches; missing components
	// read as 1.0.
	Comps uint8
}

// PipelineLayout is the driver-supplied register layout shared by all
// stages of one pipeline.
type PipelineLayout struct {
	// DescTableAddrOffsets maps descriptor table index to the shared-file
	// offset of its 64-bit base address.
	DescTableAddrOffsets []uint32
	// PushConstAddrOffset is the shared-file offset of the push-constant
	// 64-bit base address.
	PushConstAddrOffset uint32
	// NumWorkgroupsAddrOffset is the shared-file offset of the
	// workgroup-count 64-bit base address.
	NumWorkgroupsAddrOffset uint32
	// VtxInAttrs maps vertex input location to its staging info.
	VtxInAttrs []VtxInAttr
	// CoeffBases maps fragment input location to the coefficient-file
	// base of its varying. Each component takes CoeffAlign registers.
	CoeffBases []uint32
	// WCoeffBase is the coefficient-file base of the W triple used by
	// perspective-correct interpolation.
	WCoeffBase uint32
	// TexStateOffsets/SmpStateOffsets map descriptor slot to the
	// shared-file base of the packed image/sampler state words.
	TexStateOffsets []uint32
	SmpStateOffsets []uint32
	// TexMetaOffsets maps descriptor slot to the shared-file base of the
	// image metadata block (dimensions, layer stride, level count).
	TexMetaOffsets []uint32
	// PreambleOffsets maps preamble slot to a shared-file offset.
	PreambleOffsets []uint32
}

// CoeffAlign is the coefficient-file footprint of one varying component
// (the a, b, c plane coefficients plus padding).
const CoeffAlign = 4

// DebugFlags control diagnostic behavior; none affect generated code.
type DebugFlags uint32

const (
	// DebugDumpBeforePasses dumps the shader after selection.
	DebugDumpBeforePasses DebugFlags = 1 << iota
	// DebugDumpAfterPasses dumps the shader after the pass pipeline.
	DebugDumpAfterPasses
	// DebugSkipValidate disables the pipeline-boundary validator runs.
	DebugSkipValidate
	// DebugValidateNonfatal makes the validator collect every violation
	// in the shader before aborting.
	DebugValidateNonfatal
)

// BuildCtx is the read-only configuration shared by all stage compilations
// of one pipeline. It is populated before any stage compiles and never
// mutated afterwards.
type BuildCtx struct {
	Dev    DeviceInfo
	Layout PipelineLayout
	Debug  DebugFlags

	// FragData collects late fragment-stage facts the driver needs;
	// written once by the fragment compilation.
	FragData struct {
		Discards bool
		UsedRegs map[RegClass]uint32
	}
}

// Shader owns every register, regarray, block and instruction of one
// compiled stage.
type Shader struct {
	Stage ssa.ShaderStage
	Ctx   *BuildCtx

	Blocks []*Block

	regCache      map[regKey]*Reg
	regArrayCache map[regArrayKey]*RegArray
	regsByClass   [NumRegClasses][]*Reg
	regArrays     []*RegArray

	// NextSSAIdx is the next free SSA-shadow register index; selection
	// scratch values allocate from it after the pre-reservation pass.
	NextSSAIdx uint32
	// LoopNestings counts the conditional mask levels open inside the
	// innermost loop during selection; jump sentinels derive from it.
	LoopNestings uint32
	// Loops counts loops seen, for later scheduling heuristics.
	Loops int
	// EMCInit is set once the lazy mask-counter init sequence is emitted.
	EMCInit bool
	// MutexHeld tracks the inter-instance mutex; locking twice is a bug.
	MutexHeld bool
	// Grouped is set after final group scheduling.
	Grouped bool

	nextLabel uint32
	nextDRC   uint8
}

// NewShader returns an empty shader for the stage.
func NewShader(ctx *BuildCtx, stage ssa.ShaderStage) *Shader {
	return &Shader{
		Stage:         stage,
		Ctx:           ctx,
		regCache:      make(map[regKey]*Reg),
		regArrayCache: make(map[regArrayKey]*RegArray),
	}
}

// EMC returns the execution-mask-counter register.
func (s *Shader) EMC() *Reg { return s.Reg(RegClassSpecial, EMCIndex) }

// NewBlock appends an empty block and returns it.
func (s *Shader) NewBlock(name string) *Block {
	b := &Block{Label: s.nextLabel, Name: name, Shader: s, index: len(s.Blocks)}
	s.nextLabel++
	s.Blocks = append(s.Blocks, b)
	return b
}

// SSAReg returns the SSA-shadow register for a scalar value index.
func (s *Shader) SSAReg(index uint32) *Reg { return s.Reg(RegClassSSA, index) }

// NewSSA allocates a fresh scratch SSA register.
func (s *Shader) NewSSA() *Reg {
	r := s.Reg(RegClassSSA, s.NextSSAIdx)
	s.NextSSAIdx++
	return r
}

// NewSSAArray allocates size fresh contiguous scratch SSA registers.
func (s *Shader) NewSSAArray(size uint32) *RegArray {
	a := s.RegArray(RegClassSSA, s.NextSSAIdx, size)
	s.NextSSAIdx += size
	return a
}

// NextDRC returns the next dependent-read counter, alternating between the
// two hardware counters.
func (s *Shader) NextDRC() uint8 {
	d := s.nextDRC
	s.nextDRC ^= 1
	return d
}

// RemoveBlock deletes an empty block, renumbering the rest.
func (s *Shader) RemoveBlock(b *Block) {
	if !b.Empty() {
		panic("BUG: removing non-empty block")
	}
	s.Blocks = append(s.Blocks[:b.index], s.Blocks[b.index+1:]...)
	for i := b.index; i < len(s.Blocks); i++ {
		s.Blocks[i].index = i
	}
}

// RegArrays returns all regarrays in creation order.
func (s *Shader) RegArrays() []*RegArray { return s.regArrays }

// RegsByClass returns the interned registers of one class.
func (s *Shader) RegsByClass(c RegClass) []*Reg { return s.regsByClass[c] }

// ForEachCachedReg visits every register cache entry with its key, for the
// validator's cache-consistency check.
func (s *Shader) ForEachCachedReg(f func(class RegClass, index uint32, r *Reg)) {
	for k, r := range s.regCache {
		f(k.class, k.index, r)
	}
}

// ForEachCachedRegArray visits every regarray cache entry with its key.
func (s *Shader) ForEachCachedRegArray(f func(class RegClass, base, size uint32, a *RegArray)) {
	for k, a := range s.regArrayCache {
		f(k.class, k.base, k.size, a)
	}
}
