// Package ssa defines the SSA-form intermediate representation consumed by
// the instruction selector. The IR arrives pre-validated from the front-end
// and optimizer; this package only models it, it never checks it.
package ssa

import (
	"fmt"
	"math"
)

// Value represents an SSA definition together with its type information.
//
// The lower 32 bits are the pure identifier; bits 32-39 hold the bit-width
// (8, 16, 32 or 64) and bits 40-47 the component count (1-4). A 64-bit value
// is always a scalar.
type Value uint64

// ValueID is the lower 32 bits of Value, the identifier without type info.
type ValueID uint32

const (
	valueIDInvalid ValueID = math.MaxUint32
	ValueInvalid   Value   = Value(valueIDInvalid)
)

// MakeValue returns a Value with the given identifier, bit-width and
// component count.
func MakeValue(id ValueID, bits, comps uint8) Value {
	return Value(id) | Value(bits)<<32 | Value(comps)<<40
}

// ID returns the ValueID of this value.
func (v Value) ID() ValueID { return ValueID(v) }

// Bits returns the bit-width of this value (8, 16, 32 or 64).
func (v Value) Bits() uint8 { return uint8(v >> 32) }

// Comps returns the component count of this value (1 for scalars).
func (v Value) Comps() uint8 { return uint8(v >> 40) }

// Valid returns true if this value is valid.
func (v Value) Valid() bool { return v.ID() != valueIDInvalid }

// String implements fmt.Stringer.
func (v Value) String() string {
	if v.Comps() > 1 {
		return fmt.Sprintf("v%d:%dx%d", v.ID(), v.Bits(), v.Comps())
	}
	return fmt.Sprintf("v%d:%d", v.ID(), v.Bits())
}

// Opcode represents an SSA instruction kind. The set is closed: the selector
// supports exactly the opcodes enumerated here and aborts on anything else.
type Opcode uint32

const (
	OpcodeInvalid Opcode = iota

	// OpcodeFAdd adds two floats: `ret = x + y`.
	OpcodeFAdd
	// OpcodeFMul multiplies two floats: `ret = x * y`.
	OpcodeFMul
	// OpcodeFFma performs a fused multiply-add: `ret = x*y + z`.
	OpcodeFFma
	// OpcodeFRcp computes a float reciprocal.
	OpcodeFRcp
	// OpcodeFRsq computes a float reciprocal square root.
	OpcodeFRsq
	// OpcodeFLog2 computes a base-2 logarithm.
	OpcodeFLog2
	// OpcodeFExp2 computes a base-2 exponential.
	OpcodeFExp2
	// OpcodeFFloor rounds towards negative infinity.
	OpcodeFFloor
	// OpcodeFSin computes sin(x); lowered with a range-reduction sequence.
	OpcodeFSin
	// OpcodeFCos computes cos(x); lowered with a range-reduction sequence.
	OpcodeFCos
	// OpcodeFNeg negates a float.
	OpcodeFNeg
	// OpcodeFAbs takes a float absolute value.
	OpcodeFAbs
	// OpcodeFMin takes the smaller of two floats.
	OpcodeFMin
	// OpcodeFMax takes the larger of two floats.
	OpcodeFMax
	// OpcodeFDdx takes a coarse screen-space derivative along x.
	OpcodeFDdx
	// OpcodeFDdxFine takes a fine screen-space derivative along x.
	OpcodeFDdxFine
	// OpcodeFDdy takes a coarse screen-space derivative along y.
	OpcodeFDdy
	// OpcodeFDdyFine takes a fine screen-space derivative along y.
	OpcodeFDdyFine

	// OpcodeIAdd adds two integers at the value's bit-width.
	OpcodeIAdd
	// OpcodeIMul multiplies two integers at the value's bit-width.
	OpcodeIMul
	// OpcodeIMulHigh returns the high half of a signed 32x32 multiply.
	OpcodeIMulHigh
	// OpcodeUMulHigh returns the high half of an unsigned 32x32 multiply.
	OpcodeUMulHigh
	// OpcodeUMulLow returns the low half of an unsigned 32x32 multiply.
	OpcodeUMulLow
	// OpcodeINeg negates an integer.
	OpcodeINeg
	// OpcodeIAbs takes an integer absolute value.
	OpcodeIAbs
	// OpcodeIMin takes the smaller of two signed integers.
	OpcodeIMin
	// OpcodeIMax takes the larger of two signed integers.
	OpcodeIMax
	// OpcodeUMin takes the smaller of two unsigned integers.
	OpcodeUMin
	// OpcodeUMax takes the larger of two unsigned integers.
	OpcodeUMax

	// OpcodeFLt compares floats: `ret = x < y`.
	OpcodeFLt
	// OpcodeFGe compares floats: `ret = x >= y`.
	OpcodeFGe
	// OpcodeFEq compares floats: `ret = x == y`.
	OpcodeFEq
	// OpcodeFNe compares floats: `ret = x != y`.
	OpcodeFNe
	// OpcodeILt compares signed integers: `ret = x < y`.
	OpcodeILt
	// OpcodeIGe compares signed integers: `ret = x >= y`.
	OpcodeIGe
	// OpcodeIEq compares integers: `ret = x == y`.
	OpcodeIEq
	// OpcodeINe compares integers: `ret = x != y`.
	OpcodeINe
	// OpcodeULt compares unsigned integers: `ret = x < y`.
	OpcodeULt
	// OpcodeUGe compares unsigned integers: `ret = x >= y`.
	OpcodeUGe

	// OpcodeBCsel selects on a boolean: `ret = c != 0 ? x : y`.
	OpcodeBCsel
	// OpcodeFCselGt selects on a float compare: `ret = c > 0.0 ? x : y`.
	OpcodeFCselGt
	// OpcodeFCselGe selects on a float compare: `ret = c >= 0.0 ? x : y`.
	OpcodeFCselGe
	// OpcodeICselGt selects on a signed compare: `ret = c > 0 ? x : y`.
	OpcodeICselGt
	// OpcodeICselGe selects on a signed compare: `ret = c >= 0 ? x : y`.
	OpcodeICselGe

	// OpcodeIAnd computes a bitwise and.
	OpcodeIAnd
	// OpcodeIOr computes a bitwise or.
	OpcodeIOr
	// OpcodeIXor computes a bitwise exclusive or.
	OpcodeIXor
	// OpcodeINot computes a bitwise complement.
	OpcodeINot
	// OpcodeIShl shifts left.
	OpcodeIShl
	// OpcodeIShr shifts right arithmetically.
	OpcodeIShr
	// OpcodeUShr shifts right logically.
	OpcodeUShr
	// OpcodeBitfieldInsert inserts `insert` into `base` at offset/bits.
	OpcodeBitfieldInsert
	// OpcodeUBitfieldExtract extracts an unsigned bitfield.
	OpcodeUBitfieldExtract
	// OpcodeIBitfieldExtract extracts a signed bitfield.
	OpcodeIBitfieldExtract
	// OpcodeBitfieldReverse reverses the bits of a 32-bit value.
	OpcodeBitfieldReverse
	// OpcodeBitCount counts set bits.
	OpcodeBitCount
	// OpcodeUFindMSB finds the most significant set bit.
	OpcodeUFindMSB

	// OpcodeMov copies a value.
	OpcodeMov
	// OpcodeVec2 builds a 2-component vector from scalars.
	OpcodeVec2
	// OpcodeVec3 builds a 3-component vector from scalars.
	OpcodeVec3
	// OpcodeVec4 builds a 4-component vector from scalars.
	OpcodeVec4
	// OpcodeLoadConst materializes an immediate constant.
	OpcodeLoadConst

	// OpcodePackUnorm4x8 packs 4 floats to 8-bit unsigned normalized.
	OpcodePackUnorm4x8
	// OpcodePackSnorm4x8 packs 4 floats to 8-bit signed normalized.
	OpcodePackSnorm4x8
	// OpcodePackUnorm2x16 packs 2 floats to 16-bit unsigned normalized.
	OpcodePackUnorm2x16
	// OpcodePackSnorm2x16 packs 2 floats to 16-bit signed normalized.
	OpcodePackSnorm2x16
	// OpcodePackHalf2x16 packs 2 floats to half precision.
	OpcodePackHalf2x16
	// OpcodePackHalf2x16Split packs 2 scalar floats to half precision.
	OpcodePackHalf2x16Split
	// OpcodeUnpackUnorm4x8 unpacks 8-bit unsigned normalized to floats.
	OpcodeUnpackUnorm4x8
	// OpcodeUnpackSnorm4x8 unpacks 8-bit signed normalized to floats.
	OpcodeUnpackSnorm4x8
	// OpcodeUnpackUnorm2x16 unpacks 16-bit unsigned normalized to floats.
	OpcodeUnpackUnorm2x16
	// OpcodeUnpackSnorm2x16 unpacks 16-bit signed normalized to floats.
	OpcodeUnpackSnorm2x16
	// OpcodeUnpackHalf2x16 unpacks half precision to floats.
	OpcodeUnpackHalf2x16
	// OpcodePack64_2x32Split packs two 32-bit halves into a 64-bit value.
	OpcodePack64_2x32Split
	// OpcodeUnpack64_2x32SplitX returns the low half of a 64-bit value.
	OpcodeUnpack64_2x32SplitX
	// OpcodeUnpack64_2x32SplitY returns the high half of a 64-bit value.
	OpcodeUnpack64_2x32SplitY
	// OpcodeUnpack32_2x16SplitX returns the low 16 bits of a 32-bit value.
	OpcodeUnpack32_2x16SplitX
	// OpcodeUnpack32_2x16SplitY returns the high 16 bits of a 32-bit value.
	OpcodeUnpack32_2x16SplitY

	// OpcodeConvert converts between numeric domains and widths per the
	// instruction's ConvDesc.
	OpcodeConvert

	// OpcodeTex samples a texture with implicit LOD.
	OpcodeTex
	// OpcodeTexBias samples a texture with an LOD bias.
	OpcodeTexBias
	// OpcodeTexLod samples a texture with an explicit LOD.
	OpcodeTexLod
	// OpcodeTexGrad samples a texture with explicit gradients.
	OpcodeTexGrad
	// OpcodeTexFetch fetches a single texel with integer coordinates.
	OpcodeTexFetch
	// OpcodeTexFetchMS fetches a texel from a multisampled texture.
	OpcodeTexFetchMS
	// OpcodeTexGather gathers one component of a 2x2 texel footprint.
	OpcodeTexGather
	// OpcodeTexSize queries texture dimensions at an LOD.
	OpcodeTexSize
	// OpcodeTexLevels queries the texture mip level count.
	OpcodeTexLevels
	// OpcodeTexSamples queries the texture sample count.
	OpcodeTexSamples
	// OpcodeImageLoad loads from a storage image.
	OpcodeImageLoad
	// OpcodeImageStore stores to a storage image.
	OpcodeImageStore

	// OpcodeLoadGlobal loads from global memory through a 64-bit address.
	OpcodeLoadGlobal
	// OpcodeLoadGlobalConstant loads read-only global memory.
	OpcodeLoadGlobalConstant
	// OpcodeStoreGlobal stores to global memory through a 64-bit address.
	OpcodeStoreGlobal
	// OpcodeAtomicGlobal performs a global-memory atomic per AtomicOp.
	OpcodeAtomicGlobal

	// OpcodeLoadInput loads a stage input (varying or vertex attribute).
	OpcodeLoadInput
	// OpcodeStoreOutput stores a stage output.
	OpcodeStoreOutput
	// OpcodeLoadOutput reads back a fragment output.
	OpcodeLoadOutput
	// OpcodeLoadFragCoord loads the fragment coordinate.
	OpcodeLoadFragCoord
	// OpcodeLoadPreamble loads a value staged into shared registers.
	OpcodeLoadPreamble
	// OpcodeLoadPushConstAddr loads the push-constant base address.
	OpcodeLoadPushConstAddr
	// OpcodeLoadDescTableAddr loads a descriptor-table base address.
	OpcodeLoadDescTableAddr
	// OpcodeLoadNumWorkgroupsAddr loads the workgroup-count base address.
	OpcodeLoadNumWorkgroupsAddr
	// OpcodeWorkgroupID loads one workgroup-id component (Imm = axis).
	OpcodeWorkgroupID
	// OpcodeLocalInvocationIndex loads the flat local invocation index.
	OpcodeLocalInvocationIndex
	// OpcodeVertexID loads the vertex id.
	OpcodeVertexID
	// OpcodeInstanceID loads the instance id.
	OpcodeInstanceID
	// OpcodeHelperInvocation tests whether this lane is a helper invocation.
	OpcodeHelperInvocation
	// OpcodeDiscard kills the fragment unconditionally.
	OpcodeDiscard
	// OpcodeDiscardIf kills the fragment when the condition is true.
	OpcodeDiscardIf
	// OpcodeMutexLock acquires the per-slot hardware mutex.
	OpcodeMutexLock
	// OpcodeMutexRelease releases the per-slot hardware mutex.
	OpcodeMutexRelease

	// OpcodeBreak exits the innermost loop.
	OpcodeBreak
	// OpcodeContinue jumps to the next iteration of the innermost loop.
	OpcodeContinue

	opcodeEnd
)

// InterpMode describes how a fragment input is interpolated.
type InterpMode uint8

const (
	// InterpSmooth is perspective-correct interpolation.
	InterpSmooth InterpMode = iota
	// InterpNoPerspective is linear screen-space interpolation.
	InterpNoPerspective
	// InterpFlat takes the provoking vertex's value.
	InterpFlat
)

// AtomicOp enumerates the atomic read-modify-write operations.
type AtomicOp uint8

const (
	AtomicOpIAdd AtomicOp = iota
	AtomicOpIMin
	AtomicOpUMin
	AtomicOpIMax
	AtomicOpUMax
	AtomicOpAnd
	AtomicOpOr
	AtomicOpXor
	AtomicOpXchg
)

// NumDomain is a numeric domain for conversions.
type NumDomain uint8

const (
	DomainFloat NumDomain = iota
	DomainSigned
	DomainUnsigned
	DomainBool
)

// RoundMode selects the rounding behavior of a conversion.
type RoundMode uint8

const (
	// RoundDefault leaves rounding to the hardware default (nearest even).
	RoundDefault RoundMode = iota
	// RoundZero truncates towards zero.
	RoundZero
)

// ConvDesc fully describes a type conversion. The selector matches it
// against an exhaustive table; an unmatched descriptor is fatal.
type ConvDesc struct {
	SrcDomain, DstDomain NumDomain
	SrcBits, DstBits     uint8
	Round                RoundMode
	Sat                  bool
}

func (c ConvDesc) String() string {
	names := [...]string{DomainFloat: "f", DomainSigned: "i", DomainUnsigned: "u", DomainBool: "b"}
	s := fmt.Sprintf("%s2%s%d.%d", names[c.SrcDomain], names[c.DstDomain], c.DstBits, c.SrcBits)
	if c.Round == RoundZero {
		s += ".rtz"
	}
	if c.Sat {
		s += ".sat"
	}
	return s
}

// TexDim is the dimensionality of a sampled texture.
type TexDim uint8

const (
	TexDim1D TexDim = iota
	TexDim2D
	TexDim3D
	TexDimCube
	TexDimBuffer
)

// Tex carries the per-instruction texture operation payload.
type Tex struct {
	Dim           TexDim
	Array         bool
	Coords        Value
	Proj          Value // invalid if absent
	Lod           Value // bias or explicit lod depending on opcode
	Ddx, Ddy      Value
	Offset        Value
	MSIndex       Value
	Comparator    Value // depth comparison reference, invalid if absent
	WriteData     Value // image stores only
	GatherComp    uint8
	TexIndex      uint32 // image-state descriptor slot
	SamplerIndex  uint32
	IntegerCoords bool // texel-fetch style unnormalized integer coords
}

// Instruction is an SSA IR instruction. Since Go doesn't have union types,
// this is a flattened struct whose fields are interpreted per Opcode.
type Instruction struct {
	Op   Opcode
	Srcs []Value
	// SrcNeg and SrcAbs carry per-source negate/absolute-value modifiers
	// folded onto the sources by the optimizer.
	SrcNeg []bool
	SrcAbs []bool
	Ret    Value

	// Imm is an opcode-specific small immediate: the constant payload of
	// LoadConst (low 32 bits per 32-bit unit, U64 for 64-bit), the axis of
	// WorkgroupID, the IO location of LoadInput/StoreOutput, the component
	// of LoadInput, the bitfield offset of preamble loads.
	Imm uint32
	// U64 is the 64-bit constant payload of a 64-bit LoadConst.
	U64 uint64
	// Component selects the IO component for LoadInput/StoreOutput.
	Component uint8
	// Interp is the interpolation mode of a fragment LoadInput.
	Interp InterpMode
	// Atomic selects the operation of an AtomicGlobal.
	Atomic AtomicOp
	// Conv describes an OpcodeConvert.
	Conv ConvDesc
	// Tex is the texture payload; nil for non-texture opcodes.
	Tex *Tex
}

// Node is a structured control-flow node: *Block, *If or *Loop.
type Node interface {
	isNode()
}

// Block is a straight-line sequence of instructions.
type Block struct {
	Instrs []*Instruction
}

// If is a structured conditional with optional else branch.
type If struct {
	Cond Value
	Then []Node
	Else []Node
	// DontFlatten hints that the branches are expensive enough to be worth
	// an all-lanes-skip branch around each.
	DontFlatten bool
}

// Loop is a structured loop; the body runs until a Break executes in every
// lane. Loops with a continue target distinct from the loop start are not
// representable.
type Loop struct {
	Body []Node
}

func (*Block) isNode() {}
func (*If) isNode()    {}
func (*Loop) isNode()  {}

// ShaderStage identifies the pipeline stage a function compiles for.
type ShaderStage uint8

const (
	StageVertex ShaderStage = iota
	StageFragment
	StageCompute
)

// String implements fmt.Stringer.
func (s ShaderStage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageCompute:
		return "compute"
	}
	return "invalid"
}

// Function is a single-function SSA program for one shader stage.
type Function struct {
	Stage ShaderStage
	Body  []Node
	// NumValues is one past the highest ValueID defined in the body.
	NumValues uint32
}

// ForEachInstr visits every instruction in the body in source order.
func ForEachInstr(nodes []Node, f func(*Instruction)) {
	for _, n := range nodes {
		switch n := n.(type) {
		case *Block:
			for _, i := range n.Instrs {
				f(i)
			}
		case *If:
			ForEachInstr(n.Then, f)
			ForEachInstr(n.Else, f)
		case *Loop:
			ForEachInstr(n.Body, f)
		default:
			panic("BUG: unknown CF node")
		}
	}
}

var opcodeNames = map[Opcode]string{
	OpcodeFAdd: "fadd", OpcodeFMul: "fmul", OpcodeFFma: "ffma",
	OpcodeFRcp: "frcp", OpcodeFRsq: "frsq", OpcodeFLog2: "flog2",
	OpcodeFExp2: "fexp2", OpcodeFFloor: "ffloor", OpcodeFSin: "fsin",
	OpcodeFCos: "fcos", OpcodeFNeg: "fneg", OpcodeFAbs: "fabs",
	OpcodeFMin: "fmin", OpcodeFMax: "fmax",
	OpcodeFDdx: "fddx", OpcodeFDdxFine: "fddx_fine",
	OpcodeFDdy: "fddy", OpcodeFDdyFine: "fddy_fine",
	OpcodeIAdd: "iadd", OpcodeIMul: "imul", OpcodeIMulHigh: "imul_high",
	OpcodeUMulHigh: "umul_high", OpcodeUMulLow: "umul_low",
	OpcodeINeg: "ineg", OpcodeIAbs: "iabs",
	OpcodeIMin: "imin", OpcodeIMax: "imax",
	OpcodeUMin: "umin", OpcodeUMax: "umax",
	OpcodeFLt: "flt", OpcodeFGe: "fge", OpcodeFEq: "feq", OpcodeFNe: "fne",
	OpcodeILt: "ilt", OpcodeIGe: "ige", OpcodeIEq: "ieq", OpcodeINe: "ine",
	OpcodeULt: "ult", OpcodeUGe: "uge",
	OpcodeBCsel: "bcsel", OpcodeFCselGt: "fcsel_gt", OpcodeFCselGe: "fcsel_ge",
	OpcodeICselGt: "icsel_gt", OpcodeICselGe: "icsel_ge",
	OpcodeIAnd: "iand", OpcodeIOr: "ior", OpcodeIXor: "ixor",
	OpcodeINot: "inot", OpcodeIShl: "ishl", OpcodeIShr: "ishr",
	OpcodeUShr: "ushr",
	OpcodeBitfieldInsert: "bitfield_insert", OpcodeUBitfieldExtract: "ubitfield_extract",
	OpcodeIBitfieldExtract: "ibitfield_extract", OpcodeBitfieldReverse: "bitfield_reverse",
	OpcodeBitCount: "bit_count", OpcodeUFindMSB: "ufind_msb",
	OpcodeMov: "mov", OpcodeVec2: "vec2", OpcodeVec3: "vec3", OpcodeVec4: "vec4",
	OpcodeLoadConst:     "load_const",
	OpcodePackUnorm4x8:  "pack_unorm_4x8",
	OpcodePackSnorm4x8:  "pack_snorm_4x8",
	OpcodePackUnorm2x16: "pack_unorm_2x16", OpcodePackSnorm2x16: "pack_snorm_2x16",
	OpcodePackHalf2x16: "pack_half_2x16", OpcodePackHalf2x16Split: "pack_half_2x16_split",
	OpcodeUnpackUnorm4x8: "unpack_unorm_4x8", OpcodeUnpackSnorm4x8: "unpack_snorm_4x8",
	OpcodeUnpackUnorm2x16: "unpack_unorm_2x16", OpcodeUnpackSnorm2x16: "unpack_snorm_2x16",
	OpcodeUnpackHalf2x16: "unpack_half_2x16",
	OpcodePack64_2x32Split: "pack_64_2x32_split", OpcodeUnpack64_2x32SplitX: "unpack_64_2x32_split_x",
	OpcodeUnpack64_2x32SplitY: "unpack_64_2x32_split_y",
	OpcodeUnpack32_2x16SplitX: "unpack_32_2x16_split_x", OpcodeUnpack32_2x16SplitY: "unpack_32_2x16_split_y",
	OpcodeConvert: "convert",
	OpcodeTex:     "tex", OpcodeTexBias: "txb", OpcodeTexLod: "txl",
	OpcodeTexGrad: "txd", OpcodeTexFetch: "txf", OpcodeTexFetchMS: "txf_ms",
	OpcodeTexGather: "tg4", OpcodeTexSize: "txs", OpcodeTexLevels: "query_levels",
	OpcodeTexSamples: "texture_samples",
	OpcodeImageLoad:  "image_load", OpcodeImageStore: "image_store",
	OpcodeLoadGlobal: "load_global", OpcodeLoadGlobalConstant: "load_global_constant",
	OpcodeStoreGlobal: "store_global", OpcodeAtomicGlobal: "atomic_global",
	OpcodeLoadInput: "load_input", OpcodeStoreOutput: "store_output",
	OpcodeLoadOutput: "load_output", OpcodeLoadFragCoord: "load_frag_coord",
	OpcodeLoadPreamble: "load_preamble", OpcodeLoadPushConstAddr: "load_push_const_addr",
	OpcodeLoadDescTableAddr: "load_desc_table_addr", OpcodeLoadNumWorkgroupsAddr: "load_num_workgroups_addr",
	OpcodeWorkgroupID: "workgroup_id", OpcodeLocalInvocationIndex: "local_invocation_index",
	OpcodeVertexID: "vertex_id", OpcodeInstanceID: "instance_id",
	OpcodeHelperInvocation: "helper_invocation",
	OpcodeDiscard:          "discard", OpcodeDiscardIf: "discard_if",
	OpcodeMutexLock: "mutex_lock", OpcodeMutexRelease: "mutex_release",
	OpcodeBreak: "break", OpcodeContinue: "continue",
}

// String implements fmt.Stringer.
func (o Opcode) String() string {
	if n, ok := opcodeNames[o]; ok {
		return n
	}
	return fmt.Sprintf("unknown_opcode(%d)", uint32(o))
}
