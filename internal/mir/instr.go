package mir

import (
	"fmt"
	"strings"
)

// InstrKind discriminates the four hardware instruction categories.
type InstrKind uint8

const (
	InstrKindInvalid InstrKind = iota
	// InstrKindALU is the main arithmetic pipeline.
	InstrKindALU
	// InstrKindBackend covers texture, memory, interpolation and the other
	// fixed-function backend phases.
	InstrKindBackend
	// InstrKindCtrl covers branches, conditional-mask ops and fences.
	InstrKindCtrl
	// InstrKindBitwise is the bitwise pipeline.
	InstrKindBitwise
)

// String implements fmt.Stringer.
func (k InstrKind) String() string {
	switch k {
	case InstrKindALU:
		return "alu"
	case InstrKindBackend:
		return "backend"
	case InstrKindCtrl:
		return "ctrl"
	case InstrKindBitwise:
		return "bitwise"
	}
	return "invalid"
}

// ALUOp enumerates the main-pipeline operations.
type ALUOp uint16

const (
	ALUOpInvalid ALUOp = iota
	// ALUOpMOV is the pseudo move lowered to a concrete move per operand
	// class before scheduling.
	ALUOpMOV
	// ALUOpMBYP bypasses a value through the main pipeline unchanged.
	ALUOpMBYP
	ALUOpFADD
	ALUOpFMUL
	ALUOpFMAD
	ALUOpFRCP
	ALUOpFRSQ
	ALUOpFLOG2
	ALUOpFEXP2
	ALUOpFFLR
	// ALUOpFRED performs one sin/cos range-reduction step; PartA/PartB
	// select the half of the iteration.
	ALUOpFRED
	// ALUOpFSINC evaluates the sine core on a range-reduced input.
	ALUOpFSINC
	// ALUOpGETPRED copies a pipeline predicate into a register.
	ALUOpGETPRED
	// ALUOpFDSX/FDSY take screen-space derivatives; the fine variants
	// differentiate per pixel rather than per quad.
	ALUOpFDSX
	ALUOpFDSXF
	ALUOpFDSY
	ALUOpFDSYF
	// ALUOpMIN and ALUOpMAX select per the element-type op modifier.
	ALUOpMIN
	ALUOpMAX
	// ALUOpCMP compares per the function and element-type op modifiers and
	// writes an all-ones/all-zeros 32-bit result.
	ALUOpCMP
	// ALUOpCSEL selects src1 or src2 per the test op modifier applied to
	// src0.
	ALUOpCSEL
	ALUOpIADD8
	ALUOpIADD16
	ALUOpIADD32
	// ALUOpIADD64 adds two 2-register operands with internal carry
	// propagation between the halves.
	ALUOpIADD64
	ALUOpIMUL8
	ALUOpIMUL16
	ALUOpIMUL32
	// ALUOpIMUL32HI returns the high 32 bits of a 32x32 multiply.
	ALUOpIMUL32HI
	// ALUOpIMADD32 computes src0*src1 + src2.
	ALUOpIMADD32
	// ALUOpIMADD64 computes the 64-bit src0*src1 + src2 into a 2-register
	// destination.
	ALUOpIMADD64
	// ALUOpISXT sign-extends from the bit position named by src1,
	// optionally shifting right by src2 first.
	ALUOpISXT
	// ALUOpMOVC merges src0 into the bytes of src1 enabled by the
	// destination's element mask.
	ALUOpMOVC

	numALUOps
)

// BackendOp enumerates the fixed-function backend operations.
type BackendOp uint16

const (
	BackendOpInvalid BackendOp = iota
	// BackendOpUVSWWRITE writes a varying-output burst.
	BackendOpUVSWWRITE
	// BackendOpUVSWEMIT emits the accumulated vertex.
	BackendOpUVSWEMIT
	// BackendOpUVSWENDTASK signals the end of the vertex task.
	BackendOpUVSWENDTASK
	// BackendOpFITR interpolates a varying without perspective correction.
	BackendOpFITR
	// BackendOpFITRP interpolates a varying with perspective correction
	// using the W coefficient triple.
	BackendOpFITRP
	BackendOpSMP1D
	BackendOpSMP2D
	BackendOpSMP3D
	// BackendOpLD loads a burst from global memory.
	BackendOpLD
	// BackendOpST stores a burst to global memory.
	BackendOpST
	// BackendOpATOMIC performs the read-modify-write named by its atomic
	// op modifier on a packed address+data block.
	BackendOpATOMIC
	// BackendOpATST runs the alpha/depth test logic; with the Never
	// modifier it kills the lane unconditionally.
	BackendOpATST
	// BackendOpSAVMSK saves an execution mask into a register.
	BackendOpSAVMSK
	// BackendOpEMITPIX forwards the pixel-output registers to the blender.
	BackendOpEMITPIX
	// BackendOpPCK packs per the format op modifier, one element per
	// repeat.
	BackendOpPCK
	// BackendOpUPCK unpacks per the format op modifier; the source element
	// is chosen by the source element-select modifier.
	BackendOpUPCK

	numBackendOps
)

// CtrlOp enumerates the control-flow operations.
type CtrlOp uint16

const (
	CtrlOpInvalid CtrlOp = iota
	CtrlOpNOP
	// CtrlOpEND terminates the shader.
	CtrlOpEND
	// CtrlOpBR branches to its target block.
	CtrlOpBR
	// CtrlOpCNDST opens a conditional construct: lanes failing the test
	// add src1 to their execution mask counter.
	CtrlOpCNDST
	// CtrlOpCNDEF flushes lanes whose counter was raised by a jump
	// sentinel and re-evaluates lane enables.
	CtrlOpCNDEF
	// CtrlOpCNDEND closes a construct: counters above zero drop by src1.
	CtrlOpCNDEND
	// CtrlOpCNDLT sets P0 where the counter is below src1 and re-enables
	// those lanes.
	CtrlOpCNDLT
	// CtrlOpWDF waits on a dependent-read counter fence.
	CtrlOpWDF
	// CtrlOpSETPRED evaluates its source as a boolean into P0.
	CtrlOpSETPRED
	// CtrlOpMUTEX locks or releases the inter-instance mutex.
	CtrlOpMUTEX

	numCtrlOps
)

// BitwiseOp enumerates the bitwise-pipeline operations.
type BitwiseOp uint16

const (
	BitwiseOpInvalid BitwiseOp = iota
	// BitwiseOpBYP0 bypasses a value through the bitwise pipeline.
	BitwiseOpBYP0
	BitwiseOpAND
	BitwiseOpOR
	BitwiseOpXOR
	BitwiseOpLSL
	BitwiseOpSHR
	BitwiseOpASR
	// BitwiseOpREV reverses the 32 bits of the source.
	BitwiseOpREV
	// BitwiseOpCBS counts set bits.
	BitwiseOpCBS
	// BitwiseOpFTB finds the top set bit.
	BitwiseOpFTB
	// BitwiseOpMSK generates ((1<<src0)-1) << src1.
	BitwiseOpMSK

	numBitwiseOps
)

// OpMod is an instruction-level modifier. Legality is per opcode; some
// modifiers additionally require or exclude each other.
type OpMod uint8

const (
	// Element types.
	OpModF32 OpMod = iota
	OpModU32
	OpModS32
	OpModU16
	OpModS16
	OpModU8
	OpModS8
	// Comparison functions.
	OpModL
	OpModLE
	OpModE
	OpModNE
	OpModGE
	OpModG
	// Select tests.
	OpModGZ
	OpModGEZ
	OpModZ
	OpModNZ
	// Integer signedness.
	OpModS
	// Pack behavior.
	OpModScale
	OpModRoundZero
	// Range-reduction halves.
	OpModPartA
	OpModPartB
	// Sampling.
	OpModProj
	OpModPPLOD
	OpModBias
	OpModReplace
	OpModTAO
	OpModGradient
	OpModSNO
	OpModSOO
	OpModInteger
	OpModNNCoords
	OpModFCNorm
	OpModF16
	OpModWrt
	OpModData
	OpModGather
	// Pack/unpack formats.
	OpModFmtU8888
	OpModFmtS8888
	OpModFmtU1616
	OpModFmtS1616
	OpModFmtU32
	OpModFmtS32
	OpModFmtF16F16
	OpModFmtF32
	// Atomics.
	OpModAtomIAdd
	OpModAtomIMin
	OpModAtomUMin
	OpModAtomIMax
	OpModAtomUMax
	OpModAtomAnd
	OpModAtomOr
	OpModAtomXor
	OpModAtomXchg
	// Alpha test.
	OpModNever
	OpModIFB
	// Conditional-mask tests.
	OpModAlways
	OpModP0True
	OpModP0False
	OpModPEAny
	// Branch lane scope.
	OpModAllInst
	OpModAnyInst
	// Mask save source.
	OpModVM
	// Mutex.
	OpModLock
	OpModRelease

	numOpMods
)

var opModNames = [numOpMods]string{
	OpModF32: "f32", OpModU32: "u32", OpModS32: "s32", OpModU16: "u16",
	OpModS16: "s16", OpModU8: "u8", OpModS8: "s8",
	OpModL: "l", OpModLE: "le", OpModE: "e", OpModNE: "ne", OpModGE: "ge", OpModG: "g",
	OpModGZ: "gz", OpModGEZ: "gez", OpModZ: "z", OpModNZ: "nz",
	OpModS: "s", OpModScale: "scale", OpModRoundZero: "roundzero",
	OpModPartA: "parta", OpModPartB: "partb",
	OpModProj: "proj", OpModPPLOD: "pplod", OpModBias: "bias",
	OpModReplace: "replace", OpModTAO: "tao", OpModGradient: "gradient",
	OpModSNO: "sno", OpModSOO: "soo", OpModInteger: "integer",
	OpModNNCoords: "nncoords", OpModFCNorm: "fcnorm", OpModF16: "f16",
	OpModWrt: "wrt", OpModData: "data", OpModGather: "gather",
	OpModFmtU8888: "u8888", OpModFmtS8888: "s8888", OpModFmtU1616: "u1616",
	OpModFmtS1616: "s1616", OpModFmtU32: "u32f", OpModFmtS32: "s32f",
	OpModFmtF16F16: "f16f16", OpModFmtF32: "f32f",
	OpModAtomIAdd: "iadd", OpModAtomIMin: "imin", OpModAtomUMin: "umin",
	OpModAtomIMax: "imax", OpModAtomUMax: "umax", OpModAtomAnd: "and",
	OpModAtomOr: "or", OpModAtomXor: "xor", OpModAtomXchg: "xchg",
	OpModNever: "never", OpModIFB: "ifb",
	OpModAlways: "always", OpModP0True: "p0_true", OpModP0False: "p0_false",
	OpModPEAny: "pe_any",
	OpModAllInst: "allinst", OpModAnyInst: "anyinst",
	OpModVM:   "vm",
	OpModLock: "lock", OpModRelease: "release",
}

// String implements fmt.Stringer.
func (m OpMod) String() string { return opModNames[m] }

// OpModSet is a bit set of OpMod.
type OpModSet uint64

// OpMods builds a set from individual modifiers.
func OpMods(mods ...OpMod) OpModSet {
	var s OpModSet
	for _, m := range mods {
		s |= 1 << m
	}
	return s
}

// Has reports whether m is in the set.
func (s OpModSet) Has(m OpMod) bool { return s&(1<<m) != 0 }

// With returns the set with m added.
func (s OpModSet) With(m OpMod) OpModSet { return s | 1<<m }

// SubsetOf reports whether every member of s is in o.
func (s OpModSet) SubsetOf(o OpModSet) bool { return s&^o == 0 }

// String implements fmt.Stringer.
func (s OpModSet) String() string {
	var parts []string
	for m := OpMod(0); m < numOpMods; m++ {
		if s.Has(m) {
			parts = append(parts, m.String())
		}
	}
	return strings.Join(parts, ".")
}

// SrcMod modifies how a source operand is read.
type SrcMod uint8

const (
	SrcModNeg SrcMod = 1 << iota
	SrcModAbs
	// SrcModE0..E3 select the source element for unpacks.
	SrcModE0
	SrcModE1
	SrcModE2
	SrcModE3
)

// String implements fmt.Stringer.
func (m SrcMod) String() string {
	var parts []string
	for _, e := range [...]struct {
		bit  SrcMod
		name string
	}{
		{SrcModNeg, "neg"}, {SrcModAbs, "abs"},
		{SrcModE0, "e0"}, {SrcModE1, "e1"}, {SrcModE2, "e2"}, {SrcModE3, "e3"},
	} {
		if m&e.bit != 0 {
			parts = append(parts, e.name)
		}
	}
	return strings.Join(parts, ".")
}

// DstMod modifies how a destination operand is written.
type DstMod uint8

const (
	// DstModE0..E3 are byte-lane write enables.
	DstModE0 DstMod = 1 << iota
	DstModE1
	DstModE2
	DstModE3
)

// String implements fmt.Stringer.
func (m DstMod) String() string {
	var parts []string
	for i, name := range [...]string{"e0", "e1", "e2", "e3"} {
		if m&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, ".")
}

// Dst is a destination operand slot.
type Dst struct {
	Ref Ref
	Mod DstMod
}

// Src is a source operand slot.
type Src struct {
	Ref Ref
	Mod SrcMod
}

// Instr is one machine instruction of any kind. Since Go doesn't have union
// types, Op is interpreted per Kind.
type Instr struct {
	Kind InstrKind
	Op   uint16

	Mods OpModSet
	Dsts []Dst
	Srcs []Src

	// Repeat is the SIMD replication factor; 0 for opcodes without repeat
	// support, otherwise at least 1.
	Repeat uint8

	// Target is the destination block of a branch.
	Target *Block
	// Link threads a loop's opening mask instruction to its back-edge
	// branch so scheduling can recover the loop extent.
	Link *Instr

	// End marks the shader's final instruction group.
	End bool
	// GroupNext marks this instruction as co-issued with its successor.
	GroupNext bool

	Block    *Block
	Comments []string

	// index is the position in Block.Instrs, maintained by the Builder.
	index int
}

// ALU returns the ALU opcode; the instruction must be InstrKindALU.
func (i *Instr) ALU() ALUOp { return ALUOp(i.Op) }

// BackendOp returns the backend opcode.
func (i *Instr) BackendOp() BackendOp { return BackendOp(i.Op) }

// CtrlOp returns the control opcode.
func (i *Instr) CtrlOp() CtrlOp { return CtrlOp(i.Op) }

// BitwiseOp returns the bitwise opcode.
func (i *Instr) BitwiseOp() BitwiseOp { return BitwiseOp(i.Op) }

// Info returns the static legality info for this instruction's opcode.
func (i *Instr) Info() *OpInfo {
	switch i.Kind {
	case InstrKindALU:
		return &aluOpInfos[i.Op]
	case InstrKindBackend:
		return &backendOpInfos[i.Op]
	case InstrKindCtrl:
		return &ctrlOpInfos[i.Op]
	case InstrKindBitwise:
		return &bitwiseOpInfos[i.Op]
	}
	panic("BUG: invalid instruction kind")
}

// OpName returns the mnemonic.
func (i *Instr) OpName() string { return i.Info().Name }

// Index returns the position within the containing block.
func (i *Instr) Index() int { return i.index }

// SetBranchTarget points a branch at blk, registering the use.
func (i *Instr) SetBranchTarget(blk *Block) {
	if i.Target != nil {
		panic("BUG: branch already has a target")
	}
	i.Target = blk
	blk.Uses = append(blk.Uses, i)
}

// Comment attaches a debug comment; advisory only.
func (i *Instr) Comment(c string) *Instr {
	i.Comments = append(i.Comments, c)
	return i
}

// String implements fmt.Stringer.
func (i *Instr) String() string {
	var sb strings.Builder
	sb.WriteString(i.OpName())
	if i.Mods != 0 {
		sb.WriteByte('.')
		sb.WriteString(i.Mods.String())
	}
	if i.Repeat > 1 {
		fmt.Fprintf(&sb, " (x%d)", i.Repeat)
	}
	for n, d := range i.Dsts {
		if n > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte(' ')
		sb.WriteString(d.Ref.String())
		if d.Mod != 0 {
			sb.WriteByte('.')
			sb.WriteString(d.Mod.String())
		}
	}
	if len(i.Dsts) > 0 && len(i.Srcs) > 0 {
		sb.WriteString(" <-")
	}
	for n, s := range i.Srcs {
		if n > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte(' ')
		if s.Mod&SrcModNeg != 0 {
			sb.WriteByte('-')
		}
		if s.Mod&SrcModAbs != 0 {
			sb.WriteByte('|')
		}
		sb.WriteString(s.Ref.String())
		if s.Mod&SrcModAbs != 0 {
			sb.WriteByte('|')
		}
		if em := s.Mod &^ (SrcModNeg | SrcModAbs); em != 0 {
			sb.WriteByte('.')
			sb.WriteString(em.String())
		}
	}
	if i.Target != nil {
		fmt.Fprintf(&sb, " block%d", i.Target.Label)
	}
	if i.End {
		sb.WriteString(" {end}")
	}
	for _, c := range i.Comments {
		sb.WriteString(" ; ")
		sb.WriteString(c)
	}
	return sb.String()
}
