package mir

// RefMask is a bit set of legal RefKinds for an operand slot.
type RefMask uint16

const (
	rmReg        RefMask = 1 << RefKindReg
	rmRegArray   RefMask = 1 << RefKindRegArray
	rmRegIndexed RefMask = 1 << RefKindRegIndexed
	rmImm        RefMask = 1 << RefKindImm
	rmVal        RefMask = 1 << RefKindVal
	rmIO         RefMask = 1 << RefKindIO
	rmDRC        RefMask = 1 << RefKindDRC

	rmAnyReg = rmReg | rmRegIndexed
	rmSrcGP  = rmAnyReg | rmImm | rmIO
	rmDstGP  = rmAnyReg | rmIO
)

// Has reports whether the kind is legal for the slot.
func (m RefMask) Has(k RefKind) bool { return m&(1<<k) != 0 }

// OpInfo is the static legality declaration for one opcode.
type OpInfo struct {
	Name    string
	NumDsts int
	NumSrcs int
	// DstRefs/SrcRefs hold the legal reference kinds per slot.
	DstRefs []RefMask
	SrcRefs []RefMask
	// SrcMods/DstMods hold the legal modifier bits per slot.
	SrcMods []SrcMod
	DstMods []DstMod
	// Mods is the legal op-modifier set.
	Mods OpModSet
	// Require lists (a, b) pairs where using a demands b.
	Require [][2]OpMod
	// Exclude lists (a, b) pairs that must not appear together.
	Exclude [][2]OpMod
	// MaxRepeat is the largest legal repeat; 0 means no repeat support.
	MaxRepeat uint8
	// RepeatDsts/RepeatSrcs are bit masks of slots replicated by repeat.
	RepeatDsts uint16
	RepeatSrcs uint16
	// DstStride/SrcStride give extra registers per slot: a slot covers
	// stride+1 registers per element.
	DstStride []uint8
	SrcStride []uint8
	// DstValnum/SrcValnum name the source slot whose raw value scales the
	// slot's expected register count; -1 when unused.
	DstValnum []int8
	SrcValnum []int8
	// Pseudo ops must be lowered away before grouping.
	Pseudo bool
	// EndsBlock ops terminate their basic block.
	EndsBlock bool
	// HasTarget ops carry a branch target.
	HasTarget bool
	// WholePipeline ops occupy every phase and cannot be co-issued.
	WholePipeline bool
}

// StrideNone marks a slot whose register count the op info cannot pin
// down; the size check skips it.
const StrideNone uint8 = 0xff

func strides(vs ...uint8) []uint8 { return vs }
func valnums(vs ...int8) []int8   { return vs }

var aluOpInfos = [numALUOps]OpInfo{
	ALUOpMOV: {
		Name: "mov", NumDsts: 1, NumSrcs: 1,
		DstRefs: []RefMask{rmAnyReg | rmIO},
		SrcRefs: []RefMask{rmSrcGP},
		Pseudo:  true,
	},
	ALUOpMBYP: {
		Name: "mbyp", NumDsts: 1, NumSrcs: 1,
		DstRefs: []RefMask{rmDstGP},
		SrcRefs: []RefMask{rmSrcGP},
		SrcMods: []SrcMod{SrcModNeg | SrcModAbs},
	},
	ALUOpFADD: {
		Name: "fadd", NumDsts: 1, NumSrcs: 2,
		DstRefs: []RefMask{rmDstGP},
		SrcRefs: []RefMask{rmSrcGP, rmSrcGP},
		// Only the first source has a negate slot; commutative selection
		// swaps operands when src1 alone is negated.
		SrcMods: []SrcMod{SrcModNeg | SrcModAbs, SrcModAbs},
	},
	ALUOpFMUL: {
		Name: "fmul", NumDsts: 1, NumSrcs: 2,
		DstRefs: []RefMask{rmDstGP},
		SrcRefs: []RefMask{rmSrcGP, rmSrcGP},
		SrcMods: []SrcMod{SrcModNeg | SrcModAbs, SrcModAbs},
	},
	ALUOpFMAD: {
		Name: "fmad", NumDsts: 1, NumSrcs: 3,
		DstRefs: []RefMask{rmDstGP},
		SrcRefs: []RefMask{rmSrcGP, rmSrcGP, rmSrcGP},
		SrcMods: []SrcMod{SrcModNeg | SrcModAbs, SrcModNeg | SrcModAbs, SrcModNeg | SrcModAbs},
	},
	ALUOpFRCP:  unaryFloat("frcp"),
	ALUOpFRSQ:  unaryFloat("frsq"),
	ALUOpFLOG2: unaryFloat("flog2"),
	ALUOpFEXP2: unaryFloat("fexp2"),
	ALUOpFFLR:  unaryFloat("fflr"),
	ALUOpFRED: {
		Name: "fred", NumDsts: 1, NumSrcs: 2,
		DstRefs: []RefMask{rmDstGP},
		SrcRefs: []RefMask{rmImm | rmAnyReg, rmSrcGP},
		Mods:    OpMods(OpModPartA, OpModPartB),
		Exclude: [][2]OpMod{{OpModPartA, OpModPartB}},
	},
	ALUOpFSINC: {
		Name: "fsinc", NumDsts: 1, NumSrcs: 1,
		DstRefs: []RefMask{rmDstGP},
		SrcRefs: []RefMask{rmSrcGP},
	},
	ALUOpGETPRED: {
		Name: "getpred", NumDsts: 1, NumSrcs: 1,
		DstRefs: []RefMask{rmAnyReg},
		SrcRefs: []RefMask{rmIO},
	},
	ALUOpFDSX:  unaryFloat("fdsx"),
	ALUOpFDSXF: unaryFloat("fdsxf"),
	ALUOpFDSY:  unaryFloat("fdsy"),
	ALUOpFDSYF: unaryFloat("fdsyf"),
	ALUOpMIN: {
		Name: "min", NumDsts: 1, NumSrcs: 2,
		DstRefs: []RefMask{rmDstGP},
		SrcRefs: []RefMask{rmSrcGP, rmSrcGP},
		SrcMods: []SrcMod{SrcModNeg | SrcModAbs, SrcModNeg | SrcModAbs},
		Mods:    elemTypeMods,
	},
	ALUOpMAX: {
		Name: "max", NumDsts: 1, NumSrcs: 2,
		DstRefs: []RefMask{rmDstGP},
		SrcRefs: []RefMask{rmSrcGP, rmSrcGP},
		SrcMods: []SrcMod{SrcModNeg | SrcModAbs, SrcModNeg | SrcModAbs},
		Mods:    elemTypeMods,
	},
	ALUOpCMP: {
		Name: "cmp", NumDsts: 1, NumSrcs: 2,
		DstRefs: []RefMask{rmDstGP},
		SrcRefs: []RefMask{rmSrcGP, rmSrcGP},
		SrcMods: []SrcMod{SrcModNeg | SrcModAbs, SrcModNeg | SrcModAbs},
		Mods:    elemTypeMods | OpMods(OpModL, OpModLE, OpModE, OpModNE, OpModGE, OpModG),
	},
	ALUOpCSEL: {
		Name: "csel", NumDsts: 1, NumSrcs: 3,
		DstRefs: []RefMask{rmDstGP},
		SrcRefs: []RefMask{rmSrcGP, rmSrcGP, rmSrcGP},
		SrcMods: []SrcMod{0, SrcModNeg | SrcModAbs, SrcModNeg | SrcModAbs},
		Mods:    OpMods(OpModGZ, OpModGEZ, OpModZ, OpModNZ, OpModF32, OpModU32, OpModS32),
	},
	ALUOpIADD8:  binaryInt("iadd8"),
	ALUOpIADD16: binaryInt("iadd16"),
	ALUOpIADD32: binaryInt("iadd32"),
	ALUOpIADD64: {
		Name: "iadd64", NumDsts: 1, NumSrcs: 2,
		DstRefs:   []RefMask{rmRegArray},
		SrcRefs:   []RefMask{rmRegArray | rmImm, rmRegArray | rmImm},
		SrcMods:   []SrcMod{SrcModNeg | SrcModAbs, SrcModNeg | SrcModAbs},
		Mods:      OpMods(OpModS),
		DstStride: strides(1),
		SrcStride: strides(1, 1),
	},
	ALUOpIMUL8:  binaryInt("imul8"),
	ALUOpIMUL16: binaryInt("imul16"),
	ALUOpIMUL32: binaryInt("imul32"),
	ALUOpIMUL32HI: {
		Name: "imul32hi", NumDsts: 1, NumSrcs: 2,
		DstRefs: []RefMask{rmDstGP},
		SrcRefs: []RefMask{rmSrcGP, rmSrcGP},
		Mods:    OpMods(OpModS),
	},
	ALUOpIMADD32: {
		Name: "imadd32", NumDsts: 1, NumSrcs: 3,
		DstRefs: []RefMask{rmDstGP},
		SrcRefs: []RefMask{rmSrcGP, rmSrcGP, rmSrcGP},
		Mods:    OpMods(OpModS),
	},
	ALUOpIMADD64: {
		Name: "imadd64", NumDsts: 1, NumSrcs: 3,
		DstRefs:   []RefMask{rmRegArray},
		SrcRefs:   []RefMask{rmSrcGP, rmSrcGP, rmRegArray},
		Mods:      OpMods(OpModS),
		DstStride: strides(1),
		SrcStride: strides(0, 0, 1),
	},
	ALUOpISXT: {
		Name: "isxt", NumDsts: 1, NumSrcs: 3,
		DstRefs: []RefMask{rmDstGP},
		SrcRefs: []RefMask{rmSrcGP, rmImm | rmAnyReg, rmImm | rmAnyReg},
	},
	ALUOpMOVC: {
		Name: "movc", NumDsts: 1, NumSrcs: 2,
		DstRefs: []RefMask{rmAnyReg},
		DstMods: []DstMod{DstModE0 | DstModE1 | DstModE2 | DstModE3},
		SrcRefs: []RefMask{rmSrcGP, rmSrcGP},
	},
}

var elemTypeMods = OpMods(OpModF32, OpModU32, OpModS32, OpModU16, OpModS16, OpModU8, OpModS8)

func unaryFloat(name string) OpInfo {
	return OpInfo{
		Name: name, NumDsts: 1, NumSrcs: 1,
		DstRefs: []RefMask{rmDstGP},
		SrcRefs: []RefMask{rmSrcGP},
		SrcMods: []SrcMod{SrcModNeg | SrcModAbs},
	}
}

func binaryInt(name string) OpInfo {
	return OpInfo{
		Name: name, NumDsts: 1, NumSrcs: 2,
		DstRefs: []RefMask{rmDstGP},
		SrcRefs: []RefMask{rmSrcGP, rmSrcGP},
		SrcMods: []SrcMod{SrcModNeg | SrcModAbs, SrcModNeg | SrcModAbs},
		Mods:    OpMods(OpModS),
	}
}

var smpMods = OpMods(
	OpModProj, OpModPPLOD, OpModBias, OpModReplace, OpModTAO,
	OpModGradient, OpModSNO, OpModSOO, OpModInteger, OpModNNCoords,
	OpModFCNorm, OpModF16, OpModWrt, OpModData, OpModGather,
)

func smpOpInfo(name string) OpInfo {
	return OpInfo{
		Name: name, NumDsts: 1, NumSrcs: 5,
		DstRefs: []RefMask{rmAnyReg | rmRegArray},
		// drc, image state, sampler state, packed sample data, channels.
		// The sample data width depends on the accumulated fields, so its
		// slot is not size-checked.
		SrcRefs:   []RefMask{rmDRC, rmRegArray, rmRegArray, rmRegArray | rmAnyReg, rmVal},
		SrcStride: strides(0, 3, 3, StrideNone, 0),
		DstValnum: valnums(4),
		Mods:      smpMods,
		Require:   [][2]OpMod{{OpModBias, OpModPPLOD}, {OpModReplace, OpModPPLOD}},
		Exclude:   [][2]OpMod{{OpModBias, OpModReplace}, {OpModInteger, OpModFCNorm}},
	}
}

var backendOpInfos = [numBackendOps]OpInfo{
	BackendOpUVSWWRITE: {
		Name: "uvsw.write", NumDsts: 1, NumSrcs: 1,
		DstRefs:    []RefMask{rmAnyReg | rmRegArray},
		SrcRefs:    []RefMask{rmAnyReg | rmRegArray},
		MaxRepeat:  16,
		RepeatDsts: 1 << 0,
		RepeatSrcs: 1 << 0,
	},
	BackendOpUVSWEMIT:    {Name: "uvsw.emit", WholePipeline: true},
	BackendOpUVSWENDTASK: {Name: "uvsw.endtask", WholePipeline: true},
	BackendOpFITR: {
		Name: "fitr", NumDsts: 1, NumSrcs: 2,
		DstRefs:    []RefMask{rmAnyReg | rmRegArray},
		SrcRefs:    []RefMask{rmDRC, rmRegArray},
		SrcStride:  strides(0, 2),
		MaxRepeat:  4,
		RepeatDsts: 1 << 0,
		RepeatSrcs: 1 << 1,
	},
	BackendOpFITRP: {
		Name: "fitrp", NumDsts: 1, NumSrcs: 3,
		DstRefs:    []RefMask{rmAnyReg | rmRegArray},
		SrcRefs:    []RefMask{rmDRC, rmRegArray, rmRegArray},
		SrcStride:  strides(0, 2, 2),
		MaxRepeat:  4,
		RepeatDsts: 1 << 0,
		RepeatSrcs: 1 << 1,
	},
	BackendOpSMP1D: smpOpInfo("smp1d"),
	BackendOpSMP2D: smpOpInfo("smp2d"),
	BackendOpSMP3D: smpOpInfo("smp3d"),
	BackendOpLD: {
		Name: "ld", NumDsts: 1, NumSrcs: 3,
		DstRefs:   []RefMask{rmAnyReg | rmRegArray},
		SrcRefs:   []RefMask{rmDRC, rmVal, rmRegArray},
		SrcStride: strides(0, 0, 1),
		DstValnum: valnums(1),
	},
	BackendOpST: {
		Name: "st", NumDsts: 0, NumSrcs: 4,
		SrcRefs:   []RefMask{rmDRC, rmVal, rmRegArray, rmAnyReg | rmRegArray},
		SrcStride: strides(0, 0, 1, 0),
		SrcValnum: valnums(-1, -1, -1, 1),
	},
	BackendOpATOMIC: {
		Name: "atomic", NumDsts: 1, NumSrcs: 2,
		DstRefs:   []RefMask{rmAnyReg},
		SrcRefs:   []RefMask{rmDRC, rmRegArray},
		SrcStride: strides(0, 2),
		Mods: OpMods(OpModAtomIAdd, OpModAtomIMin, OpModAtomUMin,
			OpModAtomIMax, OpModAtomUMax, OpModAtomAnd, OpModAtomOr,
			OpModAtomXor, OpModAtomXchg),
	},
	BackendOpATST: {
		Name: "atst", NumDsts: 0, NumSrcs: 2,
		SrcRefs: []RefMask{rmSrcGP, rmSrcGP},
		Mods:    OpMods(OpModNever, OpModE, OpModNE, OpModIFB),
		Exclude: [][2]OpMod{{OpModNever, OpModE}, {OpModNever, OpModNE}},
	},
	BackendOpSAVMSK: {
		Name: "savmsk", NumDsts: 1,
		DstRefs: []RefMask{rmAnyReg},
		Mods:    OpMods(OpModVM),
	},
	BackendOpEMITPIX: {Name: "emitpix", WholePipeline: true},
	BackendOpPCK: {
		Name: "pck", NumDsts: 1, NumSrcs: 1,
		DstRefs:    []RefMask{rmDstGP},
		SrcRefs:    []RefMask{rmSrcGP | rmRegArray},
		Mods:       pckFmtMods | OpMods(OpModScale, OpModRoundZero),
		MaxRepeat:  4,
		RepeatSrcs: 1 << 0,
	},
	BackendOpUPCK: {
		Name: "upck", NumDsts: 1, NumSrcs: 1,
		DstRefs:    []RefMask{rmDstGP | rmRegArray},
		SrcRefs:    []RefMask{rmSrcGP},
		SrcMods:    []SrcMod{SrcModE0 | SrcModE1 | SrcModE2 | SrcModE3},
		Mods:       pckFmtMods | OpMods(OpModScale),
		MaxRepeat:  4,
		RepeatDsts: 1 << 0,
	},
}

var pckFmtMods = OpMods(
	OpModFmtU8888, OpModFmtS8888, OpModFmtU1616, OpModFmtS1616,
	OpModFmtU32, OpModFmtS32, OpModFmtF16F16, OpModFmtF32,
)

var cndTestMods = OpMods(OpModAlways, OpModP0True, OpModP0False)

var ctrlOpInfos = [numCtrlOps]OpInfo{
	CtrlOpNOP: {Name: "nop"},
	CtrlOpEND: {Name: "end", EndsBlock: true},
	CtrlOpBR: {
		Name:      "br",
		Mods:      cndTestMods | OpMods(OpModAllInst, OpModAnyInst),
		Exclude:   [][2]OpMod{{OpModAllInst, OpModAnyInst}},
		EndsBlock: true,
		HasTarget: true,
	},
	CtrlOpCNDST: {
		Name: "cndst", NumDsts: 1, NumSrcs: 1,
		DstRefs:   []RefMask{rmAnyReg},
		SrcRefs:   []RefMask{rmImm},
		Mods:      cndTestMods,
		EndsBlock: true,
	},
	CtrlOpCNDEF: {
		Name: "cndef", NumDsts: 1, NumSrcs: 1,
		DstRefs:   []RefMask{rmAnyReg},
		SrcRefs:   []RefMask{rmImm},
		Mods:      cndTestMods | OpMods(OpModNever, OpModPEAny),
		EndsBlock: true,
	},
	CtrlOpCNDEND: {
		Name: "cndend", NumDsts: 1, NumSrcs: 1,
		DstRefs:   []RefMask{rmAnyReg},
		SrcRefs:   []RefMask{rmImm},
		EndsBlock: true,
	},
	CtrlOpCNDLT: {
		Name: "cndlt", NumDsts: 2, NumSrcs: 1,
		DstRefs:   []RefMask{rmAnyReg, rmIO},
		SrcRefs:   []RefMask{rmImm},
		EndsBlock: true,
	},
	CtrlOpWDF: {
		Name: "wdf", NumSrcs: 1,
		SrcRefs: []RefMask{rmDRC},
	},
	CtrlOpSETPRED: {
		Name: "setpred", NumDsts: 1, NumSrcs: 1,
		DstRefs: []RefMask{rmIO},
		SrcRefs: []RefMask{rmSrcGP},
	},
	CtrlOpMUTEX: {
		Name:    "mutex",
		Mods:    OpMods(OpModLock, OpModRelease),
		Exclude: [][2]OpMod{{OpModLock, OpModRelease}},
	},
}

var bitwiseOpInfos = [numBitwiseOps]OpInfo{
	BitwiseOpBYP0: {
		Name: "byp0", NumDsts: 1, NumSrcs: 1,
		DstRefs: []RefMask{rmDstGP},
		SrcRefs: []RefMask{rmSrcGP},
	},
	BitwiseOpAND: binaryBitwise("and"),
	BitwiseOpOR:  binaryBitwise("or"),
	BitwiseOpXOR: binaryBitwise("xor"),
	BitwiseOpLSL: binaryBitwise("lsl"),
	BitwiseOpSHR: binaryBitwise("shr"),
	BitwiseOpASR: binaryBitwise("asr"),
	BitwiseOpREV: {
		Name: "rev", NumDsts: 1, NumSrcs: 1,
		DstRefs: []RefMask{rmDstGP},
		SrcRefs: []RefMask{rmSrcGP},
	},
	BitwiseOpCBS: {
		Name: "cbs", NumDsts: 1, NumSrcs: 1,
		DstRefs: []RefMask{rmDstGP},
		SrcRefs: []RefMask{rmSrcGP},
	},
	BitwiseOpFTB: {
		Name: "ftb", NumDsts: 1, NumSrcs: 1,
		DstRefs: []RefMask{rmDstGP},
		SrcRefs: []RefMask{rmSrcGP},
	},
	BitwiseOpMSK: {
		Name: "msk", NumDsts: 1, NumSrcs: 2,
		DstRefs: []RefMask{rmDstGP},
		SrcRefs: []RefMask{rmImm | rmAnyReg, rmImm | rmAnyReg},
	},
}

func binaryBitwise(name string) OpInfo {
	return OpInfo{
		Name: name, NumDsts: 1, NumSrcs: 2,
		DstRefs: []RefMask{rmDstGP},
		SrcRefs: []RefMask{rmSrcGP, rmSrcGP},
	}
}
