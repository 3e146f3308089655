package mir

import "fmt"

// RefKind discriminates the operand reference union.
type RefKind uint8

const (
	RefKindInvalid RefKind = iota
	// RefKindReg references a single register.
	RefKindReg
	// RefKindRegArray references a contiguous register array.
	RefKindRegArray
	// RefKindRegIndexed references a register file entry addressed through
	// an index register.
	RefKindRegIndexed
	// RefKindImm is a 32-bit immediate.
	RefKindImm
	// RefKindVal is a raw unsigned value consumed by instruction encoding,
	// not a register-file datum (e.g. a burst length).
	RefKindVal
	// RefKindIO names an internal pipeline port.
	RefKindIO
	// RefKindDRC names a dependent-read counter.
	RefKindDRC
)

// IO enumerates the internal pipeline ports instructions can source from or
// feed into within a group.
type IO uint8

const (
	IONone IO = iota
	IOS0
	IOS1
	IOS2
	IOS3
	IOS4
	IOS5
	IOW0
	IOW1
	IOFT0
	IOFT1
	IOFT2
	IOFT3
	IOFTE
	IOP0
	IOPE
)

var ioNames = [...]string{
	IONone: "_", IOS0: "s0", IOS1: "s1", IOS2: "s2", IOS3: "s3",
	IOS4: "s4", IOS5: "s5", IOW0: "w0", IOW1: "w1",
	IOFT0: "ft0", IOFT1: "ft1", IOFT2: "ft2", IOFT3: "ft3", IOFTE: "fte",
	IOP0: "p0", IOPE: "pe",
}

// String implements fmt.Stringer.
func (io IO) String() string { return ioNames[io] }

// Ref is one operand reference: a register, a regarray, an immediate, a raw
// value, an internal pipeline port, or a dependent-read counter.
type Ref struct {
	Kind  RefKind
	Reg   *Reg
	Array *RegArray
	// Idx is the index register for RefKindRegIndexed.
	Idx *Reg
	// U holds the immediate or raw value payload.
	U uint32
	// Port is the IO port for RefKindIO.
	Port IO
	// Drc is the counter index for RefKindDRC.
	Drc uint8
}

// RefReg references a single register.
func RefReg(r *Reg) Ref { return Ref{Kind: RefKindReg, Reg: r} }

// RefRegArray references a regarray.
func RefRegArray(a *RegArray) Ref { return Ref{Kind: RefKindRegArray, Array: a} }

// RefRegIndexed references reg offset through the given index register.
func RefRegIndexed(r *Reg, idx *Reg) Ref { return Ref{Kind: RefKindRegIndexed, Reg: r, Idx: idx} }

// RefImm is a 32-bit immediate operand.
func RefImm(v uint32) Ref { return Ref{Kind: RefKindImm, U: v} }

// RefVal is a raw unsigned operand consumed directly by the encoding.
func RefVal(v uint32) Ref { return Ref{Kind: RefKindVal, U: v} }

// RefIO references an internal pipeline port.
func RefIO(p IO) Ref { return Ref{Kind: RefKindIO, Port: p} }

// RefDRC references a dependent-read counter.
func RefDRC(i uint8) Ref { return Ref{Kind: RefKindDRC, Drc: i} }

// RefNone is the absent-operand reference.
func RefNone() Ref { return Ref{} }

// Valid reports whether the reference is present.
func (r Ref) Valid() bool { return r.Kind != RefKindInvalid }

// Size returns the register count the reference covers (0 for non-register
// references).
func (r Ref) Size() int {
	switch r.Kind {
	case RefKindReg, RefKindRegIndexed:
		return 1
	case RefKindRegArray:
		return r.Array.Size()
	}
	return 0
}

// String implements fmt.Stringer.
func (r Ref) String() string {
	switch r.Kind {
	case RefKindInvalid:
		return "_"
	case RefKindReg:
		return r.Reg.String()
	case RefKindRegArray:
		return r.Array.String()
	case RefKindRegIndexed:
		return fmt.Sprintf("%s[%s]", r.Reg, r.Idx)
	case RefKindImm:
		return fmt.Sprintf("0x%x", r.U)
	case RefKindVal:
		return fmt.Sprintf("#%d", r.U)
	case RefKindIO:
		return r.Port.String()
	case RefKindDRC:
		return fmt.Sprintf("drc%d", r.Drc)
	}
	panic("BUG: unknown ref kind")
}

// Ref64 is the dual view of a 64-bit value: the whole 2-register array and
// its 32-bit halves.
type Ref64 struct {
	Ref64 Ref
	Lo32  Ref
	Hi32  Ref
}

// Ref64FromArray builds the dual view over a 2-register array.
func (s *Shader) Ref64FromArray(a *RegArray) Ref64 {
	if a.Size() != 2 {
		panic(fmt.Sprintf("BUG: 64-bit reference over %d registers", a.Size()))
	}
	return Ref64{
		Ref64: RefRegArray(a),
		Lo32:  RefReg(a.Regs[0]),
		Hi32:  RefReg(a.Regs[1]),
	}
}
