// Package mir defines the machine IR the selector emits: hardware register
// classes, contiguous register arrays, operand references, the four
// instruction kinds with their legality tables, basic blocks, and the Shader
// object owning all of it.
package mir

import "fmt"

// RegClass identifies a hardware register file.
type RegClass uint8

const (
	RegClassInvalid RegClass = iota
	// RegClassSSA shadows SSA values until register allocation rewrites
	// every reference to RegClassTemp.
	RegClassSSA
	// RegClassTemp is the general-purpose temporary file.
	RegClassTemp
	// RegClassCoeff holds per-varying interpolation coefficient triples.
	RegClassCoeff
	// RegClassConst is the read-only hardware constant file.
	RegClassConst
	// RegClassShared holds uniform (per-draw) data staged by the driver.
	RegClassShared
	// RegClassSpecial exposes fixed-function inputs like pixel position.
	RegClassSpecial
	// RegClassIntern is the small internal file used by grouped sequences.
	RegClassIntern
	// RegClassPixOut is the fragment output file.
	RegClassPixOut
	// RegClassVtxIn is the vertex attribute input file.
	RegClassVtxIn
	// RegClassVtxOut is the varying output file.
	RegClassVtxOut
	// RegClassIndex holds the two indexed-addressing registers.
	RegClassIndex

	NumRegClasses = int(RegClassIndex) + 1
)

type regClassInfo struct {
	name   string
	prefix string
	// count is the hardware register count; 0 means the class grows
	// unbounded until allocation assigns it a bounded class.
	count uint32
}

var regClassInfos = [NumRegClasses]regClassInfo{
	RegClassInvalid: {name: "invalid", prefix: "!"},
	RegClassSSA:     {name: "ssa", prefix: "%"},
	RegClassTemp:    {name: "temp", prefix: "r", count: 248},
	RegClassCoeff:   {name: "coeff", prefix: "cf", count: 4096},
	RegClassConst:   {name: "const", prefix: "sc", count: 240},
	RegClassShared:  {name: "shared", prefix: "sh", count: 4096},
	RegClassSpecial: {name: "special", prefix: "sr", count: 240},
	RegClassIntern:  {name: "intern", prefix: "i", count: 8},
	RegClassPixOut:  {name: "pixout", prefix: "po", count: 8},
	RegClassVtxIn:   {name: "vtxin", prefix: "vi", count: 248},
	RegClassVtxOut:  {name: "vtxout", prefix: "vo", count: 256},
	RegClassIndex:   {name: "index", prefix: "idx", count: 2},
}

// String implements fmt.Stringer.
func (c RegClass) String() string { return regClassInfos[c].name }

// Count returns the hardware register count for the class, 0 if unbounded.
func (c RegClass) Count() uint32 { return regClassInfos[c].count }

// Reg is one physical (or pre-allocation SSA-shadow) register. Regs are
// interned per Shader: Shader.Reg returns the same *Reg for the same
// (class, index) pair.
type Reg struct {
	Class RegClass
	Index uint32

	// Parent is set when this register is a member of a RegArray.
	Parent *RegArray

	// Uses and Writes list the instruction operands referencing this
	// register, maintained by the Builder and checked by the validator.
	Uses   []*Instr
	Writes []*Instr

	// Dirty marks registers whose contents an instruction group leaves in
	// flight; only meaningful after grouping.
	Dirty bool
}

// String implements fmt.Stringer.
func (r *Reg) String() string {
	return fmt.Sprintf("%s%d", regClassInfos[r.Class].prefix, r.Index)
}

// RegArray is an ownership-grouping of contiguous same-class registers.
// A sub-array view of a larger array carries the larger array as Parent;
// parents never themselves have parents.
type RegArray struct {
	Regs   []*Reg
	Parent *RegArray
}

// Class returns the register class shared by all members.
func (a *RegArray) Class() RegClass { return a.Regs[0].Class }

// Base returns the index of the first member register.
func (a *RegArray) Base() uint32 { return a.Regs[0].Index }

// Size returns the member count.
func (a *RegArray) Size() int { return len(a.Regs) }

// String implements fmt.Stringer.
func (a *RegArray) String() string {
	return fmt.Sprintf("%s%d..%d", regClassInfos[a.Class()].prefix, a.Base(), a.Base()+uint32(a.Size())-1)
}

type regKey struct {
	class RegClass
	index uint32
}

type regArrayKey struct {
	class RegClass
	base  uint32
	size  uint32
}

// Reg returns the register for (class, index), creating it if absent.
func (s *Shader) Reg(class RegClass, index uint32) *Reg {
	k := regKey{class, index}
	if r, ok := s.regCache[k]; ok {
		return r
	}
	r := &Reg{Class: class, Index: index}
	s.regCache[k] = r
	s.regsByClass[class] = append(s.regsByClass[class], r)
	return r
}

// RegArray returns the regarray for (class, base, size), creating it and its
// member registers if absent. Members of an existing parent array keep their
// identity; the new array links to the parent when it is a strict sub-range.
func (s *Shader) RegArray(class RegClass, base, size uint32) *RegArray {
	if size == 0 {
		panic("BUG: zero-size regarray")
	}
	k := regArrayKey{class, base, size}
	if a, ok := s.regArrayCache[k]; ok {
		return a
	}
	a := &RegArray{Regs: make([]*Reg, size)}
	for i := uint32(0); i < size; i++ {
		r := s.Reg(class, base+i)
		a.Regs[i] = r
	}
	// Find an enclosing array to parent to; sub-array nesting is exactly
	// one level deep, so an enclosing array must itself be parentless.
	// The largest candidate wins, creation order breaking ties, so the
	// choice never depends on map order.
	for _, existing := range s.regArrays {
		if existing.Class() != class || existing.Parent != nil {
			continue
		}
		esize := uint32(existing.Size())
		if existing.Base() <= base && base+size <= existing.Base()+esize && esize > size {
			if a.Parent == nil || esize > uint32(a.Parent.Size()) {
				a.Parent = existing
			}
		}
	}
	if a.Parent == nil {
		for i := uint32(0); i < size; i++ {
			a.Regs[i].Parent = a
		}
	}
	s.regArrayCache[k] = a
	s.regArrays = append(s.regArrays, a)
	return a
}

// SubArray returns the size-length view of a starting at offset, cached like
// any other regarray and parented to a.
func (s *Shader) SubArray(a *RegArray, offset, size uint32) *RegArray {
	if offset+size > uint32(a.Size()) {
		panic(fmt.Sprintf("BUG: sub-array [%d,%d) exceeds %s", offset, offset+size, a))
	}
	if a.Parent != nil {
		panic("BUG: sub-array of a sub-array")
	}
	sub := s.RegArray(a.Class(), a.Base()+offset, size)
	return sub
}

// UsedRegs returns how many registers of the class are referenced, verifying
// that used indices are contiguous from zero.
func (s *Shader) UsedRegs(class RegClass) uint32 {
	var max uint32
	var n uint32
	for _, r := range s.regsByClass[class] {
		if len(r.Uses) == 0 && len(r.Writes) == 0 {
			continue
		}
		n++
		if r.Index+1 > max {
			max = r.Index + 1
		}
	}
	if n != max {
		panic(fmt.Sprintf("BUG: %s register indices not contiguous: %d used, max index %d", class, n, max-1))
	}
	return n
}
