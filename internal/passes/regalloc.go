package passes

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/tilegpu/heron/internal/mir"
)

// RegAlloc rewrites every scratch (SSA-shadow) register reference to a
// hardware temporary. Allocation is linear scan over the block-order
// instruction sequence. The unit of allocation is the top-level regarray
// where one exists, so members and sub-array views keep their relative
// offsets and land contiguously; standalone registers allocate alone.
//
// Units referenced before a loop and again inside it must survive every
// iteration, so their interval extends to the loop's back edge; the loop
// extents are recovered from the link between each loop's opening mask
// instruction and its back-edge branch.
func RegAlloc(s *mir.Shader) {
	a := &allocator{
		s:        s,
		interval: make(map[allocUnit]*unitInterval),
	}
	a.scan()
	a.extendOverLoops()
	a.allocate()
	a.rewrite()
}

// allocUnit is either a parentless SSA regarray or a parentless SSA
// register; exactly one field is set.
type allocUnit struct {
	array *mir.RegArray
	reg   *mir.Reg
}

func (u allocUnit) base() uint32 {
	if u.array != nil {
		return u.array.Base()
	}
	return u.reg.Index
}

func (u allocUnit) size() uint32 {
	if u.array != nil {
		return uint32(u.array.Size())
	}
	return 1
}

type unitInterval struct {
	unit       allocUnit
	start, end int
	temp       uint32
}

type allocator struct {
	s        *mir.Shader
	order    []*mir.Instr
	interval map[allocUnit]*unitInterval
	// units in order of first reference.
	units []*unitInterval
	// loops are (open, backEdge) instruction positions.
	loops [][2]int
}

func unitOf(r *mir.Reg) allocUnit {
	if p := topArray(r); p != nil {
		return allocUnit{array: p}
	}
	return allocUnit{reg: r}
}

func topArray(r *mir.Reg) *mir.RegArray {
	a := r.Parent
	if a == nil {
		return nil
	}
	if a.Parent != nil {
		a = a.Parent
	}
	return a
}

func (a *allocator) scan() {
	pos := make(map[*mir.Instr]int)
	forEachInstr(a.s, func(i *mir.Instr) {
		pos[i] = len(a.order)
		a.order = append(a.order, i)
	})

	for p, i := range a.order {
		for _, d := range i.Dsts {
			a.touch(d.Ref, p)
		}
		for _, src := range i.Srcs {
			a.touch(src.Ref, p)
		}
		if i.Kind == mir.InstrKindCtrl && i.CtrlOp() == mir.CtrlOpCNDST && i.Link != nil {
			a.loops = append(a.loops, [2]int{p, pos[i.Link]})
		}
	}
}

func (a *allocator) touch(ref mir.Ref, p int) {
	for _, r := range appendRefRegs(nil, ref) {
		if r.Class != mir.RegClassSSA {
			continue
		}
		u := unitOf(r)
		iv, ok := a.interval[u]
		if !ok {
			iv = &unitInterval{unit: u, start: p, end: p}
			a.interval[u] = iv
			a.units = append(a.units, iv)
		}
		if p > iv.end {
			iv.end = p
		}
	}
}

func (a *allocator) extendOverLoops() {
	slices.SortFunc(a.loops, func(x, y [2]int) int { return x[0] - y[0] })
	for _, l := range a.loops {
		open, back := l[0], l[1]
		for _, iv := range a.units {
			if iv.start < open && iv.end >= open && iv.end < back {
				iv.end = back
			}
		}
	}
}

func (a *allocator) allocate() {
	limit := mir.RegClassTemp.Count()
	inUse := make([]bool, 0, 64)
	var active []*unitInterval

	for _, iv := range a.units {
		// Expire everything that ended before this unit starts.
		live := active[:0]
		for _, old := range active {
			if old.end < iv.start {
				for n := uint32(0); n < old.unit.size(); n++ {
					inUse[old.temp+n] = false
				}
				continue
			}
			live = append(live, old)
		}
		active = live

		base, ok := firstFit(inUse, iv.unit.size())
		if !ok {
			base = uint32(len(inUse))
			for n := uint32(0); n < iv.unit.size(); n++ {
				inUse = append(inUse, false)
			}
		}
		if base+iv.unit.size() > limit {
			panic(fmt.Sprintf("shader needs more than %d temporary registers", limit))
		}
		for n := uint32(0); n < iv.unit.size(); n++ {
			inUse[base+n] = true
		}
		iv.temp = base
		active = append(active, iv)

		// Materialize the temp array up front so sub-array views created
		// during the rewrite find their parent.
		if iv.unit.array != nil {
			a.s.RegArray(mir.RegClassTemp, base, iv.unit.size())
		}
	}
}

// firstFit finds the lowest run of size free slots within the current
// extent.
func firstFit(inUse []bool, size uint32) (uint32, bool) {
	run := uint32(0)
	for n := 0; n < len(inUse); n++ {
		if inUse[n] {
			run = 0
			continue
		}
		run++
		if run == size {
			return uint32(n+1) - size, true
		}
	}
	return 0, false
}

func (a *allocator) rewrite() {
	for _, i := range a.order {
		for n, d := range i.Dsts {
			if ref, ok := a.rewriteRef(d.Ref); ok {
				i.SetDstRef(n, ref)
			}
		}
		for n, src := range i.Srcs {
			if ref, ok := a.rewriteRef(src.Ref); ok {
				i.SetSrcRef(n, ref)
			}
		}
	}
}

func (a *allocator) rewriteRef(ref mir.Ref) (mir.Ref, bool) {
	switch ref.Kind {
	case mir.RefKindReg:
		if ref.Reg.Class != mir.RegClassSSA {
			return ref, false
		}
		return mir.RefReg(a.s.Reg(mir.RegClassTemp, a.tempIndex(ref.Reg))), true
	case mir.RefKindRegIndexed:
		if ref.Reg.Class != mir.RegClassSSA {
			return ref, false
		}
		r := a.s.Reg(mir.RegClassTemp, a.tempIndex(ref.Reg))
		return mir.RefRegIndexed(r, ref.Idx), true
	case mir.RefKindRegArray:
		if ref.Array.Class() != mir.RegClassSSA {
			return ref, false
		}
		first := ref.Array.Regs[0]
		arr := a.s.RegArray(mir.RegClassTemp, a.tempIndex(first), uint32(ref.Array.Size()))
		return mir.RefRegArray(arr), true
	}
	return ref, false
}

func (a *allocator) tempIndex(r *mir.Reg) uint32 {
	u := unitOf(r)
	iv, ok := a.interval[u]
	if !ok {
		panic(fmt.Sprintf("BUG: unallocated scratch register %s", r))
	}
	return iv.temp + (r.Index - u.base())
}
