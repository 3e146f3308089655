package passes

import "github.com/tilegpu/heron/internal/mir"

// constRegValues maps a 32-bit immediate to the hardware constant-file slot
// the driver guarantees to hold it. The low slots hold the small integers;
// the float block starts at 64.
var constRegValues = map[uint32]uint32{}

func init() {
	for i := uint32(0); i <= 31; i++ {
		constRegValues[i] = i
	}
	for imm, idx := range map[uint32]uint32{
		0x3f800000: 64, // 1.0
		0x3f000000: 65, // 0.5
		0x40000000: 66, // 2.0
		0x40490fdb: 67, // pi
		0x3fc90fdb: 68, // pi/2
		0xbf800000: 69, // -1.0
		0x7f800000: 70, // +inf
		0x37800000: 71, // 1.0/65536
		0xffffffff: 88,
		0x7fffffff: 89,
		0x80000000: 90,
		0x0000ffff: 91,
	} {
		constRegValues[imm] = idx
	}
}

// ConstReg promotes immediates that the hardware constant file already holds
// into constant-register references, freeing the immediate slot for grouping.
// Slots that only encode immediates (the conditional-mask deltas) are left
// alone, as are replicated slots, since the promoted register would have to
// be contiguous across the repeat.
func ConstReg(s *mir.Shader) {
	forEachInstr(s, func(i *mir.Instr) {
		info := i.Info()
		for n, src := range i.Srcs {
			if src.Ref.Kind != mir.RefKindImm {
				continue
			}
			if !info.SrcRefs[n].Has(mir.RefKindReg) {
				continue
			}
			if i.Repeat > 1 && info.RepeatSrcs&(1<<n) != 0 {
				continue
			}
			idx, ok := constRegValues[src.Ref.U]
			if !ok {
				continue
			}
			i.SetSrcRef(n, mir.RefReg(s.Reg(mir.RegClassConst, idx)))
		}
	})
}
