package lower

import (
	"fmt"

	"github.com/tilegpu/heron/internal/mir"
	"github.com/tilegpu/heron/internal/ssa"
)

// convKey identifies one conversion tuple; the rule table over it is
// authoritative and exhaustive for the conversions the backend supports.
type convKey struct {
	sd, dd ssa.NumDomain
	sb, db uint8
}

type convRule func(t *translator, i *ssa.Instruction)

var convRules map[convKey]convRule

func init() {
	convRules = make(map[convKey]convRule)
	rule := func(sd ssa.NumDomain, sb uint8, dd ssa.NumDomain, db uint8, f convRule) {
		k := convKey{sd, dd, sb, db}
		if _, dup := convRules[k]; dup {
			panic(fmt.Sprintf("BUG: duplicate conversion rule %v", k))
		}
		convRules[k] = f
	}

	// Booleans select between canonical constants.
	for _, db := range []uint8{8, 16, 32} {
		db := db
		rule(ssa.DomainBool, 32, ssa.DomainUnsigned, db, convBoolInt)
		rule(ssa.DomainBool, 32, ssa.DomainSigned, db, convBoolInt)
	}
	rule(ssa.DomainBool, 32, ssa.DomainFloat, 32, func(t *translator, i *ssa.Instruction) {
		t.b.CSEL(mir.OpModNZ, mir.OpModU32, t.dst(i), t.ref(i.Srcs[0]),
			mir.RefImm(floatOne), mir.RefImm(0))
	})

	// Widening unsigned integers is a plain move; the invariant keeps
	// high bits clear.
	rule(ssa.DomainUnsigned, 8, ssa.DomainUnsigned, 16, convMove)
	rule(ssa.DomainUnsigned, 8, ssa.DomainUnsigned, 32, convMove)
	rule(ssa.DomainUnsigned, 16, ssa.DomainUnsigned, 32, convMove)
	rule(ssa.DomainUnsigned, 8, ssa.DomainSigned, 16, convMove)
	rule(ssa.DomainUnsigned, 8, ssa.DomainSigned, 32, convMove)
	rule(ssa.DomainUnsigned, 16, ssa.DomainSigned, 32, convMove)

	// Widening signed integers sign-extends from the source top bit.
	rule(ssa.DomainSigned, 8, ssa.DomainSigned, 16, convSext)
	rule(ssa.DomainSigned, 8, ssa.DomainSigned, 32, convSext)
	rule(ssa.DomainSigned, 16, ssa.DomainSigned, 32, convSext)
	rule(ssa.DomainSigned, 8, ssa.DomainUnsigned, 16, convSext)
	rule(ssa.DomainSigned, 8, ssa.DomainUnsigned, 32, convSext)
	rule(ssa.DomainSigned, 16, ssa.DomainUnsigned, 32, convSext)

	// Narrowing integers masks to the destination width.
	for _, sd := range []ssa.NumDomain{ssa.DomainUnsigned, ssa.DomainSigned} {
		for _, dd := range []ssa.NumDomain{ssa.DomainUnsigned, ssa.DomainSigned} {
			rule(sd, 16, dd, 8, convMask)
			rule(sd, 32, dd, 8, convMask)
			rule(sd, 32, dd, 16, convMask)
		}
	}

	// Same-width signedness casts are moves.
	for _, b := range []uint8{8, 16, 32} {
		b := b
		rule(ssa.DomainUnsigned, b, ssa.DomainSigned, b, convMove)
		rule(ssa.DomainSigned, b, ssa.DomainUnsigned, b, convMove)
	}

	// Integer to float unpacks with the format chosen per source width
	// and signedness, skipping an explicit sign extension.
	rule(ssa.DomainUnsigned, 8, ssa.DomainFloat, 32, convIntToFloat(mir.OpModFmtU8888))
	rule(ssa.DomainSigned, 8, ssa.DomainFloat, 32, convIntToFloat(mir.OpModFmtS8888))
	rule(ssa.DomainUnsigned, 16, ssa.DomainFloat, 32, convIntToFloat(mir.OpModFmtU1616))
	rule(ssa.DomainSigned, 16, ssa.DomainFloat, 32, convIntToFloat(mir.OpModFmtS1616))
	rule(ssa.DomainUnsigned, 32, ssa.DomainFloat, 32, convIntToFloat(mir.OpModFmtU32))
	rule(ssa.DomainSigned, 32, ssa.DomainFloat, 32, convIntToFloat(mir.OpModFmtS32))

	// Float to integer goes through the write-masked pack sequence.
	rule(ssa.DomainFloat, 32, ssa.DomainUnsigned, 8, convFloatToPacked(mir.OpModFmtU8888))
	rule(ssa.DomainFloat, 32, ssa.DomainSigned, 8, convFloatToPacked(mir.OpModFmtS8888))
	rule(ssa.DomainFloat, 32, ssa.DomainUnsigned, 16, convFloatToPacked(mir.OpModFmtU1616))
	rule(ssa.DomainFloat, 32, ssa.DomainSigned, 16, convFloatToPacked(mir.OpModFmtS1616))
	rule(ssa.DomainFloat, 32, ssa.DomainUnsigned, 32, convFloatToPacked(mir.OpModFmtU32))
	rule(ssa.DomainFloat, 32, ssa.DomainSigned, 32, convFloatToPacked(mir.OpModFmtS32))

	// Float width changes.
	rule(ssa.DomainFloat, 32, ssa.DomainFloat, 16, convFloatToPacked(mir.OpModFmtF16F16))
	rule(ssa.DomainFloat, 16, ssa.DomainFloat, 32, func(t *translator, i *ssa.Instruction) {
		in := t.b.UPCK(mir.OpMods(mir.OpModFmtF16F16), t.dst(i), t.ref(i.Srcs[0]), 1)
		in.Srcs[0].Mod = mir.SrcModE0
	})
}

// convert dispatches the exhaustive conversion table; an unmatched tuple is
// a fatal unsupported conversion.
func (t *translator) convert(i *ssa.Instruction) {
	c := i.Conv
	if c.Sat {
		panic(fmt.Sprintf("unsupported conversion: %s", c))
	}
	f, ok := convRules[convKey{c.SrcDomain, c.DstDomain, c.SrcBits, c.DstBits}]
	if !ok {
		panic(fmt.Sprintf("unsupported conversion: %s", c))
	}
	f(t, i)
}

func convBoolInt(t *translator, i *ssa.Instruction) {
	t.b.CSEL(mir.OpModNZ, mir.OpModU32, t.dst(i), t.ref(i.Srcs[0]),
		mir.RefImm(1), mir.RefImm(0))
}

func convMove(t *translator, i *ssa.Instruction) {
	t.b.MOV(t.dst(i), t.ref(i.Srcs[0]))
}

func convSext(t *translator, i *ssa.Instruction) {
	t.b.ISXT(t.dst(i), t.ref(i.Srcs[0]),
		mir.RefImm(uint32(i.Conv.SrcBits)-1), mir.RefImm(0))
}

func convMask(t *translator, i *ssa.Instruction) {
	mask := uint32(1)<<i.Conv.DstBits - 1
	t.b.AND(t.dst(i), t.ref(i.Srcs[0]), mir.RefImm(mask))
}

func convIntToFloat(fmtMod mir.OpMod) convRule {
	return func(t *translator, i *ssa.Instruction) {
		in := t.b.UPCK(mir.OpMods(fmtMod), t.dst(i), t.ref(i.Srcs[0]), 1)
		in.Srcs[0].Mod = mir.SrcModE0
	}
}

// convFloatToPacked emits the two-stage write-masked pack: the value rides
// the main pipeline into FT0, the pack produces FT2, and a masked select
// writes only the destination bytes the target width covers.
func convFloatToPacked(fmtMod mir.OpMod) convRule {
	return func(t *translator, i *ssa.Instruction) {
		mods := mir.OpMods(fmtMod)
		if i.Conv.DstDomain != ssa.DomainFloat || i.Conv.Round == ssa.RoundZero {
			mods = mods.With(mir.OpModRoundZero)
		}
		t.b.MBYP(mir.RefIO(mir.IOFT0), t.ref(i.Srcs[0]))
		t.b.PCK(mods, mir.RefIO(mir.IOFT2), mir.RefIO(mir.IOFT0), 1)
		t.b.MOVC(byteEnables(i.Conv.DstBits), t.dst(i), mir.RefIO(mir.IOFT2), mir.RefImm(0))
	}
}

// byteEnables returns the destination byte lanes a width covers.
func byteEnables(bits uint8) mir.DstMod {
	var en mir.DstMod
	if bits >= 8 {
		en |= mir.DstModE0
	}
	if bits >= 16 {
		en |= mir.DstModE1
	}
	if bits >= 24 {
		en |= mir.DstModE2
	}
	if bits >= 32 {
		en |= mir.DstModE3
	}
	return en
}
