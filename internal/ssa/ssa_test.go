package ssa

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValuePacking(t *testing.T) {
	for _, tc := range []struct {
		id    ValueID
		bits  uint8
		comps uint8
	}{
		{id: 0, bits: 32, comps: 1},
		{id: 1, bits: 64, comps: 1},
		{id: 0xffff, bits: 16, comps: 4},
		{id: 42, bits: 8, comps: 2},
	} {
		v := MakeValue(tc.id, tc.bits, tc.comps)
		require.True(t, v.Valid())
		require.Equal(t, tc.id, v.ID())
		require.Equal(t, tc.bits, v.Bits())
		require.Equal(t, tc.comps, v.Comps())
	}
}

func TestValueInvalid(t *testing.T) {
	require.False(t, ValueInvalid.Valid())
	require.True(t, MakeValue(0, 32, 1).Valid())
}

func TestOpcodeString(t *testing.T) {
	require.Equal(t, "fadd", OpcodeFAdd.String())
	require.Equal(t, "convert", OpcodeConvert.String())
	require.Equal(t, "tg4", OpcodeTexGather.String())
	require.Equal(t, "break", OpcodeBreak.String())
}

func TestForEachInstrVisitsNestedNodes(t *testing.T) {
	mk := func(op Opcode) *Instruction { return &Instruction{Op: op} }
	body := []Node{
		&Block{Instrs: []*Instruction{mk(OpcodeLoadConst)}},
		&If{
			Cond: MakeValue(0, 32, 1),
			Then: []Node{&Block{Instrs: []*Instruction{mk(OpcodeFAdd)}}},
			Else: []Node{
				&Loop{Body: []Node{
					&Block{Instrs: []*Instruction{mk(OpcodeIMul), mk(OpcodeBreak)}},
				}},
			},
		},
		&Block{Instrs: []*Instruction{mk(OpcodeStoreOutput)}},
	}

	var got []Opcode
	ForEachInstr(body, func(i *Instruction) { got = append(got, i.Op) })
	require.Equal(t, []Opcode{
		OpcodeLoadConst, OpcodeFAdd, OpcodeIMul, OpcodeBreak, OpcodeStoreOutput,
	}, got)
}
