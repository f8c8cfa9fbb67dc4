package bytecode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arxlang/arxvm/api"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   Instruction
	}{
		{name: "lit zero", in: New(api.OpLit, 0)},
		{name: "lit max", in: New(api.OpLit, ^uint64(0))},
		{name: "opr add", in: New(api.OpOpr, api.OprAdd)},
		{name: "high nibble masked", in: Instruction{Op: 0xF9, Operand: 7}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			buf := make([]byte, Size)
			tc.in.Encode(buf)
			out := Decode(buf)
			require.Equal(t, tc.in.Op&0x0f, out.Op)
			require.Equal(t, tc.in.Operand, out.Operand)
		})
	}
}

func TestPackUnpackDepthSlot(t *testing.T) {
	operand := PackDepthSlot(3, 12)
	depth, slot := UnpackDepthSlot(operand)
	require.Equal(t, uint32(3), depth)
	require.Equal(t, uint32(12), slot)
}

func TestDecodeStreamRejectsShortPayload(t *testing.T) {
	_, err := DecodeStream(make([]byte, Size+1))
	require.Error(t, err)
}

func TestDecodeStreamRoundTrip(t *testing.T) {
	code := []Instruction{New(api.OpLit, 2), New(api.OpLit, 3), New(api.OpOpr, api.OprAdd), New(api.OpRet, 0)}
	data := EncodeStream(code)
	decoded, err := DecodeStream(data)
	require.NoError(t, err)
	require.Equal(t, code, decoded)
}
