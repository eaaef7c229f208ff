package isa

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeABC(t *testing.T) {
	cases := []struct {
		a, b, c uint8
		k       bool
	}{
		{0, 0, 0, false},
		{1, 2, 3, true},
		{255, 255, 255, true},
		{17, 0, 255, false},
	}
	for _, c := range cases {
		insn := EncodeABC(Add, c.a, c.b, c.c, c.k)
		require.Equal(t, Add, insn.Opcode())
		require.Equal(t, c.a, insn.A())
		require.Equal(t, c.b, insn.B())
		require.Equal(t, c.c, insn.C())
		require.Equal(t, c.k, insn.K())
	}
}

func TestEncodeDecodeABx(t *testing.T) {
	insn, err := EncodeABx(LoadConstant, 4, bxMax)
	require.NoError(t, err)
	require.Equal(t, LoadConstant, insn.Opcode())
	require.Equal(t, uint8(4), insn.A())
	require.Equal(t, bxMax, insn.Bx())

	_, err = EncodeABx(LoadConstant, 0, bxMax+1)
	require.Error(t, err)
	var rangeErr *ArgOutOfRange
	require.ErrorAs(t, err, &rangeErr)
}

func TestEncodeDecodeAsBx(t *testing.T) {
	for _, sbx := range []int32{0, 1, -1, 65535, -65535, int32(i17Offset), -int32(i17Offset)} {
		insn, err := EncodeAsBx(LoadInteger, 9, sbx)
		require.NoErrorf(t, err, "sbx=%d", sbx)
		require.Equal(t, sbx, insn.SBx())
		require.Equal(t, uint8(9), insn.A())
	}

	_, err := EncodeAsBx(LoadInteger, 0, int32(i17Offset)+1)
	require.Error(t, err)
	_, err = EncodeAsBx(LoadInteger, 0, -int32(i17Offset)-1)
	require.Error(t, err)
}

func TestEncodeDecodeAx(t *testing.T) {
	insn, err := EncodeAx(Closure, axMax)
	require.NoError(t, err)
	require.Equal(t, axMax, insn.Ax())

	_, err = EncodeAx(Closure, axMax+1)
	require.Error(t, err)
}

func TestEncodeDecodeSJ(t *testing.T) {
	for _, sj := range []int32{0, 1, -1, int32(i25Offset), -int32(i25Offset)} {
		insn, err := EncodeSJ(Jump, sj)
		require.NoErrorf(t, err, "sj=%d", sj)
		require.Equal(t, sj, insn.SJ())
	}

	_, err := EncodeSJ(Jump, int32(i25Offset)+1)
	require.Error(t, err)
}

func TestSignedBBC(t *testing.T) {
	for _, sc := range []int8{0, 1, -1, 127, -127} {
		insn := EncodeABsC(AddInteger, 1, 2, sc)
		require.Equal(t, sc, insn.SC())
	}
	for _, sb := range []int8{0, 1, -1, 127, -127} {
		insn := EncodeASBC(EqualInteger, 1, sb, 0, true)
		require.Equal(t, sb, insn.SB())
		require.True(t, insn.K())
	}
}

func TestOpcodeString(t *testing.T) {
	require.Equal(t, "ADD", Add.String())
	require.Equal(t, "FORLOOP", ForLoop.String())
	require.Contains(t, Opcode(200).String(), "illegal opcode")
}

func TestInstructionString(t *testing.T) {
	insn := EncodeABC(Move, 1, 2, 0, false)
	require.Equal(t, "MOVE 1 2 0", insn.String())

	jmp, err := EncodeSJ(Jump, -3)
	require.NoError(t, err)
	require.Equal(t, "JUMP -3", jmp.String())
}

func TestCodecRoundTrip(t *testing.T) {
	// Universal invariant: for every opcode and every valid combination of
	// field values, decode(encode(op, fields)) == (op, fields).
	for op := Opcode(0); op < maxOpcode; op++ {
		switch op.Layout() {
		case LayoutABC:
			insn := EncodeABC(op, 10, 20, 30, true)
			require.Equal(t, op, insn.Opcode())
			require.Equal(t, uint8(10), insn.A())
			require.Equal(t, uint8(20), insn.B())
			require.Equal(t, uint8(30), insn.C())
			require.True(t, insn.K())
		case LayoutABx:
			insn, err := EncodeABx(op, 5, 1000)
			require.NoError(t, err)
			require.Equal(t, op, insn.Opcode())
			require.Equal(t, uint8(5), insn.A())
			require.Equal(t, uint32(1000), insn.Bx())
		case LayoutAsBx:
			insn, err := EncodeAsBx(op, 5, -1000)
			require.NoError(t, err)
			require.Equal(t, op, insn.Opcode())
			require.Equal(t, uint8(5), insn.A())
			require.Equal(t, int32(-1000), insn.SBx())
		case LayoutAx:
			insn, err := EncodeAx(op, 12345)
			require.NoError(t, err)
			require.Equal(t, op, insn.Opcode())
			require.Equal(t, uint32(12345), insn.Ax())
		case LayoutSJ:
			insn, err := EncodeSJ(op, -12345)
			require.NoError(t, err)
			require.Equal(t, op, insn.Opcode())
			require.Equal(t, int32(-12345), insn.SJ())
		}
	}
}
