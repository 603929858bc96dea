package bytecode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadUint32LittleEndian(t *testing.T) {
	buf := []byte{0x00, 0x01, 0x02, 0x03, 0x04}
	require.Equal(t, uint32(0x03020100), ReadUint32(buf, 0))
	require.Equal(t, uint32(0x04030201), ReadUint32(buf, 1))
}

func TestReadInt32UnlinkedSentinel(t *testing.T) {
	buf := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	require.Equal(t, UnlinkedCall, ReadInt32(buf, 0))
}

func TestLengthTable(t *testing.T) {
	cases := map[Op]int{
		OpPutStruc:   7,
		OpGetStruc:   7,
		OpSetVar:     3,
		OpSetVal:     3,
		OpUnifyVar:   3,
		OpUnifyVal:   3,
		OpPutVar:     4,
		OpPutVal:     4,
		OpGetVar:     4,
		OpGetVal:     4,
		OpCall:       5,
		OpProceed:    1,
		OpAllocate:   2,
		OpDeallocate: 1,
	}
	for op, want := range cases {
		require.Equal(t, want, Length(op), "opcode 0x%02x", byte(op))
	}
}

func TestLengthUnknownOpcode(t *testing.T) {
	require.Equal(t, 0, Length(Op(0xFF)))
}
