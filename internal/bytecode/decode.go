package bytecode

import "encoding/binary"

// ReadUint32 reads a 4-byte little-endian immediate (a functor/arity word)
// starting at off.
func ReadUint32(buf []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(buf[off : off+4])
}

// ReadInt32 reads a 4-byte little-endian signed immediate (a CALL target,
// where -1 is the unlinked-predicate sentinel) starting at off.
func ReadInt32(buf []byte, off int) int32 {
	return int32(ReadUint32(buf, off))
}

// Length returns the byte length of the instruction whose opcode is op, as
// named in the spec's instruction table. Returns 0 for an unrecognized
// opcode.
func Length(op Op) int {
	switch op {
	case OpPutStruc, OpGetStruc:
		return 7
	case OpSetVar, OpSetVal, OpUnifyVar, OpUnifyVal:
		return 3
	case OpPutVar, OpPutVal, OpGetVar, OpGetVal:
		return 4
	case OpCall:
		return 5
	case OpProceed, OpDeallocate:
		return 1
	case OpAllocate:
		return 2
	default:
		return 0
	}
}
