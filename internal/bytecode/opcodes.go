// Package bytecode defines the wire format shared by the interpreter and
// the generator: opcode values, addressing-mode bytes, and the helpers
// that decode multi-byte immediates out of a byte-code buffer.
package bytecode

// Op identifies an instruction's opcode byte.
type Op byte

// The fourteen opcodes named in the spec, values 0x01..0x0E.
const (
	OpPutStruc Op = 0x01
	OpSetVar   Op = 0x02
	OpSetVal   Op = 0x03
	OpGetStruc Op = 0x04
	OpUnifyVar Op = 0x05
	OpUnifyVal Op = 0x06
	OpPutVar   Op = 0x07
	OpPutVal   Op = 0x08
	OpGetVar   Op = 0x09
	OpGetVal   Op = 0x0A
	OpCall     Op = 0x0B
	OpProceed  Op = 0x0C
	OpAllocate Op = 0x0D
	OpDeallocate Op = 0x0E
)

// Mode identifies whether a slot index is a register address or a
// permanent-variable index within the current frame.
type Mode byte

const (
	// RegAddr means the slot index is an absolute register address,
	// 0..RegisterCount.
	RegAddr Mode = 0x01
	// StackAddr means the slot index is a permanent-variable index k,
	// resolving to ep + FrameHeaderSize + k.
	StackAddr Mode = 0x02
)

// UnlinkedCall is the sentinel CALL target meaning "unlinked predicate,
// fail at execution".
const UnlinkedCall int32 = -1
