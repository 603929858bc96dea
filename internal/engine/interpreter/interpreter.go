// Package interpreter implements the pure byte-code decode/execute loop:
// the default entry any offset runs through when the generator is
// disabled, and the ground truth the generator's closures are checked
// against.
package interpreter

import (
	"github.com/rupertlssmith/hak-wambook/internal/bytecode"
	"github.com/rupertlssmith/hak-wambook/internal/machine"
	"github.com/rupertlssmith/hak-wambook/internal/trace"
)

// Execute decodes and runs buf starting at offset against m, continuing
// until ip reaches len(buf) (success) or an instruction fails. It mutates
// m's heap/stack/PDL pointers in place; state is preserved across calls,
// exactly as the spec requires.
func Execute(m *machine.Machine, buf []byte, offset uint32, tr trace.Tracer) bool {
	if tr == nil {
		tr = trace.Discard
	}
	m.SetIP(offset)
	m.SetCP(uint32(len(buf)))
	m.ClearPDL()

	length := uint32(len(buf))
	for m.IP() < length {
		if !step(m, buf, tr) {
			return false
		}
	}
	return true
}

// step decodes and executes a single instruction at m's current ip,
// advancing ip by the instruction's length (CALL/PROCEED/DEALLOCATE
// overwrite ip themselves). It returns false on any of the failure
// conditions named in the spec: functor mismatch, incompatible unify,
// unlinked CALL, or an unknown opcode.
func step(m *machine.Machine, buf []byte, tr trace.Tracer) bool {
	ip := m.IP()
	op := bytecode.Op(buf[ip])

	switch op {
	case bytecode.OpPutStruc:
		mode, xi := decodeModeSlot(m, buf, ip)
		fn := bytecode.ReadUint32(buf, int(ip+3))
		tr.Instruction("PUT_STRUC", ip, byte(mode), xi, fn)
		m.PutStruc(xi, fn)
		m.SetIP(ip + 7)

	case bytecode.OpSetVar:
		_, xi := decodeModeSlot(m, buf, ip)
		tr.Instruction("SET_VAR", ip, buf[ip+1], xi, 0)
		m.SetVar(xi)
		m.SetIP(ip + 3)

	case bytecode.OpSetVal:
		_, xi := decodeModeSlot(m, buf, ip)
		tr.Instruction("SET_VAL", ip, buf[ip+1], xi, 0)
		m.SetVal(xi)
		m.SetIP(ip + 3)

	case bytecode.OpGetStruc:
		mode, xi := decodeModeSlot(m, buf, ip)
		fn := bytecode.ReadUint32(buf, int(ip+3))
		tr.Instruction("GET_STRUC", ip, byte(mode), xi, fn)
		if !m.GetStruc(xi, fn) {
			return false
		}
		m.SetIP(ip + 7)

	case bytecode.OpUnifyVar:
		_, xi := decodeModeSlot(m, buf, ip)
		tr.Instruction("UNIFY_VAR", ip, buf[ip+1], xi, 0)
		m.UnifyVar(xi)
		m.SetIP(ip + 3)

	case bytecode.OpUnifyVal:
		_, xi := decodeModeSlot(m, buf, ip)
		tr.Instruction("UNIFY_VAL", ip, buf[ip+1], xi, 0)
		if !m.UnifyVal(xi) {
			return false
		}
		m.SetIP(ip + 3)

	case bytecode.OpPutVar:
		xi, ai := decodeModeSlotArg(m, buf, ip)
		tr.Instruction("PUT_VAR", ip, buf[ip+1], xi, ai)
		m.PutVar(xi, ai)
		m.SetIP(ip + 4)

	case bytecode.OpPutVal:
		xi, ai := decodeModeSlotArg(m, buf, ip)
		tr.Instruction("PUT_VAL", ip, buf[ip+1], xi, ai)
		m.SetCell(ai, m.GetCell(xi))
		m.SetIP(ip + 4)

	case bytecode.OpGetVar:
		xi, ai := decodeModeSlotArg(m, buf, ip)
		tr.Instruction("GET_VAR", ip, buf[ip+1], xi, ai)
		m.SetCell(xi, m.GetCell(ai))
		m.SetIP(ip + 4)

	case bytecode.OpGetVal:
		xi, ai := decodeModeSlotArg(m, buf, ip)
		tr.Instruction("GET_VAL", ip, buf[ip+1], xi, ai)
		if !m.Unify(xi, ai) {
			return false
		}
		m.SetIP(ip + 4)

	case bytecode.OpCall:
		target := bytecode.ReadInt32(buf, int(ip+1))
		tr.Call(ip, target)
		if target == bytecode.UnlinkedCall {
			return false
		}
		m.SetCP(ip + 5)
		m.SetIP(uint32(target))

	case bytecode.OpProceed:
		tr.Instruction("PROCEED", ip, 0, 0, 0)
		m.SetIP(m.CP())

	case bytecode.OpAllocate:
		n := uint32(buf[ip+1])
		tr.Instruction("ALLOCATE", ip, 0, 0, n)
		m.Allocate(n)
		m.SetIP(ip + 2)

	case bytecode.OpDeallocate:
		tr.Instruction("DEALLOCATE", ip, 0, 0, 0)
		m.Deallocate()

	default:
		tr.UnknownOpcode(ip, byte(op))
		return false
	}

	return true
}

// decodeModeSlot reads the mode and slot bytes immediately following the
// opcode at ip and resolves them to an absolute address.
func decodeModeSlot(m *machine.Machine, buf []byte, ip uint32) (bytecode.Mode, uint32) {
	mode := bytecode.Mode(buf[ip+1])
	slot := uint32(buf[ip+2])
	return mode, resolve(m, mode, slot)
}

// decodeModeSlotArg reads mode, xi and ai for the four-byte xi/ai
// instructions. Ai is always a plain register address, per the spec.
func decodeModeSlotArg(m *machine.Machine, buf []byte, ip uint32) (xi, ai uint32) {
	mode := bytecode.Mode(buf[ip+1])
	slot := uint32(buf[ip+2])
	ai = uint32(buf[ip+3])
	return resolve(m, mode, slot), ai
}

func resolve(m *machine.Machine, mode bytecode.Mode, slot uint32) uint32 {
	if mode == bytecode.StackAddr {
		return m.StackSlot(slot)
	}
	return slot
}
