// Package generator implements the optional lowering path: translating
// one ingested byte-code fragment into a Go closure chain that performs
// the same state transitions as the interpreter, instead of re-decoding
// the fragment's bytes on every execute. It plays the role wazero's
// internal/engine/compiler plays relative to internal/engine/interpreter
// — a second, lower-overhead execution path sharing the same semantics —
// expressed as composed closures rather than architecture-specific
// assembly, since hand-written amd64/arm64 emission cannot be validated
// without running the Go toolchain (see DESIGN.md).
package generator

import (
	"fmt"

	"github.com/rupertlssmith/hak-wambook/internal/bytecode"
	"github.com/rupertlssmith/hak-wambook/internal/machine"
	"github.com/rupertlssmith/hak-wambook/internal/trace"
)

// Entry is one compiled fragment: an executable function performing the
// same transitions the interpreter would for the same bytes. It returns
// true on PROCEED / falling off the end of the fragment, false on any
// unification or linkage failure.
type Entry func(m *machine.Machine) bool

// Resolver looks up a previously compiled Entry for a code offset, as
// CALL targets must be. It is also consulted, not just at compile time,
// for optimization levels below Level3 — see Level3.
type Resolver func(offset uint32) (Entry, bool)

// Level selects how aggressively Compile specializes the closures it
// builds. All levels are semantically transparent: the same fragment
// compiled at any level behaves identically, differing only in how early
// a CALL target is bound and how much per-instruction branching survives
// into the compiled closures.
type Level int

const (
	// Level0 specializes nothing beyond decoding each operand once at
	// compile time: every instruction closure re-branches on its
	// addressing mode at run time, exactly as the interpreter does.
	Level0 Level = iota
	// Level1 compiles the same closures as Level0. Functor/arity words
	// and small immediates are decoded once at compile time and captured
	// by the closures at every level, so no level re-reads them from the
	// byte slice and Level1 has nothing further to fold.
	Level1
	// Level2 additionally specializes the REG_ADDR case: since the
	// addressing mode byte is static, a REG_ADDR operand's address is a
	// compile-time constant and the closure skips the mode branch
	// entirely; only STACK_ADDR operands still compute ep+3+k at run
	// time.
	Level2
	// Level3 additionally binds CALL targets early: the callee's Entry
	// is resolved once at compile time and captured directly, instead of
	// being looked up through Resolver on every call. This is faster but
	// freezes the call to whichever Entry existed for that offset at
	// compile time; a later re-compilation of the callee at a higher
	// level will not be picked up without recompiling the caller too.
	Level3
	// Level4 additionally runs a fragment that compiles to a single
	// instruction (such as a lone PROCEED) by calling that instruction's
	// closure directly, skipping the chain loop.
	Level4
)

// instrFunc is one compiled instruction. cont reports whether the chain
// should continue to the next instrFunc; ok reports success. A false ok
// always terminates the chain regardless of cont.
type instrFunc func(m *machine.Machine) (cont, ok bool)

// Compile lowers buf[offset:offset+length] into an Entry. It fails — and
// the caller is expected to fall back to the interpreter for this offset
// — if the fragment contains an unknown opcode, a CALL to the unlinked
// sentinel, or a CALL to an offset Resolver cannot yet find; the spec
// requires the latter two to "abort cleanly" so that a later ingest can
// complete the link on retry.
func Compile(buf []byte, offset, length uint32, resolve Resolver, level Level, tr trace.Tracer) (Entry, error) {
	if tr == nil {
		tr = trace.Discard
	}

	var chain []instrFunc
	end := offset + length
	ip := offset

decodeLoop:
	for ip < end {
		if int(ip) >= len(buf) {
			return nil, fmt.Errorf("generator: fragment at %d runs past end of code buffer", offset)
		}
		op := bytecode.Op(buf[ip])
		switch op {
		case bytecode.OpPutStruc, bytecode.OpGetStruc:
			if int(ip+7) > len(buf) {
				return nil, fmt.Errorf("generator: truncated instruction at %d", ip)
			}
			mode := bytecode.Mode(buf[ip+1])
			slot := uint32(buf[ip+2])
			fn := bytecode.ReadUint32(buf, int(ip+3))
			addr := addressFunc(mode, slot, level)
			at := ip
			if op == bytecode.OpPutStruc {
				chain = append(chain, func(m *machine.Machine) (bool, bool) {
					xi := addr(m)
					tr.Instruction("PUT_STRUC", at, byte(mode), xi, fn)
					m.PutStruc(xi, fn)
					return true, true
				})
			} else {
				chain = append(chain, func(m *machine.Machine) (bool, bool) {
					xi := addr(m)
					tr.Instruction("GET_STRUC", at, byte(mode), xi, fn)
					return true, m.GetStruc(xi, fn)
				})
			}
			ip += 7

		case bytecode.OpSetVar, bytecode.OpSetVal, bytecode.OpUnifyVar, bytecode.OpUnifyVal:
			if int(ip+3) > len(buf) {
				return nil, fmt.Errorf("generator: truncated instruction at %d", ip)
			}
			mode := bytecode.Mode(buf[ip+1])
			slot := uint32(buf[ip+2])
			addr := addressFunc(mode, slot, level)
			at := ip
			switch op {
			case bytecode.OpSetVar:
				chain = append(chain, func(m *machine.Machine) (bool, bool) {
					xi := addr(m)
					tr.Instruction("SET_VAR", at, byte(mode), xi, 0)
					m.SetVar(xi)
					return true, true
				})
			case bytecode.OpSetVal:
				chain = append(chain, func(m *machine.Machine) (bool, bool) {
					xi := addr(m)
					tr.Instruction("SET_VAL", at, byte(mode), xi, 0)
					m.SetVal(xi)
					return true, true
				})
			case bytecode.OpUnifyVar:
				chain = append(chain, func(m *machine.Machine) (bool, bool) {
					xi := addr(m)
					tr.Instruction("UNIFY_VAR", at, byte(mode), xi, 0)
					m.UnifyVar(xi)
					return true, true
				})
			case bytecode.OpUnifyVal:
				chain = append(chain, func(m *machine.Machine) (bool, bool) {
					xi := addr(m)
					tr.Instruction("UNIFY_VAL", at, byte(mode), xi, 0)
					return true, m.UnifyVal(xi)
				})
			}
			ip += 3

		case bytecode.OpPutVar, bytecode.OpPutVal, bytecode.OpGetVar, bytecode.OpGetVal:
			if int(ip+4) > len(buf) {
				return nil, fmt.Errorf("generator: truncated instruction at %d", ip)
			}
			mode := bytecode.Mode(buf[ip+1])
			slot := uint32(buf[ip+2])
			ai := uint32(buf[ip+3])
			addr := addressFunc(mode, slot, level)
			at := ip
			switch op {
			case bytecode.OpPutVar:
				chain = append(chain, func(m *machine.Machine) (bool, bool) {
					xi := addr(m)
					tr.Instruction("PUT_VAR", at, byte(mode), xi, ai)
					m.PutVar(xi, ai)
					return true, true
				})
			case bytecode.OpPutVal:
				chain = append(chain, func(m *machine.Machine) (bool, bool) {
					xi := addr(m)
					tr.Instruction("PUT_VAL", at, byte(mode), xi, ai)
					m.SetCell(ai, m.GetCell(xi))
					return true, true
				})
			case bytecode.OpGetVar:
				chain = append(chain, func(m *machine.Machine) (bool, bool) {
					xi := addr(m)
					tr.Instruction("GET_VAR", at, byte(mode), xi, ai)
					m.SetCell(xi, m.GetCell(ai))
					return true, true
				})
			case bytecode.OpGetVal:
				chain = append(chain, func(m *machine.Machine) (bool, bool) {
					xi := addr(m)
					tr.Instruction("GET_VAL", at, byte(mode), xi, ai)
					return true, m.Unify(xi, ai)
				})
			}
			ip += 4

		case bytecode.OpCall:
			if int(ip+5) > len(buf) {
				return nil, fmt.Errorf("generator: truncated instruction at %d", ip)
			}
			target := bytecode.ReadInt32(buf, int(ip+1))
			at := ip
			if target == bytecode.UnlinkedCall {
				return nil, fmt.Errorf("generator: CALL at %d targets unlinked predicate", at)
			}
			if level >= Level3 {
				callee, ok := resolve(uint32(target))
				if !ok {
					return nil, fmt.Errorf("generator: CALL at %d targets unresolved offset %d", at, target)
				}
				chain = append(chain, func(m *machine.Machine) (bool, bool) {
					tr.Call(at, target)
					return true, callee(m)
				})
			} else {
				if _, ok := resolve(uint32(target)); !ok {
					return nil, fmt.Errorf("generator: CALL at %d targets unresolved offset %d", at, target)
				}
				chain = append(chain, func(m *machine.Machine) (bool, bool) {
					tr.Call(at, target)
					callee, ok := resolve(uint32(target))
					if !ok {
						return true, false
					}
					return true, callee(m)
				})
			}
			ip += 5

		case bytecode.OpProceed:
			at := ip
			chain = append(chain, func(m *machine.Machine) (bool, bool) {
				tr.Instruction("PROCEED", at, 0, 0, 0)
				return false, true
			})
			ip++
			break decodeLoop

		case bytecode.OpAllocate:
			if int(ip+2) > len(buf) {
				return nil, fmt.Errorf("generator: truncated instruction at %d", ip)
			}
			n := uint32(buf[ip+1])
			at := ip
			chain = append(chain, func(m *machine.Machine) (bool, bool) {
				tr.Instruction("ALLOCATE", at, 0, 0, n)
				m.Allocate(n)
				return true, true
			})
			ip += 2

		case bytecode.OpDeallocate:
			at := ip
			chain = append(chain, func(m *machine.Machine) (bool, bool) {
				tr.Instruction("DEALLOCATE", at, 0, 0, 0)
				m.Deallocate()
				return false, true
			})
			ip++
			break decodeLoop

		default:
			return nil, fmt.Errorf("generator: unknown opcode 0x%02x at %d", buf[ip], ip)
		}
	}

	if level >= Level4 && len(chain) == 1 {
		only := chain[0]
		entry := func(m *machine.Machine) bool {
			_, ok := only(m)
			return ok
		}
		return entry, nil
	}

	instrs := chain
	entry := func(m *machine.Machine) bool {
		for _, fn := range instrs {
			cont, ok := fn(m)
			if !ok {
				return false
			}
			if !cont {
				return true
			}
		}
		return true
	}
	return entry, nil
}

// addressFunc returns a closure resolving an operand's absolute address.
// When mode is REG_ADDR the address is a compile-time constant, known the
// moment the mode byte is read; at Level2 and above this is baked in
// directly and the returned closure never branches on mode again.
func addressFunc(mode bytecode.Mode, slot uint32, level Level) func(m *machine.Machine) uint32 {
	if level >= Level2 && mode == bytecode.RegAddr {
		return func(*machine.Machine) uint32 { return slot }
	}
	return func(m *machine.Machine) uint32 {
		if mode == bytecode.StackAddr {
			return m.StackSlot(slot)
		}
		return slot
	}
}
