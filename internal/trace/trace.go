// Package trace implements the instruction-level observability hook used
// by both the interpreter and the generator. It plays the same role as
// wazero's experimental.FunctionListener (a hook fired around execution,
// off by default) and is grounded directly in
// original_source/aima-native/src/c/trace.c's toggle-gated instruction
// tracer, expressed as a Go interface instead of conditional printf
// calls.
package trace

import (
	"fmt"
	"io"
)

// Tracer receives a callback for every decoded instruction, every CALL,
// and every unknown opcode encountered. A Tracer must tolerate being
// called from either the interpreter's decode loop or the generator's
// closures.
type Tracer interface {
	// Instruction is called after an instruction's operands have been
	// decoded, before it executes. mode is the raw addressing-mode byte
	// (0 for instructions that carry none). fn is the functor/arity word
	// or a small immediate (ALLOCATE's N, PUT_VAR/PUT_VAL's ai); it is 0
	// for instructions that carry no such operand.
	Instruction(mnemonic string, ip uint32, mode byte, xi uint32, fn uint32)
	// Call is called for every CALL, including unlinked ones.
	Call(ip uint32, target int32)
	// UnknownOpcode is called when the decode loop hits an opcode byte
	// it does not recognize.
	UnknownOpcode(ip uint32, op byte)
}

// Discard is a Tracer that does nothing, the zero-cost default the
// interpreter and generator fall back to when tracing is disabled.
var Discard Tracer = discard{}

type discard struct{}

func (discard) Instruction(string, uint32, byte, uint32, uint32) {}
func (discard) Call(uint32, int32)                               {}
func (discard) UnknownOpcode(uint32, byte)                       {}

// Logger is a Tracer that writes one line per event to Sink, matching
// trace.c's printf-based format while being gated by construction rather
// than a global compiled-in flag.
type Logger struct {
	Sink io.Writer
}

func (l Logger) Instruction(mnemonic string, ip uint32, mode byte, xi uint32, fn uint32) {
	fmt.Fprintf(l.Sink, "%-12s ip=%d mode=%d xi=%d fn=%d\n", mnemonic, ip, mode, xi, fn)
}

func (l Logger) Call(ip uint32, target int32) {
	fmt.Fprintf(l.Sink, "%-12s ip=%d target=%d\n", "CALL", ip, target)
}

func (l Logger) UnknownOpcode(ip uint32, op byte) {
	fmt.Fprintf(l.Sink, "%-12s ip=%d op=0x%02x\n", "UNKNOWN", ip, op)
}
