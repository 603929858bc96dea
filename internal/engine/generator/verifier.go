package generator

import (
	"fmt"

	"github.com/rupertlssmith/hak-wambook/internal/bytecode"
)

// Verify re-walks buf[offset:offset+length] independently of Compile's
// own decode pass and rejects a fragment Compile accepted but that is
// not well-formed on its own terms: trailing bytes past the last
// instruction, a fragment that does not end in a control-transfer
// instruction (CALL, PROCEED or DEALLOCATE — a tail-call clause body
// ends in CALL with no following PROCEED, relying on the callee's own
// PROCEED to return through the preserved cp), or an instruction whose
// declared length would run past the fragment's end. This is the gate
// spec.md §4.3 requires — "the entire
// module is passed through a verifier ... before any entry is allowed
// to run" — kept as a second, independent pass rather than folded into
// Compile, the same separation wazero keeps between function body
// decoding and internal/wasm's validation pass.
//
// On success it returns entry unchanged; Verify never rewrites the
// compiled closures, it only gates whether they may be registered.
func Verify(entry Entry, buf []byte, offset, length uint32) (Entry, error) {
	end := offset + length
	ip := offset
	var lastOp bytecode.Op

	for ip < end {
		if int(ip) >= len(buf) {
			return nil, fmt.Errorf("verifier: fragment at %d runs past end of code buffer", offset)
		}
		op := bytecode.Op(buf[ip])
		n := bytecode.Length(op)
		if n == 0 {
			return nil, fmt.Errorf("verifier: unknown opcode 0x%02x at %d", buf[ip], ip)
		}
		if ip+uint32(n) > end {
			return nil, fmt.Errorf("verifier: instruction at %d overruns fragment boundary at %d", ip, end)
		}
		lastOp = op
		ip += uint32(n)
	}

	if ip != end {
		return nil, fmt.Errorf("verifier: fragment at %d does not end exactly at %d", offset, end)
	}
	if lastOp != bytecode.OpProceed && lastOp != bytecode.OpDeallocate && lastOp != bytecode.OpCall {
		return nil, fmt.Errorf("verifier: fragment at %d does not terminate in CALL, PROCEED or DEALLOCATE", offset)
	}

	return entry, nil
}
