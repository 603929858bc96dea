// Package wam implements a Warren Abstract Machine style runtime for
// executing compiled first-order logic byte code: a tagged-cell heap
// and environment stack, a dereference/bind/unify engine, a
// fourteen-instruction interpreter, and an optional closure-based
// lowering path ("the generator") sharing the same primitives. It
// plays the same role relative to this byte code that
// github.com/tetratelabs/wazero plays relative to WebAssembly modules:
// a host-embeddable execution engine with an interpreter always
// available and a faster optional path layered on top.
package wam

import (
	"fmt"

	"github.com/rupertlssmith/hak-wambook/internal/engine/generator"
	"github.com/rupertlssmith/hak-wambook/internal/loader"
	"github.com/rupertlssmith/hak-wambook/internal/machine"
	"github.com/rupertlssmith/hak-wambook/internal/trace"
)

// Machine is one instance of the abstract machine: its data area
// (registers, heap, environment stack, PDL) and its code loader /
// fragment table, paired so that every primitive is parameterized over
// an explicit handle rather than a package-level static pointer —
// resolving spec.md §9's "global machine pointer" design note, per
// SPEC_FULL.md §5. Callers that only need the single default instance
// spec.md describes can use the package-level functions instead, which
// close over one lazily-constructed default Machine.
type Machine struct {
	cfg     *MachineConfig
	m       *machine.Machine
	table   *loader.Table
	persist *generator.Persister
	tr      trace.Tracer
}

// NewMachine constructs a Machine from cfg (or NewMachineConfig()'s
// defaults if cfg is nil) and resets it to its initial state, ready
// for code_added/execute calls.
func NewMachine(cfg *MachineConfig) *Machine {
	if cfg == nil {
		cfg = NewMachineConfig()
	}
	mach := &Machine{cfg: cfg, tr: trace.Discard}
	mach.rebuild()
	return mach
}

// WithTracer installs a trace.Tracer receiving a callback for every
// decoded instruction, every CALL and every unknown opcode. Pass
// trace.Discard (the default) to disable tracing.
func (mc *Machine) WithTracer(tr trace.Tracer) *Machine {
	if tr == nil {
		tr = trace.Discard
	}
	mc.tr = tr
	mc.table = loader.New(mc.cfg.useGenerator, mc.cfg.level, tr)
	if mc.persist != nil {
		mc.table.SetPersist(mc.persist.Record)
	}
	return mc
}

func (mc *Machine) rebuild() {
	mc.m = machine.New(mc.cfg.machineConfig())
	mc.table = loader.New(mc.cfg.useGenerator, mc.cfg.level, mc.tr)
	if mc.cfg.useGenerator {
		mc.persist = generator.NewPersister(mc.cfg.l2Path)
		_ = mc.persist.Truncate()
		mc.table.SetPersist(mc.persist.Record)
	} else {
		mc.persist = nil
	}
}

// Reset discards all state — the data area, the code loader's fragment
// table, and (when the generator is enabled) the l2.bc diagnostic
// artifact — and reinitializes everything to its starting position.
// This is the only way to release resources; there is no scoped
// release, per spec.md §5.
func (mc *Machine) Reset() {
	mc.rebuild()
}

// CodeAdded ingests buf[offset:offset+length] before any Execute call
// at that offset. When the generator is enabled this may trigger
// lowering to a compiled closure. A fragment that fails to lower — a
// CALL target that is not yet resolvable, an unknown opcode, or a
// verifier rejection — is parked and retried on every subsequent
// CodeAdded; until it lowers, Execute at that offset runs the
// interpreter. Lowering failures are not reported here: CodeAdded
// returns only the loader's error, and the loader parks failed
// fragments instead of returning one.
func (mc *Machine) CodeAdded(buf []byte, offset, length uint32) error {
	if err := mc.table.CodeAdded(buf, offset, length); err != nil {
		return fmt.Errorf("wam: code_added at offset %d: %w", offset, err)
	}
	return nil
}

// Execute runs the entry registered for offset — the generator's
// compiled closure if code_added lowered one, otherwise the
// interpreter — returning true on success. State (heap, stack, PDL,
// every pointer) is preserved across calls; only Reset discards it.
func (mc *Machine) Execute(buf []byte, offset uint32) bool {
	return mc.table.Execute(mc.m, buf, offset)
}

// Deref dereferences the cell at addr, publishing its tag and value as
// the most recent dereference, and returns the final address reached.
func (mc *Machine) Deref(addr uint32) uint32 {
	return mc.m.Dereference(addr)
}

// DerefStack dereferences permanent-variable slot k in the current
// environment frame: equivalent to Deref(k + ep + FrameHeaderSize).
func (mc *Machine) DerefStack(k uint32) uint32 {
	return mc.m.Dereference(mc.m.StackSlot(k))
}

// GetDerefTag returns the tag published by the most recent
// dereference.
func (mc *Machine) GetDerefTag() byte {
	return byte(mc.m.LastDerefTag())
}

// GetDerefVal returns the 24-bit value published by the most recent
// dereference.
func (mc *Machine) GetDerefVal() uint32 {
	return mc.m.LastDerefVal()
}

// GetHeap reads the raw 32-bit cell at addr, with no dereferencing.
func (mc *Machine) GetHeap(addr uint32) uint32 {
	return uint32(mc.m.GetCell(addr))
}

// HP, EP and ESP expose the machine's current heap pointer and
// environment-frame pointers, for inspecting the heap and the
// call/return discipline after an Execute.
func (mc *Machine) HP() uint32  { return mc.m.HP() }
func (mc *Machine) EP() uint32  { return mc.m.EP() }
func (mc *Machine) ESP() uint32 { return mc.m.ESP() }

// defaultMachine is the single global instance spec.md describes as
// the default; it is constructed lazily so that a caller who only uses
// the package-level functions never pays for a second Machine they
// didn't ask for.
var defaultMachine *Machine

func ensureDefault() *Machine {
	if defaultMachine == nil {
		defaultMachine = NewMachine(nil)
	}
	return defaultMachine
}

// Reset re-initializes the package-level default Machine. See
// Machine.Reset.
func Reset() { ensureDefault().Reset() }

// CodeAdded ingests a fragment into the package-level default Machine.
// See Machine.CodeAdded.
func CodeAdded(buf []byte, offset, length uint32) error {
	return ensureDefault().CodeAdded(buf, offset, length)
}

// Execute runs offset against the package-level default Machine. See
// Machine.Execute.
func Execute(buf []byte, offset uint32) bool {
	return ensureDefault().Execute(buf, offset)
}

// Deref dereferences addr against the package-level default Machine.
func Deref(addr uint32) uint32 { return ensureDefault().Deref(addr) }

// DerefStack dereferences stack slot k against the package-level
// default Machine.
func DerefStack(k uint32) uint32 { return ensureDefault().DerefStack(k) }

// GetDerefTag returns the package-level default Machine's most recent
// dereference tag.
func GetDerefTag() byte { return ensureDefault().GetDerefTag() }

// GetDerefVal returns the package-level default Machine's most recent
// dereference value.
func GetDerefVal() uint32 { return ensureDefault().GetDerefVal() }

// GetHeap reads a raw cell from the package-level default Machine.
func GetHeap(addr uint32) uint32 { return ensureDefault().GetHeap(addr) }
