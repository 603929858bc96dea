// Package loader implements the code loader & fragment table: the
// offset→entry map the host's code_added/execute calls go through,
// grounded in wazero's engine.codes map (internal/engine/interpreter's
// map[wasm.ModuleID][]*code guarded by a mutex) collapsed to this
// runtime's single-address-space model, where the map key is a code
// offset rather than a module ID.
//
// As in the reference implementation's JNI entry points, the host is
// expected to pass the same (possibly grown) code buffer to every
// CodeAdded and Execute call: offsets are addresses into one coherent
// code space, not independent per-fragment byte slices.
package loader

import (
	"fmt"
	"sync"

	"github.com/rupertlssmith/hak-wambook/internal/engine/generator"
	"github.com/rupertlssmith/hak-wambook/internal/engine/interpreter"
	"github.com/rupertlssmith/hak-wambook/internal/machine"
	"github.com/rupertlssmith/hak-wambook/internal/trace"
)

// Entry is the callable the loader dispatches execute to for a given
// offset: a generator-built closure. It is the same shape as
// generator.Entry.
type Entry func(m *machine.Machine) bool

// Table maps code offsets to compiled entries, populated by CodeAdded
// and consulted by Execute and by the generator's Resolver callback for
// CALL targets. The zero value is not ready for use; call New.
type Table struct {
	mu sync.RWMutex

	// known marks every offset CodeAdded has ever been called with,
	// regardless of whether lowering succeeded; Execute of an offset
	// never ingested fails, per spec.md §4.4's "must precede any
	// execute at that offset".
	known map[uint32]struct{}

	// entries holds a compiled closure only for offsets the generator
	// has successfully lowered. An offset present in known but absent
	// here falls back to the interpreter at Execute time.
	//
	// entries is a sync.Map, synchronized independently of mu, because
	// resolve (the generator.Resolver passed into Compile) is also
	// called at run time from inside a compiled closure's own CALL
	// indirection (optimization levels below Level3 close over the
	// Resolver and re-invoke it on every call), which happens after
	// Execute has already released mu — a plain map guarded only by mu
	// would be read here with no synchronization at all.
	entries sync.Map

	gen     bool
	level   generator.Level
	tr      trace.Tracer
	persist func(offset uint32, length uint32) error

	// pending holds fragments that failed to compile or verify (most
	// often because a CALL target was not yet resolvable), retried on
	// every subsequent CodeAdded per the spec's "a later ingest
	// completes the link".
	pending map[uint32]pendingFragment
}

type pendingFragment struct {
	offset, length uint32
}

// New constructs an empty Table. When useGenerator is false, CodeAdded
// never attempts lowering and Execute always runs the fragment through
// the interpreter — the "pure-interpreter build" spec.md names, where
// the offset→entry map is trivially offset→offset.
func New(useGenerator bool, level generator.Level, tr trace.Tracer) *Table {
	if tr == nil {
		tr = trace.Discard
	}
	return &Table{
		known:   make(map[uint32]struct{}),
		gen:     useGenerator,
		level:   level,
		tr:      tr,
		pending: make(map[uint32]pendingFragment),
	}
}

// SetPersist installs the hook CodeAdded calls after a successful
// lowering, used to write the l2.bc diagnostic artifact. Optional; nil
// disables persistence.
func (t *Table) SetPersist(fn func(offset, length uint32) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.persist = fn
}

// Reset discards every compiled entry and pending fragment, matching
// the spec's reset-as-destructor: the next CodeAdded starts from a
// clean table.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.known = make(map[uint32]struct{})
	t.entries.Range(func(key, _ interface{}) bool {
		t.entries.Delete(key)
		return true
	})
	t.pending = make(map[uint32]pendingFragment)
}

// resolve implements generator.Resolver, looking up a previously compiled
// entry by offset. It takes no lock of its own beyond sync.Map's internal
// synchronization, and in particular does not require mu: it is called
// both at compile time (while compileLocked already holds mu for
// writing, so re-acquiring it here would deadlock) and at run time, from
// inside a compiled closure's own late-bound CALL indirection, long after
// any mu held by the Execute call that reached it has been released.
func (t *Table) resolve(offset uint32) (generator.Entry, bool) {
	v, ok := t.entries.Load(offset)
	if !ok {
		return nil, false
	}
	return generator.Entry(v.(Entry)), true
}

// CodeAdded ingests one fragment: the bytes in buf[offset:offset+length].
// In interpreter-only mode this only marks offset as known. When the
// generator is enabled it additionally compiles the fragment to an
// Entry; a fragment that fails to compile or verify for any reason
// (most often a CALL target that is not yet resolvable) is parked in
// pending and retried — against this same call's buf, which the host
// is expected to have grown to cover the callee by now — after every
// subsequent CodeAdded, so that a later ingest can complete the link,
// per spec.md §4.3. Until a parked fragment compiles, Execute at its
// offset runs the interpreter. CodeAdded always returns nil.
func (t *Table) CodeAdded(buf []byte, offset, length uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.known[offset] = struct{}{}

	if !t.gen {
		return nil
	}

	if err := t.compileLocked(buf, offset, length); err != nil {
		t.pending[offset] = pendingFragment{offset: offset, length: length}
		return nil
	}
	delete(t.pending, offset)

	t.retryPendingLocked(buf)
	return nil
}

func (t *Table) retryPendingLocked(buf []byte) {
	for {
		progressed := false
		for off, frag := range t.pending {
			if err := t.compileLocked(buf, frag.offset, frag.length); err == nil {
				delete(t.pending, off)
				progressed = true
			}
		}
		if !progressed {
			return
		}
	}
}

func (t *Table) compileLocked(buf []byte, offset, length uint32) error {
	entry, err := generator.Compile(buf, offset, length, t.resolve, t.level, t.tr)
	if err != nil {
		return err
	}
	verified, err := generator.Verify(entry, buf, offset, length)
	if err != nil {
		return fmt.Errorf("loader: verifier rejected fragment at %d: %w", offset, err)
	}
	t.entries.Store(offset, Entry(verified))
	if t.persist != nil {
		if err := t.persist(offset, length); err != nil {
			return fmt.Errorf("loader: persisting fragment at %d: %w", offset, err)
		}
	}
	return nil
}

// Execute dispatches to offset's entry against buf: the
// generator-compiled closure if code_added lowered one, otherwise the
// interpreter's decode loop starting at offset. An offset that
// CodeAdded was never called for fails, per spec.md §4.4. Consecutive
// Execute calls preserve all of m's state unless m is reset between
// them.
//
// cp is primed to len(buf) and the PDL is cleared here, before either
// path runs, exactly as interpreter.Execute does at its own top — a
// generator-compiled entry skips interpreter.Execute entirely, so
// without this a PDL left non-empty by a prior failed Unify (or a stale
// cp left over from an unrelated earlier call) would silently corrupt
// the next generator-dispatched Execute on the same machine.
func (t *Table) Execute(m *machine.Machine, buf []byte, offset uint32) bool {
	t.mu.RLock()
	_, isKnown := t.known[offset]
	t.mu.RUnlock()

	if !isKnown {
		return false
	}

	m.SetCP(uint32(len(buf)))
	m.ClearPDL()

	if v, ok := t.entries.Load(offset); ok {
		return v.(Entry)(m)
	}
	return interpreter.Execute(m, buf, offset, t.tr)
}
