package machine

// Config carries the region sizes used to size a Machine's data area. The
// zero value is not valid; use DefaultConfig or a value built by the
// public wam.MachineConfig builder.
type Config struct {
	RegisterCount uint32
	HeapSize      uint32
	StackSize     uint32
	PDLSize       uint32
}

// DefaultConfig matches the region sizes named in the spec's data model
// table: 10 registers, a 10000-cell heap, a 10000-cell environment stack
// and a 1000-cell PDL.
func DefaultConfig() Config {
	return Config{
		RegisterCount: 10,
		HeapSize:      10000,
		StackSize:     10000,
		PDLSize:       1000,
	}
}

// Machine holds the entire data area (registers, heap, environment stack,
// PDL) plus the scalar execution state of a single abstract machine
// instance. Every primitive in this package takes an explicit *Machine
// rather than reading a package-level pointer, so that callers who want
// more than the single global instance the spec describes as the default
// can simply construct more than one.
type Machine struct {
	cfg Config

	// data holds the whole address space: registers, heap, stack and PDL
	// back to back, so that register cells are read and written through
	// exactly the same code path as heap cells.
	data []Cell

	// Region boundaries, computed once from cfg.
	regBase, regTop     uint32
	heapBase, heapTop   uint32
	stackBase, stackTop uint32
	pdlBase, pdlTop     uint32

	// hp is the heap pointer; the next free heap cell.
	hp uint32
	// sp is the next-match pointer, used in read mode to walk the
	// structure being matched against.
	sp uint32
	// up is the PDL pointer; it grows downward from pdlTop.
	up uint32
	// ep is the current environment frame's base address.
	ep uint32
	// esp is the first free address above the topmost environment frame.
	esp uint32
	// cp is the continuation pointer, the address PROCEED/DEALLOCATE
	// resume execution at.
	cp uint32
	// ip is the instruction pointer into the code buffer currently being
	// executed.
	ip uint32
	// writeMode is set only by GET_STRUC; it controls whether UNIFY_VAR
	// and UNIFY_VAL read from sp or lay down new cells at hp.
	writeMode bool

	// lastDerefTag and lastDerefVal publish the result of the most recent
	// dereference, per the spec's inspection surface.
	lastDerefTag Tag
	lastDerefVal uint32
}

// New constructs a Machine sized by cfg and resets it to its initial
// state.
func New(cfg Config) *Machine {
	m := &Machine{cfg: cfg}
	m.Reset()
	return m
}

// Reset reallocates the data area zeroed and restores every pointer to its
// initial position. It is the only destructor: cells are never freed
// individually.
func (m *Machine) Reset() {
	c := m.cfg
	m.regBase, m.regTop = 0, c.RegisterCount
	m.heapBase, m.heapTop = m.regTop, m.regTop+c.HeapSize
	m.stackBase, m.stackTop = m.heapTop, m.heapTop+c.StackSize
	m.pdlBase, m.pdlTop = m.stackTop, m.stackTop+c.PDLSize

	m.data = make([]Cell, m.pdlTop)

	m.hp = m.heapBase
	m.sp = m.heapBase
	m.ep = m.stackBase
	m.esp = m.stackBase
	m.up = m.pdlTop
	m.cp = 0
	m.ip = 0
	m.writeMode = false
	m.lastDerefTag = 0
	m.lastDerefVal = 0
}

// Top returns the first address strictly outside the data area; every
// address referenced by any cell must lie in [0, Top()).
func (m *Machine) Top() uint32 {
	return m.pdlTop
}

// RegisterTop is the first address above the register region; registers
// occupy addresses 0..RegisterCount.
func (m *Machine) RegisterTop() uint32 { return m.regTop }

// HeapBase is the first heap address, immediately above the registers.
func (m *Machine) HeapBase() uint32 { return m.heapBase }

// StackBase is the first environment-stack address.
func (m *Machine) StackBase() uint32 { return m.stackBase }

// FrameHeaderSize is the number of header words at the base of every
// environment frame: saved ep, saved cp, frame size N.
const FrameHeaderSize = 3

// GetCell reads a raw cell at an absolute address. Panics if addr is
// outside the data area; callers that resolve addresses from untrusted
// byte code should range-check first via InBounds.
func (m *Machine) GetCell(addr uint32) Cell {
	return m.data[addr]
}

// SetCell writes a raw cell at an absolute address.
func (m *Machine) SetCell(addr uint32, c Cell) {
	m.data[addr] = c
}

// InBounds reports whether addr lies in [0, Top()).
func (m *Machine) InBounds(addr uint32) bool {
	return addr < m.Top()
}

// HP returns the current heap pointer.
func (m *Machine) HP() uint32 { return m.hp }

// SP returns the current next-match pointer.
func (m *Machine) SP() uint32 { return m.sp }

// EP returns the current environment base pointer.
func (m *Machine) EP() uint32 { return m.ep }

// ESP returns the current environment top-of-stack pointer.
func (m *Machine) ESP() uint32 { return m.esp }

// CP returns the current continuation pointer.
func (m *Machine) CP() uint32 { return m.cp }

// SetCP overwrites the continuation pointer, used by CALL.
func (m *Machine) SetCP(cp uint32) { m.cp = cp }

// WriteMode reports whether the machine is currently in structure write
// mode, as set by the most recent GET_STRUC.
func (m *Machine) WriteMode() bool { return m.writeMode }

// SetWriteMode overwrites the read/write mode flag; only GET_STRUC does
// this.
func (m *Machine) SetWriteMode(w bool) { m.writeMode = w }

// SetSP overwrites the next-match pointer.
func (m *Machine) SetSP(sp uint32) { m.sp = sp }

// GrowHeap advances the heap pointer by n cells, after the caller has
// written the n cells starting at the pre-call HP().
func (m *Machine) GrowHeap(n uint32) { m.hp += n }

// LastDerefTag and LastDerefVal return the tag/value published by the most
// recent dereference, per the spec's pseudo-registers.
func (m *Machine) LastDerefTag() Tag     { return m.lastDerefTag }
func (m *Machine) LastDerefVal() uint32  { return m.lastDerefVal }

// StackSlot resolves a permanent-variable index k within the current frame
// to its absolute address: ep + FrameHeaderSize + k.
func (m *Machine) StackSlot(k uint32) uint32 {
	return m.ep + FrameHeaderSize + k
}

// Allocate implements ALLOCATE N: it writes a new frame header at esp
// (saved ep, saved cp, frame size N), then moves ep to that header and
// advances esp past the N permanent variable slots.
func (m *Machine) Allocate(n uint32) {
	m.data[m.esp] = Cell(m.ep)
	m.data[m.esp+1] = Cell(m.cp)
	m.data[m.esp+2] = Cell(n)
	m.ep = m.esp
	m.esp = m.esp + n + FrameHeaderSize
}

// Deallocate implements DEALLOCATE: it pops the current frame, moving esp
// back to the popped frame's base, restoring ep and cp from the frame
// header's saved values, then sets ip to the restored cp.
//
// The header fields are all read relative to the frame being torn down
// (the pre-deallocate ep) before ep itself is overwritten. Reading cp
// after overwriting ep, as a naive port of the JIT variant would, reads
// the grandparent frame's slot instead of the one just popped (see
// SPEC_FULL.md's DEALLOCATE ordering decision).
func (m *Machine) Deallocate() {
	oldEP := m.ep
	m.esp = oldEP
	m.cp = uint32(m.data[oldEP+1])
	m.ep = uint32(m.data[oldEP])
	m.ip = m.cp
}

// IP returns the current instruction pointer.
func (m *Machine) IP() uint32 { return m.ip }

// SetIP overwrites the instruction pointer, used by CALL/PROCEED and by
// the decode loop's normal advance.
func (m *Machine) SetIP(ip uint32) { m.ip = ip }
