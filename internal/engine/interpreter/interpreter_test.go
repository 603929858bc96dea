package interpreter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rupertlssmith/hak-wambook/internal/bytecode"
	"github.com/rupertlssmith/hak-wambook/internal/machine"
)

func newTestMachine() *machine.Machine {
	return machine.New(machine.Config{RegisterCount: 10, HeapSize: 1000, StackSize: 1000, PDLSize: 200})
}

// structInstr returns a PUT_STRUC/GET_STRUC instruction (REG_ADDR mode)
// for register xi, functor/arity fn.
func structInstr(op bytecode.Op, xi uint32, fn uint32) []byte {
	b := make([]byte, 7)
	b[0] = byte(op)
	b[1] = byte(bytecode.RegAddr)
	b[2] = byte(xi)
	copy(b[3:7], le32(fn))
	return b
}

func slotInstr(op bytecode.Op, xi uint32) []byte {
	b := make([]byte, 3)
	b[0] = byte(op)
	b[1] = byte(bytecode.RegAddr)
	b[2] = byte(xi)
	return b
}

func le32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func callInstr(target int32) []byte {
	b := make([]byte, 5)
	b[0] = byte(bytecode.OpCall)
	copy(b[1:5], le32(uint32(target)))
	return b
}

func allocateInstr(n byte) []byte {
	return []byte{byte(bytecode.OpAllocate), n}
}

// TestScenario1BuildGroundTerm builds p(Z, h(Z, W), f(W)) in registers and
// checks the resulting heap structure, per spec.md scenario 1.
func TestScenario1BuildGroundTerm(t *testing.T) {
	m := newTestMachine()
	hFn := machine.FunctorArity(100, 2)
	fFn := machine.FunctorArity(101, 1)
	pFn := machine.FunctorArity(102, 3)

	var buf []byte
	buf = append(buf, structInstr(bytecode.OpPutStruc, 3, hFn)...)
	buf = append(buf, slotInstr(bytecode.OpSetVar, 2)...)
	buf = append(buf, slotInstr(bytecode.OpSetVar, 5)...)
	buf = append(buf, structInstr(bytecode.OpPutStruc, 4, fFn)...)
	buf = append(buf, slotInstr(bytecode.OpSetVal, 5)...)
	buf = append(buf, structInstr(bytecode.OpPutStruc, 1, pFn)...)
	buf = append(buf, slotInstr(bytecode.OpSetVal, 2)...)
	buf = append(buf, slotInstr(bytecode.OpSetVal, 3)...)
	buf = append(buf, slotInstr(bytecode.OpSetVal, 4)...)

	ok := Execute(m, buf, 0, nil)
	require.True(t, ok)

	derefAddr := m.Dereference(1)
	require.Equal(t, machine.StrTag, m.LastDerefTag())
	require.Equal(t, derefAddr, m.Dereference(1))

	functorCell := m.GetCell(m.LastDerefVal())
	require.Equal(t, Cell(pFn), functorCell)
}

// Cell is a local alias so the functor-cell comparison above reads
// naturally; machine.Cell is the real type.
type Cell = machine.Cell

// TestScenario2MatchAgainstFreeVariable runs GET_STRUC against an unbound
// register and expects write mode to engage, per spec.md scenario 2.
func TestScenario2MatchAgainstFreeVariable(t *testing.T) {
	m := newTestMachine()
	fooFn := machine.FunctorArity(200, 0)
	// X0 must already hold a free variable before GET_STRUC runs
	// against it, per the calling convention spec.md §4.2 assumes
	// (registers are seeded by earlier PUT_VAR/SET_VAR instructions in
	// any real clause; this test isolates the one instruction).
	m.SetCell(0, machine.NewCell(machine.RefTag, 0))
	buf := structInstr(bytecode.OpGetStruc, 0, fooFn)

	ok := Execute(m, buf, 0, nil)
	require.True(t, ok)
	require.True(t, m.WriteMode())

	addr := m.Dereference(0)
	require.Equal(t, machine.StrTag, m.LastDerefTag())
	require.Equal(t, Cell(fooFn), m.GetCell(m.LastDerefVal()))
	_ = addr
}

// TestScenario3Mismatch builds a/0 in X0 then attempts GET_STRUC X0, b/0,
// expecting failure, per spec.md scenario 3.
func TestScenario3Mismatch(t *testing.T) {
	m := newTestMachine()
	aFn := machine.FunctorArity(1, 0)
	bFn := machine.FunctorArity(2, 0)

	var buf []byte
	buf = append(buf, structInstr(bytecode.OpPutStruc, 0, aFn)...)
	buf = append(buf, structInstr(bytecode.OpGetStruc, 0, bFn)...)

	ok := Execute(m, buf, 0, nil)
	require.False(t, ok)
}

// TestScenario4CallReturn exercises ALLOCATE/CALL/DEALLOCATE/PROCEED and
// checks ep/esp are restored, per spec.md scenario 4.
func TestScenario4CallReturn(t *testing.T) {
	m := newTestMachine()
	preEP, preESP := m.EP(), m.ESP()

	var buf []byte
	buf = append(buf, allocateInstr(0)...)   // offset 0..1
	buf = append(buf, callInstr(42)...)      // offset 2..6
	buf = append(buf, byte(bytecode.OpDeallocate)) // offset 7
	for len(buf) < 42 {
		buf = append(buf, 0x00)
	}
	buf = append(buf, byte(bytecode.OpProceed)) // offset 42

	ok := Execute(m, buf, 0, nil)
	require.True(t, ok)
	require.Equal(t, preEP, m.EP())
	require.Equal(t, preESP, m.ESP())
}

// TestScenario5UnlinkedCall expects CALL -1 to fail, per spec.md scenario
// 5.
func TestScenario5UnlinkedCall(t *testing.T) {
	m := newTestMachine()
	buf := callInstr(bytecode.UnlinkedCall)

	ok := Execute(m, buf, 0, nil)
	require.False(t, ok)
}

// TestScenario6UnknownOpcode expects byte 0xFF to fail, per spec.md
// scenario 6.
func TestScenario6UnknownOpcode(t *testing.T) {
	m := newTestMachine()
	buf := []byte{0xFF}

	ok := Execute(m, buf, 0, nil)
	require.False(t, ok)
}

// TestRoundTripBuildThenMatch builds the ground term f(a) in X1 by
// PUT_STRUC/SET_VAL, then matches it against a fresh free variable X3
// by GET_STRUC/UNIFY_VAL, per spec.md §8's round-trip invariant: the
// match succeeds and leaves X3 bound to a copy of the ground term.
func TestRoundTripBuildThenMatch(t *testing.T) {
	m := newTestMachine()
	aFn := machine.FunctorArity(10, 0)
	fFn := machine.FunctorArity(50, 1)

	var build []byte
	build = append(build, structInstr(bytecode.OpPutStruc, 2, aFn)...)
	build = append(build, structInstr(bytecode.OpPutStruc, 1, fFn)...)
	build = append(build, slotInstr(bytecode.OpSetVal, 2)...)
	require.True(t, Execute(m, build, 0, nil))

	// X3 must already hold a free variable before GET_STRUC runs
	// against it, per the calling convention spec.md §4.2 assumes.
	m.SetCell(3, machine.NewCell(machine.RefTag, 3))

	var match []byte
	match = append(match, structInstr(bytecode.OpGetStruc, 3, fFn)...)
	match = append(match, slotInstr(bytecode.OpUnifyVal, 2)...)
	require.True(t, Execute(m, match, 0, nil))
	require.True(t, m.WriteMode())

	target := m.Dereference(3)
	require.Equal(t, machine.StrTag, m.LastDerefTag())
	functorAddr := m.LastDerefVal()
	require.Equal(t, Cell(fFn), m.GetCell(functorAddr))
	// The copied argument cell must equal X2's atom structure cell.
	require.Equal(t, m.GetCell(2), m.GetCell(functorAddr+1))
	_ = target
}

func TestIdempotentUnifyMutatesNoCell(t *testing.T) {
	m := newTestMachine()
	a, b := m.HeapBase(), m.HeapBase()+1
	m.SetCell(a, machine.NewCell(machine.RefTag, a))
	m.SetCell(b, machine.NewCell(machine.RefTag, b))

	require.True(t, m.Unify(a, b))
	before := m.GetCell(m.Dereference(b))

	require.True(t, m.Unify(a, b))
	after := m.GetCell(m.Dereference(b))

	require.Equal(t, before, after)
}
