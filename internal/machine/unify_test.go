package machine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDereferenceFollowsChainToFreeVariable(t *testing.T) {
	m := testMachine()
	a, b, c := m.heapBase, m.heapBase+1, m.heapBase+2
	m.data[c] = NewCell(RefTag, c) // free variable
	m.data[b] = NewCell(RefTag, c)
	m.data[a] = NewCell(RefTag, b)

	got := m.Dereference(a)

	require.Equal(t, c, got)
	require.Equal(t, RefTag, m.LastDerefTag())
	require.Equal(t, c, m.LastDerefVal())
}

func TestDereferenceStopsAtNonRefCell(t *testing.T) {
	m := testMachine()
	str, ref := m.heapBase, m.heapBase+1
	m.data[str] = NewCell(StrTag, str+1)
	m.data[ref] = NewCell(RefTag, str)

	got := m.Dereference(ref)

	require.Equal(t, str, got)
	require.Equal(t, StrTag, m.LastDerefTag())
}

func TestUnifyTwoFreeVariablesBindsOne(t *testing.T) {
	m := testMachine()
	a, b := m.heapBase, m.heapBase+1
	m.data[a] = NewCell(RefTag, a)
	m.data[b] = NewCell(RefTag, b)

	ok := m.Unify(a, b)

	require.True(t, ok)
	// The PDL is LIFO: pushing a1=a then a2=b pops b first as d1, a
	// second as d2; bind() binds at d1, so b ends up pointing at a.
	require.Equal(t, a, m.Dereference(b))
}

func TestUnifyMatchingStructuresSucceeds(t *testing.T) {
	m := testMachine()
	// f(X) at h1, f(X) at h2, sharing one free variable.
	h1, h2, x := m.heapBase, m.heapBase+10, m.heapBase+20
	m.data[x] = NewCell(RefTag, x)
	fn := FunctorArity(7, 1)

	m.data[h1] = NewCell(StrTag, h1+1)
	m.data[h1+1] = Cell(fn)
	m.data[h1+2] = NewCell(RefTag, x)

	m.data[h2] = NewCell(StrTag, h2+1)
	m.data[h2+1] = Cell(fn)
	m.data[h2+2] = NewCell(RefTag, x)

	ok := m.Unify(h1, h2)
	require.True(t, ok)
}

func TestUnifyMismatchedFunctorFails(t *testing.T) {
	m := testMachine()
	h1, h2 := m.heapBase, m.heapBase+10
	m.data[h1] = NewCell(StrTag, h1+1)
	m.data[h1+1] = Cell(FunctorArity(1, 0))
	m.data[h2] = NewCell(StrTag, h2+1)
	m.data[h2+1] = Cell(FunctorArity(2, 0))

	ok := m.Unify(h1, h2)
	require.False(t, ok)
}

func TestUnifyMismatchedArgumentsFails(t *testing.T) {
	m := testMachine()
	h1, h2, x, y := m.heapBase, m.heapBase+10, m.heapBase+20, m.heapBase+22
	fn := FunctorArity(3, 1)
	m.data[x] = NewCell(StrTag, x+1) // x bound to an atom-like structure
	m.data[x+1] = Cell(FunctorArity(10, 0))
	m.data[y] = NewCell(StrTag, y+1)
	m.data[y+1] = Cell(FunctorArity(11, 0))

	m.data[h1] = NewCell(StrTag, h1+1)
	m.data[h1+1] = Cell(fn)
	m.data[h1+2] = NewCell(RefTag, x)

	m.data[h2] = NewCell(StrTag, h2+1)
	m.data[h2+1] = Cell(fn)
	m.data[h2+2] = NewCell(RefTag, y)

	ok := m.Unify(h1, h2)
	require.False(t, ok)
}

func TestPDLOverflowFailsUnifyRatherThanPanicking(t *testing.T) {
	// StackSize 0 puts esp and the PDL's own base at the same address,
	// so the PDL has room for exactly one push before colliding with
	// the (empty) stack region.
	m := New(Config{RegisterCount: 2, HeapSize: 50, StackSize: 0, PDLSize: 1})
	a, b := m.heapBase, m.heapBase+1
	m.data[a] = NewCell(RefTag, a)
	m.data[b] = NewCell(RefTag, b)

	require.NotPanics(t, func() {
		ok := m.Unify(a, b)
		require.False(t, ok)
	})
}
