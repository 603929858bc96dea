package machine

import "errors"

// errPDLOverflow is returned when unify would grow the PDL past the
// environment stack's current top. The spec leaves PDL overflow undefined
// and flags it as an open question; this implementation resolves it with
// the defensive bounds check the spec's own design notes recommend,
// surfacing overflow as an ordinary unification failure rather than a
// panic.
var errPDLOverflow = errors.New("machine: PDL overflow")

// Dereference follows a REF chain starting at address a until the cell at
// the current address is not REF, or is REF and self-pointing (a free
// variable). It publishes the final cell's tag and value into the
// machine's last-deref pseudo-registers as a side effect and returns the
// final address.
func (m *Machine) Dereference(a uint32) uint32 {
	addr := a
	cell := m.data[addr]
	tag := cell.Tag()
	val := cell.Payload()

	for tag == RefTag && val != addr {
		addr = val
		cell = m.data[addr]
		tag = cell.Tag()
		val = cell.Payload()
	}

	m.lastDerefTag = tag
	m.lastDerefVal = val
	return addr
}

// bind makes one free-variable endpoint point at the other cell. When both
// d1 and d2 are free variables either direction is a legal choice; this
// implementation always binds at d1, breaking ties by argument order, to
// match the reference implementation rather than a "bind younger toward
// older" rule it does not actually follow.
func (m *Machine) bind(d1, d2 uint32) {
	t1 := m.data[d1].Tag()
	if t1 == RefTag {
		m.data[d1] = NewCell(RefTag, d2)
		return
	}
	m.data[d2] = NewCell(RefTag, d1)
}

func (m *Machine) pdlPush(v uint32) error {
	if m.up <= m.esp {
		return errPDLOverflow
	}
	m.up--
	m.data[m.up] = Cell(v)
	return nil
}

func (m *Machine) pdlPop() uint32 {
	v := uint32(m.data[m.up])
	m.up++
	return v
}

func (m *Machine) pdlEmpty() bool {
	return m.up >= m.pdlTop
}

// ClearPDL empties the PDL. Called once per top-level Execute, matching
// the reference implementation's uClear() at the top of its execute entry
// point.
func (m *Machine) ClearPDL() {
	m.up = m.pdlTop
}

// Unify pushes a1, a2 onto the PDL and iterates until the PDL is empty or
// a structural mismatch is found. It returns false on mismatch or on PDL
// overflow; both collapse to the same unification-failure outcome the
// instruction set exposes to callers.
//
// Unify does not clear the PDL itself: the PDL is shared by the whole
// machine, not scoped per call, so a nested invocation is only safe if the
// caller has left it empty — the same discipline the WAM's instruction
// set guarantees. ClearPDL is called once per top-level Execute.
func (m *Machine) Unify(a1, a2 uint32) bool {
	if m.pdlPush(a1) != nil || m.pdlPush(a2) != nil {
		return false
	}

	for !m.pdlEmpty() {
		d1 := m.Dereference(m.pdlPop())
		t1, v1 := m.lastDerefTag, m.lastDerefVal
		d2 := m.Dereference(m.pdlPop())
		t2, v2 := m.lastDerefTag, m.lastDerefVal

		if d1 == d2 {
			continue
		}

		if t1 == RefTag || t2 == RefTag {
			m.bind(d1, d2)
			continue
		}

		// Both endpoints are STR: compare the functor/arity words at
		// their payload addresses, then push argument pairs.
		fn1 := uint32(m.data[v1])
		fn2 := uint32(m.data[v2])
		if fn1 != fn2 {
			return false
		}
		n1 := Arity(fn1)
		for i := uint32(1); i <= uint32(n1); i++ {
			if m.pdlPush(v1+i) != nil || m.pdlPush(v2+i) != nil {
				return false
			}
		}
	}

	return true
}
