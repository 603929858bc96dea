package machine

// The methods in this file are the shared instruction-semantics
// primitives: the interpreter's decode loop and the generator's compiled
// closures both call these rather than each re-implementing the state
// transitions, matching the spec's requirement that the generator reuse
// "a small set of externally linked primitives ... to avoid re-emitting
// them per fragment."

// PutStruc implements PUT_STRUC xi, f/n.
func (m *Machine) PutStruc(xi uint32, fn uint32) {
	h := m.hp
	m.data[h] = NewCell(StrTag, h+1)
	m.data[h+1] = Cell(fn)
	m.data[xi] = m.data[h]
	m.hp += 2
}

// SetVar implements SET_VAR xi.
func (m *Machine) SetVar(xi uint32) {
	h := m.hp
	m.data[h] = NewCell(RefTag, h)
	m.data[xi] = m.data[h]
	m.hp++
}

// SetVal implements SET_VAL xi.
func (m *Machine) SetVal(xi uint32) {
	h := m.hp
	m.data[h] = m.data[xi]
	m.hp++
}

// GetStruc implements GET_STRUC xi, f/n, returning false on functor/arity
// mismatch.
func (m *Machine) GetStruc(xi uint32, fn uint32) bool {
	addr := m.Dereference(xi)
	switch m.lastDerefTag {
	case RefTag:
		h := m.hp
		m.data[h] = NewCell(StrTag, h+1)
		m.data[h+1] = Cell(fn)
		m.data[addr] = NewCell(RefTag, h)
		m.hp += 2
		m.writeMode = true
		return true
	case StrTag:
		val := m.lastDerefVal
		if uint32(m.data[val]) == fn {
			m.sp = val + 1
			m.writeMode = false
			return true
		}
		return false
	default:
		return false
	}
}

// UnifyVar implements UNIFY_VAR xi.
func (m *Machine) UnifyVar(xi uint32) {
	if !m.writeMode {
		m.data[xi] = m.data[m.sp]
	} else {
		h := m.hp
		m.data[h] = NewCell(RefTag, h)
		m.data[xi] = m.data[h]
		m.hp++
	}
	m.sp++
}

// UnifyVal implements UNIFY_VAL xi, returning false on unification
// failure in read mode.
func (m *Machine) UnifyVal(xi uint32) bool {
	ok := true
	if !m.writeMode {
		ok = m.Unify(xi, m.sp)
	} else {
		h := m.hp
		m.data[h] = m.data[xi]
		m.hp++
	}
	m.sp++
	return ok
}

// PutVar implements PUT_VAR xi, ai.
func (m *Machine) PutVar(xi, ai uint32) {
	h := m.hp
	m.data[h] = NewCell(RefTag, h)
	m.data[xi] = m.data[h]
	m.data[ai] = m.data[h]
	m.hp++
}
