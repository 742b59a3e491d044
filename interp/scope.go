package interp

// Scope is one frame of the lexical scope chain. Lookups walk from the
// innermost frame outwards; assignments always bind in the frame itself.
type Scope struct {
	vars   map[string]Value
	parent *Scope
}

// NewScope creates a frame nested in parent, which may be nil
func NewScope(parent *Scope) *Scope {
	return &Scope{vars: map[string]Value{}, parent: parent}
}

// Lookup resolves name from the innermost frame outwards
func (s *Scope) Lookup(name string) (Value, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if v, ok := sc.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Set binds name in this frame
func (s *Scope) Set(name string, v Value) {
	s.vars[name] = v
}

// Delete unbinds name from this frame
func (s *Scope) Delete(name string) bool {
	if _, ok := s.vars[name]; !ok {
		return false
	}
	delete(s.vars, name)
	return true
}
