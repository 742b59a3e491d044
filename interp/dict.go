package interp

import (
	"math"
	"strings"
)

// Dict is an insertion-ordered mapping. Counter and defaultdict instances
// are dicts with a different class and missing-key behaviour.
type Dict struct {
	keys    []Value
	vals    []Value
	index   map[any]int
	class   *Type
	factory Value
}

// Set is an insertion-ordered set
type Set struct {
	items []Value
	index map[any]int
}

type (
	noneKey  struct{}
	strKey   string
	tupleKey string
)

// NewDict creates an empty dict
func NewDict() *Dict {
	return &Dict{index: map[any]int{}, class: DictType}
}

// NewSet creates an empty set
func NewSet() *Set {
	return &Set{index: map[any]int{}}
}

func (d *Dict) Type() *Type { return d.class }
func (*Set) Type() *Type    { return SetType }

// hashKey maps a hashable value onto a comparable Go key. Numbers that
// compare equal share a key, so 1, 1.0 and True address the same entry.
func hashKey(v Value) (any, error) {
	return hashKeyAt(v, 0)
}

func hashKeyAt(v Value, depth int) (any, error) {
	checkValueDepth(depth)
	switch x := v.(type) {
	case NoneType:
		return noneKey{}, nil
	case Bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	case Int:
		return int64(x), nil
	case Float:
		f := float64(x)
		if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1<<63 {
			return int64(f), nil
		}
		return f, nil
	case Str:
		return strKey(x), nil
	case Tuple:
		var b strings.Builder
		for _, elt := range x {
			k, err := hashKeyAt(elt, depth+1)
			if err != nil {
				return nil, err
			}
			b.WriteString(keyString(k))
			b.WriteByte(0)
		}
		return tupleKey(b.String()), nil
	case *Function, *Builtin, *Module, *Type, *Exception, *Object, *Range:
		return x, nil
	}
	return nil, excf(TypeErrorType, "unhashable type: '%s'", typeName(v))
}

func keyString(k any) string {
	switch x := k.(type) {
	case noneKey:
		return "n"
	case int64:
		return "i" + Int(x).String()
	case float64:
		return "f" + floatRepr(x)
	case strKey:
		return "s" + strings.ReplaceAll(string(x), "\x00", "\x00\x00")
	case tupleKey:
		return "t(" + string(x) + ")"
	default:
		return "p" + pointerID(x)
	}
}

// Len returns the number of entries
func (d *Dict) Len() int {
	return len(d.keys)
}

// Get looks up key
func (d *Dict) Get(key Value) (Value, bool, error) {
	k, err := hashKey(key)
	if err != nil {
		return nil, false, err
	}
	i, ok := d.index[k]
	if !ok {
		return nil, false, nil
	}
	return d.vals[i], true, nil
}

// Set stores value under key, keeping the original insertion position
func (d *Dict) Set(key, value Value) error {
	k, err := hashKey(key)
	if err != nil {
		return err
	}
	if i, ok := d.index[k]; ok {
		d.vals[i] = value
		return nil
	}
	d.index[k] = len(d.keys)
	d.keys = append(d.keys, key)
	d.vals = append(d.vals, value)
	return nil
}

// SetStr stores value under a string key
func (d *Dict) SetStr(key string, value Value) {
	_ = d.Set(Str(key), value)
}

// Delete removes key and reports whether it was present
func (d *Dict) Delete(key Value) (Value, bool, error) {
	k, err := hashKey(key)
	if err != nil {
		return nil, false, err
	}
	i, ok := d.index[k]
	if !ok {
		return nil, false, nil
	}
	val := d.vals[i]
	d.keys = append(d.keys[:i], d.keys[i+1:]...)
	d.vals = append(d.vals[:i], d.vals[i+1:]...)
	delete(d.index, k)
	for j := i; j < len(d.keys); j++ {
		kj, _ := hashKey(d.keys[j])
		d.index[kj] = j
	}
	return val, true, nil
}

// Keys returns a snapshot of the keys in insertion order
func (d *Dict) Keys() []Value {
	return append([]Value(nil), d.keys...)
}

// Values returns a snapshot of the values in insertion order
func (d *Dict) Values() []Value {
	return append([]Value(nil), d.vals...)
}

// Items returns (key, value) tuples in insertion order
func (d *Dict) Items() []Value {
	items := make([]Value, len(d.keys))
	for i := range d.keys {
		items[i] = Tuple{d.keys[i], d.vals[i]}
	}
	return items
}

// Copy returns a shallow copy with the same class
func (d *Dict) Copy() *Dict {
	cp := &Dict{
		keys:    append([]Value(nil), d.keys...),
		vals:    append([]Value(nil), d.vals...),
		index:   make(map[any]int, len(d.index)),
		class:   d.class,
		factory: d.factory,
	}
	for k, v := range d.index {
		cp.index[k] = v
	}
	return cp
}

// Clear removes every entry
func (d *Dict) Clear() {
	d.keys = nil
	d.vals = nil
	d.index = map[any]int{}
}

// Len returns the number of items
func (s *Set) Len() int {
	return len(s.items)
}

// Add inserts v
func (s *Set) Add(v Value) error {
	k, err := hashKey(v)
	if err != nil {
		return err
	}
	if _, ok := s.index[k]; ok {
		return nil
	}
	s.index[k] = len(s.items)
	s.items = append(s.items, v)
	return nil
}

// Contains reports membership
func (s *Set) Contains(v Value) (bool, error) {
	k, err := hashKey(v)
	if err != nil {
		return false, err
	}
	_, ok := s.index[k]
	return ok, nil
}

// Remove deletes v and reports whether it was present
func (s *Set) Remove(v Value) (bool, error) {
	k, err := hashKey(v)
	if err != nil {
		return false, err
	}
	i, ok := s.index[k]
	if !ok {
		return false, nil
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	delete(s.index, k)
	for j := i; j < len(s.items); j++ {
		kj, _ := hashKey(s.items[j])
		s.index[kj] = j
	}
	return true, nil
}

// Items returns a snapshot of the members in insertion order
func (s *Set) Items() []Value {
	return append([]Value(nil), s.items...)
}

// Copy returns a shallow copy
func (s *Set) Copy() *Set {
	cp := &Set{items: append([]Value(nil), s.items...), index: make(map[any]int, len(s.index))}
	for k, v := range s.index {
		cp.index[k] = v
	}
	return cp
}

func setFrom(items []Value) (*Set, error) {
	s := NewSet()
	for _, v := range items {
		if err := s.Add(v); err != nil {
			return nil, err
		}
	}
	return s, nil
}
