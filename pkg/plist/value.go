// Package plist implements the structured-document codec used by the
// device link protocol: an ordered-dictionary/array/scalar value tree
// with a binary property list ("bplist00") wire encoding.
package plist

import "fmt"

// Kind identifies the node kind of a Value.
type Kind uint8

// Value kinds.
const (
	KindDict Kind = iota
	KindArray
	KindString
	KindUInt
	KindReal
	KindBool
	KindData
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindDict:
		return "dict"
	case KindArray:
		return "array"
	case KindString:
		return "string"
	case KindUInt:
		return "uint"
	case KindReal:
		return "real"
	case KindBool:
		return "bool"
	case KindData:
		return "data"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a node in a property list document tree.
type Value interface {
	// Kind reports the node kind.
	Kind() Kind

	// Copy returns a deep copy of the value.
	Copy() Value
}

// Dict is an insertion-ordered string-keyed dictionary node.
// The zero value is not usable; use NewDict.
type Dict struct {
	keys  []string
	items map[string]Value
}

// NewDict creates an empty dictionary.
func NewDict() *Dict {
	return &Dict{items: make(map[string]Value)}
}

// Kind returns KindDict.
func (d *Dict) Kind() Kind { return KindDict }

// Set inserts or replaces the value for key. A replaced key keeps its
// original position in the insertion order.
func (d *Dict) Set(key string, v Value) {
	if _, ok := d.items[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.items[key] = v
}

// Get returns the value for key and whether it is present.
func (d *Dict) Get(key string) (Value, bool) {
	v, ok := d.items[key]
	return v, ok
}

// Len returns the number of entries.
func (d *Dict) Len() int { return len(d.keys) }

// Keys returns the keys in insertion order. The returned slice is a
// copy; mutating it does not affect the dictionary.
func (d *Dict) Keys() []string {
	keys := make([]string, len(d.keys))
	copy(keys, d.keys)
	return keys
}

// Copy returns a deep copy of the dictionary.
func (d *Dict) Copy() Value {
	c := NewDict()
	for _, k := range d.keys {
		c.Set(k, d.items[k].Copy())
	}
	return c
}

// Array is an ordered sequence node.
type Array struct {
	items []Value
}

// NewArray creates an empty array.
func NewArray() *Array {
	return &Array{}
}

// Kind returns KindArray.
func (a *Array) Kind() Kind { return KindArray }

// Append adds a value at the end of the array.
func (a *Array) Append(v Value) {
	a.items = append(a.items, v)
}

// Len returns the number of elements.
func (a *Array) Len() int { return len(a.items) }

// At returns the element at index i, or nil if i is out of range.
func (a *Array) At(i int) Value {
	if i < 0 || i >= len(a.items) {
		return nil
	}
	return a.items[i]
}

// Copy returns a deep copy of the array.
func (a *Array) Copy() Value {
	c := NewArray()
	for _, v := range a.items {
		c.Append(v.Copy())
	}
	return c
}

// String is a UTF-8 string node.
type String string

// Kind returns KindString.
func (s String) Kind() Kind { return KindString }

// Copy returns the string itself; strings are immutable.
func (s String) Copy() Value { return s }

// UInt is an unsigned integer node.
type UInt uint64

// Kind returns KindUInt.
func (u UInt) Kind() Kind { return KindUInt }

// Copy returns the integer itself.
func (u UInt) Copy() Value { return u }

// Real is a floating-point number node.
type Real float64

// Kind returns KindReal.
func (r Real) Kind() Kind { return KindReal }

// Copy returns the number itself.
func (r Real) Copy() Value { return r }

// Bool is a boolean node.
type Bool bool

// Kind returns KindBool.
func (b Bool) Kind() Kind { return KindBool }

// Copy returns the boolean itself.
func (b Bool) Copy() Value { return b }

// Data is an opaque byte-string node.
type Data []byte

// Kind returns KindData.
func (d Data) Kind() Kind { return KindData }

// Copy returns a copy with its own backing bytes.
func (d Data) Copy() Value {
	c := make(Data, len(d))
	copy(c, d)
	return c
}

// StringValue extracts the string from a KindString node.
func StringValue(v Value) (string, error) {
	s, ok := v.(String)
	if !ok {
		return "", kindError(v, KindString)
	}
	return string(s), nil
}

// UintValue extracts the integer from a KindUInt node.
func UintValue(v Value) (uint64, error) {
	u, ok := v.(UInt)
	if !ok {
		return 0, kindError(v, KindUInt)
	}
	return uint64(u), nil
}

// RealValue extracts the number from a KindReal node.
func RealValue(v Value) (float64, error) {
	r, ok := v.(Real)
	if !ok {
		return 0, kindError(v, KindReal)
	}
	return float64(r), nil
}

// BoolValue extracts the boolean from a KindBool node.
func BoolValue(v Value) (bool, error) {
	b, ok := v.(Bool)
	if !ok {
		return false, kindError(v, KindBool)
	}
	return bool(b), nil
}

// DataValue extracts the bytes from a KindData node. The returned
// slice aliases the node's backing bytes.
func DataValue(v Value) ([]byte, error) {
	d, ok := v.(Data)
	if !ok {
		return nil, kindError(v, KindData)
	}
	return []byte(d), nil
}

func kindError(v Value, want Kind) error {
	if v == nil {
		return fmt.Errorf("nil value is not a %s: %w", want, ErrTypeMismatch)
	}
	return fmt.Errorf("%s is not a %s: %w", v.Kind(), want, ErrTypeMismatch)
}

// Equal reports structural equality of two values. Dictionaries are
// compared as key sets (insertion order is a wire-level detail, not a
// semantic one); arrays are compared positionally.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case *Dict:
		bv := b.(*Dict)
		if av.Len() != bv.Len() {
			return false
		}
		for _, k := range av.keys {
			bitem, ok := bv.items[k]
			if !ok || !Equal(av.items[k], bitem) {
				return false
			}
		}
		return true
	case *Array:
		bv := b.(*Array)
		if av.Len() != bv.Len() {
			return false
		}
		for i, item := range av.items {
			if !Equal(item, bv.items[i]) {
				return false
			}
		}
		return true
	case Data:
		bv := b.(Data)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
