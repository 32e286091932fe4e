package temper

import (
	"container/list"
	"fmt"
	"reflect"
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt
	KindUint
	KindFloat
	KindBool
	KindString
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindSequence:
		return "sequence"
	default:
		return "invalid"
	}
}

// Iterator walks the elements of a sequence Value. Next returns false once
// the sequence is exhausted.
type Iterator interface {
	Next() (Value, bool)
}

// Iterable is implemented by anything that can be bound as a sequence.
// Each call to Iterate must start a fresh walk from the first element.
type Iterable interface {
	Iterate() Iterator
}

// Value is a binding value: an integer, float, boolean, string, or
// sequence. The zero Value is invalid; it's neither printable nor a
// sequence.
type Value struct {
	kind Kind
	num  uint64
	flt  float64
	str  string
	seq  Iterable
}

// Int returns a Value holding a signed integer.
func Int(i int64) Value {
	return Value{kind: KindInt, num: uint64(i)}
}

// Uint returns a Value holding an unsigned integer.
func Uint(u uint64) Value {
	return Value{kind: KindUint, num: u}
}

// Float returns a Value holding a floating point number.
func Float(f float64) Value {
	return Value{kind: KindFloat, flt: f}
}

// Bool returns a Value holding a boolean.
func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.num = 1
	}
	return v
}

// String returns a Value holding a string.
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Seq returns a sequence Value over items.
func Seq(items ...Value) Value {
	return Value{kind: KindSequence, seq: sliceIterable(items)}
}

// Iter returns a sequence Value backed by it.
func Iter(it Iterable) Value {
	return Value{kind: KindSequence, seq: it}
}

// Kind returns the variant the Value holds.
func (v Value) Kind() Kind {
	return v.kind
}

// Printable reports whether the Value has a textual form.
func (v Value) Printable() bool {
	switch v.kind {
	case KindInt, KindUint, KindFloat, KindBool, KindString:
		return true
	default:
		return false
	}
}

// IsSequence reports whether the Value can be iterated by a for block.
func (v Value) IsSequence() bool {
	return v.kind == KindSequence && v.seq != nil
}

// Iterate starts a walk over a sequence Value. Values that aren't
// sequences iterate as empty.
func (v Value) Iterate() Iterator {
	if !v.IsSequence() {
		return sliceIterable(nil).Iterate()
	}
	return v.seq.Iterate()
}

// String returns the Value's textual form, or an empty string if it isn't
// printable.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(int64(v.num), 10)
	case KindUint:
		return strconv.FormatUint(v.num, 10)
	case KindFloat:
		return strconv.FormatFloat(v.flt, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.num != 0)
	case KindString:
		return v.str
	default:
		return ""
	}
}

type sliceIterable []Value

func (s sliceIterable) Iterate() Iterator {
	return &sliceIterator{items: s}
}

type sliceIterator struct {
	items []Value
	pos   int
}

func (it *sliceIterator) Next() (Value, bool) {
	if it.pos >= len(it.items) {
		return Value{}, false
	}
	v := it.items[it.pos]
	it.pos++
	return v, true
}

// listIterable walks a container/list front to back, converting elements
// as it reaches them. Elements that can't be converted iterate as invalid
// Values.
type listIterable struct {
	list *list.List
}

func (l listIterable) Iterate() Iterator {
	return &listIterator{next: l.list.Front()}
}

type listIterator struct {
	next *list.Element
}

func (it *listIterator) Next() (Value, bool) {
	if it.next == nil {
		return Value{}, false
	}
	elem := it.next
	it.next = elem.Next()
	v, err := ValueOf(elem.Value)
	if err != nil {
		return Value{}, true
	}
	return v, true
}

// ValueOf converts a Go value into a Value.
//
// Integers, floats, booleans, and strings (including named types built on
// them) convert to the matching kind. A fmt.Stringer converts to its
// String output. A []byte converts to a string. Other slices and arrays
// convert to sequences of their converted elements, a *list.List converts
// to a sequence walked front to back, and an Iterable is bound as-is.
// Anything else returns ErrUnsupportedValue.
func ValueOf(x any) (Value, error) {
	switch v := x.(type) {
	case Value:
		return v, nil
	case *Value:
		// *Value has Iterate in its method set; don't mistake it for a
		// sequence
		if v == nil {
			return Value{}, fmt.Errorf("%w: nil %T", ErrUnsupportedValue, x)
		}
		return *v, nil
	case Iterable:
		return Iter(v), nil
	case *list.List:
		if v == nil {
			return Value{}, fmt.Errorf("%w: nil %T", ErrUnsupportedValue, x)
		}
		return Iter(listIterable{list: v}), nil
	case []byte:
		return String(string(v)), nil
	case fmt.Stringer:
		return String(v.String()), nil
	case nil:
		return Value{}, fmt.Errorf("%w: nil", ErrUnsupportedValue)
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Uint(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Slice, reflect.Array:
		items := make([]Value, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			item, err := ValueOf(rv.Index(i).Interface())
			if err != nil {
				return Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			items = append(items, item)
		}
		return Seq(items...), nil
	case reflect.Pointer:
		if rv.IsNil() {
			return Value{}, fmt.Errorf("%w: nil %T", ErrUnsupportedValue, x)
		}
		return ValueOf(rv.Elem().Interface())
	}
	return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, x)
}
