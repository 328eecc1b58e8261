// Package value implements deferred field values.
//
// A Value holds one of four states: Auto (resolved from defaults or from the
// surrounding stack), Random (drawn from a Rand at resolution time), Func
// (computed by calling a function) or Set (concrete). The zero Value is Auto.
package value

import (
	"fmt"
	"reflect"
)

// Kind tells which state a Value is in.
type Kind uint8

const (
	KindAuto Kind = iota
	KindRandom
	KindFunc
	KindSet
)

func (k Kind) String() string {
	switch k {
	case KindAuto:
		return "auto"
	case KindRandom:
		return "random"
	case KindFunc:
		return "func"
	case KindSet:
		return "set"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a field value whose resolution may be deferred until fill time.
type Value[T any] struct {
	kind Kind
	val  T
	fn   func() T
}

// Of returns a Value set to v.
func Of[T any](v T) Value[T] {
	return Value[T]{kind: KindSet, val: v}
}

// Auto returns an unset Value.
func Auto[T any]() Value[T] {
	return Value[T]{}
}

// Random returns a Value resolved to a uniformly random T.
func Random[T any]() Value[T] {
	return Value[T]{kind: KindRandom}
}

// Func returns a Value resolved by calling fn.
func Func[T any](fn func() T) Value[T] {
	if fn == nil {
		return Value[T]{}
	}
	return Value[T]{kind: KindFunc, fn: fn}
}

func (v Value[T]) Kind() Kind     { return v.kind }
func (v Value[T]) IsAuto() bool   { return v.kind == KindAuto }
func (v Value[T]) IsRandom() bool { return v.kind == KindRandom }
func (v Value[T]) IsSet() bool    { return v.kind == KindSet }

// Get returns the concrete value and true if v is Set.
func (v Value[T]) Get() (T, bool) {
	if v.kind != KindSet {
		var zero T
		return zero, false
	}
	return v.val, true
}

// Or returns the concrete value if v is Set, otherwise def.
func (v Value[T]) Or(def T) T {
	if v.kind == KindSet {
		return v.val
	}
	return def
}

// Resolve returns the concrete T that v stands for. Auto values use auto when
// it is non-nil and the zero T otherwise.
func (v Value[T]) Resolve(r Rand, auto func() T) T {
	switch v.kind {
	case KindSet:
		return v.val
	case KindFunc:
		return v.fn()
	case KindRandom:
		if r == nil {
			r = DefaultRand()
		}
		return Draw[T](r)
	default:
		if auto != nil {
			return auto()
		}
		var zero T
		return zero
	}
}

// Fill resolves v and returns it as a Set value.
func (v Value[T]) Fill(r Rand, auto func() T) Value[T] {
	if v.kind == KindSet {
		return v
	}
	return Of(v.Resolve(r, auto))
}

// Pin resolves Random and Func values to Set and leaves Auto values for
// later. Fields computed from encoded bytes are pinned during fill.
func (v Value[T]) Pin(r Rand) Value[T] {
	if v.kind == KindAuto || v.kind == KindSet {
		return v
	}
	return Of(v.Resolve(r, nil))
}

// Equal reports whether v and o hold the same state. Func values are equal
// when both are Func.
func (v Value[T]) Equal(o Value[T]) bool {
	if v.kind != o.kind {
		return false
	}
	if v.kind != KindSet {
		return true
	}
	return reflect.DeepEqual(v.val, o.val)
}

func (v Value[T]) String() string {
	if v.kind == KindSet {
		return fmt.Sprint(v.val)
	}
	return v.kind.String()
}

// GoString prints hex for integers, which is what packet fields usually want.
func (v Value[T]) GoString() string {
	if v.kind != KindSet {
		return v.kind.String()
	}
	switch x := any(v.val).(type) {
	case uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%#x", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// CloneBytes returns v with a Set byte slice copied.
func CloneBytes(v Value[[]byte]) Value[[]byte] {
	if v.kind != KindSet || v.val == nil {
		return v
	}
	return Of(append([]byte(nil), v.val...))
}
