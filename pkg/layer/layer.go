// Package layer is the packet composition runtime. A Stack holds protocol
// layers outermost first and implements the three passes over them: Fill
// resolves deferred field values front to back, Encode serializes back to
// front so that lengths and checksums can see the bytes they cover, and
// Decode parses wire bytes, dispatching to the next protocol through a
// Registries table.
package layer

import (
	"firestige.xyz/pktcraft/pkg/codec"
	"firestige.xyz/pktcraft/pkg/value"
)

// ErrShortBuffer is returned by Decode when the buffer cannot hold the fixed
// header of the starting layer.
var ErrShortBuffer = codec.ErrShortBuffer

// Type identifies a layer kind. It is used by lookups and by the reverse
// index of the registries.
type Type string

// Layer is implemented by every protocol record.
type Layer interface {
	Type() Type
	// Clone returns a deep copy.
	Clone() Layer
	// Fill returns a copy with every deferred field resolved, except fields
	// that can only be computed from encoded bytes.
	Fill(fc *FillContext) Layer
	// Encode returns the wire bytes of this layer alone.
	Encode(ec *EncodeContext) []byte
	// Decode parses this layer from buf and everything chained behind it.
	// It fails only when buf is too short for the layer's fixed fields.
	Decode(buf []byte) (*Stack, int, error)
}

// Greedy is implemented by layers whose Decode must not have the unparsed
// remainder appended as Raw. Container records delimit their own extent.
type Greedy interface {
	Greedy() bool
}

// IsGreedy reports whether trailing bytes after l are kept as a Raw layer.
func IsGreedy(l Layer) bool {
	if g, ok := l.(Greedy); ok {
		return g.Greedy()
	}
	return true
}

// FillContext gives a layer's Fill access to the stack being filled. Stack is
// the original stack, so neighbours are seen before they are resolved.
type FillContext struct {
	Stack *Stack
	Index int
	Rand  value.Rand
}

// Next returns the layer after the current one, or nil.
func (fc *FillContext) Next() Layer {
	if fc.Stack == nil || fc.Index+1 >= fc.Stack.Len() {
		return nil
	}
	return fc.Stack.At(fc.Index + 1)
}

// Prev returns the layer before the current one, or nil.
func (fc *FillContext) Prev() Layer {
	if fc.Stack == nil || fc.Index <= 0 || fc.Index > fc.Stack.Len() {
		return nil
	}
	return fc.Stack.At(fc.Index - 1)
}

// NextKey returns the key under which the next layer's type is registered in
// the named registry.
func (fc *FillContext) NextKey(regs *Registries, name string) (uint64, bool) {
	next := fc.Next()
	if next == nil || regs == nil {
		return 0, false
	}
	return regs.KeyOf(name, next.Type())
}

// At returns a context for another position of the same stack.
func (fc *FillContext) At(i int) *FillContext {
	return &FillContext{Stack: fc.Stack, Index: i, Rand: fc.Rand}
}

// EncodeContext gives a layer's Encode access to the stack and to the bytes
// of the layers inside it, which are encoded first.
type EncodeContext struct {
	Stack   *Stack
	Index   int
	Encoded *Encoded
	Rand    value.Rand
}

// Fill returns the FillContext an encoder uses to resolve its own deferred
// fields.
func (ec *EncodeContext) Fill() *FillContext {
	return &FillContext{Stack: ec.Stack, Index: ec.Index, Rand: ec.Rand}
}

// Prev returns the layer before the current one, or nil.
func (ec *EncodeContext) Prev() Layer { return ec.Fill().Prev() }

// Inner returns the concatenated bytes of every layer after the current one.
func (ec *EncodeContext) Inner() []byte {
	if ec.Encoded == nil {
		return nil
	}
	return ec.Encoded.Inner()
}

// InnerLen is len(Inner()) without the copy.
func (ec *EncodeContext) InnerLen() int {
	if ec.Encoded == nil {
		return 0
	}
	return ec.Encoded.InnerLen()
}
