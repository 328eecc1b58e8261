package layer

import (
	"fmt"
	"strings"

	"firestige.xyz/pktcraft/internal/log"
	"firestige.xyz/pktcraft/pkg/value"
)

// Stack is an ordered list of layers, outermost first. Each layer belongs to
// one stack: composition copies the layers it takes from other stacks, so
// changing a layer reached through First or At affects only that stack.
type Stack struct {
	layers []Layer
	filled bool
}

// Of returns a stack of ls in order. The stack takes ownership of ls; nil
// layers are skipped.
func Of(ls ...Layer) *Stack {
	out := make([]Layer, 0, len(ls))
	for _, l := range ls {
		if l != nil {
			out = append(out, l)
		}
	}
	return &Stack{layers: out}
}

// Div returns a copy of s with l appended. It is the "/" of packet
// composition: layer.Of(ether).Div(ip).Div(udp). The new stack owns l.
func (s *Stack) Div(l Layer) *Stack {
	out := s.Clone()
	out.filled = false
	if l != nil {
		out.layers = append(out.layers, l)
	}
	return out
}

// Concat returns copies of the layers of s followed by copies of the layers
// of o.
func (s *Stack) Concat(o *Stack) *Stack {
	out := &Stack{layers: make([]Layer, 0, s.Len()+o.Len())}
	for i := 0; i < s.Len(); i++ {
		out.layers = append(out.layers, s.layers[i].Clone())
	}
	for i := 0; i < o.Len(); i++ {
		out.layers = append(out.layers, o.layers[i].Clone())
	}
	return out
}

// Join returns head followed by the layers of inner, without copying.
// Decoders use it to assemble a freshly decoded stack; inner must not be
// used afterwards.
func Join(head Layer, inner *Stack) *Stack {
	out := &Stack{layers: make([]Layer, 0, 1+inner.Len())}
	out.layers = append(out.layers, head)
	if inner != nil {
		out.layers = append(out.layers, inner.layers...)
	}
	return out
}

func (s *Stack) Len() int {
	if s == nil {
		return 0
	}
	return len(s.layers)
}

// At returns the layer at position i.
func (s *Stack) At(i int) Layer { return s.layers[i] }

// Layers returns a copy of the layer list.
func (s *Stack) Layers() []Layer {
	if s == nil {
		return nil
	}
	return append([]Layer(nil), s.layers...)
}

// Filled reports whether s came out of Fill or Decode.
func (s *Stack) Filled() bool { return s != nil && s.filled }

// Clone deep-copies every layer.
func (s *Stack) Clone() *Stack {
	out := &Stack{layers: make([]Layer, s.Len()), filled: s.Filled()}
	for i := 0; i < s.Len(); i++ {
		out.layers[i] = s.layers[i].Clone()
	}
	return out
}

// Fill resolves deferred fields using the process random source.
func (s *Stack) Fill() *Stack {
	return s.FillWith(value.DefaultRand())
}

// FillWith resolves deferred fields front to back. Each layer sees the
// original stack, so a next-protocol field can be derived from the type of
// the layer behind it before that layer is itself filled.
func (s *Stack) FillWith(r value.Rand) *Stack {
	logger := log.GetLogger()
	out := &Stack{layers: make([]Layer, s.Len()), filled: true}
	for i := 0; i < s.Len(); i++ {
		out.layers[i] = s.layers[i].Fill(&FillContext{Stack: s, Index: i, Rand: r})
		if logger.IsTraceEnabled() {
			logger.WithFields(map[string]interface{}{"index": i, "layer": s.layers[i].Type()}).Trace("filled")
		}
	}
	return out
}

// Encode serializes s using the process random source for any field that
// is still deferred.
func (s *Stack) Encode() []byte {
	return s.EncodeWith(value.DefaultRand())
}

// EncodeWith serializes s back to front. A layer's encoder can read the
// bytes of every layer after it through its EncodeContext; the result is the
// per-layer bytes concatenated front to back. An unfilled stack is filled
// with r first, so every random field is drawn exactly once.
func (s *Stack) EncodeWith(r value.Rand) []byte {
	if !s.Filled() {
		s = s.FillWith(r)
	}
	logger := log.GetLogger()
	enc := newEncoded(s.Len())
	for i := s.Len() - 1; i >= 0; i-- {
		b := s.layers[i].Encode(&EncodeContext{Stack: s, Index: i, Encoded: enc, Rand: r})
		enc.set(i, b)
		if logger.IsTraceEnabled() {
			logger.WithFields(map[string]interface{}{"index": i, "layer": s.layers[i].Type(), "bytes": len(b)}).Trace("encoded")
		}
	}
	return enc.bytes()
}

// Decode parses buf starting with a layer of start's type and returns the
// stack and the number of bytes consumed. Malformed or unknown inner data
// ends up in Raw layers; the only error is a buffer that cannot hold the
// fixed header of start.
func Decode(buf []byte, start Layer) (*Stack, int, error) {
	s, n, err := start.Decode(buf)
	if err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", start.Type(), err)
	}
	if n < len(buf) && IsGreedy(start) {
		s.layers = append(s.layers, NewRaw(buf[n:]))
		n = len(buf)
	}
	s.filled = true
	if logger := log.GetLogger(); logger.IsTraceEnabled() {
		logger.WithFields(map[string]interface{}{"layers": s.String(), "bytes": n}).Trace("decoded")
	}
	return s, n, nil
}

// IndicesOf returns every position holding a layer of type t.
func (s *Stack) IndicesOf(t Type) []int {
	var out []int
	for i := 0; i < s.Len(); i++ {
		if s.layers[i].Type() == t {
			out = append(out, i)
		}
	}
	return out
}

// IndexOf returns the first position holding a layer of type t.
func (s *Stack) IndexOf(t Type) (int, error) {
	for i := 0; i < s.Len(); i++ {
		if s.layers[i].Type() == t {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrLayerNotFound, t)
}

// String lists the layer types, "Ether / IP / UDP / Raw".
func (s *Stack) String() string {
	names := make([]string, s.Len())
	for i := range names {
		names[i] = string(s.layers[i].Type())
	}
	return strings.Join(names, " / ")
}
