package layer

import "fmt"

// Encoded collects per-position output during the reverse encode pass. While
// position cur is being encoded only positions after it may be read.
type Encoded struct {
	bufs [][]byte
	cur  int
}

func newEncoded(n int) *Encoded {
	return &Encoded{bufs: make([][]byte, n), cur: n - 1}
}

// Len is the number of positions.
func (e *Encoded) Len() int { return len(e.bufs) }

// At returns the bytes of position i. Reading the position being encoded or
// one outside it panics: those bytes do not exist yet.
func (e *Encoded) At(i int) []byte {
	if i <= e.cur || i >= len(e.bufs) {
		panic(fmt.Sprintf("layer: encoded position %d read while encoding position %d of %d", i, e.cur, len(e.bufs)))
	}
	return e.bufs[i]
}

// Inner returns the concatenation of every position after the current one.
func (e *Encoded) Inner() []byte {
	out := make([]byte, 0, e.InnerLen())
	for i := e.cur + 1; i < len(e.bufs); i++ {
		out = append(out, e.bufs[i]...)
	}
	return out
}

func (e *Encoded) InnerLen() int {
	n := 0
	for i := e.cur + 1; i < len(e.bufs); i++ {
		n += len(e.bufs[i])
	}
	return n
}

func (e *Encoded) set(i int, b []byte) {
	e.bufs[i] = b
	e.cur = i - 1
}

func (e *Encoded) bytes() []byte {
	n := 0
	for _, b := range e.bufs {
		n += len(b)
	}
	out := make([]byte, 0, n)
	for _, b := range e.bufs {
		out = append(out, b...)
	}
	return out
}
