package codec

// Reader decodes consecutive fields from a buffer. The first short read
// latches ErrShortBuffer; later reads return zero values and do not advance.
type Reader struct {
	c   Codec
	buf []byte
	off int
	err error
}

// NewReader returns a Reader over buf. A nil codec means BigEndian.
func NewReader(c Codec, buf []byte) *Reader {
	if c == nil {
		c = BigEndian
	}
	return &Reader{c: c, buf: buf}
}

// Err returns ErrShortBuffer once any read ran past the end of the buffer.
func (r *Reader) Err() error { return r.err }

// Offset is the number of bytes consumed so far.
func (r *Reader) Offset() int { return r.off }

// Len is the number of unread bytes.
func (r *Reader) Len() int { return len(r.buf) - r.off }

// Rest returns the unread bytes without consuming them.
func (r *Reader) Rest() []byte { return r.buf[r.off:] }

// Skip consumes n bytes.
func (r *Reader) Skip(n int) {
	if r.err != nil {
		return
	}
	if n < 0 || r.Len() < n {
		r.err = ErrShortBuffer
		return
	}
	r.off += n
}

func (r *Reader) advance(n int, ok bool) bool {
	if r.err != nil {
		return false
	}
	if !ok {
		r.err = ErrShortBuffer
		return false
	}
	r.off += n
	return true
}

func (r *Reader) Uint8() uint8 {
	if r.err != nil {
		return 0
	}
	v, n, ok := r.c.Uint8(r.Rest())
	if !r.advance(n, ok) {
		return 0
	}
	return v
}

func (r *Reader) Uint16() uint16 {
	if r.err != nil {
		return 0
	}
	v, n, ok := r.c.Uint16(r.Rest())
	if !r.advance(n, ok) {
		return 0
	}
	return v
}

func (r *Reader) Uint32() uint32 {
	if r.err != nil {
		return 0
	}
	v, n, ok := r.c.Uint32(r.Rest())
	if !r.advance(n, ok) {
		return 0
	}
	return v
}

func (r *Reader) Uint64() uint64 {
	if r.err != nil {
		return 0
	}
	v, n, ok := r.c.Uint64(r.Rest())
	if !r.advance(n, ok) {
		return 0
	}
	return v
}

// Bytes reads an n-byte vector.
func (r *Reader) Bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	v, m, ok := r.c.Bytes(r.Rest(), n)
	if !r.advance(m, ok) {
		return nil
	}
	return v
}

// Array reads exactly len(dst) bytes into dst.
func (r *Reader) Array(dst []byte) {
	if b := r.Bytes(len(dst)); b != nil {
		copy(dst, b)
	}
}
