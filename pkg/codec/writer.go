package codec

// Writer appends fields to a growing buffer.
type Writer struct {
	c   Codec
	buf []byte
}

// NewWriter returns a Writer with capacity hint n. A nil codec means BigEndian.
func NewWriter(c Codec, n int) *Writer {
	if c == nil {
		c = BigEndian
	}
	return &Writer{c: c, buf: make([]byte, 0, n)}
}

func (w *Writer) Uint8(v uint8)   { w.buf = w.c.AppendUint8(w.buf, v) }
func (w *Writer) Uint16(v uint16) { w.buf = w.c.AppendUint16(w.buf, v) }
func (w *Writer) Uint32(v uint32) { w.buf = w.c.AppendUint32(w.buf, v) }
func (w *Writer) Uint64(v uint64) { w.buf = w.c.AppendUint64(w.buf, v) }
func (w *Writer) Write(v []byte)  { w.buf = w.c.AppendBytes(w.buf, v) }

// Uint24 appends the low 24 bits of v, most significant byte first.
func (w *Writer) Uint24(v uint32) {
	w.buf = append(w.buf, byte(v>>16), byte(v>>8), byte(v))
}

// Len is the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// Bytes returns the written bytes.
func (w *Writer) Bytes() []byte { return w.buf }
