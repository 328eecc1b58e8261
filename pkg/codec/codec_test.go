package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteOrders(t *testing.T) {
	be := BigEndian.AppendUint32(nil, 0xa1b2c3d4)
	le := LittleEndian.AppendUint32(nil, 0xa1b2c3d4)
	assert.Equal(t, []byte{0xa1, 0xb2, 0xc3, 0xd4}, be)
	assert.Equal(t, []byte{0xd4, 0xc3, 0xb2, 0xa1}, le)

	v, n, ok := LittleEndian.Uint16([]byte{0x34, 0x12})
	require.True(t, ok)
	assert.Equal(t, 2, n)
	assert.Equal(t, uint16(0x1234), v)

	u64 := BigEndian.AppendUint64(nil, 0x0102030405060708)
	got, _, ok := BigEndian.Uint64(u64)
	require.True(t, ok)
	assert.Equal(t, uint64(0x0102030405060708), got)
}

func TestShortDecode(t *testing.T) {
	_, _, ok := BigEndian.Uint32([]byte{1, 2, 3})
	assert.False(t, ok)
	_, _, ok = BigEndian.Bytes([]byte{1, 2}, 3)
	assert.False(t, ok)
	_, _, ok = BigEndian.Uint8(nil)
	assert.False(t, ok)
}

func TestBytesDoesNotAlias(t *testing.T) {
	src := []byte{1, 2, 3}
	out, n, ok := BigEndian.Bytes(src, 2)
	require.True(t, ok)
	assert.Equal(t, 2, n)
	src[0] = 9
	assert.Equal(t, []byte{1, 2}, out)
}

func TestReaderLatchesShortBuffer(t *testing.T) {
	r := NewReader(nil, []byte{0x08, 0x00, 0x45})
	assert.Equal(t, uint16(0x0800), r.Uint16())
	assert.Equal(t, uint16(0), r.Uint16())
	assert.ErrorIs(t, r.Err(), ErrShortBuffer)
	assert.Equal(t, uint8(0), r.Uint8())
	assert.Equal(t, 2, r.Offset())
	assert.Equal(t, []byte{0x45}, r.Rest())
}

func TestWriter(t *testing.T) {
	w := NewWriter(BigEndian, 8)
	w.Uint8(0x45)
	w.Uint16(0x1c)
	w.Uint24(0xabcdef)
	w.Write([]byte{0xff})
	assert.Equal(t, []byte{0x45, 0x00, 0x1c, 0xab, 0xcd, 0xef, 0xff}, w.Bytes())
	assert.Equal(t, 7, w.Len())
}
