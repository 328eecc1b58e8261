// Package codec implements the primitive wire encodings used by packet layers.
package codec

import (
	"encoding/binary"
	"errors"
)

// ErrShortBuffer is returned when a buffer ends before a fixed-size field.
var ErrShortBuffer = errors.New("codec: short buffer")

// Codec encodes and decodes unsigned integers and byte vectors in one byte
// order. Decoders return the value, the number of bytes consumed and false if
// buf is too short.
type Codec interface {
	AppendUint8(b []byte, v uint8) []byte
	AppendUint16(b []byte, v uint16) []byte
	AppendUint32(b []byte, v uint32) []byte
	AppendUint64(b []byte, v uint64) []byte
	AppendBytes(b []byte, v []byte) []byte

	Uint8(buf []byte) (uint8, int, bool)
	Uint16(buf []byte) (uint16, int, bool)
	Uint32(buf []byte) (uint32, int, bool)
	Uint64(buf []byte) (uint64, int, bool)
	Bytes(buf []byte, n int) ([]byte, int, bool)
}

var (
	// BigEndian is network byte order, the default for every protocol layer.
	BigEndian Codec = binaryCodec{order: binary.BigEndian, name: "big-endian"}
	// LittleEndian is used by pcap files written on little-endian hosts.
	LittleEndian Codec = binaryCodec{order: binary.LittleEndian, name: "little-endian"}
)

type byteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

type binaryCodec struct {
	order byteOrder
	name  string
}

func (c binaryCodec) String() string { return c.name }

func (c binaryCodec) AppendUint8(b []byte, v uint8) []byte   { return append(b, v) }
func (c binaryCodec) AppendUint16(b []byte, v uint16) []byte { return c.order.AppendUint16(b, v) }
func (c binaryCodec) AppendUint32(b []byte, v uint32) []byte { return c.order.AppendUint32(b, v) }
func (c binaryCodec) AppendUint64(b []byte, v uint64) []byte { return c.order.AppendUint64(b, v) }
func (c binaryCodec) AppendBytes(b []byte, v []byte) []byte  { return append(b, v...) }

func (c binaryCodec) Uint8(buf []byte) (uint8, int, bool) {
	if len(buf) < 1 {
		return 0, 0, false
	}
	return buf[0], 1, true
}

func (c binaryCodec) Uint16(buf []byte) (uint16, int, bool) {
	if len(buf) < 2 {
		return 0, 0, false
	}
	return c.order.Uint16(buf), 2, true
}

func (c binaryCodec) Uint32(buf []byte) (uint32, int, bool) {
	if len(buf) < 4 {
		return 0, 0, false
	}
	return c.order.Uint32(buf), 4, true
}

func (c binaryCodec) Uint64(buf []byte) (uint64, int, bool) {
	if len(buf) < 8 {
		return 0, 0, false
	}
	return c.order.Uint64(buf), 8, true
}

// Bytes copies n bytes so decoded layers never alias the input buffer.
func (c binaryCodec) Bytes(buf []byte, n int) ([]byte, int, bool) {
	if n < 0 || len(buf) < n {
		return nil, 0, false
	}
	out := make([]byte, n)
	copy(out, buf[:n])
	return out, n, true
}
