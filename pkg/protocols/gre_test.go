package protocols

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/pktcraft/pkg/checksum"
	"firestige.xyz/pktcraft/pkg/layer"
	"firestige.xyz/pktcraft/pkg/value"
)

// A mirrored UDP datagram carried over GRE and ERSPAN type II.
const erspanCapture = "52540072a57f6cab051f0c7408004500005b00004000fa2f57ee0a000a010a000a85" +
	"100088be7e088837" +
	"1001000100000000" +
	"54b20307eeed6cab051f0c74080045000029250e000039116cb059bb82400a000a0b" +
	"2703e1f60015fab0ee1c108eee4ece4a36cd840096"

func TestDecodeERSPANCapture(t *testing.T) {
	buf, err := hex.DecodeString(erspanCapture)
	require.NoError(t, err)

	s, n, err := layer.Decode(buf, &Ether{})
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, "Ether / IP / GRE / ERSPAN / Ether / IP / UDP / Raw", s.String())

	gre := layer.MustFirst[*GRE](s)
	assert.Equal(t, value.Of[uint8](0), gre.Version)
	assert.Equal(t, value.Of(true), gre.SeqPresent)
	assert.Equal(t, value.Of[uint32](2114488375), gre.Seq)
	assert.Equal(t, value.Of(false), gre.KeyPresent)
	assert.True(t, gre.Key.IsAuto())

	erspan := layer.MustFirst[*ERSPAN](s)
	assert.Equal(t, value.Of(ERSPANType2), erspan.Version)
	assert.Equal(t, value.Of[uint16](1), erspan.SessionID)

	udp, err := layer.Innermost[*UDP](s)
	require.NoError(t, err)
	assert.Equal(t, u16(57846), udp.DPort)
	assert.Len(t, layer.MustFirst[*layer.Raw](s).Data, 13)

	assert.Equal(t, buf, s.Encode())
}

func TestGREPresenceFollowsFields(t *testing.T) {
	b := layer.Of(&GRE{Key: value.Of[uint32](0x01020304)}, &Ether{}).Encode()
	require.Len(t, b, 8+14)
	assert.Equal(t, []byte{0x20, 0x00, 0x65, 0x58, 1, 2, 3, 4}, b[:8])

	b = layer.Of(&GRE{SeqPresent: value.Of(true)}).Encode()
	assert.Equal(t, []byte{0x10, 0x00, 0, 0, 0, 0, 0, 0}, b)
}

func TestGREChecksum(t *testing.T) {
	s := layer.Of(&GRE{ChksumPresent: value.Of(true)}, &layer.Payload{Text: "payload"})
	b := s.Encode()
	require.Len(t, b, 8+7)
	assert.Equal(t, byte(0x80), b[0])
	assert.Equal(t, uint16(0), checksum.Checksum(b))

	d, _, err := layer.Decode(b, &GRE{})
	require.NoError(t, err)
	g := layer.MustFirst[*GRE](d)
	assert.True(t, g.Chksum.IsSet())
	assert.Equal(t, value.Of[uint16](0), g.Offset)
}

func TestERSPANVersionLiterals(t *testing.T) {
	a, err := Parse("ether()/ip()/gre()/erspan(version=Type2)")
	require.NoError(t, err)
	b, err := Parse("ether()/ip()/gre()/erspan(version=1)")
	require.NoError(t, err)
	assert.Equal(t, layer.MustFirst[*ERSPAN](a).Version, layer.MustFirst[*ERSPAN](b).Version)
	assert.Equal(t, value.Of(ERSPANType2), layer.MustFirst[*ERSPAN](a).Version)

	_, err = Parse("erspan(version=Type9)")
	assert.ErrorIs(t, err, value.ErrInvalidLiteral)
}
