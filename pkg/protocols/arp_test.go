package protocols

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/pktcraft/pkg/layer"
	"firestige.xyz/pktcraft/pkg/value"
)

func TestARPDefaults(t *testing.T) {
	b := layer.Of(&Ether{}, &ARP{PDst: value.Of(IPv4Addr(netip.MustParseAddr("10.0.0.1")))}).Encode()
	require.Len(t, b, 14+28)
	arp := b[14:]
	assert.Equal(t, []byte{0, 1, 0x08, 0x00, 6, 4, 0, 1}, arp[:8])
	assert.Equal(t, []byte{10, 0, 0, 1}, arp[24:28])

	s, _, err := layer.Decode(b, &Ether{})
	require.NoError(t, err)
	d := layer.MustFirst[*ARP](s)
	hw, _ := d.HWSrc.Get()
	_, isMAC := hw.MAC()
	assert.True(t, isMAC)
	p, _ := d.PDst.Get()
	ip, ok := p.Addr()
	require.True(t, ok)
	assert.Equal(t, netip.MustParseAddr("10.0.0.1"), ip)
}

func TestARPNonCanonicalLengths(t *testing.T) {
	eui64 := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	a := &ARP{
		HWType: u16(27),
		HWSrc:  value.Of(RawHWAddr(eui64)),
		HWDst:  value.Of(RawHWAddr(make([]byte, 8))),
		PSrc:   value.Of(RawProtoAddr([]byte{0xfe, 0x80})),
		PDst:   value.Of(RawProtoAddr([]byte{0xfe, 0x81})),
	}
	b := layer.Of(a).Encode()
	require.Len(t, b, 8+2*(8+2))
	assert.Equal(t, byte(8), b[4])
	assert.Equal(t, byte(2), b[5])

	s, n, err := layer.Decode(b, &ARP{})
	require.NoError(t, err)
	assert.Equal(t, len(b), n)
	d := layer.MustFirst[*ARP](s)
	hw, _ := d.HWSrc.Get()
	_, isMAC := hw.MAC()
	assert.False(t, isMAC)
	assert.Equal(t, eui64, hw.Bytes())
	p, _ := d.PSrc.Get()
	_, isIP := p.Addr()
	assert.False(t, isIP)
	assert.Equal(t, "0xfe80", p.String())
	assert.Equal(t, b, s.Encode())
}

func TestARPTruncatedAddresses(t *testing.T) {
	b := layer.Of(&ARP{}).Encode()
	_, _, err := layer.Decode(b[:20], &ARP{})
	assert.ErrorIs(t, err, layer.ErrShortBuffer)
}
