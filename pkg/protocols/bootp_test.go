package protocols

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/pktcraft/pkg/layer"
	"firestige.xyz/pktcraft/pkg/value"
)

func dhcpDiscover() *layer.Stack {
	mac := value.MustParseMAC("00:11:22:33:44:55")
	return layer.Of(
		&Ether{Src: value.Of(mac)},
		&IP{Src: addr("0.0.0.0"), Dst: addr("255.255.255.255")},
		&UDP{SPort: u16(68), DPort: u16(67)},
		&Bootp{XID: value.Of[uint32](0xdeadbeef), CHAddr: value.Of(mac[:])},
		&DHCP{Options: []DHCPOption{
			DHCPMessageTypeOption(DHCPDiscover),
			DHCPAddrOption(DHCPOptRequestedIP, netip.MustParseAddr("10.0.0.7")),
			NewDHCPOption(DHCPOptParamRequest, []byte{1, 3, 6}),
			DHCPEndOption(),
		}},
	)
}

func TestBootpLayout(t *testing.T) {
	b := dhcpDiscover().Encode()
	bootp := b[14+20+8:]
	require.Len(t, bootp, 240+3+6+5+1)
	assert.Equal(t, []byte{1, 1, 6, 0, 0xde, 0xad, 0xbe, 0xef}, bootp[:8])
	assert.Equal(t, []byte{0, 0x11, 0x22, 0x33, 0x44, 0x55, 0, 0}, bootp[28:36])
	assert.Equal(t, []byte{0x63, 0x82, 0x53, 0x63}, bootp[236:240])
	assert.Equal(t, []byte{53, 1, 1}, bootp[240:243])
	assert.Equal(t, byte(0xff), bootp[len(bootp)-1])
}

func TestDHCPRoundTrip(t *testing.T) {
	b := dhcpDiscover().Encode()
	s, n, err := layer.Decode(b, &Ether{})
	require.NoError(t, err)
	assert.Equal(t, len(b), n)
	assert.Equal(t, "Ether / IP / UDP / Bootp / DHCP", s.String())

	d := layer.MustFirst[*DHCP](s)
	mt, ok := d.MessageType()
	require.True(t, ok)
	assert.Equal(t, DHCPDiscover, mt)
	require.Len(t, d.Options, 4)
	assert.Equal(t, "requested-ip=0x0a000007", d.Options[1].String())
	assert.Equal(t, b, s.Encode())
}

func TestDHCPTruncatedOptionStaysRaw(t *testing.T) {
	buf := []byte{53, 1, 3, 12, 10, 'h', 'o'}
	s, n, err := layer.Decode(buf, &DHCP{})
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, "DHCP / Raw", s.String())
	assert.Len(t, layer.MustFirst[*DHCP](s).Options, 1)
	assert.Equal(t, []byte{12, 10, 'h', 'o'}, layer.MustFirst[*layer.Raw](s).Data)
}

func TestBootpNamesKeepBytesAfterTerminator(t *testing.T) {
	b := layer.Of(&Bootp{SName: value.Of("srv"), File: value.Of("boot.img")}).Encode()
	require.Len(t, b, 240)

	s, _, err := layer.Decode(b, &Bootp{})
	require.NoError(t, err)
	assert.Equal(t, value.Of("srv"), layer.MustFirst[*Bootp](s).SName)
	assert.Equal(t, value.Of("boot.img"), layer.MustFirst[*Bootp](s).File)

	copy(b[44:], "ab\x00cd")
	copy(b[108:], "x\x00\x00y")
	s, _, err = layer.Decode(b, &Bootp{})
	require.NoError(t, err)
	assert.Equal(t, "Bootp", s.String())
	assert.Equal(t, value.Of("ab\x00cd"), layer.MustFirst[*Bootp](s).SName)
	assert.Equal(t, value.Of("x\x00\x00y.img"), layer.MustFirst[*Bootp](s).File)
	assert.Equal(t, b, s.Encode())
}

func TestDHCPLongOptionIsSplit(t *testing.T) {
	data := make([]byte, 300)
	for i := range data {
		data[i] = byte(i)
	}
	b := layer.Of(&DHCP{Options: []DHCPOption{
		NewDHCPOption(43, data),
		NewDHCPOption(60, nil),
		DHCPEndOption(),
	}}).Encode()

	require.Len(t, b, 2+255+2+45+2+1)
	assert.Equal(t, []byte{43, 255}, b[:2])
	assert.Equal(t, data[:255], b[2:257])
	assert.Equal(t, []byte{43, 45}, b[257:259])
	assert.Equal(t, data[255:], b[259:304])
	assert.Equal(t, []byte{60, 0, 0xff}, b[304:])
}
