package value

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
)

// ErrInvalidLiteral is returned when a textual field value cannot be parsed.
var ErrInvalidLiteral = errors.New("value: invalid literal")

// MAC is an IEEE 802 48-bit hardware address.
type MAC [6]byte

var (
	BroadcastMAC = MAC{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	ZeroMAC      = MAC{}
)

// ParseMAC parses a 48-bit address in any notation accepted by net.ParseMAC.
func ParseMAC(s string) (MAC, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return MAC{}, fmt.Errorf("%w: mac %q: %v", ErrInvalidLiteral, s, err)
	}
	if len(hw) != 6 {
		return MAC{}, fmt.Errorf("%w: mac %q is %d bytes long", ErrInvalidLiteral, s, len(hw))
	}
	var m MAC
	copy(m[:], hw)
	return m, nil
}

// MustParseMAC is ParseMAC for literals known to be valid. It panics otherwise.
func MustParseMAC(s string) MAC {
	m, err := ParseMAC(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m MAC) String() string { return net.HardwareAddr(m[:]).String() }

func (m MAC) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *MAC) UnmarshalText(text []byte) error {
	parsed, err := ParseMAC(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseIPv4 parses a dotted-quad IPv4 address.
func ParseIPv4(s string) (netip.Addr, error) {
	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: ipv4 %q: %v", ErrInvalidLiteral, s, err)
	}
	if !a.Is4() {
		return netip.Addr{}, fmt.Errorf("%w: %q is not an ipv4 address", ErrInvalidLiteral, s)
	}
	return a, nil
}

// IPv4 returns the 4 bytes of a, or zeros when a is not an IPv4 address.
func IPv4(a netip.Addr) [4]byte {
	if a.Is4() || a.Is4In6() {
		return a.Unmap().As4()
	}
	return [4]byte{}
}
