package protocols

import (
	"encoding/hex"
	"fmt"
	"net/netip"
	"strings"

	"firestige.xyz/pktcraft/pkg/codec"
	"firestige.xyz/pktcraft/pkg/layer"
	"firestige.xyz/pktcraft/pkg/value"
)

const TypeARP layer.Type = "ARP"

const (
	ARPRequest = 1
	ARPReply   = 2
)

// HWAddr is an ARP hardware address: a MAC, or raw bytes when the packet
// declares a hardware length other than 6.
type HWAddr struct {
	mac   value.MAC
	raw   []byte
	isRaw bool
}

func MACAddr(m value.MAC) HWAddr { return HWAddr{mac: m} }

func RawHWAddr(b []byte) HWAddr {
	return HWAddr{raw: append([]byte(nil), b...), isRaw: true}
}

// MAC returns the address and true unless it is raw bytes.
func (a HWAddr) MAC() (value.MAC, bool) { return a.mac, !a.isRaw }

func (a HWAddr) Bytes() []byte {
	if a.isRaw {
		return a.raw
	}
	return a.mac[:]
}

func (a HWAddr) String() string {
	if a.isRaw {
		return "0x" + hex.EncodeToString(a.raw)
	}
	return a.mac.String()
}

func (a HWAddr) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText accepts a MAC address or 0x-prefixed hex for raw bytes.
func (a *HWAddr) UnmarshalText(text []byte) error {
	s := string(text)
	if h, ok := strings.CutPrefix(s, "0x"); ok {
		b, err := hex.DecodeString(h)
		if err != nil {
			return fmt.Errorf("%w: hardware address %q: %v", value.ErrInvalidLiteral, s, err)
		}
		*a = RawHWAddr(b)
		return nil
	}
	m, err := value.ParseMAC(s)
	if err != nil {
		return err
	}
	*a = MACAddr(m)
	return nil
}

func (a *HWAddr) Randomize(r value.Rand) {
	*a = MACAddr(value.Draw[value.MAC](r))
}

// ProtoAddr is an ARP protocol address: an IPv4 address, or raw bytes when
// the packet declares a protocol length other than 4.
type ProtoAddr struct {
	ip    netip.Addr
	raw   []byte
	isRaw bool
}

func IPv4Addr(a netip.Addr) ProtoAddr { return ProtoAddr{ip: a} }

func RawProtoAddr(b []byte) ProtoAddr {
	return ProtoAddr{raw: append([]byte(nil), b...), isRaw: true}
}

// Addr returns the IPv4 address and true unless it is raw bytes.
func (a ProtoAddr) Addr() (netip.Addr, bool) {
	if a.isRaw {
		return netip.Addr{}, false
	}
	if !a.ip.IsValid() {
		return netip.IPv4Unspecified(), true
	}
	return a.ip, true
}

func (a ProtoAddr) Bytes() []byte {
	if a.isRaw {
		return a.raw
	}
	b := value.IPv4(a.ip)
	return b[:]
}

func (a ProtoAddr) String() string {
	if a.isRaw {
		return "0x" + hex.EncodeToString(a.raw)
	}
	ip, _ := a.Addr()
	return ip.String()
}

func (a ProtoAddr) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText accepts an IPv4 address or 0x-prefixed hex for raw bytes.
func (a *ProtoAddr) UnmarshalText(text []byte) error {
	s := string(text)
	if h, ok := strings.CutPrefix(s, "0x"); ok {
		b, err := hex.DecodeString(h)
		if err != nil {
			return fmt.Errorf("%w: protocol address %q: %v", value.ErrInvalidLiteral, s, err)
		}
		*a = RawProtoAddr(b)
		return nil
	}
	ip, err := value.ParseIPv4(s)
	if err != nil {
		return err
	}
	*a = IPv4Addr(ip)
	return nil
}

func (a *ProtoAddr) Randomize(r value.Rand) {
	*a = IPv4Addr(value.Draw[netip.Addr](r))
}

// ARP is an address resolution packet. Address lengths default to the
// lengths of the addresses themselves.
type ARP struct {
	HWType value.Value[uint16]    `json:"hwtype" yaml:"hwtype" mapstructure:"hwtype"`
	PType  value.Value[uint16]    `json:"ptype" yaml:"ptype" mapstructure:"ptype"`
	HWLen  value.Value[uint8]     `json:"hwlen" yaml:"hwlen" mapstructure:"hwlen"`
	PLen   value.Value[uint8]     `json:"plen" yaml:"plen" mapstructure:"plen"`
	Op     value.Value[uint16]    `json:"op" yaml:"op" mapstructure:"op"`
	HWSrc  value.Value[HWAddr]    `json:"hwsrc" yaml:"hwsrc" mapstructure:"hwsrc"`
	PSrc   value.Value[ProtoAddr] `json:"psrc" yaml:"psrc" mapstructure:"psrc"`
	HWDst  value.Value[HWAddr]    `json:"hwdst" yaml:"hwdst" mapstructure:"hwdst"`
	PDst   value.Value[ProtoAddr] `json:"pdst" yaml:"pdst" mapstructure:"pdst"`
}

func (a *ARP) Type() layer.Type { return TypeARP }

func (a *ARP) Clone() layer.Layer {
	c := *a
	return &c
}

func (a *ARP) Fill(fc *layer.FillContext) layer.Layer {
	zeroIP := constant(IPv4Addr(netip.IPv4Unspecified()))
	f := &ARP{
		HWType: a.HWType.Fill(fc.Rand, constant[uint16](1)),
		PType:  a.PType.Fill(fc.Rand, constant[uint16](0x0800)),
		Op:     a.Op.Fill(fc.Rand, constant[uint16](ARPRequest)),
		HWSrc:  a.HWSrc.Fill(fc.Rand, constant(MACAddr(value.ZeroMAC))),
		PSrc:   a.PSrc.Fill(fc.Rand, zeroIP),
		HWDst:  a.HWDst.Fill(fc.Rand, constant(MACAddr(value.ZeroMAC))),
		PDst:   a.PDst.Fill(fc.Rand, zeroIP),
	}
	hwsrc, _ := f.HWSrc.Get()
	psrc, _ := f.PSrc.Get()
	f.HWLen = a.HWLen.Fill(fc.Rand, constant(uint8(len(hwsrc.Bytes()))))
	f.PLen = a.PLen.Fill(fc.Rand, constant(uint8(len(psrc.Bytes()))))
	return f
}

func (a *ARP) Encode(ec *layer.EncodeContext) []byte {
	f := a.Fill(ec.Fill()).(*ARP)
	hwsrc, _ := f.HWSrc.Get()
	psrc, _ := f.PSrc.Get()
	hwdst, _ := f.HWDst.Get()
	pdst, _ := f.PDst.Get()

	w := codec.NewWriter(nil, 28)
	w.Uint16(f.HWType.Or(1))
	w.Uint16(f.PType.Or(0x0800))
	w.Uint8(f.HWLen.Or(6))
	w.Uint8(f.PLen.Or(4))
	w.Uint16(f.Op.Or(ARPRequest))
	w.Write(hwsrc.Bytes())
	w.Write(psrc.Bytes())
	w.Write(hwdst.Bytes())
	w.Write(pdst.Bytes())
	return w.Bytes()
}

func (a *ARP) Decode(buf []byte) (*layer.Stack, int, error) {
	r := codec.NewReader(nil, buf)
	head := &ARP{
		HWType: value.Of(r.Uint16()),
		PType:  value.Of(r.Uint16()),
	}
	hwlen, plen := r.Uint8(), r.Uint8()
	head.HWLen, head.PLen = value.Of(hwlen), value.Of(plen)
	head.Op = value.Of(r.Uint16())
	head.HWSrc = value.Of(decodeHWAddr(r.Bytes(int(hwlen))))
	head.PSrc = value.Of(decodeProtoAddr(r.Bytes(int(plen))))
	head.HWDst = value.Of(decodeHWAddr(r.Bytes(int(hwlen))))
	head.PDst = value.Of(decodeProtoAddr(r.Bytes(int(plen))))
	if err := r.Err(); err != nil {
		return nil, 0, fmt.Errorf("arp: %w", err)
	}
	return layer.Of(head), r.Offset(), nil
}

func decodeHWAddr(b []byte) HWAddr {
	if len(b) == 6 {
		return MACAddr(value.MAC(b))
	}
	return RawHWAddr(b)
}

func decodeProtoAddr(b []byte) ProtoAddr {
	if len(b) == 4 {
		return IPv4Addr(netip.AddrFrom4([4]byte(b)))
	}
	return RawProtoAddr(b)
}
