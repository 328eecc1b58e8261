package protocols

import (
	"fmt"
	"net/netip"

	"firestige.xyz/pktcraft/pkg/checksum"
	"firestige.xyz/pktcraft/pkg/codec"
	"firestige.xyz/pktcraft/pkg/layer"
	"firestige.xyz/pktcraft/pkg/value"
)

const TypeIP layer.Type = "IP"

// IP header flag bits, as stored in IP.Flags.
const (
	IPFlagMF = 1 << 0
	IPFlagDF = 1 << 1
)

const ipv4HeaderLen = 20

var localhost = netip.AddrFrom4([4]byte{127, 0, 0, 1})

// IP is an IPv4 header. IHL, Len and Chksum are computed while encoding
// unless set.
type IP struct {
	Version value.Value[uint8]      `json:"version" yaml:"version" mapstructure:"version"`
	IHL     value.Value[uint8]      `json:"ihl" yaml:"ihl" mapstructure:"ihl"`
	TOS     value.Value[uint8]      `json:"tos" yaml:"tos" mapstructure:"tos"`
	Len     value.Value[uint16]     `json:"len" yaml:"len" mapstructure:"len"`
	ID      value.Value[uint16]     `json:"id" yaml:"id" mapstructure:"id"`
	Flags   value.Value[uint8]      `json:"flags" yaml:"flags" mapstructure:"flags"`
	Frag    value.Value[uint16]     `json:"frag" yaml:"frag" mapstructure:"frag"`
	TTL     value.Value[uint8]      `json:"ttl" yaml:"ttl" mapstructure:"ttl"`
	Proto   value.Value[uint8]      `json:"proto" yaml:"proto" mapstructure:"proto"`
	Chksum  value.Value[uint16]     `json:"chksum" yaml:"chksum" mapstructure:"chksum"`
	Src     value.Value[netip.Addr] `json:"src" yaml:"src" mapstructure:"src"`
	Dst     value.Value[netip.Addr] `json:"dst" yaml:"dst" mapstructure:"dst"`
	Options []byte                  `json:"options,omitempty" yaml:"options,omitempty" mapstructure:"options"`
}

func (ip *IP) Type() layer.Type { return TypeIP }

func (ip *IP) Clone() layer.Layer {
	c := *ip
	c.Options = append([]byte(nil), ip.Options...)
	return &c
}

func (ip *IP) Fill(fc *layer.FillContext) layer.Layer {
	return &IP{
		Version: ip.Version.Fill(fc.Rand, constant[uint8](4)),
		IHL:     ip.IHL.Pin(fc.Rand),
		TOS:     ip.TOS.Fill(fc.Rand, nil),
		Len:     ip.Len.Pin(fc.Rand),
		ID:      ip.ID.Fill(fc.Rand, func() uint16 { return value.Draw[uint16](randOf(fc)) }),
		Flags:   ip.Flags.Fill(fc.Rand, nil),
		Frag:    ip.Frag.Fill(fc.Rand, nil),
		TTL:     ip.TTL.Fill(fc.Rand, constant[uint8](64)),
		Proto:   ip.Proto.Fill(fc.Rand, nextKey[uint8](fc, IPProtocols, 0)),
		Chksum:  ip.Chksum.Pin(fc.Rand),
		Src:     ip.Src.Fill(fc.Rand, constant(localhost)),
		Dst:     ip.Dst.Fill(fc.Rand, constant(localhost)),
		Options: append([]byte(nil), ip.Options...),
	}
}

// HeaderLen is the header length in bytes the encoder will produce.
func (ip *IP) HeaderLen() int {
	if ihl, ok := ip.IHL.Get(); ok {
		return int(ihl&0xf) * 4
	}
	return ipv4HeaderLen + len(pad4(ip.Options))
}

func (ip *IP) Encode(ec *layer.EncodeContext) []byte {
	f := ip.Fill(ec.Fill()).(*IP)
	opts := f.Options
	if f.IHL.IsAuto() {
		opts = pad4(opts)
	}
	ihl := f.IHL.Resolve(ec.Rand, func() uint8 { return uint8((ipv4HeaderLen + len(opts)) / 4) })
	length := f.Len.Resolve(ec.Rand, func() uint16 {
		return length16(TypeIP, ipv4HeaderLen+len(opts)+ec.InnerLen())
	})
	src, dst := value.IPv4(f.Src.Or(localhost)), value.IPv4(f.Dst.Or(localhost))

	w := codec.NewWriter(nil, ipv4HeaderLen+len(opts))
	w.Uint8(f.Version.Or(4)<<4 | ihl&0xf)
	w.Uint8(f.TOS.Or(0))
	w.Uint16(length)
	w.Uint16(f.ID.Or(0))
	w.Uint16(uint16(f.Flags.Or(0)&7)<<13 | f.Frag.Or(0)&0x1fff)
	w.Uint8(f.TTL.Or(64))
	w.Uint8(f.Proto.Or(0))
	w.Uint16(f.Chksum.Or(0))
	w.Write(src[:])
	w.Write(dst[:])
	w.Write(opts)
	hdr := w.Bytes()

	if f.Chksum.IsAuto() {
		sum := checksum.Checksum(hdr)
		hdr[10], hdr[11] = byte(sum>>8), byte(sum)
	}
	return hdr
}

func (ip *IP) Decode(buf []byte) (*layer.Stack, int, error) {
	r := codec.NewReader(nil, buf)
	verIHL := r.Uint8()
	head := &IP{
		Version: value.Of(verIHL >> 4),
		IHL:     value.Of(verIHL & 0xf),
		TOS:     value.Of(r.Uint8()),
	}
	length := r.Uint16()
	head.Len = value.Of(length)
	head.ID = value.Of(r.Uint16())
	flagsFrag := r.Uint16()
	head.Flags = value.Of(uint8(flagsFrag >> 13))
	head.Frag = value.Of(flagsFrag & 0x1fff)
	head.TTL = value.Of(r.Uint8())
	proto := r.Uint8()
	head.Proto = value.Of(proto)
	head.Chksum = value.Of(r.Uint16())
	var src, dst [4]byte
	r.Array(src[:])
	r.Array(dst[:])
	head.Src = value.Of(netip.AddrFrom4(src))
	head.Dst = value.Of(netip.AddrFrom4(dst))
	if hlen := int(verIHL&0xf) * 4; hlen > ipv4HeaderLen {
		head.Options = r.Bytes(hlen - ipv4HeaderLen)
	}
	if err := r.Err(); err != nil {
		return nil, 0, fmt.Errorf("ip: %w", err)
	}

	payload := r.Rest()
	if hlen := r.Offset(); int(length) >= hlen && int(length)-hlen <= len(payload) {
		payload = payload[:int(length)-hlen]
	}
	var inner *layer.Stack
	var n int
	if head.Frag.Or(0) != 0 {
		// only the first fragment carries the next header
		inner, n = layer.DecodeAs(&layer.Raw{}, payload)
	} else {
		inner, n = layer.Chain(Registries(), payload, layer.Key{Registry: IPProtocols, Value: uint64(proto)})
	}
	return layer.Join(head, inner), r.Offset() + n, nil
}

// pseudoHeaderSum starts a TCP or UDP checksum with the IPv4 pseudo-header
// of the IP layer in front of position ec.Index. It returns false when there
// is no such layer.
func pseudoHeaderSum(ec *layer.EncodeContext, length int) (uint32, bool) {
	ip, ok := ec.Prev().(*IP)
	if !ok {
		return 0, false
	}
	f := ip.Fill(ec.Fill().At(ec.Index - 1)).(*IP)
	src, dst := value.IPv4(f.Src.Or(localhost)), value.IPv4(f.Dst.Or(localhost))
	sum := checksum.Update(0, src[:])
	sum = checksum.Update(sum, dst[:])
	sum = checksum.AddUint16(sum, uint16(f.Proto.Or(0)))
	sum = checksum.AddUint16(sum, uint16(length))
	return sum, true
}

// Checksum placeholders for transport headers whose pseudo-header cannot be
// built.
var (
	chksumOutermost = [2]byte{0xee, 0xea}
	chksumNoIP      = [2]byte{0xdd, 0xdd}
)

// transportChecksum fills the checksum at hdr[off:off+2] from the
// pseudo-header, hdr (with a zero checksum) and the inner bytes.
func transportChecksum(ec *layer.EncodeContext, hdr []byte, off int) {
	if ec.Index == 0 {
		copy(hdr[off:], chksumOutermost[:])
		return
	}
	inner := ec.Inner()
	sum, ok := pseudoHeaderSum(ec, len(hdr)+len(inner))
	if !ok {
		copy(hdr[off:], chksumNoIP[:])
		return
	}
	sum = checksum.Update(sum, hdr)
	sum = checksum.Update(sum, inner)
	c := checksum.Fold(sum)
	hdr[off], hdr[off+1] = byte(c>>8), byte(c)
}

func randOf(fc *layer.FillContext) value.Rand {
	if fc.Rand == nil {
		return value.DefaultRand()
	}
	return fc.Rand
}

func pad4(b []byte) []byte {
	if len(b)%4 == 0 {
		return b
	}
	return append(append([]byte(nil), b...), make([]byte, 4-len(b)%4)...)
}
