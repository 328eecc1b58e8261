package protocols

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/netip"

	"firestige.xyz/pktcraft/pkg/codec"
	"firestige.xyz/pktcraft/pkg/layer"
	"firestige.xyz/pktcraft/pkg/value"
)

const (
	TypeBootp layer.Type = "Bootp"
	TypeDHCP  layer.Type = "DHCP"
)

const (
	bootpChaddrLen = 16
	bootpSnameLen  = 64
	bootpFileLen   = 128
)

// Bootp is the RFC 951 message up to and including the vendor cookie. The
// vendor area is the next layer, selected by Cookie.
type Bootp struct {
	Op     value.Value[uint8]      `json:"op" yaml:"op" mapstructure:"op"`
	HType  value.Value[uint8]      `json:"htype" yaml:"htype" mapstructure:"htype"`
	HLen   value.Value[uint8]      `json:"hlen" yaml:"hlen" mapstructure:"hlen"`
	Hops   value.Value[uint8]      `json:"hops" yaml:"hops" mapstructure:"hops"`
	XID    value.Value[uint32]     `json:"xid" yaml:"xid" mapstructure:"xid"`
	Secs   value.Value[uint16]     `json:"secs" yaml:"secs" mapstructure:"secs"`
	Flags  value.Value[uint16]     `json:"flags" yaml:"flags" mapstructure:"flags"`
	CIAddr value.Value[netip.Addr] `json:"ciaddr" yaml:"ciaddr" mapstructure:"ciaddr"`
	YIAddr value.Value[netip.Addr] `json:"yiaddr" yaml:"yiaddr" mapstructure:"yiaddr"`
	SIAddr value.Value[netip.Addr] `json:"siaddr" yaml:"siaddr" mapstructure:"siaddr"`
	GIAddr value.Value[netip.Addr] `json:"giaddr" yaml:"giaddr" mapstructure:"giaddr"`
	// CHAddr is padded or cut to 16 bytes.
	CHAddr value.Value[[]byte] `json:"chaddr" yaml:"chaddr" mapstructure:"chaddr"`
	// SName and File are NUL padded on the wire. Decoding drops only the
	// trailing NULs, so bytes after an embedded terminator survive.
	SName  value.Value[string] `json:"sname" yaml:"sname" mapstructure:"sname"`
	File   value.Value[string] `json:"file" yaml:"file" mapstructure:"file"`
	Cookie value.Value[uint32] `json:"cookie" yaml:"cookie" mapstructure:"cookie"`
}

func (b *Bootp) Type() layer.Type { return TypeBootp }

func (b *Bootp) Clone() layer.Layer {
	c := *b
	c.CHAddr = value.CloneBytes(b.CHAddr)
	return &c
}

func (b *Bootp) Fill(fc *layer.FillContext) layer.Layer {
	zero := constant(netip.IPv4Unspecified())
	return &Bootp{
		Op:     b.Op.Fill(fc.Rand, constant[uint8](1)),
		HType:  b.HType.Fill(fc.Rand, constant[uint8](1)),
		HLen:   b.HLen.Fill(fc.Rand, constant[uint8](6)),
		Hops:   b.Hops.Fill(fc.Rand, nil),
		XID:    b.XID.Fill(fc.Rand, nil),
		Secs:   b.Secs.Fill(fc.Rand, nil),
		Flags:  b.Flags.Fill(fc.Rand, nil),
		CIAddr: b.CIAddr.Fill(fc.Rand, zero),
		YIAddr: b.YIAddr.Fill(fc.Rand, zero),
		SIAddr: b.SIAddr.Fill(fc.Rand, zero),
		GIAddr: b.GIAddr.Fill(fc.Rand, zero),
		CHAddr: value.CloneBytes(b.CHAddr.Fill(fc.Rand, func() []byte { return make([]byte, bootpChaddrLen) })),
		SName:  b.SName.Fill(fc.Rand, nil),
		File:   b.File.Fill(fc.Rand, nil),
		Cookie: b.Cookie.Fill(fc.Rand, nextKey[uint32](fc, BootpVendors, DHCPCookie)),
	}
}

func (b *Bootp) Encode(ec *layer.EncodeContext) []byte {
	f := b.Fill(ec.Fill()).(*Bootp)
	w := codec.NewWriter(nil, 240)
	w.Uint8(f.Op.Or(1))
	w.Uint8(f.HType.Or(1))
	w.Uint8(f.HLen.Or(6))
	w.Uint8(f.Hops.Or(0))
	w.Uint32(f.XID.Or(0))
	w.Uint16(f.Secs.Or(0))
	w.Uint16(f.Flags.Or(0))
	for _, a := range []value.Value[netip.Addr]{f.CIAddr, f.YIAddr, f.SIAddr, f.GIAddr} {
		ip := value.IPv4(a.Or(netip.IPv4Unspecified()))
		w.Write(ip[:])
	}
	w.Write(fixed(f.CHAddr.Or(nil), bootpChaddrLen))
	w.Write(fixed([]byte(f.SName.Or("")), bootpSnameLen))
	w.Write(fixed([]byte(f.File.Or("")), bootpFileLen))
	w.Uint32(f.Cookie.Or(DHCPCookie))
	return w.Bytes()
}

func (b *Bootp) Decode(buf []byte) (*layer.Stack, int, error) {
	r := codec.NewReader(nil, buf)
	head := &Bootp{
		Op:    value.Of(r.Uint8()),
		HType: value.Of(r.Uint8()),
		HLen:  value.Of(r.Uint8()),
		Hops:  value.Of(r.Uint8()),
		XID:   value.Of(r.Uint32()),
		Secs:  value.Of(r.Uint16()),
		Flags: value.Of(r.Uint16()),
	}
	addrs := make([]value.Value[netip.Addr], 4)
	for i := range addrs {
		var a [4]byte
		r.Array(a[:])
		addrs[i] = value.Of(netip.AddrFrom4(a))
	}
	head.CIAddr, head.YIAddr, head.SIAddr, head.GIAddr = addrs[0], addrs[1], addrs[2], addrs[3]
	head.CHAddr = value.Of(r.Bytes(bootpChaddrLen))
	head.SName = value.Of(trimNUL(r.Bytes(bootpSnameLen)))
	head.File = value.Of(trimNUL(r.Bytes(bootpFileLen)))
	cookie := r.Uint32()
	head.Cookie = value.Of(cookie)
	if err := r.Err(); err != nil {
		return nil, 0, fmt.Errorf("bootp: %w", err)
	}
	inner, n := layer.Chain(Registries(), r.Rest(), layer.Key{Registry: BootpVendors, Value: uint64(cookie)})
	return layer.Join(head, inner), r.Offset() + n, nil
}

// fixed returns b padded with zeros or cut to n bytes.
func fixed(b []byte, n int) []byte {
	out := make([]byte, n)
	copy(out, b)
	return out
}

func trimNUL(b []byte) string {
	return string(bytes.TrimRight(b, "\x00"))
}

// DHCP option codes used by the helpers below. Other codes are carried as
// opaque data.
const (
	DHCPOptPad          uint8 = 0
	DHCPOptSubnetMask   uint8 = 1
	DHCPOptRouter       uint8 = 3
	DHCPOptDNSServer    uint8 = 6
	DHCPOptHostName     uint8 = 12
	DHCPOptRequestedIP  uint8 = 50
	DHCPOptLeaseTime    uint8 = 51
	DHCPOptMessageType  uint8 = 53
	DHCPOptServerID     uint8 = 54
	DHCPOptParamRequest uint8 = 55
	DHCPOptClientID     uint8 = 61
	DHCPOptEnd          uint8 = 255
)

// DHCP message types.
const (
	DHCPDiscover uint8 = iota + 1
	DHCPOffer
	DHCPRequest
	DHCPDecline
	DHCPAck
	DHCPNak
	DHCPRelease
	DHCPInform
)

var dhcpOptionNames = map[uint8]string{
	DHCPOptPad:          "pad",
	DHCPOptSubnetMask:   "subnet-mask",
	DHCPOptRouter:       "router",
	DHCPOptDNSServer:    "dns-server",
	DHCPOptHostName:     "hostname",
	DHCPOptRequestedIP:  "requested-ip",
	DHCPOptLeaseTime:    "lease-time",
	DHCPOptMessageType:  "message-type",
	DHCPOptServerID:     "server-id",
	DHCPOptParamRequest: "param-request-list",
	DHCPOptClientID:     "client-id",
	DHCPOptEnd:          "end",
}

// DHCPOption is one option of the DHCP vendor area. Pad and End have no
// length or data.
type DHCPOption struct {
	Code uint8
	Data []byte
}

func NewDHCPOption(code uint8, data []byte) DHCPOption {
	return DHCPOption{Code: code, Data: append([]byte(nil), data...)}
}

func DHCPMessageTypeOption(t uint8) DHCPOption {
	return DHCPOption{Code: DHCPOptMessageType, Data: []byte{t}}
}

func DHCPAddrOption(code uint8, a netip.Addr) DHCPOption {
	b := value.IPv4(a)
	return DHCPOption{Code: code, Data: b[:]}
}

func DHCPEndOption() DHCPOption { return DHCPOption{Code: DHCPOptEnd} }

func (o DHCPOption) Name() string {
	if n, ok := dhcpOptionNames[o.Code]; ok {
		return n
	}
	return fmt.Sprintf("option-%d", o.Code)
}

func (o DHCPOption) String() string {
	if o.Code == DHCPOptPad || o.Code == DHCPOptEnd {
		return o.Name()
	}
	return fmt.Sprintf("%s=0x%s", o.Name(), hex.EncodeToString(o.Data))
}

func (o DHCPOption) MarshalJSON() ([]byte, error) { return json.Marshal(o.String()) }

func (o DHCPOption) MarshalYAML() (interface{}, error) { return o.String(), nil }

// encode writes o as one option, or as RFC 3396 continuation options with
// the same code when the data is longer than 255 bytes.
func (o DHCPOption) encode(w *codec.Writer) {
	w.Uint8(o.Code)
	if o.Code == DHCPOptPad || o.Code == DHCPOptEnd {
		return
	}
	data := o.Data
	for {
		n := min(len(data), 255)
		w.Uint8(uint8(n))
		w.Write(data[:n])
		data = data[n:]
		if len(data) == 0 {
			return
		}
		w.Uint8(o.Code)
	}
}

// DHCP is the RFC 2132 option list following the magic cookie. Options are
// encoded exactly as listed. Decoding stops after End or at the first option
// that runs past the buffer; the rest stays raw.
type DHCP struct {
	Options []DHCPOption `json:"options" yaml:"options" mapstructure:"options"`
}

func (d *DHCP) Type() layer.Type { return TypeDHCP }

func (d *DHCP) Clone() layer.Layer {
	c := &DHCP{Options: make([]DHCPOption, len(d.Options))}
	for i, o := range d.Options {
		c.Options[i] = NewDHCPOption(o.Code, o.Data)
	}
	return c
}

func (d *DHCP) Fill(*layer.FillContext) layer.Layer { return d.Clone() }

func (d *DHCP) Encode(*layer.EncodeContext) []byte {
	w := codec.NewWriter(nil, 64)
	for _, o := range d.Options {
		o.encode(w)
	}
	return w.Bytes()
}

// MessageType returns the value of the message-type option.
func (d *DHCP) MessageType() (uint8, bool) {
	for _, o := range d.Options {
		if o.Code == DHCPOptMessageType && len(o.Data) == 1 {
			return o.Data[0], true
		}
	}
	return 0, false
}

func (d *DHCP) Decode(buf []byte) (*layer.Stack, int, error) {
	r := codec.NewReader(nil, buf)
	head := &DHCP{}
	for r.Len() > 0 {
		start := r.Offset()
		code := r.Uint8()
		if code == DHCPOptPad || code == DHCPOptEnd {
			head.Options = append(head.Options, DHCPOption{Code: code})
			if code == DHCPOptEnd {
				break
			}
			continue
		}
		n := r.Uint8()
		data := r.Bytes(int(n))
		if r.Err() != nil {
			r = codec.NewReader(nil, buf)
			r.Skip(start)
			break
		}
		head.Options = append(head.Options, DHCPOption{Code: code, Data: data})
	}
	return layer.Of(head), r.Offset(), nil
}
