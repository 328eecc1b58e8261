package protocols

import (
	"fmt"

	"firestige.xyz/pktcraft/pkg/codec"
	"firestige.xyz/pktcraft/pkg/layer"
	"firestige.xyz/pktcraft/pkg/value"
)

const TypeTCP layer.Type = "TCP"

// TCP flag bits.
const (
	TCPFlagFIN = 1 << iota
	TCPFlagSYN
	TCPFlagRST
	TCPFlagPSH
	TCPFlagACK
	TCPFlagURG
	TCPFlagECE
	TCPFlagCWR
)

const tcpHeaderLen = 20

// TCP is a TCP header. DataOfs and Chksum are computed while encoding
// unless set. Options are kept as raw bytes.
type TCP struct {
	SPort    value.Value[uint16] `json:"sport" yaml:"sport" mapstructure:"sport"`
	DPort    value.Value[uint16] `json:"dport" yaml:"dport" mapstructure:"dport"`
	Seq      value.Value[uint32] `json:"seq" yaml:"seq" mapstructure:"seq"`
	Ack      value.Value[uint32] `json:"ack" yaml:"ack" mapstructure:"ack"`
	DataOfs  value.Value[uint8]  `json:"dataofs" yaml:"dataofs" mapstructure:"dataofs"`
	Reserved value.Value[uint8]  `json:"reserved" yaml:"reserved" mapstructure:"reserved"`
	Flags    value.Value[uint8]  `json:"flags" yaml:"flags" mapstructure:"flags"`
	Window   value.Value[uint16] `json:"window" yaml:"window" mapstructure:"window"`
	Chksum   value.Value[uint16] `json:"chksum" yaml:"chksum" mapstructure:"chksum"`
	UrgPtr   value.Value[uint16] `json:"urgptr" yaml:"urgptr" mapstructure:"urgptr"`
	Options  []byte              `json:"options,omitempty" yaml:"options,omitempty" mapstructure:"options"`
}

func (t *TCP) Type() layer.Type { return TypeTCP }

func (t *TCP) Clone() layer.Layer {
	c := *t
	c.Options = append([]byte(nil), t.Options...)
	return &c
}

func (t *TCP) Fill(fc *layer.FillContext) layer.Layer {
	return &TCP{
		SPort:    t.SPort.Fill(fc.Rand, constant[uint16](0xffff)),
		DPort:    t.DPort.Fill(fc.Rand, constant[uint16](80)),
		Seq:      t.Seq.Fill(fc.Rand, nil),
		Ack:      t.Ack.Fill(fc.Rand, nil),
		DataOfs:  t.DataOfs.Pin(fc.Rand),
		Reserved: t.Reserved.Fill(fc.Rand, nil),
		Flags:    t.Flags.Fill(fc.Rand, constant[uint8](TCPFlagSYN)),
		Window:   t.Window.Fill(fc.Rand, constant[uint16](8192)),
		Chksum:   t.Chksum.Pin(fc.Rand),
		UrgPtr:   t.UrgPtr.Fill(fc.Rand, nil),
		Options:  append([]byte(nil), t.Options...),
	}
}

func (t *TCP) Encode(ec *layer.EncodeContext) []byte {
	f := t.Fill(ec.Fill()).(*TCP)
	opts := f.Options
	if f.DataOfs.IsAuto() {
		opts = pad4(opts)
	}
	dataofs := f.DataOfs.Resolve(ec.Rand, func() uint8 { return uint8((tcpHeaderLen + len(opts)) / 4) })

	w := codec.NewWriter(nil, tcpHeaderLen+len(opts))
	w.Uint16(f.SPort.Or(0xffff))
	w.Uint16(f.DPort.Or(80))
	w.Uint32(f.Seq.Or(0))
	w.Uint32(f.Ack.Or(0))
	w.Uint8(dataofs<<4 | f.Reserved.Or(0)&0xf)
	w.Uint8(f.Flags.Or(TCPFlagSYN))
	w.Uint16(f.Window.Or(8192))
	w.Uint16(f.Chksum.Or(0))
	w.Uint16(f.UrgPtr.Or(0))
	w.Write(opts)
	hdr := w.Bytes()
	if f.Chksum.IsAuto() {
		transportChecksum(ec, hdr, 16)
	}
	return hdr
}

func (t *TCP) Decode(buf []byte) (*layer.Stack, int, error) {
	r := codec.NewReader(nil, buf)
	head := &TCP{
		SPort: value.Of(r.Uint16()),
		DPort: value.Of(r.Uint16()),
		Seq:   value.Of(r.Uint32()),
		Ack:   value.Of(r.Uint32()),
	}
	offRes := r.Uint8()
	head.DataOfs = value.Of(offRes >> 4)
	head.Reserved = value.Of(offRes & 0xf)
	head.Flags = value.Of(r.Uint8())
	head.Window = value.Of(r.Uint16())
	head.Chksum = value.Of(r.Uint16())
	head.UrgPtr = value.Of(r.Uint16())
	if hlen := int(offRes>>4) * 4; hlen > tcpHeaderLen {
		head.Options = r.Bytes(hlen - tcpHeaderLen)
	}
	if err := r.Err(); err != nil {
		return nil, 0, fmt.Errorf("tcp: %w", err)
	}
	inner, n := layer.DecodeAs(&layer.Raw{}, r.Rest())
	return layer.Join(head, inner), r.Offset() + n, nil
}
