package protocols

import (
	"fmt"

	"firestige.xyz/pktcraft/pkg/codec"
	"firestige.xyz/pktcraft/pkg/layer"
	"firestige.xyz/pktcraft/pkg/value"
)

const TypeUDP layer.Type = "UDP"

const udpHeaderLen = 8

// UDP is a UDP header. Len and Chksum are computed while encoding unless
// set; the checksum covers the IPv4 pseudo-header of the IP layer in front.
type UDP struct {
	SPort  value.Value[uint16] `json:"sport" yaml:"sport" mapstructure:"sport"`
	DPort  value.Value[uint16] `json:"dport" yaml:"dport" mapstructure:"dport"`
	Len    value.Value[uint16] `json:"len" yaml:"len" mapstructure:"len"`
	Chksum value.Value[uint16] `json:"chksum" yaml:"chksum" mapstructure:"chksum"`
}

func (u *UDP) Type() layer.Type { return TypeUDP }

func (u *UDP) Clone() layer.Layer {
	c := *u
	return &c
}

func (u *UDP) Fill(fc *layer.FillContext) layer.Layer {
	return &UDP{
		SPort:  u.SPort.Fill(fc.Rand, constant[uint16](0xffff)),
		DPort:  u.DPort.Fill(fc.Rand, nextKey[uint16](fc, UDPDstPorts, 0)),
		Len:    u.Len.Pin(fc.Rand),
		Chksum: u.Chksum.Pin(fc.Rand),
	}
}

func (u *UDP) Encode(ec *layer.EncodeContext) []byte {
	f := u.Fill(ec.Fill()).(*UDP)
	w := codec.NewWriter(nil, udpHeaderLen)
	w.Uint16(f.SPort.Or(0xffff))
	w.Uint16(f.DPort.Or(0))
	w.Uint16(f.Len.Resolve(ec.Rand, func() uint16 { return length16(TypeUDP, udpHeaderLen+ec.InnerLen()) }))
	w.Uint16(f.Chksum.Or(0))
	hdr := w.Bytes()
	if f.Chksum.IsAuto() {
		transportChecksum(ec, hdr, 6)
	}
	return hdr
}

// Decode dispatches on the destination port first, then the source port.
func (u *UDP) Decode(buf []byte) (*layer.Stack, int, error) {
	r := codec.NewReader(nil, buf)
	head := &UDP{
		SPort:  value.Of(r.Uint16()),
		DPort:  value.Of(r.Uint16()),
		Len:    value.Of(r.Uint16()),
		Chksum: value.Of(r.Uint16()),
	}
	if err := r.Err(); err != nil {
		return nil, 0, fmt.Errorf("udp: %w", err)
	}
	payload := r.Rest()
	if l := int(head.Len.Or(0)); l >= udpHeaderLen && l-udpHeaderLen <= len(payload) {
		payload = payload[:l-udpHeaderLen]
	}
	inner, n := layer.Chain(Registries(), payload,
		layer.Key{Registry: UDPDstPorts, Value: uint64(head.DPort.Or(0))},
		layer.Key{Registry: UDPSrcPorts, Value: uint64(head.SPort.Or(0))},
	)
	return layer.Join(head, inner), r.Offset() + n, nil
}
