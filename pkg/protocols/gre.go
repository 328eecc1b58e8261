package protocols

import (
	"fmt"

	"firestige.xyz/pktcraft/pkg/checksum"
	"firestige.xyz/pktcraft/pkg/codec"
	"firestige.xyz/pktcraft/pkg/layer"
	"firestige.xyz/pktcraft/pkg/value"
)

const TypeGRE layer.Type = "GRE"

// GRE covers RFC 1701, RFC 2784 and the enhanced (PPTP) header. The first
// word packs the presence bits, the recursion control, the flags and the
// version; the optional fields that follow are present only when their bit
// is set. Unset presence bits default to whether the optional field was
// given a value.
//
// Checksum and Offset share a 4 byte block present when either the checksum
// or the routing bit is set. The checksum is computed only when its own bit
// is set.
type GRE struct {
	ChksumPresent     value.Value[bool]   `json:"chksum_present" yaml:"chksum_present" mapstructure:"chksum_present"`
	RoutingPresent    value.Value[bool]   `json:"routing_present" yaml:"routing_present" mapstructure:"routing_present"`
	KeyPresent        value.Value[bool]   `json:"key_present" yaml:"key_present" mapstructure:"key_present"`
	SeqPresent        value.Value[bool]   `json:"seq_present" yaml:"seq_present" mapstructure:"seq_present"`
	StrictSourceRoute value.Value[bool]   `json:"strict_source_route" yaml:"strict_source_route" mapstructure:"strict_source_route"`
	RecursionControl  value.Value[uint8]  `json:"recursion_control" yaml:"recursion_control" mapstructure:"recursion_control"`
	AckPresent        value.Value[bool]   `json:"ack_present" yaml:"ack_present" mapstructure:"ack_present"`
	Flags             value.Value[uint8]  `json:"flags" yaml:"flags" mapstructure:"flags"`
	Version           value.Value[uint8]  `json:"version" yaml:"version" mapstructure:"version"`
	Proto             value.Value[uint16] `json:"proto" yaml:"proto" mapstructure:"proto"`
	Chksum            value.Value[uint16] `json:"chksum" yaml:"chksum" mapstructure:"chksum"`
	Offset            value.Value[uint16] `json:"offset" yaml:"offset" mapstructure:"offset"`
	Key               value.Value[uint32] `json:"key" yaml:"key" mapstructure:"key"`
	Seq               value.Value[uint32] `json:"seq" yaml:"seq" mapstructure:"seq"`
	Ack               value.Value[uint32] `json:"ack" yaml:"ack" mapstructure:"ack"`
}

func (g *GRE) Type() layer.Type { return TypeGRE }

func (g *GRE) Clone() layer.Layer {
	c := *g
	return &c
}

func (g *GRE) Fill(fc *layer.FillContext) layer.Layer {
	given := func(auto bool) func() bool { return constant(!auto) }
	return &GRE{
		ChksumPresent:     g.ChksumPresent.Fill(fc.Rand, given(g.Chksum.IsAuto())),
		RoutingPresent:    g.RoutingPresent.Fill(fc.Rand, given(g.Offset.IsAuto())),
		KeyPresent:        g.KeyPresent.Fill(fc.Rand, given(g.Key.IsAuto())),
		SeqPresent:        g.SeqPresent.Fill(fc.Rand, given(g.Seq.IsAuto())),
		StrictSourceRoute: g.StrictSourceRoute.Fill(fc.Rand, nil),
		RecursionControl:  g.RecursionControl.Fill(fc.Rand, nil),
		AckPresent:        g.AckPresent.Fill(fc.Rand, given(g.Ack.IsAuto())),
		Flags:             g.Flags.Fill(fc.Rand, nil),
		Version:           g.Version.Fill(fc.Rand, nil),
		Proto:             g.Proto.Fill(fc.Rand, nextKey[uint16](fc, EtherTypes, 0)),
		Chksum:            g.Chksum.Pin(fc.Rand),
		Offset:            g.Offset.Fill(fc.Rand, nil),
		Key:               g.Key.Fill(fc.Rand, nil),
		Seq:               g.Seq.Fill(fc.Rand, nil),
		Ack:               g.Ack.Fill(fc.Rand, nil),
	}
}

func (g *GRE) firstWord() uint16 {
	return boolBit(g.ChksumPresent.Or(false))<<15 |
		boolBit(g.RoutingPresent.Or(false))<<14 |
		boolBit(g.KeyPresent.Or(false))<<13 |
		boolBit(g.SeqPresent.Or(false))<<12 |
		boolBit(g.StrictSourceRoute.Or(false))<<11 |
		uint16(g.RecursionControl.Or(0)&7)<<8 |
		boolBit(g.AckPresent.Or(false))<<7 |
		uint16(g.Flags.Or(0)&0xf)<<3 |
		uint16(g.Version.Or(0)&7)
}

func (g *GRE) Encode(ec *layer.EncodeContext) []byte {
	f := g.Fill(ec.Fill()).(*GRE)
	c, r := f.ChksumPresent.Or(false), f.RoutingPresent.Or(false)

	w := codec.NewWriter(nil, 16)
	w.Uint16(f.firstWord())
	w.Uint16(f.Proto.Or(0))
	chksumAt := -1
	if c || r {
		chksumAt = w.Len()
		w.Uint16(f.Chksum.Or(0))
		w.Uint16(f.Offset.Or(0))
	}
	if f.KeyPresent.Or(false) {
		w.Uint32(f.Key.Or(0))
	}
	if f.SeqPresent.Or(false) {
		w.Uint32(f.Seq.Or(0))
	}
	if f.AckPresent.Or(false) {
		w.Uint32(f.Ack.Or(0))
	}
	hdr := w.Bytes()
	if c && f.Chksum.IsAuto() {
		sum := checksum.Fold(checksum.Update(checksum.Sum(hdr), ec.Inner()))
		hdr[chksumAt], hdr[chksumAt+1] = byte(sum>>8), byte(sum)
	}
	return hdr
}

func (g *GRE) Decode(buf []byte) (*layer.Stack, int, error) {
	r := codec.NewReader(nil, buf)
	word := r.Uint16()
	proto := r.Uint16()
	bit := func(n int) bool { return word>>n&1 == 1 }
	head := &GRE{
		ChksumPresent:     value.Of(bit(15)),
		RoutingPresent:    value.Of(bit(14)),
		KeyPresent:        value.Of(bit(13)),
		SeqPresent:        value.Of(bit(12)),
		StrictSourceRoute: value.Of(bit(11)),
		RecursionControl:  value.Of(uint8(word>>8) & 7),
		AckPresent:        value.Of(bit(7)),
		Flags:             value.Of(uint8(word>>3) & 0xf),
		Version:           value.Of(uint8(word) & 7),
		Proto:             value.Of(proto),
	}
	if bit(15) || bit(14) {
		head.Chksum = value.Of(r.Uint16())
		head.Offset = value.Of(r.Uint16())
	}
	if bit(13) {
		head.Key = value.Of(r.Uint32())
	}
	if bit(12) {
		head.Seq = value.Of(r.Uint32())
	}
	if bit(7) {
		head.Ack = value.Of(r.Uint32())
	}
	if err := r.Err(); err != nil {
		return nil, 0, fmt.Errorf("gre: %w", err)
	}
	inner, n := layer.Chain(Registries(), r.Rest(), layer.Key{Registry: EtherTypes, Value: uint64(proto)})
	return layer.Join(head, inner), r.Offset() + n, nil
}
