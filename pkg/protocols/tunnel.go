package protocols

import (
	"fmt"

	"firestige.xyz/pktcraft/pkg/codec"
	"firestige.xyz/pktcraft/pkg/layer"
	"firestige.xyz/pktcraft/pkg/value"
)

const (
	TypeGeneve layer.Type = "Geneve"
	TypeVXLAN  layer.Type = "VXLAN"
)

// Geneve is the RFC 8926 header. Options are kept as raw TLV bytes and
// OptLen, in 4 byte words, defaults to their length.
type Geneve struct {
	Version   value.Value[uint8]  `json:"version" yaml:"version" mapstructure:"version"`
	OptLen    value.Value[uint8]  `json:"optlen" yaml:"optlen" mapstructure:"optlen"`
	OAM       value.Value[bool]   `json:"oam" yaml:"oam" mapstructure:"oam"`
	Critical  value.Value[bool]   `json:"critical" yaml:"critical" mapstructure:"critical"`
	Reserved  value.Value[uint8]  `json:"reserved" yaml:"reserved" mapstructure:"reserved"`
	Protocol  value.Value[uint16] `json:"protocol" yaml:"protocol" mapstructure:"protocol"`
	VNI       value.Value[uint32] `json:"vni" yaml:"vni" mapstructure:"vni"`
	Reserved2 value.Value[uint8]  `json:"reserved2" yaml:"reserved2" mapstructure:"reserved2"`
	Options   []byte              `json:"options,omitempty" yaml:"options,omitempty" mapstructure:"options"`
}

func (g *Geneve) Type() layer.Type { return TypeGeneve }

func (g *Geneve) Clone() layer.Layer {
	c := *g
	c.Options = append([]byte(nil), g.Options...)
	return &c
}

func (g *Geneve) Fill(fc *layer.FillContext) layer.Layer {
	opts := pad4(g.Options)
	return &Geneve{
		Version:   g.Version.Fill(fc.Rand, nil),
		OptLen:    g.OptLen.Fill(fc.Rand, constant(uint8(len(opts)/4))),
		OAM:       g.OAM.Fill(fc.Rand, nil),
		Critical:  g.Critical.Fill(fc.Rand, nil),
		Reserved:  g.Reserved.Fill(fc.Rand, nil),
		Protocol:  g.Protocol.Fill(fc.Rand, nextKey[uint16](fc, EtherTypes, 0x6558)),
		VNI:       g.VNI.Fill(fc.Rand, nil),
		Reserved2: g.Reserved2.Fill(fc.Rand, nil),
		Options:   append([]byte(nil), opts...),
	}
}

func (g *Geneve) Encode(ec *layer.EncodeContext) []byte {
	f := g.Fill(ec.Fill()).(*Geneve)
	w := codec.NewWriter(nil, 8+len(f.Options))
	w.Uint16(uint16(f.Version.Or(0)&3)<<14 |
		uint16(f.OptLen.Or(0)&0x3f)<<8 |
		boolBit(f.OAM.Or(false))<<7 |
		boolBit(f.Critical.Or(false))<<6 |
		uint16(f.Reserved.Or(0)&0x3f))
	w.Uint16(f.Protocol.Or(0x6558))
	w.Uint24(f.VNI.Or(0))
	w.Uint8(f.Reserved2.Or(0))
	w.Write(f.Options)
	return w.Bytes()
}

func (g *Geneve) Decode(buf []byte) (*layer.Stack, int, error) {
	r := codec.NewReader(nil, buf)
	word := r.Uint16()
	proto := r.Uint16()
	vniRes := r.Uint32()
	optlen := uint8(word>>8) & 0x3f
	head := &Geneve{
		Version:   value.Of(uint8(word >> 14)),
		OptLen:    value.Of(optlen),
		OAM:       value.Of(word>>7&1 == 1),
		Critical:  value.Of(word>>6&1 == 1),
		Reserved:  value.Of(uint8(word) & 0x3f),
		Protocol:  value.Of(proto),
		VNI:       value.Of(vniRes >> 8),
		Reserved2: value.Of(uint8(vniRes)),
	}
	if optlen > 0 {
		head.Options = r.Bytes(int(optlen) * 4)
	}
	if err := r.Err(); err != nil {
		return nil, 0, fmt.Errorf("geneve: %w", err)
	}
	inner, n := layer.Chain(Registries(), r.Rest(), layer.Key{Registry: EtherTypes, Value: uint64(proto)})
	return layer.Join(head, inner), r.Offset() + n, nil
}

// VXLAN is the RFC 7348 header. The inner frame is decoded as Ethernet.
type VXLAN struct {
	Flags     value.Value[uint8]  `json:"flags" yaml:"flags" mapstructure:"flags"`
	Reserved  value.Value[uint32] `json:"reserved" yaml:"reserved" mapstructure:"reserved"`
	VNI       value.Value[uint32] `json:"vni" yaml:"vni" mapstructure:"vni"`
	Reserved2 value.Value[uint8]  `json:"reserved2" yaml:"reserved2" mapstructure:"reserved2"`
}

func (v *VXLAN) Type() layer.Type { return TypeVXLAN }

func (v *VXLAN) Clone() layer.Layer {
	c := *v
	return &c
}

func (v *VXLAN) Fill(fc *layer.FillContext) layer.Layer {
	return &VXLAN{
		Flags:     v.Flags.Fill(fc.Rand, constant[uint8](0x08)),
		Reserved:  v.Reserved.Fill(fc.Rand, nil),
		VNI:       v.VNI.Fill(fc.Rand, nil),
		Reserved2: v.Reserved2.Fill(fc.Rand, nil),
	}
}

func (v *VXLAN) Encode(ec *layer.EncodeContext) []byte {
	f := v.Fill(ec.Fill()).(*VXLAN)
	w := codec.NewWriter(nil, 8)
	w.Uint8(f.Flags.Or(0x08))
	w.Uint24(f.Reserved.Or(0))
	w.Uint24(f.VNI.Or(0))
	w.Uint8(f.Reserved2.Or(0))
	return w.Bytes()
}

func (v *VXLAN) Decode(buf []byte) (*layer.Stack, int, error) {
	r := codec.NewReader(nil, buf)
	flagsRes, vniRes := r.Uint32(), r.Uint32()
	if err := r.Err(); err != nil {
		return nil, 0, fmt.Errorf("vxlan: %w", err)
	}
	head := &VXLAN{
		Flags:     value.Of(uint8(flagsRes >> 24)),
		Reserved:  value.Of(flagsRes & 0xffffff),
		VNI:       value.Of(vniRes >> 8),
		Reserved2: value.Of(uint8(vniRes)),
	}
	inner, n := layer.DecodeAs(&Ether{}, r.Rest())
	return layer.Join(head, inner), r.Offset() + n, nil
}
