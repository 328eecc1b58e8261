package protocols

import (
	"fmt"

	"firestige.xyz/pktcraft/pkg/codec"
	"firestige.xyz/pktcraft/pkg/layer"
	"firestige.xyz/pktcraft/pkg/value"
)

const (
	TypeEther layer.Type = "Ether"
	TypeDot1Q layer.Type = "Dot1Q"
)

// Ether is an Ethernet II header.
type Ether struct {
	Dst       value.Value[value.MAC] `json:"dst" yaml:"dst" mapstructure:"dst"`
	Src       value.Value[value.MAC] `json:"src" yaml:"src" mapstructure:"src"`
	EtherType value.Value[uint16]    `json:"type" yaml:"type" mapstructure:"type"`
}

func (e *Ether) Type() layer.Type { return TypeEther }

func (e *Ether) Clone() layer.Layer {
	c := *e
	return &c
}

func (e *Ether) Fill(fc *layer.FillContext) layer.Layer {
	return &Ether{
		Dst:       e.Dst.Fill(fc.Rand, constant(value.BroadcastMAC)),
		Src:       e.Src.Fill(fc.Rand, constant(value.ZeroMAC)),
		EtherType: e.EtherType.Fill(fc.Rand, nextKey[uint16](fc, EtherTypes, 0)),
	}
}

func (e *Ether) Encode(ec *layer.EncodeContext) []byte {
	f := e.Fill(ec.Fill()).(*Ether)
	dst, src := f.Dst.Or(value.BroadcastMAC), f.Src.Or(value.ZeroMAC)
	w := codec.NewWriter(nil, 14)
	w.Write(dst[:])
	w.Write(src[:])
	w.Uint16(f.EtherType.Or(0))
	return w.Bytes()
}

func (e *Ether) Decode(buf []byte) (*layer.Stack, int, error) {
	r := codec.NewReader(nil, buf)
	var dst, src value.MAC
	r.Array(dst[:])
	r.Array(src[:])
	etype := r.Uint16()
	if err := r.Err(); err != nil {
		return nil, 0, fmt.Errorf("ether: %w", err)
	}
	head := &Ether{Dst: value.Of(dst), Src: value.Of(src), EtherType: value.Of(etype)}
	inner, n := layer.Chain(Registries(), r.Rest(), layer.Key{Registry: EtherTypes, Value: uint64(etype)})
	return layer.Join(head, inner), r.Offset() + n, nil
}

// Dot1Q is an IEEE 802.1Q (or 802.1ad) VLAN tag.
type Dot1Q struct {
	Prio      value.Value[uint8]  `json:"prio" yaml:"prio" mapstructure:"prio"`
	DEI       value.Value[uint8]  `json:"dei" yaml:"dei" mapstructure:"dei"`
	VLAN      value.Value[uint16] `json:"vlan" yaml:"vlan" mapstructure:"vlan"`
	EtherType value.Value[uint16] `json:"type" yaml:"type" mapstructure:"type"`
}

func (d *Dot1Q) Type() layer.Type { return TypeDot1Q }

func (d *Dot1Q) Clone() layer.Layer {
	c := *d
	return &c
}

func (d *Dot1Q) Fill(fc *layer.FillContext) layer.Layer {
	return &Dot1Q{
		Prio:      d.Prio.Fill(fc.Rand, nil),
		DEI:       d.DEI.Fill(fc.Rand, nil),
		VLAN:      d.VLAN.Fill(fc.Rand, constant[uint16](1)),
		EtherType: d.EtherType.Fill(fc.Rand, nextKey[uint16](fc, EtherTypes, 0)),
	}
}

// TCI packs the tag control information: pcp<<13 | dei<<12 | vlan.
func (d *Dot1Q) TCI() uint16 {
	return uint16(d.Prio.Or(0)&7)<<13 | uint16(d.DEI.Or(0)&1)<<12 | d.VLAN.Or(1)&0xfff
}

func (d *Dot1Q) Encode(ec *layer.EncodeContext) []byte {
	f := d.Fill(ec.Fill()).(*Dot1Q)
	w := codec.NewWriter(nil, 4)
	w.Uint16(f.TCI())
	w.Uint16(f.EtherType.Or(0))
	return w.Bytes()
}

func (d *Dot1Q) Decode(buf []byte) (*layer.Stack, int, error) {
	r := codec.NewReader(nil, buf)
	tci := r.Uint16()
	etype := r.Uint16()
	if err := r.Err(); err != nil {
		return nil, 0, fmt.Errorf("dot1q: %w", err)
	}
	head := &Dot1Q{
		Prio:      value.Of(uint8(tci >> 13)),
		DEI:       value.Of(uint8(tci>>12) & 1),
		VLAN:      value.Of(tci & 0xfff),
		EtherType: value.Of(etype),
	}
	inner, n := layer.Chain(Registries(), r.Rest(), layer.Key{Registry: EtherTypes, Value: uint64(etype)})
	return layer.Join(head, inner), r.Offset() + n, nil
}
