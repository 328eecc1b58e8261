package protocols

import (
	"fmt"

	"firestige.xyz/pktcraft/pkg/checksum"
	"firestige.xyz/pktcraft/pkg/codec"
	"firestige.xyz/pktcraft/pkg/layer"
	"firestige.xyz/pktcraft/pkg/value"
)

const (
	TypeICMP          layer.Type = "ICMP"
	TypeICMPEcho      layer.Type = "ICMPEcho"
	TypeICMPEchoReply layer.Type = "ICMPEchoReply"
)

const (
	ICMPEchoReplyType   = 0
	ICMPEchoRequestType = 8
)

// ICMP is the common ICMP header. The message body is the next layer,
// selected by Type. Chksum covers the header and everything after it.
type ICMP struct {
	ICMPType value.Value[uint8]  `json:"type" yaml:"type" mapstructure:"type"`
	Code     value.Value[uint8]  `json:"code" yaml:"code" mapstructure:"code"`
	Chksum   value.Value[uint16] `json:"chksum" yaml:"chksum" mapstructure:"chksum"`
}

func (i *ICMP) Type() layer.Type { return TypeICMP }

func (i *ICMP) Clone() layer.Layer {
	c := *i
	return &c
}

func (i *ICMP) Fill(fc *layer.FillContext) layer.Layer {
	return &ICMP{
		ICMPType: i.ICMPType.Fill(fc.Rand, nextKey[uint8](fc, ICMPTypes, ICMPEchoRequestType)),
		Code:     i.Code.Fill(fc.Rand, nil),
		Chksum:   i.Chksum.Pin(fc.Rand),
	}
}

func (i *ICMP) Encode(ec *layer.EncodeContext) []byte {
	f := i.Fill(ec.Fill()).(*ICMP)
	w := codec.NewWriter(nil, 4)
	w.Uint8(f.ICMPType.Or(ICMPEchoRequestType))
	w.Uint8(f.Code.Or(0))
	w.Uint16(f.Chksum.Or(0))
	hdr := w.Bytes()
	if f.Chksum.IsAuto() {
		c := checksum.Fold(checksum.Update(checksum.Sum(hdr), ec.Inner()))
		hdr[2], hdr[3] = byte(c>>8), byte(c)
	}
	return hdr
}

func (i *ICMP) Decode(buf []byte) (*layer.Stack, int, error) {
	r := codec.NewReader(nil, buf)
	typ := r.Uint8()
	head := &ICMP{
		ICMPType: value.Of(typ),
		Code:     value.Of(r.Uint8()),
		Chksum:   value.Of(r.Uint16()),
	}
	if err := r.Err(); err != nil {
		return nil, 0, fmt.Errorf("icmp: %w", err)
	}
	inner, n := layer.Chain(Registries(), r.Rest(), layer.Key{Registry: ICMPTypes, Value: uint64(typ)})
	return layer.Join(head, inner), r.Offset() + n, nil
}

// ICMPEcho is the body of an echo request.
type ICMPEcho struct {
	ID  value.Value[uint16] `json:"id" yaml:"id" mapstructure:"id"`
	Seq value.Value[uint16] `json:"seq" yaml:"seq" mapstructure:"seq"`
}

func (e *ICMPEcho) Type() layer.Type { return TypeICMPEcho }

func (e *ICMPEcho) Clone() layer.Layer {
	c := *e
	return &c
}

func (e *ICMPEcho) Fill(fc *layer.FillContext) layer.Layer {
	return &ICMPEcho{ID: e.ID.Fill(fc.Rand, nil), Seq: e.Seq.Fill(fc.Rand, nil)}
}

func (e *ICMPEcho) Encode(ec *layer.EncodeContext) []byte {
	f := e.Fill(ec.Fill()).(*ICMPEcho)
	return encodeEcho(f.ID, f.Seq)
}

func (e *ICMPEcho) Decode(buf []byte) (*layer.Stack, int, error) {
	id, seq, err := decodeEcho(buf)
	if err != nil {
		return nil, 0, err
	}
	inner, n := layer.DecodeAs(&layer.Raw{}, buf[4:])
	return layer.Join(&ICMPEcho{ID: id, Seq: seq}, inner), 4 + n, nil
}

// ICMPEchoReply is the body of an echo reply.
type ICMPEchoReply struct {
	ID  value.Value[uint16] `json:"id" yaml:"id" mapstructure:"id"`
	Seq value.Value[uint16] `json:"seq" yaml:"seq" mapstructure:"seq"`
}

func (e *ICMPEchoReply) Type() layer.Type { return TypeICMPEchoReply }

func (e *ICMPEchoReply) Clone() layer.Layer {
	c := *e
	return &c
}

func (e *ICMPEchoReply) Fill(fc *layer.FillContext) layer.Layer {
	return &ICMPEchoReply{ID: e.ID.Fill(fc.Rand, nil), Seq: e.Seq.Fill(fc.Rand, nil)}
}

func (e *ICMPEchoReply) Encode(ec *layer.EncodeContext) []byte {
	f := e.Fill(ec.Fill()).(*ICMPEchoReply)
	return encodeEcho(f.ID, f.Seq)
}

func (e *ICMPEchoReply) Decode(buf []byte) (*layer.Stack, int, error) {
	id, seq, err := decodeEcho(buf)
	if err != nil {
		return nil, 0, err
	}
	inner, n := layer.DecodeAs(&layer.Raw{}, buf[4:])
	return layer.Join(&ICMPEchoReply{ID: id, Seq: seq}, inner), 4 + n, nil
}

func encodeEcho(id, seq value.Value[uint16]) []byte {
	w := codec.NewWriter(nil, 4)
	w.Uint16(id.Or(0))
	w.Uint16(seq.Or(0))
	return w.Bytes()
}

func decodeEcho(buf []byte) (id, seq value.Value[uint16], err error) {
	r := codec.NewReader(nil, buf)
	id, seq = value.Of(r.Uint16()), value.Of(r.Uint16())
	if err = r.Err(); err != nil {
		err = fmt.Errorf("icmp echo: %w", err)
	}
	return id, seq, err
}
