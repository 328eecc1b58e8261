package protocols

import (
	"fmt"
	"strconv"
	"strings"

	"firestige.xyz/pktcraft/pkg/codec"
	"firestige.xyz/pktcraft/pkg/layer"
	"firestige.xyz/pktcraft/pkg/value"
)

const TypeERSPAN layer.Type = "ERSPAN"

// ERSPANVersion is the 4-bit version field of an ERSPAN header.
type ERSPANVersion uint8

const (
	ERSPANType1 ERSPANVersion = 0
	ERSPANType2 ERSPANVersion = 1
	ERSPANType3 ERSPANVersion = 2
)

func (v ERSPANVersion) String() string {
	switch v {
	case ERSPANType1:
		return "Type1"
	case ERSPANType2:
		return "Type2"
	case ERSPANType3:
		return "Type3"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(v))
	}
}

func (v ERSPANVersion) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

// UnmarshalText accepts Type1, Type2, Type3 or a number.
func (v *ERSPANVersion) UnmarshalText(text []byte) error {
	s := string(text)
	for _, known := range []ERSPANVersion{ERSPANType1, ERSPANType2, ERSPANType3} {
		if strings.EqualFold(s, known.String()) {
			*v = known
			return nil
		}
	}
	n, err := strconv.ParseUint(s, 0, 4)
	if err != nil {
		return fmt.Errorf("%w: erspan version %q", value.ErrInvalidLiteral, s)
	}
	*v = ERSPANVersion(n)
	return nil
}

func (v *ERSPANVersion) Randomize(r value.Rand) { *v = ERSPANVersion(r.Uint64() & 0xf) }

// ERSPAN is the ERSPAN type II header. The mirrored frame follows and is
// decoded as Ethernet.
type ERSPAN struct {
	Version   value.Value[ERSPANVersion] `json:"version" yaml:"version" mapstructure:"version"`
	VLAN      value.Value[uint16]        `json:"vlan" yaml:"vlan" mapstructure:"vlan"`
	COS       value.Value[uint8]         `json:"cos" yaml:"cos" mapstructure:"cos"`
	EncapType value.Value[uint8]         `json:"encap_type" yaml:"encap_type" mapstructure:"encap_type"`
	Truncated value.Value[bool]          `json:"truncated" yaml:"truncated" mapstructure:"truncated"`
	SessionID value.Value[uint16]        `json:"session_id" yaml:"session_id" mapstructure:"session_id"`
	Reserved  value.Value[uint16]        `json:"reserved" yaml:"reserved" mapstructure:"reserved"`
	PortIndex value.Value[uint32]        `json:"port_index" yaml:"port_index" mapstructure:"port_index"`
}

func (e *ERSPAN) Type() layer.Type { return TypeERSPAN }

func (e *ERSPAN) Clone() layer.Layer {
	c := *e
	return &c
}

func (e *ERSPAN) Fill(fc *layer.FillContext) layer.Layer {
	return &ERSPAN{
		Version:   e.Version.Fill(fc.Rand, constant(ERSPANType2)),
		VLAN:      e.VLAN.Fill(fc.Rand, nil),
		COS:       e.COS.Fill(fc.Rand, nil),
		EncapType: e.EncapType.Fill(fc.Rand, nil),
		Truncated: e.Truncated.Fill(fc.Rand, nil),
		SessionID: e.SessionID.Fill(fc.Rand, nil),
		Reserved:  e.Reserved.Fill(fc.Rand, nil),
		PortIndex: e.PortIndex.Fill(fc.Rand, nil),
	}
}

func (e *ERSPAN) Encode(ec *layer.EncodeContext) []byte {
	f := e.Fill(ec.Fill()).(*ERSPAN)
	w := codec.NewWriter(nil, 8)
	w.Uint16(uint16(f.Version.Or(ERSPANType2)&0xf)<<12 | f.VLAN.Or(0)&0xfff)
	w.Uint16(uint16(f.COS.Or(0)&7)<<13 |
		uint16(f.EncapType.Or(0)&3)<<11 |
		boolBit(f.Truncated.Or(false))<<10 |
		f.SessionID.Or(0)&0x3ff)
	w.Uint32(uint32(f.Reserved.Or(0)&0xfff)<<20 | f.PortIndex.Or(0)&0xfffff)
	return w.Bytes()
}

func (e *ERSPAN) Decode(buf []byte) (*layer.Stack, int, error) {
	r := codec.NewReader(nil, buf)
	verVLAN, session, index := r.Uint16(), r.Uint16(), r.Uint32()
	if err := r.Err(); err != nil {
		return nil, 0, fmt.Errorf("erspan: %w", err)
	}
	head := &ERSPAN{
		Version:   value.Of(ERSPANVersion(verVLAN >> 12)),
		VLAN:      value.Of(verVLAN & 0xfff),
		COS:       value.Of(uint8(session >> 13)),
		EncapType: value.Of(uint8(session>>11) & 3),
		Truncated: value.Of(session>>10&1 == 1),
		SessionID: value.Of(session & 0x3ff),
		Reserved:  value.Of(uint16(index >> 20)),
		PortIndex: value.Of(index & 0xfffff),
	}
	inner, n := layer.DecodeAs(&Ether{}, r.Rest())
	return layer.Join(head, inner), r.Offset() + n, nil
}
