package protocols

import (
	"errors"
	"fmt"

	"firestige.xyz/pktcraft/pkg/codec"
	"firestige.xyz/pktcraft/pkg/layer"
	"firestige.xyz/pktcraft/pkg/value"
)

const (
	TypePcapFile   layer.Type = "PcapFile"
	TypePcapPacket layer.Type = "PcapPacket"
)

// Magic numbers as read big-endian from the first four bytes of a file.
const (
	PcapMagicBig        uint32 = 0xa1b2c3d4
	PcapMagicLittle     uint32 = 0xd4c3b2a1
	PcapMagicNanoBig    uint32 = 0xa1b23c4d
	PcapMagicNanoLittle uint32 = 0x4d3cb2a1
)

// Link types understood by PcapPacket.Stack.
const (
	LinkTypeEthernet uint32 = 1
	LinkTypeRaw      uint32 = 101
	LinkTypeIPv4     uint32 = 228
)

const (
	pcapHeaderLen = 24
	pcapRecordLen = 16
)

var ErrBadMagic = errors.New("protocols: unknown pcap magic number")

// pcapCodec returns the byte order selected by magic and whether
// timestamps are in nanoseconds.
func pcapCodec(magic uint32) (codec.Codec, bool, error) {
	switch magic {
	case PcapMagicBig:
		return codec.BigEndian, false, nil
	case PcapMagicLittle:
		return codec.LittleEndian, false, nil
	case PcapMagicNanoBig:
		return codec.BigEndian, true, nil
	case PcapMagicNanoLittle:
		return codec.LittleEndian, true, nil
	default:
		return nil, false, fmt.Errorf("%w: %#08x", ErrBadMagic, magic)
	}
}

// PcapFile is a libpcap capture file: the global header followed by its
// packet records. The magic number selects the byte order of every other
// field; it defaults to little-endian microsecond timestamps.
type PcapFile struct {
	Magic        value.Value[uint32] `json:"magic" yaml:"magic" mapstructure:"magic"`
	VersionMajor value.Value[uint16] `json:"version_major" yaml:"version_major" mapstructure:"version_major"`
	VersionMinor value.Value[uint16] `json:"version_minor" yaml:"version_minor" mapstructure:"version_minor"`
	ThisZone     value.Value[int32]  `json:"thiszone" yaml:"thiszone" mapstructure:"thiszone"`
	SigFigs      value.Value[uint32] `json:"sigfigs" yaml:"sigfigs" mapstructure:"sigfigs"`
	SnapLen      value.Value[uint32] `json:"snaplen" yaml:"snaplen" mapstructure:"snaplen"`
	LinkType     value.Value[uint32] `json:"linktype" yaml:"linktype" mapstructure:"linktype"`
	Packets      []*PcapPacket       `json:"packets" yaml:"packets" mapstructure:"-"`
}

func (p *PcapFile) Type() layer.Type { return TypePcapFile }

func (p *PcapFile) Clone() layer.Layer {
	c := *p
	c.Packets = make([]*PcapPacket, len(p.Packets))
	for i, pkt := range p.Packets {
		c.Packets[i] = pkt.Clone().(*PcapPacket)
	}
	return &c
}

func (p *PcapFile) Fill(fc *layer.FillContext) layer.Layer {
	f := &PcapFile{
		Magic:        p.Magic.Fill(fc.Rand, constant(PcapMagicLittle)),
		VersionMajor: p.VersionMajor.Fill(fc.Rand, constant[uint16](2)),
		VersionMinor: p.VersionMinor.Fill(fc.Rand, constant[uint16](4)),
		ThisZone:     p.ThisZone.Fill(fc.Rand, nil),
		SigFigs:      p.SigFigs.Fill(fc.Rand, nil),
		SnapLen:      p.SnapLen.Fill(fc.Rand, constant[uint32](65535)),
		LinkType:     p.LinkType.Fill(fc.Rand, constant(LinkTypeEthernet)),
		Packets:      make([]*PcapPacket, len(p.Packets)),
	}
	c := f.codec()
	for i, pkt := range p.Packets {
		filled := layer.Of(pkt).FillWith(fc.Rand).At(0).(*PcapPacket)
		filled.order = c
		f.Packets[i] = filled
	}
	return f
}

// codec returns the byte order of the file, little-endian for an unknown
// magic number.
func (p *PcapFile) codec() codec.Codec {
	c, _, err := pcapCodec(p.Magic.Or(PcapMagicLittle))
	if err != nil {
		return codec.LittleEndian
	}
	return c
}

// Nanosecond reports whether record timestamps hold nanoseconds.
func (p *PcapFile) Nanosecond() bool {
	_, ns, _ := pcapCodec(p.Magic.Or(PcapMagicLittle))
	return ns
}

func (p *PcapFile) Encode(ec *layer.EncodeContext) []byte {
	f := p.Fill(ec.Fill()).(*PcapFile)
	c := f.codec()
	w := codec.NewWriter(c, pcapHeaderLen)
	w.Write(codec.BigEndian.AppendUint32(nil, f.Magic.Or(PcapMagicLittle)))
	w.Uint16(f.VersionMajor.Or(2))
	w.Uint16(f.VersionMinor.Or(4))
	w.Uint32(uint32(f.ThisZone.Or(0)))
	w.Uint32(f.SigFigs.Or(0))
	w.Uint32(f.SnapLen.Or(65535))
	w.Uint32(f.LinkType.Or(LinkTypeEthernet))
	for _, pkt := range f.Packets {
		w.Write(layer.Of(pkt).EncodeWith(ec.Rand))
	}
	return w.Bytes()
}

// Decode reads the global header and every complete record after it. A
// truncated last record is left undecoded.
func (p *PcapFile) Decode(buf []byte) (*layer.Stack, int, error) {
	magic, _, ok := codec.BigEndian.Uint32(buf)
	if !ok {
		return nil, 0, fmt.Errorf("pcap: %w", codec.ErrShortBuffer)
	}
	c, _, err := pcapCodec(magic)
	if err != nil {
		return nil, 0, err
	}
	r := codec.NewReader(c, buf)
	r.Skip(4)
	head := &PcapFile{
		Magic:        value.Of(magic),
		VersionMajor: value.Of(r.Uint16()),
		VersionMinor: value.Of(r.Uint16()),
		ThisZone:     value.Of(int32(r.Uint32())),
		SigFigs:      value.Of(r.Uint32()),
		SnapLen:      value.Of(r.Uint32()),
		LinkType:     value.Of(r.Uint32()),
	}
	if err := r.Err(); err != nil {
		return nil, 0, fmt.Errorf("pcap: %w", err)
	}
	consumed := r.Offset()
	for consumed < len(buf) {
		s, n, err := (&PcapPacket{order: c}).Decode(buf[consumed:])
		if err != nil {
			break
		}
		head.Packets = append(head.Packets, s.At(0).(*PcapPacket))
		consumed += n
	}
	return layer.Of(head), consumed, nil
}

// PcapPacket is one capture record. It is not greedy: the record length
// delimits it, not the data after it.
type PcapPacket struct {
	TsSec   value.Value[uint32] `json:"ts_sec" yaml:"ts_sec" mapstructure:"ts_sec"`
	TsUsec  value.Value[uint32] `json:"ts_usec" yaml:"ts_usec" mapstructure:"ts_usec"`
	InclLen value.Value[uint32] `json:"incl_len" yaml:"incl_len" mapstructure:"incl_len"`
	OrigLen value.Value[uint32] `json:"orig_len" yaml:"orig_len" mapstructure:"orig_len"`
	Data    []byte              `json:"data" yaml:"data" mapstructure:"data"`

	order codec.Codec
}

func (p *PcapPacket) Type() layer.Type { return TypePcapPacket }

func (p *PcapPacket) Greedy() bool { return false }

func (p *PcapPacket) Clone() layer.Layer {
	c := *p
	c.Data = append([]byte(nil), p.Data...)
	return &c
}

func (p *PcapPacket) codec() codec.Codec {
	if p.order == nil {
		return codec.LittleEndian
	}
	return p.order
}

func (p *PcapPacket) Fill(fc *layer.FillContext) layer.Layer {
	return &PcapPacket{
		TsSec:   p.TsSec.Fill(fc.Rand, nil),
		TsUsec:  p.TsUsec.Fill(fc.Rand, nil),
		InclLen: p.InclLen.Pin(fc.Rand),
		OrigLen: p.OrigLen.Pin(fc.Rand),
		Data:    append([]byte(nil), p.Data...),
		order:   p.order,
	}
}

func (p *PcapPacket) Encode(ec *layer.EncodeContext) []byte {
	f := p.Fill(ec.Fill()).(*PcapPacket)
	w := codec.NewWriter(p.codec(), pcapRecordLen+len(f.Data))
	w.Uint32(f.TsSec.Or(0))
	w.Uint32(f.TsUsec.Or(0))
	w.Uint32(f.InclLen.Or(uint32(len(f.Data))))
	w.Uint32(f.OrigLen.Or(uint32(len(f.Data))))
	w.Write(f.Data)
	return w.Bytes()
}

func (p *PcapPacket) Decode(buf []byte) (*layer.Stack, int, error) {
	r := codec.NewReader(p.codec(), buf)
	pkt := &PcapPacket{
		TsSec:  value.Of(r.Uint32()),
		TsUsec: value.Of(r.Uint32()),
		order:  p.order,
	}
	incl := r.Uint32()
	pkt.InclLen = value.Of(incl)
	pkt.OrigLen = value.Of(r.Uint32())
	pkt.Data = r.Bytes(int(incl))
	if err := r.Err(); err != nil {
		return nil, 0, fmt.Errorf("pcap record: %w", err)
	}
	return layer.Of(pkt), r.Offset(), nil
}

// LinkLayer returns a fresh first layer for a capture link type, or nil when
// the link type has no decoder.
func LinkLayer(linktype uint32) layer.Layer {
	switch linktype {
	case LinkTypeEthernet:
		return &Ether{}
	case LinkTypeRaw, LinkTypeIPv4:
		return &IP{}
	default:
		return nil
	}
}

// Stack decodes the record data according to the file's link type. Data
// that cannot be decoded is returned as a single Raw layer.
func (p *PcapPacket) Stack(linktype uint32) *layer.Stack {
	start := LinkLayer(linktype)
	if start == nil {
		return layer.Of(layer.NewRaw(p.Data))
	}
	s, _, err := layer.Decode(p.Data, start)
	if err != nil {
		return layer.Of(layer.NewRaw(p.Data))
	}
	return s
}

// NewPcapPacket wraps the encoded bytes of s in a record.
func NewPcapPacket(s *layer.Stack, sec, usec uint32) *PcapPacket {
	return &PcapPacket{TsSec: value.Of(sec), TsUsec: value.Of(usec), Data: s.Encode()}
}
