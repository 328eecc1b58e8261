// Package pcapio streams capture files through gopacket's pure Go pcap
// reader and writer.
package pcapio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/pktcraft/internal/log"
	"firestige.xyz/pktcraft/pkg/layer"
	"firestige.xyz/pktcraft/pkg/protocols"
)

// Reader reads packets from a pcap file.
type Reader struct {
	r      *pcapgo.Reader
	closer io.Closer
}

// Open opens the capture file at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pcap file %s: %w", path, err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to open pcap file %s: %w", path, err)
	}
	r.closer = f
	return r, nil
}

// NewReader reads a capture from r, which must be positioned at the file
// header.
func NewReader(r io.Reader) (*Reader, error) {
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, err
	}
	return &Reader{r: pr}, nil
}

// ReadPacket returns the next record. It returns io.EOF after the last one.
func (r *Reader) ReadPacket() ([]byte, gopacket.CaptureInfo, error) {
	data, ci, err := r.r.ReadPacketData()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, gopacket.CaptureInfo{}, io.EOF
		}
		return nil, gopacket.CaptureInfo{}, fmt.Errorf("failed to read packet: %w", err)
	}
	return data, ci, nil
}

// LinkType returns the link type from the file header.
func (r *Reader) LinkType() uint32 {
	return uint32(r.r.LinkType())
}

func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// Packet is one decoded record.
type Packet struct {
	Index int
	Info  gopacket.CaptureInfo
	Stack *layer.Stack
	// Err is set when the first layer did not fit; Stack is then a single
	// Raw layer. A link type without a decoder gives a Raw stack and no Err.
	Err error
}

// Decode decodes every remaining record and hands it to fn. Records are
// decoded starting with a fresh layer from start, or by the file's link type
// when start is nil. It stops at the end of the file, at the first error
// from fn, or when ctx is done.
func (r *Reader) Decode(ctx context.Context, start func() layer.Layer, fn func(Packet) error) error {
	logger := log.GetLogger()
	linktype := r.LinkType()
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, ci, err := r.ReadPacket()
		if err == io.EOF {
			logger.WithField("packets", i).Debug("capture file decoded")
			return nil
		}
		if err != nil {
			return err
		}

		var first layer.Layer
		if start != nil {
			first = start()
		} else {
			first = protocols.LinkLayer(linktype)
		}

		p := Packet{Index: i, Info: ci}
		if first == nil {
			p.Stack = layer.Of(layer.NewRaw(data))
		} else if s, _, derr := layer.Decode(data, first); derr != nil {
			logger.WithField("index", i).WithError(derr).Debug("keeping packet raw")
			p.Stack, p.Err = layer.Of(layer.NewRaw(data)), derr
		} else {
			p.Stack = s
		}
		if err := fn(p); err != nil {
			return err
		}
	}
}
