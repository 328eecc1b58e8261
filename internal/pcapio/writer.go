package pcapio

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/pktcraft/pkg/layer"
)

// Writer writes packets to a pcap file with microsecond timestamps.
type Writer struct {
	w       *pcapgo.Writer
	snaplen uint32
	closer  io.Closer
	count   int
}

// Create creates or truncates the capture file at path and writes its
// header.
func Create(path string, snaplen, linktype uint32) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create pcap file %s: %w", path, err)
	}
	w, err := NewWriter(f, snaplen, linktype)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// NewWriter writes a file header to w and returns a Writer appending
// records after it.
func NewWriter(w io.Writer, snaplen, linktype uint32) (*Writer, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snaplen, layers.LinkType(linktype)); err != nil {
		return nil, fmt.Errorf("failed to write pcap header: %w", err)
	}
	return &Writer{w: pw, snaplen: snaplen}, nil
}

// WritePacket writes one record. Data longer than the snap length is cut,
// and the original length is kept in the record header.
func (w *Writer) WritePacket(ts time.Time, data []byte) error {
	ci := gopacket.CaptureInfo{Timestamp: ts, Length: len(data), CaptureLength: len(data)}
	if w.snaplen > 0 && uint32(len(data)) > w.snaplen {
		data = data[:w.snaplen]
		ci.CaptureLength = len(data)
	}
	if err := w.w.WritePacket(ci, data); err != nil {
		return fmt.Errorf("failed to write packet %d: %w", w.count, err)
	}
	w.count++
	return nil
}

// WriteStack encodes s and writes it as one record.
func (w *Writer) WriteStack(ts time.Time, s *layer.Stack) error {
	return w.WritePacket(ts, s.Encode())
}

// Count returns the number of records written.
func (w *Writer) Count() int { return w.count }

func (w *Writer) Close() error {
	if w.closer == nil {
		return nil
	}
	err := w.closer.Close()
	w.closer = nil
	return err
}
