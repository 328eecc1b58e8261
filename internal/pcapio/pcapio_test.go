package pcapio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/pktcraft/pkg/layer"
	"firestige.xyz/pktcraft/pkg/protocols"
	"firestige.xyz/pktcraft/pkg/value"
)

func udpFrame() *layer.Stack {
	return layer.Of(&protocols.Ether{}, &protocols.IP{ID: value.Of[uint16](1)},
		&protocols.UDP{DPort: value.Of[uint16](9)}, &layer.Payload{Text: "hello"})
}

func TestWriteAndDecodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pcap")
	w, err := Create(path, 65535, protocols.LinkTypeEthernet)
	require.NoError(t, err)
	ts := time.Unix(1700000000, 5000)
	require.NoError(t, w.WriteStack(ts, udpFrame()))
	require.NoError(t, w.WriteStack(ts.Add(time.Millisecond), layer.Of(&protocols.Ether{}, &protocols.ARP{})))
	assert.Equal(t, 2, w.Count())
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, protocols.LinkTypeEthernet, r.LinkType())

	var got []Packet
	require.NoError(t, r.Decode(context.Background(), nil, func(p Packet) error {
		got = append(got, p)
		return nil
	}))
	require.Len(t, got, 2)
	assert.Equal(t, "Ether / IP / UDP / Raw", got[0].Stack.String())
	assert.Equal(t, ts.UnixMicro(), got[0].Info.Timestamp.UnixMicro())
	assert.Equal(t, "Ether / ARP", got[1].Stack.String())
	assert.Equal(t, 1, got[1].Index)
}

func TestDecodeWithStartLayer(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, 65535, protocols.LinkTypeRaw)
	require.NoError(t, err)
	require.NoError(t, w.WriteStack(time.Unix(1, 0), layer.Of(&protocols.IP{}, &protocols.ICMP{}, &protocols.ICMPEcho{})))
	require.NoError(t, w.WritePacket(time.Unix(2, 0), []byte{0x45}))

	r, err := NewReader(&buf)
	require.NoError(t, err)
	var got []Packet
	start := func() layer.Layer { return &protocols.IP{} }
	require.NoError(t, r.Decode(context.Background(), start, func(p Packet) error {
		got = append(got, p)
		return nil
	}))
	require.Len(t, got, 2)
	assert.Equal(t, "IP / ICMP / ICMPEcho", got[0].Stack.String())
	assert.ErrorIs(t, got[1].Err, layer.ErrShortBuffer)
	assert.Equal(t, "Raw", got[1].Stack.String())
}

func TestDecodeByLinkTypeReportsShortRecord(t *testing.T) {
	tests := []struct {
		name     string
		linktype uint32
		wantErr  bool
	}{
		{"ethernet", protocols.LinkTypeEthernet, true},
		{"raw ip", protocols.LinkTypeRaw, true},
		{"no decoder", 147, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewWriter(&buf, 65535, tt.linktype)
			require.NoError(t, err)
			require.NoError(t, w.WritePacket(time.Unix(1, 0), []byte{0x45, 0x00, 0x00}))

			r, err := NewReader(&buf)
			require.NoError(t, err)
			var got []Packet
			require.NoError(t, r.Decode(context.Background(), nil, func(p Packet) error {
				got = append(got, p)
				return nil
			}))
			require.Len(t, got, 1)
			assert.Equal(t, "Raw", got[0].Stack.String())
			if tt.wantErr {
				assert.ErrorIs(t, got[0].Err, layer.ErrShortBuffer)
			} else {
				assert.NoError(t, got[0].Err)
			}
		})
	}
}

func TestSnapLenCutsData(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, 20, protocols.LinkTypeEthernet)
	require.NoError(t, err)
	require.NoError(t, w.WriteStack(time.Unix(0, 0), udpFrame()))

	r, err := NewReader(&buf)
	require.NoError(t, err)
	data, ci, err := r.ReadPacket()
	require.NoError(t, err)
	assert.Len(t, data, 20)
	assert.Equal(t, len(udpFrame().Encode()), ci.Length)

	_, _, err = r.ReadPacket()
	assert.Equal(t, io.EOF, err)
}

func TestDecodeStopsOnCallbackError(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, 65535, protocols.LinkTypeEthernet)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, w.WriteStack(time.Unix(int64(i), 0), udpFrame()))
	}

	r, err := NewReader(&buf)
	require.NoError(t, err)
	stop := errors.New("stop")
	n := 0
	err = r.Decode(context.Background(), nil, func(Packet) error {
		n++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, n)
}

func TestDecodeHonoursContext(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, 65535, protocols.LinkTypeEthernet)
	require.NoError(t, err)
	require.NoError(t, w.WriteStack(time.Unix(0, 0), udpFrame()))

	r, err := NewReader(&buf)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = r.Decode(ctx, nil, func(Packet) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.pcap"))
	assert.Error(t, err)
}
