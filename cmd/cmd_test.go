package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/pktcraft/internal/config"
)

const dnsStack = "ip(id=1)/udp(sport=53, dport=53)"

// dnsHex is dnsStack encoded with default addresses and ttl.
const dnsHex = "4500001c00010000" + "40117cce" + "7f0000017f000001" + "0035003500080172"

func TestRunCraftHex(t *testing.T) {
	var buf bytes.Buffer
	err := runCraft(craftOptions{
		Stacks: []string{dnsStack},
		Output: config.OutputHex,
		Count:  2,
	}, &buf)
	require.NoError(t, err)

	assert.Equal(t, dnsHex+"\n"+dnsHex+"\n", buf.String())
}

func TestRunCraftSeeded(t *testing.T) {
	craft := func() string {
		var buf bytes.Buffer
		err := runCraft(craftOptions{
			Stacks: []string{"ip(id=random, ttl=random)/tcp(sport=random)"},
			Output: config.OutputHex,
			Seed:   7,
			Count:  3,
		}, &buf)
		require.NoError(t, err)
		return buf.String()
	}

	first := craft()
	assert.Equal(t, first, craft())

	lines := strings.Split(strings.TrimSpace(first), "\n")
	require.Len(t, lines, 3)
	assert.NotEqual(t, lines[0], lines[1], "random fields are drawn per packet")
}

func TestRunCraftErrors(t *testing.T) {
	tests := []struct {
		name string
		opts craftOptions
		want string
	}{
		{"no stack", craftOptions{Output: config.OutputHex}, "no stack given"},
		{"bad stack", craftOptions{Stacks: []string{"ip(ttl"}, Output: config.OutputHex}, "syntax"},
		{"pcap without file", craftOptions{Stacks: []string{dnsStack}, Output: config.OutputPcap}, "use -w"},
		{"bad format", craftOptions{Stacks: []string{dnsStack}, Output: "xml"}, "unsupported output format"},
		{"stack and batch", craftOptions{Stacks: []string{dnsStack}, BatchFile: "b.yaml", Output: config.OutputHex}, "cannot be combined"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := runCraft(tt.opts, &buf)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCraftThenDecode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dns.pcap")

	var buf bytes.Buffer
	err := runCraft(craftOptions{
		Stacks:   []string{dnsStack},
		Output:   config.OutputPcap,
		Write:    path,
		Count:    2,
		LinkType: 101,
		SnapLen:  65535,
	}, &buf)
	require.NoError(t, err)
	assert.Equal(t, "wrote 2 packets to "+path+"\n", buf.String())

	buf.Reset()
	err = runDecode(context.Background(), decodeOptions{File: path, Output: config.OutputText}, &buf)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "0 "))
	assert.True(t, strings.HasSuffix(lines[0], " 28 IP / UDP"), lines[0])
}

func TestCraftBatchThenDecodeJSON(t *testing.T) {
	dir := t.TempDir()
	batch := filepath.Join(dir, "batch.yaml")
	out := filepath.Join(dir, "out.pcap")
	require.NoError(t, os.WriteFile(batch, []byte(`
id: smoke
seed: 3
start: 2024-01-02T03:04:05Z
interval: 1s
packets:
  - stack: 'ether()/ip(dst=10.0.0.1)/udp(dport=4789)/vxlan(vni=42)/ether()/ip()/icmp()'
  - stack: 'ether()/ip()/tcp(dport=80)/"GET /"'
    count: 2
`), 0o644))

	var buf bytes.Buffer
	err := runCraft(craftOptions{BatchFile: batch, Output: config.OutputPcap, Write: out}, &buf)
	require.NoError(t, err)

	buf.Reset()
	err = runDecode(context.Background(), decodeOptions{File: out, Output: config.OutputJSON}, &buf)
	require.NoError(t, err)

	type decoded struct {
		Index  int    `json:"index"`
		Time   string `json:"time"`
		Layers []struct {
			Layer string `json:"layer"`
		} `json:"layers"`
	}
	var got []decoded
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var p decoded
		require.NoError(t, dec.Decode(&p))
		got = append(got, p)
	}
	require.Len(t, got, 3)
	assert.Equal(t, "2024-01-02T03:04:05Z", got[0].Time)
	assert.Equal(t, "2024-01-02T03:04:07Z", got[2].Time)

	var names []string
	for _, l := range got[0].Layers {
		names = append(names, l.Layer)
	}
	require.GreaterOrEqual(t, len(names), 6)
	assert.Equal(t, []string{"Ether", "IP", "UDP", "VXLAN", "Ether", "IP"}, names[:6])

	// Decoded payload bytes come back as Raw.
	last := got[1].Layers[len(got[1].Layers)-1]
	assert.Equal(t, "Raw", last.Layer)
}

func TestRunDecodeStartLayer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.pcap")
	var buf bytes.Buffer
	require.NoError(t, runCraft(craftOptions{
		Stacks: []string{dnsStack},
		Output: config.OutputPcap,
		Write:  path,
		Count:  1,
	}, &buf))

	// Written with the Ethernet link type, read back as IP.
	buf.Reset()
	err := runDecode(context.Background(), decodeOptions{File: path, Start: "IP", Output: config.OutputYAML}, &buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "layer: IP")
	assert.Contains(t, buf.String(), "layer: UDP")

	buf.Reset()
	err = runDecode(context.Background(), decodeOptions{File: path, Start: "pcapfile", Output: config.OutputText}, &buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "PcapFile")

	err = runDecode(context.Background(), decodeOptions{File: path, Start: "ipx", Output: config.OutputText}, &buf)
	assert.Error(t, err)
}

func TestRunDecodeMissingFile(t *testing.T) {
	var buf bytes.Buffer
	err := runDecode(context.Background(), decodeOptions{File: "/nonexistent/x.pcap", Output: config.OutputText}, &buf)
	assert.Error(t, err)
}

func TestRunRegistry(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runRegistry([]string{"ethertype"}, false, config.OutputText, &buf))
	assert.Contains(t, buf.String(), "ethertype\n")
	assert.Contains(t, buf.String(), "  0x0800  IP\n")
	assert.Contains(t, buf.String(), "  0x0806  ARP\n")

	buf.Reset()
	require.NoError(t, runRegistry([]string{"udp-dport"}, false, config.OutputJSON, &buf))
	var entries []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entries))
	assert.Contains(t, entries, map[string]interface{}{"registry": "udp-dport", "key": float64(4789), "type": "VXLAN"})

	buf.Reset()
	require.NoError(t, runRegistry(nil, true, config.OutputText, &buf))
	assert.Contains(t, buf.String(), "vxlan\n")

	assert.Error(t, runRegistry([]string{"nope"}, false, config.OutputText, &buf))
}
