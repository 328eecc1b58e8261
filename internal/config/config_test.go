package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"firestige.xyz/pktcraft/pkg/protocols"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
pktcraft:
  log:
    level: "debug"
    format: "json"
  decode:
    start: "ip"
    output: "yaml"
  craft:
    seed: 42
    output: "pcap"
    linktype: 101
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Expected log format json, got %s", cfg.Log.Format)
	}
	if cfg.Decode.Start != "ip" || cfg.Decode.Output != OutputYAML {
		t.Errorf("Unexpected decode section: %+v", cfg.Decode)
	}
	if cfg.Craft.Seed != 42 || cfg.Craft.Output != OutputPcap || cfg.Craft.LinkType != 101 {
		t.Errorf("Unexpected craft section: %+v", cfg.Craft)
	}
	if cfg.Craft.SnapLen != 65535 {
		t.Errorf("Expected default snaplen 65535, got %d", cfg.Craft.SnapLen)
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Expected default log level warn, got %s", cfg.Log.Level)
	}
	if cfg.Decode.Output != OutputText || cfg.Craft.Output != OutputHex {
		t.Errorf("Unexpected default outputs: %s, %s", cfg.Decode.Output, cfg.Craft.Output)
	}
	if cfg.Craft.LinkType != protocols.LinkTypeEthernet {
		t.Errorf("Expected default linktype 1, got %d", cfg.Craft.LinkType)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PKTCRAFT_LOG_LEVEL", "trace")
	t.Setenv("PKTCRAFT_CRAFT_SEED", "7")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Log.Level != "trace" {
		t.Errorf("Expected env log level trace, got %s", cfg.Log.Level)
	}
	if cfg.Craft.Seed != 7 {
		t.Errorf("Expected env seed 7, got %d", cfg.Craft.Seed)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"log level", "pktcraft:\n  log:\n    level: loud\n"},
		{"log format", "pktcraft:\n  log:\n    format: xml\n"},
		{"start layer", "pktcraft:\n  decode:\n    start: ipx\n"},
		{"decode output", "pktcraft:\n  decode:\n    output: hex\n"},
		{"craft output", "pktcraft:\n  craft:\n    output: json\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Errorf("Expected error for invalid %s, got nil", tt.name)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yml")); err == nil {
		t.Error("Expected error for missing config file, got nil")
	}
}

func TestParseBatch(t *testing.T) {
	b, err := ParseBatch([]byte(`
id: dns-burst
seed: 3
start: 2024-01-02T03:04:05Z
interval: 10ms
packets:
  - stack: ether()/ip(dst=10.0.0.1)/udp(dport=53)
    count: 3
  - stack: ether()/arp()
`))
	if err != nil {
		t.Fatalf("Failed to parse batch: %v", err)
	}
	if b.LinkType != protocols.LinkTypeEthernet || b.SnapLen != 65535 {
		t.Errorf("Expected defaults, got linktype %d snaplen %d", b.LinkType, b.SnapLen)
	}
	if b.Step() != 10*time.Millisecond {
		t.Errorf("Expected 10ms step, got %s", b.Step())
	}
	if b.Total() != 4 {
		t.Errorf("Expected 4 packets, got %d", b.Total())
	}
	if got := b.Packets[1].Parsed().String(); got != "Ether / ARP" {
		t.Errorf("Expected Ether / ARP, got %s", got)
	}
	if b.Start.Unix() != 1704164645 {
		t.Errorf("Unexpected start %s", b.Start)
	}
}

func TestParseBatchJSON(t *testing.T) {
	b, err := ParseBatch([]byte(`{"packets": [{"stack": "ip()/icmp()"}]}`))
	if err != nil {
		t.Fatalf("Failed to parse batch: %v", err)
	}
	if b.Packets[0].Count != 1 {
		t.Errorf("Expected count 1, got %d", b.Packets[0].Count)
	}
}

func TestParseBatchErrors(t *testing.T) {
	if _, err := ParseBatch([]byte(`packets: []`)); err == nil {
		t.Error("Expected error for empty batch")
	}
	if _, err := ParseBatch([]byte("interval: soon\npackets:\n  - stack: ip()\n")); err == nil {
		t.Error("Expected error for bad interval")
	}
	_, err := ParseBatch([]byte("packets:\n  - stack: ipx()\n"))
	if !errors.Is(err, protocols.ErrUnknownProtocol) {
		t.Errorf("Expected ErrUnknownProtocol, got %v", err)
	}
}
