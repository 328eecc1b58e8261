package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"firestige.xyz/pktcraft/pkg/layer"
	"firestige.xyz/pktcraft/pkg/protocols"
)

// Batch describes a capture file to craft. JSON is accepted too, being a
// subset of YAML.
type Batch struct {
	ID       string        `yaml:"id"`
	LinkType uint32        `yaml:"linktype"` // default 1 (Ethernet)
	SnapLen  uint32        `yaml:"snaplen"`  // default 65535
	Seed     uint64        `yaml:"seed"`     // 0 = nondeterministic
	Start    time.Time     `yaml:"start"`    // timestamp of the first packet, default now
	Interval string        `yaml:"interval"` // timestamp step between packets, default "1ms"
	Packets  []BatchPacket `yaml:"packets"`

	step time.Duration
}

// BatchPacket is one stack in text form, written Count times.
type BatchPacket struct {
	Stack string `yaml:"stack"`
	Count int    `yaml:"count"`

	parsed *layer.Stack
}

// Parsed returns the stack parsed by Validate.
func (p *BatchPacket) Parsed() *layer.Stack { return p.parsed }

// Step returns the parsed Interval.
func (b *Batch) Step() time.Duration { return b.step }

// Total is the number of packets the batch produces.
func (b *Batch) Total() int {
	n := 0
	for _, p := range b.Packets {
		n += p.Count
	}
	return n
}

// Validate parses every stack and applies defaults.
func (b *Batch) Validate() error {
	if len(b.Packets) == 0 {
		return fmt.Errorf("at least one packet is required")
	}
	if b.LinkType == 0 {
		b.LinkType = protocols.LinkTypeEthernet
	}
	if b.SnapLen == 0 {
		b.SnapLen = 65535
	}
	if b.Interval == "" {
		b.Interval = "1ms"
	}
	step, err := time.ParseDuration(b.Interval)
	if err != nil {
		return fmt.Errorf("invalid interval %q: %w", b.Interval, err)
	}
	if step < 0 {
		return fmt.Errorf("interval must not be negative, got %s", b.Interval)
	}
	b.step = step
	if b.Start.IsZero() {
		b.Start = time.Now()
	}

	for i := range b.Packets {
		p := &b.Packets[i]
		if p.Stack == "" {
			return fmt.Errorf("packets[%d]: stack is required", i)
		}
		if p.Count < 1 {
			p.Count = 1
		}
		s, err := protocols.Parse(p.Stack)
		if err != nil {
			return fmt.Errorf("packets[%d]: %w", i, err)
		}
		p.parsed = s
	}
	return nil
}

// ParseBatch parses and validates a batch description.
func ParseBatch(data []byte) (*Batch, error) {
	var b Batch
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse batch: %w", err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}
