package protocols

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"firestige.xyz/pktcraft/pkg/layer"
)

var ErrUnknownProtocol = errors.New("protocols: unknown protocol")

var byName = map[string]layer.Constructor{
	"ether":         func() layer.Layer { return &Ether{} },
	"dot1q":         func() layer.Layer { return &Dot1Q{} },
	"arp":           func() layer.Layer { return &ARP{} },
	"ip":            func() layer.Layer { return &IP{} },
	"icmp":          func() layer.Layer { return &ICMP{} },
	"icmpecho":      func() layer.Layer { return &ICMPEcho{} },
	"icmpechoreply": func() layer.Layer { return &ICMPEchoReply{} },
	"tcp":           func() layer.Layer { return &TCP{} },
	"udp":           func() layer.Layer { return &UDP{} },
	"gre":           func() layer.Layer { return &GRE{} },
	"erspan":        func() layer.Layer { return &ERSPAN{} },
	"geneve":        func() layer.Layer { return &Geneve{} },
	"vxlan":         func() layer.Layer { return &VXLAN{} },
	"bootp":         func() layer.Layer { return &Bootp{} },
	"dhcp":          func() layer.Layer { return &DHCP{} },
	"pcappacket":    func() layer.Layer { return &PcapPacket{} },
	"pcapfile":      func() layer.Layer { return &PcapFile{} },
	"raw":           func() layer.Layer { return &layer.Raw{} },
	"payload":       func() layer.Layer { return &layer.Payload{} },
}

// ByName returns a fresh, all-auto layer for a protocol name. Names are
// case-insensitive: "IP", "ip" and "Ip" are the same protocol.
func ByName(name string) (layer.Layer, error) {
	ctor, ok := byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProtocol, name)
	}
	return ctor(), nil
}

// Names returns the protocol names ByName accepts, sorted.
func Names() []string {
	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
