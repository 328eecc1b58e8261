// Package protocols implements the built-in protocol layers and the
// registries that chain them together when decoding.
package protocols

import (
	"sync"

	"firestige.xyz/pktcraft/internal/log"
	"firestige.xyz/pktcraft/pkg/layer"
)

// Registry names.
const (
	EtherTypes   = "ethertype"
	IPProtocols  = "ip-proto"
	ICMPTypes    = "icmp-type"
	UDPDstPorts  = "udp-dport"
	UDPSrcPorts  = "udp-sport"
	BootpVendors = "bootp-vendor"
)

const DHCPCookie = 0x63825363

var (
	registriesOnce sync.Once
	registries     *layer.Registries
)

// Registries returns the process-wide tables, populated with every built-in
// protocol on first use. More protocols can be registered at runtime.
func Registries() *layer.Registries {
	registriesOnce.Do(func() {
		registries = layer.NewRegistries()
		registerBuiltins(registries)
	})
	return registries
}

func registerBuiltins(r *layer.Registries) {
	newEther := func() layer.Layer { return &Ether{} }
	newDot1Q := func() layer.Layer { return &Dot1Q{} }
	newIP := func() layer.Layer { return &IP{} }
	newBootp := func() layer.Layer { return &Bootp{} }
	newGeneve := func() layer.Layer { return &Geneve{} }

	r.MustRegister(EtherTypes, 0x0800, newIP)
	r.MustRegister(EtherTypes, 0x0806, func() layer.Layer { return &ARP{} })
	r.MustRegister(EtherTypes, 0x6558, newEther)
	r.MustRegister(EtherTypes, 0x8100, newDot1Q)
	r.MustRegister(EtherTypes, 0x88a8, newDot1Q)
	r.MustRegister(EtherTypes, 0x88be, func() layer.Layer { return &ERSPAN{} })

	r.MustRegister(IPProtocols, 1, func() layer.Layer { return &ICMP{} })
	r.MustRegister(IPProtocols, 4, newIP)
	r.MustRegister(IPProtocols, 6, func() layer.Layer { return &TCP{} })
	r.MustRegister(IPProtocols, 17, func() layer.Layer { return &UDP{} })
	r.MustRegister(IPProtocols, 47, func() layer.Layer { return &GRE{} })

	r.MustRegister(ICMPTypes, 0, func() layer.Layer { return &ICMPEchoReply{} })
	r.MustRegister(ICMPTypes, 8, func() layer.Layer { return &ICMPEcho{} })

	r.MustRegister(UDPDstPorts, 67, newBootp)
	r.MustRegister(UDPDstPorts, 68, newBootp)
	r.MustRegister(UDPDstPorts, 4789, func() layer.Layer { return &VXLAN{} })
	r.MustRegister(UDPDstPorts, 6081, newGeneve)
	r.MustRegister(UDPSrcPorts, 67, newBootp)
	r.MustRegister(UDPSrcPorts, 68, newBootp)
	r.MustRegister(UDPSrcPorts, 6081, newGeneve)

	r.MustRegister(BootpVendors, DHCPCookie, func() layer.Layer { return &DHCP{} })
}

// nextKey returns an auto function for a next-protocol field: the key that
// selects the following layer's type in the named registry, or def.
func nextKey[T uint8 | uint16 | uint32](fc *layer.FillContext, registry string, def T) func() T {
	return func() T {
		if k, ok := fc.NextKey(Registries(), registry); ok {
			return T(k)
		}
		return def
	}
}

// length16 returns n for a 16-bit length field, saturating at 0xffff.
func length16(t layer.Type, n int) uint16 {
	if n > 0xffff {
		log.GetLogger().WithFields(map[string]interface{}{"layer": t, "length": n}).
			Debug("length does not fit in 16 bits, saturating")
		return 0xffff
	}
	return uint16(n)
}

func constant[T any](v T) func() T {
	return func() T { return v }
}

func boolBit(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}
