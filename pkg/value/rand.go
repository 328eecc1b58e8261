package value

import (
	"math/rand/v2"
	"net/netip"
)

// Rand is the entropy source used to resolve Random values.
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	Uint64() uint64
}

// Randomizer is implemented by field types that know how to draw a random
// instance of themselves.
type Randomizer interface {
	Randomize(r Rand)
}

type globalRand struct{}

func (globalRand) Uint64() uint64 { return rand.Uint64() }

// DefaultRand returns the process-wide source. It is safe for concurrent use.
func DefaultRand() Rand { return globalRand{} }

// NewRand returns a deterministic source seeded with seed.
// The returned source must not be shared between goroutines.
func NewRand(seed uint64) Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Draw returns a uniformly random T. Types that are neither integers, bool,
// MAC, netip.Addr nor Randomizer implementations resolve to their zero value.
func Draw[T any](r Rand) T {
	var out T
	switch p := any(&out).(type) {
	case *uint8:
		*p = uint8(r.Uint64())
	case *uint16:
		*p = uint16(r.Uint64())
	case *uint32:
		*p = uint32(r.Uint64())
	case *uint64:
		*p = r.Uint64()
	case *int32:
		*p = int32(r.Uint64())
	case *int:
		*p = int(r.Uint64())
	case *bool:
		*p = r.Uint64()&1 == 1
	case *MAC:
		fillBytes(r, p[:])
	case *netip.Addr:
		var a [4]byte
		fillBytes(r, a[:])
		*p = netip.AddrFrom4(a)
	case Randomizer:
		p.Randomize(r)
	}
	return out
}

func fillBytes(r Rand, b []byte) {
	for i := 0; i < len(b); i += 8 {
		x := r.Uint64()
		for j := 0; j < 8 && i+j < len(b); j++ {
			b[i+j] = byte(x >> (8 * j))
		}
	}
}
