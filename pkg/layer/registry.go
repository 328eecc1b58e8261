package layer

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"firestige.xyz/pktcraft/internal/log"
)

var (
	ErrAlreadyRegistered = errors.New("layer: already registered")
	ErrUnknownRegistry   = errors.New("layer: unknown registry")
)

// Constructor returns a new zero layer, used as the decode prototype for a
// registry key.
type Constructor func() Layer

// Entry is one row of a registry.
type Entry struct {
	Registry string `json:"registry" yaml:"registry"`
	Key      uint64 `json:"key" yaml:"key"`
	Type     Type   `json:"type" yaml:"type"`
}

type table struct {
	byKey  map[uint64]Constructor
	byType map[Type]uint64
	keys   []uint64
	types  map[uint64]Type
}

func newTable() *table {
	return &table{
		byKey:  make(map[uint64]Constructor),
		byType: make(map[Type]uint64),
		types:  make(map[uint64]Type),
	}
}

// Registries groups the named tables that map a protocol discriminant (an
// ethertype, an IP protocol number, a UDP port...) to the layer it selects.
// Each table also indexes the other way, from layer type to key; when a type
// is registered under several keys the first one is used.
type Registries struct {
	mu     sync.RWMutex
	tables map[string]*table
}

func NewRegistries() *Registries {
	return &Registries{tables: make(map[string]*table)}
}

// Register adds ctor under key in the named table, creating the table on
// first use.
func (r *Registries) Register(name string, key uint64, ctor Constructor) error {
	if ctor == nil {
		return fmt.Errorf("registry '%s' key %#x: nil constructor", name, key)
	}
	typ := ctor().Type()

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tables[name]
	if !ok {
		t = newTable()
		r.tables[name] = t
	}
	if prev, exists := t.types[key]; exists {
		return fmt.Errorf("%w: registry '%s' key %#x is taken by %s", ErrAlreadyRegistered, name, key, prev)
	}
	t.byKey[key] = ctor
	t.types[key] = typ
	t.keys = append(t.keys, key)
	if _, exists := t.byType[typ]; !exists {
		t.byType[typ] = key
	}
	return nil
}

// MustRegister is Register for built-in tables. It panics on error.
func (r *Registries) MustRegister(name string, key uint64, ctor Constructor) {
	if err := r.Register(name, key, ctor); err != nil {
		panic(err)
	}
}

// Lookup returns the constructor registered under key.
func (r *Registries) Lookup(name string, key uint64) (Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tables[name]
	if !ok {
		return nil, false
	}
	ctor, ok := t.byKey[key]
	return ctor, ok
}

// KeyOf returns the key that selects layers of type typ in the named table.
func (r *Registries) KeyOf(name string, typ Type) (uint64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tables[name]
	if !ok {
		return 0, false
	}
	key, ok := t.byType[typ]
	return key, ok
}

// Names returns the table names in sorted order.
func (r *Registries) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entries returns the rows of the named table sorted by key.
func (r *Registries) Entries(name string) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownRegistry, name)
	}
	keys := slices.Clone(t.keys)
	slices.Sort(keys)
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		out = append(out, Entry{Registry: name, Key: k, Type: t.types[k]})
	}
	return out, nil
}

// Key names a registry lookup tried while chaining a decode.
type Key struct {
	Registry string
	Value    uint64
}

// Chain decodes rest as the layer selected by the first key that hits. A
// miss or a layer that cannot decode leaves rest as a single Raw layer.
// Greedy layers get their unparsed remainder appended as Raw. Chain always
// consumes len(rest) unless the selected layer is not greedy.
func Chain(regs *Registries, rest []byte, keys ...Key) (*Stack, int) {
	if len(rest) == 0 {
		return Of(), 0
	}
	for _, k := range keys {
		if ctor, ok := regs.Lookup(k.Registry, k.Value); ok {
			return DecodeAs(ctor(), rest)
		}
	}
	if l := log.GetLogger(); l.IsDebugEnabled() {
		l.WithFields(map[string]interface{}{"keys": keys, "bytes": len(rest)}).Debug("no registered layer, keeping raw bytes")
	}
	return Of(NewRaw(rest)), len(rest)
}

// DecodeAs decodes rest with proto, degrading to Raw when proto's fixed
// fields do not fit.
func DecodeAs(proto Layer, rest []byte) (*Stack, int) {
	if len(rest) == 0 {
		return Of(), 0
	}
	s, n, err := proto.Decode(rest)
	if err != nil {
		if l := log.GetLogger(); l.IsDebugEnabled() {
			l.WithField("layer", proto.Type()).WithError(err).Debug("decode failed, keeping raw bytes")
		}
		return Of(NewRaw(rest)), len(rest)
	}
	if n < len(rest) && IsGreedy(proto) {
		s.layers = append(s.layers, NewRaw(rest[n:]))
		n = len(rest)
	}
	return s, n
}
