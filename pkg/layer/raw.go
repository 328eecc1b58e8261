package layer

import (
	"encoding/hex"
	"encoding/json"
)

const (
	TypeRaw     Type = "Raw"
	TypePayload Type = "Payload"
)

// Raw is an opaque byte run. Decode ends in a Raw layer whenever it meets
// data it cannot parse.
type Raw struct {
	Data []byte
}

// NewRaw returns a Raw layer holding a copy of b.
func NewRaw(b []byte) *Raw {
	return &Raw{Data: append([]byte(nil), b...)}
}

func (r *Raw) Type() Type { return TypeRaw }

func (r *Raw) Clone() Layer { return NewRaw(r.Data) }

func (r *Raw) Fill(*FillContext) Layer { return r.Clone() }

func (r *Raw) Encode(*EncodeContext) []byte { return r.Data }

func (r *Raw) Decode(buf []byte) (*Stack, int, error) {
	return Of(NewRaw(buf)), len(buf), nil
}

func (r *Raw) exported() map[string]string {
	return map[string]string{"data": "0x" + hex.EncodeToString(r.Data)}
}

func (r *Raw) MarshalJSON() ([]byte, error) { return json.Marshal(r.exported()) }

func (r *Raw) MarshalYAML() (interface{}, error) { return r.exported(), nil }

// Payload is a text payload, encoded as its bytes.
type Payload struct {
	Text string `json:"text" yaml:"text"`
}

func (p *Payload) Type() Type { return TypePayload }

func (p *Payload) Clone() Layer {
	c := *p
	return &c
}

func (p *Payload) Fill(*FillContext) Layer { return p.Clone() }

func (p *Payload) Encode(*EncodeContext) []byte { return []byte(p.Text) }

func (p *Payload) Decode(buf []byte) (*Stack, int, error) {
	return Of(&Payload{Text: string(buf)}), len(buf), nil
}
