package layer

import "encoding/json"

type exportedLayer struct {
	Layer  Type  `json:"layer" yaml:"layer"`
	Fields Layer `json:"fields" yaml:"fields"`
}

func (s *Stack) export() []exportedLayer {
	out := make([]exportedLayer, s.Len())
	for i, l := range s.Layers() {
		out[i] = exportedLayer{Layer: l.Type(), Fields: l}
	}
	return out
}

// MarshalJSON renders s as [{"layer": "IP", "fields": {...}}, ...].
func (s *Stack) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.export())
}

func (s *Stack) MarshalYAML() (interface{}, error) {
	return s.export(), nil
}
