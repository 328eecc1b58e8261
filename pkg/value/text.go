package value

import (
	"encoding"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// UnmarshalText parses a field literal. "auto" and "random" select those
// kinds; anything else must parse as T.
func (v *Value[T]) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	switch strings.ToLower(s) {
	case "auto":
		*v = Auto[T]()
		return nil
	case "random":
		*v = Random[T]()
		return nil
	}
	x, err := parseLiteral[T](s)
	if err != nil {
		return err
	}
	*v = Of(x)
	return nil
}

// Parse is UnmarshalText returning the parsed Value.
func Parse[T any](s string) (Value[T], error) {
	var v Value[T]
	err := v.UnmarshalText([]byte(s))
	return v, err
}

func parseLiteral[T any](s string) (T, error) {
	var out T
	var err error
	switch p := any(&out).(type) {
	case *uint8:
		var n uint64
		n, err = strconv.ParseUint(s, 0, 8)
		*p = uint8(n)
	case *uint16:
		var n uint64
		n, err = strconv.ParseUint(s, 0, 16)
		*p = uint16(n)
	case *uint32:
		var n uint64
		n, err = strconv.ParseUint(s, 0, 32)
		*p = uint32(n)
	case *uint64:
		*p, err = strconv.ParseUint(s, 0, 64)
	case *int32:
		var n int64
		n, err = strconv.ParseInt(s, 0, 32)
		*p = int32(n)
	case *int:
		*p, err = strconv.Atoi(s)
	case *bool:
		*p, err = strconv.ParseBool(s)
	case *string:
		*p = s
	case *[]byte:
		*p, err = parseBytes(s)
	case *netip.Addr:
		a, perr := ParseIPv4(s)
		if perr != nil {
			return out, perr
		}
		*p = a
	case encoding.TextUnmarshaler:
		if uerr := p.UnmarshalText([]byte(s)); uerr != nil {
			return out, uerr
		}
	default:
		return out, fmt.Errorf("%w: no parser for %T", ErrInvalidLiteral, out)
	}
	if err != nil {
		return out, fmt.Errorf("%w: %q as %T: %v", ErrInvalidLiteral, s, out, err)
	}
	return out, nil
}

// parseBytes accepts 0x-prefixed hex or plain text.
func parseBytes(s string) ([]byte, error) {
	if h, ok := strings.CutPrefix(s, "0x"); ok {
		return hex.DecodeString(h)
	}
	return []byte(s), nil
}

func (v Value[T]) exported() any {
	if v.kind != KindSet {
		return v.kind.String()
	}
	if b, ok := any(v.val).([]byte); ok {
		return "0x" + hex.EncodeToString(b)
	}
	if tm, ok := any(v.val).(encoding.TextMarshaler); ok {
		if text, err := tm.MarshalText(); err == nil {
			return string(text)
		}
	}
	return v.val
}

func (v Value[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.exported())
}

func (v Value[T]) MarshalYAML() (interface{}, error) {
	return v.exported(), nil
}
