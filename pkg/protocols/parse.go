package protocols

import (
	"encoding"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"firestige.xyz/pktcraft/pkg/layer"
	"firestige.xyz/pktcraft/pkg/value"
)

var (
	ErrSyntax       = errors.New("protocols: syntax error")
	ErrUnknownField = errors.New("protocols: unknown field")
	ErrInvalidField = errors.New("protocols: invalid field value")
)

// Parse builds a stack from its text form, for example
//
//	ether(dst=ff:ff:ff:ff:ff:ff)/ip(dst=10.0.0.1, ttl=random)/udp(dport=53)/"hello"
//
// Each segment names a protocol, optionally followed by field assignments in
// parentheses. A quoted segment is a Payload. Field values use the literal
// syntax of value.Value, so "auto" and "random" are accepted everywhere.
func Parse(text string) (*layer.Stack, error) {
	segs, err := split(text, '/')
	if err != nil {
		return nil, err
	}
	s := layer.Of()
	for _, seg := range segs {
		l, err := parseSegment(strings.TrimSpace(seg))
		if err != nil {
			return nil, err
		}
		s = s.Div(l)
	}
	return s, nil
}

func parseSegment(seg string) (layer.Layer, error) {
	if seg == "" {
		return nil, fmt.Errorf("%w: empty layer", ErrSyntax)
	}
	if seg[0] == '"' {
		text, err := strconv.Unquote(seg)
		if err != nil {
			return nil, fmt.Errorf("%w: payload %s: %v", ErrSyntax, seg, err)
		}
		return &layer.Payload{Text: text}, nil
	}

	name, args := seg, ""
	if open := strings.IndexByte(seg, '('); open >= 0 {
		if !strings.HasSuffix(seg, ")") {
			return nil, fmt.Errorf("%w: %q is missing ')'", ErrSyntax, seg)
		}
		name, args = strings.TrimSpace(seg[:open]), seg[open+1:len(seg)-1]
	}
	l, err := ByName(name)
	if err != nil {
		return nil, err
	}
	fields, err := parseArgs(args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if err := assign(l, fields); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return l, nil
}

func parseArgs(args string) (map[string]interface{}, error) {
	fields := map[string]interface{}{}
	if strings.TrimSpace(args) == "" {
		return fields, nil
	}
	parts, err := split(args, ',')
	if err != nil {
		return nil, err
	}
	for _, p := range parts {
		k, v, ok := strings.Cut(p, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: expected key=value, got %q", ErrSyntax, strings.TrimSpace(p))
		}
		if strings.HasPrefix(v, `"`) {
			uq, err := strconv.Unquote(v)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrSyntax, k, err)
			}
			v = uq
		}
		if _, dup := fields[k]; dup {
			return nil, fmt.Errorf("%w: %s assigned twice", ErrSyntax, k)
		}
		fields[k] = v
	}
	return fields, nil
}

// split cuts s at sep, ignoring separators inside parentheses and quotes.
func split(s string, sep byte) ([]string, error) {
	var (
		out   []string
		depth int
		quote bool
		start int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote && c == '\\':
			i++
		case c == '"':
			quote = !quote
		case quote:
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("%w: unbalanced ')' at %d", ErrSyntax, i)
			}
		case c == sep && depth == 0:
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if quote {
		return nil, fmt.Errorf("%w: unterminated string", ErrSyntax)
	}
	if depth != 0 {
		return nil, fmt.Errorf("%w: unbalanced '('", ErrSyntax)
	}
	return append(out, s[start:]), nil
}

var (
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
	bytesType           = reflect.TypeOf([]byte(nil))
)

// assign decodes string fields into l. mapstructure flattens hook errors
// into strings, so the first one is kept aside to preserve its sentinel.
func assign(l layer.Layer, fields map[string]interface{}) error {
	var hookErr error
	hook := func(from, to reflect.Type, data interface{}) (interface{}, error) {
		s, ok := data.(string)
		if !ok || from.Kind() != reflect.String {
			return data, nil
		}
		var out interface{}
		var err error
		switch {
		case to == bytesType:
			var b value.Value[[]byte]
			b, err = value.Parse[[]byte](s)
			out, _ = b.Get()
		case reflect.PointerTo(to).Implements(textUnmarshalerType):
			ptr := reflect.New(to)
			err = ptr.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s))
			out = ptr.Elem().Interface()
		default:
			return data, nil
		}
		if err != nil {
			if hookErr == nil {
				hookErr = err
			}
			return nil, err
		}
		return out, nil
	}

	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.DecodeHookFuncType(hook),
		Metadata:         &md,
		WeaklyTypedInput: true,
		Result:           l,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(fields); err != nil {
		if hookErr != nil {
			return hookErr
		}
		return fmt.Errorf("%w: %v", ErrInvalidField, err)
	}
	if len(md.Unused) > 0 {
		return fmt.Errorf("%w: %s", ErrUnknownField, strings.Join(md.Unused, ", "))
	}
	return nil
}
