package value

import (
	"encoding/json"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestZeroValueIsAuto(t *testing.T) {
	var v Value[uint16]
	assert.True(t, v.IsAuto())
	assert.Equal(t, KindAuto, v.Kind())
	_, ok := v.Get()
	assert.False(t, ok)
}

func TestResolve(t *testing.T) {
	r := NewRand(1)

	assert.Equal(t, uint16(0), Auto[uint16]().Resolve(r, nil))
	assert.Equal(t, uint16(64), Auto[uint16]().Resolve(r, func() uint16 { return 64 }))
	assert.Equal(t, uint16(7), Of[uint16](7).Resolve(r, func() uint16 { return 64 }))
	assert.Equal(t, uint16(9), Func(func() uint16 { return 9 }).Resolve(r, nil))
}

func TestFillNeverLeavesDeferredKinds(t *testing.T) {
	r := NewRand(42)
	for _, v := range []Value[MAC]{Auto[MAC](), Random[MAC](), Func(func() MAC { return BroadcastMAC }), Of(ZeroMAC)} {
		filled := v.Fill(r, func() MAC { return BroadcastMAC })
		assert.True(t, filled.IsSet(), "kind %s", v.Kind())
	}
}

func TestPinKeepsAuto(t *testing.T) {
	r := NewRand(1)
	assert.True(t, Auto[uint16]().Pin(r).IsAuto())
	assert.Equal(t, Of[uint16](9), Func(func() uint16 { return 9 }).Pin(r))
	assert.True(t, Random[uint16]().Pin(r).IsSet())
}

func TestRandomIsDeterministicWithSeededSource(t *testing.T) {
	a := Random[uint32]().Resolve(NewRand(7), nil)
	b := Random[uint32]().Resolve(NewRand(7), nil)
	assert.Equal(t, a, b)

	ip := Random[netip.Addr]().Resolve(NewRand(7), nil)
	assert.True(t, ip.Is4())
}

func TestUnmarshalText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Value[uint16]
	}{
		{"decimal", "80", Of[uint16](80)},
		{"hex", "0x0800", Of[uint16](0x800)},
		{"auto", "auto", Auto[uint16]()},
		{"random", "Random", Random[uint16]()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse[uint16](tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}
}

func TestUnmarshalTextErrors(t *testing.T) {
	_, err := Parse[uint8]("300")
	assert.ErrorIs(t, err, ErrInvalidLiteral)

	_, err = Parse[MAC]("01:02:03")
	assert.ErrorIs(t, err, ErrInvalidLiteral)

	_, err = Parse[netip.Addr]("::1")
	assert.ErrorIs(t, err, ErrInvalidLiteral)

	_, err = Parse[netip.Addr]("10.0.0.300")
	assert.ErrorIs(t, err, ErrInvalidLiteral)
}

func TestParseAddresses(t *testing.T) {
	m, err := ParseMAC("41:41:41:41:41:41")
	require.NoError(t, err)
	assert.Equal(t, MAC{0x41, 0x41, 0x41, 0x41, 0x41, 0x41}, m)
	assert.Equal(t, "41:41:41:41:41:41", m.String())

	ip, err := ParseIPv4("10.10.10.10")
	require.NoError(t, err)
	assert.Equal(t, [4]byte{10, 10, 10, 10}, IPv4(ip))
}

func TestExport(t *testing.T) {
	type fields struct {
		Port Value[uint16] `json:"port" yaml:"port"`
		Mac  Value[MAC]    `json:"mac" yaml:"mac"`
		Data Value[[]byte] `json:"data" yaml:"data"`
		ID   Value[uint16] `json:"id" yaml:"id"`
	}
	f := fields{
		Port: Of[uint16](53),
		Mac:  Of(BroadcastMAC),
		Data: Of([]byte{0xde, 0xad}),
		ID:   Random[uint16](),
	}

	js, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{"port":53,"mac":"ff:ff:ff:ff:ff:ff","data":"0xdead","id":"random"}`, string(js))

	y, err := yaml.Marshal(f)
	require.NoError(t, err)
	assert.Contains(t, string(y), "port: 53")
	assert.Contains(t, string(y), "id: random")
}
