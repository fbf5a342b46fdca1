package frames

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"howett.net/plist"
)

func sampleTree() Value {
	return Dict{
		"bool":   Bool(true),
		"neg":    Int(-42),
		"big":    Uint(math.MaxUint64),
		"small":  Uint(7),
		"real":   Real(1.5),
		"string": String("héllo"),
		"data":   Data{0x00, 0xff, 0x10},
		"date":   Date(time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)),
		"array": Array{
			String("a"),
			Array{Int(-1), Uint(2)},
			Dict{"nested": Data{}},
		},
		"dict": Dict{
			"empty": Dict{},
			"list":  Array{},
		},
	}
}

func TestValueRoundTrip(t *testing.T) {
	for _, format := range []int{plist.XMLFormat, plist.BinaryFormat} {
		in := sampleTree()
		b, err := Marshal(in, format)
		require.NoError(t, err)

		out, err := Unmarshal(b)
		require.NoError(t, err)
		assert.True(t, Equal(in, out), "format %d: got %#v", format, out)
	}
}

func TestMarshalNullIsEncodingError(t *testing.T) {
	_, err := Marshal(Dict{"x": Null{}}, plist.XMLFormat)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEncoding))
}

func TestUnmarshalMalformed(t *testing.T) {
	_, err := Unmarshal([]byte("bplist00\x01\x02"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEncoding))
}

func TestUnmarshalDictRejectsArray(t *testing.T) {
	b, err := Marshal(Array{String("a")}, plist.XMLFormat)
	require.NoError(t, err)

	_, err = UnmarshalDict(b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnexpectedResponse))
}

func TestFromPlistStruct(t *testing.T) {
	v, err := FromPlist(&StartServiceRequest{
		LockdownRequest: *CreateLockdownRequest("", "StartService"),
		Service:         "com.apple.misagent",
	})
	require.NoError(t, err)

	d, ok := v.(Dict)
	require.True(t, ok)
	assert.Equal(t, Dict{"Request": String("StartService"), "Service": String("com.apple.misagent")}, d)
}

func TestDecodeIntoStruct(t *testing.T) {
	var out struct {
		Name  string   `plist:"name"`
		PID   uint32   `plist:"pid"`
		Tags  []string `plist:"tags"`
		Extra *struct {
			Relative string `plist:"relative"`
		} `plist:"extra"`
	}
	err := Decode(Dict{
		"name":  String("SpringBoard"),
		"pid":   Uint(61),
		"tags":  Array{String("a"), String("b")},
		"extra": Dict{"relative": String("file:///x")},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "SpringBoard", out.Name)
	assert.Equal(t, uint32(61), out.PID)
	assert.Equal(t, []string{"a", "b"}, out.Tags)
	require.NotNil(t, out.Extra)
	assert.Equal(t, "file:///x", out.Extra.Relative)
}

func TestDecodeTypeMismatch(t *testing.T) {
	var out struct {
		Name string `plist:"name"`
	}
	err := Decode(Dict{"name": Array{}}, &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEncoding))
}

func TestDictGetters(t *testing.T) {
	d := Dict{"u": Uint(3), "i": Int(-3), "pi": Int(4), "s": String("x"), "b": Bool(false)}

	u, ok := d.GetUint("u")
	assert.True(t, ok)
	assert.Equal(t, uint64(3), u)

	_, ok = d.GetUint("i")
	assert.False(t, ok)

	u, ok = d.GetUint("pi")
	assert.True(t, ok)
	assert.Equal(t, uint64(4), u)

	i, ok := d.GetInt("u")
	assert.True(t, ok)
	assert.Equal(t, int64(3), i)

	_, ok = d.GetString("u")
	assert.False(t, ok)

	b, ok := d.GetBool("b")
	assert.True(t, ok)
	assert.False(t, b)

	_, ok = d.GetDict("missing")
	assert.False(t, ok)
}
