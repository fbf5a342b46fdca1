package frames

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"time"

	"howett.net/plist"
)

type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindUint
	KindReal
	KindString
	KindData
	KindDate
	KindArray
	KindDict
)

var kindNames = [...]string{"null", "bool", "int", "uint", "real", "string", "data", "date", "array", "dict"}

func (this Kind) String() string {
	if int(this) < len(kindNames) {
		return kindNames[this]
	}
	return fmt.Sprintf("kind(%d)", int(this))
}

// Value is a plist document node. The set of implementations is closed.
type Value interface {
	Kind() Kind
}

type (
	Null   struct{}
	Bool   bool
	Int    int64
	Uint   uint64
	Real   float64
	String string
	Data   []byte
	Date   time.Time
	Array  []Value
	Dict   map[string]Value
)

func (Null) Kind() Kind   { return KindNull }
func (Bool) Kind() Kind   { return KindBool }
func (Int) Kind() Kind    { return KindInt }
func (Uint) Kind() Kind   { return KindUint }
func (Real) Kind() Kind   { return KindReal }
func (String) Kind() Kind { return KindString }
func (Data) Kind() Kind   { return KindData }
func (Date) Kind() Kind   { return KindDate }
func (Array) Kind() Kind  { return KindArray }
func (Dict) Kind() Kind   { return KindDict }

func (this Dict) GetString(key string) (string, bool) {
	v, ok := this[key].(String)
	return string(v), ok
}

func (this Dict) GetBool(key string) (bool, bool) {
	v, ok := this[key].(Bool)
	return bool(v), ok
}

// GetUint accepts any integer that is representable without sign.
func (this Dict) GetUint(key string) (uint64, bool) {
	switch v := this[key].(type) {
	case Uint:
		return uint64(v), true
	case Int:
		if v >= 0 {
			return uint64(v), true
		}
	}
	return 0, false
}

// GetInt accepts any integer that fits an int64.
func (this Dict) GetInt(key string) (int64, bool) {
	switch v := this[key].(type) {
	case Int:
		return int64(v), true
	case Uint:
		if v <= math.MaxInt64 {
			return int64(v), true
		}
	}
	return 0, false
}

func (this Dict) GetData(key string) ([]byte, bool) {
	v, ok := this[key].(Data)
	return []byte(v), ok
}

func (this Dict) GetDict(key string) (Dict, bool) {
	v, ok := this[key].(Dict)
	return v, ok
}

func (this Dict) GetArray(key string) (Array, bool) {
	v, ok := this[key].(Array)
	return v, ok
}

// FromPlist converts a decoded plist tree, a Go scalar, or a plist tagged struct into a Value.
func FromPlist(v interface{}) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(t), nil
	case int8:
		return Int(t), nil
	case int16:
		return Int(t), nil
	case int32:
		return Int(t), nil
	case int64:
		return Int(t), nil
	case uint:
		return Uint(t), nil
	case uint8:
		return Uint(t), nil
	case uint16:
		return Uint(t), nil
	case uint32:
		return Uint(t), nil
	case uint64:
		return Uint(t), nil
	case plist.UID:
		return Uint(t), nil
	case float32:
		return Real(t), nil
	case float64:
		return Real(t), nil
	case string:
		return String(t), nil
	case []byte:
		return Data(t), nil
	case time.Time:
		return Date(t.UTC()), nil
	case []string:
		a := make(Array, len(t))
		for i, s := range t {
			a[i] = String(s)
		}
		return a, nil
	case []interface{}:
		a := make(Array, len(t))
		for i, e := range t {
			ev, err := FromPlist(e)
			if err != nil {
				return nil, err
			}
			a[i] = ev
		}
		return a, nil
	case map[string]string:
		d := make(Dict, len(t))
		for k, s := range t {
			d[k] = String(s)
		}
		return d, nil
	case map[string]interface{}:
		d := make(Dict, len(t))
		for k, e := range t {
			ev, err := FromPlist(e)
			if err != nil {
				return nil, err
			}
			d[k] = ev
		}
		return d, nil
	}

	b, err := plist.Marshal(v, plist.BinaryFormat)
	if err != nil {
		return nil, encodingError(err)
	}
	return Unmarshal(b)
}

// ToPlist converts a Value into the tree howett.net/plist knows how to encode.
// Null has no plist representation.
func ToPlist(v Value) (interface{}, error) {
	switch t := v.(type) {
	case nil, Null:
		return nil, encodingError(fmt.Errorf("null has no plist representation"))
	case Bool:
		return bool(t), nil
	case Int:
		return int64(t), nil
	case Uint:
		return uint64(t), nil
	case Real:
		return float64(t), nil
	case String:
		return string(t), nil
	case Data:
		return []byte(t), nil
	case Date:
		return time.Time(t), nil
	case Array:
		a := make([]interface{}, len(t))
		for i, e := range t {
			pv, err := ToPlist(e)
			if err != nil {
				return nil, err
			}
			a[i] = pv
		}
		return a, nil
	case Dict:
		d := make(map[string]interface{}, len(t))
		for k, e := range t {
			pv, err := ToPlist(e)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			d[k] = pv
		}
		return d, nil
	}
	return nil, encodingError(fmt.Errorf("unknown value %T", v))
}

// Marshal encodes v with one of the plist format constants.
func Marshal(v Value, format int) ([]byte, error) {
	pv, err := ToPlist(v)
	if err != nil {
		return nil, err
	}
	b, err := plist.Marshal(pv, format)
	if err != nil {
		return nil, encodingError(err)
	}
	return b, nil
}

func Unmarshal(b []byte) (Value, error) {
	var raw interface{}
	if _, err := plist.Unmarshal(b, &raw); err != nil {
		return nil, encodingError(err)
	}
	return FromPlist(raw)
}

// UnmarshalDict decodes b and rejects any top level value that is not a dictionary.
func UnmarshalDict(b []byte) (Dict, error) {
	v, err := Unmarshal(b)
	if err != nil {
		return nil, err
	}
	d, ok := v.(Dict)
	if !ok {
		return nil, Unexpected("top level %s, want dict", v.Kind())
	}
	return d, nil
}

// Decode fills out, a plist tagged struct or slice, from v. Integers that do
// not fit their field are rejected with ErrUnexpectedResponse.
func Decode(v Value, out interface{}) error {
	if err := checkShape(v, reflect.TypeOf(out), "", false); err != nil {
		return err
	}
	return decode(v, out)
}

func decode(v Value, out interface{}) error {
	b, err := Marshal(v, plist.BinaryFormat)
	if err != nil {
		return err
	}
	if err := plist.NewDecoder(bytes.NewReader(b)).Decode(out); err != nil {
		return encodingError(err)
	}
	return nil
}

// Equal compares two trees structurally. Dates compare by instant.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch at := a.(type) {
	case Date:
		return time.Time(at).Equal(time.Time(b.(Date)))
	case Data:
		return bytes.Equal(at, b.(Data))
	case Array:
		bt := b.(Array)
		if len(at) != len(bt) {
			return false
		}
		for i := range at {
			if !Equal(at[i], bt[i]) {
				return false
			}
		}
		return true
	case Dict:
		bt := b.(Dict)
		if len(at) != len(bt) {
			return false
		}
		for k, av := range at {
			bv, ok := bt[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}
