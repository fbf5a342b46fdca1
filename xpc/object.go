// Package xpc holds the object model carried by RemoteXPC services. The byte
// level encoding and the connection handshake live behind Conn.
package xpc

import (
	"fmt"
	"time"

	"idevice/frames"
)

// Object is an XPC message node. The shapes match frames.Value; unlike plist, Null is encodable.
type Object interface {
	xpcObject()
}

type (
	Null       struct{}
	Bool       bool
	Int64      int64
	UInt64     uint64
	Double     float64
	String     string
	Data       []byte
	Date       time.Time
	Array      []Object
	Dictionary map[string]Object
)

func (Null) xpcObject()       {}
func (Bool) xpcObject()       {}
func (Int64) xpcObject()      {}
func (UInt64) xpcObject()     {}
func (Double) xpcObject()     {}
func (String) xpcObject()     {}
func (Data) xpcObject()       {}
func (Date) xpcObject()       {}
func (Array) xpcObject()      {}
func (Dictionary) xpcObject() {}

// Conn is a RemoteXPC stream whose handshake has already completed.
type Conn interface {
	SendObject(obj Dictionary, expectsReply bool) error
	Recv() (Object, error)
}

func FromValue(v frames.Value) Object {
	switch t := v.(type) {
	case frames.Bool:
		return Bool(t)
	case frames.Int:
		return Int64(t)
	case frames.Uint:
		return UInt64(t)
	case frames.Real:
		return Double(t)
	case frames.String:
		return String(t)
	case frames.Data:
		return Data(t)
	case frames.Date:
		return Date(t)
	case frames.Array:
		a := make(Array, len(t))
		for i, e := range t {
			a[i] = FromValue(e)
		}
		return a
	case frames.Dict:
		return FromDict(t)
	}
	return Null{}
}

func FromDict(d frames.Dict) Dictionary {
	out := make(Dictionary, len(d))
	for k, e := range d {
		out[k] = FromValue(e)
	}
	return out
}

func ToValue(o Object) (frames.Value, error) {
	switch t := o.(type) {
	case nil, Null:
		return frames.Null{}, nil
	case Bool:
		return frames.Bool(t), nil
	case Int64:
		return frames.Int(t), nil
	case UInt64:
		return frames.Uint(t), nil
	case Double:
		return frames.Real(t), nil
	case String:
		return frames.String(t), nil
	case Data:
		return frames.Data(t), nil
	case Date:
		return frames.Date(t), nil
	case Array:
		a := make(frames.Array, len(t))
		for i, e := range t {
			v, err := ToValue(e)
			if err != nil {
				return nil, err
			}
			a[i] = v
		}
		return a, nil
	case Dictionary:
		d := make(frames.Dict, len(t))
		for k, e := range t {
			v, err := ToValue(e)
			if err != nil {
				return nil, err
			}
			d[k] = v
		}
		return d, nil
	}
	return nil, fmt.Errorf("%w: unknown xpc object %T", frames.ErrEncoding, o)
}
