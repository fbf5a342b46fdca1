package frames

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

// DecodeStrict is Decode for device replies: every field of out without
// omitempty, and not behind a pointer, must be present, and any decode
// failure is reported as ErrUnexpectedResponse.
func DecodeStrict(v Value, out interface{}) error {
	if err := checkShape(v, reflect.TypeOf(out), "", true); err != nil {
		return err
	}
	if err := decode(v, out); err != nil {
		return Unexpected("decode %T: %v", out, err)
	}
	return nil
}

// checkShape walks v along t. Integers must fit the field they land in.
// With required set, struct fields must be present and structs must be dicts.
func checkShape(v Value, t reflect.Type, path string, required bool) error {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return checkInteger(v, t, path)
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return nil
		}
		a, ok := v.(Array)
		if !ok {
			return nil
		}
		for i, e := range a {
			if err := checkShape(e, t.Elem(), fmt.Sprintf("%s[%d]", path, i), required); err != nil {
				return err
			}
		}
		return nil
	case reflect.Struct:
		if t == timeType {
			return nil
		}
	default:
		return nil
	}

	d, ok := v.(Dict)
	if !ok {
		if required {
			return Unexpected("%s is %s, want dict", shapePath(path), v.Kind())
		}
		return nil
	}

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("plist"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}

		e, ok := d[name]
		if !ok {
			if !required || strings.Contains(opts, "omitempty") || f.Type.Kind() == reflect.Ptr {
				continue
			}
			return Unexpected("%s missing %q", shapePath(path), name)
		}
		if err := checkShape(e, f.Type, path+"."+name, required); err != nil {
			return err
		}
	}
	return nil
}

func checkInteger(v Value, t reflect.Type, path string) error {
	target := reflect.New(t).Elem()
	unsigned := target.CanUint()

	var overflow bool
	switch n := v.(type) {
	case Uint:
		if unsigned {
			overflow = target.OverflowUint(uint64(n))
		} else {
			overflow = uint64(n) > math.MaxInt64 || target.OverflowInt(int64(n))
		}
	case Int:
		if unsigned {
			overflow = n < 0 || target.OverflowUint(uint64(n))
		} else {
			overflow = target.OverflowInt(int64(n))
		}
	default:
		return nil
	}

	if overflow {
		return Unexpected("%s value %v does not fit %s", shapePath(path), v, t)
	}
	return nil
}

func shapePath(path string) string {
	if path == "" {
		return "reply"
	}
	return "reply" + path
}
