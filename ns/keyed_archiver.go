package ns

import (
	"errors"
	"fmt"
	"time"

	"howett.net/plist"

	"idevice/frames"
)

const NSNull = "$null"

const maxDepth = 64

var ErrArchive = errors.New("malformed keyed archive")

type KeyedArchiver struct {
	Archiver string                 `plist:"$archiver"`
	Objects  []interface{}          `plist:"$objects"`
	Top      map[string]interface{} `plist:"$top"`
	Version  int                    `plist:"$version"`
}

var (
	dictionaryClasses = map[string]bool{"NSDictionary": true, "NSMutableDictionary": true}
	arrayClasses      = map[string]bool{"NSArray": true, "NSMutableArray": true, "NSSet": true, "NSMutableSet": true}
	dataClasses       = map[string]bool{"NSData": true, "NSMutableData": true}
	stringClasses     = map[string]bool{"NSString": true, "NSMutableString": true}
)

var referenceDate = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

type unarchiver struct {
	objects []interface{}
}

// Unarchive unwraps an NSKeyedArchiver document into a plain value tree.
// Objects of classes without a native shape become dictionaries of their
// fields plus a "$classes" array.
func Unarchive(b []byte) (frames.Value, error) {
	var archive KeyedArchiver
	if _, err := plist.Unmarshal(b, &archive); err != nil {
		return nil, fmt.Errorf("%w: %w", frames.ErrEncoding, err)
	}
	if archive.Archiver != "NSKeyedArchiver" {
		return nil, fmt.Errorf("%w: archiver %q", ErrArchive, archive.Archiver)
	}

	root, ok := archive.Top["root"].(plist.UID)
	if !ok {
		return nil, fmt.Errorf("%w: missing $top root", ErrArchive)
	}

	u := &unarchiver{objects: archive.Objects}
	v, err := u.resolve(root, 0)
	if err != nil {
		return nil, err
	}
	return frames.FromPlist(v)
}

func (this *unarchiver) object(uid plist.UID) (interface{}, error) {
	if int(uid) >= len(this.objects) {
		return nil, fmt.Errorf("%w: uid %d out of range", ErrArchive, uid)
	}
	return this.objects[uid], nil
}

func (this *unarchiver) classOf(m map[string]interface{}) (string, []string, error) {
	uid, ok := m["$class"].(plist.UID)
	if !ok {
		return "", nil, nil
	}
	obj, err := this.object(uid)
	if err != nil {
		return "", nil, err
	}
	class, ok := obj.(map[string]interface{})
	if !ok {
		return "", nil, fmt.Errorf("%w: class %d is not a dictionary", ErrArchive, uid)
	}
	name, _ := class["$classname"].(string)
	var classes []string
	if raw, ok := class["$classes"].([]interface{}); ok {
		for _, c := range raw {
			if s, ok := c.(string); ok {
				classes = append(classes, s)
			}
		}
	}
	return name, classes, nil
}

func (this *unarchiver) resolve(v interface{}, depth int) (interface{}, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d", ErrArchive, maxDepth)
	}

	switch t := v.(type) {
	case plist.UID:
		obj, err := this.object(t)
		if err != nil {
			return nil, err
		}
		return this.resolve(obj, depth+1)
	case string:
		if t == NSNull {
			return nil, nil
		}
		return t, nil
	case []interface{}:
		return this.resolveList(t, depth)
	case map[string]interface{}:
		return this.resolveObject(t, depth)
	}
	return v, nil
}

func (this *unarchiver) resolveList(list []interface{}, depth int) ([]interface{}, error) {
	ret := make([]interface{}, 0, len(list))
	for _, e := range list {
		r, err := this.resolve(e, depth+1)
		if err != nil {
			return nil, err
		}
		ret = append(ret, r)
	}
	return ret, nil
}

func (this *unarchiver) resolveObject(m map[string]interface{}, depth int) (interface{}, error) {
	className, classes, err := this.classOf(m)
	if err != nil {
		return nil, err
	}

	switch {
	case dictionaryClasses[className]:
		keys, _ := m["NS.keys"].([]interface{})
		values, _ := m["NS.objects"].([]interface{})
		if len(keys) != len(values) {
			return nil, fmt.Errorf("%w: %d keys for %d values", ErrArchive, len(keys), len(values))
		}
		ret := make(map[string]interface{}, len(keys))
		for i := range keys {
			k, err := this.resolve(keys[i], depth+1)
			if err != nil {
				return nil, err
			}
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("%w: non string dictionary key", ErrArchive)
			}
			val, err := this.resolve(values[i], depth+1)
			if err != nil {
				return nil, err
			}
			if val != nil {
				ret[key] = val
			}
		}
		return ret, nil
	case arrayClasses[className]:
		values, _ := m["NS.objects"].([]interface{})
		return this.resolveList(values, depth)
	case dataClasses[className]:
		return m["NS.data"], nil
	case stringClasses[className]:
		return m["NS.string"], nil
	case className == "NSDate":
		secs, ok := seconds(m["NS.time"])
		if !ok {
			return nil, fmt.Errorf("%w: NSDate without numeric NS.time", ErrArchive)
		}
		return referenceDate.Add(time.Duration(secs * float64(time.Second))), nil
	}

	ret := make(map[string]interface{}, len(m))
	for k, e := range m {
		if k == "$class" {
			continue
		}
		val, err := this.resolve(e, depth+1)
		if err != nil {
			return nil, err
		}
		if val != nil {
			ret[k] = val
		}
	}
	if classes != nil {
		ret["$classes"] = classes
	}
	return ret, nil
}

func seconds(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint64:
		return float64(t), true
	case int:
		return float64(t), true
	}
	return 0, false
}
