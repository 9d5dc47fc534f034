package engine

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/dop251/goja"
)

// Value is an opaque reference into the engine VM. It stays foreign until
// converted with Plain, and it must be converted before the session that
// produced it is destroyed.
type Value struct {
	rt *Runtime
	v  goja.Value
}

// IsNil reports whether the value is absent (nil, undefined, or null).
func (v Value) IsNil() bool {
	return v.v == nil || goja.IsUndefined(v.v) || goja.IsNull(v.v)
}

// Plain deep-converts the engine value into plain Go data: engine maps
// become map[string]interface{}, engine lists become []interface{}, engine
// path objects become their absolute path strings, scalars pass through.
// Anything unrecognized is converted to its string representation, a
// deliberate lossy fallback, not a bug.
func (v Value) Plain() interface{} {
	if v.IsNil() {
		return nil
	}
	return v.rt.toPlain(v.v)
}

func (rt *Runtime) toPlain(v goja.Value) interface{} {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}

	if obj, ok := v.(*goja.Object); ok {
		if p, ok := rt.api.pathString(obj); ok {
			return p
		}
		switch obj.ClassName() {
		case "Array":
			n := obj.Get("length").ToInteger()
			out := make([]interface{}, 0, n)
			for i := int64(0); i < n; i++ {
				out = append(out, rt.toPlain(obj.Get(strconv.FormatInt(i, 10))))
			}
			return out
		case "Object":
			out := make(map[string]interface{})
			for _, key := range obj.Keys() {
				out[key] = rt.toPlain(obj.Get(key))
			}
			return out
		default:
			// Functions, dates, errors: string fallback.
			return v.String()
		}
	}

	switch exported := v.Export().(type) {
	case string:
		return exported
	case bool:
		return exported
	case int64:
		return exported
	case float64:
		return exported
	default:
		return fmt.Sprint(exported)
	}
}

// toEngine converts a host value into something the engine can consume:
// maps become engine maps, slices become engine lists, values declared as
// paths become strings, scalars pass through.
func (s *Session) toEngine(value interface{}, declaredType string) (goja.Value, error) {
	vm := s.rt.vm

	switch v := value.(type) {
	case nil:
		return goja.Null(), nil
	case string, bool, int, int32, int64, float32, float64:
		return vm.ToValue(v), nil
	case map[string]interface{}:
		obj := vm.NewObject()
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			converted, err := s.toEngine(v[k], "")
			if err != nil {
				return nil, err
			}
			if err := obj.Set(k, converted); err != nil {
				return nil, err
			}
		}
		return obj, nil
	case []interface{}:
		items := make([]interface{}, 0, len(v))
		for _, item := range v {
			converted, err := s.toEngine(item, declaredType)
			if err != nil {
				return nil, err
			}
			items = append(items, converted)
		}
		return vm.NewArray(items...), nil
	case []string:
		items := make([]interface{}, 0, len(v))
		for _, item := range v {
			items = append(items, vm.ToValue(item))
		}
		return vm.NewArray(items...), nil
	default:
		if declaredType == "path" {
			return vm.ToValue(fmt.Sprint(v)), nil
		}
		return vm.ToValue(v), nil
	}
}
