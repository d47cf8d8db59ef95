package sanitize

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strings"
	"time"

	"github.com/tinytelemetry/pageinspect/internal/model"
)

type refKey struct {
	ptr uintptr
	typ reflect.Type
}

// walker converts arbitrary Go values into a tree of JSON-safe values.
// Every map, non-empty slice and pointer is remembered in seen; meeting one
// again yields CircularMarker.
type walker struct {
	seen map[refKey]bool
}

// Stringify serializes v to JSON with reference-cycle protection and the
// same special-value conversions Arg applies at the top level.
func Stringify(v any) (s string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sanitize: stringify %T: %v", v, r)
		}
	}()

	w := &walker{seen: make(map[refKey]bool)}
	tree := w.walk(reflect.ValueOf(v))
	data, err := json.Marshal(tree)
	if err != nil {
		return "", fmt.Errorf("sanitize: marshal %T: %w", v, err)
	}
	return string(data), nil
}

func (w *walker) visit(rv reflect.Value) bool {
	key := refKey{ptr: rv.Pointer(), typ: rv.Type()}
	if key.ptr == 0 {
		return true
	}
	if w.seen[key] {
		return false
	}
	w.seen[key] = true
	return true
}

func (w *walker) walk(rv reflect.Value) any {
	if !rv.IsValid() {
		return nil
	}
	if special, ok := w.special(rv); ok {
		return special
	}

	switch rv.Kind() {
	case reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return w.walk(rv.Elem())
	case reflect.Ptr:
		if rv.IsNil() {
			return nil
		}
		if !w.visit(rv) {
			return CircularMarker
		}
		return w.walk(rv.Elem())
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		if !w.visit(rv) {
			return CircularMarker
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[mapKey(iter.Key())] = w.walk(iter.Value())
		}
		return out
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return rv.Bytes()
		}
		if rv.Len() > 0 && !w.visit(rv) {
			return CircularMarker
		}
		return w.list(rv)
	case reflect.Array:
		return w.list(rv)
	case reflect.Struct:
		return w.object(rv)
	case reflect.Func:
		return functionLabel(funcName(rv))
	case reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return fmt.Sprintf("[%s]", rv.Type())
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nonFinite(f)
		}
		return f
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint()
	case reflect.String:
		return rv.String()
	default:
		return fmt.Sprintf("[%s]", rv.Type())
	}
}

// special handles values whose JSON form is not their structural form.
func (w *walker) special(rv reflect.Value) (any, bool) {
	if !rv.CanInterface() {
		return nil, false
	}
	if rv.Kind() == reflect.Ptr && rv.IsNil() {
		return nil, false
	}
	switch x := rv.Interface().(type) {
	case Undefined, *Undefined:
		return nil, true
	case Function:
		return functionLabel(x.Name), true
	case BigInt:
		return x.Digits + "n", true
	case *big.Int:
		return x.String() + "n", true
	case Symbol:
		return "Symbol(" + x.Description + ")", true
	case ErrorValue:
		return serializeError(x, 0), true
	case model.Value:
		return x, true
	case json.RawMessage:
		if json.Valid(x) {
			return x, true
		}
		return string(x), true
	case time.Time:
		return x, true
	case error:
		return serializeError(ErrorValue{Name: errorName(x), Message: x.Error()}, 0), true
	}
	return nil, false
}

func (w *walker) list(rv reflect.Value) []any {
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = w.walk(rv.Index(i))
	}
	return out
}

func (w *walker) object(rv reflect.Value) map[string]any {
	t := rv.Type()
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		if tag, ok := field.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		out[name] = w.walk(rv.Field(i))
	}
	return out
}

func mapKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	if k.CanInterface() {
		return fmt.Sprint(k.Interface())
	}
	return k.String()
}
