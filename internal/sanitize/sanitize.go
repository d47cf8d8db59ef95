package sanitize

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tinytelemetry/pageinspect/internal/model"
)

// Sanitize converts captured arguments into bounded, JSON-safe values.
// When the list is longer than opts.MaxArgs it is cut and a sentinel string
// noting the number of dropped arguments is appended.
func Sanitize(raw []any, opts Options) []model.Value {
	args := raw
	dropped := 0
	if opts.MaxArgs > 0 && len(raw) > opts.MaxArgs {
		args = raw[:opts.MaxArgs]
		dropped = len(raw) - opts.MaxArgs
	}

	out := make([]model.Value, 0, len(args)+1)
	for _, a := range args {
		out = append(out, Arg(a, opts.MaxArgChars))
	}
	if dropped > 0 {
		out = append(out, model.StringValue(fmt.Sprintf("…(%d more arguments)", dropped)))
	}
	return out
}

// Arg sanitizes a single value. It never panics: any internal failure falls
// back to the value's plain string form, truncated to maxChars.
func Arg(v any, maxChars int) (out model.Value) {
	defer func() {
		if r := recover(); r != nil {
			out = model.StringValue(Truncate(coerce(v), maxChars))
		}
	}()

	switch x := v.(type) {
	case nil:
		return model.NullValue()
	case model.Value:
		return x.Clone()
	case Undefined, *Undefined:
		return model.UndefinedValue()
	case bool:
		return model.BoolValue(x)
	case string:
		return model.StringValue(Truncate(x, maxChars))
	case float64:
		return number(x, maxChars)
	case float32:
		return number(float64(x), maxChars)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return model.StringValue(Truncate(x.String(), maxChars))
		}
		return number(f, maxChars)
	case *big.Int:
		if x == nil {
			return model.NullValue()
		}
		return model.StringValue(Truncate(x.String()+"n", maxChars))
	case BigInt:
		return model.StringValue(Truncate(x.Digits+"n", maxChars))
	case Function:
		return model.StringValue(Truncate(functionLabel(x.Name), maxChars))
	case Symbol:
		return model.StringValue(Truncate("Symbol("+x.Description+")", maxChars))
	case ErrorValue:
		return model.ErrValue(serializeError(x, maxChars))
	case error:
		return model.ErrValue(serializeError(ErrorValue{Name: errorName(x), Message: x.Error()}, maxChars))
	case json.RawMessage:
		if !json.Valid(x) {
			return model.StringValue(Truncate(string(x), maxChars))
		}
		return object(string(x), maxChars)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return model.NumberValue(float64(rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return model.NumberValue(float64(rv.Uint()))
	case reflect.Float32, reflect.Float64:
		return number(rv.Float(), maxChars)
	case reflect.Bool:
		return model.BoolValue(rv.Bool())
	case reflect.String:
		return model.StringValue(Truncate(rv.String(), maxChars))
	case reflect.Func:
		return model.StringValue(Truncate(functionLabel(funcName(rv)), maxChars))
	case reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return model.StringValue(Truncate(coerce(v), maxChars))
	}

	s, err := Stringify(v)
	if err != nil {
		return model.StringValue(Truncate(coerce(v), maxChars))
	}
	return object(s, maxChars)
}

// object keeps serialized JSON as a structured value while it fits, and
// degrades it to a truncated string once it does not.
func object(s string, maxChars int) model.Value {
	if maxChars > 0 && utf8.RuneCountInString(s) > maxChars {
		return model.StringValue(Truncate(s, maxChars))
	}
	return model.OtherValue([]byte(s))
}

func number(f float64, maxChars int) model.Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return model.StringValue(Truncate(nonFinite(f), maxChars))
	}
	return model.NumberValue(f)
}

func nonFinite(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	default:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
}

func serializeError(e ErrorValue, maxChars int) model.SerializedError {
	name := e.Name
	if name == "" {
		name = "Error"
	}
	return model.SerializedError{
		Type:    model.ErrorTypeTag,
		Name:    Truncate(name, maxChars),
		Message: Truncate(e.Message, maxChars),
		Stack:   Truncate(e.Stack, maxChars),
	}
}

// errorName derives a display name from the concrete error type: exported
// types ending in "Error" keep their name, everything else is "Error".
func errorName(err error) string {
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	name := t.Name()
	if strings.HasSuffix(name, "Error") && name[0] >= 'A' && name[0] <= 'Z' {
		return name
	}
	return "Error"
}

func functionLabel(name string) string {
	if name == "" {
		name = anonymousFunction
	}
	return "[Function: " + name + "]"
}

// funcName returns the short name of a Go function value, or "" for
// closures, which have no name of their own.
func funcName(rv reflect.Value) string {
	if rv.IsNil() {
		return ""
	}
	fn := runtime.FuncForPC(rv.Pointer())
	if fn == nil {
		return ""
	}
	full := fn.Name()
	if i := strings.LastIndex(full, "/"); i >= 0 {
		full = full[i+1:]
	}
	parts := strings.Split(full, ".")
	last := strings.TrimSuffix(parts[len(parts)-1], "-fm")
	if strings.HasPrefix(last, "func") {
		if _, err := strconv.Atoi(strings.TrimPrefix(last, "func")); err == nil {
			return ""
		}
	}
	return last
}

// coerce is the last-resort string form. Composite values are never
// printed recursively, so a cyclic value cannot blow the stack here.
func coerce(v any) string {
	if v == nil {
		return "null"
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Ptr, reflect.Interface:
		return fmt.Sprintf("[object %T]", v)
	}
	return fmt.Sprint(v)
}
