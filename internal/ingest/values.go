package ingest

import (
	"encoding/json"
	"math"

	"github.com/valyala/fastjson"

	"github.com/tinytelemetry/pageinspect/internal/sanitize"
)

const (
	kindKey = "__kind"
	typeKey = "__type"
)

// toValue converts one decoded argument into the Go value the sanitizer
// expects. Tagged objects become sanitize wire types; plain objects and
// arrays without tags anywhere inside stay as raw JSON so key order survives.
func toValue(v *fastjson.Value) any {
	switch v.Type() {
	case fastjson.TypeNull:
		return nil
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeFalse:
		return false
	case fastjson.TypeNumber:
		return v.GetFloat64()
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	case fastjson.TypeArray:
		if !hasTags(v) {
			return json.RawMessage(v.MarshalTo(nil))
		}
		arr, _ := v.Array()
		out := make([]any, len(arr))
		for i, item := range arr {
			out[i] = toValue(item)
		}
		return out
	case fastjson.TypeObject:
		if tagged, ok := taggedValue(v); ok {
			return tagged
		}
		if !hasTags(v) {
			return json.RawMessage(v.MarshalTo(nil))
		}
		obj, _ := v.Object()
		out := make(map[string]any, obj.Len())
		obj.Visit(func(k []byte, item *fastjson.Value) {
			out[string(k)] = toValue(item)
		})
		return out
	}
	return nil
}

func taggedValue(v *fastjson.Value) (any, bool) {
	if string(v.GetStringBytes(typeKey)) == "Error" {
		return sanitize.ErrorValue{
			Name:    string(v.GetStringBytes("name")),
			Message: string(v.GetStringBytes("message")),
			Stack:   string(v.GetStringBytes("stack")),
		}, true
	}

	switch string(v.GetStringBytes(kindKey)) {
	case "undefined":
		return sanitize.Undefined{}, true
	case "function":
		return sanitize.Function{Name: string(v.GetStringBytes("name"))}, true
	case "bigint":
		if f := v.Get("value"); f != nil {
			return sanitize.BigInt{Digits: textOf(f)}, true
		}
		return sanitize.BigInt{Digits: "0"}, true
	case "symbol":
		return sanitize.Symbol{Description: string(v.GetStringBytes("description"))}, true
	case "number":
		switch string(v.GetStringBytes("value")) {
		case "NaN":
			return math.NaN(), true
		case "Infinity":
			return math.Inf(1), true
		case "-Infinity":
			return math.Inf(-1), true
		}
	}
	return nil, false
}

func hasTags(v *fastjson.Value) bool {
	switch v.Type() {
	case fastjson.TypeArray:
		arr, _ := v.Array()
		for _, item := range arr {
			if hasTags(item) {
				return true
			}
		}
	case fastjson.TypeObject:
		if _, ok := taggedValue(v); ok {
			return true
		}
		found := false
		obj, _ := v.Object()
		obj.Visit(func(_ []byte, item *fastjson.Value) {
			if !found && hasTags(item) {
				found = true
			}
		})
		return found
	}
	return false
}
