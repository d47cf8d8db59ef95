package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// ValueKind tags the variant held by a Value.
type ValueKind string

const (
	KindNull      ValueKind = "null"
	KindUndefined ValueKind = "undefined"
	KindNumber    ValueKind = "number"
	KindString    ValueKind = "string"
	KindBool      ValueKind = "bool"
	KindError     ValueKind = "error"
	KindOther     ValueKind = "other"
)

// ErrorTypeTag is the __type marker of a serialized error.
const ErrorTypeTag = "Error"

// SerializedError is the JSON-safe projection of an error-like value.
type SerializedError struct {
	Type    string `json:"__type"`
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// Value is a sanitized console argument. Exactly one payload field is
// meaningful, selected by Kind.
type Value struct {
	Kind ValueKind
	Num  float64
	Str  string
	Bool bool
	Err  *SerializedError
	Raw  json.RawMessage // KindOther: serialized object or array
}

func NullValue() Value            { return Value{Kind: KindNull} }
func UndefinedValue() Value       { return Value{Kind: KindUndefined} }
func NumberValue(f float64) Value { return Value{Kind: KindNumber, Num: f} }
func StringValue(s string) Value  { return Value{Kind: KindString, Str: s} }
func BoolValue(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func OtherValue(raw []byte) Value { return Value{Kind: KindOther, Raw: json.RawMessage(raw)} }
func ErrValue(e SerializedError) Value {
	e.Type = ErrorTypeTag
	return Value{Kind: KindError, Err: &e}
}

// Display renders v the way the inspector shows it in a log line.
func (v Value) Display() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindUndefined:
		return "undefined"
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case KindString:
		return v.Str
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindError:
		if v.Err == nil {
			return "Error"
		}
		if v.Err.Message == "" {
			return v.Err.Name
		}
		return v.Err.Name + ": " + v.Err.Message
	case KindOther:
		return string(v.Raw)
	default:
		return ""
	}
}

// Clone returns a copy that shares no mutable memory with v.
func (v Value) Clone() Value {
	out := v
	if v.Err != nil {
		e := *v.Err
		out.Err = &e
	}
	if v.Raw != nil {
		out.Raw = append(json.RawMessage(nil), v.Raw...)
	}
	return out
}

// MarshalJSON emits the JSON-safe form. Undefined becomes the string
// "undefined"; non-finite numbers never reach here but are stringified
// defensively so encoding cannot fail.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNull, "":
		return []byte("null"), nil
	case KindUndefined:
		return []byte(`"undefined"`), nil
	case KindNumber:
		if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
			return json.Marshal(strconv.FormatFloat(v.Num, 'g', -1, 64))
		}
		return json.Marshal(v.Num)
	case KindString:
		return json.Marshal(v.Str)
	case KindBool:
		return json.Marshal(v.Bool)
	case KindError:
		if v.Err == nil {
			return json.Marshal(SerializedError{Type: ErrorTypeTag, Name: "Error"})
		}
		return json.Marshal(v.Err)
	case KindOther:
		if len(v.Raw) == 0 || !json.Valid(v.Raw) {
			return json.Marshal(string(v.Raw))
		}
		return v.Raw, nil
	default:
		return json.Marshal(v.Str)
	}
}

// UnmarshalJSON restores a Value from its JSON-safe form (used when
// rehydrating persisted state).
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*v = NullValue()
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
	case '{':
		var probe struct {
			Type string `json:"__type"`
		}
		if err := json.Unmarshal(trimmed, &probe); err == nil && probe.Type == ErrorTypeTag {
			var e SerializedError
			if err := json.Unmarshal(trimmed, &e); err != nil {
				return err
			}
			*v = ErrValue(e)
			return nil
		}
		*v = OtherValue(append([]byte(nil), trimmed...))
	case '[':
		*v = OtherValue(append([]byte(nil), trimmed...))
	default:
		var f float64
		if err := json.Unmarshal(trimmed, &f); err != nil {
			return err
		}
		*v = NumberValue(f)
	}
	return nil
}
