// Package ingest decodes inbound envelopes and frames line-oriented input
// into complete envelope documents.
package ingest

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/valyala/fastjson"

	"github.com/tinytelemetry/pageinspect/internal/logparse"
	"github.com/tinytelemetry/pageinspect/internal/model"
)

// maxStatus is the largest HTTP status accepted; larger numbers are ignored.
const maxStatus = 999

// ErrMalformed marks input that is not a decodable envelope.
var ErrMalformed = errors.New("malformed envelope")

// Decoder turns raw envelope JSON into model.Envelope values. It is safe for
// concurrent use.
type Decoder struct {
	parsers fastjson.ParserPool
}

// NewDecoder creates a decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode parses one envelope document. Unknown message types are not an
// error here; they decode with their type name and are rejected by the
// dispatcher.
func (d *Decoder) Decode(data []byte) (model.Envelope, error) {
	p := d.parsers.Get()
	defer d.parsers.Put(p)

	v, err := p.ParseBytes(data)
	if err != nil {
		return model.Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if v.Type() != fastjson.TypeObject {
		return model.Envelope{}, fmt.Errorf("%w: expected object, got %s", ErrMalformed, v.Type())
	}

	env := decodeEnvelope(v, "")
	if env.Type == "" {
		return model.Envelope{}, fmt.Errorf("%w: missing message type", ErrMalformed)
	}
	return env, nil
}

// decodeEnvelope never fails. Inner batch elements that are not objects
// decode to an envelope with an empty type.
func decodeEnvelope(v *fastjson.Value, parentSession string) model.Envelope {
	if v.Type() != fastjson.TypeObject {
		return model.Envelope{SessionID: parentSession}
	}

	env := model.Envelope{
		Type:      model.MessageType(stringField(v, "type")),
		SessionID: stringField(v, "sessionId"),
	}
	if env.SessionID == "" {
		env.SessionID = parentSession
	}

	payload := v.Get("payload")
	switch env.Type {
	case model.MessageBatch:
		items := payload
		if items == nil {
			items = v.Get("messages")
		}
		if items != nil && items.Type() == fastjson.TypeArray {
			arr, _ := items.Array()
			env.Batch = make([]model.Envelope, 0, len(arr))
			for _, item := range arr {
				env.Batch = append(env.Batch, decodeEnvelope(item, env.SessionID))
			}
		}
	case model.MessageConsoleLog:
		env.Log = decodeLog(payload)
	case model.MessageNetworkRequest:
		env.Network = decodeNetwork(payload)
	case model.MessageUpdateSettings:
		env.Settings = decodeSettingsPatch(payload)
	case model.MessageToggleRecording:
		if b := payloadField(payload, "recording"); b != nil {
			switch b.Type() {
			case fastjson.TypeTrue:
				env.Recording = boolPtr(true)
			case fastjson.TypeFalse:
				env.Recording = boolPtr(false)
			}
		}
	case model.MessageGetState, model.MessageClearLogs, model.MessageClearNetwork,
		model.MessageNavigationStarted, model.MessageSessionEnded:
		if payload != nil && payload.Type() == fastjson.TypeObject {
			env.Target = stringField(payload, "sessionId")
		}
	}
	return env
}

func decodeLog(v *fastjson.Value) *model.LogPayload {
	out := &model.LogPayload{}
	if v == nil || v.Type() != fastjson.TypeObject {
		return out
	}

	out.ID = stringField(v, "id")
	out.Timestamp = millisField(v, "timestamp")
	out.Level = stringField(v, "level")
	out.Context = stringField(v, "context")
	out.SessionID = stringField(v, "sessionId")

	if m := v.Get("message"); m != nil && m.Type() != fastjson.TypeNull {
		msg := textOf(m)
		out.Message = &msg
	}

	if args := v.Get("args"); args != nil && args.Type() == fastjson.TypeArray {
		arr, _ := args.Array()
		out.Args = make([]any, 0, len(arr))
		for _, a := range arr {
			out.Args = append(out.Args, toValue(a))
		}
	}

	if src := v.Get("source"); src != nil {
		switch src.Type() {
		case fastjson.TypeString:
			out.Source = logparse.ParseSource(string(src.GetStringBytes()))
		case fastjson.TypeObject:
			loc := &model.SourceLocation{
				File:   stringField(src, "file"),
				Line:   intField(src, "line"),
				Column: intField(src, "column"),
				Raw:    stringField(src, "raw"),
			}
			if loc.File == "" && loc.Raw != "" {
				loc = logparse.ParseSource(loc.Raw)
			}
			if loc != nil && (loc.File != "" || loc.Raw != "") {
				out.Source = loc
			}
		}
	}
	return out
}

func decodeNetwork(v *fastjson.Value) *model.NetworkPayload {
	out := &model.NetworkPayload{}
	if v == nil || v.Type() != fastjson.TypeObject {
		return out
	}

	out.ID = stringField(v, "id")
	out.Timestamp = millisField(v, "timestamp")
	out.URL = stringField(v, "url")
	out.Method = stringField(v, "method")
	out.SessionID = stringField(v, "sessionId")
	out.RequestHeaders = headersField(v, "requestHeaders")
	out.ResponseHeaders = headersField(v, "responseHeaders")

	if s := v.Get("status"); s != nil && s.Type() == fastjson.TypeNumber {
		f := s.GetFloat64()
		if f == math.Trunc(f) && f >= 0 && f <= maxStatus {
			status := int(f)
			out.Status = &status
		}
	}
	if d := v.Get("duration"); d != nil && d.Type() == fastjson.TypeNumber {
		f := d.GetFloat64()
		if !math.IsNaN(f) && !math.IsInf(f, 0) {
			out.Duration = &f
		}
	}
	if b := v.Get("requestBody"); b != nil && b.Type() != fastjson.TypeNull {
		body := textOf(b)
		out.RequestBody = &body
	}
	if b := v.Get("responseBody"); b != nil && b.Type() != fastjson.TypeNull {
		body := textOf(b)
		out.ResponseBody = &body
	}
	return out
}

// decodeSettingsPatch keeps only well-typed fields. An explicit null on a
// filter field clears it.
func decodeSettingsPatch(v *fastjson.Value) *model.SettingsPatch {
	patch := &model.SettingsPatch{}
	if v == nil || v.Type() != fastjson.TypeObject {
		return patch
	}

	bools := map[string]**bool{
		"captureConsole":    &patch.CaptureConsole,
		"captureNetwork":    &patch.CaptureNetwork,
		"networkMonitoring": &patch.NetworkMonitoring,
		"persistState":      &patch.PersistState,
		"archiveEnabled":    &patch.ArchiveEnabled,
	}
	for key, dst := range bools {
		if f := v.Get(key); f != nil {
			switch f.Type() {
			case fastjson.TypeTrue:
				*dst = boolPtr(true)
			case fastjson.TypeFalse:
				*dst = boolPtr(false)
			}
		}
	}

	ints := map[string]**int{
		"maxLogs":                    &patch.MaxLogs,
		"maxNetworkRequests":         &patch.MaxNetworkRequests,
		"maxMessageChars":            &patch.MaxMessageChars,
		"maxArgChars":                &patch.MaxArgChars,
		"maxArgs":                    &patch.MaxArgs,
		"maxArchivedLogs":            &patch.MaxArchivedLogs,
		"maxArchivedNetworkRequests": &patch.MaxArchivedNetworkRequests,
	}
	for key, dst := range ints {
		if f := v.Get(key); f != nil && f.Type() == fastjson.TypeNumber {
			n := f.GetFloat64()
			if math.IsNaN(n) {
				continue
			}
			i := saturateInt(n)
			*dst = &i
		}
	}

	strs := map[string]**string{
		"contentFilter": &patch.ContentFilter,
		"sourceFilter":  &patch.SourceFilter,
	}
	for key, dst := range strs {
		f := v.Get(key)
		if f == nil {
			continue
		}
		switch f.Type() {
		case fastjson.TypeString:
			s := string(f.GetStringBytes())
			*dst = &s
		case fastjson.TypeNull:
			empty := ""
			*dst = &empty
		}
	}

	if f := v.Get("allowedLogLevels"); f != nil {
		switch f.Type() {
		case fastjson.TypeArray:
			arr, _ := f.Array()
			levels := make([]string, 0, len(arr))
			for _, item := range arr {
				if item.Type() == fastjson.TypeString {
					levels = append(levels, string(item.GetStringBytes()))
				}
			}
			patch.AllowedLogLevels = &levels
		case fastjson.TypeNull:
			var none []string
			patch.AllowedLogLevels = &none
		}
	}
	return patch
}

func payloadField(payload *fastjson.Value, key string) *fastjson.Value {
	if payload == nil || payload.Type() != fastjson.TypeObject {
		return nil
	}
	return payload.Get(key)
}

func stringField(v *fastjson.Value, key string) string {
	f := v.Get(key)
	if f == nil || f.Type() != fastjson.TypeString {
		return ""
	}
	return string(f.GetStringBytes())
}

func intField(v *fastjson.Value, key string) int {
	f := v.Get(key)
	if f == nil {
		return 0
	}
	switch f.Type() {
	case fastjson.TypeNumber:
		n := f.GetFloat64()
		if math.IsNaN(n) {
			return 0
		}
		return saturateInt(n)
	case fastjson.TypeString:
		n, err := strconv.ParseInt(string(f.GetStringBytes()), 10, 32)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return 0
		}
		return int(n)
	}
	return 0
}

// saturateInt truncates n toward zero and pins it to the int32 range.
func saturateInt(n float64) int {
	switch {
	case n >= math.MaxInt32:
		return math.MaxInt32
	case n <= math.MinInt32:
		return math.MinInt32
	}
	return int(math.Trunc(n))
}

// millisField reads an epoch-milliseconds timestamp; fractional values are
// truncated and anything else yields 0.
func millisField(v *fastjson.Value, key string) int64 {
	f := v.Get(key)
	if f == nil || f.Type() != fastjson.TypeNumber {
		return 0
	}
	n := f.GetFloat64()
	if math.IsNaN(n) || n < 0 || n >= math.MaxInt64 {
		return 0
	}
	return int64(n)
}

func headersField(v *fastjson.Value, key string) map[string]string {
	f := v.Get(key)
	if f == nil || f.Type() != fastjson.TypeObject {
		return nil
	}
	obj, _ := f.Object()
	out := make(map[string]string, obj.Len())
	obj.Visit(func(k []byte, val *fastjson.Value) {
		if val.Type() == fastjson.TypeNull {
			return
		}
		out[string(k)] = textOf(val)
	})
	return out
}

// textOf returns a string's contents, or the JSON text of any other value.
func textOf(v *fastjson.Value) string {
	if v.Type() == fastjson.TypeString {
		return string(v.GetStringBytes())
	}
	return string(v.MarshalTo(nil))
}

func boolPtr(b bool) *bool { return &b }
