package ingest

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/tinytelemetry/pageinspect/internal/model"
	"github.com/tinytelemetry/pageinspect/internal/sanitize"
)

var testDecoder = NewDecoder()

func TestDecode_ConsoleLog(t *testing.T) {
	t.Parallel()

	env, err := testDecoder.Decode([]byte(`{"type":"console-log","sessionId":"tab-7","payload":{
		"id":"l1","timestamp":1700000000123.9,"level":"warn","message":"x",
		"args":[1,{"__kind":"undefined"},{"a":[1,2]}],"source":"app.js:10:4","context":"page"}}`))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if env.Type != model.MessageConsoleLog || env.SessionID != "tab-7" {
		t.Fatalf("envelope = %+v", env)
	}
	log := env.Log
	if log == nil {
		t.Fatal("expected log payload")
	}
	if log.ID != "l1" || log.Level != "warn" || log.Context != "page" {
		t.Fatalf("log payload = %+v", log)
	}
	if log.Timestamp != 1700000000123 {
		t.Fatalf("timestamp = %d, want 1700000000123", log.Timestamp)
	}
	if log.Message == nil || *log.Message != "x" {
		t.Fatalf("message = %v", log.Message)
	}
	if len(log.Args) != 3 {
		t.Fatalf("args len = %d, want 3", len(log.Args))
	}
	if log.Args[0] != 1.0 {
		t.Fatalf("args[0] = %#v", log.Args[0])
	}
	if _, ok := log.Args[1].(sanitize.Undefined); !ok {
		t.Fatalf("args[1] = %#v, want sanitize.Undefined", log.Args[1])
	}
	raw, ok := log.Args[2].(json.RawMessage)
	if !ok || string(raw) != `{"a":[1,2]}` {
		t.Fatalf("args[2] = %#v", log.Args[2])
	}
	if log.Source == nil || log.Source.File != "app.js" || log.Source.Line != 10 || log.Source.Column != 4 {
		t.Fatalf("source = %+v", log.Source)
	}
}

func TestDecode_TaggedValues(t *testing.T) {
	t.Parallel()

	env, err := testDecoder.Decode([]byte(`{"type":"console-log","payload":{"args":[
		{"__kind":"function","name":"onClick"},
		{"__kind":"bigint","value":"900719925474099312"},
		{"__kind":"symbol","description":"token"},
		{"__kind":"number","value":"-Infinity"},
		{"__type":"Error","name":"TypeError","message":"boom","stack":"at f"},
		{"nested":{"__kind":"undefined"}}
	]}}`))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	args := env.Log.Args
	if got := args[0]; got != (sanitize.Function{Name: "onClick"}) {
		t.Fatalf("function = %#v", got)
	}
	if got := args[1]; got != (sanitize.BigInt{Digits: "900719925474099312"}) {
		t.Fatalf("bigint = %#v", got)
	}
	if got := args[2]; got != (sanitize.Symbol{Description: "token"}) {
		t.Fatalf("symbol = %#v", got)
	}
	if f, ok := args[3].(float64); !ok || !math.IsInf(f, -1) {
		t.Fatalf("number = %#v", args[3])
	}
	if got := args[4]; got != (sanitize.ErrorValue{Name: "TypeError", Message: "boom", Stack: "at f"}) {
		t.Fatalf("error = %#v", got)
	}
	nested, ok := args[5].(map[string]any)
	if !ok {
		t.Fatalf("nested = %#v, want map", args[5])
	}
	if _, ok := nested["nested"].(sanitize.Undefined); !ok {
		t.Fatalf("nested value = %#v", nested["nested"])
	}
}

func TestDecode_NetworkRequestDropsIllTypedFields(t *testing.T) {
	t.Parallel()

	env, err := testDecoder.Decode([]byte(`{"type":"network-request","payload":{
		"id":"n1","url":"https://x.dev/api","method":"POST","status":"200","duration":12.5,
		"requestHeaders":{"accept":"*/*","x-count":3},"responseBody":{"ok":true}}}`))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	req := env.Network
	if req.Status != nil {
		t.Fatalf("status = %v, want absent", *req.Status)
	}
	if req.Duration == nil || *req.Duration != 12.5 {
		t.Fatalf("duration = %v", req.Duration)
	}
	if req.RequestHeaders["x-count"] != "3" || req.RequestHeaders["accept"] != "*/*" {
		t.Fatalf("headers = %v", req.RequestHeaders)
	}
	if req.ResponseBody == nil || *req.ResponseBody != `{"ok":true}` {
		t.Fatalf("response body = %v", req.ResponseBody)
	}

	env, err = testDecoder.Decode([]byte(`{"type":"network-request","payload":{"status":404.5}}`))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if env.Network.Status != nil {
		t.Fatalf("fractional status should be dropped, got %d", *env.Network.Status)
	}
}

func TestDecode_BatchInheritsSession(t *testing.T) {
	t.Parallel()

	env, err := testDecoder.Decode([]byte(`{"type":"batch","sessionId":"tab-1","payload":[
		{"type":"console-log","payload":{"message":"a"}},
		{"type":"network-request","sessionId":"tab-2","payload":{"url":"/x"}},
		42
	]}`))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if len(env.Batch) != 3 {
		t.Fatalf("batch len = %d, want 3", len(env.Batch))
	}
	if env.Batch[0].SessionID != "tab-1" {
		t.Fatalf("inner session = %q, want tab-1", env.Batch[0].SessionID)
	}
	if env.Batch[1].SessionID != "tab-2" {
		t.Fatalf("inner session = %q, want tab-2", env.Batch[1].SessionID)
	}
	if env.Batch[2].Type != "" {
		t.Fatalf("non-object element type = %q, want empty", env.Batch[2].Type)
	}
}

func TestDecode_SettingsPatch(t *testing.T) {
	t.Parallel()

	env, err := testDecoder.Decode([]byte(`{"type":"update-settings","payload":{
		"maxLogs":3,"captureConsole":false,"contentFilter":null,"allowedLogLevels":["warn","error",7],
		"maxArgs":"ten"}}`))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	p := env.Settings
	if p.MaxLogs == nil || *p.MaxLogs != 3 {
		t.Fatalf("maxLogs = %v", p.MaxLogs)
	}
	if p.CaptureConsole == nil || *p.CaptureConsole {
		t.Fatalf("captureConsole = %v", p.CaptureConsole)
	}
	if p.ContentFilter == nil || *p.ContentFilter != "" {
		t.Fatalf("contentFilter = %v, want explicit clear", p.ContentFilter)
	}
	if p.AllowedLogLevels == nil || len(*p.AllowedLogLevels) != 2 {
		t.Fatalf("allowedLogLevels = %v", p.AllowedLogLevels)
	}
	if p.MaxArgs != nil {
		t.Fatalf("ill-typed maxArgs should be ignored, got %d", *p.MaxArgs)
	}
}

func TestDecode_ToggleAndTargets(t *testing.T) {
	t.Parallel()

	env, err := testDecoder.Decode([]byte(`{"type":"toggle-recording","payload":{"recording":false}}`))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if env.Recording == nil || *env.Recording {
		t.Fatalf("recording = %v, want false", env.Recording)
	}

	env, err = testDecoder.Decode([]byte(`{"type":"toggle-recording"}`))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if env.Recording != nil {
		t.Fatalf("recording = %v, want nil", *env.Recording)
	}

	env, err = testDecoder.Decode([]byte(`{"type":"clear-logs","payload":{"sessionId":"tab-3"}}`))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if env.Target != "tab-3" {
		t.Fatalf("target = %q, want tab-3", env.Target)
	}
}

func TestDecode_Malformed(t *testing.T) {
	t.Parallel()

	for _, input := range []string{`not json`, `[1,2]`, `{"payload":{}}`, ``} {
		if _, err := testDecoder.Decode([]byte(input)); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Decode(%q) error = %v, want ErrMalformed", input, err)
		}
	}
}

func TestDecode_UnknownTypeIsNotMalformed(t *testing.T) {
	t.Parallel()

	env, err := testDecoder.Decode([]byte(`{"type":"teleport"}`))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if env.Type != "teleport" {
		t.Fatalf("type = %q", env.Type)
	}
}

func TestDecode_HugeNumbersSaturate(t *testing.T) {
	t.Parallel()

	env, err := testDecoder.Decode([]byte(`{"type":"update-settings","payload":{
		"maxLogs":1e20,"maxArgs":-1e20,"maxNetworkRequests":1e400}}`))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	p := env.Settings
	if p.MaxLogs == nil || *p.MaxLogs != math.MaxInt32 {
		t.Fatalf("maxLogs = %v, want saturated to MaxInt32", p.MaxLogs)
	}
	if p.MaxArgs == nil || *p.MaxArgs != math.MinInt32 {
		t.Fatalf("maxArgs = %v, want saturated to MinInt32", p.MaxArgs)
	}
	if p.MaxNetworkRequests == nil || *p.MaxNetworkRequests != math.MaxInt32 {
		t.Fatalf("maxNetworkRequests = %v, want saturated to MaxInt32", p.MaxNetworkRequests)
	}

	env, err = testDecoder.Decode([]byte(`{"type":"network-request","payload":{"status":1e300,"timestamp":1e300}}`))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if env.Network.Status != nil {
		t.Fatalf("out-of-range status should be dropped, got %d", *env.Network.Status)
	}
	if env.Network.Timestamp != 0 {
		t.Fatalf("out-of-range timestamp = %d, want 0", env.Network.Timestamp)
	}

	env, err = testDecoder.Decode([]byte(`{"type":"console-log","payload":{"source":{"file":"a.js","line":1e30,"column":"99999999999"}}}`))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if src := env.Log.Source; src == nil || src.Line != math.MaxInt32 || src.Column != math.MaxInt32 {
		t.Fatalf("source = %+v, want saturated line and column", env.Log.Source)
	}
}
