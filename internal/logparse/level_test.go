package logparse

import (
	"testing"

	"github.com/tinytelemetry/pageinspect/internal/model"
)

func TestNormalizeLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected model.Level
	}{
		// Console methods
		{"log", model.LevelLog}, {"info", model.LevelInfo}, {"warn", model.LevelWarn},
		{"error", model.LevelError}, {"debug", model.LevelDebug}, {"trace", model.LevelTrace},
		{"table", model.LevelLog}, {"assert", model.LevelError},
		// Domain tags
		{"ui", model.LevelUI}, {"db", model.LevelDB}, {"api", model.LevelAPI},
		// Variants
		{"WARNING", model.LevelWarn}, {"ERR", model.LevelError}, {"information", model.LevelInfo},
		{"fatal", model.LevelError}, {"verbose", model.LevelDebug},
		// Prefix matching
		{"WARNING_LEVEL", model.LevelWarn}, {"ERROR_CODE_42", model.LevelError},
		// Unknown defaults to log
		{"", model.LevelLog}, {"UNKNOWN", model.LevelLog}, {"foo", model.LevelLog},
		// Whitespace
		{"  INFO  ", model.LevelInfo}, {"\twarn\t", model.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := NormalizeLevel(tt.input)
			if got != tt.expected {
				t.Errorf("NormalizeLevel(%q) = %q, want %q", tt.input, got, tt.expected)
			}
			if !got.IsKnown() {
				t.Errorf("NormalizeLevel(%q) = %q is not a known level", tt.input, got)
			}
		})
	}
}

func TestNormalizeLevels_DedupesAndDropsBlanks(t *testing.T) {
	got := NormalizeLevels([]string{"ERROR", "err", "", "  ", "Warning"})
	want := []string{"error", "warn"}
	if len(got) != len(want) {
		t.Fatalf("NormalizeLevels = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("NormalizeLevels[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if NormalizeLevels(nil) != nil {
		t.Fatal("NormalizeLevels(nil) should be nil")
	}
}

func TestParseSource(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		file   string
		line   int
		column int
	}{
		{"file line column", "app.js:10:4", "app.js", 10, 4},
		{"file line", "app.js:10", "app.js", 10, 0},
		{"url", "https://example.com/static/main.js:120:17", "https://example.com/static/main.js", 120, 17},
		{"stack frame", "at render (https://x.dev/app.js:3:9)", "https://x.dev/app.js", 3, 9},
		{"no position", "inline-script", "inline-script", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc := ParseSource(tt.input)
			if loc == nil {
				t.Fatalf("ParseSource(%q) = nil", tt.input)
			}
			if loc.File != tt.file || loc.Line != tt.line || loc.Column != tt.column {
				t.Errorf("ParseSource(%q) = %+v, want file=%q line=%d column=%d", tt.input, loc, tt.file, tt.line, tt.column)
			}
			if loc.Raw != tt.input {
				t.Errorf("Raw = %q, want %q", loc.Raw, tt.input)
			}
		})
	}

	if ParseSource("   ") != nil {
		t.Error("ParseSource(blank) should be nil")
	}
}
