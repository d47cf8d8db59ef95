package ingest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/tinytelemetry/pageinspect/internal/model"
)

type recordingDispatcher struct {
	docs    []string
	origins []string
}

func (d *recordingDispatcher) HandleRaw(_ context.Context, data []byte, origin string) model.Response {
	d.docs = append(d.docs, string(data))
	d.origins = append(d.origins, origin)
	return model.Response{OK: true}
}

func TestProcessor_SingleLineDocuments(t *testing.T) {
	t.Parallel()

	d := &recordingDispatcher{}
	p := NewProcessor(d, nil)

	res := p.ProcessEnvelope(context.Background(), model.IngestEnvelope{Source: "tcp", Line: `{"type":"get-state"}`})
	if res == nil || !res.Response.OK {
		t.Fatalf("result = %+v", res)
	}
	if p.ProcessEnvelope(context.Background(), model.IngestEnvelope{Source: "tcp", Line: "   "}) != nil {
		t.Fatal("blank line should produce no result")
	}
	if len(d.docs) != 1 || d.origins[0] != "tcp" {
		t.Fatalf("dispatched = %v from %v", d.docs, d.origins)
	}
}

func TestProcessor_MultiLinePerSource(t *testing.T) {
	t.Parallel()

	d := &recordingDispatcher{}
	p := NewProcessor(d, nil)
	ctx := context.Background()

	lines := []model.IngestEnvelope{
		{Source: "stdin", Line: "{"},
		{Source: "tcp", Line: `{"type":"clear-all"}`},
		{Source: "stdin", Line: `  "type": "console-log",`},
		{Source: "stdin", Line: `  "payload": {"message": "a }"}`},
		{Source: "stdin", Line: "}"},
	}
	var results []*ProcessResult
	for _, line := range lines {
		if res := p.ProcessEnvelope(ctx, line); res != nil {
			results = append(results, res)
		}
	}

	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if d.docs[0] != `{"type":"clear-all"}` {
		t.Fatalf("first doc = %q", d.docs[0])
	}
	if results[1].Source != "stdin" {
		t.Fatalf("second source = %q, want stdin", results[1].Source)
	}
	if _, err := testDecoder.Decode([]byte(d.docs[1])); err != nil {
		t.Fatalf("accumulated doc does not decode: %v\n%s", err, d.docs[1])
	}
}

func TestProcessor_RunStopsWhenChannelCloses(t *testing.T) {
	t.Parallel()

	d := &recordingDispatcher{}
	p := NewProcessor(d, nil)
	lines := make(chan model.IngestEnvelope, 2)
	lines <- model.IngestEnvelope{Source: "stdin", Line: `{"type":"get-state"}`}
	close(lines)

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background(), lines) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after channel close")
	}
	if len(d.docs) != 1 {
		t.Fatalf("dispatched = %d, want 1", len(d.docs))
	}
}

func TestCountJSONDepth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line string
		want int
	}{
		{`{`, 1},
		{`{"a": "}"}`, 0},
		{`"x\"{"`, 0},
		{`[{`, 2},
		{`}]`, -2},
	}
	for _, tt := range tests {
		if got := CountJSONDepth(tt.line); got != tt.want {
			t.Fatalf("CountJSONDepth(%q) = %d, want %d", tt.line, got, tt.want)
		}
	}
}

func TestProcessor_ClosedSourceDropsPartialDocument(t *testing.T) {
	t.Parallel()

	d := &recordingDispatcher{}
	p := NewProcessor(d, nil)
	ctx := context.Background()

	p.ProcessEnvelope(ctx, model.IngestEnvelope{Source: "tcp:a", Line: `{"type":"console-log","payload":{"message":"x",`})
	if got := p.Pending(); got != 1 {
		t.Fatalf("pending = %d, want 1", got)
	}
	if res := p.ProcessEnvelope(ctx, model.IngestEnvelope{Source: "tcp:a", Closed: true}); res != nil {
		t.Fatalf("close marker produced a result: %+v", res)
	}
	if got := p.Pending(); got != 0 {
		t.Fatalf("pending after close = %d, want 0", got)
	}

	// A reused source name starts a fresh document.
	res := p.ProcessEnvelope(ctx, model.IngestEnvelope{Source: "tcp:a", Line: `{"type":"get-state"}`})
	if res == nil || !res.Response.OK || len(d.docs) != 1 {
		t.Fatalf("result = %+v, docs = %v", res, d.docs)
	}
}

func TestProcessor_PendingSourcesBounded(t *testing.T) {
	t.Parallel()

	d := &recordingDispatcher{}
	p := NewProcessor(d, nil)
	ctx := context.Background()

	for i := 0; i < 10_000; i++ {
		p.ProcessEnvelope(ctx, model.IngestEnvelope{
			Source: fmt.Sprintf("tcp:10.0.0.1:%d", i),
			Line:   `{"type":"console-log","payload":{"message":"x",`,
		})
	}
	if got := p.Pending(); got != maxPendingSources {
		t.Fatalf("pending = %d, want %d", got, maxPendingSources)
	}

	// The newest sources survive eviction and can still finish.
	last := fmt.Sprintf("tcp:10.0.0.1:%d", 9_999)
	res := p.ProcessEnvelope(ctx, model.IngestEnvelope{Source: last, Line: `"level":"info"}}`})
	if res == nil || !res.Response.OK {
		t.Fatalf("result = %+v", res)
	}
	if _, err := testDecoder.Decode([]byte(d.docs[len(d.docs)-1])); err != nil {
		t.Fatalf("finished doc does not decode: %v", err)
	}

	first := "tcp:10.0.0.1:0"
	if res := p.ProcessEnvelope(ctx, model.IngestEnvelope{Source: first, Line: `"level":"info"}}`}); res == nil || len(d.docs) != 2 {
		t.Fatalf("evicted source should frame its next line fresh, got %+v", res)
	}
}
