package ingest

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tinytelemetry/pageinspect/internal/logging"
	"github.com/tinytelemetry/pageinspect/internal/model"
)

const (
	// maxPendingBytes bounds one accumulated multi-line document.
	maxPendingBytes = 1 << 20

	// maxPendingSources bounds how many sources may hold an unfinished
	// document at once. The oldest is dropped when a new one starts.
	maxPendingSources = 256
)

// ProcessResult holds the dispatcher's answer for one complete document.
type ProcessResult struct {
	Source   string
	Response model.Response
}

// accumulator joins a pretty-printed JSON document spread over several lines.
type accumulator struct {
	buf   strings.Builder
	depth int
	seq   uint64
}

// Processor frames source-tagged lines into envelope documents and hands
// them to the dispatcher. Lines from different sources are framed
// independently. A Processor is not safe for concurrent use; Run drives it
// from a single goroutine.
type Processor struct {
	dispatcher model.Dispatcher
	logger     *logrus.Logger
	pending    map[string]*accumulator
	seq        uint64
}

// NewProcessor creates a processor dispatching to d.
func NewProcessor(d model.Dispatcher, logger *logrus.Logger) *Processor {
	return &Processor{
		dispatcher: d,
		logger:     logging.OrDiscard(logger),
		pending:    make(map[string]*accumulator),
	}
}

// ProcessEnvelope consumes one line. It returns nil while a multi-line
// document is still being accumulated, for blank lines and for source
// close markers.
func (p *Processor) ProcessEnvelope(ctx context.Context, env model.IngestEnvelope) *ProcessResult {
	if env.Closed {
		if _, open := p.pending[env.Source]; open {
			delete(p.pending, env.Source)
			p.logger.WithField("source", env.Source).Debug("source closed mid-envelope, discarding partial document")
		}
		return nil
	}

	acc, open := p.pending[env.Source]
	trimmed := strings.TrimSpace(env.Line)

	if !open {
		if trimmed == "" {
			return nil
		}
		depth := CountJSONDepth(env.Line)
		if !strings.HasPrefix(trimmed, "{") || depth <= 0 {
			return p.dispatch(ctx, env.Source, trimmed)
		}
		if len(p.pending) >= maxPendingSources {
			p.evictOldest()
		}
		p.seq++
		acc = &accumulator{seq: p.seq}
		p.pending[env.Source] = acc
		acc.buf.WriteString(env.Line)
		acc.buf.WriteString("\n")
		acc.depth = depth
		return nil
	}

	acc.buf.WriteString(env.Line)
	acc.buf.WriteString("\n")
	acc.depth += CountJSONDepth(env.Line)

	if acc.buf.Len() > maxPendingBytes {
		delete(p.pending, env.Source)
		p.logger.WithField("source", env.Source).Warn("discarding oversized multi-line envelope")
		return &ProcessResult{
			Source:   env.Source,
			Response: model.Response{Error: "envelope exceeds maximum size"},
		}
	}
	if acc.depth > 0 {
		return nil
	}

	delete(p.pending, env.Source)
	return p.dispatch(ctx, env.Source, strings.TrimSpace(acc.buf.String()))
}

// Pending reports how many sources hold an unfinished multi-line document.
func (p *Processor) Pending() int {
	return len(p.pending)
}

func (p *Processor) evictOldest() {
	var (
		oldest string
		minSeq uint64
		found  bool
	)
	for src, acc := range p.pending {
		if !found || acc.seq < minSeq {
			oldest, minSeq, found = src, acc.seq, true
		}
	}
	delete(p.pending, oldest)
	p.logger.WithField("source", oldest).Warn("too many unfinished multi-line envelopes, discarding oldest")
}

func (p *Processor) dispatch(ctx context.Context, source, doc string) *ProcessResult {
	resp := p.dispatcher.HandleRaw(ctx, []byte(doc), source)
	if !resp.OK {
		p.logger.WithFields(logrus.Fields{
			"source": source,
			"error":  resp.Error,
		}).Debug("envelope rejected")
	}
	return &ProcessResult{Source: source, Response: resp}
}

// Run processes lines until the channel closes or ctx is cancelled.
func (p *Processor) Run(ctx context.Context, lines <-chan model.IngestEnvelope) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-lines:
			if !ok {
				return nil
			}
			p.ProcessEnvelope(ctx, env)
		}
	}
}

// CountJSONDepth counts the net change in JSON nesting depth for a line.
func CountJSONDepth(line string) int {
	depth := 0
	inString := false
	escaped := false

	for _, char := range line {
		if escaped {
			escaped = false
			continue
		}

		switch char {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{', '[':
			if !inString {
				depth++
			}
		case '}', ']':
			if !inString {
				depth--
			}
		}
	}

	return depth
}
