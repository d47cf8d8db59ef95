// Package logsource unifies the line-oriented envelope inputs.
package logsource

import "github.com/tinytelemetry/pageinspect/internal/model"

// LogSource is a unified interface for line-oriented envelope inputs (TCP, stdin).
type LogSource interface {
	Lines() <-chan model.IngestEnvelope // read-only channel of envelope lines
	Stop()                              // graceful shutdown
	Name() string                       // "tcp", "stdin"
}
