// Package admission decides whether a sanitized log entry is kept.
package admission

import (
	"strings"

	"github.com/tinytelemetry/pageinspect/internal/logparse"
	"github.com/tinytelemetry/pageinspect/internal/model"
)

// Decision is the outcome of Admit. Reason is one of the model.Reason*
// constants when the entry is rejected.
type Decision struct {
	Admitted bool
	Reason   string
}

var admitted = Decision{Admitted: true}

// Admit applies the level allowlist, then the source filter, then the
// content filter. All configured filters must pass. Matching is
// case-insensitive substring search.
func Admit(e model.LogEntry, s model.Settings) Decision {
	if len(s.AllowedLogLevels) > 0 && !levelAllowed(e.Level, s.AllowedLogLevels) {
		return Decision{Reason: model.ReasonLevel}
	}

	if needle := normalizeFilter(s.SourceFilter); needle != "" {
		if !strings.Contains(sourceHaystack(e.Source), needle) {
			return Decision{Reason: model.ReasonSource}
		}
	}

	if needle := normalizeFilter(s.ContentFilter); needle != "" {
		if !strings.Contains(contentHaystack(e), needle) {
			return Decision{Reason: model.ReasonContent}
		}
	}

	return admitted
}

func levelAllowed(level model.Level, allowed []string) bool {
	for _, a := range logparse.NormalizeLevels(allowed) {
		if model.Level(a) == level {
			return true
		}
	}
	return false
}

func normalizeFilter(f string) string {
	return strings.ToLower(strings.TrimSpace(f))
}

func sourceHaystack(src *model.SourceLocation) string {
	if src == nil {
		return ""
	}
	return strings.ToLower(src.File + " " + src.Raw)
}

func contentHaystack(e model.LogEntry) string {
	var b strings.Builder
	b.WriteString(e.Message)
	for _, arg := range e.Args {
		b.WriteByte(' ')
		b.WriteString(arg.Display())
	}
	return strings.ToLower(b.String())
}
