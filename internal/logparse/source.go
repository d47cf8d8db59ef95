package logparse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tinytelemetry/pageinspect/internal/model"
)

// sourceRegex matches "<file>:<line>" or "<file>:<line>:<column>" at the end
// of a source string, optionally wrapped in a stack-frame "(...)".
var sourceRegex = regexp.MustCompile(`\(?([^()\s]+?):(\d+)(?::(\d+))?\)?$`)

// ParseSource turns a raw source string such as "app.js:10:4" or
// "at render (https://x/app.js:10:4)" into a SourceLocation. The raw string
// is always kept. Returns nil for blank input.
func ParseSource(raw string) *model.SourceLocation {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	loc := &model.SourceLocation{Raw: trimmed}
	m := sourceRegex.FindStringSubmatch(trimmed)
	if m == nil {
		loc.File = strings.TrimPrefix(trimmed, "at ")
		return loc
	}
	loc.File = m[1]
	loc.Line, _ = strconv.Atoi(m[2])
	if m[3] != "" {
		loc.Column, _ = strconv.Atoi(m[3])
	}
	return loc
}
