package logparse

import (
	"strings"

	"github.com/tinytelemetry/pageinspect/internal/model"
)

// NormalizeLevel maps console method names and common level spellings onto
// the known level set. Anything unrecognized becomes model.DefaultLevel.
func NormalizeLevel(level string) model.Level {
	normalized := strings.ToLower(strings.TrimSpace(level))

	switch normalized {
	case "log", "dir", "dirxml", "table", "group", "groupcollapsed", "count", "timelog", "timeend":
		return model.LevelLog
	case "info", "information", "inf":
		return model.LevelInfo
	case "warn", "warning", "wrn", "wrng":
		return model.LevelWarn
	case "error", "err", "erro", "assert", "fatal", "critical", "crit", "panic":
		return model.LevelError
	case "debug", "dbg", "deb", "verbose":
		return model.LevelDebug
	case "trace", "trc":
		return model.LevelTrace
	case "ui":
		return model.LevelUI
	case "db", "database", "sql":
		return model.LevelDB
	case "api", "http", "fetch":
		return model.LevelAPI
	default:
		if len(normalized) >= 4 {
			switch normalized[:4] {
			case "info":
				return model.LevelInfo
			case "warn":
				return model.LevelWarn
			case "erro", "fata", "crit":
				return model.LevelError
			case "debu":
				return model.LevelDebug
			case "trac":
				return model.LevelTrace
			}
		}
		return model.DefaultLevel
	}
}

// NormalizeLevels normalizes an allowlist, dropping blanks and duplicates.
func NormalizeLevels(levels []string) []string {
	if len(levels) == 0 {
		return nil
	}
	seen := make(map[model.Level]bool, len(levels))
	out := make([]string, 0, len(levels))
	for _, l := range levels {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n := NormalizeLevel(l)
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, string(n))
	}
	return out
}
