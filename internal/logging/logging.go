// Package logging builds the daemon's logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// DefaultPath returns ~/.local/state/pageinspect/pageinspect.log, or "" when
// the home directory cannot be resolved.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "pageinspect", "pageinspect.log")
}

// Configure returns a logger writing to path at the given level. An empty
// path, or one that cannot be opened, logs to stderr instead. The returned
// func closes the log file.
func Configure(level, path string) (*logrus.Logger, func(), error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	lvl := logrus.InfoLevel
	if level != "" {
		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			return nil, nil, fmt.Errorf("logging: parse level %q: %w", level, err)
		}
		lvl = parsed
	}
	logger.SetLevel(lvl)

	if path == "" {
		logger.SetOutput(os.Stderr)
		return logger, func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		logger.SetOutput(os.Stderr)
		logger.WithError(err).Warn("log directory unavailable, logging to stderr")
		return logger, func() {}, nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		logger.SetOutput(os.Stderr)
		logger.WithError(err).Warn("log file unavailable, logging to stderr")
		return logger, func() {}, nil
	}

	logger.SetOutput(f)
	return logger, func() {
		_ = f.Close()
	}, nil
}

// OrDiscard returns l, or a logger that drops everything when l is nil.
func OrDiscard(l *logrus.Logger) *logrus.Logger {
	if l != nil {
		return l
	}
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	return discard
}
