package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/tinytelemetry/pageinspect/internal/logsource"
	"github.com/tinytelemetry/pageinspect/internal/tcpserver"
)

// NamedLogSource aliases the shared source abstraction to keep app-layer APIs explicit.
type NamedLogSource = logsource.LogSource

// InputSourcePlugin builds one line-oriented envelope input.
type InputSourcePlugin interface {
	Name() string
	Enabled() bool
	Build(ctx context.Context) (NamedLogSource, error)
}

// InputPluginConfig defines runtime input selection.
type InputPluginConfig struct {
	TCPEnabled  bool
	TCPAddr     string
	MaxLineSize int
	Logger      *logrus.Logger

	// stdinPiped overrides terminal detection; nil means inspect os.Stdin.
	stdinPiped *bool
}

func buildInputPlugins(cfg InputPluginConfig) []InputSourcePlugin {
	plugins := make([]InputSourcePlugin, 0, 2)
	plugins = append(plugins, tcpInputPlugin{
		addr:        cfg.TCPAddr,
		enabled:     cfg.TCPEnabled,
		maxLineSize: cfg.MaxLineSize,
		logger:      cfg.Logger,
	})
	plugins = append(plugins, stdinInputPlugin{
		maxLineSize: cfg.MaxLineSize,
		logger:      cfg.Logger,
		piped:       cfg.stdinPiped,
	})
	return plugins
}

// buildSources starts every enabled plugin. A plugin that fails to start is
// logged and skipped so the remaining inputs keep working.
func buildSources(ctx context.Context, plugins []InputSourcePlugin, logger *logrus.Logger) []NamedLogSource {
	sources := make([]NamedLogSource, 0, len(plugins))
	for _, plugin := range plugins {
		if !plugin.Enabled() {
			continue
		}
		src, err := plugin.Build(ctx)
		if err != nil {
			logger.WithError(err).WithField("plugin", plugin.Name()).Error("input plugin failed to start")
			continue
		}
		sources = append(sources, src)
	}
	return sources
}

type tcpInputPlugin struct {
	addr        string
	enabled     bool
	maxLineSize int
	logger      *logrus.Logger
}

func (p tcpInputPlugin) Name() string { return "tcp" }

func (p tcpInputPlugin) Enabled() bool { return p.enabled }

func (p tcpInputPlugin) Build(_ context.Context) (NamedLogSource, error) {
	server := tcpserver.NewServer(p.addr, tcpserver.ServerConfig{
		MaxLineSize: p.maxLineSize,
		Logger:      p.logger,
	})
	if err := server.Start(); err != nil {
		return nil, fmt.Errorf("start tcp server: %w", err)
	}
	return logsource.NewTCPSource(server), nil
}

type stdinInputPlugin struct {
	maxLineSize int
	logger      *logrus.Logger
	piped       *bool
}

func (p stdinInputPlugin) Name() string { return "stdin" }

// Enabled reports whether stdin is piped rather than a terminal.
func (p stdinInputPlugin) Enabled() bool {
	if p.piped != nil {
		return *p.piped
	}
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

func (p stdinInputPlugin) Build(ctx context.Context) (NamedLogSource, error) {
	return logsource.NewStdinSource(ctx, logsource.StdinConfig{
		MaxLineSize: p.maxLineSize,
		Logger:      p.logger,
	}), nil
}
