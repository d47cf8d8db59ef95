package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func printStartupBanner(w io.Writer, cfg appConfig, sources, listeners []string) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	row := func(on bool, label, value string) string {
		mark := dot
		if on {
			mark = check
		}
		return fmt.Sprintf("    %s  %-14s %s", mark, label, value)
	}
	addrOr := func(on bool, addr string) string {
		if on {
			return cyan.Render(addr)
		}
		return dim.Render("disabled")
	}

	logo := cyan.Bold(true).Render(`
    ╔═╗╔═╗╔═╗╔═╗  ╦╔╗╔╔═╗╔═╗╔═╗╔═╗╔╦╗
    ╠═╝╠═╣║ ╦║╣   ║║║║╚═╗╠═╝║╣ ║   ║
    ╩  ╩ ╩╚═╝╚═╝  ╩╝╚╝╚═╝╩  ╚═╝╚═╝ ╩`)

	separator := dim.Render("    ─────────────────────────────────")

	lines := []string{"", logo, "    " + dim.Render("v"+version), "", separator, ""}

	// Gateway
	lines = append(lines, bold.Render("    Gateway"), "")
	lines = append(lines, row(cfg.HTTPEnabled, "HTTP API", addrOr(cfg.HTTPEnabled, cfg.HTTPAddr)))
	lines = append(lines, row(cfg.HTTPEnabled, "WebSocket", addrOr(cfg.HTTPEnabled, cfg.HTTPAddr+"/api/ws")))
	tcpOn := slices.Contains(sources, "tcp")
	lines = append(lines, row(tcpOn, "TCP Ingest", addrOr(tcpOn, cfg.TCPAddr)))
	stdinOn := slices.Contains(sources, "stdin")
	lines = append(lines, row(stdinOn, "Stdin", addrOr(stdinOn, "piped")))
	lines = append(lines, row(cfg.SocketEnabled, "Unix Socket", addrOr(cfg.SocketEnabled, shortenPath(cfg.SocketPath))))
	natsOn := slices.Contains(listeners, "nats")
	lines = append(lines, row(natsOn, "NATS", addrOr(natsOn, cfg.NATSURL)))
	lines = append(lines, "")

	// Storage
	lines = append(lines, bold.Render("    Storage"), "")
	switch cfg.StoreBackend {
	case storeDuckDB:
		lines = append(lines, row(true, "DuckDB", dim.Render(shortenPath(cfg.DBPath))))
	case storeRedis:
		lines = append(lines, row(true, "Redis", dim.Render(cfg.RedisAddr)))
	default:
		lines = append(lines, row(false, "Persistence", dim.Render("disabled")))
	}
	backupsOn := cfg.BackupEnabled && cfg.StoreBackend == storeDuckDB
	if backupsOn {
		lines = append(lines, row(true, "Snapshots", dim.Render(shortenPath(cfg.BackupDir))))
	} else {
		lines = append(lines, row(false, "Snapshots", dim.Render("disabled")))
	}
	lines = append(lines, "")

	// Capture
	s := cfg.Settings
	lines = append(lines, bold.Render("    Capture"), "")
	lines = append(lines, row(s.CaptureConsole, "Console", dim.Render(fmt.Sprintf("max %d logs", s.MaxLogs))))
	lines = append(lines, row(s.CaptureNetwork && s.NetworkMonitoring, "Network", dim.Render(fmt.Sprintf("max %d requests", s.MaxNetworkRequests))))
	if cfg.SessionIdleTimeout > 0 {
		lines = append(lines, row(true, "Idle Sweep", dim.Render(cfg.SessionIdleTimeout.String())))
	} else {
		lines = append(lines, row(false, "Idle Sweep", dim.Render("disabled")))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Config"), "")
	if cfg.ConfigPath != "" {
		lines = append(lines, row(true, "Config File", dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, row(false, "Config File", dim.Render("default (no file)")))
	}

	lines = append(lines, "", separator, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"), "")

	fmt.Fprintln(w, strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
