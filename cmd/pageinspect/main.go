package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tinytelemetry/pageinspect/internal/logging"
	"github.com/tinytelemetry/pageinspect/internal/natsbus"
	"github.com/tinytelemetry/pageinspect/internal/socketrpc"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "pageinspect",
		Short: "Page inspector ingestion daemon",
		Long: `pageinspect receives console logs and network requests captured from web
pages, sanitizes and filters them, keeps a bounded per-session history and
pushes live updates to connected viewers.

Envelopes are accepted over HTTP, TCP, piped stdin and the local socket.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return runServer(cmd.Context(), cfg)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is $HOME/.config/pageinspect/config.yml)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newSettingsCmd(&configPath))
	root.AddCommand(newStatsCmd(&configPath))
	root.AddCommand(newStateCmd(&configPath))
	root.AddCommand(newSendCmd(&configPath))
	root.AddCommand(newResetCmd(&configPath))
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("pageinspect - Page Inspector Ingestion Service\n")
			cmd.Printf("  Version:    %s\n", version)
			cmd.Printf("  Commit:     %s\n", commit)
			cmd.Printf("  Built:      %s\n", buildTime)
			cmd.Printf("  Go version: %s\n", goVersion)
		},
	}
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	dataDir := filepath.Join(home, ".local", "share", "pageinspect")

	v := viper.New()
	v.SetEnvPrefix("PAGEINSPECT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	v.SetDefault("host", defaultBindHost)
	v.SetDefault("http-enabled", true)
	v.SetDefault("http-port", defaultHTTPPort)
	v.SetDefault("tcp-enabled", true)
	v.SetDefault("tcp-port", defaultTCPPort)
	v.SetDefault("socket-enabled", true)
	v.SetDefault("socket-path", socketrpc.DefaultSocketPath())
	v.SetDefault("store-backend", defaultStoreBackend)
	v.SetDefault("db-path", filepath.Join(dataDir, "pageinspect.duckdb"))
	v.SetDefault("redis-addr", "127.0.0.1:6379")
	v.SetDefault("redis-password", "")
	v.SetDefault("redis-db", 0)
	v.SetDefault("state-key", defaultStateKey)
	v.SetDefault("save-debounce", defaultSaveDebounce)
	v.SetDefault("nats-url", "")
	v.SetDefault("nats-subject", natsbus.DefaultSubjectPrefix)
	v.SetDefault("backup-enabled", false)
	v.SetDefault("backup-interval", defaultBackupInterval)
	v.SetDefault("backup-dir", filepath.Join(dataDir, "backups"))
	v.SetDefault("backup-keep-last", defaultBackupKeepLast)
	v.SetDefault("session-idle-timeout", defaultSessionIdleTimeout)
	v.SetDefault("log-level", defaultLogLevel)
	v.SetDefault("log-file", logging.DefaultPath())
	v.SetDefault("mux-buffer-size", defaultMuxBufferSize)
	for key, value := range settingsDefaults() {
		v.SetDefault(key, value)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		defaultConfigPath := filepath.Join(home, ".config", "pageinspect", "config.yml")
		v.SetConfigFile(defaultConfigPath)
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()
	if _, err := os.Stat(cfg.ConfigPath); err != nil {
		cfg.ConfigPath = ""
	}

	if err := validateConfig(&cfg); err != nil {
		return cfg, err
	}

	// Expand ~ in paths
	for _, p := range []*string{&cfg.DBPath, &cfg.BackupDir, &cfg.SocketPath, &cfg.LogFile} {
		if strings.HasPrefix(*p, "~/") {
			*p = filepath.Join(home, (*p)[2:])
		}
	}

	if cfg.TCPAddr == "" {
		cfg.TCPAddr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.TCPPort))
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.HTTPPort))
	}
	cfg.Settings = cfg.Settings.Clamped()

	return cfg, nil
}

func validateConfig(cfg *appConfig) error {
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return fmt.Errorf("invalid http-port: %d", cfg.HTTPPort)
	}
	if cfg.TCPPort <= 0 || cfg.TCPPort > 65535 {
		return fmt.Errorf("invalid tcp-port: %d", cfg.TCPPort)
	}

	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	switch cfg.StoreBackend {
	case storeDuckDB:
		if cfg.DBPath == "" {
			return errors.New("db-path is required for the duckdb store")
		}
	case storeRedis:
		if cfg.RedisAddr == "" {
			return errors.New("redis-addr is required for the redis store")
		}
	case storeNone:
	default:
		return fmt.Errorf("invalid store-backend: %q (want duckdb, redis or none)", cfg.StoreBackend)
	}

	if cfg.SaveDebounce < 0 {
		return fmt.Errorf("invalid save-debounce: %s", cfg.SaveDebounce)
	}
	if cfg.SessionIdleTimeout < 0 {
		return fmt.Errorf("invalid session-idle-timeout: %s", cfg.SessionIdleTimeout)
	}
	if cfg.MuxBufferSize < 0 {
		return fmt.Errorf("invalid mux-buffer-size: %d", cfg.MuxBufferSize)
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid log-level: %q", cfg.LogLevel)
	}

	if cfg.BackupEnabled {
		if cfg.StoreBackend != storeDuckDB {
			return fmt.Errorf("backup-enabled requires store-backend %q", storeDuckDB)
		}
		if cfg.BackupInterval <= 0 {
			return fmt.Errorf("invalid backup-interval: %s", cfg.BackupInterval)
		}
		if cfg.BackupKeepLast <= 0 {
			return fmt.Errorf("invalid backup-keep-last: %d", cfg.BackupKeepLast)
		}
		if cfg.BackupDir == "" {
			return errors.New("backup-dir is required when backups are enabled")
		}
	}
	return nil
}
