package main

import (
	"time"

	"github.com/tinytelemetry/pageinspect/internal/model"
)

const (
	defaultBindHost           = "127.0.0.1"
	defaultHTTPPort           = 3210
	defaultTCPPort            = 3211
	defaultMuxBufferSize      = DefaultMuxBuffer
	defaultStoreBackend       = storeDuckDB
	defaultSaveDebounce       = model.DefaultSaveDebounce
	defaultStateKey           = model.DefaultStateKey
	defaultBackupInterval     = 6 * time.Hour
	defaultBackupKeepLast     = 5
	defaultSessionIdleTimeout = 0 // disabled
	defaultLogLevel           = "info"
)

// Store backends.
const (
	storeDuckDB = "duckdb"
	storeRedis  = "redis"
	storeNone   = "none"
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	Host string `mapstructure:"host"`

	HTTPEnabled bool   `mapstructure:"http-enabled"`
	HTTPPort    int    `mapstructure:"http-port"`
	HTTPAddr    string `mapstructure:"http-addr"`
	TCPEnabled  bool   `mapstructure:"tcp-enabled"`
	TCPPort     int    `mapstructure:"tcp-port"`
	TCPAddr     string `mapstructure:"tcp-addr"`

	SocketEnabled bool   `mapstructure:"socket-enabled"`
	SocketPath    string `mapstructure:"socket-path"`

	StoreBackend  string        `mapstructure:"store-backend"`
	DBPath        string        `mapstructure:"db-path"`
	RedisAddr     string        `mapstructure:"redis-addr"`
	RedisPassword string        `mapstructure:"redis-password"`
	RedisDB       int           `mapstructure:"redis-db"`
	StateKey      string        `mapstructure:"state-key"`
	SaveDebounce  time.Duration `mapstructure:"save-debounce"`

	NATSURL     string `mapstructure:"nats-url"`
	NATSSubject string `mapstructure:"nats-subject"`

	BackupEnabled  bool          `mapstructure:"backup-enabled"`
	BackupInterval time.Duration `mapstructure:"backup-interval"`
	BackupDir      string        `mapstructure:"backup-dir"`
	BackupKeepLast int           `mapstructure:"backup-keep-last"`

	SessionIdleTimeout time.Duration `mapstructure:"session-idle-timeout"`
	LogLevel           string        `mapstructure:"log-level"`
	LogFile            string        `mapstructure:"log-file"`
	MuxBufferSize      int           `mapstructure:"mux-buffer-size"`

	// Settings seeds the engine; persisted settings win on restore.
	Settings model.Settings `mapstructure:"settings"`

	ConfigPath string `mapstructure:"-"` // not from config file
}

// settingsDefaults mirrors model.DefaultSettings as viper keys so every
// field can be overridden from the file or PAGEINSPECT_SETTINGS_* variables.
func settingsDefaults() map[string]any {
	d := model.DefaultSettings()
	return map[string]any{
		"settings.capture-console":               d.CaptureConsole,
		"settings.capture-network":               d.CaptureNetwork,
		"settings.network-monitoring":            d.NetworkMonitoring,
		"settings.persist-state":                 d.PersistState,
		"settings.max-logs":                      d.MaxLogs,
		"settings.max-network-requests":          d.MaxNetworkRequests,
		"settings.allowed-log-levels":            []string{},
		"settings.content-filter":                d.ContentFilter,
		"settings.source-filter":                 d.SourceFilter,
		"settings.max-message-chars":             d.MaxMessageChars,
		"settings.max-arg-chars":                 d.MaxArgChars,
		"settings.max-args":                      d.MaxArgs,
		"settings.archive-enabled":               d.ArchiveEnabled,
		"settings.max-archived-logs":             d.MaxArchivedLogs,
		"settings.max-archived-network-requests": d.MaxArchivedNetworkRequests,
	}
}
