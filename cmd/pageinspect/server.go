package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/pageinspect/internal/backup"
	"github.com/tinytelemetry/pageinspect/internal/broadcast"
	"github.com/tinytelemetry/pageinspect/internal/duckdb"
	"github.com/tinytelemetry/pageinspect/internal/engine"
	"github.com/tinytelemetry/pageinspect/internal/httpserver"
	"github.com/tinytelemetry/pageinspect/internal/ingest"
	"github.com/tinytelemetry/pageinspect/internal/logging"
	"github.com/tinytelemetry/pageinspect/internal/metrics"
	"github.com/tinytelemetry/pageinspect/internal/model"
	"github.com/tinytelemetry/pageinspect/internal/natsbus"
	"github.com/tinytelemetry/pageinspect/internal/persist"
	"github.com/tinytelemetry/pageinspect/internal/redisstore"
	"github.com/tinytelemetry/pageinspect/internal/session"
	"github.com/tinytelemetry/pageinspect/internal/socketrpc"
	"github.com/tinytelemetry/pageinspect/internal/wshub"
)

const (
	shutdownDeadline = 10 * time.Second
	finalSaveTimeout = 5 * time.Second
)

// stateStore is a persistence backend as opened by openStateStore.
type stateStore struct {
	kv    persist.KV
	duck  *duckdb.Store // set for the duckdb backend only
	close func() error
}

// runServer runs the inspector daemon until ctx is cancelled or a signal
// arrives.
func runServer(parent context.Context, cfg appConfig) error {
	logger, cleanupLogger, err := configureRuntimeLogger(cfg)
	if err != nil {
		return err
	}
	defer cleanupLogger()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	store, err := openStateStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.close(); err != nil {
			logger.WithError(err).Warn("closing state store")
		}
	}()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	// Notification listeners
	bc := broadcast.New(logger, m, nil)
	hub := wshub.New(logger)
	defer hub.Close()
	bc.Register(hub)

	if cfg.NATSURL != "" {
		pub, err := natsbus.Connect(cfg.NATSURL, cfg.NATSSubject, logger)
		if err != nil {
			logger.WithError(err).Warn("nats publisher disabled")
		} else {
			defer pub.Close()
			bc.Register(pub)
		}
	}

	initial := cfg.Settings
	eng := engine.New(engine.Options{
		Settings: &initial,
		Logger:   logger,
		Metrics:  m,
		Notifier: bc,
	})

	// Rehydrate, then debounce saves of every later mutation.
	codec, err := persist.NewCodec()
	if err != nil {
		return fmt.Errorf("failed to initialize snapshot codec: %w", err)
	}
	defer codec.Close()

	saver := persist.NewSaver(store.kv, cfg.StateKey, codec, func() model.State {
		return eng.Snapshot("")
	}, m)
	if st, found, err := saver.Load(ctx); err != nil {
		logger.WithError(err).Warn("persisted state unreadable, starting empty")
	} else if found {
		eng.Restore(st)
	}

	scheduler := persist.NewScheduler(saver.Save, cfg.SaveDebounce, persist.RealClock{}, logger)
	eng.AttachScheduler(scheduler)
	defer func() {
		flushCtx, cancelFlush := context.WithTimeout(context.Background(), finalSaveTimeout)
		defer cancelFlush()
		if err := scheduler.FlushNow(flushCtx); err != nil {
			logger.WithError(err).Warn("final state save did not finish")
		}
		scheduler.Stop()
	}()

	sweeper := session.NewSweeper(func(timeout time.Duration) []string {
		return eng.SweepIdle(ctx, timeout)
	}, cfg.SessionIdleTimeout, logger)
	if sweeper != nil {
		defer sweeper.Stop()
	}

	// Backups copy the DuckDB file, so they only apply to that backend.
	if store.duck != nil {
		backupManager, err := backup.NewManager(store.duck, backup.Config{
			Enabled:  cfg.BackupEnabled,
			Interval: cfg.BackupInterval,
			LocalDir: cfg.BackupDir,
			KeepLast: cfg.BackupKeepLast,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize backups: %w", err)
		}
		if backupManager != nil {
			defer backupManager.Stop()
		}
	}

	if cfg.HTTPEnabled {
		apiServer := httpserver.NewServer(cfg.HTTPAddr, eng, httpserver.Options{
			WebSocket: hub,
			Gatherer:  reg,
			Logger:    logger,
		})
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		defer apiServer.Stop()
	}

	if cfg.SocketEnabled {
		sockServer := socketrpc.NewServer(cfg.SocketPath, eng, logger)
		if err := sockServer.Start(); err != nil {
			logger.WithError(err).Warn("failed to start socket server")
		} else {
			defer sockServer.Stop()
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
			return
		}
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		// Shutdown deadline starts now, not at boot.
		deadline := time.NewTimer(shutdownDeadline)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		cleanupSocket(cfg.SocketPath)
		os.Exit(1)
	}()

	plugins := buildInputPlugins(InputPluginConfig{
		TCPEnabled: cfg.TCPEnabled,
		TCPAddr:    cfg.TCPAddr,
		Logger:     logger,
	})
	mux := NewSourceMultiplexer(ctx, buildSources(ctx, plugins, logger), cfg.MuxBufferSize, logger)
	mux.Start()

	processor := ingest.NewProcessor(eng, logger)

	printStartupBanner(os.Stdout, cfg, mux.SourceNames(), bc.Listeners())
	logger.WithFields(logrus.Fields{
		"http":      cfg.HTTPEnabled,
		"sources":   mux.SourceNames(),
		"listeners": bc.Listeners(),
		"store":     cfg.StoreBackend,
	}).Info("pageinspect started")

	g, gctx := errgroup.WithContext(ctx)

	if mux.HasSources() {
		g.Go(func() error {
			return processor.Run(gctx, mux.Lines())
		})
	}

	// Wait for context cancellation (from signal handler) in the errgroup
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("run loop exited with error")
	}

	// Intake stops first; deferred calls then flush state and close the store.
	cancel()
	mux.Stop()
	signal.Stop(sigCh)
	logger.Info("pageinspect stopping")

	return nil
}

func configureRuntimeLogger(cfg appConfig) (*logrus.Logger, func(), error) {
	logger, cleanup, err := logging.Configure(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to configure logging: %w", err)
	}
	return logger, cleanup, nil
}

// openStateStore opens the configured persistence backend. The "none"
// backend keeps state in memory for the life of the process.
func openStateStore(ctx context.Context, cfg appConfig, logger *logrus.Logger) (stateStore, error) {
	switch cfg.StoreBackend {
	case storeDuckDB:
		s, err := duckdb.NewStore(ctx, cfg.DBPath, logger)
		if err != nil {
			return stateStore{}, fmt.Errorf("failed to initialize DuckDB: %w", err)
		}
		return stateStore{kv: s, duck: s, close: s.Close}, nil
	case storeRedis:
		s, err := redisstore.New(ctx, redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			return stateStore{}, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return stateStore{kv: s, close: s.Close}, nil
	case storeNone:
		logger.Warn("store-backend none: state is not persisted across restarts")
		return stateStore{kv: persist.NewMemoryKV(), close: func() error { return nil }}, nil
	default:
		return stateStore{}, fmt.Errorf("unknown store-backend %q", cfg.StoreBackend)
	}
}

func cleanupSocket(path string) {
	if path != "" {
		os.Remove(path)
	}
}
