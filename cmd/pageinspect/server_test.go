package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tinytelemetry/pageinspect/internal/model"
	"github.com/tinytelemetry/pageinspect/internal/socketrpc"
)

func testServerConfig(t *testing.T, backend string) appConfig {
	t.Helper()

	dir, err := os.MkdirTemp("", "pis")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	return appConfig{
		Host:          "127.0.0.1",
		HTTPEnabled:   true,
		HTTPAddr:      "127.0.0.1:0",
		SocketEnabled: true,
		SocketPath:    filepath.Join(dir, "s.sock"),
		StoreBackend:  backend,
		DBPath:        filepath.Join(dir, "state.duckdb"),
		StateKey:      model.DefaultStateKey,
		SaveDebounce:  time.Hour, // only the shutdown flush saves
		LogLevel:      "debug",
		LogFile:       filepath.Join(dir, "pageinspect.log"),
		MuxBufferSize: 16,
		Settings:      model.DefaultSettings(),
	}
}

// startServer runs the daemon in the background and returns a client
// connected to its socket plus a func that stops the daemon.
func startServer(t *testing.T, cfg appConfig) (*socketrpc.Client, func()) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServer(ctx, cfg) }()

	var client *socketrpc.Client
	deadline := time.Now().Add(10 * time.Second)
	for {
		c, err := socketrpc.Dial(cfg.SocketPath)
		if err == nil {
			client = c
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("daemon socket never came up: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	stopped := false
	stop := func() {
		if stopped {
			return
		}
		stopped = true
		client.Close()
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("runServer returned error: %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Fatal("runServer did not return after cancel")
		}
	}
	t.Cleanup(stop)
	return client, stop
}

func TestRunServerPersistsAcrossRestart(t *testing.T) {
	cfg := testServerConfig(t, storeDuckDB)

	client, stop := startServer(t, cfg)
	resp, err := client.Dispatch([]byte(`{"type":"batch","payload":[
		{"type":"console-log","payload":{"message":"kept","level":"info"}},
		{"type":"network-request","payload":{"url":"https://example.test/a","method":"GET","status":200}}
	]}`), "tab-1")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !resp.OK || resp.Processed != 2 {
		t.Fatalf("dispatch response = %+v", resp)
	}
	stop()

	client, _ = startServer(t, cfg)
	st, err := client.GetState("tab-1")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if len(st.Logs) != 1 || st.Logs[0].Message != "kept" {
		t.Fatalf("restored logs = %+v", st.Logs)
	}
	if len(st.NetworkRequests) != 1 {
		t.Fatalf("restored network = %+v", st.NetworkRequests)
	}

	stats, err := client.GetStats()
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	if stats.Logs.Received != 1 || stats.Logs.Stored != 1 {
		t.Fatalf("stats after restore = %+v, want seeded from buffers", stats.Logs)
	}
}

func TestRunServerWithoutPersistence(t *testing.T) {
	cfg := testServerConfig(t, storeNone)

	client, stop := startServer(t, cfg)
	if _, err := client.Dispatch([]byte(`{"type":"console-log","payload":{"message":"m"}}`), "s"); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	stop()

	client, _ = startServer(t, cfg)
	st, err := client.GetState("")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if len(st.Logs) != 0 {
		t.Fatalf("state survived restart without a store: %+v", st.Logs)
	}
	if _, err := os.Stat(cfg.DBPath); !os.IsNotExist(err) {
		t.Fatalf("duckdb file created for store-backend none: %v", err)
	}
}

func TestRunServerWritesLogFile(t *testing.T) {
	cfg := testServerConfig(t, storeNone)

	_, stop := startServer(t, cfg)
	stop()

	data, err := os.ReadFile(cfg.LogFile)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "pageinspect started") {
		t.Fatalf("log file missing startup line:\n%s", data)
	}
}

func TestPrintStartupBanner(t *testing.T) {
	cfg := appConfig{
		HTTPEnabled:  true,
		HTTPAddr:     "127.0.0.1:3210",
		TCPAddr:      "127.0.0.1:3211",
		StoreBackend: storeRedis,
		RedisAddr:    "10.1.2.3:6379",
		Settings:     model.DefaultSettings(),
	}
	var buf bytes.Buffer
	printStartupBanner(&buf, cfg, []string{"tcp"}, []string{"websocket"})
	out := buf.String()

	for _, want := range []string{"127.0.0.1:3210", "127.0.0.1:3211", "10.1.2.3:6379", "default (no file)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("banner missing %q:\n%s", want, out)
		}
	}
}

func TestShortenPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := shortenPath(filepath.Join(home, "x", "y")); got != "~/x/y" {
		t.Fatalf("shortenPath = %q", got)
	}
	if got := shortenPath("/opt/x"); got != "/opt/x" {
		t.Fatalf("shortenPath = %q", got)
	}
}
