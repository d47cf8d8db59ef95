// Package httpserver exposes the inspector engine over HTTP.
package httpserver

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/tinytelemetry/pageinspect/internal/logging"
	"github.com/tinytelemetry/pageinspect/internal/model"
)

// maxEnvelopeBytes bounds one POSTed envelope document.
const maxEnvelopeBytes = 8 << 20

// Engine is the narrow engine contract required by the HTTP API.
type Engine interface {
	model.StateReader
	model.Dispatcher
	NavigationStarted(ctx context.Context, sessionID string) model.Response
	SessionEnded(ctx context.Context, sessionID string) model.Response
}

// Options wires optional endpoints.
type Options struct {
	// WebSocket serves GET /api/ws when set.
	WebSocket http.Handler
	// Gatherer serves GET /metrics when set.
	Gatherer prometheus.Gatherer
	Logger   *logrus.Logger
}

// Server provides the HTTP API of the inspector daemon.
type Server struct {
	addr      string
	engine    Engine
	opts      Options
	logger    *logrus.Logger
	server    *http.Server
	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server.
func NewServer(addr string, engine Engine, opts Options) *Server {
	if addr == "" {
		addr = "127.0.0.1:3210"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      addr,
		engine:    engine,
		opts:      opts,
		logger:    logging.OrDiscard(opts.Logger),
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/state", s.handleState)
	api.GET("/stats", s.handleStats)
	api.GET("/settings", s.handleSettings)
	api.POST("/envelope", s.handleEnvelope)
	api.POST("/sessions/:id/navigate", s.handleNavigate)
	api.DELETE("/sessions/:id", s.handleEndSession)
	if s.opts.WebSocket != nil {
		api.GET("/ws", gin.WrapH(s.opts.WebSocket))
	}
	if s.opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))
	}
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.startTime = time.Now()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("httpserver: serve failed")
		}
	}()
	return nil
}

// Addr returns the listening address once started.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the HTTP server. Websocket connections are
// hijacked and are closed by their hub, not here.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	st := s.engine.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"uptime":       time.Since(s.startTime).String(),
		"logs_stored":  st.Logs.Stored,
		"network_seen": st.Network.Received,
	})
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Snapshot(c.Query("session")))
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Stats())
}

func (s *Server) handleSettings(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Settings())
}

func (s *Server) handleEnvelope(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxEnvelopeBytes))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, model.Response{Error: "envelope too large"})
		return
	}

	origin := c.GetHeader("X-Session-Id")
	if origin == "" {
		origin = c.Query("session")
	}

	resp := s.engine.HandleRaw(c.Request.Context(), body, origin)
	status := http.StatusOK
	if !resp.OK {
		status = http.StatusBadRequest
	}
	c.JSON(status, resp)
}

func (s *Server) handleNavigate(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.NavigationStarted(c.Request.Context(), c.Param("id")))
}

func (s *Server) handleEndSession(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.SessionEnded(c.Request.Context(), c.Param("id")))
}
