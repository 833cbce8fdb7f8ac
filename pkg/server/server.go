// Package server exposes placeholder resolution over HTTP.
//
// Routes:
//
//	GET  /health   reports liveness
//	POST /resolve  resolves {"value": "...", "properties": {...}} against the request properties
//	               first and the configured sources second
package server

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/animalet/substvars/pkg/config"
	"github.com/animalet/substvars/pkg/properties"
	"github.com/animalet/substvars/pkg/server/middleware"
	"github.com/animalet/substvars/pkg/subst"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Server serves the resolution API.
type Server struct {
	config          config.ServerConfig
	resolver        *subst.Resolver
	sources         subst.PropertyContainer
	engine          *gin.Engine
	httpServer      *http.Server
	listener        net.Listener
	mu              sync.Mutex
	shutdownHooks   []func() error
	shutdownChannel chan os.Signal
}

// Option customises a Server.
type Option func(*Server)

// WithResolver replaces the default resolver, which reads the process-wide system properties and
// the environment and stops after ServerConfig.MaxDepth nested expansions.
func WithResolver(r *subst.Resolver) Option {
	return func(s *Server) {
		s.resolver = r
	}
}

var debug = false

// SetDebug switches the global log level and the gin mode.
func SetDebug(debugEnabled bool) {
	debug = debugEnabled
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func GetDebug() bool {
	return debug
}

// NewServer creates a Server. sources is consulted after the properties sent with each request
// and may be nil.
func NewServer(cfg config.ServerConfig, sources subst.PropertyContainer, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "server configuration is invalid")
	}

	s := &Server{
		config:  cfg.WithDefaults(),
		sources: sources,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.resolver == nil {
		// request properties are caller controlled, so a cycle must fail the request
		// instead of overflowing the stack
		s.resolver = subst.New(subst.WithMaxDepth(s.config.MaxDepth))
	}

	engine, err := s.newEngine()
	if err != nil {
		return nil, err
	}
	s.engine = engine
	return s, nil
}

func (s *Server) newEngine() (*gin.Engine, error) {
	if debug || s.config.Debug {
		gin.SetMode(gin.DebugMode)
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if !gin.IsDebugging() {
		if err := engine.SetTrustedProxies(nil); err != nil {
			return nil, err
		}
	}
	engine.Use(
		middleware.RequestLogger(),
		gin.Recovery(),
		middleware.SecurityHeaders(s.config.ContentSecurityPolicy),
	)

	engine.GET("/health", s.health)
	engine.POST("/resolve", s.resolve)
	return engine, nil
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr returns the address the server listens on once started, or the configured one before.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Address
}

// AddShutdownHook registers f to run after the HTTP server stops, typically to close sources.
func (s *Server) AddShutdownHook(f func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdownHooks = append(s.shutdownHooks, f)
}

// StartAndWaitForSignal starts the server and blocks until SIGINT or SIGTERM, then shuts down
// gracefully.
func (s *Server) StartAndWaitForSignal() error {
	if err := s.Start(); err != nil {
		return err
	}
	return s.waitForSignal()
}

// Start binds the listen address and serves requests in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer != nil {
		return errors.New("server already started")
	}

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %q", s.config.Address)
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	log.Info().Msgf("Starting server on %s", listener.Addr())
	go func(srv *http.Server) {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Server stopped unexpectedly")
		}
	}(s.httpServer)
	return nil
}

func (s *Server) waitForSignal() error {
	s.shutdownChannel = make(chan os.Signal, 1)
	signal.Notify(s.shutdownChannel, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(s.shutdownChannel)

	log.Info().Msgf("Shutdown signal received (%s)", <-s.shutdownChannel)

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return s.Shutdown(ctx)
}

// Shutdown stops accepting requests, waits for active ones until ctx expires and then runs the
// shutdown hooks. Hook failures are logged and do not stop the remaining hooks.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	httpServer := s.httpServer
	hooks := s.shutdownHooks
	s.shutdownHooks = nil
	s.mu.Unlock()

	log.Info().Msg("Shutting down server...")
	if httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil {
			return errors.Wrap(err, "forced shutdown")
		}
	}

	log.Info().Msg("Executing shutdown hooks...")
	for _, hook := range hooks {
		if err := hook(); err != nil {
			log.Error().Err(err).Msg("Error during shutdown hook")
		}
	}

	log.Info().Msg("Server exited gracefully")
	return nil
}

type resolveRequest struct {
	Value      *string           `json:"value" binding:"required"`
	Properties map[string]string `json:"properties"`
}

type resolveResponse struct {
	Resolved  string   `json:"resolved"`
	Undefined []string `json:"undefined"`
}

type errorResponse struct {
	Error    string `json:"error"`
	Position *int   `json:"position,omitempty"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) resolve(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	res, err := s.resolver.ResolveDetailed(*req.Value, properties.NewMap(req.Properties), s.sources)
	if err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypePublic)

		var malformed *subst.MalformedReferenceError
		if errors.As(err, &malformed) {
			position := malformed.Position
			c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Position: &position})
			return
		}
		if errors.Is(err, subst.ErrRecursionDepth) {
			c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	undefined := res.Undefined
	if undefined == nil {
		undefined = []string{}
	}
	c.JSON(http.StatusOK, resolveResponse{Resolved: res.Value, Undefined: undefined})
}
