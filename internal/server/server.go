package server

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/agentstation/statuspage/cmd/application"
	"github.com/agentstation/statuspage/internal/realtime/bridge"
	"github.com/agentstation/statuspage/internal/realtime/hub"
	"github.com/agentstation/statuspage/internal/server/cache"
	"github.com/agentstation/statuspage/internal/store"
)

// shutdownTimeout bounds how long Shutdown waits for the hub to close its
// connections when ctx carries no deadline.
const shutdownTimeout = 5 * time.Second

// Server holds the HTTP server state and dependencies.
type Server struct {
	app       application.Application
	store     store.Store
	cache     *cache.Cache
	hub       *hub.Hub
	bridge    *bridge.Bridge
	upgrader  websocket.Upgrader
	logger    *zerolog.Logger
	config    Config
	ctx       context.Context
	cancel    context.CancelFunc
	hubDone   chan struct{}
	started   atomic.Bool
	startTime time.Time
}

// New creates a new server instance with the given configuration.
func New(app application.Application, cfg Config) (*Server, error) {
	logger := app.Logger()

	logger.Debug().Msg("Creating new server instance")

	defaults := DefaultConfig()
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = defaults.CacheTTL
	}
	if cfg.WSPath == "" {
		cfg.WSPath = defaults.WSPath
	}

	st, err := app.Store()
	if err != nil {
		return nil, err
	}
	bp, err := app.Backplane()
	if err != nil {
		return nil, err
	}

	opts := []hub.Option{
		hub.WithMaxPerRoom(cfg.MaxConnectionsPerRoom),
		hub.WithQueueSize(cfg.HubQueueSize),
	}
	if bp != nil {
		opts = append(opts, hub.WithBackplane(bp))
		logger.Debug().Msg("Realtime hub using cross-process backplane")
	}
	h := hub.New(logger, opts...)

	ctx, cancel := context.WithCancel(context.Background())

	server := &Server{
		app:    app,
		store:  st,
		cache:  cache.New(cfg.CacheTTL, cfg.CacheTTL*2),
		hub:    h,
		bridge: bridge.New(h, logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true // Allow all origins for WebSocket
			},
		},
		logger:    logger,
		config:    cfg,
		ctx:       ctx,
		cancel:    cancel,
		hubDone:   make(chan struct{}),
		startTime: time.Now(),
	}

	logger.Debug().Msg("Server instance created successfully")
	return server, nil
}

// Start starts the realtime hub. Commands issued before Start are queued.
func (s *Server) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	s.logger.Debug().Msg("Starting realtime hub")
	go func() {
		defer close(s.hubDone)
		s.hub.Run(s.ctx)
	}()
}

// Handler returns the configured http.Handler with middleware chain applied.
func (s *Server) Handler() http.Handler {
	return s.setupRouter()
}

// HTTPServer returns an http.Server for the configured address and timeouts.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// Shutdown stops the hub, closing every realtime connection.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down server background services")

	s.cancel()
	if !s.started.Load() {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
	}

	select {
	case <-s.hubDone:
		s.logger.Info().Msg("Background services shut down successfully")
		return nil
	case <-ctx.Done():
		s.logger.Warn().Msg("Background services shutdown timed out")
		return ctx.Err()
	}
}

// Cache returns the server's cache instance.
func (s *Server) Cache() *cache.Cache {
	return s.cache
}

// Hub returns the realtime hub.
func (s *Server) Hub() *hub.Hub {
	return s.hub
}

// Bridge returns the mutation-to-event bridge for publishing events.
func (s *Server) Bridge() *bridge.Bridge {
	return s.bridge
}

// StartTime returns the server start time for uptime calculations.
func (s *Server) StartTime() time.Time {
	return s.startTime
}
