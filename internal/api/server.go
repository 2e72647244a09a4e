package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/gridswitch/internal/command"
	"github.com/nerrad567/gridswitch/internal/directory"
	"github.com/nerrad567/gridswitch/internal/grid"
	"github.com/nerrad567/gridswitch/internal/infrastructure/config"
	"github.com/nerrad567/gridswitch/internal/infrastructure/logging"
	"github.com/nerrad567/gridswitch/internal/smartplug"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// DirectoryService is the part of directory.Directory the API uses.
type DirectoryService interface {
	Prefix() string
	Snapshot() directory.Snapshot
	Refresh(ctx context.Context) (directory.Snapshot, error)
}

// CommandHandler runs one command. command.Service satisfies it.
type CommandHandler interface {
	HandleMessage(ctx context.Context, topic string, payload []byte) (command.Result, error)
}

// DeviceProber queries a single device. smartplug.Client satisfies it.
type DeviceProber interface {
	SysInfo(ctx context.Context, address string) (smartplug.Response, error)
}

// ConnectionStatus reports bus connectivity. mqtt.Client satisfies it.
type ConnectionStatus interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Security  config.SecurityConfig
	Logger    *logging.Logger
	Resolver  *grid.Resolver
	Directory DirectoryService
	Commands  CommandHandler
	Devices   DeviceProber
	MQTT      ConnectionStatus // optional
	Hub       *Hub             // optional; created on Start when nil
	Version   string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	resolver  *grid.Resolver
	directory DirectoryService
	commands  CommandHandler
	devices   DeviceProber
	mqtt      ConnectionStatus
	version   string
	startTime time.Time

	mu     sync.Mutex
	server *http.Server
	addr   net.Addr
	hub    *Hub
	cancel context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If a required dependency is missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Resolver == nil {
		return nil, fmt.Errorf("grid resolver is required")
	}
	if deps.Directory == nil {
		return nil, fmt.Errorf("directory is required")
	}
	if deps.Commands == nil {
		return nil, fmt.Errorf("command handler is required")
	}
	if deps.Devices == nil {
		return nil, fmt.Errorf("device prober is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		resolver:  deps.Resolver,
		directory: deps.Directory,
		commands:  deps.Commands,
		devices:   deps.Devices,
		mqtt:      deps.MQTT,
		hub:       deps.Hub,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Hub returns the WebSocket hub, creating it on first use so it can be
// handed to the command service before Start.
func (s *Server) Hub() *Hub {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	return s.hub
}

// Start binds the listener and serves in a background goroutine.
//
// Parameters:
//   - ctx: Parent of the hub's lifetime; Close also stops it
//
// Returns:
//   - error: If the listener cannot be bound (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	hub := s.Hub()

	srvCtx, cancel := context.WithCancel(ctx)
	go hub.Run(srvCtx)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		cancel()
		return fmt.Errorf("listening on %s: %w", server.Addr, err)
	}

	s.mu.Lock()
	s.server = server
	s.addr = ln.Addr()
	s.cancel = cancel
	s.mu.Unlock()

	s.logger.Info("API server listening", "address", ln.Addr().String())

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	s.mu.Lock()
	server, cancel := s.server, s.cancel
	s.mu.Unlock()

	if server == nil {
		return nil
	}
	if cancel != nil {
		cancel()
	}

	ctx, stop := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer stop()

	s.logger.Info("API server shutting down")
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
