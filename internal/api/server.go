package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/area-fans/internal/aggregate"
	"github.com/nerrad567/area-fans/internal/configflow"
	"github.com/nerrad567/area-fans/internal/infrastructure/config"
	"github.com/nerrad567/area-fans/internal/infrastructure/logging"
	"github.com/nerrad567/area-fans/internal/infrastructure/mqtt"
	"github.com/nerrad567/area-fans/internal/registry"
	"github.com/nerrad567/area-fans/internal/state"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Security   config.SecurityConfig
	Fans       config.FansConfig
	Logger     *logging.Logger
	Registry   *registry.Registry
	States     *state.Store
	Aggregates *aggregate.Manager
	Flow       *configflow.Flow
	MQTT       *mqtt.Client // optional, reported by /metrics
	DB         *sql.DB      // optional, reported by /metrics
	Hub        *Hub         // if set, used instead of an internal hub
	Version    string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	secCfg      config.SecurityConfig
	fansCfg     config.FansConfig
	logger      *logging.Logger
	registry    *registry.Registry
	states      *state.Store
	aggregates  *aggregate.Manager
	flow        *configflow.Flow
	mqtt        *mqtt.Client
	db          *sql.DB
	version     string
	startTime   time.Time
	server      *http.Server
	hub         *Hub
	externalHub bool
	cancel      context.CancelFunc
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger is required")
	case deps.Registry == nil:
		return nil, fmt.Errorf("registry is required")
	case deps.States == nil:
		return nil, fmt.Errorf("state store is required")
	case deps.Aggregates == nil:
		return nil, fmt.Errorf("aggregate manager is required")
	case deps.Flow == nil:
		return nil, fmt.Errorf("configuration flow is required")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		secCfg:     deps.Security,
		fansCfg:    deps.Fans,
		logger:     deps.Logger,
		registry:   deps.Registry,
		states:     deps.States,
		aggregates: deps.Aggregates,
		flow:       deps.Flow,
		mqtt:       deps.MQTT,
		db:         deps.DB,
		version:    deps.Version,
		startTime:  time.Now(),
	}

	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	} else {
		s.hub = NewHub(deps.WS, deps.Logger)
	}
	s.hub.SetReplay(s.replay)

	return s, nil
}

// replay gives new subscribers every current aggregate snapshot, or the
// current configuration entry.
func (s *Server) replay(channel string) []any {
	switch channel {
	case aggregate.ChannelStateChanged:
		snaps := s.aggregates.List()
		out := make([]any, 0, len(snaps))
		for _, snap := range snaps {
			out = append(out, snap)
		}
		return out
	case ChannelEntryUpdated:
		entry, err := s.flow.Current(context.Background())
		if err != nil {
			return nil
		}
		return []any{entry}
	}
	return nil
}

// Hub returns the WebSocket hub, for wiring aggregate broadcasts.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
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

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
