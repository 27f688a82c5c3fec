// Package api provides the HTTP REST API of the LEGION scan engine.
// It exposes scan jobs, the host inventory, exports, statistics and a
// WebSocket event stream.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/NubleX/LEGION2/docs/swagger" // Register generated swagger docs
	"github.com/NubleX/LEGION2/internal/api/handlers"
	"github.com/NubleX/LEGION2/internal/api/middleware"
	"github.com/NubleX/LEGION2/internal/auth"
	"github.com/NubleX/LEGION2/internal/config"
	"github.com/NubleX/LEGION2/internal/errors"
	"github.com/NubleX/LEGION2/internal/logging"
	"github.com/NubleX/LEGION2/internal/metrics"
)

const (
	serverShutdownTimeout = 30 * time.Second
	apiPrefix             = "/api/v1"
)

// Paths reachable without an API key.
var publicPaths = []string{
	"/api/v1/health",
	"/api/v1/version",
	"/metrics",
	"/swagger/",
}

// Options carries the collaborators of a Server that do not come from
// configuration.
type Options struct {
	Logger  *logging.Logger
	Metrics *metrics.PrometheusMetrics
	Build   handlers.BuildInfo
}

// Server represents the API server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	config     config.APIConfig
	engine     handlers.Engine
	websocket  *handlers.WebSocketHandler
	logger     *logging.Logger
	metrics    *metrics.PrometheusMetrics

	mu       sync.Mutex
	listener net.Listener
}

// New creates a new API server instance.
func New(cfg *config.Config, engine handlers.Engine, opts Options) (*Server, error) {
	if cfg == nil {
		return nil, errors.NewConfigFieldError(errors.CodeConfiguration, "configuration is required", "api", nil)
	}
	if engine == nil {
		return nil, errors.NewConfigFieldError(errors.CodeConfiguration, "engine is required", "engine", nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}

	s := &Server{
		router:  mux.NewRouter(),
		config:  cfg.API,
		engine:  engine,
		logger:  logger.WithComponent("api"),
		metrics: opts.Metrics,
	}

	s.setupRoutes(opts.Build)
	handler, err := s.setupMiddleware()
	if err != nil {
		return nil, err
	}

	s.httpServer = &http.Server{
		Addr:              cfg.GetAPIAddress(),
		Handler:           handler,
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
	}

	return s, nil
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("API server failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("Starting API server",
		"address", ln.Addr().String(),
		"auth_enabled", s.config.AuthEnabled,
		"read_timeout", s.httpServer.ReadTimeout,
		"write_timeout", s.httpServer.WriteTimeout)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("API server failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errChan:
		return err
	}
}

// Stop closes every event stream and gracefully stops the API server.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	s.websocket.Close()

	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("API server shutdown error", "error", err)
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("API server stopped successfully")
	return nil
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes(build handlers.BuildInfo) {
	scans := handlers.NewScanHandler(s.engine, s.logger)
	hosts := handlers.NewHostHandler(s.engine, s.logger)
	exports := handlers.NewExportHandler(s.engine, s.logger)
	health := handlers.NewHealthHandler(s.engine, build, s.logger)
	projects := handlers.NewProjectHandler(s.engine, s.logger)
	s.websocket = handlers.NewWebSocketHandler(s.engine, s.config.CORS.AllowedOrigins, s.logger)

	// Full paths on the root router: a prefix subrouter answers a method
	// mismatch with 404 instead of 405.
	api := func(path string, h http.HandlerFunc, method string) {
		s.router.HandleFunc(apiPrefix+path, h).Methods(method)
	}

	// System
	api("/health", health.Health, http.MethodGet)
	api("/version", health.Version, http.MethodGet)
	api("/statistics", health.Statistics, http.MethodGet)

	// Scan jobs
	api("/scans", scans.ListScans, http.MethodGet)
	api("/scans", scans.StartScan, http.MethodPost)
	api("/scans/range", scans.ScanRange, http.MethodPost)
	api("/scans/cancel-all", scans.CancelAllScans, http.MethodPost)
	api("/scans/{id}", scans.GetScan, http.MethodGet)
	api("/scans/{id}", scans.CancelScan, http.MethodDelete)

	// Inventory
	api("/hosts", hosts.ListHosts, http.MethodGet)
	api("/hosts/delete", hosts.DeleteHosts, http.MethodPost)
	api("/hosts/{id}", hosts.GetHost, http.MethodGet)
	api("/hosts/{id}", hosts.DeleteHost, http.MethodDelete)
	api("/hosts/{id}/tags", hosts.TagHost, http.MethodPost)
	api("/hosts/{id}/tags/{tag}", hosts.UntagHost, http.MethodDelete)
	api("/hosts/{id}/ports/{port_id}", hosts.DeletePort, http.MethodDelete)
	api("/vulnerabilities", hosts.ListVulnerabilities, http.MethodGet)
	api("/export", exports.Export, http.MethodGet)

	api("/projects", projects.ListProjects, http.MethodGet)
	api("/projects", projects.CreateProject, http.MethodPost)

	api("/events", s.websocket.Events, http.MethodGet)

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	s.router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("none"),
	))
	s.router.HandleFunc("/docs", redirectToSwagger).Methods(http.MethodGet)

	s.router.HandleFunc("/", s.index).Methods(http.MethodGet)
}

// setupMiddleware wraps the router. Route-aware middleware is attached to
// the router; everything that must also see unmatched requests and CORS
// preflights wraps it from outside.
func (s *Server) setupMiddleware() (http.Handler, error) {
	if s.metrics != nil {
		s.router.Use(middleware.Metrics(s.metrics))
	}
	if s.config.AuthEnabled {
		if len(s.config.APIKeyHashes) == 0 {
			return nil, errors.ErrConfigInvalid("api.api_key_hashes", "empty while api.auth_enabled is set")
		}
		keys := auth.NewKeyRing(s.config.APIKeyHashes)
		s.router.Use(middleware.Authentication(keys, publicPaths, s.logger))
	}
	s.router.Use(middleware.MaxBodySize(s.config.MaxRequestSize))
	s.router.Use(middleware.ContentType())

	var h http.Handler = s.router
	if s.config.CORS.Enabled {
		h = gorillahandlers.CORS(
			gorillahandlers.AllowedOrigins(s.config.CORS.AllowedOrigins),
			gorillahandlers.AllowedMethods(s.config.CORS.AllowedMethods),
			gorillahandlers.AllowedHeaders(s.config.CORS.AllowedHeaders),
		)(h)
	}
	h = middleware.SecurityHeaders()(h)
	h = middleware.Logging(s.logger)(h)
	h = gorillahandlers.RecoveryHandler(
		gorillahandlers.RecoveryLogger(recoveryLogger{s.logger}),
		gorillahandlers.PrintRecoveryStack(false),
	)(h)
	return h, nil
}

// recoveryLogger routes recovered panics into the structured log.
type recoveryLogger struct {
	logger *logging.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error("Panic in API handler", "panic", fmt.Sprint(v...))
}

// index returns API information for root requests.
func (s *Server) index(w http.ResponseWriter, _ *http.Request) {
	response := map[string]interface{}{
		"service": "LEGION API",
		"version": "v1",
		"endpoints": map[string]string{
			"health": "/api/v1/health",
			"scans":  "/api/v1/scans",
			"hosts":  "/api/v1/hosts",
			"events": "/api/v1/events",
			"docs":   "/swagger/",
		},
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("Failed to encode API index response", "error", err)
	}
}

func redirectToSwagger(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// GetAddress returns the bound address once started, else the configured one.
func (s *Server) GetAddress() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// IsRunning checks if the server accepts connections.
func (s *Server) IsRunning() bool {
	conn, err := net.DialTimeout("tcp", s.GetAddress(), time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// ConnectedClients returns the number of open event streams.
func (s *Server) ConnectedClients() int {
	return s.websocket.ConnectedClients()
}
