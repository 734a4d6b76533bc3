package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"mercator-hq/ruleflow/pkg/config"
	"mercator-hq/ruleflow/pkg/history"
	"mercator-hq/ruleflow/pkg/ruleengine"
	"mercator-hq/ruleflow/pkg/ruleset"
	"mercator-hq/ruleflow/pkg/server/middleware"
	"mercator-hq/ruleflow/pkg/telemetry/health"
	"mercator-hq/ruleflow/pkg/telemetry/tracing"
)

// Engine runs validation passes. *ruleengine.Orchestrator implements it.
type Engine interface {
	ProcessRules(ctx context.Context, rules []ruleengine.Rule, data any, vctx *ruleengine.ValidationContext) *ruleengine.ValidationResult
	Metrics() ruleengine.ProcessorMetrics
	ResetMetrics()
}

// RuleSets looks up loaded rule sets. *ruleset.Registry implements it.
type RuleSets interface {
	Get(category, version string) (*ruleset.RuleSet, error)
	List() []ruleset.Summary
}

// Deps are the collaborators the server routes requests to.
// Engine and RuleSets are required.
type Deps struct {
	Engine   Engine
	RuleSets RuleSets

	// History serves GET /v1/history. Nil disables the endpoint.
	History      history.Storage
	HistoryQuery config.QueryConfig

	// Health serves /healthz and /readyz. Nil uses a checker without checks.
	Health  *health.Checker
	Version health.VersionInfo

	// Metrics is mounted at MetricsPath when set.
	Metrics     http.Handler
	MetricsPath string

	Tracer trace.Tracer
	Logger *slog.Logger
}

// Server is the ruleflow HTTP API.
type Server struct {
	config     config.ServerConfig
	deps       Deps
	logger     *slog.Logger
	router     chi.Router
	httpServer *http.Server

	mu        sync.Mutex
	listener  net.Listener
	isRunning bool
}

// New creates a server. It does not listen until Start.
func New(cfg config.ServerConfig, deps Deps) (*Server, error) {
	if deps.Engine == nil {
		return nil, errors.New("server: engine is required")
	}
	if deps.RuleSets == nil {
		return nil, errors.New("server: rule sets are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Tracer == nil {
		deps.Tracer = noop.NewTracerProvider().Tracer(tracing.InstrumentationName)
	}
	if deps.Health == nil {
		deps.Health = health.New(0)
	}
	if deps.MetricsPath == "" {
		deps.MetricsPath = config.DefaultMetricsPath
	}

	s := &Server{
		config: cfg,
		deps:   deps,
		logger: deps.Logger.With("component", "server"),
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(s.logger))
	r.Use(middleware.Recovery(s.logger))
	r.Use(tracing.HTTPMiddleware(s.deps.Tracer))
	r.Use(middleware.MaxBody(s.config.MaxBodyBytes))

	r.Get("/healthz", s.deps.Health.LivenessHandler())
	r.Get("/readyz", s.deps.Health.ReadinessHandler())
	r.Get("/version", health.VersionHandler(s.deps.Version))
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, s.deps.MetricsPath, s.deps.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/rulesets", func(r chi.Router) {
			r.Get("/", s.handleListRuleSets)
			r.Route("/{category}/{version}", func(r chi.Router) {
				r.Get("/", s.handleGetRuleSet)
				r.Get("/plan", s.handlePlan)
				r.Post("/validate", s.handleValidate)
			})
		})

		r.Get("/engine/metrics", s.handleEngineMetrics)
		r.Delete("/engine/metrics", s.handleResetEngineMetrics)

		r.Get("/history", s.handleHistory)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	return r
}

// Start listens on the configured address and serves until ctx is
// cancelled or Shutdown is called. It returns nil after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("listen on %s: %w", s.config.ListenAddress, err)
	}

	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	s.listener = ln
	s.isRunning = true
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("starting ruleflow server", "address", ln.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err, ok := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		if !ok {
			return nil
		}
		return err
	}
}

// Shutdown gracefully stops the server within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	srv := s.httpServer
	s.mu.Unlock()

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = config.DefaultShutdownTimeout
	}
	s.logger.Info("initiating graceful shutdown", "timeout", timeout.String())

	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("error during server shutdown", "error", err)
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.logger.Info("ruleflow server stopped")
	return nil
}

// Addr returns the bound address while the server is running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}
