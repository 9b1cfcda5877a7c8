package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"github.com/jackzampolin/claimdoc/internal/api"
	"github.com/jackzampolin/claimdoc/internal/cache"
	"github.com/jackzampolin/claimdoc/internal/config"
	"github.com/jackzampolin/claimdoc/internal/extract"
	"github.com/jackzampolin/claimdoc/internal/home"
	"github.com/jackzampolin/claimdoc/internal/llmcall"
	"github.com/jackzampolin/claimdoc/internal/merge"
	"github.com/jackzampolin/claimdoc/internal/metrics"
	"github.com/jackzampolin/claimdoc/internal/pgcontainer"
	"github.com/jackzampolin/claimdoc/internal/pipeline"
	"github.com/jackzampolin/claimdoc/internal/providers"
	"github.com/jackzampolin/claimdoc/internal/rasterize"
	"github.com/jackzampolin/claimdoc/internal/server/endpoints"
	"github.com/jackzampolin/claimdoc/internal/store"
	"github.com/jackzampolin/claimdoc/internal/svcctx"
)

const (
	// writeTimeout covers four paced model calls, which can run for several minutes.
	writeTimeout = 10 * time.Minute
	// DefaultShutdownTimeout lets a request that started just before shutdown
	// finish and record its result.
	DefaultShutdownTimeout = writeTimeout + 30*time.Second
)

// Server is the claimdoc HTTP server.
// When a managed database is configured it starts the Postgres container on
// server start and stops it on shutdown.
type Server struct {
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcHealth *health.Server
	grpcAddr   string

	dbManager *pgcontainer.Manager
	store     *store.Store
	recorder  *llmcall.Recorder
	registry  *providers.Registry
	metrics   *metrics.Collector
	configMgr *config.Manager
	home      *home.Dir
	renderer  rasterize.Renderer
	llm       providers.LLMClient
	logger    *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	// runs tracks extractions in flight so shutdown can let them record
	// their outcome before the store closes.
	runs            sync.WaitGroup
	inflight        atomic.Int64
	shutdownTimeout time.Duration

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: server.host from config)
	Host string
	// Port is the port to listen on (default: server.port from config)
	Port string
	// GRPCPort serves the gRPC health service; empty falls back to config,
	// and an empty config value disables gRPC.
	GRPCPort string
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Home locates the default SQLite database and managed Postgres data.
	Home *home.Dir
	// Renderer overrides the pdftoppm renderer.
	Renderer rasterize.Renderer
	// LLM overrides the client resolved from the provider registry.
	LLM providers.LLMClient
	// ManagedDB forces the managed Postgres container on or off; nil uses config.
	ManagedDB *bool
	// ShutdownTimeout bounds the wait for open requests and running
	// extractions on shutdown (default: DefaultShutdownTimeout).
	ShutdownTimeout time.Duration
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.ConfigManager == nil {
		return nil, errors.New("config manager is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	settings := cfg.ConfigManager.Get()
	if cfg.Host == "" {
		cfg.Host = settings.Server.Host
	}
	if cfg.Port == "" {
		cfg.Port = settings.Server.Port
	}
	if cfg.GRPCPort == "" {
		cfg.GRPCPort = settings.Server.GRPCPort
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Create provider registry
	registry := providers.NewRegistry()
	registry.SetLogger(cfg.Logger)
	registry.Reload(settings.ToProviderRegistryConfig())

	// Watch for config changes
	cfg.ConfigManager.OnChange(func(c *config.Config) {
		registry.Reload(c.ToProviderRegistryConfig())
		cfg.Logger.Info("provider registry reloaded from config")
	})

	s := &Server{
		registry:  registry,
		metrics:   metrics.NewCollector(metrics.DefaultWindow),
		configMgr: cfg.ConfigManager,
		home:      cfg.Home,
		renderer:  cfg.Renderer,
		llm:       cfg.LLM,
		logger:    cfg.Logger,

		shutdownTimeout: cfg.ShutdownTimeout,
	}

	managed := settings.Database.Managed.Enabled
	if cfg.ManagedDB != nil {
		managed = *cfg.ManagedDB
	}
	if managed {
		mgr, err := NewDBManager(settings.Database.Managed, cfg.Home, cfg.Logger)
		if err != nil {
			return nil, err
		}
		s.dbManager = mgr
	}

	if s.renderer == nil {
		s.renderer = rasterize.NewPdftoppm(rasterize.Config{
			DPI:     settings.Pipeline.DPI,
			Workers: settings.Pipeline.RenderWorkers,
			Logger:  cfg.Logger,
		})
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{
		DBManager:         s.dbManager,
		MaxFileSize:       settings.Pipeline.MaxFileSize,
		PreviewWidth:      settings.Pipeline.PreviewWidth,
		AllowedExtensions: settings.Pipeline.AllowedExtensions,
		SwaggerSpecPath:   endpoints.GetSwaggerSpecPath(),
	}) {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:        net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:     withRecovery(cfg.Logger, withCORS(settings.Server.AllowedOrigins, s.withServices(mux))),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  120 * time.Second,
	}

	if cfg.GRPCPort != "" {
		s.grpcAddr = net.JoinHostPort(cfg.Host, cfg.GRPCPort)
		s.grpcServer, s.grpcHealth = newGRPCServer()
	}

	return s, nil
}

// NewDBManager creates the managed Postgres container manager. With a home
// directory the container name and data directory are derived from it.
func NewDBManager(m config.ManagedDBCfg, h *home.Dir, logger *slog.Logger) (*pgcontainer.Manager, error) {
	pc := pgcontainer.Config{
		ContainerName: m.ContainerName,
		Image:         m.Image,
		HostPort:      m.Port,
		User:          m.User,
		Password:      config.ResolveEnvVars(m.Password),
		Database:      m.Database,
		Logger:        logger,
	}
	if h != nil {
		pc.HomePath = h.Path()
		pc.DataPath = filepath.Join(h.DataPath(), "postgres")
	}
	mgr, err := pgcontainer.New(pc)
	if err != nil {
		return nil, fmt.Errorf("failed to create database container manager: %w", err)
	}
	return mgr, nil
}

// Start opens the store, builds the pipeline and serves until ctx is done.
// If an existing Postgres container exists, it validates the configuration matches.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	settings := s.configMgr.Get()

	dbCfg := store.Config{
		Driver:           settings.Database.Driver,
		DSN:              config.ResolveEnvVars(settings.Database.DSN),
		MaxConns:         settings.Database.MaxConns,
		MinConns:         settings.Database.MinConns,
		ConnMaxLifetime:  settings.Database.ConnMaxLifetime,
		ConnMaxIdleTime:  settings.Database.ConnMaxIdleTime,
		StatementTimeout: settings.Database.StatementTimeout,
		Logger:           s.logger,
	}

	if s.dbManager != nil {
		if err := s.dbManager.ValidateExisting(ctx); err != nil {
			s.setNotRunning()
			return fmt.Errorf("existing database container incompatible: %w", err)
		}
		s.logger.Info("starting managed Postgres", "container", s.dbManager.ContainerName())
		if err := s.dbManager.Start(ctx); err != nil {
			s.setNotRunning()
			return fmt.Errorf("failed to start managed Postgres: %w", err)
		}
		dbCfg.Driver = store.DriverPostgres
		dbCfg.DSN = s.dbManager.DSN()
	} else if dbCfg.DSN == "" && s.home != nil && dbCfg.Driver != store.DriverPostgres {
		dbCfg.DSN = s.home.DatabasePath()
	}

	st, err := store.Open(ctx, dbCfg)
	if err != nil {
		_ = s.shutdown()
		return err
	}
	s.store = st

	if err := st.Migrate(ctx); err != nil {
		_ = s.shutdown()
		return fmt.Errorf("schema migration failed: %w", err)
	}

	s.recorder = llmcall.NewRecorder(llmcall.RecorderConfig{Sink: st, Logger: s.logger})
	s.recorder.Start()

	run, err := s.buildPipeline(ctx, settings)
	if err != nil {
		_ = s.shutdown()
		return err
	}

	// Create services struct for context enrichment
	s.services = &svcctx.Services{
		Store:           st,
		Pipeline:        run,
		Renderer:        s.renderer,
		Metrics:         s.metrics,
		Registry:        s.registry,
		Config:          s.configMgr,
		Logger:          s.logger,
		Home:            s.home,
		ModelConfigured: s.modelConfigured,
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 2)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if s.grpcServer != nil {
		lis, err := net.Listen("tcp", s.grpcAddr)
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("failed to listen for gRPC: %w", err)
		}
		s.setServing(true)
		go func() {
			s.logger.Info("starting gRPC health server", "addr", s.grpcAddr)
			if err := s.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- fmt.Errorf("gRPC: %w", err)
			}
		}()
	}

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = s.shutdown()
		return fmt.Errorf("server error: %w", err)
	}

	return s.shutdown()
}

// buildPipeline wires the extractor, orchestrator and middleware chain.
func (s *Server) buildPipeline(ctx context.Context, settings *config.Config) (pipeline.RunFunc, error) {
	orch, err := NewOrchestrator(settings.Pipeline, extract.ModelFunc(s.generate), s.renderer, s.logger)
	if err != nil {
		return nil, err
	}

	var withCache pipeline.Middleware
	if settings.Cache.Enabled {
		mem := cache.NewMemory(settings.Cache.TTL)
		go mem.Run(ctx, time.Minute)
		withCache = pipeline.WithCache(mem, settings.Cache.TTL, s.logger)
	}

	return pipeline.Chain(orch.RunFunc(),
		s.trackRuns,
		pipeline.WithLogging(s.logger),
		pipeline.WithMetrics(s.metrics),
		pipeline.WithUploadCheck(settings.Pipeline.AllowedExtensions, settings.Pipeline.MaxFileSize),
		withCache,
		pipeline.WithStore(s.store, s.logger),
	), nil
}

// NewOrchestrator builds the page extractor and orchestrator from pipeline
// settings. The CLI uses it for local runs.
func NewOrchestrator(p config.PipelineCfg, model extract.Model, renderer rasterize.Renderer, logger *slog.Logger) (*pipeline.Orchestrator, error) {
	extractor := extract.New(extract.Config{
		Model:       model,
		MaxPages:    p.MaxPages,
		PageDelay:   p.PageDelay,
		NoDelay:     p.PageDelay == 0,
		PageTimeout: p.PageTimeout,
		CheckShape:  p.CheckShape,
		Logger:      logger,
	})

	priority, err := merge.ParsePriority(p.Priority)
	if err != nil {
		return nil, fmt.Errorf("invalid pipeline priority: %w", err)
	}

	return pipeline.New(pipeline.Config{
		Extractor:         extractor,
		Renderer:          renderer,
		MinPages:          p.MinPages,
		AllowedExtensions: p.AllowedExtensions,
		MaxFileSize:       p.MaxFileSize,
		Priority:          priority,
		ProcessingMethod:  p.ProcessingMethod,
		Logger:            logger,
	})
}

// generate resolves the default provider on every call so config reloads
// take effect without a restart.
func (s *Server) generate(ctx context.Context, prompt string, image []byte) (string, error) {
	settings := s.configMgr.Get()
	name := settings.Defaults.LLMProvider
	client := s.llm
	if client == nil {
		c, err := s.registry.GetLLM(name)
		if err != nil {
			return "", fmt.Errorf("vision model %q not configured: %w", name, err)
		}
		client = c
	}

	v := providers.NewVision(client, "")
	if pc, ok := settings.GetLLMProvider(name); ok && s.llm == nil {
		v.Model = pc.Model
	}
	v.Observer = providers.Observers(s.metrics.ObserveCall, s.recorder.Observe)
	return v.Generate(ctx, prompt, image)
}

func (s *Server) modelConfigured() bool {
	if s.llm != nil {
		return true
	}
	return s.registry.HasLLM(s.configMgr.Get().Defaults.LLMProvider)
}

// shutdown stops the listeners, waits for running extractions to record
// their outcome, flushes pending call records and stops the managed database.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.grpcServer != nil {
		s.setServing(false)
		s.grpcServer.GracefulStop()
	}

	if !s.waitForRuns(shutdownCtx) {
		s.logger.Warn("closing store with extractions still running", "in_flight", s.inflight.Load())
	}

	if s.recorder != nil {
		s.recorder.Stop()
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("store close error", "error", err)
		}
	}

	if s.dbManager != nil {
		s.logger.Info("stopping managed Postgres")
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()
		if err := s.dbManager.Stop(stopCtx); err != nil {
			s.logger.Error("managed Postgres stop error", "error", err)
		}
		if err := s.dbManager.Close(); err != nil {
			s.logger.Error("database manager close error", "error", err)
		}
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

// trackRuns counts extractions in flight for waitForRuns.
func (s *Server) trackRuns(next pipeline.RunFunc) pipeline.RunFunc {
	return func(ctx context.Context, doc pipeline.Document) (*pipeline.Result, error) {
		s.runs.Add(1)
		s.inflight.Add(1)
		defer func() {
			s.inflight.Add(-1)
			s.runs.Done()
		}()
		return next(ctx, doc)
	}
}

// waitForRuns blocks until no extraction is running or ctx ends. It reports
// whether every run finished.
func (s *Server) waitForRuns(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		s.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Store returns the database handle.
// Returns nil if the server hasn't started yet.
func (s *Server) Store() *store.Store {
	return s.store
}

// Metrics returns the metrics collector.
func (s *Server) Metrics() *metrics.Collector {
	return s.metrics
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// GRPCAddr returns the gRPC health listen address, or "" when disabled.
func (s *Server) GRPCAddr() string {
	return s.grpcAddr
}

// Registry returns the provider registry.
func (s *Server) Registry() *providers.Registry {
	return s.registry
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable if the store or pipeline aren't ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.store == nil || s.services == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
