package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"datafit/internal/calculations"
	"datafit/internal/config"
	apperrors "datafit/internal/errors"
	"datafit/internal/files"
	"datafit/internal/infrastructure"
	customMiddleware "datafit/internal/middleware"
	"datafit/internal/repository"
	"datafit/internal/security"
	"datafit/internal/services"
	handlers "datafit/internal/transport/http"
	ws "datafit/internal/websocket"
	"datafit/pkg/contracts"
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Store         *repository.Store
	Files         services.FileStore
	WebSocketHub  *ws.Hub
	Tokens        *security.TokenManager
	Services      *ServiceContainer
	ErrorHandler  *apperrors.ErrorHandler
	Router        *chi.Mux
	Server        *http.Server
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Reports    *services.ReportService
	Indicators *services.IndicatorService
	Owners     *services.OwnerService
	Health     *services.HealthService
}

// NewApplication loads configuration and builds the application.
func NewApplication(ctx context.Context) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(ctx, cfg, logger)
}

// New wires every component from cfg. The caller owns Stop.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	logger.InfoContext(ctx, "application starting",
		slog.String("version", contracts.Version),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("storage_backend", cfg.Storage.Backend))

	a := &Application{
		Config:       cfg,
		Logger:       logger,
		ErrorHandler: apperrors.NewErrorHandler(logger, false),
	}

	otelProviders, err := infrastructure.InitializeOTel(cfg.Tracing, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	a.OTelProviders = otelProviders

	tokens, err := security.NewTokenManager(cfg.Security.JWTSecret, cfg.Security.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token manager: %w", err)
	}
	a.Tokens = tokens

	store, err := repository.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.Store = store

	fileStore, err := NewFileStore(ctx, cfg.Storage, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize file storage: %w", err)
	}
	a.Files = fileStore

	if err := a.initializeServices(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := a.setupRouter(); err != nil {
		a.WebSocketHub.Stop()
		store.Close()
		return nil, fmt.Errorf("failed to set up router: %w", err)
	}
	a.createServer()

	return a, nil
}

// NewFileStore builds the configured storage backend.
func NewFileStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (services.FileStore, error) {
	switch cfg.Backend {
	case "s3":
		return files.NewS3Store(ctx, files.S3Config{
			Bucket:   cfg.Bucket,
			Prefix:   cfg.Prefix,
			Region:   cfg.Region,
			Endpoint: cfg.Endpoint,
			CacheDir: cfg.CacheDir,
		}, logger)
	default:
		return files.NewLocalStore(cfg.BaseDir, logger)
	}
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	wsMetrics, err := ws.NewMetrics(a.OTelProviders.Meter)
	if err != nil {
		return err
	}
	a.WebSocketHub = ws.NewHub(a.Logger, wsMetrics)
	a.WebSocketHub.Start()

	pipelineMetrics, err := infrastructure.NewPipelineMetrics(a.OTelProviders.Meter)
	if err != nil {
		return err
	}

	repos := services.RepositoriesFromStore(a.Store)
	indicators := services.NewIndicatorService(repos, pipelineMetrics, a.OTelProviders.Tracer, a.Logger)
	a.Services = &ServiceContainer{
		Indicators: indicators,
		Reports: services.NewReportService(repos, a.Files, indicators, a.Logger, services.ReportServiceOptions{
			SignificanceLevel: a.Config.Analysis.SignificanceLevel,
			Events:            a.WebSocketHub,
			Metrics:           pipelineMetrics,
			Tracer:            a.OTelProviders.Tracer,
		}),
		Owners: services.NewOwnerService(repos.Owners, a.Logger),
		Health: services.NewHealthService(a.Store, a.WebSocketHub, a.Logger),
	}
	return nil
}

// Bootstrap creates the schema and seeds the indicator catalog.
func (a *Application) Bootstrap(ctx context.Context) error {
	if err := a.Store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	added, err := a.Store.Indicators.Seed(ctx, calculations.CatalogNames())
	if err != nil {
		return fmt.Errorf("failed to seed indicator catalog: %w", err)
	}
	a.Logger.InfoContext(ctx, "database ready", slog.Int("indicators_added", added))
	return nil
}

// setupRouter builds the middleware chain and mounts every route.
// Order: RequestID → RealIP → OTel → Logger → Recoverer → SecurityHeaders → CORS → RateLimit.
func (a *Application) setupRouter() error {
	r := chi.NewRouter()

	otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.OTelProviders.Meter)
	if err != nil {
		return err
	}

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(otelMiddleware.Handler)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.ErrorHandler))
	r.Use(customMiddleware.SecurityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.Config.Security.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if rl := a.Config.Security.RateLimit; rl.Enabled {
		r.Use(customMiddleware.NewRateLimiter(rl.RPS, rl.Burst, a.ErrorHandler).Handler)
	}

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	health := handlers.NewHealthHandler(a.Services.Health, a.Logger)
	r.Get("/healthz", health.ReadinessCheck)
	r.Get("/livez", health.LivenessCheck)
	r.Get("/version", health.Version)
	r.Handle("/metrics", a.OTelProviders.MetricsHandler())

	authenticate := customMiddleware.Authenticate(a.Tokens, a.ErrorHandler, a.Logger)
	wsHandler := ws.NewHandler(a.WebSocketHub, a.Config.WebSocket, a.Config.Security.AllowedOrigins, a.ErrorHandler, a.Logger)
	r.With(authenticate).Get("/ws", wsHandler.ServeHTTP)

	reportHandler := handlers.NewReportHandler(a.Services.Reports, a.Services.Indicators,
		a.Config.Server.MaxUploadBytes, a.Logger, a.ErrorHandler)
	indicatorHandler := handlers.NewIndicatorHandler(a.Services.Indicators, a.Logger, a.ErrorHandler)
	adminHandler := handlers.NewAdminHandler(a.Services.Reports, a.Services.Owners, a.Logger, a.ErrorHandler)

	r.Route("/api/"+contracts.APIVersion, func(r chi.Router) {
		r.Use(authenticate)
		r.Mount("/reports", reportHandler.Routes())
		r.Mount("/indicators", indicatorHandler.Routes())
		r.Mount("/admin", customMiddleware.RequireAdmin(a.ErrorHandler)(adminHandler.Routes()))
	})

	a.Router = r
	return nil
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Serve accepts connections on ln until Stop is called.
func (a *Application) Serve(ln net.Listener) error {
	a.Logger.Info("http server listening", slog.String("address", ln.Addr().String()))
	if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}

	a.WebSocketHub.Stop()

	if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}
	if err := a.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("database close: %w", err))
	}

	a.Logger.InfoContext(ctx, "application shutdown complete")
	return errors.Join(errs...)
}

// Run bootstraps the database, serves HTTP and shuts down on SIGINT or SIGTERM.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Bootstrap(ctx); err != nil {
		_ = a.Stop(context.Background())
		return err
	}

	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		_ = a.Stop(context.Background())
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- a.Serve(ln) }()

	select {
	case err := <-serveErr:
		_ = a.Stop(context.Background())
		return err
	case <-ctx.Done():
		a.Logger.Info("received shutdown signal")
	}

	return a.Stop(context.Background())
}
