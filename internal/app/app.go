// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bracketops/incidentd/internal/api"
	"github.com/bracketops/incidentd/internal/clock"
	"github.com/bracketops/incidentd/internal/config"
	"github.com/bracketops/incidentd/internal/delivery"
	"github.com/bracketops/incidentd/internal/delivery/email"
	"github.com/bracketops/incidentd/internal/delivery/sms"
	"github.com/bracketops/incidentd/internal/delivery/webhook"
	"github.com/bracketops/incidentd/internal/domain"
	"github.com/bracketops/incidentd/internal/engine"
	"github.com/bracketops/incidentd/internal/journal"
	journalpostgres "github.com/bracketops/incidentd/internal/journal/postgres"
	"github.com/bracketops/incidentd/internal/pkg/ctxlog"
	"github.com/bracketops/incidentd/internal/pkg/httputil"
	"github.com/bracketops/incidentd/internal/pkg/metrics"
	"github.com/bracketops/incidentd/internal/pkg/postgres"
	"github.com/bracketops/incidentd/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App represents the application instance.
type App struct {
	config         *config.Config
	logger         *slog.Logger
	db             *pgxpool.Pool
	registry       *engine.Registry
	queue          *delivery.Queue
	deliveryWorker *delivery.Worker
	server         *http.Server
	metricsServer  *http.Server
	metricsCancel  context.CancelFunc
}

// New creates a new application instance. The event journal is replayed
// before the servers are wired, so the registry is fully hydrated by the
// time the first request arrives.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		metricsCancel: metricsCancel,
	}

	var journalRepo journal.Repository
	if cfg.Database.Enabled {
		if err := postgres.Migrate("file://"+cfg.Database.MigrationsPath, cfg.Database.URL); err != nil {
			metricsCancel()
			return nil, fmt.Errorf("migrate database: %w", err)
		}

		connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
		defer connectCancel()

		db, err := postgres.Connect(connectCtx, postgres.Config{
			URL:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnectAttempts: cfg.Database.ConnectAttempts,
		})
		if err != nil {
			metricsCancel()
			return nil, fmt.Errorf("connect to database: %w", err)
		}

		app.db = db
		journalRepo = journalpostgres.NewRepository(db)
		go app.collectDBMetrics(metricsCtx)
	} else {
		logger.Warn("event journal disabled: incidents will not survive restarts")
	}

	app.registry = engine.NewRegistry(clock.System(), journalRepo)

	if journalRepo != nil {
		replayCtx, replayCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
		defer replayCancel()

		events, err := journalRepo.ListAll(replayCtx)
		if err != nil {
			app.db.Close()
			metricsCancel()
			return nil, fmt.Errorf("load journal: %w", err)
		}
		if err := app.registry.Replay(events); err != nil {
			app.db.Close()
			metricsCancel()
			return nil, fmt.Errorf("replay journal: %w", err)
		}
	}

	notify, err := app.setupDelivery(metricsCtx)
	if err != nil {
		if app.db != nil {
			app.db.Close()
		}
		metricsCancel()
		return nil, fmt.Errorf("setup delivery: %w", err)
	}

	go app.refreshStats(metricsCtx)

	router := app.setupRouter(journalRepo, notify)

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	// Start metrics server in background
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	// Start main server
	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.metricsCancel()

	// Stop delivery worker first so queued notifications drain
	if a.deliveryWorker != nil {
		a.deliveryWorker.Stop()
	}

	// Shutdown both servers in parallel
	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	if a.db != nil {
		a.db.Close()
	}

	return errors.Join(errs...)
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Registry returns the incident registry instance. Used in tests.
func (a *App) Registry() *engine.Registry {
	return a.registry
}

// DeliveryWorker returns the delivery worker instance.
// Returns nil if delivery is disabled.
func (a *App) DeliveryWorker() *delivery.Worker {
	return a.deliveryWorker
}

func (a *App) collectDBMetrics(ctx context.Context) {
	// Collect immediately on start
	metrics.RecordDBPoolMetrics(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db)
		case <-ctx.Done():
			return
		}
	}
}

// refreshStats recomputes registry-level gauges on a fixed interval.
func (a *App) refreshStats(ctx context.Context) {
	engine.RecordStats(a.registry.CollectStats())

	ticker := time.NewTicker(a.config.SLA.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			engine.RecordStats(a.registry.CollectStats())
			if a.queue != nil {
				delivery.RecordQueueSize(a.queue.Len())
			}
		case <-ctx.Done():
			return
		}
	}
}

// setupDelivery wires the outbound notification pipeline and returns the
// hook the API handler calls when a notification_sent event is accepted.
func (a *App) setupDelivery(ctx context.Context) (api.NotifyFunc, error) {
	cfg := a.config.Delivery

	slog.Info("delivery configured",
		"enabled", cfg.Enabled,
		"email_enabled", cfg.Email.Enabled,
		"sms_enabled", cfg.SMS.Enabled,
		"targets", len(cfg.Targets),
	)

	if !cfg.Enabled {
		return nil, nil
	}

	emailSender := email.NewSender(email.Config{
		Enabled:     cfg.Email.Enabled,
		SMTPHost:    cfg.Email.SMTPHost,
		SMTPPort:    cfg.Email.SMTPPort,
		Username:    cfg.Email.Username,
		Password:    cfg.Email.Password,
		FromAddress: cfg.Email.FromAddress,
	})

	if !cfg.Email.Enabled {
		slog.Warn("email sender is disabled: email notifications will not be sent")
	}

	smsSender, err := sms.NewSender(sms.Config{
		Enabled:    cfg.SMS.Enabled,
		GatewayURL: cfg.SMS.GatewayURL,
		APIKey:     cfg.SMS.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create sms sender: %w", err)
	}

	// Webhook is always available (URL is set per-target)
	webhookSender := webhook.NewSender(webhook.Config{
		DefaultUsername: cfg.Webhook.Username,
		DefaultIconURL:  cfg.Webhook.IconURL,
		Timeout:         cfg.Webhook.Timeout,
		RequestsPerSec:  cfg.Webhook.RequestsPerSec,
		Burst:           cfg.Webhook.Burst,
	})

	targets := make([]delivery.Target, 0, len(cfg.Targets))
	for role, target := range cfg.Targets {
		targets = append(targets, delivery.Target{
			Role:   role,
			Method: domain.NotificationMethod(target.Method),
			To:     target.To,
		})
	}

	dispatcher := delivery.NewDispatcher(targets, emailSender, smsSender, webhookSender)

	renderer, err := delivery.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("create renderer: %w", err)
	}

	a.queue = delivery.NewQueue()

	workerConfig := delivery.WorkerConfig{
		BatchSize:         cfg.Worker.BatchSize,
		PollInterval:      cfg.Worker.PollInterval,
		MaxAttempts:       cfg.Retry.MaxAttempts,
		InitialBackoff:    cfg.Retry.InitialBackoff,
		MaxBackoff:        cfg.Retry.MaxBackoff,
		BackoffMultiplier: cfg.Retry.BackoffMultiplier,
		NumWorkers:        cfg.Worker.NumWorkers,
	}

	a.deliveryWorker = delivery.NewWorker(workerConfig, a.queue, dispatcher, renderer)
	a.deliveryWorker.Start(ctx)

	maxAttempts := cfg.Retry.MaxAttempts
	notify := func(incident *domain.Incident, role string, method domain.NotificationMethod, notifiedAt time.Time) {
		a.queue.Enqueue(delivery.NewJob(incident, role, method, notifiedAt, maxAttempts))
	}

	return notify, nil
}

func (a *App) setupRouter(journalRepo journal.Repository, notify api.NotifyFunc) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		http.ServeFile(w, r, "api/openapi/openapi.yaml")
	})

	r.Get("/docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>Incident Response API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
        SwaggerUIBundle({
            url: "/api/openapi.yaml",
            dom_id: '#swagger-ui',
            presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
            layout: "BaseLayout"
        });
    </script>
</body>
</html>`))
	})

	handler := api.NewHandler(a.registry, journalRepo, notify)

	r.Route("/api/v1", func(r chi.Router) {
		if a.config.Auth.Enabled {
			auth := httputil.NewAuthenticator(a.config.Auth.JWTSecret, a.config.Auth.APIKeys)
			r.Use(httputil.AuthMiddleware(auth))
		}
		r.Use(httputil.RateLimitMiddleware(
			a.config.Ingest.RateLimitPerSec,
			a.config.Ingest.RateLimitBurst,
		))

		handler.RegisterRoutes(r)
	})

	return r
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	if a.db == nil {
		httputil.Text(w, http.StatusOK, "OK")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
