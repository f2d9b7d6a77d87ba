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

	"github.com/bissquit/status-garden/api/openapi"
	"github.com/bissquit/status-garden/internal/catalog"
	catalogpostgres "github.com/bissquit/status-garden/internal/catalog/postgres"
	"github.com/bissquit/status-garden/internal/config"
	"github.com/bissquit/status-garden/internal/identity"
	"github.com/bissquit/status-garden/internal/identity/jwt"
	identitypostgres "github.com/bissquit/status-garden/internal/identity/postgres"
	"github.com/bissquit/status-garden/internal/incidents"
	incidentspostgres "github.com/bissquit/status-garden/internal/incidents/postgres"
	"github.com/bissquit/status-garden/internal/maintenances"
	maintenancespostgres "github.com/bissquit/status-garden/internal/maintenances/postgres"
	"github.com/bissquit/status-garden/internal/organizations"
	organizationspostgres "github.com/bissquit/status-garden/internal/organizations/postgres"
	"github.com/bissquit/status-garden/internal/pkg/ctxlog"
	"github.com/bissquit/status-garden/internal/pkg/httputil"
	"github.com/bissquit/status-garden/internal/pkg/metrics"
	"github.com/bissquit/status-garden/internal/pkg/postgres"
	"github.com/bissquit/status-garden/internal/realtime"
	"github.com/bissquit/status-garden/internal/statuspage"
	"github.com/bissquit/status-garden/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	hub           *realtime.Hub
	server        *http.Server
	metricsServer *http.Server
	bgCancel      context.CancelFunc
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)

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
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())

	app := &App{
		config:   cfg,
		logger:   logger,
		db:       db,
		hub:      realtime.NewHub(logger),
		bgCancel: bgCancel,
	}

	go app.collectDBMetrics(bgCtx)

	router := app.setupRouter(bgCtx)

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
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

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

	a.bgCancel()

	// Hijacked websocket connections are not tracked by http.Server.
	a.hub.Close()

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

	a.db.Close()

	return errors.Join(errs...)
}

func (a *App) collectDBMetrics(ctx context.Context) {
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

func (a *App) cleanupRateLimiters(ctx context.Context, limiters ...*httputil.RateLimiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, l := range limiters {
				l.Cleanup()
			}
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

func (a *App) setupRouter(ctx context.Context) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.config.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		_, _ = w.Write(openapi.Spec)
	})

	r.Get("/docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>Status Garden API</title>
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

	var publisher realtime.Publisher = realtime.NopPublisher{}
	if a.config.Realtime.Enabled {
		publisher = a.hub
	}

	catalogService := catalog.NewService(catalogpostgres.NewRepository(a.db), publisher)
	incidentsService := incidents.NewService(incidentspostgres.NewRepository(a.db), catalogService, publisher)
	maintenancesService := maintenances.NewService(maintenancespostgres.NewRepository(a.db), catalogService, publisher)
	organizationsService := organizations.NewService(organizationspostgres.NewRepository(a.db))
	statuspageService := statuspage.NewService(organizationsService, catalogService, incidentsService, maintenancesService)

	identityRepo := identitypostgres.NewRepository(a.db)
	jwtAuth := jwt.NewAuthenticator(jwt.Config{
		SecretKey:            a.config.JWT.SecretKey,
		AccessTokenDuration:  a.config.JWT.AccessTokenDuration,
		RefreshTokenDuration: a.config.JWT.RefreshTokenDuration,
	}, identityRepo)
	identityService := identity.NewService(identityRepo, jwtAuth)

	identityHandler := identity.NewHandler(identityService, identity.CookieSettings{
		Secure:               a.config.Cookie.Secure,
		Domain:               a.config.Cookie.Domain,
		AccessTokenDuration:  a.config.JWT.AccessTokenDuration,
		RefreshTokenDuration: a.config.JWT.RefreshTokenDuration,
	})
	catalogHandler := catalog.NewHandler(catalogService)
	incidentsHandler := incidents.NewHandler(incidentsService)
	maintenancesHandler := maintenances.NewHandler(maintenancesService)
	organizationsHandler := organizations.NewHandler(organizationsService)
	statuspageHandler := statuspage.NewHandler(statuspageService)

	apiLimit := func(next http.Handler) http.Handler { return next }
	authLimit := apiLimit
	if a.config.RateLimit.Enabled {
		apiLimiter := httputil.NewRateLimiter(httputil.RateLimiterConfig{
			Name:              "api",
			RequestsPerSecond: a.config.RateLimit.RequestsPerSecond,
			Burst:             a.config.RateLimit.Burst,
		})
		authLimiter := httputil.NewRateLimiter(httputil.RateLimiterConfig{
			Name:              "auth",
			RequestsPerSecond: a.config.RateLimit.AuthRequestsPerSecond,
			Burst:             a.config.RateLimit.AuthBurst,
		})
		go a.cleanupRateLimiters(ctx, apiLimiter, authLimiter)
		apiLimit = apiLimiter.Middleware
		authLimit = authLimiter.Middleware
	}

	r.Route("/api/v1", func(r chi.Router) {
		if a.config.Realtime.Enabled {
			r.Method(http.MethodGet, "/ws", realtime.NewHandler(a.hub, realtime.HandlerConfig{
				AllowedOrigins:  a.config.Realtime.AllowedOrigins,
				ReadBufferSize:  a.config.Realtime.ReadBufferSize,
				WriteBufferSize: a.config.Realtime.WriteBufferSize,
				SendBufferSize:  a.config.Realtime.SendBufferSize,
			}, a.logger))
		}

		// Websocket connections outlive any request timeout.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.With(authLimit).Group(identityHandler.RegisterRoutes)

			r.Group(func(r chi.Router) {
				r.Use(apiLimit)

				statuspageHandler.RegisterRoutes(r)

				r.Group(func(r chi.Router) {
					r.Use(httputil.AuthMiddleware(identityService))

					identityHandler.RegisterProtectedRoutes(r)

					r.Route("/organizations", func(r chi.Router) {
						organizationsHandler.RegisterRoutes(r)

						r.Route("/{orgID}", func(r chi.Router) {
							r.Use(organizations.RequireMember(organizationsService))

							organizationsHandler.RegisterOrgRoutes(r)
							catalogHandler.RegisterRoutes(r)
							incidentsHandler.RegisterRoutes(r)
							maintenancesHandler.RegisterRoutes(r)
						})
					})
				})
			})
		})
	})

	return r
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
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
