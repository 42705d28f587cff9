package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/AmalSalhi1/BeedicalApp/internal/config"
	"github.com/AmalSalhi1/BeedicalApp/internal/domain/dependent"
	"github.com/AmalSalhi1/BeedicalApp/internal/domain/directory"
	"github.com/AmalSalhi1/BeedicalApp/internal/domain/scheduling"
	"github.com/AmalSalhi1/BeedicalApp/internal/platform/auth"
	"github.com/AmalSalhi1/BeedicalApp/internal/platform/cache"
	"github.com/AmalSalhi1/BeedicalApp/internal/platform/db"
	"github.com/AmalSalhi1/BeedicalApp/internal/platform/metrics"
	"github.com/AmalSalhi1/BeedicalApp/internal/platform/middleware"
)

const version = "0.1.0"

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

// app holds the services shared by the server and the maintenance commands.
type app struct {
	pool        *pgxpool.Pool
	redis       *redis.Client
	registry    *prometheus.Registry
	directory   *directory.Service
	dependents  *dependent.Service
	publisher   *scheduling.Publisher
	coordinator *scheduling.Coordinator
}

func buildApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, err
	}
	logger.Info().Msg("connected to database")

	rdb := cache.Connect(ctx, cfg.RedisURL, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bookingMetrics := metrics.NewBookingMetrics(registry)

	dirSvc := directory.NewService(
		directory.NewRepoPG(pool),
		cache.New(rdb, "directory", logger),
		cfg.SearchCacheTTL,
		logger.With().Str("component", "directory").Logger(),
	)
	depSvc := dependent.NewService(dependent.NewRepoPG(pool), loc, logger.With().Str("component", "dependents").Logger())

	store := scheduling.NewStorePG(pool)
	schedLogger := logger.With().Str("component", "scheduling").Logger()

	return &app{
		pool:        pool,
		redis:       rdb,
		registry:    registry,
		directory:   dirSvc,
		dependents:  depSvc,
		publisher:   scheduling.NewPublisher(store, dirSvc, loc, bookingMetrics, schedLogger),
		coordinator: scheduling.NewCoordinator(store, depSvc, loc, cfg.SlotWriteTimeout, bookingMetrics, schedLogger).
			WithDetails(dirSvc, depSvc),
	}, nil
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	a.pool.Close()
}

// routes are the handlers mounted by newServer.
type routes struct {
	directory  *directory.Handler
	dependents *dependent.Handler
	scheduling *scheduling.Handler
	dbHealth   echo.HandlerFunc
	metrics    echo.HandlerFunc
}

func newServer(cfg *config.Config, r routes, authMW echo.MiddlewareFunc, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", auth.DevUserHeader},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.BodyLimit("1M"))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if r.dbHealth != nil {
		e.GET("/health/db", r.dbHealth)
	}
	if r.metrics != nil {
		e.GET("/metrics", r.metrics)
	}

	apiV1 := e.Group("/api/v1", authMW)
	if cfg.RateLimitRPS > 0 {
		apiV1.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			BurstSize:         cfg.RateLimitBurst,
			IdleExpiry:        cfg.RateLimitIdle,
		}))
	}
	apiV1.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	r.directory.RegisterRoutes(apiV1)
	r.dependents.RegisterRoutes(apiV1)
	r.scheduling.RegisterRoutes(apiV1)
	return e
}

// authMiddleware trusts X-Dev-User in development and validates bearer tokens
// everywhere else. Search and availability stay public because the JWT check
// only runs when an Authorization header is present.
func authMiddleware(cfg *config.Config, logger zerolog.Logger) echo.MiddlewareFunc {
	if cfg.IsDev() {
		return auth.DevAuthMiddleware()
	}
	jwtMW := auth.JWTMiddleware(auth.JWTConfig{
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		JWKSURL:  cfg.AuthJWKSURL,
		Logger:   logger,
	})
	return optionalAuth(jwtMW)
}

// optionalAuth runs mw only for requests that carry credentials. Routes that
// need an actor are guarded by auth.RequireAuth.
func optionalAuth(mw echo.MiddlewareFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		withAuth := mw(next)
		return func(c echo.Context) error {
			if c.Request().Header.Get(echo.HeaderAuthorization) == "" {
				return next(c)
			}
			return withAuth(c)
		}
	}
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialise services")
		return err
	}
	defer a.Close()

	e := newServer(cfg, routes{
		directory:  directory.NewHandler(a.directory),
		dependents: dependent.NewHandler(a.dependents),
		scheduling: scheduling.NewHandler(a.coordinator, a.publisher, cfg.PublishHorizonDays),
		dbHealth:   db.HealthHandler(a.pool, func() *db.PoolStats { return db.GetPoolStats(a.pool) }),
		metrics:    metrics.Handler(a.registry),
	}, authMiddleware(cfg, logger), logger)

	runner := scheduling.NewRunner(a.publisher, cfg.PublishHorizonDays, logger.With().Str("component", "runner").Logger()).
		WithPublishInterval(cfg.PublishInterval).
		WithSweepInterval(cfg.SweepInterval)
	runnerDone := make(chan struct{})
	go func() {
		defer close(runnerDone)
		runner.Run(ctx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("version", version).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err = <-serverErr:
		logger.Error().Err(err).Msg("server error")
		stop()
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := e.Shutdown(shutdownCtx); serr != nil {
		logger.Error().Err(serr).Msg("server shutdown failed")
	}
	<-runnerDone
	logger.Info().Msg("server stopped")
	return err
}
